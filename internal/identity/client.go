// internal/identity/client.go
// Package identity provides a client for the CaseTrail complainant directory.
// Lookups are advisory: the registry records whatever user identifier the
// caller supplies, and the directory is consulted only to flag unknown
// complainants in logs.
package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"
)

// Client for interacting with the complainant directory service.
type Client struct {
	base string       // Base URL of the directory service
	hc   *http.Client // HTTP client with custom configuration
}

// Record represents a complainant record from the directory service.
type Record struct {
	UserID      string `json:"userId"`      // Complainant identifier
	DisplayName string `json:"displayName"` // Human-readable name, may be empty
	CreatedAt   string `json:"createdAt"`   // When the complainant was registered
}

// ErrNotFound is returned when a complainant record is not found.
var ErrNotFound = errors.New("complainant not found")

// New creates a new directory client with the specified base URL.
// It configures appropriate timeouts for directory service requests.
// Parameters:
//   - baseURL: Base URL of the directory service
// Returns:
//   - *Client: Initialized directory client
func New(baseURL string) *Client {
	// Configure HTTP transport with connection timeouts
	transport := &http.Transport{
		DialContext: (&net.Dialer{Timeout: 2 * time.Second}).DialContext,
	}

	// Create HTTP client with request timeout
	return &Client{
		base: baseURL,
		hc:   &http.Client{Transport: transport, Timeout: 3 * time.Second},
	}
}

// Get retrieves a complainant record for the specified user identifier.
// Parameters:
//   - ctx: Context for the request
//   - userID: Complainant identifier to look up
// Returns:
//   - Record: Complainant record if found
//   - error: ErrNotFound if record doesn't exist, or other error
func (c *Client) Get(ctx context.Context, userID string) (Record, error) {
	// Construct the request URL
	u, _ := url.Parse(c.base)
	u.Path = "/v1/complainants/lookup"
	q := u.Query()
	q.Set("userId", userID)
	u.RawQuery = q.Encode()

	// Create and execute the HTTP request
	req, _ := http.NewRequestWithContext(ctx, "GET", u.String(), nil)
	resp, err := c.hc.Do(req)
	if err != nil {
		return Record{}, err
	}
	defer resp.Body.Close()

	// Handle different response status codes
	switch resp.StatusCode {
	case http.StatusOK:
		// Parse successful response
		var rec Record
		if err := json.NewDecoder(resp.Body).Decode(&rec); err != nil {
			return Record{}, err
		}
		return rec, nil
	case http.StatusNotFound:
		// Complainant not found
		return Record{}, ErrNotFound
	default:
		// Other error
		return Record{}, fmt.Errorf("complainant lookup failed: %s", resp.Status)
	}
}
