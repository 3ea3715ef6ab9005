// integration/audit_flow_test.go
// Package integration provides integration tests for the audit registry
// service with authentication, event publishing, and directory lookups wired
// together.
package integration

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/CaseTrail/casetrail-audit-go/internal/config"
	"github.com/CaseTrail/casetrail-audit-go/internal/identity"
	"github.com/CaseTrail/casetrail-audit-go/internal/jwks"
	"github.com/CaseTrail/casetrail-audit-go/internal/model"
	"github.com/CaseTrail/casetrail-audit-go/internal/registry"
	"github.com/CaseTrail/casetrail-audit-go/internal/server"
	"github.com/CaseTrail/casetrail-audit-go/internal/storage"
)

// capturingPublisher implements event.Publisher and records what was
// published so tests can assert on the event stream.
type capturingPublisher struct {
	registered []model.ComplaintRecord
	proofs     []model.ProofRecord
	statuses   []model.ComplaintRecord
}

func (p *capturingPublisher) PublishComplaintRegistered(ctx context.Context, complaint model.ComplaintRecord) error {
	p.registered = append(p.registered, complaint)
	return nil
}

func (p *capturingPublisher) PublishProofAttached(ctx context.Context, complaintID string, proof model.ProofRecord) error {
	p.proofs = append(p.proofs, proof)
	return nil
}

func (p *capturingPublisher) PublishStatusChanged(ctx context.Context, complaint model.ComplaintRecord) error {
	p.statuses = append(p.statuses, complaint)
	return nil
}

func (p *capturingPublisher) Close() error {
	return nil
}

// TestAuthenticatedAuditFlow drives the full lifecycle through an
// authenticated server and checks the emitted events.
func TestAuthenticatedAuditFlow(t *testing.T) {
	// Stand in for the complainant directory
	directory := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("userId") != "user-known" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode(identity.Record{UserID: "user-known", DisplayName: "Known User"})
	}))
	defer directory.Close()

	store := storage.NewMemory()
	svc := registry.New(store)
	pub := &capturingPublisher{}
	idClient := identity.New(directory.URL)
	jwksClient := jwks.NewTestClient()

	cfg := config.Config{
		Env:              "test",
		JWTIssuer:        "test-issuer",
		JWTAudience:      "test-audience",
		MaxArtifactSize:  10 * 1024 * 1024,
		AllowedMimeTypes: []string{"application/pdf"},
	}

	mux, err := server.NewMux(svc, store, pub, idClient, jwksClient, cfg)
	if err != nil {
		t.Fatalf("NewMux() error = %v", err)
	}
	srv := httptest.NewServer(mux)
	defer srv.Close()

	token, err := jwksClient.SignTestToken("test-issuer", "test-audience", "auditor-1", time.Hour)
	if err != nil {
		t.Fatalf("SignTestToken() error = %v", err)
	}

	post := func(path, body string) *http.Response {
		t.Helper()
		req, _ := http.NewRequest("POST", srv.URL+path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+token)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("POST %s failed: %v", path, err)
		}
		return resp
	}

	// Register a complaint from a complainant the directory knows about
	resp := post("/v1/complaints", `{"complaintId":"C-int-1","complaintHash":"h1","userId":"user-known","timestamp":"2026-08-20T08:00:00Z"}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register returned %d", resp.StatusCode)
	}
	resp.Body.Close()

	// An unknown complainant is logged but still accepted
	resp = post("/v1/complaints", `{"complaintId":"C-int-2","complaintHash":"h2","userId":"user-unknown","timestamp":"2026-08-20T09:00:00Z"}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register with unknown complainant returned %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Attach a proof and resolve the first complaint
	resp = post("/v1/complaints/C-int-1/proofs", `{"proofHash":"p1","proofKind":"document","timestamp":"2026-08-21T08:00:00Z"}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("attach proof returned %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = post("/v1/complaints/C-int-1/status", `{"status":"RESOLVED","timestamp":"2026-08-22T08:00:00Z"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update status returned %d", resp.StatusCode)
	}
	resp.Body.Close()

	// A request without a token is rejected
	noAuth, _ := http.NewRequest("POST", srv.URL+"/v1/complaints", strings.NewReader(`{"complaintId":"C-int-3","complaintHash":"h3","userId":"u","timestamp":"t"}`))
	noAuth.Header.Set("Content-Type", "application/json")
	resp, err = http.DefaultClient.Do(noAuth)
	if err != nil {
		t.Fatalf("unauthenticated request failed: %v", err)
	}
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("unauthenticated register returned %d, want %d", resp.StatusCode, http.StatusUnauthorized)
	}
	resp.Body.Close()

	// The event stream reflects exactly the accepted operations
	if len(pub.registered) != 2 {
		t.Errorf("expected 2 registered events, got %d", len(pub.registered))
	}
	if len(pub.proofs) != 1 || pub.proofs[0].Hash != "p1" {
		t.Errorf("unexpected proof events: %+v", pub.proofs)
	}
	if len(pub.statuses) != 1 || pub.statuses[0].Status != model.StatusResolved {
		t.Errorf("unexpected status events: %+v", pub.statuses)
	}

	// And the rejected complaint C-int-3 never made it into the registry
	getResp, err := http.Get(srv.URL + "/v1/complaints/C-int-3")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer getResp.Body.Close()
	if getResp.StatusCode != http.StatusNotFound {
		t.Errorf("rejected complaint is retrievable, status %d", getResp.StatusCode)
	}
}
