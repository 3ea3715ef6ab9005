// Package conformance provides a black-box harness that exercises the audit
// registry over HTTP and verifies the complaint lifecycle rules hold
// end to end.
package conformance

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/CaseTrail/casetrail-audit-go/internal/config"
	"github.com/CaseTrail/casetrail-audit-go/internal/event"
	"github.com/CaseTrail/casetrail-audit-go/internal/model"
	"github.com/CaseTrail/casetrail-audit-go/internal/registry"
	"github.com/CaseTrail/casetrail-audit-go/internal/server"
	"github.com/CaseTrail/casetrail-audit-go/internal/storage"
)

// Harness runs conformance checks against an in-process service instance.
type Harness struct {
	server *httptest.Server
	store  storage.Store
	pub    event.Publisher
}

// NewHarness creates a harness backed by the in-memory store and a no-op
// event publisher.
func NewHarness() (*Harness, error) {
	store := storage.NewMemory()
	svc := registry.New(store)
	pub := event.NewPublisherFromEnv() // no AUDIT_NATS_URL in tests, so noop

	cfg := config.Config{
		Env:              "test",
		Port:             "0",
		MaxArtifactSize:  10 * 1024 * 1024,
		AllowedMimeTypes: []string{"application/pdf", "image/png"},
	}

	mux, err := server.NewMux(svc, store, pub, nil, nil, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build mux: %w", err)
	}

	return &Harness{
		server: httptest.NewServer(mux),
		store:  store,
		pub:    pub,
	}, nil
}

// URL returns the base URL of the test server.
func (h *Harness) URL() string {
	return h.server.URL
}

// Close shuts down the test server and cleans up resources.
func (h *Harness) Close() {
	h.server.Close()
	h.pub.Close()
}

// RunConformanceTests runs all conformance checks.
func (h *Harness) RunConformanceTests(t *testing.T) {
	t.Run("HealthEndpoints", h.testHealthEndpoints)
	t.Run("ComplaintLifecycle", h.testComplaintLifecycle)
	t.Run("FreezeSemantics", h.testFreezeSemantics)
	t.Run("DeterministicSnapshot", h.testDeterministicSnapshot)
	t.Run("OperationCatalog", h.testOperationCatalog)
}

// post sends a JSON body and returns the status code and decoded response.
func (h *Harness) post(t *testing.T, path, body string) (int, map[string]interface{}) {
	t.Helper()
	resp, err := http.Post(h.URL()+path, "application/json", bytes.NewReader([]byte(body)))
	if err != nil {
		t.Fatalf("POST %s failed: %v", path, err)
	}
	defer resp.Body.Close()

	var decoded map[string]interface{}
	_ = json.NewDecoder(resp.Body).Decode(&decoded)
	return resp.StatusCode, decoded
}

// get fetches a path and decodes the data envelope into out.
func (h *Harness) get(t *testing.T, path string, out interface{}) int {
	t.Helper()
	resp, err := http.Get(h.URL() + path)
	if err != nil {
		t.Fatalf("GET %s failed: %v", path, err)
	}
	defer resp.Body.Close()

	if out != nil {
		_ = json.NewDecoder(resp.Body).Decode(out)
	}
	return resp.StatusCode
}

// testHealthEndpoints tests the health check endpoints.
func (h *Harness) testHealthEndpoints(t *testing.T) {
	for _, path := range []string{"/healthz", "/readyz"} {
		if status := h.get(t, path, nil); status != http.StatusOK {
			t.Errorf("expected status 200 for %s, got %d", path, status)
		}
	}
}

// testComplaintLifecycle walks a single complaint through its full life:
// register, duplicate rejection, two proofs, investigation, resolution, and
// the post-resolution freeze.
func (h *Harness) testComplaintLifecycle(t *testing.T) {
	// Register C-1001
	status, _ := h.post(t, "/v1/complaints", `{"complaintId":"C-1001","complaintHash":"hash-1001","userId":"user-77","timestamp":"2026-08-01T09:00:00Z"}`)
	if status != http.StatusCreated {
		t.Fatalf("register returned %d, want %d", status, http.StatusCreated)
	}

	// A duplicate id must be rejected
	status, _ = h.post(t, "/v1/complaints", `{"complaintId":"C-1001","complaintHash":"other","userId":"user-78","timestamp":"2026-08-01T09:05:00Z"}`)
	if status != http.StatusConflict {
		t.Fatalf("duplicate register returned %d, want %d", status, http.StatusConflict)
	}

	// Attach two proofs
	status, _ = h.post(t, "/v1/complaints/C-1001/proofs", `{"proofHash":"proof-a","proofKind":"document","timestamp":"2026-08-02T10:00:00Z"}`)
	if status != http.StatusCreated {
		t.Fatalf("first proof returned %d", status)
	}
	status, _ = h.post(t, "/v1/complaints/C-1001/proofs", `{"proofHash":"proof-b","proofKind":"photo","timestamp":"2026-08-02T11:00:00Z"}`)
	if status != http.StatusCreated {
		t.Fatalf("second proof returned %d", status)
	}

	// Move through investigation to resolution
	status, _ = h.post(t, "/v1/complaints/C-1001/status", `{"status":"UNDER_INVESTIGATION","timestamp":"2026-08-03T09:00:00Z"}`)
	if status != http.StatusOK {
		t.Fatalf("investigation transition returned %d", status)
	}
	status, _ = h.post(t, "/v1/complaints/C-1001/status", `{"status":"RESOLVED","timestamp":"2026-08-10T09:00:00Z"}`)
	if status != http.StatusOK {
		t.Fatalf("resolution transition returned %d", status)
	}

	// A proof after resolution must be refused
	status, _ = h.post(t, "/v1/complaints/C-1001/proofs", `{"proofHash":"proof-late","proofKind":"document","timestamp":"2026-08-11T09:00:00Z"}`)
	if status != http.StatusConflict {
		t.Fatalf("post-resolution proof returned %d, want %d", status, http.StatusConflict)
	}

	// The stored record carries exactly the two accepted proofs in order
	var got struct {
		Data model.ComplaintRecord `json:"data"`
	}
	if status := h.get(t, "/v1/complaints/C-1001", &got); status != http.StatusOK {
		t.Fatalf("get returned %d", status)
	}
	if got.Data.Status != model.StatusResolved {
		t.Errorf("final status = %v, want %v", got.Data.Status, model.StatusResolved)
	}
	if len(got.Data.Proofs) != 2 {
		t.Fatalf("expected 2 proofs, got %d", len(got.Data.Proofs))
	}
	if got.Data.Proofs[0].Hash != "proof-a" || got.Data.Proofs[1].Hash != "proof-b" {
		t.Errorf("proofs out of order: %+v", got.Data.Proofs)
	}
	if got.Data.FiledAt != "2026-08-01T09:00:00Z" {
		t.Errorf("filedAt = %v, want registration timestamp", got.Data.FiledAt)
	}
	if got.Data.LastStatusUpdate != "2026-08-10T09:00:00Z" {
		t.Errorf("lastStatusUpdate = %v, want resolution timestamp", got.Data.LastStatusUpdate)
	}
}

// testFreezeSemantics verifies both terminal states freeze a complaint.
func (h *Harness) testFreezeSemantics(t *testing.T) {
	for _, terminal := range []string{"RESOLVED", "REJECTED"} {
		id := "C-freeze-" + terminal
		h.post(t, "/v1/complaints", `{"complaintId":"`+id+`","complaintHash":"h","userId":"u","timestamp":"t1"}`)
		h.post(t, "/v1/complaints/"+id+"/status", `{"status":"`+terminal+`","timestamp":"t2"}`)

		status, _ := h.post(t, "/v1/complaints/"+id+"/status", `{"status":"FILED","timestamp":"t3"}`)
		if status != http.StatusConflict {
			t.Errorf("%s: reopen returned %d, want %d", terminal, status, http.StatusConflict)
		}
		status, _ = h.post(t, "/v1/complaints/"+id+"/proofs", `{"proofHash":"p","proofKind":"k","timestamp":"t3"}`)
		if status != http.StatusConflict {
			t.Errorf("%s: proof returned %d, want %d", terminal, status, http.StatusConflict)
		}
	}
}

// testDeterministicSnapshot verifies repeated reads of an unchanged registry
// return identical documents.
func (h *Harness) testDeterministicSnapshot(t *testing.T) {
	var first, second json.RawMessage
	if status := h.get(t, "/v1/complaints", &struct {
		Data *json.RawMessage `json:"data"`
	}{&first}); status != http.StatusOK {
		t.Fatalf("first snapshot returned %d", status)
	}
	if status := h.get(t, "/v1/complaints", &struct {
		Data *json.RawMessage `json:"data"`
	}{&second}); status != http.StatusOK {
		t.Fatalf("second snapshot returned %d", status)
	}
	if !bytes.Equal(first, second) {
		t.Error("two reads of an unchanged registry produced different snapshots")
	}
}

// testOperationCatalog verifies the tools and prompts documents.
func (h *Harness) testOperationCatalog(t *testing.T) {
	var toolsDoc []struct {
		Function struct {
			Name string `json:"name"`
		} `json:"function"`
	}
	if status := h.get(t, "/v1/tools", &toolsDoc); status != http.StatusOK {
		t.Fatalf("tools returned %d", status)
	}

	want := map[string]bool{
		"complaint_register":      false,
		"register_proof":          false,
		"update_complaint_status": false,
		"get_complaints":          false,
		"get_complaint":           false,
	}
	for _, tool := range toolsDoc {
		if _, ok := want[tool.Function.Name]; ok {
			want[tool.Function.Name] = true
		}
	}
	for name, seen := range want {
		if !seen {
			t.Errorf("tools document missing operation %s", name)
		}
	}

	var promptsDoc struct {
		Prompts []interface{} `json:"prompts"`
	}
	if status := h.get(t, "/v1/prompts", &promptsDoc); status != http.StatusOK {
		t.Fatalf("prompts returned %d", status)
	}
	if len(promptsDoc.Prompts) != 0 {
		t.Errorf("prompts document should be empty, got %d entries", len(promptsDoc.Prompts))
	}
}
