// internal/schema/validator_test.go
// Package schema provides unit tests for operation payload validation.
package schema

import (
	"strings"
	"testing"
)

// TestValidateRegisterPayload checks accept and reject paths for the
// complaint_register payload schema.
func TestValidateRegisterPayload(t *testing.T) {
	v, err := NewValidator()
	if err != nil {
		t.Fatalf("NewValidator() error = %v", err)
	}

	valid := map[string]interface{}{
		"complaintId":   "C1",
		"complaintHash": "hashA",
		"userId":        "U1",
		"timestamp":     "2026-01-01T00:00:00Z",
	}
	version, err := v.Validate("complaint_register", valid)
	if err != nil {
		t.Errorf("Validate(valid) error = %v, want nil", err)
	}
	if version != "1.0.0" {
		t.Errorf("Validate(valid) version = %q, want 1.0.0", version)
	}

	// Empty complaintId must be rejected
	invalid := map[string]interface{}{
		"complaintId":   "",
		"complaintHash": "hashA",
		"userId":        "U1",
		"timestamp":     "T0",
	}
	if _, err := v.Validate("complaint_register", invalid); err == nil {
		t.Error("Validate(empty complaintId) error = nil, want error")
	}

	// Missing field must be rejected
	missing := map[string]interface{}{
		"complaintId": "C1",
		"userId":      "U1",
		"timestamp":   "T0",
	}
	if _, err := v.Validate("complaint_register", missing); err == nil {
		t.Error("Validate(missing complaintHash) error = nil, want error")
	}
}

// TestValidateProofPayload checks that the register_proof schema covers the
// full operation payload: the complaint id is required alongside the proof
// fields, matching what the handlers assemble from path and body.
func TestValidateProofPayload(t *testing.T) {
	v, err := NewValidator()
	if err != nil {
		t.Fatalf("NewValidator() error = %v", err)
	}

	valid := map[string]interface{}{
		"complaintId": "C1",
		"proofHash":   "p1",
		"proofKind":   "document",
		"timestamp":   "T1",
	}
	if _, err := v.Validate("register_proof", valid); err != nil {
		t.Errorf("Validate(valid) error = %v, want nil", err)
	}

	missing := map[string]interface{}{
		"proofHash": "p1",
		"proofKind": "document",
		"timestamp": "T1",
	}
	if _, err := v.Validate("register_proof", missing); err == nil {
		t.Error("Validate(missing complaintId) error = nil, want error")
	}

	empty := map[string]interface{}{
		"complaintId": "",
		"proofHash":   "p1",
		"proofKind":   "document",
		"timestamp":   "T1",
	}
	if _, err := v.Validate("register_proof", empty); err == nil {
		t.Error("Validate(empty complaintId) error = nil, want error")
	}
}

// TestValidateStatusPayload checks the closed status enumeration.
func TestValidateStatusPayload(t *testing.T) {
	v, err := NewValidator()
	if err != nil {
		t.Fatalf("NewValidator() error = %v", err)
	}

	for _, status := range []string{"FILED", "UNDER_INVESTIGATION", "RESOLVED", "REJECTED"} {
		payload := map[string]interface{}{"status": status, "timestamp": "T1"}
		if _, err := v.Validate("update_complaint_status", payload); err != nil {
			t.Errorf("Validate(%s) error = %v, want nil", status, err)
		}
	}

	payload := map[string]interface{}{"status": "ESCALATED", "timestamp": "T1"}
	if _, err := v.Validate("update_complaint_status", payload); err == nil {
		t.Error("Validate(ESCALATED) error = nil, want error")
	} else if !strings.Contains(err.Error(), "validation failed") {
		t.Errorf("Validate(ESCALATED) error = %v, want schema violation", err)
	}
}

// TestValidateUnsupportedOperation checks that unknown operations are rejected.
func TestValidateUnsupportedOperation(t *testing.T) {
	v, err := NewValidator()
	if err != nil {
		t.Fatalf("NewValidator() error = %v", err)
	}
	if _, err := v.Validate("delete_complaint", map[string]interface{}{}); err == nil {
		t.Error("Validate(unknown op) error = nil, want error")
	}
}
