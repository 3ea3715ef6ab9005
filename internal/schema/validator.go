// internal/schema/validator.go
// Package schema provides JSON schema validation for registry operation payloads.
// It rejects malformed mutation requests (empty identifiers, out-of-enum
// statuses) at the edge, before they reach the registry service.
package schema

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// SupportedOperations lists the mutation operations whose payloads are
// validated. Read operations carry no body and are not listed.
var SupportedOperations = map[string]bool{
	"complaint_register":      true, // Register a new complaint
	"register_proof":          true, // Attach evidence to a complaint
	"update_complaint_status": true, // Apply a status transition
	"proof_upload_init":       true, // Initialize an evidence blob upload
	"proof_upload_complete":   true, // Acknowledge a finished evidence upload
}

// SchemaVersions maps operation names to their current payload schema
// versions. The payloads are owned by this service, so versions only move
// when the operation signatures do.
var SchemaVersions = map[string]string{
	"complaint_register":      "1.0.0",
	"register_proof":          "1.0.0",
	"update_complaint_status": "1.0.0",
	"proof_upload_init":       "1.0.0",
	"proof_upload_complete":   "1.0.0",
}

// Validator validates operation payloads against JSON schemas.
type Validator struct {
	schemas map[string]*gojsonschema.Schema // Map of operation names to compiled schemas
}

// NewValidator creates a new payload validator with all operation schemas
// compiled and ready.
func NewValidator() (*Validator, error) {
	v := &Validator{
		schemas: make(map[string]*gojsonschema.Schema),
	}
	if err := v.loadSchemas(); err != nil {
		return nil, fmt.Errorf("failed to load schemas: %w", err)
	}
	return v, nil
}

// loadSchemas compiles the payload schema for each mutation operation.
// Identifiers and hashes must be non-empty; timestamps are opaque
// caller-supplied strings and only checked for non-emptiness; status is a
// closed enumeration.
func (v *Validator) loadSchemas() error {
	registerSchema := `{"type":"object","required":["complaintId","complaintHash","userId","timestamp"],"properties":{"complaintId":{"type":"string","minLength":1},"complaintHash":{"type":"string","minLength":1},"userId":{"type":"string","minLength":1},"timestamp":{"type":"string","minLength":1}}}`
	if err := v.loadSchema("complaint_register", registerSchema); err != nil {
		return fmt.Errorf("failed to load register schema: %w", err)
	}

	proofSchema := `{"type":"object","required":["complaintId","proofHash","proofKind","timestamp"],"properties":{"complaintId":{"type":"string","minLength":1},"proofHash":{"type":"string","minLength":1},"proofKind":{"type":"string","minLength":1},"timestamp":{"type":"string","minLength":1}}}`
	if err := v.loadSchema("register_proof", proofSchema); err != nil {
		return fmt.Errorf("failed to load proof schema: %w", err)
	}

	statusSchema := `{"type":"object","required":["status","timestamp"],"properties":{"status":{"type":"string","enum":["FILED","UNDER_INVESTIGATION","RESOLVED","REJECTED"]},"timestamp":{"type":"string","minLength":1}}}`
	if err := v.loadSchema("update_complaint_status", statusSchema); err != nil {
		return fmt.Errorf("failed to load status schema: %w", err)
	}

	uploadSchema := `{"type":"object","required":["complaintId","sha256","mimeType","size"],"properties":{"complaintId":{"type":"string","minLength":1},"sha256":{"type":"string","minLength":1},"mimeType":{"type":"string","minLength":1},"size":{"type":"integer","minimum":1},"filename":{"type":"string"}}}`
	if err := v.loadSchema("proof_upload_init", uploadSchema); err != nil {
		return fmt.Errorf("failed to load upload schema: %w", err)
	}

	completeSchema := `{"type":"object","required":["complaintId","objectKey"],"properties":{"complaintId":{"type":"string","minLength":1},"objectKey":{"type":"string","minLength":1}}}`
	if err := v.loadSchema("proof_upload_complete", completeSchema); err != nil {
		return fmt.Errorf("failed to load upload complete schema: %w", err)
	}

	return nil
}

// loadSchema compiles a single operation schema.
func (v *Validator) loadSchema(operation, schemaJSON string) error {
	loader := gojsonschema.NewStringLoader(schemaJSON)
	schema, err := gojsonschema.NewSchema(loader)
	if err != nil {
		return fmt.Errorf("invalid schema for %s: %w", operation, err)
	}
	v.schemas[operation] = schema
	return nil
}

// Validate validates a payload against the schema for the named operation.
// Returns the schema version used for validation, or an error describing
// every violated constraint.
func (v *Validator) Validate(operation string, payload map[string]interface{}) (string, error) {
	if !SupportedOperations[operation] {
		return "", fmt.Errorf("unsupported operation: %s", operation)
	}

	schema, exists := v.schemas[operation]
	if !exists {
		return "", fmt.Errorf("schema not found for operation: %s", operation)
	}

	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal payload: %w", err)
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(payloadJSON))
	if err != nil {
		return "", fmt.Errorf("validation error: %w", err)
	}

	if !result.Valid() {
		var errs []string
		for _, desc := range result.Errors() {
			errs = append(errs, desc.String())
		}
		return "", fmt.Errorf("validation failed: %s", strings.Join(errs, "; "))
	}

	version, exists := SchemaVersions[operation]
	if !exists {
		version = "1.0.0"
	}
	return version, nil
}
