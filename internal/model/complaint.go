// internal/model/complaint.go
// Package model defines the data structures used throughout the audit registry service.
// These structures represent the core domain objects for complaints and their proofs.
package model

import "fmt"

// Status is the lifecycle state of a complaint.
// It is a closed enumeration: values outside the four named constants are
// rejected at the service boundary rather than stored as opaque strings.
type Status string

const (
	StatusFiled              Status = "FILED"               // Initial state at registration
	StatusUnderInvestigation Status = "UNDER_INVESTIGATION" // Complaint is being worked
	StatusResolved           Status = "RESOLVED"            // Terminal: complaint settled
	StatusRejected           Status = "REJECTED"            // Terminal: complaint dismissed
)

// ParseStatus converts a raw string into a Status.
// It returns an error for anything outside the closed enumeration.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusFiled, StatusUnderInvestigation, StatusResolved, StatusRejected:
		return Status(s), nil
	default:
		return "", fmt.Errorf("unknown status %q", s)
	}
}

// IsTerminal reports whether the status freezes the complaint record.
// Once a complaint is RESOLVED or REJECTED no proof may be attached and no
// further status change is accepted.
func (s Status) IsTerminal() bool {
	return s == StatusResolved || s == StatusRejected
}

// ProofRecord is a single piece of evidence attached to a complaint.
// Only the content fingerprint is stored; the evidence itself lives outside
// the registry (see the artifact package). Proofs are immutable once created:
// they are appended, never edited or removed.
type ProofRecord struct {
	ID          string `json:"id" db:"id"`                    // ULID ordering key assigned at attach time
	Hash        string `json:"hash" db:"hash"`                // Content fingerprint of the evidence (e.g. SHA-256)
	Kind        string `json:"kind" db:"kind"`                // Free-form classification (document, photo, ...)
	SubmittedAt string `json:"submittedAt" db:"submitted_at"` // Caller-supplied timestamp, opaque to the registry
}

// ComplaintRecord is a filed grievance tracked by the registry.
// The complaint ID is assigned by the caller at registration, not generated
// here. Timestamps are caller-supplied opaque strings; the registry performs
// no format or monotonicity checks on them.
type ComplaintRecord struct {
	ComplaintID      string        `json:"complaintId" db:"complaint_id"`            // Unique key, caller-assigned
	UserID           string        `json:"userId" db:"user_id"`                      // Complainant identifier, opaque
	ComplaintHash    string        `json:"complaintHash" db:"complaint_hash"`        // Fingerprint of the complaint text
	FiledAt          string        `json:"filedAt" db:"filed_at"`                    // Registration timestamp, set once
	Status           Status        `json:"status" db:"status"`                       // Current lifecycle state
	LastStatusUpdate string        `json:"lastStatusUpdate" db:"last_status_update"` // Timestamp of the latest accepted status change
	Proofs           []ProofRecord `json:"proofs" db:"-"`                            // Evidence in submission order
}

// Clone returns a deep copy of the record. The registry owns all complaint
// data exclusively; every read hands out an independent copy so no caller
// holds a mutable reference into the store.
func (c ComplaintRecord) Clone() ComplaintRecord {
	out := c
	out.Proofs = make([]ProofRecord, len(c.Proofs))
	copy(out.Proofs, c.Proofs)
	return out
}

// RegisterComplaintRequest is the request body for registering a complaint.
type RegisterComplaintRequest struct {
	ComplaintID   string `json:"complaintId"`   // Caller-assigned unique complaint id
	ComplaintHash string `json:"complaintHash"` // SHA-256 hash of the complaint text
	UserID        string `json:"userId"`        // Complainant identifier
	Timestamp     string `json:"timestamp"`     // Time at which the complaint is registered
}

// AttachProofRequest is the request body for attaching evidence to a complaint.
type AttachProofRequest struct {
	ProofHash string `json:"proofHash"` // SHA-256 hash of the evidence
	ProofKind string `json:"proofKind"` // Classification of the evidence
	Timestamp string `json:"timestamp"` // Time at which the proof was submitted
}

// UpdateStatusRequest is the request body for a status transition.
type UpdateStatusRequest struct {
	Status    string `json:"status"`    // One of FILED, UNDER_INVESTIGATION, RESOLVED, REJECTED
	Timestamp string `json:"timestamp"` // Time at which the status change was decided
}

// RegisterComplaintData is the payload returned after a successful registration.
type RegisterComplaintData struct {
	ComplaintID string `json:"complaintId"` // Echo of the registered id
	Status      Status `json:"status"`      // Always FILED on registration
	FiledAt     string `json:"filedAt"`     // Echo of the registration timestamp
}

// UploadInitRequest is the request body for initializing an evidence upload.
// The registry stores only proof hashes; the raw evidence is pushed straight
// to object storage via a presigned URL.
type UploadInitRequest struct {
	ComplaintID string `json:"complaintId"`        // Complaint the evidence belongs to
	SHA256      string `json:"sha256"`             // Expected content hash of the evidence
	MimeType    string `json:"mimeType"`           // MIME type of the evidence file
	Size        int64  `json:"size"`               // Size of the file in bytes
	Filename    string `json:"filename,omitempty"` // Optional original filename
}

// UploadInitData contains what a client needs to upload an evidence file.
type UploadInitData struct {
	UploadURL string `json:"uploadUrl"` // Presigned URL for the upload
	ObjectKey string `json:"objectKey"` // Object key the evidence will land under
	ExpiresAt string `json:"expiresAt"` // RFC 3339 expiry of the presigned URL
}

// UploadCompleteRequest is the request body for acknowledging a finished
// evidence upload. The object key is the one handed out at upload init.
type UploadCompleteRequest struct {
	ComplaintID string `json:"complaintId"` // Complaint the evidence belongs to
	ObjectKey   string `json:"objectKey"`   // Object key the evidence was uploaded under
}

// UploadCompleteData reports the outcome of the upload acknowledgement.
type UploadCompleteData struct {
	ObjectKey string `json:"objectKey"` // Echo of the acknowledged object key
	Size      int64  `json:"size"`      // Stored object size in bytes, 0 when unverified
	Verified  bool   `json:"verified"`  // Whether the object was confirmed in storage
}
