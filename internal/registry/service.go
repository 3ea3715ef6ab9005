// internal/registry/service.go
// Package registry implements the complaint registry service: the operations
// exposed to the host and the lifecycle guard that decides whether a
// registration, proof attachment, or status change is accepted.
package registry

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/CaseTrail/casetrail-audit-go/internal/model"
	"github.com/CaseTrail/casetrail-audit-go/internal/storage"
	"github.com/oklog/ulid/v2"
)

// Errors returned by the registry service. ErrNotFound and ErrConflict are
// the storage sentinels so callers can match either layer with errors.Is.
var (
	ErrNotFound      = storage.ErrNotFound                      // Referenced complaint id does not exist
	ErrConflict      = storage.ErrConflict                      // Complaint id already registered
	ErrFrozen        = errors.New("complaint is frozen")        // Mutation attempted on a terminal-state complaint
	ErrInvalidStatus = errors.New("status not recognized")      // Status outside the closed enumeration
	ErrValidation    = errors.New("missing required argument")  // Empty identifier, hash, or timestamp
)

// Service owns the five registry operations and the state-transition guard.
// It holds no policy-free data itself: all records live behind the Store.
// The service assumes the host invokes operations one at a time per registry
// (single-writer); each operation either fully succeeds or leaves the store
// untouched.
type Service struct {
	store storage.Store

	// Monotonic ULID entropy for proof ordering keys. ulid.Monotonic is not
	// safe for concurrent use, so reads are serialized here.
	mu      sync.Mutex
	entropy io.Reader
}

// New constructs a registry service over the given store.
// It cannot fail: a fresh service over an empty store is an empty registry.
func New(store storage.Store) *Service {
	return &Service{
		store:   store,
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
}

// newProofID mints a ULID ordering key for a proof. ULIDs sort in creation
// order, which is how the PostgreSQL backend reproduces submission order.
func (s *Service) newProofID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), s.entropy).String()
}

// Register creates a new complaint record with status FILED.
// The complaint id is caller-assigned; registering an existing id returns
// ErrConflict and leaves the original record untouched. The timestamp is
// caller-trusted: beyond non-emptiness no format or monotonicity check is
// performed.
func (s *Service) Register(ctx context.Context, complaintID, complaintHash, userID, timestamp string) (*model.ComplaintRecord, error) {
	if complaintID == "" || complaintHash == "" || userID == "" || timestamp == "" {
		return nil, fmt.Errorf("%w: complaintId, complaintHash, userId, and timestamp are required", ErrValidation)
	}

	complaint := model.ComplaintRecord{
		ComplaintID:      complaintID,
		UserID:           userID,
		ComplaintHash:    complaintHash,
		FiledAt:          timestamp,
		Status:           model.StatusFiled,
		LastStatusUpdate: timestamp, // Initialized to filedAt per the lifecycle contract
		Proofs:           []model.ProofRecord{},
	}

	if err := s.store.CreateComplaint(ctx, complaint); err != nil {
		return nil, err
	}
	return &complaint, nil
}

// AttachProof appends a piece of evidence to an active complaint.
// Rejected with ErrNotFound if the complaint is absent and with ErrFrozen if
// the complaint has reached a terminal state. On success the proof lands at
// the end of the sequence; status and lastStatusUpdate are not touched.
func (s *Service) AttachProof(ctx context.Context, complaintID, proofHash, proofKind, timestamp string) (*model.ProofRecord, error) {
	if complaintID == "" || proofHash == "" || proofKind == "" || timestamp == "" {
		return nil, fmt.Errorf("%w: complaintId, proofHash, proofKind, and timestamp are required", ErrValidation)
	}

	complaint, err := s.store.GetComplaint(ctx, complaintID)
	if err != nil {
		return nil, err
	}
	if complaint.Status.IsTerminal() {
		return nil, fmt.Errorf("%w: complaint %s is %s", ErrFrozen, complaintID, complaint.Status)
	}

	proof := model.ProofRecord{
		ID:          s.newProofID(),
		Hash:        proofHash,
		Kind:        proofKind,
		SubmittedAt: timestamp,
	}

	if err := s.store.AppendProof(ctx, complaintID, proof); err != nil {
		return nil, err
	}
	return &proof, nil
}

// UpdateStatus applies a status transition to an active complaint.
// The new status must be one of the four known lifecycle states; unrecognized
// values are rejected with ErrInvalidStatus rather than stored. Terminal
// complaints cannot be reopened or re-labeled (ErrFrozen). Setting the same
// non-terminal status again is accepted and still refreshes lastStatusUpdate.
func (s *Service) UpdateStatus(ctx context.Context, complaintID, newStatus, timestamp string) error {
	if complaintID == "" || timestamp == "" {
		return fmt.Errorf("%w: complaintId and timestamp are required", ErrValidation)
	}

	status, err := model.ParseStatus(newStatus)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, newStatus)
	}

	complaint, err := s.store.GetComplaint(ctx, complaintID)
	if err != nil {
		return err
	}
	if complaint.Status.IsTerminal() {
		return fmt.Errorf("%w: complaint %s is %s", ErrFrozen, complaintID, complaint.Status)
	}

	return s.store.SetStatus(ctx, complaintID, status, timestamp)
}

// GetAll returns a snapshot of the full registry in deterministic order
// (sorted by complaint id). The snapshot is a value copy: mutating it does
// not affect the registry, and two consecutive calls with no intervening
// writes return identical results.
func (s *Service) GetAll(ctx context.Context) ([]model.ComplaintRecord, error) {
	return s.store.ListComplaints(ctx)
}

// GetOne returns a copy of a single complaint, or ErrNotFound if the id is
// absent. Absence is signaled explicitly; there is no sentinel empty record.
func (s *Service) GetOne(ctx context.Context, complaintID string) (*model.ComplaintRecord, error) {
	if complaintID == "" {
		return nil, fmt.Errorf("%w: complaintId is required", ErrValidation)
	}
	return s.store.GetComplaint(ctx, complaintID)
}
