// internal/storage/memory.go
// Package storage provides implementations of the Store interface
// for both in-memory and PostgreSQL storage backends.
package storage

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/CaseTrail/casetrail-audit-go/internal/model"
)

// Standard errors returned by the storage layer
var (
	ErrNotFound = errors.New("not found") // Returned when a complaint is not found
	ErrConflict = errors.New("conflict")  // Returned when a complaint id is already registered
)

// Store interface defines the storage operations required by the registry service.
// The store holds pure data; all lifecycle policy (freeze guard, status
// validation) lives in the registry service. Implemented by both in-memory
// and PostgreSQL backends.
type Store interface {
	// CreateComplaint inserts a new complaint record. Returns ErrConflict if
	// the complaint id is already present; the existing record is untouched.
	CreateComplaint(ctx context.Context, complaint model.ComplaintRecord) error

	// GetComplaint retrieves a complaint by id, proofs included, as an
	// independent copy. Returns ErrNotFound if the id is absent.
	GetComplaint(ctx context.Context, complaintID string) (*model.ComplaintRecord, error)

	// ListComplaints returns a snapshot of every complaint ordered by
	// complaint id. Enumeration is deterministic: repeated calls against an
	// unchanged registry produce identical output.
	ListComplaints(ctx context.Context) ([]model.ComplaintRecord, error)

	// AppendProof appends a proof to the end of a complaint's evidence
	// sequence. Returns ErrNotFound if the complaint is absent. Does not
	// touch status or lastStatusUpdate.
	AppendProof(ctx context.Context, complaintID string, proof model.ProofRecord) error

	// SetStatus overwrites a complaint's status and lastStatusUpdate.
	// Returns ErrNotFound if the complaint is absent.
	SetStatus(ctx context.Context, complaintID string, status model.Status, timestamp string) error
}

// memory implements the Store interface using in-memory storage.
// It's intended for development and testing purposes. The mutex protects the
// map itself; operation-level serialization is the host's responsibility.
type memory struct {
	mu         sync.RWMutex
	complaints map[string]*model.ComplaintRecord // Map of complaint id to record
}

// NewMemory creates a new in-memory storage implementation.
func NewMemory() Store {
	return &memory{
		complaints: make(map[string]*model.ComplaintRecord),
	}
}

func (m *memory) CreateComplaint(ctx context.Context, complaint model.ComplaintRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.complaints[complaint.ComplaintID]; exists {
		return ErrConflict
	}

	stored := complaint.Clone()
	m.complaints[complaint.ComplaintID] = &stored
	return nil
}

func (m *memory) GetComplaint(ctx context.Context, complaintID string) (*model.ComplaintRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	complaint, exists := m.complaints[complaintID]
	if !exists {
		return nil, ErrNotFound
	}

	out := complaint.Clone()
	return &out, nil
}

func (m *memory) ListComplaints(ctx context.Context) ([]model.ComplaintRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	// Sort ids for deterministic enumeration
	ids := make([]string, 0, len(m.complaints))
	for id := range m.complaints {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]model.ComplaintRecord, 0, len(ids))
	for _, id := range ids {
		out = append(out, m.complaints[id].Clone())
	}
	return out, nil
}

func (m *memory) AppendProof(ctx context.Context, complaintID string, proof model.ProofRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	complaint, exists := m.complaints[complaintID]
	if !exists {
		return ErrNotFound
	}

	complaint.Proofs = append(complaint.Proofs, proof)
	return nil
}

func (m *memory) SetStatus(ctx context.Context, complaintID string, status model.Status, timestamp string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	complaint, exists := m.complaints[complaintID]
	if !exists {
		return ErrNotFound
	}

	complaint.Status = status
	complaint.LastStatusUpdate = timestamp
	return nil
}
