// internal/storage/memory_test.go
// Package storage provides unit tests for the in-memory store.
package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/CaseTrail/casetrail-audit-go/internal/model"
)

func testComplaint(id string) model.ComplaintRecord {
	return model.ComplaintRecord{
		ComplaintID:      id,
		UserID:           "U1",
		ComplaintHash:    "hash-" + id,
		FiledAt:          "T0",
		Status:           model.StatusFiled,
		LastStatusUpdate: "T0",
		Proofs:           []model.ProofRecord{},
	}
}

// TestCreateComplaintConflict verifies that inserting a duplicate id returns
// ErrConflict and does not overwrite the existing row.
func TestCreateComplaintConflict(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	if err := store.CreateComplaint(ctx, testComplaint("C1")); err != nil {
		t.Fatalf("CreateComplaint() error = %v", err)
	}

	dup := testComplaint("C1")
	dup.UserID = "U2"
	if err := store.CreateComplaint(ctx, dup); !errors.Is(err, ErrConflict) {
		t.Fatalf("duplicate CreateComplaint() error = %v, want ErrConflict", err)
	}

	got, err := store.GetComplaint(ctx, "C1")
	if err != nil {
		t.Fatalf("GetComplaint() error = %v", err)
	}
	if got.UserID != "U1" {
		t.Errorf("UserID = %q, want U1 (original must survive)", got.UserID)
	}
}

// TestGetComplaintNotFound verifies the not-found sentinel.
func TestGetComplaintNotFound(t *testing.T) {
	store := NewMemory()
	if _, err := store.GetComplaint(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetComplaint() error = %v, want ErrNotFound", err)
	}
}

// TestGetComplaintReturnsCopy verifies that mutating a returned record does
// not affect the stored one.
func TestGetComplaintReturnsCopy(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	if err := store.CreateComplaint(ctx, testComplaint("C1")); err != nil {
		t.Fatalf("CreateComplaint() error = %v", err)
	}
	if err := store.AppendProof(ctx, "C1", model.ProofRecord{ID: "01", Hash: "p1", Kind: "document", SubmittedAt: "T1"}); err != nil {
		t.Fatalf("AppendProof() error = %v", err)
	}

	first, _ := store.GetComplaint(ctx, "C1")
	first.Status = model.StatusRejected
	first.Proofs[0].Hash = "mutated"

	second, _ := store.GetComplaint(ctx, "C1")
	if second.Status != model.StatusFiled {
		t.Errorf("Status = %v, want FILED", second.Status)
	}
	if second.Proofs[0].Hash != "p1" {
		t.Errorf("Proofs[0].Hash = %q, want p1", second.Proofs[0].Hash)
	}
}

// TestListComplaintsOrdered verifies deterministic enumeration sorted by
// complaint id regardless of insertion order.
func TestListComplaintsOrdered(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	for _, id := range []string{"C2", "C3", "C1"} {
		if err := store.CreateComplaint(ctx, testComplaint(id)); err != nil {
			t.Fatalf("CreateComplaint(%s) error = %v", id, err)
		}
	}

	got, err := store.ListComplaints(ctx)
	if err != nil {
		t.Fatalf("ListComplaints() error = %v", err)
	}
	want := []string{"C1", "C2", "C3"}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i, id := range want {
		if got[i].ComplaintID != id {
			t.Errorf("got[%d].ComplaintID = %q, want %q", i, got[i].ComplaintID, id)
		}
	}
}

// TestAppendProofPreservesOrder verifies the append-only proof sequence.
func TestAppendProofPreservesOrder(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	if err := store.CreateComplaint(ctx, testComplaint("C1")); err != nil {
		t.Fatalf("CreateComplaint() error = %v", err)
	}
	for i, hash := range []string{"p1", "p2", "p3"} {
		proof := model.ProofRecord{ID: string(rune('a' + i)), Hash: hash, Kind: "document", SubmittedAt: "T1"}
		if err := store.AppendProof(ctx, "C1", proof); err != nil {
			t.Fatalf("AppendProof(%s) error = %v", hash, err)
		}
	}

	got, _ := store.GetComplaint(ctx, "C1")
	for i, want := range []string{"p1", "p2", "p3"} {
		if got.Proofs[i].Hash != want {
			t.Errorf("Proofs[%d].Hash = %q, want %q", i, got.Proofs[i].Hash, want)
		}
	}
}

// TestAppendProofNotFound verifies the not-found path.
func TestAppendProofNotFound(t *testing.T) {
	store := NewMemory()
	err := store.AppendProof(context.Background(), "missing", model.ProofRecord{ID: "01"})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("AppendProof() error = %v, want ErrNotFound", err)
	}
}

// TestSetStatus verifies status overwrite and the not-found path.
func TestSetStatus(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	if err := store.CreateComplaint(ctx, testComplaint("C1")); err != nil {
		t.Fatalf("CreateComplaint() error = %v", err)
	}
	if err := store.SetStatus(ctx, "C1", model.StatusUnderInvestigation, "T5"); err != nil {
		t.Fatalf("SetStatus() error = %v", err)
	}

	got, _ := store.GetComplaint(ctx, "C1")
	if got.Status != model.StatusUnderInvestigation || got.LastStatusUpdate != "T5" {
		t.Errorf("Status/LastStatusUpdate = %v/%q, want UNDER_INVESTIGATION/T5", got.Status, got.LastStatusUpdate)
	}
	if got.FiledAt != "T0" {
		t.Errorf("FiledAt = %q, want T0", got.FiledAt)
	}

	if err := store.SetStatus(ctx, "missing", model.StatusResolved, "T6"); !errors.Is(err, ErrNotFound) {
		t.Errorf("SetStatus(missing) error = %v, want ErrNotFound", err)
	}
}
