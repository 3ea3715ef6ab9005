// internal/registry/service_test.go
// Package registry provides unit tests for the registry service and its
// lifecycle guard.
package registry

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/CaseTrail/casetrail-audit-go/internal/model"
	"github.com/CaseTrail/casetrail-audit-go/internal/storage"
)

func newTestService() *Service {
	return New(storage.NewMemory())
}

// TestRegisterReadAfterWrite verifies that a fresh registration is readable
// with status FILED, filedAt == lastStatusUpdate, and an empty proof sequence.
func TestRegisterReadAfterWrite(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	if _, err := svc.Register(ctx, "C1", "hashA", "U1", "T0"); err != nil {
		t.Fatalf("Register() error = %v, want nil", err)
	}

	got, err := svc.GetOne(ctx, "C1")
	if err != nil {
		t.Fatalf("GetOne() error = %v, want nil", err)
	}
	if got.Status != model.StatusFiled {
		t.Errorf("Status = %v, want %v", got.Status, model.StatusFiled)
	}
	if got.FiledAt != "T0" || got.LastStatusUpdate != "T0" {
		t.Errorf("FiledAt/LastStatusUpdate = %q/%q, want T0/T0", got.FiledAt, got.LastStatusUpdate)
	}
	if len(got.Proofs) != 0 {
		t.Errorf("Proofs = %v, want empty", got.Proofs)
	}
	if got.UserID != "U1" || got.ComplaintHash != "hashA" {
		t.Errorf("UserID/ComplaintHash = %q/%q, want U1/hashA", got.UserID, got.ComplaintHash)
	}
}

// TestRegisterUniqueness verifies that re-registering an existing id returns
// a conflict and leaves the original record, including filedAt, unchanged.
func TestRegisterUniqueness(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	if _, err := svc.Register(ctx, "C1", "hashA", "U1", "T0"); err != nil {
		t.Fatalf("first Register() error = %v", err)
	}
	if _, err := svc.Register(ctx, "C1", "hashB", "U2", "T1"); !errors.Is(err, ErrConflict) {
		t.Fatalf("second Register() error = %v, want ErrConflict", err)
	}

	got, err := svc.GetOne(ctx, "C1")
	if err != nil {
		t.Fatalf("GetOne() error = %v", err)
	}
	if got.UserID != "U1" || got.ComplaintHash != "hashA" || got.FiledAt != "T0" {
		t.Errorf("record mutated by rejected registration: %+v", got)
	}
}

// TestRegisterValidation verifies that empty arguments are rejected rather
// than silently accepted as opaque strings.
func TestRegisterValidation(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	cases := [][4]string{
		{"", "h", "u", "t"},
		{"id", "", "u", "t"},
		{"id", "h", "", "t"},
		{"id", "h", "u", ""},
	}
	for _, c := range cases {
		if _, err := svc.Register(ctx, c[0], c[1], c[2], c[3]); !errors.Is(err, ErrValidation) {
			t.Errorf("Register(%q,%q,%q,%q) error = %v, want ErrValidation", c[0], c[1], c[2], c[3], err)
		}
	}
}

// TestAttachProofOrdering verifies that proofs come back in exact submission
// order, never reordered or deduplicated.
func TestAttachProofOrdering(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	if _, err := svc.Register(ctx, "C1", "hashA", "U1", "T0"); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if _, err := svc.AttachProof(ctx, "C1", "p1", "document", "T1"); err != nil {
		t.Fatalf("AttachProof(p1) error = %v", err)
	}
	if _, err := svc.AttachProof(ctx, "C1", "p2", "photo", "T2"); err != nil {
		t.Fatalf("AttachProof(p2) error = %v", err)
	}
	// Same hash again: appended, not deduplicated
	if _, err := svc.AttachProof(ctx, "C1", "p1", "document", "T3"); err != nil {
		t.Fatalf("AttachProof(p1 again) error = %v", err)
	}

	got, err := svc.GetOne(ctx, "C1")
	if err != nil {
		t.Fatalf("GetOne() error = %v", err)
	}
	if len(got.Proofs) != 3 {
		t.Fatalf("len(Proofs) = %d, want 3", len(got.Proofs))
	}
	wantHashes := []string{"p1", "p2", "p1"}
	for i, want := range wantHashes {
		if got.Proofs[i].Hash != want {
			t.Errorf("Proofs[%d].Hash = %q, want %q", i, got.Proofs[i].Hash, want)
		}
	}
	// ULID ordering keys must be strictly increasing
	if !(got.Proofs[0].ID < got.Proofs[1].ID && got.Proofs[1].ID < got.Proofs[2].ID) {
		t.Errorf("proof ids not monotonic: %q %q %q", got.Proofs[0].ID, got.Proofs[1].ID, got.Proofs[2].ID)
	}
}

// TestAttachProofNotFound verifies the not-found path for proof attachment.
func TestAttachProofNotFound(t *testing.T) {
	svc := newTestService()
	if _, err := svc.AttachProof(context.Background(), "missing", "p1", "document", "T1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("AttachProof() error = %v, want ErrNotFound", err)
	}
}

// TestFreeze verifies that terminal complaints reject both proof attachment
// and status changes without mutating any field.
func TestFreeze(t *testing.T) {
	for _, terminal := range []string{"RESOLVED", "REJECTED"} {
		t.Run(terminal, func(t *testing.T) {
			svc := newTestService()
			ctx := context.Background()

			if _, err := svc.Register(ctx, "C1", "hashA", "U1", "T0"); err != nil {
				t.Fatalf("Register() error = %v", err)
			}
			if _, err := svc.AttachProof(ctx, "C1", "p1", "document", "T1"); err != nil {
				t.Fatalf("AttachProof() error = %v", err)
			}
			if err := svc.UpdateStatus(ctx, "C1", terminal, "T2"); err != nil {
				t.Fatalf("UpdateStatus(%s) error = %v", terminal, err)
			}

			before, _ := svc.GetOne(ctx, "C1")

			if _, err := svc.AttachProof(ctx, "C1", "p2", "photo", "T3"); !errors.Is(err, ErrFrozen) {
				t.Errorf("AttachProof() after %s error = %v, want ErrFrozen", terminal, err)
			}
			if err := svc.UpdateStatus(ctx, "C1", "FILED", "T4"); !errors.Is(err, ErrFrozen) {
				t.Errorf("UpdateStatus() after %s error = %v, want ErrFrozen", terminal, err)
			}

			after, _ := svc.GetOne(ctx, "C1")
			if !reflect.DeepEqual(before, after) {
				t.Errorf("frozen record mutated:\nbefore %+v\nafter  %+v", before, after)
			}
		})
	}
}

// TestUpdateStatusSelfTransition verifies that re-applying the current
// non-terminal status is accepted and refreshes lastStatusUpdate.
func TestUpdateStatusSelfTransition(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	if _, err := svc.Register(ctx, "C1", "hashA", "U1", "T0"); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := svc.UpdateStatus(ctx, "C1", "FILED", "T1"); err != nil {
		t.Fatalf("self-transition error = %v, want nil", err)
	}

	got, _ := svc.GetOne(ctx, "C1")
	if got.Status != model.StatusFiled || got.LastStatusUpdate != "T1" {
		t.Errorf("Status/LastStatusUpdate = %v/%q, want FILED/T1", got.Status, got.LastStatusUpdate)
	}
	if got.FiledAt != "T0" {
		t.Errorf("FiledAt = %q, want T0 (must never change)", got.FiledAt)
	}
}

// TestUpdateStatusRejectsUnknownValues verifies the closed enumeration: an
// out-of-enum status is rejected, not stored.
func TestUpdateStatusRejectsUnknownValues(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	if _, err := svc.Register(ctx, "C1", "hashA", "U1", "T0"); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := svc.UpdateStatus(ctx, "C1", "ESCALATED", "T1"); !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("UpdateStatus(ESCALATED) error = %v, want ErrInvalidStatus", err)
	}

	got, _ := svc.GetOne(ctx, "C1")
	if got.Status != model.StatusFiled || got.LastStatusUpdate != "T0" {
		t.Errorf("rejected status leaked into record: %+v", got)
	}
}

// TestGetOneNotFound verifies that absence is an explicit signal, not a
// populated-but-empty record.
func TestGetOneNotFound(t *testing.T) {
	svc := newTestService()
	if _, err := svc.GetOne(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetOne() error = %v, want ErrNotFound", err)
	}
}

// TestGetAllDeterministicSnapshot verifies ordered enumeration and that two
// consecutive reads with no intervening writes are identical value copies.
func TestGetAllDeterministicSnapshot(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	for _, id := range []string{"C3", "C1", "C2"} {
		if _, err := svc.Register(ctx, id, "h-"+id, "U1", "T0"); err != nil {
			t.Fatalf("Register(%s) error = %v", id, err)
		}
	}

	first, err := svc.GetAll(ctx)
	if err != nil {
		t.Fatalf("GetAll() error = %v", err)
	}
	second, err := svc.GetAll(ctx)
	if err != nil {
		t.Fatalf("GetAll() error = %v", err)
	}

	wantOrder := []string{"C1", "C2", "C3"}
	for i, want := range wantOrder {
		if first[i].ComplaintID != want {
			t.Errorf("first[%d].ComplaintID = %q, want %q", i, first[i].ComplaintID, want)
		}
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("consecutive snapshots differ:\n%+v\n%+v", first, second)
	}

	// Snapshot must be a value copy, not a live view
	first[0].Status = model.StatusRejected
	first[0].Proofs = append(first[0].Proofs, model.ProofRecord{ID: "x"})
	got, _ := svc.GetOne(ctx, "C1")
	if got.Status != model.StatusFiled || len(got.Proofs) != 0 {
		t.Errorf("snapshot mutation leaked into registry: %+v", got)
	}
}

// TestEndToEndScenario walks the full audit scenario: registration, conflict,
// evidence, investigation, resolution, and the frozen tail.
func TestEndToEndScenario(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	// 1. register C1
	if _, err := svc.Register(ctx, "C1", "hashA", "U1", "T0"); err != nil {
		t.Fatalf("step 1: Register() error = %v", err)
	}

	// 2. duplicate registration is a conflict; U1's record survives
	if _, err := svc.Register(ctx, "C1", "hashB", "U2", "T1"); !errors.Is(err, ErrConflict) {
		t.Fatalf("step 2: Register() error = %v, want ErrConflict", err)
	}
	got, _ := svc.GetOne(ctx, "C1")
	if got.UserID != "U1" {
		t.Fatalf("step 2: UserID = %q, want U1", got.UserID)
	}

	// 3. attach first proof
	if _, err := svc.AttachProof(ctx, "C1", "pHash1", "document", "T2"); err != nil {
		t.Fatalf("step 3: AttachProof() error = %v", err)
	}
	got, _ = svc.GetOne(ctx, "C1")
	if len(got.Proofs) != 1 || got.Proofs[0].Hash != "pHash1" || got.Proofs[0].Kind != "document" || got.Proofs[0].SubmittedAt != "T2" {
		t.Fatalf("step 3: Proofs = %+v, want [{pHash1 document T2}]", got.Proofs)
	}

	// 4. move to investigation
	if err := svc.UpdateStatus(ctx, "C1", "UNDER_INVESTIGATION", "T3"); err != nil {
		t.Fatalf("step 4: UpdateStatus() error = %v", err)
	}
	got, _ = svc.GetOne(ctx, "C1")
	if got.LastStatusUpdate != "T3" {
		t.Fatalf("step 4: LastStatusUpdate = %q, want T3", got.LastStatusUpdate)
	}

	// 5. resolve
	if err := svc.UpdateStatus(ctx, "C1", "RESOLVED", "T4"); err != nil {
		t.Fatalf("step 5: UpdateStatus() error = %v", err)
	}

	// 6. frozen: no more proofs
	if _, err := svc.AttachProof(ctx, "C1", "pHash2", "photo", "T5"); !errors.Is(err, ErrFrozen) {
		t.Fatalf("step 6: AttachProof() error = %v, want ErrFrozen", err)
	}
	got, _ = svc.GetOne(ctx, "C1")
	if len(got.Proofs) != 1 {
		t.Fatalf("step 6: len(Proofs) = %d, want 1", len(got.Proofs))
	}

	// 7. frozen: terminal states cannot be re-labeled
	if err := svc.UpdateStatus(ctx, "C1", "REJECTED", "T6"); !errors.Is(err, ErrFrozen) {
		t.Fatalf("step 7: UpdateStatus() error = %v, want ErrFrozen", err)
	}
	got, _ = svc.GetOne(ctx, "C1")
	if got.Status != model.StatusResolved {
		t.Fatalf("step 7: Status = %v, want RESOLVED", got.Status)
	}
}
