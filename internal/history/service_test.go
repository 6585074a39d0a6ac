package history

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rahul-singh01/warm-transfer/internal/summary"
	"github.com/rahul-singh01/warm-transfer/internal/transfer"
)

func sampleTransfer() transfer.Transfer {
	started := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	return transfer.Transfer{
		ID:                "transfer_deadbeef",
		SourceRoomID:      "call_11111111",
		ConsultRoomID:     "consult_22222222",
		CallerIdentity:    "caller-1",
		InitiatorIdentity: "agent-a",
		TargetIdentity:    "agent-b",
		State:             transfer.StateCompleted,
		Summary: &summary.CallSummary{
			Content:   "Refund request for order 1234.",
			KeyPoints: []string{"refund"},
		},
		Steps:     []transfer.Step{transfer.StepInitiated, transfer.StepTransferComplete},
		CreatedAt: started,
		UpdatedAt: started.Add(2 * time.Minute),
	}
}

func TestArchive_MapsTransferToRecord(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo, nil)

	svc.Archive(context.Background(), sampleTransfer())

	recs, err := svc.List(context.Background(), "call_11111111", 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("got %d records, want 1", len(recs))
	}
	rec := recs[0]
	if rec.Outcome != "completed" {
		t.Fatalf("outcome = %q, want completed", rec.Outcome)
	}
	if rec.Summary != "Refund request for order 1234." {
		t.Fatalf("summary = %q", rec.Summary)
	}
	if len(rec.Steps) != 2 || rec.Steps[0] != "initiated" {
		t.Fatalf("steps = %v", rec.Steps)
	}
}

func TestArchive_RoomFilterAndLimit(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo, nil)

	a := sampleTransfer()
	b := sampleTransfer()
	b.ID = "transfer_feedface"
	b.SourceRoomID = "call_33333333"
	svc.Archive(context.Background(), a)
	svc.Archive(context.Background(), b)

	recs, err := svc.List(context.Background(), "call_33333333", 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(recs) != 1 || recs[0].TransferID != "transfer_feedface" {
		t.Fatalf("recs = %+v", recs)
	}

	all, err := svc.List(context.Background(), "", 1)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("limit ignored, got %d records", len(all))
	}
}

type failingRepo struct{}

func (failingRepo) Append(ctx context.Context, rec Record) error {
	return errors.New("db down")
}

func (failingRepo) List(ctx context.Context, roomID string, limit int) ([]Record, error) {
	return nil, errors.New("db down")
}

func TestArchive_SwallowsRepositoryErrors(t *testing.T) {
	svc := NewService(failingRepo{}, nil)
	// Must not panic or propagate.
	svc.Archive(context.Background(), sampleTransfer())
}
