package history

import (
	"context"
	"log/slog"

	"github.com/samber/lo"

	"github.com/rahul-singh01/warm-transfer/internal/transfer"
)

// Repository is the persistence contract for terminal transfer records.
//
// It MUST be append-only. No Update/Delete methods are provided.

type Repository interface {
	Append(ctx context.Context, rec Record) error
	List(ctx context.Context, roomID string, limit int) ([]Record, error)
}

// Service archives terminal transfers. It satisfies transfer.Archiver.
// Archival is best-effort: repository failures are logged and swallowed so
// a database outage never changes a transfer outcome.
type Service struct {
	repo Repository
	log  *slog.Logger
}

func NewService(repo Repository, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{repo: repo, log: log}
}

func (s *Service) Archive(ctx context.Context, t transfer.Transfer) {
	if s.repo == nil {
		return
	}
	rec := Record{
		TransferID:        t.ID,
		SourceRoomID:      t.SourceRoomID,
		ConsultRoomID:     t.ConsultRoomID,
		CallerIdentity:    t.CallerIdentity,
		InitiatorIdentity: t.InitiatorIdentity,
		TargetIdentity:    t.TargetIdentity,
		Outcome:           string(t.State),
		FailureReason:     t.FailureReason,
		Steps:             lo.Map(t.Steps, func(s transfer.Step, _ int) string { return string(s) }),
		StartedAt:         t.CreatedAt,
		EndedAt:           t.UpdatedAt,
	}
	if t.Summary != nil {
		rec.Summary = t.Summary.Content
		rec.KeyPoints = t.Summary.KeyPoints
	}
	if err := s.repo.Append(ctx, rec); err != nil {
		s.log.Warn("transfer archive failed", "transfer_id", t.ID, "error", err)
	}
}

// List returns archived transfers, newest first, optionally filtered by
// source room.
func (s *Service) List(ctx context.Context, roomID string, limit int) ([]Record, error) {
	if s.repo == nil {
		return nil, nil
	}
	return s.repo.List(ctx, roomID, limit)
}
