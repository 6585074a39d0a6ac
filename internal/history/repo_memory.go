package history

import (
	"context"
	"sync"
)

// MemoryRepo is an in-memory append-only repository used in tests and when
// no database is configured.

type MemoryRepo struct {
	mu   sync.Mutex
	recs []Record
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{} }

func (r *MemoryRepo) Append(ctx context.Context, rec Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recs = append(r.recs, rec)
	return nil
}

func (r *MemoryRepo) List(ctx context.Context, roomID string, limit int) ([]Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Record, 0, len(r.recs))
	for i := len(r.recs) - 1; i >= 0; i-- {
		if roomID != "" && r.recs[i].SourceRoomID != roomID {
			continue
		}
		out = append(out, r.recs[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}
