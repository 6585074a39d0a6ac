package transcript

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Entry is one recognized utterance. Entries for a call are stored in the
// order they were spoken; consumers rely on that ordering.
type Entry struct {
	Speaker     string    `json:"speaker"`
	SpeakerName string    `json:"speaker_name"`
	Text        string    `json:"text"`
	Timestamp   time.Time `json:"timestamp"`
	Confidence  float64   `json:"confidence,omitempty"`
}

var ErrNoTranscript = errors.New("transcript: no transcript for call")

// Repository stores per-call transcripts. Implementations must keep append
// order.
type Repository interface {
	Append(ctx context.Context, callID string, e Entry) error
	Get(ctx context.Context, callID string) ([]Entry, error)
	Clear(ctx context.Context, callID string) error
}

// Duration is the span covered by the entries (last minus first timestamp).
func Duration(entries []Entry) time.Duration {
	if len(entries) < 2 {
		return 0
	}
	return entries[len(entries)-1].Timestamp.Sub(entries[0].Timestamp)
}

// SpeakerCount counts distinct speaker identities.
func SpeakerCount(entries []Entry) int {
	seen := make(map[string]struct{}, 2)
	for _, e := range entries {
		seen[e.Speaker] = struct{}{}
	}
	return len(seen)
}

// MemoryRepo is the default in-process store.
type MemoryRepo struct {
	mu      sync.Mutex
	entries map[string][]Entry
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{entries: make(map[string][]Entry)}
}

func (r *MemoryRepo) Append(_ context.Context, callID string, e Entry) error {
	if callID == "" {
		return errors.New("transcript: call id is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[callID] = append(r.entries[callID], e)
	return nil
}

func (r *MemoryRepo) Get(_ context.Context, callID string) ([]Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.entries[callID]
	if !ok || len(stored) == 0 {
		return nil, ErrNoTranscript
	}
	out := make([]Entry, len(stored))
	copy(out, stored)
	return out, nil
}

func (r *MemoryRepo) Clear(_ context.Context, callID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, callID)
	return nil
}
