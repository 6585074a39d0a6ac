package transcript

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryRepo_AppendPreservesOrder(t *testing.T) {
	repo := NewMemoryRepo()
	ctx := context.Background()
	base := time.Unix(1700000000, 0).UTC()

	lines := []string{"hello", "hi there", "my order is missing"}
	for i, text := range lines {
		err := repo.Append(ctx, "call_1", Entry{
			Speaker:   "caller-1",
			Text:      text,
			Timestamp: base.Add(time.Duration(i) * 10 * time.Second),
		})
		if err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	got, err := repo.Get(ctx, "call_1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got) != len(lines) {
		t.Fatalf("expected %d entries, got %d", len(lines), len(got))
	}
	for i, e := range got {
		if e.Text != lines[i] {
			t.Fatalf("order broken at %d: %q", i, e.Text)
		}
	}
}

func TestMemoryRepo_GetUnknownCall(t *testing.T) {
	repo := NewMemoryRepo()
	if _, err := repo.Get(context.Background(), "nope"); !errors.Is(err, ErrNoTranscript) {
		t.Fatalf("expected ErrNoTranscript, got %v", err)
	}
}

func TestMemoryRepo_Clear(t *testing.T) {
	repo := NewMemoryRepo()
	ctx := context.Background()
	_ = repo.Append(ctx, "call_1", Entry{Speaker: "caller-1", Text: "hi", Timestamp: time.Now()})
	if err := repo.Clear(ctx, "call_1"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if _, err := repo.Get(ctx, "call_1"); !errors.Is(err, ErrNoTranscript) {
		t.Fatalf("expected ErrNoTranscript after clear, got %v", err)
	}
}

func TestDurationAndSpeakerCount(t *testing.T) {
	base := time.Unix(1700000000, 0).UTC()
	entries := []Entry{
		{Speaker: "caller-1", Timestamp: base},
		{Speaker: "agent-a", Timestamp: base.Add(45 * time.Second)},
		{Speaker: "caller-1", Timestamp: base.Add(90 * time.Second)},
	}
	if d := Duration(entries); d != 90*time.Second {
		t.Fatalf("expected 90s duration, got %v", d)
	}
	if n := SpeakerCount(entries); n != 2 {
		t.Fatalf("expected 2 speakers, got %d", n)
	}
	if d := Duration(entries[:1]); d != 0 {
		t.Fatalf("single entry duration should be 0, got %v", d)
	}
}
