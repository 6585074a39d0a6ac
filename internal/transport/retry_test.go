package transport

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"
)

func TestRetryPolicy_StopsOnNonTransient(t *testing.T) {
	calls := 0
	err := RetryPolicy{Attempts: 3, Backoff: time.Millisecond}.Do(context.Background(), "create room", func(context.Context) error {
		calls++
		return &StatusError{Code: http.StatusBadRequest, Message: "bad request"}
	})
	if calls != 1 {
		t.Fatalf("expected 1 call for non-transient error, got %d", calls)
	}
	if !errors.Is(err, ErrExternalServiceError) {
		t.Fatalf("expected ErrExternalServiceError, got %v", err)
	}
}

func TestRetryPolicy_RetriesTransientThenSucceeds(t *testing.T) {
	calls := 0
	err := RetryPolicy{Attempts: 3, Backoff: time.Millisecond}.Do(context.Background(), "mute", func(context.Context) error {
		calls++
		if calls < 3 {
			return &StatusError{Code: http.StatusServiceUnavailable, Message: "try later"}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestRetryPolicy_ExhaustionIsTimeout(t *testing.T) {
	err := RetryPolicy{Attempts: 2, Backoff: time.Millisecond}.Do(context.Background(), "delete room", func(context.Context) error {
		return context.DeadlineExceeded
	})
	if !errors.Is(err, ErrExternalServiceTimeout) {
		t.Fatalf("expected ErrExternalServiceTimeout, got %v", err)
	}
}

func TestRetryPolicy_HonorsContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	go func() {
		time.Sleep(5 * time.Millisecond)
		cancel()
	}()
	err := RetryPolicy{Attempts: 10, Backoff: 50 * time.Millisecond}.Do(ctx, "retry", func(context.Context) error {
		calls++
		return &StatusError{Code: 500, Message: "boom"}
	})
	if !errors.Is(err, ErrExternalServiceTimeout) {
		t.Fatalf("expected timeout wrap on cancel, got %v", err)
	}
	if calls >= 10 {
		t.Fatalf("cancel should have cut retries short, got %d calls", calls)
	}
}

func TestIsTransient(t *testing.T) {
	if IsTransient(nil) {
		t.Fatalf("nil is not transient")
	}
	if !IsTransient(context.DeadlineExceeded) {
		t.Fatalf("deadline exceeded should be transient")
	}
	if !IsTransient(&StatusError{Code: http.StatusTooManyRequests}) {
		t.Fatalf("429 should be transient")
	}
	if !IsTransient(&StatusError{Code: 502}) {
		t.Fatalf("5xx should be transient")
	}
	if IsTransient(&StatusError{Code: http.StatusNotFound}) {
		t.Fatalf("404 should not be transient")
	}
	if IsTransient(errors.New("malformed input")) {
		t.Fatalf("arbitrary errors should not be transient")
	}
}

func TestIngestor_DropsOldestWhenFull(t *testing.T) {
	in := NewIngestor(2)

	if ok := in.Offer(Event{Kind: EventParticipantJoined, RoomID: "r", Identity: "a"}); !ok {
		t.Fatalf("first offer should not drop")
	}
	if ok := in.Offer(Event{Kind: EventParticipantJoined, RoomID: "r", Identity: "b"}); !ok {
		t.Fatalf("second offer should not drop")
	}
	if ok := in.Offer(Event{Kind: EventParticipantJoined, RoomID: "r", Identity: "c"}); ok {
		t.Fatalf("third offer into a full buffer should report a drop")
	}

	got := []string{(<-in.Events()).Identity, (<-in.Events()).Identity}
	if got[0] != "b" || got[1] != "c" {
		t.Fatalf("expected oldest dropped, remaining [b c], got %v", got)
	}
}
