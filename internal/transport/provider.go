package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"
)

// Provider is the provider-agnostic boundary to the real-time media platform.
//
// Rules:
// - No transport SDK or HTTP calls outside this package.
// - Request/response types stay provider-agnostic; raw provider payloads go
//   into Raw fields when needed.
// - Every method honors ctx cancellation and the configured timeout.
type Provider interface {
	Name() string
	HealthCheck(ctx context.Context) error

	CreateRoom(ctx context.Context, req CreateRoomRequest) (CreateRoomResult, error)
	DeleteRoom(ctx context.Context, req DeleteRoomRequest) (DeleteRoomResult, error)
	RemoveParticipant(ctx context.Context, req RemoveParticipantRequest) (RemoveParticipantResult, error)

	MuteParticipant(ctx context.Context, req MuteParticipantRequest) (MuteParticipantResult, error)
	PlayHoldMedia(ctx context.Context, req HoldMediaRequest) (HoldMediaResult, error)
	StopHoldMedia(ctx context.Context, req HoldMediaRequest) (HoldMediaResult, error)

	// SendData publishes a payload on the room's data channel (used to
	// deliver summaries and briefings to consult-room participants).
	SendData(ctx context.Context, req SendDataRequest) (SendDataResult, error)
}

type CreateRoomRequest struct {
	RoomID          string `json:"room_id"`
	Name            string `json:"name"`
	MaxParticipants int    `json:"max_participants"`

	// EmptyTimeoutSeconds lets the platform reap rooms nobody ever joined.
	EmptyTimeoutSeconds int `json:"empty_timeout_seconds,omitempty"`
}

type CreateRoomResult struct {
	RoomID  string `json:"room_id"`
	Created bool   `json:"created"`
}

type DeleteRoomRequest struct {
	RoomID string `json:"room_id"`
}

type DeleteRoomResult struct {
	RoomID  string `json:"room_id"`
	Deleted bool   `json:"deleted"`
}

type RemoveParticipantRequest struct {
	RoomID   string `json:"room_id"`
	Identity string `json:"identity"`
}

type RemoveParticipantResult struct {
	Removed bool `json:"removed"`
}

type MuteParticipantRequest struct {
	RoomID   string `json:"room_id"`
	Identity string `json:"identity"`
	Muted    bool   `json:"muted"`
}

type MuteParticipantResult struct {
	Muted bool `json:"muted"`
}

type HoldMediaRequest struct {
	RoomID   string `json:"room_id"`
	Identity string `json:"identity"`

	// MediaURL is optional; empty means the platform default hold media.
	MediaURL string `json:"media_url,omitempty"`
}

type HoldMediaResult struct {
	Playing bool `json:"playing"`
}

type SendDataRequest struct {
	RoomID  string `json:"room_id"`
	Topic   string `json:"topic"`
	Payload []byte `json:"payload"`
}

type SendDataResult struct {
	Delivered bool `json:"delivered"`
}

var (
	// ErrExternalServiceTimeout marks an operation that exhausted its time
	// budget against the transport.
	ErrExternalServiceTimeout = errors.New("transport: external service timeout")

	// ErrExternalServiceError marks a non-transient failure reported by the
	// transport; retrying will not help.
	ErrExternalServiceError = errors.New("transport: external service error")
)

// StatusError carries the transport's HTTP status so the retry policy can
// distinguish transient (429/5xx) from permanent (other 4xx) failures.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("transport: status %d: %s", e.Code, e.Message)
}

// IsTransient reports whether err is worth retrying. The transport is assumed
// to fail transiently far more often than permanently, so timeouts, network
// errors, rate limits, and 5xx all qualify.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code == http.StatusTooManyRequests || se.Code >= 500
	}
	return false
}

// RetryPolicy retries transient failures a small fixed number of times with
// doubling backoff. Non-transient errors and ctx cancellation abort
// immediately.
type RetryPolicy struct {
	Attempts int
	Backoff  time.Duration
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	out := p
	if out.Attempts <= 0 {
		out.Attempts = 3
	}
	if out.Backoff <= 0 {
		out.Backoff = 200 * time.Millisecond
	}
	return out
}

// Do runs fn up to Attempts times. After exhaustion it wraps the last error
// as ErrExternalServiceTimeout (when the budget ran out) or
// ErrExternalServiceError.
func (p RetryPolicy) Do(ctx context.Context, op string, fn func(context.Context) error) error {
	p = p.withDefaults()

	var lastErr error
	backoff := p.Backoff
	for attempt := 1; attempt <= p.Attempts; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if !IsTransient(lastErr) {
			return fmt.Errorf("%w: %s: %v", ErrExternalServiceError, op, lastErr)
		}
		if attempt == p.Attempts {
			break
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %s: %v", ErrExternalServiceTimeout, op, ctx.Err())
		case <-time.After(backoff):
		}
		backoff *= 2
	}

	if errors.Is(lastErr, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s: %v", ErrExternalServiceTimeout, op, lastErr)
	}
	return fmt.Errorf("%w: %s after %d attempts: %v", ErrExternalServiceTimeout, op, p.Attempts, lastErr)
}
