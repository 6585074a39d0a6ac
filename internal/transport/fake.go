package transport

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// FakeProvider is an in-memory Provider used in tests and in local dev when
// no room service is configured. It records every call in order and lets
// callers script failures and latency per operation.
type FakeProvider struct {
	mu    sync.Mutex
	calls []string

	// Fail maps an operation name ("CreateRoom", "RemoveParticipant", ...)
	// to the error each call should return. Errors are consumed FIFO; a nil
	// entry means that call succeeds.
	Fail map[string][]error

	// Latency is applied before each operation completes, honoring ctx.
	Latency map[string]time.Duration
}

func NewFakeProvider() *FakeProvider {
	return &FakeProvider{
		Fail:    make(map[string][]error),
		Latency: make(map[string]time.Duration),
	}
}

func (f *FakeProvider) Name() string { return "fake" }

func (f *FakeProvider) HealthCheck(ctx context.Context) error {
	return f.step(ctx, "HealthCheck", "")
}

// Calls returns the recorded operations as "Op room/identity" strings.
func (f *FakeProvider) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	copy(out, f.calls)
	return out
}

// FailNext schedules errs for the next calls of op.
func (f *FakeProvider) FailNext(op string, errs ...error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Fail[op] = append(f.Fail[op], errs...)
}

func (f *FakeProvider) step(ctx context.Context, op, detail string) error {
	f.mu.Lock()
	rec := op
	if detail != "" {
		rec = fmt.Sprintf("%s %s", op, detail)
	}
	f.calls = append(f.calls, rec)
	var err error
	if queue := f.Fail[op]; len(queue) > 0 {
		err = queue[0]
		f.Fail[op] = queue[1:]
	}
	delay := f.Latency[op]
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return err
}

func (f *FakeProvider) CreateRoom(ctx context.Context, req CreateRoomRequest) (CreateRoomResult, error) {
	if err := f.step(ctx, "CreateRoom", req.RoomID); err != nil {
		return CreateRoomResult{}, err
	}
	return CreateRoomResult{RoomID: req.RoomID, Created: true}, nil
}

func (f *FakeProvider) DeleteRoom(ctx context.Context, req DeleteRoomRequest) (DeleteRoomResult, error) {
	if err := f.step(ctx, "DeleteRoom", req.RoomID); err != nil {
		return DeleteRoomResult{}, err
	}
	return DeleteRoomResult{RoomID: req.RoomID, Deleted: true}, nil
}

func (f *FakeProvider) RemoveParticipant(ctx context.Context, req RemoveParticipantRequest) (RemoveParticipantResult, error) {
	if err := f.step(ctx, "RemoveParticipant", req.RoomID+"/"+req.Identity); err != nil {
		return RemoveParticipantResult{}, err
	}
	return RemoveParticipantResult{Removed: true}, nil
}

func (f *FakeProvider) MuteParticipant(ctx context.Context, req MuteParticipantRequest) (MuteParticipantResult, error) {
	if err := f.step(ctx, "MuteParticipant", fmt.Sprintf("%s/%s muted=%v", req.RoomID, req.Identity, req.Muted)); err != nil {
		return MuteParticipantResult{}, err
	}
	return MuteParticipantResult{Muted: req.Muted}, nil
}

func (f *FakeProvider) PlayHoldMedia(ctx context.Context, req HoldMediaRequest) (HoldMediaResult, error) {
	if err := f.step(ctx, "PlayHoldMedia", req.RoomID+"/"+req.Identity); err != nil {
		return HoldMediaResult{}, err
	}
	return HoldMediaResult{Playing: true}, nil
}

func (f *FakeProvider) StopHoldMedia(ctx context.Context, req HoldMediaRequest) (HoldMediaResult, error) {
	if err := f.step(ctx, "StopHoldMedia", req.RoomID+"/"+req.Identity); err != nil {
		return HoldMediaResult{}, err
	}
	return HoldMediaResult{Playing: false}, nil
}

func (f *FakeProvider) SendData(ctx context.Context, req SendDataRequest) (SendDataResult, error) {
	if err := f.step(ctx, "SendData", req.RoomID+"/"+req.Topic); err != nil {
		return SendDataResult{}, err
	}
	return SendDataResult{Delivered: true}, nil
}
