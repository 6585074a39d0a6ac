package hold

import (
	"context"
	"log/slog"
	"time"

	"github.com/rahul-singh01/warm-transfer/internal/rooms"
	"github.com/rahul-singh01/warm-transfer/internal/transport"
)

// Controller toggles a caller's hold state: mute at the transport plus hold
// media, tracked as a flag on the participant record. Hold state is
// independent of any transfer.
type Controller struct {
	registry *rooms.Registry
	provider transport.Provider
	retry    transport.RetryPolicy
	timeout  time.Duration
	mediaURL string
	log      *slog.Logger
}

type Config struct {
	Retry    transport.RetryPolicy
	Timeout  time.Duration
	MediaURL string
}

func NewController(registry *rooms.Registry, provider transport.Provider, cfg Config, log *slog.Logger) *Controller {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	return &Controller{
		registry: registry,
		provider: provider,
		retry:    cfg.Retry,
		timeout:  cfg.Timeout,
		mediaURL: cfg.MediaURL,
		log:      log,
	}
}

// Hold mutes the participant and starts hold media. Holding an already-held
// participant is a no-op success. The registry flag is flipped first, under
// the room lock; the transport calls run after the lock is released so slow
// external calls never block other operations on the room.
func (c *Controller) Hold(ctx context.Context, roomID, identity string) error {
	changed, err := c.registry.SetHold(ctx, roomID, identity, true)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}

	if err := c.applyHold(ctx, roomID, identity, true); err != nil {
		// Roll the flag back so registry state matches the transport.
		if _, rbErr := c.registry.SetHold(ctx, roomID, identity, false); rbErr != nil {
			c.log.Error("hold rollback failed", "room_id", roomID, "identity", identity, "err", rbErr)
		}
		return err
	}
	return nil
}

// Resume is the inverse of Hold, with the same idempotence: resuming a
// participant that is not on hold succeeds without touching the transport.
func (c *Controller) Resume(ctx context.Context, roomID, identity string) error {
	changed, err := c.registry.SetHold(ctx, roomID, identity, false)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}

	if err := c.applyHold(ctx, roomID, identity, false); err != nil {
		if _, rbErr := c.registry.SetHold(ctx, roomID, identity, true); rbErr != nil {
			c.log.Error("resume rollback failed", "room_id", roomID, "identity", identity, "err", rbErr)
		}
		return err
	}
	return nil
}

func (c *Controller) applyHold(ctx context.Context, roomID, identity string, hold bool) error {
	opCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	err := c.retry.Do(opCtx, "mute participant", func(ctx context.Context) error {
		_, err := c.provider.MuteParticipant(ctx, transport.MuteParticipantRequest{
			RoomID:   roomID,
			Identity: identity,
			Muted:    hold,
		})
		return err
	})
	if err != nil {
		return err
	}

	mediaReq := transport.HoldMediaRequest{RoomID: roomID, Identity: identity, MediaURL: c.mediaURL}
	if hold {
		return c.retry.Do(opCtx, "play hold media", func(ctx context.Context) error {
			_, err := c.provider.PlayHoldMedia(ctx, mediaReq)
			return err
		})
	}
	return c.retry.Do(opCtx, "stop hold media", func(ctx context.Context) error {
		_, err := c.provider.StopHoldMedia(ctx, mediaReq)
		return err
	})
}
