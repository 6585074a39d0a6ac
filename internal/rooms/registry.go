package rooms

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Registry is the authoritative owner of Room and Participant records.
// Nothing else in the process mutates room state except through it.
type Registry struct {
	store Store
	clock func() time.Time
}

func NewRegistry(store Store) *Registry {
	return &Registry{store: store, clock: time.Now}
}

// NewID builds a room id of the form "<kind>_<8 hex chars>". Ids are opaque
// to callers; the kind prefix exists purely for log readability.
func NewID(kind Kind) string {
	return string(kind) + "_" + ShortID()
}

// ShortID returns 8 hex chars of a fresh UUID, the suffix format shared by
// every id this service mints.
func ShortID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

func (r *Registry) CreateRoom(ctx context.Context, name string, kind Kind, maxParticipants int) (Room, error) {
	if name == "" {
		return Room{}, ErrInvalidArgument
	}
	if !kind.Valid() {
		return Room{}, ErrInvalidArgument
	}
	if maxParticipants <= 0 {
		maxParticipants = 10
	}

	now := r.clock().UTC()
	room := Room{
		ID:              NewID(kind),
		Name:            name,
		Kind:            kind,
		MaxParticipants: maxParticipants,
		CreatedAt:       now,
		LastActivity:    now,
		Active:          true,
		Participants:    make(map[string]Participant),
	}
	if err := r.store.Create(ctx, room); err != nil {
		return Room{}, err
	}
	return room, nil
}

func (r *Registry) Get(ctx context.Context, id string) (Room, bool, error) {
	return r.store.Get(ctx, id)
}

func (r *Registry) FindByName(ctx context.Context, name string) (Room, bool, error) {
	return r.store.FindByName(ctx, name)
}

func (r *Registry) List(ctx context.Context) ([]Room, error) {
	return r.store.List(ctx)
}

func (r *Registry) AddParticipant(ctx context.Context, roomID string, p Participant) error {
	if p.Identity == "" || !p.Role.Valid() {
		return ErrInvalidArgument
	}
	now := r.clock().UTC()
	return r.store.Mutate(ctx, roomID, func(room *Room) error {
		if !room.Active {
			return ErrRoomInactive
		}
		if _, exists := room.Participants[p.Identity]; exists {
			return ErrDuplicateIdentity
		}
		if room.participantCount() >= room.MaxParticipants {
			return ErrRoomFull
		}
		p.RoomID = room.ID
		if p.JoinedAt.IsZero() {
			p.JoinedAt = now
		}
		room.Participants[p.Identity] = p
		room.LastActivity = now
		return nil
	})
}

// RemoveParticipant is deliberately not idempotent: removing an identity that
// is not in the room returns ErrParticipantNotFound so callers notice
// double-removal bugs.
func (r *Registry) RemoveParticipant(ctx context.Context, roomID, identity string) error {
	now := r.clock().UTC()
	return r.store.Mutate(ctx, roomID, func(room *Room) error {
		if _, exists := room.Participants[identity]; !exists {
			return ErrParticipantNotFound
		}
		delete(room.Participants, identity)
		room.LastActivity = now
		return nil
	})
}

// SetHold flips the caller's hold flag and reports whether the flag actually
// changed, so the hold controller can skip transport calls on no-ops.
func (r *Registry) SetHold(ctx context.Context, roomID, identity string, onHold bool) (changed bool, err error) {
	now := r.clock().UTC()
	err = r.store.Mutate(ctx, roomID, func(room *Room) error {
		p, exists := room.Participants[identity]
		if !exists {
			return ErrParticipantNotFound
		}
		if p.OnHold == onHold {
			return nil
		}
		p.OnHold = onHold
		room.Participants[identity] = p
		room.LastActivity = now
		changed = true
		return nil
	})
	return changed, err
}

// Deactivate marks the room inactive. Permanent: there is no reactivation and
// the id is never reused. Deactivating an already-inactive room is a no-op.
func (r *Registry) Deactivate(ctx context.Context, roomID string) error {
	now := r.clock().UTC()
	return r.store.Mutate(ctx, roomID, func(room *Room) error {
		room.Active = false
		room.LastActivity = now
		return nil
	})
}

// CleanupInactive deactivates empty rooms whose last activity is older than
// maxAge. Returns the number of rooms deactivated.
func (r *Registry) CleanupInactive(ctx context.Context, maxAge time.Duration) (int, error) {
	cutoff := r.clock().UTC().Add(-maxAge)
	active, err := r.store.List(ctx)
	if err != nil {
		return 0, err
	}

	cleaned := 0
	for _, room := range active {
		if len(room.Participants) > 0 || room.LastActivity.After(cutoff) {
			continue
		}
		err := r.store.Mutate(ctx, room.ID, func(rm *Room) error {
			// Re-check under the lock; someone may have joined meanwhile.
			if !rm.Active || len(rm.Participants) > 0 || rm.LastActivity.After(cutoff) {
				return nil
			}
			rm.Active = false
			cleaned++
			return nil
		})
		if err != nil {
			return cleaned, err
		}
	}
	return cleaned, nil
}
