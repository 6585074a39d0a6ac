package rooms

import (
	"errors"
	"time"
)

// Kind discriminates the two room flavors the orchestrator manages.
// Consult rooms are transient: they exist only to let two agents talk
// privately before a handoff completes.
type Kind string

const (
	KindCall    Kind = "call"
	KindConsult Kind = "consult"
)

func (k Kind) Valid() bool {
	switch k {
	case KindCall, KindConsult:
		return true
	default:
		return false
	}
}

// Role is a tagged variant over participant kinds. Behavior differences
// between callers and agents live in the orchestrator, not in subtypes.
type Role string

const (
	RoleCaller Role = "caller"
	RoleAgent  Role = "agent"
)

func (r Role) Valid() bool {
	switch r {
	case RoleCaller, RoleAgent:
		return true
	default:
		return false
	}
}

// Participant belongs to exactly one room at a time. A "move" between rooms
// is a remove+add orchestrated atomically by the transfer machine.
//
// MicEnabled/CamEnabled are informational for this core; OnHold is owned by
// the hold controller and only ever flipped under the room lock.
type Participant struct {
	Identity   string    `json:"identity"`
	Name       string    `json:"name"`
	Role       Role      `json:"role"`
	RoomID     string    `json:"room_id"`
	MicEnabled bool      `json:"audio_enabled"`
	CamEnabled bool      `json:"video_enabled"`
	OnHold     bool      `json:"on_hold"`
	JoinedAt   time.Time `json:"joined_at"`
}

// Room is a named real-time session grouping participants.
//
// Invariants:
// - an active room's name is unique among active rooms
// - a room transitions active -> inactive exactly once; its id is never reused
// - participant identities are unique within a room
type Room struct {
	ID              string                 `json:"room_id"`
	Name            string                 `json:"room_name"`
	Kind            Kind                   `json:"room_type"`
	MaxParticipants int                    `json:"max_participants"`
	CreatedAt       time.Time              `json:"created_at"`
	LastActivity    time.Time              `json:"last_activity"`
	Active          bool                   `json:"is_active"`
	Participants    map[string]Participant `json:"participants"`
}

func (r Room) participantCount() int { return len(r.Participants) }

// Clone returns a deep copy safe to hand outside the store.
func (r Room) Clone() Room {
	out := r
	out.Participants = make(map[string]Participant, len(r.Participants))
	for id, p := range r.Participants {
		out.Participants[id] = p
	}
	return out
}

var (
	ErrRoomNotFound        = errors.New("rooms: room not found")
	ErrDuplicateName       = errors.New("rooms: active room with that name already exists")
	ErrParticipantNotFound = errors.New("rooms: participant not found")
	ErrDuplicateIdentity   = errors.New("rooms: identity already present in room")
	ErrRoomInactive        = errors.New("rooms: room is inactive")
	ErrRoomFull            = errors.New("rooms: room is at max participants")
	ErrInvalidArgument     = errors.New("rooms: invalid argument")
)
