package transport

import (
	"time"
)

// EventKind enumerates the transport notifications the orchestrator reacts
// to. Provider callbacks are normalized into these events instead of being
// registered as ad-hoc handlers, which keeps ordering and backpressure
// explicit.
type EventKind string

const (
	EventParticipantJoined EventKind = "participant_joined"
	EventParticipantLeft   EventKind = "participant_left"
	EventRoomFinished      EventKind = "room_finished"
	EventTranscriptSegment EventKind = "transcript_segment"
)

type Event struct {
	Kind     EventKind `json:"kind"`
	RoomID   string    `json:"room_id"`
	Identity string    `json:"identity,omitempty"`
	Name     string    `json:"name,omitempty"`

	// Text carries the recognized speech for transcript_segment events.
	Text string `json:"text,omitempty"`

	At time.Time `json:"at"`
}

// Ingestor is a bounded buffer between webhook delivery and the consumers.
// When the buffer is full the oldest pending event is dropped so a stalled
// consumer cannot wedge webhook handling; per-room ordering of the surviving
// events is preserved because there is a single queue.
type Ingestor struct {
	ch chan Event
}

func NewIngestor(capacity int) *Ingestor {
	if capacity <= 0 {
		capacity = 256
	}
	return &Ingestor{ch: make(chan Event, capacity)}
}

// Offer enqueues the event, evicting the oldest pending one if the buffer is
// full. Returns false when an eviction happened.
func (in *Ingestor) Offer(e Event) bool {
	dropped := false
	for {
		select {
		case in.ch <- e:
			return !dropped
		default:
		}
		select {
		case <-in.ch:
			dropped = true
		default:
		}
	}
}

// Events is the consume side. A single consumer goroutine is expected.
func (in *Ingestor) Events() <-chan Event { return in.ch }
