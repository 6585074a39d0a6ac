package transport

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rahul-singh01/warm-transfer/pkg/logger"
)

// webhookPayload is the subset of the room-service webhook body this core
// cares about. Unknown events are acknowledged and dropped.
type webhookPayload struct {
	Event      string `json:"event"`
	RoomID     string `json:"room_id"`
	Identity   string `json:"identity"`
	Name       string `json:"name"`
	Text       string `json:"text"`
	OccurredAt int64  `json:"occurred_at"` // unix seconds, optional
}

// WebhookHandler normalizes provider webhooks into Events and offers them to
// the bounded ingestor. Business logic never runs here.
type WebhookHandler struct {
	Ingestor *Ingestor
	Clock    func() time.Time
}

func (h WebhookHandler) now() time.Time {
	if h.Clock != nil {
		return h.Clock()
	}
	return time.Now()
}

func (h WebhookHandler) HandleEvent(c *gin.Context) {
	var p webhookPayload
	if err := c.ShouldBindJSON(&p); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid webhook payload"})
		return
	}

	kind, ok := normalizeEventKind(p.Event)
	if !ok || p.RoomID == "" {
		// Acknowledge so the provider does not retry events we ignore.
		c.Status(http.StatusAccepted)
		return
	}

	at := h.now().UTC()
	if p.OccurredAt > 0 {
		at = time.Unix(p.OccurredAt, 0).UTC()
	}

	accepted := h.Ingestor.Offer(Event{
		Kind:     kind,
		RoomID:   p.RoomID,
		Identity: p.Identity,
		Name:     p.Name,
		Text:     p.Text,
		At:       at,
	})
	if !accepted {
		logger.FromGin(c).Warn("event buffer full, webhook dropped",
			"event", p.Event, "room_id", p.RoomID)
	}
	c.Status(http.StatusAccepted)
}

func normalizeEventKind(s string) (EventKind, bool) {
	switch s {
	case "participant_joined":
		return EventParticipantJoined, true
	case "participant_left":
		return EventParticipantLeft, true
	case "room_finished":
		return EventRoomFinished, true
	case "transcript_segment", "speech_final":
		return EventTranscriptSegment, true
	default:
		return "", false
	}
}
