package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rahul-singh01/warm-transfer/internal/history"
	"github.com/rahul-singh01/warm-transfer/internal/hold"
	"github.com/rahul-singh01/warm-transfer/internal/rooms"
	"github.com/rahul-singh01/warm-transfer/internal/summary"
	"github.com/rahul-singh01/warm-transfer/internal/token"
	"github.com/rahul-singh01/warm-transfer/internal/transcript"
	"github.com/rahul-singh01/warm-transfer/internal/transfer"
	"github.com/rahul-singh01/warm-transfer/internal/transport"
	"github.com/rahul-singh01/warm-transfer/pkg/logger"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.

type Handlers struct {
	Registry    *rooms.Registry
	Issuer      *token.Issuer
	Hold        *hold.Controller
	Machine     *transfer.Machine
	Summarizer  *summary.Generator
	Transcripts transcript.Repository
	History     *history.Service
	Provider    transport.Provider
}

// writeError maps domain errors onto HTTP statuses.
func writeError(c *gin.Context, err error) {
	var status int
	switch {
	case errors.Is(err, rooms.ErrRoomNotFound),
		errors.Is(err, rooms.ErrParticipantNotFound),
		errors.Is(err, transfer.ErrTransferNotFound),
		errors.Is(err, transcript.ErrNoTranscript):
		status = http.StatusNotFound
	case errors.Is(err, rooms.ErrDuplicateName),
		errors.Is(err, rooms.ErrDuplicateIdentity),
		errors.Is(err, rooms.ErrRoomFull),
		errors.Is(err, transfer.ErrTransferConflict),
		errors.Is(err, transfer.ErrTooLateToCancel),
		errors.Is(err, transfer.ErrConsultNotReady):
		status = http.StatusConflict
	case errors.Is(err, rooms.ErrInvalidArgument),
		errors.Is(err, rooms.ErrRoomInactive),
		errors.Is(err, transfer.ErrInvalidArgument),
		errors.Is(err, transfer.ErrNotConsultParty):
		status = http.StatusBadRequest
	case errors.Is(err, transport.ErrExternalServiceTimeout),
		errors.Is(err, transport.ErrExternalServiceError):
		status = http.StatusBadGateway
	case errors.Is(err, summary.ErrSummaryUnavailable):
		status = http.StatusServiceUnavailable
	default:
		status = http.StatusInternalServerError
	}
	log := logger.From(c.Request.Context())
	if status >= http.StatusInternalServerError {
		log.Error("request failed", "status", status, "error", err.Error())
	} else {
		log.Warn("request rejected", "status", status, "error", err.Error())
	}
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}

// --- Rooms ---

type createRoomRequest struct {
	RoomName        string `json:"room_name"`
	RoomType        string `json:"room_type"`
	MaxParticipants int    `json:"max_participants"`
}

func (h Handlers) CreateRoom(c *gin.Context) {
	var req createRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	kind := rooms.Kind(req.RoomType)
	if req.RoomType == "" {
		kind = rooms.KindCall
	}
	if !kind.Valid() {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "room_type must be call or consult"})
		return
	}

	room, err := h.Registry.CreateRoom(c.Request.Context(), req.RoomName, kind, req.MaxParticipants)
	if err != nil {
		writeError(c, err)
		return
	}
	if _, err := h.Provider.CreateRoom(c.Request.Context(), transport.CreateRoomRequest{
		RoomID:          room.ID,
		Name:            room.Name,
		MaxParticipants: room.MaxParticipants,
	}); err != nil {
		// Registry entry stays; the platform creates rooms lazily on join.
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"room_id":          room.ID,
		"room_name":        room.Name,
		"room_type":        room.Kind,
		"max_participants": room.MaxParticipants,
		"created_at":       room.CreatedAt,
		"transport_url":    h.Issuer.ServerURL(),
	})
}

func (h Handlers) ListRooms(c *gin.Context) {
	list, err := h.Registry.List(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h Handlers) GetRoom(c *gin.Context) {
	room, found, err := h.Registry.Get(c.Request.Context(), c.Param("room_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	if !found {
		writeError(c, rooms.ErrRoomNotFound)
		return
	}
	c.JSON(http.StatusOK, room)
}

func (h Handlers) DeleteRoom(c *gin.Context) {
	ctx := c.Request.Context()
	roomID := c.Param("room_id")
	if err := h.Registry.Deactivate(ctx, roomID); err != nil {
		writeError(c, err)
		return
	}
	if _, err := h.Provider.DeleteRoom(ctx, transport.DeleteRoomRequest{RoomID: roomID}); err != nil {
		// Registry already marked the room inactive; the reaper will catch
		// the platform side.
		c.JSON(http.StatusOK, gin.H{"status": "deactivated", "platform_cleanup": "pending"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deactivated"})
}

func (h Handlers) CleanupRooms(c *gin.Context) {
	maxAge := 4 * time.Hour
	if v := c.Query("max_age_minutes"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "max_age_minutes must be a positive integer"})
			return
		}
		maxAge = time.Duration(n) * time.Minute
	}
	n, err := h.Registry.CleanupInactive(c.Request.Context(), maxAge)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cleaned_rooms": n})
}

// --- Transfers ---

type initiateTransferRequest struct {
	RoomID        string `json:"room_id"`
	TargetAgentID string `json:"target_agent_id"`
	CallSummary   string `json:"call_summary"`
}

func (h Handlers) InitiateTransfer(c *gin.Context) {
	var req initiateTransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	res, err := h.Machine.Initiate(c.Request.Context(), transfer.InitiateRequest{
		SourceRoomID:   req.RoomID,
		TargetIdentity: req.TargetAgentID,
		Context:        req.CallSummary,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"transferId":     res.TransferID,
		"consultRoomId":  res.ConsultRoomID,
		"status":         res.State,
		"consultToken":   res.TargetToken.JWT,
		"initiatorToken": res.InitiatorToken.JWT,
		"url":            h.Issuer.ServerURL(),
	})
}

type consultActionRequest struct {
	AgentIdentity string `json:"agent_identity"`
}

func (h Handlers) CompleteConsultation(c *gin.Context) {
	var req consultActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	t, err := h.Machine.Complete(c.Request.Context(), c.Param("transferId"), req.AgentIdentity)
	if err != nil {
		writeError(c, err)
		return
	}
	// The handoff credential only travels here; the record itself never
	// serializes tokens.
	c.JSON(http.StatusOK, gin.H{
		"status":        t.State,
		"transfer":      t,
		"agent_b_token": t.TargetToken.JWT,
		"url":           h.Issuer.ServerURL(),
	})
}

func (h Handlers) CancelTransfer(c *gin.Context) {
	var req consultActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	t, err := h.Machine.Cancel(c.Request.Context(), c.Param("transferId"), req.AgentIdentity)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": t.State})
}

func (h Handlers) GetTransfer(c *gin.Context) {
	t, err := h.Machine.Get(c.Param("transfer_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (h Handlers) GetTransferSteps(c *gin.Context) {
	t, err := h.Machine.Get(c.Param("transfer_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transfer_id": t.ID, "status": t.State, "steps_completed": t.Steps})
}

func (h Handlers) ListTransferHistory(c *gin.Context) {
	limit := 0
	if v := c.Query("limit"); v != "" {
		limit, _ = strconv.Atoi(v)
	}
	recs, err := h.History.List(c.Request.Context(), c.Query("room_id"), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, recs)
}

// --- Participants ---

type tokenRequest struct {
	RoomID   string `json:"room_id"`
	Identity string `json:"identity"`
	Name     string `json:"name"`
	Role     string `json:"role"`
}

func (h Handlers) IssueToken(c *gin.Context) {
	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	role := rooms.Role(req.Role)
	if !role.Valid() {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "role must be caller or agent"})
		return
	}
	ctx := c.Request.Context()
	room, found, err := h.Registry.Get(ctx, req.RoomID)
	if err != nil {
		writeError(c, err)
		return
	}
	if !found {
		writeError(c, rooms.ErrRoomNotFound)
		return
	}

	name := req.Name
	if name == "" {
		name = req.Identity
	}
	tok, err := h.Issuer.Issue(room.ID, req.Identity, name, role, 0)
	if err != nil {
		writeError(c, err)
		return
	}
	err = h.Registry.AddParticipant(ctx, room.ID, rooms.Participant{
		Identity: req.Identity,
		Name:     name,
		Role:     role,
	})
	if err != nil && !errors.Is(err, rooms.ErrDuplicateIdentity) {
		// Re-issuing a token for a present participant is allowed.
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, tok)
}

func (h Handlers) RemoveParticipant(c *gin.Context) {
	identity := c.Param("identity")
	roomID := c.Query("room_id")
	if roomID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "room_id query parameter required"})
		return
	}
	ctx := c.Request.Context()
	if err := h.Registry.RemoveParticipant(ctx, roomID, identity); err != nil {
		writeError(c, err)
		return
	}
	if _, err := h.Provider.RemoveParticipant(ctx, transport.RemoveParticipantRequest{
		RoomID:   roomID,
		Identity: identity,
	}); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// --- Calls ---

func (h Handlers) GenerateSummary(c *gin.Context) {
	callID := c.Param("call_id")
	ctx := c.Request.Context()
	entries, err := h.Transcripts.Get(ctx, callID)
	if err != nil {
		writeError(c, err)
		return
	}
	s, err := h.Summarizer.Generate(ctx, callID, "", entries)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

func (h Handlers) GetTranscript(c *gin.Context) {
	entries, err := h.Transcripts.Get(c.Request.Context(), c.Param("call_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"call_id":    c.Param("call_id"),
		"entries":    entries,
		"duration":   transcript.Duration(entries).Seconds(),
		"speakers":   transcript.SpeakerCount(entries),
		"line_count": len(entries),
	})
}

type appendTranscriptRequest struct {
	Speaker     string    `json:"speaker"`
	SpeakerName string    `json:"speaker_name"`
	Text        string    `json:"text"`
	Timestamp   time.Time `json:"timestamp"`
}

func (h Handlers) AppendTranscript(c *gin.Context) {
	var req appendTranscriptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.Speaker == "" || req.Text == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "speaker and text required"})
		return
	}
	if req.Timestamp.IsZero() {
		req.Timestamp = time.Now()
	}
	err := h.Transcripts.Append(c.Request.Context(), c.Param("call_id"), transcript.Entry{
		Speaker:     req.Speaker,
		SpeakerName: req.SpeakerName,
		Text:        req.Text,
		Timestamp:   req.Timestamp,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"status": "appended"})
}

type holdRequest struct {
	Identity string `json:"identity"`
	Hold     *bool  `json:"hold"`
}

func (h Handlers) SetHold(c *gin.Context) {
	var req holdRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.Identity == "" || req.Hold == nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "identity and hold required"})
		return
	}
	ctx := c.Request.Context()
	callID := c.Param("call_id")
	var err error
	if *req.Hold {
		err = h.Hold.Hold(ctx, callID, req.Identity)
	} else {
		err = h.Hold.Resume(ctx, callID, req.Identity)
	}
	if err != nil {
		writeError(c, err)
		return
	}
	status := "resumed"
	if *req.Hold {
		status = "on_hold"
	}
	c.JSON(http.StatusOK, gin.H{"status": status})
}

// --- Health ---

func (h Handlers) Health(c *gin.Context) {
	if err := h.Provider.HealthCheck(c.Request.Context()); err != nil {
		c.JSON(http.StatusOK, gin.H{"status": "degraded", "transport": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
