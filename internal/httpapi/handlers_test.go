package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	openai "github.com/sashabaranov/go-openai"

	"github.com/rahul-singh01/warm-transfer/internal/history"
	"github.com/rahul-singh01/warm-transfer/internal/hold"
	"github.com/rahul-singh01/warm-transfer/internal/rooms"
	"github.com/rahul-singh01/warm-transfer/internal/summary"
	"github.com/rahul-singh01/warm-transfer/internal/token"
	"github.com/rahul-singh01/warm-transfer/internal/transcript"
	"github.com/rahul-singh01/warm-transfer/internal/transfer"
	"github.com/rahul-singh01/warm-transfer/internal/transport"
)

type stubChat struct{}

func (stubChat) CreateChatCompletion(_ context.Context, _ openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{
				Content: `{"summary": "Caller needs a refund.", "key_points": ["refund"]}`,
			}},
		},
	}, nil
}

type api struct {
	router      *gin.Engine
	registry    *rooms.Registry
	transcripts *transcript.MemoryRepo
	provider    *transport.FakeProvider
	issuer      *token.Issuer
}

func newAPI(t *testing.T) *api {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	registry := rooms.NewRegistry(rooms.NewMemoryStore())
	provider := transport.NewFakeProvider()
	issuer, err := token.NewIssuer(token.Config{Secret: "test-secret", ServerURL: "ws://localhost:7880"})
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}
	retry := transport.RetryPolicy{Attempts: 2, Backoff: time.Millisecond}
	holdCtl := hold.NewController(registry, provider, hold.Config{Retry: retry, Timeout: time.Second}, log)
	transcripts := transcript.NewMemoryRepo()
	archive := history.NewService(history.NewMemoryRepo(), log)
	summarizer := summary.NewGenerator(stubChat{}, summary.Config{Timeout: time.Second}, log)
	machine := transfer.NewMachine(registry, issuer, provider, holdCtl, summarizer, transcripts, archive, transfer.Config{
		Retry:            retry,
		TransportTimeout: time.Second,
		SummaryTimeout:   time.Second,
	}, log)

	h := Handlers{
		Registry:    registry,
		Issuer:      issuer,
		Hold:        holdCtl,
		Machine:     machine,
		Summarizer:  summarizer,
		Transcripts: transcripts,
		History:     archive,
		Provider:    provider,
	}

	r := gin.New()
	r.GET("/healthz", h.Health)
	apiGroup := r.Group("/api")
	roomsGroup := apiGroup.Group("/rooms")
	roomsGroup.POST("/create", h.CreateRoom)
	roomsGroup.GET("/", h.ListRooms)
	roomsGroup.POST("/transfer", h.InitiateTransfer)
	roomsGroup.POST("/transfer/:transferId/complete-consultation", h.CompleteConsultation)
	roomsGroup.POST("/transfer/:transferId/cancel", h.CancelTransfer)
	roomsGroup.GET("/transfers/:transfer_id", h.GetTransfer)
	roomsGroup.POST("/cleanup", h.CleanupRooms)
	roomsGroup.GET("/:room_id", h.GetRoom)
	roomsGroup.DELETE("/:room_id", h.DeleteRoom)
	participants := apiGroup.Group("/participants")
	participants.POST("/token", h.IssueToken)
	participants.DELETE("/:identity", h.RemoveParticipant)
	calls := apiGroup.Group("/calls")
	calls.POST("/:call_id/summary", h.GenerateSummary)
	calls.GET("/:call_id/transcript", h.GetTranscript)
	calls.POST("/:call_id/transcript", h.AppendTranscript)
	calls.POST("/:call_id/hold", h.SetHold)

	return &api{router: r, registry: registry, transcripts: transcripts, provider: provider, issuer: issuer}
}

func (a *api) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &m); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
	return m
}

func (a *api) createRoom(t *testing.T, name string) string {
	t.Helper()
	w := a.do(t, http.MethodPost, "/api/rooms/create", gin.H{"room_name": name})
	if w.Code != http.StatusCreated {
		t.Fatalf("create room: status %d body %s", w.Code, w.Body.String())
	}
	return decode(t, w)["room_id"].(string)
}

func (a *api) addParticipant(t *testing.T, roomID, identity, role string) {
	t.Helper()
	w := a.do(t, http.MethodPost, "/api/participants/token", gin.H{
		"room_id": roomID, "identity": identity, "role": role,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("token for %s: status %d body %s", identity, w.Code, w.Body.String())
	}
}

func TestCreateRoom_DuplicateNameConflicts(t *testing.T) {
	a := newAPI(t)
	a.createRoom(t, "support-line")
	w := a.do(t, http.MethodPost, "/api/rooms/create", gin.H{"room_name": "support-line"})
	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", w.Code)
	}
}

func TestCreateRoom_RejectsBadType(t *testing.T) {
	a := newAPI(t)
	w := a.do(t, http.MethodPost, "/api/rooms/create", gin.H{"room_name": "x", "room_type": "lounge"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestListRooms_ActiveOnly(t *testing.T) {
	a := newAPI(t)
	id := a.createRoom(t, "one")
	a.createRoom(t, "two")
	if w := a.do(t, http.MethodDelete, "/api/rooms/"+id, nil); w.Code != http.StatusOK {
		t.Fatalf("delete: status %d", w.Code)
	}

	w := a.do(t, http.MethodGet, "/api/rooms/", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var list []map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(list) != 1 || list[0]["room_name"] != "two" {
		t.Fatalf("list = %v, want only room two", list)
	}
}

func TestIssueToken_UnknownRoom404(t *testing.T) {
	a := newAPI(t)
	w := a.do(t, http.MethodPost, "/api/participants/token", gin.H{
		"room_id": "call_ffffffff", "identity": "x", "role": "caller",
	})
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func TestIssueToken_ReissueForPresentParticipant(t *testing.T) {
	a := newAPI(t)
	id := a.createRoom(t, "support-line")
	a.addParticipant(t, id, "caller-1", "caller")
	// Same identity again: token re-issue, not a duplicate error.
	a.addParticipant(t, id, "caller-1", "caller")
}

func TestRemoveParticipant_RequiresRoomID(t *testing.T) {
	a := newAPI(t)
	w := a.do(t, http.MethodDelete, "/api/participants/caller-1", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestRemoveParticipant_NoContent(t *testing.T) {
	a := newAPI(t)
	id := a.createRoom(t, "support-line")
	a.addParticipant(t, id, "caller-1", "caller")
	w := a.do(t, http.MethodDelete, "/api/participants/caller-1?room_id="+id, nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d body %s, want 204", w.Code, w.Body.String())
	}
	// Absent now, so a second delete is a 404.
	w = a.do(t, http.MethodDelete, "/api/participants/caller-1?room_id="+id, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("second delete status = %d, want 404", w.Code)
	}
}

func TestTransferFlow_EndToEnd(t *testing.T) {
	a := newAPI(t)
	id := a.createRoom(t, "support-line")
	a.addParticipant(t, id, "caller-1", "caller")
	a.addParticipant(t, id, "agent-a", "agent")

	w := a.do(t, http.MethodPost, "/api/rooms/transfer", gin.H{
		"room_id": id, "target_agent_id": "agent-b",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("initiate: status %d body %s", w.Code, w.Body.String())
	}
	resp := decode(t, w)
	transferID := resp["transferId"].(string)
	if resp["consultRoomId"] == "" || resp["consultToken"] == "" {
		t.Fatalf("response missing consult fields: %v", resp)
	}

	// A second initiation for the same room conflicts.
	w = a.do(t, http.MethodPost, "/api/rooms/transfer", gin.H{
		"room_id": id, "target_agent_id": "agent-c",
	})
	if w.Code != http.StatusConflict {
		t.Fatalf("second initiate: status %d, want 409", w.Code)
	}

	waitForTransferState(t, a, transferID, "summary_unavailable", "summary_ready")

	w = a.do(t, http.MethodPost, "/api/rooms/transfer/"+transferID+"/complete-consultation", gin.H{
		"agent_identity": "agent-b",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("complete: status %d body %s", w.Code, w.Body.String())
	}
	done := decode(t, w)
	if done["status"] != "completed" {
		t.Fatalf("status = %v, want completed", done["status"])
	}
	// Agent B needs the source-room credential to take over the call.
	agentBToken, _ := done["agent_b_token"].(string)
	if agentBToken == "" {
		t.Fatalf("completion response missing agent_b_token: %v", done)
	}
	claims, err := a.issuer.Verify(agentBToken, time.Now())
	if err != nil {
		t.Fatalf("Verify agent_b_token: %v", err)
	}
	if claims.Grants.Room != id || claims.Subject != "agent-b" {
		t.Fatalf("handoff token scoped to %s/%s, want %s/agent-b", claims.Grants.Room, claims.Subject, id)
	}
	if done["url"] != "ws://localhost:7880" {
		t.Fatalf("url = %v, want transport url", done["url"])
	}

	// Cancel after completion is rejected.
	w = a.do(t, http.MethodPost, "/api/rooms/transfer/"+transferID+"/cancel", gin.H{
		"agent_identity": "agent-a",
	})
	if w.Code != http.StatusConflict {
		t.Fatalf("late cancel: status %d, want 409", w.Code)
	}
}

func waitForTransferState(t *testing.T, a *api, transferID string, want ...string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		w := a.do(t, http.MethodGet, "/api/rooms/transfers/"+transferID, nil)
		if w.Code != http.StatusOK {
			t.Fatalf("get transfer: status %d", w.Code)
		}
		got := fmt.Sprintf("%v", decode(t, w)["status"])
		for _, s := range want {
			if got == s {
				return
			}
		}
		if time.Now().After(deadline) {
			t.Fatalf("transfer stuck in %s, want one of %v", got, want)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestTransfer_UnknownRoom404(t *testing.T) {
	a := newAPI(t)
	w := a.do(t, http.MethodPost, "/api/rooms/transfer", gin.H{
		"room_id": "call_ffffffff", "target_agent_id": "agent-b",
	})
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func TestTranscript_AppendAndFetch(t *testing.T) {
	a := newAPI(t)
	id := a.createRoom(t, "support-line")

	w := a.do(t, http.MethodPost, "/api/calls/"+id+"/transcript", gin.H{
		"speaker": "caller-1", "speaker_name": "Pat", "text": "hello",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("append: status %d body %s", w.Code, w.Body.String())
	}

	w = a.do(t, http.MethodGet, "/api/calls/"+id+"/transcript", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get: status %d", w.Code)
	}
	resp := decode(t, w)
	if resp["line_count"].(float64) != 1 {
		t.Fatalf("line_count = %v, want 1", resp["line_count"])
	}
}

func TestTranscript_Missing404(t *testing.T) {
	a := newAPI(t)
	w := a.do(t, http.MethodGet, "/api/calls/call_ffffffff/transcript", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func TestSummary_GeneratedFromTranscript(t *testing.T) {
	a := newAPI(t)
	id := a.createRoom(t, "support-line")
	if err := a.transcripts.Append(context.Background(), id, transcript.Entry{
		Speaker: "caller-1", Text: "I want a refund", Timestamp: time.Now(),
	}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	w := a.do(t, http.MethodPost, "/api/calls/"+id+"/summary", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body %s", w.Code, w.Body.String())
	}
	resp := decode(t, w)
	if resp["content"] != "Caller needs a refund." {
		t.Fatalf("content = %v", resp["content"])
	}
}

func TestHoldEndpoint_HoldAndResume(t *testing.T) {
	a := newAPI(t)
	id := a.createRoom(t, "support-line")
	a.addParticipant(t, id, "caller-1", "caller")

	w := a.do(t, http.MethodPost, "/api/calls/"+id+"/hold", gin.H{"identity": "caller-1", "hold": true})
	if w.Code != http.StatusOK || decode(t, w)["status"] != "on_hold" {
		t.Fatalf("hold: status %d body %s", w.Code, w.Body.String())
	}
	w = a.do(t, http.MethodPost, "/api/calls/"+id+"/hold", gin.H{"identity": "caller-1", "hold": false})
	if w.Code != http.StatusOK || decode(t, w)["status"] != "resumed" {
		t.Fatalf("resume: status %d body %s", w.Code, w.Body.String())
	}
}

func TestHoldEndpoint_RequiresHoldFlag(t *testing.T) {
	a := newAPI(t)
	id := a.createRoom(t, "support-line")
	w := a.do(t, http.MethodPost, "/api/calls/"+id+"/hold", gin.H{"identity": "caller-1"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestHealth_OK(t *testing.T) {
	a := newAPI(t)
	w := a.do(t, http.MethodGet, "/healthz", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
}
