package transfer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rahul-singh01/warm-transfer/internal/hold"
	"github.com/rahul-singh01/warm-transfer/internal/rooms"
	"github.com/rahul-singh01/warm-transfer/internal/summary"
	"github.com/rahul-singh01/warm-transfer/internal/token"
	"github.com/rahul-singh01/warm-transfer/internal/transcript"
	"github.com/rahul-singh01/warm-transfer/internal/transport"
)

// Summarizer is the slice of the summary generator the machine needs.
type Summarizer interface {
	Generate(ctx context.Context, callID, transferID string, entries []transcript.Entry) (summary.CallSummary, error)
	Briefing(ctx context.Context, s summary.CallSummary, agentName string) (string, error)
}

// Archiver receives terminal transfers. Failures are logged, never surfaced;
// archival must not affect transfer outcomes.
type Archiver interface {
	Archive(ctx context.Context, t Transfer)
}

// Config carries machine tuning. Zero values fall back to defaults.
type Config struct {
	// Retry governs transport calls made by the workflow.
	Retry transport.RetryPolicy

	// TransportTimeout bounds each transport operation.
	TransportTimeout time.Duration

	// SummaryTimeout bounds the whole summary phase, attempts included.
	SummaryTimeout time.Duration

	// ConsultMaxParticipants caps the consult room. Two agents plus room
	// for a supervisor listening in.
	ConsultMaxParticipants int

	// TokenTTL for consult and handoff credentials. Zero uses the issuer
	// default.
	TokenTTL time.Duration
}

func (c Config) withDefaults() Config {
	if c.TransportTimeout <= 0 {
		c.TransportTimeout = 5 * time.Second
	}
	if c.SummaryTimeout <= 0 {
		c.SummaryTimeout = 30 * time.Second
	}
	if c.ConsultMaxParticipants <= 0 {
		c.ConsultMaxParticipants = 3
	}
	return c
}

// Machine owns every transfer record and drives the warm-transfer workflow.
//
// Serialization: the registry mu guards the transfer maps and the per-room
// in-flight index; each transferEntry has its own mutex serializing state
// transitions. External calls (transport, summarizer) always happen with no
// lock held, so transitions observed mid-call are re-validated before being
// acted on.
type Machine struct {
	registry    *rooms.Registry
	issuer      *token.Issuer
	provider    transport.Provider
	hold        *hold.Controller
	summarizer  Summarizer
	transcripts transcript.Repository
	archiver    Archiver
	cfg         Config
	log         *slog.Logger
	clock       func() time.Time

	mu        sync.Mutex
	transfers map[string]*transferEntry
	byRoom    map[string]string // source room id -> in-flight transfer id
	byConsult map[string]string // consult room id -> transfer id
}

type transferEntry struct {
	mu     sync.Mutex
	t      Transfer
	joined map[string]bool // consult room joins observed via events
}

func NewMachine(
	registry *rooms.Registry,
	issuer *token.Issuer,
	provider transport.Provider,
	holdCtl *hold.Controller,
	summarizer Summarizer,
	transcripts transcript.Repository,
	archiver Archiver,
	cfg Config,
	log *slog.Logger,
) *Machine {
	if log == nil {
		log = slog.Default()
	}
	return &Machine{
		registry:    registry,
		issuer:      issuer,
		provider:    provider,
		hold:        holdCtl,
		summarizer:  summarizer,
		transcripts: transcripts,
		archiver:    archiver,
		cfg:         cfg.withDefaults(),
		log:         log,
		clock:       time.Now,
		transfers:   make(map[string]*transferEntry),
		byRoom:      make(map[string]string),
		byConsult:   make(map[string]string),
	}
}

// InitiateRequest describes a handoff to start. CallerIdentity and
// InitiatorIdentity may be left empty; they are inferred from the source
// room membership by role.
type InitiateRequest struct {
	SourceRoomID      string
	TargetIdentity    string
	InitiatorIdentity string
	CallerIdentity    string
	Context           string // free-form note from agent A, prepended to the briefing
}

// InitiateResult is returned once the transfer reached ConsultReady.
type InitiateResult struct {
	TransferID     string
	ConsultRoomID  string
	State          State
	InitiatorToken token.Token
	TargetToken    token.Token
}

// Initiate starts a warm transfer out of sourceRoom. It performs the consult
// setup synchronously (room, credentials, caller hold) and returns with the
// transfer in ConsultReady; the summary phase continues in the background.
//
// At most one non-terminal transfer may exist per source room. Concurrent
// initiations race on an atomic check-and-insert; exactly one wins, the rest
// get ErrTransferConflict.
func (m *Machine) Initiate(ctx context.Context, req InitiateRequest) (InitiateResult, error) {
	if req.SourceRoomID == "" || req.TargetIdentity == "" {
		return InitiateResult{}, fmt.Errorf("%w: source room and target identity are required", ErrInvalidArgument)
	}

	src, ok, err := m.registry.Get(ctx, req.SourceRoomID)
	if err != nil {
		return InitiateResult{}, err
	}
	if !ok || !src.Active {
		return InitiateResult{}, rooms.ErrRoomNotFound
	}
	if err := m.resolveParties(&req, src); err != nil {
		return InitiateResult{}, err
	}

	now := m.clock()
	t := Transfer{
		ID:                "transfer_" + rooms.ShortID(),
		SourceRoomID:      src.ID,
		CallerIdentity:    req.CallerIdentity,
		InitiatorIdentity: req.InitiatorIdentity,
		TargetIdentity:    req.TargetIdentity,
		State:             StateConsultPending,
		Steps:             []Step{StepInitiated},
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	m.mu.Lock()
	if existing, busy := m.byRoom[src.ID]; busy {
		m.mu.Unlock()
		m.log.Warn("transfer conflict", "room_id", src.ID, "in_flight", existing)
		return InitiateResult{}, ErrTransferConflict
	}
	entry := &transferEntry{t: t, joined: make(map[string]bool)}
	m.transfers[t.ID] = entry
	m.byRoom[src.ID] = t.ID
	m.mu.Unlock()

	m.log.Info("transfer initiated",
		"transfer_id", t.ID, "room_id", src.ID,
		"agent_a", req.InitiatorIdentity, "agent_b", req.TargetIdentity)

	res, err := m.setupConsultation(ctx, entry, req)
	if err != nil {
		m.fail(entry, err.Error())
		return InitiateResult{}, err
	}

	go m.runSummaryPhase(entry, req.Context)
	return res, nil
}

// resolveParties fills caller and initiator identities from room membership
// when the request leaves them blank, and validates all three parties.
func (m *Machine) resolveParties(req *InitiateRequest, src rooms.Room) error {
	var caller, agent string
	for _, p := range src.Participants {
		switch p.Role {
		case rooms.RoleCaller:
			if caller == "" {
				caller = p.Identity
			}
		case rooms.RoleAgent:
			if agent == "" && p.Identity != req.TargetIdentity {
				agent = p.Identity
			}
		}
	}
	if req.CallerIdentity == "" {
		req.CallerIdentity = caller
	}
	if req.InitiatorIdentity == "" {
		req.InitiatorIdentity = agent
	}
	if req.CallerIdentity == "" {
		return fmt.Errorf("%w: no caller present in room %s", ErrInvalidArgument, src.ID)
	}
	if req.InitiatorIdentity == "" {
		return fmt.Errorf("%w: no initiating agent present in room %s", ErrInvalidArgument, src.ID)
	}
	if req.TargetIdentity == req.InitiatorIdentity {
		return fmt.Errorf("%w: target agent must differ from initiator", ErrInvalidArgument)
	}
	if _, joined := src.Participants[req.TargetIdentity]; joined {
		return fmt.Errorf("%w: target agent already in source room", ErrInvalidArgument)
	}
	return nil
}

// setupConsultation performs the ConsultPending work: consult room, agent
// credentials, caller hold. Any failure is returned for compensation.
func (m *Machine) setupConsultation(ctx context.Context, entry *transferEntry, req InitiateRequest) (InitiateResult, error) {
	transferID := entry.id()

	consult, err := m.registry.CreateRoom(ctx, "consult-"+transferID, rooms.KindConsult, m.cfg.ConsultMaxParticipants)
	if err != nil {
		return InitiateResult{}, fmt.Errorf("create consult room: %w", err)
	}
	// Recorded immediately so a failure anywhere past this point still
	// tears the room down during rollback.
	entry.mu.Lock()
	entry.t.ConsultRoomID = consult.ID
	entry.mu.Unlock()

	if err := m.transportCall(ctx, func(c context.Context) error {
		_, err := m.provider.CreateRoom(c, transport.CreateRoomRequest{
			RoomID:          consult.ID,
			Name:            consult.Name,
			MaxParticipants: m.cfg.ConsultMaxParticipants,
		})
		return err
	}); err != nil {
		return InitiateResult{}, fmt.Errorf("provision consult room: %w", err)
	}

	m.mu.Lock()
	m.byConsult[consult.ID] = transferID
	m.mu.Unlock()

	initiatorTok, err := m.issuer.Issue(consult.ID, req.InitiatorIdentity, req.InitiatorIdentity, rooms.RoleAgent, m.cfg.TokenTTL)
	if err != nil {
		return InitiateResult{}, fmt.Errorf("issue consult token: %w", err)
	}
	targetTok, err := m.issuer.Issue(consult.ID, req.TargetIdentity, req.TargetIdentity, rooms.RoleAgent, m.cfg.TokenTTL)
	if err != nil {
		return InitiateResult{}, fmt.Errorf("issue consult token: %w", err)
	}

	if err := m.hold.Hold(ctx, req.SourceRoomID, req.CallerIdentity); err != nil {
		return InitiateResult{}, fmt.Errorf("hold caller: %w", err)
	}

	entry.mu.Lock()
	entry.t.InitiatorToken = initiatorTok
	entry.t.TargetToken = targetTok
	entry.t.State = StateConsultReady
	entry.t.Steps = append(entry.t.Steps, StepConsultRoomCreated, StepCallerOnHold)
	entry.t.UpdatedAt = m.clock()
	res := InitiateResult{
		TransferID:     entry.t.ID,
		ConsultRoomID:  consult.ID,
		State:          entry.t.State,
		InitiatorToken: initiatorTok,
		TargetToken:    targetTok,
	}
	entry.mu.Unlock()

	m.log.Info("consultation ready", "transfer_id", transferID, "consult_room_id", consult.ID)
	return res, nil
}

// runSummaryPhase generates and delivers the call summary in the background.
// A summary failure degrades the transfer to SummaryUnavailable; it never
// fails the handoff.
func (m *Machine) runSummaryPhase(entry *transferEntry, contextNote string) {
	transferID := entry.id()
	if _, ok := m.transition(entry, StateSummaryPending, StateConsultReady); !ok {
		return // cancelled during setup handback
	}

	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.SummaryTimeout)
	defer cancel()

	entry.mu.Lock()
	srcRoom := entry.t.SourceRoomID
	consultRoom := entry.t.ConsultRoomID
	target := entry.t.TargetIdentity
	entry.mu.Unlock()

	var (
		s   summary.CallSummary
		err error
	)
	entries, terr := m.transcripts.Get(ctx, srcRoom)
	if terr != nil {
		err = summary.ErrSummaryUnavailable
	} else {
		s, err = m.summarizer.Generate(ctx, srcRoom, transferID, entries)
	}

	if err != nil {
		m.log.Warn("summary unavailable, consultation proceeds",
			"transfer_id", transferID, "error", err)
		if _, ok := m.transition(entry, StateSummaryUnavailable, StateSummaryPending); !ok {
			return
		}
		entry.mu.Lock()
		entry.t.Steps = append(entry.t.Steps, StepSummarySkipped)
		entry.mu.Unlock()
	} else {
		// Attach only after the CAS: a transfer cancelled mid-generation is
		// already terminal and archived, and stays frozen.
		if _, ok := m.transition(entry, StateSummaryReady, StateSummaryPending); !ok {
			return
		}
		entry.mu.Lock()
		entry.t.Summary = &s
		entry.t.Steps = append(entry.t.Steps, StepSummaryGenerated)
		entry.mu.Unlock()
		m.deliverBriefing(ctx, entry, consultRoom, target, s, contextNote)
	}

	// Agents may already have joined while the summary was in flight.
	m.maybeEnterConsulting(entry)
	m.log.Info("summary phase resolved", "transfer_id", transferID, "state", string(entry.state()))
}

// deliverBriefing pushes the summary into the consult room as a data message.
// Best effort; delivery problems are logged and the workflow continues.
func (m *Machine) deliverBriefing(ctx context.Context, entry *transferEntry, consultRoom, target string, s summary.CallSummary, contextNote string) {
	briefing, err := m.summarizer.Briefing(ctx, s, target)
	if err != nil {
		briefing = s.Content
	}
	if contextNote != "" {
		briefing = contextNote + "\n\n" + briefing
	}
	payload, _ := json.Marshal(map[string]any{
		"type":       "call_briefing",
		"summary":    s.Content,
		"key_points": s.KeyPoints,
		"briefing":   briefing,
	})
	err = m.transportCall(ctx, func(c context.Context) error {
		_, err := m.provider.SendData(c, transport.SendDataRequest{
			RoomID:  consultRoom,
			Payload: payload,
			Topic:   "call_briefing",
		})
		return err
	})
	if err != nil {
		m.log.Warn("briefing delivery failed", "transfer_id", entry.id(), "error", err)
		return
	}
	entry.mu.Lock()
	entry.t.Steps = append(entry.t.Steps, StepSummaryDelivered)
	entry.mu.Unlock()
}

// Run consumes transport events until ctx is done: transcript segments are
// appended to the repository, consult room joins advance transfers toward
// Consulting.
func (m *Machine) Run(ctx context.Context, events <-chan transport.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			m.HandleEvent(ctx, ev)
		}
	}
}

// HandleEvent processes a single transport event.
func (m *Machine) HandleEvent(ctx context.Context, ev transport.Event) {
	switch ev.Kind {
	case transport.EventTranscriptSegment:
		if ev.RoomID == "" || ev.Text == "" {
			return
		}
		err := m.transcripts.Append(ctx, ev.RoomID, transcript.Entry{
			Speaker:     ev.Identity,
			SpeakerName: ev.Name,
			Text:        ev.Text,
			Timestamp:   ev.At,
		})
		if err != nil {
			m.log.Warn("transcript append failed", "room_id", ev.RoomID, "error", err)
		}
	case transport.EventParticipantJoined:
		m.noteConsultJoin(ev.RoomID, ev.Identity)
	}
}

// noteConsultJoin records an agent arriving in a consult room and moves the
// transfer to Consulting once both parties are present and the summary phase
// has resolved.
func (m *Machine) noteConsultJoin(roomID, identity string) {
	m.mu.Lock()
	id, ok := m.byConsult[roomID]
	var entry *transferEntry
	if ok {
		entry = m.transfers[id]
	}
	m.mu.Unlock()
	if entry == nil {
		return
	}

	entry.mu.Lock()
	if identity == entry.t.InitiatorIdentity || identity == entry.t.TargetIdentity {
		entry.joined[identity] = true
	}
	entry.mu.Unlock()
	m.maybeEnterConsulting(entry)
}

func (m *Machine) maybeEnterConsulting(entry *transferEntry) {
	entry.mu.Lock()
	both := entry.joined[entry.t.InitiatorIdentity] && entry.joined[entry.t.TargetIdentity]
	entry.mu.Unlock()
	if !both {
		return
	}
	if _, ok := m.transition(entry, StateConsulting, StateSummaryReady, StateSummaryUnavailable); ok {
		entry.mu.Lock()
		entry.t.Steps = append(entry.t.Steps, StepAgentsConnected)
		entry.mu.Unlock()
		m.log.Info("agents consulting", "transfer_id", entry.id())
	}
}

// Complete finishes the handoff: agent B joins the source room before agent A
// leaves it, the caller comes off hold, the consult room is torn down.
// Callable by either consult party once the summary phase resolved.
func (m *Machine) Complete(ctx context.Context, transferID, actingIdentity string) (Transfer, error) {
	entry, err := m.entry(transferID)
	if err != nil {
		return Transfer{}, err
	}

	entry.mu.Lock()
	t := entry.t
	if actingIdentity != "" && actingIdentity != t.InitiatorIdentity && actingIdentity != t.TargetIdentity {
		entry.mu.Unlock()
		return Transfer{}, ErrNotConsultParty
	}
	if !t.State.completable() {
		entry.mu.Unlock()
		if t.State.Terminal() || t.State == StateCompleting {
			return Transfer{}, fmt.Errorf("%w: state %s", ErrTooLateToCancel, t.State)
		}
		return Transfer{}, fmt.Errorf("%w: state %s", ErrConsultNotReady, t.State)
	}
	entry.t.State = StateCompleting
	entry.t.Steps = append(entry.t.Steps, StepConsultComplete)
	entry.t.UpdatedAt = m.clock()
	t = entry.t
	entry.mu.Unlock()

	m.log.Info("completing transfer", "transfer_id", t.ID, "acting", actingIdentity)

	// Join before remove: the caller must never be alone in the room.
	handoffTok, err := m.issuer.Issue(t.SourceRoomID, t.TargetIdentity, t.TargetIdentity, rooms.RoleAgent, m.cfg.TokenTTL)
	if err != nil {
		return m.fail(entry, fmt.Sprintf("issue handoff token: %v", err)), err
	}
	err = m.registry.AddParticipant(ctx, t.SourceRoomID, rooms.Participant{
		Identity: t.TargetIdentity,
		Name:     t.TargetIdentity,
		Role:     rooms.RoleAgent,
	})
	// Agent B may have joined ahead of confirmation via the token endpoint.
	admitted := err == nil
	if err != nil && !errors.Is(err, rooms.ErrDuplicateIdentity) {
		return m.fail(entry, fmt.Sprintf("admit agent b: %v", err)), err
	}

	err = m.transportCall(ctx, func(c context.Context) error {
		_, err := m.provider.RemoveParticipant(c, transport.RemoveParticipantRequest{
			RoomID:   t.SourceRoomID,
			Identity: t.InitiatorIdentity,
		})
		return err
	})
	if err != nil {
		// Undo the admit so a retry starts clean, unless agent B was in the
		// room on their own account.
		if admitted {
			_ = m.registry.RemoveParticipant(ctx, t.SourceRoomID, t.TargetIdentity)
		}
		return m.fail(entry, fmt.Sprintf("remove agent a: %v", err)), err
	}
	if err := m.registry.RemoveParticipant(ctx, t.SourceRoomID, t.InitiatorIdentity); err != nil {
		m.log.Warn("agent a already absent from registry", "transfer_id", t.ID, "error", err)
	}

	// Cleanup past this point never fails the transfer.
	if err := m.hold.Resume(ctx, t.SourceRoomID, t.CallerIdentity); err != nil {
		m.log.Warn("resume caller failed", "transfer_id", t.ID, "error", err)
	}
	m.teardownConsultRoom(ctx, t)

	entry.mu.Lock()
	entry.t.State = StateCompleted
	entry.t.TargetToken = handoffTok
	entry.t.Steps = append(entry.t.Steps, StepTransferComplete)
	entry.t.UpdatedAt = m.clock()
	done := entry.t
	entry.mu.Unlock()

	m.finalize(done)
	m.log.Info("transfer completed", "transfer_id", done.ID, "room_id", done.SourceRoomID)
	return done, nil
}

// Cancel aborts an in-flight transfer: the caller comes off hold, the consult
// room is torn down, the source room is left untouched. Honored up to and
// including Consulting.
func (m *Machine) Cancel(ctx context.Context, transferID, actingIdentity string) (Transfer, error) {
	entry, err := m.entry(transferID)
	if err != nil {
		return Transfer{}, err
	}

	entry.mu.Lock()
	t := entry.t
	if actingIdentity != "" && actingIdentity != t.InitiatorIdentity && actingIdentity != t.TargetIdentity {
		entry.mu.Unlock()
		return Transfer{}, ErrNotConsultParty
	}
	if !t.State.cancellable() {
		entry.mu.Unlock()
		return Transfer{}, fmt.Errorf("%w: state %s", ErrTooLateToCancel, t.State)
	}
	was := t.State
	entry.t.State = StateCancelled
	entry.t.Steps = append(entry.t.Steps, StepRolledBack)
	entry.t.UpdatedAt = m.clock()
	t = entry.t
	entry.mu.Unlock()

	m.log.Info("transfer cancelled", "transfer_id", t.ID, "acting", actingIdentity, "was", string(was))

	if err := m.hold.Resume(ctx, t.SourceRoomID, t.CallerIdentity); err != nil {
		m.log.Warn("resume caller failed during cancel", "transfer_id", t.ID, "error", err)
	}
	m.teardownConsultRoom(ctx, t)
	m.finalize(t)
	return t, nil
}

// Get returns a copy of the transfer record.
func (m *Machine) Get(transferID string) (Transfer, error) {
	entry, err := m.entry(transferID)
	if err != nil {
		return Transfer{}, err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return entry.snapshotLocked(), nil
}

// ForRoom returns the in-flight transfer for a source room, if any.
func (m *Machine) ForRoom(roomID string) (Transfer, bool) {
	m.mu.Lock()
	id, ok := m.byRoom[roomID]
	var entry *transferEntry
	if ok {
		entry = m.transfers[id]
	}
	m.mu.Unlock()
	if entry == nil {
		return Transfer{}, false
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return entry.snapshotLocked(), true
}

// fail moves the transfer to Failed and compensates: resume the caller,
// tear down the consult room, leave the source room untouched.
func (m *Machine) fail(entry *transferEntry, reason string) Transfer {
	entry.mu.Lock()
	if entry.t.State.Terminal() {
		t := entry.snapshotLocked()
		entry.mu.Unlock()
		return t
	}
	entry.t.State = StateFailed
	entry.t.FailureReason = reason
	entry.t.Steps = append(entry.t.Steps, StepRolledBack)
	entry.t.UpdatedAt = m.clock()
	t := entry.t
	entry.mu.Unlock()

	m.log.Error("transfer failed", "transfer_id", t.ID, "reason", reason)

	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.TransportTimeout)
	defer cancel()
	if err := m.hold.Resume(ctx, t.SourceRoomID, t.CallerIdentity); err != nil {
		m.log.Warn("resume caller failed during rollback", "transfer_id", t.ID, "error", err)
	}
	m.teardownConsultRoom(ctx, t)
	m.finalize(t)
	return t
}

// teardownConsultRoom deactivates the consult room on both sides. Best
// effort.
func (m *Machine) teardownConsultRoom(ctx context.Context, t Transfer) {
	if t.ConsultRoomID == "" {
		return
	}
	err := m.transportCall(ctx, func(c context.Context) error {
		_, err := m.provider.DeleteRoom(c, transport.DeleteRoomRequest{RoomID: t.ConsultRoomID})
		return err
	})
	if err != nil {
		m.log.Warn("consult room delete failed", "transfer_id", t.ID, "consult_room_id", t.ConsultRoomID, "error", err)
	}
	if err := m.registry.Deactivate(ctx, t.ConsultRoomID); err != nil {
		m.log.Warn("consult room deactivate failed", "transfer_id", t.ID, "error", err)
	}
}

// finalize releases the per-room in-flight slot and archives the terminal
// record.
func (m *Machine) finalize(t Transfer) {
	m.mu.Lock()
	if m.byRoom[t.SourceRoomID] == t.ID {
		delete(m.byRoom, t.SourceRoomID)
	}
	if t.ConsultRoomID != "" && m.byConsult[t.ConsultRoomID] == t.ID {
		delete(m.byConsult, t.ConsultRoomID)
	}
	m.mu.Unlock()

	if m.archiver != nil {
		ctx, cancel := context.WithTimeout(context.Background(), m.cfg.TransportTimeout)
		defer cancel()
		m.archiver.Archive(ctx, t)
	}
}

// transition compares-and-swaps the state. Returns false when the transfer
// moved elsewhere in the meantime, typically a concurrent cancel.
func (m *Machine) transition(entry *transferEntry, to State, from ...State) (Transfer, bool) {
	entry.mu.Lock()
	defer entry.mu.Unlock()
	for _, f := range from {
		if entry.t.State == f {
			entry.t.State = to
			entry.t.UpdatedAt = m.clock()
			return entry.t, true
		}
	}
	return entry.t, false
}

func (m *Machine) transportCall(ctx context.Context, fn func(context.Context) error) error {
	c, cancel := context.WithTimeout(ctx, m.cfg.TransportTimeout)
	defer cancel()
	return m.cfg.Retry.Do(c, "transfer", fn)
}

func (m *Machine) entry(transferID string) (*transferEntry, error) {
	m.mu.Lock()
	entry, ok := m.transfers[transferID]
	m.mu.Unlock()
	if !ok {
		return nil, ErrTransferNotFound
	}
	return entry, nil
}

func (e *transferEntry) id() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.t.ID
}

func (e *transferEntry) state() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.t.State
}

// snapshotLocked copies the record; Steps gets its own backing array so
// callers never observe later appends. Caller holds e.mu.
func (e *transferEntry) snapshotLocked() Transfer {
	t := e.t
	t.Steps = append([]Step(nil), e.t.Steps...)
	return t
}
