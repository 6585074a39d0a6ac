package transfer

import (
	"errors"
	"time"

	"github.com/rahul-singh01/warm-transfer/internal/summary"
	"github.com/rahul-singh01/warm-transfer/internal/token"
)

// State is the transfer lifecycle position. Transitions for one transfer are
// strictly sequential; see Machine for the serialization rules.
type State string

const (
	// StateConsultPending: initiate() accepted; consult room, tokens, and
	// hold are being set up.
	StateConsultPending State = "consult_pending"

	// StateConsultReady: consult room exists and both agents hold
	// credentials for it.
	StateConsultReady State = "consult_ready"

	// StateSummaryPending: summary requested from the adapter.
	StateSummaryPending State = "summary_pending"

	// StateSummaryReady / StateSummaryUnavailable: summary resolved with a
	// value or an explicit absence. Either way consultation proceeds.
	StateSummaryReady       State = "summary_ready"
	StateSummaryUnavailable State = "summary_unavailable"

	// StateConsulting: both agents confirmed present in the consult room.
	StateConsulting State = "consulting"

	// StateCompleting: the receiving agent confirmed; membership is being
	// moved. Cancellation is no longer honored.
	StateCompleting State = "completing"

	StateCompleted State = "completed"
	StateFailed    State = "failed"
	StateCancelled State = "cancelled"
)

func (s State) Terminal() bool {
	switch s {
	case StateCompleted, StateFailed, StateCancelled:
		return true
	default:
		return false
	}
}

// cancellable reports whether a cooperative cancel is still honored.
func (s State) cancellable() bool {
	switch s {
	case StateConsultPending, StateConsultReady, StateSummaryPending,
		StateSummaryReady, StateSummaryUnavailable, StateConsulting:
		return true
	default:
		return false
	}
}

// completable reports whether the receiving agent may confirm the handoff.
// Agents can confirm as soon as the summary has resolved; waiting for the
// joined events is not required when they coordinate out of band.
func (s State) completable() bool {
	switch s {
	case StateSummaryReady, StateSummaryUnavailable, StateConsulting:
		return true
	default:
		return false
	}
}

// Step is an append-only trail entry recording workflow milestones.
type Step string

const (
	StepInitiated          Step = "initiated"
	StepConsultRoomCreated Step = "consult_room_created"
	StepCallerOnHold       Step = "caller_on_hold"
	StepAgentsConnected    Step = "agents_connected"
	StepSummaryGenerated   Step = "summary_generated"
	StepSummaryDelivered   Step = "summary_delivered"
	StepSummarySkipped     Step = "summary_skipped"
	StepConsultComplete    Step = "consultation_complete"
	StepTransferComplete   Step = "transfer_complete"
	StepRolledBack         Step = "rolled_back"
)

// Transfer is the stateful record of one warm handoff. Owned exclusively by
// the Machine; everything outside receives copies.
type Transfer struct {
	ID            string `json:"transfer_id"`
	SourceRoomID  string `json:"original_room_id"`
	ConsultRoomID string `json:"consult_room_id,omitempty"`

	CallerIdentity    string `json:"caller_identity"`
	InitiatorIdentity string `json:"agent_a_identity"`
	TargetIdentity    string `json:"agent_b_identity"`

	State   State                `json:"status"`
	Summary *summary.CallSummary `json:"call_summary,omitempty"`
	Steps   []Step               `json:"steps_completed"`

	// Consult credentials issued during setup, echoed back to the API
	// caller. The target token is also how agent B availability is probed.
	InitiatorToken token.Token `json:"-"`
	TargetToken    token.Token `json:"-"`

	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
	FailureReason string    `json:"error_message,omitempty"`
}

var (
	ErrTransferNotFound = errors.New("transfer: not found")

	// ErrTransferConflict: the source room already has a transfer in a
	// non-terminal state. At most one in-flight transfer per room.
	ErrTransferConflict = errors.New("transfer: transfer already in flight for room")

	// ErrTooLateToCancel: cancellation arrived at or after Completing.
	ErrTooLateToCancel = errors.New("transfer: too late to cancel")

	// ErrNotConsultParty: the acting identity is neither consult agent.
	ErrNotConsultParty = errors.New("transfer: identity is not part of the consultation")

	// ErrConsultNotReady: completion requested before the summary resolved.
	ErrConsultNotReady = errors.New("transfer: consultation not ready to complete")

	ErrInvalidArgument = errors.New("transfer: invalid argument")
)
