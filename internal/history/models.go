package history

import "time"

// Record is an immutable archive entry for a transfer that reached a
// terminal state.
//
// Invariants:
// - Records are never updated or deleted.
// - Archival is best-effort; transfer outcomes never depend on it.
//
// Storage recommendation (Postgres):
// - Table transfer_history with an INSERT-only policy.
// - Optional: partition by completed_at for retention.

type Record struct {
	TransferID    string `json:"transfer_id" db:"transfer_id"`
	SourceRoomID  string `json:"source_room_id" db:"source_room_id"`
	ConsultRoomID string `json:"consult_room_id,omitempty" db:"consult_room_id"`

	CallerIdentity    string `json:"caller_identity" db:"caller_identity"`
	InitiatorIdentity string `json:"agent_a_identity" db:"agent_a_identity"`
	TargetIdentity    string `json:"agent_b_identity" db:"agent_b_identity"`

	// Outcome is the terminal state name: completed, failed or cancelled.
	Outcome       string `json:"outcome" db:"outcome"`
	FailureReason string `json:"failure_reason,omitempty" db:"failure_reason"`

	// Summary content as delivered to the consult room, empty when the
	// summary was unavailable.
	Summary   string   `json:"summary,omitempty" db:"summary"`
	KeyPoints []string `json:"key_points,omitempty" db:"key_points"`

	Steps []string `json:"steps" db:"steps"`

	StartedAt time.Time `json:"started_at" db:"started_at"`
	EndedAt   time.Time `json:"ended_at" db:"ended_at"`
}
