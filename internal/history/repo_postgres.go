package history

import (
	"context"
	"database/sql"
	"encoding/json"
)

// NOTE: This repository assumes the following table exists:
//
// CREATE TABLE transfer_history (
//     transfer_id      TEXT PRIMARY KEY,
//     source_room_id   TEXT NOT NULL,
//     consult_room_id  TEXT,
//     caller_identity  TEXT NOT NULL,
//     agent_a_identity TEXT NOT NULL,
//     agent_b_identity TEXT NOT NULL,
//     outcome          TEXT NOT NULL,
//     failure_reason   TEXT,
//     summary          TEXT,
//     key_points       JSONB,
//     steps            JSONB,
//     started_at       TIMESTAMPTZ NOT NULL,
//     ended_at         TIMESTAMPTZ NOT NULL
// );

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) Append(ctx context.Context, rec Record) error {
	keyPoints, err := json.Marshal(rec.KeyPoints)
	if err != nil {
		return err
	}
	steps, err := json.Marshal(rec.Steps)
	if err != nil {
		return err
	}
	const q = `
INSERT INTO transfer_history (
    transfer_id, source_room_id, consult_room_id,
    caller_identity, agent_a_identity, agent_b_identity,
    outcome, failure_reason, summary, key_points, steps,
    started_at, ended_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
ON CONFLICT (transfer_id) DO NOTHING
`
	_, err = r.db.ExecContext(ctx, q,
		rec.TransferID,
		rec.SourceRoomID,
		rec.ConsultRoomID,
		rec.CallerIdentity,
		rec.InitiatorIdentity,
		rec.TargetIdentity,
		rec.Outcome,
		rec.FailureReason,
		rec.Summary,
		keyPoints,
		steps,
		rec.StartedAt,
		rec.EndedAt,
	)
	return err
}

func (r *PostgresRepo) List(ctx context.Context, roomID string, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 50
	}
	const q = `
SELECT transfer_id, source_room_id, consult_room_id,
       caller_identity, agent_a_identity, agent_b_identity,
       outcome, failure_reason, summary, key_points, steps,
       started_at, ended_at
FROM transfer_history
WHERE ($1 = '' OR source_room_id = $1)
ORDER BY ended_at DESC
LIMIT $2
`
	rows, err := r.db.QueryContext(ctx, q, roomID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

// scanRecord reads one transfer_history row. consult_room_id, failure_reason
// and summary are nullable in the schema and map to empty strings.
func scanRecord(rs rowScanner) (Record, error) {
	var (
		rec           Record
		consultRoom   sql.NullString
		failureReason sql.NullString
		summaryText   sql.NullString
		keyPoints     []byte
		steps         []byte
	)
	if err := rs.Scan(
		&rec.TransferID,
		&rec.SourceRoomID,
		&consultRoom,
		&rec.CallerIdentity,
		&rec.InitiatorIdentity,
		&rec.TargetIdentity,
		&rec.Outcome,
		&failureReason,
		&summaryText,
		&keyPoints,
		&steps,
		&rec.StartedAt,
		&rec.EndedAt,
	); err != nil {
		return Record{}, err
	}
	rec.ConsultRoomID = consultRoom.String
	rec.FailureReason = failureReason.String
	rec.Summary = summaryText.String
	if len(keyPoints) > 0 {
		if err := json.Unmarshal(keyPoints, &rec.KeyPoints); err != nil {
			return Record{}, err
		}
	}
	if len(steps) > 0 {
		if err := json.Unmarshal(steps, &rec.Steps); err != nil {
			return Record{}, err
		}
	}
	return rec, nil
}
