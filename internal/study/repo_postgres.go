package study

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// PostgresRepo implements Repository on database/sql.
//
// Assumed table:
// CREATE TABLE study_sessions (
//   id               TEXT PRIMARY KEY,
//   user_id          TEXT NOT NULL,
//   call_id          TEXT NOT NULL,
//   started_at       TIMESTAMPTZ NOT NULL,
//   ended_at         TIMESTAMPTZ,
//   duration_seconds INT NOT NULL DEFAULT 0,
//   source           TEXT NOT NULL DEFAULT ''
// );
// CREATE INDEX ON study_sessions (user_id, ended_at);
// CREATE INDEX ON study_sessions (call_id) WHERE ended_at IS NULL;

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) CreateSession(ctx context.Context, s StudySession) error {
	if s.UserID == "" || s.CallID == "" {
		return ErrInvalidArgument
	}
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	const q = `
INSERT INTO study_sessions (id, user_id, call_id, started_at, duration_seconds, source)
VALUES ($1,$2,$3,$4,0,'')
`
	_, err := r.db.ExecContext(ctx, q, s.ID, s.UserID, s.CallID, s.StartedAt)
	return err
}

func (r *PostgresRepo) FindOpenSession(ctx context.Context, userID, callID string) (StudySession, bool, error) {
	const q = `
SELECT id, user_id, call_id, started_at, ended_at, duration_seconds, source
FROM study_sessions
WHERE user_id = $1 AND call_id = $2 AND ended_at IS NULL
ORDER BY started_at DESC
LIMIT 1
`
	var s StudySession
	err := r.db.QueryRowContext(ctx, q, userID, callID).Scan(
		&s.ID,
		&s.UserID,
		&s.CallID,
		&s.StartedAt,
		&s.EndedAt,
		&s.DurationSeconds,
		&s.Source,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return StudySession{}, false, nil
		}
		return StudySession{}, false, err
	}
	return s, true, nil
}

func (r *PostgresRepo) FindOpenSessionsByCall(ctx context.Context, callID string) ([]StudySession, error) {
	const q = `
SELECT id, user_id, call_id, started_at, ended_at, duration_seconds, source
FROM study_sessions
WHERE call_id = $1 AND ended_at IS NULL
`
	rows, err := r.db.QueryContext(ctx, q, callID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StudySession
	for rows.Next() {
		var s StudySession
		if err := rows.Scan(&s.ID, &s.UserID, &s.CallID, &s.StartedAt, &s.EndedAt, &s.DurationSeconds, &s.Source); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) CloseSession(ctx context.Context, sessionID string, endedAt time.Time, durationSeconds int, source DurationSource) error {
	// Conditional close: an already-closed session keeps its first duration.
	const q = `
UPDATE study_sessions
SET ended_at = $2, duration_seconds = $3, source = $4
WHERE id = $1 AND ended_at IS NULL
`
	_, err := r.db.ExecContext(ctx, q, sessionID, endedAt, durationSeconds, source)
	return err
}

func (r *PostgresRepo) FindSession(ctx context.Context, sessionID string) (StudySession, bool, error) {
	const q = `
SELECT id, user_id, call_id, started_at, ended_at, duration_seconds, source
FROM study_sessions
WHERE id = $1
`
	var s StudySession
	err := r.db.QueryRowContext(ctx, q, sessionID).Scan(
		&s.ID,
		&s.UserID,
		&s.CallID,
		&s.StartedAt,
		&s.EndedAt,
		&s.DurationSeconds,
		&s.Source,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return StudySession{}, false, nil
		}
		return StudySession{}, false, err
	}
	return s, true, nil
}

func (r *PostgresRepo) SumDurationSeconds(ctx context.Context, userID string, from, to time.Time) (int, error) {
	const q = `
SELECT COALESCE(SUM(duration_seconds), 0)
FROM study_sessions
WHERE user_id = $1 AND ended_at >= $2 AND ended_at < $3
`
	var total int
	if err := r.db.QueryRowContext(ctx, q, userID, from, to).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}
