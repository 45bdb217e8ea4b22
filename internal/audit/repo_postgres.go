package audit

import (
	"context"
	"database/sql"
)

// PostgresRepo persists audit events.
//
// Schema:
// CREATE TABLE audit_events (
//   id            TEXT PRIMARY KEY,
//   type          TEXT NOT NULL,
//   call_id       TEXT NOT NULL,
//   actor_user_id TEXT NOT NULL DEFAULT '',
//   cause         TEXT NOT NULL DEFAULT '',
//   message       TEXT NOT NULL DEFAULT '',
//   metadata      TEXT NOT NULL DEFAULT '',
//   created_at    TIMESTAMPTZ NOT NULL
// );

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) Append(ctx context.Context, e Event) error {
	const q = `
INSERT INTO audit_events (id, type, call_id, actor_user_id, cause, message, metadata, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
`
	_, err := r.db.ExecContext(ctx, q,
		e.ID,
		e.Type,
		e.CallID,
		e.ActorUserID,
		e.Cause,
		e.Message,
		e.Metadata,
		e.CreatedAt,
	)
	return err
}
