package room

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"rooms-platform/pkg/utils"

	"github.com/google/uuid"
)

// PostgresRepo implements Repository on database/sql.
//
// Assumed tables:
// - call_sessions      (call_id PK, session_started_at, session_ended_at, is_active)
// - rooms              (id PK, call_id, kind, name, host_id, max_participants,
//                       ended, ended_reason, created_at, ended_at)
// - call_participants  (id PK, call_id, user_id, joined_at, left_at, is_active)
// - room_bans          (id PK, call_id, user_id, host_id, reason, banned_at,
//                       UNIQUE (call_id, user_id))
//
// Terminal transitions are conditional writes; only EndCallSession spans two
// tables and runs in a transaction.

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) UpsertCallSession(ctx context.Context, callID string, startedAt time.Time) error {
	if callID == "" {
		return ErrInvalidArgument
	}
	const q = `
INSERT INTO call_sessions (call_id, session_started_at, is_active)
VALUES ($1, $2, TRUE)
ON CONFLICT (call_id)
DO UPDATE SET session_started_at = EXCLUDED.session_started_at
`
	_, err := r.db.ExecContext(ctx, q, callID, startedAt)
	return err
}

func (r *PostgresRepo) FindCallSession(ctx context.Context, callID string) (CallSession, bool, error) {
	const q = `
SELECT call_id, session_started_at, session_ended_at, is_active
FROM call_sessions
WHERE call_id = $1
`
	var s CallSession
	err := r.db.QueryRowContext(ctx, q, callID).Scan(
		&s.CallID,
		&s.SessionStartedAt,
		&s.SessionEndedAt,
		&s.IsActive,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return CallSession{}, false, nil
		}
		return CallSession{}, false, err
	}
	return s, true, nil
}

func (r *PostgresRepo) EndCallSession(ctx context.Context, callID string, endedAt time.Time) error {
	const endSession = `
UPDATE call_sessions
SET session_ended_at = $2, is_active = FALSE
WHERE call_id = $1 AND is_active
`
	const closeParticipants = `
UPDATE call_participants
SET left_at = $2, is_active = FALSE
WHERE call_id = $1 AND is_active
`
	// The session and its participant cycles must close together, or a crash
	// between the two leaves cycles open on a dead call.
	return utils.WithTx(ctx, r.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, endSession, callID, endedAt); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, closeParticipants, callID, endedAt)
		return err
	})
}

func (r *PostgresRepo) CreateRoom(ctx context.Context, room Room) error {
	if room.CallID == "" || room.HostID == "" {
		return ErrInvalidArgument
	}
	if room.ID == "" {
		room.ID = uuid.NewString()
	}
	const q = `
INSERT INTO rooms (id, call_id, kind, name, host_id, max_participants, ended, ended_reason, created_at)
VALUES ($1,$2,$3,$4,$5,$6,FALSE,'',$7)
ON CONFLICT (call_id, kind) DO NOTHING
`
	res, err := r.db.ExecContext(ctx, q,
		room.ID,
		room.CallID,
		room.Kind,
		room.Name,
		room.HostID,
		room.MaxParticipants,
		room.CreatedAt,
	)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrAlreadyExists
	}
	return nil
}

func (r *PostgresRepo) FindRoomByCallID(ctx context.Context, callID string) (Room, bool, error) {
	const q = `
SELECT id, call_id, kind, name, host_id, max_participants, ended, ended_reason, created_at, ended_at
FROM rooms
WHERE call_id = $1
LIMIT 1
`
	var room Room
	err := r.db.QueryRowContext(ctx, q, callID).Scan(
		&room.ID,
		&room.CallID,
		&room.Kind,
		&room.Name,
		&room.HostID,
		&room.MaxParticipants,
		&room.Ended,
		&room.EndedReason,
		&room.CreatedAt,
		&room.EndedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Room{}, false, nil
		}
		return Room{}, false, err
	}
	return room, true, nil
}

func (r *PostgresRepo) FindActiveRooms(ctx context.Context) ([]Room, error) {
	const q = `
SELECT id, call_id, kind, name, host_id, max_participants, ended, ended_reason, created_at, ended_at
FROM rooms
WHERE NOT ended
ORDER BY created_at DESC
`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Room
	for rows.Next() {
		var room Room
		if err := rows.Scan(
			&room.ID,
			&room.CallID,
			&room.Kind,
			&room.Name,
			&room.HostID,
			&room.MaxParticipants,
			&room.Ended,
			&room.EndedReason,
			&room.CreatedAt,
			&room.EndedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, room)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) EndRoom(ctx context.Context, callID string, reason EndReason, endedAt time.Time) (bool, error) {
	// The single idempotent termination primitive. Whichever path races here
	// first wins; every later application is a no-op.
	const q = `
UPDATE rooms
SET ended = TRUE, ended_reason = $2, ended_at = $3
WHERE call_id = $1 AND NOT ended
`
	res, err := r.db.ExecContext(ctx, q, callID, reason, endedAt)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *PostgresRepo) UpsertParticipant(ctx context.Context, callID, userID string, joinedAt time.Time) error {
	if callID == "" || userID == "" {
		return ErrInvalidArgument
	}
	// Refresh the open cycle when one exists; otherwise open a new one.
	const upd = `
UPDATE call_participants
SET joined_at = $3, left_at = NULL
WHERE call_id = $1 AND user_id = $2 AND is_active
`
	res, err := r.db.ExecContext(ctx, upd, callID, userID, joinedAt)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		return nil
	}
	const ins = `
INSERT INTO call_participants (id, call_id, user_id, joined_at, is_active)
VALUES ($1,$2,$3,$4,TRUE)
`
	_, err = r.db.ExecContext(ctx, ins, uuid.NewString(), callID, userID, joinedAt)
	return err
}

func (r *PostgresRepo) MarkParticipantLeft(ctx context.Context, callID, userID string, leftAt time.Time) (CallParticipant, bool, error) {
	const q = `
UPDATE call_participants
SET left_at = $3, is_active = FALSE
WHERE id = (
  SELECT id FROM call_participants
  WHERE call_id = $1 AND user_id = $2 AND is_active
  ORDER BY joined_at DESC
  LIMIT 1
)
RETURNING id, call_id, user_id, joined_at, left_at, is_active
`
	var p CallParticipant
	err := r.db.QueryRowContext(ctx, q, callID, userID, leftAt).Scan(
		&p.ID,
		&p.CallID,
		&p.UserID,
		&p.JoinedAt,
		&p.LeftAt,
		&p.IsActive,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return CallParticipant{}, false, nil
		}
		return CallParticipant{}, false, err
	}
	return p, true, nil
}

func (r *PostgresRepo) FindActiveParticipants(ctx context.Context, callID string) ([]CallParticipant, error) {
	const q = `
SELECT id, call_id, user_id, joined_at, left_at, is_active
FROM call_participants
WHERE call_id = $1 AND is_active
ORDER BY joined_at
`
	rows, err := r.db.QueryContext(ctx, q, callID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CallParticipant
	for rows.Next() {
		var p CallParticipant
		if err := rows.Scan(&p.ID, &p.CallID, &p.UserID, &p.JoinedAt, &p.LeftAt, &p.IsActive); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) CreateBan(ctx context.Context, b RoomBan) (bool, error) {
	if b.CallID == "" || b.UserID == "" {
		return false, ErrInvalidArgument
	}
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	const q = `
INSERT INTO room_bans (id, call_id, user_id, host_id, reason, banned_at)
VALUES ($1,$2,$3,$4,$5,$6)
ON CONFLICT (call_id, user_id) DO NOTHING
`
	res, err := r.db.ExecContext(ctx, q, b.ID, b.CallID, b.UserID, b.HostID, b.Reason, b.BannedAt)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *PostgresRepo) FindBan(ctx context.Context, callID, userID string) (RoomBan, bool, error) {
	const q = `
SELECT id, call_id, user_id, host_id, reason, banned_at
FROM room_bans
WHERE call_id = $1 AND user_id = $2
LIMIT 1
`
	var b RoomBan
	err := r.db.QueryRowContext(ctx, q, callID, userID).Scan(
		&b.ID,
		&b.CallID,
		&b.UserID,
		&b.HostID,
		&b.Reason,
		&b.BannedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return RoomBan{}, false, nil
		}
		return RoomBan{}, false, err
	}
	return b, true, nil
}
