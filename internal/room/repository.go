package room

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound        = errors.New("room: not found")
	ErrInvalidArgument = errors.New("room: invalid argument")
	ErrAlreadyExists   = errors.New("room: already exists")
	ErrCallEnded       = errors.New("room: call already ended")
)

// Repository abstracts room-store persistence.
//
// Every mutation is a single-row upsert or an update-many-by-filter the store
// serializes per document. Terminal transitions (EndRoom, EndCallSession,
// CreateBan) are conditional writes that report whether this caller applied
// the transition, which is what makes the webhook and reconciler paths safe
// to race against each other.
type Repository interface {
	// UpsertCallSession creates or refreshes the session row for callID.
	// Re-applying only refreshes the start timestamp.
	UpsertCallSession(ctx context.Context, callID string, startedAt time.Time) error
	FindCallSession(ctx context.Context, callID string) (CallSession, bool, error)
	// EndCallSession marks the session inactive and closes any still-open
	// participant cycles for the call. No-op when already ended.
	EndCallSession(ctx context.Context, callID string, endedAt time.Time) error

	CreateRoom(ctx context.Context, r Room) error
	FindRoomByCallID(ctx context.Context, callID string) (Room, bool, error)
	// FindActiveRooms returns rooms with ended=false, all kinds.
	FindActiveRooms(ctx context.Context) ([]Room, error)
	// EndRoom sets ended=true on every non-ended room row for callID.
	// Returns true when this call applied the transition, false when the
	// room was already terminal (or unknown).
	EndRoom(ctx context.Context, callID string, reason EndReason, endedAt time.Time) (bool, error)

	// UpsertParticipant opens a join cycle: refreshes an existing active row or
	// inserts a new one with left_at cleared.
	UpsertParticipant(ctx context.Context, callID, userID string, joinedAt time.Time) error
	// MarkParticipantLeft closes the latest active cycle and returns it.
	// ok=false when no active row exists (leave delivered before join).
	MarkParticipantLeft(ctx context.Context, callID, userID string, leftAt time.Time) (CallParticipant, bool, error)
	FindActiveParticipants(ctx context.Context, callID string) ([]CallParticipant, error)

	// CreateBan inserts the ban unless one already exists for (callID, userID).
	// Returns true when this call created the row.
	CreateBan(ctx context.Context, b RoomBan) (bool, error)
	FindBan(ctx context.Context, callID, userID string) (RoomBan, bool, error)
}
