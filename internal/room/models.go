package room

import "time"

// Room is an application-level grouping mapped 1:1 to one provider call id.
// Study-group and compete rooms are structurally identical; Kind keeps them apart.
//
// Lifecycle invariant: Ended transitions false -> true exactly once and is terminal.
// Rooms are never deleted.
type Room struct {
	ID     string `json:"id" db:"id"`
	CallID string `json:"call_id" db:"call_id"`
	Kind   Kind   `json:"kind" db:"kind"`
	Name   string `json:"name" db:"name"`
	HostID string `json:"host_id" db:"host_id"`

	// MaxParticipants of 0 means uncapped.
	MaxParticipants int `json:"max_participants" db:"max_participants"`

	Ended       bool      `json:"ended" db:"ended"`
	EndedReason EndReason `json:"ended_reason,omitempty" db:"ended_reason"`

	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty" db:"ended_at"`
}

type Kind string

const (
	KindStudyGroup Kind = "study_group"
	KindCompete    Kind = "compete"
)

func (k Kind) Valid() bool {
	return k == KindStudyGroup || k == KindCompete
}

// EndReason records which policy terminated a room.
type EndReason string

const (
	EndReasonHostLeft      EndReason = "host_left"
	EndReasonEmpty         EndReason = "empty"
	EndReasonProviderEnded EndReason = "provider_ended"
	EndReasonInactive      EndReason = "inactive"
	EndReasonManual        EndReason = "manual"
)

// CallSession identifies one provider call instance.
//
// Invariants: at most one row per CallID; IsActive=false is terminal. A fresh
// session_started for an already-ended id is treated as an anomaly, not a restart.
type CallSession struct {
	CallID           string     `json:"call_id" db:"call_id"`
	SessionStartedAt time.Time  `json:"session_started_at" db:"session_started_at"`
	SessionEndedAt   *time.Time `json:"session_ended_at,omitempty" db:"session_ended_at"`
	IsActive         bool       `json:"is_active" db:"is_active"`
}

// CallParticipant is one join/leave cycle of a user in a call.
// The same (call_id, user_id) pair accumulates historical rows across rejoins;
// only the latest JoinedAt matters for duration-on-leave computation.
type CallParticipant struct {
	ID     string `json:"id" db:"id"`
	CallID string `json:"call_id" db:"call_id"`
	UserID string `json:"user_id" db:"user_id"`

	JoinedAt time.Time  `json:"joined_at" db:"joined_at"`
	LeftAt   *time.Time `json:"left_at,omitempty" db:"left_at"`
	IsActive bool       `json:"is_active" db:"is_active"`
}

// RoomBan is an append-only denial record for a (user, call) pair.
// Presence of a row is a permanent denial; this subsystem never deletes bans.
type RoomBan struct {
	ID     string `json:"id" db:"id"`
	CallID string `json:"call_id" db:"call_id"`
	UserID string `json:"user_id" db:"user_id"`
	HostID string `json:"host_id" db:"host_id"`
	Reason string `json:"reason,omitempty" db:"reason"`

	BannedAt time.Time `json:"banned_at" db:"banned_at"`
}

// ActiveRoom is the listing projection returned to clients.
type ActiveRoom struct {
	CallID      string   `json:"call_id"`
	Name        string   `json:"room_name"`
	Kind        Kind     `json:"kind"`
	HostID      string   `json:"host_id"`
	MemberCount int      `json:"member_count"`
	Members     []string `json:"members"`
}
