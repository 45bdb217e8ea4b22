package audit

import "time"

// Event is an immutable, append-only audit record of a lifecycle decision.
//
// Invariants:
// - Events are never updated or deleted.
// - Recording is best-effort; do not block lifecycle transitions on audit failures.
//
// Storage recommendation (Postgres):
// - Table audit_events with an INSERT-only policy.
// - Optional: partition by time for retention.

type Event struct {
	ID string `json:"id" db:"id"`

	// Type indicates the business category of the audit record.
	Type EventType `json:"type" db:"type"`

	// CallID correlates the event with the provider call.
	CallID string `json:"call_id" db:"call_id"`

	// ActorUserID is the user that caused the event, when one exists.
	// Reconciler- and webhook-driven terminations have no actor.
	ActorUserID string `json:"actor_user_id,omitempty" db:"actor_user_id"`

	// Cause is the machine-readable reason (host_left, empty, provider_ended, inactive, ...).
	Cause string `json:"cause,omitempty" db:"cause"`

	// Message is a short human-readable description for internal ops.
	Message string `json:"message,omitempty" db:"message"`

	// Metadata is optional JSON for full details.
	Metadata string `json:"metadata,omitempty" db:"metadata"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type EventType string

const (
	EventTypeRoomEnded EventType = "room_ended"
	EventTypeRoomBan   EventType = "room_ban"
)
