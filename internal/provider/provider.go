package provider

import (
	"context"
	"errors"
	"time"
)

// CallProvider defines the provider-agnostic interface used by business logic.
//
// Rules:
// - No provider SDK or HTTP calls outside this package.
// - Keep request/response types provider-agnostic; raw payloads stay in the adapter.
// - Callers must treat every method as a remote call that can fail or lag; the
//   provider is rate-sensitive and occasionally serves stale reads.
type CallProvider interface {
	Name() string
	HealthCheck(ctx context.Context) error

	// GetCall fetches the current state of a single call.
	// Returns ErrCallNotFound when the provider has no record of the id.
	GetCall(ctx context.Context, callID string) (CallState, error)

	// QueryCalls fetches state for a set of call ids in one round trip.
	// Ids unknown to the provider are simply absent from the result.
	QueryCalls(ctx context.Context, callIDs []string) ([]CallState, error)

	// RemoveMembers removes users from a call's member list.
	RemoveMembers(ctx context.Context, callID string, userIDs []string) error

	// BlockUser blocks a user at the provider, the redundant removal path.
	BlockUser(ctx context.Context, callID, userID string) error

	// UpdateCallCustom merges key/values into the call's custom metadata.
	// Connected clients observe custom-state changes in realtime.
	UpdateCallCustom(ctx context.Context, callID string, custom map[string]any) error

	// EndCall ends the call for everyone.
	EndCall(ctx context.Context, callID string) error
}

// ErrCallNotFound signals the provider has no record of the requested call.
var ErrCallNotFound = errors.New("provider: call not found")

// Member is one entry in a call's member list.
type Member struct {
	UserID   string `json:"user_id"`
	ImageURL string `json:"image_url,omitempty"`
}

// CallState is a provider-agnostic snapshot of one call.
type CallState struct {
	CallID string `json:"call_id"`

	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`

	// DurationSeconds is the provider's authoritative duration.
	// Zero means the provider has not finalized it yet, not zero elapsed.
	DurationSeconds int `json:"duration_seconds"`

	Members []Member `json:"members"`
}

// Ended reports whether the provider considers the call over.
func (s CallState) Ended() bool {
	return s.EndedAt != nil && !s.EndedAt.IsZero()
}

// HasMember reports whether userID appears in the member list.
func (s CallState) HasMember(userID string) bool {
	for _, m := range s.Members {
		if m.UserID == userID {
			return true
		}
	}
	return false
}

// MemberImages returns the member avatar references for display.
// Missing images are kept as empty strings so callers can render placeholders.
func (s CallState) MemberImages() []string {
	out := make([]string, 0, len(s.Members))
	for _, m := range s.Members {
		out = append(out, m.ImageURL)
	}
	return out
}
