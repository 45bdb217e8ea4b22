package webhook

import (
	"strconv"
	"strings"
	"time"
)

// Event is the provider-pushed lifecycle envelope.
//
// The provider is loose about where identifiers live: the call id may arrive in
// call.id, call.cid ("default:<id>") or the top-level call_cid; the user id may
// arrive in participant.user_id or participant.user.id. Accessors below
// normalize all of it.
type Event struct {
	Type string `json:"type"`

	CallCID     string            `json:"call_cid,omitempty"`
	Call        *EventCall        `json:"call,omitempty"`
	Participant *EventParticipant `json:"participant,omitempty"`
	User        *EventUser        `json:"user,omitempty"`

	CreatedAt time.Time `json:"created_at,omitempty"`

	Duration        int `json:"duration,omitempty"`
	DurationSeconds int `json:"duration_seconds,omitempty"`
}

type EventCall struct {
	ID        string     `json:"id,omitempty"`
	CID       string     `json:"cid,omitempty"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

type EventParticipant struct {
	UserID string     `json:"user_id,omitempty"`
	User   *EventUser `json:"user,omitempty"`
}

type EventUser struct {
	ID string `json:"id,omitempty"`
}

// CallID extracts the call identifier from whichever field carries it.
func (e Event) CallID() string {
	if e.Call != nil {
		if e.Call.ID != "" {
			return e.Call.ID
		}
		if e.Call.CID != "" {
			return stripCallType(e.Call.CID)
		}
	}
	return stripCallType(e.CallCID)
}

// UserID extracts the participant's user id, empty when the event has none.
func (e Event) UserID() string {
	if e.Participant != nil {
		if e.Participant.UserID != "" {
			return e.Participant.UserID
		}
		if e.Participant.User != nil {
			return e.Participant.User.ID
		}
	}
	if e.User != nil {
		return e.User.ID
	}
	return ""
}

// DedupKey identifies one delivery for at-least-once suppression.
func (e Event) DedupKey() string {
	return strings.Join([]string{
		e.Type,
		e.CallID(),
		e.UserID(),
		strconv.FormatInt(e.CreatedAt.UnixNano(), 10),
	}, "|")
}

// stripCallType turns "default:abc" into "abc".
func stripCallType(cid string) string {
	if i := strings.IndexByte(cid, ':'); i >= 0 {
		return cid[i+1:]
	}
	return cid
}
