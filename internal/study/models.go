package study

import "time"

// StudySession is one join-to-leave (or join-to-session-end) interval of study
// time for a user in a call. Daily totals are a plain sum over closed rows, so
// the tracker must never leave two open sessions for the same (user, call).
type StudySession struct {
	ID     string `json:"id" db:"id"`
	UserID string `json:"user_id" db:"user_id"`
	CallID string `json:"call_id" db:"call_id"`

	StartedAt time.Time  `json:"started_at" db:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty" db:"ended_at"`

	// DurationSeconds is authoritative once the session is closed.
	DurationSeconds int `json:"duration_seconds" db:"duration_seconds"`

	// Source records where the closed duration came from.
	Source DurationSource `json:"source,omitempty" db:"source"`
}

func (s StudySession) Open() bool { return s.EndedAt == nil }

// DurationSource tags whether the provider or the local clock supplied the duration.
type DurationSource string

const (
	SourceProvider DurationSource = "provider"
	SourceLocal    DurationSource = "local"
)

// DailyTotal is the accumulated study time for one user on one date.
type DailyTotal struct {
	UserID  string  `json:"user_id"`
	Date    string  `json:"date"` // YYYY-MM-DD, UTC
	Seconds int     `json:"seconds"`
	Minutes int     `json:"minutes"`
	Hours   float64 `json:"hours"`
}
