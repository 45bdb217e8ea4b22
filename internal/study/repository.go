package study

import (
	"context"
	"errors"
	"time"
)

var (
	ErrInvalidArgument = errors.New("study: invalid argument")
	ErrNoOpenSession   = errors.New("study: no open session")
)

// Repository abstracts study-session persistence.
type Repository interface {
	CreateSession(ctx context.Context, s StudySession) error
	// FindOpenSession returns the open session for (userID, callID), if any.
	FindOpenSession(ctx context.Context, userID, callID string) (StudySession, bool, error)
	FindOpenSessionsByCall(ctx context.Context, callID string) ([]StudySession, error)
	// CloseSession finalizes a session. No-op when already closed.
	CloseSession(ctx context.Context, sessionID string, endedAt time.Time, durationSeconds int, source DurationSource) error
	FindSession(ctx context.Context, sessionID string) (StudySession, bool, error)
	// SumDurationSeconds sums closed-session durations for sessions ended in [from, to).
	SumDurationSeconds(ctx context.Context, userID string, from, to time.Time) (int, error)
}
