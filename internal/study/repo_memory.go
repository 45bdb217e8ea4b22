package study

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepo is an in-memory Repository useful for tests.
//
// NOTE: This is not intended for production; replace with Postgres implementation.
type MemoryRepo struct {
	mu       sync.Mutex
	sessions []StudySession
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{} }

func (r *MemoryRepo) CreateSession(ctx context.Context, s StudySession) error {
	if s.UserID == "" || s.CallID == "" {
		return ErrInvalidArgument
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	r.sessions = append(r.sessions, s)
	return nil
}

func (r *MemoryRepo) FindOpenSession(ctx context.Context, userID, callID string) (StudySession, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sessions {
		if s.UserID == userID && s.CallID == callID && s.Open() {
			return s, true, nil
		}
	}
	return StudySession{}, false, nil
}

func (r *MemoryRepo) FindOpenSessionsByCall(ctx context.Context, callID string) ([]StudySession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []StudySession
	for _, s := range r.sessions {
		if s.CallID == callID && s.Open() {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *MemoryRepo) CloseSession(ctx context.Context, sessionID string, endedAt time.Time, durationSeconds int, source DurationSource) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.sessions {
		s := &r.sessions[i]
		if s.ID != sessionID || !s.Open() {
			continue
		}
		t := endedAt
		s.EndedAt = &t
		s.DurationSeconds = durationSeconds
		s.Source = source
		return nil
	}
	return nil
}

func (r *MemoryRepo) FindSession(ctx context.Context, sessionID string) (StudySession, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sessions {
		if s.ID == sessionID {
			return s, true, nil
		}
	}
	return StudySession{}, false, nil
}

func (r *MemoryRepo) SumDurationSeconds(ctx context.Context, userID string, from, to time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	total := 0
	for _, s := range r.sessions {
		if s.UserID != userID || s.Open() {
			continue
		}
		if s.EndedAt.Before(from) || !s.EndedAt.Before(to) {
			continue
		}
		total += s.DurationSeconds
	}
	return total, nil
}

// Sessions returns a copy of all rows, for test assertions.
func (r *MemoryRepo) Sessions() []StudySession {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]StudySession, len(r.sessions))
	copy(out, r.sessions)
	return out
}
