package study

import (
	"context"
	"errors"
	"time"

	"rooms-platform/internal/provider"
	"rooms-platform/pkg/logger"

	"github.com/google/uuid"
)

// Service tracks per-user, per-call study time.
//
// Duration discipline: the provider's reported duration is authoritative and
// preferred; the locally measured join/leave delta is the fallback. A provider
// duration of exactly 0 means "not finalized yet", never "zero elapsed".
type Service struct {
	repo     Repository
	provider provider.CallProvider
	clock    func() time.Time
}

func NewService(repo Repository, p provider.CallProvider) *Service {
	return &Service{repo: repo, provider: p, clock: time.Now}
}

// WithClock overrides the service clock. Test use only.
func (s *Service) WithClock(clock func() time.Time) *Service {
	s.clock = clock
	return s
}

// Start opens a study session unless one is already open for (userID, callID).
// Idempotent by design: double starts without an intervening End must not
// create a second open row, or daily totals would double count.
func (s *Service) Start(ctx context.Context, userID, callID string) (StudySession, error) {
	if userID == "" || callID == "" {
		return StudySession{}, ErrInvalidArgument
	}
	if open, ok, err := s.repo.FindOpenSession(ctx, userID, callID); err != nil {
		return StudySession{}, err
	} else if ok {
		return open, nil
	}

	sess := StudySession{
		ID:        uuid.NewString(),
		UserID:    userID,
		CallID:    callID,
		StartedAt: s.clock().UTC(),
	}
	if err := s.repo.CreateSession(ctx, sess); err != nil {
		return StudySession{}, err
	}
	return sess, nil
}

// End closes the open session, preferring the provider's authoritative
// duration and falling back to the locally measured delta.
func (s *Service) End(ctx context.Context, userID, callID string) (StudySession, error) {
	if userID == "" || callID == "" {
		return StudySession{}, ErrInvalidArgument
	}
	open, ok, err := s.repo.FindOpenSession(ctx, userID, callID)
	if err != nil {
		return StudySession{}, err
	}
	if !ok {
		return StudySession{}, ErrNoOpenSession
	}
	now := s.clock().UTC()
	return s.finish(ctx, open, now, localSeconds(open.StartedAt, now))
}

// EndWithFallback closes the open session using an externally measured local
// delta (the participant row's latest join) instead of the session clock.
// Used by the webhook leave path.
func (s *Service) EndWithFallback(ctx context.Context, userID, callID string, fallbackSeconds int) (StudySession, error) {
	if userID == "" || callID == "" {
		return StudySession{}, ErrInvalidArgument
	}
	open, ok, err := s.repo.FindOpenSession(ctx, userID, callID)
	if err != nil {
		return StudySession{}, err
	}
	if !ok {
		return StudySession{}, ErrNoOpenSession
	}
	if fallbackSeconds < 0 {
		fallbackSeconds = 0
	}
	return s.finish(ctx, open, s.clock().UTC(), fallbackSeconds)
}

// EndAllForCall closes every still-open session for callID with locally
// measured durations. Used when the provider reports the whole session over.
func (s *Service) EndAllForCall(ctx context.Context, callID string) error {
	if callID == "" {
		return ErrInvalidArgument
	}
	open, err := s.repo.FindOpenSessionsByCall(ctx, callID)
	if err != nil {
		return err
	}
	now := s.clock().UTC()
	for _, sess := range open {
		if err := s.repo.CloseSession(ctx, sess.ID, now, localSeconds(sess.StartedAt, now), SourceLocal); err != nil {
			logger.From(ctx).Warn("study session close failed", "session_id", sess.ID, "err", err)
		}
	}
	return nil
}

// DailyTotal sums closed-session durations for one UTC date.
func (s *Service) DailyTotal(ctx context.Context, userID string, date time.Time) (DailyTotal, error) {
	if userID == "" {
		return DailyTotal{}, ErrInvalidArgument
	}
	if date.IsZero() {
		date = s.clock()
	}
	from := time.Date(date.UTC().Year(), date.UTC().Month(), date.UTC().Day(), 0, 0, 0, 0, time.UTC)
	to := from.Add(24 * time.Hour)

	seconds, err := s.repo.SumDurationSeconds(ctx, userID, from, to)
	if err != nil {
		return DailyTotal{}, err
	}
	return DailyTotal{
		UserID:  userID,
		Date:    from.Format("2006-01-02"),
		Seconds: seconds,
		Minutes: seconds / 60,
		Hours:   float64(seconds) / 3600,
	}, nil
}

// finish resolves the duration and closes the session.
func (s *Service) finish(ctx context.Context, open StudySession, endedAt time.Time, fallbackSeconds int) (StudySession, error) {
	duration := fallbackSeconds
	source := SourceLocal

	state, err := s.provider.GetCall(ctx, open.CallID)
	switch {
	case errors.Is(err, provider.ErrCallNotFound):
		// Call already gone at the provider; keep the local measurement.
	case err != nil:
		logger.From(ctx).Warn("provider duration lookup failed, using local delta",
			"call_id", open.CallID, "err", err)
	case state.DurationSeconds > 0:
		duration = state.DurationSeconds
		source = SourceProvider
	}

	if duration < 0 {
		duration = 0
	}
	if err := s.repo.CloseSession(ctx, open.ID, endedAt, duration, source); err != nil {
		return StudySession{}, err
	}
	closed, ok, err := s.repo.FindSession(ctx, open.ID)
	if err != nil {
		return StudySession{}, err
	}
	if !ok {
		return StudySession{}, ErrNoOpenSession
	}
	return closed, nil
}

func localSeconds(from, to time.Time) int {
	d := to.Sub(from)
	if d < 0 {
		return 0
	}
	return int(d.Seconds())
}
