package room

import (
	"context"
	"time"

	"rooms-platform/internal/audit"
	"rooms-platform/pkg/logger"

	"github.com/google/uuid"
)

// Service owns room lifecycle transitions.
//
// It is stateless between invocations: every decision re-reads the store.
// Termination runs through the one idempotent EndRoom primitive so that the
// webhook path and the reconciler path converge on the same terminal state
// regardless of which fires first.
type Service struct {
	repo  Repository
	audit *audit.Service
	clock func() time.Time
}

func NewService(repo Repository, auditSvc *audit.Service) *Service {
	return &Service{repo: repo, audit: auditSvc, clock: time.Now}
}

// WithClock overrides the service clock. Test use only.
func (s *Service) WithClock(clock func() time.Time) *Service {
	s.clock = clock
	return s
}

type CreateRoomRequest struct {
	CallID          string `json:"call_id"`
	Kind            Kind   `json:"kind"`
	Name            string `json:"room_name"`
	HostID          string `json:"host_id"`
	MaxParticipants int    `json:"max_participants,omitempty"`
}

// CreateRoom persists a new room in Active state.
func (s *Service) CreateRoom(ctx context.Context, req CreateRoomRequest) (Room, error) {
	if req.CallID == "" || req.HostID == "" || req.Name == "" {
		return Room{}, ErrInvalidArgument
	}
	if req.Kind == "" {
		req.Kind = KindStudyGroup
	}
	if !req.Kind.Valid() {
		return Room{}, ErrInvalidArgument
	}
	if req.MaxParticipants < 0 {
		return Room{}, ErrInvalidArgument
	}

	// A room must wrap a call that can still be joined. A terminal call
	// session would leave the room stuck until the reconciler reaps it.
	if sess, ok, err := s.repo.FindCallSession(ctx, req.CallID); err != nil {
		return Room{}, err
	} else if ok && !sess.IsActive {
		return Room{}, ErrCallEnded
	}

	r := Room{
		ID:              uuid.NewString(),
		CallID:          req.CallID,
		Kind:            req.Kind,
		Name:            req.Name,
		HostID:          req.HostID,
		MaxParticipants: req.MaxParticipants,
		CreatedAt:       s.clock().UTC(),
	}
	if err := s.repo.CreateRoom(ctx, r); err != nil {
		return Room{}, err
	}
	return r, nil
}

// EndRoom applies the terminal transition for every room bound to callID.
// Safe to call any number of times from any path; only the first application
// reports applied=true and emits an audit record.
func (s *Service) EndRoom(ctx context.Context, callID string, reason EndReason) (bool, error) {
	if callID == "" {
		return false, ErrInvalidArgument
	}
	applied, err := s.repo.EndRoom(ctx, callID, reason, s.clock().UTC())
	if err != nil {
		return false, err
	}
	if applied {
		if aerr := s.audit.LogRoomEnded(ctx, callID, string(reason), "room terminated"); aerr != nil {
			logger.From(ctx).Warn("audit append failed", "call_id", callID, "err", aerr)
		}
	}
	return applied, nil
}

// IsUserAllowed reports whether userID may join or remain in callID.
// A ban row is a permanent denial, even while the provider still shows the
// user connected.
func (s *Service) IsUserAllowed(ctx context.Context, callID, userID string) (bool, error) {
	if callID == "" || userID == "" {
		return false, ErrInvalidArgument
	}
	_, banned, err := s.repo.FindBan(ctx, callID, userID)
	if err != nil {
		return false, err
	}
	return !banned, nil
}
