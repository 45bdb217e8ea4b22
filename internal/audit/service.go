package audit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for audit events.
//
// It MUST be append-only.
// No Update/Delete methods are provided by design.

type Repository interface {
	Append(ctx context.Context, e Event) error
}

// Service logs internal audit information.
//
// IMPORTANT:
// - Audit is internal-only; do not surface these records to room members.
// - Callers should treat audit logging as best-effort.

type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

var ErrInvalidEvent = errors.New("audit: invalid event")

func (s *Service) Append(ctx context.Context, e Event) error {
	if s == nil || s.repo == nil {
		// Audit is optional wiring; a nil service is a no-op.
		return nil
	}
	if e.CallID == "" {
		return ErrInvalidEvent
	}
	if e.Type == "" {
		return ErrInvalidEvent
	}

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.clock().UTC()
	}
	return s.repo.Append(ctx, e)
}

// LogRoomEnded records which path terminated a room and why.
func (s *Service) LogRoomEnded(ctx context.Context, callID, cause, message string) error {
	return s.Append(ctx, Event{
		Type:    EventTypeRoomEnded,
		CallID:  callID,
		Cause:   cause,
		Message: message,
	})
}

// LogBan records a host-issued ban.
func (s *Service) LogBan(ctx context.Context, callID, bannedUserID, hostID, reason string) error {
	return s.Append(ctx, Event{
		Type:        EventTypeRoomBan,
		CallID:      callID,
		ActorUserID: hostID,
		Cause:       "host_ban",
		Message:     "user " + bannedUserID + " banned",
		Metadata:    reason,
	})
}
