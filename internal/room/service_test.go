package room

import (
	"context"
	"errors"
	"testing"
	"time"

	"rooms-platform/internal/audit"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestService_CreateRoom_Validation(t *testing.T) {
	svc := NewService(NewMemoryRepo(), nil)

	if _, err := svc.CreateRoom(context.Background(), CreateRoomRequest{Name: "r", HostID: "h"}); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for missing call id, got %v", err)
	}
	if _, err := svc.CreateRoom(context.Background(), CreateRoomRequest{CallID: "c", Name: "r"}); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for missing host, got %v", err)
	}
	if _, err := svc.CreateRoom(context.Background(), CreateRoomRequest{CallID: "c", Name: "r", HostID: "h", Kind: "karaoke"}); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for bad kind, got %v", err)
	}
}

func TestService_CreateRoom_DefaultsToStudyGroup(t *testing.T) {
	svc := NewService(NewMemoryRepo(), nil)

	r, err := svc.CreateRoom(context.Background(), CreateRoomRequest{CallID: "c1", Name: "algebra", HostID: "h1"})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if r.Kind != KindStudyGroup {
		t.Fatalf("expected study_group default, got %q", r.Kind)
	}
	if r.Ended {
		t.Fatalf("new room must start active")
	}
}

func TestService_CreateRoom_DeniesEndedCall(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo, nil)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	if err := repo.UpsertCallSession(context.Background(), "c1", now); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if err := repo.EndCallSession(context.Background(), "c1", now.Add(time.Minute)); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	_, err := svc.CreateRoom(context.Background(), CreateRoomRequest{CallID: "c1", Name: "a", HostID: "h1"})
	if !errors.Is(err, ErrCallEnded) {
		t.Fatalf("expected ErrCallEnded, got %v", err)
	}

	// A live session is fine.
	if err := repo.UpsertCallSession(context.Background(), "c2", now); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if _, err := svc.CreateRoom(context.Background(), CreateRoomRequest{CallID: "c2", Name: "a", HostID: "h1"}); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
}

func TestService_CreateRoom_RejectsDuplicateCall(t *testing.T) {
	svc := NewService(NewMemoryRepo(), nil)

	if _, err := svc.CreateRoom(context.Background(), CreateRoomRequest{CallID: "c1", Name: "a", HostID: "h1"}); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	_, err := svc.CreateRoom(context.Background(), CreateRoomRequest{CallID: "c1", Name: "b", HostID: "h2"})
	if !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestService_EndRoom_IdempotentWithSingleAuditRecord(t *testing.T) {
	repo := NewMemoryRepo()
	auditRepo := audit.NewMemoryRepo()
	svc := NewService(repo, audit.NewService(auditRepo))

	if _, err := svc.CreateRoom(context.Background(), CreateRoomRequest{CallID: "c1", Name: "a", HostID: "h1"}); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	applied, err := svc.EndRoom(context.Background(), "c1", EndReasonEmpty)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if !applied {
		t.Fatalf("expected first termination to apply")
	}

	applied, err = svc.EndRoom(context.Background(), "c1", EndReasonHostLeft)
	if err != nil {
		t.Fatalf("second termination must not error, got %v", err)
	}
	if applied {
		t.Fatalf("expected second termination to be a no-op")
	}

	r, ok, _ := repo.FindRoomByCallID(context.Background(), "c1")
	if !ok || !r.Ended {
		t.Fatalf("expected room ended")
	}
	if r.EndedReason != EndReasonEmpty {
		t.Fatalf("first reason must win, got %q", r.EndedReason)
	}
	if evs := auditRepo.Events(); len(evs) != 1 {
		t.Fatalf("expected exactly one audit record, got %d", len(evs))
	}
}

func TestService_IsUserAllowed_DeniesBanned(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo, nil)

	allowed, err := svc.IsUserAllowed(context.Background(), "c1", "u1")
	if err != nil || !allowed {
		t.Fatalf("expected allowed before ban, got %v %v", allowed, err)
	}

	if _, err := repo.CreateBan(context.Background(), RoomBan{CallID: "c1", UserID: "u1", HostID: "h1", BannedAt: time.Now()}); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	allowed, err = svc.IsUserAllowed(context.Background(), "c1", "u1")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if allowed {
		t.Fatalf("expected denial after ban")
	}
}
