package room

import (
	"context"
	"errors"
	"testing"
	"time"

	"rooms-platform/internal/provider"
)

func newTestReconciler(t *testing.T, repo *MemoryRepo, fake *provider.Fake, now time.Time) *Reconciler {
	t.Helper()
	svc := NewService(repo, nil).WithClock(fixedClock(now))
	return NewReconciler(repo, fake, svc, 5*time.Minute).WithClock(fixedClock(now))
}

func seedRoom(t *testing.T, repo *MemoryRepo, callID, hostID string, cap int) {
	t.Helper()
	err := repo.CreateRoom(context.Background(), Room{
		CallID:          callID,
		Kind:            KindStudyGroup,
		Name:            "room " + callID,
		HostID:          hostID,
		MaxParticipants: cap,
		CreatedAt:       time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("seed room: %v", err)
	}
}

func liveCall(callID string, updatedAt time.Time, members ...provider.Member) provider.CallState {
	return provider.CallState{CallID: callID, UpdatedAt: updatedAt, Members: members}
}

func TestReconciler_TerminatesRoomWithZeroMembers(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	repo := NewMemoryRepo()
	fake := provider.NewFake()
	seedRoom(t, repo, "c1", "h1", 0)
	fake.SetCall(liveCall("c1", now))

	out, err := newTestReconciler(t, repo, fake, now).ListActiveRooms(context.Background())
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(out) != 0 {
		t.Fatalf("expected empty listing, got %v", out)
	}
	r, _, _ := repo.FindRoomByCallID(context.Background(), "c1")
	if !r.Ended || r.EndedReason != EndReasonEmpty {
		t.Fatalf("expected room ended as empty, got %+v", r)
	}
	if len(fake.Ended) != 1 || fake.Ended[0] != "c1" {
		t.Fatalf("a live but empty call must be ended provider-side, got %v", fake.Ended)
	}
}

func TestReconciler_TerminatesWhenProviderReportsEnded(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	repo := NewMemoryRepo()
	fake := provider.NewFake()
	seedRoom(t, repo, "c1", "h1", 0)
	ended := now.Add(-time.Minute)
	fake.SetCall(provider.CallState{
		CallID:    "c1",
		UpdatedAt: now,
		EndedAt:   &ended,
		Members:   []provider.Member{{UserID: "h1"}},
	})

	out, err := newTestReconciler(t, repo, fake, now).ListActiveRooms(context.Background())
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(out) != 0 {
		t.Fatalf("expected empty listing")
	}
	r, _, _ := repo.FindRoomByCallID(context.Background(), "c1")
	if !r.Ended || r.EndedReason != EndReasonProviderEnded {
		t.Fatalf("expected provider_ended, got %+v", r)
	}
	if len(fake.Ended) != 0 {
		t.Fatalf("an already-ended call must not be ended again, got %v", fake.Ended)
	}
}

func TestReconciler_TerminatesWhenCallUnknownToProvider(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	repo := NewMemoryRepo()
	fake := provider.NewFake()
	seedRoom(t, repo, "ghost", "h1", 0)

	out, err := newTestReconciler(t, repo, fake, now).ListActiveRooms(context.Background())
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(out) != 0 {
		t.Fatalf("expected empty listing")
	}
	r, _, _ := repo.FindRoomByCallID(context.Background(), "ghost")
	if !r.Ended {
		t.Fatalf("expected unknown call terminated")
	}
}

func TestReconciler_TerminatesWhenHostAbsent(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	repo := NewMemoryRepo()
	fake := provider.NewFake()
	seedRoom(t, repo, "c1", "h1", 0)
	fake.SetCall(liveCall("c1", now, provider.Member{UserID: "u2"}))

	out, err := newTestReconciler(t, repo, fake, now).ListActiveRooms(context.Background())
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(out) != 0 {
		t.Fatalf("expected empty listing")
	}
	r, _, _ := repo.FindRoomByCallID(context.Background(), "c1")
	if !r.Ended || r.EndedReason != EndReasonHostLeft {
		t.Fatalf("expected host_left termination, got %+v", r)
	}
	if len(fake.Ended) != 1 || fake.Ended[0] != "c1" {
		t.Fatalf("an orphaned call must be ended provider-side, got %v", fake.Ended)
	}
}

func TestReconciler_FullRoomExcludedButNotTerminated(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	repo := NewMemoryRepo()
	fake := provider.NewFake()
	seedRoom(t, repo, "c1", "h1", 2)
	fake.SetCall(liveCall("c1", now, provider.Member{UserID: "h1"}, provider.Member{UserID: "u2"}))

	rec := newTestReconciler(t, repo, fake, now)

	out, err := rec.ListActiveRooms(context.Background())
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(out) != 0 {
		t.Fatalf("full room must be excluded, got %v", out)
	}
	r, _, _ := repo.FindRoomByCallID(context.Background(), "c1")
	if r.Ended {
		t.Fatalf("full room must not be terminated")
	}

	// A seat opens: the room reappears.
	fake.SetCall(liveCall("c1", now, provider.Member{UserID: "h1"}))
	out, err = rec.ListActiveRooms(context.Background())
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(out) != 1 || out[0].CallID != "c1" {
		t.Fatalf("expected room to reappear, got %v", out)
	}
}

func TestReconciler_TerminatesInactiveRoom(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	repo := NewMemoryRepo()
	fake := provider.NewFake()
	seedRoom(t, repo, "c1", "h1", 0)
	fake.SetCall(liveCall("c1", now.Add(-6*time.Minute), provider.Member{UserID: "h1"}))

	out, err := newTestReconciler(t, repo, fake, now).ListActiveRooms(context.Background())
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(out) != 0 {
		t.Fatalf("expected empty listing")
	}
	r, _, _ := repo.FindRoomByCallID(context.Background(), "c1")
	if !r.Ended || r.EndedReason != EndReasonInactive {
		t.Fatalf("expected inactive termination, got %+v", r)
	}
}

func TestReconciler_ListsHealthyRoomWithMembers(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	repo := NewMemoryRepo()
	fake := provider.NewFake()
	seedRoom(t, repo, "c1", "h1", 5)
	fake.SetCall(liveCall("c1", now.Add(-time.Minute),
		provider.Member{UserID: "h1", ImageURL: "http://img/h1"},
		provider.Member{UserID: "u2"},
	))

	out, err := newTestReconciler(t, repo, fake, now).ListActiveRooms(context.Background())
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected one room, got %d", len(out))
	}
	got := out[0]
	if got.MemberCount != 2 {
		t.Fatalf("expected member count 2, got %d", got.MemberCount)
	}
	if len(got.Members) != 2 || got.Members[0] != "http://img/h1" || got.Members[1] != "" {
		t.Fatalf("unexpected member images: %v", got.Members)
	}
}

func TestReconciler_ProviderFailureListsWithoutCorrection(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	repo := NewMemoryRepo()
	fake := provider.NewFake()
	fake.QueryCallsErr = errors.New("rate limited")
	seedRoom(t, repo, "c1", "h1", 0)

	out, err := newTestReconciler(t, repo, fake, now).ListActiveRooms(context.Background())
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(out) != 1 || out[0].CallID != "c1" {
		t.Fatalf("expected stored view listed as-is, got %v", out)
	}
	r, _, _ := repo.FindRoomByCallID(context.Background(), "c1")
	if r.Ended {
		t.Fatalf("room must not be terminated while the provider is unreachable")
	}
}
