package room

import (
	"context"
	"errors"
	"testing"
	"time"

	"rooms-platform/internal/audit"
	"rooms-platform/internal/provider"
)

// newTestEnforcer wires a BanEnforcer with a synchronous spawn and a no-op
// sleep so enforcement runs to completion inside the test.
func newTestEnforcer(repo Repository, fake *provider.Fake, auditRepo *audit.MemoryRepo) *BanEnforcer {
	e := NewBanEnforcer(repo, fake, audit.NewService(auditRepo), nil, RetryPolicy{
		MaxAttempts:   3,
		BaseDelay:     time.Millisecond,
		MaxDelay:      time.Millisecond,
		TotalDeadline: time.Minute,
	})
	e.spawn = func(f func()) { f() }
	e.sleep = func(ctx context.Context, d time.Duration) error { return nil }
	e.clock = fixedClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	return e
}

func TestBan_RejectsSelfBanAndMissingFields(t *testing.T) {
	e := newTestEnforcer(NewMemoryRepo(), provider.NewFake(), audit.NewMemoryRepo())

	if _, err := e.Ban(context.Background(), BanRequest{CallID: "c1", UserID: "h1", HostID: "h1"}); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("self-ban: want ErrInvalidArgument, got %v", err)
	}
	if _, err := e.Ban(context.Background(), BanRequest{CallID: "c1", UserID: "u1"}); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("missing host: want ErrInvalidArgument, got %v", err)
	}
}

func TestBan_SucceedsWhenProviderIsDown(t *testing.T) {
	repo := NewMemoryRepo()
	fake := provider.NewFake()
	fake.GetCallErr = errors.New("provider down")
	fake.RemoveMembersErr = errors.New("provider down")
	fake.BlockUserErr = errors.New("provider down")
	fake.UpdateCustomErr = errors.New("provider down")
	e := newTestEnforcer(repo, fake, audit.NewMemoryRepo())

	b, err := e.Ban(context.Background(), BanRequest{CallID: "c1", UserID: "u1", HostID: "h1", Reason: "spam"})
	if err != nil {
		t.Fatalf("ban must succeed despite provider failures: %v", err)
	}
	if b.ID == "" || b.CallID != "c1" || b.UserID != "u1" {
		t.Fatalf("unexpected ban row: %+v", b)
	}
	if _, ok, _ := repo.FindBan(context.Background(), "c1", "u1"); !ok {
		t.Fatalf("ban row must be persisted")
	}
}

func TestBan_IdempotentReturnsExistingRow(t *testing.T) {
	repo := NewMemoryRepo()
	fake := provider.NewFake()
	fake.SetCall(provider.CallState{CallID: "c1"})
	e := newTestEnforcer(repo, fake, audit.NewMemoryRepo())

	first, err := e.Ban(context.Background(), BanRequest{CallID: "c1", UserID: "u1", HostID: "h1"})
	if err != nil {
		t.Fatalf("first ban: %v", err)
	}
	removedAfterFirst := len(fake.Removed)

	second, err := e.Ban(context.Background(), BanRequest{CallID: "c1", UserID: "u1", HostID: "h2"})
	if err != nil {
		t.Fatalf("second ban: %v", err)
	}
	if second.ID != first.ID || second.HostID != first.HostID {
		t.Fatalf("re-ban must return the original row, got %+v want %+v", second, first)
	}
	if len(fake.Removed) != removedAfterFirst {
		t.Fatalf("re-ban must not spawn a second enforcement pass")
	}
}

func TestBan_EnforcementStopsOnceUserIsGone(t *testing.T) {
	repo := NewMemoryRepo()
	fake := provider.NewFake()
	fake.SetCall(provider.CallState{CallID: "c1", Members: []provider.Member{
		{UserID: "h1"}, {UserID: "u1"},
	}})
	e := newTestEnforcer(repo, fake, audit.NewMemoryRepo())

	if _, err := e.Ban(context.Background(), BanRequest{CallID: "c1", UserID: "u1", HostID: "h1"}); err != nil {
		t.Fatalf("ban: %v", err)
	}
	// Removal succeeded on the first pass, so verification passes and the
	// escalation paths never fire.
	if len(fake.Removed) != 1 || fake.Removed[0] != "c1/u1" {
		t.Fatalf("expected exactly one removal, got %v", fake.Removed)
	}
	if len(fake.Blocked) != 0 {
		t.Fatalf("block must not run once the user is already gone")
	}
	if len(fake.Customs) != 0 {
		t.Fatalf("marker must not be published once the user is already gone")
	}
}

func TestBan_StickyMemberTriggersMarkerBlockAndRetries(t *testing.T) {
	repo := NewMemoryRepo()
	fake := provider.NewFake()
	fake.RemoveSticky = true
	fake.SetCall(provider.CallState{CallID: "c1", Members: []provider.Member{
		{UserID: "h1"}, {UserID: "u1"},
	}})
	e := newTestEnforcer(repo, fake, audit.NewMemoryRepo())

	if _, err := e.Ban(context.Background(), BanRequest{CallID: "c1", UserID: "u1", HostID: "h1"}); err != nil {
		t.Fatalf("ban: %v", err)
	}

	if len(fake.Blocked) != 1 || fake.Blocked[0] != "c1/u1" {
		t.Fatalf("expected a block escalation, got %v", fake.Blocked)
	}
	if len(fake.Customs) != 1 {
		t.Fatalf("expected one forced-disconnect marker, got %d", len(fake.Customs))
	}
	custom := fake.Customs[0]
	if custom["forceUserDisconnect"] != "u1" {
		t.Fatalf("marker must target the banned user: %v", custom)
	}
	if _, err := time.Parse(time.RFC3339, custom["disconnectTimestamp"].(string)); err != nil {
		t.Fatalf("disconnectTimestamp must be RFC3339: %v", err)
	}
	// Initial removal plus one per retry attempt (MaxAttempts=3 -> attempts 1,2).
	if len(fake.Removed) != 3 {
		t.Fatalf("expected 3 removal attempts, got %d", len(fake.Removed))
	}
}

func TestBan_EnforcementStopsWhenCallIsGone(t *testing.T) {
	repo := NewMemoryRepo()
	fake := provider.NewFake()
	// No call installed: GetCall returns not-found.
	e := newTestEnforcer(repo, fake, audit.NewMemoryRepo())

	if _, err := e.Ban(context.Background(), BanRequest{CallID: "gone", UserID: "u1", HostID: "h1"}); err != nil {
		t.Fatalf("ban: %v", err)
	}
	if len(fake.Blocked) != 0 || len(fake.Customs) != 0 {
		t.Fatalf("no escalation once the call no longer exists")
	}
}

func TestBan_WritesAuditRecord(t *testing.T) {
	auditRepo := audit.NewMemoryRepo()
	e := newTestEnforcer(NewMemoryRepo(), provider.NewFake(), auditRepo)

	if _, err := e.Ban(context.Background(), BanRequest{CallID: "c1", UserID: "u1", HostID: "h1", Reason: "spam"}); err != nil {
		t.Fatalf("ban: %v", err)
	}
	events := auditRepo.Events()
	if len(events) != 1 || events[0].Type != audit.EventTypeRoomBan {
		t.Fatalf("expected one ban audit event, got %+v", events)
	}
}
