package room

import (
	"context"
	"errors"
	"time"

	"rooms-platform/internal/audit"
	"rooms-platform/internal/provider"
	"rooms-platform/pkg/logger"
	"rooms-platform/pkg/utils"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// BanEnforcer implements the host-issued ban flow.
//
// The persisted RoomBan row is the durable guarantee: it is written first and
// the ban succeeds once it exists, whatever the provider does afterwards.
// Provider-side removal is best-effort with verification, a custom-state
// forced-disconnect marker, a redundant block path, and a bounded monitor.
type BanEnforcer struct {
	repo     Repository
	provider provider.CallProvider
	audit    *audit.Service
	rdb      *redis.Client

	policy RetryPolicy
	clock  func() time.Time

	// spawn runs the enforcement monitor; defaults to a goroutine.
	spawn func(func())
	// sleep waits between attempts; injectable for tests.
	sleep func(ctx context.Context, d time.Duration) error
}

func NewBanEnforcer(repo Repository, p provider.CallProvider, auditSvc *audit.Service, rdb *redis.Client, policy RetryPolicy) *BanEnforcer {
	return &BanEnforcer{
		repo:     repo,
		provider: p,
		audit:    auditSvc,
		rdb:      rdb,
		policy:   policy.withDefaults(),
		clock:    time.Now,
		spawn:    func(f func()) { go f() },
		sleep:    sleepCtx,
	}
}

type BanRequest struct {
	CallID string `json:"call_id"`
	UserID string `json:"user_id"`
	HostID string `json:"host_id"`
	Reason string `json:"reason,omitempty"`
}

// Ban records the ban and kicks off best-effort provider-side removal.
// Idempotent: banning an already-banned user returns the existing row.
func (e *BanEnforcer) Ban(ctx context.Context, req BanRequest) (RoomBan, error) {
	if req.CallID == "" || req.UserID == "" || req.HostID == "" {
		return RoomBan{}, ErrInvalidArgument
	}
	if req.UserID == req.HostID {
		return RoomBan{}, ErrInvalidArgument
	}

	if existing, ok, err := e.repo.FindBan(ctx, req.CallID, req.UserID); err != nil {
		return RoomBan{}, err
	} else if ok {
		return existing, nil
	}

	b := RoomBan{
		ID:       uuid.NewString(),
		CallID:   req.CallID,
		UserID:   req.UserID,
		HostID:   req.HostID,
		Reason:   req.Reason,
		BannedAt: e.clock().UTC(),
	}
	created, err := e.repo.CreateBan(ctx, b)
	if err != nil {
		return RoomBan{}, err
	}
	if !created {
		// Lost a race with a concurrent ban for the same pair; both succeed.
		if existing, ok, ferr := e.repo.FindBan(ctx, req.CallID, req.UserID); ferr == nil && ok {
			return existing, nil
		}
		return b, nil
	}

	if aerr := e.audit.LogBan(ctx, b.CallID, b.UserID, b.HostID, b.Reason); aerr != nil {
		logger.From(ctx).Warn("audit append failed", "call_id", b.CallID, "err", aerr)
	}

	// Enforcement runs detached from the request: the row above is already the
	// source of truth for every future join check.
	enforceCtx := logger.With(context.WithoutCancel(ctx), logger.From(ctx))
	e.spawn(func() { e.enforce(enforceCtx, b) })

	return b, nil
}

// enforce drives provider-side removal. Every failure here is logged and
// swallowed; the RoomBan row already guarantees the denial.
func (e *BanEnforcer) enforce(ctx context.Context, b RoomBan) {
	log := logger.From(ctx).With("call_id", b.CallID, "user_id", b.UserID)

	ctx, cancel := context.WithTimeout(ctx, e.policy.TotalDeadline)
	defer cancel()

	// One monitor per (call, user) across replicas; a second concurrent ban of
	// the same pair does not need its own loop.
	if e.rdb != nil {
		key := "ban_monitor:" + b.CallID + ":" + b.UserID
		acquired, err := utils.AcquireConcurrencyCap(ctx, e.rdb, key, 1, e.policy.TotalDeadline)
		if err != nil {
			log.Warn("ban monitor cap check failed, continuing", "err", err)
		} else if !acquired {
			log.Debug("ban monitor already running elsewhere")
			return
		} else {
			defer func() {
				if rerr := utils.ReleaseConcurrencyCap(context.WithoutCancel(ctx), e.rdb, key); rerr != nil {
					log.Warn("ban monitor cap release failed", "err", rerr)
				}
			}()
		}
	}

	if err := e.provider.RemoveMembers(ctx, b.CallID, []string{b.UserID}); err != nil {
		log.Warn("provider member removal failed", "err", err)
	}

	if e.sleep(ctx, e.policy.Delay(0)) != nil {
		return
	}
	if e.verifyGone(ctx, b) {
		return
	}

	// Still present: publish the forced-disconnect marker for the client to
	// observe, then hit the redundant removal path.
	custom := map[string]any{
		"forceUserDisconnect": b.UserID,
		"disconnectTimestamp": e.clock().UTC().Format(time.RFC3339),
	}
	if err := e.provider.UpdateCallCustom(ctx, b.CallID, custom); err != nil {
		log.Warn("forced-disconnect marker update failed", "err", err)
	}
	if err := e.provider.BlockUser(ctx, b.CallID, b.UserID); err != nil {
		log.Warn("provider block failed", "err", err)
	}

	for attempt := 1; attempt < e.policy.MaxAttempts; attempt++ {
		if e.sleep(ctx, e.policy.Delay(attempt)) != nil {
			return
		}
		if e.verifyGone(ctx, b) {
			return
		}
		if err := e.provider.RemoveMembers(ctx, b.CallID, []string{b.UserID}); err != nil {
			log.Warn("provider member removal retry failed", "attempt", attempt, "err", err)
		}
	}
	log.Warn("ban monitor window exhausted, relying on join-time denial")
}

func (e *BanEnforcer) verifyGone(ctx context.Context, b RoomBan) bool {
	state, err := e.provider.GetCall(ctx, b.CallID)
	if err != nil {
		// Not found means the whole call is gone; nothing left to enforce.
		return errors.Is(err, provider.ErrCallNotFound)
	}
	return !state.HasMember(b.UserID)
}
