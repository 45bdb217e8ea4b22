package webhook

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"rooms-platform/pkg/logger"
	"rooms-platform/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// Handler converts the provider webhook delivery to internal types and
// delegates to the Ingestor. No business logic here.
//
// Response contract:
// - 400 when the envelope lacks a type or is unparseable
// - 429 when one call exceeds its concurrent delivery budget
// - 200 after successful dispatch (including dropped/unknown/duplicate events)
// - 500 when the store rejects the transition for this single event
type Handler struct {
	Ingestor *Ingestor

	// RDB enables delivery dedup and per-call burst caps across replicas.
	// Optional: with no Redis the idempotent transitions still make replays
	// safe, just more expensive.
	RDB      *redis.Client
	DedupTTL time.Duration

	// BurstLimit caps concurrently processed deliveries per call id so one
	// flapping call cannot starve the rest. BurstWindow bounds how long a
	// crashed replica can hold a slot.
	BurstLimit  int
	BurstWindow time.Duration

	// markOnce and capAcquire/capRelease override the Redis helpers.
	// Test use only.
	markOnce   func(ctx context.Context, key string, ttl time.Duration) (bool, error)
	capAcquire func(ctx context.Context, key string, limit int, ttl time.Duration) (bool, error)
	capRelease func(ctx context.Context, key string) error
}

func (h Handler) HandleEvent(c *gin.Context) {
	log := logger.FromGin(c)

	var ev Event
	if err := c.ShouldBindJSON(&ev); err != nil {
		log.Warn("webhook parse failed", "err", err)
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if ev.Type == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "type required"})
		return
	}

	release, admitted := h.acquireBurstSlot(c.Request.Context(), ev.CallID(), log)
	if !admitted {
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many deliveries for call"})
		return
	}
	if release != nil {
		defer release()
	}

	if !h.firstDelivery(c.Request.Context(), ev, log) {
		c.JSON(http.StatusOK, gin.H{"status": "duplicate"})
		return
	}

	ctx := logger.With(c.Request.Context(), log)
	if err := h.Ingestor.Handle(ctx, ev); err != nil {
		log.Error("webhook event failed", "event_type", ev.Type, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "event processing failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// acquireBurstSlot takes one concurrency slot for the event's call. A cap
// failure degrades to admission; only an explicit "limit reached" rejects.
func (h Handler) acquireBurstSlot(ctx context.Context, callID string, log *slog.Logger) (func(), bool) {
	if callID == "" {
		return nil, true
	}
	acquire, release := h.capAcquire, h.capRelease
	if acquire == nil {
		if h.RDB == nil {
			return nil, true
		}
		acquire = func(ctx context.Context, key string, limit int, ttl time.Duration) (bool, error) {
			return utils.AcquireConcurrencyCap(ctx, h.RDB, key, limit, ttl)
		}
		release = func(ctx context.Context, key string) error {
			return utils.ReleaseConcurrencyCap(ctx, h.RDB, key)
		}
	}

	limit := h.BurstLimit
	if limit <= 0 {
		limit = 32
	}
	window := h.BurstWindow
	if window <= 0 {
		window = time.Minute
	}

	key := "webhook_burst:" + callID
	acquired, err := acquire(ctx, key, limit, window)
	if err != nil {
		log.Warn("webhook burst cap check failed, processing anyway", "err", err)
		return nil, true
	}
	if !acquired {
		return nil, false
	}
	return func() {
		if release == nil {
			return
		}
		if rerr := release(context.WithoutCancel(ctx), key); rerr != nil {
			log.Warn("webhook burst cap release failed", "err", rerr)
		}
	}, true
}

// firstDelivery reports whether this delivery was seen for the first time.
// Events without a created_at timestamp skip dedup entirely: the key could
// not tell two genuine deliveries apart, and replays are already harmless.
func (h Handler) firstDelivery(ctx context.Context, ev Event, log *slog.Logger) bool {
	if ev.CreatedAt.IsZero() {
		return true
	}
	mark := h.markOnce
	if mark == nil {
		if h.RDB == nil {
			return true
		}
		mark = func(ctx context.Context, key string, ttl time.Duration) (bool, error) {
			return utils.MarkOnce(ctx, h.RDB, key, ttl)
		}
	}
	ttl := h.DedupTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	first, err := mark(ctx, "webhook_seen:"+ev.DedupKey(), ttl)
	if err != nil {
		// Dedup is an optimization; replays are already harmless.
		log.Warn("webhook dedup check failed, processing anyway", "err", err)
		return true
	}
	return first
}
