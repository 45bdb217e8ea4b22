package main

import (
	"database/sql"
	"time"

	"rooms-platform/internal/config"
	"rooms-platform/internal/httpapi"
	"rooms-platform/internal/provider"
	"rooms-platform/internal/room"
	"rooms-platform/internal/study"
	"rooms-platform/internal/webhook"
	"rooms-platform/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

type routeDeps struct {
	cfg config.Config
	db  *sql.DB
	rdb *redis.Client

	provider   provider.CallProvider
	lifecycle  *room.Service
	reconciler *room.Reconciler
	bans       *room.BanEnforcer
	tracker    *study.Service
	ingestor   *webhook.Ingestor
}

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers delegate to internal modules.
func registerRoutes(r *gin.Engine, deps routeDeps) {
	// Liveness probe: storage first, provider reported but non-fatal.
	r.GET("/healthz", func(c *gin.Context) {
		if err := utils.HealthCheck(c.Request.Context(), deps.db, 2*time.Second); err != nil {
			c.JSON(503, gin.H{"status": "degraded", "db": err.Error()})
			return
		}
		providerStatus := "ok"
		if err := deps.provider.HealthCheck(c.Request.Context()); err != nil {
			providerStatus = "unreachable"
		}
		c.JSON(200, gin.H{"status": "ok", "provider": providerStatus})
	})

	// Provider webhooks (public).
	// NOTE: The provider does not sign this channel; keep the path unguessable
	// at the edge if exposure matters.
	wh := webhook.Handler{
		Ingestor: deps.ingestor,
		RDB:      deps.rdb,
		DedupTTL: deps.cfg.Rooms.WebhookDedupTTL,
	}
	r.POST("/webhooks/call", wh.HandleEvent)

	h := httpapi.Handlers{
		Rooms:      deps.lifecycle,
		Reconciler: deps.reconciler,
		Bans:       deps.bans,
		Study:      deps.tracker,
	}

	v1 := r.Group("/v1")
	{
		rooms := v1.Group("/rooms")
		{
			rooms.POST("", h.CreateRoom)
			rooms.GET("/active", h.ListActiveRooms)
			rooms.POST("/ban", h.BanUser)
		}

		sessions := v1.Group("/study-sessions")
		{
			sessions.POST("", h.StudySessionAction)
			sessions.GET("/daily", h.DailyDuration)
		}
	}
}
