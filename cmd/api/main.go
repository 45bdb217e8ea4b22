package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"rooms-platform/internal/audit"
	"rooms-platform/internal/config"
	"rooms-platform/internal/provider"
	"rooms-platform/internal/room"
	"rooms-platform/internal/study"
	"rooms-platform/internal/webhook"
	"rooms-platform/pkg/logger"
	"rooms-platform/pkg/utils"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr()})
	if err != nil {
		log.Error("redis init failed", "err", err)
		os.Exit(1)
	}
	defer rdb.Close()

	callProvider, err := provider.NewStreamClient(provider.StreamOptions{
		BaseURL:   cfg.Provider.BaseURL,
		APIKey:    cfg.Provider.APIKey,
		APISecret: cfg.Provider.APISecret,
		Timeout:   cfg.Provider.RequestTimeout,
	})
	if err != nil {
		log.Error("call provider init failed", "err", err)
		os.Exit(1)
	}

	// Wiring: repositories, then services, then transport.
	auditSvc := audit.NewService(audit.NewPostgresRepo(db))
	roomRepo := room.NewPostgresRepo(db)
	studyRepo := study.NewPostgresRepo(db)

	lifecycle := room.NewService(roomRepo, auditSvc)
	tracker := study.NewService(studyRepo, callProvider)
	reconciler := room.NewReconciler(roomRepo, callProvider, lifecycle, cfg.Rooms.InactivityThreshold)
	bans := room.NewBanEnforcer(roomRepo, callProvider, auditSvc, rdb, room.RetryPolicy{
		BaseDelay:     cfg.Rooms.BanMonitorInterval,
		TotalDeadline: cfg.Rooms.BanMonitorWindow,
	})
	ingestor := webhook.NewIngestor(roomRepo, lifecycle, tracker, callProvider)

	// Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	registerRoutes(r, routeDeps{
		cfg:        cfg,
		db:         db,
		rdb:        rdb,
		provider:   callProvider,
		lifecycle:  lifecycle,
		reconciler: reconciler,
		bans:       bans,
		tracker:    tracker,
		ingestor:   ingestor,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}
}
