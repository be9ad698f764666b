package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"metagapura_portal_backend/internal/campaigns"
	"metagapura_portal_backend/internal/campaigns/service"
	"metagapura_portal_backend/internal/engine"
	"metagapura_portal_backend/internal/events"
	apphttp "metagapura_portal_backend/internal/http"
	"metagapura_portal_backend/internal/http/router"
	"metagapura_portal_backend/internal/notes"
	"metagapura_portal_backend/internal/scheduler"
	"metagapura_portal_backend/internal/storage"
	"metagapura_portal_backend/platform/config"
	"metagapura_portal_backend/platform/db"
	"metagapura_portal_backend/platform/logger"
	"metagapura_portal_backend/platform/validator"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Initialize structured logger
	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		return db.RunMigrations(ctx, cfg, "migrations")
	}); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}
	log.Info("database migrations complete")

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()
	log.Info("database connection established")

	// Event bus for decoupled communication between modules
	eventBus := events.NewInMemoryBus(log)

	// Shared validator instance for dependency injection
	val := validator.New()

	// Outbound boundary to the workflow engine
	engineClient := engine.NewClient(cfg, log)

	// Storage service for campaign image assets (MinIO, optional)
	storageSvc, err := storage.New(cfg)
	if err != nil {
		log.Error("failed to initialize storage service", "error", err)
		panic("failed to initialize storage service: " + err.Error())
	}
	if storageSvc.Enabled() {
		if err := withRetry(ctx, log, "ensure campaign assets bucket", 5, 2*time.Second, func() error {
			return storageSvc.EnsureBucketExists(ctx)
		}); err != nil {
			log.Error("failed to ensure storage bucket exists", "error", err)
			panic("failed to ensure storage bucket exists: " + err.Error())
		}
		log.Info("storage service initialized", "bucket", cfg.GetMinioBucketCampaignAssets())
	} else {
		log.Warn("MinIO not configured; campaign images disabled")
	}

	// Redis for the notes summary rate window (optional)
	redisClient := newRedisClient(cfg, log)
	if redisClient != nil {
		defer func() {
			_ = redisClient.Close()
		}()
	}

	// Maintenance queue client, so a create request can trigger an immediate
	// draft cleanup instead of waiting for the periodic schedule
	var cleanupQueue service.CleanupQueue
	if cfg.GetRedisURL() != "" {
		schedClient, err := scheduler.NewClient(cfg)
		if err != nil {
			log.Warn("scheduler client unavailable; draft cleanup stays periodic", "error", err.Error())
		} else {
			cleanupQueue = schedClient
			defer func() {
				_ = schedClient.Close()
			}()
		}
	}

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	campaignsModule := campaigns.NewModule(pool, engineClient, storageSvc, cleanupQueue, eventBus, cfg, val, log)
	campaignsModule.RegisterHandlers(eventBus)
	defer campaignsModule.SSE().Close()

	notesModule := notes.NewModule(pool, engineClient, redisClient, cfg, log)

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config:   cfg,
		Logger:   log,
		Health:   db.NewPoolAdapter(pool),
		EventBus: eventBus,
		Modules: []apphttp.Module{
			campaignsModule,
			notesModule,
		},
	}

	ginEngine := router.New(app)

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		srvErr <- ginEngine.Run(cfg.HTTPAddr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = shutdownCtx
	case err := <-srvErr:
		if err != nil {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
	}
}

func newRedisClient(cfg config.NotesConfig, log *logger.Logger) *redis.Client {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		log.Warn("REDIS_URL not configured; notes summary rate window disabled")
		return nil
	}

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		log.Error("invalid REDIS_URL", "error", err)
		return nil
	}

	return redis.NewClient(opt)
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
