package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hookline/hookline/internal/api"
	"github.com/hookline/hookline/internal/config"
	"github.com/hookline/hookline/internal/engine"
	"github.com/hookline/hookline/internal/store"
	"github.com/hookline/hookline/internal/websocket"
	"github.com/hookline/hookline/internal/worker"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Initialize PostgreSQL
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pgStore, err := store.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer pgStore.Close()
	logger.Info("connected to PostgreSQL")

	// Run database migrations
	if err := pgStore.RunMigrations(ctx, "migrations"); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}
	logger.Info("database migrations applied")

	// Initialize Redis
	redisStore, err := store.NewRedis(ctx, cfg.RedisURL)
	if err != nil {
		logger.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer redisStore.Close()
	logger.Info("connected to Redis")

	// WebSocket hub for live delivery events
	hub := websocket.NewHub(logger)
	go hub.Run()

	// Delivery pipeline
	rateLimiter := engine.NewRateLimiter(redisStore.Client(), logger)
	policy := engine.RetryPolicy{
		Base:   cfg.BackoffBase,
		Cap:    cfg.BackoffCap,
		Jitter: cfg.BackoffJitter,
	}
	enqueuer := engine.NewEnqueuer(pgStore, logger)
	deliverer := worker.NewDeliverer(pgStore, rateLimiter, hub, policy, cfg.BreakerThreshold, cfg.AttemptTimeout, logger)

	pool := worker.NewPool(cfg.NumWorkers, deliverer, logger)
	pool.Start(ctx)

	scheduler := worker.NewScheduler(pgStore, pool, cfg.PollInterval, cfg.ClaimBatchSize, cfg.StaleClaimTimeout, cfg.SweepInterval, logger)
	scheduler.Start(ctx)
	logger.Info("delivery pipeline started", "workers", cfg.NumWorkers, "poll_interval", cfg.PollInterval.String())

	// Setup router
	router := api.NewRouter(pgStore, enqueuer, hub, cfg.DefaultMaxRetries, cfg.NumWorkers)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	// Stop claiming new work, then drain in-flight deliveries.
	cancel()
	pool.Stop()

	logger.Info("server stopped")
}
