package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aimerfeng/LineHook/internal/auth"
	"github.com/aimerfeng/LineHook/internal/cache"
	"github.com/aimerfeng/LineHook/internal/config"
	"github.com/aimerfeng/LineHook/internal/database"
	"github.com/aimerfeng/LineHook/internal/endpoint"
	"github.com/aimerfeng/LineHook/internal/ingest"
	"github.com/aimerfeng/LineHook/internal/logging"
	"github.com/aimerfeng/LineHook/internal/monitoring"
	"github.com/aimerfeng/LineHook/internal/payload"
	"github.com/aimerfeng/LineHook/internal/ratelimit"
	"github.com/aimerfeng/LineHook/internal/retention"
	"github.com/aimerfeng/LineHook/internal/server"
	"github.com/aimerfeng/LineHook/internal/webhooklog"
	"github.com/aimerfeng/LineHook/migrations"
	"github.com/rs/zerolog/log"
)

func main() {
	// Load configuration first
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize structured logging
	logging.Setup(&cfg.Logging, cfg.Server.Env)

	log.Info().
		Str("env", cfg.Server.Env).
		Str("name", cfg.Server.Name).
		Str("payload_strategy", cfg.Payload.Strategy).
		Msg("Starting LineHook API server")

	if cfg.Database.AutoMigrate {
		if err := database.RunMigrations(cfg.Database.URL, migrations.FS, "."); err != nil {
			log.Fatal().Err(err).Msg("Failed to run database migrations")
		}
	}

	// Initialize database connection
	db, err := database.New(cfg.Database.URL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	checks := []server.HealthCheck{{Name: "database", Check: db.Health}}

	// Redis is optional. Without it the auth rate limiter is off and the redis
	// payload strategy fails each delivery instead of the process.
	var rdb *cache.Redis
	if cfg.Redis.URL != "" {
		rdb, err = cache.NewFromURL(cfg.Redis.URL)
		if err != nil {
			log.Warn().Err(err).Msg("Invalid REDIS_URL, continuing without Redis")
		} else {
			defer rdb.Close()
			checks = append(checks, server.HealthCheck{Name: "redis", Check: rdb.Health})
		}
	}

	// Initialize Prometheus metrics
	monitoring.Init()
	log.Info().Msg("Prometheus metrics initialized")

	// Start metrics server if enabled
	if cfg.Monitoring.PrometheusEnabled {
		go startMetricsServer(cfg.Monitoring.PrometheusPort)
	}

	initCtx, cancelInit := context.WithTimeout(context.Background(), 10*time.Second)
	payloads, err := payload.NewFromConfig(initCtx, cfg, rdb)
	cancelInit()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize payload store")
	}

	sessions := auth.NewSessions(&cfg.JWT, nil)
	if cfg.JWT.Revocation {
		if rdb == nil {
			log.Fatal().Msg("SESSION_REVOCATION requires a valid REDIS_URL")
		}
		sessions = auth.NewSessions(&cfg.JWT, rdb.Client)
	}

	endpoints := endpoint.NewRegistry(endpoint.NewPostgresRepository(db.Pool))
	logRepo := webhooklog.NewPostgresRepository(db.Pool)

	sweeper, err := retention.NewScheduler(logRepo, &cfg.Retention)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to configure retention")
	}
	if sweeper != nil {
		if err := sweeper.Start(); err != nil {
			log.Fatal().Err(err).Msg("Failed to start retention scheduler")
		}
		defer sweeper.Stop()
	}

	services := &server.Services{
		Auth:      auth.NewService(auth.NewPostgresUserStore(db.Pool), nil),
		Sessions:  sessions,
		Endpoints: endpoints,
		Payloads:  payloads,
		Ingest:    ingest.NewService(endpoints, payloads, logRepo),
		Logs:      webhooklog.NewService(endpoints, logRepo, payloads),
		Retention: sweeper,
		Checks:    checks,
	}
	if rdb != nil {
		if limiter := ratelimit.New(rdb.Client, &cfg.RateLimit); limiter != nil {
			services.AuthLimiter = limiter
		}
	}

	// Create and start server
	srv := server.NewAPIServer(cfg, services)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      srv.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		log.Info().
			Int("port", cfg.Server.Port).
			Str("url", cfg.Server.URL).
			Msg("API server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().
		Str("signal", sig.String()).
		Msg("Shutdown signal received, gracefully shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited gracefully")
}

func startMetricsServer(port int) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", monitoring.Handler())

	metricsServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	log.Info().
		Int("port", port).
		Msg("Prometheus metrics server listening")

	if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error().Err(err).Msg("Metrics server error")
	}
}
