// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Command api is the entry point for the ReactForge authentication server.
//
// # Startup Sequence
//
//  1. Initialize structured logger.
//  2. Load configuration from environment variables.
//  3. Connect to Redis (sessions and rate limits).
//  4. Connect to the credential store (PostgreSQL or MongoDB).
//  5. Build the password hasher and Google verifier.
//  6. Wire metrics, the auth domain and the HTTP boundary.
//  7. Start HTTP server with graceful shutdown.
//
// No business logic lives here. All wiring is explicit constructor injection.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/taibuivan/reactforge-auth/internal/api"
	"github.com/taibuivan/reactforge-auth/internal/auth"
	"github.com/taibuivan/reactforge-auth/internal/metrics"
	"github.com/taibuivan/reactforge-auth/internal/platform/config"
	"github.com/taibuivan/reactforge-auth/internal/platform/constants"
	"github.com/taibuivan/reactforge-auth/internal/platform/middleware"
	"github.com/taibuivan/reactforge-auth/internal/platform/migration"
	mongostore "github.com/taibuivan/reactforge-auth/internal/platform/mongo"
	pgstore "github.com/taibuivan/reactforge-auth/internal/platform/postgres"
	redisstore "github.com/taibuivan/reactforge-auth/internal/platform/redis"
	"github.com/taibuivan/reactforge-auth/internal/platform/sec"
	"github.com/taibuivan/reactforge-auth/internal/session"
)

// Redis key prefixes for the sliding window limiters.
const (
	authLimitPrefix  = "reactforge:ratelimit:auth:"
	loginLimitPrefix = "reactforge:ratelimit:login:"
)

func main() {
	// ── 1. Logger ──────────────────────────────────────────────────────────
	// Initialize first so that subsequent startup errors are structured JSON.
	log := newLogger(slog.LevelInfo)
	slog.SetDefault(log)

	log.Info("service_initializing", slog.String("version", constants.AppVersion))

	// ── 2. Configuration ──────────────────────────────────────────────────
	cfg, err := config.Load()
	must(log, err, "load configuration")

	if cfg.Debug {
		log = newLogger(slog.LevelDebug)
		slog.SetDefault(log)
		log.Debug("debug_logging_enabled")
	}

	log.Info("configuration_loaded",
		slog.String("environment", cfg.Environment),
		slog.String("port", cfg.ServerPort),
		slog.String("user_store", cfg.UserStore),
		slog.Bool("rate_limit_enabled", cfg.RateLimit.Enabled),
		slog.Bool("guest_only_enabled", cfg.GuestOnly),
	)

	// Root context for startup, so misconfiguration fails fast instead of hanging.
	startupCtx, startupCancel := context.WithTimeout(context.Background(), constants.StartupTimeout)
	defer startupCancel()

	// Background context for long-lived workers (limiter cleanup).
	runCtx, runCancel := context.WithCancel(context.Background())
	defer runCancel()

	// ── 3. Redis ──────────────────────────────────────────────────────────
	rdb, err := redisstore.NewClient(startupCtx, cfg.RedisURL, log)
	must(log, err, "connect to redis")
	defer func() {
		log.Info("closing redis client")
		if cerr := rdb.Close(); cerr != nil {
			log.Error("redis close error", slog.Any("error", cerr))
		}
	}()

	checks := []api.DependencyCheck{{
		Name:  "redis",
		Check: func(ctx context.Context) error { return redisstore.Ping(ctx, rdb) },
	}}

	// ── 4. Credential Store ───────────────────────────────────────────────
	var userRepository auth.UserRepository

	switch cfg.UserStore {
	case config.StoreMongo:
		database, err := mongostore.NewDatabase(startupCtx, cfg.MongoURI, cfg.MongoDatabase, log)
		must(log, err, "connect to mongo")
		defer func() {
			log.Info("closing mongo client")
			if cerr := database.Client().Disconnect(context.Background()); cerr != nil {
				log.Error("mongo close error", slog.Any("error", cerr))
			}
		}()

		mongoRepository, err := auth.NewMongoUserRepository(startupCtx, database)
		must(log, err, "prepare mongo user collection")
		userRepository = mongoRepository

		checks = append(checks, api.DependencyCheck{
			Name:  "mongo",
			Check: func(ctx context.Context) error { return mongostore.Ping(ctx, database.Client()) },
		})

	default:
		pool, err := pgstore.NewPool(startupCtx, cfg.DatabaseURL, cfg.RequestTimeout, log)
		must(log, err, "connect to postgres")
		defer func() {
			log.Info("closing postgres pool")
			pool.Close()
		}()

		must(log, migration.RunUp(cfg.DatabaseURL, log), "run migrations")
		userRepository = auth.NewPostgresUserRepository(pool)

		checks = append(checks, api.DependencyCheck{
			Name:  "postgres",
			Check: func(ctx context.Context) error { return pgstore.Ping(ctx, pool) },
		})
	}

	// ── 5. Security Primitives ────────────────────────────────────────────
	hasher, err := sec.NewPasswordHasher(cfg.BcryptCost, cfg.HashConcurrency)
	must(log, err, "initialize password hasher")

	verifier, err := auth.NewGoogleVerifier(startupCtx, auth.GoogleVerifierConfig{
		ClientID:             cfg.GoogleClientID,
		AllowClientClaims:    cfg.GoogleAllowClientClaims,
		RequireVerifiedEmail: cfg.GoogleRequireVerifiedEmail,
	})
	must(log, err, "initialize google verifier")

	if cfg.GoogleClientID == "" {
		log.Warn("google_id_token_verification_disabled")
	}
	if cfg.GoogleAllowClientClaims {
		log.Warn("google_client_claims_enabled")
	}

	// ── 6. Metrics ────────────────────────────────────────────────────────
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(registry)

	// ── 7. Domain Wiring ──────────────────────────────────────────────────
	sessionStore := session.NewRedisStore(rdb, cfg.SessionKeyPrefix, cfg.SessionTTL)
	authService := auth.NewService(userRepository, sessionStore, hasher, verifier, collector)

	cookie := middleware.NewSessionCookie(
		cfg.SessionCookieName,
		sec.NewSigner(cfg.SessionSecret),
		sessionStore.TTL(),
		cfg.IsProduction(),
	)

	handlerConfig := auth.HandlerConfig{
		GuestOnly: cfg.GuestOnly,
		Recorder:  collector,
	}
	boundary := api.Boundary{
		Sessions:   authService,
		Cookie:     cookie,
		Observer:   collector,
		Rejections: collector,
	}

	if cfg.RateLimit.Enabled {
		limits := cfg.RateLimit
		boundary.GlobalLimiter = middleware.NewTokenBucketLimiter(runCtx, limits.GlobalRequests, limits.GlobalWindow)
		handlerConfig.AuthLimiter = middleware.NewSlidingWindowLimiter(rdb, authLimitPrefix, limits.AuthRequests, limits.AuthWindow)
		handlerConfig.LoginLimiter = middleware.NewSlidingWindowLimiter(rdb, loginLimitPrefix, limits.LoginRequests, limits.LoginWindow)
	}

	authHandler := auth.NewHandler(authService, cookie, handlerConfig)

	// ── 8. HTTP Server ────────────────────────────────────────────────────
	liveness, readiness := api.NewHealthHandlers(checks, log)

	server := api.NewServer(cfg, log, boundary, api.Handlers{
		Liveness:  liveness,
		Readiness: readiness,
		Metrics:   metrics.Handler(registry),
		Auth:      authHandler,
	})

	// ── 9. Graceful Shutdown ──────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)

	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Block until OS signal or server error.
	select {
	case sig := <-quit:
		log.Info("shutdown signal received", slog.String("signal", sig.String()))
	case err := <-serverErr:
		log.Error("server startup error", slog.Any("error", err))
	}

	// Give in-flight requests enough time to complete.
	shutdownTimeout := constants.ShutdownTimeout
	log.Info("shutting down server", slog.Duration("timeout", shutdownTimeout))

	if err := server.Shutdown(shutdownTimeout); err != nil {
		log.Error("shutdown error", slog.Any("error", err))
		return
	}

	log.Info("server stopped cleanly")
}

// newLogger builds the JSON logger tagged with the service name.
func newLogger(level slog.Level) *slog.Logger {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	return slog.New(handler).With(slog.String("app", constants.AppName))
}

// must logs a structured fatal error and terminates the process if err is non-nil.
//
// It is intentionally limited to startup wiring. After startup, all errors
// must be returned and handled explicitly (never panic).
func must(log *slog.Logger, err error, context string) {
	if err != nil {
		log.Error("startup failure",
			slog.String("context", context),
			slog.Any("error", err),
		)
		os.Exit(1)
	}
}
