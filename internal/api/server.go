// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package api wires together the HTTP router, middleware chain, and all
domain handlers into a runnable [http.Server].

Architecture:

  - This package is the topmost Presentation layer boundary.
  - It acts as the central composition root for the HTTP transport framework (chi router).
  - Only this package and cmd/api are allowed to import net/http server primitives.
*/
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/taibuivan/reactforge-auth/internal/auth"
	"github.com/taibuivan/reactforge-auth/internal/platform/apperr"
	"github.com/taibuivan/reactforge-auth/internal/platform/config"
	"github.com/taibuivan/reactforge-auth/internal/platform/constants"
	"github.com/taibuivan/reactforge-auth/internal/platform/middleware"
	"github.com/taibuivan/reactforge-auth/internal/platform/respond"
)

// BucketGlobal labels the per-client budget shared by every API route.
const BucketGlobal = "global"

// # Server Definitions

// Server wraps the chi router and the [http.Server].
//
// It is constructed once in main.go with all dependencies injected.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	log        *slog.Logger
}

// # Handler Registry

// Handlers groups all HTTP handler sets.
type Handlers struct {
	// Liveness is the /health handler. It returns 200 while the process is alive.
	Liveness http.HandlerFunc

	// Readiness is the /ready handler. It returns 200 when all stores answer.
	Readiness http.HandlerFunc

	// Metrics serves the Prometheus scrape endpoint.
	Metrics http.Handler

	// Auth handles authentication routes (signup, login, google, logout, me).
	Auth *auth.Handler
}

// Boundary groups the request-scoped collaborators of the middleware chain.
type Boundary struct {
	// Sessions resolves the session cookie into a live session.
	Sessions middleware.SessionAuthenticator

	// Cookie is the signed session cookie policy.
	Cookie *middleware.SessionCookie

	// GlobalLimiter budgets all API traffic per client. Nil disables it.
	GlobalLimiter middleware.Limiter

	// Observer receives per-request metrics. May be nil.
	Observer middleware.RequestObserver

	// Rejections counts rate limited requests. May be nil.
	Rejections middleware.RejectionRecorder
}

// # Server Initialization

// NewServer constructs the chi router with the full middleware chain and
// registers all route groups.
func NewServer(cfg *config.Config, log *slog.Logger, boundary Boundary, h Handlers) *Server {
	r := chi.NewRouter()

	// # Middleware Chain
	// Global middleware applied in order of execution.
	r.Use(middleware.RequestID())
	if cfg.TrustProxy {
		r.Use(chimw.RealIP)
	}
	r.Use(middleware.StructuredLogger(log, boundary.Observer))
	r.Use(middleware.PanicRecovery())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.FrontendURL))
	r.Use(chimw.CleanPath)
	r.Use(chimw.Timeout(cfg.RequestTimeout))

	r.NotFound(func(writer http.ResponseWriter, request *http.Request) {
		respond.Error(writer, request, apperr.NotFound("Route"))
	})
	r.MethodNotAllowed(func(writer http.ResponseWriter, request *http.Request) {
		respond.Error(writer, request, apperr.MethodNotAllowed())
	})

	// # Infrastructure Endpoints
	// Unauthenticated health checks for container orchestration and scraping.
	r.Get("/health", h.Liveness)
	r.Get("/ready", h.Readiness)
	if h.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.Metrics)
	}

	// # Application API
	r.Route("/api", func(api chi.Router) {
		if boundary.GlobalLimiter != nil {
			api.Use(middleware.RateLimit(boundary.GlobalLimiter, BucketGlobal, boundary.Rejections))
		}
		api.Use(middleware.Authenticate(boundary.Sessions, boundary.Cookie))

		api.Mount("/auth", h.Auth.Routes())
	})

	return &Server{
		router: r,
		log:    log,
		httpServer: &http.Server{
			Addr:              ":" + cfg.ServerPort,
			Handler:           r,
			ReadTimeout:       constants.DefaultReadTimeout,
			WriteTimeout:      constants.DefaultWriteTimeout,
			IdleTimeout:       constants.DefaultIdleTimeout,
			ReadHeaderTimeout: constants.DefaultReadHeaderTimeout,
		},
	}
}

// Handler exposes the root router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// # Server Lifecycle

// ListenAndServe starts the HTTP server.
//
// It blocks until the server is closed or an error occurs.
func (s *Server) ListenAndServe() error {
	s.log.Info("server_starting", slog.String("addr", s.httpServer.Addr))
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the server, waiting for in-flight requests.
func (s *Server) Shutdown(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}
