// Package server sets up the HTTP server, router, and all route definitions.
//
// SERVER ARCHITECTURE:
// This package is the wiring layer. It decides which URL patterns map to
// which handler, which middleware guards which routes, and how the server
// starts and stops.
//
// DEPENDENCY INJECTION FLOW:
// main.go opens the outside world (database, Redis, identity provider,
// completion API) and hands it over in Deps. New then builds:
//
//	Store ─────────┬→ SummaryService → SummaryHandler, PageHandler
//	Generator ─────┘
//	Store, Identity → AuthService → AuthHandler, Bridge, Authenticator
//	Store ─────────→ ProfileService → ProfileHandler, PageHandler
//
// This is the "composition root" pattern: all dependencies are wired in
// one place, rather than scattered across the codebase.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/sakif/aligned/internal/auth"
	"github.com/sakif/aligned/internal/config"
	"github.com/sakif/aligned/internal/handler"
	"github.com/sakif/aligned/internal/middleware"
	"github.com/sakif/aligned/internal/repository"
	"github.com/sakif/aligned/internal/service"
	"github.com/sakif/aligned/web"
)

const (
	// requestTimeout bounds every route except report generation.
	requestTimeout = 30 * time.Second

	// generationSlack is added on top of the completion timeout so the
	// generator reports its own timeout before the router cuts the request.
	generationSlack = 15 * time.Second
)

// Deps are the external resources the server runs on. Redis is optional:
// nil disables rate limiting and drops Redis from the readiness check.
// IdentityPing, when set, adds the identity provider to the readiness check.
type Deps struct {
	Store        repository.Store
	Identity     service.IdentityProvider
	IdentityPing handler.PingFunc
	Generator    service.ReportGenerator
	Redis        *redis.Client
	Registry     *prometheus.Registry
}

// Server represents the HTTP server and all its dependencies.
//
// RESOURCE MANAGEMENT:
// The Server owns the store and the Redis client once New succeeds. Start
// closes both after the HTTP server has drained.
type Server struct {
	router *chi.Mux
	config *config.Config
	deps   Deps
	logger *slog.Logger
}

// New wires services, handlers and middleware into a router.
func New(cfg *config.Config, deps Deps, logger *slog.Logger) (*Server, error) {
	if deps.Store == nil || deps.Identity == nil || deps.Generator == nil {
		return nil, fmt.Errorf("server: store, identity and generator are required")
	}
	if deps.Registry == nil {
		deps.Registry = prometheus.NewRegistry()
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		deps:   deps,
		logger: logger,
	}
	if err := s.setupRoutes(); err != nil {
		return nil, fmt.Errorf("setting up routes: %w", err)
	}
	return s, nil
}

// Handler exposes the router, for tests and for embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes configures all middleware and route handlers.
//
// MIDDLEWARE ORDER MATTERS:
// 1. RequestID: tags each request (logged as request_id)
// 2. RealIP: the rate limiter keys on the client address
// 3. Logger and Metrics: observe the final status of every request
// 4. Recoverer: turns panics into 500s inside the observed span
//
// AUTH GUARDS:
// Pages use RequirePageAuth (redirect to /login), the JSON API uses
// RequireAuth (401), and the login and share pages use OptionalAuth so they
// can show the navigation for a signed-in user.
func (s *Server) setupRoutes() error {
	logger := s.logger
	cfg := s.config

	// === Services ===
	summaries := service.NewSummaryService(s.deps.Store, s.deps.Generator, cfg.Server.SiteURL, logger)
	profiles := service.NewProfileService(s.deps.Store, logger)
	authService := service.NewAuthService(s.deps.Identity, s.deps.Store, cfg.Server.SiteURL, logger)

	verifier, err := auth.NewTokenVerifier(cfg.Auth.JWTSecret)
	if err != nil {
		return fmt.Errorf("creating token verifier: %w", err)
	}
	cookies := auth.Cookies{Secure: cfg.Server.IsProduction()}
	authn := auth.NewAuthenticator(verifier, authService, cookies, logger)
	bridge := auth.NewBridge(authService, cookies, logger)

	// === Handlers ===
	pages, err := handler.NewPages(web.Templates, logger)
	if err != nil {
		return fmt.Errorf("parsing templates: %w", err)
	}
	authHandler := handler.NewAuthHandler(authService, cookies, pages, logger)
	summaryHandler := handler.NewSummaryHandler(summaries, logger)
	profileHandler := handler.NewProfileHandler(profiles, logger)
	pageHandler := handler.NewPageHandler(pages, summaries, profiles, logger)

	readiness := map[string]handler.Pinger{"database": s.deps.Store}
	if s.deps.Redis != nil {
		rdb := s.deps.Redis
		readiness["redis"] = handler.PingFunc(func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		})
	}
	if s.deps.IdentityPing != nil {
		readiness["identity"] = s.deps.IdentityPing
	}
	healthHandler := handler.NewHealthHandler(readiness, logger)

	metrics := middleware.NewMetrics(s.deps.Registry)
	limiter := middleware.NewRateLimiter(s.deps.Redis, cfg.RateLimit.Requests, cfg.RateLimit.Window, logger)

	// === Global Middleware ===
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(logger))
	s.router.Use(metrics.Handler)
	s.router.Use(chimiddleware.Recoverer)

	// === Operational ===
	s.router.Get("/health", healthHandler.Health)
	s.router.Get("/ready", healthHandler.Ready)
	s.router.Handle("/metrics", metrics.Exposition())

	generationTimeout := cfg.Completion.Timeout + generationSlack

	// === Pages ===
	s.router.Group(func(r chi.Router) {
		r.Use(chimiddleware.Timeout(requestTimeout))

		r.Get("/", pageHandler.HandleHome)
		r.Get("/auth/callback", bridge.Complete)
		r.Post("/auth/logout", authHandler.HandleLogout)
		r.With(limiter.Limit("magic-link")).Post("/auth/magic-link", authHandler.HandleMagicLinkForm)

		r.Group(func(r chi.Router) {
			r.Use(authn.OptionalAuth)
			r.Get("/login", authHandler.HandleLoginPage)
			r.Get("/share/{token}", pageHandler.HandleShared)
		})

		r.Group(func(r chi.Router) {
			r.Use(authn.RequirePageAuth)
			r.Get("/dashboard", pageHandler.HandleDashboard)
			r.Get("/summaries/new", pageHandler.HandleNewSummary)
			r.Get("/summaries/{id}", pageHandler.HandleSummary)
			r.Post("/summaries/{id}/share", pageHandler.HandleShare)
			r.Get("/settings", pageHandler.HandleSettings)
			r.Post("/settings", pageHandler.HandleUpdateSettings)
		})
	})

	// Generation waits on the completion API, so it gets a longer budget.
	s.router.Group(func(r chi.Router) {
		r.Use(chimiddleware.Timeout(generationTimeout))
		r.Use(authn.RequirePageAuth)
		r.Post("/summaries", pageHandler.HandleCreateSummary)
		r.Post("/summaries/{id}/generate", pageHandler.HandleGenerate)
	})

	// === JSON API ===
	s.router.Route("/api", func(r chi.Router) {
		if len(cfg.CORS.AllowedOrigins) > 0 {
			r.Use(cors.Handler(cors.Options{
				AllowedOrigins:   cfg.CORS.AllowedOrigins,
				AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "OPTIONS"},
				AllowedHeaders:   []string{"Accept", "Content-Type"},
				AllowCredentials: true,
				MaxAge:           300,
			}))
		}

		r.Group(func(r chi.Router) {
			r.Use(chimiddleware.Timeout(requestTimeout))
			r.With(limiter.Limit("magic-link")).Post("/auth/magic-link", authHandler.HandleMagicLinkAPI)
			r.Get("/share/{token}", summaryHandler.HandleGetShared)

			r.Group(func(r chi.Router) {
				r.Use(authn.RequireAuth)
				r.Get("/me", authHandler.HandleMe)
				r.Get("/profile", profileHandler.HandleGet)
				r.Put("/profile", profileHandler.HandleUpdate)
				r.Get("/summaries", summaryHandler.HandleList)
				r.Post("/summaries", summaryHandler.HandleCreate)
				r.Get("/summaries/{id}", summaryHandler.HandleGet)
				r.Patch("/summaries/{id}", summaryHandler.HandleUpdate)
				r.Post("/summaries/{id}/share", summaryHandler.HandleShare)
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(chimiddleware.Timeout(generationTimeout))
			r.Use(authn.RequireAuth)
			r.Post("/summaries/generate", summaryHandler.HandleCreateAndGenerate)
			r.Post("/summaries/{id}/generate", summaryHandler.HandleGenerate)
		})
	})

	return nil
}

// Start starts the HTTP server and handles graceful shutdown.
//
// GRACEFUL SHUTDOWN:
// 1. Stop accepting new HTTP connections
// 2. Wait for in-flight requests to finish (30s timeout)
// 3. Close Redis and the store
//
// WriteTimeout sits above the generation budget; otherwise a slow but
// successful completion would be cut off mid-response.
func (s *Server) Start() error {
	defer s.close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Server.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: s.config.Completion.Timeout + 2*generationSlack,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Server.Port),
			slog.String("site_url", s.config.Server.SiteURL),
			slog.String("environment", s.config.Server.Environment),
			slog.String("database", s.config.Database.Driver),
			slog.String("completion_provider", s.config.Completion.Provider),
			slog.Bool("rate_limit", s.deps.Redis != nil),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}

func (s *Server) close() {
	if s.deps.Redis != nil {
		if err := s.deps.Redis.Close(); err != nil {
			s.logger.Warn("closing redis", "error", err)
		}
	}
	if err := s.deps.Store.Close(); err != nil {
		s.logger.Warn("closing store", "error", err)
	}
}
