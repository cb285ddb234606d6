// Package server sets up the HTTP server, router, and all route definitions.
//
// This is the composition root: New opens the database, builds the
// services on top of its stores, hands the services to the handlers and
// mounts everything on one chi router. main only loads configuration and
// picks the completion client.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sakif/chat-wrapper/internal/auth"
	"github.com/sakif/chat-wrapper/internal/completion"
	"github.com/sakif/chat-wrapper/internal/config"
	"github.com/sakif/chat-wrapper/internal/handler"
	"github.com/sakif/chat-wrapper/internal/middleware"
	"github.com/sakif/chat-wrapper/internal/ratelimit"
	sqliteRepo "github.com/sakif/chat-wrapper/internal/repository/sqlite"
	"github.com/sakif/chat-wrapper/internal/service"
)

const (
	sessionSweepInterval = time.Hour
	limiterSweepInterval = time.Minute
	throttleIdleTTL      = 10 * time.Minute
	shutdownTimeout      = 30 * time.Second
)

// Server represents the HTTP server and all its dependencies.
// The Server owns the database connection and closes it on shutdown.
type Server struct {
	router   *chi.Mux
	config   config.Config
	logger   *slog.Logger
	db       *sqliteRepo.DB
	limiter  *ratelimit.Limiter
	throttle *middleware.Throttle // nil when GLOBAL_RATE_RPS is 0
	sessions *service.SessionService
	auth     *service.AuthService
}

// Option adjusts how New builds the server.
type Option func(*options)

type options struct {
	passwords *auth.PasswordService
}

// WithPasswordService replaces the default bcrypt cost, e.g. in tests.
func WithPasswordService(p *auth.PasswordService) Option {
	return func(o *options) { o.passwords = p }
}

// New opens the database and wires every layer.
//
//	sqlite.DB stores → services → handlers → routes
//
// Each layer only receives what it needs: services get repository
// interfaces, handlers get services, nothing but the stores touches SQL.
func New(ctx context.Context, cfg config.Config, completer completion.Completer, logger *slog.Logger, opts ...Option) (*Server, error) {
	o := options{passwords: auth.NewPasswordService()}
	for _, opt := range opts {
		opt(&o)
	}

	db, err := sqliteRepo.New(ctx, cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	limiter := ratelimit.New()
	sessions := service.NewSessionService(db.Sessions(), cfg.SessionTTL, time.Now, logger)

	s := &Server{
		router:   chi.NewRouter(),
		config:   cfg,
		logger:   logger,
		db:       db,
		limiter:  limiter,
		sessions: sessions,
		auth:     service.NewAuthService(db.Users(), sessions, o.passwords, limiter, logger),
	}
	if cfg.GlobalRateRPS > 0 {
		s.throttle = middleware.NewThrottle(cfg.GlobalRateRPS, cfg.GlobalRateBurst, throttleIdleTTL)
	}

	s.setupRoutes(
		service.NewAdminService(db.Users(), o.passwords, logger),
		service.NewChatService(db.Messages(), db.Usage(), service.ChatConfig{
			Completer: completer,
			Limiter:   limiter,
			Model:     cfg.OpenAIModel,
		}, logger),
	)
	return s, nil
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
// GET    /api/health            → liveness
// POST   /api/auth/login        → password login
// POST   /api/auth/logout       → revoke session            [session]
// GET    /api/auth/me           → current user              [session]
// POST   /api/auth/password     → change password           [session]
// POST   /api/chat              → one chat turn             [session]
// GET    /api/history           → recent messages           [session]
// GET    /api/usage             → per-day usage             [session]
// GET    /api/admin/users       → list users                [admin]
// POST   /api/admin/users       → create user               [admin]
// DELETE /api/admin/users/{id}  → delete user               [admin]
// GET    /metrics               → Prometheus scrape endpoint
// GET    /*                     → static frontend
//
// MIDDLEWARE ORDER MATTERS:
// RequestID runs first so the access log sees the request ID. RealIP is
// mounted only with TRUST_PROXY: it rewrites RemoteAddr from headers any
// client can send, and RemoteAddr keys the throttle and the login limiter.
// Recoverer sits inside the logger so a panic is still logged as a 500.
func (s *Server) setupRoutes(admin *service.AdminService, chat *service.ChatService) {
	s.router.Use(chimiddleware.RequestID)
	if s.config.TrustProxy {
		s.router.Use(chimiddleware.RealIP)
	}
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)
	if s.config.MetricsEnabled {
		s.router.Use(middleware.Metrics)
	}
	if s.throttle != nil {
		s.router.Use(s.throttle.Handler)
	}
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(s.config.AppBaseURL),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	healthHandler := handler.NewHealthHandler(s.db, s.logger)
	authHandler := handler.NewAuthHandler(s.auth, auth.CookieSettings{
		Secure: s.config.CookieSecure,
		TTL:    s.config.SessionTTL,
	}, s.logger)
	adminHandler := handler.NewAdminHandler(admin, s.logger)
	chatHandler := handler.NewChatHandler(chat, s.logger)

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/health", healthHandler.HandleHealth)

		r.Group(func(r chi.Router) {
			r.Use(auth.Identify(s.sessions, s.logger))

			r.Post("/auth/login", authHandler.HandleLogin)

			r.Group(func(r chi.Router) {
				r.Use(auth.RequireAuth)
				r.Post("/auth/logout", authHandler.HandleLogout)
				r.Get("/auth/me", authHandler.HandleMe)
				r.Post("/auth/password", authHandler.HandleChangePassword)
				r.Post("/chat", chatHandler.HandleChat)
				r.Get("/history", chatHandler.HandleHistory)
				r.Get("/usage", chatHandler.HandleUsage)
			})

			r.Route("/admin", func(r chi.Router) {
				r.Use(auth.RequireAdmin)
				r.Get("/users", adminHandler.HandleListUsers)
				r.Post("/users", adminHandler.HandleCreateUser)
				r.Delete("/users/{id}", adminHandler.HandleDeleteUser)
			})
		})
	})

	if s.config.MetricsEnabled {
		s.router.Handle("/metrics", promhttp.Handler())
	}

	if s.config.StaticDir != "" {
		s.router.Handle("/*", http.FileServer(http.Dir(s.config.StaticDir)))
	}
}

// allowedOrigins turns APP_BASE_URL into the CORS origin list. The value
// may hold several comma-separated origins.
func allowedOrigins(baseURL string) []string {
	var out []string
	for _, o := range strings.Split(baseURL, ",") {
		if o = strings.TrimRight(strings.TrimSpace(o), "/"); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// Handler returns the fully wired router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// BootstrapAdmin creates the first administrator on an empty database and
// returns its generated password, or "" when users already exist.
func (s *Server) BootstrapAdmin(ctx context.Context) (string, error) {
	return s.auth.BootstrapAdmin(ctx)
}

// Close releases the database.
func (s *Server) Close() error {
	if s.throttle != nil {
		s.throttle.Stop()
	}
	return s.db.Close()
}

// runBackground starts the periodic cleanup jobs. They stop when ctx is done.
func (s *Server) runBackground(ctx context.Context) {
	go s.sessions.RunSweeper(ctx, sessionSweepInterval)

	go func() {
		ticker := time.NewTicker(limiterSweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := s.limiter.Sweep(); n > 0 {
					s.logger.Debug("rate limit counters swept", slog.Int("count", n))
				}
			}
		}
	}()

	if s.throttle != nil {
		go s.throttle.Run(limiterSweepInterval)
	}
}

// Start runs the HTTP server until SIGINT or SIGTERM, then shuts down
// gracefully:
//  1. stop accepting new connections
//  2. wait up to 30s for in-flight requests (chat turns included)
//  3. stop the background jobs and close the database
func (s *Server) Start() error {
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.runBackground(ctx)

	// WriteTimeout stays generous: a chat turn waits on the completion API.
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.config.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Port)),
			slog.String("database", s.config.DBPath),
			slog.String("model", s.config.OpenAIModel),
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

		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancelShutdown()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
