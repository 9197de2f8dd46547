// Package server is the composition root: it opens the storage backend,
// builds services and handlers, mounts routes and runs the HTTP server.
//
// DEPENDENCY INJECTION FLOW:
//
//	config.Config
//	  → repository.Backend (sqlite or redis, chosen once here)
//	  → repository.AvatarStore (local disk or Cloudinary)
//	  → services (LogService, StatsService, LeaderboardService, ProfileService, AuthService)
//	  → handlers
//	  → chi routes
//
// Nothing below this package picks an implementation; every layer gets its
// dependencies passed in.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/reading-challenge/internal/auth"
	"github.com/sakif/reading-challenge/internal/calendar"
	"github.com/sakif/reading-challenge/internal/config"
	"github.com/sakif/reading-challenge/internal/handler"
	"github.com/sakif/reading-challenge/internal/middleware"
	"github.com/sakif/reading-challenge/internal/repository"
	"github.com/sakif/reading-challenge/internal/repository/redisdoc"
	sqliteRepo "github.com/sakif/reading-challenge/internal/repository/sqlite"
	"github.com/sakif/reading-challenge/internal/service"
	"github.com/sakif/reading-challenge/internal/storage"
	"github.com/sakif/reading-challenge/internal/validation"
)

// Server owns the router and the backend connection. The backend is closed
// when Start returns.
type Server struct {
	router  *chi.Mux
	cfg     *config.Config
	logger  *slog.Logger
	backend repository.Backend
	clock   *calendar.Clock
}

// New opens the configured backend and avatar store and wires everything.
func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	backend, err := OpenBackend(ctx, cfg)
	if err != nil {
		return nil, err
	}

	avatars, err := OpenAvatarStore(cfg)
	if err != nil {
		backend.Close()
		return nil, err
	}

	s, err := NewWithDeps(cfg, logger, backend, avatars, calendar.NewClock(cfg.Location))
	if err != nil {
		backend.Close()
		return nil, err
	}
	return s, nil
}

// NewWithDeps wires a server around an already open backend. Tests use it
// with an in-memory sqlite database or miniredis.
func NewWithDeps(
	cfg *config.Config,
	logger *slog.Logger,
	backend repository.Backend,
	avatars repository.AvatarStore,
	clock *calendar.Clock,
) (*Server, error) {
	s := &Server{
		router:  chi.NewRouter(),
		cfg:     cfg,
		logger:  logger,
		backend: backend,
		clock:   clock,
	}

	if err := s.setupRoutes(avatars); err != nil {
		return nil, fmt.Errorf("setting up routes: %w", err)
	}
	return s, nil
}

// OpenBackend resolves BACKEND to a concrete adapter.
func OpenBackend(ctx context.Context, cfg *config.Config) (repository.Backend, error) {
	switch cfg.Backend {
	case config.BackendSQLite:
		if !strings.HasPrefix(cfg.DBPath, ":memory:") {
			if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
				return nil, fmt.Errorf("creating database directory: %w", err)
			}
		}
		db, err := sqliteRepo.New(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("opening database: %w", err)
		}
		return db, nil

	case config.BackendRedis:
		store, err := redisdoc.New(ctx, redisdoc.Options{
			URL:    cfg.RedisURL,
			Prefix: cfg.RedisPrefix,
		})
		if err != nil {
			return nil, fmt.Errorf("connecting to redis: %w", err)
		}
		return store, nil
	}
	return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
}

// OpenAvatarStore resolves AVATAR_STORAGE to a concrete store.
func OpenAvatarStore(cfg *config.Config) (repository.AvatarStore, error) {
	switch cfg.AvatarStorage {
	case config.AvatarCloudinary:
		store, err := storage.NewCloudinaryStore(
			cfg.CloudinaryCloudName,
			cfg.CloudinaryAPIKey,
			cfg.CloudinaryAPISecret,
			cfg.CloudinaryUploadFolder,
		)
		if err != nil {
			return nil, fmt.Errorf("configuring cloudinary: %w", err)
		}
		return store, nil
	case config.AvatarLocal:
		store, err := storage.NewLocalStore(cfg.AvatarDir, cfg.AvatarBaseURL)
		if err != nil {
			return nil, fmt.Errorf("creating avatar directory: %w", err)
		}
		return store, nil
	}
	return nil, fmt.Errorf("unknown avatar storage %q", cfg.AvatarStorage)
}

// Handler exposes the router, mainly for httptest.
func (s *Server) Handler() http.Handler { return s.router }

// setupRoutes mounts every route.
//
// ROUTE STRUCTURE:
//
//	GET    /healthz
//	GET    /avatars/*                      (local avatar storage only)
//	GET    /auth/github/login|callback     (GitHub configured only)
//	POST   /api/auth/signup|signin         public
//	everything else under /api             RequireAuth
//
// MIDDLEWARE ORDER MATTERS: RequestID runs first so the logger can print it,
// and Recoverer sits inside the logger so a panic is logged as a 500.
func (s *Server) setupRoutes(avatars repository.AvatarStore) error {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)

	tokens, err := auth.NewTokenService(s.cfg.JWTSecret, s.cfg.SessionTTL)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}
	validate := validation.New()

	logService := service.NewLogService(s.backend, s.clock, s.logger)
	statsService := service.NewStatsService(s.backend, s.clock, s.logger)
	leaderboardService := service.NewLeaderboardService(s.backend, s.backend, s.clock, s.cfg.RankScanLimit, s.logger)
	profileService := service.NewProfileService(s.backend, avatars, validate, s.logger)
	authService := service.NewAuthService(s.backend, s.backend, tokens, auth.NewPasswordService(), validate, s.logger)

	authService.OnSessionChange(func(ev service.SessionEvent) {
		s.logger.Info("session changed",
			slog.String("event", string(ev.Kind)),
			slog.String("userID", ev.UserID),
			slog.String("method", ev.Method),
		)
	})

	var github *auth.GitHubProvider
	if s.cfg.GitHubEnabled() {
		github = auth.NewGitHubProvider(s.cfg.GitHubClientID, s.cfg.GitHubClientSecret, s.cfg.GitHubCallbackURL)
	}

	secure := s.cfg.IsProduction()
	authHandler := handler.NewAuthHandler(authService, github, secure, s.logger)
	logHandler := handler.NewLogHandler(logService, s.logger)
	statsHandler := handler.NewStatsHandler(statsService, leaderboardService, s.logger)
	profileHandler := handler.NewProfileHandler(profileService, s.logger)
	healthHandler := handler.NewHealthHandler(s.backend.Name())

	s.router.Get("/healthz", healthHandler.HandleHealth)

	if local, ok := avatars.(*storage.LocalStore); ok && strings.HasPrefix(s.cfg.AvatarBaseURL, "/") {
		base := strings.TrimSuffix(s.cfg.AvatarBaseURL, "/")
		fileServer := http.FileServer(http.Dir(local.Dir()))
		s.router.Handle(base+"/*", http.StripPrefix(base+"/", fileServer))
	}

	if github != nil {
		s.router.Get("/auth/github/login", authHandler.HandleGitHubLogin)
		s.router.Get("/auth/github/callback", authHandler.HandleGitHubCallback)
	}

	s.router.Route("/api", func(r chi.Router) {
		r.Post("/auth/signup", authHandler.HandleSignUp)
		r.Post("/auth/signin", authHandler.HandleSignIn)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(tokens))

			r.Post("/auth/signout", authHandler.HandleSignOut)
			r.Get("/me", authHandler.HandleMe)

			r.Get("/profile", profileHandler.HandleGet)
			r.Post("/profile", profileHandler.HandleCreate)
			r.Patch("/profile", profileHandler.HandleUpdate)
			r.Post("/profile/avatar", profileHandler.HandleUploadAvatar)
			r.Get("/profile/username-available", profileHandler.HandleUsernameAvailable)

			r.Get("/logs", logHandler.HandleList)
			r.Post("/logs", logHandler.HandleCreate)
			r.Get("/logs/date/{date}", logHandler.HandleGetByDate)
			r.Patch("/logs/{id}", logHandler.HandleUpdate)
			r.Delete("/logs/{id}", logHandler.HandleDelete)

			r.Get("/stats", statsHandler.HandleStats)
			r.Get("/progress", statsHandler.HandleProgress)
			r.Get("/leaderboard", statsHandler.HandleLeaderboard)
			r.Get("/leaderboard/rank", statsHandler.HandleRank)
		})
	})

	return nil
}

// Start runs the HTTP server until SIGINT/SIGTERM, then drains in-flight
// requests for up to 30 seconds and closes the backend.
func (s *Server) Start() error {
	defer func() {
		if err := s.backend.Close(); err != nil {
			s.logger.Error("closing backend", slog.String("error", err.Error()))
		}
	}()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.cfg.Port),
			slog.String("backend", s.backend.Name()),
			slog.String("avatars", s.cfg.AvatarStorage),
			slog.String("timezone", s.clock.Location().String()),
			slog.Bool("github", s.cfg.GitHubEnabled()),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
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
