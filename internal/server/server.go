// Package server is the composition root: it opens the stores, builds the
// services and handlers, and mounts them on a chi router with the access
// rule each route needs.
//
// DEPENDENCY FLOW:
//
//	config.Config
//	  → sqlite.DB (users, games, carts), cache (Redis or no-op)
//	  → auth.TokenService, auth.PasswordService, auth.Gate
//	  → service.{Auth,User,Game,Cart}Service
//	  → handler.{Auth,User,Game,Cart,Health}Handler
//	  → routes
//
// Handlers never see the database; services never see HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/green-gaming/internal/auth"
	"github.com/sakif/green-gaming/internal/cache"
	"github.com/sakif/green-gaming/internal/config"
	"github.com/sakif/green-gaming/internal/handler"
	"github.com/sakif/green-gaming/internal/middleware"
	sqliteRepo "github.com/sakif/green-gaming/internal/repository/sqlite"
	"github.com/sakif/green-gaming/internal/service"
)

// Server owns the router and every long-lived resource. Start closes them on
// the way out; tests that never call Start call Close.
type Server struct {
	router *chi.Mux
	config *config.Config
	logger *slog.Logger

	db    *sqliteRepo.DB
	redis *cache.Redis // nil when no Redis is configured or it was unreachable

	passwords *auth.PasswordService
	cache     cache.Cache
}

// Option overrides a dependency New would otherwise build from config.
type Option func(*Server)

// WithPasswordService swaps the bcrypt cost, mostly so tests don't spend a
// quarter second on every hash.
func WithPasswordService(p *auth.PasswordService) Option {
	return func(s *Server) { s.passwords = p }
}

// WithCache replaces the Redis-or-nothing catalog cache.
func WithCache(c cache.Cache) Option {
	return func(s *Server) { s.cache = c }
}

// New opens the database, connects the cache, seeds the admin account if one
// is configured and mounts every route.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Server, error) {
	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		db:     db,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.passwords == nil {
		s.passwords = auth.NewPasswordService()
	}
	if s.cache == nil {
		s.cache = s.connectCache()
	}

	if err := s.setupRoutes(); err != nil {
		s.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

// connectCache returns Redis when it is configured and answering. A Redis
// that is configured but down is logged and skipped; the catalog is still
// served straight from SQLite.
func (s *Server) connectCache() cache.Cache {
	if s.config.Redis.Addr == "" {
		return cache.Noop{}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	r, err := cache.NewRedis(ctx, cache.RedisOptions{
		Addr:     s.config.Redis.Addr,
		Password: s.config.Redis.Password,
		DB:       s.config.Redis.DB,
		Prefix:   s.config.Redis.Prefix,
	})
	if err != nil {
		s.logger.Warn("redis unavailable, catalog cache disabled",
			slog.String("addr", s.config.Redis.Addr),
			slog.String("error", err.Error()),
		)
		return cache.Noop{}
	}

	s.logger.Info("catalog cache enabled", slog.String("addr", s.config.Redis.Addr))
	s.redis = r
	return r
}

// Handler exposes the router, for httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes wires services to handlers and handlers to routes.
//
// MIDDLEWARE ORDER:
//  1. RequestID: tags each request, picked up by the logger
//  2. ClientIP: behind a trusted proxy, RemoteAddr becomes the forwarded
//     client address; the login limiter keys on it
//  3. Logger
//  4. Recoverer: a panic becomes a 500 instead of killing the process
//
// ACCESS RULES are attached per route with With(...), so each line below
// reads as "method, path, who may call it, handler".
func (s *Server) setupRoutes() error {
	proxies, err := s.config.ProxyPrefixes()
	if err != nil {
		return err
	}

	s.router.Use(chimiddleware.RequestID)
	s.router.Use(middleware.ClientIP(proxies))
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)

	tokens, err := auth.NewTokenService(s.config.Auth.JWTSecret, s.config.Auth.TokenTTL)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}
	users := s.db.Users()
	gate := auth.NewGate(tokens, auth.WithAccounts(users))

	authService := service.NewAuthService(users, tokens, s.passwords, s.logger)
	userService := service.NewUserService(users, s.passwords, s.logger)
	gameService := service.NewGameService(s.db.Games(), s.cache, s.logger)
	cartService := service.NewCartService(s.db.Carts(), users, s.db.Games(), s.logger)

	if s.config.AdminConfigured() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if _, err := authService.EnsureAdmin(ctx, s.config.Admin.Email, s.config.Admin.Password); err != nil {
			return fmt.Errorf("seeding admin account: %w", err)
		}
	}

	ghConfig := auth.GitHubConfig{
		ClientID:     s.config.GitHub.ClientID,
		ClientSecret: s.config.GitHub.ClientSecret,
		CallbackURL:  s.config.GitHub.CallbackURL,
	}
	var github *auth.GitHubProvider
	if ghConfig.Enabled() {
		github = auth.NewGitHubProvider(ghConfig)
	}

	authHandler := handler.NewAuthHandler(authService, userService, tokens, github, s.config.Auth.CookieSecure, s.logger)
	userHandler := handler.NewUserHandler(authService, userService, s.logger)
	gameHandler := handler.NewGameHandler(gameService, s.logger)
	cartHandler := handler.NewCartHandler(cartService, s.logger)

	checks := map[string]handler.Pinger{"database": s.db}
	if s.redis != nil {
		checks["cache"] = s.redis
	}
	s.router.Method(http.MethodGet, "/healthz", handler.NewHealthHandler(checks, s.logger))

	limiter := middleware.NewRateLimiter(s.config.Auth.LoginPerMinute, s.config.Auth.LoginBurst, s.logger)

	public := gate.Require(auth.Public)
	authenticated := gate.Require(auth.Authenticated)
	admin := gate.Require(auth.Admin)

	if github != nil {
		s.router.Get("/auth/github/login", authHandler.HandleGitHubLogin)
		s.router.Get("/auth/github/callback", authHandler.HandleGitHubCallback)
		s.logger.Info("GitHub sign-in enabled")
	}

	s.router.Route("/api", func(r chi.Router) {
		r.With(limiter.Handler).Post("/auth/login", authHandler.HandleLogin)
		r.Post("/auth/logout", authHandler.HandleLogout)
		r.With(authenticated).Get("/me", authHandler.HandleMe)

		r.Route("/games", func(r chi.Router) {
			r.With(public).Get("/", gameHandler.HandleList)
			r.With(public).Get("/{id}", gameHandler.HandleGet)
			r.With(admin).Post("/", gameHandler.HandleCreate)
			r.With(admin).Patch("/{id}", gameHandler.HandleUpdate)
			r.With(admin).Delete("/{id}", gameHandler.HandleDelete)
		})

		r.Route("/carts/{userId}", func(r chi.Router) {
			r.Use(gate.RequireOwnerOrAdmin("userId"))
			r.Get("/", cartHandler.HandleGet)
			r.Post("/", cartHandler.HandleAdd)
			r.Get("/items/{gameId}", cartHandler.HandleContains)
			r.Delete("/items/{gameId}", cartHandler.HandleRemove)
			r.Delete("/clear", cartHandler.HandleClear)
		})

		r.Route("/users", func(r chi.Router) {
			r.Post("/", userHandler.HandleRegister)
			r.With(admin).Get("/", userHandler.HandleList)
			r.With(gate.RequireOwnerOrAdmin("id")).Get("/{id}", userHandler.HandleGet)
			r.With(gate.RequireOwnerOrAdmin("id")).Patch("/{id}", userHandler.HandleUpdate)
			r.With(admin).Delete("/{id}", userHandler.HandleDelete)
		})
	})

	return nil
}

// Close releases the database and the cache connection.
func (s *Server) Close() error {
	var errs []error
	if s.redis != nil {
		errs = append(errs, s.redis.Close())
	}
	errs = append(errs, s.db.Close())
	return errors.Join(errs...)
}

// Start serves until SIGINT or SIGTERM, then drains in-flight requests for up
// to 30 seconds and closes the stores.
func (s *Server) Start() error {
	defer s.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
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
			slog.Int("port", s.config.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Port)),
			slog.String("database", s.config.DBPath),
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
