package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/wifigate/wifigate/internal/audit"
	"github.com/wifigate/wifigate/internal/auth"
	"github.com/wifigate/wifigate/internal/handler"
	"github.com/wifigate/wifigate/internal/model"
	"github.com/wifigate/wifigate/internal/server/middleware"
	"github.com/wifigate/wifigate/internal/store"
)

// Config holds the HTTP server configuration.
type Config struct {
	Host            string
	Port            int
	ShutdownTimeout time.Duration
	CORSOrigins     []string
	RateLimit       int // requests per minute per IP
	LoginRateLimit  int // login attempts per minute per IP
}

// DefaultConfig returns a Config with sensible production defaults.
func DefaultConfig() Config {
	return Config{
		Host:            "0.0.0.0",
		Port:            8080,
		ShutdownTimeout: 30 * time.Second,
		CORSOrigins:     []string{"*"},
		RateLimit:       300,
		LoginRateLimit:  10,
	}
}

// Server is the top-level HTTP server. It owns the Chi router, the data
// store, the token service, and the audit recorder.
type Server struct {
	cfg        Config
	router     chi.Router
	store      *store.Store
	tokens     *auth.TokenService
	recorder   *audit.Recorder
	httpServer *http.Server
	logger     *slog.Logger
}

// New creates a new Server, wires up all routes and middleware, and returns
// it ready to listen. Call ListenAndServe to start accepting connections.
func New(cfg Config, st *store.Store, tokens *auth.TokenService, recorder *audit.Recorder, logger *slog.Logger) *Server {
	s := &Server{
		cfg:      cfg,
		store:    st,
		tokens:   tokens,
		recorder: recorder,
		logger:   logger,
	}
	s.setupRouter()
	return s
}

func (s *Server) setupRouter() {
	r := chi.NewRouter()

	// --- Global middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(s.logger))
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	if s.cfg.RateLimit > 0 {
		r.Use(middleware.RateLimit(s.cfg.RateLimit))
	}

	// --- Health checks (no auth required) ---
	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)

	authHandler := handler.NewAuthHandler(s.tokens, s.recorder)
	adminHandler := handler.NewAdminHandler(s.store, s.tokens, s.recorder)
	userHandler := handler.NewUserHandler(s.store, s.recorder)
	voucherHandler := handler.NewVoucherHandler(s.store, s.recorder)
	reportHandler := handler.NewReportHandler(s.store)

	r.Route("/api/v1", func(r chi.Router) {

		// Session lifecycle
		r.Route("/auth", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				if s.cfg.LoginRateLimit > 0 {
					r.Use(middleware.LoginRateLimit(s.cfg.LoginRateLimit))
				}
				r.Post("/login", authHandler.Login)
			})
			r.Post("/refresh", authHandler.Refresh)
			r.With(middleware.OptionalAuth(s.tokens)).Post("/logout", authHandler.Logout)
			r.With(middleware.Authenticate(s.tokens)).Get("/me", authHandler.Me)
		})

		// Admin account management
		r.Route("/admins", func(r chi.Router) {
			r.Use(middleware.Authenticate(s.tokens))

			r.With(middleware.RequireRole(model.RoleSuperAdmin)).Get("/", adminHandler.List)
			r.With(middleware.RequirePermission(model.ActionCreateAdmin)).Post("/", adminHandler.Create)

			r.Route("/{id}", func(r chi.Router) {
				r.Use(middleware.RequireOwnershipOrRole("id", model.RoleSuperAdmin))
				r.Get("/", adminHandler.Get)
				r.Put("/", adminHandler.Update)
				r.With(middleware.RequirePermission(model.ActionDeactivateAdmin)).
					Delete("/", adminHandler.Deactivate)
			})
		})

		// Hotspot users
		r.Route("/users", func(r chi.Router) {
			r.Use(middleware.Authenticate(s.tokens))
			r.Use(middleware.RequirePermission(model.ActionManageUsers))

			r.Get("/", userHandler.List)
			r.Post("/", userHandler.Create)
			r.Get("/{id}", userHandler.Get)
			r.Put("/{id}", userHandler.Update)
			r.Delete("/{id}", userHandler.Delete)
		})

		// Vouchers
		r.Route("/vouchers", func(r chi.Router) {
			r.Use(middleware.Authenticate(s.tokens))
			r.Use(middleware.RequirePermission(model.ActionManageVouchers))

			r.Post("/", voucherHandler.Generate)
			r.Get("/", voucherHandler.List)
			r.Get("/summary", voucherHandler.Summary)
			r.Post("/{code}/redeem", voucherHandler.Redeem)
		})

		// Reports
		r.Route("/reports", func(r chi.Router) {
			r.Use(middleware.Authenticate(s.tokens))
			r.Use(middleware.RequirePermission(model.ActionViewReports))

			r.Get("/vouchers", voucherHandler.Summary)
			r.With(middleware.RequireRole(model.RoleSuperAdmin)).Get("/audit", reportHandler.Audit)
		})
	})

	s.router = r
}

// handleHealthz is a liveness probe. Returns 200 if the process is running.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`)) //nolint:errcheck
}

// handleReadyz is a readiness probe. Returns 200 when the store is
// reachable, 503 otherwise.
func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	httpStatus := http.StatusOK
	if err := s.store.Ping(r.Context()); err != nil {
		status = "degraded: " + err.Error()
		httpStatus = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)
	json.NewEncoder(w).Encode(map[string]string{"status": status}) //nolint:errcheck
}

// ListenAndServe starts the HTTP server and blocks until a SIGINT or SIGTERM
// is received. It then performs a graceful shutdown, draining in-flight
// requests and flushing the audit recorder before returning.
func (s *Server) ListenAndServe() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go s.janitor(ctx)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", "addr", addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server listen: %w", err)
	case <-ctx.Done():
		s.logger.Info("shutdown signal received, draining connections...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	if err := s.recorder.Stop(shutdownCtx); err != nil {
		s.logger.Warn("audit recorder drain incomplete", "error", err)
	}
	s.logger.Info("server stopped")
	return nil
}

// janitor periodically removes refresh tokens past their expiry. The table
// would otherwise grow by one row per login forever.
func (s *Server) janitor(ctx context.Context) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			opCtx, cancel := context.WithTimeout(context.Background(), store.DefaultTimeout)
			n, err := s.store.DeleteExpiredTokens(opCtx)
			cancel()
			if err != nil {
				s.logger.Warn("expired token cleanup failed", "error", err)
			} else if n > 0 {
				s.logger.Info("expired refresh tokens removed", "count", n)
			}
		}
	}
}

// Router returns the underlying Chi router, useful for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

// ServeHTTP implements http.Handler, delegating to the router.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
