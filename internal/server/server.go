// Package server exposes a launcher session over HTTP: configuration, state,
// intents, a server-sent event stream, history and Prometheus metrics.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/tjfontaine/agent-launcher/internal/core/domain"
	"github.com/tjfontaine/agent-launcher/internal/core/ports"
	"github.com/tjfontaine/agent-launcher/internal/pkg/config"
)

const defaultRequestTimeout = 60 * time.Second

// Session is the part of the orchestrator the HTTP surface drives.
type Session interface {
	SessionID() string
	InitialState() domain.State
	Catalog() domain.Catalog
	Snapshot() domain.Snapshot
	Dispatch(ctx context.Context, intent domain.Intent) error
	Subscribe(fn func(domain.Snapshot)) (unsubscribe func())
}

// AgentStatusChecker reports whether a started agent is still running.
type AgentStatusChecker interface {
	AgentStatus(ctx context.Context, botID string) (*domain.AgentStatus, error)
}

// Option configures a Server.
type Option func(*Server)

// WithSession sets the session served under /api. Required unless the
// server runs in maintenance mode.
func WithSession(s Session) Option {
	return func(srv *Server) { srv.session = s }
}

// WithHistory serves stored transitions under /api/history.
func WithHistory(store ports.TransitionStore) Option {
	return func(srv *Server) { srv.history = store }
}

// WithAgentStatus serves /api/agent/status.
func WithAgentStatus(c AgentStatusChecker) Option {
	return func(srv *Server) { srv.status = c }
}

// WithRequestTimeout overrides the per-request deadline.
func WithRequestTimeout(d time.Duration) Option {
	return func(srv *Server) { srv.timeout = d }
}

// WithMetricsHandler replaces the default Prometheus handler.
func WithMetricsHandler(h http.Handler) Option {
	return func(srv *Server) { srv.metrics = h }
}

type Server struct {
	Router *chi.Mux
	Port   int

	cfg     *config.Config
	logger  *slog.Logger
	session Session
	history ports.TransitionStore
	status  AgentStatusChecker
	metrics http.Handler
	timeout time.Duration

	httpServer *http.Server
	closing    chan struct{}
	closeOnce  sync.Once
}

// New builds the router. In maintenance mode every route except /metrics
// answers with the maintenance notice and no session is needed.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		Router:  chi.NewRouter(),
		Port:    cfg.Listen.Port,
		cfg:     cfg,
		logger:  logger,
		metrics: promhttp.Handler(),
		timeout: defaultRequestTimeout,
		closing: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.session == nil && !cfg.App.Maintenance {
		return nil, fmt.Errorf("session required (use WithSession)")
	}

	r := s.Router

	// Apply middleware in order
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(logger))
	r.Use(middleware.Recoverer)

	// Wrap with OpenTelemetry HTTP instrumentation
	r.Use(func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, "agent-launcher")
	})

	if cfg.App.Maintenance {
		r.Use(MaintenanceMiddleware(DefaultMaintenanceNotice))
	}

	r.Handle("/metrics", s.metrics)

	if s.session != nil {
		h := &handlers{
			cfg:     cfg,
			session: s.session,
			history: s.history,
			status:  s.status,
			closing: s.closing,
		}
		r.Route("/api", func(r chi.Router) {
			// The event stream lives as long as the client stays connected.
			r.Get("/events", h.events)

			r.Group(func(r chi.Router) {
				r.Use(TimeoutMiddleware(s.timeout))
				r.Get("/config", h.config)
				r.Get("/state", h.state)
				r.Post("/intents/{name}", h.intent)
				r.Get("/agent/status", h.agentStatus)
				r.Get("/history", h.historyList)
			})
		})
	}

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.Port),
		Handler:           s.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s, nil
}

// Start serves until Shutdown is called. It returns nil after a clean
// shutdown.
func (s *Server) Start() error {
	s.logger.Info("starting server",
		slog.Int("port", s.Port),
		slog.Bool("maintenance", s.cfg.App.Maintenance))

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones, or for
// ctx to expire.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down server")
	s.closeOnce.Do(func() { close(s.closing) })
	return s.httpServer.Shutdown(ctx)
}
