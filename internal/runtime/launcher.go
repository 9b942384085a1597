// Package runtime assembles a launcher from configuration: storage, event
// publishing, the bot server client, the session gateway, the orchestrator
// and the HTTP surface, and manages their lifecycle.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/tjfontaine/agent-launcher/internal/adapters/events/direct"
	"github.com/tjfontaine/agent-launcher/internal/core/domain"
	"github.com/tjfontaine/agent-launcher/internal/core/ports"
	"github.com/tjfontaine/agent-launcher/internal/orchestrator"
	"github.com/tjfontaine/agent-launcher/internal/pkg/config"
	"github.com/tjfontaine/agent-launcher/internal/provisioning"
	"github.com/tjfontaine/agent-launcher/internal/rtc"
	"github.com/tjfontaine/agent-launcher/internal/server"
	"github.com/tjfontaine/agent-launcher/internal/storage/memory"
	"github.com/tjfontaine/agent-launcher/internal/storage/sqlite"
)

const leavePollInterval = 20 * time.Millisecond

// Launcher is the main entry point for running an agent launcher.
// It can be embedded in larger applications or run standalone.
type Launcher struct {
	cfg         *config.Config
	store       ports.TransitionStore
	events      ports.EventPublisher
	provisioner ports.Provisioner
	gateway     ports.SessionGateway
	navigator   ports.Navigator
	logger      *slog.Logger

	orch   *orchestrator.Orchestrator
	server *server.Server

	errCh chan error
	mu    sync.Mutex
}

// New creates a Launcher. Anything not set through options is built from
// the configuration: storage from storage.type, the bot server client from
// backend.url, and the gateway from bridge.url (a log-only gateway when
// empty).
func New(opts ...Option) (*Launcher, error) {
	l := &Launcher{
		logger: slog.Default(),
		errCh:  make(chan error, 1),
	}

	for _, opt := range opts {
		if err := opt(l); err != nil {
			return nil, fmt.Errorf("apply option: %w", err)
		}
	}

	if l.cfg == nil {
		return nil, fmt.Errorf("config required (use WithConfig or WithFileConfig)")
	}
	cfg := l.cfg

	if cfg.App.Maintenance {
		srv, err := server.New(cfg, l.logger)
		if err != nil {
			return nil, fmt.Errorf("create server: %w", err)
		}
		l.server = srv
		l.logger.Warn("maintenance mode enabled, serving notice only")
		return l, nil
	}

	if err := l.initDefaults(); err != nil {
		l.closeResources()
		return nil, err
	}

	orchOpts := []orchestrator.Option{
		orchestrator.WithGateway(l.gateway),
		orchestrator.WithLogger(l.logger),
	}
	if l.provisioner != nil {
		orchOpts = append(orchOpts, orchestrator.WithProvisioner(l.provisioner))
	}
	if l.navigator != nil {
		orchOpts = append(orchOpts, orchestrator.WithNavigator(l.navigator))
	}
	if l.events != nil {
		orchOpts = append(orchOpts, orchestrator.WithEventPublisher(l.events))
	}

	orch, err := orchestrator.New(cfg, orchOpts...)
	if err != nil {
		l.closeResources()
		return nil, fmt.Errorf("create orchestrator: %w", err)
	}
	l.orch = orch

	serverOpts := []server.Option{server.WithSession(orch)}
	if l.store != nil {
		serverOpts = append(serverOpts, server.WithHistory(l.store))
	}
	if checker, ok := l.provisioner.(server.AgentStatusChecker); ok {
		serverOpts = append(serverOpts, server.WithAgentStatus(checker))
	}
	srv, err := server.New(cfg, l.logger, serverOpts...)
	if err != nil {
		l.closeResources()
		return nil, fmt.Errorf("create server: %w", err)
	}
	l.server = srv

	return l, nil
}

func (l *Launcher) initDefaults() error {
	cfg := l.cfg

	if l.store == nil {
		switch cfg.Storage.Type {
		case "sqlite":
			store, err := sqlite.New(cfg.Storage.SQLite.Path)
			if err != nil {
				return fmt.Errorf("create sqlite storage: %w", err)
			}
			l.store = store
		case "memory", "":
			l.store = memory.New()
		case "none":
			l.logger.Info("transition history disabled")
		default:
			return fmt.Errorf("unknown storage type %q", cfg.Storage.Type)
		}
	}

	if l.events == nil && l.store != nil {
		publisher, err := direct.NewPublisher(l.store)
		if err != nil {
			return fmt.Errorf("create default event publisher: %w", err)
		}
		l.events = publisher
	}

	if l.provisioner == nil && cfg.ProvisioningEnabled() {
		client, err := provisioning.NewClient(cfg.Backend.URL, provisioning.WithTimeout(cfg.Backend.Timeout))
		if err != nil {
			return fmt.Errorf("create provisioning client: %w", err)
		}
		l.provisioner = client
	}

	if l.gateway == nil {
		if cfg.Bridge.URL != "" {
			bridge, err := rtc.NewBridge(cfg.Bridge.URL, rtc.WithBridgeLogger(l.logger))
			if err != nil {
				return fmt.Errorf("create rtc bridge: %w", err)
			}
			l.gateway = bridge
		} else {
			l.logger.Info("no rtc bridge configured, using log-only gateway")
			l.gateway = rtc.NewLogGateway(l.logger)
		}
	}

	if l.navigator == nil {
		l.navigator = rtc.NewWriterNavigator(os.Stdout)
	}

	return nil
}

// Config returns the configuration the launcher was built with.
func (l *Launcher) Config() *config.Config {
	return l.cfg
}

// Orchestrator returns the session orchestrator, or nil in maintenance mode.
func (l *Launcher) Orchestrator() *orchestrator.Orchestrator {
	return l.orch
}

// Server returns the HTTP surface, for embedding its router elsewhere.
func (l *Launcher) Server() *server.Server {
	return l.server
}

// Start begins serving HTTP in the background. Serve errors are delivered
// on Err.
func (l *Launcher) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	go func() {
		if err := l.server.Start(); err != nil {
			l.logger.Error("server error", slog.String("error", err.Error()))
			l.errCh <- err
		}
	}()

	attrs := []any{
		slog.Int("port", l.cfg.Listen.Port),
		slog.Bool("maintenance", l.cfg.App.Maintenance),
	}
	if l.orch != nil {
		attrs = append(attrs,
			slog.String("session_id", l.orch.SessionID()),
			slog.String("state", l.orch.CurrentState().String()),
			slog.Bool("provisioning", l.cfg.ProvisioningEnabled()))
	}
	l.logger.InfoContext(ctx, "launcher started", attrs...)
	return nil
}

// Err reports a failure of the background HTTP server.
func (l *Launcher) Err() <-chan error {
	return l.errCh
}

// AutostartOptions are the choices a user would make on the setup screens.
type AutostartOptions struct {
	Scenario      string
	Redirect      bool
	StartAudioOff bool
}

// Autostart walks the setup flow without a user: it passes the entry gate
// when the session starts idle, applies the device preference, proceeds and
// starts. It returns the error of the first intent that fails.
func (l *Launcher) Autostart(ctx context.Context, opts AutostartOptions) error {
	if l.orch == nil {
		return fmt.Errorf("autostart unavailable in maintenance mode")
	}

	var intents []domain.Intent
	if l.orch.CurrentState() == domain.StateIdle {
		intents = append(intents, domain.SubmitRoom{URL: l.cfg.Room.URL})
	}
	intents = append(intents,
		domain.SetStartAudioOff{Off: opts.StartAudioOff},
		domain.Proceed{},
		domain.Start{Scenario: opts.Scenario, Redirect: opts.Redirect},
	)

	for _, in := range intents {
		if err := l.orch.Dispatch(ctx, in); err != nil {
			return fmt.Errorf("autostart %s: %w", in.IntentName(), err)
		}
	}
	return nil
}

// Shutdown gracefully stops the launcher. An intent still in flight is
// allowed to settle, and a connected session is left before storage is
// closed so the final transition is recorded.
func (l *Launcher) Shutdown(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.logger.Info("shutting down launcher")

	var errs []error
	if l.server != nil {
		if err := l.server.Shutdown(ctx); err != nil {
			l.logger.Error("failed to shutdown server", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	if l.orch != nil {
		l.leaveSession(ctx)
	}

	l.closeResources()

	l.logger.Info("launcher shutdown complete")
	return errors.Join(errs...)
}

// leaveSession waits for an in-flight intent to settle and then leaves a
// connected session. It gives up when ctx expires.
func (l *Launcher) leaveSession(ctx context.Context) {
	ticker := time.NewTicker(leavePollInterval)
	defer ticker.Stop()

	for {
		err := l.orch.Dispatch(ctx, domain.Leave{})
		switch {
		case err == nil:
			return
		case errors.Is(err, domain.ErrInvalidTransition):
			// Not connected and not in the initial state: nothing to leave.
			return
		case !errors.Is(err, domain.ErrBusy):
			l.logger.Warn("failed to leave session", slog.String("error", err.Error()))
			return
		}

		select {
		case <-ctx.Done():
			l.logger.Warn("gave up waiting for in-flight intent",
				slog.String("state", l.orch.CurrentState().String()),
				slog.String("error", ctx.Err().Error()))
			return
		case <-ticker.C:
		}
	}
}

func (l *Launcher) closeResources() {
	if l.events != nil {
		if err := l.events.Close(); err != nil {
			l.logger.Error("failed to close events", slog.String("error", err.Error()))
		}
	}
	if l.store != nil {
		if err := l.store.Close(); err != nil {
			l.logger.Error("failed to close storage", slog.String("error", err.Error()))
		}
	}
}
