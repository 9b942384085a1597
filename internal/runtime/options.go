package runtime

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/tjfontaine/agent-launcher/internal/adapters/events/direct"
	"github.com/tjfontaine/agent-launcher/internal/core/ports"
	"github.com/tjfontaine/agent-launcher/internal/pkg/config"
	"github.com/tjfontaine/agent-launcher/internal/rtc"
	"github.com/tjfontaine/agent-launcher/internal/storage/memory"
	"github.com/tjfontaine/agent-launcher/internal/storage/sqlite"
)

// Option is a functional option for configuring a Launcher.
type Option func(*Launcher) error

// WithConfig uses an already loaded configuration.
func WithConfig(cfg *config.Config) Option {
	return func(l *Launcher) error {
		if cfg == nil {
			return fmt.Errorf("config cannot be nil")
		}
		l.cfg = cfg
		return nil
	}
}

// WithFileConfig loads configuration from a YAML file and the environment.
// A missing file is not an error; defaults and environment still apply.
func WithFileConfig(path string) Option {
	return func(l *Launcher) error {
		cfg, err := config.Load(path)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		l.cfg = cfg
		return nil
	}
}

// WithSQLite stores transition history in a SQLite database.
func WithSQLite(path string) Option {
	return func(l *Launcher) error {
		store, err := sqlite.New(path)
		if err != nil {
			return fmt.Errorf("create sqlite storage: %w", err)
		}
		l.store = store
		return nil
	}
}

// WithMemoryStorage keeps transition history in memory.
func WithMemoryStorage() Option {
	return func(l *Launcher) error {
		l.store = memory.New()
		return nil
	}
}

// WithStore sets a custom transition store.
func WithStore(store ports.TransitionStore) Option {
	return func(l *Launcher) error {
		l.store = store
		return nil
	}
}

// WithDirectEvents writes transition events directly to storage (default).
func WithDirectEvents() Option {
	return func(l *Launcher) error {
		if l.store == nil {
			return fmt.Errorf("storage must be set before event publisher")
		}
		publisher, err := direct.NewPublisher(l.store)
		if err != nil {
			return fmt.Errorf("create direct event publisher: %w", err)
		}
		l.events = publisher
		return nil
	}
}

// WithEventPublisher sets a custom event publisher.
func WithEventPublisher(publisher ports.EventPublisher) Option {
	return func(l *Launcher) error {
		l.events = publisher
		return nil
	}
}

// WithBridge drives the real-time client over a websocket at url.
func WithBridge(url string) Option {
	return func(l *Launcher) error {
		bridge, err := rtc.NewBridge(url, rtc.WithBridgeLogger(l.logger))
		if err != nil {
			return fmt.Errorf("create rtc bridge: %w", err)
		}
		l.gateway = bridge
		return nil
	}
}

// WithGateway sets a custom session gateway.
func WithGateway(g ports.SessionGateway) Option {
	return func(l *Launcher) error {
		l.gateway = g
		return nil
	}
}

// WithProvisioner sets a custom bot server client.
func WithProvisioner(p ports.Provisioner) Option {
	return func(l *Launcher) error {
		l.provisioner = p
		return nil
	}
}

// WithNavigator sets where redirect hand-offs go.
func WithNavigator(n ports.Navigator) Option {
	return func(l *Launcher) error {
		l.navigator = n
		return nil
	}
}

// WithNavigatorWriter prints redirect URLs to w.
func WithNavigatorWriter(w io.Writer) Option {
	return func(l *Launcher) error {
		l.navigator = rtc.NewWriterNavigator(w)
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Launcher) error {
		if logger == nil {
			return fmt.Errorf("logger cannot be nil")
		}
		l.logger = logger
		return nil
	}
}
