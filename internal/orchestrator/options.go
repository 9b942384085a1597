package orchestrator

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/tjfontaine/agent-launcher/internal/core/ports"
)

// Option is a functional option for configuring an Orchestrator.
type Option func(*Orchestrator) error

// WithProvisioner sets the bot server client. Required when provisioning
// is enabled in the configuration.
func WithProvisioner(p ports.Provisioner) Option {
	return func(o *Orchestrator) error {
		if p == nil {
			return fmt.Errorf("provisioner cannot be nil")
		}
		o.provisioner = p
		return nil
	}
}

// WithGateway sets the real-time session gateway (required).
func WithGateway(g ports.SessionGateway) Option {
	return func(o *Orchestrator) error {
		if g == nil {
			return fmt.Errorf("session gateway cannot be nil")
		}
		o.gateway = g
		return nil
	}
}

// WithNavigator sets the target for redirect hand-offs. Without one,
// redirect requests fall back to joining inline.
func WithNavigator(n ports.Navigator) Option {
	return func(o *Orchestrator) error {
		o.navigator = n
		return nil
	}
}

// WithEventPublisher publishes every transition.
func WithEventPublisher(p ports.EventPublisher) Option {
	return func(o *Orchestrator) error {
		o.events = p
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) error {
		if logger == nil {
			return fmt.Errorf("logger cannot be nil")
		}
		o.logger = logger
		return nil
	}
}

// WithSessionID overrides the generated session id.
func WithSessionID(id string) Option {
	return func(o *Orchestrator) error {
		if id == "" {
			return fmt.Errorf("session id cannot be empty")
		}
		o.sessionID = id
		return nil
	}
}

// WithClock replaces time.Now for event timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) error {
		o.now = now
		return nil
	}
}
