// Package ports declares the interfaces the orchestrator depends on.
package ports

import (
	"context"

	"github.com/tjfontaine/agent-launcher/internal/core/domain"
)

// Provisioner creates rooms and starts agents on the bot server.
// Implementations: provisioning.Client.
type Provisioner interface {
	CreateRoom(ctx context.Context) (*domain.RoomConfig, error)
	StartAgent(ctx context.Context, roomURL, token, scenario string) (*domain.JoinCredentials, error)
	// BaseURL returns the normalized base URL used for every call.
	BaseURL() string
}

// SessionGateway is the real-time session capability. Leave and Destroy
// always settle; an error is informational only.
// Implementations: rtc.Bridge, rtc.LogGateway.
type SessionGateway interface {
	Join(ctx context.Context, params domain.JoinParams) error
	Leave(ctx context.Context) error
	Destroy(ctx context.Context) error
}

// Navigator performs a full hand-off to a room URL.
type Navigator interface {
	Navigate(ctx context.Context, url string) error
}

// EventPublisher publishes transition events.
// Implementations: direct (default, writes to storage).
type EventPublisher interface {
	Publish(ctx context.Context, event *domain.TransitionEvent) error
	Close() error
}

// TransitionStore persists transition events.
// Implementations: memory, sqlite.
type TransitionStore interface {
	AppendTransition(ctx context.Context, event *domain.TransitionEvent) error
	ListTransitions(ctx context.Context, sessionID string) ([]*domain.TransitionEvent, error)
	Close() error
}
