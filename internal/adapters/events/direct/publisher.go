// Package direct provides a direct event publisher that writes to storage.
package direct

import (
	"context"
	"fmt"

	"github.com/tjfontaine/agent-launcher/internal/core/domain"
	"github.com/tjfontaine/agent-launcher/internal/core/ports"
)

// Publisher implements ports.EventPublisher by writing directly to storage.
// This is the default implementation for single-process deployments.
type Publisher struct {
	store ports.TransitionStore
}

var _ ports.EventPublisher = (*Publisher)(nil)

// NewPublisher creates a new direct event publisher.
func NewPublisher(store ports.TransitionStore) (*Publisher, error) {
	if store == nil {
		return nil, fmt.Errorf("transition store required")
	}

	return &Publisher{
		store: store,
	}, nil
}

// Publish writes a transition event directly to storage.
func (p *Publisher) Publish(ctx context.Context, event *domain.TransitionEvent) error {
	if event == nil {
		return fmt.Errorf("transition event required")
	}
	if err := p.store.AppendTransition(ctx, event); err != nil {
		return fmt.Errorf("store transition %s: %w", event.ID, err)
	}
	return nil
}

// Close is a no-op for direct publisher. The store is owned by the caller.
func (p *Publisher) Close() error {
	return nil
}
