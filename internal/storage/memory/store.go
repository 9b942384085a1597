package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tjfontaine/agent-launcher/internal/storage"
)

// Store is an in-memory implementation of TransitionStore.
type Store struct {
	mu       sync.RWMutex
	sessions map[string][]*storage.TransitionEvent
}

var _ storage.TransitionStore = (*Store)(nil)

// New creates a new in-memory store
func New() *Store {
	return &Store{
		sessions: make(map[string][]*storage.TransitionEvent),
	}
}

func (s *Store) AppendTransition(ctx context.Context, event *storage.TransitionEvent) error {
	if event == nil {
		return fmt.Errorf("transition event required")
	}
	if event.SessionID == "" {
		return fmt.Errorf("transition event %s has no session id", event.ID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *event
	if stored.Timestamp.IsZero() {
		stored.Timestamp = time.Now()
	}
	s.sessions[event.SessionID] = append(s.sessions[event.SessionID], &stored)
	return nil
}

// ListTransitions returns a session's events in the order they were appended.
func (s *Store) ListTransitions(ctx context.Context, sessionID string) ([]*storage.TransitionEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	events := s.sessions[sessionID]
	result := make([]*storage.TransitionEvent, 0, len(events))
	for _, e := range events {
		copied := *e
		result = append(result, &copied)
	}
	return result, nil
}

func (s *Store) Close() error {
	return nil
}
