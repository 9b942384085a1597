package direct

import (
	"context"
	"testing"
	"time"

	"github.com/tjfontaine/agent-launcher/internal/core/domain"
	"github.com/tjfontaine/agent-launcher/internal/storage/memory"
	"github.com/tjfontaine/agent-launcher/internal/storage/sqlite"
)

func TestNewPublisher(t *testing.T) {
	// Use real SQLite in-memory for testing
	store, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("sqlite.New failed: %v", err)
	}
	defer store.Close()

	publisher, err := NewPublisher(store)
	if err != nil {
		t.Fatalf("NewPublisher failed: %v", err)
	}
	if publisher == nil {
		t.Fatal("NewPublisher returned nil")
	}
}

func TestNewPublisher_NilStorage(t *testing.T) {
	_, err := NewPublisher(nil)
	if err == nil {
		t.Fatal("Expected error for nil storage")
	}
	if err.Error() != "transition store required" {
		t.Errorf("Unexpected error: %v", err)
	}
}

func TestPublish(t *testing.T) {
	store, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("sqlite.New failed: %v", err)
	}
	defer store.Close()

	publisher, _ := NewPublisher(store)
	ctx := context.Background()

	event := &domain.TransitionEvent{
		ID:        "evt-1",
		SessionID: "sess-1",
		From:      domain.StateConfiguringStep2,
		To:        domain.StateRequestingAgent,
		Intent:    "start",
		Timestamp: time.Now(),
	}

	if err := publisher.Publish(ctx, event); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	stored, err := store.ListTransitions(ctx, "sess-1")
	if err != nil {
		t.Fatalf("ListTransitions failed: %v", err)
	}
	if len(stored) != 1 || stored[0].To != domain.StateRequestingAgent {
		t.Errorf("stored = %+v", stored)
	}
}

func TestPublish_StoreError(t *testing.T) {
	publisher, _ := NewPublisher(memory.New())

	// The memory store rejects events without a session id.
	if err := publisher.Publish(context.Background(), &domain.TransitionEvent{ID: "evt-1"}); err == nil {
		t.Error("Expected error from store")
	}
	if err := publisher.Publish(context.Background(), nil); err == nil {
		t.Error("Expected error for nil event")
	}
}

func TestClose(t *testing.T) {
	store := memory.New()
	publisher, _ := NewPublisher(store)

	if err := publisher.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
}
