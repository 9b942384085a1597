// Package storage holds the transition history stores.
package storage

import (
	"github.com/tjfontaine/agent-launcher/internal/core/domain"
	"github.com/tjfontaine/agent-launcher/internal/core/ports"
)

// Re-exported so store implementations and their callers share one import.
type (
	TransitionStore = ports.TransitionStore
	TransitionEvent = domain.TransitionEvent
)
