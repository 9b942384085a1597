// Package launcher provides the public API for embedding the agent launcher.
// This is the stable API for external consumers.
package launcher

import (
	"github.com/tjfontaine/agent-launcher/internal/runtime"
)

// Launcher is the main entry point for running the agent launcher.
// See internal/runtime.Launcher for full documentation.
type Launcher = runtime.Launcher

// Option is a functional option for configuring a Launcher.
type Option = runtime.Option

// AutostartOptions select the scenario and devices for an unattended start.
type AutostartOptions = runtime.AutostartOptions

// New creates a new Launcher with the given options.
// Example:
//
//	l, err := launcher.New(
//	    launcher.WithFileConfig("config.yaml"),
//	    launcher.WithSQLite("./data/launcher.db"),
//	)
var New = runtime.New

// Configuration options
var (
	// Config sources
	WithConfig     = runtime.WithConfig
	WithFileConfig = runtime.WithFileConfig

	// Storage
	WithSQLite        = runtime.WithSQLite
	WithMemoryStorage = runtime.WithMemoryStorage
	WithStore         = runtime.WithStore

	// Events
	WithDirectEvents   = runtime.WithDirectEvents
	WithEventPublisher = runtime.WithEventPublisher

	// Session collaborators
	WithBridge          = runtime.WithBridge
	WithGateway         = runtime.WithGateway
	WithProvisioner     = runtime.WithProvisioner
	WithNavigator       = runtime.WithNavigator
	WithNavigatorWriter = runtime.WithNavigatorWriter

	WithLogger = runtime.WithLogger
)
