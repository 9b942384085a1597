// Package domain holds the session launcher's core types: states, intents,
// room references, scenarios and the errors shared across packages.
package domain

// State is the orchestrator's session state.
type State string

const (
	StateIdle             State = "idle"
	StateConfiguringStep1 State = "configuring_step1"
	StateConfiguringStep2 State = "configuring_step2"
	StateRequestingAgent  State = "requesting_agent"
	StateConnecting       State = "connecting"
	StateConnected        State = "connected"
	StateError            State = "error"

	// StateFinished is entered after the user was handed off to the
	// provisioned room by a full navigation. Nothing follows it.
	StateFinished State = "finished"
)

// States lists every state in declaration order.
var States = []State{
	StateIdle,
	StateConfiguringStep1,
	StateConfiguringStep2,
	StateRequestingAgent,
	StateConnecting,
	StateConnected,
	StateError,
	StateFinished,
}

// String implements fmt.Stringer.
func (s State) String() string {
	return string(s)
}

// InFlight reports whether the state owns an outstanding asynchronous call.
func (s State) InFlight() bool {
	return s == StateRequestingAgent || s == StateConnecting
}

// Terminal reports whether only a process restart leaves the state.
func (s State) Terminal() bool {
	return s == StateError || s == StateFinished
}

// Configuring reports whether the state belongs to the setup views.
func (s State) Configuring() bool {
	return s == StateIdle || s == StateConfiguringStep1 || s == StateConfiguringStep2
}
