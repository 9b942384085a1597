package domain

import (
	"errors"
	"fmt"
)

// Input errors. These never move the orchestrator into StateError.
var (
	ErrInvalidRoomURL    = errors.New("invalid room url")
	ErrNoRoom            = errors.New("no room url available")
	ErrUnknownScenario   = errors.New("unknown scenario")
	ErrBusy              = errors.New("another intent is in flight")
	ErrInvalidTransition = errors.New("intent not valid in current state")
)

// ErrorKind tells which phase produced a terminal error.
type ErrorKind string

const (
	ErrorKindProvisioning ErrorKind = "provisioning"
	ErrorKindJoin         ErrorKind = "join"
	ErrorKindNavigation   ErrorKind = "navigation"
)

// SessionError is the terminal error shown to the user.
type SessionError struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
}

// Error implements the error interface. Only the user-facing message is
// returned; the cause is reachable through Unwrap.
func (e *SessionError) Error() string {
	return e.Message
}

func (e *SessionError) Unwrap() error {
	return e.Err
}

// TransitionError reports an intent dispatched in a state that does not
// accept it.
type TransitionError struct {
	Intent string
	State  State
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s: %s not accepted in %s", ErrInvalidTransition, e.Intent, e.State)
}

func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}
