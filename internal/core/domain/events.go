package domain

import "time"

// TransitionEvent records one state change of a session. Events are
// published to decoupled consumers (storage, metrics).
type TransitionEvent struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	From      State     `json:"from"`
	To        State     `json:"to"`
	Intent    string    `json:"intent,omitempty"`
	ErrorKind ErrorKind `json:"error_kind,omitempty"`
	Message   string    `json:"message,omitempty"`
	RoomURL   string    `json:"room_url,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Snapshot is an immutable view of the orchestrator handed to consumers.
type Snapshot struct {
	SessionID string            `json:"session_id"`
	State     State             `json:"state"`
	Devices   DevicePreferences `json:"devices"`
	Scenario  string            `json:"scenario,omitempty"`
	Room      *RoomReference    `json:"room,omitempty"`
	BotID     string            `json:"bot_id,omitempty"`
	RoomError bool              `json:"room_error"`
	Error     *SessionError     `json:"error,omitempty"`
}
