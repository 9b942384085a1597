package domain

// RoomSource identifies where a room reference came from.
type RoomSource string

const (
	RoomSourceQuery       RoomSource = "query"
	RoomSourceManual      RoomSource = "manual"
	RoomSourceProvisioned RoomSource = "provisioned"
)

// RoomReference is a room URL plus the token used to join it. It is never
// modified once obtained.
type RoomReference struct {
	URL    string     `json:"url"`
	Token  string     `json:"-"`
	Source RoomSource `json:"source"`
}

// DevicePreferences are read once when joining.
type DevicePreferences struct {
	StartAudioOff bool `json:"start_audio_off"`
}

// JoinParams is what the real-time session gateway receives on join.
type JoinParams struct {
	URL           string `json:"url"`
	Token         string `json:"token"`
	VideoSource   bool   `json:"video_source"`
	StartAudioOff bool   `json:"start_audio_off"`
}

// RoomConfig is what the bot server returns after creating a room.
type RoomConfig struct {
	RoomURL  string `json:"room_url"`
	RoomName string `json:"room_name,omitempty"`
	Token    string `json:"token"`
}

// JoinCredentials is what the bot server returns after starting an agent.
type JoinCredentials struct {
	RoomURL string `json:"room_url"`
	Token   string `json:"token"`
	BotID   string `json:"bot_id,omitempty"`
}

// AgentStatus reports the liveness of a started agent.
type AgentStatus struct {
	BotID  string `json:"bot_id"`
	Status string `json:"status"`
}
