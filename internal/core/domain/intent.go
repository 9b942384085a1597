package domain

// Intent is a user action dispatched into the orchestrator.
type Intent interface {
	IntentName() string
}

// SubmitRoom asks the entry gate to accept a manually entered room URL.
// An empty URL is allowed when provisioning is enabled.
type SubmitRoom struct {
	URL string `json:"url"`
}

// SetStartAudioOff records whether the microphone starts muted.
type SetStartAudioOff struct {
	Off bool `json:"off"`
}

// Proceed finishes device setup.
type Proceed struct{}

// Start kicks off provisioning and/or joining.
type Start struct {
	Scenario string `json:"scenario"`
	// Redirect hands the user off to the provisioned room URL instead of
	// joining inline.
	Redirect bool `json:"redirect"`
}

// Leave leaves and tears down the real-time session.
type Leave struct{}

func (SubmitRoom) IntentName() string       { return "submit_room" }
func (SetStartAudioOff) IntentName() string { return "set_start_audio_off" }
func (Proceed) IntentName() string          { return "proceed" }
func (Start) IntentName() string            { return "start" }
func (Leave) IntentName() string            { return "leave" }
