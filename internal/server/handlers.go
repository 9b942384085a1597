package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tjfontaine/agent-launcher/internal/core/domain"
	"github.com/tjfontaine/agent-launcher/internal/core/ports"
	"github.com/tjfontaine/agent-launcher/internal/pkg/config"
)

const (
	maxIntentBody     = 64 << 10
	eventStreamBuffer = 16
	keepAliveInterval = 15 * time.Second
)

type handlers struct {
	cfg     *config.Config
	session Session
	history ports.TransitionStore
	status  AgentStatusChecker
	closing <-chan struct{}
}

type configResponse struct {
	Title               string         `json:"title"`
	OpenMic             bool           `json:"open_mic"`
	ShowConfigOptions   bool           `json:"show_config_options"`
	ManualRoomEntry     bool           `json:"manual_room_entry"`
	Provisioning        bool           `json:"provisioning"`
	InitialState        domain.State   `json:"initial_state"`
	Scenarios           domain.Catalog `json:"scenarios"`
	PlaceholderScenario string         `json:"placeholder_scenario"`
}

// intentResponse is returned by every intent, successful or not, so the
// client always sees the state the intent left behind.
type intentResponse struct {
	Error    string          `json:"error,omitempty"`
	Snapshot domain.Snapshot `json:"snapshot"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *handlers) config(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, configResponse{
		Title:               h.cfg.App.Title,
		OpenMic:             h.cfg.App.OpenMic,
		ShowConfigOptions:   h.cfg.App.ShowConfigOptions,
		ManualRoomEntry:     h.cfg.App.ManualRoomEntry,
		Provisioning:        h.cfg.ProvisioningEnabled(),
		InitialState:        h.session.InitialState(),
		Scenarios:           h.session.Catalog(),
		PlaceholderScenario: domain.PlaceholderScenario,
	})
}

func (h *handlers) state(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.session.Snapshot())
}

func (h *handlers) intent(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	AddLogField(r.Context(), "intent", name)

	in, err := decodeIntent(name, r)
	if err != nil {
		AddError(r.Context(), err)
		status := http.StatusBadRequest
		if errors.Is(err, errUnknownIntent) {
			status = http.StatusNotFound
		}
		writeJSON(w, status, errorResponse{Error: err.Error()})
		return
	}

	err = h.session.Dispatch(r.Context(), in)
	snap := h.session.Snapshot()
	AddLogField(r.Context(), "state", snap.State.String())
	if err != nil {
		AddError(r.Context(), err)
		writeJSON(w, dispatchStatus(err), intentResponse{Error: err.Error(), Snapshot: snap})
		return
	}

	writeJSON(w, http.StatusOK, intentResponse{Snapshot: snap})
}

// events streams a snapshot on connect and after every change. A slow
// client skips intermediate snapshots but always receives the latest.
func (h *handlers) events(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "streaming unsupported"})
		return
	}

	updates := make(chan domain.Snapshot, eventStreamBuffer)
	unsubscribe := h.session.Subscribe(func(s domain.Snapshot) {
		for {
			select {
			case updates <- s:
				return
			default:
			}
			select {
			case <-updates:
			default:
			}
		}
	})
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	if err := writeEvent(w, h.session.Snapshot()); err != nil {
		return
	}
	flusher.Flush()

	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-h.closing:
			return
		case <-ticker.C:
			if _, err := io.WriteString(w, ": keep-alive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case snap := <-updates:
			if err := writeEvent(w, snap); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func (h *handlers) agentStatus(w http.ResponseWriter, r *http.Request) {
	if h.status == nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "provisioning disabled"})
		return
	}
	botID := h.session.Snapshot().BotID
	if botID == "" {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "no agent started"})
		return
	}

	status, err := h.status.AgentStatus(r.Context(), botID)
	if err != nil {
		AddError(r.Context(), err)
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (h *handlers) historyList(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "history disabled"})
		return
	}
	events, err := h.history.ListTransitions(r.Context(), h.session.SessionID())
	if err != nil {
		AddError(r.Context(), err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to read history"})
		return
	}
	writeJSON(w, http.StatusOK, events)
}

var errUnknownIntent = errors.New("unknown intent")

type submitRoomRequest struct {
	URL string `json:"url"`
}

type audioRequest struct {
	StartAudioOff bool `json:"start_audio_off"`
}

type startRequest struct {
	Scenario string `json:"scenario"`
	Redirect bool   `json:"redirect"`
}

// decodeIntent maps a route name and optional JSON body to an intent. An
// empty body decodes to the zero request.
func decodeIntent(name string, r *http.Request) (domain.Intent, error) {
	switch name {
	case "submit-room":
		var req submitRoomRequest
		if err := decodeBody(r, &req); err != nil {
			return nil, err
		}
		return domain.SubmitRoom{URL: req.URL}, nil
	case "audio":
		var req audioRequest
		if err := decodeBody(r, &req); err != nil {
			return nil, err
		}
		return domain.SetStartAudioOff{Off: req.StartAudioOff}, nil
	case "proceed":
		return domain.Proceed{}, nil
	case "start":
		var req startRequest
		if err := decodeBody(r, &req); err != nil {
			return nil, err
		}
		return domain.Start{Scenario: req.Scenario, Redirect: req.Redirect}, nil
	case "leave":
		return domain.Leave{}, nil
	default:
		return nil, fmt.Errorf("%w %q", errUnknownIntent, name)
	}
}

func decodeBody(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(io.LimitReader(r.Body, maxIntentBody)).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return fmt.Errorf("invalid request body: %w", err)
}

func dispatchStatus(err error) int {
	var serr *domain.SessionError
	switch {
	case errors.Is(err, domain.ErrInvalidRoomURL),
		errors.Is(err, domain.ErrNoRoom),
		errors.Is(err, domain.ErrUnknownScenario):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrBusy),
		errors.Is(err, domain.ErrInvalidTransition):
		return http.StatusConflict
	case errors.As(err, &serr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeEvent(w io.Writer, snap domain.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: snapshot\ndata: %s\n\n", data)
	return err
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
