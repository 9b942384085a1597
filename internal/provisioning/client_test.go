package provisioning

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/tjfontaine/agent-launcher/internal/core/domain"
)

type recordedRequest struct {
	Method string
	Path   string
	Body   string
}

// botServer is a scripted bot server that records every request.
type botServer struct {
	mu       sync.Mutex
	requests []recordedRequest
	handlers map[string]http.HandlerFunc
}

func newBotServer(t *testing.T, handlers map[string]http.HandlerFunc) (*botServer, *httptest.Server) {
	t.Helper()
	bs := &botServer{handlers: handlers}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		bs.mu.Lock()
		bs.requests = append(bs.requests, recordedRequest{Method: r.Method, Path: r.URL.Path, Body: string(body)})
		bs.mu.Unlock()

		h, ok := bs.handlers[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		h(w, r)
	}))
	t.Cleanup(srv.Close)
	return bs, srv
}

func (bs *botServer) Requests() []recordedRequest {
	bs.mu.Lock()
	defer bs.mu.Unlock()
	return append([]recordedRequest(nil), bs.requests...)
}

func writeJSON(status int, v any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(v)
	}
}

func TestNormalizeBaseURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "http://api.test", want: "http://api.test/"},
		{in: "http://api.test/", want: "http://api.test/"},
		{in: "http://api.test/v1", want: "http://api.test/v1/"},
		{in: "  http://api.test ", want: "http://api.test/"},
		{in: "", want: ""},
	}

	for _, tt := range tests {
		if got := NormalizeBaseURL(tt.in); got != tt.want {
			t.Errorf("NormalizeBaseURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
		// Idempotent: normalizing twice never adds a second slash.
		if got := NormalizeBaseURL(NormalizeBaseURL(tt.in)); got != tt.want {
			t.Errorf("NormalizeBaseURL twice (%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNewClient(t *testing.T) {
	c, err := NewClient("http://api.test")
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	if got := c.BaseURL(); got != "http://api.test/" {
		t.Errorf("BaseURL() = %q, want %q", got, "http://api.test/")
	}

	if _, err := NewClient(""); err == nil {
		t.Error("NewClient(\"\") expected error")
	}
}

func TestClient_CreateRoom(t *testing.T) {
	bs, srv := newBotServer(t, map[string]http.HandlerFunc{
		"/create": writeJSON(http.StatusOK, map[string]string{
			"room_url":  "https://t.daily.co/r",
			"room_name": "r",
			"token":     "tok",
		}),
	})

	c, err := NewClient(srv.URL, WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	room, err := c.CreateRoom(context.Background())
	if err != nil {
		t.Fatalf("CreateRoom() error = %v", err)
	}

	want := &domain.RoomConfig{RoomURL: "https://t.daily.co/r", RoomName: "r", Token: "tok"}
	if diff := cmp.Diff(want, room); diff != "" {
		t.Errorf("CreateRoom() mismatch (-want +got):\n%s", diff)
	}

	reqs := bs.Requests()
	if len(reqs) != 1 {
		t.Fatalf("requests = %d, want 1", len(reqs))
	}
	if reqs[0].Method != http.MethodPost || reqs[0].Path != "/create" {
		t.Errorf("request = %s %s, want POST /create", reqs[0].Method, reqs[0].Path)
	}
	if reqs[0].Body != "" {
		t.Errorf("create body = %q, want empty", reqs[0].Body)
	}
}

func TestClient_StartAgent(t *testing.T) {
	bs, srv := newBotServer(t, map[string]http.HandlerFunc{
		"/start": writeJSON(http.StatusOK, map[string]string{
			"room_url": "https://t.daily.co/r",
			"token":    "tok2",
			"bot_id":   "vm-1",
		}),
	})

	c, _ := NewClient(srv.URL+"/", WithHTTPClient(srv.Client()))

	creds, err := c.StartAgent(context.Background(), "https://t.daily.co/r", "tok", "casual")
	if err != nil {
		t.Fatalf("StartAgent() error = %v", err)
	}

	want := &domain.JoinCredentials{RoomURL: "https://t.daily.co/r", Token: "tok2", BotID: "vm-1"}
	if diff := cmp.Diff(want, creds); diff != "" {
		t.Errorf("StartAgent() mismatch (-want +got):\n%s", diff)
	}

	reqs := bs.Requests()
	if len(reqs) != 1 {
		t.Fatalf("requests = %d, want 1", len(reqs))
	}

	var body map[string]string
	if err := json.Unmarshal([]byte(reqs[0].Body), &body); err != nil {
		t.Fatalf("start body is not JSON: %v", err)
	}
	wantBody := map[string]string{
		"room_url":        "https://t.daily.co/r",
		"token":           "tok",
		"selected_prompt": "casual",
	}
	if diff := cmp.Diff(wantBody, body); diff != "" {
		t.Errorf("start body mismatch (-want +got):\n%s", diff)
	}
}

func TestClient_Rejected(t *testing.T) {
	tests := []struct {
		name       string
		handler    http.HandlerFunc
		wantDetail string
		wantStatus int
	}{
		{
			name:       "string detail",
			handler:    writeJSON(http.StatusTooManyRequests, map[string]string{"detail": "quota exceeded"}),
			wantDetail: "quota exceeded",
			wantStatus: http.StatusTooManyRequests,
		},
		{
			name: "structured detail",
			handler: writeJSON(http.StatusUnprocessableEntity, map[string]any{
				"detail": []map[string]string{{"msg": "field required"}},
			}),
			wantDetail: `[{"msg":"field required"}]`,
			wantStatus: http.StatusUnprocessableEntity,
		},
		{
			name: "no body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
			},
			wantDetail: "",
			wantStatus: http.StatusBadGateway,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, srv := newBotServer(t, map[string]http.HandlerFunc{"/create": tt.handler})
			c, _ := NewClient(srv.URL, WithHTTPClient(srv.Client()))

			_, err := c.CreateRoom(context.Background())
			var f *Failure
			if !errors.As(err, &f) {
				t.Fatalf("CreateRoom() error = %v, want *Failure", err)
			}
			if f.Kind != FailureRejected {
				t.Errorf("Kind = %v, want %v", f.Kind, FailureRejected)
			}
			if f.Detail != tt.wantDetail {
				t.Errorf("Detail = %q, want %q", f.Detail, tt.wantDetail)
			}
			if f.StatusCode != tt.wantStatus {
				t.Errorf("StatusCode = %d, want %d", f.StatusCode, tt.wantStatus)
			}
			if f.HasDetail() != (tt.wantDetail != "") {
				t.Errorf("HasDetail() = %v", f.HasDetail())
			}
		})
	}
}

func TestClient_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	c, _ := NewClient(base)
	_, err := c.CreateRoom(context.Background())

	var f *Failure
	if !errors.As(err, &f) {
		t.Fatalf("CreateRoom() error = %v, want *Failure", err)
	}
	if f.Kind != FailureUnreachable {
		t.Errorf("Kind = %v, want %v", f.Kind, FailureUnreachable)
	}
	if f.HasDetail() {
		t.Error("HasDetail() = true for unreachable server")
	}
}

func TestClient_MalformedSuccessBody(t *testing.T) {
	_, srv := newBotServer(t, map[string]http.HandlerFunc{
		"/create": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			io.WriteString(w, "<html>proxy error</html>")
		},
	})
	c, _ := NewClient(srv.URL, WithHTTPClient(srv.Client()))

	_, err := c.CreateRoom(context.Background())
	var f *Failure
	if !errors.As(err, &f) || f.Kind != FailureUnreachable {
		t.Fatalf("CreateRoom() error = %v, want unreachable failure", err)
	}
}

func TestClient_AgentStatus(t *testing.T) {
	bs, srv := newBotServer(t, map[string]http.HandlerFunc{
		"/status/vm-1": writeJSON(http.StatusOK, map[string]string{"bot_id": "vm-1", "status": "started"}),
		"/status/vm-2": writeJSON(http.StatusNotFound, map[string]string{"detail": "Bot with machine id: vm-2 not found"}),
	})
	c, _ := NewClient(srv.URL, WithHTTPClient(srv.Client()))

	st, err := c.AgentStatus(context.Background(), "vm-1")
	if err != nil {
		t.Fatalf("AgentStatus() error = %v", err)
	}
	if st.Status != "started" {
		t.Errorf("Status = %q, want %q", st.Status, "started")
	}

	_, err = c.AgentStatus(context.Background(), "vm-2")
	if err == nil || err.Error() != "Bot with machine id: vm-2 not found" {
		t.Errorf("AgentStatus(vm-2) error = %v", err)
	}

	if _, err := c.AgentStatus(context.Background(), ""); err == nil {
		t.Error("AgentStatus(\"\") expected error")
	}

	for _, r := range bs.Requests() {
		if r.Method != http.MethodGet {
			t.Errorf("status request method = %s, want GET", r.Method)
		}
	}
}
