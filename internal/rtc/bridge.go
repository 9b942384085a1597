// Package rtc provides session gateways that carry join, leave and destroy
// requests to a real-time media client.
package rtc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tjfontaine/agent-launcher/internal/core/domain"
)

const defaultCallTimeout = 15 * time.Second

// ErrNotConnected is returned by Leave when no session has been joined.
var ErrNotConnected = errors.New("rtc: bridge not connected")

// command is the single frame sent per call.
type command struct {
	Op            string `json:"op"`
	URL           string `json:"url,omitempty"`
	Token         string `json:"token,omitempty"`
	VideoSource   *bool  `json:"video_source,omitempty"`
	StartAudioOff *bool  `json:"start_audio_off,omitempty"`
}

// reply is the single frame read back per call.
type reply struct {
	Op    string `json:"op"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// BridgeError reports a command the remote client refused.
type BridgeError struct {
	Op      string
	Message string
}

func (e *BridgeError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("rtc %s rejected", e.Op)
	}
	return fmt.Sprintf("rtc %s rejected: %s", e.Op, e.Message)
}

// BridgeOption configures a Bridge.
type BridgeOption func(*Bridge)

// WithDialer overrides the websocket dialer.
func WithDialer(d *websocket.Dialer) BridgeOption {
	return func(b *Bridge) {
		if d != nil {
			b.dialer = d
		}
	}
}

// WithHeader adds headers sent on the websocket handshake.
func WithHeader(h http.Header) BridgeOption {
	return func(b *Bridge) {
		b.header = h.Clone()
	}
}

// WithCallTimeout bounds each command when the caller's context has no
// deadline.
func WithCallTimeout(d time.Duration) BridgeOption {
	return func(b *Bridge) {
		if d > 0 {
			b.timeout = d
		}
	}
}

// WithBridgeLogger sets the logger.
func WithBridgeLogger(logger *slog.Logger) BridgeOption {
	return func(b *Bridge) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// Bridge drives an external real-time client over a websocket. The socket
// is opened by Join and closed by Destroy; each call writes one command and
// waits for its reply.
type Bridge struct {
	url     string
	dialer  *websocket.Dialer
	header  http.Header
	timeout time.Duration
	logger  *slog.Logger

	mu   sync.Mutex
	conn *websocket.Conn
}

// NewBridge creates a bridge for the websocket endpoint at url.
func NewBridge(url string, opts ...BridgeOption) (*Bridge, error) {
	if url == "" {
		return nil, fmt.Errorf("bridge url is required")
	}
	b := &Bridge{
		url:     url,
		dialer:  websocket.DefaultDialer,
		timeout: defaultCallTimeout,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// Join connects to the bridge if needed and asks it to join the room.
func (b *Bridge) Join(ctx context.Context, params domain.JoinParams) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.conn == nil {
		dialCtx, cancel := b.callContext(ctx)
		conn, resp, err := b.dialer.DialContext(dialCtx, b.url, b.header)
		cancel()
		if resp != nil && resp.Body != nil {
			resp.Body.Close()
		}
		if err != nil {
			return fmt.Errorf("dial rtc bridge: %w", err)
		}
		b.conn = conn
		b.logger.Debug("rtc bridge connected", slog.String("bridge_url", b.url))
	}

	video, audioOff := params.VideoSource, params.StartAudioOff
	return b.roundTrip(ctx, command{
		Op:            "join",
		URL:           params.URL,
		Token:         params.Token,
		VideoSource:   &video,
		StartAudioOff: &audioOff,
	})
}

// Leave asks the remote client to leave the room. The socket stays open
// for Destroy.
func (b *Bridge) Leave(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.conn == nil {
		return ErrNotConnected
	}
	return b.roundTrip(ctx, command{Op: "leave"})
}

// Destroy releases the remote client and closes the socket. It is a no-op
// when nothing is connected.
func (b *Bridge) Destroy(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.conn == nil {
		return nil
	}

	err := b.roundTrip(ctx, command{Op: "destroy"})
	if b.conn == nil {
		return err
	}

	_ = b.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	if cerr := b.conn.Close(); cerr != nil && err == nil {
		err = fmt.Errorf("close rtc bridge: %w", cerr)
	}
	b.conn = nil
	return err
}

// roundTrip must be called with b.mu held and b.conn set.
func (b *Bridge) roundTrip(ctx context.Context, cmd command) error {
	deadline := time.Now().Add(b.timeout)
	if d, ok := ctx.Deadline(); ok {
		deadline = d
	}
	_ = b.conn.SetWriteDeadline(deadline)
	_ = b.conn.SetReadDeadline(deadline)
	defer func() {
		if b.conn != nil {
			_ = b.conn.SetReadDeadline(time.Time{})
			_ = b.conn.SetWriteDeadline(time.Time{})
		}
	}()

	if err := b.conn.WriteJSON(cmd); err != nil {
		b.drop()
		return fmt.Errorf("send rtc %s: %w", cmd.Op, err)
	}

	messageType, data, err := b.conn.ReadMessage()
	if err != nil {
		b.drop()
		return fmt.Errorf("read rtc %s reply: %w", cmd.Op, err)
	}
	if messageType != websocket.TextMessage {
		return fmt.Errorf("rtc %s reply: unexpected message type %d", cmd.Op, messageType)
	}

	var r reply
	if err := json.Unmarshal(data, &r); err != nil {
		return fmt.Errorf("decode rtc %s reply: %w", cmd.Op, err)
	}
	if r.Op != "" && r.Op != cmd.Op {
		return fmt.Errorf("rtc %s reply: got op %q", cmd.Op, r.Op)
	}
	if !r.OK {
		return &BridgeError{Op: cmd.Op, Message: r.Error}
	}

	b.logger.Debug("rtc command acknowledged", slog.String("op", cmd.Op))
	return nil
}

// drop discards a broken connection so the next Join redials.
func (b *Bridge) drop() {
	if b.conn != nil {
		_ = b.conn.Close()
		b.conn = nil
	}
}

func (b *Bridge) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, b.timeout)
}
