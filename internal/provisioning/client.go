// Package provisioning is the HTTP client for the bot server that creates
// rooms and starts agents in them.
package provisioning

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/tjfontaine/agent-launcher/internal/core/domain"
	"github.com/tjfontaine/agent-launcher/internal/core/ports"
	"github.com/tjfontaine/agent-launcher/internal/metrics"
)

const (
	defaultTimeout = 30 * time.Second
	userAgent      = "agent-launcher/1.0"
)

var _ ports.Provisioner = (*Client)(nil)

// NormalizeBaseURL appends the trailing slash every endpoint is joined onto.
func NormalizeBaseURL(base string) string {
	base = strings.TrimSpace(base)
	if base != "" && !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return base
}

// ClientOption configures the client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithTimeout sets the per-request timeout of the default HTTP client.
// It has no effect together with WithHTTPClient.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.timeout = d
	}
}

// Client talks to the bot server. It never retries.
type Client struct {
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
}

// NewClient creates a client for baseURL, which must not be empty.
func NewClient(baseURL string, opts ...ClientOption) (*Client, error) {
	baseURL = NormalizeBaseURL(baseURL)
	if baseURL == "" {
		return nil, fmt.Errorf("bot server base url is required")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("parse bot server base url: %w", err)
	}

	c := &Client{
		baseURL: baseURL,
		timeout: defaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{
			Timeout:   c.timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}
	return c, nil
}

// BaseURL returns the normalized base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

type startAgentRequest struct {
	RoomURL        string `json:"room_url"`
	Token          string `json:"token"`
	SelectedPrompt string `json:"selected_prompt"`
}

// CreateRoom asks the bot server for a new room and a meeting token.
func (c *Client) CreateRoom(ctx context.Context) (*domain.RoomConfig, error) {
	var result domain.RoomConfig
	if err := c.do(ctx, "create", http.MethodPost, "create", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// StartAgent asks the bot server to start an agent in roomURL.
func (c *Client) StartAgent(ctx context.Context, roomURL, token, scenario string) (*domain.JoinCredentials, error) {
	body := startAgentRequest{RoomURL: roomURL, Token: token, SelectedPrompt: scenario}
	var result domain.JoinCredentials
	if err := c.do(ctx, "start", http.MethodPost, "start", body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// AgentStatus reports the state of a previously started agent.
func (c *Client) AgentStatus(ctx context.Context, botID string) (*domain.AgentStatus, error) {
	if botID == "" {
		return nil, fmt.Errorf("bot id is required")
	}
	var result domain.AgentStatus
	if err := c.do(ctx, "status", http.MethodGet, "status/"+url.PathEscape(botID), nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) do(ctx context.Context, op, method, path string, in, out any) (err error) {
	start := time.Now()
	defer func() {
		metrics.ObserveProvisioning(op, outcome(err), time.Since(start))
	}()

	var reqBody io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal %s request: %w", op, err)
		}
		reqBody = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return &Failure{Kind: FailureUnreachable, Op: op, Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return &Failure{Kind: FailureUnreachable, Op: op, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &Failure{Kind: FailureUnreachable, Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode != http.StatusOK {
		detail, _ := parseDetail(respBody)
		return &Failure{Kind: FailureRejected, Op: op, StatusCode: resp.StatusCode, Detail: detail}
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return &Failure{Kind: FailureUnreachable, Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	if f, ok := err.(*Failure); ok {
		return string(f.Kind)
	}
	return "error"
}
