package orchestrator

import (
	"context"
	"errors"
	"sync"

	"github.com/tjfontaine/agent-launcher/internal/core/domain"
	"github.com/tjfontaine/agent-launcher/internal/provisioning"
)

// call records one interaction with a fake, in order, across all fakes.
type call struct {
	Op     string
	Params domain.JoinParams
	Args   []string
}

type callLog struct {
	mu    sync.Mutex
	calls []call
}

func (l *callLog) add(c call) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, c)
}

func (l *callLog) ops() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, 0, len(l.calls))
	for _, c := range l.calls {
		out = append(out, c.Op)
	}
	return out
}

func (l *callLog) find(op string) []call {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []call
	for _, c := range l.calls {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

type fakeProvisioner struct {
	log      *callLog
	baseURL  string
	room     *domain.RoomConfig
	creds    *domain.JoinCredentials
	createEr error
	startErr error

	// block, when set, holds CreateRoom until closed.
	block chan struct{}
}

func (f *fakeProvisioner) BaseURL() string { return f.baseURL }

func (f *fakeProvisioner) CreateRoom(ctx context.Context) (*domain.RoomConfig, error) {
	f.log.add(call{Op: "create"})
	if f.block != nil {
		<-f.block
	}
	if f.createEr != nil {
		return nil, f.createEr
	}
	return f.room, nil
}

func (f *fakeProvisioner) StartAgent(ctx context.Context, roomURL, token, scenario string) (*domain.JoinCredentials, error) {
	f.log.add(call{Op: "start", Args: []string{roomURL, token, scenario}})
	if f.startErr != nil {
		return nil, f.startErr
	}
	return f.creds, nil
}

type fakeGateway struct {
	log        *callLog
	joinErr    error
	leaveErr   error
	destroyErr error
}

func (f *fakeGateway) Join(ctx context.Context, params domain.JoinParams) error {
	f.log.add(call{Op: "join", Params: params})
	return f.joinErr
}

func (f *fakeGateway) Leave(ctx context.Context) error {
	f.log.add(call{Op: "leave"})
	return f.leaveErr
}

func (f *fakeGateway) Destroy(ctx context.Context) error {
	f.log.add(call{Op: "destroy"})
	return f.destroyErr
}

type fakeNavigator struct {
	log *callLog
	err error
}

func (f *fakeNavigator) Navigate(ctx context.Context, url string) error {
	f.log.add(call{Op: "navigate", Args: []string{url}})
	return f.err
}

type fakePublisher struct {
	mu     sync.Mutex
	events []*domain.TransitionEvent
	err    error
}

func (f *fakePublisher) Publish(ctx context.Context, event *domain.TransitionEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return f.err
}

func (f *fakePublisher) Close() error { return nil }

func (f *fakePublisher) transitions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.events))
	for _, e := range f.events {
		out = append(out, string(e.From)+">"+string(e.To))
	}
	return out
}

func rejected(detail string) error {
	return &provisioning.Failure{Kind: provisioning.FailureRejected, Op: "create", StatusCode: 400, Detail: detail}
}

var errUnreachable = &provisioning.Failure{
	Kind: provisioning.FailureUnreachable,
	Op:   "create",
	Err:  errors.New("dial tcp: connection refused"),
}
