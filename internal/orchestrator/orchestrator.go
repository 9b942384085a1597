// Package orchestrator drives a launcher session from device setup through
// provisioning to a joined real-time session.
//
// The orchestrator is an explicit state machine. Consumers read Snapshot or
// CurrentState, send user intents through Dispatch and observe changes with
// Subscribe. One intent is processed at a time; an intent dispatched while
// another one is still running fails with domain.ErrBusy. Asynchronous steps
// (create room, start agent, join) are awaited in order inside the Start
// intent and are never cancelled once issued.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tjfontaine/agent-launcher/internal/core/domain"
	"github.com/tjfontaine/agent-launcher/internal/core/ports"
	"github.com/tjfontaine/agent-launcher/internal/metrics"
	"github.com/tjfontaine/agent-launcher/internal/pkg/config"
	"github.com/tjfontaine/agent-launcher/internal/provisioning"
	"github.com/tjfontaine/agent-launcher/internal/roomurl"
)

const tracerName = "github.com/tjfontaine/agent-launcher/internal/orchestrator"

// Orchestrator owns the session state. It is safe for concurrent use.
type Orchestrator struct {
	cfg       *config.Config
	validator *roomurl.Validator
	catalog   domain.Catalog
	initial   domain.State

	provisioner ports.Provisioner
	gateway     ports.SessionGateway
	navigator   ports.Navigator
	events      ports.EventPublisher
	logger      *slog.Logger
	tracer      trace.Tracer
	now         func() time.Time
	sessionID   string

	// dispatchMu is held for the whole of one intent.
	dispatchMu sync.Mutex

	mu        sync.RWMutex
	state     domain.State
	devices   domain.DevicePreferences
	scenario  string
	queryRoom *domain.RoomReference
	room      *domain.RoomReference
	botID     string
	roomError bool
	err       *domain.SessionError

	subMu   sync.Mutex
	subs    map[int]func(domain.Snapshot)
	nextSub int
}

// New creates an orchestrator for cfg. cfg must not be modified afterwards.
func New(cfg *config.Config, opts ...Option) (*Orchestrator, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config required")
	}

	o := &Orchestrator{
		cfg:       cfg,
		validator: roomurl.NewValidator(cfg.Room.Host),
		catalog:   cfg.Catalog(),
		logger:    slog.Default(),
		tracer:    otel.Tracer(tracerName),
		now:       time.Now,
		subs:      make(map[int]func(domain.Snapshot)),
	}

	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, fmt.Errorf("apply option: %w", err)
		}
	}

	if o.gateway == nil {
		return nil, fmt.Errorf("session gateway required (use WithGateway)")
	}
	if cfg.ProvisioningEnabled() && o.provisioner == nil {
		return nil, fmt.Errorf("provisioner required when backend.url is set (use WithProvisioner)")
	}
	if o.sessionID == "" {
		o.sessionID = uuid.NewString()
	}

	o.initial = domain.StateConfiguringStep1
	if cfg.App.ShowConfigOptions {
		o.initial = domain.StateIdle
	}
	o.state = o.initial

	if q := cfg.Room.URL; q != "" {
		if o.validator.Valid(q) {
			o.queryRoom = &domain.RoomReference{URL: q, Source: domain.RoomSourceQuery}
			o.room = o.queryRoom
		} else {
			o.roomError = true
			o.logger.Warn("ignoring invalid room url",
				slog.String("room_url", q),
				slog.String("host", o.validator.Host()))
		}
	}

	o.logger.Info("orchestrator ready",
		slog.String("session_id", o.sessionID),
		slog.String("state", o.state.String()),
		slog.Bool("provisioning", cfg.ProvisioningEnabled()),
		slog.Bool("query_room", o.queryRoom != nil))

	return o, nil
}

// SessionID identifies this orchestrator's events.
func (o *Orchestrator) SessionID() string {
	return o.sessionID
}

// InitialState is the state the orchestrator starts in and returns to after
// leaving a session.
func (o *Orchestrator) InitialState() domain.State {
	return o.initial
}

// Catalog returns the scenarios Start accepts.
func (o *Orchestrator) Catalog() domain.Catalog {
	return o.catalog
}

// CurrentState returns the active state.
func (o *Orchestrator) CurrentState() domain.State {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.state
}

// Snapshot returns a copy of the orchestrator's visible state.
func (o *Orchestrator) Snapshot() domain.Snapshot {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.snapshotLocked()
}

func (o *Orchestrator) snapshotLocked() domain.Snapshot {
	snap := domain.Snapshot{
		SessionID: o.sessionID,
		State:     o.state,
		Devices:   o.devices,
		Scenario:  o.scenario,
		BotID:     o.botID,
		RoomError: o.roomError,
	}
	if o.room != nil {
		room := *o.room
		snap.Room = &room
	}
	if o.err != nil {
		e := *o.err
		snap.Error = &e
	}
	return snap
}

// Subscribe registers fn to be called with a snapshot after every change.
// fn runs on the dispatching goroutine and must not call Dispatch.
// The returned function removes the subscription.
func (o *Orchestrator) Subscribe(fn func(domain.Snapshot)) (unsubscribe func()) {
	o.subMu.Lock()
	id := o.nextSub
	o.nextSub++
	o.subs[id] = fn
	o.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			o.subMu.Lock()
			delete(o.subs, id)
			o.subMu.Unlock()
		})
	}
}

// Dispatch processes one intent and returns once every step it triggered
// has settled. Input errors (domain.ErrInvalidRoomURL, ErrNoRoom,
// ErrUnknownScenario) leave the state unchanged. A failed provisioning,
// join or navigation step moves the session to StateError and is returned
// as a *domain.SessionError.
func (o *Orchestrator) Dispatch(ctx context.Context, intent domain.Intent) error {
	if intent == nil {
		return fmt.Errorf("intent required")
	}
	if !o.dispatchMu.TryLock() {
		return domain.ErrBusy
	}
	defer o.dispatchMu.Unlock()

	switch in := intent.(type) {
	case domain.SubmitRoom:
		return o.submitRoom(ctx, in)
	case domain.SetStartAudioOff:
		return o.setStartAudioOff(ctx, in)
	case domain.Proceed:
		return o.proceed(ctx, in)
	case domain.Start:
		return o.start(ctx, in)
	case domain.Leave:
		return o.leave(ctx, in)
	default:
		return fmt.Errorf("unknown intent %q", intent.IntentName())
	}
}

func (o *Orchestrator) expect(intent domain.Intent, states ...domain.State) error {
	current := o.CurrentState()
	for _, s := range states {
		if current == s {
			return nil
		}
	}
	return &domain.TransitionError{Intent: intent.IntentName(), State: current}
}

// submitRoom is the entry gate out of idle.
func (o *Orchestrator) submitRoom(ctx context.Context, in domain.SubmitRoom) error {
	if err := o.expect(in, domain.StateIdle); err != nil {
		return err
	}

	var manual *domain.RoomReference
	switch {
	case o.queryRoom != nil:
		// The query string room wins over anything typed in.
	case o.cfg.ProvisioningEnabled():
		// Rooms are provisioned; a typed url is not used.
	case o.validator.Valid(in.URL):
		manual = &domain.RoomReference{URL: in.URL, Source: domain.RoomSourceManual}
	default:
		o.commit(ctx, in, domain.StateIdle, func() { o.roomError = true })
		return fmt.Errorf("%w: %q", domain.ErrInvalidRoomURL, in.URL)
	}

	o.commit(ctx, in, domain.StateConfiguringStep1, func() {
		o.roomError = false
		if manual != nil {
			o.room = manual
		}
	})
	return nil
}

func (o *Orchestrator) setStartAudioOff(ctx context.Context, in domain.SetStartAudioOff) error {
	if err := o.expect(in, domain.StateIdle, domain.StateConfiguringStep1, domain.StateConfiguringStep2); err != nil {
		return err
	}
	o.commit(ctx, in, o.CurrentState(), func() { o.devices.StartAudioOff = in.Off })
	return nil
}

func (o *Orchestrator) proceed(ctx context.Context, in domain.Proceed) error {
	if err := o.expect(in, domain.StateConfiguringStep1); err != nil {
		return err
	}
	o.commit(ctx, in, domain.StateConfiguringStep2, nil)
	return nil
}

func (o *Orchestrator) start(ctx context.Context, in domain.Start) error {
	if err := o.expect(in, domain.StateConfiguringStep2); err != nil {
		return err
	}

	scenario := in.Scenario
	if scenario == "" {
		scenario = domain.PlaceholderScenario
	}
	if !o.catalog.Contains(scenario) {
		return fmt.Errorf("%w: %q", domain.ErrUnknownScenario, scenario)
	}

	o.mu.RLock()
	room := o.room
	o.mu.RUnlock()

	if room == nil && !o.cfg.ProvisioningEnabled() {
		o.commit(ctx, in, domain.StateConfiguringStep2, func() { o.roomError = true })
		return domain.ErrNoRoom
	}

	// Nothing below may be abandoned half way, so the caller's cancellation
	// is dropped. Deadlines come from the HTTP client and the gateway.
	ctx = context.WithoutCancel(ctx)

	if room == nil {
		o.commit(ctx, in, domain.StateRequestingAgent, func() { o.scenario = scenario })

		provisioned, botID, err := o.provision(ctx, scenario)
		if err != nil {
			return o.fail(ctx, in, err)
		}
		room = provisioned
		o.commit(ctx, in, domain.StateRequestingAgent, func() {
			o.room = provisioned
			o.botID = botID
		})

		if in.Redirect {
			if o.navigator != nil {
				return o.redirect(ctx, in, room)
			}
			o.logger.Warn("redirect requested without a navigator, joining inline",
				slog.String("session_id", o.sessionID))
		}
	} else {
		o.mu.Lock()
		o.scenario = scenario
		o.mu.Unlock()
	}

	o.commit(ctx, in, domain.StateConnecting, nil)

	o.mu.RLock()
	params := domain.JoinParams{
		URL:           room.URL,
		Token:         room.Token,
		VideoSource:   false,
		StartAudioOff: o.devices.StartAudioOff,
	}
	o.mu.RUnlock()

	if err := o.join(ctx, params); err != nil {
		o.release(ctx)
		return o.fail(ctx, in, &domain.SessionError{
			Kind:    domain.ErrorKindJoin,
			Message: fmt.Sprintf("Unable to join room: '%s'", room.URL),
			Err:     err,
		})
	}

	o.commit(ctx, in, domain.StateConnected, nil)
	return nil
}

// provision creates a room and then starts an agent in it. StartAgent is
// never issued unless CreateRoom succeeded.
func (o *Orchestrator) provision(ctx context.Context, scenario string) (*domain.RoomReference, string, error) {
	ctx, span := o.tracer.Start(ctx, "orchestrator.provision",
		trace.WithAttributes(
			attribute.String("launcher.session_id", o.sessionID),
			attribute.String("launcher.scenario", scenario),
		))
	defer span.End()

	room, err := o.provisioner.CreateRoom(ctx)
	if err != nil {
		span.SetStatus(codes.Error, "create room")
		span.RecordError(err)
		return nil, "", o.provisioningError(err)
	}

	creds, err := o.provisioner.StartAgent(ctx, room.RoomURL, room.Token, scenario)
	if err != nil {
		span.SetStatus(codes.Error, "start agent")
		span.RecordError(err)
		return nil, "", o.provisioningError(err)
	}

	ref := &domain.RoomReference{
		URL:    creds.RoomURL,
		Token:  creds.Token,
		Source: domain.RoomSourceProvisioned,
	}
	if ref.URL == "" {
		ref.URL = room.RoomURL
	}
	if ref.Token == "" {
		ref.Token = room.Token
	}
	span.SetAttributes(attribute.String("launcher.room_url", ref.URL))

	o.logger.Info("agent started",
		slog.String("session_id", o.sessionID),
		slog.String("room_url", ref.URL),
		slog.String("bot_id", creds.BotID))

	return ref, creds.BotID, nil
}

func (o *Orchestrator) provisioningError(err error) *domain.SessionError {
	msg := fmt.Sprintf("Unable to connect to the bot server at '%s'", o.provisioner.BaseURL())
	var f *provisioning.Failure
	if errors.As(err, &f) && f.HasDetail() {
		msg = f.Detail
	}
	return &domain.SessionError{Kind: domain.ErrorKindProvisioning, Message: msg, Err: err}
}

func (o *Orchestrator) redirect(ctx context.Context, in domain.Start, room *domain.RoomReference) error {
	if err := o.navigator.Navigate(ctx, room.URL); err != nil {
		// The agent keeps running in the provisioned room; it leaves on
		// its own when the room expires.
		o.logger.Warn("navigation failed after agent start",
			slog.String("session_id", o.sessionID),
			slog.String("room_url", room.URL),
			slog.String("error", err.Error()))
		return o.fail(ctx, in, &domain.SessionError{
			Kind:    domain.ErrorKindNavigation,
			Message: fmt.Sprintf("Unable to open room: '%s'", room.URL),
			Err:     err,
		})
	}
	o.commit(ctx, in, domain.StateFinished, nil)
	return nil
}

func (o *Orchestrator) join(ctx context.Context, params domain.JoinParams) error {
	ctx, span := o.tracer.Start(ctx, "orchestrator.join",
		trace.WithAttributes(
			attribute.String("launcher.session_id", o.sessionID),
			attribute.String("launcher.room_url", params.URL),
			attribute.Bool("launcher.start_audio_off", params.StartAudioOff),
		))
	defer span.End()

	err := o.gateway.Join(ctx, params)
	metrics.RecordGatewayCall("join", err)
	if err != nil {
		span.SetStatus(codes.Error, "join")
		span.RecordError(err)
	}
	return err
}

func (o *Orchestrator) fail(ctx context.Context, in domain.Intent, err error) error {
	var serr *domain.SessionError
	if !errors.As(err, &serr) {
		serr = &domain.SessionError{Kind: domain.ErrorKindProvisioning, Message: err.Error(), Err: err}
	}

	o.logger.Error("session failed",
		slog.String("session_id", o.sessionID),
		slog.String("kind", string(serr.Kind)),
		slog.String("error", serr.Message))
	metrics.RecordSessionError(string(serr.Kind))

	o.commit(ctx, in, domain.StateError, func() { o.err = serr })
	return serr
}

// release destroys the gateway after a rejected join, so nothing it
// opened outlives the failed attempt.
func (o *Orchestrator) release(ctx context.Context) {
	err := o.gateway.Destroy(ctx)
	metrics.RecordGatewayCall("destroy", err)
	if err != nil {
		o.logger.Warn("destroy after failed join",
			slog.String("session_id", o.sessionID),
			slog.String("error", err.Error()))
	}
}

// leave tears the real-time session down. Destroy always follows Leave,
// and the session returns to its initial state whatever either reports.
func (o *Orchestrator) leave(ctx context.Context, in domain.Leave) error {
	current := o.CurrentState()
	if current == o.initial {
		return nil
	}
	if current != domain.StateConnected {
		return &domain.TransitionError{Intent: in.IntentName(), State: current}
	}

	ctx, span := o.tracer.Start(context.WithoutCancel(ctx), "orchestrator.leave",
		trace.WithAttributes(attribute.String("launcher.session_id", o.sessionID)))
	defer span.End()

	if err := o.gateway.Leave(ctx); err != nil {
		span.RecordError(err)
		o.logger.Warn("leave failed", slog.String("session_id", o.sessionID), slog.String("error", err.Error()))
		metrics.RecordGatewayCall("leave", err)
	} else {
		metrics.RecordGatewayCall("leave", nil)
	}

	if err := o.gateway.Destroy(ctx); err != nil {
		span.RecordError(err)
		o.logger.Warn("destroy failed", slog.String("session_id", o.sessionID), slog.String("error", err.Error()))
		metrics.RecordGatewayCall("destroy", err)
	} else {
		metrics.RecordGatewayCall("destroy", nil)
	}

	o.commit(ctx, in, o.initial, func() {
		o.room = o.queryRoom
		o.botID = ""
		o.scenario = ""
		o.roomError = false
	})
	return nil
}

// commit applies mutate and moves to state to, then reports the change.
// Calling it with the current state only notifies subscribers.
func (o *Orchestrator) commit(ctx context.Context, in domain.Intent, to domain.State, mutate func()) {
	o.mu.Lock()
	from := o.state
	o.state = to
	if mutate != nil {
		mutate()
	}
	snap := o.snapshotLocked()
	o.mu.Unlock()

	if from != to {
		o.record(ctx, in, from, snap)
	}
	o.notify(snap)
}

func (o *Orchestrator) record(ctx context.Context, in domain.Intent, from domain.State, snap domain.Snapshot) {
	o.logger.Info("state transition",
		slog.String("session_id", o.sessionID),
		slog.String("intent", in.IntentName()),
		slog.String("from", from.String()),
		slog.String("to", snap.State.String()))
	metrics.RecordTransition(from.String(), snap.State.String())

	if o.events == nil {
		return
	}

	event := &domain.TransitionEvent{
		ID:        uuid.NewString(),
		SessionID: o.sessionID,
		From:      from,
		To:        snap.State,
		Intent:    in.IntentName(),
		Timestamp: o.now(),
	}
	if snap.Room != nil {
		event.RoomURL = snap.Room.URL
	}
	if snap.State == domain.StateError && snap.Error != nil {
		event.ErrorKind = snap.Error.Kind
		event.Message = snap.Error.Message
	}
	if err := o.events.Publish(ctx, event); err != nil {
		o.logger.Warn("failed to publish transition",
			slog.String("session_id", o.sessionID),
			slog.String("error", err.Error()))
	}
}

func (o *Orchestrator) notify(snap domain.Snapshot) {
	o.subMu.Lock()
	fns := make([]func(domain.Snapshot), 0, len(o.subs))
	for _, fn := range o.subs {
		fns = append(fns, fn)
	}
	o.subMu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
}
