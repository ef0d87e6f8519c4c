// Package agent implements the publishing agent: it owns the broker session,
// reacts to connection loss and turns navigation events into published visits.
//
// All session and state mutation happens on the goroutine running
// Publisher.Run. Commands, settings fetches, connect results and connection
// loss notifications are events posted to that goroutine. Results of
// asynchronous work are tagged with the attempt or session they belong to and
// are ignored once that attempt or session has been superseded.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/The-Promised-Neverland/navlink/internal/broker"
	"github.com/The-Promised-Neverland/navlink/internal/models"
	"github.com/The-Promised-Neverland/navlink/internal/navigation"
	"github.com/The-Promised-Neverland/navlink/internal/settings"
	"github.com/The-Promised-Neverland/navlink/pkg/logger"
)

// ErrStopped is returned by commands sent after Run has returned.
var ErrStopped = errors.New("agent: publisher stopped")

const (
	eventBuffer      = 64
	navigationBuffer = 256
)

// session is the broker handle. live is set once the connect succeeded.
type session struct {
	id     uint64
	client broker.Client
	cfg    settings.AgentConfig
	live   bool
}

type commandKind int

const (
	cmdConnect commandKind = iota
	cmdDisconnect
	cmdReload
)

type command struct {
	kind commandKind
	ack  chan struct{}
}

type settingsLoaded struct {
	attempt uint64 // zero for reloads
	cfg     settings.AgentConfig
}

type connectResult struct {
	s   *session
	err error
}

type connectionLost struct {
	s      *session
	reason broker.Reason
}

// Publisher owns the broker session and publishes every navigation event
// that passes the normalization filter. All state changes happen on the
// goroutine running Run.
type Publisher struct {
	store settings.Store
	dial  broker.Factory

	events chan any
	nav    chan models.NavigationEvent
	done   chan struct{}
	status atomic.Int32
	state  atomic.Int32

	runOnce sync.Once
	wg      sync.WaitGroup

	// Owned by the Run goroutine.
	ctx      context.Context
	current  *session
	attempt  uint64
	fetching bool
	nextID   uint64
}

// NewPublisher returns a disconnected publisher; nothing happens until Run.
func NewPublisher(store settings.Store, dial broker.Factory) *Publisher {
	return &Publisher{
		store:  store,
		dial:   dial,
		events: make(chan any, eventBuffer),
		nav:    make(chan models.NavigationEvent, navigationBuffer),
		done:   make(chan struct{}),
	}
}

// Run processes events until ctx is cancelled, then tears down the session.
// It may be called once.
func (p *Publisher) Run(ctx context.Context) error {
	started := false
	p.runOnce.Do(func() { started = true })
	if !started {
		return errors.New("agent: publisher already running")
	}
	p.ctx = ctx
	logger.Log.Info("Publisher started")
	defer logger.Log.Info("Publisher stopped")
	for {
		select {
		case <-ctx.Done():
			close(p.done)
			p.disconnect()
			p.wg.Wait()
			return nil
		case ev := <-p.events:
			p.handle(ev)
		case ev := <-p.nav:
			p.publish(ev)
		}
	}
}

// Connect tears down any existing session and starts a new connect attempt. It
// returns once the teardown happened; the outcome is observed through Status.
func (p *Publisher) Connect(ctx context.Context) error {
	return p.command(ctx, cmdConnect)
}

// Disconnect closes the current session, if any. It returns once the session is
// gone and the status reads Disconnected.
func (p *Publisher) Disconnect(ctx context.Context) error {
	return p.command(ctx, cmdDisconnect)
}

// Reload re-reads settings and reconnects when they differ from the ones the
// live session was built from.
func (p *Publisher) Reload(ctx context.Context) error {
	return p.command(ctx, cmdReload)
}

func (p *Publisher) Status() Status {
	return Status(p.status.Load())
}

func (p *Publisher) State() State {
	return State(p.state.Load())
}

// OnNavigationCompleted never blocks the caller. Events are dropped when the
// queue is full or nothing is connected.
func (p *Publisher) OnNavigationCompleted(ev models.NavigationEvent) {
	select {
	case p.nav <- ev:
	case <-p.done:
	default:
		logger.Log.Warn("Navigation buffer full, dropping event", "url_len", len(ev.URL))
	}
}

func (p *Publisher) command(ctx context.Context, kind commandKind) error {
	cmd := command{kind: kind, ack: make(chan struct{})}
	select {
	case p.events <- cmd:
	case <-p.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-cmd.ack:
		return nil
	case <-p.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Publisher) post(ev any) {
	select {
	case p.events <- ev:
	case <-p.done:
	}
}

func (p *Publisher) handle(ev any) {
	switch ev := ev.(type) {
	case command:
		switch ev.kind {
		case cmdConnect:
			p.connect()
		case cmdDisconnect:
			p.disconnect()
		case cmdReload:
			p.fetch(0)
		}
		close(ev.ack)
	case settingsLoaded:
		if ev.attempt == 0 {
			p.reloaded(ev.cfg)
			return
		}
		if ev.attempt != p.attempt || !p.fetching {
			logger.Log.Debug("Ignoring settings for superseded connect attempt", "attempt", ev.attempt)
			return
		}
		p.open(ev.cfg)
	case connectResult:
		p.connected(ev.s, ev.err)
	case connectionLost:
		p.lost(ev.s, ev.reason)
	}
}

func (p *Publisher) setStatus(s Status) {
	p.status.Store(int32(s))
	p.state.Store(int32(stateOf(s)))
}

func (p *Publisher) connect() {
	if p.current != nil {
		p.disconnect()
	}
	p.attempt++
	p.fetching = true
	p.state.Store(int32(StateConnecting))
	p.fetch(p.attempt)
}

// fetch loads settings off the loop goroutine. attempt zero marks a reload.
func (p *Publisher) fetch(attempt uint64) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		cfg, err := p.store.Load(p.ctx)
		if err != nil {
			if p.ctx.Err() != nil {
				return
			}
			logger.Log.Warn("Failed to load settings, using defaults", "err", err)
		}
		p.post(settingsLoaded{attempt: attempt, cfg: cfg})
	}()
}

func (p *Publisher) open(cfg settings.AgentConfig) {
	p.fetching = false
	p.nextID++
	client := p.dial(cfg.Hostname, cfg.Port, cfg.Identity)
	s := &session{id: p.nextID, client: client, cfg: cfg}
	// Registered before connecting so a loss right after the handshake is seen.
	client.OnConnectionLost(func(reason broker.Reason) {
		p.post(connectionLost{s: s, reason: reason})
	})
	p.current = s
	logger.Log.Info("Connecting to broker",
		"session", s.id, "hostname", cfg.Hostname, "port", cfg.Port, "identity", cfg.Identity, "tls", cfg.UseTLS)

	opts := broker.ConnectOptions{Username: cfg.Username, Password: cfg.Password, UseTLS: cfg.UseTLS}
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		err := client.Connect(p.ctx, opts)
		p.post(connectResult{s: s, err: err})
	}()
}

func (p *Publisher) connected(s *session, err error) {
	if s != p.current {
		if err == nil {
			// A superseded handshake still completed; close it so it is not leaked.
			s.client.Disconnect()
		}
		logger.Log.Debug("Ignoring connect result for superseded session", "session", s.id)
		return
	}
	if err != nil {
		p.current = nil
		p.setStatus(StatusFailed)
		logger.Log.Error("Failed to connect to broker", "session", s.id, "err", err)
		return
	}
	s.live = true
	p.setStatus(StatusConnected)
	logger.Log.Info("Connected to broker", "session", s.id)
}

func (p *Publisher) disconnect() {
	if p.fetching {
		p.attempt++
		p.fetching = false
		p.state.Store(int32(stateOf(p.Status())))
	}
	if p.current == nil {
		return
	}
	s := p.current
	p.current = nil
	s.client.Disconnect()
	p.setStatus(StatusDisconnected)
	logger.Log.Info("Disconnected from broker", "session", s.id)
}

func (p *Publisher) lost(s *session, reason broker.Reason) {
	if s != p.current {
		logger.Log.Debug("Ignoring connection loss for superseded session", "session", s.id)
		return
	}
	p.current = nil
	p.setStatus(StatusDisconnected)
	logger.Log.Warn("Broker connection lost", "session", s.id, "code", reason.Code, "reason", reason.String())
	if reason.Abnormal() {
		p.connect()
	}
}

func (p *Publisher) reloaded(cfg settings.AgentConfig) {
	if p.current == nil || !p.current.live || p.current.cfg == cfg {
		return
	}
	logger.Log.Info("Settings changed, reconnecting", "session", p.current.id)
	p.connect()
}

func (p *Publisher) publish(ev models.NavigationEvent) {
	s := p.current
	if s == nil || !s.live {
		return
	}
	res, ok := navigation.Normalize(ev.URL, s.cfg.IncludePaths)
	if !ok {
		return
	}
	visit := models.Visit{
		Timestamp: models.Timestamp{Time: ev.Time()},
		Identity:  s.cfg.Identity,
		URI:       res,
	}
	payload, err := json.Marshal(visit)
	if err != nil {
		logger.Log.Error("Failed to encode visit", "err", err)
		return
	}
	if err := s.client.Publish(models.Topic(s.cfg.Identity), payload); err != nil {
		logger.Log.Debug("Publish failed", "session", s.id, "err", err)
	}
}
