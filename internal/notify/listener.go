package notify

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/nhle/collabtask/internal/model"
)

// State is the push channel's connection state.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "unknown"
	}
}

// Tokens is where the listener reads the credential. Version changes
// whenever the credential does.
type Tokens interface {
	AccessToken() string
	Version() uint64
}

// Sink receives pushed notifications.
type Sink interface {
	Push(n model.Notification) bool
}

// ListenerConfig holds the push channel settings.
type ListenerConfig struct {
	// URL is the websocket base, e.g. ws://localhost:8000.
	URL              string
	MaxAttempts      int
	BaseDelay        time.Duration
	MaxDelay         time.Duration
	Liveness         time.Duration
	HandshakeTimeout time.Duration
}

// ListenerConfigFrom derives listener settings from the app config.
func ListenerConfigFrom(cfg *model.AppConfig) ListenerConfig {
	return ListenerConfig{
		URL:              cfg.API.WebSocketURL(),
		MaxAttempts:      cfg.Push.MaxReconnectAttempts,
		BaseDelay:        cfg.Push.BaseDelay(),
		MaxDelay:         cfg.Push.MaxDelay(),
		Liveness:         cfg.Push.LivenessInterval(),
		HandshakeTimeout: cfg.Push.HandshakeTimeout(),
	}
}

// ListenerOption configures a Listener.
type ListenerOption func(*Listener)

// WithRetryHook calls fn each time a reconnect is scheduled.
func WithRetryHook(fn func(attempt int, delay time.Duration)) ListenerOption {
	return func(l *Listener) { l.onRetry = fn }
}

// WithListenerLogger sets the listener's logger.
func WithListenerLogger(logger *zap.Logger) ListenerOption {
	return func(l *Listener) { l.logger = logger }
}

type (
	connectEvent    struct{}
	disconnectEvent struct{}
	tickEvent       struct{}
	dialedEvent     struct {
		gen  uint64
		conn Conn
		err  error
	}
	frameEvent struct {
		gen  uint64
		data []byte
	}
	closedEvent struct {
		gen  uint64
		code websocket.StatusCode
		err  error
	}
	retryEvent struct {
		seq uint64
	}
	barrierEvent struct {
		done chan struct{}
	}
)

// Listener keeps the notification push channel open while a credential
// is present. All state transitions happen on the goroutine running Run.
type Listener struct {
	cfg     ListenerConfig
	dialer  Dialer
	tokens  Tokens
	sink    Sink
	logger  *zap.Logger
	onRetry func(attempt int, delay time.Duration)

	events chan interface{}
	done   chan struct{}

	mu         sync.Mutex
	state      State
	stateHooks []func(State)

	// Owned by the Run goroutine.
	gen         uint64
	conn        Conn
	cancelIO    context.CancelFunc
	attempts    int
	retry       *time.Timer
	retrySeq    uint64
	halted      bool
	credVersion uint64
}

// NewListener creates a listener. It does nothing until Run is called.
func NewListener(cfg ListenerConfig, dialer Dialer, tokens Tokens, sink Sink, opts ...ListenerOption) *Listener {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = time.Second
	}
	if cfg.MaxDelay < cfg.BaseDelay {
		cfg.MaxDelay = 30 * time.Second
	}
	if cfg.Liveness <= 0 {
		cfg.Liveness = 5 * time.Second
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = 10 * time.Second
	}

	l := &Listener{
		cfg:    cfg,
		dialer: dialer,
		tokens: tokens,
		sink:   sink,
		logger: zap.NewNop(),
		events: make(chan interface{}, 32),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Run drives the channel until ctx is cancelled. It connects right away
// when a credential is present and re-checks on every liveness tick.
func (l *Listener) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.cfg.Liveness)
	defer ticker.Stop()
	defer close(l.done)
	defer l.teardown()

	l.credVersion = l.tokens.Version()
	l.check()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			l.check()
		case ev := <-l.events:
			l.handle(ev)
		}
	}
}

// Connect (re)starts the channel, clearing a halt and the attempt counter.
func (l *Listener) Connect() { l.send(connectEvent{}) }

// Disconnect closes the channel normally and keeps it down until Connect
// or a credential change.
func (l *Listener) Disconnect() { l.send(disconnectEvent{}) }

// CheckLiveness runs the liveness check now instead of on the next tick.
func (l *Listener) CheckLiveness() { l.send(tickEvent{}) }

// State returns the current connection state.
func (l *Listener) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// OnStateChange registers fn to run on every state transition. fn runs on
// the listener goroutine and must not block.
func (l *Listener) OnStateChange(fn func(State)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stateHooks = append(l.stateHooks, fn)
}

// flush waits until every event queued before it has been handled.
func (l *Listener) flush() {
	done := make(chan struct{})
	l.send(barrierEvent{done: done})
	select {
	case <-done:
	case <-l.done:
	}
}

func (l *Listener) send(ev interface{}) {
	select {
	case l.events <- ev:
	case <-l.done:
	}
}

func (l *Listener) handle(ev interface{}) {
	switch ev := ev.(type) {
	case connectEvent:
		l.halted = false
		l.attempts = 0
		l.stopRetry()
		l.credVersion = l.tokens.Version()
		if l.State() == StateDisconnected {
			l.dial()
		}

	case disconnectEvent:
		l.halted = true
		l.attempts = 0
		l.stopRetry()
		l.drop(websocket.StatusNormalClosure, "client disconnect")

	case tickEvent:
		l.check()

	case dialedEvent:
		l.dialed(ev)

	case frameEvent:
		if ev.gen == l.gen && l.State() == StateConnected {
			l.apply(ev.data)
		}

	case closedEvent:
		if ev.gen != l.gen {
			return
		}
		l.conn = nil
		if l.cancelIO != nil {
			l.cancelIO()
			l.cancelIO = nil
		}
		l.closed(ev.code, ev.err)

	case retryEvent:
		if ev.seq != l.retrySeq {
			return
		}
		l.retry = nil
		if l.halted || l.State() != StateDisconnected {
			return
		}
		if l.tokens.AccessToken() == "" {
			l.attempts = 0
			return
		}
		l.dial()

	case barrierEvent:
		close(ev.done)
	}
}

// check reconciles "credential present" with "channel connected".
func (l *Listener) check() {
	token := l.tokens.AccessToken()
	state := l.State()

	if token == "" {
		l.stopRetry()
		l.attempts = 0
		if state != StateDisconnected {
			l.logger.Info("credential gone, closing push channel")
			l.drop(websocket.StatusNormalClosure, "logged out")
		}
		return
	}

	if v := l.tokens.Version(); v != l.credVersion {
		l.credVersion = v
		if l.halted {
			l.logger.Info("credential changed, resuming push channel")
			l.halted = false
			l.attempts = 0
		}
	}

	if l.halted || l.retry != nil || state != StateDisconnected {
		return
	}
	l.dial()
}

func (l *Listener) dial() {
	token := l.tokens.AccessToken()
	if token == "" {
		return
	}

	l.gen++
	gen := l.gen
	ioCtx, cancel := context.WithCancel(context.Background())
	l.cancelIO = cancel
	l.setState(StateConnecting)

	url := ChannelURL(l.cfg.URL, token)
	timeout := l.cfg.HandshakeTimeout
	go func() {
		dialCtx, dialCancel := context.WithTimeout(ioCtx, timeout)
		defer dialCancel()

		conn, err := l.dialer.Dial(dialCtx, url)
		l.send(dialedEvent{gen: gen, conn: conn, err: err})

		// Frames are queued only after the dial result.
		if err == nil {
			l.readLoop(ioCtx, gen, conn)
		}
	}()
}

func (l *Listener) dialed(ev dialedEvent) {
	if ev.gen != l.gen {
		if ev.conn != nil {
			go ev.conn.Close(websocket.StatusNormalClosure, "superseded")
		}
		return
	}

	if ev.err != nil {
		code := websocket.StatusAbnormalClosure
		var hs *HandshakeError
		if errors.As(ev.err, &hs) && hs.Unauthorized() {
			code = websocket.StatusPolicyViolation
		}
		if l.cancelIO != nil {
			l.cancelIO()
			l.cancelIO = nil
		}
		l.closed(code, ev.err)
		return
	}

	l.conn = ev.conn
	l.attempts = 0
	l.setState(StateConnected)
	l.logger.Info("push channel connected")
}

func (l *Listener) readLoop(ctx context.Context, gen uint64, conn Conn) {
	for {
		data, err := conn.Read(ctx)
		if err != nil {
			code := websocket.CloseStatus(err)
			if code == -1 {
				code = websocket.StatusAbnormalClosure
			}
			l.send(closedEvent{gen: gen, code: code, err: err})
			return
		}
		l.send(frameEvent{gen: gen, data: data})
	}
}

// closed decides what follows a lost or refused connection.
func (l *Listener) closed(code websocket.StatusCode, err error) {
	l.setState(StateDisconnected)

	switch code {
	case websocket.StatusPolicyViolation:
		l.halted = true
		l.logger.Warn("push channel refused the credential", zap.Error(err))
		return

	case websocket.StatusNormalClosure:
		l.logger.Info("push channel closed normally")
		return
	}

	if l.attempts >= l.cfg.MaxAttempts {
		l.halted = true
		l.logger.Warn("push channel reconnect attempts exhausted",
			zap.Int("attempts", l.attempts),
			zap.Error(err),
		)
		return
	}

	l.attempts++
	delay := Backoff(l.attempts, l.cfg.BaseDelay, l.cfg.MaxDelay)
	l.retrySeq++
	seq := l.retrySeq
	l.retry = time.AfterFunc(delay, func() { l.send(retryEvent{seq: seq}) })

	l.logger.Info("push channel lost, reconnecting",
		zap.Int("code", int(code)),
		zap.Int("attempt", l.attempts),
		zap.Duration("delay", delay),
	)
	if l.onRetry != nil {
		l.onRetry(l.attempts, delay)
	}
}

// drop closes the current connection or pending dial. Events from it are
// ignored from here on.
func (l *Listener) drop(code websocket.StatusCode, reason string) {
	l.gen++
	conn, cancel := l.conn, l.cancelIO
	l.conn, l.cancelIO = nil, nil
	if conn != nil || cancel != nil {
		go func() {
			if conn != nil {
				_ = conn.Close(code, reason)
			}
			if cancel != nil {
				cancel()
			}
		}()
	}
	l.setState(StateDisconnected)
}

func (l *Listener) stopRetry() {
	if l.retry != nil {
		l.retry.Stop()
		l.retry = nil
	}
	l.retrySeq++
}

func (l *Listener) teardown() {
	l.stopRetry()
	l.drop(websocket.StatusNormalClosure, "shutting down")
}

type frame struct {
	Type    string          `json:"type"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (l *Listener) apply(data []byte) {
	var f frame
	if err := json.Unmarshal(data, &f); err != nil {
		l.logger.Debug("ignoring malformed frame", zap.Error(err))
		return
	}

	switch f.Type {
	case "connected":
		l.logger.Debug("push channel greeting", zap.String("message", f.Message))
	case "notification":
		var n model.Notification
		if err := json.Unmarshal(f.Data, &n); err != nil || n.ID == "" {
			l.logger.Debug("ignoring unreadable notification frame", zap.Error(err))
			return
		}
		l.sink.Push(n)
	default:
		l.logger.Debug("ignoring frame", zap.String("type", f.Type))
	}
}

func (l *Listener) setState(s State) {
	l.mu.Lock()
	if l.state == s {
		l.mu.Unlock()
		return
	}
	l.state = s
	hooks := append([]func(State){}, l.stateHooks...)
	l.mu.Unlock()

	for _, fn := range hooks {
		fn(s)
	}
}
