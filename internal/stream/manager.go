// Package stream owns the single persistent connection to Zoom's websocket
// event delivery endpoint: handshake, heartbeat, frame decoding, and
// reconnection with capped exponential backoff. Every failure inside this
// package is converted into a state transition plus a scheduled retry; nothing
// here terminates the host process.
package stream

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"net/url"
	"sync"
	"time"

	"github.com/JuanPabloGaviria/zoom-middleware/internal/pipeline"
	"github.com/JuanPabloGaviria/zoom-middleware/internal/zoomevents"
)

type State int

const (
	StateIdle State = iota
	StateConnecting
	StateOpen
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// TokenProvider yields a currently valid bearer token for the handshake.
type TokenProvider interface {
	Token() (string, error)
}

// Handler receives each decoded domain event. It is invoked on its own
// goroutine per event so a slow handler never blocks the read loop.
type Handler func(ev zoomevents.Event)

type Config struct {
	URL               string
	SubscriptionID    string
	HeartbeatInterval time.Duration
	MaxAttempts       int
	BaseDelay         time.Duration
	MaxDelay          time.Duration
	DialTimeout       time.Duration
}

type Manager struct {
	cfg       Config
	tokens    TokenProvider
	transport Transport
	handler   Handler
	onFatal   func(error)

	mu             sync.Mutex
	state          State
	conn           Conn
	attempt        int
	fatalReported  bool
	gen            int
	heartbeatStop  chan struct{}
	reconnectTimer *time.Timer

	// closed marks a caller-initiated shutdown. A connect in flight across
	// Close (the mutex is released while dialing) must observe it and discard
	// its result instead of reviving the session.
	closed bool

	// Injectable for tests.
	jitter    func() float64
	afterFunc func(time.Duration, func()) *time.Timer
}

func NewManager(cfg Config, tokens TokenProvider, transport Transport, handler Handler) *Manager {
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = 30 * time.Second
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 30 * time.Second
	}
	return &Manager{
		cfg:       cfg,
		tokens:    tokens,
		transport: transport,
		handler:   handler,
		state:     StateIdle,
		jitter: func() float64 {
			return 0.9 + 0.2*rand.Float64()
		},
		afterFunc: time.AfterFunc,
	}
}

// SetFatalHandler registers a callback invoked once when reconnect attempts
// are exhausted. Automatic attempts stop until Connect is called again.
func (m *Manager) SetFatalHandler(fn func(error)) {
	m.onFatal = fn
}

// Connect starts a fresh session. It is a no-op while a connection attempt is
// already in flight or a connection is open. Failures are absorbed into the
// reconnect schedule, never returned.
func (m *Manager) Connect() {
	m.mu.Lock()
	if m.state == StateConnecting || m.state == StateOpen {
		m.mu.Unlock()
		return
	}
	// Caller-initiated, so reset the circuit breaker and revive the session.
	m.attempt = 0
	m.fatalReported = false
	m.closed = false
	m.mu.Unlock()
	m.connect()
}

// IsConnected reports whether the stream is open.
func (m *Manager) IsConnected() bool {
	return m.State() == StateOpen
}

// State returns the current connection state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Close performs caller-initiated shutdown: it cancels any pending reconnect
// timer, stops the heartbeat, and releases the socket. Safe to call twice.
// A later Connect starts a fresh session.
func (m *Manager) Close() {
	m.mu.Lock()
	m.closed = true
	if m.reconnectTimer != nil {
		m.reconnectTimer.Stop()
		m.reconnectTimer = nil
	}
	if m.state == StateOpen {
		m.state = StateClosing
	}
	m.mu.Unlock()
	m.cleanup()
}

func (m *Manager) connect() {
	m.mu.Lock()
	if m.closed || m.state == StateConnecting || m.state == StateOpen {
		m.mu.Unlock()
		return
	}
	m.state = StateConnecting
	m.mu.Unlock()

	token, err := m.tokens.Token()
	if err != nil {
		slog.Error("stream: credential unavailable", "error", err)
		m.connectFailed()
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.DialTimeout)
	defer cancel()

	conn, err := m.transport.Dial(ctx, m.dialURL(token), nil)
	if err != nil {
		slog.Warn("stream: dial failed", "error", err)
		m.connectFailed()
		return
	}

	m.mu.Lock()
	if m.closed {
		// Close ran while the dial was in flight; discard the result.
		m.state = StateClosed
		m.mu.Unlock()
		_ = conn.Close()
		return
	}
	m.conn = conn
	m.state = StateOpen
	m.attempt = 0
	m.gen++
	gen := m.gen
	stop := make(chan struct{})
	m.heartbeatStop = stop
	m.mu.Unlock()

	slog.Info("stream: connected", "url", m.cfg.URL)
	go m.readLoop(conn, gen)
	go m.heartbeatLoop(conn, stop)
}

func (m *Manager) connectFailed() {
	m.mu.Lock()
	m.state = StateClosed
	m.mu.Unlock()
	m.scheduleReconnect()
}

func (m *Manager) dialURL(token string) string {
	q := url.Values{
		"subscriptionId": {m.cfg.SubscriptionID},
		"access_token":   {token},
	}
	return m.cfg.URL + "?" + q.Encode()
}

// readLoop reads frames until the connection dies. Frames are processed in
// arrival order; each domain event is then handed off on its own goroutine.
func (m *Manager) readLoop(conn Conn, gen int) {
	for {
		data, err := conn.ReadMessage()
		if err != nil {
			m.connectionLost(gen, err)
			return
		}
		m.handleFrame(data)
	}
}

func (m *Manager) handleFrame(data []byte) {
	env, err := zoomevents.ParseEnvelope(data)
	if err != nil {
		slog.Warn("stream: malformed frame dropped", "error", err)
		return
	}
	if env.IsFailure() {
		slog.Warn("stream: connection failure frame", "module", env.Module)
		return
	}
	if !env.IsEvent() {
		slog.Debug("stream: plumbing frame", "module", env.Module)
		return
	}
	ev, err := zoomevents.ParseEvent(env.Content)
	if err != nil {
		slog.Warn("stream: malformed event dropped", "error", err)
		return
	}
	go m.handler(ev)
}

// heartbeatLoop sends a periodic liveness probe. Replies are best-effort; a
// dead socket is detected by the read loop, not here.
func (m *Manager) heartbeatLoop(conn Conn, stop chan struct{}) {
	ticker := time.NewTicker(m.cfg.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := conn.WriteJSON(map[string]string{"module": zoomevents.ModuleHeartbeat}); err != nil {
				slog.Debug("stream: heartbeat write failed", "error", err)
			}
		}
	}
}

// connectionLost handles a close or error detected by the read loop. Stale
// notifications from a previous connection generation are ignored so a
// reconnect already in progress is never torn down.
func (m *Manager) connectionLost(gen int, cause error) {
	m.mu.Lock()
	if gen != m.gen || m.state != StateOpen {
		m.mu.Unlock()
		return
	}
	m.state = StateClosing
	m.mu.Unlock()

	slog.Warn("stream: connection lost", "error", cause)
	m.cleanup()
	m.scheduleReconnect()
}

// cleanup releases the heartbeat and the socket and lands in Closed.
// Idempotent: a second call finds nothing to release.
func (m *Manager) cleanup() {
	m.mu.Lock()
	if m.heartbeatStop != nil {
		close(m.heartbeatStop)
		m.heartbeatStop = nil
	}
	conn := m.conn
	m.conn = nil
	m.state = StateClosed
	m.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
}

func (m *Manager) scheduleReconnect() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.attempt++
	attempt := m.attempt
	if m.cfg.MaxAttempts > 0 && attempt > m.cfg.MaxAttempts {
		report := !m.fatalReported
		m.fatalReported = true
		m.mu.Unlock()
		if report {
			err := fmt.Errorf("%w: gave up after %d attempts", pipeline.ErrConnection, m.cfg.MaxAttempts)
			slog.Error("stream: reconnect attempts exhausted", "max_attempts", m.cfg.MaxAttempts)
			if m.onFatal != nil {
				m.onFatal(err)
			}
		}
		return
	}
	delay := m.reconnectDelay(attempt)
	slog.Info("stream: reconnect scheduled", "attempt", attempt, "delay", delay)
	m.reconnectTimer = m.afterFunc(delay, m.connect)
	m.mu.Unlock()
}

// reconnectDelay grows the base delay by 1.5x per attempt (1-indexed), caps
// it, and perturbs it by ±10% so a fleet of instances does not reconnect in
// lockstep.
func (m *Manager) reconnectDelay(attempt int) time.Duration {
	d := float64(m.cfg.BaseDelay) * math.Pow(1.5, float64(attempt-1))
	if ceil := float64(m.cfg.MaxDelay); m.cfg.MaxDelay > 0 && d > ceil {
		d = ceil
	}
	return time.Duration(d * m.jitter())
}
