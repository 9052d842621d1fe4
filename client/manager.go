// Package client is the Go SDK for the ripple realtime stream. A process
// holds one Manager, shares it between features through Acquire/Release
// reference counting, and subscribes to named events. The manager keeps at
// most one physical websocket open, re-joins after every reconnect, and
// retries failed dials with bounded exponential backoff.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gorilla/websocket"

	"github.com/markb/ripple/internal/log"
	"github.com/markb/ripple/internal/realtime"
)

const (
	defaultMaxRetries       = 8
	defaultInitialInterval  = 500 * time.Millisecond
	defaultMaxInterval      = 30 * time.Second
	defaultHandshakeTimeout = 10 * time.Second
)

// Config configures a Manager. URL and UserID are required.
type Config struct {
	URL    string // websocket endpoint, e.g. ws://host/realtime/v1/websocket
	UserID string // user id sent on every join frame

	MaxRetries       uint          // dial attempts per reconnect cycle (0 = default)
	InitialInterval  time.Duration // first backoff delay (0 = default)
	MaxInterval      time.Duration // backoff delay cap (0 = default)
	HandshakeTimeout time.Duration

	// OnDisconnect runs once when a reconnect cycle exhausts its retries
	// and the manager gives up until the next Acquire from zero.
	OnDisconnect func()
}

// Manager owns the shared connection. All lifecycle methods are synchronous
// under one mutex; network I/O happens only on the manager's own goroutine,
// so Acquire and Release never block on the wire.
type Manager struct {
	cfg Config

	mu        sync.Mutex
	refs      int
	ws        *websocket.Conn
	connected bool
	cancel    context.CancelFunc

	subs    map[string]map[int]Handler
	nextSub int
}

// NewManager validates the config and returns a manager with no open
// connection. Nothing dials until the first Acquire.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("client: URL is required")
	}
	if cfg.UserID == "" {
		return nil, fmt.Errorf("client: UserID is required")
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if cfg.InitialInterval == 0 {
		cfg.InitialInterval = defaultInitialInterval
	}
	if cfg.MaxInterval == 0 {
		cfg.MaxInterval = defaultMaxInterval
	}
	if cfg.HandshakeTimeout == 0 {
		cfg.HandshakeTimeout = defaultHandshakeTimeout
	}
	return &Manager{
		cfg:  cfg,
		subs: make(map[string]map[int]Handler),
	}, nil
}

// Acquire registers one more consumer. The first consumer starts the
// connect loop; later ones share the existing connection. Synchronous: it
// returns before the dial completes, and Connected reports progress.
func (m *Manager) Acquire() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.refs++
	if m.refs > 1 {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	go m.run(ctx)
}

// Release drops one consumer. When the count reaches zero the connection
// is closed and shared state cleared; extra calls are no-ops.
func (m *Manager) Release() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.refs == 0 {
		return
	}
	m.refs--
	if m.refs > 0 {
		return
	}

	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	if m.ws != nil {
		m.ws.Close()
		m.ws = nil
	}
	m.connected = false
}

// Connected reports whether a joined connection is currently open.
func (m *Manager) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

// run is the manager's single network goroutine: connect, pump frames,
// reconnect on failure. It exits when the context is cancelled (Release to
// zero) or a reconnect cycle runs out of retries.
func (m *Manager) run(ctx context.Context) {
	for {
		ws, err := m.connect(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			// Retries exhausted: surface a persistent disconnected state
			log.Warn("client: reconnect attempts exhausted", "error", err.Error())
			if m.cfg.OnDisconnect != nil {
				m.cfg.OnDisconnect()
			}
			return
		}

		m.readLoop(ws)
		if ctx.Err() != nil {
			return
		}
		log.Debug("client: connection lost, reconnecting")
	}
}

// connect dials and joins under the backoff policy. Each successful
// connection gets a fresh join frame: the server-side registration from any
// previous physical connection is gone.
func (m *Manager) connect(ctx context.Context) (*websocket.Conn, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = m.cfg.InitialInterval
	policy.MaxInterval = m.cfg.MaxInterval

	dialer := websocket.Dialer{HandshakeTimeout: m.cfg.HandshakeTimeout}

	ws, err := backoff.Retry(ctx, func() (*websocket.Conn, error) {
		conn, _, err := dialer.DialContext(ctx, m.cfg.URL, nil)
		if err != nil {
			return nil, fmt.Errorf("dial %s: %w", m.cfg.URL, err)
		}
		join := realtime.ClientFrame{Event: realtime.EventJoin, UserID: m.cfg.UserID}
		if err := conn.WriteJSON(join); err != nil {
			conn.Close()
			return nil, fmt.Errorf("send join: %w", err)
		}
		return conn, nil
	}, backoff.WithBackOff(policy), backoff.WithMaxTries(m.cfg.MaxRetries))
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	if m.refs == 0 {
		// Released while dialing
		m.mu.Unlock()
		ws.Close()
		return nil, context.Canceled
	}
	m.ws = ws
	m.connected = true
	m.mu.Unlock()

	log.Debug("client: connected", "user_id", m.cfg.UserID)
	return ws, nil
}

// readLoop pumps inbound frames to subscribers until the transport fails.
// Handlers run synchronously on this goroutine, so none of them can
// observe a torn-down connection mid-callback.
func (m *Manager) readLoop(ws *websocket.Conn) {
	defer func() {
		m.mu.Lock()
		m.connected = false
		if m.ws == ws {
			m.ws = nil
		}
		m.mu.Unlock()
		ws.Close()
	}()

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return
		}

		var frame realtime.ServerFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			log.Warn("client: dropping malformed frame", "error", err.Error())
			continue
		}
		m.dispatch(frame.Event, frame.Payload)
	}
}
