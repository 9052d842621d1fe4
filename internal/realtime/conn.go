// internal/realtime/conn.go
package realtime

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/markb/ripple/internal/log"
)

const (
	// Send buffer size for outbound frames
	sendBufferSize = 256

	// Time allowed to write a frame
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message
	pongWait = 30 * time.Second

	// Send pings with this period (must be less than pongWait)
	pingPeriod = 25 * time.Second

	// Control frames are tiny; anything bigger is garbage
	maxMessageSize = 4096
)

type connState int

const (
	stateConnecting connState = iota
	stateJoined
	stateClosed
)

// Conn is one live transport session. It is created on websocket handshake,
// bound to a user on the first join frame, and destroyed on transport close.
// The gateway owns it exclusively.
type Conn struct {
	id      string
	ws      *websocket.Conn
	gateway *Gateway

	mu     sync.Mutex
	state  connState
	userID string

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

// NewConn creates a connection in the Connecting state and tracks it on the
// gateway. It has no registry presence until a join frame arrives.
func (g *Gateway) NewConn(ws *websocket.Conn) *Conn {
	conn := &Conn{
		id:      uuid.NewString(),
		ws:      ws,
		gateway: g,
		send:    make(chan []byte, sendBufferSize),
		done:    make(chan struct{}),
	}
	g.addConn(conn)
	return conn
}

// ID returns the connection id.
func (c *Conn) ID() string {
	return c.id
}

// UserID returns the user this connection joined as ("" before join).
func (c *Conn) UserID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userID
}

// Send queues a frame for delivery. Fire and forget: a full buffer drops
// the frame with a warning instead of blocking the emitter.
func (c *Conn) Send(data []byte) {
	select {
	case c.send <- data:
	case <-c.done:
		// Connection closed
	default:
		log.Warn("realtime: send buffer full, dropping frame", "conn_id", c.id)
	}
}

// Close tears the connection down. Unregistration is unconditional so no
// registry entry outlives its connection, whatever state it closed from.
func (c *Conn) Close() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.state = stateClosed
		c.mu.Unlock()

		close(c.done)
		if c.ws != nil {
			c.ws.Close()
		}
		if c.gateway != nil {
			c.gateway.onDisconnect(c)
		}
	})
}

// ReadPump reads control frames until the transport closes.
func (c *Conn) ReadPump() {
	defer c.Close()

	c.ws.SetReadLimit(maxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug("realtime: read error", "conn_id", c.id, "error", err.Error())
			}
			return
		}

		frame, err := DecodeClientFrame(data)
		if err != nil {
			// A single bad frame is logged and dropped; the connection stays up.
			log.Warn("realtime: dropping malformed frame", "conn_id", c.id, "error", err.Error())
			continue
		}

		c.handleFrame(frame)
	}
}

// WritePump drains the send queue to the websocket.
func (c *Conn) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			return
		}
	}
}

// sendError pushes an error frame so the client learns its last frame was
// rejected. Best effort like any other send.
func (c *Conn) sendError(detail string) {
	data, err := NewServerFrame(EventError, map[string]any{"detail": detail}).Encode()
	if err != nil {
		return
	}
	c.Send(data)
}

// handleFrame routes one inbound control frame.
func (c *Conn) handleFrame(frame *ClientFrame) {
	switch frame.Event {
	case EventJoin:
		if frame.UserID == "" {
			log.Warn("realtime: join without user id", "conn_id", c.id)
			c.sendError("join requires a user id")
			return
		}
		c.gateway.onJoin(c, frame.UserID)
	case EventLeave:
		c.Close()
	case EventError:
		log.Warn("realtime: client error frame", "conn_id", c.id, "detail", frame.Detail)
	default:
		log.Debug("realtime: unknown event", "conn_id", c.id, "event", frame.Event)
	}
}
