// internal/realtime/gateway.go
package realtime

import (
	"sync"

	"github.com/markb/ripple/internal/log"
)

// Gateway mediates connection lifecycle and event emission. Each connection
// moves through Connecting -> Joined -> Closed; there is no way back out of
// Closed, and a connection that never joins never touches the registry.
type Gateway struct {
	mu       sync.RWMutex
	conns    map[string]*Conn // all live conns, joined or not
	registry *Registry
}

// GatewayStats is the read-only health view of the gateway.
type GatewayStats struct {
	Connections int `json:"connections"`
	Users       int `json:"users"`
}

// NewGateway creates a gateway with an empty registry.
func NewGateway() *Gateway {
	return &Gateway{
		conns:    make(map[string]*Conn),
		registry: NewRegistry(),
	}
}

// Registry exposes the connection registry.
func (g *Gateway) Registry() *Registry {
	return g.registry
}

// Stats returns the current connection counts.
func (g *Gateway) Stats() GatewayStats {
	g.mu.RLock()
	conns := len(g.conns)
	g.mu.RUnlock()

	return GatewayStats{
		Connections: conns,
		Users:       g.registry.Users(),
	}
}

func (g *Gateway) addConn(c *Conn) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.conns[c.id] = c
}

func (g *Gateway) conn(id string) *Conn {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.conns[id]
}

// onJoin binds a connection to a user and registers it. A repeated join
// with a new user id re-registers the connection under the new id; the
// registry drops the old registration in the same step, so the connection
// is never in two rooms at once.
func (g *Gateway) onJoin(c *Conn, userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == stateClosed {
		return
	}
	c.state = stateJoined
	c.userID = userID

	// Register while still holding c.mu: a Close racing this join must
	// either see Joined (and unregister after us) or we must see Closed
	// (and never register). Close takes c.mu before its unregister, so
	// letting go here first would leave a window for a permanent entry.
	g.registry.Register(userID, c.id)
	log.Debug("realtime: joined", "conn_id", c.id, "user_id", userID)
}

// onDisconnect removes every trace of the connection. It runs for every
// close, whatever state the connection was in, so nothing leaks when a
// handshake is abandoned before join.
func (g *Gateway) onDisconnect(c *Conn) {
	g.registry.Unregister(c.id)

	g.mu.Lock()
	delete(g.conns, c.id)
	g.mu.Unlock()

	log.Debug("realtime: disconnected", "conn_id", c.id)
}

// EmitToUser pushes an event frame to every live connection for userID.
// Returns false when the user has no live connections; that is the normal
// offline case, not an error. Delivery is fire and forget: a slow or dying
// connection can drop its copy without affecting its siblings.
func (g *Gateway) EmitToUser(userID, event string, payload map[string]any) bool {
	connIDs := g.registry.Lookup(userID)
	if len(connIDs) == 0 {
		return false
	}

	data, err := NewServerFrame(event, payload).Encode()
	if err != nil {
		log.Error("realtime: encode failed", "event", event, "error", err.Error())
		return false
	}

	for _, id := range connIDs {
		if c := g.conn(id); c != nil {
			c.Send(data)
		}
	}
	return true
}
