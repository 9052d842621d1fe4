// internal/realtime/handler.go
package realtime

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/markb/ripple/internal/log"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins (CORS handled elsewhere)
	},
}

// Service owns the gateway and its HTTP surface.
type Service struct {
	gateway *Gateway
}

// NewService creates a realtime service with a fresh gateway.
func NewService() *Service {
	return &Service{gateway: NewGateway()}
}

// Gateway returns the live gateway.
func (s *Service) Gateway() *Gateway {
	return s.gateway
}

// Stats returns gateway statistics.
func (s *Service) Stats() GatewayStats {
	return s.gateway.Stats()
}

// HandleWebSocket upgrades the request and starts the connection pumps.
// Identity is not checked here: the user id arrives on the join frame from
// the already-authenticated caller context, and the gateway trusts it.
func (s *Service) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error("realtime: upgrade failed", "error", err.Error())
		return
	}

	conn := s.gateway.NewConn(ws)
	log.Debug("realtime: new connection", "conn_id", conn.ID())

	go conn.WritePump()
	go conn.ReadPump()
}
