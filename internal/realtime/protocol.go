// Package realtime implements the real-time event delivery subsystem: a
// per-user connection registry, a websocket gateway with an emit-to-user
// primitive, and the dispatch boundary backend code uses to push typed
// events to a user's live sessions. Delivery is best effort; the durable
// record behind every event is persisted before dispatch.
package realtime

import (
	"encoding/json"
	"fmt"
)

// Control events sent by clients.
const (
	EventJoin  = "join"
	EventLeave = "leave"
	EventError = "error"
)

// Events pushed to clients.
const (
	EventNotification = "notification"
	EventMessage      = "message"
)

// ClientFrame is an inbound control frame.
type ClientFrame struct {
	Event  string `json:"event"`
	UserID string `json:"user_id,omitempty"`
	Detail string `json:"detail,omitempty"`
}

// ServerFrame is an outbound event frame.
type ServerFrame struct {
	Event   string         `json:"event"`
	Payload map[string]any `json:"payload"`
}

// DecodeClientFrame parses an inbound control frame.
func DecodeClientFrame(data []byte) (*ClientFrame, error) {
	var frame ClientFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return nil, fmt.Errorf("malformed frame: %w", err)
	}
	if frame.Event == "" {
		return nil, fmt.Errorf("malformed frame: missing event")
	}
	return &frame, nil
}

// Encode serializes an outbound frame.
func (f *ServerFrame) Encode() ([]byte, error) {
	data, err := json.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	return data, nil
}

// NewServerFrame creates an outbound frame for the given event name.
func NewServerFrame(event string, payload map[string]any) *ServerFrame {
	if payload == nil {
		payload = map[string]any{}
	}
	return &ServerFrame{Event: event, Payload: payload}
}
