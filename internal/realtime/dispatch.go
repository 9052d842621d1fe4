// internal/realtime/dispatch.go
package realtime

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"
)

// ErrInvalidNotification marks a dispatch payload that failed validation.
var ErrInvalidNotification = errors.New("invalid notification")

// ErrGatewayUnavailable means the dispatcher has no live gateway handle.
// Distinct from an offline target: it usually means the realtime subsystem
// never started, and callers should fall back to pull-based refresh.
var ErrGatewayUnavailable = errors.New("realtime gateway unavailable")

// Emitter is the gateway capability the dispatcher needs. *Gateway
// implements it; tests substitute fakes.
type Emitter interface {
	EmitToUser(userID, event string, payload map[string]any) bool
}

// Notification is the dispatch payload. ID, CreatedAt, and Read are
// populated server-side before emit; the wire shape mirrors the stored
// notification record.
type Notification struct {
	ID         string    `json:"id"`
	ReceiverID string    `json:"receiverId"`
	Type       string    `json:"type"`
	Content    string    `json:"content"`
	URL        string    `json:"url,omitempty"`
	Read       bool      `json:"read"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Validate checks the caller-supplied fields. No side effects on failure.
func (n *Notification) Validate() error {
	if n.ReceiverID == "" {
		return fmt.Errorf("%w: receiverId is required", ErrInvalidNotification)
	}
	if n.Type == "" {
		return fmt.Errorf("%w: type is required", ErrInvalidNotification)
	}
	if n.Content == "" {
		return fmt.Errorf("%w: content is required", ErrInvalidNotification)
	}
	if n.URL != "" {
		u, err := url.Parse(n.URL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%w: url is not well-formed", ErrInvalidNotification)
		}
	}
	return nil
}

func (n *Notification) payload() map[string]any {
	p := map[string]any{
		"id":         n.ID,
		"receiverId": n.ReceiverID,
		"type":       n.Type,
		"content":    n.Content,
		"read":       n.Read,
		"createdAt":  n.CreatedAt.Format(time.RFC3339),
	}
	if n.URL != "" {
		p["url"] = n.URL
	}
	return p
}

// DispatchResult is the tri-state outcome of a dispatch attempt.
type DispatchResult int

const (
	// ResultUnavailable: the gateway handle could not be reached at all.
	ResultUnavailable DispatchResult = iota
	// ResultOffline: dispatch accepted, zero live connections. Not an error;
	// the durable record already exists for the next pull.
	ResultOffline
	// ResultDelivered: at least one live connection received the event.
	ResultDelivered
)

func (r DispatchResult) String() string {
	switch r {
	case ResultDelivered:
		return "delivered"
	case ResultOffline:
		return "accepted-offline"
	default:
		return "gateway-unavailable"
	}
}

// Dispatcher validates notification payloads and hands them to the gateway.
// The gateway handle is injected so any backend code path can dispatch
// without reaching for ambient globals, and tests can swap in a fake. The
// dispatcher never persists anything; callers record the notification
// durably before dispatching.
type Dispatcher struct {
	emitter Emitter
}

// NewDispatcher creates a dispatcher. A nil emitter is allowed and makes
// every dispatch report ResultUnavailable.
func NewDispatcher(emitter Emitter) *Dispatcher {
	return &Dispatcher{emitter: emitter}
}

// Dispatch validates the notification and emits it to the receiver's live
// connections. Server-populated fields are filled in unless the caller
// already set them (the persisted record's id wins over a fresh one).
func (d *Dispatcher) Dispatch(n *Notification) (DispatchResult, error) {
	if err := n.Validate(); err != nil {
		return ResultUnavailable, err
	}

	if d == nil || d.emitter == nil {
		return ResultUnavailable, ErrGatewayUnavailable
	}

	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}

	if d.emitter.EmitToUser(n.ReceiverID, EventNotification, n.payload()) {
		return ResultDelivered, nil
	}
	return ResultOffline, nil
}
