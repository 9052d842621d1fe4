package client

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markb/ripple/internal/realtime"
)

func newTestServer(t *testing.T, handler http.Handler) string {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func newTestManager(t *testing.T, url, userID string) *Manager {
	t.Helper()
	m, err := NewManager(Config{
		URL:             url,
		UserID:          userID,
		MaxRetries:      3,
		InitialInterval: 10 * time.Millisecond,
		MaxInterval:     50 * time.Millisecond,
	})
	require.NoError(t, err)
	return m
}

func TestNewManagerValidation(t *testing.T) {
	_, err := NewManager(Config{UserID: "u1"})
	assert.Error(t, err)

	_, err = NewManager(Config{URL: "ws://localhost/realtime/v1/websocket"})
	assert.Error(t, err)
}

func TestAcquireConnectsAndJoins(t *testing.T) {
	svc := realtime.NewService()
	url := newTestServer(t, http.HandlerFunc(svc.HandleWebSocket))

	m := newTestManager(t, url, "u1")
	m.Acquire()
	defer m.Release()

	require.Eventually(t, func() bool {
		return len(svc.Gateway().Registry().Lookup("u1")) == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.True(t, m.Connected())
}

func TestReferenceCounting(t *testing.T) {
	svc := realtime.NewService()
	url := newTestServer(t, http.HandlerFunc(svc.HandleWebSocket))

	m := newTestManager(t, url, "u1")
	m.Acquire()
	m.Acquire()

	require.Eventually(t, func() bool { return m.Connected() }, 2*time.Second, 10*time.Millisecond)

	// First release: one consumer left, connection stays open
	m.Release()
	assert.True(t, m.Connected())
	assert.Len(t, svc.Gateway().Registry().Lookup("u1"), 1)

	// Second release: count hits zero, teardown
	m.Release()
	assert.False(t, m.Connected())
	require.Eventually(t, func() bool {
		return svc.Stats().Connections == 0
	}, 2*time.Second, 10*time.Millisecond)

	// Extra release is a no-op
	m.Release()
}

func TestReconnectRejoins(t *testing.T) {
	svc := realtime.NewService()
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}

	// Drop the first connection right after its join frame; serve the
	// rest normally. The manager must redial and re-join on its own.
	var dials atomic.Int32
	url := newTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if dials.Add(1) > 1 {
			svc.HandleWebSocket(w, r)
			return
		}
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		ws.ReadMessage() // consume the join frame
		ws.Close()
	}))

	m := newTestManager(t, url, "u1")
	m.Acquire()
	defer m.Release()

	require.Eventually(t, func() bool {
		return len(svc.Gateway().Registry().Lookup("u1")) == 1
	}, 3*time.Second, 10*time.Millisecond)
	assert.GreaterOrEqual(t, dials.Load(), int32(2))
	assert.True(t, m.Connected())
}

func TestSubscribeReceivesEvents(t *testing.T) {
	svc := realtime.NewService()
	url := newTestServer(t, http.HandlerFunc(svc.HandleWebSocket))

	m := newTestManager(t, url, "u1")

	var dropped atomic.Int32
	unsubscribe := m.Subscribe(realtime.EventNotification, func(map[string]any) {
		dropped.Add(1)
	})

	got := make(chan map[string]any, 1)
	m.Subscribe(realtime.EventNotification, func(payload map[string]any) {
		got <- payload
	})

	m.Acquire()
	defer m.Release()
	require.Eventually(t, func() bool {
		return len(svc.Gateway().Registry().Lookup("u1")) == 1
	}, 2*time.Second, 10*time.Millisecond)

	// First subscriber is gone before anything is emitted
	unsubscribe()

	require.True(t, svc.Gateway().EmitToUser("u1", realtime.EventNotification, map[string]any{"id": "n1"}))

	select {
	case payload := <-got:
		assert.Equal(t, "n1", payload["id"])
	case <-time.After(2 * time.Second):
		t.Fatal("subscriber never received the event")
	}
	assert.Equal(t, int32(0), dropped.Load(), "unsubscribed handler must not fire")
}

func TestRetryExhaustionSurfacesDisconnected(t *testing.T) {
	// Point the manager at a server that is already gone
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	srv.Close()

	disconnected := make(chan struct{})
	m, err := NewManager(Config{
		URL:             url,
		UserID:          "u1",
		MaxRetries:      2,
		InitialInterval: 5 * time.Millisecond,
		MaxInterval:     20 * time.Millisecond,
		OnDisconnect:    func() { close(disconnected) },
	})
	require.NoError(t, err)

	m.Acquire()
	defer m.Release()

	select {
	case <-disconnected:
	case <-time.After(3 * time.Second):
		t.Fatal("OnDisconnect never fired")
	}
	assert.False(t, m.Connected())
}
