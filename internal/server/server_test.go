// internal/server/server_test.go
package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markb/ripple/internal/db"
	"github.com/markb/ripple/internal/log"
	"github.com/markb/ripple/internal/realtime"
)

const testJWTSecret = "test-secret-at-least-32-chars-long!!"

func setupTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()

	database, err := db.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	require.NoError(t, database.RunMigrations())

	s := New(database, testJWTSecret)
	ts := httptest.NewServer(s.Router())
	t.Cleanup(ts.Close)
	return s, ts
}

func postJSON(t *testing.T, url string, token string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(data))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func getJSON(t *testing.T, url, token string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, into any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(into))
}

// signupAndLogin creates a user and returns its id and a bearer token.
func signupAndLogin(t *testing.T, ts *httptest.Server, username string) (string, string) {
	t.Helper()

	email := username + "@example.com"
	resp := postJSON(t, ts.URL+"/auth/v1/signup", "", map[string]string{
		"username": username,
		"email":    email,
		"password": "secret123",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var user struct {
		ID string `json:"id"`
	}
	decodeBody(t, resp, &user)

	resp = postJSON(t, ts.URL+"/auth/v1/token?grant_type=password", "", map[string]string{
		"email":    email,
		"password": "secret123",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var token struct {
		AccessToken string `json:"access_token"`
	}
	decodeBody(t, resp, &token)
	require.NotEmpty(t, token.AccessToken)

	return user.ID, token.AccessToken
}

// dialWebSocket opens a joined realtime connection for userID and waits for
// the registration to land.
func dialWebSocket(t *testing.T, s *Server, ts *httptest.Server, userID string) *websocket.Conn {
	t.Helper()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/realtime/v1/websocket"
	ws, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { ws.Close() })

	require.NoError(t, ws.WriteJSON(realtime.ClientFrame{Event: realtime.EventJoin, UserID: userID}))
	require.Eventually(t, func() bool {
		return len(s.Realtime().Gateway().Registry().Lookup(userID)) == 1
	}, 2*time.Second, 10*time.Millisecond)
	return ws
}

func readServerFrame(t *testing.T, ws *websocket.Conn) *realtime.ServerFrame {
	t.Helper()
	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := ws.ReadMessage()
	require.NoError(t, err)
	var frame realtime.ServerFrame
	require.NoError(t, json.Unmarshal(data, &frame))
	return &frame
}

func TestHealth(t *testing.T) {
	_, ts := setupTestServer(t)

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
}

func TestSignupValidation(t *testing.T) {
	_, ts := setupTestServer(t)

	resp := postJSON(t, ts.URL+"/auth/v1/signup", "", map[string]string{
		"username": "alice",
		"email":    "alice@example.com",
		"password": "short",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestTokenInvalidCredentials(t *testing.T) {
	_, ts := setupTestServer(t)
	signupAndLogin(t, ts, "alice")

	resp := postJSON(t, ts.URL+"/auth/v1/token?grant_type=password", "", map[string]string{
		"email":    "alice@example.com",
		"password": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()
}

func TestNotifyValidation(t *testing.T) {
	_, ts := setupTestServer(t)

	cases := []map[string]string{
		{"type": "like", "content": "hi"},                                        // missing receiver
		{"receiverId": "u1", "content": "hi"},                                    // missing type
		{"receiverId": "u1", "type": "like"},                                     // missing content
		{"receiverId": "u1", "type": "like", "content": "hi", "url": "not-a-url"}, // bad url
	}
	for _, body := range cases {
		resp := postJSON(t, ts.URL+"/realtime/v1/notify", "", body)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, fmt.Sprintf("body: %v", body))
		resp.Body.Close()
	}
}

func TestNotifyOffline(t *testing.T) {
	_, ts := setupTestServer(t)

	resp := postJSON(t, ts.URL+"/realtime/v1/notify", "", map[string]string{
		"receiverId": "nobody",
		"type":       "like",
		"content":    "hello",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body NotifyResponse
	decodeBody(t, resp, &body)
	assert.True(t, body.Success)
	assert.Contains(t, body.Message, "offline")
}

func TestNotifyDelivered(t *testing.T) {
	s, ts := setupTestServer(t)
	ws := dialWebSocket(t, s, ts, "u1")

	resp := postJSON(t, ts.URL+"/realtime/v1/notify", "", map[string]string{
		"receiverId": "u1",
		"type":       "like",
		"content":    "alice liked your post",
		"url":        "https://example.com/posts/42",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body NotifyResponse
	decodeBody(t, resp, &body)
	assert.True(t, body.Success)

	frame := readServerFrame(t, ws)
	assert.Equal(t, realtime.EventNotification, frame.Event)
	assert.Equal(t, "alice liked your post", frame.Payload["content"])
	assert.NotEmpty(t, frame.Payload["id"])
}

func TestRealtimeStatus(t *testing.T) {
	s, ts := setupTestServer(t)
	dialWebSocket(t, s, ts, "u1")

	resp := getJSON(t, ts.URL+"/realtime/v1/status", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var status RealtimeStatus
	decodeBody(t, resp, &status)
	assert.True(t, status.Initialized)
	assert.Equal(t, 1, status.Connections)
	assert.Equal(t, 1, status.Users)
}

func TestRealtimeStatusRecentLogs(t *testing.T) {
	// Quiet console, but the ring buffer captures every level
	cfg := log.DefaultConfig()
	cfg.Level = "error"
	cfg.BufferLines = 50
	require.NoError(t, log.Init(cfg))

	_, ts := setupTestServer(t)

	// Any request through the router produces a log line
	resp := getJSON(t, ts.URL+"/health", "")
	resp.Body.Close()

	resp = getJSON(t, ts.URL+"/realtime/v1/status?logs=10", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var status RealtimeStatus
	decodeBody(t, resp, &status)
	assert.NotEmpty(t, status.RecentLogs)

	// Lines are omitted unless asked for
	resp = getJSON(t, ts.URL+"/realtime/v1/status", "")
	var plain RealtimeStatus
	decodeBody(t, resp, &plain)
	assert.Empty(t, plain.RecentLogs)

	resp = getJSON(t, ts.URL+"/realtime/v1/status?logs=zero", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestAPIRequiresAuth(t *testing.T) {
	_, ts := setupTestServer(t)

	resp := getJSON(t, ts.URL+"/api/v1/notifications", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	resp = getJSON(t, ts.URL+"/api/v1/notifications", "garbage-token")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()
}

func TestNotificationFlow(t *testing.T) {
	s, ts := setupTestServer(t)
	_, aliceToken := signupAndLogin(t, ts, "alice")
	bobID, bobToken := signupAndLogin(t, ts, "bob")

	ws := dialWebSocket(t, s, ts, bobID)

	// Alice notifies Bob; the record is persisted and pushed live
	resp := postJSON(t, ts.URL+"/api/v1/notifications", aliceToken, map[string]string{
		"receiver_id": bobID,
		"type":        "follow",
		"content":     "alice started following you",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created CreateNotificationResponse
	decodeBody(t, resp, &created)
	assert.True(t, created.Delivered)
	require.NotNil(t, created.Notification)

	frame := readServerFrame(t, ws)
	assert.Equal(t, realtime.EventNotification, frame.Event)
	assert.Equal(t, created.Notification.ID, frame.Payload["id"])

	// Bob's list and unread count reflect the stored record
	resp = getJSON(t, ts.URL+"/api/v1/notifications", bobToken)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list struct {
		Notifications []struct {
			ID   string `json:"id"`
			Read bool   `json:"read"`
		} `json:"notifications"`
	}
	decodeBody(t, resp, &list)
	require.Len(t, list.Notifications, 1)
	assert.False(t, list.Notifications[0].Read)

	resp = getJSON(t, ts.URL+"/api/v1/notifications/unread_count", bobToken)
	var count struct {
		Count int `json:"count"`
	}
	decodeBody(t, resp, &count)
	assert.Equal(t, 1, count.Count)

	// Mark read
	resp = postJSON(t, ts.URL+"/api/v1/notifications/"+created.Notification.ID+"/read", bobToken, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = getJSON(t, ts.URL+"/api/v1/notifications/unread_count", bobToken)
	decodeBody(t, resp, &count)
	assert.Equal(t, 0, count.Count)

	// Alice cannot mark Bob's notification read
	resp = postJSON(t, ts.URL+"/api/v1/notifications/"+created.Notification.ID+"/read", aliceToken, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestMessageFlow(t *testing.T) {
	s, ts := setupTestServer(t)
	_, aliceToken := signupAndLogin(t, ts, "alice")
	bobID, bobToken := signupAndLogin(t, ts, "bob")

	ws := dialWebSocket(t, s, ts, bobID)

	resp := postJSON(t, ts.URL+"/api/v1/messages", aliceToken, map[string]string{
		"receiver_id": bobID,
		"content":     "hey bob",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created CreateMessageResponse
	decodeBody(t, resp, &created)
	assert.True(t, created.Delivered)

	frame := readServerFrame(t, ws)
	assert.Equal(t, realtime.EventMessage, frame.Event)
	assert.Equal(t, "hey bob", frame.Payload["content"])

	resp = getJSON(t, ts.URL+"/api/v1/messages/unread_count", bobToken)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var count struct {
		Count int `json:"count"`
	}
	decodeBody(t, resp, &count)
	assert.Equal(t, 1, count.Count)
}

func TestMessageValidation(t *testing.T) {
	_, ts := setupTestServer(t)
	_, token := signupAndLogin(t, ts, "alice")

	resp := postJSON(t, ts.URL+"/api/v1/messages", token, map[string]string{
		"content": "no receiver",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}
