// internal/server/realtime_handlers.go
package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/markb/ripple/internal/log"
	"github.com/markb/ripple/internal/realtime"
)

type NotifyResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// handleNotify is the dispatch endpoint. It validates the payload and asks
// the gateway to emit it; it never persists anything. 200 covers both
// delivered and offline, 400 is a validation failure, 503 means the gateway
// itself is unreachable.
func (s *Server) handleNotify(w http.ResponseWriter, r *http.Request) {
	var n realtime.Notification
	if err := json.NewDecoder(r.Body).Decode(&n); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}

	result, err := s.dispatcher.Dispatch(&n)
	switch {
	case errors.Is(err, realtime.ErrInvalidNotification):
		s.writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	case errors.Is(err, realtime.ErrGatewayUnavailable):
		s.writeError(w, http.StatusServiceUnavailable, "gateway_unavailable", "Realtime gateway is not available")
		return
	case err != nil:
		log.Error("notify dispatch failed", "error", err.Error())
		s.writeError(w, http.StatusInternalServerError, "server_error", "Dispatch failed")
		return
	}

	message := "Notification delivered"
	if result == realtime.ResultOffline {
		message = "User offline, no live connections"
	}
	s.writeJSON(w, http.StatusOK, NotifyResponse{Success: true, Message: message})
}

type RealtimeStatus struct {
	Initialized bool     `json:"initialized"`
	Connections int      `json:"connections"`
	Users       int      `json:"users"`
	RecentLogs  []string `json:"recent_logs,omitempty"`
}

// maxStatusLogLines caps the ?logs=N parameter.
const maxStatusLogLines = 100

func (s *Server) handleRealtimeStatus(w http.ResponseWriter, r *http.Request) {
	stats := s.realtimeService.Stats()
	status := RealtimeStatus{
		Initialized: true,
		Connections: stats.Connections,
		Users:       stats.Users,
	}

	if raw := r.URL.Query().Get("logs"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			s.writeError(w, http.StatusBadRequest, "invalid_request", "logs must be a positive integer")
			return
		}
		if n > maxStatusLogLines {
			n = maxStatusLogLines
		}
		status.RecentLogs = log.GetBufferedLogs(n)
	}

	s.writeJSON(w, http.StatusOK, status)
}
