// internal/server/app_handlers.go
package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/markb/ripple/internal/log"
	"github.com/markb/ripple/internal/realtime"
	"github.com/markb/ripple/internal/store"
)

type CreateNotificationRequest struct {
	ReceiverID string `json:"receiver_id"`
	Type       string `json:"type"`
	Content    string `json:"content"`
	URL        string `json:"url,omitempty"`
}

type CreateNotificationResponse struct {
	Notification *store.Notification `json:"notification"`
	Delivered    bool                `json:"delivered"`
}

// handleCreateNotification persists the notification, then dispatches it to
// the receiver's live connections. The durable write comes first so an
// offline receiver still sees it on their next pull; a dispatch failure
// after that point degrades latency, not correctness.
func (s *Server) handleCreateNotification(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r)

	var req CreateNotificationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}

	n := &realtime.Notification{
		ReceiverID: req.ReceiverID,
		Type:       req.Type,
		Content:    req.Content,
		URL:        req.URL,
	}
	if err := n.Validate(); err != nil {
		s.writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	record := &store.Notification{
		ReceiverID: req.ReceiverID,
		SenderID:   user.ID,
		Type:       req.Type,
		Content:    req.Content,
		URL:        req.URL,
	}
	if err := s.store.InsertNotification(record); err != nil {
		log.Error("failed to persist notification", "error", err.Error())
		s.writeError(w, http.StatusInternalServerError, "server_error", "Failed to store notification")
		return
	}

	// Dispatch carries the persisted record's id and timestamp
	n.ID = record.ID
	n.CreatedAt = record.CreatedAt
	result, err := s.dispatcher.Dispatch(n)
	if err != nil && !errors.Is(err, realtime.ErrGatewayUnavailable) {
		log.Warn("notification dispatch failed", "id", record.ID, "error", err.Error())
	}

	s.writeJSON(w, http.StatusCreated, CreateNotificationResponse{
		Notification: record,
		Delivered:    result == realtime.ResultDelivered,
	})
}

func (s *Server) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r)

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			s.writeError(w, http.StatusBadRequest, "invalid_request", "limit must be a positive integer")
			return
		}
		limit = n
	}

	notifications, err := s.store.ListNotifications(user.ID, limit)
	if err != nil {
		log.Error("failed to list notifications", "error", err.Error())
		s.writeError(w, http.StatusInternalServerError, "server_error", "Failed to list notifications")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{"notifications": notifications})
}

func (s *Server) handleMarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r)
	id := chi.URLParam(r, "id")

	if err := s.store.MarkNotificationRead(id, user.ID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "not_found", "Notification not found")
			return
		}
		log.Error("failed to mark notification read", "id", id, "error", err.Error())
		s.writeError(w, http.StatusInternalServerError, "server_error", "Failed to update notification")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleUnreadNotificationCount(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r)

	count, err := s.store.UnreadNotificationCount(user.ID)
	if err != nil {
		log.Error("failed to count notifications", "error", err.Error())
		s.writeError(w, http.StatusInternalServerError, "server_error", "Failed to count notifications")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]int{"count": count})
}

type CreateMessageRequest struct {
	ReceiverID string `json:"receiver_id"`
	Content    string `json:"content"`
}

type CreateMessageResponse struct {
	Message   *store.Message `json:"message"`
	Delivered bool           `json:"delivered"`
}

func (s *Server) handleCreateMessage(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r)

	var req CreateMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}
	if req.ReceiverID == "" || req.Content == "" {
		s.writeError(w, http.StatusBadRequest, "validation_failed", "receiver_id and content are required")
		return
	}

	record := &store.Message{
		SenderID:   user.ID,
		ReceiverID: req.ReceiverID,
		Content:    req.Content,
	}
	if err := s.store.InsertMessage(record); err != nil {
		log.Error("failed to persist message", "error", err.Error())
		s.writeError(w, http.StatusInternalServerError, "server_error", "Failed to store message")
		return
	}

	delivered := s.realtimeService.Gateway().EmitToUser(record.ReceiverID, realtime.EventMessage, map[string]any{
		"id":        record.ID,
		"senderId":  record.SenderID,
		"content":   record.Content,
		"createdAt": record.CreatedAt.Format(time.RFC3339),
	})

	s.writeJSON(w, http.StatusCreated, CreateMessageResponse{
		Message:   record,
		Delivered: delivered,
	})
}

func (s *Server) handleUnreadMessageCount(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r)

	count, err := s.store.UnreadMessageCount(user.ID)
	if err != nil {
		log.Error("failed to count messages", "error", err.Error())
		s.writeError(w, http.StatusInternalServerError, "server_error", "Failed to count messages")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]int{"count": count})
}
