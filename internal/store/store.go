// Package store persists the notification and message records that back the
// real-time event stream. Records are written here before dispatch so a user
// who is offline at emit time still sees them on the next pull.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/markb/ripple/internal/db"
)

// ErrNotFound is returned when a record does not exist or is not visible to
// the requesting user.
var ErrNotFound = errors.New("record not found")

// Notification is a persisted notification row.
type Notification struct {
	ID         string    `json:"id"`
	ReceiverID string    `json:"receiver_id"`
	SenderID   string    `json:"sender_id,omitempty"`
	Type       string    `json:"type"`
	Content    string    `json:"content"`
	URL        string    `json:"url,omitempty"`
	Read       bool      `json:"read"`
	CreatedAt  time.Time `json:"created_at"`
}

// Message is a persisted direct message row.
type Message struct {
	ID         string    `json:"id"`
	SenderID   string    `json:"sender_id"`
	ReceiverID string    `json:"receiver_id"`
	Content    string    `json:"content"`
	Read       bool      `json:"read"`
	CreatedAt  time.Time `json:"created_at"`
}

type Store struct {
	db *db.DB
}

func New(database *db.DB) *Store {
	return &Store{db: database}
}

// InsertNotification persists a notification, assigning an id and timestamp
// if they are not already set.
func (s *Store) InsertNotification(n *Notification) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.Exec(s.db.Rebind(`
		INSERT INTO notifications (id, receiver_id, sender_id, type, content, url, read, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`), n.ID, n.ReceiverID, nullable(n.SenderID), n.Type, n.Content, nullable(n.URL),
		boolToInt(n.Read), n.CreatedAt.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to insert notification: %w", err)
	}
	return nil
}

// ListNotifications returns the receiver's notifications, newest first.
func (s *Store) ListNotifications(receiverID string, limit int) ([]*Notification, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.Query(s.db.Rebind(`
		SELECT id, receiver_id, sender_id, type, content, url, read, created_at
		FROM notifications
		WHERE receiver_id = ?
		ORDER BY created_at DESC
		LIMIT ?
	`), receiverID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()

	var out []*Notification
	for rows.Next() {
		var n Notification
		var senderID, url sql.NullString
		var read int
		var createdAt string

		if err := rows.Scan(&n.ID, &n.ReceiverID, &senderID, &n.Type, &n.Content,
			&url, &read, &createdAt); err != nil {
			return nil, err
		}
		n.SenderID = senderID.String
		n.URL = url.String
		n.Read = read != 0
		n.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		out = append(out, &n)
	}
	return out, rows.Err()
}

// MarkNotificationRead marks one of the receiver's notifications as read.
// Returns ErrNotFound if the notification does not exist or belongs to
// someone else.
func (s *Store) MarkNotificationRead(id, receiverID string) error {
	res, err := s.db.Exec(s.db.Rebind(
		`UPDATE notifications SET read = 1 WHERE id = ? AND receiver_id = ?`,
	), id, receiverID)
	if err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// UnreadNotificationCount returns the receiver's unread notification count.
func (s *Store) UnreadNotificationCount(receiverID string) (int, error) {
	var count int
	err := s.db.QueryRow(s.db.Rebind(
		`SELECT COUNT(*) FROM notifications WHERE receiver_id = ? AND read = 0`,
	), receiverID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count notifications: %w", err)
	}
	return count, nil
}

// InsertMessage persists a direct message, assigning an id and timestamp if
// they are not already set.
func (s *Store) InsertMessage(m *Message) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.Exec(s.db.Rebind(`
		INSERT INTO messages (id, sender_id, receiver_id, content, read, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`), m.ID, m.SenderID, m.ReceiverID, m.Content, boolToInt(m.Read),
		m.CreatedAt.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}
	return nil
}

// UnreadMessageCount returns the receiver's unread message count.
func (s *Store) UnreadMessageCount(receiverID string) (int, error) {
	var count int
	err := s.db.QueryRow(s.db.Rebind(
		`SELECT COUNT(*) FROM messages WHERE receiver_id = ? AND read = 0`,
	), receiverID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count messages: %w", err)
	}
	return count, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
