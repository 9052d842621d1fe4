// internal/auth/user.go
package auth

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/markb/ripple/internal/db"
	"golang.org/x/crypto/bcrypt"
)

type User struct {
	ID                string     `json:"id"`
	Username          string     `json:"username"`
	Email             string     `json:"email"`
	EncryptedPassword string     `json:"-"`
	AvatarURL         string     `json:"avatar_url,omitempty"`
	LastSignInAt      *time.Time `json:"last_sign_in_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

type Service struct {
	db        *db.DB
	jwtSecret string
}

func NewService(database *db.DB, jwtSecret string) *Service {
	return &Service{db: database, jwtSecret: jwtSecret}
}

func (s *Service) CreateUser(username, email, password string) (*User, error) {
	username = strings.TrimSpace(username)
	email = strings.ToLower(strings.TrimSpace(email))
	if username == "" || email == "" {
		return nil, fmt.Errorf("username and email are required")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	id := uuid.NewString()
	now := time.Now().UTC().Format(time.RFC3339)

	_, err = s.db.Exec(s.db.Rebind(`
		INSERT INTO users (id, username, email, encrypted_password, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`), id, username, email, string(hash), now, now)

	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") ||
			strings.Contains(err.Error(), "duplicate key") {
			return nil, fmt.Errorf("user %s already exists", username)
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return s.GetUserByID(id)
}

func (s *Service) GetUserByID(id string) (*User, error) {
	return s.getUser("id", id)
}

func (s *Service) GetUserByEmail(email string) (*User, error) {
	return s.getUser("email", strings.ToLower(strings.TrimSpace(email)))
}

func (s *Service) GetUserByUsername(username string) (*User, error) {
	return s.getUser("username", strings.TrimSpace(username))
}

func (s *Service) getUser(column, value string) (*User, error) {
	var user User
	var avatarURL, lastSignInAt sql.NullString
	var createdAt, updatedAt string

	err := s.db.QueryRow(s.db.Rebind(fmt.Sprintf(`
		SELECT id, username, email, encrypted_password, avatar_url, last_sign_in_at,
		       created_at, updated_at
		FROM users WHERE %s = ?
	`, column)), value).Scan(&user.ID, &user.Username, &user.Email, &user.EncryptedPassword,
		&avatarURL, &lastSignInAt, &createdAt, &updatedAt)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("user not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	user.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	user.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	if avatarURL.Valid {
		user.AvatarURL = avatarURL.String
	}
	if lastSignInAt.Valid {
		t, _ := time.Parse(time.RFC3339, lastSignInAt.String)
		user.LastSignInAt = &t
	}

	return &user, nil
}

// ListUsers returns all users ordered by creation time.
func (s *Service) ListUsers() ([]*User, error) {
	rows, err := s.db.Query(`SELECT id FROM users ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*User
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		user, err := s.GetUserByID(id)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

func (s *Service) ValidatePassword(user *User, password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(user.EncryptedPassword), []byte(password))
	return err == nil
}

// RecordSignIn updates the user's last_sign_in_at timestamp.
func (s *Service) RecordSignIn(userID string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.Exec(s.db.Rebind(
		`UPDATE users SET last_sign_in_at = ?, updated_at = ? WHERE id = ?`,
	), now, now, userID)
	if err != nil {
		return fmt.Errorf("failed to record sign in: %w", err)
	}
	return nil
}
