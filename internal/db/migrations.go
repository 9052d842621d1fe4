// internal/db/migrations.go
package db

import "fmt"

// Timestamps and ids are populated by application code so the same schema
// works on both SQLite and Postgres.
const authSchema = `
CREATE TABLE IF NOT EXISTS users (
    id                  TEXT PRIMARY KEY,
    username            TEXT UNIQUE NOT NULL,
    email               TEXT UNIQUE NOT NULL,
    encrypted_password  TEXT NOT NULL,
    avatar_url          TEXT,
    last_sign_in_at     TEXT,
    created_at          TEXT NOT NULL,
    updated_at          TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_users_email ON users(email);
CREATE INDEX IF NOT EXISTS idx_users_username ON users(username);
`

const notificationSchema = `
CREATE TABLE IF NOT EXISTS notifications (
    id           TEXT PRIMARY KEY,
    receiver_id  TEXT NOT NULL,
    sender_id    TEXT,
    type         TEXT NOT NULL,
    content      TEXT NOT NULL,
    url          TEXT,
    read         INTEGER NOT NULL DEFAULT 0,
    created_at   TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_notifications_receiver ON notifications(receiver_id, read);
CREATE INDEX IF NOT EXISTS idx_notifications_created ON notifications(created_at);
`

const messageSchema = `
CREATE TABLE IF NOT EXISTS messages (
    id           TEXT PRIMARY KEY,
    sender_id    TEXT NOT NULL,
    receiver_id  TEXT NOT NULL,
    content      TEXT NOT NULL,
    read         INTEGER NOT NULL DEFAULT 0,
    created_at   TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_messages_receiver ON messages(receiver_id, read);
CREATE INDEX IF NOT EXISTS idx_messages_pair ON messages(sender_id, receiver_id);
`

// RunMigrations creates all application tables if they do not exist.
func (d *DB) RunMigrations() error {
	schemas := []struct {
		name string
		sql  string
	}{
		{"auth", authSchema},
		{"notifications", notificationSchema},
		{"messages", messageSchema},
	}

	for _, s := range schemas {
		if _, err := d.Exec(s.sql); err != nil {
			return fmt.Errorf("failed to apply %s schema: %w", s.name, err)
		}
	}
	return nil
}
