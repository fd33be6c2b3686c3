// Package database backs the auth gate's "store" mode with a SQLite
// credential table. The broadcast core itself persists nothing; the only
// durable state in the whole system is who may act as a teacher.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

var ErrTeacherNotFound = errors.New("teacher not found")

const schema = `
CREATE TABLE IF NOT EXISTS teachers (
	name          TEXT PRIMARY KEY,
	password_hash TEXT NOT NULL,
	created_at    TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);`

// CredentialStore holds per-teacher bcrypt password hashes.
type CredentialStore struct {
	db *sql.DB
}

// Open opens (creating if necessary) the credential database at path.
func Open(path string) (*CredentialStore, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open credential database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create credential schema: %w", err)
	}

	return &CredentialStore{db: db}, nil
}

// PasswordHash returns the stored bcrypt hash for a teacher name.
func (s *CredentialStore) PasswordHash(ctx context.Context, name string) (string, error) {
	var hash string
	err := s.db.QueryRowContext(ctx,
		`SELECT password_hash FROM teachers WHERE name = ?`, name).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrTeacherNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to look up teacher %s: %w", name, err)
	}
	return hash, nil
}

// UpsertTeacher stores or replaces a teacher's password hash. Used by
// deployment tooling to seed credentials; the server only reads.
func (s *CredentialStore) UpsertTeacher(ctx context.Context, name, passwordHash string) error {
	if name == "" || passwordHash == "" {
		return fmt.Errorf("teacher name and password hash are required")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO teachers (name, password_hash) VALUES (?, ?)
		ON CONFLICT(name) DO UPDATE SET password_hash = excluded.password_hash`,
		name, passwordHash)
	if err != nil {
		return fmt.Errorf("failed to upsert teacher %s: %w", name, err)
	}
	return nil
}

// DeleteTeacher removes a teacher's credential. Removing an unknown name
// is a no-op.
func (s *CredentialStore) DeleteTeacher(ctx context.Context, name string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM teachers WHERE name = ?`, name); err != nil {
		return fmt.Errorf("failed to delete teacher %s: %w", name, err)
	}
	return nil
}

// Close closes the underlying database.
func (s *CredentialStore) Close() error {
	return s.db.Close()
}
