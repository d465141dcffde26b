package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps the session in a local SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at path and runs migrations.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

func migrate(db *sql.DB) error {
	const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id             INTEGER PRIMARY KEY CHECK (id = 1),
	email          TEXT    NOT NULL DEFAULT '',
	name           TEXT    NOT NULL DEFAULT '',
	access_token   TEXT    NOT NULL,
	refresh_token  TEXT    NOT NULL DEFAULT '',
	expiry_unix_ms INTEGER NOT NULL,
	error          TEXT    NOT NULL DEFAULT '',
	updated_at     TEXT    NOT NULL
);
`
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	return nil
}

// Load returns the saved session.
func (s *SQLiteStore) Load(ctx context.Context) (Token, error) {
	var (
		tok      Token
		expiryMS int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT email, name, access_token, refresh_token, expiry_unix_ms, error
		FROM sessions WHERE id = 1
	`).Scan(&tok.Email, &tok.Name, &tok.AccessToken, &tok.RefreshToken, &expiryMS, &tok.Error)
	if errors.Is(err, sql.ErrNoRows) {
		return Token{}, ErrNotSignedIn
	}
	if err != nil {
		return Token{}, fmt.Errorf("load session: %w", err)
	}
	tok.Expiry = time.UnixMilli(expiryMS)
	return tok, nil
}

// Save upserts the session row.
func (s *SQLiteStore) Save(ctx context.Context, tok Token) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, email, name, access_token, refresh_token, expiry_unix_ms, error, updated_at)
		VALUES (1, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			email          = excluded.email,
			name           = excluded.name,
			access_token   = excluded.access_token,
			refresh_token  = excluded.refresh_token,
			expiry_unix_ms = excluded.expiry_unix_ms,
			error          = excluded.error,
			updated_at     = excluded.updated_at
	`, tok.Email, tok.Name, tok.AccessToken, tok.RefreshToken, tok.Expiry.UnixMilli(), tok.Error,
		time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Delete removes the session row.
func (s *SQLiteStore) Delete(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM sessions WHERE id = 1"); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
