package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/teemow/mailbuddy/internal/config"
)

// Store persists a single session between runs.
type Store interface {
	// Load returns the saved token, or an error wrapping ErrNotSignedIn when
	// there is none.
	Load(ctx context.Context) (Token, error)
	Save(ctx context.Context, token Token) error
	// Delete removes the saved token. Deleting a missing session is not an error.
	Delete(ctx context.Context) error
	Close() error
}

// NewStore opens the store selected by cfg.
func NewStore(cfg config.SessionConfig) (Store, error) {
	switch cfg.Store {
	case config.StoreSQLite:
		return NewSQLiteStore(cfg.Path)
	case config.StoreFile, "":
		secret := []byte(cfg.Secret)
		if len(secret) == 0 {
			var err error
			secret, err = LoadOrCreateSecret(cfg.Path + ".key")
			if err != nil {
				return nil, err
			}
		}
		return NewFileStore(cfg.Path, secret)
	default:
		return nil, fmt.Errorf("unknown session store %q", cfg.Store)
	}
}

// LoadOrCreateSecret reads the hex-encoded signing key at path, generating and
// saving a random 32-byte key when the file does not exist.
func LoadOrCreateSecret(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		secret, err := hex.DecodeString(strings.TrimSpace(string(data)))
		if err != nil {
			return nil, fmt.Errorf("invalid session key file %s: %w", path, err)
		}
		return secret, nil
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read session key: %w", err)
	}

	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("failed to generate session key: %w", err)
	}
	if err := writeFileAtomic(path, []byte(hex.EncodeToString(secret))); err != nil {
		return nil, fmt.Errorf("failed to save session key: %w", err)
	}
	return secret, nil
}

func writeFileAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
