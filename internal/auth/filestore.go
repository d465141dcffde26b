package auth

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SessionMaxAge is how long a saved session stays valid without being
// rewritten. Every refresh rewrites it.
const SessionMaxAge = 30 * 24 * time.Hour

const sessionIssuer = "mailbuddy"

type sessionClaims struct {
	jwt.RegisteredClaims
	Name               string `json:"name,omitempty"`
	AccessToken        string `json:"accessToken"`
	AccessTokenExpires int64  `json:"accessTokenExpires"`
	RefreshToken       string `json:"refreshToken,omitempty"`
	Error              string `json:"error,omitempty"`
}

// FileStore keeps the session in a single file as an HS256-signed JWT. A
// file whose signature does not verify is treated as invalid.
type FileStore struct {
	path   string
	secret []byte
	now    func() time.Time
}

// NewFileStore returns a store writing to path, signing with secret.
func NewFileStore(path string, secret []byte) (*FileStore, error) {
	if path == "" {
		return nil, errors.New("session path must not be empty")
	}
	if len(secret) == 0 {
		return nil, errors.New("session secret must not be empty")
	}
	return &FileStore{path: path, secret: secret, now: time.Now}, nil
}

// Load reads and verifies the session file.
func (s *FileStore) Load(_ context.Context) (Token, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return Token{}, ErrNotSignedIn
	}
	if err != nil {
		return Token{}, fmt.Errorf("failed to read session: %w", err)
	}

	claims := &sessionClaims{}
	_, err = jwt.ParseWithClaims(strings.TrimSpace(string(data)), claims,
		func(*jwt.Token) (interface{}, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(sessionIssuer),
		jwt.WithTimeFunc(s.now),
	)
	if errors.Is(err, jwt.ErrTokenExpired) {
		return Token{}, fmt.Errorf("%w: session expired", ErrNotSignedIn)
	}
	if err != nil {
		return Token{}, fmt.Errorf("invalid session file: %w", err)
	}

	return Token{
		AccessToken:  claims.AccessToken,
		RefreshToken: claims.RefreshToken,
		Expiry:       time.UnixMilli(claims.AccessTokenExpires),
		Error:        claims.Error,
		Email:        claims.Subject,
		Name:         claims.Name,
	}, nil
}

// Save signs token and atomically replaces the session file.
func (s *FileStore) Save(_ context.Context, token Token) error {
	now := s.now()
	claims := sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    sessionIssuer,
			Subject:   token.Email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(SessionMaxAge)),
		},
		Name:               token.Name,
		AccessToken:        token.AccessToken,
		AccessTokenExpires: token.Expiry.UnixMilli(),
		RefreshToken:       token.RefreshToken,
		Error:              token.Error,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return fmt.Errorf("failed to sign session: %w", err)
	}
	if err := writeFileAtomic(s.path, []byte(signed)); err != nil {
		return fmt.Errorf("failed to write session: %w", err)
	}
	return nil
}

// Delete removes the session file.
func (s *FileStore) Delete(_ context.Context) error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove session: %w", err)
	}
	return nil
}

// Close is a no-op.
func (s *FileStore) Close() error { return nil }
