package auth

import (
	"context"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/teemow/mailbuddy/internal/instrumentation"
	"github.com/teemow/mailbuddy/internal/logging"
)

// Session owns the signed-in user's token. It is safe for concurrent use;
// concurrent callers observing an expired token share a single refresh.
type Session struct {
	mu        sync.Mutex
	token     Token
	signedOut bool

	store     Store
	refresher Refresher
	opts      options
}

// NewSession returns a session for token. store may be nil, in which case
// refreshed tokens are kept in memory only.
func NewSession(token Token, refresher Refresher, store Store, opts ...Option) *Session {
	o := newOptions(opts)
	if o.refresher != nil {
		refresher = o.refresher
	}
	return &Session{
		token:     token,
		store:     store,
		refresher: refresher,
		opts:      o,
	}
}

// Token returns the current token, refreshing it first when it has expired.
//
// A token that has not expired is returned unchanged without contacting the
// provider. A refresh failure is not returned as an error: the returned token
// carries Error == RefreshAccessTokenError and the session stays flagged.
func (s *Session) Token(ctx context.Context) Token {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.signedOut || s.token.Failed() {
		return s.token
	}
	now := s.opts.now()
	if !s.token.Expired(now) {
		return s.token
	}

	logger := logging.WithOperation(s.opts.logger, "auth.refresh")

	refreshed, err := s.refresher.Refresh(ctx, s.token.RefreshToken)
	if err != nil {
		logger.Warn("access token refresh failed", logging.UserHash(s.token.Email), logging.Err(err))
		s.opts.metrics.RecordTokenRefresh(ctx, instrumentation.OAuthResultFailure)
		s.token.Error = RefreshAccessTokenError
		s.persist(ctx)
		return s.token
	}

	s.token.AccessToken = refreshed.AccessToken
	s.token.Expiry = expiryOf(refreshed, now)
	if refreshed.RefreshToken != "" {
		s.token.RefreshToken = refreshed.RefreshToken
	}
	s.token.Error = ""

	logger.Debug("access token refreshed",
		logging.UserHash(s.token.Email),
		"access_token", logging.SanitizeToken(s.token.AccessToken),
		"expires_in", s.token.Expiry.Sub(now).Round(time.Second))
	s.opts.metrics.RecordTokenRefresh(ctx, instrumentation.OAuthResultSuccess)
	s.persist(ctx)
	return s.token
}

// AccessToken returns a usable access token. It returns ErrNotSignedIn after
// SignOut and ErrRefreshAccessToken once a refresh has failed.
func (s *Session) AccessToken(ctx context.Context) (string, error) {
	tok := s.Token(ctx)

	s.mu.Lock()
	signedOut := s.signedOut
	s.mu.Unlock()

	switch {
	case signedOut:
		return "", ErrNotSignedIn
	case tok.Failed():
		return "", ErrRefreshAccessToken
	}
	return tok.AccessToken, nil
}

// SignOut discards the session locally and in the store.
func (s *Session) SignOut(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := s.token.Email
	s.token = Token{}
	s.signedOut = true

	if s.store == nil {
		return nil
	}
	if err := s.store.Delete(ctx); err != nil {
		return err
	}
	s.opts.logger.Info("signed out", logging.UserHash(email))
	return nil
}

// persist saves the token; failures are logged since the in-memory token is
// still usable for this run. Callers hold s.mu.
func (s *Session) persist(ctx context.Context) {
	if s.store == nil {
		return
	}
	if err := s.store.Save(ctx, s.token); err != nil {
		s.opts.logger.Warn("failed to persist session", logging.Err(err))
	}
}

// expiryOf returns the absolute expiry of tok, computing it from expires_in
// when the library did not.
func expiryOf(tok *oauth2.Token, now time.Time) time.Time {
	if !tok.Expiry.IsZero() {
		return tok.Expiry
	}
	if tok.ExpiresIn > 0 {
		return now.Add(time.Duration(tok.ExpiresIn) * time.Second)
	}
	// No expiry information: treat the token as valid for the default
	// Google lifetime rather than refreshing on every call.
	return now.Add(time.Hour)
}
