package auth

import (
	"errors"
	"time"
)

// RefreshAccessTokenError is the value of Token.Error after a failed refresh.
const RefreshAccessTokenError = "RefreshAccessTokenError"

var (
	// ErrNotSignedIn is returned when no session exists.
	ErrNotSignedIn = errors.New("not signed in")

	// ErrRefreshAccessToken is returned by Session.AccessToken once the
	// session has been flagged with RefreshAccessTokenError.
	ErrRefreshAccessToken = errors.New("access token refresh failed")
)

// Token is the persisted session state.
type Token struct {
	AccessToken  string
	RefreshToken string
	// Expiry is the absolute expiry of AccessToken.
	Expiry time.Time
	// Error is empty or RefreshAccessTokenError.
	Error string

	Email string
	Name  string
}

// Expired reports whether the access token must be refreshed at now.
func (t Token) Expired(now time.Time) bool {
	return !now.Before(t.Expiry)
}

// Failed reports whether a refresh has failed for this session.
func (t Token) Failed() bool {
	return t.Error == RefreshAccessTokenError
}
