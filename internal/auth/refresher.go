package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
)

// Refresher exchanges a refresh token for a new access token.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error)
}

// RefresherFunc adapts a function to the Refresher interface.
type RefresherFunc func(ctx context.Context, refreshToken string) (*oauth2.Token, error)

// Refresh calls f.
func (f RefresherFunc) Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	return f(ctx, refreshToken)
}

// OAuthRefresher refreshes tokens against the provider's token endpoint with
// the refresh_token grant.
type OAuthRefresher struct {
	config     *oauth2.Config
	httpClient *http.Client
}

// NewOAuthRefresher returns a refresher for config. A nil httpClient uses
// http.DefaultClient.
func NewOAuthRefresher(config *oauth2.Config, httpClient *http.Client) *OAuthRefresher {
	return &OAuthRefresher{config: config, httpClient: httpClient}
}

// Refresh performs the refresh_token grant.
func (r *OAuthRefresher) Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	if refreshToken == "" {
		return nil, errors.New("no refresh token available")
	}
	if r.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, r.httpClient)
	}

	// An already expired token forces the source to hit the token endpoint.
	tok, err := r.config.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		return nil, fmt.Errorf("failed to refresh token: %w", err)
	}
	return tok, nil
}
