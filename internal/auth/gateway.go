package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"

	"github.com/teemow/mailbuddy/internal/google"
	"github.com/teemow/mailbuddy/internal/instrumentation"
	"github.com/teemow/mailbuddy/internal/logging"
)

// Gateway signs users in against an OAuth provider and restores saved sessions.
type Gateway struct {
	config *oauth2.Config
	store  Store
	opts   options
	raw    []Option
}

// NewGateway returns a gateway for config persisting sessions in store.
func NewGateway(config *oauth2.Config, store Store, opts ...Option) *Gateway {
	return &Gateway{
		config: config,
		store:  store,
		opts:   newOptions(opts),
		raw:    opts,
	}
}

// WithRedirectURL returns a copy of g that uses redirectURL. The loopback
// sign-in flow only learns its redirect URL once it is listening.
func (g *Gateway) WithRedirectURL(redirectURL string) *Gateway {
	conf := *g.config
	conf.RedirectURL = redirectURL
	clone := *g
	clone.config = &conf
	return &clone
}

// AuthCodeURL returns the consent page URL. Offline access and forced
// consent are always requested so the exchange yields a refresh token.
func (g *Gateway) AuthCodeURL(state string) string {
	return g.config.AuthCodeURL(state, google.AuthCodeOptions()...)
}

// SignIn exchanges an authorization code, persists the resulting session and
// returns it.
func (g *Gateway) SignIn(ctx context.Context, code string) (*Session, error) {
	logger := logging.WithOperation(g.opts.logger, "auth.sign_in")

	if g.opts.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, g.opts.httpClient)
	}

	tok, err := g.config.Exchange(ctx, code)
	if err != nil {
		g.opts.metrics.RecordSignIn(ctx, instrumentation.OAuthResultFailure)
		logger.Warn("authorization code exchange failed", logging.Err(err))
		return nil, fmt.Errorf("failed to exchange authorization code: %w", err)
	}

	token := Token{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		Expiry:       expiryOf(tok, g.opts.now()),
	}
	token.Email, token.Name = identityFromIDToken(tok)

	if g.store != nil {
		if err := g.store.Save(ctx, token); err != nil {
			g.opts.metrics.RecordSignIn(ctx, instrumentation.OAuthResultFailure)
			return nil, fmt.Errorf("failed to save session: %w", err)
		}
	}

	g.opts.metrics.RecordSignIn(ctx, instrumentation.OAuthResultSuccess)
	logger.Info("signed in",
		logging.UserHash(token.Email),
		logging.Domain(token.Email),
		"has_refresh_token", token.RefreshToken != "")

	return g.session(token), nil
}

// Resume restores the saved session. It returns an error wrapping
// ErrNotSignedIn when there is none.
func (g *Gateway) Resume(ctx context.Context) (*Session, error) {
	if g.store == nil {
		return nil, ErrNotSignedIn
	}
	token, err := g.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	return g.session(token), nil
}

// SignOut deletes the saved session without loading it.
func (g *Gateway) SignOut(ctx context.Context) error {
	if g.store == nil {
		return nil
	}
	return g.store.Delete(ctx)
}

func (g *Gateway) session(token Token) *Session {
	return NewSession(token, NewOAuthRefresher(g.config, g.opts.httpClient), g.store, g.raw...)
}

// identityFromIDToken reads the e-mail and name claims from the ID token
// returned alongside the access token. The ID token arrives directly from
// the token endpoint over TLS, so its signature is not checked here; the
// values are only used for display and log correlation.
func identityFromIDToken(tok *oauth2.Token) (email, name string) {
	raw, ok := tok.Extra("id_token").(string)
	if !ok || raw == "" {
		return "", ""
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return "", ""
	}
	email, _ = claims["email"].(string)
	name, _ = claims["name"].(string)
	return email, name
}

// IsSignedOut reports whether err means the user has to sign in again.
func IsSignedOut(err error) bool {
	return errors.Is(err, ErrNotSignedIn) || errors.Is(err, ErrRefreshAccessToken)
}
