package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/teemow/mailbuddy/internal/api"
	"github.com/teemow/mailbuddy/internal/auth"
	"github.com/teemow/mailbuddy/internal/config"
	"github.com/teemow/mailbuddy/internal/dashboard"
	"github.com/teemow/mailbuddy/internal/google"
	"github.com/teemow/mailbuddy/internal/instrumentation"
)

// app holds the pieces shared by the client commands.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	metrics  *instrumentation.Metrics
	provider *instrumentation.Provider
	store    auth.Store
	gateway  *auth.Gateway
}

// newApp opens the session store and the OAuth gateway. Close releases them.
func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	if err := cfg.RequireGoogle(); err != nil {
		return nil, err
	}

	instrConfig := instrumentation.DefaultConfig()
	instrConfig.ServiceVersion = version
	provider, err := instrumentation.NewProvider(ctx, instrConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create instrumentation provider: %w", err)
	}

	store, err := auth.NewStore(cfg.Session)
	if err != nil {
		_ = provider.Shutdown(ctx)
		return nil, fmt.Errorf("failed to open session store: %w", err)
	}

	oauthConfig := google.OAuthConfig(cfg.Google.ClientID, cfg.Google.ClientSecret, cfg.Google.RedirectURL)
	gateway := auth.NewGateway(oauthConfig, store,
		auth.WithLogger(logger),
		auth.WithMetrics(provider.Metrics()),
	)

	return &app{
		cfg:      cfg,
		logger:   logger,
		metrics:  provider.Metrics(),
		provider: provider,
		store:    store,
		gateway:  gateway,
	}, nil
}

// controller resumes the saved session and builds a dashboard controller on it.
func (a *app) controller(ctx context.Context, opts ...dashboard.Option) (*dashboard.Controller, error) {
	session, err := a.gateway.Resume(ctx)
	if errors.Is(err, auth.ErrNotSignedIn) {
		return nil, fmt.Errorf("not signed in, run `mailbuddy login` first: %w", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to restore session: %w", err)
	}

	client := api.NewClient(a.cfg.APIURL, session,
		api.WithLogger(a.logger),
		api.WithMetrics(a.metrics),
	)

	opts = append([]dashboard.Option{
		dashboard.WithLogger(a.logger),
		dashboard.WithMetrics(a.metrics),
	}, opts...)
	return dashboard.New(client, session, a.cfg.Dashboard, opts...), nil
}

// Close releases the session store and flushes telemetry.
func (a *app) Close(ctx context.Context) error {
	return errors.Join(a.store.Close(), a.provider.Shutdown(ctx))
}
