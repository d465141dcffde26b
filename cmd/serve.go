package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/teemow/mailbuddy/internal/assistant"
	"github.com/teemow/mailbuddy/internal/backend"
	"github.com/teemow/mailbuddy/internal/config"
	"github.com/teemow/mailbuddy/internal/gmail"
	"github.com/teemow/mailbuddy/internal/instrumentation"
	"github.com/teemow/mailbuddy/internal/logging"
	"github.com/teemow/mailbuddy/internal/server"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the assistant backend",
		Long: `Start the REST backend the dashboard talks to.

Endpoints:
  GET  /emails          newest messages of the caller's Gmail account
  POST /classify        category, summary and fraud flag of a message
  POST /generate-reply  drafted reply text
  POST /send-reply      send a reply through Gmail

Callers authenticate with their Google access token in the "token" header.
Prometheus metrics are served on a dedicated port.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg)
		},
	}

	flags := cmd.Flags()
	flags.String("addr", ":8000", "API server address. Can also use MAILBUDDY_SERVER_ADDR env var.")
	flags.String("metrics-addr", server.DefaultMetricsAddr, "Metrics server address. Can also use MAILBUDDY_SERVER_METRICS_ADDR env var.")
	flags.Bool("metrics-enabled", true, "Enable the metrics server on a dedicated port. Can also use MAILBUDDY_SERVER_METRICS_ENABLED env var.")
	flags.Int64("max-results", gmail.DefaultMaxResults, "Default number of messages returned by GET /emails")
	_ = v.BindPFlag("server.addr", flags.Lookup("addr"))
	_ = v.BindPFlag("server.metrics_addr", flags.Lookup("metrics-addr"))
	_ = v.BindPFlag("server.metrics_enabled", flags.Lookup("metrics-enabled"))
	_ = v.BindPFlag("server.max_results", flags.Lookup("max-results"))

	return cmd
}

func runServe(ctx context.Context, cfg *config.Config) error {
	// Setup graceful shutdown
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger := logging.New(os.Stderr, cfg.Debug)

	// Initialize instrumentation provider
	instrConfig := instrumentation.DefaultConfig()
	instrConfig.ServiceVersion = version

	provider, err := instrumentation.NewProvider(ctx, instrConfig)
	if err != nil {
		return fmt.Errorf("failed to create instrumentation provider: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), server.DefaultShutdownTimeout)
		defer cancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			logger.Warn("instrumentation shutdown failed", logging.Err(err))
		}
	}()

	var metricsServer *server.MetricsServer
	if cfg.Server.MetricsEnabled && provider.Enabled() && provider.PrometheusHandler() != nil {
		metricsServer, err = server.NewMetricsServer(server.MetricsServerConfig{
			Addr:                    cfg.Server.MetricsAddr,
			InstrumentationProvider: provider,
			Logger:                  logger,
		})
		if err != nil {
			return fmt.Errorf("failed to create metrics server: %w", err)
		}
	}

	classifier, replier, err := newAssistant(ctx, cfg.Assistant, logger)
	if err != nil {
		return err
	}

	metrics := provider.Metrics()
	health := server.NewHealthChecker()
	handler, err := backend.New(backend.Config{
		Mailboxes:  backend.GmailMailboxes(gmail.WithLogger(logger), gmail.WithMetrics(metrics)),
		Classifier: classifier,
		Replier:    replier,
		Health:     health,
		Logger:     logger,
		Metrics:    metrics,
		MaxResults: cfg.Server.MaxResults,
	})
	if err != nil {
		return fmt.Errorf("failed to create backend: %w", err)
	}
	servers := []runnable{server.NewHTTPServer(cfg.Server.Addr, handler, health, logger)}
	if metricsServer != nil {
		servers = append(servers, metricsServer)
	}
	return serveUntilDone(ctx, logger, servers...)
}

// newAssistant prompts Gemini when an API key is configured and falls back to
// the offline keyword classifier and template replier otherwise.
func newAssistant(ctx context.Context, cfg config.AssistantConfig, logger *slog.Logger) (assistant.Classifier, assistant.Replier, error) {
	if cfg.APIKey == "" {
		logger.Info("no assistant API key configured, using keyword classifier")
		return assistant.NewKeywordClassifier(), assistant.NewTemplateReplier(), nil
	}

	gen, err := assistant.NewGeminiGenerator(ctx, assistant.GeminiConfig{
		APIKey: cfg.APIKey,
		Model:  cfg.Model,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create assistant model: %w", err)
	}
	logger.Info("using model-backed assistant", "model", cfg.Model)

	opts := []assistant.ModelOption{
		assistant.WithRetries(cfg.MaxRetries, cfg.RetryDelay),
		assistant.WithLogger(logger),
	}
	return assistant.NewModelClassifier(gen, opts...), assistant.NewModelReplier(gen, opts...), nil
}

type runnable interface {
	Start() error
	Shutdown(ctx context.Context) error
}

// serveUntilDone runs every server until ctx is cancelled or one of them
// fails, then shuts all of them down.
func serveUntilDone(ctx context.Context, logger *slog.Logger, servers ...runnable) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, srv := range servers {
		g.Go(srv.Start)
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutdown signal received, stopping servers")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), server.DefaultShutdownTimeout)
		defer cancel()
		for _, srv := range servers {
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Warn("server shutdown failed", logging.Err(err))
			}
		}
		return nil
	})

	return g.Wait()
}
