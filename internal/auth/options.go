package auth

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/teemow/mailbuddy/internal/instrumentation"
)

type options struct {
	httpClient *http.Client
	refresher  Refresher
	logger     *slog.Logger
	metrics    *instrumentation.Metrics
	now        func() time.Time
}

// Option configures a Gateway or Session.
type Option func(*options)

// WithHTTPClient sets the client used for token endpoint calls.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// WithRefresher replaces the OAuth refresher.
func WithRefresher(r Refresher) Option {
	return func(o *options) { o.refresher = r }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m *instrumentation.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func newOptions(opts []Option) options {
	o := options{
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
