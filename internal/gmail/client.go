package gmail

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/teemow/mailbuddy/internal/api"
	"github.com/teemow/mailbuddy/internal/google"
	"github.com/teemow/mailbuddy/internal/instrumentation"
	"github.com/teemow/mailbuddy/internal/logging"
)

// Operation names used for metrics and spans.
const (
	OpListMessages = "list_messages"
	OpGetMessage   = "get_message"
	OpSendEmail    = "send_email"
)

const (
	// DefaultMaxResults is the number of messages listed when no limit is given.
	DefaultMaxResults = 20

	// DefaultSubject and DefaultSender stand in for missing headers.
	DefaultSubject = "No Subject"
	DefaultSender  = "Unknown"

	// Gmail API has a max page size of 500; 100 keeps responses small.
	maxPageSize = 100

	// detailFetchLimit bounds concurrent messages.get calls per listing.
	detailFetchLimit = 8

	component = "gmail"
)

// ErrMissingToken is returned by NewClient without an access token.
var ErrMissingToken = errors.New("access token is required")

// Client wraps the Gmail Users service for a single access token.
type Client struct {
	svc     *gmail.UsersService
	logger  *slog.Logger
	metrics *instrumentation.Metrics
}

type clientOptions struct {
	endpoint string
	logger   *slog.Logger
	metrics  *instrumentation.Metrics
}

// Option configures a Client.
type Option func(*clientOptions)

// WithEndpoint overrides the Gmail API base URL.
func WithEndpoint(endpoint string) Option {
	return func(o *clientOptions) { o.endpoint = endpoint }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *clientOptions) { o.logger = l }
}

// WithMetrics records every Gmail call.
func WithMetrics(m *instrumentation.Metrics) Option {
	return func(o *clientOptions) { o.metrics = m }
}

// NewClient creates a Gmail client that authenticates with accessToken.
func NewClient(ctx context.Context, accessToken string, opts ...Option) (*Client, error) {
	if accessToken == "" {
		return nil, ErrMissingToken
	}

	o := clientOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	svcOpts := []option.ClientOption{option.WithHTTPClient(google.HTTPClient(ctx, accessToken))}
	if o.endpoint != "" {
		svcOpts = append(svcOpts, option.WithEndpoint(o.endpoint))
	}

	svc, err := gmail.NewService(ctx, svcOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gmail service: %w", err)
	}

	return &Client{
		svc:     svc.Users,
		logger:  logging.WithComponent(o.logger, component),
		metrics: o.metrics,
	}, nil
}

// ListMessages returns up to maxResults of the newest messages, newest first.
// Message details are fetched concurrently; the order of the listing is kept.
func (c *Client) ListMessages(ctx context.Context, maxResults int64) (msgs []api.Message, err error) {
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}

	ctx, span := instrumentation.StartClientSpan(ctx, component, OpListMessages,
		attribute.Int64("gmail.max_results", maxResults))
	defer span.End()
	start := time.Now()
	defer func() { c.record(ctx, span, OpListMessages, start, err) }()

	ids, err := c.listIDs(ctx, maxResults)
	if err != nil {
		return nil, err
	}

	msgs = make([]api.Message, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(detailFetchLimit)
	for i, id := range ids {
		g.Go(func() error {
			m, err := c.GetMessage(gctx, id)
			if err != nil {
				return err
			}
			msgs[i] = MessageFromGmail(m)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	c.logger.Debug("messages listed", "count", len(msgs), logging.Duration(time.Since(start)))
	return msgs, nil
}

// listIDs pages through users.messages.list until maxResults ids are collected.
func (c *Client) listIDs(ctx context.Context, maxResults int64) ([]string, error) {
	var ids []string
	pageToken := ""

	for {
		remaining := maxResults - int64(len(ids))
		if remaining <= 0 {
			break
		}
		pageSize := remaining
		if pageSize > maxPageSize {
			pageSize = maxPageSize
		}

		req := c.svc.Messages.List("me").MaxResults(pageSize).Context(ctx)
		if pageToken != "" {
			req = req.PageToken(pageToken)
		}

		res, err := req.Do()
		if err != nil {
			return nil, fmt.Errorf("failed to list messages: %w", err)
		}
		for _, m := range res.Messages {
			ids = append(ids, m.Id)
		}

		if res.NextPageToken == "" {
			break
		}
		pageToken = res.NextPageToken
	}

	if int64(len(ids)) > maxResults {
		ids = ids[:maxResults]
	}
	return ids, nil
}

// GetMessage retrieves a full Gmail message.
func (c *Client) GetMessage(ctx context.Context, messageID string) (msg *gmail.Message, err error) {
	ctx, span := instrumentation.StartClientSpan(ctx, component, OpGetMessage,
		attribute.String(instrumentation.SpanAttrMessageID, messageID))
	defer span.End()
	start := time.Now()
	defer func() { c.record(ctx, span, OpGetMessage, start, err) }()

	msg, err = c.svc.Messages.Get("me", messageID).Format("full").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to get message %s: %w", messageID, err)
	}
	return msg, nil
}

// MessageFromGmail converts a Gmail message to the API shape. The body is the
// snippet; full bodies are never sent to the classifier.
func MessageFromGmail(m *gmail.Message) api.Message {
	subject := HeaderValue(m, "Subject")
	if subject == "" {
		subject = DefaultSubject
	}
	sender := HeaderValue(m, "From")
	if sender == "" {
		sender = DefaultSender
	}
	snippet := html.UnescapeString(m.Snippet)

	return api.Message{
		ID:      m.Id,
		Subject: subject,
		Sender:  sender,
		Snippet: snippet,
		Body:    snippet,
	}
}

// SendEmail sends msg and returns the id of the sent message.
func (c *Client) SendEmail(ctx context.Context, msg *EmailMessage) (id string, err error) {
	raw, err := BuildRaw(msg)
	if err != nil {
		return "", err
	}

	ctx, span := instrumentation.StartClientSpan(ctx, component, OpSendEmail)
	defer span.End()
	start := time.Now()
	defer func() { c.record(ctx, span, OpSendEmail, start, err) }()

	sent, err := c.svc.Messages.Send("me", &gmail.Message{Raw: raw}).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to send email: %w", err)
	}

	c.logger.Info("email sent", logging.MessageID(sent.Id), logging.Domain(msg.To[0]))
	return sent.Id, nil
}

func (c *Client) record(ctx context.Context, span trace.Span, op string, start time.Time, err error) {
	status := instrumentation.StatusSuccess
	if err != nil {
		status = instrumentation.StatusError
		instrumentation.SetSpanError(span, err)
		c.logger.Warn("gmail call failed", logging.Operation(op), logging.Err(err))
	} else {
		instrumentation.SetSpanSuccess(span)
	}
	c.metrics.RecordGmailOperation(ctx, op, status, time.Since(start))
}
