package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/teemow/mailbuddy/internal/instrumentation"
	"github.com/teemow/mailbuddy/internal/logging"
)

// Operation names used for spans, metrics and logs.
const (
	OpListMessages  = "list_messages"
	OpClassify      = "classify"
	OpGenerateReply = "generate_reply"
	OpSendReply     = "send_reply"
)

// Header names.
const (
	HeaderToken     = "token"
	HeaderRequestID = "X-Request-ID"
)

const maxErrorBody = 64 << 10

// TokenSource supplies the access token attached to each request.
type TokenSource interface {
	AccessToken(ctx context.Context) (string, error)
}

// APIError is a non-2xx response from the backend.
type APIError struct {
	Operation  string
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s: backend returned %d", e.Operation, e.StatusCode)
	}
	return fmt.Sprintf("%s: backend returned %d: %s", e.Operation, e.StatusCode, e.Detail)
}

// Client calls the assistant backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenSource
	logger     *slog.Logger
	metrics    *instrumentation.Metrics
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.httpClient = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(cl *Client) { cl.logger = l }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m *instrumentation.Metrics) Option {
	return func(cl *Client) { cl.metrics = m }
}

// NewClient returns a client for the backend at baseURL. tokens may be nil,
// in which case requests are sent without credentials.
func NewClient(baseURL string, tokens TokenSource, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		tokens:     tokens,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ListMessages fetches the current inbox page.
func (c *Client) ListMessages(ctx context.Context) ([]Message, error) {
	var msgs []Message
	if err := c.do(ctx, OpListMessages, http.MethodGet, "/emails", nil, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

// Classify asks the backend to categorize and summarize one message.
func (c *Client) Classify(ctx context.Context, req ClassifyRequest) (*Classification, error) {
	var out Classification
	if err := c.do(ctx, OpClassify, http.MethodPost, "/classify", req, &out,
		attribute.String(instrumentation.SpanAttrMessageID, req.MessageID)); err != nil {
		return nil, err
	}
	return &out, nil
}

// GenerateReply asks the backend to draft a reply and returns its text.
func (c *Client) GenerateReply(ctx context.Context, req ReplyRequest) (string, error) {
	var out ReplyResponse
	if err := c.do(ctx, OpGenerateReply, http.MethodPost, "/generate-reply", req, &out); err != nil {
		return "", err
	}
	return out.Reply, nil
}

// SendReply asks the backend to send a reply from the user's mailbox.
func (c *Client) SendReply(ctx context.Context, req ReplyRequest) (*SendResult, error) {
	var out SendResult
	if err := c.do(ctx, OpSendReply, http.MethodPost, "/send-reply", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, op, method, path string, in, out interface{}, attrs ...attribute.KeyValue) (err error) {
	start := time.Now()
	ctx, span := instrumentation.StartClientSpan(ctx, "api", op, attrs...)
	defer func() {
		status := instrumentation.StatusSuccess
		if err != nil {
			status = instrumentation.StatusError
			instrumentation.SetSpanError(span, err)
		} else {
			instrumentation.SetSpanSuccess(span)
		}
		span.End()
		c.metrics.RecordAPIRequest(ctx, op, status, time.Since(start))
	}()

	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: failed to encode request: %w", op, err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("%s: failed to build request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	requestID := uuid.NewString()
	req.Header.Set(HeaderRequestID, requestID)

	if c.tokens != nil {
		token, err := c.tokens.AccessToken(ctx)
		if err != nil {
			return err
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
			req.Header.Set(HeaderToken, token)
		}
	}

	logger := c.logger.With(logging.Operation("api."+op), "request_id", requestID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		logger.Debug("request failed", logging.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	logger.Debug("request completed", logging.Status(resp.Status), logging.Duration(time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newAPIError(op, resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: failed to decode response: %w", op, err)
	}
	return nil
}

func newAPIError(op string, resp *http.Response) *APIError {
	apiErr := &APIError{Operation: op, StatusCode: resp.StatusCode}

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var body struct {
		Detail json.RawMessage `json:"detail"`
	}
	if json.Unmarshal(raw, &body) == nil && len(body.Detail) > 0 {
		var s string
		if json.Unmarshal(body.Detail, &s) == nil {
			apiErr.Detail = s
		} else {
			apiErr.Detail = string(body.Detail)
		}
		return apiErr
	}
	apiErr.Detail = strings.TrimSpace(string(raw))
	return apiErr
}

// IsStatus reports whether err is an APIError with the given status code.
func IsStatus(err error, code int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == code
}
