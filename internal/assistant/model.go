package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/teemow/mailbuddy/internal/api"
	"github.com/teemow/mailbuddy/internal/logging"
)

// Fallback texts used when the model cannot produce a usable answer.
const (
	RetriesExhaustedSummary = "Could not generate summary after retries."
	ReplyUnavailable        = "Could not generate reply."
)

const (
	defaultMaxRetries = 5
	defaultRetryDelay = 5 * time.Second
)

// ModelOption configures a ModelClassifier or ModelReplier.
type ModelOption func(*modelOptions)

type modelOptions struct {
	maxRetries int
	retryDelay time.Duration
	logger     *slog.Logger
}

// WithRetries sets how many times a generation is attempted and the delay
// before the first retry. The delay doubles with every further attempt.
func WithRetries(attempts int, delay time.Duration) ModelOption {
	return func(o *modelOptions) {
		if attempts > 0 {
			o.maxRetries = attempts
		}
		if delay >= 0 {
			o.retryDelay = delay
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) ModelOption {
	return func(o *modelOptions) { o.logger = l }
}

func newModelOptions(opts []ModelOption) modelOptions {
	o := modelOptions{
		maxRetries: defaultMaxRetries,
		retryDelay: defaultRetryDelay,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// ModelClassifier classifies messages with a language model.
type ModelClassifier struct {
	gen  Generator
	opts modelOptions
}

// NewModelClassifier returns a classifier prompting gen.
func NewModelClassifier(gen Generator, opts ...ModelOption) *ModelClassifier {
	return &ModelClassifier{gen: gen, opts: newModelOptions(opts)}
}

// Classify implements Classifier. Generation failures are retried with
// exponential backoff; once the attempts are used up, or when the answer
// holds no readable JSON object, an Uncategorized result is returned instead
// of an error. Only cancellation of ctx is reported as an error.
func (m *ModelClassifier) Classify(ctx context.Context, req api.ClassifyRequest) (api.Classification, error) {
	logger := logging.WithOperation(m.opts.logger, "assistant.classify").With(logging.MessageID(req.MessageID))
	prompt := classifyPrompt(req.Subject, truncate(req.Body, MaxInputLength))

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = m.opts.retryDelay
	b.Multiplier = 2
	b.RandomizationFactor = 0.1
	b.MaxInterval = m.opts.retryDelay << m.opts.maxRetries

	text, err := backoff.Retry(ctx, func() (string, error) {
		return m.gen.Generate(ctx, prompt)
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(m.opts.maxRetries)),
		backoff.WithNotify(func(err error, next time.Duration) {
			logger.Warn("classification attempt failed", logging.Err(err), "retry_in", next.Round(time.Millisecond))
		}),
	)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return api.Classification{}, ctxErr
		}
		logger.Error("classification failed after retries", logging.Err(err), "attempts", m.opts.maxRetries)
		return api.Classification{Category: api.CategoryUncategorized, Summary: RetriesExhaustedSummary}, nil
	}

	return parseClassification(text), nil
}

// parseClassification reads the outermost JSON object of text. Answers
// without one, or with one that does not decode, keep the beginning of the
// text as summary.
func parseClassification(text string) api.Classification {
	fallback := api.Classification{
		Category: api.CategoryUncategorized,
		Summary:  truncate(text, MaxSummaryLength),
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return fallback
	}

	var res api.Classification
	if err := json.Unmarshal([]byte(text[start:end+1]), &res); err != nil {
		return fallback
	}
	if res.Category == "" {
		res.Category = api.CategoryUncategorized
	}
	return res
}

func classifyPrompt(subject, body string) string {
	return fmt.Sprintf(`Analyze the email below and answer with:
1. "category", exactly one of:
   - %s: newsletters, "jobs you might like" lists and mass "apply now" mailings.
   - %s: messages about the reader's own applications, such as interview invitations, status changes, offers or a recruiter writing about a specific role.
   - %s: unsolicited job offers with suspicious traits like high pay for little effort, generic domains or requests for money. Security alerts, password resets and official notices from known companies are never %s.
   - %s
   - %s
   - %s
   - %s
   - %s: security warnings, terms of service changes, system notifications and account alerts.
2. "summary": at most two sentences.
3. "is_fake": true if the email looks like phishing or a scam. Security alerts from legitimate domains such as google.com or microsoft.com are not fake.

Reply with a single JSON object with the keys "category", "summary" and "is_fake" and nothing else, no markdown.

Subject: %s
Body: %s
`,
		api.CategoryJobAds, api.CategoryJobUpdate, api.CategoryFakeJob, api.CategoryFakeJob,
		api.CategoryWork, api.CategorySocial, api.CategoryPromotions, api.CategorySpam, api.CategoryUpdates,
		subject, body)
}

// ModelReplier drafts replies with a language model.
type ModelReplier struct {
	gen  Generator
	opts modelOptions
}

// NewModelReplier returns a replier prompting gen.
func NewModelReplier(gen Generator, opts ...ModelOption) *ModelReplier {
	return &ModelReplier{gen: gen, opts: newModelOptions(opts)}
}

// Reply implements Replier. A failed generation yields ReplyUnavailable
// rather than an error; it is not retried.
func (m *ModelReplier) Reply(ctx context.Context, in ReplyInput) (string, error) {
	text, err := m.gen.Generate(ctx, replyPrompt(in))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		logging.WithOperation(m.opts.logger, "assistant.reply").Error("reply generation failed", logging.Err(err))
		return ReplyUnavailable, nil
	}
	return text, nil
}

func replyPrompt(in ReplyInput) string {
	return fmt.Sprintf(`Write a short, professional and polite reply to this email.

Subject: %s
Body: %s
To: %s
`, in.Subject, truncate(in.Body, MaxInputLength), in.To)
}
