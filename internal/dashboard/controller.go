package dashboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/teemow/mailbuddy/internal/api"
	"github.com/teemow/mailbuddy/internal/auth"
	"github.com/teemow/mailbuddy/internal/config"
	"github.com/teemow/mailbuddy/internal/instrumentation"
	"github.com/teemow/mailbuddy/internal/logging"
)

var (
	// ErrSignedOut is returned once the session could not be refreshed and
	// the user has been signed out.
	ErrSignedOut = errors.New("session expired, sign in again")

	// ErrEmptyReply is returned by SendReply for a blank reply.
	ErrEmptyReply = errors.New("reply text is empty")
)

// API is the subset of the backend client used by the controller.
type API interface {
	ListMessages(ctx context.Context) ([]api.Message, error)
	Classify(ctx context.Context, req api.ClassifyRequest) (*api.Classification, error)
	GenerateReply(ctx context.Context, req api.ReplyRequest) (string, error)
	SendReply(ctx context.Context, req api.ReplyRequest) (*api.SendResult, error)
}

// Session is the part of auth.Session the controller needs.
type Session interface {
	Token(ctx context.Context) auth.Token
	SignOut(ctx context.Context) error
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// WithMetrics records classification outcomes and the queue depth.
func WithMetrics(m *instrumentation.Metrics) Option {
	return func(c *Controller) { c.metrics = m }
}

// WithOnChange registers fn to be called after every state change. fn runs
// on the goroutine that made the change and must not block.
func WithOnChange(fn func()) Option {
	return func(c *Controller) { c.onChange = fn }
}

// Controller owns the message state and the enrichment queue.
type Controller struct {
	api     API
	session Session
	cfg     config.DashboardConfig

	logger   *slog.Logger
	metrics  *instrumentation.Metrics
	onChange func()

	state     *State
	processed *ProcessedSet
	queue     chan string
	limiter   *rate.Limiter
	pending   pending
}

// New returns a controller. A nil session skips the sign-out check.
func New(client API, session Session, cfg config.DashboardConfig, opts ...Option) *Controller {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 15 * time.Second
	}

	limit := rate.Inf
	if cfg.ClassifyInterval > 0 {
		limit = rate.Every(cfg.ClassifyInterval)
	}

	c := &Controller{
		api:       client,
		session:   session,
		cfg:       cfg,
		logger:    slog.Default(),
		state:     NewState(),
		processed: NewProcessedSet(),
		queue:     make(chan string, cfg.QueueSize),
		limiter:   rate.NewLimiter(limit, 1),
	}
	c.pending.idle = closedChan()
	for _, opt := range opts {
		opt(c)
	}
	c.logger = logging.WithComponent(c.logger, "dashboard")
	return c
}

// Run fetches immediately and then every poll interval while the enrichment
// workers drain the queue. It returns nil when ctx is cancelled and
// ErrSignedOut when the session could not be refreshed.
func (c *Controller) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < c.cfg.Concurrency; i++ {
		g.Go(func() error {
			c.work(ctx)
			return nil
		})
	}
	g.Go(func() error {
		return c.poll(ctx)
	})

	if err := g.Wait(); errors.Is(err, ErrSignedOut) {
		return err
	}
	return nil
}

func (c *Controller) poll(ctx context.Context) error {
	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	for {
		if err := c.Refresh(ctx); err != nil {
			if errors.Is(err, ErrSignedOut) {
				return err
			}
			if ctx.Err() == nil {
				c.logger.Warn("fetching messages failed", logging.Err(err))
			}
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Refresh runs one fetch cycle: merge the fetched messages into the state and
// queue every message that is not yet marked processed.
func (c *Controller) Refresh(ctx context.Context) error {
	if c.session != nil && c.session.Token(ctx).Failed() {
		return c.signOut(ctx)
	}

	start := time.Now()
	msgs, err := c.api.ListMessages(ctx)
	if err != nil {
		if auth.IsSignedOut(err) {
			return c.signOut(ctx)
		}
		return fmt.Errorf("failed to list messages: %w", err)
	}

	c.state.Merge(msgs)
	c.changed()

	queued, dropped := 0, 0
	for _, m := range msgs {
		if !c.processed.Add(m.ID) {
			continue
		}
		if c.enqueue(ctx, m.ID) {
			queued++
			continue
		}
		c.processed.Remove(m.ID)
		dropped++
	}
	if dropped > 0 {
		c.logger.Warn("enrichment queue full, deferring messages to the next poll", "deferred", dropped)
	}

	c.logger.Debug("messages fetched",
		"count", len(msgs),
		"queued", queued,
		logging.Duration(time.Since(start)))
	return nil
}

func (c *Controller) signOut(ctx context.Context) error {
	c.logger.Warn("session refresh failed, signing out")
	if err := c.session.SignOut(ctx); err != nil {
		c.logger.Error("failed to sign out", logging.Err(err))
	}
	c.changed()
	return ErrSignedOut
}

func (c *Controller) enqueue(ctx context.Context, id string) bool {
	c.pending.add()
	select {
	case c.queue <- id:
		c.metrics.AddQueueDepth(ctx, 1)
		return true
	default:
		c.pending.done()
		return false
	}
}

// Drain runs the enrichment workers until WaitIdle reports that the queue is
// empty and no classification is in flight, then stops them. Messages
// enqueued while draining are classified too.
func (c *Controller) Drain(ctx context.Context) error {
	workCtx, stop := context.WithCancel(ctx)
	defer stop()

	var g errgroup.Group
	for i := 0; i < c.cfg.Concurrency; i++ {
		g.Go(func() error {
			c.work(workCtx)
			return nil
		})
	}

	err := c.WaitIdle(ctx)
	stop()
	_ = g.Wait()
	return err
}

func (c *Controller) work(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case id := <-c.queue:
			c.process(ctx, id)
		}
	}
}

func (c *Controller) process(ctx context.Context, id string) {
	defer c.pending.done()
	c.metrics.AddQueueDepth(ctx, -1)

	logger := c.logger.With(logging.MessageID(id))

	msg, ok := c.state.Get(id)
	if !ok {
		c.processed.Remove(id)
		return
	}
	if err := c.limiter.Wait(ctx); err != nil {
		c.processed.Remove(id)
		return
	}

	start := time.Now()
	res, err := c.api.Classify(ctx, api.ClassifyRequestFor(msg))
	if err != nil {
		c.processed.Remove(id)
		if ctx.Err() != nil {
			return
		}
		logger.Warn("classification failed", logging.Err(err))
		c.metrics.RecordClassification(ctx, instrumentation.ClassificationFailed, FailedCategory)
		if c.state.Fail(id) {
			c.changed()
		}
		return
	}

	outcome := instrumentation.ClassificationCategorized
	if res.Category == api.CategoryUncategorized {
		outcome = instrumentation.ClassificationUncategorized
		c.processed.Remove(id)
	}
	c.metrics.RecordClassification(ctx, outcome, res.Category)
	logger.Debug("message classified", logging.Category(res.Category), logging.Duration(time.Since(start)))

	if c.state.Apply(id, *res) {
		c.changed()
	}
}

func (c *Controller) changed() {
	if c.onChange != nil {
		c.onChange()
	}
}

// WaitIdle blocks until the queue is empty and no classification is running.
func (c *Controller) WaitIdle(ctx context.Context) error {
	select {
	case <-c.pending.wait():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Messages returns a snapshot of all messages in fetch order.
func (c *Controller) Messages() []api.Message {
	return c.state.Snapshot()
}

// View returns the messages shown on tab t.
func (c *Controller) View(t Tab) []api.Message {
	return Filter(c.state.Snapshot(), t)
}

// Message returns the current version of the message with the given id.
func (c *Controller) Message(id string) (api.Message, bool) {
	return c.state.Get(id)
}

// DraftReply asks the backend for a reply to msg.
func (c *Controller) DraftReply(ctx context.Context, msg api.Message) (string, error) {
	reply, err := c.api.GenerateReply(ctx, api.ReplyRequest{
		Subject: msg.Subject,
		Body:    msg.Snippet,
		To:      msg.Sender,
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate reply: %w", err)
	}
	return reply, nil
}

// SendReply sends text as a reply to msg.
func (c *Controller) SendReply(ctx context.Context, msg api.Message, text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyReply
	}
	res, err := c.api.SendReply(ctx, api.ReplyRequest{
		Subject: "Re: " + msg.Subject,
		Body:    text,
		To:      msg.Sender,
	})
	if err != nil {
		return fmt.Errorf("failed to send reply: %w", err)
	}
	if res != nil && res.Status != "" && res.Status != api.StatusSent {
		return fmt.Errorf("failed to send reply: status %q", res.Status)
	}
	c.logger.Info("reply sent", logging.MessageID(msg.ID), logging.Domain(msg.Sender))
	return nil
}

// pending counts queued and running classifications.
type pending struct {
	mu   sync.Mutex
	n    int
	idle chan struct{}
}

func (p *pending) add() {
	p.mu.Lock()
	if p.n == 0 {
		p.idle = make(chan struct{})
	}
	p.n++
	p.mu.Unlock()
}

func (p *pending) done() {
	p.mu.Lock()
	p.n--
	if p.n == 0 {
		close(p.idle)
	}
	p.mu.Unlock()
}

func (p *pending) wait() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.idle
}

func closedChan() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
