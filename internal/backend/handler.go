package backend

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/teemow/mailbuddy/internal/api"
	"github.com/teemow/mailbuddy/internal/assistant"
	"github.com/teemow/mailbuddy/internal/gmail"
	"github.com/teemow/mailbuddy/internal/instrumentation"
	"github.com/teemow/mailbuddy/internal/logging"
	"github.com/teemow/mailbuddy/internal/server"
)

const (
	// DefaultMaxResults is used when GET /emails has no max_results.
	DefaultMaxResults = gmail.DefaultMaxResults

	// MaxResultsLimit is the largest max_results accepted by GET /emails,
	// one full Gmail list page.
	MaxResultsLimit = 500

	// maxBodyBytes bounds request bodies.
	maxBodyBytes = 1 << 20
)

// Config holds the dependencies of a Handler.
type Config struct {
	Mailboxes  MailboxFactory
	Classifier assistant.Classifier
	Replier    assistant.Replier

	// Health registers /healthz and /readyz when set.
	Health *server.HealthChecker

	Logger  *slog.Logger
	Metrics *instrumentation.Metrics

	// MaxResults is the default page size of GET /emails.
	MaxResults int64
}

// Handler serves the assistant API.
type Handler struct {
	mailboxes  MailboxFactory
	classifier assistant.Classifier
	replier    assistant.Replier
	logger     *slog.Logger
	metrics    *instrumentation.Metrics
	maxResults int64

	router http.Handler
}

// New builds a Handler. Classifier and Replier default to the heuristic
// assistant implementations.
func New(cfg Config) (*Handler, error) {
	if cfg.Mailboxes == nil {
		return nil, errors.New("mailbox factory is required")
	}
	if cfg.Classifier == nil {
		cfg.Classifier = assistant.NewKeywordClassifier()
	}
	if cfg.Replier == nil {
		cfg.Replier = assistant.NewTemplateReplier()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = DefaultMaxResults
	}
	if cfg.MaxResults > MaxResultsLimit {
		cfg.MaxResults = MaxResultsLimit
	}

	h := &Handler{
		mailboxes:  cfg.Mailboxes,
		classifier: cfg.Classifier,
		replier:    cfg.Replier,
		logger:     logging.WithComponent(cfg.Logger, "backend"),
		metrics:    cfg.Metrics,
		maxResults: cfg.MaxResults,
	}

	r := mux.NewRouter()
	r.Use(requestID, h.instrument)
	r.HandleFunc("/", h.root).Methods(http.MethodGet)
	r.HandleFunc("/emails", h.listEmails).Methods(http.MethodGet)
	r.HandleFunc("/classify", h.classify).Methods(http.MethodPost)
	r.HandleFunc("/generate-reply", h.generateReply).Methods(http.MethodPost)
	r.HandleFunc("/send-reply", h.sendReply).Methods(http.MethodPost)
	if cfg.Health != nil {
		cfg.Health.RegisterHealthEndpoints(r)
	}
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "Not Found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Method Not Allowed")
	})

	h.router = handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Authorization", "Content-Type", api.HeaderToken, api.HeaderRequestID}),
		handlers.ExposedHeaders([]string{api.HeaderRequestID}),
		handlers.OptionStatusCode(http.StatusNoContent),
	)(r)
	return h, nil
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

func (h *Handler) root(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"Hello": "World"})
}

func (h *Handler) listEmails(w http.ResponseWriter, r *http.Request) {
	token := accessToken(r)
	if token == "" {
		writeError(w, http.StatusUnauthorized, "Missing token")
		return
	}

	maxResults := h.maxResults
	if v := r.URL.Query().Get("max_results"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n <= 0 || n > MaxResultsLimit {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("max_results must be between 1 and %d", MaxResultsLimit))
			return
		}
		maxResults = n
	}

	ctx := r.Context()
	mailbox, err := h.mailboxes(ctx, token)
	if err != nil {
		h.fail(w, api.OpListMessages, err)
		return
	}
	msgs, err := mailbox.ListMessages(ctx, maxResults)
	if err != nil {
		h.fail(w, api.OpListMessages, err)
		return
	}
	if msgs == nil {
		msgs = []api.Message{}
	}
	writeJSON(w, http.StatusOK, msgs)
}

func (h *Handler) classify(w http.ResponseWriter, r *http.Request) {
	var req api.ClassifyRequest
	if !decode(w, r, &req) {
		return
	}

	res, err := h.classifier.Classify(r.Context(), req)
	if err != nil {
		h.fail(w, api.OpClassify, err)
		return
	}

	h.logger.Debug("message classified", logging.MessageID(req.MessageID), logging.Category(res.Category))
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) generateReply(w http.ResponseWriter, r *http.Request) {
	var req api.ReplyRequest
	if !decode(w, r, &req) {
		return
	}

	reply, err := h.replier.Reply(r.Context(), assistant.ReplyInput{
		Subject: req.Subject,
		Body:    req.Body,
		To:      req.To,
	})
	if err != nil {
		h.fail(w, api.OpGenerateReply, err)
		return
	}
	writeJSON(w, http.StatusOK, api.ReplyResponse{Reply: reply})
}

func (h *Handler) sendReply(w http.ResponseWriter, r *http.Request) {
	token := accessToken(r)
	if token == "" {
		writeError(w, http.StatusUnauthorized, "Missing token")
		return
	}

	var req api.ReplyRequest
	if !decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.To) == "" || strings.TrimSpace(req.Body) == "" {
		writeError(w, http.StatusBadRequest, "recipient and body are required")
		return
	}
	if req.Subject == "" {
		req.Subject = gmail.DefaultSubject
	}

	ctx := r.Context()
	mailbox, err := h.mailboxes(ctx, token)
	if err != nil {
		h.fail(w, api.OpSendReply, err)
		return
	}
	if _, err := mailbox.SendEmail(ctx, &gmail.EmailMessage{
		To:      []string{req.To},
		Subject: req.Subject,
		Body:    req.Body,
	}); err != nil {
		h.fail(w, api.OpSendReply, err)
		return
	}

	writeJSON(w, http.StatusOK, api.SendResult{Status: api.StatusSent})
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	h.logger.Error("request failed", logging.Operation(op), logging.Err(err))
	writeError(w, http.StatusInternalServerError, err.Error())
}

// accessToken reads the token header, falling back to a bearer token.
func accessToken(r *http.Request) string {
	if t := strings.TrimSpace(r.Header.Get(api.HeaderToken)); t != "" {
		return t
	}
	if t, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		return strings.TrimSpace(t)
	}
	return ""
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, api.ErrorResponse{Detail: detail})
}
