package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/teemow/mailbuddy/internal/api"
	"github.com/teemow/mailbuddy/internal/assistant"
	"github.com/teemow/mailbuddy/internal/gmail"
	"github.com/teemow/mailbuddy/internal/server"
)

type fakeMailbox struct {
	mu       sync.Mutex
	messages []api.Message
	listErr  error
	sendErr  error
	limits   []int64
	sent     []*gmail.EmailMessage
}

func (f *fakeMailbox) ListMessages(_ context.Context, maxResults int64) ([]api.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.limits = append(f.limits, maxResults)
	return f.messages, f.listErr
}

func (f *fakeMailbox) SendEmail(_ context.Context, msg *gmail.EmailMessage) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return "", f.sendErr
	}
	f.sent = append(f.sent, msg)
	return "sent-1", nil
}

type failingClassifier struct{}

func (failingClassifier) Classify(context.Context, api.ClassifyRequest) (api.Classification, error) {
	return api.Classification{}, errors.New("model unavailable")
}

func newTestHandler(t *testing.T, mailbox *fakeMailbox, mutate ...func(*Config)) (*Handler, *[]string) {
	t.Helper()
	var tokens []string
	cfg := Config{
		Mailboxes: func(_ context.Context, token string) (Mailbox, error) {
			tokens = append(tokens, token)
			return mailbox, nil
		},
		Health: server.NewHealthChecker(),
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, m := range mutate {
		m(&cfg)
	}
	h, err := New(cfg)
	require.NoError(t, err)
	return h, &tokens
}

func do(t *testing.T, h http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func detail(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var res api.ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&res))
	return res.Detail
}

func TestNew_RequiresMailboxes(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

func TestRoot(t *testing.T) {
	h, _ := newTestHandler(t, &fakeMailbox{})
	rec := do(t, h, http.MethodGet, "/", "", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"Hello":"World"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get(api.HeaderRequestID))
}

func TestListEmails(t *testing.T) {
	mailbox := &fakeMailbox{messages: []api.Message{
		{ID: "1", Subject: "Hi", Sender: "a@example.com", Snippet: "hello", Body: "hello"},
	}}
	h, tokens := newTestHandler(t, mailbox)

	rec := do(t, h, http.MethodGet, "/emails?max_results=5", "", map[string]string{api.HeaderToken: "tok"})
	require.Equal(t, http.StatusOK, rec.Code)

	var msgs []api.Message
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&msgs))
	assert.Equal(t, mailbox.messages, msgs)
	assert.Equal(t, []int64{5}, mailbox.limits)
	assert.Equal(t, []string{"tok"}, *tokens)
}

func TestListEmails_DefaultsAndBearer(t *testing.T) {
	mailbox := &fakeMailbox{}
	h, tokens := newTestHandler(t, mailbox, func(c *Config) { c.MaxResults = 7 })

	rec := do(t, h, http.MethodGet, "/emails", "", map[string]string{"Authorization": "Bearer tok"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
	assert.Equal(t, []int64{7}, mailbox.limits)
	assert.Equal(t, []string{"tok"}, *tokens)
}

func TestListEmails_Errors(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		headers    map[string]string
		listErr    error
		wantCode   int
		wantDetail string
	}{
		{
			name:       "missing token",
			path:       "/emails",
			wantCode:   http.StatusUnauthorized,
			wantDetail: "Missing token",
		},
		{
			name:       "bad max_results",
			path:       "/emails?max_results=abc",
			headers:    map[string]string{api.HeaderToken: "tok"},
			wantCode:   http.StatusBadRequest,
			wantDetail: "max_results",
		},
		{
			name:       "max_results above limit",
			path:       "/emails?max_results=100000",
			headers:    map[string]string{api.HeaderToken: "tok"},
			wantCode:   http.StatusBadRequest,
			wantDetail: "between 1 and 500",
		},
		{
			name:       "zero max_results",
			path:       "/emails?max_results=0",
			headers:    map[string]string{api.HeaderToken: "tok"},
			wantCode:   http.StatusBadRequest,
			wantDetail: "max_results",
		},
		{
			name:       "provider failure",
			path:       "/emails",
			headers:    map[string]string{api.HeaderToken: "tok"},
			listErr:    errors.New("invalid credentials"),
			wantCode:   http.StatusInternalServerError,
			wantDetail: "invalid credentials",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mailbox := &fakeMailbox{listErr: tt.listErr}
			h, _ := newTestHandler(t, mailbox)
			rec := do(t, h, http.MethodGet, tt.path, "", tt.headers)
			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Contains(t, detail(t, rec), tt.wantDetail)
			if tt.wantCode == http.StatusBadRequest {
				assert.Empty(t, mailbox.limits, "gmail must not be called")
			}
		})
	}
}

func TestClassify(t *testing.T) {
	h, _ := newTestHandler(t, &fakeMailbox{})

	body := `{"subject":"Sprint planning","body":"Agenda for the sprint.","sender":"lead@example.com","message_id":"1"}`
	rec := do(t, h, http.MethodPost, "/classify", body, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var res api.Classification
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&res))
	assert.Equal(t, api.CategoryWork, res.Category)
	assert.NotEmpty(t, res.Summary)
	assert.False(t, res.IsFake)
}

func TestClassify_Errors(t *testing.T) {
	h, _ := newTestHandler(t, &fakeMailbox{}, func(c *Config) { c.Classifier = failingClassifier{} })

	rec := do(t, h, http.MethodPost, "/classify", `{"subject":`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, "/classify", `{"subject":"a","body":"b","sender":"c","message_id":"1"}`, nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "model unavailable", detail(t, rec))
}

func TestGenerateReply(t *testing.T) {
	h, _ := newTestHandler(t, &fakeMailbox{}, func(c *Config) {
		c.Replier = &assistant.TemplateReplier{Signature: "Cheers"}
	})

	body := `{"subject":"Lunch","body":"See you there","to":"Ann <ann@example.com>","context_id":null}`
	rec := do(t, h, http.MethodPost, "/generate-reply", body, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var res api.ReplyResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&res))
	assert.True(t, strings.HasPrefix(res.Reply, "Hi Ann,"))
	assert.True(t, strings.HasSuffix(res.Reply, "Cheers"))
}

func TestSendReply(t *testing.T) {
	mailbox := &fakeMailbox{}
	h, _ := newTestHandler(t, mailbox)

	body := `{"subject":"Re: Lunch","body":"Sounds good","to":"ann@example.com"}`
	rec := do(t, h, http.MethodPost, "/send-reply", body, map[string]string{api.HeaderToken: "tok"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"success"}`, rec.Body.String())

	require.Len(t, mailbox.sent, 1)
	assert.Equal(t, &gmail.EmailMessage{
		To:      []string{"ann@example.com"},
		Subject: "Re: Lunch",
		Body:    "Sounds good",
	}, mailbox.sent[0])
}

func TestSendReply_Errors(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		token    string
		sendErr  error
		wantCode int
	}{
		{"missing token", `{"subject":"s","body":"b","to":"a@example.com"}`, "", nil, http.StatusUnauthorized},
		{"malformed body", `not json`, "tok", nil, http.StatusBadRequest},
		{"empty body", `{"subject":"s","body":" ","to":"a@example.com"}`, "tok", nil, http.StatusBadRequest},
		{"send failure", `{"subject":"s","body":"b","to":"a@example.com"}`, "tok", errors.New("quota exceeded"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mailbox := &fakeMailbox{sendErr: tt.sendErr}
			h, _ := newTestHandler(t, mailbox)

			headers := map[string]string{}
			if tt.token != "" {
				headers[api.HeaderToken] = tt.token
			}
			rec := do(t, h, http.MethodPost, "/send-reply", tt.body, headers)
			assert.Equal(t, tt.wantCode, rec.Code)
			assert.NotEmpty(t, detail(t, rec))
			assert.Empty(t, mailbox.sent)
		})
	}
}

func TestCORS(t *testing.T) {
	h, _ := newTestHandler(t, &fakeMailbox{})

	rec := do(t, h, http.MethodOptions, "/classify", "", map[string]string{
		"Origin":                         "http://localhost:3000",
		"Access-Control-Request-Method":  http.MethodPost,
		"Access-Control-Request-Headers": "token, content-type",
	})
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, strings.ToLower(rec.Header().Get("Access-Control-Allow-Headers")), "token")

	rec = do(t, h, http.MethodGet, "/", "", map[string]string{"Origin": "http://localhost:3000"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Expose-Headers"), http.CanonicalHeaderKey(api.HeaderRequestID))
}

func TestNew_ClampsDefaultMaxResults(t *testing.T) {
	mailbox := &fakeMailbox{}
	h, _ := newTestHandler(t, mailbox, func(c *Config) { c.MaxResults = 10_000 })

	rec := do(t, h, http.MethodGet, "/emails", "", map[string]string{api.HeaderToken: "tok"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []int64{MaxResultsLimit}, mailbox.limits)
}

func TestRequestIDIsEchoed(t *testing.T) {
	h, _ := newTestHandler(t, &fakeMailbox{})
	rec := do(t, h, http.MethodGet, "/", "", map[string]string{api.HeaderRequestID: "req-42"})
	assert.Equal(t, "req-42", rec.Header().Get(api.HeaderRequestID))
}

func TestRequestLogCarriesTraceID(t *testing.T) {
	prev := otel.GetTracerProvider()
	tp := sdktrace.NewTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		_ = tp.Shutdown(context.Background())
	})

	var logs bytes.Buffer
	h, _ := newTestHandler(t, &fakeMailbox{}, func(c *Config) {
		c.Logger = slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	})

	rec := do(t, h, http.MethodGet, "/", "", map[string]string{api.HeaderRequestID: "req-7"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, logs.String(), "request_id=req-7")
	assert.Regexp(t, `trace_id=[0-9a-f]{32}`, logs.String())
}

func TestHealthAndUnknownRoutes(t *testing.T) {
	h, _ := newTestHandler(t, &fakeMailbox{})

	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/healthz", "", nil).Code)
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/readyz", "", nil).Code)

	rec := do(t, h, http.MethodGet, "/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Not Found", detail(t, rec))

	rec = do(t, h, http.MethodGet, "/classify", "", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestGmailMailboxes(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /gmail/v1/users/me/messages", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"messages":[]}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	h, err := New(Config{
		Mailboxes: GmailMailboxes(gmail.WithEndpoint(srv.URL + "/")),
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)

	rec := do(t, h, http.MethodGet, "/emails", "", map[string]string{api.HeaderToken: "tok"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}
