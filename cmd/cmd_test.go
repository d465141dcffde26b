package cmd

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/mailbuddy/internal/api"
	"github.com/teemow/mailbuddy/internal/assistant"
	"github.com/teemow/mailbuddy/internal/config"
	"github.com/teemow/mailbuddy/internal/dashboard"
)

func TestRootCommands(t *testing.T) {
	var names []string
	for _, c := range rootCmd.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"login", "logout", "dashboard", "inbox", "serve", "version"} {
		assert.Contains(t, names, want)
	}
}

func TestVersionCmd(t *testing.T) {
	SetVersion("1.2.3")
	defer SetVersion("dev")

	cmd := newVersionCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.Run(cmd, nil)
	assert.Contains(t, out.String(), "mailbuddy version 1.2.3")
}

func TestWriteMessagesTable(t *testing.T) {
	msgs := []api.Message{
		{ID: "1", Subject: "Standup", Sender: "lead@example.com", Category: api.CategoryWork, Summary: "Daily sync."},
		{ID: "2", Subject: "Easy money", Sender: "x@example.net", Category: api.CategoryFakeJob, IsFake: true},
	}

	var out bytes.Buffer
	require.NoError(t, writeMessagesTable(&out, dashboard.TabInbox, msgs))

	text := out.String()
	assert.Contains(t, text, "Inbox (2)")
	assert.Contains(t, text, "SUBJECT")
	assert.Contains(t, text, "Daily sync.")
	assert.Contains(t, text, "Fake Job (fraud)")
}

func TestWriteMessagesTable_Empty(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, writeMessagesTable(&out, dashboard.TabSpam, nil))
	assert.Equal(t, "No messages in Spam.\n", out.String())
}

func TestWriteMessagesJSON(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, writeMessagesJSON(&out, []api.Message{{ID: "1", Subject: "Hi", IsFake: true}}))
	assert.JSONEq(t, `[{"id":"1","subject":"Hi","is_fake":true}]`, out.String())
}

func TestShorten(t *testing.T) {
	assert.Equal(t, "short", shorten("short", 10))
	assert.Equal(t, "abcd…", shorten("abcdefgh", 5))
	assert.Equal(t, "grüß…", shorten("grüße aus", 5))
}

func TestNewApp_RequiresGoogleCredentials(t *testing.T) {
	cfg := &config.Config{Session: config.SessionConfig{Store: config.StoreFile, Path: t.TempDir() + "/session.jwt"}}
	_, err := newApp(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GOOGLE_CLIENT_ID")
}

type fakeServer struct {
	startErr error
	stop     chan struct{}
	once     sync.Once
	shutdown bool
	mu       sync.Mutex
}

func newFakeServer(startErr error) *fakeServer {
	return &fakeServer{startErr: startErr, stop: make(chan struct{})}
}

func (f *fakeServer) Start() error {
	if f.startErr != nil {
		return f.startErr
	}
	<-f.stop
	return nil
}

func (f *fakeServer) Shutdown(context.Context) error {
	f.mu.Lock()
	f.shutdown = true
	f.mu.Unlock()
	f.once.Do(func() { close(f.stop) })
	return nil
}

func (f *fakeServer) wasShutdown() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.shutdown
}

func TestServeUntilDone_Cancel(t *testing.T) {
	a, b := newFakeServer(nil), newFakeServer(nil)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- serveUntilDone(ctx, slog.New(slog.NewTextHandler(io.Discard, nil)), a, b) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("servers did not stop")
	}
	assert.True(t, a.wasShutdown())
	assert.True(t, b.wasShutdown())
}

func TestServeUntilDone_StartFailure(t *testing.T) {
	failing := errors.New("address already in use")
	a, b := newFakeServer(nil), newFakeServer(failing)

	err := serveUntilDone(context.Background(), slog.New(slog.NewTextHandler(io.Discard, nil)), a, b)
	assert.ErrorIs(t, err, failing)
	assert.True(t, a.wasShutdown())
}

func TestNewAssistant(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	classifier, replier, err := newAssistant(context.Background(), config.AssistantConfig{}, logger)
	require.NoError(t, err)
	assert.IsType(t, &assistant.KeywordClassifier{}, classifier)
	assert.IsType(t, &assistant.TemplateReplier{}, replier)

	classifier, replier, err = newAssistant(context.Background(), config.AssistantConfig{
		APIKey:     "key",
		Model:      config.DefaultModel,
		MaxRetries: 5,
		RetryDelay: time.Second,
	}, logger)
	require.NoError(t, err)
	assert.IsType(t, &assistant.ModelClassifier{}, classifier)
	assert.IsType(t, &assistant.ModelReplier{}, replier)

	_, _, err = newAssistant(context.Background(), config.AssistantConfig{APIKey: "key"}, logger)
	assert.ErrorContains(t, err, "model")
}
