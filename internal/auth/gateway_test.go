package auth

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGateway_AuthCodeURL(t *testing.T) {
	ts := newTokenServer(t)
	g := NewGateway(ts.config(), nil)

	u, err := url.Parse(g.AuthCodeURL("xyz"))
	require.NoError(t, err)
	assert.Equal(t, "offline", u.Query().Get("access_type"))
	assert.Equal(t, "consent", u.Query().Get("prompt"))
	assert.Equal(t, "xyz", u.Query().Get("state"))

	redirected := g.WithRedirectURL("http://127.0.0.1:4242/")
	u, err = url.Parse(redirected.AuthCodeURL("xyz"))
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:4242/", u.Query().Get("redirect_uri"))

	u, err = url.Parse(g.AuthCodeURL("xyz"))
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1/callback", u.Query().Get("redirect_uri"), "original gateway is unchanged")
}

func TestGateway_SignInAndResume(t *testing.T) {
	ts := newTokenServer(t)
	ts.respond(http.StatusOK, map[string]interface{}{
		"access_token":  "access-1",
		"token_type":    "Bearer",
		"expires_in":    3600,
		"refresh_token": "refresh-1",
		"id_token":      idToken(t, "jane@example.com", "Jane Doe"),
	})
	store := &memoryStore{}
	g := NewGateway(ts.config(), store, WithHTTPClient(ts.Client()))

	session, err := g.SignIn(context.Background(), "code-1")
	require.NoError(t, err)

	calls := ts.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "authorization_code", calls[0]["grant_type"])
	assert.Equal(t, "code-1", calls[0]["code"])

	tok := session.Token(context.Background())
	assert.Equal(t, "access-1", tok.AccessToken)
	assert.Equal(t, "refresh-1", tok.RefreshToken)
	assert.Equal(t, "jane@example.com", tok.Email)
	assert.Equal(t, "Jane Doe", tok.Name)
	assert.WithinDuration(t, time.Now().Add(time.Hour), tok.Expiry, time.Minute)

	resumed, err := g.Resume(context.Background())
	require.NoError(t, err)
	access, err := resumed.AccessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "access-1", access)

	require.NoError(t, g.SignOut(context.Background()))
	_, err = g.Resume(context.Background())
	assert.ErrorIs(t, err, ErrNotSignedIn)
}

func TestGateway_ResumedSessionRefreshesThroughProvider(t *testing.T) {
	ts := newTokenServer(t)
	ts.respond(http.StatusOK, map[string]interface{}{
		"access_token": "access-2",
		"token_type":   "Bearer",
		"expires_in":   3600,
	})
	store := &memoryStore{}
	require.NoError(t, store.Save(context.Background(), Token{
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		Expiry:       time.Now().Add(-time.Minute),
	}))
	g := NewGateway(ts.config(), store, WithHTTPClient(ts.Client()))

	session, err := g.Resume(context.Background())
	require.NoError(t, err)
	access, err := session.AccessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "access-2", access)

	saved, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "refresh-1", saved.RefreshToken)
}

func TestGateway_SignInFailure(t *testing.T) {
	ts := newTokenServer(t)
	ts.respond(http.StatusBadRequest, map[string]interface{}{"error": "invalid_grant"})
	store := &memoryStore{}
	g := NewGateway(ts.config(), store, WithHTTPClient(ts.Client()))

	_, err := g.SignIn(context.Background(), "bad-code")
	require.Error(t, err)
	assert.Zero(t, store.saves)
}

func TestLoopback_Redirect(t *testing.T) {
	ts := newTokenServer(t)
	ts.respond(http.StatusOK, map[string]interface{}{
		"access_token":  "access-1",
		"token_type":    "Bearer",
		"expires_in":    3600,
		"refresh_token": "refresh-1",
	})
	g := NewGateway(ts.config(), &memoryStore{}, WithHTTPClient(ts.Client()))

	urls := make(chan string, 1)
	lb := &Loopback{Gateway: g, Timeout: 5 * time.Second, OnAuthURL: func(u string) { urls <- u }}

	type result struct {
		session *Session
		err     error
	}
	done := make(chan result, 1)
	go func() {
		s, err := lb.SignIn(context.Background())
		done <- result{s, err}
	}()

	authURL, err := url.Parse(<-urls)
	require.NoError(t, err)
	redirect := authURL.Query().Get("redirect_uri")
	require.True(t, strings.HasPrefix(redirect, "http://127.0.0.1:"))

	resp, err := http.Get(redirect + "?state=wrong&code=abc")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Get(redirect + "?state=" + url.QueryEscape(authURL.Query().Get("state")) + "&code=abc")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	r := <-done
	require.NoError(t, r.err)
	assert.Equal(t, "access-1", r.session.Token(context.Background()).AccessToken)

	calls := ts.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "abc", calls[0]["code"])
	assert.Equal(t, redirect, calls[0]["redirect_uri"])
}

func TestLoopback_ManualFallback(t *testing.T) {
	ts := newTokenServer(t)
	g := NewGateway(ts.config(), &memoryStore{}, WithHTTPClient(ts.Client()))

	lb := &Loopback{
		Gateway: g,
		In:      strings.NewReader("http://127.0.0.1:1234/?state=s&code=pasted-code\n"),
		Timeout: 10 * time.Millisecond,
	}
	session, err := lb.SignIn(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "access-1", session.Token(context.Background()).AccessToken)

	calls := ts.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "pasted-code", calls[0]["code"])
}

func TestParseAuthorizationInput(t *testing.T) {
	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{"4/0AbC", "4/0AbC", false},
		{"  4/0AbC \n", "4/0AbC", false},
		{"http://127.0.0.1:5000/?code=xyz&scope=email", "xyz", false},
		{"https://example.com/?state=1", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseAuthorizationInput(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
