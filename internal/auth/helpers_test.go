package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
)

// tokenServer is a fake OAuth token endpoint.
type tokenServer struct {
	*httptest.Server

	mu       sync.Mutex
	requests []map[string]string
	status   int
	response map[string]interface{}
}

func newTokenServer(t *testing.T) *tokenServer {
	t.Helper()
	ts := &tokenServer{
		status: http.StatusOK,
		response: map[string]interface{}{
			"access_token": "access-1",
			"token_type":   "Bearer",
			"expires_in":   3600,
		},
	}
	ts.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		form := map[string]string{}
		for k := range r.PostForm {
			form[k] = r.PostForm.Get(k)
		}

		ts.mu.Lock()
		ts.requests = append(ts.requests, form)
		status, body := ts.status, ts.response
		ts.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(ts.Close)
	return ts
}

func (ts *tokenServer) respond(status int, body map[string]interface{}) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.status, ts.response = status, body
}

func (ts *tokenServer) calls() []map[string]string {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return append([]map[string]string(nil), ts.requests...)
}

func (ts *tokenServer) config() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		Endpoint: oauth2.Endpoint{
			AuthURL:   ts.URL + "/auth",
			TokenURL:  ts.URL + "/token",
			AuthStyle: oauth2.AuthStyleInParams,
		},
		RedirectURL: "http://127.0.0.1/callback",
		Scopes:      []string{"openid"},
	}
}

func idToken(t *testing.T, email, name string) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"email": email,
		"name":  name,
	}).SignedString([]byte("provider-key"))
	if err != nil {
		t.Fatalf("sign id token: %v", err)
	}
	return signed
}

// memoryStore is an in-memory Store.
type memoryStore struct {
	mu    sync.Mutex
	token *Token
	saves int
}

func (m *memoryStore) Load(_ context.Context) (Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.token == nil {
		return Token{}, ErrNotSignedIn
	}
	return *m.token, nil
}

func (m *memoryStore) Save(_ context.Context, tok Token) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = &tok
	m.saves++
	return nil
}

func (m *memoryStore) Delete(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = nil
	return nil
}

func (m *memoryStore) Close() error { return nil }
