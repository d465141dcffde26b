package google

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOAuthConfig(t *testing.T) {
	conf := OAuthConfig("id", "secret", "http://127.0.0.1:5555/")

	assert.Equal(t, "id", conf.ClientID)
	assert.Equal(t, "secret", conf.ClientSecret)
	assert.Equal(t, "https://oauth2.googleapis.com/token", conf.Endpoint.TokenURL)
	assert.ElementsMatch(t, DefaultOAuthScopes, conf.Scopes)

	conf.Scopes[0] = "mutated"
	assert.Equal(t, "openid", DefaultOAuthScopes[0], "config must not alias the package scopes")
}

func TestAuthCodeOptions(t *testing.T) {
	conf := OAuthConfig("id", "secret", "http://127.0.0.1:5555/")
	raw := conf.AuthCodeURL("state-1", AuthCodeOptions()...)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	q := u.Query()
	assert.Equal(t, "offline", q.Get("access_type"))
	assert.Equal(t, "consent", q.Get("prompt"))
	assert.Equal(t, "state-1", q.Get("state"))
	assert.Contains(t, q.Get("scope"), "https://www.googleapis.com/auth/gmail.send")
}

func TestHTTPClient(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Authorization")
	}))
	defer srv.Close()

	resp, err := HTTPClient(context.Background(), "tok-123").Get(srv.URL)
	require.NoError(t, err)
	_ = resp.Body.Close()

	assert.Equal(t, "Bearer tok-123", got)
}
