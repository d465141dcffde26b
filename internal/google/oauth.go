package google

import (
	"context"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// OAuthConfig returns the OAuth2 configuration for the registered client.
func OAuthConfig(clientID, clientSecret, redirectURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     google.Endpoint,
		RedirectURL:  redirectURL,
		Scopes:       append([]string(nil), DefaultOAuthScopes...),
	}
}

// AuthCodeOptions are the options passed to AuthCodeURL. Offline access with
// forced consent makes Google return a refresh token on every sign-in.
func AuthCodeOptions() []oauth2.AuthCodeOption {
	return []oauth2.AuthCodeOption{
		oauth2.AccessTypeOffline,
		oauth2.ApprovalForce,
	}
}

// HTTPClient returns a client that authenticates every request with the
// given access token. The backend receives tokens from callers and never
// refreshes them itself.
//
// HTTP/2 is disabled; the Gmail API occasionally resets long-lived HTTP/2
// connections.
func HTTPClient(ctx context.Context, accessToken string) *http.Client {
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: accessToken,
		TokenType:   "Bearer",
	}))
	if transport, ok := client.Transport.(*oauth2.Transport); ok {
		transport.Base = &http.Transport{
			Proxy:             http.ProxyFromEnvironment,
			ForceAttemptHTTP2: false,
		}
	}
	return client
}
