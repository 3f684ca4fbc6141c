package twitchapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// DefaultTokenURL is the Twitch OAuth2 client-credentials token endpoint.
const DefaultTokenURL = "https://id.twitch.tv/oauth2/token"

// TokenSource fetches and caches a Twitch app access (client credentials)
// token. Caching and refresh near expiry are handled by the underlying oauth2
// reuse source; callers just Get a valid bearer token each cycle.
// NOTE: an app token cannot act on behalf of a user; it is only good for
// public Helix reads such as stream status.
type TokenSource struct {
	ClientID     string
	ClientSecret string
	TokenURL     string       // defaults to DefaultTokenURL
	HTTPClient   *http.Client // optional, for tests

	mu  sync.Mutex
	src oauth2.TokenSource
}

// Get returns a valid (fresh or cached) app access token.
func (ts *TokenSource) Get(ctx context.Context) (string, error) {
	if ts.ClientID == "" || ts.ClientSecret == "" {
		return "", errors.New("missing client id/secret for twitch app token")
	}
	ts.mu.Lock()
	if ts.src == nil {
		urlStr := ts.TokenURL
		if urlStr == "" {
			urlStr = DefaultTokenURL
		}
		cfg := &clientcredentials.Config{
			ClientID:     ts.ClientID,
			ClientSecret: ts.ClientSecret,
			TokenURL:     urlStr,
		}
		// The oauth2 machinery takes its HTTP client from the context the
		// source was built with, so bind it once here.
		srcCtx := context.Background()
		if ts.HTTPClient != nil {
			srcCtx = context.WithValue(srcCtx, oauth2.HTTPClient, ts.HTTPClient)
		}
		ts.src = cfg.TokenSource(srcCtx)
	}
	src := ts.src
	ts.mu.Unlock()

	tok, err := src.Token()
	if err != nil {
		return "", fmt.Errorf("twitch app token request failed: %w", err)
	}
	if tok.AccessToken == "" {
		return "", errors.New("empty access_token in twitch response")
	}
	return tok.AccessToken, nil
}
