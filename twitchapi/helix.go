// Package twitchapi contains minimal helpers to interact with Twitch Helix
// APIs for live-status probing, using an app access token.
package twitchapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// DefaultBaseURL is the Helix API root.
const DefaultBaseURL = "https://api.twitch.tv"

// Stream is one active broadcast record from /helix/streams.
type Stream struct {
	Title       string    `json:"title"`
	GameName    string    `json:"game_name"`
	UserLogin   string    `json:"user_login"`
	ViewerCount int       `json:"viewer_count"`
	StartedAt   time.Time `json:"started_at"`
}

// HelixClient provides the minimal Helix surface needed for live probing.
// The bearer token is passed per call: the reconciliation loop acquires it
// once per cycle and reuses it for every probe.
type HelixClient struct {
	ClientID   string
	BaseURL    string       // defaults to DefaultBaseURL
	HTTPClient *http.Client // defaults to http.DefaultClient
}

func (hc *HelixClient) http() *http.Client {
	if hc.HTTPClient != nil {
		return hc.HTTPClient
	}
	return http.DefaultClient
}

func (hc *HelixClient) base() string {
	if hc.BaseURL != "" {
		return hc.BaseURL
	}
	return DefaultBaseURL
}

// GetStreams returns the active stream records for a login. An empty slice
// means the channel is offline; at most one record is expected per login.
func (hc *HelixClient) GetStreams(ctx context.Context, token, login string) ([]Stream, error) {
	if login == "" {
		return nil, fmt.Errorf("login empty")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, hc.base()+"/helix/streams", nil)
	if err != nil {
		return nil, err
	}
	q := req.URL.Query()
	q.Set("user_login", login)
	req.URL.RawQuery = q.Encode()
	req.Header.Set("Client-Id", hc.ClientID)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := hc.http().Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("failed to close response body", slog.Any("err", err))
		}
	}()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("twitch streams request failed: %s: %s", resp.Status, string(b))
	}
	var body struct {
		Data []Stream `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, err
	}
	return body.Data, nil
}
