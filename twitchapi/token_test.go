package twitchapi_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/onnwee/streamherald/testutil"
	"github.com/onnwee/streamherald/twitchapi"
)

func TestTokenSourceGet(t *testing.T) {
	mock := testutil.NewMockTwitchServer(t)
	mock.MockOAuthTokenResponse("app-token-123", 3600)

	ts := &twitchapi.TokenSource{
		ClientID:     "cid",
		ClientSecret: "secret",
		TokenURL:     mock.URL + "/oauth2/token",
	}
	tok, err := ts.Get(context.Background())
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if tok != "app-token-123" {
		t.Errorf("token = %q, want app-token-123", tok)
	}
}

// A second Get within the token's lifetime is served from the cache.
func TestTokenSourceCachesToken(t *testing.T) {
	mock := testutil.NewMockTwitchServer(t)
	requests := 0
	mock.Handlers["/oauth2/token"] = func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.Header().Set("Content-Type", "application/json")
		if _, err := w.Write([]byte(`{"access_token":"cached-tok","expires_in":3600,"token_type":"bearer"}`)); err != nil {
			t.Errorf("write response: %v", err)
		}
	}

	ts := &twitchapi.TokenSource{
		ClientID:     "cid",
		ClientSecret: "secret",
		TokenURL:     mock.URL + "/oauth2/token",
	}
	for i := 0; i < 3; i++ {
		tok, err := ts.Get(context.Background())
		if err != nil {
			t.Fatalf("Get() #%d error: %v", i, err)
		}
		if tok != "cached-tok" {
			t.Errorf("Get() #%d token = %q", i, tok)
		}
	}
	if requests != 1 {
		t.Errorf("token endpoint hit %d times, want 1", requests)
	}
}

func TestTokenSourceMissingCredentials(t *testing.T) {
	tests := []struct {
		name   string
		id     string
		secret string
	}{
		{"no id", "", "secret"},
		{"no secret", "cid", ""},
		{"neither", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := &twitchapi.TokenSource{ClientID: tt.id, ClientSecret: tt.secret}
			if _, err := ts.Get(context.Background()); err == nil {
				t.Error("expected error for missing credentials")
			}
		})
	}
}

func TestTokenSourceServerError(t *testing.T) {
	mock := testutil.NewMockTwitchServer(t)
	mock.Handlers["/oauth2/token"] = func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		if _, err := w.Write([]byte(`{"status":403,"message":"invalid client secret"}`)); err != nil {
			t.Errorf("write response: %v", err)
		}
	}

	ts := &twitchapi.TokenSource{
		ClientID:     "cid",
		ClientSecret: "wrong",
		TokenURL:     mock.URL + "/oauth2/token",
	}
	if _, err := ts.Get(context.Background()); err == nil {
		t.Fatal("expected error on 403 from token endpoint")
	}
}
