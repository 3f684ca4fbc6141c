package config

import (
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"DISCORD_TOKEN", "TWITCH_CLIENT_ID", "TWITCH_CLIENT_SECRET",
		"POLL_INTERVAL", "DB_DSN", "HTTP_ADDR",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.PollInterval != DefaultPollInterval {
		t.Errorf("PollInterval = %s, want %s", cfg.PollInterval, DefaultPollInterval)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Errorf("HTTPAddr = %q", cfg.HTTPAddr)
	}
	if cfg.DBDsn == "" {
		t.Error("DBDsn should have a default")
	}
}

func TestLoadPollInterval(t *testing.T) {
	clearEnv(t)
	t.Setenv("POLL_INTERVAL", "30s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.PollInterval != 30*time.Second {
		t.Errorf("PollInterval = %s, want 30s", cfg.PollInterval)
	}
}

func TestLoadPollIntervalInvalid(t *testing.T) {
	tests := []string{"banana", "-1m", "0s"}
	for _, v := range tests {
		t.Run(v, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("POLL_INTERVAL", v)
			if _, err := Load(); err == nil {
				t.Errorf("Load() with POLL_INTERVAL=%q should fail", v)
			}
		})
	}
}

func TestValidateBotReady(t *testing.T) {
	cfg := &Config{}
	if err := cfg.ValidateBotReady(); err == nil {
		t.Error("expected error without DISCORD_TOKEN")
	}
	cfg.DiscordToken = "tok"
	if err := cfg.ValidateBotReady(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestHasTwitchCredentials(t *testing.T) {
	tests := []struct {
		name   string
		id     string
		secret string
		want   bool
	}{
		{"both", "id", "sec", true},
		{"id only", "id", "", false},
		{"secret only", "", "sec", false},
		{"neither", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{TwitchClientID: tt.id, TwitchClientSecret: tt.secret}
			if got := cfg.HasTwitchCredentials(); got != tt.want {
				t.Errorf("HasTwitchCredentials() = %v, want %v", got, tt.want)
			}
		})
	}
}
