package registry

import (
	"encoding/json"
	"testing"
)

func TestGuildCreatesEntry(t *testing.T) {
	reg := Registry{}
	g := reg.Guild("g1")
	if g == nil {
		t.Fatal("Guild() returned nil")
	}
	if g.Streamers == nil {
		t.Error("Streamers map not initialized")
	}
	if reg["g1"] != g {
		t.Error("entry not retained in registry")
	}
	if reg.Guild("g1") != g {
		t.Error("second lookup should return the same entry")
	}
}

func TestGuildRepairsNilStreamers(t *testing.T) {
	reg := Registry{"g1": &GuildConfig{ChannelID: "c", RoleID: "r"}}
	g := reg.Guild("g1")
	if g.Streamers == nil {
		t.Error("Streamers map should be initialized on access")
	}
}

func TestConfigured(t *testing.T) {
	tests := []struct {
		name string
		g    *GuildConfig
		want bool
	}{
		{"nil", nil, false},
		{"empty", &GuildConfig{}, false},
		{"channel only", &GuildConfig{ChannelID: "c"}, false},
		{"role only", &GuildConfig{RoleID: "r"}, false},
		{"both", &GuildConfig{ChannelID: "c", RoleID: "r"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.g.Configured(); got != tt.want {
				t.Errorf("Configured() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCounts(t *testing.T) {
	reg := Registry{
		"g1": &GuildConfig{
			ChannelID: "c",
			RoleID:    "r",
			Streamers: map[string]*Streamer{
				"u1": {Login: "a", IsLive: true},
				"u2": {Login: "b"},
			},
		},
		"g2": &GuildConfig{
			ChannelID: "c2",
			RoleID:    "r2",
			Streamers: map[string]*Streamer{
				"u3": {Login: "c", IsLive: true},
			},
		},
	}
	if got := reg.StreamerCount(); got != 3 {
		t.Errorf("StreamerCount() = %d, want 3", got)
	}
	if got := reg.LiveCount(); got != 2 {
		t.Errorf("LiveCount() = %d, want 2", got)
	}
}

// The stored document must survive an encode/decode round trip unchanged,
// including the live flags that drive edge detection.
func TestGuildConfigJSONRoundTrip(t *testing.T) {
	in := &GuildConfig{
		ChannelID: "chan-1",
		RoleID:    "role-1",
		Streamers: map[string]*Streamer{
			"u1": {Login: "streamer_a", IsLive: true},
			"u2": {Login: "streamer_b", IsLive: false},
		},
	}
	raw, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var out GuildConfig
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if out.ChannelID != in.ChannelID || out.RoleID != in.RoleID {
		t.Errorf("targets = (%q, %q)", out.ChannelID, out.RoleID)
	}
	if len(out.Streamers) != 2 {
		t.Fatalf("streamers = %d, want 2", len(out.Streamers))
	}
	if s := out.Streamers["u1"]; s.Login != "streamer_a" || !s.IsLive {
		t.Errorf("u1 = %+v", s)
	}
	if s := out.Streamers["u2"]; s.Login != "streamer_b" || s.IsLive {
		t.Errorf("u2 = %+v", s)
	}
}
