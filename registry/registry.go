// Package registry defines the tracked-streamer registry and its persistence.
// The registry maps Discord guild IDs to their alert configuration and the set
// of members whose Twitch accounts are monitored. The last persisted IsLive
// observation per streamer is what makes reconciliation idempotent across
// polling cycles and process restarts.
package registry

// Streamer links a guild member to a Twitch account.
type Streamer struct {
	// Login is the Twitch login name of the tracked account.
	Login string `json:"twitch"`
	// IsLive is the last committed live observation. Only the reconciliation
	// loop toggles it, and only when a transition was detected and the side
	// effects were attempted.
	IsLive bool `json:"is_live"`
}

// GuildConfig is the per-guild alert configuration plus tracked streamers.
// ChannelID and RoleID stay empty until /setup has run; streamers may not be
// added before that.
type GuildConfig struct {
	ChannelID string               `json:"channel_id,omitempty"`
	RoleID    string               `json:"role_id,omitempty"`
	Streamers map[string]*Streamer `json:"streamers"`
}

// Configured reports whether the guild finished the setup step.
func (g *GuildConfig) Configured() bool {
	return g != nil && g.ChannelID != "" && g.RoleID != ""
}

// Registry is the whole persisted document, keyed by guild ID.
type Registry map[string]*GuildConfig

// Guild returns the config for a guild, creating an empty entry when absent.
func (r Registry) Guild(guildID string) *GuildConfig {
	g, ok := r[guildID]
	if !ok {
		g = &GuildConfig{Streamers: make(map[string]*Streamer)}
		r[guildID] = g
	}
	if g.Streamers == nil {
		g.Streamers = make(map[string]*Streamer)
	}
	return g
}

// StreamerCount counts tracked streamers across all guilds.
func (r Registry) StreamerCount() int {
	n := 0
	for _, g := range r {
		n += len(g.Streamers)
	}
	return n
}

// LiveCount counts streamers whose last persisted observation was live.
func (r Registry) LiveCount() int {
	n := 0
	for _, g := range r {
		for _, s := range g.Streamers {
			if s.IsLive {
				n++
			}
		}
	}
	return n
}
