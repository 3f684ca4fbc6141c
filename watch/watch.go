// Package watch implements the live-status reconciliation loop: on a fixed
// cadence it loads the registry, acquires a Twitch app token, probes every
// tracked account, diffs the observed status against the last persisted one,
// dispatches side effects on transition edges only, and persists the registry
// once per cycle iff something changed.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/onnwee/streamherald/registry"
	"github.com/onnwee/streamherald/telemetry"
	"github.com/onnwee/streamherald/twitchapi"
)

// Store abstracts registry persistence (for tests/mocks).
type Store interface {
	Load(ctx context.Context) (registry.Registry, error)
	Save(ctx context.Context, reg registry.Registry) error
	Touch(ctx context.Context, key string) error
}

// TokenSource yields a valid app access token, acquired once per cycle.
type TokenSource interface {
	Get(ctx context.Context) (string, error)
}

// Prober queries live status for one login with the cycle's token.
type Prober interface {
	GetStreams(ctx context.Context, token, login string) ([]twitchapi.Stream, error)
}

// Directory resolves Discord entities referenced by the registry. Entries
// that no longer resolve (member left, channel deleted) are skipped without
// error for the cycle.
type Directory interface {
	GuildAvailable(guildID string) bool
	ChannelAvailable(guildID, channelID string) bool
	RoleAvailable(guildID, roleID string) bool
	Member(guildID, userID string) (Member, bool)
}

// Member is the resolved identity used in notifications.
type Member struct {
	DisplayName string
	AvatarURL   string
}

// Transition is one detected live-state edge, computed in the comparison pass
// and applied in the apply pass.
type Transition struct {
	GuildID   string
	MemberID  string
	Login     string
	ToLive    bool
	Title     string
	Category  string
	ChannelID string // resolved alert channel, empty when unavailable
	RoleID    string // resolved live role, empty when unavailable
	Member    Member
}

// Announcer applies the side effects for a transition. Implementations must
// be non-fatal: failures are logged and absorbed, never returned to the loop.
type Announcer interface {
	WentLive(ctx context.Context, t Transition)
	WentOffline(ctx context.Context, t Transition)
}

// Watcher drives the reconciliation loop.
type Watcher struct {
	store     Store
	tokens    TokenSource
	prober    Prober
	dir       Directory
	announcer Announcer
	interval  time.Duration
	logger    *slog.Logger
}

// New assembles a Watcher from its collaborators.
func New(store Store, tokens TokenSource, prober Prober, dir Directory, announcer Announcer, interval time.Duration) *Watcher {
	if interval <= 0 {
		interval = 2 * time.Minute
	}
	return &Watcher{
		store:     store,
		tokens:    tokens,
		prober:    prober,
		dir:       dir,
		announcer: announcer,
		interval:  interval,
		logger:    slog.Default().With(slog.String("component", "watch")),
	}
}

// Run polls until ctx is cancelled. Cycles never overlap: the loop body runs
// to completion before the next tick is consumed, so an overrunning cycle
// delays the next one rather than racing it.
func (w *Watcher) Run(ctx context.Context) {
	w.logger.Info("live-status watcher starting", slog.Duration("interval", w.interval))
	// Kick an immediate run so we don't wait a full interval after boot.
	w.runCycle(ctx)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("live-status watcher stopped")
			return
		case <-ticker.C:
			w.runCycle(ctx)
		}
	}
}

func (w *Watcher) runCycle(ctx context.Context) {
	corr := uuid.New().String()
	ctx = telemetry.WithCorrelation(ctx, corr)
	ctx, span := telemetry.StartSpan(ctx, "watch", "reconcile-cycle")
	defer span.End()
	telemetry.TimeFunc(telemetry.CycleDuration, func() {
		if err := w.checkOnce(ctx); err != nil {
			telemetry.RecordError(span, err)
			w.logger.Warn("cycle skipped", slog.Any("err", err), slog.String("corr", corr))
			telemetry.PollCyclesSkipped.Inc()
		}
	})
}

// checkOnce performs one reconciliation cycle. A returned error means the
// whole cycle was skipped before any side effect; per-entry failures are
// absorbed inside.
func (w *Watcher) checkOnce(ctx context.Context) error {
	if err := w.store.Touch(ctx, "poll_last_cycle"); err != nil {
		w.logger.Debug("heartbeat write failed", slog.Any("err", err))
	}

	reg, err := w.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load registry: %w", err)
	}
	if len(reg) == 0 {
		w.logger.Debug("registry empty; nothing to reconcile")
		return nil
	}
	telemetry.SetTrackedStreamers(reg.StreamerCount())

	token, err := w.tokens.Get(ctx)
	if err != nil {
		return fmt.Errorf("acquire app token: %w", err)
	}

	transitions := w.computeTransitions(ctx, reg, token)

	for _, t := range transitions {
		if t.ToLive {
			w.announcer.WentLive(ctx, t)
			telemetry.WentLive.Inc()
		} else {
			w.announcer.WentOffline(ctx, t)
			telemetry.WentOffline.Inc()
		}
		// Committed regardless of side-effect outcome: a missed notification
		// is not retried until the next actual transition.
		reg[t.GuildID].Streamers[t.MemberID].IsLive = t.ToLive
		w.logger.Info("transition applied",
			slog.String("guild", t.GuildID),
			slog.String("login", t.Login),
			slog.Bool("live", t.ToLive))
	}

	if len(transitions) > 0 {
		if err := w.store.Save(ctx, reg); err != nil {
			// In-memory state stays mutated; a later successful save or the
			// next transition heals persistence. Restart before then may
			// replay a notification, which is the documented open risk.
			w.logger.Error("registry save failed; persisted state is stale", slog.Any("err", err))
		} else {
			telemetry.RegistryWrites.Inc()
		}
		if err := w.store.Touch(ctx, "poll_last_change"); err != nil {
			w.logger.Debug("change marker write failed", slog.Any("err", err))
		}
	}
	telemetry.SetLiveStreamers(reg.LiveCount())
	telemetry.PollCycles.Inc()
	return nil
}

// observation is one probe result, cached per login within a cycle.
type observation struct {
	live     bool
	title    string
	category string
}

// computeTransitions is the pure comparison pass: it probes every tracked
// account and collects the edges relative to the persisted state, without
// mutating the registry. One Helix call per distinct login per cycle.
func (w *Watcher) computeTransitions(ctx context.Context, reg registry.Registry, token string) []Transition {
	cache := make(map[string]observation)
	var out []Transition
	for gid, g := range reg {
		if !g.Configured() {
			continue
		}
		if !w.dir.GuildAvailable(gid) {
			w.logger.Debug("guild unavailable; skipping", slog.String("guild", gid))
			continue
		}
		channelID := g.ChannelID
		if channelID != "" && !w.dir.ChannelAvailable(gid, channelID) {
			w.logger.Warn("alert channel no longer resolves", slog.String("guild", gid), slog.String("channel", channelID))
			channelID = ""
		}
		roleID := g.RoleID
		if roleID != "" && !w.dir.RoleAvailable(gid, roleID) {
			w.logger.Warn("live role no longer resolves", slog.String("guild", gid), slog.String("role", roleID))
			roleID = ""
		}
		for uid, s := range g.Streamers {
			member, ok := w.dir.Member(gid, uid)
			if !ok {
				w.logger.Debug("member no longer resolves; skipping", slog.String("guild", gid), slog.String("member", uid))
				continue
			}
			obs, cached := cache[s.Login]
			if !cached {
				obs = w.probe(ctx, token, s.Login)
				cache[s.Login] = obs
			}
			if obs.live == s.IsLive {
				continue
			}
			out = append(out, Transition{
				GuildID:   gid,
				MemberID:  uid,
				Login:     s.Login,
				ToLive:    obs.live,
				Title:     obs.title,
				Category:  obs.category,
				ChannelID: channelID,
				RoleID:    roleID,
				Member:    member,
			})
		}
	}
	return out
}

// probe queries live status for one login. Any transport or decoding failure
// is treated as not-live for this cycle only (fail-safe default) and must not
// abort the rest of the cycle.
func (w *Watcher) probe(ctx context.Context, token, login string) observation {
	streams, err := w.prober.GetStreams(ctx, token, login)
	if err != nil {
		w.logger.Warn("probe failed; treating as offline for this cycle", slog.String("login", login), slog.Any("err", err))
		telemetry.ProbeErrors.Inc()
		return observation{}
	}
	if len(streams) == 0 {
		return observation{}
	}
	return observation{live: true, title: streams[0].Title, category: streams[0].GameName}
}
