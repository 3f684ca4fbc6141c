// Package announce translates detected live-state transitions into Discord
// side effects: role grant/revoke and a one-shot "went live" notification.
// Each side effect is isolated: a failed role mutation never blocks the
// notification post and vice versa, and no failure is ever fatal to the
// reconciliation cycle.
package announce

import (
	"context"
	"log/slog"

	"github.com/onnwee/streamherald/telemetry"
	"github.com/onnwee/streamherald/watch"
)

// Notification is the payload the chat client renders into a rich embed.
type Notification struct {
	Login      string
	Title      string
	Category   string
	MemberID   string
	MemberName string
	AvatarURL  string
	RoleID     string
	StreamURL  string
}

// ChatClient is the narrow Discord surface used for side effects.
type ChatClient interface {
	AddRole(guildID, userID, roleID string) error
	RemoveRole(guildID, userID, roleID string) error
	SendLiveNotification(channelID string, n Notification) error
}

// Dispatcher implements watch.Announcer against a ChatClient.
type Dispatcher struct {
	client ChatClient
	logger *slog.Logger
}

// New builds a Dispatcher.
func New(client ChatClient) *Dispatcher {
	return &Dispatcher{
		client: client,
		logger: slog.Default().With(slog.String("component", "announce")),
	}
}

// WentLive grants the live role and posts the notification embed. The two
// operations are independent; either may fail on its own.
func (d *Dispatcher) WentLive(ctx context.Context, t watch.Transition) {
	if t.RoleID != "" {
		if err := d.client.AddRole(t.GuildID, t.MemberID, t.RoleID); err != nil {
			d.logger.Warn("role grant failed",
				slog.String("guild", t.GuildID),
				slog.String("member", t.MemberID),
				slog.Any("err", err))
			telemetry.SideEffectFailures.Inc()
		}
	}
	if t.ChannelID == "" {
		return
	}
	n := Notification{
		Login:      t.Login,
		Title:      t.Title,
		Category:   t.Category,
		MemberID:   t.MemberID,
		MemberName: t.Member.DisplayName,
		AvatarURL:  t.Member.AvatarURL,
		RoleID:     t.RoleID,
		StreamURL:  "https://twitch.tv/" + t.Login,
	}
	if err := d.client.SendLiveNotification(t.ChannelID, n); err != nil {
		d.logger.Warn("live notification failed",
			slog.String("guild", t.GuildID),
			slog.String("channel", t.ChannelID),
			slog.String("login", t.Login),
			slog.Any("err", err))
		telemetry.SideEffectFailures.Inc()
		return
	}
	telemetry.NotificationsSent.Inc()
}

// WentOffline revokes the live role. No notification is sent on the way down.
func (d *Dispatcher) WentOffline(ctx context.Context, t watch.Transition) {
	if t.RoleID == "" {
		return
	}
	if err := d.client.RemoveRole(t.GuildID, t.MemberID, t.RoleID); err != nil {
		d.logger.Warn("role revoke failed",
			slog.String("guild", t.GuildID),
			slog.String("member", t.MemberID),
			slog.Any("err", err))
		telemetry.SideEffectFailures.Inc()
	}
}
