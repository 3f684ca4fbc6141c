package discord

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/onnwee/streamherald/registry"
)

// Store is the registry persistence surface the command handlers use.
// Commands race with the reconciliation loop only at whole-registry
// load/save granularity (accepted last-write-wins).
type Store interface {
	Load(ctx context.Context) (registry.Registry, error)
	Save(ctx context.Context, reg registry.Registry) error
}

// Commander registers and serves the operator slash commands.
type Commander struct {
	store  Store
	logger *slog.Logger
}

// NewCommander builds the command surface over a registry store.
func NewCommander(store Store) *Commander {
	return &Commander{
		store:  store,
		logger: slog.Default().With(slog.String("component", "commands")),
	}
}

// Register installs the interaction handler and overwrites the global
// application commands. Call after the gateway session is open.
func (c *Commander) Register(s *discordgo.Session) error {
	s.AddHandler(func(s *discordgo.Session, i *discordgo.InteractionCreate) {
		if i.Type != discordgo.InteractionApplicationCommand {
			return
		}
		c.handle(s, i)
	})

	adminOnly := int64(discordgo.PermissionAdministrator)
	commands := []*discordgo.ApplicationCommand{
		{
			Name:                     "setup",
			Description:              "Configure the channel and role for live alerts",
			DefaultMemberPermissions: &adminOnly,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionChannel,
					Name:        "channel",
					Description: "Channel for alerts",
					Required:    true,
					ChannelTypes: []discordgo.ChannelType{
						discordgo.ChannelTypeGuildText,
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionRole,
					Name:        "role",
					Description: "Role assigned while live",
					Required:    true,
				},
			},
		},
		{
			Name:                     "addstreamer",
			Description:              "Add a streamer to the watchlist",
			DefaultMemberPermissions: &adminOnly,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionUser,
					Name:        "member",
					Description: "Discord member to link",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "twitch_name",
					Description: "Twitch channel name",
					Required:    true,
				},
			},
		},
		{
			Name:                     "removestreamer",
			Description:              "Remove a streamer from the watchlist",
			DefaultMemberPermissions: &adminOnly,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionUser,
					Name:        "member",
					Description: "Discord member to unlink",
					Required:    true,
				},
			},
		},
		{
			Name:        "liststreamers",
			Description: "Show all tracked streamers",
		},
	}
	if _, err := s.ApplicationCommandBulkOverwrite(s.State.User.ID, "", commands); err != nil {
		return fmt.Errorf("register application commands: %w", err)
	}
	return nil
}

func (c *Commander) handle(s *discordgo.Session, i *discordgo.InteractionCreate) {
	data := i.ApplicationCommandData()
	ctx := context.Background()

	if i.GuildID == "" {
		respond(s, i, "These commands only work inside a server.", true)
		return
	}

	var reply string
	var err error
	ephemeral := false

	switch data.Name {
	case "setup":
		if !isAdmin(i) {
			respond(s, i, "You need the Administrator permission for this command.", true)
			return
		}
		channel := data.Options[0].ChannelValue(s)
		role := data.Options[1].RoleValue(s, i.GuildID)
		reply, err = c.Setup(ctx, i.GuildID, channel.ID, role.ID)
	case "addstreamer":
		if !isAdmin(i) {
			respond(s, i, "You need the Administrator permission for this command.", true)
			return
		}
		member := data.Options[0].UserValue(s)
		login := strings.TrimSpace(data.Options[1].StringValue())
		reply, err = c.AddStreamer(ctx, i.GuildID, member.ID, login)
	case "removestreamer":
		if !isAdmin(i) {
			respond(s, i, "You need the Administrator permission for this command.", true)
			return
		}
		member := data.Options[0].UserValue(s)
		reply, err = c.RemoveStreamer(ctx, i.GuildID, member.ID)
	case "liststreamers":
		reply, err = c.ListStreamers(ctx, i.GuildID)
		ephemeral = reply == emptyListReply
	default:
		return
	}

	if err != nil {
		c.logger.Error("command failed", slog.String("command", data.Name), slog.String("guild", i.GuildID), slog.Any("err", err))
		respond(s, i, "Something went wrong, please try again later.", true)
		return
	}
	// Guidance replies (rejections) are ephemeral so they don't clutter the channel.
	if strings.HasPrefix(reply, "⚠️") || strings.HasPrefix(reply, "❌") {
		ephemeral = true
	}
	respond(s, i, reply, ephemeral)
}

const emptyListReply = "List is empty."

// Setup creates or overwrites the guild's alert destination and role.
func (c *Commander) Setup(ctx context.Context, guildID, channelID, roleID string) (string, error) {
	reg, err := c.store.Load(ctx)
	if err != nil {
		return "", fmt.Errorf("load registry: %w", err)
	}
	g := reg.Guild(guildID)
	g.ChannelID = channelID
	g.RoleID = roleID
	if err := c.store.Save(ctx, reg); err != nil {
		return "", fmt.Errorf("save registry: %w", err)
	}
	c.logger.Info("guild configured", slog.String("guild", guildID), slog.String("channel", channelID), slog.String("role", roleID))
	return fmt.Sprintf("✅ Setup complete! Alerts in <#%s>, role: <@&%s>", channelID, roleID), nil
}

// AddStreamer links a guild member to a Twitch login. Rejected until the
// guild has run setup; a fresh link always starts from a not-live state.
func (c *Commander) AddStreamer(ctx context.Context, guildID, memberID, login string) (string, error) {
	if login == "" {
		return "❌ Twitch channel name must not be empty.", nil
	}
	reg, err := c.store.Load(ctx)
	if err != nil {
		return "", fmt.Errorf("load registry: %w", err)
	}
	g, ok := reg[guildID]
	if !ok || !g.Configured() {
		return "⚠️ Please run `/setup` first!", nil
	}
	g.Streamers[memberID] = &registry.Streamer{Login: login, IsLive: false}
	if err := c.store.Save(ctx, reg); err != nil {
		return "", fmt.Errorf("save registry: %w", err)
	}
	c.logger.Info("streamer linked", slog.String("guild", guildID), slog.String("member", memberID), slog.String("login", login))
	return fmt.Sprintf("✅ Linked <@%s> to Twitch channel **%s**", memberID, login), nil
}

// RemoveStreamer unlinks a guild member, reporting not-found when absent.
func (c *Commander) RemoveStreamer(ctx context.Context, guildID, memberID string) (string, error) {
	reg, err := c.store.Load(ctx)
	if err != nil {
		return "", fmt.Errorf("load registry: %w", err)
	}
	g, ok := reg[guildID]
	if !ok || g.Streamers[memberID] == nil {
		return "❌ User not found in the list.", nil
	}
	delete(g.Streamers, memberID)
	if err := c.store.Save(ctx, reg); err != nil {
		return "", fmt.Errorf("save registry: %w", err)
	}
	c.logger.Info("streamer unlinked", slog.String("guild", guildID), slog.String("member", memberID))
	return fmt.Sprintf("🗑️ Removed <@%s> from the list.", memberID), nil
}

// ListStreamers enumerates the guild's tracked streamers.
func (c *Commander) ListStreamers(ctx context.Context, guildID string) (string, error) {
	reg, err := c.store.Load(ctx)
	if err != nil {
		return "", fmt.Errorf("load registry: %w", err)
	}
	g, ok := reg[guildID]
	if !ok || len(g.Streamers) == 0 {
		return emptyListReply, nil
	}
	ids := make([]string, 0, len(g.Streamers))
	for id := range g.Streamers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	var b strings.Builder
	b.WriteString("**📺 Tracked Streamers:**\n")
	for _, id := range ids {
		s := g.Streamers[id]
		fmt.Fprintf(&b, "<@%s> -> https://twitch.tv/%s\n", id, s.Login)
	}
	return b.String(), nil
}

func isAdmin(i *discordgo.InteractionCreate) bool {
	return i.Member != nil && i.Member.Permissions&discordgo.PermissionAdministrator != 0
}

func respond(s *discordgo.Session, i *discordgo.InteractionCreate, msg string, ephemeral bool) {
	data := &discordgo.InteractionResponseData{Content: msg}
	if ephemeral {
		data.Flags = discordgo.MessageFlagsEphemeral
	}
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: data,
	})
	if err != nil {
		slog.Warn("interaction respond failed", slog.Any("err", err), slog.String("component", "commands"))
	}
}
