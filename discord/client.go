// Package discord wraps the Discord gateway session behind the narrow
// surfaces the rest of the service consumes: entity resolution for the
// reconciliation loop, role mutation and embed posting for the side-effect
// dispatcher, and the operator slash-command surface.
package discord

import (
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/onnwee/streamherald/announce"
	"github.com/onnwee/streamherald/watch"
)

// twitchPurple is the embed accent color for live notifications.
const twitchPurple = 0x9146FF

// Client owns the gateway session. It satisfies watch.Directory and
// announce.ChatClient.
type Client struct {
	Session *discordgo.Session
}

// New creates a gateway session for the bot token. The session is not opened
// yet; call Open after command handlers are registered.
func New(token string) (*Client, error) {
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	s.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMembers
	return &Client{Session: s}, nil
}

// Open connects to the gateway.
func (c *Client) Open() error {
	if err := c.Session.Open(); err != nil {
		return fmt.Errorf("open discord gateway: %w", err)
	}
	return nil
}

// Close shuts the gateway session down.
func (c *Client) Close() error {
	return c.Session.Close()
}

// BotUser returns the connected bot account, available after Open.
func (c *Client) BotUser() *discordgo.User {
	return c.Session.State.User
}

// GuildAvailable reports whether the bot currently sees the guild.
func (c *Client) GuildAvailable(guildID string) bool {
	g, err := c.Session.State.Guild(guildID)
	return err == nil && g != nil
}

// ChannelAvailable reports whether the channel still exists in the guild.
func (c *Client) ChannelAvailable(guildID, channelID string) bool {
	ch, err := c.Session.State.Channel(channelID)
	if err != nil || ch == nil {
		ch, err = c.Session.Channel(channelID)
		if err != nil || ch == nil {
			return false
		}
	}
	return ch.GuildID == guildID
}

// RoleAvailable reports whether the role still exists in the guild.
func (c *Client) RoleAvailable(guildID, roleID string) bool {
	r, err := c.Session.State.Role(guildID, roleID)
	return err == nil && r != nil
}

// Member resolves a guild member to the identity used in notifications.
// State first, REST fallback: members drift out of the state cache on large
// guilds.
func (c *Client) Member(guildID, userID string) (watch.Member, bool) {
	m, err := c.Session.State.Member(guildID, userID)
	if err != nil || m == nil {
		m, err = c.Session.GuildMember(guildID, userID)
		if err != nil || m == nil {
			return watch.Member{}, false
		}
	}
	name := m.Nick
	if name == "" && m.User != nil {
		name = m.User.Username
	}
	avatar := ""
	if m.User != nil {
		avatar = m.User.AvatarURL("")
	}
	return watch.Member{DisplayName: name, AvatarURL: avatar}, true
}

// AddRole grants a role to a member.
func (c *Client) AddRole(guildID, userID, roleID string) error {
	return c.Session.GuildMemberRoleAdd(guildID, userID, roleID)
}

// RemoveRole revokes a role from a member.
func (c *Client) RemoveRole(guildID, userID, roleID string) error {
	return c.Session.GuildMemberRoleRemove(guildID, userID, roleID)
}

// SendLiveNotification posts the "went live" embed to the alert channel.
func (c *Client) SendLiveNotification(channelID string, n announce.Notification) error {
	_, err := c.Session.ChannelMessageSendComplex(channelID, buildLiveMessage(n))
	return err
}

func buildLiveMessage(n announce.Notification) *discordgo.MessageSend {
	content := fmt.Sprintf("🔴 **NOW LIVE!** <@%s>", n.MemberID)
	if n.RoleID != "" {
		content += fmt.Sprintf(" <@&%s>", n.RoleID)
	}
	embed := &discordgo.MessageEmbed{
		Title: fmt.Sprintf("%s is LIVE!", n.Login),
		URL:   n.StreamURL,
		Color: twitchPurple,
		Author: &discordgo.MessageEmbedAuthor{
			Name:    n.MemberName,
			IconURL: n.AvatarURL,
		},
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Title", Value: orDash(n.Title), Inline: false},
			{Name: "Category", Value: orDash(n.Category), Inline: true},
		},
		Thumbnail: &discordgo.MessageEmbedThumbnail{URL: n.AvatarURL},
	}
	return &discordgo.MessageSend{
		Content: content,
		Embeds:  []*discordgo.MessageEmbed{embed},
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
