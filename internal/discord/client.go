// Package discord provides the Discord gateway connection and guild lookups.
package discord

import (
	"fmt"
	"sort"

	"github.com/bwmarrin/discordgo"
)

// Client wraps the discordgo session.
type Client struct {
	session *discordgo.Session
}

// NewClient creates a new Discord client. The session is not connected until
// Open is called.
func NewClient(token string) (*Client, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}

	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildMembers |
		discordgo.IntentMessageContent

	return &Client{session: session}, nil
}

// Open connects the session to the Discord gateway.
func (c *Client) Open() error {
	if err := c.session.Open(); err != nil {
		return fmt.Errorf("failed to open discord gateway: %w", err)
	}
	return nil
}

// Close disconnects from the gateway.
func (c *Client) Close() error {
	return c.session.Close()
}

// Session returns the underlying session for direct access.
func (c *Client) Session() *discordgo.Session {
	return c.session
}

// Username returns the bot's own Discord username, or "" before Open.
func (c *Client) Username() string {
	if c.session.State != nil && c.session.State.User != nil {
		return c.session.State.User.Username
	}
	return ""
}

// ValidateGuild checks that the bot can see the given guild.
func (c *Client) ValidateGuild(guildID string) (bool, error) {
	if guildID == "" {
		return false, nil
	}
	if _, err := c.session.State.Guild(guildID); err == nil {
		return true, nil
	}
	if _, err := c.session.Guild(guildID); err != nil {
		// Unknown guild or bot not a member
		return false, nil
	}
	return true, nil
}

// GuildName returns the display name of a guild, falling back to its ID.
func (c *Client) GuildName(guildID string) string {
	if guild, err := c.session.State.Guild(guildID); err == nil {
		return guild.Name
	}
	if guild, err := c.session.Guild(guildID); err == nil {
		return guild.Name
	}
	return guildID
}

// FindMember checks whether a member with the exact username exists in the
// guild.
func (c *Client) FindMember(guildID, username string) (bool, error) {
	members, err := c.session.GuildMembersSearch(guildID, username, 10)
	if err != nil {
		return false, fmt.Errorf("failed to search guild members: %w", err)
	}
	for _, m := range members {
		if m.User != nil && m.User.Username == username {
			return true, nil
		}
	}
	return false, nil
}

// GuildRoleNames returns the names of all roles of a guild.
func (c *Client) GuildRoleNames(guildID string) ([]string, error) {
	roles, err := c.session.GuildRoles(guildID)
	if err != nil {
		return nil, fmt.Errorf("failed to list guild roles: %w", err)
	}

	names := make([]string, 0, len(roles))
	for _, r := range roles {
		names = append(names, r.Name)
	}
	sort.Strings(names)
	return names, nil
}

// GuildTextChannels returns the names of the guild's text channels. When
// categoryIDs is non-empty, only channels under those categories are listed.
func (c *Client) GuildTextChannels(guildID string, categoryIDs []string) ([]string, error) {
	channels, err := c.session.GuildChannels(guildID)
	if err != nil {
		return nil, fmt.Errorf("failed to list guild channels: %w", err)
	}

	allowed := make(map[string]bool, len(categoryIDs))
	for _, id := range categoryIDs {
		allowed[id] = true
	}

	var names []string
	for _, ch := range channels {
		if ch.Type != discordgo.ChannelTypeGuildText {
			continue
		}
		if len(allowed) > 0 && !allowed[ch.ParentID] {
			continue
		}
		names = append(names, ch.Name)
	}
	sort.Strings(names)
	return names, nil
}
