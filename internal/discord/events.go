package discord

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// MessageEvent is a guild message observed on the gateway, reduced to the
// fields the relay needs.
type MessageEvent struct {
	MessageID        string
	GuildID          string
	GuildName        string
	ChannelID        string
	ChannelName      string
	Author           string // account username
	AuthorDisplay    string // guild nickname when set, else username
	Content          string
	MentionedUsers   []string // usernames from the mention list
	MentionedRoles   []string // resolved role names
	MentionsEveryone bool
}

// JumpURL returns the deep link to the message.
func (e *MessageEvent) JumpURL() string {
	return fmt.Sprintf("https://discord.com/channels/%s/%s/%s", e.GuildID, e.ChannelID, e.MessageID)
}

// FormatHandleMessage formats the notification sent when the subscriber's
// own handle was mentioned.
func (e *MessageEvent) FormatHandleMessage() string {
	header := fmt.Sprintf("🔔 *%s*\n\nMentioned by %s in [#%s](%s):\n\n",
		escapeMarkdown(e.GuildName), escapeMarkdown(e.AuthorDisplay), escapeMarkdown(e.ChannelName), e.JumpURL())
	return header + escapeMarkdown(truncateString(e.Content, maxContentLen))
}

// FormatRoleMessage formats the notification sent for a role mention.
func (e *MessageEvent) FormatRoleMessage(role string) string {
	header := fmt.Sprintf("🔔 *%s*\n\n%s mentioned by %s in [#%s](%s):\n\n",
		escapeMarkdown(e.GuildName), escapeMarkdown(role), escapeMarkdown(e.AuthorDisplay), escapeMarkdown(e.ChannelName), e.JumpURL())
	return header + escapeMarkdown(truncateString(e.Content, maxContentLen))
}

// maxContentLen caps forwarded message bodies well below Telegram's 4096
// character message limit, leaving room for header and escaping.
const maxContentLen = 3000

// truncateString cuts s to at most maxLen bytes without splitting a rune.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	cut := maxLen - 3
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

// escapeMarkdown escapes special Markdown characters so user content cannot
// break Telegram's parser.
func escapeMarkdown(s string) string {
	replacer := strings.NewReplacer(
		"_", "\\_",
		"*", "\\*",
		"[", "\\[",
		"]", "\\]",
		"`", "\\`",
	)
	return replacer.Replace(s)
}
