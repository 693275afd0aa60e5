package telegram

import (
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/user/mentionbot/internal/storage"
)

// Menu button labels.
const (
	buttonHandle   = "Discord handle"
	buttonChannels = "Discord channels"
	buttonRoles    = "Discord roles"
	buttonGuild    = "Discord guild"
	buttonDelete   = "Delete my data"
	buttonDone     = "Done"
)

const welcomeText = "To receive a notification whenever your Discord handle is mentioned," +
	" please select 'Discord handle' from the menu below." +
	" To restrict notifications to certain channels only, select 'Discord channels'." +
	" To receive notifications for mentions of specific roles, select 'Discord roles'."

const helpText = `📚 *How this works*

I watch your Discord server and send you a direct message here whenever your handle (or a role you care about) is mentioned.

*Setup:*
• /menu - open the setup menu
• *Discord handle* - the username to watch for
• *Discord guild* - the server to listen to
• *Discord channels* - optional channel whitelist
• *Discord roles* - get notified for role mentions too

*Other commands:*
• /showdata - what I have stored about you
• /status - uptime and subscriber count
• *Delete my data* (in the menu) - remove everything I stored`

// menuKeyboard builds the onboarding reply keyboard.
func menuKeyboard() tgbotapi.ReplyKeyboardMarkup {
	markup := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(buttonHandle),
			tgbotapi.NewKeyboardButton(buttonChannels),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(buttonRoles),
			tgbotapi.NewKeyboardButton(buttonGuild),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(buttonDelete),
			tgbotapi.NewKeyboardButton(buttonDone),
		),
	)
	markup.OneTimeKeyboard = true
	return markup
}

// formatUserData renders the non-empty settings of a subscriber, one per
// line. The second return value reports whether anything is set.
func formatUserData(sub *storage.Subscriber, guildName string, roles, channels []string) (string, bool) {
	var lines []string

	if sub.DiscordHandle != "" {
		lines = append(lines, fmt.Sprintf("Discord handle - %s", sub.DiscordHandle))
	}
	if sub.GuildID != "" {
		lines = append(lines, fmt.Sprintf("Discord guild - %s", guildName))
	}
	if len(channels) > 0 {
		lines = append(lines, fmt.Sprintf("Discord channels - %s", strings.Join(channels, ", ")))
	}
	if len(roles) > 0 {
		lines = append(lines, fmt.Sprintf("Discord roles - %s", strings.Join(roles, ", ")))
	}

	if len(lines) == 0 {
		return "", false
	}
	return "\n" + strings.Join(lines, "\n") + "\n", true
}

// formatDuration formats a duration to a human-readable string.
func formatDuration(d time.Duration) string {
	days := int(d.Hours() / 24)
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm", days, hours, minutes)
	} else if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, minutes)
	} else if minutes > 0 {
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}
	return fmt.Sprintf("%ds", seconds)
}
