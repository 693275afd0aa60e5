package telegram

import (
	"errors"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/user/mentionbot/internal/config"
	"github.com/user/mentionbot/internal/discord"
	"github.com/user/mentionbot/internal/metrics"
	"github.com/user/mentionbot/internal/storage"
	"github.com/user/mentionbot/pkg/logger"
)

// Broadcaster sends a message to every onboarded subscriber.
type Broadcaster interface {
	Broadcast(text string) (int, error)
}

// Handlers manages command and conversation handling for the bot.
type Handlers struct {
	api         *tgbotapi.BotAPI
	store       *storage.SubscriberStore
	cfg         *config.Config
	dcClient    *discord.Client
	broadcaster Broadcaster
	sessions    *sessionStore
	startTime   time.Time
}

// NewHandlers creates a new handlers instance.
func NewHandlers(api *tgbotapi.BotAPI, store *storage.SubscriberStore, cfg *config.Config) *Handlers {
	return &Handlers{
		api:      api,
		store:    store,
		cfg:      cfg,
		sessions: newSessionStore(),
	}
}

// SetDiscordClient sets the Discord client used for onboarding validation.
func (h *Handlers) SetDiscordClient(client *discord.Client) {
	h.dcClient = client
}

// SetBroadcaster sets the broadcast target for the admin announce command.
func (h *Handlers) SetBroadcaster(bc Broadcaster) {
	h.broadcaster = bc
}

// SetStartTime sets the bot start time for uptime calculation.
func (h *Handlers) SetStartTime(t time.Time) {
	h.startTime = t
}

// HandleCommand routes commands to appropriate handlers.
func (h *Handlers) HandleCommand(msg *tgbotapi.Message) {
	command := msg.Command()
	args := msg.CommandArguments()

	logger.Debug().
		Str("command", command).
		Str("args", args).
		Int64("chat_id", msg.Chat.ID).
		Msg("Received command")

	// Track chat for future notifications
	h.trackChat(msg.Chat)

	switch command {
	case "start", "menu", "back":
		h.handleMenu(msg)
	case "help":
		h.handleHelp(msg)
	case "showdata":
		h.handleShowData(msg)
	case "status":
		h.handleStatus(msg)
	case "announce":
		h.handleAnnounce(msg, args)
	default:
		h.sendReply(msg.Chat.ID, "Unknown command. Use /help to see what I can do.")
	}
}

// HandleText feeds non-command text into the onboarding conversation.
func (h *Handlers) HandleText(msg *tgbotapi.Message) {
	sess := h.sessions.get(msg.Chat.ID)

	switch sess.state {
	case stateChoosing:
		h.handleMenuChoice(msg)
	case stateAwaitingReply:
		h.handleReply(msg, sess.category)
	default:
		h.sendReply(msg.Chat.ID, "Hit /menu to set up your notifications.")
	}
}

// trackChat stores chat information and applies the default guild for new
// subscribers.
func (h *Handlers) trackChat(chat *tgbotapi.Chat) {
	chatType := chat.Type
	title := chat.Title
	if chat.Type == "private" {
		title = chat.FirstName
		if chat.LastName != "" {
			title += " " + chat.LastName
		}
	}

	if err := h.store.CreateOrUpdateSubscriber(chat.ID, chatType, title); err != nil {
		logger.Error().Err(err).Int64("chat_id", chat.ID).Msg("Failed to track chat")
		return
	}

	if h.cfg.Discord.DefaultGuild == "" {
		return
	}
	sub, err := h.store.GetSubscriber(chat.ID)
	if err != nil || sub == nil || sub.GuildID != "" {
		return
	}
	if err := h.store.SetGuild(chat.ID, h.cfg.Discord.DefaultGuild); err != nil {
		logger.Error().Err(err).Int64("chat_id", chat.ID).Msg("Failed to set default guild")
	}
}

// handleMenu opens the onboarding menu.
func (h *Handlers) handleMenu(msg *tgbotapi.Message) {
	text := "Hello!\n"

	summary, configured := h.dataSummary(msg.Chat.ID)
	if configured {
		text += fmt.Sprintf("Your data so far:\n%s\nPlease choose:", summary)
	} else {
		text += welcomeText
	}

	h.sendWithKeyboard(msg.Chat.ID, text)
	h.sessions.setChoosing(msg.Chat.ID)
}

// handleMenuChoice dispatches a pressed menu button.
func (h *Handlers) handleMenuChoice(msg *tgbotapi.Message) {
	chatID := msg.Chat.ID

	switch msg.Text {
	case buttonHandle:
		h.sendReply(chatID, "Please enter your Discord username (e.g. `anna_472`). You can find it by tapping your avatar or in Settings → My Account → Username.")
		h.sessions.setAwaiting(chatID, categoryHandle)

	case buttonChannels:
		h.promptChannels(chatID)

	case buttonRoles:
		h.promptRoles(chatID)

	case buttonGuild:
		h.sendReply(chatID, "Please enter the ID of the Discord server to listen to. In Discord: Settings → Advanced → Developer Mode, then right-click the server icon and Copy Server ID.")
		h.sessions.setAwaiting(chatID, categoryGuild)

	case buttonDelete:
		h.handleDeleteData(msg)

	case buttonDone:
		h.handleDone(msg)

	default:
		h.sendReply(chatID, "Please pick an entry from the menu, or hit Done to leave it.")
	}
}

// promptChannels shows the current whitelist plus the channels available in
// the subscriber's guild and asks for a name to toggle.
func (h *Handlers) promptChannels(chatID int64) {
	text := "Enter a channel name to toggle it on your channel list. An empty list means you get notified for mentions in *all* channels."

	if current, err := h.store.GetChannels(chatID); err == nil && len(current) > 0 {
		text += fmt.Sprintf("\n\nYour channels: `%s`", strings.Join(current, "`, `"))
	}

	if guildID := h.subscriberGuild(chatID); guildID != "" && h.dcClient != nil {
		if available, err := h.dcClient.GuildTextChannels(guildID, h.cfg.Discord.ChannelCategories); err == nil && len(available) > 0 {
			text += fmt.Sprintf("\n\nAvailable: `%s`", strings.Join(available, "`, `"))
		}
	}

	h.sendMarkdown(chatID, text)
	h.sessions.setAwaiting(chatID, categoryChannel)
}

// promptRoles shows current and available role subscriptions and asks for a
// name to toggle.
func (h *Handlers) promptRoles(chatID int64) {
	text := "Enter a role name to toggle notifications for mentions of that role. `@everyone` is always accepted."

	if current, err := h.store.GetRoles(chatID); err == nil && len(current) > 0 {
		text += fmt.Sprintf("\n\nYour roles: `%s`", strings.Join(current, "`, `"))
	}

	if guildID := h.subscriberGuild(chatID); guildID != "" && h.dcClient != nil {
		if available, err := h.dcClient.GuildRoleNames(guildID); err == nil && len(available) > 0 {
			text += fmt.Sprintf("\n\nAvailable: `%s`", strings.Join(available, "`, `"))
		}
	}

	h.sendMarkdown(chatID, text)
	h.sessions.setAwaiting(chatID, categoryRole)
}

// handleReply stores the answer to the prompt the chat was given.
func (h *Handlers) handleReply(msg *tgbotapi.Message, category string) {
	if msg.Text == buttonDone {
		h.handleDone(msg)
		return
	}

	switch category {
	case categoryHandle:
		h.receivedHandle(msg)
	case categoryChannel:
		h.receivedChannel(msg)
	case categoryRole:
		h.receivedRole(msg)
	case categoryGuild:
		h.receivedGuild(msg)
	}
}

// receivedHandle validates and stores the Discord username.
func (h *Handlers) receivedHandle(msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	handle := strings.TrimSpace(msg.Text)

	if handle == "" || strings.ContainsAny(handle, " \n") {
		h.sendReply(chatID, "That doesn't look like a Discord username, please try again.")
		return
	}

	// Validate against the guild if the gateway is connected
	if guildID := h.subscriberGuild(chatID); guildID != "" && h.dcClient != nil {
		found, err := h.dcClient.FindMember(guildID, handle)
		if err != nil {
			h.sendReply(chatID, "Could not verify that username right now, please try again later.")
			logger.Error().Err(err).Str("handle", handle).Msg("Failed to search member")
			return
		}
		if !found {
			h.sendReply(chatID, fmt.Sprintf("I could not find `%s` on your Discord server. Please check the spelling.", handle))
			return
		}
	}

	if err := h.store.SetHandle(chatID, handle); err != nil {
		h.sendReply(chatID, "Failed to save your handle, please try again later.")
		logger.Error().Err(err).Int64("chat_id", chatID).Msg("Failed to set handle")
		return
	}

	h.refreshSubscriberGauge()
	h.confirmAndReturnToMenu(chatID)
}

// receivedChannel toggles a channel on the whitelist.
func (h *Handlers) receivedChannel(msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	channel := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(msg.Text), "#"))

	if channel == "" {
		h.sendReply(chatID, "Please enter a channel name.")
		return
	}

	// Toggle off if already whitelisted
	err := h.store.RemoveChannel(chatID, channel)
	switch {
	case err == nil:
		h.sendReply(chatID, fmt.Sprintf("Removed `%s` from your channel list.", channel))
		h.confirmAndReturnToMenu(chatID)
		return
	case !errors.Is(err, storage.ErrNotFound):
		h.sendReply(chatID, "Failed to update your channel list, please try again later.")
		logger.Error().Err(err).Int64("chat_id", chatID).Msg("Failed to remove channel")
		return
	}

	if guildID := h.subscriberGuild(chatID); guildID != "" && h.dcClient != nil {
		available, err := h.dcClient.GuildTextChannels(guildID, h.cfg.Discord.ChannelCategories)
		if err == nil && !containsFold(available, channel) {
			h.sendReply(chatID, fmt.Sprintf("There is no channel `%s` on your Discord server.", channel))
			return
		}
	}

	if err := h.store.AddChannel(chatID, channel); err != nil {
		h.sendReply(chatID, "Failed to save the channel, please try again later.")
		logger.Error().Err(err).Int64("chat_id", chatID).Msg("Failed to add channel")
		return
	}

	h.confirmAndReturnToMenu(chatID)
}

// receivedRole toggles a role subscription.
func (h *Handlers) receivedRole(msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	role := strings.TrimSpace(msg.Text)

	if role == "" {
		h.sendReply(chatID, "Please enter a role name.")
		return
	}

	// Toggle off if already subscribed
	err := h.store.RemoveRole(chatID, role)
	switch {
	case err == nil:
		h.refreshSubscriberGauge()
		h.sendReply(chatID, fmt.Sprintf("Removed `%s` from your roles.", role))
		h.confirmAndReturnToMenu(chatID)
		return
	case !errors.Is(err, storage.ErrNotFound):
		h.sendReply(chatID, "Failed to update your roles, please try again later.")
		logger.Error().Err(err).Int64("chat_id", chatID).Msg("Failed to remove role")
		return
	}

	if role != storage.EveryoneRole {
		if guildID := h.subscriberGuild(chatID); guildID != "" && h.dcClient != nil {
			available, err := h.dcClient.GuildRoleNames(guildID)
			if err == nil && !containsFold(available, role) {
				h.sendReply(chatID, fmt.Sprintf("There is no role `%s` on your Discord server.", role))
				return
			}
		}
	}

	if err := h.store.AddRole(chatID, role); err != nil {
		h.sendReply(chatID, "Failed to save the role, please try again later.")
		logger.Error().Err(err).Int64("chat_id", chatID).Msg("Failed to add role")
		return
	}

	h.refreshSubscriberGauge()
	h.confirmAndReturnToMenu(chatID)
}

// receivedGuild validates and stores the guild ID.
func (h *Handlers) receivedGuild(msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	guildID := strings.TrimSpace(msg.Text)

	if !isDigits(guildID) {
		h.sendReply(chatID, "A server ID is a long number. Please try again.")
		return
	}

	if h.dcClient != nil {
		ok, err := h.dcClient.ValidateGuild(guildID)
		if err != nil {
			h.sendReply(chatID, "Could not verify that server right now, please try again later.")
			logger.Error().Err(err).Str("guild_id", guildID).Msg("Failed to validate guild")
			return
		}
		if !ok {
			h.sendReply(chatID, "I am not a member of that server, so I cannot listen there. Please invite me first.")
			return
		}
	}

	if err := h.store.SetGuild(chatID, guildID); err != nil {
		h.sendReply(chatID, "Failed to save the server, please try again later.")
		logger.Error().Err(err).Int64("chat_id", chatID).Msg("Failed to set guild")
		return
	}

	h.confirmAndReturnToMenu(chatID)
}

// confirmAndReturnToMenu shows the stored data and puts the chat back at the
// menu.
func (h *Handlers) confirmAndReturnToMenu(chatID int64) {
	summary, _ := h.dataSummary(chatID)
	h.sendWithKeyboard(chatID, fmt.Sprintf("Success! Your data so far:\n%s\nHit /menu to edit.", summary))
	h.sessions.setChoosing(chatID)
}

// handleDeleteData wipes everything stored for the chat.
func (h *Handlers) handleDeleteData(msg *tgbotapi.Message) {
	chatID := msg.Chat.ID

	sub, err := h.store.GetSubscriber(chatID)
	if err == nil && (sub == nil || (sub.DiscordHandle == "" && !h.hasRolesOrChannels(chatID))) {
		h.sendReply(chatID, "There's nothing here to be deleted yet! Back to /menu")
		h.sessions.clear(chatID)
		return
	}

	if err := h.store.DeleteSubscriber(chatID); err != nil {
		h.sendReply(chatID, "Failed to delete your data, please try again later.")
		logger.Error().Err(err).Int64("chat_id", chatID).Msg("Failed to delete subscriber")
		return
	}

	h.refreshSubscriberGauge()
	h.sessions.clear(chatID)
	h.sendRemoveKeyboard(chatID, "Data successfully wiped!")
}

// handleDone closes the menu.
func (h *Handlers) handleDone(msg *tgbotapi.Message) {
	summary, configured := h.dataSummary(msg.Chat.ID)
	text := "Hit /menu whenever you want to change your settings."
	if configured {
		text = fmt.Sprintf("Your data so far:\n%s\nHit /menu to edit.", summary)
	}
	h.sessions.clear(msg.Chat.ID)
	h.sendRemoveKeyboard(msg.Chat.ID, text)
}

// handleHelp sends help information.
func (h *Handlers) handleHelp(msg *tgbotapi.Message) {
	h.sendMarkdown(msg.Chat.ID, helpText)
}

// handleShowData displays the gathered info.
func (h *Handlers) handleShowData(msg *tgbotapi.Message) {
	summary, configured := h.dataSummary(msg.Chat.ID)
	if !configured {
		h.sendReply(msg.Chat.ID, "I don't know anything about you yet. Hit /menu to get started.")
		return
	}
	h.sendMarkdown(msg.Chat.ID, fmt.Sprintf("This is what you already told me:\n%s", summary))
}

// handleStatus shows bot status information.
func (h *Handlers) handleStatus(msg *tgbotapi.Message) {
	uptime := formatDuration(time.Since(h.startTime))

	subscriberCount, err := h.store.CountSubscribers()
	if err != nil {
		subscriberCount = 0
	}

	gateway := "disconnected"
	if h.dcClient != nil && h.dcClient.Username() != "" {
		gateway = fmt.Sprintf("connected as %s", h.dcClient.Username())
	}

	handles, _ := h.store.ListHandles()
	roleNames, _ := h.store.ListRoleNames()

	text := fmt.Sprintf(`📊 *Bot status*

⏱️ Uptime: %s
📡 Discord gateway: %s
👥 Subscribers: %d
👀 Watching: %d handles, %d roles
`, uptime, gateway, subscriberCount, len(handles), len(roleNames))

	h.sendMarkdown(msg.Chat.ID, text)
}

// handleAnnounce broadcasts a message to all subscribers. Admin only.
func (h *Handlers) handleAnnounce(msg *tgbotapi.Message, args string) {
	if h.cfg.Telegram.AdminChatID == 0 || msg.Chat.ID != h.cfg.Telegram.AdminChatID {
		h.sendReply(msg.Chat.ID, "Unknown command. Use /help to see what I can do.")
		return
	}
	if h.broadcaster == nil {
		return
	}
	if strings.TrimSpace(args) == "" {
		h.sendReply(msg.Chat.ID, "Usage: `/announce <text>`")
		return
	}

	sent, err := h.broadcaster.Broadcast(args)
	if err != nil {
		h.sendReply(msg.Chat.ID, "Broadcast failed.")
		logger.Error().Err(err).Msg("Failed to broadcast")
		return
	}
	h.sendReply(msg.Chat.ID, fmt.Sprintf("Announcement sent to %d subscribers.", sent))
}

// subscriberGuild returns the guild configured for a chat, or "".
func (h *Handlers) subscriberGuild(chatID int64) string {
	sub, err := h.store.GetSubscriber(chatID)
	if err != nil || sub == nil {
		return ""
	}
	return sub.GuildID
}

func (h *Handlers) hasRolesOrChannels(chatID int64) bool {
	if roles, err := h.store.GetRoles(chatID); err == nil && len(roles) > 0 {
		return true
	}
	if channels, err := h.store.GetChannels(chatID); err == nil && len(channels) > 0 {
		return true
	}
	return false
}

// dataSummary renders the non-empty settings of a chat. The second return
// value reports whether anything is configured yet.
func (h *Handlers) dataSummary(chatID int64) (string, bool) {
	sub, err := h.store.GetSubscriber(chatID)
	if err != nil || sub == nil {
		return "", false
	}

	roles, _ := h.store.GetRoles(chatID)
	channels, _ := h.store.GetChannels(chatID)

	guildName := sub.GuildID
	if sub.GuildID != "" && h.dcClient != nil {
		guildName = h.dcClient.GuildName(sub.GuildID)
	}

	return formatUserData(sub, guildName, roles, channels)
}

// refreshSubscriberGauge updates the subscriber metric after registry writes.
func (h *Handlers) refreshSubscriberGauge() {
	count, err := h.store.CountSubscribers()
	if err != nil {
		return
	}
	metrics.Subscribers.Set(float64(count))
}

// sendReply sends a simple text reply.
func (h *Handlers) sendReply(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	if _, err := h.api.Send(msg); err != nil {
		logger.Error().Err(err).Msg("Failed to send reply")
	}
}

// sendMarkdown sends a markdown-formatted message.
func (h *Handlers) sendMarkdown(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	msg.DisableWebPagePreview = true
	if _, err := h.api.Send(msg); err != nil {
		logger.Error().Err(err).Msg("Failed to send markdown message")
	}
}

// sendWithKeyboard sends a message with the onboarding menu keyboard.
func (h *Handlers) sendWithKeyboard(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = menuKeyboard()
	if _, err := h.api.Send(msg); err != nil {
		logger.Error().Err(err).Msg("Failed to send menu")
	}
}

// sendRemoveKeyboard sends a message and hides the menu keyboard.
func (h *Handlers) sendRemoveKeyboard(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = tgbotapi.NewRemoveKeyboard(false)
	if _, err := h.api.Send(msg); err != nil {
		logger.Error().Err(err).Msg("Failed to send reply")
	}
}

func containsFold(list []string, value string) bool {
	for _, s := range list {
		if strings.EqualFold(s, value) {
			return true
		}
	}
	return false
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
