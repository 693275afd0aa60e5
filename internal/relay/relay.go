// Package relay matches Discord messages against the subscriber registry
// and forwards notifications to Telegram.
package relay

import (
	"fmt"
	"strings"

	"github.com/user/mentionbot/internal/discord"
	"github.com/user/mentionbot/internal/metrics"
	"github.com/user/mentionbot/internal/storage"
	"github.com/user/mentionbot/pkg/logger"
)

// Sender delivers a Markdown-formatted message to a Telegram chat.
type Sender interface {
	SendMarkdown(chatID int64, text string) error
}

// Relay forwards matched mentions to Telegram chats.
type Relay struct {
	sender Sender
	store  *storage.SubscriberStore
}

// New creates a new relay.
func New(sender Sender, store *storage.SubscriberStore) *Relay {
	return &Relay{
		sender: sender,
		store:  store,
	}
}

// notification is one pending Telegram message for a matched subscriber.
type notification struct {
	chatID int64
	text   string
}

// HandleMessage matches one observed Discord message against the registry
// and sends at most one notification per subscriber.
func (r *Relay) HandleMessage(event *discord.MessageEvent) error {
	pending, err := r.match(event)
	if err != nil {
		return err
	}

	for _, n := range pending {
		// Dedup across handle/role overlap and gateway replays
		fresh, err := r.store.RecordRelay(n.chatID, event.MessageID)
		if err != nil {
			logger.Warn().Err(err).Int64("chat_id", n.chatID).Msg("Failed to record relay")
		} else if !fresh {
			metrics.NotificationsDeduplicated.Inc()
			logger.Debug().
				Int64("chat_id", n.chatID).
				Str("message_id", event.MessageID).
				Msg("Message already relayed, skipping")
			continue
		}

		if err := r.sender.SendMarkdown(n.chatID, n.text); err != nil {
			metrics.NotificationsFailed.Inc()
			logger.Error().
				Err(err).
				Int64("chat_id", n.chatID).
				Msg("Failed to send notification")
			// Continue sending to other subscribers
			continue
		}
		metrics.NotificationsSent.Inc()
	}

	return nil
}

// match computes the pending notifications for a message. Each chat appears
// at most once; a handle match takes precedence over a role match.
func (r *Relay) match(event *discord.MessageEvent) ([]notification, error) {
	var pending []notification
	matched := make(map[int64]bool)

	// Handle mentions: explicit mention list or plain-text occurrence
	handles, err := r.store.ListHandles()
	if err != nil {
		return nil, fmt.Errorf("failed to list handles: %w", err)
	}

	for _, handle := range handles {
		if !matchesHandle(event, handle) {
			continue
		}
		metrics.MentionsMatched.WithLabelValues("handle").Inc()

		subs, err := r.store.GetSubscribersByHandle(handle)
		if err != nil {
			logger.Error().Err(err).Str("handle", handle).Msg("Failed to get subscribers")
			continue
		}
		text := event.FormatHandleMessage()
		for _, sub := range subs {
			if matched[sub.ChatID] {
				continue
			}
			ok, err := r.eligible(sub, event)
			if err != nil {
				logger.Warn().Err(err).Int64("chat_id", sub.ChatID).Msg("Failed to check eligibility")
				continue
			}
			if ok {
				matched[sub.ChatID] = true
				pending = append(pending, notification{chatID: sub.ChatID, text: text})
			}
		}
	}

	// Role mentions, with @everyone treated as a role
	roles := event.MentionedRoles
	if event.MentionsEveryone {
		roles = append(roles, storage.EveryoneRole)
	}

	for _, role := range roles {
		kind := "role"
		if role == storage.EveryoneRole {
			kind = "everyone"
		}

		subs, err := r.store.GetSubscribersByRole(role)
		if err != nil {
			logger.Error().Err(err).Str("role", role).Msg("Failed to get role subscribers")
			continue
		}
		if len(subs) == 0 {
			continue
		}
		metrics.MentionsMatched.WithLabelValues(kind).Inc()

		text := event.FormatRoleMessage(role)
		for _, sub := range subs {
			if matched[sub.ChatID] {
				continue
			}
			ok, err := r.eligible(sub, event)
			if err != nil {
				logger.Warn().Err(err).Int64("chat_id", sub.ChatID).Msg("Failed to check eligibility")
				continue
			}
			if ok {
				matched[sub.ChatID] = true
				pending = append(pending, notification{chatID: sub.ChatID, text: text})
			}
		}
	}

	return pending, nil
}

// matchesHandle reports whether a registered handle appears in the message's
// mention list or, case-insensitively, in its text.
func matchesHandle(event *discord.MessageEvent, handle string) bool {
	for _, username := range event.MentionedUsers {
		if strings.EqualFold(username, handle) {
			return true
		}
	}
	return strings.Contains(strings.ToLower(event.Content), strings.ToLower(handle))
}

// eligible checks the subscriber's guild setting and channel whitelist.
func (r *Relay) eligible(sub storage.Subscriber, event *discord.MessageEvent) (bool, error) {
	if sub.GuildID != event.GuildID {
		return false, nil
	}

	channels, err := r.store.GetChannels(sub.ChatID)
	if err != nil {
		return false, err
	}
	// Empty whitelist means all channels
	if len(channels) == 0 {
		return true, nil
	}
	for _, name := range channels {
		if strings.EqualFold(name, event.ChannelName) {
			return true, nil
		}
	}
	return false, nil
}

// Broadcast sends a message to every onboarded subscriber.
func (r *Relay) Broadcast(text string) (int, error) {
	chats, err := r.store.ListNotifiableChats()
	if err != nil {
		return 0, fmt.Errorf("failed to list subscribers: %w", err)
	}

	sent := 0
	for _, chatID := range chats {
		if err := r.sender.SendMarkdown(chatID, text); err != nil {
			logger.Error().Err(err).Int64("chat_id", chatID).Msg("Failed to send broadcast")
			continue
		}
		sent++
	}
	return sent, nil
}
