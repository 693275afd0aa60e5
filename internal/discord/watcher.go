package discord

import (
	"context"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/user/mentionbot/internal/metrics"
	"github.com/user/mentionbot/pkg/logger"
)

// Watcher listens for guild messages on the gateway and converts them into
// MessageEvents for the relay.
type Watcher struct {
	client   *Client
	eventsCh chan<- *MessageEvent

	removeHandler func()
	ctx           context.Context
	cancel        context.CancelFunc
	wg            sync.WaitGroup
}

// NewWatcher creates a new gateway watcher.
func NewWatcher(client *Client, eventsCh chan<- *MessageEvent) *Watcher {
	ctx, cancel := context.WithCancel(context.Background())
	return &Watcher{
		client:   client,
		eventsCh: eventsCh,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start registers the message handler. The session must be opened by the
// caller.
func (w *Watcher) Start() {
	w.removeHandler = w.client.Session().AddHandler(w.handleMessageCreate)
	logger.Info().Msg("Discord watcher started, listening for messages")
}

// Stop unregisters the message handler and waits for in-flight handler
// invocations to finish before returning.
func (w *Watcher) Stop() {
	logger.Info().Msg("Stopping Discord watcher")
	if w.removeHandler != nil {
		w.removeHandler()
		w.removeHandler = nil
	}
	w.cancel()
	w.wg.Wait()
}

// handleMessageCreate runs on a gateway goroutine; it must never block, so
// events are handed off through the buffered channel and dropped on overflow.
func (w *Watcher) handleMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	w.wg.Add(1)
	defer w.wg.Done()

	select {
	case <-w.ctx.Done():
		return
	default:
	}

	if m.Author == nil || m.Author.Bot {
		return
	}
	// Direct messages have no guild and are never relayed
	if m.GuildID == "" {
		return
	}

	metrics.MessagesSeen.Inc()

	event := w.buildEvent(s, m)

	select {
	case w.eventsCh <- event:
		logger.Debug().
			Str("guild", event.GuildName).
			Str("channel", event.ChannelName).
			Str("author", event.Author).
			Msg("Message observed")
	default:
		logger.Warn().Str("message_id", m.ID).Msg("Event channel full, dropping message")
	}
}

// buildEvent extracts the relay-relevant fields from a gateway message.
func (w *Watcher) buildEvent(s *discordgo.Session, m *discordgo.MessageCreate) *MessageEvent {
	event := &MessageEvent{
		MessageID:        m.ID,
		GuildID:          m.GuildID,
		GuildName:        m.GuildID,
		ChannelID:        m.ChannelID,
		ChannelName:      m.ChannelID,
		Author:           m.Author.Username,
		AuthorDisplay:    m.Author.Username,
		Content:          m.Content,
		MentionsEveryone: m.MentionEveryone,
	}

	if m.Member != nil && m.Member.Nick != "" {
		event.AuthorDisplay = m.Member.Nick
	}

	for _, u := range m.Mentions {
		if u != nil {
			event.MentionedUsers = append(event.MentionedUsers, u.Username)
		}
	}

	guild, err := s.State.Guild(m.GuildID)
	if err != nil {
		logger.Debug().Err(err).Str("guild_id", m.GuildID).Msg("Guild not in state cache")
		guild = nil
	}
	if guild != nil {
		event.GuildName = guild.Name
		event.MentionedRoles = resolveRoleNames(guild, m.MentionRoles)
	}

	if channel, err := s.State.Channel(m.ChannelID); err == nil {
		event.ChannelName = channel.Name
	}

	return event
}

// resolveRoleNames maps mentioned role IDs to role names.
func resolveRoleNames(guild *discordgo.Guild, roleIDs []string) []string {
	if len(roleIDs) == 0 {
		return nil
	}

	byID := make(map[string]string, len(guild.Roles))
	for _, r := range guild.Roles {
		byID[r.ID] = r.Name
	}

	var names []string
	for _, id := range roleIDs {
		if name, ok := byID[id]; ok {
			names = append(names, name)
		}
	}
	return names
}
