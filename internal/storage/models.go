// Package storage provides database operations and data models.
package storage

import "time"

// Subscriber links a Telegram chat to the Discord identity it wants
// notifications for. The handle and guild are empty until onboarding sets
// them.
type Subscriber struct {
	ID            int64     `db:"id"`
	ChatID        int64     `db:"chat_id"`
	ChatType      string    `db:"chat_type"` // private, group, supergroup, channel
	Title         string    `db:"title"`
	DiscordHandle string    `db:"discord_handle"`
	GuildID       string    `db:"guild_id"`
	CreatedAt     time.Time `db:"created_at"`
	UpdatedAt     time.Time `db:"updated_at"`
}

// RoleSubscription subscribes a chat to mentions of a Discord role.
// The role name "@everyone" covers @everyone / @here style mentions.
type RoleSubscription struct {
	ID        int64     `db:"id"`
	ChatID    int64     `db:"chat_id"`
	RoleName  string    `db:"role_name"`
	CreatedAt time.Time `db:"created_at"`
}

// ChannelFilter whitelists a Discord channel for a chat. A chat with no
// filters receives mentions from every channel of its guild.
type ChannelFilter struct {
	ID          int64     `db:"id"`
	ChatID      int64     `db:"chat_id"`
	ChannelName string    `db:"channel_name"`
	CreatedAt   time.Time `db:"created_at"`
}

// RelayRecord marks a Discord message as already relayed to a chat.
type RelayRecord struct {
	ID        int64     `db:"id"`
	ChatID    int64     `db:"chat_id"`
	MessageID string    `db:"message_id"`
	CreatedAt time.Time `db:"created_at"`
}

// EveryoneRole is the pseudo role name matching @everyone mentions.
const EveryoneRole = "@everyone"
