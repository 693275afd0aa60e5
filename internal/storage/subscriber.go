package storage

import (
	"database/sql"
	"errors"
	"strings"
)

// ErrNotFound is returned when a requested registry row does not exist.
var ErrNotFound = errors.New("not found")

// SubscriberStore handles registry-related database operations.
type SubscriberStore struct {
	db *Database
}

// NewSubscriberStore creates a new subscriber store.
func NewSubscriberStore(db *Database) *SubscriberStore {
	return &SubscriberStore{db: db}
}

// CreateOrUpdateSubscriber creates or refreshes the row for a Telegram chat.
// Handle and guild settings of an existing row are left untouched.
func (s *SubscriberStore) CreateOrUpdateSubscriber(chatID int64, chatType, title string) error {
	query := `
		INSERT INTO subscribers (chat_id, chat_type, title)
		VALUES (?, ?, ?)
		ON CONFLICT(chat_id) DO UPDATE SET
			chat_type = excluded.chat_type,
			title = excluded.title,
			updated_at = CURRENT_TIMESTAMP
	`
	_, err := s.db.Exec(query, chatID, chatType, title)
	return err
}

// SetHandle stores the Discord handle a chat wants mention notifications for.
func (s *SubscriberStore) SetHandle(chatID int64, handle string) error {
	return s.updateField(chatID, "discord_handle", strings.TrimSpace(handle))
}

// SetGuild stores the Discord guild a chat listens to.
func (s *SubscriberStore) SetGuild(chatID int64, guildID string) error {
	return s.updateField(chatID, "guild_id", strings.TrimSpace(guildID))
}

func (s *SubscriberStore) updateField(chatID int64, column, value string) error {
	query := `UPDATE subscribers SET ` + column + ` = ?, updated_at = CURRENT_TIMESTAMP WHERE chat_id = ?`
	result, err := s.db.Exec(query, value, chatID)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// GetSubscriber returns the registry row for a chat, or nil if none exists.
func (s *SubscriberStore) GetSubscriber(chatID int64) (*Subscriber, error) {
	var sub Subscriber
	query := `SELECT * FROM subscribers WHERE chat_id = ?`
	err := s.db.Get(&sub, query, chatID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return &sub, err
}

// GetSubscribersByHandle returns all chats registered for a Discord handle.
// Matching is case-insensitive.
func (s *SubscriberStore) GetSubscribersByHandle(handle string) ([]Subscriber, error) {
	var subs []Subscriber
	query := `SELECT * FROM subscribers WHERE discord_handle = ? COLLATE NOCASE`
	err := s.db.Select(&subs, query, handle)
	return subs, err
}

// GetSubscribersByRole returns all chats subscribed to a Discord role name.
func (s *SubscriberStore) GetSubscribersByRole(roleName string) ([]Subscriber, error) {
	var subs []Subscriber
	query := `
		SELECT s.* FROM subscribers s
		JOIN role_subscriptions r ON r.chat_id = s.chat_id
		WHERE r.role_name = ? COLLATE NOCASE
	`
	err := s.db.Select(&subs, query, roleName)
	return subs, err
}

// ListHandles returns all distinct non-empty registered handles.
func (s *SubscriberStore) ListHandles() ([]string, error) {
	var handles []string
	query := `SELECT DISTINCT discord_handle FROM subscribers WHERE discord_handle != ''`
	err := s.db.Select(&handles, query)
	return handles, err
}

// ListRoleNames returns all distinct role names any chat is subscribed to.
func (s *SubscriberStore) ListRoleNames() ([]string, error) {
	var names []string
	query := `SELECT DISTINCT role_name FROM role_subscriptions ORDER BY role_name`
	err := s.db.Select(&names, query)
	return names, err
}

// AddRole subscribes a chat to mentions of a role.
func (s *SubscriberStore) AddRole(chatID int64, roleName string) error {
	query := `INSERT OR IGNORE INTO role_subscriptions (chat_id, role_name) VALUES (?, ?)`
	_, err := s.db.Exec(query, chatID, strings.TrimSpace(roleName))
	return err
}

// RemoveRole drops a role subscription.
func (s *SubscriberStore) RemoveRole(chatID int64, roleName string) error {
	query := `DELETE FROM role_subscriptions WHERE chat_id = ? AND role_name = ? COLLATE NOCASE`
	result, err := s.db.Exec(query, chatID, roleName)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// GetRoles returns the role names a chat is subscribed to.
func (s *SubscriberStore) GetRoles(chatID int64) ([]string, error) {
	var roles []string
	query := `SELECT role_name FROM role_subscriptions WHERE chat_id = ? ORDER BY role_name`
	err := s.db.Select(&roles, query, chatID)
	return roles, err
}

// AddChannel whitelists a channel for a chat.
func (s *SubscriberStore) AddChannel(chatID int64, channelName string) error {
	query := `INSERT OR IGNORE INTO channel_filters (chat_id, channel_name) VALUES (?, ?)`
	_, err := s.db.Exec(query, chatID, strings.TrimSpace(channelName))
	return err
}

// RemoveChannel drops a channel from the whitelist.
func (s *SubscriberStore) RemoveChannel(chatID int64, channelName string) error {
	query := `DELETE FROM channel_filters WHERE chat_id = ? AND channel_name = ? COLLATE NOCASE`
	result, err := s.db.Exec(query, chatID, channelName)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// GetChannels returns the channel whitelist for a chat. Empty means all
// channels.
func (s *SubscriberStore) GetChannels(chatID int64) ([]string, error) {
	var channels []string
	query := `SELECT channel_name FROM channel_filters WHERE chat_id = ? ORDER BY channel_name`
	err := s.db.Select(&channels, query, chatID)
	return channels, err
}

// DeleteSubscriber wipes everything stored for a chat in one transaction.
func (s *SubscriberStore) DeleteSubscriber(chatID int64) error {
	tx, err := s.db.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, query := range []string{
		`DELETE FROM relay_records WHERE chat_id = ?`,
		`DELETE FROM channel_filters WHERE chat_id = ?`,
		`DELETE FROM role_subscriptions WHERE chat_id = ?`,
		`DELETE FROM subscribers WHERE chat_id = ?`,
	} {
		if _, err := tx.Exec(query, chatID); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// RecordRelay marks a Discord message as relayed to a chat. It returns true
// when the record is new, false when the message was already relayed.
func (s *SubscriberStore) RecordRelay(chatID int64, messageID string) (bool, error) {
	query := `INSERT OR IGNORE INTO relay_records (chat_id, message_id) VALUES (?, ?)`
	result, err := s.db.Exec(query, chatID, messageID)
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

// CleanupOldRelayRecords removes dedup records older than the retention
// window to prevent database bloat.
func (s *SubscriberStore) CleanupOldRelayRecords(daysToKeep int) (int64, error) {
	query := `DELETE FROM relay_records WHERE created_at < datetime('now', '-' || ? || ' days')`
	result, err := s.db.Exec(query, daysToKeep)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// CountSubscribers returns the number of chats that completed onboarding
// (registered a handle or at least one role).
func (s *SubscriberStore) CountSubscribers() (int, error) {
	var count int
	query := `
		SELECT COUNT(*) FROM subscribers
		WHERE discord_handle != ''
		   OR chat_id IN (SELECT chat_id FROM role_subscriptions)
	`
	err := s.db.Get(&count, query)
	return count, err
}

// ListNotifiableChats returns the chat IDs of every onboarded subscriber,
// used for admin broadcasts.
func (s *SubscriberStore) ListNotifiableChats() ([]int64, error) {
	var ids []int64
	query := `
		SELECT chat_id FROM subscribers
		WHERE discord_handle != ''
		   OR chat_id IN (SELECT chat_id FROM role_subscriptions)
	`
	err := s.db.Select(&ids, query)
	return ids, err
}
