package storage

import (
	"errors"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *SubscriberStore {
	t.Helper()

	db, err := NewDatabase(filepath.Join(t.TempDir(), "relay.db"))
	if err != nil {
		t.Fatalf("failed to create database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return NewSubscriberStore(db)
}

func mustCreateSubscriber(t *testing.T, s *SubscriberStore, chatID int64) {
	t.Helper()
	if err := s.CreateOrUpdateSubscriber(chatID, "private", "Test User"); err != nil {
		t.Fatalf("failed to create subscriber: %v", err)
	}
}

func TestSubscriberLifecycle(t *testing.T) {
	s := newTestStore(t)

	t.Run("missing subscriber is nil", func(t *testing.T) {
		sub, err := s.GetSubscriber(404)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if sub != nil {
			t.Errorf("expected nil, got %+v", sub)
		}
	})

	t.Run("create and update keeps settings", func(t *testing.T) {
		mustCreateSubscriber(t, s, 1)
		if err := s.SetHandle(1, "alice_discord"); err != nil {
			t.Fatalf("failed to set handle: %v", err)
		}
		if err := s.SetGuild(1, "123456789"); err != nil {
			t.Fatalf("failed to set guild: %v", err)
		}

		// Re-upsert must not wipe handle or guild
		if err := s.CreateOrUpdateSubscriber(1, "private", "Renamed User"); err != nil {
			t.Fatalf("failed to upsert: %v", err)
		}

		sub, err := s.GetSubscriber(1)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if sub.Title != "Renamed User" {
			t.Errorf("title not updated: %q", sub.Title)
		}
		if sub.DiscordHandle != "alice_discord" || sub.GuildID != "123456789" {
			t.Errorf("settings lost on upsert: %+v", sub)
		}
	})

	t.Run("set handle on unknown chat", func(t *testing.T) {
		if err := s.SetHandle(404, "nobody"); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestHandleLookup(t *testing.T) {
	s := newTestStore(t)

	mustCreateSubscriber(t, s, 1)
	mustCreateSubscriber(t, s, 2)
	mustCreateSubscriber(t, s, 3)

	if err := s.SetHandle(1, "Alice_Discord"); err != nil {
		t.Fatal(err)
	}
	if err := s.SetHandle(2, "alice_discord"); err != nil {
		t.Fatal(err)
	}
	if err := s.SetHandle(3, "bob"); err != nil {
		t.Fatal(err)
	}

	subs, err := s.GetSubscribersByHandle("ALICE_DISCORD")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(subs) != 2 {
		t.Fatalf("expected 2 case-insensitive matches, got %d", len(subs))
	}

	handles, err := s.ListHandles()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(handles) != 3 {
		t.Errorf("expected 3 distinct handles, got %v", handles)
	}
}

func TestRolesAndChannels(t *testing.T) {
	s := newTestStore(t)
	mustCreateSubscriber(t, s, 1)

	if err := s.AddRole(1, "moderators"); err != nil {
		t.Fatal(err)
	}
	if err := s.AddRole(1, EveryoneRole); err != nil {
		t.Fatal(err)
	}
	// Duplicate add is a no-op
	if err := s.AddRole(1, "moderators"); err != nil {
		t.Fatal(err)
	}

	roles, err := s.GetRoles(1)
	if err != nil {
		t.Fatal(err)
	}
	if len(roles) != 2 {
		t.Errorf("expected 2 roles, got %v", roles)
	}

	subs, err := s.GetSubscribersByRole("Moderators")
	if err != nil {
		t.Fatal(err)
	}
	if len(subs) != 1 || subs[0].ChatID != 1 {
		t.Errorf("role lookup failed: %+v", subs)
	}

	if err := s.RemoveRole(1, "moderators"); err != nil {
		t.Fatalf("failed to remove role: %v", err)
	}
	if err := s.RemoveRole(1, "moderators"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound on second removal, got %v", err)
	}

	if err := s.AddChannel(1, "general"); err != nil {
		t.Fatal(err)
	}
	channels, err := s.GetChannels(1)
	if err != nil {
		t.Fatal(err)
	}
	if len(channels) != 1 || channels[0] != "general" {
		t.Errorf("unexpected channels: %v", channels)
	}
	if err := s.RemoveChannel(1, "GENERAL"); err != nil {
		t.Errorf("case-insensitive removal failed: %v", err)
	}
}

func TestListRoleNames(t *testing.T) {
	s := newTestStore(t)
	mustCreateSubscriber(t, s, 1)
	mustCreateSubscriber(t, s, 2)

	if err := s.AddRole(1, "moderators"); err != nil {
		t.Fatal(err)
	}
	if err := s.AddRole(1, "announcements"); err != nil {
		t.Fatal(err)
	}
	// Same role on another chat must not produce a duplicate
	if err := s.AddRole(2, "moderators"); err != nil {
		t.Fatal(err)
	}

	names, err := s.ListRoleNames()
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 2 || names[0] != "announcements" || names[1] != "moderators" {
		t.Errorf("expected distinct sorted role names, got %v", names)
	}
}

func TestDeleteSubscriberWipesEverything(t *testing.T) {
	s := newTestStore(t)
	mustCreateSubscriber(t, s, 1)

	if err := s.SetHandle(1, "alice"); err != nil {
		t.Fatal(err)
	}
	if err := s.AddRole(1, "moderators"); err != nil {
		t.Fatal(err)
	}
	if err := s.AddChannel(1, "general"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.RecordRelay(1, "msg-1"); err != nil {
		t.Fatal(err)
	}

	if err := s.DeleteSubscriber(1); err != nil {
		t.Fatalf("failed to delete: %v", err)
	}

	sub, err := s.GetSubscriber(1)
	if err != nil || sub != nil {
		t.Errorf("subscriber still present: %+v, err=%v", sub, err)
	}
	roles, _ := s.GetRoles(1)
	if len(roles) != 0 {
		t.Errorf("roles not wiped: %v", roles)
	}
	channels, _ := s.GetChannels(1)
	if len(channels) != 0 {
		t.Errorf("channels not wiped: %v", channels)
	}

	// Relay record is gone, so the same message relays again after re-onboarding
	mustCreateSubscriber(t, s, 1)
	fresh, err := s.RecordRelay(1, "msg-1")
	if err != nil {
		t.Fatal(err)
	}
	if !fresh {
		t.Error("relay record survived data deletion")
	}
}

func TestRelayRecords(t *testing.T) {
	s := newTestStore(t)
	mustCreateSubscriber(t, s, 1)

	fresh, err := s.RecordRelay(1, "msg-1")
	if err != nil {
		t.Fatal(err)
	}
	if !fresh {
		t.Error("first record should be fresh")
	}

	fresh, err = s.RecordRelay(1, "msg-1")
	if err != nil {
		t.Fatal(err)
	}
	if fresh {
		t.Error("second record should be deduplicated")
	}

	// A different chat relaying the same message is independent
	mustCreateSubscriber(t, s, 2)
	fresh, err = s.RecordRelay(2, "msg-1")
	if err != nil {
		t.Fatal(err)
	}
	if !fresh {
		t.Error("record for other chat should be fresh")
	}
}

func TestCleanupOldRelayRecords(t *testing.T) {
	s := newTestStore(t)
	mustCreateSubscriber(t, s, 1)

	// One aged record, one current
	if _, err := s.db.Exec(
		`INSERT INTO relay_records (chat_id, message_id, created_at) VALUES (1, 'old', datetime('now', '-40 days'))`,
	); err != nil {
		t.Fatal(err)
	}
	if _, err := s.RecordRelay(1, "new"); err != nil {
		t.Fatal(err)
	}

	removed, err := s.CleanupOldRelayRecords(30)
	if err != nil {
		t.Fatalf("cleanup failed: %v", err)
	}
	if removed != 1 {
		t.Errorf("expected 1 removed record, got %d", removed)
	}

	fresh, err := s.RecordRelay(1, "old")
	if err != nil {
		t.Fatal(err)
	}
	if !fresh {
		t.Error("pruned record should allow relaying again")
	}
}

func TestCountSubscribers(t *testing.T) {
	s := newTestStore(t)

	mustCreateSubscriber(t, s, 1) // handle only
	mustCreateSubscriber(t, s, 2) // role only
	mustCreateSubscriber(t, s, 3) // nothing yet

	if err := s.SetHandle(1, "alice"); err != nil {
		t.Fatal(err)
	}
	if err := s.AddRole(2, "moderators"); err != nil {
		t.Fatal(err)
	}

	count, err := s.CountSubscribers()
	if err != nil {
		t.Fatal(err)
	}
	if count != 2 {
		t.Errorf("expected 2 onboarded subscribers, got %d", count)
	}

	chats, err := s.ListNotifiableChats()
	if err != nil {
		t.Fatal(err)
	}
	if len(chats) != 2 {
		t.Errorf("expected 2 notifiable chats, got %v", chats)
	}
}
