package telegram

import (
	"strings"
	"testing"
	"time"

	"github.com/user/mentionbot/internal/storage"
)

func TestFormatUserData(t *testing.T) {
	t.Run("empty subscriber", func(t *testing.T) {
		sub := &storage.Subscriber{ChatID: 1}
		text, configured := formatUserData(sub, "", nil, nil)
		if configured {
			t.Error("empty subscriber reported as configured")
		}
		if text != "" {
			t.Errorf("expected empty summary, got %q", text)
		}
	})

	t.Run("only non-empty values are shown", func(t *testing.T) {
		sub := &storage.Subscriber{
			ChatID:        1,
			DiscordHandle: "alice",
			GuildID:       "123",
		}
		text, configured := formatUserData(sub, "Gopher Server", nil, []string{"general", "dev-talk"})
		if !configured {
			t.Fatal("expected configured")
		}

		for _, want := range []string{"Discord handle - alice", "Discord guild - Gopher Server", "Discord channels - general, dev-talk"} {
			if !strings.Contains(text, want) {
				t.Errorf("summary missing %q:\n%s", want, text)
			}
		}
		if strings.Contains(text, "Discord roles") {
			t.Errorf("empty roles shown:\n%s", text)
		}
	})
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{42 * time.Second, "42s"},
		{3*time.Minute + 5*time.Second, "3m 5s"},
		{2*time.Hour + 30*time.Minute, "2h 30m"},
		{26 * time.Hour, "1d 2h 0m"},
	}

	for _, tt := range tests {
		if got := formatDuration(tt.d); got != tt.want {
			t.Errorf("formatDuration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestMenuKeyboard(t *testing.T) {
	markup := menuKeyboard()

	if !markup.OneTimeKeyboard {
		t.Error("menu keyboard should be one-time")
	}
	if len(markup.Keyboard) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(markup.Keyboard))
	}

	var labels []string
	for _, row := range markup.Keyboard {
		for _, btn := range row {
			labels = append(labels, btn.Text)
		}
	}
	for _, want := range []string{buttonHandle, buttonChannels, buttonRoles, buttonGuild, buttonDelete, buttonDone} {
		found := false
		for _, l := range labels {
			if l == want {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("keyboard missing button %q", want)
		}
	}
}
