package discord

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func testEvent() *MessageEvent {
	return &MessageEvent{
		MessageID:     "333",
		GuildID:       "111",
		GuildName:     "Gopher Server",
		ChannelID:     "222",
		ChannelName:   "general",
		Author:        "bob",
		AuthorDisplay: "Bob",
		Content:       "hey @alice, can you take a look?",
	}
}

func TestJumpURL(t *testing.T) {
	e := testEvent()
	want := "https://discord.com/channels/111/222/333"
	if got := e.JumpURL(); got != want {
		t.Errorf("JumpURL() = %q, want %q", got, want)
	}
}

func TestFormatHandleMessage(t *testing.T) {
	e := testEvent()
	msg := e.FormatHandleMessage()

	for _, want := range []string{"Gopher Server", "Bob", "#general", e.JumpURL(), "hey @alice"} {
		if !strings.Contains(msg, want) {
			t.Errorf("message missing %q:\n%s", want, msg)
		}
	}
}

func TestFormatRoleMessage(t *testing.T) {
	e := testEvent()
	msg := e.FormatRoleMessage("moderators")

	if !strings.Contains(msg, "moderators mentioned by Bob") {
		t.Errorf("unexpected role header:\n%s", msg)
	}
}

func TestFormatEscapesContent(t *testing.T) {
	e := testEvent()
	e.Content = "watch out for *bold* and _sneaky_ [links](x)"

	msg := e.FormatHandleMessage()
	for _, want := range []string{`\*bold\*`, `\_sneaky\_`, `\[links\]`} {
		if !strings.Contains(msg, want) {
			t.Errorf("content not escaped, missing %q:\n%s", want, msg)
		}
	}
}

func TestFormatEscapesChannelName(t *testing.T) {
	e := testEvent()
	e.ChannelName = "dev_talk"

	for _, msg := range []string{e.FormatHandleMessage(), e.FormatRoleMessage("moderators")} {
		if !strings.Contains(msg, `#dev\_talk`) {
			t.Errorf("channel name not escaped:\n%s", msg)
		}
	}
}

func TestTruncateString(t *testing.T) {
	tests := []struct {
		in     string
		maxLen int
		want   string
	}{
		{"short", 10, "short"},
		{"exactly10!", 10, "exactly10!"},
		{"this is too long", 10, "this is..."},
	}

	for _, tt := range tests {
		if got := truncateString(tt.in, tt.maxLen); got != tt.want {
			t.Errorf("truncateString(%q, %d) = %q, want %q", tt.in, tt.maxLen, got, tt.want)
		}
	}
}

func TestTruncateKeepsRunesIntact(t *testing.T) {
	// "é" is two bytes, so every cut point inside the repeated run lands in
	// the middle of a rune unless truncation backs up to a boundary.
	in := strings.Repeat("é", maxContentLen)

	got := truncateString(in, maxContentLen)
	if !utf8.ValidString(got) {
		t.Fatal("truncated string is not valid UTF-8")
	}
	if len(got) > maxContentLen {
		t.Errorf("truncated string too long: %d bytes", len(got))
	}
	if !strings.HasSuffix(got, "...") {
		t.Error("truncated string should end with ellipsis")
	}

	e := testEvent()
	e.Content = in
	if msg := e.FormatHandleMessage(); !utf8.ValidString(msg) {
		t.Error("formatted message is not valid UTF-8")
	}
}

func TestLongContentIsTruncated(t *testing.T) {
	e := testEvent()
	e.Content = strings.Repeat("a", maxContentLen+500)

	msg := e.FormatHandleMessage()
	if len(msg) > maxContentLen+500 {
		t.Errorf("message not truncated, len = %d", len(msg))
	}
	if !strings.HasSuffix(msg, "...") {
		t.Error("truncated message should end with ellipsis")
	}
}
