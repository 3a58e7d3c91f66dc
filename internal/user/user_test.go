package user

import (
	"testing"
)

func TestParseTimestampMode(t *testing.T) {
	for _, s := range []string{"off", "time", "datetime"} {
		if _, ok := ParseTimestampMode(s); !ok {
			t.Errorf("ParseTimestampMode(%q) rejected", s)
		}
	}
	if _, ok := ParseTimestampMode("always"); ok {
		t.Error("ParseTimestampMode accepted an invalid mode")
	}
}

func TestRateLimitBurst(t *testing.T) {
	u := New("SHA256:test", "alice")
	allowed := 0
	for i := 0; i < 10; i++ {
		if u.AllowSend() {
			allowed++
		}
	}
	if allowed != 4 {
		t.Errorf("burst allowed %d sends, want 4", allowed)
	}
}

func TestIgnoreSet(t *testing.T) {
	u := New("SHA256:a", "alice")
	if u.Ignores("SHA256:b") {
		t.Fatal("fresh user ignores someone")
	}
	u.Ignore("SHA256:b")
	if !u.Ignores("SHA256:b") {
		t.Error("Ignore did not stick")
	}
	if got := u.Ignored(); len(got) != 1 || got[0] != "SHA256:b" {
		t.Errorf("Ignored = %v", got)
	}
	u.Unignore("SHA256:b")
	if u.Ignores("SHA256:b") {
		t.Error("Unignore did not stick")
	}
}

func TestFocusFilter(t *testing.T) {
	u := New("SHA256:a", "alice")
	// Empty focus set passes everyone.
	if !u.InFocus("SHA256:b") || !u.InFocus("SHA256:c") {
		t.Fatal("empty focus set should not filter")
	}
	u.Focus("SHA256:b")
	if !u.InFocus("SHA256:b") {
		t.Error("focused sender filtered out")
	}
	if u.InFocus("SHA256:c") {
		t.Error("unfocused sender passed the filter")
	}
	u.ClearFocus()
	if !u.InFocus("SHA256:c") {
		t.Error("ClearFocus did not restore delivery")
	}
}

func TestMuteToggle(t *testing.T) {
	u := New("SHA256:a", "alice")
	if u.Muted() {
		t.Fatal("fresh user is muted")
	}
	if !u.ToggleMute() {
		t.Error("first toggle should mute")
	}
	if u.ToggleMute() {
		t.Error("second toggle should unmute")
	}
}

func TestAway(t *testing.T) {
	u := New("SHA256:a", "alice")
	u.SetAway("lunch")
	away, reason := u.Away()
	if !away || reason != "lunch" {
		t.Errorf("Away = %v, %q", away, reason)
	}
	u.SetBack()
	if away, _ := u.Away(); away {
		t.Error("SetBack did not clear away")
	}
}
