package chat

import (
	"crypto/ed25519"
	"crypto/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/crypto/ssh"

	"github.com/mevdschee/chatd/internal/auth"
	"github.com/mevdschee/chatd/internal/message"
)

func TestDispatchUnknownCommand(t *testing.T) {
	r := newTestRoom()
	alice := join(t, r, "alice")
	Dispatch(r, alice, "/frobnicate")
	if ev := findEvent(drain(alice), message.Error, "unknown command: /frobnicate"); ev == nil {
		t.Error("no error for unknown command")
	}
}

func TestDispatchOpOnlyDenied(t *testing.T) {
	r := newTestRoom()
	alice := join(t, r, "alice")
	join(t, r, "bob")
	drain(alice)

	Dispatch(r, alice, "/kick bob")
	if ev := findEvent(drain(alice), message.Error, "permission denied"); ev == nil {
		t.Error("non-op ran an operator command")
	}
	if r.MemberCount() != 2 {
		t.Error("kick went through without privileges")
	}
}

func TestDispatchCaseInsensitive(t *testing.T) {
	r := newTestRoom()
	alice := join(t, r, "alice")
	Dispatch(r, alice, "/NAMES")
	if ev := findEvent(drain(alice), message.System, "1 connected: alice"); ev == nil {
		t.Error("uppercase command not recognized")
	}
}

func TestHelpHidesOpCommands(t *testing.T) {
	r := newTestRoom()
	alice := join(t, r, "alice")

	Dispatch(r, alice, "/help")
	plain := findEvent(drain(alice), message.System, "available commands")
	if plain == nil {
		t.Fatal("no help output")
	}
	if strings.Contains(plain.Text, "/kick") {
		t.Error("operator command shown to regular user")
	}

	alice.User.SetOp(true)
	Dispatch(r, alice, "/help")
	op := findEvent(drain(alice), message.System, "available commands")
	if !strings.Contains(op.Text, "/kick") || !strings.Contains(op.Text, "/ban") {
		t.Error("operator commands missing from operator help")
	}
}

func TestNickCommand(t *testing.T) {
	r := newTestRoom()
	alice := join(t, r, "alice")
	Dispatch(r, alice, "/nick alicia")
	if alice.User.Name() != "alicia" {
		t.Errorf("name = %q, want alicia", alice.User.Name())
	}

	Dispatch(r, alice, "/nick")
	if ev := findEvent(drain(alice), message.Error, "usage: /nick"); ev == nil {
		t.Error("no usage error for missing argument")
	}
}

func TestMsgAndReplyCommands(t *testing.T) {
	r := newTestRoom()
	alice := join(t, r, "alice")
	bob := join(t, r, "bob")
	drain(alice)

	Dispatch(r, alice, "/msg bob multi word message")
	pm := findEvent(drain(bob), message.Private, "multi word message")
	if pm == nil {
		t.Fatal("/msg did not deliver")
	}

	Dispatch(r, bob, "/reply got it")
	if ev := findEvent(drain(alice), message.Private, "got it"); ev == nil {
		t.Error("/reply did not reach the original sender")
	}

	carol := join(t, r, "carol")
	Dispatch(r, carol, "/reply hello?")
	if ev := findEvent(drain(carol), message.Error, "no one to reply to"); ev == nil {
		t.Error("/reply without a prior PM should fail")
	}
}

func TestMeCommand(t *testing.T) {
	r := newTestRoom()
	alice := join(t, r, "alice")
	bob := join(t, r, "bob")
	drain(alice)

	Dispatch(r, alice, "/me waves enthusiastically")
	ev := findEvent(drain(bob), message.Emote, "waves enthusiastically")
	if ev == nil {
		t.Fatal("/me did not deliver")
	}
	if ev.From.Name != "alice" {
		t.Errorf("From = %+v", ev.From)
	}
}

func TestThemeCommand(t *testing.T) {
	r := newTestRoom()
	alice := join(t, r, "alice")

	Dispatch(r, alice, "/theme hacker")
	if got := alice.User.Prefs().Theme; got != "hacker" {
		t.Errorf("theme = %q, want hacker", got)
	}

	Dispatch(r, alice, "/theme nope")
	if ev := findEvent(drain(alice), message.Error, "unknown theme"); ev == nil {
		t.Error("invalid theme accepted")
	}

	Dispatch(r, alice, "/theme list")
	if ev := findEvent(drain(alice), message.System, "themes:"); ev == nil {
		t.Error("/theme list produced nothing")
	}
}

func TestTimestampCommand(t *testing.T) {
	r := newTestRoom()
	alice := join(t, r, "alice")

	Dispatch(r, alice, "/timestamp time")
	if got := alice.User.Prefs().Timestamp; got != "time" {
		t.Errorf("timestamp = %q, want time", got)
	}
	Dispatch(r, alice, "/timestamp never")
	if ev := findEvent(drain(alice), message.Error, "invalid mode"); ev == nil {
		t.Error("invalid mode accepted")
	}
}

func TestIgnoreCommands(t *testing.T) {
	r := newTestRoom()
	alice := join(t, r, "alice")
	bob := join(t, r, "bob")
	drain(alice)

	Dispatch(r, alice, "/ignore")
	if ev := findEvent(drain(alice), message.System, "not ignoring anyone"); ev == nil {
		t.Error("empty ignore list not reported")
	}

	Dispatch(r, alice, "/ignore bob")
	if !alice.User.Ignores(bob.User.Fingerprint) {
		t.Error("/ignore did not stick")
	}

	Dispatch(r, alice, "/ignore alice")
	if ev := findEvent(drain(alice), message.Error, "cannot ignore yourself"); ev == nil {
		t.Error("self-ignore accepted")
	}

	Dispatch(r, alice, "/unignore bob")
	if alice.User.Ignores(bob.User.Fingerprint) {
		t.Error("/unignore did not stick")
	}
}

func TestFocusCommands(t *testing.T) {
	r := newTestRoom()
	alice := join(t, r, "alice")
	bob := join(t, r, "bob")
	drain(alice)

	Dispatch(r, alice, "/focus bob")
	if !alice.User.InFocus(bob.User.Fingerprint) {
		t.Error("/focus did not stick")
	}
	Dispatch(r, alice, "/focus $")
	if len(alice.User.Focused()) != 0 {
		t.Error("/focus $ did not clear")
	}
}

func TestAwayCommands(t *testing.T) {
	r := newTestRoom()
	alice := join(t, r, "alice")
	bob := join(t, r, "bob")
	drain(bob)

	Dispatch(r, alice, "/away grabbing coffee")
	if away, reason := alice.User.Away(); !away || reason != "grabbing coffee" {
		t.Errorf("away = %v, %q", away, reason)
	}
	if ev := findEvent(drain(bob), message.Announce, "alice has gone away: grabbing coffee"); ev == nil {
		t.Error("away announce missing")
	}

	Dispatch(r, alice, "/back")
	if away, _ := alice.User.Away(); away {
		t.Error("/back did not clear away")
	}
	if ev := findEvent(drain(bob), message.Announce, "alice is back"); ev == nil {
		t.Error("back announce missing")
	}

	// /back when not away stays silent.
	Dispatch(r, alice, "/back")
	if ev := findEvent(drain(bob), message.Announce, "alice is back"); ev != nil {
		t.Error("redundant /back announced")
	}
}

func TestWhoisCommand(t *testing.T) {
	r := newTestRoom()
	alice := join(t, r, "alice")
	join(t, r, "bob")
	drain(alice)

	Dispatch(r, alice, "/whois bob")
	ev := findEvent(drain(alice), message.System, "bob: fingerprint "+fpOf("bob"))
	if ev == nil {
		t.Error("/whois output missing")
	}
}

func TestQuitCommand(t *testing.T) {
	r := newTestRoom()
	alice := join(t, r, "alice")
	Dispatch(r, alice, "/quit")
	select {
	case <-alice.Done():
	default:
		t.Error("/quit did not close the session")
	}

	bob := join(t, r, "bob")
	Dispatch(r, bob, "/exit")
	select {
	case <-bob.Done():
	default:
		t.Error("/exit alias did not close the session")
	}
}

func TestOperatorCommands(t *testing.T) {
	r := newTestRoom()
	op := join(t, r, "op")
	op.User.SetOp(true)
	bob := join(t, r, "bob")
	drain(op)

	t.Run("mute", func(t *testing.T) {
		Dispatch(r, op, "/mute bob")
		if !bob.User.Muted() {
			t.Error("/mute did not stick")
		}
		Dispatch(r, op, "/mute bob")
		if bob.User.Muted() {
			t.Error("second /mute did not unmute")
		}
	})

	t.Run("oplist add", func(t *testing.T) {
		Dispatch(r, op, "/oplist add bob")
		if !bob.User.IsOp() {
			t.Error("oplist add did not promote the live session")
		}
		if !r.Auth().IsOp(bob.User.Fingerprint) {
			t.Error("oplist add did not update the key set")
		}
		Dispatch(r, op, "/oplist remove bob")
		if bob.User.IsOp() {
			t.Error("oplist remove did not demote the live session")
		}
	})

	t.Run("whitelist toggle", func(t *testing.T) {
		Dispatch(r, op, "/whitelist on")
		if !r.Auth().WhitelistMode() {
			t.Error("whitelist not enabled")
		}
		Dispatch(r, op, "/whitelist off")
		if r.Auth().WhitelistMode() {
			t.Error("whitelist not disabled")
		}
	})

	t.Run("ban with bad duration", func(t *testing.T) {
		Dispatch(r, op, "/ban bob forever")
		if ev := findEvent(drain(op), message.Error, "invalid duration"); ev == nil {
			t.Error("bad duration accepted")
		}
	})

	t.Run("banlist empty", func(t *testing.T) {
		Dispatch(r, op, "/banlist")
		if ev := findEvent(drain(op), message.System, "no active bans"); ev == nil {
			t.Error("empty banlist not reported")
		}
	})
}

func TestOplistLoadRefreshesLiveOps(t *testing.T) {
	r := newTestRoom()
	op := join(t, r, "op")
	r.Auth().Ops.Add(op.User.Fingerprint)
	op.User.SetOp(true)
	bob := join(t, r, "bob")
	r.Auth().Ops.Add(bob.User.Fingerprint)
	bob.User.SetOp(true)

	pub, _, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("Failed to generate key: %v", err)
	}
	sshPub, err := ssh.NewPublicKey(pub)
	if err != nil {
		t.Fatalf("Failed to wrap key: %v", err)
	}
	path := filepath.Join(t.TempDir(), "ops")
	if err := os.WriteFile(path, ssh.MarshalAuthorizedKey(sshPub), 0o600); err != nil {
		t.Fatalf("Failed to write key file: %v", err)
	}

	Dispatch(r, op, "/oplist load "+path+" replace")

	if !r.Auth().IsOp(auth.Fingerprint(sshPub)) {
		t.Error("loaded key not in the operator set")
	}
	if bob.User.IsOp() {
		t.Error("replace load left a live member promoted")
	}
	if op.User.IsOp() {
		t.Error("replace load did not demote the issuing operator")
	}
}
