package chat

import (
	"fmt"
	"io"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/mevdschee/chatd/internal/auth"
	"github.com/mevdschee/chatd/internal/message"
)

const maxNameLen = 24

// Room owns all shared chat state. Every mutation happens under one lock;
// the critical sections only move events onto per-session queues, never
// touch the network.
type Room struct {
	auth *auth.Auth

	mu        sync.Mutex
	members   map[string]*Session // fingerprint -> session
	names     map[string]string   // display name -> fingerprint
	history   *message.History
	motd      string
	createdAt time.Time

	// transcript receives one line per room-wide event when --log is set.
	transcript io.Writer
}

func NewRoom(motd string, a *auth.Auth) *Room {
	return &Room{
		auth:      a,
		members:   make(map[string]*Session),
		names:     make(map[string]string),
		history:   message.NewHistory(),
		motd:      motd,
		createdAt: time.Now(),
	}
}

// SetTranscript directs a copy of public room traffic to w.
func (r *Room) SetTranscript(w io.Writer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transcript = w
}

func (r *Room) Motd() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.motd
}

func (r *Room) SetMotd(motd string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.motd = motd
}

func (r *Room) Uptime() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return time.Since(r.createdAt).Round(time.Second)
}

func (r *Room) Auth() *auth.Auth {
	return r.auth
}

// Join admits a session to the room: policy check, eviction of a previous
// session holding the same key, name uniquification, join announcement,
// then MOTD and history replay to the newcomer only. On error the caller
// reports the reason to the client and closes the channel.
func (r *Room) Join(s *Session) error {
	fp := s.User.Fingerprint
	if err := r.auth.CheckJoin(fp); err != nil {
		return err
	}

	r.mu.Lock()
	old := r.members[fp]
	if old != nil {
		delete(r.names, old.User.Name())
		delete(r.members, fp)
	}

	name := r.uniqueName(sanitizeName(s.User.Name()))
	s.User.SetName(name)
	s.User.SetOp(r.auth.IsOp(fp))
	r.members[fp] = s
	r.names[name] = fp

	r.broadcast(message.NewAnnounce(fmt.Sprintf("%s joined. (Connected: %d)", name, len(r.members))), "")

	s.Enqueue(message.NewSystem(r.motd))
	for _, ev := range r.history.All() {
		s.Enqueue(ev)
	}
	r.mu.Unlock()

	if old != nil {
		old.Close("replaced by new connection")
	}
	return nil
}

// Leave removes the session from the room if it is still the registered
// session for its fingerprint. A session evicted by a newer connection or
// a kick has already been removed and leaves silently.
func (r *Room) Leave(s *Session) {
	fp := s.User.Fingerprint

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.members[fp] != s {
		return
	}
	name := s.User.Name()
	r.removeLocked(s)

	after := time.Since(s.User.JoinedAt).Round(time.Second)
	r.broadcast(message.NewAnnounce(fmt.Sprintf("%s left. (After %s)", name, after)), "")
}

// removeLocked takes a member out of the room and scrubs its fingerprint
// from every remaining member's ignore and focus sets. All departure paths
// (leave, kick, ban, stalled output) go through here. Callers hold r.mu.
func (r *Room) removeLocked(s *Session) {
	fp := s.User.Fingerprint
	delete(r.members, fp)
	delete(r.names, s.User.Name())
	for _, m := range r.members {
		m.User.Unignore(fp)
		m.User.Unfocus(fp)
	}
}

// SendPublic delivers a chat line from the given member to the room.
// Mute and the rate limit are enforced here, before any event exists.
func (r *Room) SendPublic(fp, text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.members[fp]
	if s == nil {
		return
	}
	if !r.allowSend(s) {
		return
	}
	ev := message.NewPublic(message.Author{Name: s.User.Name(), Fingerprint: fp}, text)
	r.history.Push(ev)
	r.broadcast(ev, fp)
}

// SendEmote delivers a /me action line.
func (r *Room) SendEmote(fp, text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.members[fp]
	if s == nil {
		return
	}
	if !r.allowSend(s) {
		return
	}
	ev := message.NewEmote(message.Author{Name: s.User.Name(), Fingerprint: fp}, text)
	r.history.Push(ev)
	r.broadcast(ev, fp)
}

// SendPrivate routes a private message by recipient name. The sender
// always receives an echo; the recipient's reply target is updated.
func (r *Room) SendPrivate(fromFp, toName, text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	from := r.members[fromFp]
	if from == nil {
		return
	}
	toFp, ok := r.names[toName]
	if !ok {
		r.enqueue(from, message.NewError("unknown user: "+toName))
		return
	}
	if !r.allowSend(from) {
		return
	}
	to := r.members[toFp]

	ev := message.NewPrivate(
		message.Author{Name: from.User.Name(), Fingerprint: fromFp},
		message.Author{Name: to.User.Name(), Fingerprint: toFp},
		text,
	)
	r.enqueue(from, ev)
	if toFp == fromFp {
		return
	}
	if !to.User.Ignores(fromFp) {
		r.enqueue(to, ev)
		to.User.SetReplyTo(fromFp)
	}
	if away, reason := to.User.Away(); away {
		note := to.User.Name() + " is away"
		if reason != "" {
			note += ": " + reason
		}
		r.enqueue(from, message.NewSystem(note))
	}
}

// Rename changes a member's display name. Unlike the join-time
// uniquification, a collision here is rejected outright.
func (r *Room) Rename(fp, newName string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.members[fp]
	if s == nil {
		return
	}
	clean := sanitizeName(newName)
	if clean == "" || clean != newName {
		r.enqueue(s, message.NewError("invalid name: "+newName))
		return
	}
	if owner, taken := r.names[clean]; taken {
		if owner != fp {
			r.enqueue(s, message.NewError("name taken"))
		}
		return
	}
	oldName := s.User.Name()
	delete(r.names, oldName)
	r.names[clean] = fp
	s.User.SetName(clean)
	r.broadcast(message.NewAnnounce(fmt.Sprintf("%s is now known as %s", oldName, clean)), "")
}

// Names lists the current display names in sorted order.
func (r *Room) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.names))
	for name := range r.names {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// MemberCount returns the number of connected members.
func (r *Room) MemberCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.members)
}

// Lookup resolves a display name to its session.
func (r *Room) Lookup(name string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fp, ok := r.names[name]
	if !ok {
		return nil, false
	}
	return r.members[fp], true
}

// LookupFp resolves a fingerprint to its session.
func (r *Room) LookupFp(fp string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.members[fp]
	return s, ok
}

// Announce emits a room-wide announcement on behalf of a member action
// (away, back, name changes driven by commands).
func (r *Room) Announce(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.broadcast(message.NewAnnounce(text), "")
}

// SyncOps refreshes every member's operator flag from the oplist, after
// the list was edited or reloaded from disk.
func (r *Room) SyncOps() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for fp, m := range r.members {
		m.User.SetOp(r.auth.IsOp(fp))
	}
}

// Mute toggles the operator-set mute flag on a member and returns the new
// state. The target is informed.
func (r *Room) Mute(targetName string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fp, ok := r.names[targetName]
	if !ok {
		return false, fmt.Errorf("unknown user: %s", targetName)
	}
	target := r.members[fp]
	muted := target.User.ToggleMute()
	if muted {
		r.enqueue(target, message.NewSystem("you have been muted"))
	} else {
		r.enqueue(target, message.NewSystem("you have been unmuted"))
	}
	return muted, nil
}

// Kick disconnects a member. The removal happens here so the later Leave
// from the dying session is a no-op; the room announces the kick instead
// of a regular departure.
func (r *Room) Kick(targetName, reason string) error {
	r.mu.Lock()
	fp, ok := r.names[targetName]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("unknown user: %s", targetName)
	}
	target := r.members[fp]
	r.removeLocked(target)
	r.broadcast(message.NewAnnounce(fmt.Sprintf("%s was kicked", targetName)), "")
	r.mu.Unlock()

	target.Close(reason)
	return nil
}

// BanMember bans a member's fingerprint and disconnects them. d <= 0 is
// permanent.
func (r *Room) BanMember(targetName string, d time.Duration) error {
	r.mu.Lock()
	fp, ok := r.names[targetName]
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("unknown user: %s", targetName)
	}
	r.auth.Ban(fp, d)
	return r.Kick(targetName, "you have been banned")
}

// allowSend enforces mute and the token bucket for any outgoing message.
// Callers hold r.mu.
func (r *Room) allowSend(s *Session) bool {
	if s.User.Muted() {
		r.enqueue(s, message.NewError("you are muted and cannot send messages"))
		return false
	}
	if !s.User.AllowSend() {
		r.enqueue(s, message.NewError("rate limit exceeded"))
		return false
	}
	return true
}

// broadcast fans an event out to every member per the delivery policy.
// Callers hold r.mu.
func (r *Room) broadcast(ev *message.Event, senderFp string) {
	r.logEvent(ev)
	for fp, m := range r.members {
		if fp == senderFp {
			// The sender always receives their own echo.
			r.enqueue(m, ev)
			continue
		}
		switch ev.Type {
		case message.Announce:
			if m.User.Prefs().Quiet {
				continue
			}
		case message.Public, message.Emote:
			if m.User.Prefs().Quiet {
				continue
			}
			if m.User.Ignores(senderFp) {
				continue
			}
			if !m.User.InFocus(senderFp) {
				continue
			}
		}
		r.enqueue(m, ev)
	}
}

// enqueue hands an event to one session, disconnecting it when its queue
// has filled. The disconnect happens off the room lock.
func (r *Room) enqueue(s *Session, ev *message.Event) {
	if s.Enqueue(ev) {
		return
	}
	r.removeLocked(s)
	go s.Close("output stalled")
}

func (r *Room) logEvent(ev *message.Event) {
	if r.transcript == nil {
		return
	}
	var from string
	if ev.From.Name != "" {
		from = ev.From.Name + ": "
	}
	fmt.Fprintf(r.transcript, "%s %s%s\n", ev.Time.Format(time.RFC3339), from, ev.Text)
}

// uniqueName allocates a free display name, suffixing a counter when the
// requested one is taken. A login name that sanitizes to nothing gets a
// random guest handle. Callers hold r.mu.
func (r *Room) uniqueName(name string) string {
	if name == "" {
		name = fmt.Sprintf("guest%04d", rand.Intn(10000))
	}
	if _, taken := r.names[name]; !taken {
		return name
	}
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s%d", name, i)
		if _, taken := r.names[candidate]; !taken {
			return candidate
		}
	}
}

// sanitizeName strips everything but printable, non-space characters and
// truncates to the name length limit.
func sanitizeName(name string) string {
	var b strings.Builder
	n := 0
	for _, r := range name {
		if !unicode.IsPrint(r) || unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(r)
		n++
		if n == maxNameLen {
			break
		}
	}
	return b.String()
}
