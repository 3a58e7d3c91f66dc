package user

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// TimestampMode selects how rendered events are prefixed for a user.
type TimestampMode string

const (
	TimestampOff      TimestampMode = "off"
	TimestampTime     TimestampMode = "time"
	TimestampDatetime TimestampMode = "datetime"
)

// ParseTimestampMode validates a mode string (used for the /timestamp
// command and the CHATD_TIMESTAMP environment variable).
func ParseTimestampMode(s string) (TimestampMode, bool) {
	switch TimestampMode(s) {
	case TimestampOff, TimestampTime, TimestampDatetime:
		return TimestampMode(s), true
	}
	return "", false
}

// Prefs are the per-user display preferences. They are owned by the user's
// session and only mutated through room operations.
type Prefs struct {
	Theme     string
	Timestamp TimestampMode
	Quiet     bool
	Bell      bool
}

// Message sends refill at 1 token/sec with a burst of 4.
const (
	sendRate  rate.Limit = 1
	sendBurst            = 4
)

// User is a connected identity. The fingerprint is derived from the SSH
// public key and is the primary key; the display name is unique within the
// room but may change.
type User struct {
	Fingerprint string
	JoinedAt    time.Time

	mu         sync.Mutex
	name       string
	prefs      Prefs
	replyTo    string
	ignored    map[string]bool
	focused    map[string]bool
	muted      bool
	op         bool
	away       bool
	awayReason string

	limiter *rate.Limiter
}

func New(fingerprint, name string) *User {
	return &User{
		Fingerprint: fingerprint,
		JoinedAt:    time.Now(),
		name:        name,
		prefs:       Prefs{Theme: "colors", Timestamp: TimestampOff},
		ignored:     make(map[string]bool),
		focused:     make(map[string]bool),
		limiter:     rate.NewLimiter(sendRate, sendBurst),
	}
}

func (u *User) Name() string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.name
}

func (u *User) SetName(name string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.name = name
}

func (u *User) Prefs() Prefs {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.prefs
}

func (u *User) SetPrefs(p Prefs) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.prefs = p
}

// ReplyTo returns the fingerprint of the last user who sent a private
// message to this user.
func (u *User) ReplyTo() string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.replyTo
}

func (u *User) SetReplyTo(fingerprint string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.replyTo = fingerprint
}

func (u *User) Ignore(fingerprint string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.ignored[fingerprint] = true
}

func (u *User) Unignore(fingerprint string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	delete(u.ignored, fingerprint)
}

func (u *User) Ignores(fingerprint string) bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.ignored[fingerprint]
}

func (u *User) Ignored() []string {
	u.mu.Lock()
	defer u.mu.Unlock()
	out := make([]string, 0, len(u.ignored))
	for fp := range u.ignored {
		out = append(out, fp)
	}
	return out
}

// Focus restricts delivery to the given sender. An empty focus set means
// no restriction.
func (u *User) Focus(fingerprint string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.focused[fingerprint] = true
}

func (u *User) Unfocus(fingerprint string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	delete(u.focused, fingerprint)
}

func (u *User) ClearFocus() {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.focused = make(map[string]bool)
}

func (u *User) Focused() []string {
	u.mu.Lock()
	defer u.mu.Unlock()
	out := make([]string, 0, len(u.focused))
	for fp := range u.focused {
		out = append(out, fp)
	}
	return out
}

// InFocus reports whether messages from the given sender pass the focus
// filter.
func (u *User) InFocus(fingerprint string) bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.focused) == 0 || u.focused[fingerprint]
}

func (u *User) Muted() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.muted
}

// ToggleMute flips the operator-set mute flag and returns the new state.
func (u *User) ToggleMute() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.muted = !u.muted
	return u.muted
}

func (u *User) IsOp() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.op
}

func (u *User) SetOp(op bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.op = op
}

func (u *User) SetAway(reason string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.away = true
	u.awayReason = reason
}

func (u *User) SetBack() {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.away = false
	u.awayReason = ""
}

func (u *User) Away() (bool, string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.away, u.awayReason
}

// AllowSend consumes one token from the user's send budget. It returns
// false when the rate limit is exceeded; the engine then drops the send.
func (u *User) AllowSend() bool {
	return u.limiter.Allow()
}
