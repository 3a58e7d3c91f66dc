// Package auth holds the join policy of the room: operator and whitelist
// key sets and the ban table. It knows nothing about sessions; the room
// engine consults it and acts on the verdict.
package auth

import (
	"errors"
	"sync"
	"time"
)

var (
	ErrBanned         = errors.New("access denied: banned")
	ErrNotWhitelisted = errors.New("access denied: not on whitelist")
)

// BanEntry describes one active ban. A zero Until means permanent.
type BanEntry struct {
	Fingerprint string
	Until       time.Time
}

// Auth is the policy state shared by the server and the room engine.
type Auth struct {
	Ops       *KeySet
	Whitelist *KeySet

	mu          sync.Mutex
	whitelistOn bool
	bans        map[string]time.Time
}

func New() *Auth {
	return &Auth{
		Ops:       NewKeySet(),
		Whitelist: NewKeySet(),
		bans:      make(map[string]time.Time),
	}
}

// CheckJoin decides whether a fingerprint may enter the room. Expired bans
// are purged as a side effect.
func (a *Auth) CheckJoin(fingerprint string) error {
	a.mu.Lock()
	a.pruneBans()
	_, banned := a.bans[fingerprint]
	on := a.whitelistOn
	a.mu.Unlock()

	if banned {
		return ErrBanned
	}
	if on && !a.Whitelist.Contains(fingerprint) {
		return ErrNotWhitelisted
	}
	return nil
}

// Ban adds a fingerprint to the ban table. d <= 0 means permanent.
func (a *Auth) Ban(fingerprint string, d time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if d <= 0 {
		a.bans[fingerprint] = time.Time{}
		return
	}
	a.bans[fingerprint] = time.Now().Add(d)
}

func (a *Auth) Unban(fingerprint string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.bans, fingerprint)
}

// Bans lists the active bans, purging expired entries first.
func (a *Auth) Bans() []BanEntry {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.pruneBans()
	out := make([]BanEntry, 0, len(a.bans))
	for fp, until := range a.bans {
		out = append(out, BanEntry{Fingerprint: fp, Until: until})
	}
	return out
}

// pruneBans drops expired entries. Callers hold a.mu.
func (a *Auth) pruneBans() {
	now := time.Now()
	for fp, until := range a.bans {
		if !until.IsZero() && until.Before(now) {
			delete(a.bans, fp)
		}
	}
}

func (a *Auth) SetWhitelistMode(on bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.whitelistOn = on
}

func (a *Auth) WhitelistMode() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.whitelistOn
}

// IsOp reports whether the fingerprint belongs to an operator.
func (a *Auth) IsOp(fingerprint string) bool {
	return a.Ops.Contains(fingerprint)
}
