package auth

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"golang.org/x/crypto/ssh"
)

// Fingerprint derives the stable identity string for a public key, in the
// OpenSSH SHA256:base64 form.
func Fingerprint(key ssh.PublicKey) string {
	return ssh.FingerprintSHA256(key)
}

// KeySet is a mutable set of key fingerprints, loadable from files of
// OpenSSH-format public keys (one per line, blank lines and # comments
// ignored).
type KeySet struct {
	mu  sync.RWMutex
	fps map[string]bool
}

func NewKeySet() *KeySet {
	return &KeySet{fps: make(map[string]bool)}
}

func (ks *KeySet) Add(fingerprint string) {
	ks.mu.Lock()
	defer ks.mu.Unlock()
	ks.fps[fingerprint] = true
}

func (ks *KeySet) Remove(fingerprint string) {
	ks.mu.Lock()
	defer ks.mu.Unlock()
	delete(ks.fps, fingerprint)
}

func (ks *KeySet) Contains(fingerprint string) bool {
	ks.mu.RLock()
	defer ks.mu.RUnlock()
	return ks.fps[fingerprint]
}

func (ks *KeySet) Len() int {
	ks.mu.RLock()
	defer ks.mu.RUnlock()
	return len(ks.fps)
}

func (ks *KeySet) All() []string {
	ks.mu.RLock()
	defer ks.mu.RUnlock()
	out := make([]string, 0, len(ks.fps))
	for fp := range ks.fps {
		out = append(out, fp)
	}
	return out
}

// LoadFile reads an authorized_keys-style file and either merges its
// fingerprints into the set or replaces the set's contents.
func (ks *KeySet) LoadFile(path string, replace bool) (int, error) {
	fps, err := ReadKeyFile(path)
	if err != nil {
		return 0, err
	}
	ks.mu.Lock()
	defer ks.mu.Unlock()
	if replace {
		ks.fps = make(map[string]bool, len(fps))
	}
	for _, fp := range fps {
		ks.fps[fp] = true
	}
	return len(fps), nil
}

// ReadKeyFile parses every OpenSSH public key in the file and returns
// their fingerprints. Lines that do not parse are an error: a typo in an
// oplist should not silently drop an operator.
func ReadKeyFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var fps []string
	for i, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, _, _, _, err := ssh.ParseAuthorizedKey([]byte(line))
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, i+1, err)
		}
		fps = append(fps, Fingerprint(key))
	}
	return fps, nil
}
