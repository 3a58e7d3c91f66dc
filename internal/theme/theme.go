package theme

import (
	"hash/fnv"
	"sort"
)

// Role is a semantic slot a theme maps to an ANSI SGR code.
type Role int

const (
	RoleSystem Role = iota
	RoleError
	RoleAnnounce
	RoleUsername
	RoleEmote
	RolePrivate
	RoleTimestamp
)

// Theme maps semantic roles to SGR parameter strings. An empty code means
// no styling. Usernames additionally draw from a palette indexed by a hash
// of the user's fingerprint, so a user keeps their color across renames.
type Theme struct {
	name    string
	codes   map[Role]string
	palette []string
}

func (t *Theme) Name() string {
	return t.name
}

// Style wraps s in the SGR sequence for the given role.
func (t *Theme) Style(role Role, s string) string {
	code := t.codes[role]
	if code == "" {
		return s
	}
	return "\x1b[" + code + "m" + s + "\x1b[0m"
}

// StyleUsername colors a display name with the palette entry selected by
// the owner's fingerprint.
func (t *Theme) StyleUsername(fingerprint, name string) string {
	if len(t.palette) == 0 {
		return name
	}
	h := fnv.New32a()
	h.Write([]byte(fingerprint))
	code := t.palette[h.Sum32()%uint32(len(t.palette))]
	if code == "" {
		return name
	}
	return "\x1b[" + code + "m" + name + "\x1b[0m"
}

var builtin = map[string]*Theme{
	"mono": {
		name:  "mono",
		codes: map[Role]string{},
	},
	"colors": {
		name: "colors",
		codes: map[Role]string{
			RoleSystem:    "90",
			RoleError:     "1;31",
			RoleAnnounce:  "33",
			RoleEmote:     "36",
			RolePrivate:   "35",
			RoleTimestamp: "90",
		},
		palette: []string{
			"38;5;39", "38;5;45", "38;5;78", "38;5;113", "38;5;142",
			"38;5;166", "38;5;170", "38;5;179", "38;5;203", "38;5;208",
			"38;5;212", "38;5;34", "38;5;69", "38;5;99", "38;5;124",
			"38;5;136",
		},
	},
	"hacker": {
		name: "hacker",
		codes: map[Role]string{
			RoleSystem:    "2;32",
			RoleError:     "1;32",
			RoleAnnounce:  "32",
			RoleEmote:     "32",
			RolePrivate:   "1;32",
			RoleTimestamp: "2;32",
		},
		palette: []string{"32", "1;32", "92", "1;92"},
	},
}

// Default is the theme applied when a user has not chosen one.
const Default = "colors"

// Named returns a built-in theme by name.
func Named(name string) (*Theme, bool) {
	t, ok := builtin[name]
	return t, ok
}

// Names lists the built-in theme names in stable order.
func Names() []string {
	names := make([]string, 0, len(builtin))
	for name := range builtin {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
