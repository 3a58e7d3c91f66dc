package terminal

import (
	"github.com/mattn/go-runewidth"
	"github.com/rivo/uniseg"
)

// Graphemes splits s into user-perceived characters. Combining marks stay
// attached to their base character, so cursor movement over the result is
// always one screen position at a time.
func Graphemes(s string) []string {
	var out []string
	g := uniseg.NewGraphemes(s)
	for g.Next() {
		out = append(out, g.Str())
	}
	return out
}

// GraphemeWidth returns the number of terminal columns a single grapheme
// cluster occupies (0 for combining marks, 2 for wide CJK and most emoji).
func GraphemeWidth(g string) int {
	return uniseg.StringWidth(g)
}

// StringWidth returns the number of terminal columns s occupies.
func StringWidth(s string) int {
	return uniseg.StringWidth(s)
}

// RuneWidth returns the column width of a single rune. Used by the editor
// to decide whether an incoming rune starts a new grapheme or extends the
// previous one.
func RuneWidth(r rune) int {
	return runewidth.RuneWidth(r)
}
