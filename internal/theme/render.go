package theme

import (
	"fmt"
	"strings"

	"github.com/mevdschee/chatd/internal/message"
	"github.com/mevdschee/chatd/internal/user"
)

const (
	timeLayout     = "15:04"
	datetimeLayout = "2006-01-02 15:04:05"
)

// Render formats ev for the receiver identified by selfFp, honoring the
// receiver's theme and timestamp mode. The result always ends in CR+LF so
// it can be written to a raw-mode PTY verbatim.
func Render(ev *message.Event, t *Theme, mode user.TimestampMode, selfFp string) string {
	var b strings.Builder

	switch mode {
	case user.TimestampTime:
		b.WriteString(t.Style(RoleTimestamp, "["+ev.Time.Format(timeLayout)+"]"))
		b.WriteByte(' ')
	case user.TimestampDatetime:
		b.WriteString(t.Style(RoleTimestamp, "["+ev.Time.Format(datetimeLayout)+"]"))
		b.WriteByte(' ')
	}

	switch ev.Type {
	case message.Public:
		b.WriteString(t.StyleUsername(ev.From.Fingerprint, ev.From.Name))
		b.WriteString(": ")
		b.WriteString(ev.Text)
	case message.Emote:
		b.WriteString(t.Style(RoleEmote, fmt.Sprintf("** %s %s", ev.From.Name, ev.Text)))
	case message.Private:
		if ev.From.Fingerprint == selfFp {
			b.WriteString(t.Style(RolePrivate, fmt.Sprintf("[PM to %s] %s", ev.To.Name, ev.Text)))
		} else {
			b.WriteString(t.Style(RolePrivate, fmt.Sprintf("[PM from %s] %s", ev.From.Name, ev.Text)))
		}
	case message.System:
		b.WriteString(t.Style(RoleSystem, "-> "+ev.Text))
	case message.Announce:
		b.WriteString(t.Style(RoleAnnounce, " * "+ev.Text))
	case message.Error:
		b.WriteString(t.Style(RoleError, "Error: "+ev.Text))
	}

	b.WriteString("\r\n")
	return b.String()
}

// Strip removes ANSI SGR sequences, leaving the plain text of a rendered
// line.
func Strip(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == 0x1b && i+1 < len(s) && s[i+1] == '[' {
			j := i + 2
			for j < len(s) && (s[j] == ';' || (s[j] >= '0' && s[j] <= '9')) {
				j++
			}
			if j < len(s) {
				j++ // final byte
			}
			i = j - 1
			continue
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

// Parse is the inverse of Render for unstyled, untimestamped lines. It
// recovers the event kind and payload, which is all a rendered line
// preserves (fingerprints and exact times are display-only inputs).
func Parse(line string) (*message.Event, error) {
	line = Strip(line)
	line = strings.TrimSuffix(line, "\r\n")

	switch {
	case strings.HasPrefix(line, "-> "):
		return &message.Event{Type: message.System, Text: line[len("-> "):]}, nil
	case strings.HasPrefix(line, " * "):
		return &message.Event{Type: message.Announce, Text: line[len(" * "):]}, nil
	case strings.HasPrefix(line, "Error: "):
		return &message.Event{Type: message.Error, Text: line[len("Error: "):]}, nil
	case strings.HasPrefix(line, "** "):
		rest := line[len("** "):]
		name, text, ok := strings.Cut(rest, " ")
		if !ok {
			return nil, fmt.Errorf("malformed emote line: %q", line)
		}
		return &message.Event{Type: message.Emote, From: message.Author{Name: name}, Text: text}, nil
	case strings.HasPrefix(line, "[PM from "):
		rest := line[len("[PM from "):]
		name, text, ok := strings.Cut(rest, "] ")
		if !ok {
			return nil, fmt.Errorf("malformed private line: %q", line)
		}
		return &message.Event{Type: message.Private, From: message.Author{Name: name}, Text: text}, nil
	case strings.HasPrefix(line, "[PM to "):
		rest := line[len("[PM to "):]
		name, text, ok := strings.Cut(rest, "] ")
		if !ok {
			return nil, fmt.Errorf("malformed private line: %q", line)
		}
		return &message.Event{Type: message.Private, To: message.Author{Name: name}, Text: text}, nil
	}

	name, text, ok := strings.Cut(line, ": ")
	if !ok {
		return nil, fmt.Errorf("malformed public line: %q", line)
	}
	return &message.Event{Type: message.Public, From: message.Author{Name: name}, Text: text}, nil
}
