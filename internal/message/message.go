package message

import "time"

// Type tags the kind of a chat event.
type Type int

const (
	// Public is a regular chat line, fanned out to every member.
	Public Type = iota
	// Emote is a third-person action line (/me).
	Emote
	// Private goes to a single recipient (and echoes to the sender).
	Private
	// System is server output addressed to one session only.
	System
	// Announce is room-wide server output (joins, leaves, renames).
	Announce
	// Error reports a rejected operation to the offending session only.
	Error
)

// Author identifies the origin of an event. System, Announce and Error
// events carry a zero Author.
type Author struct {
	Name        string
	Fingerprint string
}

// Event is the unit fanned out by the room engine. Rendering to bytes is
// deferred to each receiving session so that per-user theme and timestamp
// preferences apply.
type Event struct {
	Type Type
	From Author
	To   Author
	Text string
	Time time.Time
}

func NewPublic(from Author, text string) *Event {
	return &Event{Type: Public, From: from, Text: text, Time: time.Now()}
}

func NewEmote(from Author, text string) *Event {
	return &Event{Type: Emote, From: from, Text: text, Time: time.Now()}
}

func NewPrivate(from, to Author, text string) *Event {
	return &Event{Type: Private, From: from, To: to, Text: text, Time: time.Now()}
}

func NewSystem(text string) *Event {
	return &Event{Type: System, Text: text, Time: time.Now()}
}

func NewAnnounce(text string) *Event {
	return &Event{Type: Announce, Text: text, Time: time.Now()}
}

func NewError(text string) *Event {
	return &Event{Type: Error, Text: text, Time: time.Now()}
}
