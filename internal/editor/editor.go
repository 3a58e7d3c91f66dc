// Package editor implements the per-session input line: an editable buffer
// of grapheme clusters with Emacs-style bindings, bounded history and a
// pluggable completion hook. It is pure state; drawing the prompt line is
// the session controller's job.
package editor

import (
	"strings"

	"github.com/mevdschee/chatd/internal/terminal"
)

// Completer inspects the buffer and cursor (both in bytes) and returns
// candidate replacements for the word starting at the returned offset.
type Completer func(text string, cursor int) (candidates []string, start int)

// Action tells the session controller what to do after feeding a key.
type Action int

const (
	// None requires no redraw.
	None Action = iota
	// Redraw means the prompt line changed.
	Redraw
	// Submit carries a finished line in Edit.Text; the buffer is cleared.
	Submit
	// Cancel means the user hit Ctrl-C; the buffer is cleared.
	Cancel
)

// Edit is the outcome of feeding one key event.
type Edit struct {
	Action Action
	Text   string
	// Candidates is non-empty when a completion was ambiguous; the
	// controller shows them below the prompt.
	Candidates []string
}

const historyMax = 100

type cell struct {
	g string
	w int
}

// Editor holds one editable line. Not safe for concurrent use; each
// session owns exactly one.
type Editor struct {
	cells    []cell
	cursor   int
	complete Completer

	history []string
	histIdx int
	stash   string
}

func New(complete Completer) *Editor {
	return &Editor{complete: complete}
}

// String returns the buffer contents.
func (e *Editor) String() string {
	var b strings.Builder
	for _, c := range e.cells {
		b.WriteString(c.g)
	}
	return b.String()
}

// CursorWidth returns the display columns between the start of the buffer
// and the cursor.
func (e *Editor) CursorWidth() int {
	w := 0
	for _, c := range e.cells[:e.cursor] {
		w += c.w
	}
	return w
}

// Width returns the display columns of the whole buffer.
func (e *Editor) Width() int {
	w := 0
	for _, c := range e.cells {
		w += c.w
	}
	return w
}

// Window returns the slice of the buffer visible in a prompt area of the
// given column count, scrolled left just enough to keep the cursor inside
// it, along with the columns from the end of the slice back to the cursor.
// A non-positive count disables clipping.
func (e *Editor) Window(cols int) (string, int) {
	if cols <= 0 || e.Width() <= cols {
		return e.String(), e.Width() - e.CursorWidth()
	}

	start := 0
	w := 0
	for i := e.cursor - 1; i >= 0; i-- {
		if w+e.cells[i].w > cols-1 {
			start = i + 1
			break
		}
		w += e.cells[i].w
	}

	var b strings.Builder
	w = 0
	end := start
	for end < len(e.cells) && w+e.cells[end].w <= cols {
		b.WriteString(e.cells[end].g)
		w += e.cells[end].w
		end++
	}

	back := 0
	for i := e.cursor; i < end; i++ {
		back += e.cells[i].w
	}
	return b.String(), back
}

func (e *Editor) Clear() {
	e.cells = nil
	e.cursor = 0
	e.histIdx = len(e.history)
	e.stash = ""
}

// Feed applies one key event to the buffer.
func (e *Editor) Feed(ev terminal.KeyEvent) Edit {
	switch ev.Type {
	case terminal.KeyRune:
		e.insertRune(ev.Rune)
		return Edit{Action: Redraw}

	case terminal.KeyPaste:
		e.insertString(sanitizePaste(ev.Text))
		return Edit{Action: Redraw}

	case terminal.KeyEnter:
		text := e.String()
		if strings.TrimSpace(text) == "" {
			if len(e.cells) == 0 {
				return Edit{Action: None}
			}
			e.Clear()
			return Edit{Action: Redraw}
		}
		e.pushHistory(text)
		e.Clear()
		return Edit{Action: Submit, Text: text}

	case terminal.KeyBackspace:
		if e.cursor == 0 {
			return Edit{Action: None}
		}
		e.cells = append(e.cells[:e.cursor-1], e.cells[e.cursor:]...)
		e.cursor--
		return Edit{Action: Redraw}

	case terminal.KeyDelete:
		return e.deleteForward()

	case terminal.KeyLeft:
		return e.moveLeft()
	case terminal.KeyRight:
		return e.moveRight()
	case terminal.KeyHome:
		return e.moveHome()
	case terminal.KeyEnd:
		return e.moveEnd()
	case terminal.KeyUp:
		return e.historyPrev()
	case terminal.KeyDown:
		return e.historyNext()

	case terminal.KeyTab:
		return e.tabComplete()

	case terminal.KeyCtrl:
		switch ev.Rune {
		case 'a':
			return e.moveHome()
		case 'e':
			return e.moveEnd()
		case 'b':
			return e.moveLeft()
		case 'f':
			return e.moveRight()
		case 'p':
			return e.historyPrev()
		case 'n':
			return e.historyNext()
		case 'd':
			return e.deleteForward()
		case 'k':
			if e.cursor == len(e.cells) {
				return Edit{Action: None}
			}
			e.cells = e.cells[:e.cursor]
			return Edit{Action: Redraw}
		case 'u':
			if e.cursor == 0 {
				return Edit{Action: None}
			}
			e.cells = append([]cell(nil), e.cells[e.cursor:]...)
			e.cursor = 0
			return Edit{Action: Redraw}
		case 'w':
			return e.killWord()
		case 'c':
			e.Clear()
			return Edit{Action: Cancel}
		}
		return Edit{Action: None}

	case terminal.KeyAlt:
		switch ev.Rune {
		case 'b':
			return e.wordLeft()
		case 'f':
			return e.wordRight()
		}
		return Edit{Action: None}
	}

	return Edit{Action: None}
}

func (e *Editor) insertRune(r rune) {
	// A zero-width rune extends the grapheme before the cursor instead of
	// starting a new one (combining marks arrive as separate runes).
	if terminal.RuneWidth(r) == 0 && e.cursor > 0 {
		prev := &e.cells[e.cursor-1]
		prev.g += string(r)
		prev.w = terminal.GraphemeWidth(prev.g)
		return
	}
	e.insertCell(cell{g: string(r), w: terminal.RuneWidth(r)})
}

func (e *Editor) insertCell(c cell) {
	e.cells = append(e.cells, cell{})
	copy(e.cells[e.cursor+1:], e.cells[e.cursor:])
	e.cells[e.cursor] = c
	e.cursor++
}

func (e *Editor) insertString(s string) {
	for _, g := range terminal.Graphemes(s) {
		e.insertCell(cell{g: g, w: terminal.GraphemeWidth(g)})
	}
}

func sanitizePaste(s string) string {
	s = strings.ReplaceAll(s, "\r\n", " ")
	s = strings.ReplaceAll(s, "\r", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	return s
}

func (e *Editor) deleteForward() Edit {
	if e.cursor == len(e.cells) {
		return Edit{Action: None}
	}
	e.cells = append(e.cells[:e.cursor], e.cells[e.cursor+1:]...)
	return Edit{Action: Redraw}
}

func (e *Editor) moveLeft() Edit {
	if e.cursor == 0 {
		return Edit{Action: None}
	}
	e.cursor--
	return Edit{Action: Redraw}
}

func (e *Editor) moveRight() Edit {
	if e.cursor == len(e.cells) {
		return Edit{Action: None}
	}
	e.cursor++
	return Edit{Action: Redraw}
}

func (e *Editor) moveHome() Edit {
	if e.cursor == 0 {
		return Edit{Action: None}
	}
	e.cursor = 0
	return Edit{Action: Redraw}
}

func (e *Editor) moveEnd() Edit {
	if e.cursor == len(e.cells) {
		return Edit{Action: None}
	}
	e.cursor = len(e.cells)
	return Edit{Action: Redraw}
}

func (e *Editor) wordLeft() Edit {
	if e.cursor == 0 {
		return Edit{Action: None}
	}
	i := e.cursor
	for i > 0 && e.cells[i-1].g == " " {
		i--
	}
	for i > 0 && e.cells[i-1].g != " " {
		i--
	}
	e.cursor = i
	return Edit{Action: Redraw}
}

func (e *Editor) wordRight() Edit {
	if e.cursor == len(e.cells) {
		return Edit{Action: None}
	}
	i := e.cursor
	for i < len(e.cells) && e.cells[i].g == " " {
		i++
	}
	for i < len(e.cells) && e.cells[i].g != " " {
		i++
	}
	e.cursor = i
	return Edit{Action: Redraw}
}

func (e *Editor) killWord() Edit {
	if e.cursor == 0 {
		return Edit{Action: None}
	}
	i := e.cursor
	for i > 0 && e.cells[i-1].g == " " {
		i--
	}
	for i > 0 && e.cells[i-1].g != " " {
		i--
	}
	e.cells = append(e.cells[:i], e.cells[e.cursor:]...)
	e.cursor = i
	return Edit{Action: Redraw}
}

func (e *Editor) pushHistory(text string) {
	if len(e.history) == 0 || e.history[len(e.history)-1] != text {
		e.history = append(e.history, text)
		if len(e.history) > historyMax {
			e.history = e.history[1:]
		}
	}
	e.histIdx = len(e.history)
}

func (e *Editor) historyPrev() Edit {
	if e.histIdx == 0 || len(e.history) == 0 {
		return Edit{Action: None}
	}
	if e.histIdx == len(e.history) {
		e.stash = e.String()
	}
	e.histIdx--
	e.setText(e.history[e.histIdx])
	return Edit{Action: Redraw}
}

func (e *Editor) historyNext() Edit {
	if e.histIdx >= len(e.history) {
		return Edit{Action: None}
	}
	e.histIdx++
	if e.histIdx == len(e.history) {
		e.setText(e.stash)
	} else {
		e.setText(e.history[e.histIdx])
	}
	return Edit{Action: Redraw}
}

// setText replaces the buffer, leaving the cursor at the end. History
// index and stash are untouched.
func (e *Editor) setText(text string) {
	e.cells = nil
	for _, g := range terminal.Graphemes(text) {
		e.cells = append(e.cells, cell{g: g, w: terminal.GraphemeWidth(g)})
	}
	e.cursor = len(e.cells)
}

func (e *Editor) tabComplete() Edit {
	if e.complete == nil {
		return Edit{Action: None}
	}
	text := e.String()
	cursor := e.byteCursor()
	candidates, start := e.complete(text, cursor)
	if len(candidates) == 0 || start < 0 || start > cursor {
		return Edit{Action: None}
	}

	if len(candidates) == 1 {
		e.replaceRange(text, start, cursor, candidates[0])
		return Edit{Action: Redraw}
	}

	cp := commonPrefix(candidates)
	if len(cp) > cursor-start {
		e.replaceRange(text, start, cursor, cp)
	}
	return Edit{Action: Redraw, Candidates: candidates}
}

// byteCursor converts the grapheme cursor into a byte offset.
func (e *Editor) byteCursor() int {
	n := 0
	for _, c := range e.cells[:e.cursor] {
		n += len(c.g)
	}
	return n
}

func (e *Editor) replaceRange(text string, start, end int, repl string) {
	newText := text[:start] + repl + text[end:]
	cursorByte := start + len(repl)

	e.cells = nil
	e.cursor = 0
	at := 0
	for _, g := range terminal.Graphemes(newText) {
		e.cells = append(e.cells, cell{g: g, w: terminal.GraphemeWidth(g)})
		at += len(g)
		if at <= cursorByte {
			e.cursor++
		}
	}
}

func commonPrefix(names []string) string {
	prefix := names[0]
	for _, name := range names[1:] {
		for !strings.HasPrefix(name, prefix) {
			prefix = prefix[:len(prefix)-1]
			if prefix == "" {
				return ""
			}
		}
	}
	return prefix
}
