package terminal

import (
	"bufio"
	"io"
	"strings"
)

// KeyType classifies a decoded key event.
type KeyType int

const (
	KeyRune KeyType = iota
	KeyCtrl
	KeyAlt
	KeyEnter
	KeyTab
	KeyBackspace
	KeyDelete
	KeyUp
	KeyDown
	KeyLeft
	KeyRight
	KeyHome
	KeyEnd
	KeyPaste
)

// KeyEvent is a single decoded key press from the PTY byte stream.
// Rune is set for KeyRune (the printable rune), KeyCtrl ('a'..'z') and
// KeyAlt ('b' or 'f'). Text is set for KeyPaste (bracketed paste payload).
type KeyEvent struct {
	Type KeyType
	Rune rune
	Text string
}

// Decoder turns the raw byte stream of an xterm-like terminal into key
// events. Escape sequences that are not recognized are dropped.
type Decoder struct {
	r *bufio.Reader
}

func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: bufio.NewReader(r)}
}

// Next blocks until a full key event has been read. It returns the
// underlying read error (io.EOF on channel close) once the stream ends.
func (d *Decoder) Next() (KeyEvent, error) {
	for {
		r, _, err := d.r.ReadRune()
		if err != nil {
			return KeyEvent{}, err
		}

		switch {
		case r == 0x1b:
			ev, ok, err := d.escape()
			if err != nil {
				return KeyEvent{}, err
			}
			if ok {
				return ev, nil
			}
		case r == '\r' || r == '\n':
			return KeyEvent{Type: KeyEnter}, nil
		case r == '\t':
			return KeyEvent{Type: KeyTab}, nil
		case r == 0x7f || r == 0x08:
			return KeyEvent{Type: KeyBackspace}, nil
		case r >= 0x01 && r <= 0x1a:
			return KeyEvent{Type: KeyCtrl, Rune: 'a' + r - 1}, nil
		case r < 0x20:
			// Remaining C0 controls carry no meaning here.
		default:
			return KeyEvent{Type: KeyRune, Rune: r}, nil
		}
	}
}

// escape decodes the remainder of an ESC-initiated sequence. The second
// return value is false when the sequence is recognized but meaningless
// (or unknown) and should be skipped.
func (d *Decoder) escape() (KeyEvent, bool, error) {
	r, _, err := d.r.ReadRune()
	if err != nil {
		return KeyEvent{}, false, err
	}

	switch r {
	case 'b', 'B':
		return KeyEvent{Type: KeyAlt, Rune: 'b'}, true, nil
	case 'f', 'F':
		return KeyEvent{Type: KeyAlt, Rune: 'f'}, true, nil
	case '[':
		return d.csi()
	case 'O':
		// Application cursor mode sends ESC O H / ESC O F for Home/End.
		final, _, err := d.r.ReadRune()
		if err != nil {
			return KeyEvent{}, false, err
		}
		switch final {
		case 'H':
			return KeyEvent{Type: KeyHome}, true, nil
		case 'F':
			return KeyEvent{Type: KeyEnd}, true, nil
		case 'A':
			return KeyEvent{Type: KeyUp}, true, nil
		case 'B':
			return KeyEvent{Type: KeyDown}, true, nil
		case 'C':
			return KeyEvent{Type: KeyRight}, true, nil
		case 'D':
			return KeyEvent{Type: KeyLeft}, true, nil
		}
		return KeyEvent{}, false, nil
	}
	return KeyEvent{}, false, nil
}

func (d *Decoder) csi() (KeyEvent, bool, error) {
	var params strings.Builder
	for {
		r, _, err := d.r.ReadRune()
		if err != nil {
			return KeyEvent{}, false, err
		}
		if r >= '0' && r <= '9' || r == ';' {
			params.WriteRune(r)
			continue
		}

		switch r {
		case 'A':
			return KeyEvent{Type: KeyUp}, true, nil
		case 'B':
			return KeyEvent{Type: KeyDown}, true, nil
		case 'C':
			return KeyEvent{Type: KeyRight}, true, nil
		case 'D':
			return KeyEvent{Type: KeyLeft}, true, nil
		case 'H':
			return KeyEvent{Type: KeyHome}, true, nil
		case 'F':
			return KeyEvent{Type: KeyEnd}, true, nil
		case '~':
			switch params.String() {
			case "1", "7":
				return KeyEvent{Type: KeyHome}, true, nil
			case "3":
				return KeyEvent{Type: KeyDelete}, true, nil
			case "4", "8":
				return KeyEvent{Type: KeyEnd}, true, nil
			case "200":
				text, err := d.pasteBody()
				if err != nil {
					return KeyEvent{}, false, err
				}
				return KeyEvent{Type: KeyPaste, Text: text}, true, nil
			}
			return KeyEvent{}, false, nil
		default:
			// Unknown final byte, drop the sequence.
			return KeyEvent{}, false, nil
		}
	}
}

// pasteBody reads a bracketed paste payload up to the ESC [ 201 ~ marker.
func (d *Decoder) pasteBody() (string, error) {
	const end = "\x1b[201~"
	var body strings.Builder
	for {
		b, err := d.r.ReadByte()
		if err != nil {
			return "", err
		}
		body.WriteByte(b)
		if strings.HasSuffix(body.String(), end) {
			return strings.TrimSuffix(body.String(), end), nil
		}
	}
}
