// Package chat contains the room engine, the command registry and the
// per-connection session controller. The three are deliberately one
// package: commands operate on the room through the session that issued
// them, and the room fans events back out to sessions.
package chat

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/mevdschee/chatd/internal/editor"
	"github.com/mevdschee/chatd/internal/message"
	"github.com/mevdschee/chatd/internal/terminal"
	"github.com/mevdschee/chatd/internal/theme"
	"github.com/mevdschee/chatd/internal/user"
)

const (
	// outboundDepth is the per-session event queue size. A client that
	// falls this far behind is disconnected rather than slowing the room.
	outboundDepth = 64
	// writeTimeout bounds a single PTY write before the session is
	// declared stalled.
	writeTimeout = 5 * time.Second
)

// Session ties one SSH channel to a user, a line editor and an outbound
// event queue. It runs two cooperating tasks: the input loop (owned by
// Run) and the output loop (started by Run).
type Session struct {
	ID   string
	User *user.User

	conn io.ReadWriteCloser

	// emu guards ed: the input loop feeds it while the write loop reads
	// it to repaint the prompt.
	emu sync.Mutex
	ed  *editor.Editor

	out  chan *message.Event
	done chan struct{}
	once sync.Once

	wmu   sync.Mutex
	width atomic.Int32
}

func NewSession(conn io.ReadWriteCloser, u *user.User) *Session {
	s := &Session{
		ID:   uuid.NewString(),
		User: u,
		conn: conn,
		out:  make(chan *message.Event, outboundDepth),
		done: make(chan struct{}),
	}
	s.width.Store(80)
	return s
}

// Enqueue places an event on the session's outbound queue. It reports
// false when the queue is full; the room then disconnects the session.
func (s *Session) Enqueue(ev *message.Event) bool {
	select {
	case s.out <- ev:
		return true
	default:
		return false
	}
}

// Resize records a window-change from the client.
func (s *Session) Resize(width int) {
	if width > 0 {
		s.width.Store(int32(width))
	}
}

// Done is closed when the session ends, by the client, by /quit or by an
// operator.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Close ends the session. A non-empty reason is written to the client
// before the channel is torn down. Safe to call from any goroutine and
// idempotent; it never blocks on the client, so a kick of a wedged
// connection cannot stall the operator issuing it.
func (s *Session) Close(reason string) {
	s.once.Do(func() {
		close(s.done)
		go func() {
			if reason != "" {
				t := s.theme()
				line := theme.Render(message.NewSystem(reason), t, user.TimestampOff, s.User.Fingerprint)
				s.wmu.Lock()
				s.write("\r\x1b[K" + line)
				s.wmu.Unlock()
			}
			s.conn.Close()
		}()
	})
}

// Run drives the input side of the session: PTY bytes are decoded into
// key events, fed to the line editor, and finished lines are dispatched
// as commands or chat messages. It returns when the channel closes, the
// user quits or the session is closed from elsewhere. The caller removes
// the session from the room afterwards.
func (s *Session) Run(r *Room) {
	s.emu.Lock()
	s.ed = editor.New(completerFor(r, s))
	s.emu.Unlock()

	go s.writeLoop()

	dec := terminal.NewDecoder(s.conn)
	s.redrawPrompt()

	for {
		select {
		case <-s.done:
			return
		default:
		}

		kev, err := dec.Next()
		if err != nil {
			s.Close("")
			return
		}

		edit := s.feed(kev)
		switch edit.Action {
		case editor.None:
		case editor.Redraw, editor.Cancel:
			if len(edit.Candidates) > 0 {
				s.showCandidates(edit.Candidates)
			} else {
				s.redrawPrompt()
			}
		case editor.Submit:
			s.redrawPrompt()
			s.submit(r, edit.Text)
			select {
			case <-s.done:
				return
			default:
			}
			s.redrawPrompt()
		}
	}
}

// feed applies one key event to the editor under the editor lock.
func (s *Session) feed(kev terminal.KeyEvent) editor.Edit {
	s.emu.Lock()
	defer s.emu.Unlock()
	return s.ed.Feed(kev)
}

func (s *Session) submit(r *Room, line string) {
	line = strings.TrimSpace(line)
	if strings.HasPrefix(line, "/") {
		Dispatch(r, s, line)
		return
	}
	r.SendPublic(s.User.Fingerprint, line)
}

func (s *Session) writeLoop() {
	for {
		select {
		case <-s.done:
			return
		case ev := <-s.out:
			s.writeEvent(ev)
		}
	}
}

func (s *Session) theme() *theme.Theme {
	t, ok := theme.Named(s.User.Prefs().Theme)
	if !ok {
		t, _ = theme.Named(theme.Default)
	}
	return t
}

func (s *Session) writeEvent(ev *message.Event) {
	prefs := s.User.Prefs()
	line := theme.Render(ev, s.theme(), prefs.Timestamp, s.User.Fingerprint)
	if prefs.Bell && ev.Type == message.Private && ev.From.Fingerprint != s.User.Fingerprint {
		line = "\a" + line
	}

	s.wmu.Lock()
	defer s.wmu.Unlock()
	s.write("\r\x1b[K" + line)
	s.writePrompt()
}

// write performs one guarded PTY write. A write that stalls past the
// timeout closes the connection, which unblocks it; the input loop then
// winds the session down through its usual error path.
func (s *Session) write(data string) {
	stall := time.AfterFunc(writeTimeout, func() {
		s.conn.Close()
	})
	defer stall.Stop()
	io.WriteString(s.conn, data)
}

// redrawPrompt repaints the prompt line so incoming events never leave
// the user's input in a torn state.
func (s *Session) redrawPrompt() {
	s.wmu.Lock()
	defer s.wmu.Unlock()
	s.writePrompt()
}

func (s *Session) writePrompt() {
	t := s.theme()
	name := s.User.Name()
	cols := int(s.width.Load()) - terminal.StringWidth("["+name+"] ") - 1

	s.emu.Lock()
	buf, back := s.ed.Window(cols)
	s.emu.Unlock()

	var b strings.Builder
	b.WriteString("\r\x1b[K[")
	b.WriteString(t.StyleUsername(s.User.Fingerprint, name))
	b.WriteString("] ")
	b.WriteString(buf)
	if back > 0 {
		fmt.Fprintf(&b, "\x1b[%dD", back)
	}
	s.write(b.String())
}

// showCandidates prints ambiguous completion candidates below the prompt.
func (s *Session) showCandidates(candidates []string) {
	trimmed := make([]string, len(candidates))
	for i, c := range candidates {
		trimmed[i] = strings.TrimSpace(c)
	}
	t := s.theme()
	line := theme.Render(message.NewSystem(strings.Join(trimmed, "  ")), t, user.TimestampOff, s.User.Fingerprint)

	s.wmu.Lock()
	defer s.wmu.Unlock()
	s.write("\r\x1b[K" + line)
	s.writePrompt()
}
