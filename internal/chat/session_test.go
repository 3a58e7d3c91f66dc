package chat

import (
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mevdschee/chatd/internal/editor"
	"github.com/mevdschee/chatd/internal/terminal"
	"github.com/mevdschee/chatd/internal/user"
)

// stuckConn never completes a read or write until it is closed, like a
// client whose TCP window has filled.
type stuckConn struct {
	once   sync.Once
	closed chan struct{}
}

func newStuckConn() *stuckConn {
	return &stuckConn{closed: make(chan struct{})}
}

func (c *stuckConn) Read(p []byte) (int, error) {
	<-c.closed
	return 0, io.EOF
}

func (c *stuckConn) Write(p []byte) (int, error) {
	<-c.closed
	return 0, io.ErrClosedPipe
}

func (c *stuckConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func TestTypingDuringRedraw(t *testing.T) {
	s := NewSession(&fakeConn{}, user.New(fpOf("alice"), "alice"))
	s.ed = editor.New(nil)

	const keys = 500
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < keys; i++ {
			s.feed(terminal.KeyEvent{Type: terminal.KeyRune, Rune: 'a'})
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < keys; i++ {
			s.redrawPrompt()
		}
	}()
	wg.Wait()

	s.emu.Lock()
	got := s.ed.String()
	s.emu.Unlock()
	if got != strings.Repeat("a", keys) {
		t.Errorf("buffer holds %d runes, want %d", len(got), keys)
	}
}

func TestKickOfWedgedClientReturns(t *testing.T) {
	r := newTestRoom()
	join(t, r, "alice")
	bob := NewSession(newStuckConn(), user.New(fpOf("bob"), "bob"))
	if err := r.Join(bob); err != nil {
		t.Fatalf("Failed to join: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- r.Kick("bob", "you have been kicked") }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Kick failed: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Kick blocked on the wedged client")
	}
	select {
	case <-bob.Done():
	case <-time.After(time.Second):
		t.Fatal("kicked session never ended")
	}
}
