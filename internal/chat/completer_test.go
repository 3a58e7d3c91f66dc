package chat

import (
	"reflect"
	"testing"
)

func TestCompleteCommandNames(t *testing.T) {
	r := newTestRoom()
	alice := join(t, r, "alice")
	complete := completerFor(r, alice)

	t.Run("unique prefix", func(t *testing.T) {
		got, start := complete("/nic", 4)
		if start != 0 {
			t.Errorf("start = %d, want 0", start)
		}
		if !reflect.DeepEqual(got, []string{"/nick "}) {
			t.Errorf("candidates = %v", got)
		}
	})

	t.Run("op commands hidden", func(t *testing.T) {
		got, _ := complete("/kic", 4)
		if len(got) != 0 {
			t.Errorf("non-op saw %v", got)
		}
		alice.User.SetOp(true)
		got, _ = complete("/kic", 4)
		if !reflect.DeepEqual(got, []string{"/kick "}) {
			t.Errorf("op candidates = %v", got)
		}
		alice.User.SetOp(false)
	})
}

func TestCompleteMemberNames(t *testing.T) {
	r := newTestRoom()
	alice := join(t, r, "alice")
	join(t, r, "albert")
	join(t, r, "bob")
	complete := completerFor(r, alice)

	t.Run("line start", func(t *testing.T) {
		got, start := complete("al", 2)
		if start != 0 {
			t.Errorf("start = %d", start)
		}
		if !reflect.DeepEqual(got, []string{"albert ", "alice "}) {
			t.Errorf("candidates = %v", got)
		}
	})

	t.Run("mid sentence", func(t *testing.T) {
		got, start := complete("hey bo", 6)
		if start != 4 {
			t.Errorf("start = %d, want 4", start)
		}
		if !reflect.DeepEqual(got, []string{"bob "}) {
			t.Errorf("candidates = %v", got)
		}
	})

	t.Run("command argument", func(t *testing.T) {
		got, start := complete("/msg bo", 7)
		if start != 5 {
			t.Errorf("start = %d, want 5", start)
		}
		if !reflect.DeepEqual(got, []string{"bob "}) {
			t.Errorf("candidates = %v", got)
		}
	})

	t.Run("empty word offers nothing", func(t *testing.T) {
		got, _ := complete("", 0)
		if len(got) != 0 {
			t.Errorf("empty buffer completed to %v", got)
		}
	})
}

func TestCompleteSubcommands(t *testing.T) {
	r := newTestRoom()
	alice := join(t, r, "alice")
	complete := completerFor(r, alice)

	got, start := complete("/theme ha", 9)
	if start != 7 {
		t.Errorf("start = %d, want 7", start)
	}
	if !reflect.DeepEqual(got, []string{"hacker "}) {
		t.Errorf("candidates = %v", got)
	}

	got, _ = complete("/timestamp d", 12)
	if !reflect.DeepEqual(got, []string{"datetime "}) {
		t.Errorf("candidates = %v", got)
	}

	// A completed enum argument offers nothing further.
	got, _ = complete("/theme hacker ", 14)
	if len(got) != 0 {
		t.Errorf("trailing completion = %v", got)
	}
}

func TestCompleteKeySetCommands(t *testing.T) {
	r := newTestRoom()
	op := join(t, r, "op")
	op.User.SetOp(true)
	join(t, r, "albert")
	complete := completerFor(r, op)

	t.Run("subcommand word", func(t *testing.T) {
		got, _ := complete("/oplist ad", 10)
		if !reflect.DeepEqual(got, []string{"add "}) {
			t.Errorf("candidates = %v", got)
		}
	})

	t.Run("user argument", func(t *testing.T) {
		got, _ := complete("/oplist add al", 14)
		if !reflect.DeepEqual(got, []string{"albert "}) {
			t.Errorf("candidates = %v", got)
		}
	})

	t.Run("load mode", func(t *testing.T) {
		got, _ := complete("/whitelist load keys re", 23)
		if !reflect.DeepEqual(got, []string{"replace "}) {
			t.Errorf("candidates = %v", got)
		}
	})
}
