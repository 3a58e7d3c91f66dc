package message

import (
	"fmt"
	"testing"
)

func TestHistoryOrder(t *testing.T) {
	h := NewHistory()
	a := Author{Name: "alice"}
	for i := 0; i < 5; i++ {
		h.Push(NewPublic(a, fmt.Sprintf("msg %d", i)))
	}
	all := h.All()
	if len(all) != 5 {
		t.Fatalf("Len = %d, want 5", len(all))
	}
	for i, ev := range all {
		if want := fmt.Sprintf("msg %d", i); ev.Text != want {
			t.Errorf("all[%d].Text = %q, want %q", i, ev.Text, want)
		}
	}
}

func TestHistoryEvictsOldest(t *testing.T) {
	h := NewHistory()
	a := Author{Name: "alice"}
	for i := 0; i < HistoryDepth+3; i++ {
		h.Push(NewPublic(a, fmt.Sprintf("msg %d", i)))
	}
	all := h.All()
	if len(all) != HistoryDepth {
		t.Fatalf("Len = %d, want %d", len(all), HistoryDepth)
	}
	if all[0].Text != "msg 3" {
		t.Errorf("oldest = %q, want %q", all[0].Text, "msg 3")
	}
	if last := all[len(all)-1].Text; last != fmt.Sprintf("msg %d", HistoryDepth+2) {
		t.Errorf("newest = %q", last)
	}
}

func TestHistoryKeepsOnlyChatLines(t *testing.T) {
	h := NewHistory()
	a := Author{Name: "alice"}
	h.Push(NewPublic(a, "said"))
	h.Push(NewEmote(a, "waves"))
	h.Push(NewSystem("motd"))
	h.Push(NewAnnounce("alice joined"))
	h.Push(NewError("nope"))
	h.Push(NewPrivate(a, Author{Name: "bob"}, "secret"))

	if h.Len() != 2 {
		t.Fatalf("Len = %d, want 2 (public and emote only)", h.Len())
	}
	all := h.All()
	if all[0].Type != Public || all[1].Type != Emote {
		t.Errorf("retained types = %v, %v", all[0].Type, all[1].Type)
	}
}
