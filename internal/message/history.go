package message

import "sync"

// HistoryDepth is the number of recent room events replayed to a joining
// user. Fixed at compile time.
const HistoryDepth = 20

// History is a bounded ring of the most recent Public and Emote events.
// The room engine replays it, oldest first, to every new member after the
// MOTD.
type History struct {
	mu    sync.Mutex
	buf   [HistoryDepth]*Event
	start int
	count int
}

func NewHistory() *History {
	return &History{}
}

// Push records ev, evicting the oldest entry when full. Only Public and
// Emote events belong in the replay window; anything else is dropped.
func (h *History) Push(ev *Event) {
	if ev.Type != Public && ev.Type != Emote {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.count < HistoryDepth {
		h.buf[(h.start+h.count)%HistoryDepth] = ev
		h.count++
		return
	}
	h.buf[h.start] = ev
	h.start = (h.start + 1) % HistoryDepth
}

// All returns the retained events in original order.
func (h *History) All() []*Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]*Event, 0, h.count)
	for i := 0; i < h.count; i++ {
		out = append(out, h.buf[(h.start+i)%HistoryDepth])
	}
	return out
}

// Len returns the number of retained events.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.count
}
