package mech

import (
	"net/http"
	"net/url"
)

// snapshot is one history entry: a deep copy of the full session state taken
// before a state-replacing action. Later mutation of the live session is
// never observable through a pushed snapshot.
type snapshot struct {
	page        *page
	lastURI     *url.URL
	lastRequest *http.Request
}

// history is the back-navigation stack. It grows only via push-before-
// navigate and shrinks only via pop-on-back.
type history struct {
	stack []*snapshot
}

func (h *history) push(s *snapshot) {
	h.stack = append(h.stack, s)
}

// pop removes and returns the most recent entry. The second return is false
// when the stack is empty: you can't go back past the first page.
func (h *history) pop() (*snapshot, bool) {
	if len(h.stack) == 0 {
		return nil, false
	}
	last := h.stack[len(h.stack)-1]
	h.stack[len(h.stack)-1] = nil
	h.stack = h.stack[:len(h.stack)-1]
	return last, true
}

func (h *history) depth() int {
	return len(h.stack)
}
