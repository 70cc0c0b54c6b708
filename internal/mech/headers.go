package mech

import (
	"net/http"
	"sync"
)

// Headers is a mutable header table applied to every outgoing request of
// every session referencing it. It is constructor-injectable so independent
// sessions can share one table; updates follow last-writer-wins. Deliberately
// not part of history snapshots: added headers survive Back().
type Headers struct {
	mu      sync.RWMutex
	entries map[string]string
}

// NewHeaders returns an empty header table.
func NewHeaders() *Headers {
	return &Headers{entries: make(map[string]string)}
}

// Set adds or replaces a header.
func (h *Headers) Set(name, value string) {
	h.mu.Lock()
	h.entries[name] = value
	h.mu.Unlock()
}

// Delete removes a header.
func (h *Headers) Delete(name string) {
	h.mu.Lock()
	delete(h.entries, name)
	h.mu.Unlock()
}

// Get returns the value for a header name, and whether it is present.
func (h *Headers) Get(name string) (string, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	v, ok := h.entries[name]
	return v, ok
}

// apply copies every entry onto a request, overwriting same-named headers
// already set.
func (h *Headers) apply(req *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for name, value := range h.entries {
		req.Header.Set(name, value)
	}
}
