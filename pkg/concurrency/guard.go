package concurrency

import (
	"errors"
	"sync"
)

var ErrBusy = errors.New("a request is already in progress")

// RequestGate allows a single outstanding request at a time. Unlike a plain
// mutex the request ends asynchronously, when its response or timeout
// arrives, so Begin and End are separate calls.
type RequestGate struct {
	mu      sync.Mutex
	pending string
}

func NewRequestGate() *RequestGate {
	return &RequestGate{}
}

// TryBegin marks name as in flight, or returns ErrBusy.
func (g *RequestGate) TryBegin(name string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.pending != "" {
		return ErrBusy
	}
	if name == "" {
		name = "request"
	}
	g.pending = name
	return nil
}

// End releases the gate. It is safe to call when nothing is pending.
func (g *RequestGate) End() (name string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	name = g.pending
	g.pending = ""
	return name
}

// Pending returns the in-flight request name.
func (g *RequestGate) Pending() (string, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.pending, g.pending != ""
}
