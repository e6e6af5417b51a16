package coordinator

import (
	"log/slog"
	"time"

	"github.com/andres-erbsen/clock"
)

type timerKind int

const (
	timerPace timerKind = iota
	timerReset
	timerRequest
	timerInactivity
)

func (k timerKind) String() string {
	switch k {
	case timerPace:
		return "pace"
	case timerReset:
		return "reset"
	case timerRequest:
		return "request"
	case timerInactivity:
		return "inactivity"
	default:
		return "unknown"
	}
}

// timerSlot pairs a running timer with the token its callback carries. A
// firing whose token no longer matches the slot is stale and dropped.
type timerSlot struct {
	timer *clock.Timer
	token uint64
}

func (c *Coordinator) arm(kind timerKind, d time.Duration) {
	c.disarm(kind)
	c.tokenSeq++
	token := c.tokenSeq
	c.timers[kind] = timerSlot{
		token: token,
		timer: c.clock.AfterFunc(d, func() {
			c.post(timerFired{kind: kind, token: token})
		}),
	}
}

func (c *Coordinator) disarm(kind timerKind) {
	if slot, ok := c.timers[kind]; ok {
		slot.timer.Stop()
		delete(c.timers, kind)
	}
}

func (c *Coordinator) stopTimers() {
	for kind := range c.timers {
		c.disarm(kind)
	}
}

// claim reports whether ev is the live firing for its slot and clears it.
func (c *Coordinator) claim(ev timerFired) bool {
	slot, ok := c.timers[ev.kind]
	if !ok || slot.token != ev.token {
		slog.Debug("Stale timer ignored", "timer", ev.kind.String())
		return false
	}
	delete(c.timers, ev.kind)
	return true
}
