// Package simclock implements the simulator's logical clock and timer
// wheel (spec component A): a monotonically increasing tick counter plus a
// registry of armed timers that fire in registration order when checked.
package simclock

import (
	"github.com/tcpsim/tcpsim/protocol"
	"github.com/tcpsim/tcpsim/qerr"
)

// Component is anything that can own a timer and receive its expiry
// callback. Sender, Receiver, and any future timer owner implement this.
type Component interface {
	TimerExpired(kind protocol.TimerKind)
}

// Timer is a value-type timer descriptor. Callers construct one on the
// stack, hand it to SetTimeoutAt, and may safely reuse the local variable
// afterward — the clock stores its own copy, per the spec's "Cloneable
// timer template" note collapsed to plain value semantics.
type Timer struct {
	FireTime protocol.Tick
	Kind     protocol.TimerKind
	Owner    Component
}

// Handle is the opaque cancellation token returned by SetTimeoutAt. It
// identifies one registered timer instance, not a (Owner, Kind) pair, so
// re-arming a timer of the same kind for the same owner never collides
// with a handle still held by the caller.
type Handle uint64

type entry struct {
	handle Handle
	timer  Timer
}

// Clock is the simulator's single timer wheel. It is not safe for
// concurrent use — per the spec's single-threaded cooperative scheduling
// model, only the simulator runner's goroutine ever touches it.
type Clock struct {
	now      protocol.Tick
	nextID   Handle
	timers   []entry
	byOwnerK map[ownerKindKey]Handle
}

type ownerKindKey struct {
	owner Component
	kind  protocol.TimerKind
}

// NewClock returns a Clock starting at tick 0.
func NewClock() *Clock {
	return &Clock{byOwnerK: make(map[ownerKindKey]Handle)}
}

// CurrentTime returns the clock's current tick.
func (c *Clock) CurrentTime() protocol.Tick { return c.now }

// TimeIncrement returns the fixed per-iteration tick increment.
func (c *Clock) TimeIncrement() protocol.Tick { return protocol.TimeIncrement }

// Advance moves the clock forward by one TimeIncrement.
func (c *Clock) Advance() {
	c.now += protocol.TimeIncrement
}

// SetTimeoutAt stores an independent copy of timer and returns a handle
// identifying it. Registering a second timer of the same Kind for the
// same Owner before the first fires or is cancelled is a programmer error
// (spec §4.A) and returns qerr.InvalidTimer without registering anything;
// the returned zero Handle must not be used.
func (c *Clock) SetTimeoutAt(timer Timer) (Handle, error) {
	key := ownerKindKey{owner: timer.Owner, kind: timer.Kind}
	if _, exists := c.byOwnerK[key]; exists {
		return 0, qerr.New(qerr.InvalidTimer, "duplicate timer kind %s for owner", timer.Kind)
	}
	c.nextID++
	h := c.nextID
	c.timers = append(c.timers, entry{handle: h, timer: timer})
	c.byOwnerK[key] = h
	return h, nil
}

// CancelTimeout removes the timer identified by h. Cancelling an unknown
// handle is a programmer error and returns qerr.InvalidTimer.
func (c *Clock) CancelTimeout(h Handle) error {
	for i, e := range c.timers {
		if e.handle == h {
			c.timers = append(c.timers[:i], c.timers[i+1:]...)
			delete(c.byOwnerK, ownerKindKey{owner: e.timer.Owner, kind: e.timer.Kind})
			return nil
		}
	}
	return qerr.New(qerr.InvalidTimer, "unknown timer handle %d", h)
}

// HasTimer reports whether a timer of the given kind is currently armed
// for owner, letting callers implement "re-arm only if not already armed"
// without tracking their own handle bookkeeping.
func (c *Clock) HasTimer(owner Component, kind protocol.TimerKind) bool {
	_, ok := c.byOwnerK[ownerKindKey{owner: owner, kind: kind}]
	return ok
}

// CheckExpiredTimers iterates a snapshot of the currently registered
// timers; for each one owned by component whose FireTime has arrived, it
// invokes TimerExpired and removes the timer. Per spec §4.A, callbacks may
// register further timers, but those newly registered timers do not fire
// within this same check — the snapshot is taken up front.
func (c *Clock) CheckExpiredTimers(component Component) {
	snapshot := make([]entry, len(c.timers))
	copy(snapshot, c.timers)

	for _, e := range snapshot {
		if e.timer.Owner != component || e.timer.FireTime > c.now {
			continue
		}
		// The timer may already have been cancelled by an earlier
		// callback in this same snapshot; skip it if so.
		if err := c.CancelTimeout(e.handle); err != nil {
			continue
		}
		e.timer.Owner.TimerExpired(e.timer.Kind)
	}
}
