// Package throttle limits how often an operation runs.
//
// A Throttled operation executes at most once per window. Bursts of calls
// coalesce into an immediate (leading edge) invocation plus at most one
// deferred (trailing edge) invocation carrying the most recent argument.
//
// The throttle is a small state machine:
//
//	            call (window elapsed)
//	   Idle ──────────────────────────► Cooling
//	    ▲                                 │ call (inside window, trailing)
//	    │ cancel                          ▼
//	    └──────────────────────── PendingTrailing
//	                                      │ timer fire
//	                                      ▼
//	                                   Cooling
//
// A call inside the window while a trailing fire is already pending only
// replaces the retained argument.
package throttle

import (
	"sync"
	"time"

	"github.com/dshills/inview/internal/clock"
)

// State is the observable state of a Throttled operation.
type State uint8

const (
	// StateIdle means the next call fires immediately (subject to Leading).
	StateIdle State = iota
	// StateCooling means a fire happened within the current window and no trailing fire is queued.
	StateCooling
	// StatePendingTrailing means a trailing fire is scheduled.
	StatePendingTrailing
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCooling:
		return "cooling"
	case StatePendingTrailing:
		return "pending-trailing"
	default:
		return "unknown"
	}
}

// Options selects the firing edges.
type Options struct {
	// Leading fires on the first call of a burst.
	Leading bool
	// Trailing fires once more after the window when calls were dropped.
	Trailing bool
}

// DefaultOptions enables both edges.
func DefaultOptions() Options {
	return Options{Leading: true, Trailing: true}
}

// Stats counts invocations and dropped calls.
type Stats struct {
	Calls    int64
	Leading  int64
	Trailing int64
	Dropped  int64
}

// Throttled wraps fn so it runs at most once per window.
// Call never blocks on a pending fire; fn is never invoked with the
// throttle's lock held, so fn may call back into the Throttled value.
type Throttled[T any] struct {
	fn     func(T)
	window time.Duration
	opts   Options
	clock  clock.Clock

	mu       sync.Mutex
	previous time.Time
	timer    clock.Timer
	gen      uint64
	lastArg  T
	stats    Stats
}

// New returns a throttled wrapper around fn. A nil clock uses clock.Real.
func New[T any](fn func(T), window time.Duration, opts Options, clk clock.Clock) *Throttled[T] {
	if clk == nil {
		clk = clock.Real{}
	}
	return &Throttled[T]{
		fn:     fn,
		window: window,
		opts:   opts,
		clock:  clk,
	}
}

// Window returns the throttle window.
func (t *Throttled[T]) Window() time.Duration {
	return t.window
}

// Call requests an invocation of fn with arg.
func (t *Throttled[T]) Call(arg T) {
	t.mu.Lock()
	t.stats.Calls++

	now := t.clock.Now()
	if t.previous.IsZero() && !t.opts.Leading {
		t.previous = now
	}
	remaining := t.window - now.Sub(t.previous)
	t.lastArg = arg

	// remaining > window covers the clock moving backwards.
	if remaining <= 0 || remaining > t.window {
		t.stopTimer()
		t.previous = now
		t.stats.Leading++
		t.clearArg()
		t.mu.Unlock()

		t.fn(arg)
		return
	}

	if t.timer == nil && t.opts.Trailing {
		t.gen++
		gen := t.gen
		t.timer = t.clock.AfterFunc(remaining, func() { t.fire(gen) })
	} else {
		t.stats.Dropped++
	}
	t.mu.Unlock()
}

// fire runs the trailing edge scheduled under generation gen.
func (t *Throttled[T]) fire(gen uint64) {
	t.mu.Lock()
	if gen != t.gen || t.timer == nil {
		// Cancelled or superseded by a leading fire after the timer was armed.
		t.mu.Unlock()
		return
	}

	if t.opts.Leading {
		t.previous = t.clock.Now()
	} else {
		t.previous = time.Time{}
	}
	t.timer = nil
	arg := t.lastArg
	t.clearArg()
	t.stats.Trailing++
	t.mu.Unlock()

	t.fn(arg)
}

// Cancel drops any pending trailing fire and resets the window so the
// next call behaves like the first one.
func (t *Throttled[T]) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stopTimer()
	t.previous = time.Time{}
	t.clearArg()
}

// State reports the current state.
func (t *Throttled[T]) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch {
	case t.timer != nil:
		return StatePendingTrailing
	case t.previous.IsZero():
		return StateIdle
	case t.clock.Now().Sub(t.previous) < t.window:
		return StateCooling
	default:
		return StateIdle
	}
}

// Stats returns a snapshot of the counters.
func (t *Throttled[T]) Stats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stats
}

// stopTimer cancels the pending timer (lock held).
func (t *Throttled[T]) stopTimer() {
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.gen++
}

// clearArg releases the retained argument (lock held).
func (t *Throttled[T]) clearArg() {
	var zero T
	t.lastArg = zero
}
