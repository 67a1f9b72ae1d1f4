package throttle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/inview/internal/clock"
)

const window = 100 * time.Millisecond

var epoch = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

type invocation struct {
	at  time.Duration
	arg int
}

type harness struct {
	clock *clock.Fake
	calls []invocation
	t     *Throttled[int]
}

func newHarness(opts Options) *harness {
	h := &harness{clock: clock.NewFake(epoch)}
	h.t = New(func(arg int) {
		h.calls = append(h.calls, invocation{at: h.clock.Now().Sub(epoch), arg: arg})
	}, window, opts, h.clock)
	return h
}

// callAt advances the clock to offset ms and calls with arg = offset.
func (h *harness) callAt(ms int) {
	h.clock.Set(epoch.Add(time.Duration(ms) * time.Millisecond))
	h.t.Call(ms)
}

func (h *harness) advanceTo(ms int) {
	h.clock.Set(epoch.Add(time.Duration(ms) * time.Millisecond))
}

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }

func TestThrottle_LeadingAndTrailing(t *testing.T) {
	h := newHarness(DefaultOptions())

	h.callAt(0)
	require.Equal(t, []invocation{{0, 0}}, h.calls, "leading edge fires synchronously")

	h.callAt(30)
	assert.Equal(t, StatePendingTrailing, h.t.State())
	h.callAt(60)
	assert.Len(t, h.calls, 1)

	h.advanceTo(99)
	assert.Len(t, h.calls, 1)

	h.advanceTo(100)
	assert.Equal(t, []invocation{{0, 0}, {ms(100), 60}}, h.calls, "trailing edge carries the latest argument")
	assert.Equal(t, StateCooling, h.t.State())

	h.advanceTo(500)
	assert.Len(t, h.calls, 2)
	assert.Equal(t, StateIdle, h.t.State())

	stats := h.t.Stats()
	assert.Equal(t, int64(3), stats.Calls)
	assert.Equal(t, int64(1), stats.Leading)
	assert.Equal(t, int64(1), stats.Trailing)
	assert.Equal(t, int64(1), stats.Dropped)
}

func TestThrottle_TrailingResetsWindow(t *testing.T) {
	h := newHarness(DefaultOptions())

	h.callAt(0)
	h.callAt(50)
	h.advanceTo(100) // trailing fire, window restarts at 100
	h.callAt(150)
	assert.Len(t, h.calls, 2, "call inside the new window is deferred")

	h.advanceTo(200)
	assert.Equal(t, []invocation{{0, 0}, {ms(100), 50}, {ms(200), 150}}, h.calls)
}

func TestThrottle_LeadingOnly(t *testing.T) {
	h := newHarness(Options{Leading: true, Trailing: false})

	h.callAt(0)
	h.callAt(30)
	h.callAt(60)
	assert.Equal(t, StateCooling, h.t.State())
	h.advanceTo(300)
	assert.Equal(t, []invocation{{0, 0}}, h.calls)
	assert.Equal(t, 0, h.clock.Pending())

	h.callAt(300)
	assert.Equal(t, []invocation{{0, 0}, {ms(300), 300}}, h.calls)
	assert.Equal(t, int64(2), h.t.Stats().Dropped)
}

func TestThrottle_TrailingOnly(t *testing.T) {
	h := newHarness(Options{Leading: false, Trailing: true})

	h.callAt(0)
	assert.Empty(t, h.calls, "first call must not fire immediately")
	h.callAt(30)
	h.callAt(60)

	h.advanceTo(100)
	assert.Equal(t, []invocation{{ms(100), 60}}, h.calls)
	assert.Equal(t, StateIdle, h.t.State(), "trailing fire resets the window when leading is off")

	h.callAt(150)
	assert.Len(t, h.calls, 1)
	h.advanceTo(250)
	assert.Equal(t, []invocation{{ms(100), 60}, {ms(250), 150}}, h.calls)
}

func TestThrottle_NeitherEdge(t *testing.T) {
	h := newHarness(Options{Leading: false, Trailing: false})

	h.callAt(0)
	h.callAt(50)
	assert.Empty(t, h.calls)
	assert.Equal(t, 0, h.clock.Pending())

	// Only a call arriving after a full window fires.
	h.callAt(100)
	assert.Equal(t, []invocation{{ms(100), 100}}, h.calls)

	h.callAt(150)
	assert.Len(t, h.calls, 1)
}

func TestThrottle_Cancel(t *testing.T) {
	h := newHarness(DefaultOptions())

	h.callAt(0)
	h.callAt(30)
	require.Equal(t, StatePendingTrailing, h.t.State())

	h.t.Cancel()
	assert.Equal(t, StateIdle, h.t.State())

	h.advanceTo(200)
	assert.Len(t, h.calls, 1, "cancelled trailing fire must not run")

	h.callAt(210)
	assert.Equal(t, []invocation{{0, 0}, {ms(210), 210}}, h.calls)
}

func TestThrottle_CallAfterCancelFiresImmediately(t *testing.T) {
	h := newHarness(DefaultOptions())

	h.callAt(0)
	h.t.Cancel()
	h.callAt(10)

	assert.Equal(t, []invocation{{0, 0}, {ms(10), 10}}, h.calls)
}

func TestThrottle_ClockMovedBackwards(t *testing.T) {
	h := newHarness(DefaultOptions())

	h.callAt(1000)
	h.callAt(1020) // schedules trailing at 1100

	h.clock.Set(epoch.Add(900 * time.Millisecond))
	h.t.Call(900)

	assert.Equal(t, []invocation{{ms(1000), 1000}, {ms(900), 900}}, h.calls)
	assert.Equal(t, 0, h.clock.Pending(), "pending trailing fire is dropped")
}

func TestThrottle_ReentrantCall(t *testing.T) {
	fake := clock.NewFake(epoch)
	var args []int
	var th *Throttled[int]
	th = New(func(arg int) {
		args = append(args, arg)
		if arg == 1 {
			th.Call(2)
		}
	}, window, DefaultOptions(), fake)

	th.Call(1)
	assert.Equal(t, []int{1}, args)

	fake.Advance(window)
	assert.Equal(t, []int{1, 2}, args)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "cooling", StateCooling.String())
	assert.Equal(t, "pending-trailing", StatePendingTrailing.String())
	assert.Equal(t, "unknown", State(42).String())
}
