package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func TestFake_AdvanceFiresInDeadlineOrder(t *testing.T) {
	c := NewFake(epoch)
	var fired []string
	var seen []time.Duration

	c.AfterFunc(30*time.Millisecond, func() {
		fired = append(fired, "b")
		seen = append(seen, c.Now().Sub(epoch))
	})
	c.AfterFunc(10*time.Millisecond, func() {
		fired = append(fired, "a")
		seen = append(seen, c.Now().Sub(epoch))
	})
	c.AfterFunc(50*time.Millisecond, func() { fired = append(fired, "late") })

	c.Advance(40 * time.Millisecond)

	assert.Equal(t, []string{"a", "b"}, fired)
	assert.Equal(t, []time.Duration{10 * time.Millisecond, 30 * time.Millisecond}, seen)
	assert.Equal(t, epoch.Add(40*time.Millisecond), c.Now())
	assert.Equal(t, 1, c.Pending())
}

func TestFake_Stop(t *testing.T) {
	c := NewFake(epoch)
	called := false
	timer := c.AfterFunc(time.Millisecond, func() { called = true })

	assert.True(t, timer.Stop())
	assert.False(t, timer.Stop())

	c.Advance(time.Second)
	assert.False(t, called)
	assert.Equal(t, 0, c.Pending())
}

func TestFake_TimerScheduledDuringFire(t *testing.T) {
	c := NewFake(epoch)
	count := 0
	var tick func()
	tick = func() {
		count++
		if count < 3 {
			c.AfterFunc(10*time.Millisecond, tick)
		}
	}
	c.AfterFunc(10*time.Millisecond, tick)

	c.Advance(100 * time.Millisecond)
	assert.Equal(t, 3, count)
}

func TestFake_Set(t *testing.T) {
	c := NewFake(epoch)
	fired := false
	c.AfterFunc(5*time.Second, func() { fired = true })

	c.Set(epoch.Add(5 * time.Second))
	assert.True(t, fired)
	assert.Equal(t, epoch.Add(5*time.Second), c.Now())
}
