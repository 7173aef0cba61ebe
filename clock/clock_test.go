package clock_test

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/AltairaLabs/PoseKit/clock"
	"github.com/AltairaLabs/PoseKit/clock/clocktest"
)

func TestReal_AfterFunc(t *testing.T) {
	done := make(chan struct{})
	clock.Real().AfterFunc(5*time.Millisecond, func() { close(done) })

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("AfterFunc callback did not run")
	}
}

func TestReal_EveryStops(t *testing.T) {
	var n atomic.Int32
	tm := clock.Real().Every(2*time.Millisecond, func() { n.Add(1) })

	assert.Eventually(t, func() bool { return n.Load() >= 2 }, time.Second, time.Millisecond)
	assert.True(t, tm.Stop())
	assert.False(t, tm.Stop())

	time.Sleep(10 * time.Millisecond)
	settled := n.Load()
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, settled, n.Load())
}

func TestFake_AdvanceOrdersCallbacks(t *testing.T) {
	c := clocktest.New(time.Unix(0, 0))
	var order []string

	c.AfterFunc(3*time.Second, func() { order = append(order, "three") })
	c.AfterFunc(1*time.Second, func() { order = append(order, "one") })
	c.Every(2*time.Second, func() { order = append(order, "tick") })

	c.Advance(4 * time.Second)
	assert.Equal(t, []string{"one", "tick", "three", "tick"}, order)
	assert.Equal(t, 1, c.Pending())
	assert.Equal(t, []time.Duration{3 * time.Second, time.Second}, c.Scheduled())
}

func TestFake_StopPreventsCallback(t *testing.T) {
	c := clocktest.New(time.Unix(0, 0))
	fired := false
	tm := c.AfterFunc(time.Second, func() { fired = true })

	assert.True(t, tm.Stop())
	c.Advance(time.Minute)
	assert.False(t, fired)
	assert.False(t, c.FireNext())
}

func TestFake_CallbackMaySchedule(t *testing.T) {
	c := clocktest.New(time.Unix(0, 0))
	var fired []time.Duration
	start := c.Now()

	c.AfterFunc(time.Second, func() {
		fired = append(fired, c.Now().Sub(start))
		c.AfterFunc(time.Second, func() { fired = append(fired, c.Now().Sub(start)) })
	})

	assert.True(t, c.FireNext())
	assert.True(t, c.FireNext())
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, fired)
}
