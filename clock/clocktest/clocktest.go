// Package clocktest provides a manually advanced clock.Clock for tests.
// Callbacks run synchronously on the goroutine calling Advance, in deadline
// order, so timer-driven behaviour is fully deterministic.
package clocktest

import (
	"sort"
	"sync"
	"time"

	"github.com/AltairaLabs/PoseKit/clock"
)

// Clock is a fake clock.Clock.
type Clock struct {
	mu        sync.Mutex
	now       time.Time
	seq       int
	timers    []*timer
	scheduled []time.Duration
}

type timer struct {
	c       *Clock
	id      int
	at      time.Time
	period  time.Duration
	f       func()
	stopped bool
}

// New returns a fake clock starting at start.
func New(start time.Time) *Clock {
	return &Clock{now: start}
}

// Now returns the fake current time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// AfterFunc schedules f once after d and records d in Scheduled.
func (c *Clock) AfterFunc(d time.Duration, f func()) clock.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.scheduled = append(c.scheduled, d)
	return c.add(d, 0, f)
}

// Every schedules f every d.
func (c *Clock) Every(d time.Duration, f func()) clock.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.add(d, d, f)
}

func (c *Clock) add(d, period time.Duration, f func()) *timer {
	c.seq++
	t := &timer{c: c, id: c.seq, at: c.now.Add(d), period: period, f: f}
	c.timers = append(c.timers, t)
	return t
}

// Stop implements clock.Timer.
func (t *timer) Stop() bool {
	t.c.mu.Lock()
	defer t.c.mu.Unlock()
	if t.stopped {
		return false
	}
	t.stopped = true
	t.c.remove(t)
	return true
}

func (c *Clock) remove(t *timer) {
	for i, other := range c.timers {
		if other == t {
			c.timers = append(c.timers[:i], c.timers[i+1:]...)
			return
		}
	}
}

// Advance moves the clock forward by d, running every callback that falls due.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	for {
		next := c.nextDue(target)
		if next == nil {
			break
		}
		c.now = next.at
		if next.period > 0 {
			next.at = next.at.Add(next.period)
		} else {
			next.stopped = true
			c.remove(next)
		}
		f := next.f
		c.mu.Unlock()
		f()
		c.mu.Lock()
	}
	c.now = target
	c.mu.Unlock()
}

// FireNext advances exactly to the earliest pending timer and runs it.
// It reports false when nothing is pending.
func (c *Clock) FireNext() bool {
	c.mu.Lock()
	next := c.nextDue(time.Time{})
	if next == nil {
		c.mu.Unlock()
		return false
	}
	d := next.at.Sub(c.now)
	c.mu.Unlock()
	c.Advance(d)
	return true
}

// nextDue returns the earliest active timer due at or before limit.
// A zero limit means no limit. Must be called with c.mu held.
func (c *Clock) nextDue(limit time.Time) *timer {
	if len(c.timers) == 0 {
		return nil
	}
	sorted := make([]*timer, len(c.timers))
	copy(sorted, c.timers)
	sort.Slice(sorted, func(i, j int) bool {
		if !sorted[i].at.Equal(sorted[j].at) {
			return sorted[i].at.Before(sorted[j].at)
		}
		return sorted[i].id < sorted[j].id
	})
	first := sorted[0]
	if !limit.IsZero() && first.at.After(limit) {
		return nil
	}
	return first
}

// Scheduled returns the delays passed to AfterFunc, in call order.
func (c *Clock) Scheduled() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]time.Duration, len(c.scheduled))
	copy(out, c.scheduled)
	return out
}

// Pending returns the number of active timers.
func (c *Clock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.timers)
}

var _ clock.Clock = (*Clock)(nil)
