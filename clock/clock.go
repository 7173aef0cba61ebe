// Package clock provides cancellable one-shot and periodic timers behind an
// interface so timer-driven components (reconnect backoff, heartbeat, demo
// ticks, duration counters) can run against a deterministic fake in tests.
package clock

import (
	"sync"
	"time"
)

// Timer is a handle to a scheduled callback.
type Timer interface {
	// Stop cancels future invocations. It reports whether the timer was still
	// active. Stop does not wait for a callback that is already running.
	Stop() bool
}

// Clock schedules callbacks.
type Clock interface {
	Now() time.Time
	// AfterFunc runs f once after d in its own goroutine.
	AfterFunc(d time.Duration, f func()) Timer
	// Every runs f every d until the returned Timer is stopped.
	Every(d time.Duration, f func()) Timer
}

// Real returns a Clock backed by the time package.
func Real() Clock {
	return realClock{}
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

func (realClock) Every(d time.Duration, f func()) Timer {
	t := &ticker{done: make(chan struct{})}
	go t.loop(d, f)
	return t
}

type ticker struct {
	once sync.Once
	done chan struct{}
}

func (t *ticker) loop(d time.Duration, f func()) {
	tk := time.NewTicker(d)
	defer tk.Stop()

	for {
		select {
		case <-t.done:
			return
		case <-tk.C:
			select {
			case <-t.done:
				return
			default:
			}
			f()
		}
	}
}

func (t *ticker) Stop() bool {
	stopped := false
	t.once.Do(func() {
		close(t.done)
		stopped = true
	})
	return stopped
}
