package scheduler

import (
	"sync"
	"time"
)

// Clock abstracts timer arming so scheduling math is testable without real
// delays
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type Timer interface {
	Stop() bool
}

type realClock struct{}

func NewRealClock() Clock {
	return realClock{}
}

func (realClock) Now() time.Time {
	return time.Now()
}

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// FakeClock arms timers without any real delay and fires them manually via
// Advance
type FakeClock struct {
	mutex   sync.Mutex
	now     time.Time
	pending []*fakeTimer
}

type fakeTimer struct {
	clock   *FakeClock
	fireAt  time.Time
	f       func()
	stopped bool
	fired   bool
}

func NewFakeClock(now time.Time) *FakeClock {
	return &FakeClock{now: now}
}

func (c *FakeClock) Now() time.Time {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	return c.now
}

func (c *FakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	timer := &fakeTimer{
		clock:  c,
		fireAt: c.now.Add(d),
		f:      f,
	}
	c.pending = append(c.pending, timer)

	return timer
}

// Advance moves the clock forward and synchronously fires any due timers
func (c *FakeClock) Advance(d time.Duration) {
	c.mutex.Lock()
	c.now = c.now.Add(d)

	var due []*fakeTimer
	var remaining []*fakeTimer

	for _, timer := range c.pending {
		if !timer.stopped && !timer.fireAt.After(c.now) {
			timer.fired = true
			due = append(due, timer)
		} else if !timer.stopped {
			remaining = append(remaining, timer)
		}
	}
	c.pending = remaining
	c.mutex.Unlock()

	for _, timer := range due {
		timer.f()
	}
}

func (t *fakeTimer) Stop() bool {
	t.clock.mutex.Lock()
	defer t.clock.mutex.Unlock()

	if t.fired || t.stopped {
		return false
	}

	t.stopped = true
	return true
}
