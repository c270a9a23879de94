// Copyright 2026 The Grange Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"sync"
	"time"
)

// Fake returns a FakeClock frozen at initial. Time moves only through
// Advance.
func Fake(initial time.Time) *FakeClock {
	return &FakeClock{now: initial}
}

// FakeClock is a deterministic Clock for tests. Pending timers fire
// during Advance, in deadline order, with the clock reading exactly
// their deadline at fire time. AfterFunc callbacks run synchronously
// inside Advance (without FakeClock's internal lock held), so by the
// time Advance returns, every due callback has completed.
//
// Safe for concurrent use. Do not call Advance from within an
// AfterFunc callback.
type FakeClock struct {
	mu      sync.Mutex
	now     time.Time
	entries []*fakeEntry
}

// fakeEntry is one registered timer or ticker.
type fakeEntry struct {
	due      time.Time
	channel  chan time.Time // delivery channel; nil for AfterFunc entries
	callback func()         // AfterFunc callback; nil otherwise
	every    time.Duration  // ticker interval; 0 for one-shots
	stopped  bool
	fired    bool
}

// Now returns the current fake time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// After returns a channel receiving once the clock advances past d.
func (c *FakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	channel := make(chan time.Time, 1)
	if d <= 0 {
		channel <- c.now
		return channel
	}
	c.entries = append(c.entries, &fakeEntry{due: c.now.Add(d), channel: channel})
	return channel
}

// AfterFunc schedules f to run when the clock advances past d. A
// non-positive d runs f synchronously before returning.
func (c *FakeClock) AfterFunc(d time.Duration, f func()) *Timer {
	if d <= 0 {
		f()
		return &Timer{
			stop:  func() bool { return false },
			reset: func(time.Duration) bool { return false },
		}
	}

	c.mu.Lock()
	entry := &fakeEntry{due: c.now.Add(d), callback: f}
	c.entries = append(c.entries, entry)
	c.mu.Unlock()

	return &Timer{
		stop:  func() bool { return c.deactivate(entry) },
		reset: func(d time.Duration) bool { return c.rearm(entry, d) },
	}
}

// NewTicker returns a Ticker firing every d fake-time units during
// Advance. Panics if d <= 0, matching time.NewTicker.
func (c *FakeClock) NewTicker(d time.Duration) *Ticker {
	if d <= 0 {
		panic("clock: non-positive interval for NewTicker")
	}

	c.mu.Lock()
	channel := make(chan time.Time, 1)
	entry := &fakeEntry{due: c.now.Add(d), channel: channel, every: d}
	c.entries = append(c.entries, entry)
	c.mu.Unlock()

	return &Ticker{
		C:    channel,
		stop: func() { c.deactivate(entry) },
		reset: func(d time.Duration) {
			if d <= 0 {
				panic("clock: non-positive interval for Ticker.Reset")
			}
			c.mu.Lock()
			entry.every = d
			entry.due = c.now.Add(d)
			entry.stopped = false
			c.mu.Unlock()
		},
	}
}

// Advance moves the clock forward by d, firing every timer whose
// deadline falls within the window, in deadline order. Tickers
// re-arm themselves and may fire multiple times in one Advance.
func (c *FakeClock) Advance(d time.Duration) {
	if d < 0 {
		panic("clock: negative Advance")
	}

	c.mu.Lock()
	target := c.now.Add(d)

	for {
		entry := c.nextDueLocked(target)
		if entry == nil {
			break
		}
		c.now = entry.due

		if entry.every > 0 {
			entry.due = entry.due.Add(entry.every)
		} else {
			entry.fired = true
		}

		if entry.callback != nil {
			// Run the callback without the lock so it can use the
			// clock (Now, AfterFunc) freely.
			c.mu.Unlock()
			entry.callback()
			c.mu.Lock()
		} else {
			select {
			case entry.channel <- c.now:
			default:
			}
		}

		// Components that re-arm on every fire would otherwise grow
		// the entry slice without bound across a long window.
		c.compactLocked()
	}

	c.now = target
	c.mu.Unlock()
}

// nextDueLocked returns the earliest live entry due at or before
// target, or nil. Ties resolve in registration order.
func (c *FakeClock) nextDueLocked(target time.Time) *fakeEntry {
	var earliest *fakeEntry
	for _, entry := range c.entries {
		if entry.stopped || entry.fired || entry.due.After(target) {
			continue
		}
		if earliest == nil || entry.due.Before(earliest.due) {
			earliest = entry
		}
	}
	return earliest
}

// compactLocked drops spent entries. Stop and Reset closures keep
// their entry pointers, which stay valid off-slice.
func (c *FakeClock) compactLocked() {
	live := c.entries[:0]
	for _, entry := range c.entries {
		if !entry.stopped && !entry.fired {
			live = append(live, entry)
		}
	}
	c.entries = live
}

// deactivate implements Stop for timers and tickers. Returns whether
// the entry was still live.
func (c *FakeClock) deactivate(entry *fakeEntry) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if entry.stopped || entry.fired {
		return false
	}
	entry.stopped = true
	return true
}

// rearm implements Timer.Reset. Returns whether the entry was live
// before the call.
func (c *FakeClock) rearm(entry *fakeEntry, d time.Duration) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	wasActive := !entry.stopped && !entry.fired
	entry.stopped = false
	entry.fired = false
	entry.due = c.now.Add(d)
	return wasActive
}
