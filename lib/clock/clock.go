// Copyright 2026 The Grange Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import "time"

// Clock is the time source injected into deadline-driven components.
// Implementations: Real (standard library) and Fake (deterministic,
// for tests).
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// After returns a channel that receives once, after d has
	// elapsed. A non-positive d delivers immediately.
	After(d time.Duration) <-chan time.Time

	// AfterFunc schedules f to run after d. The returned Timer
	// cancels the pending call via Stop; its C field is nil, matching
	// time.AfterFunc.
	AfterFunc(d time.Duration, f func()) *Timer

	// NewTicker returns a Ticker delivering on C every d. Panics if
	// d <= 0, matching time.NewTicker.
	NewTicker(d time.Duration) *Ticker
}

// Timer is a cancellable one-shot. Stop and Reset are safe to call
// regardless of whether the timer has already fired or been stopped.
type Timer struct {
	// C delivers the fire time for timers created by After-style
	// constructors. Nil for AfterFunc timers.
	C <-chan time.Time

	stop  func() bool
	reset func(time.Duration) bool
}

// Stop cancels the timer. Returns false if it already fired or was
// already stopped.
func (t *Timer) Stop() bool { return t.stop() }

// Reset re-arms the timer to fire after d. Returns whether the timer
// was active before the call.
func (t *Timer) Reset(d time.Duration) bool { return t.reset(d) }

// Ticker delivers a tick on C at a fixed interval until stopped. C has
// capacity 1; a slow consumer drops ticks rather than queueing them.
type Ticker struct {
	C <-chan time.Time

	stop  func()
	reset func(time.Duration)
}

// Stop ends the tick stream. It does not close C.
func (t *Ticker) Stop() { t.stop() }

// Reset changes the interval and restarts the tick cycle.
func (t *Ticker) Reset(d time.Duration) { t.reset(d) }
