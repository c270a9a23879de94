// Copyright 2026 The Grange Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"sync/atomic"
	"testing"
	"time"
)

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestFakeNow(t *testing.T) {
	fake := Fake(epoch)
	if got := fake.Now(); !got.Equal(epoch) {
		t.Fatalf("Now() = %v, want %v", got, epoch)
	}
	fake.Advance(90 * time.Second)
	if got, want := fake.Now(), epoch.Add(90*time.Second); !got.Equal(want) {
		t.Fatalf("Now() after Advance = %v, want %v", got, want)
	}
}

func TestFakeAfter(t *testing.T) {
	fake := Fake(epoch)
	channel := fake.After(3 * time.Second)

	fake.Advance(2 * time.Second)
	select {
	case <-channel:
		t.Fatal("After fired before its deadline")
	default:
	}

	fake.Advance(time.Second)
	select {
	case fired := <-channel:
		if want := epoch.Add(3 * time.Second); !fired.Equal(want) {
			t.Errorf("fire time = %v, want %v", fired, want)
		}
	default:
		t.Fatal("After did not fire at its deadline")
	}
}

func TestFakeAfterImmediate(t *testing.T) {
	fake := Fake(epoch)
	for _, d := range []time.Duration{0, -time.Second} {
		select {
		case <-fake.After(d):
		default:
			t.Fatalf("After(%v) should deliver immediately", d)
		}
	}
}

func TestFakeAfterFunc(t *testing.T) {
	fake := Fake(epoch)
	var fires atomic.Int32
	fake.AfterFunc(5*time.Minute, func() { fires.Add(1) })

	fake.Advance(5*time.Minute - time.Millisecond)
	if fires.Load() != 0 {
		t.Fatal("callback ran before its deadline")
	}
	fake.Advance(time.Millisecond)
	if fires.Load() != 1 {
		t.Fatal("callback did not run at its deadline")
	}
	fake.Advance(time.Hour)
	if fires.Load() != 1 {
		t.Fatal("one-shot callback ran more than once")
	}
}

func TestFakeAfterFuncStop(t *testing.T) {
	fake := Fake(epoch)
	var fires atomic.Int32
	timer := fake.AfterFunc(time.Minute, func() { fires.Add(1) })

	if !timer.Stop() {
		t.Fatal("Stop on a live timer should return true")
	}
	if timer.Stop() {
		t.Fatal("second Stop should return false")
	}
	fake.Advance(time.Hour)
	if fires.Load() != 0 {
		t.Fatal("stopped timer fired")
	}
}

func TestFakeAfterFuncStopAfterFire(t *testing.T) {
	fake := Fake(epoch)
	timer := fake.AfterFunc(time.Second, func() {})
	fake.Advance(time.Second)
	if timer.Stop() {
		t.Fatal("Stop after fire should return false")
	}
}

func TestFakeAfterFuncReset(t *testing.T) {
	fake := Fake(epoch)
	var fires atomic.Int32
	timer := fake.AfterFunc(time.Minute, func() { fires.Add(1) })

	fake.Advance(30 * time.Second)
	if !timer.Reset(time.Minute) {
		t.Fatal("Reset on a live timer should return true")
	}
	fake.Advance(45 * time.Second)
	if fires.Load() != 0 {
		t.Fatal("reset timer fired at its original deadline")
	}
	fake.Advance(15 * time.Second)
	if fires.Load() != 1 {
		t.Fatal("reset timer did not fire at its new deadline")
	}
}

func TestFakeAfterFuncCallbackMayUseClock(t *testing.T) {
	fake := Fake(epoch)
	var observed time.Time
	fake.AfterFunc(time.Minute, func() { observed = fake.Now() })

	fake.Advance(10 * time.Minute)
	if want := epoch.Add(time.Minute); !observed.Equal(want) {
		t.Fatalf("callback observed %v, want the deadline %v", observed, want)
	}
}

func TestFakeAfterFuncChained(t *testing.T) {
	// A callback that schedules a follow-up inside the same Advance
	// window must see the follow-up fire too.
	fake := Fake(epoch)
	var second atomic.Bool
	fake.AfterFunc(time.Second, func() {
		fake.AfterFunc(time.Second, func() { second.Store(true) })
	})

	fake.Advance(3 * time.Second)
	if !second.Load() {
		t.Fatal("chained callback did not fire within the Advance window")
	}
}

func TestFakeTicker(t *testing.T) {
	fake := Fake(epoch)
	ticker := fake.NewTicker(time.Second)
	defer ticker.Stop()

	ticks := 0
	for i := 0; i < 3; i++ {
		fake.Advance(time.Second)
		select {
		case <-ticker.C:
			ticks++
		default:
		}
	}
	if ticks != 3 {
		t.Fatalf("got %d ticks over 3 seconds, want 3", ticks)
	}

	ticker.Stop()
	fake.Advance(10 * time.Second)
	select {
	case <-ticker.C:
		t.Fatal("stopped ticker delivered a tick")
	default:
	}
}

func TestFakeTickerDropsWhenSlow(t *testing.T) {
	fake := Fake(epoch)
	ticker := fake.NewTicker(time.Second)
	defer ticker.Stop()

	// Nobody reads during a 5-second window; capacity 1 means exactly
	// one tick is waiting afterwards.
	fake.Advance(5 * time.Second)
	delivered := 0
	for {
		select {
		case <-ticker.C:
			delivered++
			continue
		default:
		}
		break
	}
	if delivered != 1 {
		t.Fatalf("got %d buffered ticks, want 1", delivered)
	}
}

func TestFakeTickerPanicsOnZeroInterval(t *testing.T) {
	fake := Fake(epoch)
	defer func() {
		if recover() == nil {
			t.Fatal("NewTicker(0) should panic")
		}
	}()
	fake.NewTicker(0)
}

func TestFakeDeadlineOrdering(t *testing.T) {
	fake := Fake(epoch)
	var order []int
	fake.AfterFunc(3*time.Second, func() { order = append(order, 3) })
	fake.AfterFunc(1*time.Second, func() { order = append(order, 1) })
	fake.AfterFunc(2*time.Second, func() { order = append(order, 2) })

	fake.Advance(5 * time.Second)
	if len(order) != 3 || order[0] != 1 || order[1] != 2 || order[2] != 3 {
		t.Fatalf("callbacks fired in order %v, want [1 2 3]", order)
	}
}
