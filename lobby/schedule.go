// Copyright 2026 The Grange Authors
// SPDX-License-Identifier: Apache-2.0

package lobby

import (
	"container/heap"
	"time"

	"github.com/grange-collective/grange/lib/clock"
)

// taskKind discriminates the scheduler's deadline types.
type taskKind uint8

const (
	taskPoolRefresh taskKind = iota
	taskEventStart
	taskVerifyExpiry
)

// taskKey identifies a scheduled deadline by its kind and owning
// entity (channel ID, event ID, or user ID). One live deadline per
// key.
type taskKey struct {
	kind  taskKind
	owner string
}

// taskEntry is one heap element. Entries are never removed from the
// heap directly; cancellation deletes the key from the armed map and
// the stale entry is dropped when it surfaces (lazy deletion, keyed
// by exact deadline match).
type taskEntry struct {
	key    taskKey
	fireAt time.Time
}

// taskHeap is a min-heap of entries ordered by deadline. Implements
// container/heap.Interface.
type taskHeap []taskEntry

func (h taskHeap) Len() int            { return len(h) }
func (h taskHeap) Less(i, j int) bool  { return h[i].fireAt.Before(h[j].fireAt) }
func (h taskHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *taskHeap) Push(x any)         { *h = append(*h, x.(taskEntry)) }
func (h *taskHeap) Pop() any {
	old := *h
	entry := old[len(old)-1]
	*h = old[:len(old)-1]
	return entry
}

// scheduler drives all lobby deadlines off a single clock timer. It
// has no lock of its own: every method runs with the owning
// Coordinator's mutex held, which is what makes "delete the entity and
// cancel its timers" one atomic step.
type scheduler struct {
	clock   clock.Clock
	entries taskHeap
	armed   map[taskKey]time.Time
	timer   *clock.Timer

	// fire handles a due deadline. Invoked with the Coordinator's
	// mutex held.
	fire func(key taskKey, now time.Time)

	// wake re-enters the Coordinator from the clock callback (takes
	// the mutex, fires due tasks, re-arms).
	wake func()
}

func newScheduler(clk clock.Clock, fire func(taskKey, time.Time), wake func()) *scheduler {
	return &scheduler{
		clock: clk,
		armed: make(map[taskKey]time.Time),
		fire:  fire,
		wake:  wake,
	}
}

// scheduleLocked arms (or re-arms) the key's deadline.
func (s *scheduler) scheduleLocked(key taskKey, fireAt time.Time) {
	s.armed[key] = fireAt
	heap.Push(&s.entries, taskEntry{key: key, fireAt: fireAt})
	s.rearmLocked()
}

// cancelLocked disarms the key. Idempotent; safe when the deadline
// already fired or was never armed.
func (s *scheduler) cancelLocked(key taskKey) {
	delete(s.armed, key)
}

// fireDueLocked pops and handles every armed entry due at or before
// now. Handlers may schedule or cancel tasks; new deadlines in the
// past fire within this same call.
func (s *scheduler) fireDueLocked(now time.Time) {
	for s.entries.Len() > 0 {
		earliest := s.entries[0]
		if earliest.fireAt.After(now) {
			break
		}
		heap.Pop(&s.entries)

		// Stale entry: cancelled, or superseded by a re-arm at a
		// different deadline.
		if armedAt, live := s.armed[earliest.key]; !live || !armedAt.Equal(earliest.fireAt) {
			continue
		}
		delete(s.armed, earliest.key)

		s.fire(earliest.key, now)
	}
	s.rearmLocked()
}

// rearmLocked points the clock timer at the earliest live deadline,
// discarding stale heap tops along the way.
func (s *scheduler) rearmLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}

	for s.entries.Len() > 0 {
		earliest := s.entries[0]
		if armedAt, live := s.armed[earliest.key]; live && armedAt.Equal(earliest.fireAt) {
			break
		}
		heap.Pop(&s.entries)
	}
	if s.entries.Len() == 0 {
		return
	}

	delay := s.entries[0].fireAt.Sub(s.clock.Now())
	if delay <= 0 {
		// Never hand AfterFunc a non-positive delay: the fake clock
		// would run the callback synchronously while the
		// Coordinator's mutex is held. One nanosecond defers it to
		// the next clock movement.
		delay = 1
	}
	s.timer = s.clock.AfterFunc(delay, s.wake)
}
