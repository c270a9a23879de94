// Copyright 2026 The Grange Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock supplies the injectable time source used by every
// deadline-driven component in Grange: slot rentals, event start
// timers, verification windows, and the pool refresh tick.
//
// Production code receives a Clock and never calls the time package
// for scheduling directly. [Real] wraps the standard library. [Fake]
// is a deterministic clock for tests: time moves only through
// [FakeClock.Advance], which fires due timers in deadline order, so a
// test can place a submission one second before a five-minute window
// closes and prove the removal timer never fires.
package clock
