// Copyright 2026 The Grange Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil holds shared helpers for Grange tests.
//
// [RequireReceive] and [RequireSend] wrap channel operations in a
// timeout safety valve so that a regression hangs a single assertion
// instead of the whole test binary. They are the only place in the
// test suite that waits on the real clock; everything time-dependent
// goes through lib/clock's Fake.
//
// [UniqueID] hands out process-unique identifiers for tests that need
// distinguishable user or room names without reaching for time.Now.
//
// Helpers fail the test directly via Fatalf; setup failures are not
// recoverable.
package testutil
