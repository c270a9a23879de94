// Copyright 2026 The Grange Authors
// SPDX-License-Identifier: Apache-2.0

// Package when resolves the small scheduling grammar accepted by event
// creation: relative offsets ("in 3 hours", "in 45 min"), bare clock
// times ("22:30", "9"), and a "tomorrow" marker with an optional clock
// time. [Parse] is a pure function of the input text and the supplied
// reference time.
//
// The grammar is deliberately minimal. Callers enforce a minimum lead
// time and reject unparseable or past results uniformly, so precise
// coverage of natural-language forms matters less than returning
// [ErrUnrecognized] for anything ambiguous.
package when
