// Copyright 2026 The Grange Authors
// SPDX-License-Identifier: Apache-2.0

package when

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ErrUnrecognized reports input that matches none of the supported
// forms. Test with errors.Is.
var ErrUnrecognized = errors.New("when: unrecognized time expression")

// unitDurations maps accepted unit tokens to their base duration.
var unitDurations = map[string]time.Duration{
	"hour": time.Hour, "hours": time.Hour, "hr": time.Hour, "hrs": time.Hour, "h": time.Hour,
	"minute": time.Minute, "minutes": time.Minute, "min": time.Minute, "mins": time.Minute, "m": time.Minute,
}

// clockPattern matches H or H:MM anywhere in the input.
var clockPattern = regexp.MustCompile(`(\d{1,2})(?::(\d{2}))?`)

// defaultEveningHour is the clock time assumed for a bare "tomorrow"
// with no explicit time.
const defaultEveningHour = 21

// Parse resolves text against now. Forms are tried in order:
//
//  1. "in N <unit>" — relative offset, unit an hour or minute synonym
//  2. "H[:MM]" — today at that time, rolled to tomorrow if already past
//  3. "tomorrow [H[:MM]]" — next day, 21:00 when no time is given
//
// Matching is case-insensitive and ignores surrounding whitespace. The
// result is in now's location. Anything else returns ErrUnrecognized.
func Parse(text string, now time.Time) (time.Time, error) {
	input := strings.ToLower(strings.TrimSpace(text))
	if input == "" {
		return time.Time{}, fmt.Errorf("when: empty expression: %w", ErrUnrecognized)
	}

	if rest, ok := strings.CutPrefix(input, "in "); ok {
		return parseRelative(rest, now)
	}

	if hour, minute, ok := findClockTime(input); ok {
		return atClockTime(now, hour, minute), nil
	}

	if strings.Contains(input, "tomorrow") {
		return parseTomorrow(input, now)
	}

	return time.Time{}, fmt.Errorf("when: %q matches no supported form: %w", text, ErrUnrecognized)
}

// parseRelative handles "in N <unit>". The amount may be fractional
// ("in 1.5 hours").
func parseRelative(rest string, now time.Time) (time.Time, error) {
	fields := strings.Fields(rest)
	if len(fields) != 2 {
		return time.Time{}, fmt.Errorf("when: relative offset needs an amount and a unit: %w", ErrUnrecognized)
	}

	amount, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("when: bad amount %q: %w", fields[0], ErrUnrecognized)
	}

	unit, ok := unitDurations[fields[1]]
	if !ok {
		return time.Time{}, fmt.Errorf("when: bad unit %q: %w", fields[1], ErrUnrecognized)
	}

	return now.Add(time.Duration(amount * float64(unit))), nil
}

// parseTomorrow handles a "tomorrow" marker with an optional clock
// time elsewhere in the text.
func parseTomorrow(input string, now time.Time) (time.Time, error) {
	remainder := strings.ReplaceAll(input, "tomorrow", "")
	hour, minute, ok := findClockTime(remainder)
	if !ok {
		hour, minute = defaultEveningHour, 0
	}
	next := now.AddDate(0, 0, 1)
	return time.Date(next.Year(), next.Month(), next.Day(), hour, minute, 0, 0, now.Location()), nil
}

// findClockTime extracts the first in-range H[:MM] token.
func findClockTime(input string) (hour, minute int, ok bool) {
	match := clockPattern.FindStringSubmatch(input)
	if match == nil {
		return 0, 0, false
	}
	hour, _ = strconv.Atoi(match[1])
	if match[2] != "" {
		minute, _ = strconv.Atoi(match[2])
	}
	if hour > 23 || minute > 59 {
		return 0, 0, false
	}
	return hour, minute, true
}

// atClockTime returns today's instant at hour:minute, or the same time
// tomorrow when that instant has already passed.
func atClockTime(now time.Time, hour, minute int) time.Time {
	candidate := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if candidate.Before(now) {
		candidate = candidate.AddDate(0, 0, 1)
	}
	return candidate
}
