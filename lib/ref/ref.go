// Copyright 2026 The Grange Authors
// SPDX-License-Identifier: Apache-2.0

package ref

import (
	"fmt"
	"strings"
)

// UserID is a fully-qualified Matrix user ID, e.g. "@alice:grange.local".
type UserID struct {
	id string
}

// ParseUserID validates and constructs a UserID. The ID must start
// with '@' and contain exactly one ':' separating a non-empty
// localpart from a non-empty server name.
func ParseUserID(raw string) (UserID, error) {
	if err := validateSigil(raw, '@', "user ID"); err != nil {
		return UserID{}, err
	}
	return UserID{id: raw}, nil
}

// String returns the full user ID, or "" for the zero value.
func (u UserID) String() string { return u.id }

// IsZero reports whether the UserID is the invalid zero value.
func (u UserID) IsZero() bool { return u.id == "" }

// Localpart returns the portion between '@' and ':'.
func (u UserID) Localpart() string {
	colon := strings.IndexByte(u.id, ':')
	if colon < 0 {
		return ""
	}
	return u.id[1:colon]
}

// MarshalText implements encoding.TextMarshaler.
func (u UserID) MarshalText() ([]byte, error) {
	return []byte(u.id), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (u *UserID) UnmarshalText(data []byte) error {
	parsed, err := ParseUserID(string(data))
	if err != nil {
		return fmt.Errorf("unmarshal UserID: %w", err)
	}
	*u = parsed
	return nil
}

// RoomID is a Matrix room ID, e.g. "!abcdef:grange.local". Room IDs
// are server-assigned and opaque beyond the sigil and server name.
type RoomID struct {
	id string
}

// ParseRoomID validates and constructs a RoomID.
func ParseRoomID(raw string) (RoomID, error) {
	if err := validateSigil(raw, '!', "room ID"); err != nil {
		return RoomID{}, err
	}
	return RoomID{id: raw}, nil
}

// String returns the full room ID, or "" for the zero value.
func (r RoomID) String() string { return r.id }

// IsZero reports whether the RoomID is the invalid zero value.
func (r RoomID) IsZero() bool { return r.id == "" }

// MarshalText implements encoding.TextMarshaler.
func (r RoomID) MarshalText() ([]byte, error) {
	return []byte(r.id), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *RoomID) UnmarshalText(data []byte) error {
	parsed, err := ParseRoomID(string(data))
	if err != nil {
		return fmt.Errorf("unmarshal RoomID: %w", err)
	}
	*r = parsed
	return nil
}

// EventID is a Matrix event ID, e.g. "$opaque". Modern room versions
// use URL-safe base64 hashes after the sigil with no server name, so
// only the sigil is validated.
type EventID struct {
	id string
}

// ParseEventID validates and constructs an EventID.
func ParseEventID(raw string) (EventID, error) {
	if len(raw) < 2 || raw[0] != '$' {
		return EventID{}, fmt.Errorf("event ID %q must start with '$' and be non-empty", raw)
	}
	return EventID{id: raw}, nil
}

// String returns the full event ID, or "" for the zero value.
func (e EventID) String() string { return e.id }

// IsZero reports whether the EventID is the invalid zero value.
func (e EventID) IsZero() bool { return e.id == "" }

// MarshalText implements encoding.TextMarshaler.
func (e EventID) MarshalText() ([]byte, error) {
	return []byte(e.id), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (e *EventID) UnmarshalText(data []byte) error {
	parsed, err := ParseEventID(string(data))
	if err != nil {
		return fmt.Errorf("unmarshal EventID: %w", err)
	}
	*e = parsed
	return nil
}

// validateSigil checks the common localpart:server structure shared by
// user and room IDs.
func validateSigil(raw string, sigil byte, kind string) error {
	if len(raw) < 2 || raw[0] != sigil {
		return fmt.Errorf("%s %q must start with %q", kind, raw, string(sigil))
	}
	colon := strings.IndexByte(raw, ':')
	if colon < 0 {
		return fmt.Errorf("%s %q has no server name", kind, raw)
	}
	if colon == 1 {
		return fmt.Errorf("%s %q has an empty localpart", kind, raw)
	}
	if colon == len(raw)-1 {
		return fmt.Errorf("%s %q has an empty server name", kind, raw)
	}
	if strings.ContainsAny(raw[1:colon], " \t\n") {
		return fmt.Errorf("%s %q contains whitespace in the localpart", kind, raw)
	}
	return nil
}
