// Copyright 2026 The Grange Authors
// SPDX-License-Identifier: Apache-2.0

package lobby

import (
	"fmt"
	"time"

	"github.com/grange-collective/grange/lib/ref"
)

const (
	// PoolSize is the fixed number of rental slots per channel.
	PoolSize = 3

	// RentDuration is the fixed rental period started by an approval.
	RentDuration = 4*time.Hour + 10*time.Minute

	// MinimumLead is how far in the future an event must start at
	// creation time.
	MinimumLead = time.Minute

	// VerificationWindow is how long a newly joined member has to
	// submit a profile link before removal.
	VerificationWindow = 5 * time.Minute

	// RefreshInterval is the cadence of the pool display update tick.
	RefreshInterval = time.Second
)

// SlotLabels names the three slots in display order.
var SlotLabels = [PoolSize]string{"CT1", "CT2", "T"}

// RenderRef is an opaque handle to a chat-surface rendering, issued
// and consumed by the Renderer collaborator.
type RenderRef string

// EventID identifies a scheduled event. IDs derive from the creation
// instant plus a registry sequence number so that two events created
// in the same millisecond stay distinct.
type EventID string

// SlotRequest is a rental request awaiting a privileged verdict. It
// lives on the slot itself; the requester is never re-derived from
// rendered content.
type SlotRequest struct {
	Requester ref.UserID

	// Prompt is the rendering of the approval prompt, rewritten with
	// the verdict when the request is decided.
	Prompt RenderRef
}

// RentSlot is one rentable unit. A slot with no occupant has no
// expiry. A slot whose expiry has passed counts as available even
// before the sweep clears it (lazy expiry).
type RentSlot struct {
	Occupant  ref.UserID
	ExpiresAt time.Time
	Request   *SlotRequest
}

// occupied reports whether the slot holds an unexpired rental.
func (s *RentSlot) occupied(now time.Time) bool {
	return !s.Occupant.IsZero() && now.Before(s.ExpiresAt)
}

// available reports whether the slot can accept a new request.
func (s *RentSlot) available(now time.Time) bool {
	return !s.occupied(now) && s.Request == nil
}

// clear returns the slot to the available state.
func (s *RentSlot) clear() {
	s.Occupant = ref.UserID{}
	s.ExpiresAt = time.Time{}
	s.Request = nil
}

// Pool is a channel's fixed set of rental slots.
type Pool struct {
	Channel ref.RoomID
	Slots   [PoolSize]RentSlot

	// Display is the rendering the refresh tick keeps current.
	Display RenderRef
}

// Event is a scheduled gathering with a capped roster. Participants
// keep join order; order carries no priority semantics and is used
// for display only.
type Event struct {
	ID           EventID
	Name         string
	Description  string
	StartAt      time.Time
	MaxSlots     int
	Participants []ref.UserID
	Channel      ref.RoomID
	Display      RenderRef

	// Started is set once the event has activated. Under
	// AfterStartRetain the event object outlives activation and
	// keeps accepting joins.
	Started bool
}

// Full reports whether the roster has reached capacity.
func (e *Event) Full() bool {
	return len(e.Participants) >= e.MaxSlots
}

// PendingVerification is one member's open verification window.
type PendingVerification struct {
	User     ref.UserID
	Deadline time.Time

	// Welcome is the rendering of the welcome/instructions message,
	// discarded when the window resolves either way.
	Welcome RenderRef
}

// Profile is the externally resolved identity applied on successful
// verification.
type Profile struct {
	// ExternalID is the stable identifier on the external platform.
	ExternalID string

	// Nickname becomes the member's display name.
	Nickname string
}

// EmptyEventPolicy decides what activation does with a zero-participant
// event. The observed history of the original system alternated between
// the two; the choice is explicit here.
type EmptyEventPolicy string

const (
	// EmptyEventCancel announces the cancellation and deletes the
	// event (default).
	EmptyEventCancel EmptyEventPolicy = "cancel"

	// EmptyEventActivate activates with an empty roster.
	EmptyEventActivate EmptyEventPolicy = "activate"
)

// AfterStartPolicy decides what happens to the event object after it
// has activated and handed off to a pool.
type AfterStartPolicy string

const (
	// AfterStartDelete removes the event; late joins see not-found
	// (default).
	AfterStartDelete AfterStartPolicy = "delete"

	// AfterStartRetain keeps the event open for late joins until
	// cancelled.
	AfterStartRetain AfterStartPolicy = "retain"
)

// ActivationPolicy bundles the two activation choices.
type ActivationPolicy struct {
	Empty      EmptyEventPolicy
	AfterStart AfterStartPolicy
}

// DefaultActivationPolicy matches the newest observed behavior of the
// original system: cancel empty events, delete after activation.
func DefaultActivationPolicy() ActivationPolicy {
	return ActivationPolicy{Empty: EmptyEventCancel, AfterStart: AfterStartDelete}
}

// Valid reports whether both fields carry known values.
func (p ActivationPolicy) Valid() error {
	switch p.Empty {
	case EmptyEventCancel, EmptyEventActivate:
	default:
		return fmt.Errorf("lobby: unknown empty-event policy %q", p.Empty)
	}
	switch p.AfterStart {
	case AfterStartDelete, AfterStartRetain:
	default:
		return fmt.Errorf("lobby: unknown after-start policy %q", p.AfterStart)
	}
	return nil
}
