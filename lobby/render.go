// Copyright 2026 The Grange Authors
// SPDX-License-Identifier: Apache-2.0

package lobby

import (
	"fmt"
	"time"

	"github.com/grange-collective/grange/lib/ref"
)

// SlotView is one slot's display state.
type SlotView struct {
	Label     string
	Occupant  ref.UserID // zero when the slot is available
	Remaining string     // "HH:MM:SS", empty when available
	Requested bool       // a request is awaiting a verdict
}

// Available reports whether the slot renders as claimable.
func (v SlotView) Available() bool {
	return v.Occupant.IsZero() && !v.Requested
}

// PoolView is the pool display state handed to the Renderer.
type PoolView struct {
	Channel ref.RoomID
	Slots   [PoolSize]SlotView
}

// EventView is the event display state handed to the Renderer.
type EventView struct {
	ID           EventID
	Name         string
	Description  string
	StartAt      time.Time
	MaxSlots     int
	Participants []ref.UserID
	Full         bool
	Started      bool
	Cancelled    bool
}

// PromptOutcome is the verdict state of an approval prompt rendering.
type PromptOutcome string

const (
	PromptPending  PromptOutcome = "pending"
	PromptApproved PromptOutcome = "approved"
	PromptDenied   PromptOutcome = "denied"
)

// ApprovalPromptView is the approval prompt display state.
type ApprovalPromptView struct {
	Channel   ref.RoomID
	SlotIndex int
	Label     string
	Requester ref.UserID
	Outcome   PromptOutcome
}

// WelcomeView is the verification welcome display state.
type WelcomeView struct {
	User     ref.UserID
	Deadline time.Time
}

// FormatRemaining renders a duration as zero-padded "HH:MM:SS",
// flooring to whole seconds. Callers clear expired slots before
// rendering, so d is never negative here; a negative input clamps to
// "00:00:00" rather than showing a sign.
func FormatRemaining(d time.Duration) string {
	seconds := int(d / time.Second)
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d:%02d", seconds/3600, seconds%3600/60, seconds%60)
}

// view builds the pool's display state at now. The caller sweeps
// expired slots first; an expired-but-unswept slot still renders as
// available.
func (p *Pool) view(now time.Time) PoolView {
	poolView := PoolView{Channel: p.Channel}
	for i := range p.Slots {
		slot := &p.Slots[i]
		slotView := SlotView{Label: SlotLabels[i]}
		if slot.occupied(now) {
			slotView.Occupant = slot.Occupant
			slotView.Remaining = FormatRemaining(slot.ExpiresAt.Sub(now))
		} else if slot.Request != nil {
			slotView.Requested = true
		}
		poolView.Slots[i] = slotView
	}
	return poolView
}

// view builds the event's display state.
func (e *Event) view() EventView {
	participants := make([]ref.UserID, len(e.Participants))
	copy(participants, e.Participants)
	return EventView{
		ID:           e.ID,
		Name:         e.Name,
		Description:  e.Description,
		StartAt:      e.StartAt,
		MaxSlots:     e.MaxSlots,
		Participants: participants,
		Full:         e.Full(),
		Started:      e.Started,
	}
}
