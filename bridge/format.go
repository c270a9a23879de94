// Copyright 2026 The Grange Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"fmt"
	"html"
	"strings"

	"github.com/grange-collective/grange/lobby"
	"github.com/grange-collective/grange/lib/ref"
)

// displayTime is the format used for event start and verification
// deadlines in rendered messages.
const displayTime = "Mon 15:04 MST"

// formatPool renders the slot board as plain text plus an HTML
// rendering. The board is edited in place every refresh tick, so the
// shape stays stable: one line per slot.
func formatPool(view lobby.PoolView) (string, string) {
	var body strings.Builder
	var markup strings.Builder

	body.WriteString("Rental slots\n")
	markup.WriteString("<b>Rental slots</b><br/>")
	for _, slot := range view.Slots {
		switch {
		case !slot.Occupant.IsZero():
			fmt.Fprintf(&body, "%s: %s (%s left)\n", slot.Label, slot.Occupant, slot.Remaining)
			fmt.Fprintf(&markup, "<b>%s</b>: %s (<code>%s</code> left)<br/>",
				html.EscapeString(slot.Label), html.EscapeString(slot.Occupant.String()), slot.Remaining)
		case slot.Requested:
			fmt.Fprintf(&body, "%s: requested, awaiting approval\n", slot.Label)
			fmt.Fprintf(&markup, "<b>%s</b>: <i>requested, awaiting approval</i><br/>", html.EscapeString(slot.Label))
		default:
			fmt.Fprintf(&body, "%s: available\n", slot.Label)
			fmt.Fprintf(&markup, "<b>%s</b>: available<br/>", html.EscapeString(slot.Label))
		}
	}
	return body.String(), markup.String()
}

// formatEvent renders the event card.
func formatEvent(view lobby.EventView) (string, string) {
	var body strings.Builder
	var markup strings.Builder

	title := view.Name
	switch {
	case view.Cancelled:
		title += " (cancelled)"
	case view.Started:
		title += " (started)"
	case view.Full:
		title += " (full)"
	}
	fmt.Fprintf(&body, "Event: %s\n", title)
	fmt.Fprintf(&markup, "<b>Event: %s</b><br/>", html.EscapeString(title))

	if view.Description != "" {
		fmt.Fprintf(&body, "%s\n", view.Description)
		fmt.Fprintf(&markup, "%s<br/>", html.EscapeString(view.Description))
	}
	fmt.Fprintf(&body, "Starts: %s\n", view.StartAt.Format(displayTime))
	fmt.Fprintf(&markup, "Starts: %s<br/>", view.StartAt.Format(displayTime))

	fmt.Fprintf(&body, "Roster (%d/%d): %s\n", len(view.Participants), view.MaxSlots, rosterText(view.Participants))
	fmt.Fprintf(&markup, "Roster (%d/%d): %s<br/>",
		len(view.Participants), view.MaxSlots, html.EscapeString(rosterText(view.Participants)))

	if !view.Cancelled && !view.Full {
		fmt.Fprintf(&body, "Join with !join %s\n", view.ID)
		fmt.Fprintf(&markup, "Join with <code>!join %s</code><br/>", html.EscapeString(string(view.ID)))
	}
	return body.String(), markup.String()
}

func rosterText(participants []ref.UserID) string {
	if len(participants) == 0 {
		return "nobody yet"
	}
	names := make([]string, len(participants))
	for i, user := range participants {
		names[i] = user.String()
	}
	return strings.Join(names, ", ")
}

// formatPrompt renders the approval prompt, rewritten in place when a
// verdict lands. Slot numbers are one-based for humans.
func formatPrompt(view lobby.ApprovalPromptView) (string, string) {
	number := view.SlotIndex + 1
	switch view.Outcome {
	case lobby.PromptApproved:
		text := fmt.Sprintf("%s rented slot %s for %s.",
			view.Requester, view.Label, lobby.FormatRemaining(lobby.RentDuration))
		return text, html.EscapeString(text)
	case lobby.PromptDenied:
		text := fmt.Sprintf("Request by %s for slot %s was denied.", view.Requester, view.Label)
		return text, html.EscapeString(text)
	default:
		body := fmt.Sprintf("%s requests slot %s. Approve with !approve %d or deny with !deny %d.",
			view.Requester, view.Label, number, number)
		markup := fmt.Sprintf("%s requests slot <b>%s</b>. Approve with <code>!approve %d</code> or deny with <code>!deny %d</code>.",
			html.EscapeString(view.Requester.String()), html.EscapeString(view.Label), number, number)
		return body, markup
	}
}

// formatWelcome renders the verification welcome posted in the signup
// room when a member joins.
func formatWelcome(view lobby.WelcomeView) (string, string) {
	body := fmt.Sprintf("Welcome, %s! Post a link to your Steam profile in this room before %s to complete verification.",
		view.User, view.Deadline.Format(displayTime))
	markup := fmt.Sprintf("Welcome, %s! Post a link to your <b>Steam profile</b> in this room before %s to complete verification.",
		html.EscapeString(view.User.String()), view.Deadline.Format(displayTime))
	return body, markup
}
