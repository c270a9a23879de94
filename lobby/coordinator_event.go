// Copyright 2026 The Grange Authors
// SPDX-License-Identifier: Apache-2.0

package lobby

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/grange-collective/grange/lib/ref"
	"github.com/grange-collective/grange/lib/when"
)

// CreateEvent schedules an event in the channel. The schedule text is
// parsed relative to now ("in 2 hours", "21:30", "tomorrow 18:00");
// the resolved instant must be at least MinimumLead away. Privileged.
func (c *Coordinator) CreateEvent(ctx context.Context, channel ref.RoomID, actor ref.UserID, name, description, schedule string, maxSlots int) (EventID, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requirePrivilege(ctx, actor); err != nil {
		return "", err
	}

	now := c.clock.Now()
	startAt, err := when.Parse(schedule, now)
	if err != nil {
		return "", invalidInput("unrecognized schedule %q", schedule)
	}

	event, err := c.events.Create(channel, name, description, startAt, maxSlots, now)
	if err != nil {
		return "", err
	}

	handle, err := c.renderer.RenderEvent(ctx, channel, event.view())
	if err != nil {
		c.events.Remove(event.ID)
		return "", unreachable("rendering event: %v", err)
	}
	event.Display = handle

	c.schedule.scheduleLocked(taskKey{taskEventStart, string(event.ID)}, startAt)
	c.logger.Info("event created",
		"event", event.ID, "name", name, "channel", channel,
		"start", startAt, "capacity", maxSlots)
	return event.ID, nil
}

// JoinEvent adds user to the event roster. Rejections, in order:
// unknown event, already joined, roster full, not a verified member.
func (c *Coordinator) JoinEvent(ctx context.Context, id EventID, user ref.UserID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	event, err := c.events.Get(id)
	if err != nil {
		return err
	}
	for _, participant := range event.Participants {
		if participant == user {
			return preconditionFailed("%s already joined %q", user, event.Name)
		}
	}
	if event.Full() {
		return preconditionFailed("lobby for %q is full", event.Name)
	}
	if !c.roster.HasMemberTag(ctx, user) {
		return preconditionFailed("only verified members can join an event")
	}

	event, filled, err := c.events.Join(id, user)
	if err != nil {
		return err
	}

	c.updateEventDisplayLocked(ctx, event, event.view())
	c.announce(ctx, event.Channel, fmt.Sprintf("%s joined %q (%d/%d)",
		user, event.Name, len(event.Participants), event.MaxSlots))
	if filled {
		c.logger.Info("event roster full", "event", id)
	}
	return nil
}

// CancelEvent removes the event before it starts and disarms its start
// timer. Privileged.
func (c *Coordinator) CancelEvent(ctx context.Context, id EventID, actor ref.UserID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requirePrivilege(ctx, actor); err != nil {
		return err
	}
	event, err := c.events.Get(id)
	if err != nil {
		return err
	}

	c.schedule.cancelLocked(taskKey{taskEventStart, string(id)})
	c.events.Remove(id)

	view := event.view()
	view.Cancelled = true
	c.updateEventDisplayLocked(ctx, event, view)
	c.announce(ctx, event.Channel, fmt.Sprintf("Event %q was cancelled.", event.Name))
	c.logger.Info("event cancelled", "event", id, "actor", actor)
	return nil
}

// StartEvent activates the event ahead of its scheduled instant.
// Privileged.
func (c *Coordinator) StartEvent(ctx context.Context, id EventID, actor ref.UserID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requirePrivilege(ctx, actor); err != nil {
		return err
	}
	if _, err := c.events.Get(id); err != nil {
		return err
	}

	c.schedule.cancelLocked(taskKey{taskEventStart, string(id)})
	c.activateLocked(id, c.clock.Now())
	return nil
}

// activateLocked converts the event into a live slot pool in its
// channel. It is the landing point for both the start timer and a
// manual start; a stale fire after cancellation finds no event and
// does nothing.
func (c *Coordinator) activateLocked(id EventID, now time.Time) {
	event, exists := c.events.Lookup(id)
	if !exists {
		return
	}
	ctx := context.Background()

	if len(event.Participants) == 0 && c.policy.Empty == EmptyEventCancel {
		c.events.Remove(id)
		view := event.view()
		view.Cancelled = true
		c.updateEventDisplayLocked(ctx, event, view)
		c.announce(ctx, event.Channel, fmt.Sprintf(
			"Event %q was cancelled: nobody joined.", event.Name))
		c.logger.Info("empty event cancelled at start", "event", id)
		return
	}

	event.Started = true
	c.updateEventDisplayLocked(ctx, event, event.view())
	c.announce(ctx, event.Channel, fmt.Sprintf(
		"Event %q is starting. Roster: %s", event.Name, rosterLine(event.Participants)))

	if _, err := c.pools.Get(event.Channel); err != nil {
		if _, err := c.createPoolLocked(ctx, event.Channel); err != nil {
			c.logger.Error("event activation could not open a pool",
				"event", id, "channel", event.Channel, "error", err)
		}
	} else {
		c.logger.Info("event channel already has a pool", "event", id, "channel", event.Channel)
	}

	if c.policy.AfterStart == AfterStartDelete {
		c.events.Remove(id)
	}
	c.logger.Info("event activated", "event", id, "participants", len(event.Participants))
}

// updateEventDisplayLocked rewrites the event's display. Best-effort.
func (c *Coordinator) updateEventDisplayLocked(ctx context.Context, event *Event, view EventView) {
	if event.Display == "" {
		return
	}
	if err := c.renderer.UpdateEvent(ctx, event.Channel, event.Display, view); err != nil {
		c.logger.Warn("event display update failed", "event", event.ID, "error", err)
	}
}

// announce posts a plain message to the channel, logging failures.
func (c *Coordinator) announce(ctx context.Context, channel ref.RoomID, text string) {
	if err := c.renderer.Announce(ctx, channel, text); err != nil {
		c.logger.Warn("announcement failed", "channel", channel, "error", err)
	}
}

func rosterLine(participants []ref.UserID) string {
	if len(participants) == 0 {
		return "nobody"
	}
	names := make([]string, len(participants))
	for i, participant := range participants {
		names[i] = participant.String()
	}
	return strings.Join(names, ", ")
}
