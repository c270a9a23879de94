// Copyright 2026 The Grange Authors
// SPDX-License-Identifier: Apache-2.0

package lobby

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/grange-collective/grange/lib/ref"
)

// CreatePool opens a slot pool in the channel, renders its display,
// and starts the refresh tick. Privileged.
func (c *Coordinator) CreatePool(ctx context.Context, channel ref.RoomID, actor ref.UserID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requirePrivilege(ctx, actor); err != nil {
		return err
	}
	_, err := c.createPoolLocked(ctx, channel)
	return err
}

// createPoolLocked registers the pool and renders its display. Shared
// with event activation. A render failure unwinds the registration so
// the caller can retry cleanly.
func (c *Coordinator) createPoolLocked(ctx context.Context, channel ref.RoomID) (*Pool, error) {
	pool, err := c.pools.Create(channel)
	if err != nil {
		return nil, err
	}

	now := c.clock.Now()
	handle, err := c.renderer.RenderPool(ctx, channel, pool.view(now))
	if err != nil {
		c.pools.Remove(channel)
		return nil, unreachable("rendering slot pool for %s: %v", channel, err)
	}
	pool.Display = handle

	c.schedule.scheduleLocked(taskKey{taskPoolRefresh, channel.String()}, now.Add(RefreshInterval))
	c.logger.Info("slot pool opened", "channel", channel)
	return pool, nil
}

// TeardownPool removes the channel's pool, cancels its refresh tick,
// and discards its renderings. Privileged.
func (c *Coordinator) TeardownPool(ctx context.Context, channel ref.RoomID, actor ref.UserID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requirePrivilege(ctx, actor); err != nil {
		return err
	}
	pool, err := c.pools.Get(channel)
	if err != nil {
		return err
	}

	c.schedule.cancelLocked(taskKey{taskPoolRefresh, channel.String()})
	c.pools.Remove(channel)

	for i := range pool.Slots {
		if request := pool.Slots[i].Request; request != nil && request.Prompt != "" {
			c.discard(ctx, channel, request.Prompt)
		}
	}
	c.discard(ctx, channel, pool.Display)
	c.logger.Info("slot pool torn down", "channel", channel)
	return nil
}

// RequestSlot asks for a slot on behalf of requester and renders the
// approval prompt for the privileged actors to decide. The slot holds
// at most one pending request; an occupied or already-requested slot
// rejects.
func (c *Coordinator) RequestSlot(ctx context.Context, channel ref.RoomID, index int, requester ref.UserID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.roster.HasMemberTag(ctx, requester) {
		return preconditionFailed("only verified members can request a slot")
	}

	now := c.clock.Now()
	pool, err := c.pools.Request(channel, index, requester, now)
	if err != nil {
		return err
	}

	handle, err := c.renderer.RenderApprovalPrompt(ctx, channel, ApprovalPromptView{
		Channel:   channel,
		SlotIndex: index,
		Label:     SlotLabels[index],
		Requester: requester,
		Outcome:   PromptPending,
	})
	if err != nil {
		// Unwind: without a prompt nobody can decide the request.
		c.pools.Deny(channel, index)
		return unreachable("rendering approval prompt: %v", err)
	}
	pool.Slots[index].Request.Prompt = handle

	c.updatePoolDisplayLocked(ctx, pool, now)
	c.logger.Info("slot requested",
		"channel", channel, "slot", SlotLabels[index], "requester", requester)
	return nil
}

// ApproveSlot grants the slot's pending request: the requester becomes
// the occupant for RentDuration. Privileged.
func (c *Coordinator) ApproveSlot(ctx context.Context, channel ref.RoomID, index int, actor ref.UserID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requirePrivilege(ctx, actor); err != nil {
		return err
	}

	now := c.clock.Now()
	pool, request, err := c.pools.Approve(channel, index, now)
	if err != nil {
		return err
	}

	c.resolvePrompt(ctx, channel, index, request, PromptApproved)
	c.notify(ctx, request.Requester, fmt.Sprintf(
		"Your request for slot %s was approved. The slot is yours for the next %s.",
		SlotLabels[index], FormatRemaining(RentDuration)))
	c.updatePoolDisplayLocked(ctx, pool, now)
	c.logger.Info("slot approved",
		"channel", channel, "slot", SlotLabels[index],
		"occupant", request.Requester, "actor", actor)
	return nil
}

// DenySlot rejects the slot's pending request, returning the slot to
// the available state. Privileged.
func (c *Coordinator) DenySlot(ctx context.Context, channel ref.RoomID, index int, actor ref.UserID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requirePrivilege(ctx, actor); err != nil {
		return err
	}

	pool, request, err := c.pools.Deny(channel, index)
	if err != nil {
		return err
	}

	c.resolvePrompt(ctx, channel, index, request, PromptDenied)
	c.notify(ctx, request.Requester, fmt.Sprintf(
		"Your request for slot %s was denied.", SlotLabels[index]))
	c.updatePoolDisplayLocked(ctx, pool, c.clock.Now())
	c.logger.Info("slot denied",
		"channel", channel, "slot", SlotLabels[index],
		"requester", request.Requester, "actor", actor)
	return nil
}

// refreshPoolLocked is the once-per-second display tick: sweep expired
// rentals, rewrite the display, re-arm. A gone display target tears
// the whole pool down; any other render failure is retried next tick.
func (c *Coordinator) refreshPoolLocked(key taskKey, now time.Time) {
	channel, err := ref.ParseRoomID(key.owner)
	if err != nil {
		c.logger.Error("refresh tick with bad channel key", "owner", key.owner, "error", err)
		return
	}
	pool, err := c.pools.Get(channel)
	if err != nil {
		return
	}

	view, _ := c.pools.Sweep(channel, now)
	err = c.renderer.UpdatePool(context.Background(), channel, pool.Display, view)
	if errors.Is(err, ErrRenderTargetGone) {
		c.pools.Remove(channel)
		c.logger.Info("pool display gone, pool torn down", "channel", channel)
		return
	}
	if err != nil {
		c.logger.Warn("pool display update failed", "channel", channel, "error", err)
	}

	c.schedule.scheduleLocked(key, now.Add(RefreshInterval))
}

// updatePoolDisplayLocked pushes the current pool state to its display
// immediately instead of waiting for the next tick. Best-effort: a
// gone target is left for the tick to handle.
func (c *Coordinator) updatePoolDisplayLocked(ctx context.Context, pool *Pool, now time.Time) {
	if err := c.renderer.UpdatePool(ctx, pool.Channel, pool.Display, pool.view(now)); err != nil {
		c.logger.Warn("pool display update failed", "channel", pool.Channel, "error", err)
	}
}

// resolvePrompt rewrites an approval prompt with its verdict.
// Best-effort.
func (c *Coordinator) resolvePrompt(ctx context.Context, channel ref.RoomID, index int, request *SlotRequest, outcome PromptOutcome) {
	if request.Prompt == "" {
		return
	}
	err := c.renderer.UpdateApprovalPrompt(ctx, channel, request.Prompt, ApprovalPromptView{
		Channel:   channel,
		SlotIndex: index,
		Label:     SlotLabels[index],
		Requester: request.Requester,
		Outcome:   outcome,
	})
	if err != nil {
		c.logger.Warn("approval prompt update failed", "channel", channel, "error", err)
	}
}

// discard drops a rendering, logging failures.
func (c *Coordinator) discard(ctx context.Context, channel ref.RoomID, handle RenderRef) {
	if handle == "" {
		return
	}
	if err := c.renderer.Discard(ctx, channel, handle); err != nil {
		c.logger.Warn("rendering discard failed", "channel", channel, "error", err)
	}
}

// notify sends a direct message, logging failures.
func (c *Coordinator) notify(ctx context.Context, user ref.UserID, text string) {
	if err := c.notifier.Notify(ctx, user, text); err != nil {
		c.logger.Warn("notification failed", "user", user, "error", err)
	}
}
