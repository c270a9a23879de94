// Copyright 2026 The Grange Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"context"
	"fmt"

	"github.com/grange-collective/grange/lobby"
	"github.com/grange-collective/grange/lib/ref"
	"github.com/grange-collective/grange/messaging"
)

// Render refs are Matrix event IDs. Renders send a message and hand
// the event ID back as the handle; updates edit that event in place.

func (b *Bridge) RenderPool(ctx context.Context, channel ref.RoomID, view lobby.PoolView) (lobby.RenderRef, error) {
	body, markup := formatPool(view)
	return b.render(ctx, channel, body, markup)
}

func (b *Bridge) UpdatePool(ctx context.Context, channel ref.RoomID, handle lobby.RenderRef, view lobby.PoolView) error {
	body, markup := formatPool(view)
	return b.update(ctx, channel, handle, body, markup)
}

func (b *Bridge) RenderEvent(ctx context.Context, channel ref.RoomID, view lobby.EventView) (lobby.RenderRef, error) {
	body, markup := formatEvent(view)
	return b.render(ctx, channel, body, markup)
}

func (b *Bridge) UpdateEvent(ctx context.Context, channel ref.RoomID, handle lobby.RenderRef, view lobby.EventView) error {
	body, markup := formatEvent(view)
	return b.update(ctx, channel, handle, body, markup)
}

func (b *Bridge) RenderApprovalPrompt(ctx context.Context, channel ref.RoomID, view lobby.ApprovalPromptView) (lobby.RenderRef, error) {
	body, markup := formatPrompt(view)
	return b.render(ctx, channel, body, markup)
}

func (b *Bridge) UpdateApprovalPrompt(ctx context.Context, channel ref.RoomID, handle lobby.RenderRef, view lobby.ApprovalPromptView) error {
	body, markup := formatPrompt(view)
	return b.update(ctx, channel, handle, body, markup)
}

func (b *Bridge) RenderWelcome(ctx context.Context, channel ref.RoomID, view lobby.WelcomeView) (lobby.RenderRef, error) {
	body, markup := formatWelcome(view)
	return b.render(ctx, channel, body, markup)
}

// Discard redacts the rendering. A handle that no longer resolves is
// treated as already gone.
func (b *Bridge) Discard(ctx context.Context, channel ref.RoomID, handle lobby.RenderRef) error {
	target, err := ref.ParseEventID(string(handle))
	if err != nil {
		return fmt.Errorf("bridge: bad render handle %q: %w", handle, err)
	}
	if err := b.session.RedactEvent(ctx, channel, target, "superseded"); err != nil {
		if messaging.IsMatrixError(err, messaging.ErrCodeNotFound) {
			return nil
		}
		return err
	}
	return nil
}

func (b *Bridge) Announce(ctx context.Context, channel ref.RoomID, text string) error {
	if _, err := b.session.SendMessage(ctx, channel, messaging.NewTextMessage(text)); err != nil {
		return fmt.Errorf("bridge: announce in %s: %w", channel, err)
	}
	return nil
}

func (b *Bridge) render(ctx context.Context, channel ref.RoomID, body, markup string) (lobby.RenderRef, error) {
	eventID, err := b.session.SendMessage(ctx, channel, messaging.NewHTMLMessage(body, markup))
	if err != nil {
		return "", fmt.Errorf("bridge: render in %s: %w", channel, err)
	}
	return lobby.RenderRef(eventID.String()), nil
}

func (b *Bridge) update(ctx context.Context, channel ref.RoomID, handle lobby.RenderRef, body, markup string) error {
	target, err := ref.ParseEventID(string(handle))
	if err != nil {
		return fmt.Errorf("bridge: bad render handle %q: %w", handle, err)
	}
	if err := b.session.EditMessage(ctx, channel, target, messaging.NewHTMLMessage(body, markup)); err != nil {
		// The homeserver rejects edits of redacted or missing events;
		// surface that as the target being gone so the lobby can stop
		// refreshing it.
		if messaging.IsMatrixError(err, messaging.ErrCodeNotFound) {
			return fmt.Errorf("bridge: update in %s: %w", channel, lobby.ErrRenderTargetGone)
		}
		return fmt.Errorf("bridge: update in %s: %w", channel, err)
	}
	return nil
}
