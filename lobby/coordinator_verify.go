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

// MemberJoined opens a verification window for a newly joined user:
// a welcome with instructions in the signup channel, a direct message,
// and a removal deadline VerificationWindow from now. A rejoin while a
// window is open replaces it with a fresh deadline.
func (c *Coordinator) MemberJoined(ctx context.Context, user ref.UserID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	deadline := now.Add(VerificationWindow)

	entry, replaced := c.verifications.Open(user, deadline)
	if replaced != nil {
		c.discard(ctx, c.signupChannel, replaced.Welcome)
	}

	handle, err := c.renderer.RenderWelcome(ctx, c.signupChannel, WelcomeView{
		User:     user,
		Deadline: deadline,
	})
	if err != nil {
		// The window opens regardless; the deadline does not wait for
		// a reachable renderer.
		c.logger.Warn("welcome rendering failed", "user", user, "error", err)
	}
	entry.Welcome = handle

	c.schedule.scheduleLocked(taskKey{taskVerifyExpiry, user.String()}, deadline)
	c.notify(ctx, user, fmt.Sprintf(
		"Welcome! Post a link to your game profile in the signup channel within the next %s to complete verification.",
		VerificationWindow))
	c.logger.Info("verification window opened", "user", user, "deadline", deadline)
	return nil
}

// SubmitVerification handles a profile link posted during the window.
// A syntactically bad link rejects without consuming the attempt; a
// valid link closes the window immediately, then resolves the profile
// and applies it. Resolution failure after the window has closed does
// not re-arm the removal deadline.
func (c *Coordinator) SubmitVerification(ctx context.Context, user ref.UserID, link string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, err := c.verifications.Get(user)
	if err != nil {
		return err
	}

	if err := c.directory.CheckLink(link); err != nil {
		return invalidInput("%q is not a profile link", link)
	}

	// The link is well-formed: the attempt is consumed and the removal
	// deadline disarmed before the slow resolution call.
	c.schedule.cancelLocked(taskKey{taskVerifyExpiry, user.String()})
	c.verifications.Close(user)
	c.discard(ctx, c.signupChannel, entry.Welcome)

	profile, err := c.directory.ResolveProfile(ctx, link)
	if err != nil {
		c.logger.Warn("profile resolution failed", "user", user, "error", err)
		if errors.Is(err, ErrProfileNotFound) {
			return notFound("no profile behind %q", link)
		}
		return unreachable("resolving profile: %v", err)
	}

	if err := c.membership.ApplyProfile(ctx, user, profile); err != nil {
		c.logger.Warn("applying profile failed", "user", user, "error", err)
		return unreachable("applying profile: %v", err)
	}

	c.notify(ctx, user, fmt.Sprintf("Verification complete. Welcome, %s!", profile.Nickname))
	c.logger.Info("member verified",
		"user", user, "external_id", profile.ExternalID, "nickname", profile.Nickname)
	return nil
}

// HasPendingVerification reports whether the user has an open window.
// Callers routing free-form channel text use this to tell a
// verification attempt apart from ordinary chatter.
func (c *Coordinator) HasPendingVerification(user ref.UserID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := c.verifications.Get(user)
	return err == nil
}

// expireVerificationLocked fires when a window's deadline passes
// unanswered: the user is removed and the welcome discarded. A stale
// fire after a submission finds no window and does nothing.
func (c *Coordinator) expireVerificationLocked(key taskKey, now time.Time) {
	user, err := ref.ParseUserID(key.owner)
	if err != nil {
		c.logger.Error("expiry fired with bad user key", "owner", key.owner, "error", err)
		return
	}
	entry, open := c.verifications.Close(user)
	if !open {
		return
	}

	ctx := context.Background()
	if err := c.membership.Remove(ctx, user, "verification window expired"); err != nil {
		c.logger.Warn("removal failed", "user", user, "error", err)
	}
	c.discard(ctx, c.signupChannel, entry.Welcome)
	c.logger.Info("verification window expired", "user", user)
}
