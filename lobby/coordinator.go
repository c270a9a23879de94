// Copyright 2026 The Grange Authors
// SPDX-License-Identifier: Apache-2.0

package lobby

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/grange-collective/grange/lib/clock"
	"github.com/grange-collective/grange/lib/ref"
)

// Renderer maintains the chat-surface renderings the lobby owns: pool
// displays, event displays, approval prompts, verification welcomes,
// and plain announcements. Handles are opaque; implementations return
// ErrRenderTargetGone when a handle's backing message no longer
// exists.
type Renderer interface {
	RenderPool(ctx context.Context, channel ref.RoomID, view PoolView) (RenderRef, error)
	UpdatePool(ctx context.Context, channel ref.RoomID, handle RenderRef, view PoolView) error

	RenderEvent(ctx context.Context, channel ref.RoomID, view EventView) (RenderRef, error)
	UpdateEvent(ctx context.Context, channel ref.RoomID, handle RenderRef, view EventView) error

	RenderApprovalPrompt(ctx context.Context, channel ref.RoomID, view ApprovalPromptView) (RenderRef, error)
	UpdateApprovalPrompt(ctx context.Context, channel ref.RoomID, handle RenderRef, view ApprovalPromptView) error

	RenderWelcome(ctx context.Context, channel ref.RoomID, view WelcomeView) (RenderRef, error)

	// Discard removes a rendering. Best-effort; absence is not an
	// error worth reporting.
	Discard(ctx context.Context, channel ref.RoomID, handle RenderRef) error

	// Announce posts a plain one-off message to the channel.
	Announce(ctx context.Context, channel ref.RoomID, text string) error
}

// Notifier delivers a direct message to a user. Best-effort
// throughout: the Coordinator logs failures and moves on.
type Notifier interface {
	Notify(ctx context.Context, user ref.UserID, text string) error
}

// Directory resolves external profile links during verification.
type Directory interface {
	// CheckLink validates link syntax locally and fast. Returns
	// ErrBadLink for text that is not a profile link. A bad link does
	// not consume the submitter's one verification attempt.
	CheckLink(link string) error

	// ResolveProfile resolves a valid link against the external
	// platform. Returns ErrProfileNotFound when nothing is behind the
	// link.
	ResolveProfile(ctx context.Context, link string) (Profile, error)
}

// Roster answers the two membership predicates the lobby consumes.
// Policy behind the answers is out of scope here.
type Roster interface {
	IsPrivileged(ctx context.Context, actor ref.UserID) bool
	HasMemberTag(ctx context.Context, actor ref.UserID) bool
}

// Membership applies verification outcomes: grants on success,
// removal on expiry.
type Membership interface {
	ApplyProfile(ctx context.Context, user ref.UserID, profile Profile) error
	Remove(ctx context.Context, user ref.UserID, reason string) error
}

// Config assembles a Coordinator. Renderer, Notifier, Directory,
// Roster, and Membership are required; Clock defaults to the real
// clock, Logger to slog.Default, Policy to DefaultActivationPolicy.
type Config struct {
	Clock      clock.Clock
	Logger     *slog.Logger
	Renderer   Renderer
	Notifier   Notifier
	Directory  Directory
	Roster     Roster
	Membership Membership

	// SignupChannel hosts verification welcomes and instructions.
	SignupChannel ref.RoomID

	// ReservationStaff receive reservation requests as direct
	// messages.
	ReservationStaff []ref.UserID

	// Policy controls event activation behavior. Zero value takes
	// the defaults.
	Policy ActivationPolicy
}

// Coordinator wires external triggers to the registries, enforcing
// privilege and precondition checks before any mutation. One mutex
// serializes all state changes and the timer heap, so triggers on the
// same entity apply strictly in arrival order.
type Coordinator struct {
	mu sync.Mutex

	clock      clock.Clock
	logger     *slog.Logger
	renderer   Renderer
	notifier   Notifier
	directory  Directory
	roster     Roster
	membership Membership

	pools         *PoolRegistry
	events        *EventRegistry
	verifications *VerificationTracker
	schedule      *scheduler

	signupChannel ref.RoomID
	staff         []ref.UserID
	policy        ActivationPolicy
}

// New validates config and returns a ready Coordinator.
func New(config Config) (*Coordinator, error) {
	switch {
	case config.Renderer == nil:
		return nil, fmt.Errorf("lobby: Config.Renderer is required")
	case config.Notifier == nil:
		return nil, fmt.Errorf("lobby: Config.Notifier is required")
	case config.Directory == nil:
		return nil, fmt.Errorf("lobby: Config.Directory is required")
	case config.Roster == nil:
		return nil, fmt.Errorf("lobby: Config.Roster is required")
	case config.Membership == nil:
		return nil, fmt.Errorf("lobby: Config.Membership is required")
	case config.SignupChannel.IsZero():
		return nil, fmt.Errorf("lobby: Config.SignupChannel is required")
	}

	clk := config.Clock
	if clk == nil {
		clk = clock.Real()
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	policy := config.Policy
	if policy == (ActivationPolicy{}) {
		policy = DefaultActivationPolicy()
	}
	if err := policy.Valid(); err != nil {
		return nil, err
	}

	coordinator := &Coordinator{
		clock:         clk,
		logger:        logger,
		renderer:      config.Renderer,
		notifier:      config.Notifier,
		directory:     config.Directory,
		roster:        config.Roster,
		membership:    config.Membership,
		pools:         NewPoolRegistry(),
		events:        NewEventRegistry(),
		verifications: NewVerificationTracker(),
		signupChannel: config.SignupChannel,
		staff:         config.ReservationStaff,
		policy:        policy,
	}
	coordinator.schedule = newScheduler(clk, coordinator.fireTask, coordinator.onTimer)
	return coordinator, nil
}

// onTimer is the clock callback: re-enter under the mutex and handle
// everything that has come due.
func (c *Coordinator) onTimer() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.schedule.fireDueLocked(c.clock.Now())
}

// fireTask dispatches one due deadline. Runs with c.mu held.
func (c *Coordinator) fireTask(key taskKey, now time.Time) {
	switch key.kind {
	case taskPoolRefresh:
		c.refreshPoolLocked(key, now)
	case taskEventStart:
		c.activateLocked(EventID(key.owner), now)
	case taskVerifyExpiry:
		c.expireVerificationLocked(key, now)
	}
}

// requirePrivilege is the shared gate for privileged operations.
func (c *Coordinator) requirePrivilege(ctx context.Context, actor ref.UserID) error {
	if !c.roster.IsPrivileged(ctx, actor) {
		return notPrivileged("%s is not a privileged actor", actor)
	}
	return nil
}

// BookReservation fans a reservation request out to the configured
// staff as direct messages. Delivery is best-effort per recipient; the
// request itself holds no state.
func (c *Coordinator) BookReservation(ctx context.Context, user ref.UserID, date, timeText string) error {
	if !c.roster.HasMemberTag(ctx, user) {
		return preconditionFailed("only verified members can book a reservation")
	}

	text := fmt.Sprintf("New reservation request\nUser: %s\nDate: %s\nTime: %s", user, date, timeText)
	for _, staff := range c.staff {
		if err := c.notifier.Notify(ctx, staff, text); err != nil {
			c.logger.Warn("reservation notification failed",
				"staff", staff, "error", err)
		}
	}
	return nil
}

// Snapshot is a point-in-time copy of all lobby state, for the admin
// socket.
type Snapshot struct {
	Pools         []PoolView    `cbor:"pools" json:"pools"`
	Events        []EventView   `cbor:"events" json:"events"`
	Verifications []WelcomeView `cbor:"verifications" json:"verifications"`
}

// StateSnapshot captures current pools, events, and open verification
// windows. Expired rentals render as available per lazy expiry; the
// snapshot does not mutate anything.
func (c *Coordinator) StateSnapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.clock.Now()

	var snapshot Snapshot
	for _, channel := range c.pools.Channels() {
		if view, err := c.pools.View(channel, now); err == nil {
			snapshot.Pools = append(snapshot.Pools, view)
		}
	}
	for _, event := range c.events.List() {
		snapshot.Events = append(snapshot.Events, event.view())
	}
	for _, entry := range c.verifications.List() {
		snapshot.Verifications = append(snapshot.Verifications, WelcomeView{
			User:     entry.User,
			Deadline: entry.Deadline,
		})
	}
	return snapshot
}
