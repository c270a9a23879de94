// Copyright 2026 The Grange Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/grange-collective/grange/lobby"
	"github.com/grange-collective/grange/lib/ref"
	"github.com/grange-collective/grange/messaging"
	"github.com/grange-collective/grange/steam"
)

// Config assembles a Bridge.
type Config struct {
	Session *messaging.Session
	Steam   *steam.Client
	Logger  *slog.Logger

	// SignupRoom hosts verification traffic and join events.
	SignupRoom ref.RoomID

	// MembersRoom carries the verified-member tag (joined membership)
	// and the power levels that decide privilege.
	MembersRoom ref.RoomID

	// PowerThreshold is the minimum power level counting as
	// privileged.
	PowerThreshold int
}

// Bridge implements the lobby collaborator interfaces over Matrix and
// feeds sync events into the Coordinator.
type Bridge struct {
	session *messaging.Session
	steam   *steam.Client
	logger  *slog.Logger

	signupRoom     ref.RoomID
	membersRoom    ref.RoomID
	powerThreshold int

	coordinator *lobby.Coordinator

	mu sync.Mutex
	// members caches joined membership of the members room, seeded at
	// startup and maintained from sync events.
	members map[string]bool
	// levels caches the members room power levels, refreshed when a
	// power-levels event arrives.
	levels *messaging.PowerLevels
	// directRooms caches DM room IDs per user.
	directRooms map[string]ref.RoomID
}

// New builds a Bridge. Call Seed before the sync loop starts, and
// SetCoordinator before feeding events.
func New(config Config) (*Bridge, error) {
	switch {
	case config.Session == nil:
		return nil, fmt.Errorf("bridge: Config.Session is required")
	case config.Steam == nil:
		return nil, fmt.Errorf("bridge: Config.Steam is required")
	case config.SignupRoom.IsZero():
		return nil, fmt.Errorf("bridge: Config.SignupRoom is required")
	case config.MembersRoom.IsZero():
		return nil, fmt.Errorf("bridge: Config.MembersRoom is required")
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	threshold := config.PowerThreshold
	if threshold <= 0 {
		threshold = 50
	}

	return &Bridge{
		session:        config.Session,
		steam:          config.Steam,
		logger:         logger,
		signupRoom:     config.SignupRoom,
		membersRoom:    config.MembersRoom,
		powerThreshold: threshold,
		members:        make(map[string]bool),
		directRooms:    make(map[string]ref.RoomID),
	}, nil
}

// SetCoordinator wires the Coordinator in after construction.
func (b *Bridge) SetCoordinator(coordinator *lobby.Coordinator) {
	b.coordinator = coordinator
}

// Seed loads the members-room roster and power levels so privilege
// and membership checks work from the first event.
func (b *Bridge) Seed(ctx context.Context) error {
	members, err := b.session.GetRoomMembers(ctx, b.membersRoom)
	if err != nil {
		return fmt.Errorf("bridge: seeding members: %w", err)
	}
	levels, err := b.session.RoomPowerLevels(ctx, b.membersRoom)
	if err != nil {
		return fmt.Errorf("bridge: seeding power levels: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, member := range members {
		if member.Membership == "join" {
			b.members[member.UserID.String()] = true
		}
	}
	b.levels = levels
	b.logger.Info("roster seeded", "members", len(b.members))
	return nil
}

// IsPrivileged implements lobby.Roster from the cached power levels.
// The service's own account is always privileged: admin socket actions
// run under it.
func (b *Bridge) IsPrivileged(_ context.Context, actor ref.UserID) bool {
	if actor == b.session.UserID() {
		return true
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.levels == nil {
		return false
	}
	return b.levels.Level(actor) >= b.powerThreshold
}

// HasMemberTag implements lobby.Roster from the cached members-room
// roster.
func (b *Bridge) HasMemberTag(_ context.Context, actor ref.UserID) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.members[actor.String()]
}

// ApplyProfile implements lobby.Membership: the verified member is
// invited to the members room and given their platform nickname as
// display name.
func (b *Bridge) ApplyProfile(ctx context.Context, user ref.UserID, profile lobby.Profile) error {
	if err := b.session.InviteUser(ctx, b.membersRoom, user); err != nil {
		// Already being in the room is fine; the verification should
		// not fail on a rejoin.
		if !messaging.IsMatrixError(err, messaging.ErrCodeForbidden) {
			return fmt.Errorf("bridge: inviting %s: %w", user, err)
		}
	}
	if err := b.session.SetDisplayName(ctx, user, profile.Nickname); err != nil {
		// Display name is cosmetic; log and keep the membership grant.
		b.logger.Warn("setting display name failed", "user", user, "error", err)
	}

	b.mu.Lock()
	b.members[user.String()] = true
	b.mu.Unlock()
	return nil
}

// Remove implements lobby.Membership: kick from the signup room.
func (b *Bridge) Remove(ctx context.Context, user ref.UserID, reason string) error {
	if err := b.session.KickUser(ctx, b.signupRoom, user, reason); err != nil {
		return fmt.Errorf("bridge: kicking %s: %w", user, err)
	}
	return nil
}

// Notify implements lobby.Notifier via a direct-message room,
// created on first contact and cached.
func (b *Bridge) Notify(ctx context.Context, user ref.UserID, text string) error {
	room, err := b.directRoom(ctx, user)
	if err != nil {
		return err
	}
	if _, err := b.session.SendMessage(ctx, room, messaging.NewTextMessage(text)); err != nil {
		return fmt.Errorf("bridge: notifying %s: %w", user, err)
	}
	return nil
}

func (b *Bridge) directRoom(ctx context.Context, user ref.UserID) (ref.RoomID, error) {
	b.mu.Lock()
	room, ok := b.directRooms[user.String()]
	b.mu.Unlock()
	if ok {
		return room, nil
	}

	room, err := b.session.CreateRoom(ctx, messaging.CreateRoomRequest{
		Preset:   "trusted_private_chat",
		IsDirect: true,
		Invite:   []ref.UserID{user},
	})
	if err != nil {
		return ref.RoomID{}, fmt.Errorf("bridge: creating direct room for %s: %w", user, err)
	}

	b.mu.Lock()
	b.directRooms[user.String()] = room
	b.mu.Unlock()
	return room, nil
}

// CheckLink implements lobby.Directory: local syntax validation.
func (b *Bridge) CheckLink(link string) error {
	if _, err := steam.ParseProfileLink(link); err != nil {
		return fmt.Errorf("%v: %w", err, lobby.ErrBadLink)
	}
	return nil
}

// ResolveProfile implements lobby.Directory against the Steam Web
// API.
func (b *Bridge) ResolveProfile(ctx context.Context, link string) (lobby.Profile, error) {
	profile, err := steam.ParseProfileLink(link)
	if err != nil {
		return lobby.Profile{}, fmt.Errorf("%v: %w", err, lobby.ErrBadLink)
	}

	player, err := b.steam.Resolve(ctx, profile)
	if err != nil {
		if errors.Is(err, steam.ErrNoSuchProfile) {
			return lobby.Profile{}, fmt.Errorf("%v: %w", err, lobby.ErrProfileNotFound)
		}
		return lobby.Profile{}, fmt.Errorf("bridge: resolving profile: %w", err)
	}
	return lobby.Profile{ExternalID: player.ID64, Nickname: player.PersonaName}, nil
}
