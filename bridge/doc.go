// Copyright 2026 The Grange Authors
// SPDX-License-Identifier: Apache-2.0

// Package bridge connects the lobby core to Matrix. It implements the
// lobby's collaborator interfaces (Renderer, Notifier, Directory,
// Roster, Membership) on top of the messaging client, and translates
// incoming timeline events (chat commands, profile-link submissions,
// member joins) into Coordinator calls.
//
// Construction is two-phase: New builds the Bridge, lobby.New takes
// it as every collaborator, and SetCoordinator closes the loop before
// the sync feed starts.
package bridge
