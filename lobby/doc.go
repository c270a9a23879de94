// Copyright 2026 The Grange Authors
// SPDX-License-Identifier: Apache-2.0

// Package lobby implements the time-gated resource allocation at the
// heart of Grange: per-channel rental slot pools, scheduled events
// with capped rosters that convert into pools, and the verification
// window each newly joined member must clear.
//
// The package is platform-free. All chat-surface work (rendering pool
// and event displays, notifying users, resolving external profiles,
// answering privilege questions, kicking members) goes through the
// collaborator interfaces on [Coordinator]; the bridge package
// supplies Matrix-backed implementations. Registries hold no I/O and
// no locks of their own — the Coordinator owns them and serializes
// every mutation behind one mutex, so for any given slot, event, or
// pending verification, triggers apply strictly in arrival order.
//
// Every deadline — rental expiry, event start, verification timeout,
// and the 1-second pool refresh tick — is an entry in the
// Coordinator's timer heap, keyed by the owning entity. Deleting an
// entity and cancelling its timers happen under the same mutex
// acquisition and therefore cannot race; a timer that fires for an
// entity that no longer exists is a silent no-op.
package lobby
