// Copyright 2026 The Grange Authors
// SPDX-License-Identifier: Apache-2.0

package lobby

import (
	"time"

	"github.com/grange-collective/grange/lib/ref"
)

// VerificationTracker owns the open verification windows, one per
// joining user. Pure state, serialized by the Coordinator.
type VerificationTracker struct {
	pending map[ref.UserID]*PendingVerification
}

// NewVerificationTracker returns an empty tracker.
func NewVerificationTracker() *VerificationTracker {
	return &VerificationTracker{pending: make(map[ref.UserID]*PendingVerification)}
}

// Open starts a verification window closing at deadline. A rejoin
// while a window is already open replaces the old entry; the caller
// cancels the old timer and discards the old welcome rendering, both
// returned here as the replaced entry.
func (t *VerificationTracker) Open(user ref.UserID, deadline time.Time) (entry, replaced *PendingVerification) {
	replaced = t.pending[user]
	entry = &PendingVerification{User: user, Deadline: deadline}
	t.pending[user] = entry
	return entry, replaced
}

// Get returns the user's open window, or a not-found error.
func (t *VerificationTracker) Get(user ref.UserID) (*PendingVerification, error) {
	entry, exists := t.pending[user]
	if !exists {
		return nil, notFound("%s has no pending verification", user)
	}
	return entry, nil
}

// Close removes the user's window. Both resolution paths (a
// submission and the deadline firing) land here; whichever comes
// second finds nothing and reports false.
func (t *VerificationTracker) Close(user ref.UserID) (*PendingVerification, bool) {
	entry, exists := t.pending[user]
	if !exists {
		return nil, false
	}
	delete(t.pending, user)
	return entry, true
}

// List returns all open windows in no particular order.
func (t *VerificationTracker) List() []*PendingVerification {
	entries := make([]*PendingVerification, 0, len(t.pending))
	for _, entry := range t.pending {
		entries = append(entries, entry)
	}
	return entries
}
