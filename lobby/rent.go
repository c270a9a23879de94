// Copyright 2026 The Grange Authors
// SPDX-License-Identifier: Apache-2.0

package lobby

import (
	"time"

	"github.com/grange-collective/grange/lib/ref"
)

// PoolRegistry owns the per-channel slot pools. It holds pure state:
// no I/O, no timers, no locking. The Coordinator serializes access
// and drives the refresh tick.
type PoolRegistry struct {
	pools map[ref.RoomID]*Pool
}

// NewPoolRegistry returns an empty registry.
func NewPoolRegistry() *PoolRegistry {
	return &PoolRegistry{pools: make(map[ref.RoomID]*Pool)}
}

// Create adds a pool of PoolSize available slots for channel. Fails
// with a precondition error if the channel already has one.
func (r *PoolRegistry) Create(channel ref.RoomID) (*Pool, error) {
	if _, exists := r.pools[channel]; exists {
		return nil, preconditionFailed("channel %s already has a slot pool", channel)
	}
	pool := &Pool{Channel: channel}
	r.pools[channel] = pool
	return pool, nil
}

// Get returns the channel's pool, or a not-found error.
func (r *PoolRegistry) Get(channel ref.RoomID) (*Pool, error) {
	pool, exists := r.pools[channel]
	if !exists {
		return nil, notFound("channel %s has no slot pool", channel)
	}
	return pool, nil
}

// Remove deletes the channel's pool. Reports whether one existed.
func (r *PoolRegistry) Remove(channel ref.RoomID) bool {
	if _, exists := r.pools[channel]; !exists {
		return false
	}
	delete(r.pools, channel)
	return true
}

// Channels returns the channels with active pools, in no particular
// order.
func (r *PoolRegistry) Channels() []ref.RoomID {
	channels := make([]ref.RoomID, 0, len(r.pools))
	for channel := range r.pools {
		channels = append(channels, channel)
	}
	return channels
}

// Request transitions an available slot to the requested state and
// records who asked. The request's Prompt is filled in by the caller
// once the approval prompt is rendered.
func (r *PoolRegistry) Request(channel ref.RoomID, index int, requester ref.UserID, now time.Time) (*Pool, error) {
	pool, err := r.Get(channel)
	if err != nil {
		return nil, err
	}
	slot, err := poolSlot(pool, index)
	if err != nil {
		return nil, err
	}

	if slot.occupied(now) {
		return nil, preconditionFailed("slot %s is occupied", SlotLabels[index])
	}
	if slot.Request != nil {
		return nil, preconditionFailed("slot %s already has a pending request", SlotLabels[index])
	}

	// An expired rental may still be sitting in the slot; the new
	// request replaces it.
	slot.clear()
	slot.Request = &SlotRequest{Requester: requester}
	return pool, nil
}

// Approve commits the pending request on the slot: the requester
// becomes the occupant for RentDuration from now. Returns the decided
// request so the caller can resolve its prompt rendering.
func (r *PoolRegistry) Approve(channel ref.RoomID, index int, now time.Time) (*Pool, *SlotRequest, error) {
	pool, slot, request, err := r.pendingRequest(channel, index)
	if err != nil {
		return nil, nil, err
	}

	slot.Occupant = request.Requester
	slot.ExpiresAt = now.Add(RentDuration)
	slot.Request = nil
	return pool, request, nil
}

// Deny clears the pending request on the slot, returning it to the
// available state.
func (r *PoolRegistry) Deny(channel ref.RoomID, index int) (*Pool, *SlotRequest, error) {
	pool, slot, request, err := r.pendingRequest(channel, index)
	if err != nil {
		return nil, nil, err
	}

	slot.Request = nil
	return pool, request, nil
}

// Sweep clears every slot whose rental has expired and returns the
// channel's display state at now. Idempotent: sweeping twice at the
// same instant yields the same state.
func (r *PoolRegistry) Sweep(channel ref.RoomID, now time.Time) (PoolView, error) {
	pool, err := r.Get(channel)
	if err != nil {
		return PoolView{}, err
	}
	for i := range pool.Slots {
		slot := &pool.Slots[i]
		if !slot.Occupant.IsZero() && !slot.occupied(now) {
			slot.clear()
		}
	}
	return pool.view(now), nil
}

// View builds the channel's display state at now without mutating
// anything. Expired rentals render as available per lazy expiry.
func (r *PoolRegistry) View(channel ref.RoomID, now time.Time) (PoolView, error) {
	pool, err := r.Get(channel)
	if err != nil {
		return PoolView{}, err
	}
	return pool.view(now), nil
}

// pendingRequest resolves the slot and its pending request, rejecting
// slots with nothing to decide.
func (r *PoolRegistry) pendingRequest(channel ref.RoomID, index int) (*Pool, *RentSlot, *SlotRequest, error) {
	pool, err := r.Get(channel)
	if err != nil {
		return nil, nil, nil, err
	}
	slot, err := poolSlot(pool, index)
	if err != nil {
		return nil, nil, nil, err
	}
	if slot.Request == nil {
		return nil, nil, nil, preconditionFailed("slot %s has no pending request", SlotLabels[index])
	}
	return pool, slot, slot.Request, nil
}

// poolSlot bounds-checks index against the fixed pool size.
func poolSlot(pool *Pool, index int) (*RentSlot, error) {
	if index < 0 || index >= PoolSize {
		return nil, invalidInput("slot index %d outside 0..%d", index, PoolSize-1)
	}
	return &pool.Slots[index], nil
}
