// Copyright 2026 The Grange Authors
// SPDX-License-Identifier: Apache-2.0

package lobby

import (
	"fmt"
	"time"

	"github.com/grange-collective/grange/lib/ref"
)

// EventRegistry owns the scheduled events. Pure state, serialized by
// the Coordinator like the other registries.
type EventRegistry struct {
	events   map[EventID]*Event
	sequence int
}

// NewEventRegistry returns an empty registry.
func NewEventRegistry() *EventRegistry {
	return &EventRegistry{events: make(map[EventID]*Event)}
}

// Create validates and registers a new event. The start instant must
// lie at least MinimumLead ahead of now, and capacity must be within
// 1..PoolSize. The caller parses the schedule text and arms the start
// timer.
func (r *EventRegistry) Create(channel ref.RoomID, name, description string, startAt time.Time, maxSlots int, now time.Time) (*Event, error) {
	if maxSlots < 1 || maxSlots > PoolSize {
		return nil, invalidInput("event capacity %d outside 1..%d", maxSlots, PoolSize)
	}
	if startAt.Before(now.Add(MinimumLead)) {
		return nil, invalidInput("event must start at least %s from now", MinimumLead)
	}

	r.sequence++
	event := &Event{
		ID:          EventID(fmt.Sprintf("evt-%d-%d", now.UnixMilli(), r.sequence)),
		Name:        name,
		Description: description,
		StartAt:     startAt,
		MaxSlots:    maxSlots,
		Channel:     channel,
	}
	r.events[event.ID] = event
	return event, nil
}

// Get returns the event, or a not-found error.
func (r *EventRegistry) Get(id EventID) (*Event, error) {
	event, exists := r.events[id]
	if !exists {
		return nil, notFound("no event %s", id)
	}
	return event, nil
}

// Lookup returns the event without an error wrapper, for callers that
// treat absence as a no-op (timer fires racing a cancellation).
func (r *EventRegistry) Lookup(id EventID) (*Event, bool) {
	event, exists := r.events[id]
	return event, exists
}

// Remove deletes the event. Reports whether it existed.
func (r *EventRegistry) Remove(id EventID) bool {
	if _, exists := r.events[id]; !exists {
		return false
	}
	delete(r.events, id)
	return true
}

// List returns all events in no particular order.
func (r *EventRegistry) List() []*Event {
	events := make([]*Event, 0, len(r.events))
	for _, event := range r.events {
		events = append(events, event)
	}
	return events
}

// Join appends user to the roster. The roster is append-only until
// capacity; reaching capacity closes the event to further joins.
// Reports whether this join filled the last place, so the caller can
// flip the rendering to its full state exactly once.
func (r *EventRegistry) Join(id EventID, user ref.UserID) (*Event, bool, error) {
	event, err := r.Get(id)
	if err != nil {
		return nil, false, err
	}

	for _, participant := range event.Participants {
		if participant == user {
			return nil, false, preconditionFailed("%s already joined %q", user, event.Name)
		}
	}
	if event.Full() {
		return nil, false, preconditionFailed("lobby for %q is full", event.Name)
	}

	event.Participants = append(event.Participants, user)
	return event, event.Full(), nil
}
