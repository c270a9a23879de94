// Copyright 2026 The Grange Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/grange-collective/grange/lib/clock"
	"github.com/grange-collective/grange/lib/codec"
	"github.com/grange-collective/grange/lib/ref"
	"github.com/grange-collective/grange/lib/socket"
	"github.com/grange-collective/grange/lobby"
)

// adminSocket exposes operator queries and manual interventions over
// the CBOR admin socket. Mutating actions run as the service's own
// user, which the roster treats as privileged.
type adminSocket struct {
	coordinator *lobby.Coordinator
	self        ref.UserID
	clock       clock.Clock
	startedAt   time.Time
}

func (a *adminSocket) register(server *socket.Server) {
	server.Handle("status", a.status)
	server.Handle("pools", a.pools)
	server.Handle("events", a.events)
	server.Handle("verifications", a.verifications)
	server.Handle("start-event", a.startEvent)
	server.Handle("teardown-pool", a.teardownPool)
}

type statusResponse struct {
	Uptime        string `cbor:"uptime" json:"uptime"`
	Pools         int    `cbor:"pools" json:"pools"`
	Events        int    `cbor:"events" json:"events"`
	Verifications int    `cbor:"verifications" json:"verifications"`
}

func (a *adminSocket) status(context.Context, []byte) (any, error) {
	snapshot := a.coordinator.StateSnapshot()
	return statusResponse{
		Uptime:        a.clock.Now().Sub(a.startedAt).Round(time.Second).String(),
		Pools:         len(snapshot.Pools),
		Events:        len(snapshot.Events),
		Verifications: len(snapshot.Verifications),
	}, nil
}

func (a *adminSocket) pools(context.Context, []byte) (any, error) {
	return a.coordinator.StateSnapshot().Pools, nil
}

func (a *adminSocket) events(context.Context, []byte) (any, error) {
	return a.coordinator.StateSnapshot().Events, nil
}

func (a *adminSocket) verifications(context.Context, []byte) (any, error) {
	return a.coordinator.StateSnapshot().Verifications, nil
}

type startEventRequest struct {
	EventID string `cbor:"event_id"`
}

func (a *adminSocket) startEvent(ctx context.Context, raw []byte) (any, error) {
	var request startEventRequest
	if err := codec.Unmarshal(raw, &request); err != nil {
		return nil, fmt.Errorf("decoding request: %w", err)
	}
	if request.EventID == "" {
		return nil, fmt.Errorf("event_id is required")
	}
	return nil, a.coordinator.StartEvent(ctx, lobby.EventID(request.EventID), a.self)
}

type teardownPoolRequest struct {
	Channel string `cbor:"channel"`
}

func (a *adminSocket) teardownPool(ctx context.Context, raw []byte) (any, error) {
	var request teardownPoolRequest
	if err := codec.Unmarshal(raw, &request); err != nil {
		return nil, fmt.Errorf("decoding request: %w", err)
	}
	channel, err := ref.ParseRoomID(request.Channel)
	if err != nil {
		return nil, fmt.Errorf("channel: %w", err)
	}
	return nil, a.coordinator.TeardownPool(ctx, channel, a.self)
}
