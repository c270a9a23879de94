// Copyright 2026 The Grange Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/grange-collective/grange/lib/clock"
	"github.com/grange-collective/grange/lib/ref"
)

// SyncConfig configures the /sync long-poll loop.
type SyncConfig struct {
	// Filter is the inline JSON filter restricting which event types
	// the homeserver returns.
	Filter string

	// Timeout is the long-poll timeout in milliseconds. Default:
	// 30000.
	Timeout int

	// MaxBackoff caps the retry delay on transient /sync errors. The
	// loop backs off exponentially from 1 second. Default: 30 seconds.
	MaxBackoff time.Duration
}

// SyncHandler is called for each /sync response. The next poll starts
// after the handler returns; handlers should not block for long.
type SyncHandler func(ctx context.Context, response *SyncResponse)

// InitialSync performs the first /sync with no since token, returning
// the next_batch token for the incremental loop and the full response
// for building initial state.
func InitialSync(ctx context.Context, session *Session, filter string) (string, *SyncResponse, error) {
	response, err := session.Sync(ctx, SyncOptions{Filter: filter})
	if err != nil {
		return "", nil, fmt.Errorf("initial sync: %w", err)
	}
	return response.NextBatch, response, nil
}

// RunSyncLoop runs the incremental /sync long-poll loop until ctx is
// cancelled, calling handler for each response. Transient errors retry
// with exponential backoff.
func RunSyncLoop(ctx context.Context, session *Session, config SyncConfig, sinceToken string, handler SyncHandler, clk clock.Clock, logger *slog.Logger) {
	timeout := config.Timeout
	if timeout == 0 {
		timeout = 30000
	}
	maxBackoff := config.MaxBackoff
	if maxBackoff == 0 {
		maxBackoff = 30 * time.Second
	}

	backoff := time.Second

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		response, err := session.Sync(ctx, SyncOptions{
			Since:      sinceToken,
			Timeout:    timeout,
			SetTimeout: true,
			Filter:     config.Filter,
		})
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Error("sync failed, retrying", "error", err, "backoff", backoff)
			select {
			case <-ctx.Done():
				return
			case <-clk.After(backoff):
			}
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}

		backoff = time.Second
		sinceToken = response.NextBatch

		handler(ctx, response)
	}
}

// AcceptInvites joins every room the session has been invited to and
// returns the rooms joined.
func AcceptInvites(ctx context.Context, session *Session, invites map[string]InvitedRoom, logger *slog.Logger) []ref.RoomID {
	var accepted []ref.RoomID
	for raw := range invites {
		roomID, err := ref.ParseRoomID(raw)
		if err != nil {
			logger.Warn("invite with malformed room ID", "room_id", raw, "error", err)
			continue
		}
		logger.Info("accepting room invite", "room_id", roomID)
		if err := session.JoinRoom(ctx, roomID); err != nil {
			logger.Error("failed to accept room invite", "room_id", roomID, "error", err)
			continue
		}
		accepted = append(accepted, roomID)
	}
	return accepted
}
