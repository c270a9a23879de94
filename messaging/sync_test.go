// Copyright 2026 The Grange Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/grange-collective/grange/lib/clock"
	"github.com/grange-collective/grange/lib/testutil"
)

func TestInitialSync(t *testing.T) {
	session := testSession(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if since := r.URL.Query().Get("since"); since != "" {
			t.Errorf("initial sync sent since=%q", since)
		}
		if filter := r.URL.Query().Get("filter"); filter != `{"room":{}}` {
			t.Errorf("filter = %q", filter)
		}
		fmt.Fprint(w, `{"next_batch":"batch-1","rooms":{}}`)
	}))

	since, response, err := InitialSync(context.Background(), session, `{"room":{}}`)
	if err != nil {
		t.Fatalf("InitialSync: %v", err)
	}
	if since != "batch-1" {
		t.Errorf("since = %q, want batch-1", since)
	}
	if response == nil {
		t.Fatal("response is nil")
	}
}

func TestRunSyncLoop(t *testing.T) {
	var calls atomic.Int64
	session := testSession(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		if since := r.URL.Query().Get("since"); n > 1 && since != fmt.Sprintf("batch-%d", n-1) {
			t.Errorf("call %d since = %q", n, since)
		}
		fmt.Fprintf(w, `{"next_batch":"batch-%d","rooms":{}}`, n)
	}))

	responses := make(chan *SyncResponse, 4)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		RunSyncLoop(ctx, session, SyncConfig{}, "batch-0", func(_ context.Context, response *SyncResponse) {
			responses <- response
		}, clock.Real(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	}()

	first := testutil.RequireReceive(t, responses, 5*time.Second, "first sync response")
	if first.NextBatch != "batch-1" {
		t.Errorf("first batch = %q", first.NextBatch)
	}
	second := testutil.RequireReceive(t, responses, 5*time.Second, "second sync response")
	if second.NextBatch != "batch-2" {
		t.Errorf("second batch = %q", second.NextBatch)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("loop did not exit on cancellation")
	}
}

func TestRunSyncLoopRetriesOnError(t *testing.T) {
	var calls atomic.Int64
	session := testSession(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, `{"errcode":"M_UNKNOWN","error":"boom"}`, http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, `{"next_batch":"batch-ok","rooms":{}}`)
	}))

	responses := make(chan *SyncResponse, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go RunSyncLoop(ctx, session, SyncConfig{MaxBackoff: time.Millisecond}, "", func(_ context.Context, response *SyncResponse) {
		select {
		case responses <- response:
		default:
		}
	}, clock.Real(), slog.New(slog.NewTextHandler(io.Discard, nil)))

	response := testutil.RequireReceive(t, responses, 10*time.Second, "response after retry")
	if response.NextBatch != "batch-ok" {
		t.Errorf("batch = %q, want batch-ok", response.NextBatch)
	}
	if calls.Load() < 2 {
		t.Errorf("calls = %d, want at least 2", calls.Load())
	}
}
