// Copyright 2026 The Grange Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/grange-collective/grange/lib/ref"
)

func testSession(t *testing.T, handler http.Handler) *Session {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(ClientConfig{
		HomeserverURL: server.URL,
		Logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	user, err := ref.ParseUserID("@lobby:grange.test")
	if err != nil {
		t.Fatalf("ParseUserID: %v", err)
	}
	return client.SessionFromToken(user, "token-123")
}

func mustRoomID(t *testing.T, raw string) ref.RoomID {
	t.Helper()
	room, err := ref.ParseRoomID(raw)
	if err != nil {
		t.Fatalf("ParseRoomID: %v", err)
	}
	return room
}

func TestSendMessage(t *testing.T) {
	var captured MessageContent
	var capturedPath, capturedAuth string

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		capturedPath = r.URL.Path
		capturedAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		w.Write([]byte(`{"event_id":"$sent"}`))
	})

	session := testSession(t, mux)
	room := mustRoomID(t, "!rust:grange.test")
	eventID, err := session.SendMessage(context.Background(), room, NewTextMessage("hello"))
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}

	if eventID.String() != "$sent" {
		t.Errorf("event ID = %q", eventID)
	}
	if captured.MsgType != "m.text" || captured.Body != "hello" {
		t.Errorf("content = %+v", captured)
	}
	if !strings.Contains(capturedPath, "/send/m.room.message/grange-") {
		t.Errorf("path = %q, want transaction-ID send path", capturedPath)
	}
	if capturedAuth != "Bearer token-123" {
		t.Errorf("auth header = %q", capturedAuth)
	}
}

func TestEditMessage(t *testing.T) {
	var captured MessageContent

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		w.Write([]byte(`{"event_id":"$edit"}`))
	})

	session := testSession(t, mux)
	room := mustRoomID(t, "!rust:grange.test")
	target, err := ref.ParseEventID("$original")
	if err != nil {
		t.Fatalf("ParseEventID: %v", err)
	}

	if err := session.EditMessage(context.Background(), room, target, NewTextMessage("updated")); err != nil {
		t.Fatalf("EditMessage: %v", err)
	}

	if captured.RelatesTo == nil || captured.RelatesTo.RelType != "m.replace" {
		t.Fatalf("relates_to = %+v, want m.replace", captured.RelatesTo)
	}
	if captured.RelatesTo.EventID != target {
		t.Errorf("edit target = %v, want %v", captured.RelatesTo.EventID, target)
	}
	if captured.Body != "* updated" {
		t.Errorf("fallback body = %q, want \"* updated\"", captured.Body)
	}
	if captured.NewContent == nil || captured.NewContent.Body != "updated" {
		t.Errorf("new content = %+v", captured.NewContent)
	}
}

func TestMatrixErrorSurfaces(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"errcode":"M_FORBIDDEN","error":"insufficient power level"}`))
	})

	session := testSession(t, mux)
	room := mustRoomID(t, "!rust:grange.test")
	user, _ := ref.ParseUserID("@target:grange.test")

	err := session.KickUser(context.Background(), room, user, "test")
	if err == nil {
		t.Fatal("want error")
	}
	if !IsMatrixError(err, ErrCodeForbidden) {
		t.Fatalf("err = %v, want M_FORBIDDEN", err)
	}

	var matrixErr *MatrixError
	if !errors.As(err, &matrixErr) || matrixErr.StatusCode != http.StatusForbidden {
		t.Fatalf("status = %+v, want 403", matrixErr)
	}
}

func TestGetRoomMembers(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"chunk":[
			{"state_key":"@alice:grange.test","content":{"membership":"join","displayname":"Alice"}},
			{"state_key":"@bob:grange.test","content":{"membership":"leave"}}
		]}`))
	})

	session := testSession(t, mux)
	members, err := session.GetRoomMembers(context.Background(), mustRoomID(t, "!rust:grange.test"))
	if err != nil {
		t.Fatalf("GetRoomMembers: %v", err)
	}
	if len(members) != 2 {
		t.Fatalf("members = %d, want 2", len(members))
	}
	if members[0].DisplayName != "Alice" || members[0].Membership != "join" {
		t.Errorf("member[0] = %+v", members[0])
	}
}

func TestPowerLevelFallback(t *testing.T) {
	levels := PowerLevels{
		Users:        map[string]int{"@boss:grange.test": 100},
		UsersDefault: 0,
	}
	boss, _ := ref.ParseUserID("@boss:grange.test")
	nobody, _ := ref.ParseUserID("@nobody:grange.test")

	if got := levels.Level(boss); got != 100 {
		t.Errorf("boss level = %d, want 100", got)
	}
	if got := levels.Level(nobody); got != 0 {
		t.Errorf("default level = %d, want 0", got)
	}
}

func TestSyncParsesTimeline(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("since"); got != "batch-1" {
			t.Errorf("since = %q", got)
		}
		w.Write([]byte(`{
			"next_batch": "batch-2",
			"rooms": {"join": {"!rust:grange.test": {"timeline": {"events": [
				{"type":"m.room.message","event_id":"$m1","sender":"@alice:grange.test",
				 "content":{"msgtype":"m.text","body":"!rent 1"}}
			]}}}}
		}`))
	})

	session := testSession(t, mux)
	response, err := session.Sync(context.Background(), SyncOptions{Since: "batch-1"})
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if response.NextBatch != "batch-2" {
		t.Errorf("next_batch = %q", response.NextBatch)
	}

	joined := response.Rooms.Join["!rust:grange.test"]
	if len(joined.Timeline.Events) != 1 {
		t.Fatalf("events = %d, want 1", len(joined.Timeline.Events))
	}
	event := joined.Timeline.Events[0]

	var content MessageEventContent
	if err := json.Unmarshal(event.Content, &content); err != nil {
		t.Fatalf("unmarshal content: %v", err)
	}
	if content.Body != "!rent 1" {
		t.Errorf("body = %q", content.Body)
	}
}
