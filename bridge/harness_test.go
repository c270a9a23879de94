// Copyright 2026 The Grange Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/grange-collective/grange/lib/clock"
	"github.com/grange-collective/grange/lib/ref"
	"github.com/grange-collective/grange/lobby"
	"github.com/grange-collective/grange/messaging"
	"github.com/grange-collective/grange/steam"
)

const (
	botUser     = "@lobby:grange.test"
	bossUser    = "@boss:grange.test"
	memberUser  = "@plow:grange.test"
	signupRoom  = "!signup:grange.test"
	membersRoom = "!members:grange.test"
	poolRoom    = "!pool:grange.test"
)

type sentMessage struct {
	room    string
	content messaging.MessageContent
	eventID string
}

// fakeHomeserver records every write the bridge performs.
type fakeHomeserver struct {
	mu      sync.Mutex
	counter int

	sends      []sentMessage
	redactions []string
	kicks      map[string]string // user -> reason
	invites    map[string][]string
	names      map[string]string
	dmRooms    map[string]string // invited user -> created room

	// editGone lists event IDs whose edits the server rejects with
	// M_NOT_FOUND.
	editGone map[string]bool
}

func newFakeHomeserver() *fakeHomeserver {
	return &fakeHomeserver{
		kicks:    make(map[string]string),
		invites:  make(map[string][]string),
		names:    make(map[string]string),
		dmRooms:  make(map[string]string),
		editGone: make(map[string]bool),
	}
}

func (f *fakeHomeserver) nextID(prefix string) string {
	f.counter++
	return fmt.Sprintf("%s-%d:grange.test", prefix, f.counter)
}

func (f *fakeHomeserver) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := r.URL.Path
	switch {
	case strings.Contains(path, "/send/m.room.message/"):
		var content messaging.MessageContent
		if err := json.NewDecoder(r.Body).Decode(&content); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if content.RelatesTo != nil && f.editGone[content.RelatesTo.EventID.String()] {
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `{"errcode":"M_NOT_FOUND","error":"Event not found."}`)
			return
		}
		eventID := "$ev" + f.nextID("")
		f.sends = append(f.sends, sentMessage{
			room:    roomFromPath(path, "/send/"),
			content: content,
			eventID: eventID,
		})
		fmt.Fprintf(w, `{"event_id":%q}`, eventID)

	case strings.Contains(path, "/redact/"):
		parts := strings.Split(path, "/")
		f.redactions = append(f.redactions, parts[len(parts)-2])
		fmt.Fprintf(w, `{"event_id":%q}`, "$ev"+f.nextID(""))

	case strings.HasSuffix(path, "/members"):
		fmt.Fprintf(w, `{"chunk":[
			{"state_key":%q,"content":{"membership":"join"}},
			{"state_key":%q,"content":{"membership":"join"}},
			{"state_key":%q,"content":{"membership":"join"}}
		]}`, botUser, bossUser, memberUser)

	case strings.Contains(path, "/state/m.room.power_levels"):
		fmt.Fprintf(w, `{"users":{%q:100},"users_default":0}`, bossUser)

	case strings.HasSuffix(path, "/kick"):
		var request messaging.KickRequest
		json.NewDecoder(r.Body).Decode(&request)
		f.kicks[request.UserID.String()] = request.Reason
		fmt.Fprint(w, `{}`)

	case strings.HasSuffix(path, "/invite"):
		var request messaging.InviteRequest
		json.NewDecoder(r.Body).Decode(&request)
		room := roomFromPath(path, "/invite")
		f.invites[room] = append(f.invites[room], request.UserID.String())
		fmt.Fprint(w, `{}`)

	case strings.HasSuffix(path, "/createRoom"):
		var request messaging.CreateRoomRequest
		json.NewDecoder(r.Body).Decode(&request)
		room := "!dm" + f.nextID("")
		if len(request.Invite) == 1 {
			f.dmRooms[request.Invite[0].String()] = room
		}
		fmt.Fprintf(w, `{"room_id":%q}`, room)

	case strings.HasSuffix(path, "/displayname") && r.Method == http.MethodPut:
		var request messaging.DisplayNameResponse
		json.NewDecoder(r.Body).Decode(&request)
		parts := strings.Split(path, "/")
		f.names[parts[len(parts)-2]] = request.DisplayName
		fmt.Fprint(w, `{}`)

	case strings.Contains(path, "/join/"):
		fmt.Fprintf(w, `{"room_id":%q}`, path[strings.LastIndex(path, "/")+1:])

	default:
		http.Error(w, `{"errcode":"M_UNRECOGNIZED","error":"unhandled"}`, http.StatusNotFound)
	}
}

// roomFromPath pulls the room ID out of /_matrix/client/v3/rooms/<id>/...
func roomFromPath(path, after string) string {
	const prefix = "/rooms/"
	start := strings.Index(path, prefix)
	if start < 0 {
		return ""
	}
	rest := path[start+len(prefix):]
	if end := strings.Index(rest, "/"); end >= 0 {
		rest = rest[:end]
	}
	room, _ := ref.ParseRoomID(rest)
	return room.String()
}

// messagesTo returns the bodies sent to one room, most recent last.
func (f *fakeHomeserver) messagesTo(room string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var bodies []string
	for _, send := range f.sends {
		if send.room == room {
			bodies = append(bodies, send.content.Body)
		}
	}
	return bodies
}

// lastMatching returns the most recent send whose body contains want.
func (f *fakeHomeserver) lastMatching(t *testing.T, want string) sentMessage {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.sends) - 1; i >= 0; i-- {
		if strings.Contains(f.sends[i].content.Body, want) {
			return f.sends[i]
		}
	}
	t.Fatalf("no sent message contains %q", want)
	return sentMessage{}
}

func (f *fakeHomeserver) markEditGone(eventID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.editGone[eventID] = true
}

func (f *fakeHomeserver) dmRoom(user string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dmRooms[user]
}

func (f *fakeHomeserver) invitesTo(room string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.invites[room]...)
}

func (f *fakeHomeserver) kickReason(user string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	reason, kicked := f.kicks[user]
	return reason, kicked
}

func (f *fakeHomeserver) displayName(user string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.names[user]
}

func (f *fakeHomeserver) sendCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sends)
}

func (f *fakeHomeserver) redactionCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.redactions)
}

// fakeSteam serves the two Web API endpoints the client calls.
func fakeSteam(t *testing.T) string {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/ISteamUser/ResolveVanityURL/v1/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("vanityurl") == "plowshare" {
			fmt.Fprint(w, `{"response":{"success":1,"steamid":"76561198000000001"}}`)
			return
		}
		fmt.Fprint(w, `{"response":{"success":42}}`)
	})
	mux.HandleFunc("/ISteamUser/GetPlayerSummaries/v2/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("steamids") == "76561198000000001" {
			fmt.Fprint(w, `{"response":{"players":[{"steamid":"76561198000000001","personaname":"Plowshare"}]}}`)
			return
		}
		fmt.Fprint(w, `{"response":{"players":[]}}`)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server.URL
}

type harness struct {
	bridge      *Bridge
	coordinator *lobby.Coordinator
	homeserver  *fakeHomeserver
	clock       *clock.FakeClock
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	homeserver := newFakeHomeserver()
	server := httptest.NewServer(homeserver)
	t.Cleanup(server.Close)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	client, err := messaging.NewClient(messaging.ClientConfig{HomeserverURL: server.URL, Logger: logger})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	session := client.SessionFromToken(mustUser(t, botUser), "token-123")

	steamClient, err := steam.NewClient(steam.ClientConfig{
		APIKey:            "key",
		BaseURL:           fakeSteam(t),
		Logger:            logger,
		RequestsPerSecond: 1000,
	})
	if err != nil {
		t.Fatalf("steam.NewClient: %v", err)
	}

	bridge, err := New(Config{
		Session:     session,
		Steam:       steamClient,
		Logger:      logger,
		SignupRoom:  mustRoom(t, signupRoom),
		MembersRoom: mustRoom(t, membersRoom),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	fakeClock := clock.Fake(time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC))
	coordinator, err := lobby.New(lobby.Config{
		Clock:         fakeClock,
		Logger:        logger,
		Renderer:      bridge,
		Notifier:      bridge,
		Directory:     bridge,
		Roster:        bridge,
		Membership:    bridge,
		SignupChannel: mustRoom(t, signupRoom),
	})
	if err != nil {
		t.Fatalf("lobby.New: %v", err)
	}
	bridge.SetCoordinator(coordinator)

	if err := bridge.Seed(context.Background()); err != nil {
		t.Fatalf("Seed: %v", err)
	}

	return &harness{
		bridge:      bridge,
		coordinator: coordinator,
		homeserver:  homeserver,
		clock:       fakeClock,
	}
}

// sync feeds one synthetic timeline event through HandleSync.
func (h *harness) sync(room string, event messaging.Event) {
	response := &messaging.SyncResponse{
		Rooms: messaging.RoomsSection{
			Join: map[string]messaging.JoinedRoom{
				room: {Timeline: messaging.Timeline{Events: []messaging.Event{event}}},
			},
		},
	}
	h.bridge.HandleSync(context.Background(), response)
}

func (h *harness) message(t *testing.T, room, sender, body string) {
	t.Helper()
	h.sync(room, messaging.Event{
		Type:    "m.room.message",
		Sender:  mustUser(t, sender),
		Content: json.RawMessage(fmt.Sprintf(`{"msgtype":"m.text","body":%q}`, body)),
	})
}

func (h *harness) memberEvent(t *testing.T, room, user, membership string) {
	t.Helper()
	stateKey := user
	h.sync(room, messaging.Event{
		Type:     "m.room.member",
		Sender:   mustUser(t, user),
		StateKey: &stateKey,
		Content:  json.RawMessage(fmt.Sprintf(`{"membership":%q}`, membership)),
	})
}

// powerLevelsEvent builds an m.room.power_levels state event granting
// one user the given level.
func powerLevelsEvent(t *testing.T, user string, level int) messaging.Event {
	t.Helper()
	stateKey := ""
	return messaging.Event{
		Type:     "m.room.power_levels",
		Sender:   mustUser(t, bossUser),
		StateKey: &stateKey,
		Content:  json.RawMessage(fmt.Sprintf(`{"users":{%q:100,%q:%d},"users_default":0}`, bossUser, user, level)),
	}
}

func mustUser(t *testing.T, raw string) ref.UserID {
	t.Helper()
	user, err := ref.ParseUserID(raw)
	if err != nil {
		t.Fatalf("ParseUserID(%q): %v", raw, err)
	}
	return user
}

func mustRoom(t *testing.T, raw string) ref.RoomID {
	t.Helper()
	room, err := ref.ParseRoomID(raw)
	if err != nil {
		t.Fatalf("ParseRoomID(%q): %v", raw, err)
	}
	return room
}
