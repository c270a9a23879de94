// Copyright 2026 The Grange Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"github.com/grange-collective/grange/lobby"
	"github.com/grange-collective/grange/lib/ref"
	"github.com/grange-collective/grange/messaging"
)

const eventUsage = "Usage: !event <name> ; <description> ; <when> ; <capacity>"

// HandleSync routes one sync response into the Coordinator: commands
// and profile links from message events, verification windows from
// signup-room joins, roster maintenance from members-room state.
func (b *Bridge) HandleSync(ctx context.Context, response *messaging.SyncResponse) {
	if len(response.Rooms.Invite) > 0 {
		messaging.AcceptInvites(ctx, b.session, response.Rooms.Invite, b.logger)
	}

	for raw, joined := range response.Rooms.Join {
		room, err := ref.ParseRoomID(raw)
		if err != nil {
			b.logger.Warn("sync delivered malformed room ID", "room_id", raw, "error", err)
			continue
		}
		for _, event := range joined.Timeline.Events {
			b.handleEvent(ctx, room, event)
		}
	}
}

func (b *Bridge) handleEvent(ctx context.Context, room ref.RoomID, event messaging.Event) {
	if event.Sender == b.session.UserID() {
		return
	}

	switch event.Type {
	case "m.room.message":
		var content messaging.MessageEventContent
		if err := json.Unmarshal(event.Content, &content); err != nil {
			b.logger.Warn("undecodable message event", "event_id", event.EventID, "error", err)
			return
		}
		if content.MsgType != "m.text" {
			return
		}
		b.handleMessage(ctx, room, event.Sender, strings.TrimSpace(content.Body))

	case "m.room.member":
		if event.StateKey == nil {
			return
		}
		var content messaging.MemberEventContent
		if err := json.Unmarshal(event.Content, &content); err != nil {
			b.logger.Warn("undecodable member event", "event_id", event.EventID, "error", err)
			return
		}
		b.handleMemberChange(ctx, room, *event.StateKey, content.Membership)

	case "m.room.power_levels":
		if room != b.membersRoom {
			return
		}
		var levels messaging.PowerLevels
		if err := json.Unmarshal(event.Content, &levels); err != nil {
			b.logger.Warn("undecodable power levels event", "event_id", event.EventID, "error", err)
			return
		}
		b.mu.Lock()
		b.levels = &levels
		b.mu.Unlock()
	}
}

func (b *Bridge) handleMemberChange(ctx context.Context, room ref.RoomID, rawUser, membership string) {
	user, err := ref.ParseUserID(rawUser)
	if err != nil {
		b.logger.Warn("member event with malformed user ID", "user_id", rawUser, "error", err)
		return
	}
	if user == b.session.UserID() {
		return
	}

	if room == b.membersRoom {
		b.mu.Lock()
		if membership == "join" {
			b.members[user.String()] = true
		} else {
			delete(b.members, user.String())
		}
		b.mu.Unlock()
		return
	}

	if room == b.signupRoom && membership == "join" {
		if err := b.coordinator.MemberJoined(ctx, user); err != nil {
			b.logger.Error("opening verification window failed", "user", user, "error", err)
		}
	}
}

func (b *Bridge) handleMessage(ctx context.Context, room ref.RoomID, sender ref.UserID, body string) {
	if strings.HasPrefix(body, "!") {
		b.handleCommand(ctx, room, sender, body)
		return
	}

	// Non-command text in the signup room is a verification attempt
	// when the sender has an open window; anyone else is just
	// chatting.
	if room == b.signupRoom && b.coordinator.HasPendingVerification(sender) {
		if err := b.coordinator.SubmitVerification(ctx, sender, body); err != nil {
			b.reject(ctx, room, sender, err)
		}
	}
}

func (b *Bridge) handleCommand(ctx context.Context, room ref.RoomID, sender ref.UserID, body string) {
	fields := strings.Fields(body)
	command, args := fields[0], fields[1:]

	var err error
	switch command {
	case "!lobby":
		err = b.coordinator.CreatePool(ctx, room, sender)

	case "!clear":
		err = b.coordinator.TeardownPool(ctx, room, sender)

	case "!rent":
		var index int
		if index, err = slotIndex(args); err == nil {
			err = b.coordinator.RequestSlot(ctx, room, index, sender)
		}

	case "!approve":
		var index int
		if index, err = slotIndex(args); err == nil {
			err = b.coordinator.ApproveSlot(ctx, room, index, sender)
		}

	case "!deny":
		var index int
		if index, err = slotIndex(args); err == nil {
			err = b.coordinator.DenySlot(ctx, room, index, sender)
		}

	case "!event":
		err = b.createEvent(ctx, room, sender, strings.TrimSpace(strings.TrimPrefix(body, "!event")))

	case "!join":
		if len(args) != 1 {
			err = &lobby.Error{Code: lobby.CodeInvalidInput, Message: "usage: !join <event-id>"}
			break
		}
		err = b.coordinator.JoinEvent(ctx, lobby.EventID(args[0]), sender)

	case "!cancel":
		if len(args) != 1 {
			err = &lobby.Error{Code: lobby.CodeInvalidInput, Message: "usage: !cancel <event-id>"}
			break
		}
		err = b.coordinator.CancelEvent(ctx, lobby.EventID(args[0]), sender)

	case "!start":
		if len(args) != 1 {
			err = &lobby.Error{Code: lobby.CodeInvalidInput, Message: "usage: !start <event-id>"}
			break
		}
		err = b.coordinator.StartEvent(ctx, lobby.EventID(args[0]), sender)

	case "!book":
		if len(args) < 2 {
			err = &lobby.Error{Code: lobby.CodeInvalidInput, Message: "usage: !book <date> <time>"}
			break
		}
		err = b.coordinator.BookReservation(ctx, sender, args[0], strings.Join(args[1:], " "))

	default:
		// Unknown bangs may belong to other bots sharing the room.
		return
	}

	if err != nil {
		b.reject(ctx, room, sender, err)
	}
}

// createEvent parses "name ; description ; when ; capacity".
func (b *Bridge) createEvent(ctx context.Context, room ref.RoomID, sender ref.UserID, args string) error {
	parts := strings.Split(args, ";")
	if len(parts) != 4 {
		return &lobby.Error{Code: lobby.CodeInvalidInput, Message: eventUsage}
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	capacity, err := strconv.Atoi(parts[3])
	if err != nil {
		return &lobby.Error{Code: lobby.CodeInvalidInput, Message: eventUsage}
	}

	_, err = b.coordinator.CreateEvent(ctx, room, sender, parts[0], parts[1], parts[2], capacity)
	return err
}

// slotIndex converts a one-based human slot number to a zero-based
// index. Range checks live in the lobby.
func slotIndex(args []string) (int, error) {
	if len(args) != 1 {
		return 0, &lobby.Error{Code: lobby.CodeInvalidInput, Message: "expected a slot number (1-3)"}
	}
	number, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, &lobby.Error{Code: lobby.CodeInvalidInput, Message: "expected a slot number (1-3)"}
	}
	return number - 1, nil
}

// reject surfaces a rejection to its actor in the room where the
// command was issued. Collaborator failures are logged, not posted.
func (b *Bridge) reject(ctx context.Context, room ref.RoomID, sender ref.UserID, err error) {
	if lobby.IsCode(err, lobby.CodeUnreachable) {
		b.logger.Error("command failed on a collaborator", "room", room, "sender", sender, "error", err)
		return
	}

	var rejection *lobby.Error
	text := "That didn't work."
	if errors.As(err, &rejection) {
		text = sender.String() + ": " + rejection.Message
	}
	if announceErr := b.Announce(ctx, room, text); announceErr != nil {
		b.logger.Warn("rejection reply failed", "room", room, "error", announceErr)
	}
}
