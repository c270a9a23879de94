// Copyright 2026 The Grange Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"encoding/json"

	"github.com/grange-collective/grange/lib/ref"
)

// AuthResponse is the body of a successful login.
type AuthResponse struct {
	UserID      ref.UserID `json:"user_id"`
	AccessToken string     `json:"access_token"`
	DeviceID    string     `json:"device_id"`
}

// LoginRequest is the password login body.
type LoginRequest struct {
	Type                     string `json:"type"`
	User                     string `json:"user"`
	Password                 string `json:"password"`
	InitialDeviceDisplayName string `json:"initial_device_display_name,omitempty"`
}

// WhoAmIResponse is the body of GET /account/whoami.
type WhoAmIResponse struct {
	UserID ref.UserID `json:"user_id"`
}

// ServerVersionsResponse lists the protocol versions the homeserver
// speaks. Used as a reachability probe at startup.
type ServerVersionsResponse struct {
	Versions []string `json:"versions"`
}

// SendEventResponse is the body returned by event sends and
// redactions.
type SendEventResponse struct {
	EventID ref.EventID `json:"event_id"`
}

// RelatesTo carries the relation block for edits.
type RelatesTo struct {
	RelType string      `json:"rel_type,omitempty"`
	EventID ref.EventID `json:"event_id,omitempty"`
}

// MessageContent is the content of an m.room.message event.
type MessageContent struct {
	MsgType       string     `json:"msgtype"`
	Body          string     `json:"body"`
	Format        string     `json:"format,omitempty"`
	FormattedBody string     `json:"formatted_body,omitempty"`
	RelatesTo     *RelatesTo `json:"m.relates_to,omitempty"`

	// NewContent is present on edits (rel_type "m.replace").
	NewContent *MessageContent `json:"m.new_content,omitempty"`
}

// NewTextMessage builds a plain-text message.
func NewTextMessage(body string) MessageContent {
	return MessageContent{MsgType: "m.text", Body: body}
}

// NewHTMLMessage builds a message with an HTML rendering alongside the
// plain-text fallback.
func NewHTMLMessage(body, html string) MessageContent {
	return MessageContent{
		MsgType:       "m.text",
		Body:          body,
		Format:        "org.matrix.custom.html",
		FormattedBody: html,
	}
}

// NewEdit wraps content as an m.replace edit of target. Per the Matrix
// spec the top-level body carries a fallback prefixed with "* ".
func NewEdit(target ref.EventID, content MessageContent) MessageContent {
	inner := content
	edit := content
	edit.Body = "* " + content.Body
	if edit.FormattedBody != "" {
		edit.FormattedBody = "* " + content.FormattedBody
	}
	edit.RelatesTo = &RelatesTo{RelType: "m.replace", EventID: target}
	edit.NewContent = &inner
	return edit
}

// SyncOptions controls a single /sync call.
type SyncOptions struct {
	Since string
	// Timeout is the long-poll timeout in milliseconds; only sent when
	// SetTimeout is true (an explicit zero means "return immediately").
	Timeout    int
	SetTimeout bool
	Filter     string
}

// SyncResponse is the subset of the /sync body the service consumes.
type SyncResponse struct {
	NextBatch string       `json:"next_batch"`
	Rooms     RoomsSection `json:"rooms"`
}

// RoomsSection splits sync data by membership state.
type RoomsSection struct {
	Join   map[string]JoinedRoom  `json:"join"`
	Invite map[string]InvitedRoom `json:"invite"`
}

// JoinedRoom carries the timeline for one joined room.
type JoinedRoom struct {
	Timeline Timeline `json:"timeline"`
}

// InvitedRoom is an invite pending acceptance. The stripped state is
// not needed; invites are accepted unconditionally.
type InvitedRoom struct{}

// Timeline is the event list for one room in one sync window.
type Timeline struct {
	Events []Event `json:"events"`
}

// Event is a single timeline or state event. Content stays raw; the
// consumer unmarshals per event type.
type Event struct {
	Type     string          `json:"type"`
	EventID  ref.EventID     `json:"event_id"`
	Sender   ref.UserID      `json:"sender"`
	StateKey *string         `json:"state_key,omitempty"`
	Content  json.RawMessage `json:"content"`
}

// MessageEventContent is the decoded content of m.room.message.
type MessageEventContent struct {
	MsgType string `json:"msgtype"`
	Body    string `json:"body"`
}

// MemberEventContent is the decoded content of m.room.member.
type MemberEventContent struct {
	Membership  string `json:"membership"`
	DisplayName string `json:"displayname"`
}

// RoomMember is one entry from the room members listing.
type RoomMember struct {
	UserID      ref.UserID
	DisplayName string
	Membership  string
}

// RoomMembersResponse is the body of GET /rooms/{id}/members.
type RoomMembersResponse struct {
	Chunk []struct {
		StateKey ref.UserID         `json:"state_key"`
		Content  MemberEventContent `json:"content"`
	} `json:"chunk"`
}

// PowerLevels is the content of the m.room.power_levels state event.
type PowerLevels struct {
	Users        map[string]int `json:"users"`
	UsersDefault int            `json:"users_default"`
}

// Level returns the user's power level, falling back to the room
// default.
func (p *PowerLevels) Level(user ref.UserID) int {
	if level, ok := p.Users[user.String()]; ok {
		return level
	}
	return p.UsersDefault
}

// DisplayNameResponse is the body of the profile displayname endpoints.
type DisplayNameResponse struct {
	DisplayName string `json:"displayname"`
}

// KickRequest is the body of POST /rooms/{id}/kick.
type KickRequest struct {
	UserID ref.UserID `json:"user_id"`
	Reason string     `json:"reason,omitempty"`
}

// InviteRequest is the body of POST /rooms/{id}/invite.
type InviteRequest struct {
	UserID ref.UserID `json:"user_id"`
}

// RedactRequest is the body of the redaction endpoint.
type RedactRequest struct {
	Reason string `json:"reason,omitempty"`
}

// CreateRoomRequest is the body of POST /createRoom. The lobby only
// creates direct-message rooms, so the shape stays small.
type CreateRoomRequest struct {
	Preset   string       `json:"preset,omitempty"`
	IsDirect bool         `json:"is_direct,omitempty"`
	Invite   []ref.UserID `json:"invite,omitempty"`
}

// CreateRoomResponse is the body returned by room creation.
type CreateRoomResponse struct {
	RoomID ref.RoomID `json:"room_id"`
}

// JoinedRoomsResponse is the body of GET /joined_rooms.
type JoinedRoomsResponse struct {
	JoinedRooms []ref.RoomID `json:"joined_rooms"`
}
