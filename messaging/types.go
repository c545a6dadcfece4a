// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"encoding/json"

	"github.com/bureau-foundation/userprefs/lib/ref"
)

// LoginRequest is the request body for password login.
type LoginRequest struct {
	Type                     string          `json:"type"`
	Identifier               *UserIdentifier `json:"identifier,omitempty"`
	Password                 string          `json:"password"`
	DeviceID                 string          `json:"device_id,omitempty"`
	InitialDeviceDisplayName string          `json:"initial_device_display_name,omitempty"`
}

// UserIdentifier names the account in a login request.
type UserIdentifier struct {
	Type string `json:"type"`
	User string `json:"user"`
}

// AuthResponse is returned by Login.
type AuthResponse struct {
	UserID      ref.UserID `json:"user_id"`
	AccessToken string     `json:"access_token"`
	DeviceID    string     `json:"device_id"`
}

// WhoAmIResponse is returned by WhoAmI.
type WhoAmIResponse struct {
	UserID   ref.UserID `json:"user_id"`
	DeviceID string     `json:"device_id,omitempty"`
}

// SendEventResponse is returned by SendStateEvent.
type SendEventResponse struct {
	EventID ref.EventID `json:"event_id"`
}

// Event is a Matrix event as delivered by /sync, /state, and /messages.
// Content stays raw: preference content is merged key by key and must
// survive a round trip without being reshaped, and a non-object content
// must not fail decoding of the whole response.
type Event struct {
	EventID        ref.EventID     `json:"event_id,omitempty"`
	Type           ref.EventType   `json:"type"`
	Sender         string          `json:"sender,omitempty"`
	OriginServerTS int64           `json:"origin_server_ts,omitempty"`
	Content        json.RawMessage `json:"content,omitempty"`
	RoomID         string          `json:"room_id,omitempty"`
	StateKey       *string         `json:"state_key,omitempty"`
}

// ContentObject decodes Content as a JSON object. It returns ok=false
// when Content is absent or is not an object.
func (e Event) ContentObject() (map[string]any, bool) {
	if len(e.Content) == 0 {
		return nil, false
	}
	var object map[string]any
	if err := json.Unmarshal(e.Content, &object); err != nil || object == nil {
		return nil, false
	}
	return object, true
}

// ContentString returns the string value of a top-level content key,
// or "" when the key is missing or not a string.
func (e Event) ContentString(key string) string {
	object, ok := e.ContentObject()
	if !ok {
		return ""
	}
	value, _ := object[key].(string)
	return value
}

// RoomMessagesOptions controls /messages pagination.
type RoomMessagesOptions struct {
	From      string // pagination token; empty means "from now"
	Direction string // "b" (older) or "f" (newer); default "b"
	Limit     int    // 0 uses the server default
}

// RoomMessagesResponse is returned by RoomMessages.
type RoomMessagesResponse struct {
	Start string  `json:"start"`
	End   string  `json:"end"`
	Chunk []Event `json:"chunk"`
}

// SyncOptions controls a /sync request.
type SyncOptions struct {
	Since      string // next_batch from the previous sync; empty for initial sync
	Timeout    int    // long-poll hold in milliseconds
	SetTimeout bool   // send Timeout even when it is zero
	Filter     string // filter ID or inline JSON filter
	FullState  bool
}

// SyncResponse is the top-level /sync response.
type SyncResponse struct {
	NextBatch   string             `json:"next_batch"`
	AccountData AccountDataSection `json:"account_data"`
	Presence    PresenceSection    `json:"presence"`
	Rooms       RoomsSection       `json:"rooms"`
}

// AccountDataSection carries global or per-room account data events.
// Each event's Content is the full current value for its type.
type AccountDataSection struct {
	Events []Event `json:"events"`
}

// PresenceSection carries m.presence events.
type PresenceSection struct {
	Events []PresenceEvent `json:"events"`
}

// PresenceEvent is a single m.presence event.
type PresenceEvent struct {
	Type    string               `json:"type"`
	Sender  string               `json:"sender"`
	Content PresenceEventContent `json:"content"`
}

// PresenceEventContent is one user's presence state.
type PresenceEventContent struct {
	// Presence is "online", "unavailable", or "offline".
	Presence        string `json:"presence"`
	LastActiveAgo   int64  `json:"last_active_ago,omitempty"`
	CurrentlyActive bool   `json:"currently_active,omitempty"`
	StatusMsg       string `json:"status_msg,omitempty"`
}

// RoomsSection groups per-room sync data by membership. Keys are raw
// room IDs; the mirror parses them so one bad key cannot fail the whole
// response.
type RoomsSection struct {
	Join  map[string]JoinedRoom `json:"join,omitempty"`
	Leave map[string]LeftRoom   `json:"leave,omitempty"`
}

// JoinedRoom is sync data for a joined room.
type JoinedRoom struct {
	State       StateSection       `json:"state"`
	Timeline    TimelineSection    `json:"timeline"`
	AccountData AccountDataSection `json:"account_data"`
}

// LeftRoom is sync data for a room the user left.
type LeftRoom struct {
	State    StateSection    `json:"state"`
	Timeline TimelineSection `json:"timeline"`
}

// TimelineSection holds timeline events. State events in the timeline
// also update room state.
type TimelineSection struct {
	Events    []Event `json:"events"`
	PrevBatch string  `json:"prev_batch"`
	Limited   bool    `json:"limited"`
}

// StateSection holds state events that precede the timeline.
type StateSection struct {
	Events []Event `json:"events"`
}

// RoomMember is one member of a room.
type RoomMember struct {
	UserID      ref.UserID `json:"user_id"`
	DisplayName string     `json:"display_name"`
	Membership  string     `json:"membership"`
	AvatarURL   string     `json:"avatar_url,omitempty"`
}

// RoomMembersResponse is returned by the /members endpoint.
type RoomMembersResponse struct {
	Chunk []RoomMemberEvent `json:"chunk"`
}

// RoomMemberEvent is an m.room.member state event from /members.
type RoomMemberEvent struct {
	Type     string            `json:"type"`
	StateKey string            `json:"state_key"`
	Sender   string            `json:"sender"`
	Content  RoomMemberContent `json:"content"`
}

// RoomMemberContent is the content of an m.room.member event.
type RoomMemberContent struct {
	Membership  string `json:"membership"`
	DisplayName string `json:"displayname,omitempty"`
	AvatarURL   string `json:"avatar_url,omitempty"`
}
