// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package timeline

import "github.com/bureau-foundation/userprefs/lib/prefs"

// Enrichment describes one observed message. Fields that could not be
// resolved are empty strings.
type Enrichment struct {
	RoomID   string `json:"room_id" cbor:"room_id"`
	RoomName string `json:"room_name" cbor:"room_name"`
	EventID  string `json:"event_id" cbor:"event_id"`
	Sender   string `json:"sender" cbor:"sender"`

	// DisplayName falls back to Sender when the member has none.
	DisplayName string `json:"display_name" cbor:"display_name"`
	Membership  string `json:"membership" cbor:"membership"`

	// AvatarURL is an HTTP thumbnail URL, not the mxc:// reference.
	AvatarURL string `json:"avatar_url" cbor:"avatar_url"`

	// Presence is the sender's last synced presence state.
	Presence string `json:"presence" cbor:"presence"`

	MsgType string `json:"msgtype" cbor:"msgtype"`
	Body    string `json:"body" cbor:"body"`

	// RoomPreferences is the sender's blob in this room.
	RoomPreferences prefs.Blob `json:"room_preferences" cbor:"room_preferences"`

	// AccountColor is set only for messages from the local user.
	AccountColor string `json:"account_color" cbor:"account_color"`

	// ObservedAtMS is when the handler ran, in Unix milliseconds.
	ObservedAtMS int64 `json:"observed_at_ms" cbor:"observed_at_ms"`
}

// Color returns the color to display for the sender: the room
// preference, else the account color.
func (e Enrichment) Color() string {
	if color, ok := e.RoomPreferences.Color(); ok {
		return color
	}
	return e.AccountColor
}
