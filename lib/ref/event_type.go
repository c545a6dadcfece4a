// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ref

// EventType identifies a Matrix state, timeline, or account-data event
// type (e.g., "m.room.message", "dev.mates.user_prefs").
//
// EventType is a named string type, not a struct wrapper: event types
// are opaque identifiers that need no parsing. The type exists for
// compile-time safety, so a state key cannot be passed where an event
// type is expected.
type EventType string

// String returns the event type string.
func (t EventType) String() string { return string(t) }

// Standard Matrix event types used by the preference layer.
const (
	EventTypeRoomCreate  EventType = "m.room.create"
	EventTypeRoomName    EventType = "m.room.name"
	EventTypeRoomMember  EventType = "m.room.member"
	EventTypeRoomMessage EventType = "m.room.message"
	EventTypeCanonical   EventType = "m.room.canonical_alias"
	EventTypePresence    EventType = "m.presence"
)

// RoomTypeSpace is the m.room.create content "type" value that marks a
// room as a space.
const RoomTypeSpace = "m.space"
