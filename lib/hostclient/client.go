// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package hostclient

import (
	"context"
	"encoding/json"

	"github.com/bureau-foundation/userprefs/lib/ref"
	"github.com/bureau-foundation/userprefs/messaging"
)

// Client is a running Matrix client with a synchronized local view.
type Client interface {
	// UserID returns the local user.
	UserID() ref.UserID

	// Room returns the current snapshot of a joined room.
	Room(roomID ref.RoomID) (*Room, bool)

	// Rooms returns snapshots of every joined room, sorted by room ID.
	Rooms() []*Room

	// AccountData returns the local user's global account data of the
	// given type as last synced.
	AccountData(eventType ref.EventType) (json.RawMessage, bool)

	// SetAccountData replaces the local user's global account data.
	SetAccountData(ctx context.Context, eventType ref.EventType, content any) error

	// SendStateEvent replaces a state event in a room.
	SendStateEvent(ctx context.Context, roomID ref.RoomID, eventType ref.EventType, stateKey string, content any) error

	// SubscribeTimeline registers for timeline events. The returned
	// function unsubscribes and closes the channel. buffer sizes the
	// channel; events that do not fit are dropped.
	SubscribeTimeline(buffer int) (<-chan TimelineEvent, func())

	// Presence returns the last known presence of a user.
	Presence(userID ref.UserID) (Presence, bool)

	// ThumbnailURL converts an mxc:// URI into a thumbnail HTTP URL.
	ThumbnailURL(contentURI ref.ContentURI, width, height int, method string) (string, error)
}

// Direction says whether a timeline event was appended live or
// fetched by paginating backwards.
type Direction uint8

const (
	// Forward events arrive through /sync as they happen.
	Forward Direction = iota
	// Backward events come from /messages backfill of history.
	Backward
)

func (d Direction) String() string {
	if d == Backward {
		return "backward"
	}
	return "forward"
}

// TimelineEvent is one event delivered to timeline subscribers.
type TimelineEvent struct {
	// Room is the room's snapshot after the batch containing the
	// event was applied. Nil if the room is not (or no longer) joined.
	Room      *Room
	RoomID    ref.RoomID
	Event     messaging.Event
	Direction Direction
}

// Presence is one user's last known presence.
type Presence struct {
	// State is "online", "unavailable", or "offline".
	State           string
	LastActiveAgo   int64
	CurrentlyActive bool
	StatusMsg       string
}

// Member is one entry of a room's member directory, derived from the
// user's m.room.member state event.
type Member struct {
	UserID      ref.UserID
	Membership  string
	DisplayName string
	// AvatarURL is the raw avatar_url (normally mxc://).
	AvatarURL string
}

// Name returns the display name, or the user ID when none is set.
func (m Member) Name() string {
	if m.DisplayName != "" {
		return m.DisplayName
	}
	return m.UserID.String()
}
