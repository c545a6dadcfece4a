// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package facade

import (
	"fmt"

	"github.com/bureau-foundation/userprefs/lib/codec"
	"github.com/bureau-foundation/userprefs/lib/ref"
)

// Socket action names.
const (
	ActionSetInRoom         = "set-in-room"
	ActionGetFromRoom       = "get-from-room"
	ActionSetColor          = "set-color"
	ActionShareToRoom       = "share-to-room"
	ActionGetSharedFromRoom = "get-shared-from-room"
	ActionAccountColor      = "account-color"
	ActionSetAccountColor   = "set-account-color"
	ActionPublishColor      = "publish-color"
	ActionSpaces            = "spaces"
	ActionUseSpace          = "use-space"
	ActionCurrentSpace      = "current-space"
)

// Room IDs travel as plain strings so that an omitted room is the
// empty string rather than a decode error.

type roomRequest struct {
	RoomID string `cbor:"room_id"`
	UserID string `cbor:"user_id"`
}

type setInRoomRequest struct {
	RoomID  string         `cbor:"room_id"`
	UserID  string         `cbor:"user_id"`
	Partial map[string]any `cbor:"partial"`
}

type setColorRequest struct {
	UserID string `cbor:"user_id"`
	Color  string `cbor:"color"`
	RoomID string `cbor:"room_id"`
}

type colorRequest struct {
	Color string `cbor:"color"`
}

type labelRequest struct {
	Label string `cbor:"label"`
}

// BlobResponse carries a preference blob.
type BlobResponse struct {
	Preferences map[string]any `cbor:"preferences"`
}

// AccountColorResponse is the account-color result.
type AccountColorResponse struct {
	Color string `cbor:"color" json:"color"`
	Found bool   `cbor:"found" json:"found"`
}

// PublishResponse is the publish-color result.
type PublishResponse struct {
	RoomID    string `cbor:"room_id"`
	Published bool   `cbor:"published"`
}

// SpaceResponse describes one space.
type SpaceResponse struct {
	RoomID string `cbor:"room_id" json:"room_id"`
	Name   string `cbor:"name" json:"name"`
}

// SpacesResponse lists the joined spaces.
type SpacesResponse struct {
	Spaces []SpaceResponse `cbor:"spaces"`
}

// CurrentSpaceResponse is the current-space result.
type CurrentSpaceResponse struct {
	Label  string `cbor:"label" json:"label"`
	RoomID string `cbor:"room_id" json:"room_id,omitempty"`
	Name   string `cbor:"name" json:"name,omitempty"`
	Found  bool   `cbor:"found" json:"found"`
}

func decodeRequest[T any](raw []byte) (T, error) {
	var request T
	if err := codec.Unmarshal(raw, &request); err != nil {
		return request, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	return request, nil
}

// parseOptionalRoom parses a room ID; "" yields the zero RoomID.
func parseOptionalRoom(raw string) (ref.RoomID, error) {
	if raw == "" {
		return ref.RoomID{}, nil
	}
	roomID, err := ref.ParseRoomID(raw)
	if err != nil {
		return ref.RoomID{}, fmt.Errorf("%w: room_id: %w", ErrInvalidRequest, err)
	}
	return roomID, nil
}
