// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"context"
	"encoding/json"

	"github.com/bureau-foundation/userprefs/lib/ref"
)

// Session is the authenticated Matrix surface the host client mirror
// uses. *DirectSession is the production implementation.
type Session interface {
	// UserID returns the local user.
	UserID() ref.UserID

	// Close releases the access token. Idempotent.
	Close() error

	// WhoAmI validates the token and returns the user it belongs to.
	WhoAmI(ctx context.Context) (ref.UserID, error)

	// Sync performs one /sync request.
	Sync(ctx context.Context, options SyncOptions) (*SyncResponse, error)

	// GetStateEvent fetches the content of one state event. A missing
	// event is a *MatrixError with code M_NOT_FOUND.
	GetStateEvent(ctx context.Context, roomID ref.RoomID, eventType ref.EventType, stateKey string) (json.RawMessage, error)

	// GetRoomState fetches every current state event in a room.
	GetRoomState(ctx context.Context, roomID ref.RoomID) ([]Event, error)

	// SendStateEvent replaces a state event. Returns the event ID.
	SendStateEvent(ctx context.Context, roomID ref.RoomID, eventType ref.EventType, stateKey string, content any) (ref.EventID, error)

	// GetRoomMembers returns the member list of a room.
	GetRoomMembers(ctx context.Context, roomID ref.RoomID) ([]RoomMember, error)

	// RoomMessages paginates a room's timeline.
	RoomMessages(ctx context.Context, roomID ref.RoomID, options RoomMessagesOptions) (*RoomMessagesResponse, error)

	// GetAccountData fetches the local user's global account data of
	// the given type. Missing data is a *MatrixError with M_NOT_FOUND.
	GetAccountData(ctx context.Context, eventType ref.EventType) (json.RawMessage, error)

	// SetAccountData replaces the local user's global account data of
	// the given type.
	SetAccountData(ctx context.Context, eventType ref.EventType, content any) error

	// ThumbnailURL builds a thumbnail URL for an mxc:// URI.
	ThumbnailURL(contentURI ref.ContentURI, width, height int, method string) (string, error)
}

var _ Session = (*DirectSession)(nil)
