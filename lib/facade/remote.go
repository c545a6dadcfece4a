// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package facade

import (
	"context"

	"github.com/bureau-foundation/userprefs/lib/prefs"
	"github.com/bureau-foundation/userprefs/lib/service"
)

// Remote calls a daemon's facade over its socket. Room and user IDs
// are passed as strings and validated by the daemon.
type Remote struct {
	client *service.ServiceClient
}

// NewRemote returns a Remote using client.
func NewRemote(client *service.ServiceClient) *Remote {
	return &Remote{client: client}
}

// SetInRoom merges partial into userID's preferences in roomID.
func (r *Remote) SetInRoom(ctx context.Context, roomID, userID string, partial prefs.Blob) error {
	return r.call(ctx, ActionSetInRoom, map[string]any{
		"room_id": roomID,
		"user_id": userID,
		"partial": map[string]any(partial),
	}, nil)
}

// GetFromRoom reads userID's preferences in roomID.
func (r *Remote) GetFromRoom(ctx context.Context, roomID, userID string) (prefs.Blob, error) {
	return r.getBlob(ctx, ActionGetFromRoom, roomID, userID)
}

// GetSharedFromRoom is GetFromRoom.
func (r *Remote) GetSharedFromRoom(ctx context.Context, roomID, userID string) (prefs.Blob, error) {
	return r.getBlob(ctx, ActionGetSharedFromRoom, roomID, userID)
}

// call is ServiceClient.Call with coded errors mapped back onto the
// prefs and facade sentinels.
func (r *Remote) call(ctx context.Context, action string, fields map[string]any, result any) error {
	return decodeError(r.client.Call(ctx, action, fields, result))
}

func (r *Remote) getBlob(ctx context.Context, action, roomID, userID string) (prefs.Blob, error) {
	var response BlobResponse
	if err := r.call(ctx, action, map[string]any{"room_id": roomID, "user_id": userID}, &response); err != nil {
		return nil, err
	}
	if response.Preferences == nil {
		return prefs.Blob{}, nil
	}
	return prefs.Blob(response.Preferences), nil
}

// ShareToRoom is inert on the daemon as well; it is forwarded so the
// daemon can still reject invalid arguments.
func (r *Remote) ShareToRoom(ctx context.Context, roomID, userID string) error {
	return r.call(ctx, ActionShareToRoom, map[string]any{"room_id": roomID, "user_id": userID}, nil)
}

// SetColor sets userID's color in roomID, or in the current space when
// roomID is empty.
func (r *Remote) SetColor(ctx context.Context, userID, color, roomID string) error {
	return r.call(ctx, ActionSetColor, map[string]any{
		"user_id": userID,
		"color":   color,
		"room_id": roomID,
	}, nil)
}

// AccountColor returns the local user's account color.
func (r *Remote) AccountColor(ctx context.Context) (string, bool, error) {
	var response AccountColorResponse
	if err := r.call(ctx, ActionAccountColor, nil, &response); err != nil {
		return "", false, err
	}
	return response.Color, response.Found, nil
}

// SetAccountColor stores the local user's account color.
func (r *Remote) SetAccountColor(ctx context.Context, color string) error {
	return r.call(ctx, ActionSetAccountColor, map[string]any{"color": color}, nil)
}

// PublishColor writes the local user's color into the current space.
// It returns the space's room ID, or false when none is current.
func (r *Remote) PublishColor(ctx context.Context, color string) (string, bool, error) {
	var response PublishResponse
	if err := r.call(ctx, ActionPublishColor, map[string]any{"color": color}, &response); err != nil {
		return "", false, err
	}
	return response.RoomID, response.Published, nil
}

// Spaces lists the joined spaces.
func (r *Remote) Spaces(ctx context.Context) ([]SpaceResponse, error) {
	var response SpacesResponse
	if err := r.call(ctx, ActionSpaces, nil, &response); err != nil {
		return nil, err
	}
	return response.Spaces, nil
}

// UseSpace sets the daemon's ambient label.
func (r *Remote) UseSpace(ctx context.Context, label string) error {
	return r.call(ctx, ActionUseSpace, map[string]any{"label": label}, nil)
}

// CurrentSpace reports the ambient label and the space it resolves to.
func (r *Remote) CurrentSpace(ctx context.Context) (CurrentSpaceResponse, error) {
	var response CurrentSpaceResponse
	err := r.call(ctx, ActionCurrentSpace, nil, &response)
	return response, err
}
