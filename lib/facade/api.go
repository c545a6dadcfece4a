// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package facade

import (
	"context"
	"fmt"

	"github.com/bureau-foundation/userprefs/lib/clienthandle"
	"github.com/bureau-foundation/userprefs/lib/hostclient"
	"github.com/bureau-foundation/userprefs/lib/prefs"
	"github.com/bureau-foundation/userprefs/lib/ref"
	"github.com/bureau-foundation/userprefs/lib/scope"
)

// EntryPoint is the name the API is published under.
const EntryPoint = "matesUserData"

// API is the preference API bound to a resolved client.
type API struct {
	client hostclient.Client
	store  *prefs.Store
}

// Await blocks until handle resolves and returns the API. The only
// error is prefs.ErrNotReady when ctx ends first.
func Await(ctx context.Context, handle *clienthandle.Handle, store *prefs.Store) (*API, error) {
	client, err := handle.Wait(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", prefs.ErrNotReady, err)
	}
	return &API{client: client, store: store}, nil
}

// UserID returns the local user.
func (a *API) UserID() ref.UserID { return a.client.UserID() }

// SetInRoom merges partial into userID's preferences in roomID. A zero
// room or empty user is ignored.
func (a *API) SetInRoom(ctx context.Context, roomID ref.RoomID, userID string, partial prefs.Blob) error {
	if roomID.IsZero() || userID == "" {
		return nil
	}
	return a.store.Write(ctx, scope.Room(roomID), userID, partial)
}

// GetFromRoom returns userID's preferences in roomID; empty when
// nothing is stored.
func (a *API) GetFromRoom(ctx context.Context, roomID ref.RoomID, userID string) (prefs.Blob, error) {
	if roomID.IsZero() || userID == "" {
		return prefs.Blob{}, nil
	}
	return a.store.Read(ctx, scope.Room(roomID), userID)
}

// SetColor sets userID's color in roomID, or in the current space when
// roomID is zero. Without a current space it does nothing.
func (a *API) SetColor(ctx context.Context, userID, color string, roomID ref.RoomID) error {
	return a.store.SetColor(ctx, userID, color, roomID)
}

// ShareToRoom is inert: room preferences are already shared state.
func (a *API) ShareToRoom(context.Context, ref.RoomID, string) error {
	return nil
}

// GetSharedFromRoom is GetFromRoom.
func (a *API) GetSharedFromRoom(ctx context.Context, roomID ref.RoomID, userID string) (prefs.Blob, error) {
	return a.GetFromRoom(ctx, roomID, userID)
}

// AccountColor returns the local user's account color.
func (a *API) AccountColor(ctx context.Context) (string, bool) {
	return a.store.AccountColor(ctx)
}

// SetAccountColor stores the local user's account color.
func (a *API) SetAccountColor(ctx context.Context, color string) error {
	return a.store.SetAccountColor(ctx, color)
}

// PublishColor writes the local user's color into the current space.
func (a *API) PublishColor(ctx context.Context, color string) (ref.RoomID, bool, error) {
	target, ok, err := a.store.PublishColor(ctx, color)
	return target.RoomID(), ok, err
}

// Spaces lists the joined spaces.
func (a *API) Spaces(ctx context.Context) ([]scope.SpaceInfo, error) {
	return a.store.Spaces(ctx)
}

// CurrentSpace resolves the current space.
func (a *API) CurrentSpace(ctx context.Context) (scope.SpaceInfo, bool, error) {
	current, ok, err := a.store.CurrentScope(ctx)
	if err != nil || !ok {
		return scope.SpaceInfo{}, false, err
	}
	info := scope.SpaceInfo{RoomID: current.RoomID()}
	if room, found := a.client.Room(current.RoomID()); found {
		info.Name = room.Name()
	}
	return info, true, nil
}
