// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package facade

import (
	"context"

	"github.com/bureau-foundation/userprefs/lib/prefs"
	"github.com/bureau-foundation/userprefs/lib/ref"
	"github.com/bureau-foundation/userprefs/lib/scope"
	"github.com/bureau-foundation/userprefs/lib/service"
)

// Register binds api's operations to server. labels backs the
// use-space and current-space actions; nil disables use-space.
func Register(server *service.SocketServer, api *API, labels *scope.MutableLabel) {
	handle := func(action string, handler service.ActionFunc) {
		server.Handle(action, func(ctx context.Context, raw []byte) (any, error) {
			result, err := handler(ctx, raw)
			return result, encodeError(err)
		})
	}

	handle(ActionSetInRoom, func(ctx context.Context, raw []byte) (any, error) {
		request, err := decodeRequest[setInRoomRequest](raw)
		if err != nil {
			return nil, err
		}
		roomID, err := parseOptionalRoom(request.RoomID)
		if err != nil {
			return nil, err
		}
		return nil, api.SetInRoom(ctx, roomID, request.UserID, prefs.Blob(request.Partial))
	})

	getter := func(get func(context.Context, roomRequestArgs) (prefs.Blob, error)) service.ActionFunc {
		return func(ctx context.Context, raw []byte) (any, error) {
			request, err := decodeRequest[roomRequest](raw)
			if err != nil {
				return nil, err
			}
			roomID, err := parseOptionalRoom(request.RoomID)
			if err != nil {
				return nil, err
			}
			blob, err := get(ctx, roomRequestArgs{roomID: roomID, userID: request.UserID})
			if err != nil {
				return nil, err
			}
			return BlobResponse{Preferences: blob}, nil
		}
	}
	handle(ActionGetFromRoom, getter(func(ctx context.Context, args roomRequestArgs) (prefs.Blob, error) {
		return api.GetFromRoom(ctx, args.roomID, args.userID)
	}))
	handle(ActionGetSharedFromRoom, getter(func(ctx context.Context, args roomRequestArgs) (prefs.Blob, error) {
		return api.GetSharedFromRoom(ctx, args.roomID, args.userID)
	}))

	handle(ActionShareToRoom, func(ctx context.Context, raw []byte) (any, error) {
		request, err := decodeRequest[roomRequest](raw)
		if err != nil {
			return nil, err
		}
		roomID, err := parseOptionalRoom(request.RoomID)
		if err != nil {
			return nil, err
		}
		return nil, api.ShareToRoom(ctx, roomID, request.UserID)
	})

	handle(ActionSetColor, func(ctx context.Context, raw []byte) (any, error) {
		request, err := decodeRequest[setColorRequest](raw)
		if err != nil {
			return nil, err
		}
		roomID, err := parseOptionalRoom(request.RoomID)
		if err != nil {
			return nil, err
		}
		return nil, api.SetColor(ctx, request.UserID, request.Color, roomID)
	})

	handle(ActionAccountColor, func(ctx context.Context, raw []byte) (any, error) {
		color, found := api.AccountColor(ctx)
		return AccountColorResponse{Color: color, Found: found}, nil
	})

	handle(ActionSetAccountColor, func(ctx context.Context, raw []byte) (any, error) {
		request, err := decodeRequest[colorRequest](raw)
		if err != nil {
			return nil, err
		}
		return nil, api.SetAccountColor(ctx, request.Color)
	})

	handle(ActionPublishColor, func(ctx context.Context, raw []byte) (any, error) {
		request, err := decodeRequest[colorRequest](raw)
		if err != nil {
			return nil, err
		}
		roomID, published, err := api.PublishColor(ctx, request.Color)
		if err != nil {
			return nil, err
		}
		response := PublishResponse{Published: published}
		if published {
			response.RoomID = roomID.String()
		}
		return response, nil
	})

	handle(ActionSpaces, func(ctx context.Context, raw []byte) (any, error) {
		spaces, err := api.Spaces(ctx)
		if err != nil {
			return nil, err
		}
		response := SpacesResponse{Spaces: make([]SpaceResponse, 0, len(spaces))}
		for _, space := range spaces {
			response.Spaces = append(response.Spaces, SpaceResponse{RoomID: space.RoomID.String(), Name: space.Name})
		}
		return response, nil
	})

	handle(ActionCurrentSpace, func(ctx context.Context, raw []byte) (any, error) {
		var response CurrentSpaceResponse
		if labels != nil {
			response.Label, _ = labels.Label()
		}
		space, found, err := api.CurrentSpace(ctx)
		if err != nil {
			return nil, err
		}
		if found {
			response.Found = true
			response.RoomID = space.RoomID.String()
			response.Name = space.Name
		}
		return response, nil
	})

	if labels != nil {
		handle(ActionUseSpace, func(ctx context.Context, raw []byte) (any, error) {
			request, err := decodeRequest[labelRequest](raw)
			if err != nil {
				return nil, err
			}
			labels.Set(request.Label)
			return nil, nil
		})
	}
}

type roomRequestArgs struct {
	roomID ref.RoomID
	userID string
}
