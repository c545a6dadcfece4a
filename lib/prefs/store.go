// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package prefs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bureau-foundation/userprefs/lib/clienthandle"
	"github.com/bureau-foundation/userprefs/lib/hostclient"
	"github.com/bureau-foundation/userprefs/lib/ref"
	"github.com/bureau-foundation/userprefs/lib/scope"
)

// DefaultEventType is the state event and account data type holding
// preference blobs.
const DefaultEventType ref.EventType = "dev.mates.user_prefs"

// StoreConfig configures a Store.
type StoreConfig struct {
	// Handle resolves to the host client. Required.
	Handle *clienthandle.Handle

	// Scopes resolves scope.Current(). Default scope.NoneResolver.
	Scopes scope.Resolver

	// EventType defaults to DefaultEventType.
	EventType ref.EventType

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Store reads and writes preference blobs through the host client.
// It holds no state of its own: every call reads the client's current
// mirror.
type Store struct {
	handle    *clienthandle.Handle
	scopes    scope.Resolver
	eventType ref.EventType
	logger    *slog.Logger
}

// NewStore creates a Store.
func NewStore(config StoreConfig) (*Store, error) {
	if config.Handle == nil {
		return nil, errors.New("prefs: Handle is required")
	}
	if config.Scopes == nil {
		config.Scopes = scope.NoneResolver{}
	}
	if config.EventType == "" {
		config.EventType = DefaultEventType
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &Store{
		handle:    config.Handle,
		scopes:    config.Scopes,
		eventType: config.EventType,
		logger:    config.Logger,
	}, nil
}

// EventType returns the preference event type.
func (s *Store) EventType() ref.EventType { return s.eventType }

func (s *Store) client(ctx context.Context) (hostclient.Client, error) {
	client, err := s.handle.Wait(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotReady, err)
	}
	return client, nil
}

// resolve turns scope.Current() into a concrete scope. The boolean is
// false when the current space cannot be determined.
func (s *Store) resolve(client hostclient.Client, target scope.Scope) (scope.Scope, bool) {
	if target.Kind() != scope.KindCurrent {
		return target, true
	}
	return s.scopes.CurrentRoomScope(client)
}

// CurrentScope resolves the current space.
func (s *Store) CurrentScope(ctx context.Context) (scope.Scope, bool, error) {
	client, err := s.client(ctx)
	if err != nil {
		return scope.Scope{}, false, err
	}
	resolved, ok := s.scopes.CurrentRoomScope(client)
	return resolved, ok, nil
}

// Spaces lists the joined spaces.
func (s *Store) Spaces(ctx context.Context) ([]scope.SpaceInfo, error) {
	client, err := s.client(ctx)
	if err != nil {
		return nil, err
	}
	return scope.Spaces(client), nil
}

// Read returns the blob stored for subject in target. Global reads the
// local user's account data and ignores subject.
func (s *Store) Read(ctx context.Context, target scope.Scope, subject string) (Blob, error) {
	client, err := s.client(ctx)
	if err != nil {
		return Blob{}, err
	}
	resolved, ok := s.resolve(client, target)
	if !ok {
		return Blob{}, nil
	}
	return s.read(client, resolved, subject), nil
}

func (s *Store) read(client hostclient.Client, target scope.Scope, subject string) Blob {
	var raw json.RawMessage
	if target.IsGlobal() {
		content, ok := client.AccountData(s.eventType)
		if !ok {
			return Blob{}
		}
		raw = content
	} else {
		if subject == "" {
			return Blob{}
		}
		room, ok := client.Room(target.RoomID())
		if !ok {
			return Blob{}
		}
		content, ok := room.State().Content(s.eventType, subject)
		if !ok {
			return Blob{}
		}
		raw = content
	}

	blob, err := decodeBlob(raw)
	if err != nil {
		s.logger.Debug("ignoring stored preferences",
			"scope", target.String(),
			"subject", subject,
			"error", err,
		)
	}
	return blob
}

// Write merges partial into the stored blob and sends the result as a
// single write. Nothing is sent unless every precondition holds.
func (s *Store) Write(ctx context.Context, target scope.Scope, subject string, partial Blob) error {
	client, err := s.client(ctx)
	if err != nil {
		return err
	}
	resolved, ok := s.resolve(client, target)
	if !ok {
		return ErrScopeUnavailable
	}
	if !resolved.IsGlobal() {
		if _, err := ref.ParseUserID(subject); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidSubject, err)
		}
	}

	merged := s.read(client, resolved, subject).Merge(partial)

	if resolved.IsGlobal() {
		err = client.SetAccountData(ctx, s.eventType, merged)
	} else {
		err = client.SendStateEvent(ctx, resolved.RoomID(), s.eventType, subject, merged)
	}
	if err != nil {
		return &BackendRejectedError{Scope: resolved, Subject: subject, Err: err}
	}

	s.logger.Debug("preferences written",
		"scope", resolved.String(),
		"subject", subject,
		"keys", len(merged),
	)
	return nil
}

// SetColor writes {color} for subject in roomID. A zero roomID targets
// the current space; when there is none, SetColor does nothing and
// returns nil.
func (s *Store) SetColor(ctx context.Context, subject, color string, roomID ref.RoomID) error {
	target := scope.Room(roomID)
	if roomID.IsZero() {
		client, err := s.client(ctx)
		if err != nil {
			return err
		}
		current, ok := s.scopes.CurrentRoomScope(client)
		if !ok {
			s.logger.Debug("no current space, color not set", "subject", subject)
			return nil
		}
		target = current
	}
	return s.Write(ctx, target, subject, Blob{KeyColor: color})
}

// AccountColor returns the color in the local user's account data.
// False when none is stored or the client is not ready.
func (s *Store) AccountColor(ctx context.Context) (string, bool) {
	blob, err := s.Read(ctx, scope.Global(), "")
	if err != nil {
		return "", false
	}
	return blob.Color()
}

// SetAccountColor merges {color} into the local user's account data.
func (s *Store) SetAccountColor(ctx context.Context, color string) error {
	client, err := s.client(ctx)
	if err != nil {
		return err
	}
	return s.Write(ctx, scope.Global(), client.UserID().String(), Blob{KeyColor: color})
}

// PublishColor writes the local user's color into the current space.
// It returns the space written to, or false with a nil error when no
// space is current.
func (s *Store) PublishColor(ctx context.Context, color string) (scope.Scope, bool, error) {
	client, err := s.client(ctx)
	if err != nil {
		return scope.Scope{}, false, err
	}
	current, ok := s.scopes.CurrentRoomScope(client)
	if !ok {
		return scope.Scope{}, false, nil
	}
	if err := s.Write(ctx, current, client.UserID().String(), Blob{KeyColor: color}); err != nil {
		return current, false, err
	}
	return current, true, nil
}
