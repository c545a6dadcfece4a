// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package scope names where a preference lives and works out which
// space the user is currently in.
//
// A [Scope] is either global (the user's account data), a specific
// room, or the implicit current space. The current space is not known
// to the store; a [Resolver] derives it from the host client at call
// time. [AmbientResolver] reproduces the heuristic of matching a
// free-text label (the name of the space being viewed) against the
// joined spaces. [FixedResolver] is the explicit alternative for
// callers that track the active space themselves.
package scope

import (
	"fmt"

	"github.com/bureau-foundation/userprefs/lib/ref"
)

// Kind discriminates the three scope forms.
type Kind uint8

const (
	// KindGlobal is user-global account data.
	KindGlobal Kind = iota
	// KindRoom is a room's state, keyed by subject.
	KindRoom
	// KindCurrent is the space the user is currently viewing,
	// resolved through a Resolver.
	KindCurrent
)

func (k Kind) String() string {
	switch k {
	case KindGlobal:
		return "global"
	case KindRoom:
		return "room"
	case KindCurrent:
		return "current"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Scope identifies a preference storage location. The zero value is
// Global.
type Scope struct {
	kind   Kind
	roomID ref.RoomID
}

// Global is the user's account data.
func Global() Scope { return Scope{kind: KindGlobal} }

// Room is the state of roomID.
func Room(roomID ref.RoomID) Scope { return Scope{kind: KindRoom, roomID: roomID} }

// Current is the implicit current space.
func Current() Scope { return Scope{kind: KindCurrent} }

// Kind returns the scope form.
func (s Scope) Kind() Kind { return s.kind }

// RoomID returns the room of a Room scope and the zero RoomID
// otherwise.
func (s Scope) RoomID() ref.RoomID { return s.roomID }

// IsGlobal reports whether s is the global scope.
func (s Scope) IsGlobal() bool { return s.kind == KindGlobal }

func (s Scope) String() string {
	if s.kind == KindRoom {
		return "room:" + s.roomID.String()
	}
	return s.kind.String()
}
