// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package scope

import (
	"strings"
	"sync"

	"github.com/bureau-foundation/userprefs/lib/hostclient"
	"github.com/bureau-foundation/userprefs/lib/ref"
)

// DefaultHomeLabel is the label shown when no space is selected.
const DefaultHomeLabel = "home"

// Resolver determines the current space.
type Resolver interface {
	// CurrentRoomScope returns a Room scope for the current space, or
	// false when there is none. It never fails; any internal problem
	// means "none".
	CurrentRoomScope(client hostclient.Client) (Scope, bool)
}

// LabelSource supplies the ambient label: the display name of the
// space the user is looking at.
type LabelSource interface {
	Label() (string, error)
}

// StaticLabel is a constant label.
type StaticLabel string

// Label returns the label.
func (s StaticLabel) Label() (string, error) { return string(s), nil }

// LabelFunc adapts a function to LabelSource.
type LabelFunc func() (string, error)

// Label calls f.
func (f LabelFunc) Label() (string, error) { return f() }

// MutableLabel is a label that can be changed while resolvers read it.
// The zero value is an empty label.
type MutableLabel struct {
	mu    sync.RWMutex
	label string
}

// NewMutableLabel returns a MutableLabel holding initial.
func NewMutableLabel(initial string) *MutableLabel {
	return &MutableLabel{label: initial}
}

// Set replaces the label.
func (m *MutableLabel) Set(label string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.label = label
}

// Label returns the current label.
func (m *MutableLabel) Label() (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.label, nil
}

// AmbientResolver matches the ambient label against the names of the
// joined spaces.
type AmbientResolver struct {
	// Labels supplies the label. A nil source resolves to none.
	Labels LabelSource

	// HomeLabel is compared case-insensitively; a label equal to it
	// means no space is selected. Default DefaultHomeLabel.
	HomeLabel string
}

// CurrentRoomScope returns the first joined room, in room ID order,
// whose trimmed name equals the trimmed label and which is a space.
// An unreadable, empty, or home label resolves to none. Display names
// are not unique; a duplicate name picks the lowest room ID.
func (r AmbientResolver) CurrentRoomScope(client hostclient.Client) (Scope, bool) {
	if r.Labels == nil || client == nil {
		return Scope{}, false
	}
	label, err := r.Labels.Label()
	if err != nil {
		return Scope{}, false
	}
	label = strings.TrimSpace(label)
	home := r.HomeLabel
	if home == "" {
		home = DefaultHomeLabel
	}
	if label == "" || strings.EqualFold(label, strings.TrimSpace(home)) {
		return Scope{}, false
	}

	for _, room := range client.Rooms() {
		if strings.TrimSpace(room.Name()) == label && room.IsSpace() {
			return Room(room.ID()), true
		}
	}
	return Scope{}, false
}

// FixedResolver always resolves to RoomID. A zero RoomID resolves to
// none.
type FixedResolver struct {
	RoomID ref.RoomID
}

// CurrentRoomScope returns RoomID without consulting the client.
func (r FixedResolver) CurrentRoomScope(hostclient.Client) (Scope, bool) {
	if r.RoomID.IsZero() {
		return Scope{}, false
	}
	return Room(r.RoomID), true
}

// NoneResolver never resolves a current space.
type NoneResolver struct{}

// CurrentRoomScope always returns false.
func (NoneResolver) CurrentRoomScope(hostclient.Client) (Scope, bool) {
	return Scope{}, false
}

// SpaceInfo describes one joined space.
type SpaceInfo struct {
	RoomID ref.RoomID `json:"room_id" cbor:"room_id"`
	Name   string     `json:"name" cbor:"name"`
}

// Spaces lists the joined spaces in room ID order.
func Spaces(client hostclient.Client) []SpaceInfo {
	var spaces []SpaceInfo
	for _, room := range client.Rooms() {
		if room.IsSpace() {
			spaces = append(spaces, SpaceInfo{RoomID: room.ID(), Name: room.Name()})
		}
	}
	return spaces
}
