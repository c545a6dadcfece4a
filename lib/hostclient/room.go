// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package hostclient

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/bureau-foundation/userprefs/lib/ref"
	"github.com/bureau-foundation/userprefs/messaging"
)

type stateKey struct {
	eventType ref.EventType
	key       string
}

// RoomState is an immutable set of current state events, one per
// (event type, state key).
type RoomState struct {
	events map[stateKey]messaging.Event
}

// NewRoomState builds a RoomState from state events. Events without a
// state key are ignored; later events replace earlier ones.
func NewRoomState(events ...messaging.Event) *RoomState {
	return (&RoomState{}).With(events...)
}

// With returns a new RoomState with events applied on top of s. s is
// not modified.
func (s *RoomState) With(events ...messaging.Event) *RoomState {
	next := &RoomState{events: make(map[stateKey]messaging.Event, s.Len()+len(events))}
	if s != nil {
		for key, event := range s.events {
			next.events[key] = event
		}
	}
	for _, event := range events {
		if event.StateKey == nil {
			continue
		}
		next.events[stateKey{event.Type, *event.StateKey}] = event
	}
	return next
}

// Len returns the number of state events.
func (s *RoomState) Len() int {
	if s == nil {
		return 0
	}
	return len(s.events)
}

// Get returns the state event (eventType, key).
func (s *RoomState) Get(eventType ref.EventType, key string) (messaging.Event, bool) {
	if s == nil {
		return messaging.Event{}, false
	}
	event, ok := s.events[stateKey{eventType, key}]
	return event, ok
}

// Content returns the raw content of the state event (eventType, key).
func (s *RoomState) Content(eventType ref.EventType, key string) (json.RawMessage, bool) {
	event, ok := s.Get(eventType, key)
	if !ok {
		return nil, false
	}
	return event.Content, true
}

// OfType returns every state event of eventType sorted by state key.
func (s *RoomState) OfType(eventType ref.EventType) []messaging.Event {
	if s == nil {
		return nil
	}
	var events []messaging.Event
	for key, event := range s.events {
		if key.eventType == eventType {
			events = append(events, event)
		}
	}
	sort.Slice(events, func(i, j int) bool { return *events[i].StateKey < *events[j].StateKey })
	return events
}

// Room is a snapshot of one joined room.
type Room struct {
	id    ref.RoomID
	state *RoomState
}

// NewRoom wraps a state snapshot as a Room.
func NewRoom(roomID ref.RoomID, state *RoomState) *Room {
	if state == nil {
		state = NewRoomState()
	}
	return &Room{id: roomID, state: state}
}

// ID returns the room ID.
func (r *Room) ID() ref.RoomID { return r.id }

// State returns the room's state snapshot.
func (r *Room) State() *RoomState { return r.state }

// Name returns the m.room.name, falling back to the canonical alias.
// Empty when the room has neither.
func (r *Room) Name() string {
	event, ok := r.state.Get(ref.EventTypeRoomName, "")
	if ok {
		if name := event.ContentString("name"); name != "" {
			return name
		}
	}
	event, ok = r.state.Get(ref.EventTypeCanonical, "")
	if ok {
		return event.ContentString("alias")
	}
	return ""
}

// IsSpace reports whether the room's m.room.create content has type
// m.space.
func (r *Room) IsSpace() bool {
	event, ok := r.state.Get(ref.EventTypeRoomCreate, "")
	if !ok {
		return false
	}
	return event.ContentString("type") == ref.RoomTypeSpace
}

// Member returns the member directory entry for userID.
func (r *Room) Member(userID ref.UserID) (Member, bool) {
	event, ok := r.state.Get(ref.EventTypeRoomMember, userID.String())
	if !ok {
		return Member{}, false
	}
	return Member{
		UserID:      userID,
		Membership:  event.ContentString("membership"),
		DisplayName: event.ContentString("displayname"),
		AvatarURL:   event.ContentString("avatar_url"),
	}, true
}

// StateEvent builds a state event with content marshaled to JSON. Used
// for write-through after a successful send and by test fixtures.
func StateEvent(eventType ref.EventType, key string, sender ref.UserID, content any) (messaging.Event, error) {
	raw, err := json.Marshal(content)
	if err != nil {
		return messaging.Event{}, fmt.Errorf("hostclient: encoding %s content: %w", eventType, err)
	}
	return messaging.Event{
		Type:     eventType,
		StateKey: &key,
		Sender:   sender.String(),
		Content:  raw,
	}, nil
}
