// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package hostclienttest provides an in-memory hostclient.Client for
// tests of components that consume the host client.
//
// The fake mirrors what SyncClient exposes: room snapshots, account
// data, presence, and a timeline fan-out. Writes are recorded and
// applied to the mirror on success; an injected error rejects them
// without touching the mirror.
package hostclienttest

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/bureau-foundation/userprefs/lib/hostclient"
	"github.com/bureau-foundation/userprefs/lib/ref"
	"github.com/bureau-foundation/userprefs/messaging"
)

// Write records one call to SetAccountData or SendStateEvent.
type Write struct {
	// RoomID is zero for account data writes.
	RoomID    ref.RoomID
	EventType ref.EventType
	StateKey  string
	Content   json.RawMessage
}

// Client is an in-memory hostclient.Client. The zero value is not
// usable; construct with New.
type Client struct {
	userID ref.UserID

	mu          sync.Mutex
	rooms       map[ref.RoomID]*hostclient.Room
	accountData map[ref.EventType]json.RawMessage
	presence    map[ref.UserID]hostclient.Presence
	writes      []Write
	writeErr    error
	thumbErr    error
	thumbGate   <-chan struct{}
	subscribers map[int]chan hostclient.TimelineEvent
	nextID      int
}

var _ hostclient.Client = (*Client)(nil)

// New creates an empty client for userID.
func New(userID ref.UserID) *Client {
	return &Client{
		userID:      userID,
		rooms:       make(map[ref.RoomID]*hostclient.Room),
		accountData: make(map[ref.EventType]json.RawMessage),
		presence:    make(map[ref.UserID]hostclient.Presence),
		subscribers: make(map[int]chan hostclient.TimelineEvent),
	}
}

// AddRoom adds a joined room with an m.room.name and, when space is
// set, an m.room.create marking it as a space.
func (c *Client) AddRoom(roomID ref.RoomID, name string, space bool) {
	createContent := map[string]any{"room_version": "11"}
	if space {
		createContent["type"] = ref.RoomTypeSpace
	}
	c.SetState(roomID, ref.EventTypeRoomCreate, "", createContent)
	if name != "" {
		c.SetState(roomID, ref.EventTypeRoomName, "", map[string]any{"name": name})
	}
}

// SetState sets a state event in a room, joining the room if needed.
// content is marshaled to JSON; a json.RawMessage is stored verbatim,
// which lets tests plant malformed content.
func (c *Client) SetState(roomID ref.RoomID, eventType ref.EventType, stateKey string, content any) {
	event := mustStateEvent(eventType, stateKey, c.userID, content)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.applyStateLocked(roomID, event)
}

// SetMember sets an m.room.member event for userID.
func (c *Client) SetMember(roomID ref.RoomID, userID ref.UserID, membership, displayName, avatarURL string) {
	content := map[string]any{"membership": membership}
	if displayName != "" {
		content["displayname"] = displayName
	}
	if avatarURL != "" {
		content["avatar_url"] = avatarURL
	}
	c.SetState(roomID, ref.EventTypeRoomMember, userID.String(), content)
}

// RemoveRoom drops a room from the mirror, as when the user leaves.
func (c *Client) RemoveRoom(roomID ref.RoomID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.rooms, roomID)
}

// SetAccountDataContent sets account data directly, without recording
// a write.
func (c *Client) SetAccountDataContent(eventType ref.EventType, content any) {
	raw := mustMarshal(content)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accountData[eventType] = raw
}

// SetPresence sets the presence reported for userID.
func (c *Client) SetPresence(userID ref.UserID, presence hostclient.Presence) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.presence[userID] = presence
}

// FailWrites makes every subsequent write return err. Nil restores
// normal behaviour.
func (c *Client) FailWrites(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writeErr = err
}

// FailThumbnails makes ThumbnailURL return err.
func (c *Client) FailThumbnails(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.thumbErr = err
}

// HoldThumbnails makes ThumbnailURL block until gate is closed.
func (c *Client) HoldThumbnails(gate <-chan struct{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.thumbGate = gate
}

// Writes returns a copy of the successful writes so far.
func (c *Client) Writes() []Write {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Write(nil), c.writes...)
}

// Subscribers returns the number of live timeline subscriptions.
func (c *Client) Subscribers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subscribers)
}

// Deliver sends an event to every subscriber, blocking until each has
// accepted it or ctx ends. State events are applied to the room first,
// as SyncClient does for timeline state.
func (c *Client) Deliver(ctx context.Context, roomID ref.RoomID, event messaging.Event, direction hostclient.Direction) error {
	event.RoomID = roomID.String()

	c.mu.Lock()
	if event.StateKey != nil && direction == hostclient.Forward {
		c.applyStateLocked(roomID, event)
	}
	room := c.rooms[roomID]
	channels := make([]chan hostclient.TimelineEvent, 0, len(c.subscribers))
	for _, channel := range c.subscribers {
		channels = append(channels, channel)
	}
	c.mu.Unlock()

	delivery := hostclient.TimelineEvent{Room: room, RoomID: roomID, Event: event, Direction: direction}
	for _, channel := range channels {
		select {
		case channel <- delivery:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (c *Client) applyStateLocked(roomID ref.RoomID, event messaging.Event) {
	var state *hostclient.RoomState
	if room, ok := c.rooms[roomID]; ok {
		state = room.State()
	}
	c.rooms[roomID] = hostclient.NewRoom(roomID, state.With(event))
}

// UserID returns the local user.
func (c *Client) UserID() ref.UserID { return c.userID }

// Room returns the snapshot of a joined room.
func (c *Client) Room(roomID ref.RoomID) (*hostclient.Room, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	room, ok := c.rooms[roomID]
	return room, ok
}

// Rooms returns every room sorted by room ID.
func (c *Client) Rooms() []*hostclient.Room {
	c.mu.Lock()
	rooms := make([]*hostclient.Room, 0, len(c.rooms))
	for _, room := range c.rooms {
		rooms = append(rooms, room)
	}
	c.mu.Unlock()
	sort.Slice(rooms, func(i, j int) bool { return rooms[i].ID().String() < rooms[j].ID().String() })
	return rooms
}

// AccountData returns stored account data.
func (c *Client) AccountData(eventType ref.EventType) (json.RawMessage, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	content, ok := c.accountData[eventType]
	return content, ok
}

// SetAccountData records the write and updates the mirror.
func (c *Client) SetAccountData(ctx context.Context, eventType ref.EventType, content any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	raw, err := json.Marshal(content)
	if err != nil {
		return fmt.Errorf("hostclienttest: encoding account data: %w", err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.writeErr != nil {
		return c.writeErr
	}
	c.writes = append(c.writes, Write{EventType: eventType, Content: raw})
	c.accountData[eventType] = raw
	return nil
}

// SendStateEvent records the write and applies it to the room.
func (c *Client) SendStateEvent(ctx context.Context, roomID ref.RoomID, eventType ref.EventType, stateKey string, content any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	event, err := hostclient.StateEvent(eventType, stateKey, c.userID, content)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.writeErr != nil {
		return c.writeErr
	}
	c.writes = append(c.writes, Write{RoomID: roomID, EventType: eventType, StateKey: stateKey, Content: event.Content})
	c.applyStateLocked(roomID, event)
	return nil
}

// SubscribeTimeline registers a subscriber fed by Deliver.
func (c *Client) SubscribeTimeline(buffer int) (<-chan hostclient.TimelineEvent, func()) {
	channel := make(chan hostclient.TimelineEvent, max(buffer, 0))
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.subscribers[id] = channel
	c.mu.Unlock()

	var once sync.Once
	return channel, func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subscribers, id)
			c.mu.Unlock()
			close(channel)
		})
	}
}

// Presence returns the presence set with SetPresence.
func (c *Client) Presence(userID ref.UserID) (hostclient.Presence, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	presence, ok := c.presence[userID]
	return presence, ok
}

// ThumbnailURL returns a deterministic URL under https://media.test.
func (c *Client) ThumbnailURL(contentURI ref.ContentURI, width, height int, method string) (string, error) {
	c.mu.Lock()
	err, gate := c.thumbErr, c.thumbGate
	c.mu.Unlock()
	if gate != nil {
		<-gate
	}
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("https://media.test/%s/%s?width=%d&height=%d&method=%s",
		contentURI.Server(), contentURI.MediaID(), width, height, method), nil
}

// MessageEvent builds an m.room.message event for Deliver.
func MessageEvent(eventID string, sender ref.UserID, body string) messaging.Event {
	return messaging.Event{
		EventID: ref.MustParseEventID(eventID),
		Type:    ref.EventTypeRoomMessage,
		Sender:  sender.String(),
		Content: mustMarshal(map[string]any{"msgtype": "m.text", "body": body}),
	}
}

func mustStateEvent(eventType ref.EventType, stateKey string, sender ref.UserID, content any) messaging.Event {
	if raw, ok := content.(json.RawMessage); ok {
		return messaging.Event{Type: eventType, StateKey: &stateKey, Sender: sender.String(), Content: raw}
	}
	event, err := hostclient.StateEvent(eventType, stateKey, sender, content)
	if err != nil {
		panic(err)
	}
	return event
}

func mustMarshal(content any) json.RawMessage {
	if raw, ok := content.(json.RawMessage); ok {
		return raw
	}
	raw, err := json.Marshal(content)
	if err != nil {
		panic(fmt.Sprintf("hostclienttest: marshaling content: %v", err))
	}
	return raw
}
