// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package hostclient

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bureau-foundation/userprefs/lib/clock"
	"github.com/bureau-foundation/userprefs/lib/ref"
	"github.com/bureau-foundation/userprefs/messaging"
)

// SyncConfig configures a SyncClient.
type SyncConfig struct {
	// Session is the authenticated session. Its UserID must be known.
	Session messaging.Session

	// Timeout is the long-poll hold requested for incremental syncs.
	// Default 30s.
	Timeout time.Duration

	// BackfillLimit is how many older messages per room are fetched
	// after the initial sync and delivered as Backward events. Zero
	// disables backfill.
	BackfillLimit int

	// Filter is passed to /sync verbatim (filter ID or inline JSON).
	Filter string

	// Clock drives retry backoff. Default clock.Real().
	Clock clock.Clock

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

const (
	// initialRetryDelay and maxRetryDelay bound the backoff between
	// failed /sync attempts.
	initialRetryDelay = time.Second
	maxRetryDelay     = 30 * time.Second
)

// SyncClient is a Client backed by a /sync loop against a homeserver.
type SyncClient struct {
	session       messaging.Session
	timeout       time.Duration
	backfillLimit int
	filter        string
	clock         clock.Clock
	logger        *slog.Logger

	mu          sync.RWMutex
	rooms       map[ref.RoomID]*Room
	prevBatch   map[ref.RoomID]string
	accountData map[ref.EventType]json.RawMessage
	presence    map[string]Presence
	nextBatch   string

	subscribersMu sync.Mutex
	subscribers   map[int]chan TimelineEvent
	nextID        int

	ready     chan struct{}
	readyFlag atomic.Bool
}

var _ Client = (*SyncClient)(nil)

// NewSyncClient creates a SyncClient. Call Run to start syncing.
func NewSyncClient(config SyncConfig) (*SyncClient, error) {
	if config.Session == nil {
		return nil, fmt.Errorf("hostclient: Session is required")
	}
	if config.Session.UserID().IsZero() {
		return nil, fmt.Errorf("hostclient: session has no user ID")
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	if config.Clock == nil {
		config.Clock = clock.Real()
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	return &SyncClient{
		session:       config.Session,
		timeout:       config.Timeout,
		backfillLimit: config.BackfillLimit,
		filter:        config.Filter,
		clock:         config.Clock,
		logger:        config.Logger,
		rooms:         make(map[ref.RoomID]*Room),
		prevBatch:     make(map[ref.RoomID]string),
		accountData:   make(map[ref.EventType]json.RawMessage),
		presence:      make(map[string]Presence),
		subscribers:   make(map[int]chan TimelineEvent),
		ready:         make(chan struct{}),
	}, nil
}

// Accessor returns the client once the initial sync has been applied
// and nil before. It is the function the client handle resolver polls.
func (c *SyncClient) Accessor() Client {
	if !c.readyFlag.Load() {
		return nil
	}
	return c
}

// Ready is closed when the initial sync has been applied.
func (c *SyncClient) Ready() <-chan struct{} {
	return c.ready
}

// Run performs the initial sync, optional backfill, and then
// long-polls until ctx is cancelled or the access token is rejected.
// Transient failures are retried with exponential backoff.
func (c *SyncClient) Run(ctx context.Context) error {
	response, err := c.syncWithRetry(ctx, messaging.SyncOptions{
		SetTimeout: true,
		Timeout:    0,
		Filter:     c.filter,
	})
	if err != nil {
		return err
	}
	c.apply(response, false)
	c.readyFlag.Store(true)
	close(c.ready)

	c.logger.Info("initial sync complete",
		"user_id", c.session.UserID(),
		"rooms", len(c.Rooms()),
	)

	if c.backfillLimit > 0 {
		c.backfill(ctx)
	}

	for {
		c.mu.RLock()
		since := c.nextBatch
		c.mu.RUnlock()

		response, err := c.syncWithRetry(ctx, messaging.SyncOptions{
			Since:      since,
			SetTimeout: true,
			Timeout:    int(c.timeout / time.Millisecond),
			Filter:     c.filter,
		})
		if err != nil {
			return err
		}
		c.apply(response, true)
	}
}

// syncWithRetry retries transient failures. It returns ctx.Err() on
// cancellation and the error itself when the token is rejected.
func (c *SyncClient) syncWithRetry(ctx context.Context, options messaging.SyncOptions) (*messaging.SyncResponse, error) {
	delay := initialRetryDelay
	for attempt := 1; ; attempt++ {
		response, err := c.session.Sync(ctx, options)
		if err == nil {
			return response, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if messaging.IsAuthError(err) {
			return nil, fmt.Errorf("hostclient: access token rejected: %w", err)
		}

		if closer, ok := c.session.(interface{ CloseIdleConnections() }); ok {
			closer.CloseIdleConnections()
		}
		c.logger.Warn("sync failed, retrying",
			"attempt", attempt,
			"delay", delay,
			"error", err,
		)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-c.clock.After(delay):
		}
		delay = min(delay*2, maxRetryDelay)
	}
}

// apply merges a sync response into the mirror and, when deliver is
// set, hands timeline events to subscribers.
func (c *SyncClient) apply(response *messaging.SyncResponse, deliver bool) {
	var pending []TimelineEvent

	c.mu.Lock()
	c.nextBatch = response.NextBatch

	for _, event := range response.AccountData.Events {
		c.accountData[event.Type] = event.Content
	}
	for _, event := range response.Presence.Events {
		c.presence[event.Sender] = Presence{
			State:           event.Content.Presence,
			LastActiveAgo:   event.Content.LastActiveAgo,
			CurrentlyActive: event.Content.CurrentlyActive,
			StatusMsg:       event.Content.StatusMsg,
		}
	}

	for rawRoomID, joined := range response.Rooms.Join {
		roomID, err := ref.ParseRoomID(rawRoomID)
		if err != nil {
			c.logger.Warn("ignoring joined room with invalid ID", "room_id", rawRoomID, "error", err)
			continue
		}

		stateEvents := append([]messaging.Event(nil), joined.State.Events...)
		for _, event := range joined.Timeline.Events {
			if event.StateKey != nil {
				stateEvents = append(stateEvents, event)
			}
		}

		var previous *RoomState
		if room, ok := c.rooms[roomID]; ok {
			previous = room.state
		}
		room := NewRoom(roomID, previous.With(stateEvents...))
		c.rooms[roomID] = room
		if _, seen := c.prevBatch[roomID]; !seen && joined.Timeline.PrevBatch != "" {
			c.prevBatch[roomID] = joined.Timeline.PrevBatch
		}

		if deliver {
			for _, event := range joined.Timeline.Events {
				event.RoomID = roomID.String()
				pending = append(pending, TimelineEvent{Room: room, RoomID: roomID, Event: event, Direction: Forward})
			}
		}
	}

	for rawRoomID := range response.Rooms.Leave {
		roomID, err := ref.ParseRoomID(rawRoomID)
		if err != nil {
			continue
		}
		delete(c.rooms, roomID)
		delete(c.prevBatch, roomID)
	}
	c.mu.Unlock()

	// Room IDs come out of a map; order rooms deterministically so
	// subscribers see a stable interleaving.
	sort.SliceStable(pending, func(i, j int) bool {
		return pending[i].RoomID.String() < pending[j].RoomID.String()
	})
	for _, event := range pending {
		c.dispatch(event)
	}
}

// backfill fetches one page of history per room and delivers it as
// Backward events, oldest first.
func (c *SyncClient) backfill(ctx context.Context) {
	c.mu.RLock()
	tokens := make(map[ref.RoomID]string, len(c.prevBatch))
	for roomID, token := range c.prevBatch {
		tokens[roomID] = token
	}
	c.mu.RUnlock()

	for _, room := range c.Rooms() {
		token, ok := tokens[room.ID()]
		if !ok {
			continue
		}
		if err := c.Backfill(ctx, room.ID(), token, c.backfillLimit); err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Warn("backfill failed", "room_id", room.ID(), "error", err)
		}
	}
}

// Backfill fetches up to limit events older than token in a room and
// delivers them to subscribers as Backward events.
func (c *SyncClient) Backfill(ctx context.Context, roomID ref.RoomID, token string, limit int) error {
	response, err := c.session.RoomMessages(ctx, roomID, messaging.RoomMessagesOptions{
		From:      token,
		Direction: "b",
		Limit:     limit,
	})
	if err != nil {
		return fmt.Errorf("hostclient: backfilling %s: %w", roomID, err)
	}

	room, _ := c.Room(roomID)
	// /messages with dir=b returns newest first.
	for index := len(response.Chunk) - 1; index >= 0; index-- {
		event := response.Chunk[index]
		event.RoomID = roomID.String()
		c.dispatch(TimelineEvent{Room: room, RoomID: roomID, Event: event, Direction: Backward})
	}
	return nil
}

func (c *SyncClient) dispatch(event TimelineEvent) {
	c.subscribersMu.Lock()
	defer c.subscribersMu.Unlock()
	for id, channel := range c.subscribers {
		select {
		case channel <- event:
		default:
			c.logger.Warn("timeline subscriber full, dropping event",
				"subscriber", id,
				"room_id", event.RoomID,
				"event_id", event.Event.EventID,
			)
		}
	}
}

// UserID returns the local user.
func (c *SyncClient) UserID() ref.UserID {
	return c.session.UserID()
}

// Room returns the current snapshot of a joined room.
func (c *SyncClient) Room(roomID ref.RoomID) (*Room, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	room, ok := c.rooms[roomID]
	return room, ok
}

// Rooms returns every joined room sorted by room ID.
func (c *SyncClient) Rooms() []*Room {
	c.mu.RLock()
	rooms := make([]*Room, 0, len(c.rooms))
	for _, room := range c.rooms {
		rooms = append(rooms, room)
	}
	c.mu.RUnlock()
	sort.Slice(rooms, func(i, j int) bool { return rooms[i].ID().String() < rooms[j].ID().String() })
	return rooms
}

// AccountData returns the synced global account data of eventType.
func (c *SyncClient) AccountData(eventType ref.EventType) (json.RawMessage, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	content, ok := c.accountData[eventType]
	return content, ok
}

// SetAccountData writes account data and, on success, updates the
// mirror without waiting for the echo from /sync.
func (c *SyncClient) SetAccountData(ctx context.Context, eventType ref.EventType, content any) error {
	raw, err := json.Marshal(content)
	if err != nil {
		return fmt.Errorf("hostclient: encoding account data: %w", err)
	}
	if err := c.session.SetAccountData(ctx, eventType, json.RawMessage(raw)); err != nil {
		return err
	}
	c.mu.Lock()
	c.accountData[eventType] = raw
	c.mu.Unlock()
	return nil
}

// SendStateEvent writes a state event and, on success, applies it to
// the mirror without waiting for the echo from /sync.
func (c *SyncClient) SendStateEvent(ctx context.Context, roomID ref.RoomID, eventType ref.EventType, stateKey string, content any) error {
	event, err := StateEvent(eventType, stateKey, c.session.UserID(), content)
	if err != nil {
		return err
	}
	eventID, err := c.session.SendStateEvent(ctx, roomID, eventType, stateKey, event.Content)
	if err != nil {
		return err
	}
	event.EventID = eventID
	event.RoomID = roomID.String()

	c.mu.Lock()
	if room, ok := c.rooms[roomID]; ok {
		c.rooms[roomID] = NewRoom(roomID, room.state.With(event))
	}
	c.mu.Unlock()
	return nil
}

// SubscribeTimeline registers a timeline subscriber.
func (c *SyncClient) SubscribeTimeline(buffer int) (<-chan TimelineEvent, func()) {
	if buffer < 1 {
		buffer = 1
	}
	channel := make(chan TimelineEvent, buffer)

	c.subscribersMu.Lock()
	id := c.nextID
	c.nextID++
	c.subscribers[id] = channel
	c.subscribersMu.Unlock()

	var once sync.Once
	return channel, func() {
		once.Do(func() {
			c.subscribersMu.Lock()
			delete(c.subscribers, id)
			c.subscribersMu.Unlock()
			close(channel)
		})
	}
}

// Presence returns the last synced presence of userID.
func (c *SyncClient) Presence(userID ref.UserID) (Presence, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	presence, ok := c.presence[userID.String()]
	return presence, ok
}

// ThumbnailURL delegates to the session.
func (c *SyncClient) ThumbnailURL(contentURI ref.ContentURI, width, height int, method string) (string, error) {
	return c.session.ThumbnailURL(contentURI, width, height, method)
}
