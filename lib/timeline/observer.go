// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package timeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/bureau-foundation/userprefs/lib/clienthandle"
	"github.com/bureau-foundation/userprefs/lib/clock"
	"github.com/bureau-foundation/userprefs/lib/hostclient"
	"github.com/bureau-foundation/userprefs/lib/prefs"
	"github.com/bureau-foundation/userprefs/lib/ref"
	"github.com/bureau-foundation/userprefs/lib/scope"
)

// Thumbnail defaults for avatar URLs.
const (
	DefaultAvatarSize   = 48
	DefaultAvatarMethod = "crop"
	defaultBuffer       = 256
)

// ErrSubscriptionClosed is returned by Run when the host client closes
// the timeline subscription.
var ErrSubscriptionClosed = errors.New("timeline: subscription closed")

// State is the observer's lifecycle state.
type State int32

const (
	// Detached: Run has not subscribed yet, or has returned.
	Detached State = iota
	// Attached: subscribed and handling events.
	Attached
)

func (s State) String() string {
	if s == Attached {
		return "attached"
	}
	return "detached"
}

// ObserverConfig configures an Observer.
type ObserverConfig struct {
	// Handle resolves to the host client. Required.
	Handle *clienthandle.Handle

	// Store reads room preferences and the account color. Required.
	Store *prefs.Store

	// Sink receives records. Default LogSink with Logger.
	Sink Sink

	// Errors receives per-event failures. Default LogErrors with
	// Logger.
	Errors ErrorReporter

	// Clock stamps records. Default clock.Real().
	Clock clock.Clock

	// AvatarSize and AvatarMethod shape avatar thumbnail URLs.
	// Defaults 48 and "crop".
	AvatarSize   int
	AvatarMethod string

	// Buffer is the subscription channel capacity. Default 256.
	Buffer int

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Observer turns live timeline messages into Enrichment records.
type Observer struct {
	handle       *clienthandle.Handle
	store        *prefs.Store
	sink         Sink
	errors       ErrorReporter
	clock        clock.Clock
	avatarSize   int
	avatarMethod string
	buffer       int
	logger       *slog.Logger

	state    atomic.Int32
	attached chan struct{}
	once     sync.Once
}

// NewObserver creates an Observer. Call Run to attach it.
func NewObserver(config ObserverConfig) (*Observer, error) {
	if config.Handle == nil {
		return nil, errors.New("timeline: Handle is required")
	}
	if config.Store == nil {
		return nil, errors.New("timeline: Store is required")
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.Sink == nil {
		config.Sink = LogSink{Logger: config.Logger}
	}
	if config.Errors == nil {
		config.Errors = LogErrors{Logger: config.Logger}
	}
	if config.Clock == nil {
		config.Clock = clock.Real()
	}
	if config.AvatarSize <= 0 {
		config.AvatarSize = DefaultAvatarSize
	}
	if config.AvatarMethod == "" {
		config.AvatarMethod = DefaultAvatarMethod
	}
	if config.Buffer <= 0 {
		config.Buffer = defaultBuffer
	}
	return &Observer{
		handle:       config.Handle,
		store:        config.Store,
		sink:         config.Sink,
		errors:       config.Errors,
		clock:        config.Clock,
		avatarSize:   config.AvatarSize,
		avatarMethod: config.AvatarMethod,
		buffer:       config.Buffer,
		logger:       config.Logger,
		attached:     make(chan struct{}),
	}, nil
}

// State returns the current lifecycle state.
func (o *Observer) State() State { return State(o.state.Load()) }

// Attached is closed once Run has subscribed.
func (o *Observer) Attached() <-chan struct{} { return o.attached }

// Run waits for the client, subscribes, and handles events until ctx
// ends. Events are enriched concurrently but records reach the sink in
// delivery order. Run returns after every in-flight handler has
// finished: nil on cancellation, ErrSubscriptionClosed if the client
// closed the feed.
func (o *Observer) Run(ctx context.Context) error {
	client, err := o.handle.Wait(ctx)
	if err != nil {
		return nil
	}

	events, unsubscribe := client.SubscribeTimeline(o.buffer)
	defer unsubscribe()

	o.state.Store(int32(Attached))
	defer o.state.Store(int32(Detached))
	o.once.Do(func() { close(o.attached) })
	o.logger.Info("timeline observer attached", "user_id", client.UserID())

	var handlers sync.WaitGroup
	defer handlers.Wait()

	// Each handler reports only after its predecessor's turn is done,
	// so the sink sees records in delivery order while enrichment runs
	// concurrently.
	previous := make(chan struct{})
	close(previous)

	for {
		select {
		case <-ctx.Done():
			return nil
		case delivery, ok := <-events:
			if !ok {
				return ErrSubscriptionClosed
			}
			turn := handlerTurn{previous: previous, done: make(chan struct{})}
			previous = turn.done
			handlers.Add(1)
			go func() {
				defer handlers.Done()
				o.supervise(ctx, client, delivery, turn)
			}()
		}
	}
}

// handlerTurn orders sink reports. previous is closed when the prior
// delivery's handler has finished; done is closed when this one has.
type handlerTurn struct {
	previous <-chan struct{}
	done     chan struct{}
}

// supervise runs one handler and reports its failure, including a
// panic, without letting it escape.
func (o *Observer) supervise(ctx context.Context, client hostclient.Client, delivery hostclient.TimelineEvent, turn handlerTurn) {
	defer func() {
		<-turn.previous
		close(turn.done)
	}()
	defer func() {
		if recovered := recover(); recovered != nil {
			o.logger.Debug("message handler panic", "stack", string(debug.Stack()))
			o.errors.ReportError(delivery.RoomID.String(), delivery.Event,
				fmt.Errorf("timeline: handler panic: %v", recovered))
		}
	}()
	if err := o.handleEvent(ctx, client, delivery, turn.previous); err != nil {
		o.errors.ReportError(delivery.RoomID.String(), delivery.Event, err)
	}
}

func (o *Observer) handleEvent(ctx context.Context, client hostclient.Client, delivery hostclient.TimelineEvent, previous <-chan struct{}) error {
	event := delivery.Event
	if event.Type != ref.EventTypeRoomMessage || delivery.Direction == hostclient.Backward {
		return nil
	}
	if event.Sender == "" {
		return nil
	}

	room := delivery.Room
	if room == nil {
		room, _ = client.Room(delivery.RoomID)
	}

	record := Enrichment{
		RoomID:       delivery.RoomID.String(),
		EventID:      event.EventID.String(),
		Sender:       event.Sender,
		DisplayName:  event.Sender,
		MsgType:      event.ContentString("msgtype"),
		Body:         event.ContentString("body"),
		ObservedAtMS: o.clock.Now().UnixMilli(),
	}
	if room != nil {
		record.RoomName = room.Name()
	}

	senderID, err := ref.ParseUserID(event.Sender)
	if err == nil {
		if room != nil {
			if member, ok := room.Member(senderID); ok {
				record.Membership = member.Membership
				record.DisplayName = member.Name()
				record.AvatarURL = o.avatarURL(client, member.AvatarURL)
			}
		}
		if presence, ok := client.Presence(senderID); ok {
			record.Presence = presence.State
		}
	}

	blob, err := o.store.Read(ctx, scope.Room(delivery.RoomID), event.Sender)
	if err != nil {
		return fmt.Errorf("timeline: reading preferences for %s: %w", event.Sender, err)
	}
	record.RoomPreferences = blob

	if event.Sender == client.UserID().String() {
		record.AccountColor, _ = o.store.AccountColor(ctx)
	}

	<-previous
	return o.sink.Report(ctx, record)
}

// avatarURL converts an mxc:// avatar to a thumbnail URL. Any failure
// yields "".
func (o *Observer) avatarURL(client hostclient.Client, raw string) string {
	if raw == "" {
		return ""
	}
	contentURI, err := ref.ParseContentURI(raw)
	if err != nil {
		return ""
	}
	url, err := client.ThumbnailURL(contentURI, o.avatarSize, o.avatarSize, o.avatarMethod)
	if err != nil {
		return ""
	}
	return url
}
