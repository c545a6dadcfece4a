// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package timeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bureau-foundation/userprefs/lib/recordlog"
	"github.com/bureau-foundation/userprefs/messaging"
)

// Sink receives enrichment records in timeline delivery order. Calls
// come from handler goroutines but never overlap.
type Sink interface {
	Report(ctx context.Context, record Enrichment) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, record Enrichment) error

// Report calls f.
func (f SinkFunc) Report(ctx context.Context, record Enrichment) error { return f(ctx, record) }

// LogSink logs each record at info level.
type LogSink struct {
	Logger *slog.Logger
}

// Report logs record.
func (s LogSink) Report(ctx context.Context, record Enrichment) error {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "message",
		"room_id", record.RoomID,
		"room_name", record.RoomName,
		"event_id", record.EventID,
		"sender", record.Sender,
		"display_name", record.DisplayName,
		"membership", record.Membership,
		"avatar_url", record.AvatarURL,
		"presence", record.Presence,
		"msgtype", record.MsgType,
		"body", record.Body,
		"room_preferences", record.RoomPreferences,
		"account_color", record.AccountColor,
	)
	return nil
}

// ChannelSink sends records on a channel, blocking until the receiver
// takes the record or ctx ends.
type ChannelSink chan<- Enrichment

// Report sends record.
func (s ChannelSink) Report(ctx context.Context, record Enrichment) error {
	select {
	case s <- record:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RecordSink appends records to a record log. The caller owns the
// writer and closes it after the observer returns.
type RecordSink struct {
	Writer *recordlog.Writer
}

// Report appends record.
func (s RecordSink) Report(_ context.Context, record Enrichment) error {
	if err := s.Writer.Append(record); err != nil {
		return fmt.Errorf("timeline: appending record: %w", err)
	}
	return nil
}

// MultiSink reports to every sink and joins their errors.
type MultiSink []Sink

// Report fans record out.
func (m MultiSink) Report(ctx context.Context, record Enrichment) error {
	var errs []error
	for _, sink := range m {
		if err := sink.Report(ctx, record); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ErrorReporter receives per-event failures.
type ErrorReporter interface {
	ReportError(roomID string, event messaging.Event, err error)
}

// ErrorFunc adapts a function to ErrorReporter.
type ErrorFunc func(roomID string, event messaging.Event, err error)

// ReportError calls f.
func (f ErrorFunc) ReportError(roomID string, event messaging.Event, err error) {
	f(roomID, event, err)
}

// LogErrors logs failures at error level.
type LogErrors struct {
	Logger *slog.Logger
}

// ReportError logs err.
func (l LogErrors) ReportError(roomID string, event messaging.Event, err error) {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Error("message observer failed",
		"room_id", roomID,
		"event_id", event.EventID,
		"error", err,
	)
}
