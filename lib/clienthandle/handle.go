// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package clienthandle

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/bureau-foundation/userprefs/lib/clock"
	"github.com/bureau-foundation/userprefs/lib/hostclient"
)

// DefaultPollInterval is the interval between accessor checks.
const DefaultPollInterval = 400 * time.Millisecond

// Handle is resolved at most once with a host client.
type Handle struct {
	once   sync.Once
	ready  chan struct{}
	client hostclient.Client
}

// New returns an unresolved handle.
func New() *Handle {
	return &Handle{ready: make(chan struct{})}
}

// Resolved returns a handle that is already resolved with client.
// Useful for tests and for embedders that construct the client
// themselves.
func Resolved(client hostclient.Client) *Handle {
	handle := New()
	handle.Resolve(client)
	return handle
}

// Resolve sets the client and wakes every waiter. Only the first call
// with a non-nil client has an effect; it reports whether this call
// resolved the handle.
func (h *Handle) Resolve(client hostclient.Client) bool {
	if client == nil {
		return false
	}
	resolved := false
	h.once.Do(func() {
		h.client = client
		close(h.ready)
		resolved = true
	})
	return resolved
}

// Wait blocks until the handle resolves or ctx ends. The only error
// is ctx.Err().
func (h *Handle) Wait(ctx context.Context) (hostclient.Client, error) {
	select {
	case <-h.ready:
		return h.client, nil
	default:
	}
	select {
	case <-h.ready:
		return h.client, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Current returns the client without blocking.
func (h *Handle) Current() (hostclient.Client, bool) {
	select {
	case <-h.ready:
		return h.client, true
	default:
		return nil, false
	}
}

// Ready is closed once the handle has resolved.
func (h *Handle) Ready() <-chan struct{} {
	return h.ready
}

// Accessor reports the host client, or nil while it is not available.
type Accessor func() hostclient.Client

// PollConfig configures Poll.
type PollConfig struct {
	// Interval between checks. Default DefaultPollInterval.
	Interval time.Duration

	// Clock drives the ticker. Default clock.Real().
	Clock clock.Clock

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Poll returns a handle that resolves with the first non-nil result of
// accessor, checked once per interval starting one interval from now.
// Polling stops when the handle resolves or ctx ends; an abandoned
// handle simply never resolves.
func Poll(ctx context.Context, accessor Accessor, config PollConfig) *Handle {
	if config.Interval <= 0 {
		config.Interval = DefaultPollInterval
	}
	if config.Clock == nil {
		config.Clock = clock.Real()
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	handle := New()
	go func() {
		ticker := config.Clock.NewTicker(config.Interval)
		defer ticker.Stop()

		for attempt := 1; ; attempt++ {
			select {
			case <-ctx.Done():
				config.Logger.Debug("client handle poll abandoned", "attempts", attempt-1)
				return
			case <-ticker.C:
				client := accessor()
				if client == nil {
					continue
				}
				handle.Resolve(client)
				config.Logger.Info("host client available",
					"user_id", client.UserID(),
					"attempts", attempt,
				)
				return
			}
		}
	}()
	return handle
}
