// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time abstraction.
//
// The client handle resolver polls its accessor on a ticker and the
// timeline observer stamps each enrichment record with the observation
// time. Both take a Clock instead of calling the time package, so tests
// can drive them deterministically:
//
//	c := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	handle := clienthandle.Poll(ctx, accessor, clienthandle.PollConfig{Clock: c})
//	c.WaitForTimers(1)                // poll loop registered its ticker
//	c.Advance(400 * time.Millisecond) // one poll happens
package clock
