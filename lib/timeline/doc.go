// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package timeline watches the live timeline and reports one
// [Enrichment] record per incoming message.
//
// The [Observer] subscribes to the host client's timeline fan-out and
// handles each delivered event in its own goroutine. A handler looks
// up the sender in the room's member directory, reads the sender's
// room preferences through the preference store, adds the account
// color when the sender is the local user, and passes the record to a
// [Sink]. Only forward (live) m.room.message events with a sender
// produce records; backfilled history is ignored.
//
// A failing or panicking handler is reported to an [ErrorReporter]
// and affects nothing else: the subscription and every other handler
// keep running. Records are never stored by the observer itself.
// [RecordSink] is the opt-in way to keep them, as a CBOR record log.
package timeline
