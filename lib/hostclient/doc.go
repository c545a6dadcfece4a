// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package hostclient is the running Matrix client the preference layer
// attaches to.
//
// [Client] is the capability set the rest of the module consumes: the
// local user, room lookup over a locally mirrored room state, global
// account data, state and account data writes, a timeline
// subscription, presence, and media thumbnail URLs. Reads are served
// from memory and never block; writes go to the homeserver.
//
// [SyncClient] implements Client on top of a messaging.Session. It runs
// the /sync loop, keeps an immutable snapshot of each joined room's
// state (replaced copy-on-write per sync batch), and fans timeline
// events out to subscribers. [SyncClient.Accessor] returns nil until
// the initial sync has been applied, which is what the client handle
// resolver polls for.
//
// Room and RoomState values are snapshots. Holding one never observes
// later syncs; call Client.Room again for fresh state.
package hostclient
