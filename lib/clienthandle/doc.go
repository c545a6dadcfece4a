// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clienthandle provides the shared handle through which every
// preference component reaches the host client.
//
// A [Handle] is a one-shot future: it resolves exactly once, and every
// caller of [Handle.Wait] suspends until it has. Components receive
// the *Handle by injection instead of discovering the client through
// a global.
//
// [Poll] resolves a handle by polling an accessor function at a fixed
// interval until it yields a client. The daemon wires it to
// [hostclient.SyncClient.Accessor], which returns nil until the
// initial /sync has been applied. The poll has no upper bound; callers
// bound it through the context.
package clienthandle
