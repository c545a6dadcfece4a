// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package facade is the public preference API, published under the
// entry point name "matesUserData".
//
// [Await] returns the [API] only after the client handle has resolved,
// so every method runs against a live client. The methods delegate to
// the preference store; they add no logic beyond argument checks.
//
// ShareToRoom and GetSharedFromRoom are kept for callers of the older
// API. Room state is already the shared representation, so sharing is
// inert and reading shared data is the same as GetFromRoom.
//
// [Register] exposes the API on a service.SocketServer. [Remote] is the
// client-side twin that the CLI and settings panel use.
package facade
