// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package messaging wraps the subset of the Matrix client-server API
// the preference layer needs.
//
// [Client] is unauthenticated: it holds the homeserver URL and HTTP
// transport, performs password login, and builds media thumbnail URLs.
// [DirectSession] adds an access token (kept in a mmap-backed
// secret.Buffer) and covers whoami, /sync, room state (single events
// and full state), room members, /messages pagination, and per-user
// account data. [Session] is the interface the host client mirror is
// written against, so tests can substitute a fake.
//
// Every non-2xx response is returned as a [*MatrixError] carrying the
// Matrix errcode and HTTP status. [IsMatrixError] tests for a code.
// Request URLs are built by string concatenation with url.PathEscape on
// each segment; url.URL.String would re-encode room IDs and user IDs.
package messaging
