// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package ref provides validated value types for the Matrix identifiers
// that flow through the preference layer: room IDs, user IDs, event IDs,
// event types, and mxc:// content URIs.
//
// Identifiers are parsed once at the boundary (JSON decoding of /sync
// responses, CLI arguments, socket requests) and carried as immutable
// values afterwards. Every type implements encoding.TextMarshaler and
// encoding.TextUnmarshaler, so they work as JSON and CBOR strings and as
// JSON map keys. The zero value of each type means "unset"; use IsZero.
//
// This package depends on no other packages in the module.
package ref
