// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package service provides the Unix socket request/response protocol
// the userprefs daemon serves its API on.
//
// Each connection carries exactly one CBOR request and one CBOR
// response. A request is a CBOR map whose "action" field selects a
// registered [ActionFunc]; the remaining fields are action-specific.
// The response envelope is {ok, error, data}, with data holding the
// handler's CBOR-encoded result.
//
// Access control is the socket file's mode: the server creates it
// readable and writable by the owning user only. There is no
// request-level authentication.
package service
