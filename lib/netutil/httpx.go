// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package netutil bounds HTTP response reads and classifies connection
// teardown errors.
//
// Every Matrix client-server response is read through [ReadResponse] so a
// misbehaving homeserver cannot exhaust memory. Media downloads are not
// performed by this module; only thumbnail URLs are constructed.
package netutil

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"
)

// MaxResponseSize caps a single JSON response body at 64 MB. A full
// initial /sync for an account in many rooms is the largest response
// this module reads.
const MaxResponseSize int64 = 64 << 20

// ReadResponse reads at most MaxResponseSize bytes from body.
func ReadResponse(body io.Reader) ([]byte, error) {
	return io.ReadAll(io.LimitReader(body, MaxResponseSize))
}

// DecodeResponse reads body through ReadResponse and decodes the JSON
// into v.
func DecodeResponse(body io.Reader, v any) error {
	data, err := ReadResponse(body)
	if err != nil {
		return fmt.Errorf("reading response body: %w", err)
	}
	return json.Unmarshal(data, v)
}

// ErrorBody returns whatever could be read of an error response body.
// Read failures are ignored; a truncated body is still useful in a
// diagnostic.
func ErrorBody(body io.Reader) string {
	data, _ := ReadResponse(body)
	return string(data)
}

// IsExpectedCloseError reports whether err is ordinary connection
// teardown: EOF, a closed listener or connection, a broken pipe, or a
// peer reset. Socket servers use it to avoid logging a client that hung
// up as a failure.
func IsExpectedCloseError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
		return true
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno == syscall.EPIPE || errno == syscall.ECONNRESET
	}
	return false
}
