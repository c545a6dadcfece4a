// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package prefs

import (
	"errors"
	"fmt"

	"github.com/bureau-foundation/userprefs/lib/scope"
)

var (
	// ErrNotReady means the client handle did not resolve before the
	// context ended. It wraps the context error.
	ErrNotReady = errors.New("prefs: host client not ready")

	// ErrScopeUnavailable means a write targeted the current space and
	// none could be resolved.
	ErrScopeUnavailable = errors.New("prefs: no current space")

	// ErrBackendRejected matches every *BackendRejectedError.
	ErrBackendRejected = errors.New("prefs: backend rejected write")

	// ErrMalformedContent means stored content is not a JSON object.
	// Reads convert it into an empty blob; it never reaches callers.
	ErrMalformedContent = errors.New("prefs: malformed preference content")

	// ErrInvalidSubject means a room write named no valid user.
	ErrInvalidSubject = errors.New("prefs: invalid subject user ID")
)

// BackendRejectedError is returned when the homeserver refuses a
// write. Err is usually a *messaging.MatrixError.
type BackendRejectedError struct {
	Scope   scope.Scope
	Subject string
	Err     error
}

func (e *BackendRejectedError) Error() string {
	return fmt.Sprintf("prefs: writing %s for %s: %v", e.Scope, e.Subject, e.Err)
}

// Is makes errors.Is(err, ErrBackendRejected) hold.
func (e *BackendRejectedError) Is(target error) bool {
	return target == ErrBackendRejected
}

func (e *BackendRejectedError) Unwrap() error { return e.Err }
