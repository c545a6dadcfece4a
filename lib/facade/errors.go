// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package facade

import (
	"errors"
	"fmt"

	"github.com/bureau-foundation/userprefs/lib/prefs"
	"github.com/bureau-foundation/userprefs/lib/service"
)

// ErrInvalidRequest is returned for socket requests that do not decode
// or carry a malformed room ID.
var ErrInvalidRequest = errors.New("facade: invalid request")

// Error codes sent in the socket response envelope.
const (
	CodeNotReady         = "not_ready"
	CodeScopeUnavailable = "scope_unavailable"
	CodeBackendRejected  = "backend_rejected"
	CodeInvalidSubject   = "invalid_subject"
	CodeInvalidRequest   = "invalid_request"
)

// errorCodes maps each code to the sentinel it stands for. Order
// matters: the first sentinel an error matches wins.
var errorCodes = []struct {
	code     string
	sentinel error
}{
	{CodeNotReady, prefs.ErrNotReady},
	{CodeScopeUnavailable, prefs.ErrScopeUnavailable},
	{CodeInvalidSubject, prefs.ErrInvalidSubject},
	{CodeBackendRejected, prefs.ErrBackendRejected},
	{CodeInvalidRequest, ErrInvalidRequest},
}

// codedError attaches a wire code to a handler error.
type codedError struct {
	code string
	err  error
}

func (e *codedError) Error() string     { return e.err.Error() }
func (e *codedError) Unwrap() error     { return e.err }
func (e *codedError) ErrorCode() string { return e.code }

var _ service.CodedError = (*codedError)(nil)

// encodeError tags err with the code of the first sentinel it matches.
func encodeError(err error) error {
	if err == nil {
		return nil
	}
	for _, entry := range errorCodes {
		if errors.Is(err, entry.sentinel) {
			return &codedError{code: entry.code, err: err}
		}
	}
	return err
}

// decodeError wraps a *service.ServiceError carrying a known code so
// that errors.Is matches the sentinel on the client side, while
// errors.As still finds the ServiceError.
func decodeError(err error) error {
	var serviceErr *service.ServiceError
	if !errors.As(err, &serviceErr) || serviceErr.Code == "" {
		return err
	}
	for _, entry := range errorCodes {
		if entry.code == serviceErr.Code {
			return fmt.Errorf("%w: %w", entry.sentinel, err)
		}
	}
	return err
}
