// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build !linux

package service

import "net"

// peerUID is unavailable on this platform; the socket's 0600 mode is
// the only access control.
func peerUID(net.Conn) (uid uint32, known bool, err error) {
	return 0, false, nil
}
