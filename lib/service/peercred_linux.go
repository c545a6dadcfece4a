// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"fmt"
	"net"

	"golang.org/x/sys/unix"
)

// peerUID returns the UID of the process on the other end of conn via
// SO_PEERCRED. known is false for connections that are not Unix
// sockets.
func peerUID(conn net.Conn) (uid uint32, known bool, err error) {
	unixConn, ok := conn.(*net.UnixConn)
	if !ok {
		return 0, false, nil
	}
	raw, err := unixConn.SyscallConn()
	if err != nil {
		return 0, false, fmt.Errorf("service: accessing socket: %w", err)
	}

	var credentials *unix.Ucred
	var credentialsErr error
	if err := raw.Control(func(fd uintptr) {
		credentials, credentialsErr = unix.GetsockoptUcred(int(fd), unix.SOL_SOCKET, unix.SO_PEERCRED)
	}); err != nil {
		return 0, false, fmt.Errorf("service: accessing socket: %w", err)
	}
	if credentialsErr != nil {
		return 0, false, fmt.Errorf("service: SO_PEERCRED: %w", credentialsErr)
	}
	return credentials.Uid, true, nil
}
