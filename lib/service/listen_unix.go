// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build unix

package service

import (
	"net"
	"sync"

	"golang.org/x/sys/unix"
)

// umaskMu serializes the umask swap; the umask is process-wide.
var umaskMu sync.Mutex

// listenUnix creates the socket with mode 0600 from the start by
// clearing group and other bits from the umask around bind.
func listenUnix(path string) (net.Listener, error) {
	umaskMu.Lock()
	defer umaskMu.Unlock()
	previous := unix.Umask(0o177)
	defer unix.Umask(previous)
	return net.Listen("unix", path)
}
