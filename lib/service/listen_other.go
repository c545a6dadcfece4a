// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build !unix

package service

import "net"

// listenUnix binds without a umask; Serve's chmod narrows the mode
// after the fact.
func listenUnix(path string) (net.Listener, error) {
	return net.Listen("unix", path)
}
