// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build unix

package service

import (
	"os"
	"testing"

	"golang.org/x/sys/unix"
)

func TestListenUnixIgnoresPermissiveUmask(t *testing.T) {
	previous := unix.Umask(0)
	t.Cleanup(func() { unix.Umask(previous) })

	listener, err := listenUnix(testSocketPath(t))
	if err != nil {
		t.Fatalf("listenUnix: %v", err)
	}
	defer listener.Close()

	info, err := os.Stat(listener.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	if mode := info.Mode().Perm(); mode != 0o600 {
		t.Errorf("socket mode at bind = %o, want 600", mode)
	}
	if restored := unix.Umask(0); restored != 0 {
		t.Errorf("umask after listenUnix = %o, want it restored to 0", restored)
	}
}
