// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"net"
	"os"
	"testing"
	"time"

	"github.com/bureau-foundation/userprefs/lib/codec"
	"github.com/bureau-foundation/userprefs/lib/testutil"
)

func TestPeerUIDIsCurrentUser(t *testing.T) {
	listener, err := net.Listen("unix", testSocketPath(t))
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer listener.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := listener.Accept()
		if err == nil {
			accepted <- conn
		}
	}()

	client, err := net.Dial("unix", listener.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.Close()

	server := testutil.RequireReceive(t, accepted, 5*time.Second, "accept did not return")
	defer server.Close()

	uid, known, err := peerUID(server)
	if err != nil {
		t.Fatalf("peerUID: %v", err)
	}
	if !known || uid != uint32(os.Getuid()) {
		t.Errorf("peerUID = %d, %v; want %d, true", uid, known, os.Getuid())
	}
}

func TestSocketServerRejectsOtherUsers(t *testing.T) {
	server := NewSocketServer(testSocketPath(t), testLogger())
	server.ownerUID = uint32(os.Getuid()) + 1
	called := make(chan struct{}, 1)
	server.Handle("status", func(ctx context.Context, raw []byte) (any, error) {
		called <- struct{}{}
		return nil, nil
	})
	startServer(t, server)

	conn, err := net.DialTimeout("unix", server.SocketPath(), 5*time.Second)
	if err != nil {
		t.Fatalf("connecting: %v", err)
	}
	defer conn.Close()

	var response Response
	if err := codec.NewDecoder(conn).Decode(&response); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if response.OK || response.Code != CodePermissionDenied {
		t.Errorf("response = %+v, want permission_denied", response)
	}
	testutil.RequireNoReceive(t, called, 20*time.Millisecond, "handler ran for a rejected peer")
}
