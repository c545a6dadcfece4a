// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"errors"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/bureau-foundation/userprefs/lib/codec"
	"github.com/bureau-foundation/userprefs/lib/testutil"
)

func TestClientCall(t *testing.T) {
	server := NewSocketServer(testSocketPath(t), testLogger())
	server.Handle("greet", func(ctx context.Context, raw []byte) (any, error) {
		var request struct {
			Action string `cbor:"action"`
			Name   string `cbor:"name"`
		}
		if err := codec.Unmarshal(raw, &request); err != nil {
			return nil, err
		}
		return map[string]string{"greeting": "hello " + request.Name, "action": request.Action}, nil
	})
	startServer(t, server)

	client := NewServiceClient(server.SocketPath())
	var result struct {
		Greeting string `cbor:"greeting"`
		Action   string `cbor:"action"`
	}
	if err := client.Call(context.Background(), "greet", map[string]any{"name": "alice"}, &result); err != nil {
		t.Fatalf("Call: %v", err)
	}
	if result.Greeting != "hello alice" || result.Action != "greet" {
		t.Errorf("result = %+v", result)
	}
}

func TestClientCallNilFieldsAndResult(t *testing.T) {
	server := NewSocketServer(testSocketPath(t), testLogger())
	called := make(chan struct{}, 1)
	server.Handle("ping", func(ctx context.Context, raw []byte) (any, error) {
		called <- struct{}{}
		return map[string]bool{"pong": true}, nil
	})
	startServer(t, server)

	if err := NewServiceClient(server.SocketPath()).Call(context.Background(), "ping", nil, nil); err != nil {
		t.Fatalf("Call: %v", err)
	}
	testutil.RequireReceive(t, called, time.Second, "handler not called")
}

func TestClientCallServiceError(t *testing.T) {
	server := NewSocketServer(testSocketPath(t), testLogger())
	server.Handle("reject", func(ctx context.Context, raw []byte) (any, error) {
		return nil, errors.New("forbidden by homeserver")
	})
	startServer(t, server)

	client := NewServiceClient(server.SocketPath())
	for _, action := range []string{"reject", "missing"} {
		err := client.Call(context.Background(), action, nil, nil)
		var serviceErr *ServiceError
		if !errors.As(err, &serviceErr) {
			t.Fatalf("%s: err = %v, want *ServiceError", action, err)
		}
		if serviceErr.Action != action {
			t.Errorf("%s: error action = %q", action, serviceErr.Action)
		}
	}
}

func TestClientCallPropagatesErrorCode(t *testing.T) {
	server := NewSocketServer(testSocketPath(t), testLogger())
	server.Handle("coded", func(ctx context.Context, raw []byte) (any, error) {
		return nil, codedTestError{code: "scope_unavailable"}
	})
	startServer(t, server)

	err := NewServiceClient(server.SocketPath()).Call(context.Background(), "coded", nil, nil)
	var serviceErr *ServiceError
	if !errors.As(err, &serviceErr) {
		t.Fatalf("err = %v, want *ServiceError", err)
	}
	if serviceErr.Code != "scope_unavailable" || serviceErr.ErrorCode() != "scope_unavailable" {
		t.Errorf("code = %q", serviceErr.Code)
	}
}

func TestClientCallConnectionRefused(t *testing.T) {
	client := NewServiceClient(filepath.Join(testutil.SocketDir(t), "absent.sock"))
	err := client.Call(context.Background(), "ping", nil, nil)
	var serviceErr *ServiceError
	if err == nil || errors.As(err, &serviceErr) {
		t.Errorf("err = %v, want a connection error", err)
	}
}

func TestClientCallCancelledMidRequest(t *testing.T) {
	server := NewSocketServer(testSocketPath(t), testLogger())
	release := make(chan struct{})
	started := make(chan struct{})
	server.Handle("hang", func(ctx context.Context, raw []byte) (any, error) {
		close(started)
		<-release
		return nil, nil
	})
	startServer(t, server)
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- NewServiceClient(server.SocketPath()).Call(ctx, "hang", nil, nil) }()

	testutil.RequireClosed(t, started, 5*time.Second, "handler did not start")
	cancel()
	err := testutil.RequireReceive(t, done, 5*time.Second, "Call did not return after cancel")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestClientConcurrentCalls(t *testing.T) {
	server := NewSocketServer(testSocketPath(t), testLogger())
	server.Handle("double", func(ctx context.Context, raw []byte) (any, error) {
		var request struct {
			N int `cbor:"n"`
		}
		if err := codec.Unmarshal(raw, &request); err != nil {
			return nil, err
		}
		return map[string]int{"n": request.N * 2}, nil
	})
	startServer(t, server)
	client := NewServiceClient(server.SocketPath())

	var mu sync.Mutex
	var results []int
	var wg sync.WaitGroup
	for i := range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var result struct {
				N int `cbor:"n"`
			}
			if err := client.Call(context.Background(), "double", map[string]any{"n": i}, &result); err != nil {
				t.Errorf("Call %d: %v", i, err)
				return
			}
			mu.Lock()
			results = append(results, result.N)
			mu.Unlock()
		}()
	}
	wg.Wait()

	sort.Ints(results)
	for i, got := range results {
		if got != i*2 {
			t.Errorf("results[%d] = %d, want %d", i, got, i*2)
		}
	}
}
