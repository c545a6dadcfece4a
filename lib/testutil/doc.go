// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil holds helpers shared by the module's tests.
//
// [RequireReceive], [RequireSend], and [RequireClosed] wrap channel
// operations in a wall-clock safety valve so a broken test fails
// instead of hanging. They are the only place tests wait on real time;
// everything else is driven by clock.Fake.
//
// [SocketDir] returns a short directory under /tmp for Unix sockets,
// whose paths are limited to 108 bytes.
package testutil
