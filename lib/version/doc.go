// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package version reports build information for the userprefs binary.
//
// Release builds inject the variables with -ldflags -X:
//
//	go build -ldflags "-X github.com/bureau-foundation/userprefs/lib/version.GitCommit=$(git rev-parse --short HEAD)"
//
// When GitCommit is not injected, the VCS revision recorded by the Go
// toolchain in the binary's build info is used instead.
package version
