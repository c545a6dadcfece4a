// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"runtime/debug"
	"strings"
	"testing"
)

func withStamp(t *testing.T, commit, dirty, built string, info *debug.BuildInfo) {
	t.Helper()
	savedCommit, savedDirty, savedBuilt, savedRead := GitCommit, GitDirty, BuildTime, readBuildInfo
	t.Cleanup(func() {
		GitCommit, GitDirty, BuildTime, readBuildInfo = savedCommit, savedDirty, savedBuilt, savedRead
	})
	GitCommit, GitDirty, BuildTime = commit, dirty, built
	readBuildInfo = func() (*debug.BuildInfo, bool) { return info, info != nil }
}

func TestInfoUsesInjectedValues(t *testing.T) {
	withStamp(t, "abc1234", "true", "2026-03-01T00:00:00Z", &debug.BuildInfo{
		Settings: []debug.BuildSetting{{Key: "vcs.revision", Value: "ffffffffffffffff"}},
	})

	if got, want := Info(), Version+" (abc1234-dirty, 2026-03-01T00:00:00Z)"; got != want {
		t.Errorf("Info = %q, want %q", got, want)
	}
	if Commit() != "abc1234" {
		t.Errorf("Commit = %q", Commit())
	}
}

func TestInfoFallsBackToBuildInfo(t *testing.T) {
	withStamp(t, "unknown", "false", "unknown", &debug.BuildInfo{
		Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "0123456789abcdef0123"},
			{Key: "vcs.modified", Value: "true"},
			{Key: "vcs.time", Value: "2026-02-01T12:00:00Z"},
		},
	})

	if got, want := Info(), Version+" (0123456789ab-dirty, 2026-02-01T12:00:00Z)"; got != want {
		t.Errorf("Info = %q, want %q", got, want)
	}
}

func TestInfoWithoutBuildInfo(t *testing.T) {
	withStamp(t, "unknown", "false", "unknown", nil)

	if got, want := Info(), Version+" (unknown, unknown)"; got != want {
		t.Errorf("Info = %q, want %q", got, want)
	}
	if !strings.Contains(Full(), "Platform: ") {
		t.Errorf("Full = %q", Full())
	}
}
