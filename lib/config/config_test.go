// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Environment != Development {
		t.Errorf("environment = %s, want development", cfg.Environment)
	}
	if cfg.Preferences.EventType != "dev.mates.user_prefs" {
		t.Errorf("event_type = %s", cfg.Preferences.EventType)
	}
	if cfg.PollInterval() != 400*time.Millisecond {
		t.Errorf("poll interval = %v, want 400ms", cfg.PollInterval())
	}
	if cfg.Timeline.AvatarSize != 48 || cfg.Timeline.AvatarMethod != "crop" {
		t.Errorf("avatar = %d %s, want 48 crop", cfg.Timeline.AvatarSize, cfg.Timeline.AvatarMethod)
	}
	if cfg.Scope.HomeLabel != "home" {
		t.Errorf("home label = %q", cfg.Scope.HomeLabel)
	}
}

func TestLoadRequiresEnvironmentVariable(t *testing.T) {
	t.Setenv(EnvironmentVariable, "")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error when USERPREFS_CONFIG is not set")
	}
	if !strings.HasPrefix(err.Error(), "USERPREFS_CONFIG environment variable not set") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestLoadYAML(t *testing.T) {
	path := writeConfig(t, "userprefs.yaml", `
environment: staging
homeserver_url: https://matrix.example.org
user_id: "@alice:example.org"
socket_path: /test/userprefs.sock
scope:
  space: Team
handle:
  poll_interval: 100ms
timeline:
  record_path: /var/log/records.cbor.zst
`)
	t.Setenv(EnvironmentVariable, path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Environment != Staging {
		t.Errorf("environment = %s, want staging", cfg.Environment)
	}
	if cfg.SocketPath != "/test/userprefs.sock" {
		t.Errorf("socket_path = %s", cfg.SocketPath)
	}
	if cfg.Scope.Space != "Team" {
		t.Errorf("scope.space = %q", cfg.Scope.Space)
	}
	if cfg.PollInterval() != 100*time.Millisecond {
		t.Errorf("poll interval = %v", cfg.PollInterval())
	}
	// Untouched fields keep their defaults.
	if cfg.Timeline.AvatarSize != 48 {
		t.Errorf("avatar_size = %d, want default 48", cfg.Timeline.AvatarSize)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestLoadJSONC(t *testing.T) {
	path := writeConfig(t, "userprefs.jsonc", `{
  // local homeserver
  "homeserver_url": "http://localhost:8008",
  "preferences": {"event_type": "org.example.prefs",},
  "timeline": {"avatar_size": 64, "avatar_method": "scale"},
}`)

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.HomeserverURL != "http://localhost:8008" {
		t.Errorf("homeserver_url = %q", cfg.HomeserverURL)
	}
	if cfg.Preferences.EventType != "org.example.prefs" {
		t.Errorf("event_type = %q", cfg.Preferences.EventType)
	}
	if cfg.Timeline.AvatarSize != 64 || cfg.Timeline.AvatarMethod != "scale" {
		t.Errorf("timeline = %+v", cfg.Timeline)
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	path := writeConfig(t, "userprefs.yaml", `
environment: development
homeserver_url: https://matrix.example.org
development:
  homeserver_url: http://localhost:8008
  sync:
    timeout: 5s
    backfill_limit: 20
  logging:
    level: debug
`)
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.HomeserverURL != "http://localhost:8008" {
		t.Errorf("homeserver_url = %q, want override", cfg.HomeserverURL)
	}
	if cfg.SyncTimeout() != 5*time.Second {
		t.Errorf("sync timeout = %v", cfg.SyncTimeout())
	}
	if cfg.Sync.BackfillLimit != 20 {
		t.Errorf("backfill_limit = %d", cfg.Sync.BackfillLimit)
	}
	if cfg.LogLevel() != slog.LevelDebug {
		t.Errorf("log level = %v", cfg.LogLevel())
	}
}

func TestProductionDefaultsQuieterLogging(t *testing.T) {
	path := writeConfig(t, "userprefs.yaml", "environment: production\nhomeserver_url: https://m.example.org\n")
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.LogLevel() != slog.LevelWarn {
		t.Errorf("log level = %v, want warn", cfg.LogLevel())
	}
}

func TestExpandVariables(t *testing.T) {
	t.Setenv("HOME", "/home/tester")
	t.Setenv("XDG_RUNTIME_DIR", "")
	t.Setenv("USERPREFS_TEST_DIR", "/srv/prefs")

	path := writeConfig(t, "userprefs.yaml", `
homeserver_url: https://matrix.example.org
identity_file: ${USERPREFS_TEST_DIR}/key.txt
timeline:
  record_path: ${UNSET_VARIABLE_FOR_TEST:-/fallback}/records.cbor
`)
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.AccessTokenFile != "/home/tester/.config/userprefs/token" {
		t.Errorf("access_token_file = %q", cfg.AccessTokenFile)
	}
	if cfg.SocketPath != "/tmp/userprefs.sock" {
		t.Errorf("socket_path = %q", cfg.SocketPath)
	}
	if cfg.IdentityFile != "/srv/prefs/key.txt" {
		t.Errorf("identity_file = %q", cfg.IdentityFile)
	}
	if cfg.Timeline.RecordPath != "/fallback/records.cbor" {
		t.Errorf("record_path = %q", cfg.Timeline.RecordPath)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := Default()
		cfg.HomeserverURL = "https://matrix.example.org"
		cfg.AccessTokenFile = "/token"
		cfg.SocketPath = "/tmp/x.sock"
		return cfg
	}

	if err := valid().Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"environment", func(c *Config) { c.Environment = "moon" }, "invalid environment"},
		{"missing homeserver", func(c *Config) { c.HomeserverURL = "" }, "homeserver_url is required"},
		{"bad homeserver scheme", func(c *Config) { c.HomeserverURL = "ftp://x" }, "homeserver_url must be"},
		{"user id", func(c *Config) { c.UserID = "alice" }, "user_id"},
		{"event type", func(c *Config) { c.Preferences.EventType = "" }, "preferences.event_type"},
		{"poll interval", func(c *Config) { c.Handle.PollInterval = "0s" }, "handle.poll_interval"},
		{"sync timeout", func(c *Config) { c.Sync.Timeout = "soon" }, "sync.timeout"},
		{"avatar size", func(c *Config) { c.Timeline.AvatarSize = 0 }, "timeline.avatar_size"},
		{"avatar method", func(c *Config) { c.Timeline.AvatarMethod = "stretch" }, "timeline.avatar_method"},
		{"log level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			cfg := valid()
			test.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), test.want) {
				t.Errorf("error %q does not mention %q", err, test.want)
			}
		})
	}
}

func TestResolve(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		t.Setenv(EnvironmentVariable, "")
		t.Setenv("XDG_RUNTIME_DIR", "/run/user/1000")

		cfg, err := Resolve("")
		if err != nil {
			t.Fatalf("Resolve: %v", err)
		}
		if cfg.SocketPath != "/run/user/1000/userprefs.sock" {
			t.Errorf("socket path = %q", cfg.SocketPath)
		}
	})

	t.Run("environment variable", func(t *testing.T) {
		path := writeConfig(t, "userprefs.yaml", "socket_path: /tmp/from-env.sock\n")
		t.Setenv(EnvironmentVariable, path)

		cfg, err := Resolve("")
		if err != nil {
			t.Fatalf("Resolve: %v", err)
		}
		if cfg.SocketPath != "/tmp/from-env.sock" {
			t.Errorf("socket path = %q", cfg.SocketPath)
		}
	})

	t.Run("explicit path wins", func(t *testing.T) {
		t.Setenv(EnvironmentVariable, writeConfig(t, "env.yaml", "socket_path: /tmp/env.sock\n"))
		path := writeConfig(t, "flag.yaml", "socket_path: /tmp/flag.sock\n")

		cfg, err := Resolve(path)
		if err != nil {
			t.Fatalf("Resolve: %v", err)
		}
		if cfg.SocketPath != "/tmp/flag.sock" {
			t.Errorf("socket path = %q", cfg.SocketPath)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		if _, err := Resolve(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
			t.Error("expected error for missing file")
		}
	})
}
