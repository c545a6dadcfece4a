// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/bureau-foundation/userprefs/lib/ref"
)

// EnvironmentVariable names the config file for [Load].
const EnvironmentVariable = "USERPREFS_CONFIG"

// DefaultEventType is the state event and account data type that holds
// preference blobs.
const DefaultEventType = "dev.mates.user_prefs"

// Environment represents the deployment environment.
type Environment string

const (
	Development Environment = "development"
	Staging     Environment = "staging"
	Production  Environment = "production"
)

// Config is the complete userprefs configuration.
type Config struct {
	Environment Environment `yaml:"environment"`

	// HomeserverURL is the base URL of the Matrix homeserver.
	HomeserverURL string `yaml:"homeserver_url"`

	// UserID is the local Matrix user. Optional: when empty the daemon
	// asks the homeserver (whoami).
	UserID string `yaml:"user_id"`

	// AccessTokenFile holds the access token, plain or age-encrypted.
	AccessTokenFile string `yaml:"access_token_file"`

	// IdentityFile is the age identity that decrypts AccessTokenFile.
	IdentityFile string `yaml:"identity_file"`

	// SocketPath is where the daemon serves the matesUserData facade.
	SocketPath string `yaml:"socket_path"`

	Preferences PreferencesConfig `yaml:"preferences"`
	Scope       ScopeConfig       `yaml:"scope"`
	Handle      HandleConfig      `yaml:"handle"`
	Sync        SyncConfig        `yaml:"sync"`
	Timeline    TimelineConfig    `yaml:"timeline"`
	Logging     LoggingConfig     `yaml:"logging"`

	Development *Overrides `yaml:"development,omitempty"`
	Staging     *Overrides `yaml:"staging,omitempty"`
	Production  *Overrides `yaml:"production,omitempty"`
}

// Overrides holds the fields an environment section may replace.
type Overrides struct {
	HomeserverURL string          `yaml:"homeserver_url,omitempty"`
	SocketPath    string          `yaml:"socket_path,omitempty"`
	Sync          *SyncConfig     `yaml:"sync,omitempty"`
	Timeline      *TimelineConfig `yaml:"timeline,omitempty"`
	Logging       *LoggingConfig  `yaml:"logging,omitempty"`
}

// PreferencesConfig configures where blobs are stored.
type PreferencesConfig struct {
	// EventType is shared by the room state event and the account
	// data entry. Default: dev.mates.user_prefs
	EventType string `yaml:"event_type"`
}

// ScopeConfig configures current-space resolution.
type ScopeConfig struct {
	// HomeLabel is the ambient label that means "no space selected".
	// Compared case-insensitively. Default: home
	HomeLabel string `yaml:"home_label"`

	// Space is the initial ambient label (a space name). Empty means
	// home until a client selects a space.
	Space string `yaml:"space"`
}

// HandleConfig configures client handle resolution.
type HandleConfig struct {
	// PollInterval is how often the handle resolver checks whether the
	// client finished its initial sync. Default: 400ms
	PollInterval string `yaml:"poll_interval"`
}

// SyncConfig configures the /sync loop.
type SyncConfig struct {
	// Timeout is the long-poll hold requested from the server.
	// Default: 30s
	Timeout string `yaml:"timeout"`

	// BackfillLimit is how many historical messages per room are
	// fetched after the initial sync. Zero disables backfill.
	BackfillLimit int `yaml:"backfill_limit"`
}

// TimelineConfig configures the timeline observer.
type TimelineConfig struct {
	// AvatarSize is the thumbnail edge in pixels. Default: 48
	AvatarSize int `yaml:"avatar_size"`

	// AvatarMethod is "crop" or "scale". Default: crop
	AvatarMethod string `yaml:"avatar_method"`

	// RecordPath, when set, receives every enrichment record as CBOR
	// (.zst and .lz4 extensions compress).
	RecordPath string `yaml:"record_path"`
}

// LoggingConfig configures the slog handler.
type LoggingConfig struct {
	// Level is debug, info, warn, or error. Default: info
	Level string `yaml:"level"`
}

// Default returns the configuration every file is loaded on top of.
func Default() *Config {
	return &Config{
		Environment:     Development,
		AccessTokenFile: "${HOME}/.config/userprefs/token",
		IdentityFile:    "",
		SocketPath:      "${XDG_RUNTIME_DIR:-/tmp}/userprefs.sock",
		Preferences: PreferencesConfig{
			EventType: DefaultEventType,
		},
		Scope: ScopeConfig{
			HomeLabel: "home",
		},
		Handle: HandleConfig{
			PollInterval: "400ms",
		},
		Sync: SyncConfig{
			Timeout:       "30s",
			BackfillLimit: 0,
		},
		Timeline: TimelineConfig{
			AvatarSize:   48,
			AvatarMethod: "crop",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads the file named by USERPREFS_CONFIG. It fails when the
// variable is unset.
func Load() (*Config, error) {
	path := os.Getenv(EnvironmentVariable)
	if path == "" {
		return nil, fmt.Errorf("%s environment variable not set; "+
			"set it to the path of your userprefs config file, or use --config", EnvironmentVariable)
	}
	return LoadFile(path)
}

// LoadFile loads the configuration at path on top of [Default], then
// applies the environment section and expands path variables. It does
// not validate.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}
	cfg.applyEnvironmentOverrides()
	cfg.expandVariables()
	return cfg, nil
}

// Resolve loads path when it is set, else the file named by
// USERPREFS_CONFIG when that is set, else returns [Default] with path
// variables expanded. Client commands use it so that a daemon running
// on defaults can be reached without a config file.
func Resolve(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv(EnvironmentVariable)
	}
	if path == "" {
		cfg := Default()
		cfg.expandVariables()
		return cfg, nil
	}
	return LoadFile(path)
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		// JSON is valid YAML once comments and trailing commas are gone.
		data = jsonc.ToJSON(data)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnvironmentOverrides() {
	var overrides *Overrides
	switch c.Environment {
	case Development:
		overrides = c.Development
	case Staging:
		overrides = c.Staging
	case Production:
		overrides = c.Production
		if overrides == nil {
			overrides = &Overrides{Logging: &LoggingConfig{Level: "warn"}}
		}
	}
	if overrides == nil {
		return
	}

	if overrides.HomeserverURL != "" {
		c.HomeserverURL = overrides.HomeserverURL
	}
	if overrides.SocketPath != "" {
		c.SocketPath = overrides.SocketPath
	}
	if overrides.Sync != nil {
		if overrides.Sync.Timeout != "" {
			c.Sync.Timeout = overrides.Sync.Timeout
		}
		// Zero is meaningful (backfill disabled), so always apply.
		c.Sync.BackfillLimit = overrides.Sync.BackfillLimit
	}
	if overrides.Timeline != nil {
		if overrides.Timeline.AvatarSize != 0 {
			c.Timeline.AvatarSize = overrides.Timeline.AvatarSize
		}
		if overrides.Timeline.AvatarMethod != "" {
			c.Timeline.AvatarMethod = overrides.Timeline.AvatarMethod
		}
		if overrides.Timeline.RecordPath != "" {
			c.Timeline.RecordPath = overrides.Timeline.RecordPath
		}
	}
	if overrides.Logging != nil && overrides.Logging.Level != "" {
		c.Logging.Level = overrides.Logging.Level
	}
}

func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME":            os.Getenv("HOME"),
		"XDG_RUNTIME_DIR": os.Getenv("XDG_RUNTIME_DIR"),
	}
	c.AccessTokenFile = expandVars(c.AccessTokenFile, vars)
	c.IdentityFile = expandVars(c.IdentityFile, vars)
	c.SocketPath = expandVars(c.SocketPath, vars)
	c.Timeline.RecordPath = expandVars(c.Timeline.RecordPath, vars)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		name, fallback := parts[1], parts[2]
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return fallback
	})
}

// PollInterval returns handle.poll_interval, or 400ms if it does not
// parse.
func (c *Config) PollInterval() time.Duration {
	return parseDuration(c.Handle.PollInterval, 400*time.Millisecond)
}

// SyncTimeout returns sync.timeout, or 30s if it does not parse.
func (c *Config) SyncTimeout() time.Duration {
	return parseDuration(c.Sync.Timeout, 30*time.Second)
}

func parseDuration(value string, fallback time.Duration) time.Duration {
	duration, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return duration
}

// LogLevel returns logging.level as a slog.Level (info if invalid).
func (c *Config) LogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Logging.Level)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Environment != Development && c.Environment != Staging && c.Environment != Production {
		errs = append(errs, fmt.Errorf("invalid environment: %s", c.Environment))
	}

	if c.HomeserverURL == "" {
		errs = append(errs, fmt.Errorf("homeserver_url is required"))
	} else if parsed, err := url.Parse(c.HomeserverURL); err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		errs = append(errs, fmt.Errorf("homeserver_url must be an http(s) URL: %q", c.HomeserverURL))
	}

	if c.UserID != "" {
		if _, err := ref.ParseUserID(c.UserID); err != nil {
			errs = append(errs, fmt.Errorf("user_id: %w", err))
		}
	}

	if c.AccessTokenFile == "" {
		errs = append(errs, fmt.Errorf("access_token_file is required"))
	}
	if c.SocketPath == "" {
		errs = append(errs, fmt.Errorf("socket_path is required"))
	}
	if c.Preferences.EventType == "" {
		errs = append(errs, fmt.Errorf("preferences.event_type is required"))
	}

	if duration, err := time.ParseDuration(c.Handle.PollInterval); err != nil || duration <= 0 {
		errs = append(errs, fmt.Errorf("handle.poll_interval must be a positive duration: %q", c.Handle.PollInterval))
	}
	if duration, err := time.ParseDuration(c.Sync.Timeout); err != nil || duration < 0 {
		errs = append(errs, fmt.Errorf("sync.timeout must be a non-negative duration: %q", c.Sync.Timeout))
	}
	if c.Sync.BackfillLimit < 0 {
		errs = append(errs, fmt.Errorf("sync.backfill_limit must not be negative"))
	}

	if c.Timeline.AvatarSize <= 0 {
		errs = append(errs, fmt.Errorf("timeline.avatar_size must be positive"))
	}
	if c.Timeline.AvatarMethod != "crop" && c.Timeline.AvatarMethod != "scale" {
		errs = append(errs, fmt.Errorf("timeline.avatar_method must be crop or scale: %q", c.Timeline.AvatarMethod))
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Logging.Level)); err != nil {
		errs = append(errs, fmt.Errorf("logging.level: %w", err))
	}

	return errors.Join(errs...)
}
