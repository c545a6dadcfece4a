// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads the userprefs configuration file.
//
// The file is named by the USERPREFS_CONFIG environment variable (via
// [Load]) or a --config flag (via [LoadFile]). There is no search path.
// Files ending in .json or .jsonc are parsed as JSON with comments and
// trailing commas allowed; everything else is YAML.
//
// An environment section (development, staging, production) overrides
// base values when [Config].Environment matches it. Path fields expand
// ${HOME}, ${XDG_RUNTIME_DIR}, and ${VAR:-default} after loading.
//
// Durations are written as Go duration strings ("400ms", "30s") and
// read back through accessor methods so a malformed value is reported
// by [Config.Validate] rather than at first use.
package config
