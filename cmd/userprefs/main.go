// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Command userprefs runs the preference daemon and talks to it.
//
// "userprefs serve" syncs with the homeserver, resolves the current
// space, observes the timeline, and serves the matesUserData facade on
// a Unix socket. The other subcommands are clients of that socket,
// except "login" (which writes the access token file) and "tail"
// (which reads the enrichment record log).
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/bureau-foundation/userprefs/lib/version"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	return newApp(os.Stdout, os.Stderr).root().Execute(os.Args[1:])
}

// app carries the output streams every command writes to.
type app struct {
	stdout io.Writer
	stderr io.Writer
}

func newApp(stdout, stderr io.Writer) *app {
	return &app{stdout: stdout, stderr: stderr}
}

func (a *app) root() *Command {
	return &Command{
		Name:    "userprefs",
		Summary: "Per-user preferences stored in Matrix",
		Description: `Per-user preferences stored in Matrix rooms and account data.

The daemon ("serve") exposes the matesUserData operations on a Unix
socket. Room-scoped preferences live in a state event keyed by user ID;
global preferences live in account data.`,
		help: a.stderr,
		Subcommands: []*Command{
			a.serveCommand(),
			a.getCommand(),
			a.setCommand(),
			a.setColorCommand(),
			a.shareCommand(),
			a.getSharedCommand(),
			a.accountCommand(),
			a.spacesCommand(),
			a.useSpaceCommand(),
			a.settingsCommand(),
			a.tailCommand(),
			a.loginCommand(),
			a.versionCommand(),
		},
	}
}

func (a *app) versionCommand() *Command {
	return &Command{
		Name:    "version",
		Summary: "Print version information",
		Run: func([]string) error {
			fmt.Fprintf(a.stdout, "userprefs %s\n", version.Full())
			return nil
		},
	}
}
