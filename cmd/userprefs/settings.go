// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/pflag"

	"github.com/bureau-foundation/userprefs/lib/settingsui"
)

func (a *app) settingsCommand() *Command {
	var conn connection
	return &Command{
		Name:    "settings",
		Summary: "Edit the account color interactively",
		Description: `Edit the account color interactively.

Save stores the color in account data. Publish writes it to the current
space so other members see it. Tab cycles the current space.`,
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("settings", pflag.ContinueOnError)
			conn.addFlags(flagSet)
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("unexpected argument: %s", args[0])
			}
			remote, err := conn.remote()
			if err != nil {
				return err
			}
			ctx, stop := signalContext()
			defer stop()
			return settingsui.Run(ctx, remote, tea.WithOutput(a.stdout))
		},
	}
}
