// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/userprefs/lib/config"
	"github.com/bureau-foundation/userprefs/lib/facade"
	"github.com/bureau-foundation/userprefs/lib/prefs"
	"github.com/bureau-foundation/userprefs/lib/service"
)

// callTimeout bounds the socket round trips of one client command.
const callTimeout = 30 * time.Second

// connection holds the flags that locate the daemon socket.
type connection struct {
	configPath string
	socketPath string
}

func (c *connection) addFlags(flagSet *pflag.FlagSet) {
	flagSet.StringVar(&c.configPath, "config", "", "config file (default $"+config.EnvironmentVariable+")")
	flagSet.StringVar(&c.socketPath, "socket", "", "daemon socket (default from config)")
}

// remote returns a facade client for the configured socket.
func (c *connection) remote() (*facade.Remote, error) {
	socketPath := c.socketPath
	if socketPath == "" {
		cfg, err := config.Resolve(c.configPath)
		if err != nil {
			return nil, err
		}
		socketPath = cfg.SocketPath
	}
	return facade.NewRemote(service.NewServiceClient(socketPath)), nil
}

// signalContext ends on interrupt or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// clientSpec describes a command that talks to the daemon.
type clientSpec struct {
	name    string
	summary string

	// args are the required positional arguments.
	args []string

	// rest, when set, names a repeatable trailing argument.
	rest string

	flags func(*pflag.FlagSet)
	run   func(ctx context.Context, remote *facade.Remote, args []string) error
}

func clientCommand(definition clientSpec) *Command {
	var conn connection
	usage := "userprefs " + definition.name
	for _, name := range definition.args {
		usage += " <" + name + ">"
	}
	if definition.rest != "" {
		usage += " [" + definition.rest + "...]"
	}
	usage += " [flags]"

	return &Command{
		Name:    definition.name,
		Summary: definition.summary,
		Usage:   usage,
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet(definition.name, pflag.ContinueOnError)
			conn.addFlags(flagSet)
			if definition.flags != nil {
				definition.flags(flagSet)
			}
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) < len(definition.args) || (definition.rest == "" && len(args) > len(definition.args)) {
				return fmt.Errorf("wrong number of arguments\n\nUsage: %s", usage)
			}
			remote, err := conn.remote()
			if err != nil {
				return err
			}
			ctx, stop := signalContext()
			defer stop()
			ctx, cancel := context.WithTimeout(ctx, callTimeout)
			defer cancel()
			return definition.run(ctx, remote, args)
		},
	}
}

func (a *app) getCommand() *Command {
	return clientCommand(clientSpec{
		name:    "get",
		summary: "Print a user's preferences in a room",
		args:    []string{"room", "user"},
		run: func(ctx context.Context, remote *facade.Remote, args []string) error {
			blob, err := remote.GetFromRoom(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			return printJSON(a.stdout, blob)
		},
	})
}

func (a *app) getSharedCommand() *Command {
	return clientCommand(clientSpec{
		name:    "get-shared",
		summary: "Print the preferences a user shared to a room",
		args:    []string{"room", "user"},
		run: func(ctx context.Context, remote *facade.Remote, args []string) error {
			blob, err := remote.GetSharedFromRoom(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			return printJSON(a.stdout, blob)
		},
	})
}

func (a *app) setCommand() *Command {
	var document string
	return clientCommand(clientSpec{
		name:    "set",
		summary: "Merge keys into a user's preferences in a room",
		args:    []string{"room", "user"},
		rest:    "key=value",
		flags: func(flagSet *pflag.FlagSet) {
			flagSet.StringVar(&document, "json", "", "JSON object merged before key=value arguments")
		},
		run: func(ctx context.Context, remote *facade.Remote, args []string) error {
			partial, err := parseAssignments(document, args[2:])
			if err != nil {
				return err
			}
			if len(partial) == 0 {
				return fmt.Errorf("nothing to set: pass key=value arguments or --json")
			}
			return remote.SetInRoom(ctx, args[0], args[1], partial)
		},
	})
}

// parseAssignments builds a partial blob from a JSON object and
// key=value pairs. A value that parses as JSON keeps its JSON type;
// anything else is a string.
func parseAssignments(document string, assignments []string) (prefs.Blob, error) {
	partial := prefs.Blob{}
	if document != "" {
		if err := json.Unmarshal([]byte(document), &partial); err != nil {
			return nil, fmt.Errorf("--json must be a JSON object: %w", err)
		}
	}
	for _, assignment := range assignments {
		key, value, ok := strings.Cut(assignment, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid assignment %q: want key=value", assignment)
		}
		var decoded any
		if err := json.Unmarshal([]byte(value), &decoded); err != nil {
			decoded = value
		}
		partial[key] = decoded
	}
	return partial, nil
}

func (a *app) setColorCommand() *Command {
	var room string
	return clientCommand(clientSpec{
		name:    "set-color",
		summary: "Set a user's color in a room (default: the current space)",
		args:    []string{"user", "color"},
		flags: func(flagSet *pflag.FlagSet) {
			flagSet.StringVar(&room, "room", "", "room ID (default: the current space)")
		},
		run: func(ctx context.Context, remote *facade.Remote, args []string) error {
			return remote.SetColor(ctx, args[0], args[1], room)
		},
	})
}

func (a *app) shareCommand() *Command {
	return clientCommand(clientSpec{
		name:    "share",
		summary: "Share preferences to a room (accepted, has no effect)",
		args:    []string{"room", "user"},
		run: func(ctx context.Context, remote *facade.Remote, args []string) error {
			return remote.ShareToRoom(ctx, args[0], args[1])
		},
	})
}

func (a *app) accountCommand() *Command {
	var (
		setColor string
		publish  bool
	)
	return clientCommand(clientSpec{
		name:    "account",
		summary: "Show or set the local user's account color",
		flags: func(flagSet *pflag.FlagSet) {
			flagSet.StringVar(&setColor, "set", "", "store this color in account data")
			flagSet.BoolVar(&publish, "publish", false, "also publish the color to the current space")
		},
		run: func(ctx context.Context, remote *facade.Remote, _ []string) error {
			if setColor != "" {
				if err := remote.SetAccountColor(ctx, setColor); err != nil {
					return err
				}
			}
			if publish {
				color := setColor
				if color == "" {
					stored, found, err := remote.AccountColor(ctx)
					if err != nil {
						return err
					}
					if !found {
						return fmt.Errorf("no account color to publish")
					}
					color = stored
				}
				roomID, published, err := remote.PublishColor(ctx, color)
				if err != nil {
					return err
				}
				if !published {
					return fmt.Errorf("no current space: select one with 'userprefs use-space'")
				}
				fmt.Fprintf(a.stderr, "Published to %s\n", roomID)
			}

			color, found, err := remote.AccountColor(ctx)
			if err != nil {
				return err
			}
			return printJSON(a.stdout, facade.AccountColorResponse{Color: color, Found: found})
		},
	})
}

func (a *app) spacesCommand() *Command {
	return clientCommand(clientSpec{
		name:    "spaces",
		summary: "List joined spaces (* marks the current one)",
		run: func(ctx context.Context, remote *facade.Remote, _ []string) error {
			spaces, err := remote.Spaces(ctx)
			if err != nil {
				return err
			}
			current, err := remote.CurrentSpace(ctx)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(a.stdout, 2, 0, 3, ' ', 0)
			for _, space := range spaces {
				marker := " "
				if current.Found && current.RoomID == space.RoomID {
					marker = "*"
				}
				fmt.Fprintf(tw, "%s %s\t%s\n", marker, space.Name, space.RoomID)
			}
			return tw.Flush()
		},
	})
}

func (a *app) useSpaceCommand() *Command {
	return clientCommand(clientSpec{
		name:    "use-space",
		summary: "Select the current space by name (\"home\" clears it)",
		args:    []string{"label"},
		run: func(ctx context.Context, remote *facade.Remote, args []string) error {
			if err := remote.UseSpace(ctx, args[0]); err != nil {
				return err
			}
			current, err := remote.CurrentSpace(ctx)
			if err != nil {
				return err
			}
			return printJSON(a.stdout, current)
		},
	})
}
