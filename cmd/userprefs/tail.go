// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"errors"
	"fmt"
	"io"
	"regexp"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/muesli/termenv"
	"github.com/spf13/pflag"

	"github.com/bureau-foundation/userprefs/lib/config"
	"github.com/bureau-foundation/userprefs/lib/recordlog"
	"github.com/bureau-foundation/userprefs/lib/timeline"
)

var hexColor = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

func (a *app) tailCommand() *Command {
	var (
		configPath string
		path       string
		limit      int
		colorMode  string
	)
	return &Command{
		Name:    "tail",
		Summary: "Print recorded messages with sender colors",
		Description: `Print the enrichment records the daemon wrote to timeline.record_path.

Each line shows the room, the sender's display name in their room color
(falling back to the account color for your own messages), and the
message body.`,
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("tail", pflag.ContinueOnError)
			flagSet.StringVar(&configPath, "config", "", "config file (default $"+config.EnvironmentVariable+")")
			flagSet.StringVar(&path, "file", "", "record log (default timeline.record_path)")
			flagSet.IntVarP(&limit, "lines", "n", 20, "number of records to print (0 for all)")
			flagSet.StringVar(&colorMode, "color", "auto", "auto, always, or never")
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("unexpected argument: %s", args[0])
			}
			if path == "" {
				cfg, err := config.Resolve(configPath)
				if err != nil {
					return err
				}
				if cfg.Timeline.RecordPath == "" {
					return fmt.Errorf("no record log: set timeline.record_path or pass --file")
				}
				path = cfg.Timeline.RecordPath
			}

			renderer, err := newRenderer(a.stdout, colorMode)
			if err != nil {
				return err
			}
			records, err := lastRecords(path, limit)
			if err != nil {
				return err
			}
			width := terminalWidth(a.stdout)
			for _, record := range records {
				fmt.Fprintln(a.stdout, formatRecord(renderer, record, width, time.Local))
			}
			return nil
		},
	}
}

// newRenderer returns a lipgloss renderer for w with the color profile
// forced by mode ("always", "never") or detected ("auto").
func newRenderer(w io.Writer, mode string) (*lipgloss.Renderer, error) {
	renderer := lipgloss.NewRenderer(w)
	switch mode {
	case "auto":
	case "always":
		renderer.SetColorProfile(termenv.ANSI256)
	case "never":
		renderer.SetColorProfile(termenv.Ascii)
	default:
		return nil, fmt.Errorf("--color must be auto, always, or never: %q", mode)
	}
	return renderer, nil
}

// lastRecords reads the log at path and keeps the final limit records
// (all of them when limit is 0).
func lastRecords(path string, limit int) ([]timeline.Enrichment, error) {
	reader, err := recordlog.Open(path)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	var records []timeline.Enrichment
	for {
		var record timeline.Enrichment
		err := reader.Next(&record)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		records = append(records, record)
		if limit > 0 && len(records) > limit {
			records = records[1:]
		}
	}
	return records, nil
}

// formatRecord renders one record as a single line, truncated to width
// when width is positive.
func formatRecord(renderer *lipgloss.Renderer, record timeline.Enrichment, width int, location *time.Location) string {
	room := record.RoomName
	if room == "" {
		room = record.RoomID
	}
	name := record.DisplayName
	if name == "" {
		name = record.Sender
	}

	nameStyle := renderer.NewStyle().Bold(true)
	if color := record.Color(); hexColor.MatchString(color) {
		nameStyle = nameStyle.Foreground(lipgloss.Color(color))
	}
	faint := renderer.NewStyle().Faint(true)

	observed := time.UnixMilli(record.ObservedAtMS).In(location).Format("15:04:05")
	line := fmt.Sprintf("%s %s %s: %s",
		faint.Render(observed),
		faint.Render("["+room+"]"),
		nameStyle.Render(name),
		record.Body,
	)
	if width > 0 {
		line = ansi.Truncate(line, width, "…")
	}
	return line
}
