// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/bureau-foundation/userprefs/lib/config"
	"github.com/bureau-foundation/userprefs/lib/sealed"
	"github.com/bureau-foundation/userprefs/lib/secret"
	"github.com/bureau-foundation/userprefs/messaging"
)

func (a *app) loginCommand() *Command {
	var (
		configPath    string
		homeserverURL string
		passwordFile  string
		outputPath    string
		deviceName    string
		recipients    []string
	)
	return &Command{
		Name:    "login",
		Summary: "Log in and write the access token file",
		Description: `Log in with a password and write the access token to access_token_file.

With --recipient the token is age-encrypted to the given public keys;
the daemon then needs identity_file to read it. The file is written
with mode 0600.`,
		Usage: "userprefs login <username> [flags]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("login", pflag.ContinueOnError)
			flagSet.StringVar(&configPath, "config", "", "config file (default $"+config.EnvironmentVariable+")")
			flagSet.StringVar(&homeserverURL, "homeserver", "", "homeserver URL (default homeserver_url)")
			flagSet.StringVar(&passwordFile, "password-file", "", "file containing the password (default: prompt)")
			flagSet.StringVar(&outputPath, "output", "", "token file (default access_token_file)")
			flagSet.StringVar(&deviceName, "device-name", "userprefs", "device display name")
			flagSet.StringArrayVar(&recipients, "recipient", nil, "age recipient (age1...) to encrypt the token to; repeatable")
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("username is required\n\nUsage: userprefs login <username> [flags]")
			}
			username := args[0]

			cfg, err := config.Resolve(configPath)
			if err != nil {
				return err
			}
			if homeserverURL == "" {
				homeserverURL = cfg.HomeserverURL
			}
			if homeserverURL == "" {
				return fmt.Errorf("no homeserver: set homeserver_url or pass --homeserver")
			}
			if outputPath == "" {
				outputPath = cfg.AccessTokenFile
			}

			password, err := readPassword(passwordFile)
			if err != nil {
				return err
			}
			defer password.Close()

			ctx, stop := signalContext()
			defer stop()
			ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
			defer cancel()

			client, err := messaging.NewClient(messaging.ClientConfig{
				HomeserverURL: homeserverURL,
				Logger:        newLogger(a.stderr, cfg.LogLevel()),
			})
			if err != nil {
				return err
			}
			session, err := client.Login(ctx, username, password, deviceName)
			if err != nil {
				return err
			}
			defer session.Close()

			if err := writeToken(outputPath, session.AccessToken(), recipients); err != nil {
				return err
			}
			fmt.Fprintf(a.stderr, "Logged in as %s\n", session.UserID())
			fmt.Fprintf(a.stderr, "Token written to %s\n", outputPath)
			return nil
		},
	}
}

// writeToken writes token to path with mode 0600, sealed to recipients
// when any are given.
func writeToken(path string, token *secret.Buffer, recipients []string) error {
	data := token.Bytes()
	if len(recipients) > 0 {
		sealedToken, err := sealed.SealToken(token, recipients)
		if err != nil {
			return err
		}
		data = sealedToken
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating token directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing token file: %w", err)
	}
	return nil
}

// readPassword reads the password from passwordFile, or prompts on the
// terminal when passwordFile is empty or "-".
func readPassword(passwordFile string) (*secret.Buffer, error) {
	if passwordFile != "" && passwordFile != "-" {
		data, err := os.ReadFile(passwordFile)
		if err != nil {
			return nil, fmt.Errorf("reading password file: %w", err)
		}
		return protectPassword(data)
	}

	stdin := int(os.Stdin.Fd())
	if !term.IsTerminal(stdin) {
		return nil, fmt.Errorf("no terminal available for the password prompt (use --password-file)")
	}
	fmt.Fprint(os.Stderr, "Password: ")
	data, err := term.ReadPassword(stdin)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("reading password: %w", err)
	}
	return protectPassword(data)
}

// protectPassword strips trailing newlines, moves data into a
// secret.Buffer, and zeroes data.
func protectPassword(data []byte) (*secret.Buffer, error) {
	defer func() {
		for index := range data {
			data[index] = 0
		}
	}()

	trimmed := data
	for len(trimmed) > 0 && (trimmed[len(trimmed)-1] == '\n' || trimmed[len(trimmed)-1] == '\r') {
		trimmed = trimmed[:len(trimmed)-1]
	}
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("password is empty")
	}
	return secret.NewFromBytes(trimmed)
}
