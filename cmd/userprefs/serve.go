// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/userprefs/lib/clienthandle"
	"github.com/bureau-foundation/userprefs/lib/config"
	"github.com/bureau-foundation/userprefs/lib/facade"
	"github.com/bureau-foundation/userprefs/lib/hostclient"
	"github.com/bureau-foundation/userprefs/lib/prefs"
	"github.com/bureau-foundation/userprefs/lib/recordlog"
	"github.com/bureau-foundation/userprefs/lib/ref"
	"github.com/bureau-foundation/userprefs/lib/scope"
	"github.com/bureau-foundation/userprefs/lib/sealed"
	"github.com/bureau-foundation/userprefs/lib/service"
	"github.com/bureau-foundation/userprefs/lib/timeline"
	"github.com/bureau-foundation/userprefs/lib/version"
	"github.com/bureau-foundation/userprefs/messaging"
)

func (a *app) serveCommand() *Command {
	var configPath string
	return &Command{
		Name:    "serve",
		Summary: "Run the preference daemon",
		Description: `Run the preference daemon.

The daemon syncs with the homeserver using the configured access token,
observes incoming messages, and serves the matesUserData operations on
the configured Unix socket until interrupted.`,
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("serve", pflag.ContinueOnError)
			flagSet.StringVar(&configPath, "config", "", "config file (default $"+config.EnvironmentVariable+")")
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("unexpected argument: %s", args[0])
			}
			cfg, err := config.Resolve(configPath)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, newLogger(a.stderr, cfg.LogLevel()))
		},
	}
}

// serve runs the daemon until ctx ends, the sync loop fails, or the
// socket server fails.
func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	token, err := sealed.ReadTokenFile(cfg.AccessTokenFile, cfg.IdentityFile)
	if err != nil {
		return err
	}

	var userID ref.UserID
	if cfg.UserID != "" {
		if userID, err = ref.ParseUserID(cfg.UserID); err != nil {
			token.Close()
			return fmt.Errorf("user_id: %w", err)
		}
	}

	matrixClient, err := messaging.NewClient(messaging.ClientConfig{
		HomeserverURL: cfg.HomeserverURL,
		Logger:        logger.With("component", "messaging"),
	})
	if err != nil {
		token.Close()
		return err
	}
	session, err := matrixClient.SessionFromToken(userID, token)
	if err != nil {
		token.Close()
		return err
	}
	defer session.Close()

	if userID, err = session.ResolveUserID(ctx); err != nil {
		return fmt.Errorf("checking access token: %w", err)
	}
	logger = logger.With("user_id", userID)
	logger.Info("starting userprefs", "version", version.Info(), "homeserver", cfg.HomeserverURL)

	syncClient, err := hostclient.NewSyncClient(hostclient.SyncConfig{
		Session:       session,
		Timeout:       cfg.SyncTimeout(),
		BackfillLimit: cfg.Sync.BackfillLimit,
		Logger:        logger.With("component", "sync"),
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	syncDone := make(chan error, 1)
	go func() {
		syncDone <- syncClient.Run(ctx)
		cancel()
	}()

	handle := clienthandle.Poll(ctx, syncClient.Accessor, clienthandle.PollConfig{
		Interval: cfg.PollInterval(),
		Logger:   logger.With("component", "handle"),
	})

	labels := scope.NewMutableLabel(cfg.Scope.Space)
	store, err := prefs.NewStore(prefs.StoreConfig{
		Handle: handle,
		Scopes: scope.AmbientResolver{
			Labels:    labels,
			HomeLabel: cfg.Scope.HomeLabel,
		},
		EventType: ref.EventType(cfg.Preferences.EventType),
		Logger:    logger.With("component", "prefs"),
	})
	if err != nil {
		return err
	}

	sink, closeSink, err := timelineSink(cfg, logger)
	if err != nil {
		return err
	}
	defer closeSink()

	observer, err := timeline.NewObserver(timeline.ObserverConfig{
		Handle:       handle,
		Store:        store,
		Sink:         sink,
		AvatarSize:   cfg.Timeline.AvatarSize,
		AvatarMethod: cfg.Timeline.AvatarMethod,
		Logger:       logger.With("component", "timeline"),
	})
	if err != nil {
		return err
	}
	observerDone := make(chan error, 1)
	go func() { observerDone <- observer.Run(ctx) }()

	if err := os.MkdirAll(filepath.Dir(cfg.SocketPath), 0o700); err != nil {
		return fmt.Errorf("creating socket directory: %w", err)
	}
	server := service.NewSocketServer(cfg.SocketPath, logger.With("component", "socket"))
	serveDone := make(chan error, 1)
	go func() {
		api, err := facade.Await(ctx, handle, store)
		if err != nil {
			serveDone <- nil
			return
		}
		facade.Register(server, api, labels)
		logger.Info("facade ready", "entry_point", facade.EntryPoint, "socket", cfg.SocketPath)
		err = server.Serve(ctx)
		if err != nil {
			logger.Error("socket server failed", "error", err)
			cancel()
		}
		serveDone <- err
	}()

	var errs []error
	if err := <-syncDone; err != nil && !isShutdown(ctx, err) {
		errs = append(errs, fmt.Errorf("sync: %w", err))
	}
	if err := <-observerDone; err != nil && !isShutdown(ctx, err) {
		errs = append(errs, fmt.Errorf("timeline: %w", err))
	}
	if err := <-serveDone; err != nil {
		errs = append(errs, fmt.Errorf("socket: %w", err))
	}
	return errors.Join(errs...)
}

// isShutdown reports whether err is only ctx ending, by cancellation or
// by deadline.
func isShutdown(ctx context.Context, err error) bool {
	return ctx.Err() != nil && errors.Is(err, ctx.Err())
}

// timelineSink logs every record and, when timeline.record_path is set,
// appends it to the record log.
func timelineSink(cfg *config.Config, logger *slog.Logger) (timeline.Sink, func(), error) {
	logSink := timeline.LogSink{Logger: logger.With("component", "timeline")}
	if cfg.Timeline.RecordPath == "" {
		return logSink, func() {}, nil
	}

	writer, err := recordlog.Create(cfg.Timeline.RecordPath)
	if err != nil {
		return nil, nil, err
	}
	closeWriter := func() {
		if err := writer.Close(); err != nil {
			logger.Warn("closing record log", "path", cfg.Timeline.RecordPath, "error", err)
		}
	}
	return timeline.MultiSink{logSink, timeline.RecordSink{Writer: writer}}, closeWriter, nil
}
