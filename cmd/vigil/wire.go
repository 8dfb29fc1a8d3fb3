// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vigil Contributors

package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/vigil-dev/vigil/internal/config"
	"github.com/vigil-dev/vigil/internal/notify"
	"github.com/vigil-dev/vigil/internal/server"
	"github.com/vigil-dev/vigil/internal/store"
	"github.com/vigil-dev/vigil/internal/watchdog"
	vigilerr "github.com/vigil-dev/vigil/pkg/errors"
)

// App holds all wired subsystems and manages their lifecycle.
type App struct {
	Server  *server.Server
	Service *watchdog.Service
	Monitor *watchdog.Monitor
	Probes  *watchdog.Probes
	Store   store.Store
}

// WireApp creates all subsystems and wires them together.
func WireApp(cfg *config.Config) (*App, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, vigilerr.Errorf(vigilerr.CodeCLISetupFailure, "creating data directory: %w", err)
	}

	// 1. State store and its cross-process lock.
	st, locker, err := store.New(store.StorageConfig{
		Backend:   cfg.Storage.Backend,
		Dir:       cfg.DataDir,
		StateFile: cfg.StateFile,
	})
	if err != nil {
		return nil, vigilerr.Wrap(err, vigilerr.CodeCLISetupFailure, "creating state store")
	}

	// 2. Notification dispatcher.
	dispatcher := notify.NewDispatcher()
	if cfg.Notify.WebhookURL != "" {
		dispatcher.Register(notify.NewWebhookChannel(cfg.Notify.WebhookURL, cfg.Notify.SendTimeout))
	} else {
		slog.Warn("no webhook URL configured — alert notifications will be dropped")
	}

	// 3. Core service, monitor loop, probe evaluator.
	svc, err := watchdog.NewService(st, locker, dispatcher, cfg.Watchdog)
	if err != nil {
		_ = st.Close()
		return nil, vigilerr.Wrap(err, vigilerr.CodeCLISetupFailure, "creating watchdog service")
	}

	mon := watchdog.NewMonitor(svc, dispatcher)
	probes := watchdog.NewProbes(svc, mon)

	// 4. HTTP server.
	srv, err := server.New(server.Config{
		ListenAddr: cfg.Listen,
		Version:    version,
	}, svc, probes)
	if err != nil {
		_ = st.Close()
		return nil, vigilerr.Wrap(err, vigilerr.CodeCLISetupFailure, "creating server")
	}

	return &App{
		Server:  srv,
		Service: svc,
		Monitor: mon,
		Probes:  probes,
		Store:   st,
	}, nil
}

// Start launches the monitor loop and runs the HTTP server until the
// context is cancelled.
func (a *App) Start(ctx context.Context) error {
	a.Monitor.Start(ctx)
	return a.Server.Start(ctx)
}

// Close releases all resources held by the app.
func (a *App) Close() error {
	if a.Store != nil {
		return a.Store.Close()
	}
	return nil
}
