// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vigil Contributors

package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/vigil-dev/vigil/internal/config"
	vigilerr "github.com/vigil-dev/vigil/pkg/errors"
)

func newStartCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the vigil monitor",
		Long:  "Load configuration, open the state store, launch the monitor loop, and serve the HTTP endpoints.",
		RunE:  runStart,
	}

	cmd.Flags().String("listen", "", "override listen address (host:port)")
	_ = viper.BindPFlag("listen", cmd.Flags().Lookup("listen"))

	return cmd
}

func runStart(cmd *cobra.Command, _ []string) error {
	cfg, err := config.FromViper(viper.GetViper())
	if err != nil {
		return err
	}

	setupLogging(cfg.Log.Level)

	app, err := WireApp(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			slog.Error("closing app", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("starting vigil",
		"listen", cfg.Listen,
		"backend", cfg.Storage.Backend,
		"timeout", cfg.Watchdog.Timeout,
		"expected_alertname", cfg.Watchdog.ExpectedAlertname)

	if err := app.Start(ctx); err != nil {
		return vigilerr.Wrap(err, vigilerr.CodeServerStartFailure, "running server")
	}

	slog.Info("vigil stopped")
	return nil
}

func setupLogging(level string) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})))
}
