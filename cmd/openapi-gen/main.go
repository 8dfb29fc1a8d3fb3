// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vigil Contributors

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/vigil-dev/vigil/internal/config"
	"github.com/vigil-dev/vigil/internal/notify"
	"github.com/vigil-dev/vigil/internal/server"
	"github.com/vigil-dev/vigil/internal/store"
	"github.com/vigil-dev/vigil/internal/watchdog"
	vigilerr "github.com/vigil-dev/vigil/pkg/errors"
)

func main() {
	spec, err := generateSpec()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	outPath := "api/openapi/spec.json"
	if len(os.Args) > 1 {
		outPath = os.Args[1]
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "error creating output dir: %v\n", err)
		os.Exit(1)
	}

	if err := os.WriteFile(outPath, spec, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "error writing spec: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("OpenAPI spec written to %s\n", outPath)
}

// generateSpec creates a server with all routes registered and extracts the
// OpenAPI spec that huma generates from the Go type annotations. An
// in-memory store backs the service; handlers are never invoked during
// spec generation.
func generateSpec() ([]byte, error) {
	dispatcher := notify.NewDispatcher(notify.NewRecorder())

	svc, err := watchdog.NewService(store.NewMemStore(), store.NopLocker{}, dispatcher,
		config.WatchdogConfig{
			Timeout:           time.Hour,
			ExpectedAlertname: "Watchdog",
			ResendInterval:    6 * time.Hour,
		})
	if err != nil {
		return nil, vigilerr.Wrap(err, vigilerr.CodeCLISetupFailure, "creating service")
	}

	mon := watchdog.NewMonitor(svc, dispatcher)
	probes := watchdog.NewProbes(svc, mon)

	srv, err := server.New(server.Config{ListenAddr: "127.0.0.1:0"}, svc, probes)
	if err != nil {
		return nil, vigilerr.Wrap(err, vigilerr.CodeCLISetupFailure, "creating server")
	}

	return json.MarshalIndent(srv.API().OpenAPI(), "", "  ")
}
