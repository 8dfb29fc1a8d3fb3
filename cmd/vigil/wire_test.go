// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vigil Contributors

package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vigil-dev/vigil/internal/config"
)

func testAppConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Listen:    "127.0.0.1:0",
		DataDir:   t.TempDir(),
		StateFile: "watchdog_state.json",
		Storage:   config.StorageConfig{Backend: "memory"},
		Watchdog: config.WatchdogConfig{
			Timeout:           time.Hour,
			ExpectedAlertname: "Watchdog",
			ResendInterval:    6 * time.Hour,
		},
		Notify: config.NotifyConfig{SendTimeout: 10 * time.Second},
		Log:    config.LogConfig{Level: "info"},
	}
}

func TestWireAppMemoryBackend(t *testing.T) {
	app, err := WireApp(testAppConfig(t))
	require.NoError(t, err)
	defer app.Close()

	assert.NotNil(t, app.Server)
	assert.NotNil(t, app.Service)
	assert.NotNil(t, app.Monitor)
	assert.NotNil(t, app.Probes)
}

func TestWireAppFileBackend(t *testing.T) {
	cfg := testAppConfig(t)
	cfg.Storage.Backend = "file"

	app, err := WireApp(cfg)
	require.NoError(t, err)
	defer app.Close()

	assert.NoError(t, app.Service.Initialize())
}

func TestWireAppUnknownBackend(t *testing.T) {
	cfg := testAppConfig(t)
	cfg.Storage.Backend = "etcd"

	_, err := WireApp(cfg)
	assert.Error(t, err)
}

func TestVersionCommand(t *testing.T) {
	t.Cleanup(viper.Reset)

	var out bytes.Buffer
	root := NewRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"version"})

	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "vigil dev")
}

func TestRootRejectsMissingConfigFile(t *testing.T) {
	t.Cleanup(viper.Reset)

	root := NewRootCmd()
	root.SetArgs([]string{"version", "--config", "/nonexistent/vigil.yaml"})

	assert.Error(t, root.Execute())
}
