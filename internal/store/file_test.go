// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vigil Contributors

package store_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vigil-dev/vigil/internal/state"
	"github.com/vigil-dev/vigil/internal/store"
)

func newFileStore(t *testing.T) (*store.FileStore, string) {
	t.Helper()
	dir := t.TempDir()
	fs, err := store.NewFileStore(dir, "watchdog_state.json")
	require.NoError(t, err)
	return fs, dir
}

func TestFileStoreLoadFreshDeployment(t *testing.T) {
	fs, dir := newFileStore(t)

	s := fs.Load()

	assert.Equal(t, state.StatusWaiting, s.Status)
	assert.Greater(t, s.LastHeartbeatTime, float64(0))
	assert.Greater(t, s.LastStatusNotification, float64(0))

	// The synthesized record must already be on disk.
	_, err := os.Stat(filepath.Join(dir, "watchdog_state.json"))
	assert.NoError(t, err)
}

func TestFileStoreRoundTrip(t *testing.T) {
	fs, _ := newFileStore(t)

	s := state.New()
	s.RecordHeartbeat(state.Heartbeat{
		AlertName:   "Watchdog",
		AlertStatus: "firing",
		Summary:     "alive",
		Description: "self-test",
	}, time.Now())
	s.TotalReceived = 7
	s.InvalidReceived = 2
	s.StampAlertNotification(time.Now())
	s.StampStatusNotification(time.Now())

	require.NoError(t, fs.Save(s))
	got := fs.Load()

	assert.InDelta(t, s.LastHeartbeatTime, got.LastHeartbeatTime, 0.001)
	assert.Equal(t, s.Status, got.Status)
	assert.Equal(t, s.TotalReceived, got.TotalReceived)
	assert.Equal(t, s.InvalidReceived, got.InvalidReceived)
	assert.InDelta(t, s.LastAlertNotification, got.LastAlertNotification, 0.001)
	assert.InDelta(t, s.LastStatusNotification, got.LastStatusNotification, 0.001)
	assert.Equal(t, s.LastHeartbeatDetails, got.LastHeartbeatDetails)
}

func TestFileStoreCorruptRecordDegradesToZero(t *testing.T) {
	fs, dir := newFileStore(t)

	path := filepath.Join(dir, "watchdog_state.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	s := fs.Load()
	assert.Equal(t, state.StatusInitializing, s.Status)
	assert.Zero(t, s.LastHeartbeatTime)
}

func TestFileStoreUnknownFieldsIgnored(t *testing.T) {
	fs, dir := newFileStore(t)

	doc := map[string]any{
		"status":         "ok",
		"total_received": 3,
		"future_field":   "ignored",
	}
	data, err := json.Marshal(doc)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "watchdog_state.json"), data, 0o644))

	s := fs.Load()
	assert.Equal(t, state.StatusOK, s.Status)
	assert.Equal(t, int64(3), s.TotalReceived)
	// Missing fields keep their defaults.
	assert.Zero(t, s.InvalidReceived)
	assert.Zero(t, s.LastAlertNotification)
}

func TestFileStoreSaveLeavesNoTempOnSuccess(t *testing.T) {
	fs, dir := newFileStore(t)

	require.NoError(t, fs.Save(state.New()))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".tmp")
	}
}

func TestFileStoreInterruptedSaveNeverCorruptsRecord(t *testing.T) {
	fs, dir := newFileStore(t)

	good := state.New()
	good.Status = state.StatusOK
	good.TotalReceived = 42
	require.NoError(t, fs.Save(good))

	// A stray temp file from a crashed writer must not affect the record.
	stray := filepath.Join(dir, ".watchdog-crashed.tmp")
	require.NoError(t, os.WriteFile(stray, []byte(`{"status":"al`), 0o644))

	got := fs.Load()
	assert.Equal(t, state.StatusOK, got.Status)
	assert.Equal(t, int64(42), got.TotalReceived)
}

func TestFileStoreSaveFailureReturnsError(t *testing.T) {
	dir := t.TempDir()
	fs, err := store.NewFileStore(dir, "watchdog_state.json")
	require.NoError(t, err)

	// Removing the directory makes temp-file creation fail.
	require.NoError(t, os.RemoveAll(dir))

	err = fs.Save(state.New())
	assert.Error(t, err)
}

func TestFileStoreLockPathIsSibling(t *testing.T) {
	fs, dir := newFileStore(t)
	assert.Equal(t, filepath.Join(dir, "watchdog_state.json.lock"), fs.LockPath())
}

func TestFileStoreProbeWritable(t *testing.T) {
	fs, dir := newFileStore(t)

	require.NoError(t, fs.ProbeWritable())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotEqual(t, ".probe_test", e.Name())
	}
}

func TestFlockLockerLockUnlock(t *testing.T) {
	dir := t.TempDir()
	l := store.NewFlockLocker(filepath.Join(dir, "state.json.lock"))

	require.NoError(t, l.Lock())
	require.NoError(t, l.Unlock())
}

func TestNewSelectsBackend(t *testing.T) {
	tests := []struct {
		backend string
		wantErr bool
	}{
		{backend: "file"},
		{backend: ""},
		{backend: "sqlite"},
		{backend: "memory"},
		{backend: "etcd", wantErr: true},
	}

	for _, tt := range tests {
		t.Run("backend_"+tt.backend, func(t *testing.T) {
			st, locker, err := store.New(store.StorageConfig{
				Backend:   tt.backend,
				Dir:       t.TempDir(),
				StateFile: "watchdog_state.json",
			})
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, st)
			require.NotNil(t, locker)
			_ = st.Close()
		})
	}
}
