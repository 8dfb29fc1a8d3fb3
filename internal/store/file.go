// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vigil Contributors

package store

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	vigilerr "github.com/vigil-dev/vigil/pkg/errors"

	"github.com/vigil-dev/vigil/internal/state"
)

// FileStore persists the state as a single JSON document. Saves are
// crash-safe: the record is written to a temp file in the same directory,
// fsynced, and renamed into place, so a reader never observes a torn write.
type FileStore struct {
	dir  string
	path string
	now  func() time.Time
}

var _ Store = (*FileStore)(nil)

// NewFileStore creates dir if needed and returns a store for dir/filename.
func NewFileStore(dir, filename string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, vigilerr.Wrap(err, vigilerr.CodeStoreOpenFailure, "creating data directory", vigilerr.FieldPath(dir))
	}
	return &FileStore{
		dir:  dir,
		path: filepath.Join(dir, filename),
		now:  time.Now,
	}, nil
}

// LockPath is the sibling advisory-lock artifact coordinating
// cross-process writers.
func (f *FileStore) LockPath() string {
	return f.path + ".lock"
}

// Load reads the record, synthesizing a fresh waiting_for_first_heartbeat
// state when no record exists yet. A corrupt record degrades to a zeroed
// state rather than failing; corruption is treated as "never observed".
func (f *FileStore) Load() *state.WatchdogState {
	s := state.New()

	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		now := float64(f.now().Unix())
		s.LastHeartbeatTime = now
		s.LastStatusNotification = now
		s.Status = state.StatusWaiting
		if err := f.Save(s); err != nil {
			slog.Error("persisting fresh watchdog state", "path", f.path, "error", err)
		}
		return s
	}
	if err != nil {
		slog.Error("reading watchdog state", "path", f.path, "error", err)
		return s
	}

	if err := json.Unmarshal(data, s); err != nil {
		slog.Error("parsing watchdog state, starting from zero", "path", f.path, "error", err)
		return state.New()
	}

	slog.Info("loaded watchdog state",
		"path", f.path,
		"status", s.Status,
		"last_heartbeat", state.FormatTimestamp(s.LastHeartbeatTime))
	return s
}

// Save writes the record atomically. On failure the temp artifact is
// removed best-effort and the error returned; it is never fatal to the
// caller's control flow.
func (f *FileStore) Save(s *state.WatchdogState) error {
	tmp, err := os.CreateTemp(f.dir, ".watchdog-*.tmp")
	if err != nil {
		return vigilerr.Wrap(err, vigilerr.CodeStoreSaveFailure, "creating temp file", vigilerr.FieldPath(f.dir))
	}
	tmpPath := tmp.Name()
	defer func() {
		if tmp != nil {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	data, err := json.Marshal(s)
	if err != nil {
		return vigilerr.Wrap(err, vigilerr.CodeStoreSaveFailure, "marshalling state")
	}
	if _, err := tmp.Write(data); err != nil {
		return vigilerr.Wrap(err, vigilerr.CodeStoreSaveFailure, "writing temp file", vigilerr.FieldPath(tmpPath))
	}
	if err := tmp.Sync(); err != nil {
		return vigilerr.Wrap(err, vigilerr.CodeStoreSaveFailure, "syncing temp file", vigilerr.FieldPath(tmpPath))
	}
	if err := tmp.Close(); err != nil {
		return vigilerr.Wrap(err, vigilerr.CodeStoreSaveFailure, "closing temp file", vigilerr.FieldPath(tmpPath))
	}
	if err := os.Rename(tmpPath, f.path); err != nil {
		return vigilerr.Wrap(err, vigilerr.CodeStoreSaveFailure, "renaming into place", vigilerr.FieldPath(f.path))
	}

	tmp = nil
	return nil
}

// ProbeWritable attempts a write/delete round trip in the data directory.
func (f *FileStore) ProbeWritable() error {
	probe := filepath.Join(f.dir, ".probe_test")
	if err := os.WriteFile(probe, []byte("probe"), 0o644); err != nil {
		return vigilerr.Wrap(err, vigilerr.CodeStoreSaveFailure, "write probe", vigilerr.FieldPath(probe))
	}
	return os.Remove(probe)
}

func (f *FileStore) Close() error { return nil }

// FlockLocker is an advisory file lock on the record's sibling lock path.
type FlockLocker struct {
	fl *flock.Flock
}

var _ Locker = (*FlockLocker)(nil)

func NewFlockLocker(path string) *FlockLocker {
	return &FlockLocker{fl: flock.New(path)}
}

func (l *FlockLocker) Lock() error {
	if err := l.fl.Lock(); err != nil {
		return vigilerr.Wrap(err, vigilerr.CodeStoreOpenFailure, "acquiring file lock", vigilerr.FieldPath(l.fl.Path()))
	}
	return nil
}

func (l *FlockLocker) Unlock() error {
	return l.fl.Unlock()
}

// NopLocker is used by backends that serialize writers themselves.
type NopLocker struct{}

func (NopLocker) Lock() error   { return nil }
func (NopLocker) Unlock() error { return nil }
