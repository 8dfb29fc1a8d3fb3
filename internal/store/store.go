// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vigil Contributors

// Package store persists the watchdog state record. Exactly one record
// exists per deployment; it is overwritten in place for the lifetime of
// the deployment.
package store

import (
	vigilerr "github.com/vigil-dev/vigil/pkg/errors"

	"github.com/vigil-dev/vigil/internal/state"
)

// Store loads and persists the watchdog state.
//
// Load never fails: a missing record is synthesized (stamped "now",
// status waiting_for_first_heartbeat, persisted immediately) and a corrupt
// record degrades to a zeroed state. Save reports failure through its
// error; callers log and continue.
type Store interface {
	Load() *state.WatchdogState
	Save(s *state.WatchdogState) error

	// ProbeWritable verifies the backing medium accepts writes. Used by
	// the readiness probe; failures there are logged, not fatal.
	ProbeWritable() error

	Close() error
}

// Locker serializes cross-process access to the durable record. The file
// backend pairs the record with an advisory lock at a sibling path; backends
// that serialize writes themselves use a no-op locker.
type Locker interface {
	Lock() error
	Unlock() error
}

// StorageConfig selects and parameterizes the storage backend.
type StorageConfig struct {
	Backend   string // "file", "sqlite", or "memory"
	Dir       string
	StateFile string // record filename within Dir, file backend only
}

// New creates the configured Store and its companion Locker.
func New(cfg StorageConfig) (Store, Locker, error) {
	switch cfg.Backend {
	case "", "file":
		fs, err := NewFileStore(cfg.Dir, cfg.StateFile)
		if err != nil {
			return nil, nil, err
		}
		return fs, NewFlockLocker(fs.LockPath()), nil
	case "sqlite":
		ss, err := NewSQLiteStore(cfg.Dir)
		if err != nil {
			return nil, nil, err
		}
		// SQLite's own busy-timeout locking covers cross-process writers.
		return ss, NopLocker{}, nil
	case "memory":
		return NewMemStore(), NopLocker{}, nil
	default:
		return nil, nil, vigilerr.Errorf(vigilerr.CodeStoreBackendUnsupported, "unsupported storage backend: %q", cfg.Backend)
	}
}
