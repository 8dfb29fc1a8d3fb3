// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vigil Contributors

package store

import (
	"sync"
	"time"

	"github.com/vigil-dev/vigil/internal/state"
)

// MemStore is an in-memory Store for tests. It mirrors the file backend's
// load semantics, including first-load synthesis of a waiting state.
type MemStore struct {
	mu    sync.Mutex
	saved *state.WatchdogState

	// Now is injected by tests that need a deterministic clock.
	Now func() time.Time
	// SaveErr, when set, is returned by every Save to exercise failure paths.
	SaveErr error
	// Saves counts successful Save calls.
	Saves int
}

var _ Store = (*MemStore)(nil)

func NewMemStore() *MemStore {
	return &MemStore{Now: time.Now}
}

func (m *MemStore) Load() *state.WatchdogState {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.saved == nil {
		s := state.New()
		now := float64(m.Now().Unix())
		s.LastHeartbeatTime = now
		s.LastStatusNotification = now
		s.Status = state.StatusWaiting
		m.saved = s.Clone()
		return s
	}
	return m.saved.Clone()
}

func (m *MemStore) Save(s *state.WatchdogState) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.SaveErr != nil {
		return m.SaveErr
	}
	m.saved = s.Clone()
	m.Saves++
	return nil
}

func (m *MemStore) ProbeWritable() error { return nil }

func (m *MemStore) Close() error { return nil }

// Seed replaces the stored record, bypassing Save accounting.
func (m *MemStore) Seed(s *state.WatchdogState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved = s.Clone()
}
