// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vigil Contributors

package watchdog

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vigil-dev/vigil/internal/state"
)

func newProbesFixture(t *testing.T) (*Probes, *Monitor, *clock) {
	t.Helper()

	mon, _, _, ck := newMonitorFixture(t)
	probes := NewProbes(mon.svc, mon, WithProbesClock(ck.Now))
	return probes, mon, ck
}

func TestLivenessBeforeStateLoad(t *testing.T) {
	probes, _, _ := newProbesFixture(t)

	alive, msg := probes.Liveness()
	assert.False(t, alive)
	assert.Equal(t, "Service state not loaded", msg)
}

func TestLivenessAfterInitialize(t *testing.T) {
	probes, mon, _ := newProbesFixture(t)
	require.NoError(t, mon.svc.Initialize())

	alive, msg := probes.Liveness()
	assert.True(t, alive)
	assert.Equal(t, "Service is alive", msg)
}

func TestLivenessNilService(t *testing.T) {
	probes := NewProbes(nil, nil)

	alive, msg := probes.Liveness()
	assert.False(t, alive)
	assert.Equal(t, "Service not initialized", msg)
}

func TestReadinessDuringStartupGrace(t *testing.T) {
	probes, mon, _ := newProbesFixture(t)
	require.NoError(t, mon.svc.Initialize())

	ready, msg := probes.Readiness()
	assert.False(t, ready)
	assert.Contains(t, msg, "startup phase")
}

func TestReadinessWithFreshMonitorTick(t *testing.T) {
	probes, mon, ck := newProbesFixture(t)
	require.NoError(t, mon.svc.Initialize())

	ck.Advance(time.Minute)
	mon.lastTick.Store(ck.Now().UnixNano())

	ready, msg := probes.Readiness()
	assert.True(t, ready)
	assert.Equal(t, "Service is ready to receive traffic", msg)
}

func TestReadinessMonitorNeverStarted(t *testing.T) {
	probes, mon, ck := newProbesFixture(t)
	require.NoError(t, mon.svc.Initialize())

	ck.Advance(time.Minute)

	ready, msg := probes.Readiness()
	assert.False(t, ready)
	assert.Contains(t, msg, "monitor loop has not started")
}

func TestReadinessMonitorStalled(t *testing.T) {
	probes, mon, ck := newProbesFixture(t)
	require.NoError(t, mon.svc.Initialize())

	mon.lastTick.Store(ck.Now().UnixNano())
	ck.Advance(3 * time.Minute)

	ready, msg := probes.Readiness()
	assert.False(t, ready)
	assert.Contains(t, msg, "monitor loop stalled")
}

func TestReadinessFallbackOverrideAfterLongUptime(t *testing.T) {
	probes, mon, ck := newProbesFixture(t)
	require.NoError(t, mon.svc.Initialize())

	// Stale tick, but the service has been up past the fallback window
	// and reached a post-startup status: readiness is inferred from the
	// observable state instead of the tick.
	mon.lastTick.Store(ck.Now().UnixNano())
	require.NoError(t, mon.svc.Update(func(st *state.WatchdogState) error {
		st.Status = state.StatusOK
		return nil
	}))
	ck.Advance(10 * time.Minute)

	ready, msg := probes.Readiness()
	assert.True(t, ready)
	assert.Equal(t, "Service is ready to receive traffic", msg)
}

func TestReadinessNoFallbackWhileWaiting(t *testing.T) {
	probes, mon, ck := newProbesFixture(t)
	require.NoError(t, mon.svc.Initialize())

	// Long uptime alone is not enough: a service still waiting for its
	// first heartbeat gets no stale-tick override.
	mon.lastTick.Store(ck.Now().UnixNano())
	ck.Advance(10 * time.Minute)

	ready, msg := probes.Readiness()
	assert.False(t, ready)
	assert.Contains(t, msg, "monitor loop stalled")
}

func TestReadinessStuckInitializing(t *testing.T) {
	probes, mon, ck := newProbesFixture(t)
	require.NoError(t, mon.svc.Initialize())
	require.NoError(t, mon.svc.Update(func(st *state.WatchdogState) error {
		st.Status = state.StatusInitializing
		return nil
	}))

	ck.Advance(2 * time.Minute)
	mon.lastTick.Store(ck.Now().UnixNano())

	ready, msg := probes.Readiness()
	assert.False(t, ready)
	assert.Equal(t, "Service stuck in initializing state", msg)
}

func TestProbeWindowOverrides(t *testing.T) {
	mon, _, _, ck := newMonitorFixture(t)
	require.NoError(t, mon.svc.Initialize())

	probes := NewProbes(mon.svc, mon,
		WithProbesClock(ck.Now),
		WithProbeWindows(time.Second, 0, 0, 0))

	ck.Advance(2 * time.Second)
	mon.lastTick.Store(ck.Now().UnixNano())

	ready, _ := probes.Readiness()
	assert.True(t, ready)
}
