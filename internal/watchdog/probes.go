// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vigil Contributors

package watchdog

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/vigil-dev/vigil/internal/state"
)

// Probes evaluates orchestrator liveness and readiness. It is a read-only
// observer: it never mutates watchdog state.
type Probes struct {
	svc *Service
	mon *Monitor

	startup time.Time
	now     func() time.Time

	startupGrace      time.Duration
	monitorStaleAfter time.Duration
	fallbackWindow    time.Duration
	initializingBound time.Duration
}

const (
	defaultStartupGrace      = 30 * time.Second
	defaultMonitorStaleAfter = 90 * time.Second
	defaultFallbackWindow    = 5 * time.Minute
	defaultInitializingBound = 60 * time.Second
)

// ProbesOption configures a Probes evaluator.
type ProbesOption func(*Probes)

// WithProbesClock injects a deterministic clock for tests.
func WithProbesClock(now func() time.Time) ProbesOption {
	return func(p *Probes) {
		p.now = now
		p.startup = now()
	}
}

// WithProbeWindows overrides the probe timing bounds. Zero values keep
// defaults.
func WithProbeWindows(startupGrace, monitorStaleAfter, fallbackWindow, initializingBound time.Duration) ProbesOption {
	return func(p *Probes) {
		if startupGrace > 0 {
			p.startupGrace = startupGrace
		}
		if monitorStaleAfter > 0 {
			p.monitorStaleAfter = monitorStaleAfter
		}
		if fallbackWindow > 0 {
			p.fallbackWindow = fallbackWindow
		}
		if initializingBound > 0 {
			p.initializingBound = initializingBound
		}
	}
}

func NewProbes(svc *Service, mon *Monitor, opts ...ProbesOption) *Probes {
	p := &Probes{
		svc:               svc,
		mon:               mon,
		now:               time.Now,
		startupGrace:      defaultStartupGrace,
		monitorStaleAfter: defaultMonitorStaleAfter,
		fallbackWindow:    defaultFallbackWindow,
		initializingBound: defaultInitializingBound,
	}
	p.startup = p.now()
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Liveness fails only on broken construction: a service that never loaded
// its state or is missing collaborators is dead, not merely unready.
func (p *Probes) Liveness() (bool, string) {
	if p.svc == nil {
		return false, "Service not initialized"
	}
	if !p.svc.Loaded() {
		return false, "Service state not loaded"
	}
	return true, "Service is alive"
}

// Readiness runs the ordered checks from the deployment playbook,
// short-circuiting on the first failure. The filesystem probe is
// advisory: its failure is logged but does not gate traffic.
func (p *Probes) Readiness() (bool, string) {
	if alive, msg := p.Liveness(); !alive {
		return false, "Not ready: " + msg
	}

	uptime := p.now().Sub(p.startup)
	if uptime < p.startupGrace {
		return false, fmt.Sprintf("Service still in startup phase (%ds/%ds)",
			int(uptime.Seconds()), int(p.startupGrace.Seconds()))
	}

	if err := p.svc.ProbeStorage(); err != nil {
		slog.Warn("storage write probe failed", "error", err)
	}

	if ok, msg := p.monitorAlive(uptime); !ok {
		return false, msg
	}

	if p.svc.PeekStatus() == state.StatusInitializing && uptime > p.initializingBound {
		return false, "Service stuck in initializing state"
	}

	if !p.svc.CheckLock() {
		return false, "State lock not acquirable"
	}

	return true, "Service is ready to receive traffic"
}

// monitorAlive checks the loop's shared last-iteration timestamp. When the
// timestamp is stale, readiness is still granted if the service has been
// up past the fallback window with a post-startup status: the monitor is
// then inferred healthy from its observable effects.
func (p *Probes) monitorAlive(uptime time.Duration) (bool, string) {
	last := p.mon.LastTick()
	if !last.IsZero() && p.now().Sub(last) < p.monitorStaleAfter {
		return true, ""
	}

	if uptime > p.fallbackWindow {
		if s := p.svc.PeekStatus(); s == state.StatusOK || s == state.StatusAlert {
			slog.Info("monitor tick stale but service appears functional, allowing readiness",
				"status", s)
			return true, ""
		}
	}

	if last.IsZero() {
		return false, "Not ready: watchdog monitor loop has not started"
	}
	return false, fmt.Sprintf("Not ready: watchdog monitor loop stalled (last iteration %s ago)",
		p.now().Sub(last).Round(time.Second))
}
