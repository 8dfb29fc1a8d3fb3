// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vigil Contributors

package watchdog

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	vigilerr "github.com/vigil-dev/vigil/pkg/errors"

	"github.com/vigil-dev/vigil/internal/notify"
	"github.com/vigil-dev/vigil/internal/state"
)

// Monitor is the long-lived background evaluator. It wakes periodically,
// checks the heartbeat age through the service's atomic-update scope, and
// drives alert, repeat-alert, and daily-status notifications.
type Monitor struct {
	svc        *Service
	dispatcher *notify.Dispatcher

	graceSleep   time.Duration
	evalInterval time.Duration
	errorBackoff time.Duration
	statusEvery  time.Duration

	now      func() time.Time
	started  atomic.Bool
	lastTick atomic.Int64 // unix nanos of the most recent loop iteration
}

const (
	defaultGraceSleep   = 30 * time.Second
	defaultEvalInterval = time.Second
	defaultErrorBackoff = 5 * time.Second
	defaultStatusEvery  = 24 * time.Hour
)

// MonitorOption configures a Monitor.
type MonitorOption func(*Monitor)

// WithMonitorClock injects a deterministic clock for tests.
func WithMonitorClock(now func() time.Time) MonitorOption {
	return func(m *Monitor) { m.now = now }
}

// WithIntervals overrides the loop cadence. Zero values keep defaults.
func WithIntervals(graceSleep, evalInterval, errorBackoff time.Duration) MonitorOption {
	return func(m *Monitor) {
		if graceSleep > 0 {
			m.graceSleep = graceSleep
		}
		if evalInterval > 0 {
			m.evalInterval = evalInterval
		}
		if errorBackoff > 0 {
			m.errorBackoff = errorBackoff
		}
	}
}

func NewMonitor(svc *Service, dispatcher *notify.Dispatcher, opts ...MonitorOption) *Monitor {
	m := &Monitor{
		svc:          svc,
		dispatcher:   dispatcher,
		graceSleep:   defaultGraceSleep,
		evalInterval: defaultEvalInterval,
		errorBackoff: defaultErrorBackoff,
		statusEvery:  defaultStatusEvery,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start launches the monitor goroutine. Idempotent: a second call while
// the loop is running is a no-op. The loop runs until ctx is cancelled.
func (m *Monitor) Start(ctx context.Context) {
	if !m.started.CompareAndSwap(false, true) {
		slog.Info("monitor loop already running")
		return
	}

	slog.Info("starting watchdog monitor loop",
		"timeout", m.svc.Config().Timeout,
		"resend_interval", m.svc.Config().ResendInterval)
	go m.run(ctx)
}

// LastTick reports when the loop last completed an iteration. The
// readiness probe uses this instead of guessing at goroutine liveness.
func (m *Monitor) LastTick() time.Time {
	n := m.lastTick.Load()
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}

func (m *Monitor) run(ctx context.Context) {
	if err := m.svc.Initialize(); err != nil {
		slog.Error("initializing watchdog state", "error", err)
	}

	startup := m.now()
	grace := m.svc.Config().Timeout

	for {
		m.lastTick.Store(m.now().UnixNano())

		// Startup grace window: tolerate a cold start before the first
		// expected heartbeat.
		if m.now().Sub(startup) < grace {
			if !m.sleep(ctx, m.graceSleep) {
				return
			}
			continue
		}

		delay := m.evalInterval
		if err := m.safeEvaluate(ctx); err != nil {
			slog.Error("watchdog monitor iteration failed", "error", err)
			delay = m.errorBackoff
		}
		if !m.sleep(ctx, delay) {
			return
		}
	}
}

// safeEvaluate converts a panic in one iteration into an error so a bad
// iteration never terminates the monitor.
func (m *Monitor) safeEvaluate(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = vigilerr.Errorf(vigilerr.CodeServerInternalFailure, "monitor iteration panicked: %v", r)
		}
	}()
	return m.evaluate(ctx)
}

// action is what one evaluation decided to send, if anything.
type action int

const (
	actNone action = iota
	actAlert
	actRepeatAlert
	actStatusUpdate
)

// evaluate performs one atomic inspection of the state and dispatches at
// most one notification. Notification stamps are written inside the lock
// scope; the actual send happens after it, so a slow transport cannot
// stall concurrent heartbeats.
func (m *Monitor) evaluate(ctx context.Context) error {
	cfg := m.svc.Config()

	var (
		act          action
		sinceLast    time.Duration
		lastReceived string
	)

	err := m.svc.Update(func(st *state.WatchdogState) error {
		now := m.now()
		sinceLast = st.SinceLastHeartbeat(now)
		lastReceived = state.FormatTimestamp(st.LastHeartbeatTime)

		if st.Status.Startup() {
			return nil
		}

		switch {
		case sinceLast > cfg.Timeout:
			if st.Status != state.StatusAlert {
				slog.Warn("watchdog timeout exceeded, entering alert state",
					"since_last", sinceLast.Round(time.Second), "timeout", cfg.Timeout)
				st.SetAlert()
				st.StampAlertNotification(now)
				act = actAlert
			} else if st.SinceLastAlertNotification(now) >= cfg.ResendInterval {
				slog.Info("resending alert notification",
					"since_last_alert", st.SinceLastAlertNotification(now).Round(time.Second))
				st.StampAlertNotification(now)
				act = actRepeatAlert
			}
		case st.Status == state.StatusOK && st.SinceLastStatusNotification(now) >= m.statusEvery:
			slog.Info("sending daily status update")
			st.StampStatusNotification(now)
			act = actStatusUpdate
		}
		return nil
	})
	if err != nil {
		return err
	}

	switch act {
	case actAlert:
		m.dispatcher.SendAlert(ctx, sinceLast, lastReceived)
	case actRepeatAlert:
		m.dispatcher.SendRepeatedAlert(ctx, sinceLast, lastReceived)
	case actStatusUpdate:
		m.dispatcher.SendStatusUpdate(ctx, lastReceived)
	}
	return nil
}

// sleep waits for d or until ctx is done; it reports whether the loop
// should continue.
func (m *Monitor) sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
