// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vigil Contributors

// Package watchdog implements the dead man's switch core: the liveness
// state machine, its concurrency-safe persistence scope, the background
// monitor loop, and the orchestrator probes.
package watchdog

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	vigilerr "github.com/vigil-dev/vigil/pkg/errors"

	"github.com/vigil-dev/vigil/internal/config"
	"github.com/vigil-dev/vigil/internal/notify"
	"github.com/vigil-dev/vigil/internal/state"
	"github.com/vigil-dev/vigil/internal/store"
)

// Service owns the single authoritative in-memory watchdog state. All
// reads and mutations go through Update, which serializes in-process
// callers behind a mutex and cross-process writers behind the store's
// companion file lock.
type Service struct {
	mu         sync.Mutex
	store      store.Store
	locker     store.Locker
	dispatcher *notify.Dispatcher
	cfg        config.WatchdogConfig

	state *state.WatchdogState
	now   func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithClock injects a deterministic clock for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService wires the core service. Missing collaborators are a hard
// failure: a monitor without storage or notification is misconstructed,
// not degraded.
func NewService(st store.Store, locker store.Locker, dispatcher *notify.Dispatcher, cfg config.WatchdogConfig, opts ...Option) (*Service, error) {
	if st == nil {
		return nil, vigilerr.New(vigilerr.CodeWatchdogServiceInvalid, "store is required")
	}
	if locker == nil {
		return nil, vigilerr.New(vigilerr.CodeWatchdogServiceInvalid, "locker is required")
	}
	if dispatcher == nil {
		return nil, vigilerr.New(vigilerr.CodeWatchdogServiceInvalid, "dispatcher is required")
	}
	if cfg.Timeout <= 0 || cfg.ResendInterval <= 0 || cfg.ExpectedAlertname == "" {
		return nil, vigilerr.New(vigilerr.CodeWatchdogServiceInvalid, "watchdog configuration is incomplete")
	}

	s := &Service{
		store:      st,
		locker:     locker,
		dispatcher: dispatcher,
		cfg:        cfg,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Initialize loads the authoritative state. Safe to call more than once.
func (s *Service) Initialize() error {
	return s.Update(func(*state.WatchdogState) error { return nil })
}

// Update is the atomic read-modify-write scope. It acquires the in-process
// mutex, then the cross-process file lock, reloads the authoritative state
// from the store, hands it to fn, and persists it back when fn succeeds.
// Both locks are released on every exit path, file lock first.
func (s *Service) Update(fn func(st *state.WatchdogState) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.locker.Lock(); err != nil {
		return vigilerr.Wrap(err, vigilerr.CodeWatchdogLockFailure, "acquiring cross-process lock")
	}
	defer func() {
		if err := s.locker.Unlock(); err != nil {
			slog.Error("releasing cross-process lock", "error", err)
		}
	}()

	s.state = s.store.Load()

	if err := fn(s.state); err != nil {
		return err
	}

	if err := s.store.Save(s.state); err != nil {
		slog.Error("persisting watchdog state", "error", err)
	}
	return nil
}

// Loaded reports whether the service has ever loaded its state.
func (s *Service) Loaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state != nil
}

// PeekStatus returns the in-memory operating status without touching the
// store. Probe-only; all decision-making goes through Update.
func (s *Service) PeekStatus() state.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == nil {
		return state.StatusInitializing
	}
	return s.state.Status
}

// CheckLock verifies the in-process lock is acquirable. Used by the
// readiness probe.
func (s *Service) CheckLock() bool {
	if !s.mu.TryLock() {
		return false
	}
	s.mu.Unlock()
	return true
}

// ProbeStorage attempts a best-effort write probe against the store.
func (s *Service) ProbeStorage() error {
	return s.store.ProbeWritable()
}

// Config echoes the watchdog policy the service runs with.
func (s *Service) Config() config.WatchdogConfig {
	return s.cfg
}

// Heartbeat outcomes as reported on the wire.
const (
	OutcomeSuccess = "success"
	OutcomeWarning = "warning"
	OutcomeError   = "error"
)

// HeartbeatResult is the validated outcome of one submission.
type HeartbeatResult struct {
	Accepted bool
	Outcome  string
	Message  string
}

// RecordHeartbeat evaluates one inbound submission. Validation failures
// are counted and rejected without changing the operating status; a valid
// heartbeat moves the state to ok and, when it interrupts an active alert,
// triggers exactly one recovery notification. The returned error covers
// only internal failures, never payload problems.
func (s *Service) RecordHeartbeat(ctx context.Context, payload map[string]any) (HeartbeatResult, error) {
	var (
		res       HeartbeatResult
		recovered bool
	)

	err := s.Update(func(st *state.WatchdogState) error {
		st.TotalReceived++

		alert, ok := extractAlert(payload)
		if !ok {
			st.RecordInvalid()
			res = HeartbeatResult{Outcome: OutcomeError, Message: "Invalid watchdog alert format"}
			return nil
		}

		hb := parseHeartbeat(alert)
		if hb.AlertName != s.cfg.ExpectedAlertname {
			slog.Warn("received non-watchdog alert", "alertname", hb.AlertName)
			st.RecordInvalid()
			res = HeartbeatResult{
				Outcome: OutcomeWarning,
				Message: fmt.Sprintf("Expected %q, got %q", s.cfg.ExpectedAlertname, hb.AlertName),
			}
			return nil
		}

		recovered = st.Status == state.StatusAlert
		st.RecordHeartbeat(hb, s.now())
		res = HeartbeatResult{
			Accepted: true,
			Outcome:  OutcomeSuccess,
			Message:  "Watchdog alert received and processed",
		}
		return nil
	})
	if err != nil {
		return HeartbeatResult{}, err
	}

	// Dispatch outside the lock scope so transport latency never blocks
	// other heartbeats or the monitor.
	if recovered {
		slog.Info("heartbeat received after alert, sending recovery notification")
		s.dispatcher.SendRecovery(ctx)
	}

	return res, nil
}

// HealthSnapshot is the structured result of a health query.
type HealthSnapshot struct {
	Status            state.Status `json:"status"`
	IsHealthy         bool         `json:"is_healthy"`
	LastPing          float64      `json:"last_ping"`
	LastPingFormatted string       `json:"last_ping_formatted"`
	TimeSincePing     float64      `json:"time_since_last_ping"`
	TimeoutSeconds    float64      `json:"timeout"`
}

// Health computes the health snapshot. When the timeout is exceeded
// outside the startup states it flips the status to alert as a side
// effect of being queried, so a stalled monitor loop cannot hide a dead
// heartbeat stream.
func (s *Service) Health() (HealthSnapshot, error) {
	var snap HealthSnapshot

	err := s.Update(func(st *state.WatchdogState) error {
		now := s.now()
		sinceLast := st.SinceLastHeartbeat(now)

		if sinceLast > s.cfg.Timeout && st.Status != state.StatusAlert && !st.Status.Startup() {
			slog.Warn("timeout exceeded during health query, entering alert state",
				"since_last", sinceLast.Round(time.Second), "timeout", s.cfg.Timeout)
			st.SetAlert()
		}

		snap = HealthSnapshot{
			Status:            st.Status,
			IsHealthy:         st.Status == state.StatusOK,
			LastPing:          st.LastHeartbeatTime,
			LastPingFormatted: state.FormatTimestamp(st.LastHeartbeatTime),
			TimeSincePing:     sinceLast.Seconds(),
			TimeoutSeconds:    s.cfg.Timeout.Seconds(),
		}
		return nil
	})
	return snap, err
}

// DetailedStatus extends the health snapshot with counters, heartbeat
// details, notification timestamps, and the effective configuration.
type DetailedStatus struct {
	HealthSnapshot

	TotalReceived          int64             `json:"total_received"`
	InvalidReceived        int64             `json:"invalid_received"`
	LastHeartbeatDetails   map[string]string `json:"last_heartbeat_details"`
	LastStatusNotification string            `json:"last_status_notification"`
	LastAlertNotification  string            `json:"last_alert_notification"`
	Config                 StatusConfig      `json:"config"`
}

// StatusConfig echoes the watchdog policy in the status payload.
type StatusConfig struct {
	TimeoutSeconds        float64 `json:"watchdog_timeout"`
	ExpectedAlertname     string  `json:"expected_alertname"`
	ResendIntervalSeconds float64 `json:"alert_resend_interval"`
}

// Status returns the detailed status.
func (s *Service) Status() (DetailedStatus, error) {
	var out DetailedStatus

	err := s.Update(func(st *state.WatchdogState) error {
		now := s.now()
		sinceLast := st.SinceLastHeartbeat(now)

		if sinceLast > s.cfg.Timeout && st.Status != state.StatusAlert && !st.Status.Startup() {
			st.SetAlert()
		}

		out = DetailedStatus{
			HealthSnapshot: HealthSnapshot{
				Status:            st.Status,
				IsHealthy:         st.Status == state.StatusOK,
				LastPing:          st.LastHeartbeatTime,
				LastPingFormatted: state.FormatTimestamp(st.LastHeartbeatTime),
				TimeSincePing:     sinceLast.Seconds(),
				TimeoutSeconds:    s.cfg.Timeout.Seconds(),
			},
			TotalReceived:          st.TotalReceived,
			InvalidReceived:        st.InvalidReceived,
			LastHeartbeatDetails:   st.Clone().LastHeartbeatDetails,
			LastStatusNotification: state.FormatTimestamp(st.LastStatusNotification),
			LastAlertNotification:  state.FormatTimestamp(st.LastAlertNotification),
			Config: StatusConfig{
				TimeoutSeconds:        s.cfg.Timeout.Seconds(),
				ExpectedAlertname:     s.cfg.ExpectedAlertname,
				ResendIntervalSeconds: s.cfg.ResendInterval.Seconds(),
			},
		}
		return nil
	})
	return out, err
}

// extractAlert picks the alert to inspect from a webhook payload: the
// first element of a non-empty "alerts" batch, or the payload itself when
// it carries "labels" directly. Anything else is invalid.
func extractAlert(payload map[string]any) (map[string]any, bool) {
	if payload == nil {
		return nil, false
	}

	if raw, ok := payload["alerts"]; ok {
		batch, ok := raw.([]any)
		if !ok || len(batch) == 0 {
			return nil, false
		}
		first, ok := batch[0].(map[string]any)
		if !ok {
			return nil, false
		}
		return first, true
	}

	if _, ok := payload["labels"]; ok {
		return payload, true
	}

	return nil, false
}

func parseHeartbeat(alert map[string]any) state.Heartbeat {
	hb := state.Heartbeat{
		AlertName:   "unknown",
		AlertStatus: "unknown",
		Summary:     "No summary provided",
		Description: "No description provided",
	}

	if labels, ok := alert["labels"].(map[string]any); ok {
		if name, ok := labels["alertname"].(string); ok && name != "" {
			hb.AlertName = name
		}
	}
	if status, ok := alert["status"].(string); ok && status != "" {
		hb.AlertStatus = status
	}
	if annotations, ok := alert["annotations"].(map[string]any); ok {
		if v, ok := annotations["summary"].(string); ok && v != "" {
			hb.Summary = v
		}
		if v, ok := annotations["description"].(string); ok && v != "" {
			hb.Description = v
		}
	}
	return hb
}
