// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vigil Contributors

package state

import (
	"time"
)

// Status is the watchdog's operating state.
type Status string

const (
	// StatusInitializing is the zero state before the store has been consulted.
	StatusInitializing Status = "initializing"
	// StatusWaiting means the store is loaded but no heartbeat has arrived yet.
	// Timeout evaluation is suppressed in this state.
	StatusWaiting Status = "waiting_for_first_heartbeat"
	// StatusOK means heartbeats are arriving within the timeout.
	StatusOK Status = "ok"
	// StatusAlert means the heartbeat stream has been silent past the timeout.
	StatusAlert Status = "alert"
)

// Startup reports whether s is one of the startup states that are exempt
// from timeout evaluation.
func (s Status) Startup() bool {
	return s == StatusInitializing || s == StatusWaiting
}

// WatchdogState is the single persisted record of the heartbeat stream.
// Timestamps are seconds since the Unix epoch; 0 means "never".
type WatchdogState struct {
	LastHeartbeatTime      float64           `json:"last_heartbeat_time"`
	LastHeartbeatDetails   map[string]string `json:"last_heartbeat_details,omitempty"`
	Status                 Status            `json:"status"`
	TotalReceived          int64             `json:"total_received"`
	InvalidReceived        int64             `json:"invalid_received"`
	LastStatusNotification float64           `json:"last_status_notification"`
	LastAlertNotification  float64           `json:"last_alert_notification"`
}

// New returns an empty state in the initializing status.
func New() *WatchdogState {
	return &WatchdogState{Status: StatusInitializing}
}

// Heartbeat is the subset of an Alertmanager alert the watchdog records.
type Heartbeat struct {
	AlertName   string
	AlertStatus string
	Summary     string
	Description string
}

// RecordHeartbeat stamps a valid heartbeat received at now and moves the
// state to ok.
func (s *WatchdogState) RecordHeartbeat(hb Heartbeat, now time.Time) {
	s.LastHeartbeatTime = epochSeconds(now)
	s.LastHeartbeatDetails = map[string]string{
		"alertname":   hb.AlertName,
		"status":      hb.AlertStatus,
		"summary":     hb.Summary,
		"description": hb.Description,
		"received_at": FormatTimestamp(s.LastHeartbeatTime),
	}
	s.Status = StatusOK
}

// RecordInvalid counts a submission that failed validation. The operating
// status and last heartbeat time are untouched.
func (s *WatchdogState) RecordInvalid() {
	s.InvalidReceived++
}

// SetAlert moves the state to alert.
func (s *WatchdogState) SetAlert() {
	s.Status = StatusAlert
}

// StampAlertNotification records that an alert notification went out at now.
func (s *WatchdogState) StampAlertNotification(now time.Time) {
	s.LastAlertNotification = epochSeconds(now)
}

// StampStatusNotification records that a status notification went out at now.
func (s *WatchdogState) StampStatusNotification(now time.Time) {
	s.LastStatusNotification = epochSeconds(now)
}

// SinceLastHeartbeat returns the elapsed time between the last heartbeat
// and now.
func (s *WatchdogState) SinceLastHeartbeat(now time.Time) time.Duration {
	return since(s.LastHeartbeatTime, now)
}

// SinceLastAlertNotification returns the elapsed time since the last alert
// notification went out.
func (s *WatchdogState) SinceLastAlertNotification(now time.Time) time.Duration {
	return since(s.LastAlertNotification, now)
}

// SinceLastStatusNotification returns the elapsed time since the last status
// notification went out.
func (s *WatchdogState) SinceLastStatusNotification(now time.Time) time.Duration {
	return since(s.LastStatusNotification, now)
}

// Clone returns a deep copy so snapshots can leave the service's lock scope.
func (s *WatchdogState) Clone() *WatchdogState {
	out := *s
	if s.LastHeartbeatDetails != nil {
		out.LastHeartbeatDetails = make(map[string]string, len(s.LastHeartbeatDetails))
		for k, v := range s.LastHeartbeatDetails {
			out.LastHeartbeatDetails[k] = v
		}
	}
	return &out
}

// FormatTimestamp renders an epoch-seconds timestamp for humans.
// Zero renders as "never".
func FormatTimestamp(ts float64) string {
	if ts == 0 {
		return "never"
	}
	sec := int64(ts)
	nsec := int64((ts - float64(sec)) * float64(time.Second))
	return time.Unix(sec, nsec).Format("2006-01-02 15:04:05")
}

func epochSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

func since(ts float64, now time.Time) time.Duration {
	return time.Duration((epochSeconds(now) - ts) * float64(time.Second))
}
