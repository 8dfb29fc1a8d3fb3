// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vigil Contributors

// Package notify fans out human-readable watchdog notifications to the
// configured channels.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Channel delivers one text message to an external destination. An
// implementation must not panic past its own boundary; failures are
// reported through the error and isolated per channel.
type Channel interface {
	Send(ctx context.Context, text string) error
	Name() string
}

// Dispatcher fans a message out to every registered channel. The channel
// list is append-only: registration happens once at startup, before any
// concurrent access, so dispatch reads it without locking.
type Dispatcher struct {
	channels []Channel
}

func NewDispatcher(channels ...Channel) *Dispatcher {
	return &Dispatcher{channels: channels}
}

// Register adds a channel. Must only be called during startup wiring.
func (d *Dispatcher) Register(ch Channel) {
	d.channels = append(d.channels, ch)
	slog.Info("registered notification channel", "channel", ch.Name())
}

// Dispatch sends text to all channels and reports whether at least one
// delivery succeeded. A channel failure never prevents delivery to the
// remaining channels and never propagates to the caller.
func (d *Dispatcher) Dispatch(ctx context.Context, text string) bool {
	if len(d.channels) == 0 {
		slog.Warn("no notification channels configured, dropping message")
		return false
	}

	dispatchID := uuid.NewString()
	ok := false
	for _, ch := range d.channels {
		if err := d.sendOne(ctx, ch, text); err != nil {
			slog.Error("notification delivery failed",
				"channel", ch.Name(), "dispatch_id", dispatchID, "error", err)
			continue
		}
		slog.Info("notification delivered", "channel", ch.Name(), "dispatch_id", dispatchID)
		ok = true
	}
	return ok
}

// sendOne isolates a single channel call, converting a panic into an error
// so one misbehaving transport cannot take down the monitor loop.
func (d *Dispatcher) sendOne(ctx context.Context, ch Channel, text string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = panicError{value: r}
		}
	}()
	return ch.Send(ctx, text)
}

// SendAlert dispatches the initial-alert message.
func (d *Dispatcher) SendAlert(ctx context.Context, sinceLast time.Duration, lastReceived string) bool {
	return d.Dispatch(ctx, AlertMessage(sinceLast, lastReceived))
}

// SendRepeatedAlert dispatches the still-missing message.
func (d *Dispatcher) SendRepeatedAlert(ctx context.Context, sinceLast time.Duration, lastReceived string) bool {
	return d.Dispatch(ctx, RepeatedAlertMessage(sinceLast, lastReceived))
}

// SendRecovery dispatches the alert-to-ok recovery message.
func (d *Dispatcher) SendRecovery(ctx context.Context) bool {
	return d.Dispatch(ctx, RecoveryMessage())
}

// SendStatusUpdate dispatches the daily everything-OK message.
func (d *Dispatcher) SendStatusUpdate(ctx context.Context, lastReceived string) bool {
	return d.Dispatch(ctx, StatusMessage(lastReceived))
}

type panicError struct {
	value any
}

func (p panicError) Error() string {
	return fmt.Sprintf("channel panicked: %v", p.value)
}
