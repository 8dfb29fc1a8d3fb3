// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vigil Contributors

package notify

import (
	"context"
	"sync"
)

// Recorder is a Channel test double that captures every message.
type Recorder struct {
	mu       sync.Mutex
	messages []string

	// Err, when set, is returned by every Send.
	Err error
}

var _ Channel = (*Recorder)(nil)

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Name() string { return "recorder" }

func (r *Recorder) Send(_ context.Context, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.messages = append(r.messages, text)
	return nil
}

// Messages returns a copy of everything delivered so far.
func (r *Recorder) Messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.messages))
	copy(out, r.messages)
	return out
}
