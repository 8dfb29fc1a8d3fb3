// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vigil Contributors

package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	vigilerr "github.com/vigil-dev/vigil/pkg/errors"
)

// defaultSendTimeout bounds a single webhook POST so a hung transport
// cannot stall the monitor loop.
const defaultSendTimeout = 10 * time.Second

// WebhookChannel posts messages as {"text": ...} JSON to a chat webhook
// (Google Chat incoming-webhook format).
type WebhookChannel struct {
	url    string
	client *http.Client
}

var _ Channel = (*WebhookChannel)(nil)

func NewWebhookChannel(url string, timeout time.Duration) *WebhookChannel {
	if timeout <= 0 {
		timeout = defaultSendTimeout
	}
	return &WebhookChannel{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

func (w *WebhookChannel) Name() string { return "webhook" }

func (w *WebhookChannel) Send(ctx context.Context, text string) error {
	if w.url == "" {
		return vigilerr.New(vigilerr.CodeNotifySendFailure, "webhook url is not configured")
	}

	body, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return vigilerr.Wrap(err, vigilerr.CodeNotifySendFailure, "marshalling webhook payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return vigilerr.Wrap(err, vigilerr.CodeNotifySendFailure, "building webhook request")
	}
	req.Header.Set("Content-Type", "application/json; charset=UTF-8")

	resp, err := w.client.Do(req)
	if err != nil {
		return vigilerr.Wrap(err, vigilerr.CodeNotifySendFailure, "posting to webhook")
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return vigilerr.Errorf(vigilerr.CodeNotifySendFailure, "webhook returned status %d", resp.StatusCode)
	}
	return nil
}
