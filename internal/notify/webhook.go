package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"stockwatch/internal/config"
	"stockwatch/internal/errors"
	"stockwatch/pkg/utils"
)

// WebhookChannel delivers alerts via an HTTP POST to a configured URL.
// Transient failures are retried with backoff inside Deliver; the engine
// itself never retries a delivery.
type WebhookChannel struct {
	url     string
	enabled bool
	client  *http.Client
	retry   utils.RetryConfig
}

// webhookPayload is the JSON body posted for each fired alert.
type webhookPayload struct {
	User   string    `json:"user"`
	Text   string    `json:"text"`
	SentAt time.Time `json:"sent_at"`
}

// NewWebhookChannel creates a new WebhookChannel.
func NewWebhookChannel(cfg config.WebhookConfig) *WebhookChannel {
	return &WebhookChannel{
		url:     cfg.URL,
		enabled: cfg.Enabled && cfg.URL != "",
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		retry: utils.DefaultRetryConfig(),
	}
}

// Name returns the name of the channel.
func (w *WebhookChannel) Name() string {
	return "webhook"
}

// IsEnabled returns whether the channel is enabled.
func (w *WebhookChannel) IsEnabled() bool {
	return w.enabled
}

// Deliver posts the rendered message to the webhook URL.
func (w *WebhookChannel) Deliver(ctx context.Context, userRef, text string) error {
	if !w.enabled {
		return nil
	}

	body, err := json.Marshal(webhookPayload{
		User:   userRef,
		Text:   text,
		SentAt: time.Now().UTC(),
	})
	if err != nil {
		return errors.NewDeliveryError(w.Name(), userRef, fmt.Errorf("marshaling payload: %w", err))
	}

	err = utils.Retry(ctx, w.retry, func() error {
		return w.post(ctx, body)
	})
	if err != nil {
		return errors.NewDeliveryError(w.Name(), userRef, err)
	}
	return nil
}

func (w *WebhookChannel) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating webhook request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "stockwatch/0.1.0")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("sending webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
