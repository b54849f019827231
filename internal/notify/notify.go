// Package notify is the outbound email/SMS side channel. Delivery is
// best-effort: callers log failures and never fail the triggering action.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"agrolink.org/internal/obs"
)

// Notifier sends one message to one recipient.
type Notifier interface {
	Send(ctx context.Context, recipient, subject, body string) error
}

// LogNotifier writes notifications to the structured log. Used in demo mode
// and as the fallback when no gateway is configured.
type LogNotifier struct{}

func (LogNotifier) Send(ctx context.Context, recipient, subject, body string) error {
	obs.Info("notification", map[string]any{
		"recipient": recipient,
		"subject":   subject,
		"body":      body,
	})
	return nil
}

// WebhookNotifier posts notifications to an external messaging gateway.
type WebhookNotifier struct {
	url    string
	client *http.Client
}

// NewWebhookNotifier targets a gateway endpoint accepting JSON posts.
func NewWebhookNotifier(url string) *WebhookNotifier {
	return &WebhookNotifier{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (n *WebhookNotifier) Send(ctx context.Context, recipient, subject, body string) error {
	payload, err := json.Marshal(map[string]string{
		"recipient": recipient,
		"subject":   subject,
		"body":      body,
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("notify: post: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("notify: gateway returned %d", resp.StatusCode)
	}
	return nil
}
