// Package notify delivers "new opportunity" events to a webhook sink.
// Delivery is fire-and-forget; the pipeline never waits for confirmation.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"
)

type Event struct {
	OpportunityID   string    `json:"opportunity_id"`
	Slug            string    `json:"slug"`
	Title           string    `json:"title"`
	OpportunityType string    `json:"opportunity_type"`
	PublishedAt     time.Time `json:"published_at"`
}

type Notifier struct {
	webhookURL string
	hc         *http.Client
}

// NewNotifier returns nil when no webhook is configured; callers treat a
// nil notifier as a disabled sink.
func NewNotifier(webhookURL string) *Notifier {
	if webhookURL == "" {
		return nil
	}
	return &Notifier{
		webhookURL: webhookURL,
		hc:         &http.Client{Timeout: 10 * time.Second},
	}
}

// Publish dispatches the event in the background. Failures are logged and
// otherwise ignored.
func (n *Notifier) Publish(event Event) {
	if n == nil {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		body, err := json.Marshal(event)
		if err != nil {
			slog.Warn("Failed to encode notification", "error", err)
			return
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
		if err != nil {
			slog.Warn("Failed to create notification request", "error", err)
			return
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := n.hc.Do(req)
		if err != nil {
			slog.Warn("Notification delivery failed", "error", err)
			return
		}
		resp.Body.Close()

		if resp.StatusCode >= 300 {
			slog.Warn("Notification sink returned error", "status", resp.StatusCode)
		}
	}()
}
