package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Notifier POSTs JSON payloads to a configured webhook URL. Delivery is
// best-effort: a bounded number of attempts with linear backoff, then give up.
// Callers treat the result as advisory and never fail the user request on it.
type Notifier struct {
	url        string
	httpClient *http.Client
	attempts   int
	backoff    time.Duration
}

func NewNotifier(url string) *Notifier {
	return &Notifier{
		url:        url,
		httpClient: &http.Client{Timeout: 5 * time.Second},
		attempts:   3,
		backoff:    500 * time.Millisecond,
	}
}

// Notify marshals payload and delivers it. Returns the last error when every
// attempt fails.
func (n *Notifier) Notify(ctx context.Context, payload interface{}) error {
	if n.url == "" {
		return nil // not configured, nothing to deliver
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= n.attempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt-1) * n.backoff):
			}
		}
		lastErr = n.post(ctx, body)
		if lastErr == nil {
			return nil
		}
	}
	return fmt.Errorf("webhook delivery failed after %d attempts: %w", n.attempts, lastErr)
}

func (n *Notifier) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
