package optd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/QuantTune-Labs/optimizer-core/internal/study"
	"github.com/QuantTune-Labs/optimizer-core/pkg/logger"
	"github.com/QuantTune-Labs/optimizer-core/pkg/utils"
)

// NotificationPayload represents the JSON payload sent to the webhook when
// a study session reaches a terminal status
type NotificationPayload struct {
	Study           string           `json:"study"`
	RunID           string           `json:"run_id,omitempty"`
	Status          SessionStatus    `json:"status"`
	TrialCount      int              `json:"trial_count"`
	BestValue       *float64         `json:"best_value,omitempty"`
	BestAssignment  study.Assignment `json:"best_assignment,omitempty"`
	Interrupted     bool             `json:"interrupted,omitempty"`
	Error           string           `json:"error,omitempty"`
	CreatedAtUnixMs int64            `json:"created_at_unix_ms"`
	EndedAtUnixMs   int64            `json:"ended_at_unix_ms,omitempty"`
	Timestamp       int64            `json:"timestamp"`
}

// Notifier delivers completion webhooks with retries
type Notifier struct {
	url        string
	httpClient *http.Client
	maxRetries int
	backoff    utils.BackoffStrategy
}

// NewNotifier creates a notifier against the given webhook URL. An empty
// URL disables notifications.
func NewNotifier(url string, timeout time.Duration, maxRetries int) *Notifier {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &Notifier{
		url: url,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		maxRetries: maxRetries,
		backoff:    utils.NewExponentialBackoff(time.Second, 30*time.Second, 2.0, false),
	}
}

// Notify sends the payload asynchronously; it returns immediately
func (n *Notifier) Notify(payload NotificationPayload) {
	if n == nil || n.url == "" {
		return
	}
	payload.Timestamp = time.Now().UTC().UnixMilli()
	go n.send(payload)
}

// send performs the HTTP POST with retry logic
func (n *Notifier) send(payload NotificationPayload) {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		logger.Error("failed to marshal notification payload",
			"study", payload.Study, "error", err)
		return
	}

	var lastErr error
	for attempt := 0; attempt <= n.maxRetries; attempt++ {
		if attempt > 0 {
			delay := n.backoff.NextDelay(attempt - 1)
			logger.Debug("retrying notification",
				"study", payload.Study, "attempt", attempt, "delay", delay)
			time.Sleep(delay)
		}

		req, err := http.NewRequest(http.MethodPost, n.url, bytes.NewReader(payloadJSON))
		if err != nil {
			lastErr = fmt.Errorf("failed to create request: %w", err)
			continue
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("User-Agent", "optimizer-core/1.0")

		resp, err := n.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("HTTP request failed: %w", err)
			logger.Warn("notification attempt failed",
				"study", payload.Study, "attempt", attempt+1, "error", err)
			continue
		}

		body, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
		resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			logger.Info("notification sent",
				"study", payload.Study, "status", payload.Status, "status_code", resp.StatusCode)
			return
		}

		lastErr = fmt.Errorf("unexpected status code: %d", resp.StatusCode)
		logger.Warn("notification returned non-2xx status",
			"study", payload.Study,
			"status_code", resp.StatusCode,
			"response_body", string(body),
			"attempt", attempt+1)
	}

	logger.Error("failed to send notification after retries",
		"study", payload.Study, "max_retries", n.maxRetries, "last_error", lastErr)
}
