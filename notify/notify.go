// Package notify delivers fire-and-forget completion notifications.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"insurance_backend/logging"
	"insurance_backend/pipeline"

	"go.uber.org/zap"
)

// defaultTimeout bounds one webhook delivery.
const defaultTimeout = 10 * time.Second

// Webhook POSTs the completion payload as JSON to a configured URL.
// Implements pipeline.Notifier.
type Webhook struct {
	url    string
	client *http.Client
	logger *logging.Logger
}

// NewWebhook creates a webhook notifier for the given endpoint.
func NewWebhook(url string, logger *logging.Logger) *Webhook {
	return &Webhook{
		url:    url,
		client: &http.Client{Timeout: defaultTimeout},
		logger: logger.Named("webhook"),
	}
}

// Notify delivers one notification. Non-2xx responses are errors; the
// caller treats every error as fire-and-forget.
func (w *Webhook) Notify(ctx context.Context, n pipeline.Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build notification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("deliver notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("notification endpoint returned %d", resp.StatusCode)
	}

	w.logger.Debug("notification delivered",
		zap.String("process_id", n.ProcessID),
		zap.String("type", string(n.DocumentType)))
	return nil
}

// LogNotifier logs completions instead of delivering them. Used when
// no webhook URL is configured.
type LogNotifier struct {
	logger *logging.Logger
}

// NewLogNotifier creates the logging fallback notifier.
func NewLogNotifier(logger *logging.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.Named("notifier")}
}

// Notify logs the completion. Never fails.
func (l *LogNotifier) Notify(ctx context.Context, n pipeline.Notification) error {
	l.logger.Info("document processing completed",
		zap.String("process_id", n.ProcessID),
		zap.String("type", string(n.DocumentType)),
		zap.Int("text_length", len(n.ExtractedText)))
	return nil
}
