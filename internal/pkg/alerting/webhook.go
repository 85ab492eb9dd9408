package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/zzaxusl0a/APRS-notify/internal/pkg/logging"
	"github.com/zzaxusl0a/APRS-notify/internal/pkg/urlutil"
)

// webhookUserAgent - User-Agent исходящих webhook запросов.
const webhookUserAgent = "aprs-notify/1.0"

// WebhookAlerter отправляет алерты HTTP POST с JSON payload.
type WebhookAlerter struct {
	config     WebhookConfig
	logger     logging.Logger
	httpClient HTTPClient
	hostname   string
	newBackOff func() backoff.BackOff
}

// WebhookPayload - JSON тело webhook.
type WebhookPayload struct {
	ErrorCode string    `json:"error_code"`
	Message   string    `json:"message"`
	TraceID   string    `json:"trace_id"`
	Timestamp time.Time `json:"timestamp"`
	Operation string    `json:"operation,omitempty"`
	Callsign  string    `json:"callsign,omitempty"`
	Severity  string    `json:"severity"`
	Source    string    `json:"source"`
	Hostname  string    `json:"hostname,omitempty"`
}

// httpError - ответ с кодом вне 2xx.
type httpError struct {
	StatusCode int
	Body       string
}

func (e *httpError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

// NewWebhookAlerter создаёт WebhookAlerter.
func NewWebhookAlerter(config WebhookConfig, logger logging.Logger) *WebhookAlerter {
	timeout := config.Timeout
	if timeout == 0 {
		timeout = DefaultWebhookTimeout
	}

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}

	return &WebhookAlerter{
		config:     config,
		logger:     logger,
		httpClient: &http.Client{Timeout: timeout},
		hostname:   hostname,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 500 * time.Millisecond
			b.MaxInterval = 4 * time.Second
			return b
		},
	}
}

// SetHTTPClient устанавливает кастомный HTTPClient (для тестирования).
func (w *WebhookAlerter) SetHTTPClient(client HTTPClient) {
	w.httpClient = client
}

// Send отправляет алерт на все URL. Ошибки логируются, возвращается nil.
func (w *WebhookAlerter) Send(ctx context.Context, alert Alert) error {
	payload := WebhookPayload{
		ErrorCode: alert.ErrorCode,
		Message:   alert.Message,
		TraceID:   alert.TraceID,
		Timestamp: alert.Timestamp,
		Operation: alert.Operation,
		Callsign:  alert.Callsign,
		Severity:  alert.Severity.String(),
		Source:    "aprs-notify",
		Hostname:  w.hostname,
	}

	success := 0
	for _, target := range w.config.URLs {
		if ctx.Err() != nil {
			return nil
		}
		if err := w.sendWithRetry(ctx, target, payload); err != nil {
			w.logger.Error("ошибка отправки webhook алерта",
				"error", err.Error(),
				"url", urlutil.MaskURL(target),
				"error_code", alert.ErrorCode,
			)
			continue
		}
		success++
	}

	if success == 0 && len(w.config.URLs) > 0 {
		w.logger.Warn("webhook алерт не доставлен ни на один URL",
			"error_code", alert.ErrorCode,
			"urls_total", len(w.config.URLs),
		)
		return nil
	}
	w.logger.Info("webhook алерт отправлен", "error_code", alert.ErrorCode, "urls_success", success)
	return nil
}

// sendWithRetry повторяет сетевые ошибки и 5xx не более MaxRetries раз.
// 4xx означает ошибку конфигурации и не повторяется.
func (w *WebhookAlerter) sendWithRetry(ctx context.Context, target string, payload WebhookPayload) error {
	attempt := 0
	op := func() error {
		attempt++
		err := w.sendRequest(ctx, target, payload)
		if err == nil {
			return nil
		}
		if isClientHTTPError(err) {
			return backoff.Permanent(err)
		}
		w.logger.Debug("webhook attempt failed",
			"attempt", attempt,
			"max_retries", w.config.MaxRetries,
			"error", err.Error(),
			"url", urlutil.MaskURL(target),
		)
		return err
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(w.newBackOff(), uint64(max(w.config.MaxRetries, 0))), ctx)
	if err := backoff.Retry(op, policy); err != nil {
		return fmt.Errorf("webhook failed after %d attempt(s): %w", attempt, err)
	}
	return nil
}

func (w *WebhookAlerter) sendRequest(ctx context.Context, target string, payload WebhookPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", webhookUserAgent)
	for key, value := range w.config.Headers {
		req.Header.Set(key, value)
	}

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBodySize)) //nolint:errcheck // best-effort drain
		return nil
	}

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize)) //nolint:errcheck // диагностика
	return &httpError{StatusCode: resp.StatusCode, Body: string(raw)}
}

func isClientHTTPError(err error) bool {
	var httpErr *httpError
	if !errors.As(err, &httpErr) {
		return false
	}
	return httpErr.StatusCode >= 400 && httpErr.StatusCode < 500
}
