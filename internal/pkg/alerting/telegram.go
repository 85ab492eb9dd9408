package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/zzaxusl0a/APRS-notify/internal/pkg/logging"
)

// TelegramAPIBaseURL - базовый URL Telegram Bot API.
const TelegramAPIBaseURL = "https://api.telegram.org/bot"

// TelegramParseMode - Markdown v1.
const TelegramParseMode = "Markdown"

// maxResponseBodySize ограничивает чтение тела ответа каналов (1 KB).
const maxResponseBodySize = 1024

// HTTPClient - интерфейс HTTP клиента для подмены в тестах.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// TelegramAlerter отправляет алерты в Telegram чаты.
type TelegramAlerter struct {
	config     TelegramConfig
	logger     logging.Logger
	httpClient HTTPClient
	baseURL    string
}

// NewTelegramAlerter создаёт TelegramAlerter.
func NewTelegramAlerter(config TelegramConfig, logger logging.Logger) *TelegramAlerter {
	timeout := config.Timeout
	if timeout == 0 {
		timeout = DefaultTelegramTimeout
	}
	return &TelegramAlerter{
		config:     config,
		logger:     logger,
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    TelegramAPIBaseURL,
	}
}

// SetHTTPClient устанавливает кастомный HTTPClient (для тестирования).
func (t *TelegramAlerter) SetHTTPClient(client HTTPClient) {
	t.httpClient = client
}

// Send отправляет алерт во все чаты. Ошибки логируются, возвращается nil.
func (t *TelegramAlerter) Send(ctx context.Context, alert Alert) error {
	message := formatTelegramMessage(alert)

	success := 0
	for _, chatID := range t.config.ChatIDs {
		if ctx.Err() != nil {
			return nil
		}
		if err := t.sendToChat(ctx, chatID, message); err != nil {
			t.logger.Error("ошибка отправки telegram алерта",
				"error", err.Error(),
				"chat_id", chatID,
				"error_code", alert.ErrorCode,
			)
			continue
		}
		success++
	}

	if success == 0 && len(t.config.ChatIDs) > 0 {
		t.logger.Warn("telegram алерт не доставлен ни в один чат",
			"error_code", alert.ErrorCode,
			"chats_total", len(t.config.ChatIDs),
		)
		return nil
	}
	t.logger.Info("telegram алерт отправлен",
		"error_code", alert.ErrorCode,
		"chats_success", success,
	)
	return nil
}

func formatTelegramMessage(alert Alert) string {
	var sb strings.Builder
	sb.WriteString("🚨 *aprs-notify*\n\n")
	fmt.Fprintf(&sb, "*Code:* `%s`\n", escapeMarkdown(alert.ErrorCode))
	fmt.Fprintf(&sb, "*Severity:* %s\n", escapeMarkdown(alert.Severity.String()))
	if alert.Operation != "" {
		fmt.Fprintf(&sb, "*Operation:* %s\n", escapeMarkdown(alert.Operation))
	}
	if alert.Callsign != "" {
		fmt.Fprintf(&sb, "*Callsign:* %s\n", escapeMarkdown(alert.Callsign))
	}
	fmt.Fprintf(&sb, "\n%s\n\n", escapeMarkdown(alert.Message))
	fmt.Fprintf(&sb, "_Trace ID:_ `%s`\n", escapeMarkdown(alert.TraceID))
	fmt.Fprintf(&sb, "_Time:_ %s", escapeMarkdown(alert.Timestamp.UTC().Format(time.RFC3339)))
	return sb.String()
}

// markdownReplacer: backslash экранируется первым, чтобы не удваивать остальные.
var markdownReplacer = strings.NewReplacer(
	`\`, `\\`,
	"_", "\\_",
	"*", "\\*",
	"`", "\\`",
	"[", "\\[",
	"]", "\\]",
	"(", "\\(",
	")", "\\)",
	">", "\\>",
)

func escapeMarkdown(s string) string {
	return markdownReplacer.Replace(s)
}

type telegramRequest struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

type telegramResponse struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code,omitempty"`
	Description string `json:"description,omitempty"`
}

func (t *TelegramAlerter) sendToChat(ctx context.Context, chatID, message string) error {
	endpoint := fmt.Sprintf("%s%s/sendMessage", t.baseURL, t.config.BotToken)

	body, err := json.Marshal(telegramRequest{ChatID: chatID, Text: message, ParseMode: TelegramParseMode})
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		// Текст ошибки net/http содержит URL вместе с токеном бота.
		return fmt.Errorf("HTTP request failed: %s", strings.ReplaceAll(err.Error(), t.config.BotToken, "[REDACTED]"))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	var tr telegramResponse
	if err := json.Unmarshal(raw, &tr); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	if !tr.OK {
		return fmt.Errorf("telegram API error %d: %s", tr.ErrorCode, tr.Description)
	}
	return nil
}
