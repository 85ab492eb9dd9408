package alerting

import (
	"errors"
	"net/url"
	"strings"
	"time"
)

// Значения по умолчанию.
const (
	DefaultRateLimitWindow = 15 * time.Minute
	DefaultTelegramTimeout = 10 * time.Second
	DefaultWebhookTimeout  = 10 * time.Second
	DefaultSMSTimeout      = 10 * time.Second

	// DefaultMaxRetries - ноль: внешние вызовы по умолчанию не повторяются.
	DefaultMaxRetries = 0
)

// Ошибки валидации конфигурации.
var (
	ErrTelegramBotTokenRequired = errors.New("alerting: bot_token is required when telegram channel is enabled")
	ErrTelegramChatIDRequired   = errors.New("alerting: at least one chat_id is required when telegram channel is enabled")
	ErrTelegramChatIDInvalid    = errors.New("alerting: chat_id must be a numeric ID or @username")
	ErrWebhookURLRequired       = errors.New("alerting: at least one url is required when webhook channel is enabled")
	ErrWebhookURLInvalid        = errors.New("alerting: webhook url has invalid format (must have http(s) scheme and host)")
	ErrWebhookHeaderInvalid     = errors.New("alerting: webhook header contains invalid characters (\\r or \\n)")
	ErrSMSRecipientRequired     = errors.New("alerting: at least one recipient is required when sms channel is enabled")
	ErrSMSRecipientInvalid      = errors.New("alerting: sms recipient must be in E.164 format (+15551234567)")
	ErrSMSSenderRequired        = errors.New("alerting: sms channel is enabled but no sender is configured")
)

// Config содержит настройки пакета alerting.
type Config struct {
	Enabled bool

	// RateLimitWindow - минимальный интервал между алертами с одним ErrorCode.
	RateLimitWindow time.Duration

	Telegram TelegramConfig
	Webhook  WebhookConfig
	SMS      SMSConfig
}

// TelegramConfig - настройки telegram канала.
type TelegramConfig struct {
	Enabled  bool
	BotToken string
	ChatIDs  []string
	Timeout  time.Duration
}

// WebhookConfig - настройки webhook канала.
type WebhookConfig struct {
	Enabled    bool
	URLs       []string
	Headers    map[string]string
	Timeout    time.Duration
	MaxRetries int
}

// SMSConfig - настройки SMS канала оператора.
type SMSConfig struct {
	Enabled bool

	// To - номера оператора в формате E.164.
	To []string

	Timeout time.Duration
}

// DefaultConfig возвращает конфигурацию по умолчанию (алертинг выключен).
func DefaultConfig() Config {
	return Config{
		RateLimitWindow: DefaultRateLimitWindow,
		Telegram:        TelegramConfig{Timeout: DefaultTelegramTimeout},
		Webhook:         WebhookConfig{Timeout: DefaultWebhookTimeout, MaxRetries: DefaultMaxRetries},
		SMS:             SMSConfig{Timeout: DefaultSMSTimeout},
	}
}

// Validate проверяет включённые каналы.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if err := c.Telegram.Validate(); err != nil {
		return err
	}
	if err := c.Webhook.Validate(); err != nil {
		return err
	}
	return c.SMS.Validate()
}

// Validate проверяет корректность TelegramConfig.
func (t *TelegramConfig) Validate() error {
	if !t.Enabled {
		return nil
	}
	if t.BotToken == "" {
		return ErrTelegramBotTokenRequired
	}
	if len(t.ChatIDs) == 0 {
		return ErrTelegramChatIDRequired
	}
	for _, chatID := range t.ChatIDs {
		if !validChatID(chatID) {
			return ErrTelegramChatIDInvalid
		}
	}
	return nil
}

// validChatID: числовой ID (в том числе отрицательный для групп) или @username.
func validChatID(chatID string) bool {
	if chatID == "" {
		return false
	}
	if chatID[0] == '@' {
		return len(chatID) > 1
	}
	digits := strings.TrimPrefix(chatID, "-")
	if digits == "" {
		return false
	}
	for _, ch := range digits {
		if ch < '0' || ch > '9' {
			return false
		}
	}
	return true
}

// Validate проверяет корректность WebhookConfig.
func (w *WebhookConfig) Validate() error {
	if !w.Enabled {
		return nil
	}
	if len(w.URLs) == 0 {
		return ErrWebhookURLRequired
	}
	for _, rawURL := range w.URLs {
		u, err := url.Parse(rawURL)
		if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
			return ErrWebhookURLInvalid
		}
	}
	for key, value := range w.Headers {
		if containsInvalidHTTPHeaderChars(key) || containsInvalidHTTPHeaderChars(value) {
			return ErrWebhookHeaderInvalid
		}
	}
	return nil
}

// Validate проверяет корректность SMSConfig.
func (s *SMSConfig) Validate() error {
	if !s.Enabled {
		return nil
	}
	if len(s.To) == 0 {
		return ErrSMSRecipientRequired
	}
	for _, to := range s.To {
		if !validE164(to) {
			return ErrSMSRecipientInvalid
		}
	}
	return nil
}

func validE164(phone string) bool {
	if len(phone) < 8 || len(phone) > 16 || phone[0] != '+' {
		return false
	}
	for _, ch := range phone[1:] {
		if ch < '0' || ch > '9' {
			return false
		}
	}
	return true
}

// containsInvalidHTTPHeaderChars: по RFC 7230 HTAB разрешён, остальные control characters нет.
func containsInvalidHTTPHeaderChars(s string) bool {
	for _, r := range s {
		if r == 0x09 {
			continue
		}
		if r <= 0x1f || r == 0x7f {
			return true
		}
	}
	return false
}
