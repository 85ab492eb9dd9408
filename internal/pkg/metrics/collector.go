// Package metrics собирает Prometheus метрики сервиса мониторинга.
//
// Две модели доставки: pull через Handler() (команда serve) и push в
// Pushgateway (одноразовые команды poll, watchdog, status).
// При отключённых метриках используется NopCollector.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/zzaxusl0a/APRS-notify/internal/pkg/logging"
)

// Collector определяет интерфейс для сбора метрик.
type Collector interface {
	// RecordCommandStart записывает начало выполнения CLI-команды.
	RecordCommandStart(command string)

	// RecordCommandEnd записывает завершение CLI-команды.
	RecordCommandEnd(command string, duration time.Duration, success bool)

	// RecordInbound учитывает входящую SMS-команду и результат её обработки
	// (ok, auth_failed, format_error, unknown, denied, fault).
	RecordInbound(command, outcome string)

	// RecordEvaluation учитывает одну оценку телеметрии.
	RecordEvaluation(callsign, condition string, notified bool)

	// RecordNotification учитывает исходящее SMS (alert, reply, watchdog, operator).
	RecordNotification(kind string, success bool)

	// RecordSystemError учитывает TransportError по короткому коду (APRS, SDB, SCH...).
	RecordSystemError(code string)

	// Handler возвращает http.Handler для scrape эндпоинта /metrics.
	Handler() http.Handler

	// Push отправляет метрики в Pushgateway.
	// Всегда возвращает nil: ошибки логируются внутри реализации.
	Push(ctx context.Context) error
}

var (
	// ErrPushgatewayURLInvalid возвращается если URL Pushgateway имеет невалидный формат.
	ErrPushgatewayURLInvalid = errors.New("pushgateway URL has invalid format")

	// ErrJobNameRequired возвращается если не указано имя job.
	ErrJobNameRequired = errors.New("job name is required")

	// ErrInvalidTimeout возвращается если указан невалидный таймаут.
	ErrInvalidTimeout = errors.New("timeout must be positive")
)

// Config содержит настройки сбора метрик.
type Config struct {
	// Enabled - включены ли метрики (по умолчанию false).
	Enabled bool

	// PushgatewayURL - URL Prometheus Pushgateway. Пусто - push отключён, работает только scrape.
	PushgatewayURL string

	// JobName - имя job для группировки метрик в Pushgateway.
	JobName string

	// Timeout - таймаут push.
	Timeout time.Duration

	// InstanceLabel - переопределение instance label. Пусто - hostname.
	InstanceLabel string
}

// DefaultConfig возвращает конфигурацию по умолчанию.
func DefaultConfig() Config {
	return Config{
		JobName: "aprs-notify",
		Timeout: 10 * time.Second,
	}
}

// Validate проверяет корректность конфигурации.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.PushgatewayURL != "" {
		u, err := url.Parse(c.PushgatewayURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return ErrPushgatewayURLInvalid
		}
	}
	if c.JobName == "" {
		return ErrJobNameRequired
	}
	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	return nil
}

// NewCollector возвращает NopCollector при Enabled=false и PrometheusCollector иначе.
func NewCollector(config Config, logger logging.Logger) (Collector, error) {
	if !config.Enabled {
		return NewNopCollector(), nil
	}
	return NewPrometheusCollector(config, logger)
}

// NopCollector - no-op реализация Collector.
type NopCollector struct{}

// NewNopCollector создаёт NopCollector.
func NewNopCollector() *NopCollector {
	return &NopCollector{}
}

func (c *NopCollector) RecordCommandStart(string) {}
func (c *NopCollector) RecordCommandEnd(string, time.Duration, bool) {}
func (c *NopCollector) RecordInbound(string, string) {}
func (c *NopCollector) RecordEvaluation(string, string, bool) {}
func (c *NopCollector) RecordNotification(string, bool) {}
func (c *NopCollector) RecordSystemError(string) {}
func (c *NopCollector) Push(context.Context) error { return nil }
func (c *NopCollector) Handler() http.Handler { return http.NotFoundHandler() }
