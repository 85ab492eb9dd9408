// Package alerting доставляет операторские алерты о системных сбоях
// (недоступен aprs.fi, хранилище, планировщик, SMS-шлюз) через Telegram,
// HTTP webhook и SMS с rate limiting по коду ошибки и правилами фильтрации.
//
// Алерты пользователя о температуре сюда не относятся: их отправляет monitor.
package alerting

import (
	"context"
	"time"
)

// Severity определяет уровень критичности алерта.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityCritical
)

// Имена каналов алертинга.
const (
	ChannelTelegram = "telegram"
	ChannelWebhook  = "webhook"
	ChannelSMS      = "sms"
)

// String возвращает строковое представление Severity.
func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "INFO"
	case SeverityWarning:
		return "WARNING"
	case SeverityCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// Alert - данные операторского алерта.
type Alert struct {
	// ErrorCode - короткий код подсистемы (APRS, SDB, SCH, SMS, WDG, MON).
	// По нему работают rate limiting и правила.
	ErrorCode string

	// Message - описание сбоя без секретов.
	Message string

	TraceID   string
	Timestamp time.Time

	// Operation - операция, в которой произошёл сбой (evaluate, start, stop, status, watchdog).
	Operation string

	// Callsign - позывной, если сбой относится к конкретному устройству.
	Callsign string

	Severity Severity
}

// Alerter отправляет алерт через настроенные каналы.
//
// Send ВСЕГДА возвращает nil: ошибки доставки логируются, сбой канала
// алертинга не должен влиять на обработку SMS и цикл мониторинга.
type Alerter interface {
	Send(ctx context.Context, alert Alert) error
}

// NopAlerter ничего не отправляет. Используется при выключенном алертинге.
type NopAlerter struct{}

// NewNopAlerter создаёт NopAlerter.
func NewNopAlerter() Alerter {
	return &NopAlerter{}
}

// Send ничего не делает.
func (n *NopAlerter) Send(_ context.Context, _ Alert) error {
	return nil
}
