// Package watchdog сообщает оператору о сбоях: каждый пакет записей об
// ошибках превращается ровно в одно SMS.
package watchdog

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/zzaxusl0a/APRS-notify/internal/constants"
	"github.com/zzaxusl0a/APRS-notify/internal/pkg/apperrors"
	"github.com/zzaxusl0a/APRS-notify/internal/pkg/logging"
	"github.com/zzaxusl0a/APRS-notify/internal/pkg/metrics"
	"github.com/zzaxusl0a/APRS-notify/internal/pkg/tracing"
)

const (
	// DefaultPrefix - начало каждого сообщения оператору.
	DefaultPrefix = "Alerting Stopped! Error: "
	// DefaultMaxLength - два SMS сегмента.
	DefaultMaxLength = 300

	separator = "; "
	noDetails = "no log records in batch"
)

// ErrNoOperator - не задан номер оператора.
var ErrNoOperator = errors.New("watchdog: operator phone is not configured")

// Sender - канал SMS.
type Sender interface {
	Send(ctx context.Context, to, body string) (string, error)
}

// Record - одна запись об ошибке.
type Record struct {
	Message string
	Source  string
}

// Config - параметры watchdog.
type Config struct {
	OperatorPhone string
	Prefix        string
	MaxLength     int
	Timeout       time.Duration
}

// Report - итог обработки пакета.
type Report struct {
	Records   int
	Message   string
	MessageID string
	// Code - apperrors.CodeWatchdog при ошибке, иначе пусто.
	Code string
	Err  error
	// Skipped - служебный пакет, SMS не отправлялось.
	Skipped bool
}

// OK - уведомление отправлено.
func (r Report) OK() bool { return r.Err == nil }

// Watchdog отправляет сводку ошибок оператору.
type Watchdog struct {
	config  Config
	sender  Sender
	metrics metrics.Collector
	logger  logging.Logger
}

// New создаёт Watchdog. Пустые Prefix и MaxLength заменяются значениями по умолчанию.
func New(config Config, sender Sender, collector metrics.Collector, logger logging.Logger) *Watchdog {
	if config.Prefix == "" {
		config.Prefix = DefaultPrefix
	}
	if config.MaxLength <= 0 {
		config.MaxLength = DefaultMaxLength
	}
	if collector == nil {
		collector = metrics.NewNopCollector()
	}
	return &Watchdog{config: config, sender: sender, metrics: collector, logger: logger}
}

// Compose собирает текст: префикс и первые строки записей через "; ",
// обрезка до maxLength символов.
func Compose(prefix string, records []Record, maxLength int) string {
	lines := make([]string, 0, len(records))
	for _, r := range records {
		if line := firstLine(r.Message); line != "" {
			lines = append(lines, line)
		}
	}
	body := strings.Join(lines, separator)
	if body == "" {
		body = noDetails
	}
	msg := []rune(prefix + body)
	if maxLength > 0 && len(msg) > maxLength {
		msg = msg[:maxLength]
	}
	return string(msg)
}

// Handle разбирает сырое событие и выполняет Run. Ошибка разбора
// отражается в Report и не возвращается. Служебный пакет завершается
// успешно без SMS.
func (w *Watchdog) Handle(ctx context.Context, payload []byte) Report {
	records, err := DecodeEnvelope(payload)
	if errors.Is(err, ErrControlMessage) {
		w.logger.Info("служебный пакет пропущен", "operation", constants.OpWatchdog)
		return Report{Skipped: true}
	}
	if err != nil {
		return w.failed(Report{}, "decode failure batch", err)
	}
	return w.Run(ctx, records)
}

// Run отправляет одно SMS на пакет. Ошибки логируются и попадают в Report.
func (w *Watchdog) Run(ctx context.Context, records []Record) (report Report) {
	ctx, span := tracing.StartSpan(ctx, "watchdog.run")
	defer func() { tracing.EndSpan(span, report.Err) }()

	if w.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.config.Timeout)
		defer cancel()
	}

	report.Records = len(records)
	report.Message = Compose(w.config.Prefix, records, w.config.MaxLength)
	w.logger.Info("пакет ошибок получен", "operation", constants.OpWatchdog, "records", len(records))

	if w.config.OperatorPhone == "" {
		return w.failed(report, "send operator sms", ErrNoOperator)
	}
	sid, err := w.sender.Send(ctx, w.config.OperatorPhone, report.Message)
	w.metrics.RecordNotification("watchdog", err == nil)
	if err != nil {
		return w.failed(report, "send operator sms", err)
	}
	report.MessageID = sid
	w.logger.Info("оператор уведомлён", "operation", constants.OpWatchdog, "sid", sid)
	return report
}

func (w *Watchdog) failed(report Report, step string, cause error) Report {
	report.Code = apperrors.CodeWatchdog
	report.Err = apperrors.NewTransportError(apperrors.CodeWatchdog, step+" failed", cause)
	w.logger.Error("ошибка watchdog",
		"operation", constants.OpWatchdog,
		"code", apperrors.CodeWatchdog,
		"error", cause.Error(),
	)
	w.metrics.RecordSystemError(apperrors.CodeWatchdog)
	return report
}
