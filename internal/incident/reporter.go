// Package incident превращает ошибки компонентов в системные инциденты:
// запись в лог, счётчик по коду и алерт оператору.
package incident

import (
	"context"
	"time"

	"github.com/zzaxusl0a/APRS-notify/internal/pkg/alerting"
	"github.com/zzaxusl0a/APRS-notify/internal/pkg/apperrors"
	"github.com/zzaxusl0a/APRS-notify/internal/pkg/logging"
	"github.com/zzaxusl0a/APRS-notify/internal/pkg/metrics"
	"github.com/zzaxusl0a/APRS-notify/internal/pkg/tracing"
)

// Reporter регистрирует инциденты. Алерт уходит только для TransportError.
type Reporter struct {
	alerter alerting.Alerter
	metrics metrics.Collector
	logger  logging.Logger
	now     func() time.Time
}

// NewReporter создаёт Reporter. nil alerter и collector заменяются заглушками.
func NewReporter(alerter alerting.Alerter, collector metrics.Collector, logger logging.Logger) *Reporter {
	if alerter == nil {
		alerter = alerting.NewNopAlerter()
	}
	if collector == nil {
		collector = metrics.NewNopCollector()
	}
	return &Reporter{alerter: alerter, metrics: collector, logger: logger, now: time.Now}
}

// Report фиксирует ошибку операции. nil err игнорируется.
func (r *Reporter) Report(ctx context.Context, operation, callsign string, err error) {
	if err == nil {
		return
	}
	code := apperrors.CodeOf(err)
	traceID := tracing.TraceIDFromContext(ctx)

	r.logger.Error("системная ошибка",
		"operation", operation,
		"callsign", callsign,
		"code", code,
		"kind", apperrors.KindOf(err).String(),
		"trace_id", traceID,
		"error", err.Error(),
	)
	if !apperrors.IsTransport(err) {
		return
	}
	r.metrics.RecordSystemError(code)

	if sendErr := r.alerter.Send(ctx, alerting.Alert{
		ErrorCode: code,
		Message:   err.Error(),
		TraceID:   traceID,
		Timestamp: r.now().UTC(),
		Operation: operation,
		Callsign:  callsign,
		Severity:  severityFor(code),
	}); sendErr != nil {
		r.logger.Warn("алерт оператору не доставлен", "code", code, "error", sendErr.Error())
	}
}

// severityFor: недоступность фида - предупреждение, остальное критично.
func severityFor(code string) alerting.Severity {
	if code == apperrors.CodeFeed {
		return alerting.SeverityWarning
	}
	return alerting.SeverityCritical
}
