package alerting

import (
	"context"
	"fmt"

	"github.com/zzaxusl0a/APRS-notify/internal/pkg/logging"
)

// maxSMSAlertLength - предел длины операторского SMS (в рунах).
const maxSMSAlertLength = 300

// SMSSender - отправка SMS. Реализуется адаптером SMS-шлюза.
type SMSSender interface {
	Send(ctx context.Context, to, body string) (string, error)
}

// SMSAlerter отправляет короткий алерт на номера оператора.
type SMSAlerter struct {
	config SMSConfig
	sender SMSSender
	logger logging.Logger
}

// NewSMSAlerter создаёт SMSAlerter.
func NewSMSAlerter(config SMSConfig, sender SMSSender, logger logging.Logger) (*SMSAlerter, error) {
	if sender == nil {
		return nil, ErrSMSSenderRequired
	}
	return &SMSAlerter{config: config, sender: sender, logger: logger}, nil
}

// Send отправляет алерт на каждый номер. Ошибки логируются, возвращается nil.
func (s *SMSAlerter) Send(ctx context.Context, alert Alert) error {
	body := formatSMSAlert(alert)
	for _, to := range s.config.To {
		if ctx.Err() != nil {
			return nil
		}
		sid, err := s.sender.Send(ctx, to, body)
		if err != nil {
			s.logger.Error("ошибка отправки sms алерта",
				"error", err.Error(),
				"error_code", alert.ErrorCode,
			)
			continue
		}
		s.logger.Info("sms алерт отправлен", "error_code", alert.ErrorCode, "sid", sid)
	}
	return nil
}

// formatSMSAlert: "[aprs-notify] SDB evaluate N0CALL: сообщение", обрезается до maxSMSAlertLength рун.
func formatSMSAlert(alert Alert) string {
	prefix := "[aprs-notify] " + alert.ErrorCode
	if alert.Operation != "" {
		prefix += " " + alert.Operation
	}
	if alert.Callsign != "" {
		prefix += " " + alert.Callsign
	}
	msg := fmt.Sprintf("%s: %s", prefix, alert.Message)

	runes := []rune(msg)
	if len(runes) > maxSMSAlertLength {
		return string(runes[:maxSMSAlertLength])
	}
	return msg
}
