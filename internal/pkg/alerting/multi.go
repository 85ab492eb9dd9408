package alerting

import (
	"context"
	"sort"

	"github.com/zzaxusl0a/APRS-notify/internal/pkg/logging"
)

// MultiChannelAlerter рассылает алерт по каналам с учётом правил.
type MultiChannelAlerter struct {
	channels     map[string]Alerter
	channelNames []string
	rules        *RulesEngine
	rateLimiter  *RateLimiter
	logger       logging.Logger
}

// NewMultiChannelAlerter создаёт alerter с несколькими каналами.
// rateLimiter применяется один раз перед рассылкой: алерт уходит либо во все
// подходящие каналы, либо ни в один.
func NewMultiChannelAlerter(channels map[string]Alerter, rules *RulesEngine, rateLimiter *RateLimiter, logger logging.Logger) *MultiChannelAlerter {
	names := make([]string, 0, len(channels))
	for name := range channels {
		names = append(names, name)
	}
	sort.Strings(names)

	return &MultiChannelAlerter{
		channels:     channels,
		channelNames: names,
		rules:        rules,
		rateLimiter:  rateLimiter,
		logger:       logger,
	}
}

// Send рассылает алерт в алфавитном порядке каналов. Всегда возвращает nil.
func (m *MultiChannelAlerter) Send(ctx context.Context, alert Alert) error {
	if m.rateLimiter != nil && !m.rateLimiter.Allow(alert.ErrorCode) {
		m.logger.Debug("алерт подавлен rate limiter", "error_code", alert.ErrorCode)
		return nil
	}

	sent := 0
	for _, name := range m.channelNames {
		if ctx.Err() != nil {
			return nil
		}

		if m.rules != nil && !m.rules.Evaluate(alert, name) {
			m.logger.Debug("алерт отклонён правилами",
				"channel", name,
				"error_code", alert.ErrorCode,
				"operation", alert.Operation,
				"severity", alert.Severity.String(),
			)
			continue
		}

		_ = m.channels[name].Send(ctx, alert) //nolint:errcheck // каналы логируют ошибки сами
		sent++
	}

	m.logger.Debug("multi-channel рассылка завершена",
		"error_code", alert.ErrorCode,
		"channels_sent", sent,
		"channels_total", len(m.channelNames),
	)
	return nil
}
