package alerting

import (
	"fmt"

	"github.com/zzaxusl0a/APRS-notify/internal/pkg/logging"
)

// NewAlerter собирает Alerter из конфигурации.
// Выключенный алертинг или отсутствие каналов дают NopAlerter, иначе
// MultiChannelAlerter с общим RateLimiter и RulesEngine.
// sender нужен только при включённом SMS канале.
//
//	alerter, err := alerting.NewAlerter(alerting.Config{
//	    Enabled: true,
//	    SMS:     alerting.SMSConfig{Enabled: true, To: []string{"+15551234567"}},
//	}, alerting.RulesConfig{MinSeverity: "WARNING"}, twilioClient, logger)
func NewAlerter(config Config, rules RulesConfig, sender SMSSender, logger logging.Logger) (Alerter, error) {
	if !config.Enabled {
		return NewNopAlerter(), nil
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	window := config.RateLimitWindow
	if window == 0 {
		window = DefaultRateLimitWindow
	}

	channels := make(map[string]Alerter)
	if config.Telegram.Enabled {
		channels[ChannelTelegram] = NewTelegramAlerter(config.Telegram, logger)
	}
	if config.Webhook.Enabled {
		channels[ChannelWebhook] = NewWebhookAlerter(config.Webhook, logger)
	}
	if config.SMS.Enabled {
		smsAlerter, err := NewSMSAlerter(config.SMS, sender, logger)
		if err != nil {
			return nil, fmt.Errorf("создание sms alerter: %w", err)
		}
		channels[ChannelSMS] = smsAlerter
	}

	if len(channels) == 0 {
		logger.Warn("alerting включён, но нет настроенных каналов — используется NopAlerter")
		return NewNopAlerter(), nil
	}

	if rules.MinSeverity != "" {
		for name, ch := range rules.Channels {
			if ch.MinSeverity == "" {
				logger.Warn("channel override без minSeverity — будет использован INFO, а не глобальный",
					"channel", name,
					"global_min_severity", rules.MinSeverity,
				)
			}
		}
	}

	return NewMultiChannelAlerter(channels, NewRulesEngine(rules), NewRateLimiter(window), logger), nil
}
