package metrics

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/zzaxusl0a/APRS-notify/internal/pkg/logging"
	"github.com/zzaxusl0a/APRS-notify/internal/pkg/urlutil"
)

const namespace = "aprs_notify"

// maxLabelLength - максимальная длина значения label для защиты от cardinality explosion.
const maxLabelLength = 128

// PrometheusCollector реализует Collector на собственном registry.
type PrometheusCollector struct {
	config   Config
	logger   logging.Logger
	registry *prometheus.Registry
	instance string

	commandDuration *prometheus.HistogramVec
	inbound         *prometheus.CounterVec
	evaluations     *prometheus.CounterVec
	alerts          *prometheus.CounterVec
	notifications   *prometheus.CounterVec
	systemErrors    *prometheus.CounterVec
}

// NewPrometheusCollector создаёт PrometheusCollector и регистрирует метрики:
//   - aprs_notify_command_duration_seconds (histogram)
//   - aprs_notify_inbound_commands_total (counter)
//   - aprs_notify_evaluations_total (counter)
//   - aprs_notify_alerts_sent_total (counter)
//   - aprs_notify_notifications_total (counter)
//   - aprs_notify_system_errors_total (counter)
func NewPrometheusCollector(config Config, logger logging.Logger) (*PrometheusCollector, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	instance := config.InstanceLabel
	if instance == "" {
		hostname, err := os.Hostname()
		if err != nil {
			logger.Warn("не удалось получить hostname для metrics instance label, используется 'unknown'",
				"error", err.Error())
			hostname = "unknown"
		}
		instance = hostname
	}

	c := &PrometheusCollector{
		config:   config,
		logger:   logger,
		registry: prometheus.NewRegistry(),
		instance: instance,
		commandDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "command_duration_seconds",
			Help:      "Duration of CLI command execution in seconds",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
		}, []string{"command", "status"}),
		inbound: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "inbound_commands_total",
			Help:      "Inbound SMS commands by verb and outcome",
		}, []string{"command", "outcome"}),
		evaluations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evaluations_total",
			Help:      "Telemetry evaluations by callsign and condition",
		}, []string{"callsign", "condition"}),
		alerts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_sent_total",
			Help:      "Alert notifications dispatched on transition into a violating condition",
		}, []string{"callsign", "condition"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Outbound SMS by kind and status",
		}, []string{"kind", "status"}),
		systemErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "system_errors_total",
			Help:      "Transport errors by subsystem code",
		}, []string{"code"}),
	}

	// Register вместо MustRegister: ошибка возможна только при дублировании имён.
	for _, m := range []prometheus.Collector{
		c.commandDuration, c.inbound, c.evaluations, c.alerts, c.notifications, c.systemErrors,
	} {
		if err := c.registry.Register(m); err != nil {
			return nil, fmt.Errorf("ошибка регистрации метрики: %w", err)
		}
	}

	return c, nil
}

// sanitizeLabel обрезает значение label до maxLabelLength рун и заменяет контрольные символы.
func sanitizeLabel(value string) string {
	clean := strings.Map(func(r rune) rune {
		if r < 0x20 {
			return '_'
		}
		return r
	}, value)

	runes := []rune(clean)
	if len(runes) > maxLabelLength {
		return string(runes[:maxLabelLength])
	}
	return clean
}

func statusLabel(success bool) string {
	if success {
		return "success"
	}
	return "error"
}

// RecordCommandStart пишет только debug лог: in-flight не отслеживается.
func (c *PrometheusCollector) RecordCommandStart(command string) {
	c.logger.Debug("metrics: command started", "command", command)
}

// RecordCommandEnd обновляет histogram длительности команды.
func (c *PrometheusCollector) RecordCommandEnd(command string, duration time.Duration, success bool) {
	c.commandDuration.WithLabelValues(sanitizeLabel(command), statusLabel(success)).Observe(duration.Seconds())
}

// RecordInbound увеличивает счётчик входящих команд.
func (c *PrometheusCollector) RecordInbound(command, outcome string) {
	c.inbound.WithLabelValues(sanitizeLabel(command), sanitizeLabel(outcome)).Inc()
}

// RecordEvaluation увеличивает счётчик оценок и, при отправке алерта, счётчик алертов.
func (c *PrometheusCollector) RecordEvaluation(callsign, condition string, notified bool) {
	callsign = sanitizeLabel(callsign)
	condition = sanitizeLabel(condition)
	c.evaluations.WithLabelValues(callsign, condition).Inc()
	if notified {
		c.alerts.WithLabelValues(callsign, condition).Inc()
	}
}

// RecordNotification увеличивает счётчик исходящих SMS.
func (c *PrometheusCollector) RecordNotification(kind string, success bool) {
	c.notifications.WithLabelValues(sanitizeLabel(kind), statusLabel(success)).Inc()
}

// RecordSystemError увеличивает счётчик системных ошибок.
func (c *PrometheusCollector) RecordSystemError(code string) {
	c.systemErrors.WithLabelValues(sanitizeLabel(code)).Inc()
}

// Handler возвращает scrape handler для собственного registry.
func (c *PrometheusCollector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Push отправляет метрики в Pushgateway. Ошибка логируется, возвращается nil.
func (c *PrometheusCollector) Push(ctx context.Context) error {
	if c.config.PushgatewayURL == "" {
		c.logger.Debug("metrics: pushgateway URL not configured, skipping push")
		return nil
	}

	if ctx.Err() != nil {
		c.logger.Debug("metrics push отменён")
		return nil
	}

	pushCtx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	err := push.New(c.config.PushgatewayURL, c.config.JobName).
		Gatherer(c.registry).
		Grouping("instance", c.instance).
		PushContext(pushCtx)
	if err != nil {
		c.logger.Error("ошибка отправки метрик в Pushgateway",
			"error", err.Error(),
			"url", urlutil.MaskURL(c.config.PushgatewayURL),
			"job", c.config.JobName,
		)
		return nil
	}

	c.logger.Debug("метрики отправлены в Pushgateway",
		"url", urlutil.MaskURL(c.config.PushgatewayURL),
		"job", c.config.JobName,
		"instance", c.instance,
	)
	return nil
}

// GetRegistry возвращает внутренний registry. Используется в тестах.
func (c *PrometheusCollector) GetRegistry() *prometheus.Registry {
	return c.registry
}
