package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/ilyakaznacheev/cleanenv"
	"gopkg.in/yaml.v3"

	"github.com/zzaxusl0a/APRS-notify/internal/pkg/apperrors"
	"github.com/zzaxusl0a/APRS-notify/internal/pkg/output"
)

// EnvConfigFile - переменная окружения с путём к YAML файлу.
const EnvConfigFile = "AN_CONFIG_FILE"

// Драйверы хранилища.
const (
	DriverSQLite    = "sqlite"
	DriverSQLServer = "sqlserver"
)

// Load загружает конфигурацию: YAML файл (если задан AN_CONFIG_FILE), затем
// переменные окружения AN_*, затем значения по умолчанию для незаданных полей.
// Ошибки возвращаются как *apperrors.AppError с кодами CONFIG.*.
func Load() (*Config, error) {
	cfg := &Config{}

	if path := os.Getenv(EnvConfigFile); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, apperrors.NewAppError(apperrors.ErrConfigLoad,
				"не удалось прочитать файл конфигурации", err)
		}
		if err := decodeYAML(data, cfg); err != nil {
			return nil, apperrors.NewAppError(apperrors.ErrConfigParse,
				"некорректный YAML файл конфигурации", err)
		}
	}

	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, apperrors.NewAppError(apperrors.ErrConfigParse,
			"не удалось прочитать переменные окружения", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, apperrors.NewAppError(apperrors.ErrConfigValidate,
			"конфигурация не прошла проверку", err)
	}
	return cfg, nil
}

// decodeYAML разбирает YAML строго: неизвестные ключи - ошибка.
// Пустой документ допустим.
func decodeYAML(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// Validate проверяет конфигурацию целиком.
// Секции, которые нужны только отдельным командам (сервер, Twilio),
// проверяются мягко: пустые значения допустимы, некорректные - нет.
func (c *Config) Validate() error {
	format, ok := output.ParseFormat(c.OutputFormat)
	if !ok {
		return fmt.Errorf("outputFormat: ожидается text, json или ndjson, получено %q", c.OutputFormat)
	}
	c.OutputFormat = format
	validators := []func() error{
		c.Server.validate,
		c.APRS.validate,
		c.Twilio.validate,
		c.Monitor.validate,
		c.Session.validate,
		c.Watchdog.validate,
		c.Storage.validate,
		c.Scheduler.validate,
		c.Influx.validate,
		c.MQTT.validate,
		c.Tracing.validate,
		c.Alerting.validate,
	}
	for _, v := range validators {
		if err := v(); err != nil {
			return err
		}
	}
	return nil
}

func (s *ServerConfig) validate() error {
	if s.PublicBaseURL != "" && !validHTTPURL(s.PublicBaseURL) {
		return fmt.Errorf("server.publicBaseUrl: ожидается http(s) URL")
	}
	for name, p := range map[string]string{
		"webhookPath":  s.WebhookPath,
		"watchdogPath": s.WatchdogPath,
		"metricsPath":  s.MetricsPath,
	} {
		if !strings.HasPrefix(p, "/") {
			return fmt.Errorf("server.%s: путь должен начинаться с /", name)
		}
	}
	if s.MaxBodyBytes <= 0 {
		return fmt.Errorf("server.maxBodyBytes: должно быть положительным")
	}
	if s.RequestTimeout <= 0 {
		return fmt.Errorf("server.requestTimeout: должен быть положительным")
	}
	return nil
}

func (a *APRSConfig) validate() error {
	if !validHTTPURL(a.BaseURL) {
		return fmt.Errorf("aprs.baseUrl: ожидается http(s) URL")
	}
	if a.Timeout <= 0 {
		return fmt.Errorf("aprs.timeout: должен быть положительным")
	}
	return nil
}

func (t *TwilioConfig) validate() error {
	if !validHTTPURL(t.BaseURL) {
		return fmt.Errorf("twilio.baseUrl: ожидается http(s) URL")
	}
	if t.Timeout <= 0 {
		return fmt.Errorf("twilio.timeout: должен быть положительным")
	}
	return nil
}

// ValidateForSending проверяет, что шлюз Twilio настроен для реальной отправки.
func (t *TwilioConfig) ValidateForSending() error {
	if t.DryRun {
		return nil
	}
	if t.AccountSID == "" || t.AuthToken == "" {
		return fmt.Errorf("twilio: accountSid и authToken обязательны")
	}
	if t.MessagingServiceSID == "" && t.From == "" {
		return fmt.Errorf("twilio: нужен messagingServiceSid или from")
	}
	return nil
}

func (m *MonitorConfig) validate() error {
	if m.MinTemp >= m.MaxTemp {
		return fmt.Errorf("monitor: minTemp (%g) должен быть меньше maxTemp (%g)", m.MinTemp, m.MaxTemp)
	}
	if m.MaxTempDelta <= 0 || m.MismatchDelta <= 0 {
		return fmt.Errorf("monitor: maxTempDelta и mismatchDelta должны быть положительными")
	}
	if m.MaxBeaconAge <= 0 || m.Timeout <= 0 {
		return fmt.Errorf("monitor: maxBeaconAge и timeout должны быть положительными")
	}
	if m.Domain == "" {
		return fmt.Errorf("monitor.domain: обязателен")
	}
	return nil
}

func (s *SessionConfig) validate() error {
	if s.DefaultWindow <= 0 || s.PollInterval <= 0 || s.Timeout <= 0 {
		return fmt.Errorf("session: defaultWindow, pollInterval и timeout должны быть положительными")
	}
	if s.MaxTotalDuration < s.DefaultWindow {
		return fmt.Errorf("session.maxTotalDuration (%s) меньше defaultWindow (%s)", s.MaxTotalDuration, s.DefaultWindow)
	}
	if s.JobPrefix == "" {
		return fmt.Errorf("session.jobPrefix: обязателен")
	}
	return nil
}

func (w *WatchdogConfig) validate() error {
	if w.MaxLength <= len([]rune(w.Prefix)) {
		return fmt.Errorf("watchdog.maxLength (%d) не вмещает префикс", w.MaxLength)
	}
	if w.Timeout <= 0 {
		return fmt.Errorf("watchdog.timeout: должен быть положительным")
	}
	return nil
}

func (s *StorageConfig) validate() error {
	switch s.Driver {
	case DriverSQLite:
		if s.Path == "" {
			return fmt.Errorf("storage.path: обязателен для sqlite")
		}
	case DriverSQLServer:
		if s.DSN == "" && s.Server == "" {
			return fmt.Errorf("storage: для sqlserver нужен dsn или server")
		}
	default:
		return fmt.Errorf("storage.driver: ожидается %s или %s, получено %q", DriverSQLite, DriverSQLServer, s.Driver)
	}
	if s.Timeout <= 0 {
		return fmt.Errorf("storage.timeout: должен быть положительным")
	}
	return nil
}

// SQLServerDSN возвращает строку подключения SQL Server.
func (s *StorageConfig) SQLServerDSN() string {
	if s.DSN != "" {
		return s.DSN
	}
	u := &url.URL{
		Scheme: "sqlserver",
		User:   url.UserPassword(s.User, s.Password),
		Host:   fmt.Sprintf("%s:%d", s.Server, s.Port),
	}
	q := url.Values{}
	q.Set("database", s.Database)
	u.RawQuery = q.Encode()
	return u.String()
}

func (s *SchedulerConfig) validate() error {
	if s.Tick <= 0 {
		return fmt.Errorf("scheduler.tick: должен быть положительным")
	}
	if s.MaxConcurrent <= 0 {
		return fmt.Errorf("scheduler.maxConcurrent: должно быть положительным")
	}
	return nil
}

func (i *InfluxConfig) validate() error {
	if !i.Enabled {
		return nil
	}
	if !validHTTPURL(i.URL) {
		return fmt.Errorf("influx.url: ожидается http(s) URL")
	}
	if i.Org == "" || i.Bucket == "" {
		return fmt.Errorf("influx: org и bucket обязательны при enabled=true")
	}
	return nil
}

func (m *MQTTConfig) validate() error {
	if !m.Enabled {
		return nil
	}
	if m.Broker == "" {
		return fmt.Errorf("mqtt.broker: обязателен при enabled=true")
	}
	if m.QoS > 2 {
		return fmt.Errorf("mqtt.qos: ожидается 0, 1 или 2, получено %d", m.QoS)
	}
	return nil
}

func (t *TracingConfig) validate() error {
	if !t.Enabled {
		return nil
	}
	if t.Endpoint == "" {
		return fmt.Errorf("tracing: endpoint обязателен при enabled=true")
	}
	if t.SamplingRate < 0.0 || t.SamplingRate > 1.0 {
		return fmt.Errorf("tracing: sampling rate должен быть от 0.0 до 1.0, получено: %g", t.SamplingRate)
	}
	return nil
}

// validate - предварительная проверка наличия обязательных полей.
// Формат значений проверяет alerting.Config.Validate при создании Alerter.
func (a *AlertingConfig) validate() error {
	if !a.Enabled {
		return nil
	}
	if a.Telegram.Enabled && (a.Telegram.BotToken == "" || len(a.Telegram.ChatIDs) == 0) {
		return fmt.Errorf("alerting.telegram: botToken и chatIds обязательны")
	}
	if a.Webhook.Enabled && len(a.Webhook.URLs) == 0 {
		return fmt.Errorf("alerting.webhook: хотя бы один URL обязателен")
	}
	if a.SMS.Enabled && len(a.SMS.To) == 0 {
		return fmt.Errorf("alerting.sms: хотя бы один номер обязателен")
	}
	return nil
}

func validHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
