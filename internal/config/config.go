// Package config загружает конфигурацию aprs-notify.
// Источники в порядке приоритета: переменные окружения AN_*, YAML файл
// (AN_CONFIG_FILE), значения по умолчанию из тегов env-default.
package config

import "time"

// Config - корневая конфигурация приложения.
// После Load не изменяется и передаётся компонентам при создании.
type Config struct {
	// Command - имя выполняемой команды (аргумент CLI или AN_COMMAND).
	Command string `yaml:"-" env:"AN_COMMAND"`

	// ConfigFile - путь к YAML файлу конфигурации.
	ConfigFile string `yaml:"-" env:"AN_CONFIG_FILE"`

	// OutputFormat - формат вывода команд: "text", "json" или "ndjson".
	OutputFormat string `yaml:"outputFormat" env:"AN_OUTPUT_FORMAT" env-default:"text"`

	// Callsign и OwnerPhone - параметры команд poll и status.
	Callsign   string `yaml:"-" env:"AN_CALLSIGN"`
	OwnerPhone string `yaml:"-" env:"AN_OWNER_PHONE"`

	// WatchdogInput - файл с конвертом CloudWatch Logs для команды watchdog.
	// Пустое значение или "-" означает stdin.
	WatchdogInput string `yaml:"-" env:"AN_WATCHDOG_INPUT"`

	Server    ServerConfig    `yaml:"server"`
	APRS      APRSConfig      `yaml:"aprs"`
	Twilio    TwilioConfig    `yaml:"twilio"`
	Monitor   MonitorConfig   `yaml:"monitor"`
	Session   SessionConfig   `yaml:"session"`
	Watchdog  WatchdogConfig  `yaml:"watchdog"`
	Storage   StorageConfig   `yaml:"storage"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Influx    InfluxConfig    `yaml:"influx"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Tracing   TracingConfig   `yaml:"tracing"`
	Alerting  AlertingConfig  `yaml:"alerting"`
}

// ServerConfig - HTTP сервер команды serve.
type ServerConfig struct {
	Addr string `yaml:"addr" env:"AN_SERVER_ADDR" env-default:":8080"`

	// PublicBaseURL - внешний адрес сервиса (схема и хост), по которому Twilio
	// вызывает webhook. Участвует в проверке подписи.
	PublicBaseURL string `yaml:"publicBaseUrl" env:"AN_SERVER_PUBLIC_BASE_URL"`

	WebhookPath  string `yaml:"webhookPath" env:"AN_SERVER_WEBHOOK_PATH" env-default:"/sms"`
	WatchdogPath string `yaml:"watchdogPath" env:"AN_SERVER_WATCHDOG_PATH" env-default:"/watchdog"`
	MetricsPath  string `yaml:"metricsPath" env:"AN_SERVER_METRICS_PATH" env-default:"/metrics"`

	// WatchdogToken - bearer токен для приёма пакетов watchdog. Пустой токен
	// отключает HTTP приём.
	WatchdogToken string `yaml:"watchdogToken" env:"AN_SERVER_WATCHDOG_TOKEN"`

	ReadTimeout     time.Duration `yaml:"readTimeout" env:"AN_SERVER_READ_TIMEOUT" env-default:"10s"`
	WriteTimeout    time.Duration `yaml:"writeTimeout" env:"AN_SERVER_WRITE_TIMEOUT" env-default:"30s"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout" env:"AN_SERVER_SHUTDOWN_TIMEOUT" env-default:"15s"`

	// RequestTimeout ограничивает обработку одного входящего запроса.
	RequestTimeout time.Duration `yaml:"requestTimeout" env:"AN_SERVER_REQUEST_TIMEOUT" env-default:"20s"`

	MaxBodyBytes int64 `yaml:"maxBodyBytes" env:"AN_SERVER_MAX_BODY_BYTES" env-default:"1048576"`
}

// BreakerConfig - параметры circuit breaker внешнего вызова.
type BreakerConfig struct {
	// MaxFailures - подряд идущие ошибки до размыкания.
	MaxFailures uint32        `yaml:"maxFailures" env:"MAX_FAILURES" env-default:"5"`
	OpenTimeout time.Duration `yaml:"openTimeout" env:"OPEN_TIMEOUT" env-default:"1m"`
}

// APRSConfig - клиент aprs.fi.
type APRSConfig struct {
	BaseURL   string        `yaml:"baseUrl" env:"AN_APRS_BASE_URL" env-default:"https://api.aprs.fi/api/get"`
	APIKey    string        `yaml:"apiKey" env:"AN_APRS_API_KEY"`
	Timeout   time.Duration `yaml:"timeout" env:"AN_APRS_TIMEOUT" env-default:"10s"`
	UserAgent string        `yaml:"userAgent" env:"AN_APRS_USER_AGENT" env-default:"aprs-notify/1.0 (+https://github.com/zzaxusl0a/APRS-notify)"`

	Breaker BreakerConfig `yaml:"breaker" env-prefix:"AN_APRS_BREAKER_"`
}

// TwilioConfig - SMS шлюз Twilio.
type TwilioConfig struct {
	AccountSID string `yaml:"accountSid" env:"AN_TWILIO_ACCOUNT_SID"`
	AuthToken  string `yaml:"authToken" env:"AN_TWILIO_AUTH_TOKEN"`

	// MessagingServiceSID имеет приоритет над From.
	MessagingServiceSID string `yaml:"messagingServiceSid" env:"AN_TWILIO_MESSAGING_SERVICE_SID"`
	From                string `yaml:"from" env:"AN_TWILIO_FROM"`

	BaseURL string        `yaml:"baseUrl" env:"AN_TWILIO_BASE_URL" env-default:"https://api.twilio.com"`
	Timeout time.Duration `yaml:"timeout" env:"AN_TWILIO_TIMEOUT" env-default:"10s"`

	// DryRun - SMS не отправляются, только логируются.
	DryRun bool `yaml:"dryRun" env:"AN_TWILIO_DRY_RUN"`

	// ReplyToSender - отвечать отправителю команды отдельным SMS.
	ReplyToSender bool `yaml:"replyToSender" env:"AN_TWILIO_REPLY_TO_SENDER"`

	Breaker BreakerConfig `yaml:"breaker" env-prefix:"AN_TWILIO_BREAKER_"`
}

// MonitorConfig - пороги оценки телеметрии.
type MonitorConfig struct {
	MaxTemp      float64       `yaml:"maxTemp" env:"AN_MONITOR_MAX_TEMP" env-default:"85"`
	MinTemp      float64       `yaml:"minTemp" env:"AN_MONITOR_MIN_TEMP" env-default:"40"`
	MaxTempDelta float64       `yaml:"maxTempDelta" env:"AN_MONITOR_MAX_TEMP_DELTA" env-default:"3"`
	MaxBeaconAge time.Duration `yaml:"maxBeaconAge" env:"AN_MONITOR_MAX_BEACON_AGE" env-default:"5m"`

	// MismatchDelta - расхождение внутреннего и внешнего датчиков.
	MismatchDelta float64 `yaml:"mismatchDelta" env:"AN_MONITOR_MISMATCH_DELTA" env-default:"20"`

	// MalfunctionAbove - значение датчика выше порога считается неисправностью.
	MalfunctionAbove float64 `yaml:"malfunctionAbove" env:"AN_MONITOR_MALFUNCTION_ABOVE" env-default:"199"`

	// Timeout ограничивает один цикл оценки целиком.
	Timeout time.Duration `yaml:"timeout" env:"AN_MONITOR_TIMEOUT" env-default:"45s"`

	// Domain - имя домена (таблицы) состояния алертов.
	Domain string `yaml:"domain" env:"AN_MONITOR_DOMAIN" env-default:"APRS_tracker"`
}

// SessionConfig - окна сессий мониторинга.
type SessionConfig struct {
	DefaultWindow    time.Duration `yaml:"defaultWindow" env:"AN_SESSION_DEFAULT_WINDOW" env-default:"4h"`
	MaxTotalDuration time.Duration `yaml:"maxTotalDuration" env:"AN_SESSION_MAX_TOTAL_DURATION" env-default:"24h"`
	PollInterval     time.Duration `yaml:"pollInterval" env:"AN_SESSION_POLL_INTERVAL" env-default:"5m"`
	JobPrefix        string        `yaml:"jobPrefix" env:"AN_SESSION_JOB_PREFIX" env-default:"aprs-notify-"`
	Timeout          time.Duration `yaml:"timeout" env:"AN_SESSION_TIMEOUT" env-default:"10s"`
}

// WatchdogConfig - уведомление оператора о сбоях.
type WatchdogConfig struct {
	OperatorPhone string        `yaml:"operatorPhone" env:"AN_WATCHDOG_OPERATOR_PHONE"`
	Prefix        string        `yaml:"prefix" env:"AN_WATCHDOG_PREFIX" env-default:"Alerting Stopped! Error: "`
	MaxLength     int           `yaml:"maxLength" env:"AN_WATCHDOG_MAX_LENGTH" env-default:"300"`
	Timeout       time.Duration `yaml:"timeout" env:"AN_WATCHDOG_TIMEOUT" env-default:"15s"`
}

// StorageConfig - SQL хранилище состояния и расписаний.
type StorageConfig struct {
	// Driver: "sqlite" или "sqlserver".
	Driver string `yaml:"driver" env:"AN_STORAGE_DRIVER" env-default:"sqlite"`

	// Path - файл базы SQLite.
	Path string `yaml:"path" env:"AN_STORAGE_PATH" env-default:"aprs-notify.db"`

	// DSN - строка подключения SQL Server. Если пуста, собирается из полей ниже.
	DSN      string `yaml:"dsn" env:"AN_STORAGE_DSN"`
	Server   string `yaml:"server" env:"AN_STORAGE_SERVER"`
	Port     int    `yaml:"port" env:"AN_STORAGE_PORT" env-default:"1433"`
	Database string `yaml:"database" env:"AN_STORAGE_DATABASE" env-default:"aprs_notify"`
	User     string `yaml:"user" env:"AN_STORAGE_USER"`
	Password string `yaml:"password" env:"AN_STORAGE_PASSWORD"`

	// Timeout ограничивает каждый запрос к базе.
	Timeout time.Duration `yaml:"timeout" env:"AN_STORAGE_TIMEOUT" env-default:"5s"`

	// MigrateMaxElapsed - сколько ждать доступности базы при старте.
	MigrateMaxElapsed time.Duration `yaml:"migrateMaxElapsed" env:"AN_STORAGE_MIGRATE_MAX_ELAPSED" env-default:"30s"`
}

// SchedulerConfig - встроенный исполнитель периодических опросов.
type SchedulerConfig struct {
	// RunnerDisabled - serve не запускает исполнитель (опросы вызываются извне командой poll).
	RunnerDisabled bool          `yaml:"runnerDisabled" env:"AN_SCHEDULER_RUNNER_DISABLED"`
	Tick           time.Duration `yaml:"tick" env:"AN_SCHEDULER_TICK" env-default:"15s"`
	MaxConcurrent  int           `yaml:"maxConcurrent" env:"AN_SCHEDULER_MAX_CONCURRENT" env-default:"4"`
}

// InfluxConfig - история температур в InfluxDB.
type InfluxConfig struct {
	Enabled     bool          `yaml:"enabled" env:"AN_INFLUX_ENABLED"`
	URL         string        `yaml:"url" env:"AN_INFLUX_URL"`
	Token       string        `yaml:"token" env:"AN_INFLUX_TOKEN"`
	Org         string        `yaml:"org" env:"AN_INFLUX_ORG"`
	Bucket      string        `yaml:"bucket" env:"AN_INFLUX_BUCKET" env-default:"aprs"`
	Measurement string        `yaml:"measurement" env:"AN_INFLUX_MEASUREMENT" env-default:"beacon_temperature"`
	Timeout     time.Duration `yaml:"timeout" env:"AN_INFLUX_TIMEOUT" env-default:"5s"`
}

// MQTTConfig - публикация событий смены состояния алерта.
type MQTTConfig struct {
	Enabled        bool          `yaml:"enabled" env:"AN_MQTT_ENABLED"`
	Broker         string        `yaml:"broker" env:"AN_MQTT_BROKER"`
	ClientID       string        `yaml:"clientId" env:"AN_MQTT_CLIENT_ID" env-default:"aprs-notify"`
	Username       string        `yaml:"username" env:"AN_MQTT_USERNAME"`
	Password       string        `yaml:"password" env:"AN_MQTT_PASSWORD"`
	TopicPrefix    string        `yaml:"topicPrefix" env:"AN_MQTT_TOPIC_PREFIX" env-default:"aprs-notify/alerts"`
	QoS            byte          `yaml:"qos" env:"AN_MQTT_QOS" env-default:"1"`
	ConnectTimeout time.Duration `yaml:"connectTimeout" env:"AN_MQTT_CONNECT_TIMEOUT" env-default:"10s"`
	PublishTimeout time.Duration `yaml:"publishTimeout" env:"AN_MQTT_PUBLISH_TIMEOUT" env-default:"5s"`
	MaxRetries     uint64        `yaml:"maxRetries" env:"AN_MQTT_MAX_RETRIES" env-default:"3"`
}

// LoggingConfig - настройки логирования.
type LoggingConfig struct {
	Level    string `yaml:"level" env:"AN_LOG_LEVEL" env-default:"info"`
	Format   string `yaml:"format" env:"AN_LOG_FORMAT" env-default:"json"`
	Output   string `yaml:"output" env:"AN_LOG_OUTPUT" env-default:"stderr"`
	FilePath string `yaml:"filePath" env:"AN_LOG_FILE_PATH" env-default:"/var/log/aprs-notify.log"`

	MaxSize    int `yaml:"maxSize" env:"AN_LOG_MAX_SIZE" env-default:"50"`
	MaxBackups int `yaml:"maxBackups" env:"AN_LOG_MAX_BACKUPS" env-default:"5"`
	MaxAge     int `yaml:"maxAge" env:"AN_LOG_MAX_AGE" env-default:"14"`

	// Compress без env-default: cleanenv перезаписал бы явный false из YAML.
	Compress bool `yaml:"compress" env:"AN_LOG_COMPRESS"`
}

// MetricsConfig - метрики Prometheus.
type MetricsConfig struct {
	Enabled        bool          `yaml:"enabled" env:"AN_METRICS_ENABLED"`
	PushgatewayURL string        `yaml:"pushgatewayUrl" env:"AN_METRICS_PUSHGATEWAY_URL"`
	JobName        string        `yaml:"jobName" env:"AN_METRICS_JOB_NAME" env-default:"aprs-notify"`
	Timeout        time.Duration `yaml:"timeout" env:"AN_METRICS_TIMEOUT" env-default:"10s"`
	InstanceLabel  string        `yaml:"instanceLabel" env:"AN_METRICS_INSTANCE"`
}

// TracingConfig - OpenTelemetry трейсинг.
type TracingConfig struct {
	Enabled     bool   `yaml:"enabled" env:"AN_TRACING_ENABLED"`
	Endpoint    string `yaml:"endpoint" env:"AN_TRACING_ENDPOINT"`
	ServiceName string `yaml:"serviceName" env:"AN_TRACING_SERVICE_NAME" env-default:"aprs-notify"`
	Environment string `yaml:"environment" env:"AN_TRACING_ENVIRONMENT" env-default:"production"`

	// Insecure - HTTP вместо HTTPS для OTLP endpoint.
	Insecure bool `yaml:"insecure" env:"AN_TRACING_INSECURE"`

	Timeout      time.Duration `yaml:"timeout" env:"AN_TRACING_TIMEOUT" env-default:"5s"`
	SamplingRate float64       `yaml:"samplingRate" env:"AN_TRACING_SAMPLING_RATE" env-default:"1.0"`
}

// AlertingConfig - операторские алерты о системных ошибках.
type AlertingConfig struct {
	Enabled         bool          `yaml:"enabled" env:"AN_ALERTING_ENABLED"`
	RateLimitWindow time.Duration `yaml:"rateLimitWindow" env:"AN_ALERTING_RATE_LIMIT_WINDOW" env-default:"15m"`

	Telegram TelegramChannelConfig `yaml:"telegram"`
	Webhook  WebhookChannelConfig  `yaml:"webhook"`
	SMS      SMSChannelConfig      `yaml:"sms"`
	Rules    AlertRulesConfig      `yaml:"rules"`
}

// TelegramChannelConfig - канал Telegram.
type TelegramChannelConfig struct {
	Enabled  bool          `yaml:"enabled" env:"AN_ALERTING_TELEGRAM_ENABLED"`
	BotToken string        `yaml:"botToken" env:"AN_ALERTING_TELEGRAM_BOT_TOKEN"`
	ChatIDs  []string      `yaml:"chatIds" env:"AN_ALERTING_TELEGRAM_CHAT_IDS" env-separator:","`
	Timeout  time.Duration `yaml:"timeout" env:"AN_ALERTING_TELEGRAM_TIMEOUT" env-default:"10s"`
}

// WebhookChannelConfig - канал webhook.
type WebhookChannelConfig struct {
	Enabled bool     `yaml:"enabled" env:"AN_ALERTING_WEBHOOK_ENABLED"`
	URLs    []string `yaml:"urls" env:"AN_ALERTING_WEBHOOK_URLS" env-separator:","`

	// Headers задаются только в YAML.
	Headers map[string]string `yaml:"headers"`

	Timeout    time.Duration `yaml:"timeout" env:"AN_ALERTING_WEBHOOK_TIMEOUT" env-default:"10s"`
	MaxRetries int           `yaml:"maxRetries" env:"AN_ALERTING_WEBHOOK_MAX_RETRIES"`
}

// SMSChannelConfig - канал SMS через тот же шлюз Twilio.
type SMSChannelConfig struct {
	Enabled bool          `yaml:"enabled" env:"AN_ALERTING_SMS_ENABLED"`
	To      []string      `yaml:"to" env:"AN_ALERTING_SMS_TO" env-separator:","`
	Timeout time.Duration `yaml:"timeout" env:"AN_ALERTING_SMS_TIMEOUT" env-default:"10s"`
}

// AlertRulesConfig - правила фильтрации алертов.
type AlertRulesConfig struct {
	MinSeverity       string   `yaml:"minSeverity" env:"AN_ALERTING_RULES_MIN_SEVERITY" env-default:"INFO"`
	ExcludeErrorCodes []string `yaml:"excludeErrorCodes" env:"AN_ALERTING_RULES_EXCLUDE_ERRORS" env-separator:","`
	IncludeErrorCodes []string `yaml:"includeErrorCodes" env:"AN_ALERTING_RULES_INCLUDE_ERRORS" env-separator:","`
	ExcludeOperations []string `yaml:"excludeOperations" env:"AN_ALERTING_RULES_EXCLUDE_OPERATIONS" env-separator:","`
	IncludeOperations []string `yaml:"includeOperations" env:"AN_ALERTING_RULES_INCLUDE_OPERATIONS" env-separator:","`

	// Channels - правила конкретного канала, только YAML.
	// Override ПОЛНОСТЬЮ ЗАМЕНЯЕТ глобальные правила для канала.
	Channels map[string]ChannelRuleConfig `yaml:"channels"`
}

// ChannelRuleConfig - правила одного канала алертинга.
type ChannelRuleConfig struct {
	MinSeverity       string   `yaml:"minSeverity"`
	ExcludeErrorCodes []string `yaml:"excludeErrorCodes"`
	IncludeErrorCodes []string `yaml:"includeErrorCodes"`
	ExcludeOperations []string `yaml:"excludeOperations"`
	IncludeOperations []string `yaml:"includeOperations"`
}
