package di

import (
	"context"
	"time"

	"github.com/zzaxusl0a/APRS-notify/internal/adapter/aprsfi"
	"github.com/zzaxusl0a/APRS-notify/internal/adapter/influx"
	"github.com/zzaxusl0a/APRS-notify/internal/adapter/kvstore"
	"github.com/zzaxusl0a/APRS-notify/internal/adapter/mqtt"
	"github.com/zzaxusl0a/APRS-notify/internal/adapter/scheduler"
	"github.com/zzaxusl0a/APRS-notify/internal/adapter/storage"
	"github.com/zzaxusl0a/APRS-notify/internal/adapter/twilio"
	"github.com/zzaxusl0a/APRS-notify/internal/config"
	"github.com/zzaxusl0a/APRS-notify/internal/constants"
	"github.com/zzaxusl0a/APRS-notify/internal/incident"
	"github.com/zzaxusl0a/APRS-notify/internal/monitor"
	"github.com/zzaxusl0a/APRS-notify/internal/notify"
	"github.com/zzaxusl0a/APRS-notify/internal/pkg/alerting"
	"github.com/zzaxusl0a/APRS-notify/internal/pkg/logging"
	"github.com/zzaxusl0a/APRS-notify/internal/pkg/metrics"
	"github.com/zzaxusl0a/APRS-notify/internal/pkg/output"
	"github.com/zzaxusl0a/APRS-notify/internal/pkg/tracing"
	"github.com/zzaxusl0a/APRS-notify/internal/server"
	"github.com/zzaxusl0a/APRS-notify/internal/session"
	"github.com/zzaxusl0a/APRS-notify/internal/watchdog"
	"github.com/zzaxusl0a/APRS-notify/internal/webhook"
)

// ProvideLogger создаёт Logger на основе секции logging.
// При nil Config используются значения по умолчанию (info, text, stderr).
func ProvideLogger(cfg *config.Config) logging.Logger {
	logCfg := logging.DefaultConfig()
	if cfg == nil {
		return logging.NewLogger(logCfg)
	}

	lc := cfg.Logging
	if lc.Level != "" {
		logCfg.Level = lc.Level
	}
	if lc.Format != "" {
		logCfg.Format = lc.Format
	}
	if lc.Output != "" {
		logCfg.Output = lc.Output
	}
	if lc.FilePath != "" {
		logCfg.FilePath = lc.FilePath
	}
	if lc.MaxSize > 0 {
		logCfg.MaxSize = lc.MaxSize
	}
	if lc.MaxBackups > 0 {
		logCfg.MaxBackups = lc.MaxBackups
	}
	if lc.MaxAge > 0 {
		logCfg.MaxAge = lc.MaxAge
	}
	logCfg.Compress = lc.Compress

	return logging.NewLogger(logCfg)
}

// ProvideOutputWriter создаёт Writer по outputFormat.
func ProvideOutputWriter(cfg *config.Config) output.Writer {
	if cfg == nil || cfg.OutputFormat == "" {
		return output.NewWriter(output.FormatText)
	}
	return output.NewWriter(cfg.OutputFormat)
}

// ProvideTraceID генерирует trace_id запуска (32 hex символа).
func ProvideTraceID() string {
	return tracing.GenerateTraceID()
}

// ProvideMetricsCollector создаёт Collector. Выключенные метрики или ошибка
// создания дают NopCollector.
func ProvideMetricsCollector(cfg *config.Config, logger logging.Logger) metrics.Collector {
	if cfg == nil {
		return metrics.NewNopCollector()
	}

	metricsCfg := metrics.Config{
		Enabled:        cfg.Metrics.Enabled,
		PushgatewayURL: cfg.Metrics.PushgatewayURL,
		JobName:        cfg.Metrics.JobName,
		Timeout:        cfg.Metrics.Timeout,
		InstanceLabel:  cfg.Metrics.InstanceLabel,
	}

	collector, err := metrics.NewCollector(metricsCfg, logger)
	if err != nil {
		logger.Error("ошибка создания MetricsCollector, используется NopCollector",
			"error", err.Error(),
		)
		return metrics.NewNopCollector()
	}
	return collector
}

// ProvideTracerProvider инициализирует OTel TracerProvider и возвращает shutdown.
// Выключенный трейсинг или ошибка инициализации дают nop shutdown.
func ProvideTracerProvider(cfg *config.Config, logger logging.Logger) func(context.Context) error {
	if cfg == nil {
		return tracing.NewNopTracerProvider()
	}

	tracingCfg := tracing.Config{
		Enabled:      cfg.Tracing.Enabled,
		Endpoint:     cfg.Tracing.Endpoint,
		ServiceName:  cfg.Tracing.ServiceName,
		Version:      constants.Version,
		Environment:  cfg.Tracing.Environment,
		Insecure:     cfg.Tracing.Insecure,
		Timeout:      cfg.Tracing.Timeout,
		SamplingRate: cfg.Tracing.SamplingRate,
	}

	shutdown, err := tracing.NewTracerProvider(tracingCfg, logger)
	if err != nil {
		logger.Error("ошибка инициализации tracing, используется nop provider",
			"error", err.Error(),
		)
		return tracing.NewNopTracerProvider()
	}
	return shutdown
}

// ProvideSMSSender возвращает отправителя SMS: Twilio или dry-run.
// Без dryRun незаполненные реквизиты Twilio - ошибка.
func ProvideSMSSender(cfg *config.Config, logger logging.Logger) (notify.Sender, error) {
	if cfg.Twilio.DryRun {
		logger.Warn("twilio dry-run: SMS не отправляются")
		return notify.NewDryRunSender(logger), nil
	}
	if err := cfg.Twilio.ValidateForSending(); err != nil {
		return nil, err
	}
	return twilio.NewClient(twilio.Config{
		AccountSID:          cfg.Twilio.AccountSID,
		AuthToken:           cfg.Twilio.AuthToken,
		MessagingServiceSID: cfg.Twilio.MessagingServiceSID,
		From:                cfg.Twilio.From,
		BaseURL:             cfg.Twilio.BaseURL,
		Timeout:             cfg.Twilio.Timeout,
		MaxFailures:         cfg.Twilio.Breaker.MaxFailures,
		OpenTimeout:         cfg.Twilio.Breaker.OpenTimeout,
	}, logger), nil
}

// ProvideAlerter создаёт Alerter из секции alerting. SMS канал идёт через
// тот же sender, что и уведомления. Ошибка конфигурации каналов логируется,
// используется NopAlerter.
func ProvideAlerter(cfg *config.Config, sender notify.Sender, logger logging.Logger) alerting.Alerter {
	if cfg == nil || !cfg.Alerting.Enabled {
		return alerting.NewNopAlerter()
	}
	ac := cfg.Alerting

	channels := make(map[string]alerting.ChannelRulesConfig, len(ac.Rules.Channels))
	for name, ch := range ac.Rules.Channels {
		channels[name] = alerting.ChannelRulesConfig{
			MinSeverity:       ch.MinSeverity,
			ExcludeErrorCodes: ch.ExcludeErrorCodes,
			IncludeErrorCodes: ch.IncludeErrorCodes,
			ExcludeOperations: ch.ExcludeOperations,
			IncludeOperations: ch.IncludeOperations,
		}
	}

	var smsSender alerting.SMSSender
	if sender != nil {
		smsSender = sender
	}

	alerter, err := alerting.NewAlerter(alerting.Config{
		Enabled:         ac.Enabled,
		RateLimitWindow: ac.RateLimitWindow,
		Telegram: alerting.TelegramConfig{
			Enabled:  ac.Telegram.Enabled,
			BotToken: ac.Telegram.BotToken,
			ChatIDs:  ac.Telegram.ChatIDs,
			Timeout:  ac.Telegram.Timeout,
		},
		Webhook: alerting.WebhookConfig{
			Enabled:    ac.Webhook.Enabled,
			URLs:       ac.Webhook.URLs,
			Headers:    ac.Webhook.Headers,
			Timeout:    ac.Webhook.Timeout,
			MaxRetries: ac.Webhook.MaxRetries,
		},
		SMS: alerting.SMSConfig{
			Enabled: ac.SMS.Enabled,
			To:      ac.SMS.To,
			Timeout: ac.SMS.Timeout,
		},
	}, alerting.RulesConfig{
		MinSeverity:       ac.Rules.MinSeverity,
		ExcludeErrorCodes: ac.Rules.ExcludeErrorCodes,
		IncludeErrorCodes: ac.Rules.IncludeErrorCodes,
		ExcludeOperations: ac.Rules.ExcludeOperations,
		IncludeOperations: ac.Rules.IncludeOperations,
		Channels:          channels,
	}, smsSender, logger)
	if err != nil {
		logger.Error("ошибка создания Alerter, используется NopAlerter",
			"error", err.Error(),
		)
		return alerting.NewNopAlerter()
	}
	return alerter
}

// ProvideIncidentReporter создаёт Reporter системных ошибок.
func ProvideIncidentReporter(alerter alerting.Alerter, collector metrics.Collector, logger logging.Logger) *incident.Reporter {
	return incident.NewReporter(alerter, collector, logger)
}

// ProvideStorage открывает базу и применяет миграции.
// cleanup закрывает подключение.
func ProvideStorage(ctx context.Context, cfg *config.Config, logger logging.Logger) (*storage.DB, func(), error) {
	dsn := ""
	if cfg.Storage.Driver == config.DriverSQLServer {
		dsn = cfg.Storage.SQLServerDSN()
	}
	db, err := storage.Open(ctx, storage.Options{
		Driver:            cfg.Storage.Driver,
		Path:              cfg.Storage.Path,
		DSN:               dsn,
		Timeout:           cfg.Storage.Timeout,
		MigrateMaxElapsed: cfg.Storage.MigrateMaxElapsed,
	}, logger)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if err := db.Close(); err != nil {
			logger.Warn("ошибка закрытия хранилища", "error", err.Error())
		}
	}
	return db, cleanup, nil
}

// ProvideKVStore - хранилище AlertState.
func ProvideKVStore(db *storage.DB) *kvstore.Store {
	return kvstore.New(db)
}

// ProvideJobStore - таблица заданий опроса.
func ProvideJobStore(db *storage.DB) *scheduler.Store {
	return scheduler.NewStore(db)
}

// ProvideSessionManager создаёт Manager сессий мониторинга.
func ProvideSessionManager(jobs *scheduler.Store, cfg *config.Config, logger logging.Logger) *session.Manager {
	return session.NewManager(jobs, session.Config{
		DefaultWindow:    cfg.Session.DefaultWindow,
		MaxTotalDuration: cfg.Session.MaxTotalDuration,
		PollInterval:     cfg.Session.PollInterval,
		JobPrefix:        cfg.Session.JobPrefix,
		Timeout:          cfg.Session.Timeout,
	}, logger)
}

// ProvideFeed создаёт клиент aprs.fi.
func ProvideFeed(cfg *config.Config, logger logging.Logger) (*aprsfi.APIClient, error) {
	return aprsfi.NewAPIClient(aprsfi.Config{
		BaseURL:     cfg.APRS.BaseURL,
		APIKey:      cfg.APRS.APIKey,
		Timeout:     cfg.APRS.Timeout,
		UserAgent:   cfg.APRS.UserAgent,
		MaxFailures: cfg.APRS.Breaker.MaxFailures,
		OpenTimeout: cfg.APRS.Breaker.OpenTimeout,
	}, logger)
}

// ProvideSink возвращает запись истории в InfluxDB или nil, если она выключена.
func ProvideSink(cfg *config.Config, logger logging.Logger) (monitor.Sink, func(), error) {
	if !cfg.Influx.Enabled {
		return nil, func() {}, nil
	}
	w, err := influx.NewWriter(influx.Config{
		URL:         cfg.Influx.URL,
		Token:       cfg.Influx.Token,
		Org:         cfg.Influx.Org,
		Bucket:      cfg.Influx.Bucket,
		Measurement: cfg.Influx.Measurement,
		Timeout:     cfg.Influx.Timeout,
	}, logger)
	if err != nil {
		return nil, nil, err
	}
	return w, w.Close, nil
}

// ProvidePublisher подключается к MQTT брокеру или возвращает nil, если
// публикация выключена.
func ProvidePublisher(ctx context.Context, cfg *config.Config, logger logging.Logger) (monitor.Publisher, func(), error) {
	if !cfg.MQTT.Enabled {
		return nil, func() {}, nil
	}
	p, err := mqtt.Connect(ctx, mqtt.Config{
		Broker:         cfg.MQTT.Broker,
		ClientID:       cfg.MQTT.ClientID,
		Username:       cfg.MQTT.Username,
		Password:       cfg.MQTT.Password,
		TopicPrefix:    cfg.MQTT.TopicPrefix,
		QoS:            cfg.MQTT.QoS,
		ConnectTimeout: cfg.MQTT.ConnectTimeout,
		PublishTimeout: cfg.MQTT.PublishTimeout,
		MaxRetries:     cfg.MQTT.MaxRetries,
	}, logger)
	if err != nil {
		return nil, nil, err
	}
	return p, p.Close, nil
}

// monitorConfig переносит пороги из секции monitor.
func monitorConfig(cfg *config.Config) monitor.Config {
	return monitor.Config{
		MaxTemp:          cfg.Monitor.MaxTemp,
		MinTemp:          cfg.Monitor.MinTemp,
		MaxTempDelta:     cfg.Monitor.MaxTempDelta,
		MaxBeaconAge:     cfg.Monitor.MaxBeaconAge,
		MismatchDelta:    cfg.Monitor.MismatchDelta,
		MalfunctionAbove: cfg.Monitor.MalfunctionAbove,
		Timeout:          cfg.Monitor.Timeout,
		Domain:           cfg.Monitor.Domain,
	}
}

// ProvideEngine собирает движок оценки.
func ProvideEngine(
	cfg *config.Config,
	feed *aprsfi.APIClient,
	store *kvstore.Store,
	sender notify.Sender,
	sink monitor.Sink,
	publisher monitor.Publisher,
	collector metrics.Collector,
	logger logging.Logger,
) *monitor.Engine {
	return monitor.NewEngine(monitorConfig(cfg), monitor.Deps{
		Feed:      feed,
		Store:     store,
		Sender:    sender,
		Sink:      sink,
		Publisher: publisher,
		Metrics:   collector,
		Logger:    logger,
	})
}

// ProvideStatusReader - движок только для чтения статуса: без телеметрии и SMS.
func ProvideStatusReader(cfg *config.Config, store *kvstore.Store, logger logging.Logger) *monitor.Engine {
	return monitor.NewEngine(monitorConfig(cfg), monitor.Deps{Store: store, Logger: logger})
}

// ProvideWatchdog создаёт Watchdog оператора.
func ProvideWatchdog(cfg *config.Config, sender notify.Sender, collector metrics.Collector, logger logging.Logger) *watchdog.Watchdog {
	return watchdog.New(watchdog.Config{
		OperatorPhone: cfg.Watchdog.OperatorPhone,
		Prefix:        cfg.Watchdog.Prefix,
		MaxLength:     cfg.Watchdog.MaxLength,
		Timeout:       cfg.Watchdog.Timeout,
	}, sender, collector, logger)
}

// ProvideWebhookHandler собирает обработчик входящих SMS.
func ProvideWebhookHandler(
	cfg *config.Config,
	sessions *session.Manager,
	engine *monitor.Engine,
	sender notify.Sender,
	reporter *incident.Reporter,
	collector metrics.Collector,
	logger logging.Logger,
) *webhook.Handler {
	return webhook.NewHandler(webhook.Config{
		PublicBaseURL: cfg.Server.PublicBaseURL,
		AuthToken:     cfg.Twilio.AuthToken,
		MaxBodyBytes:  cfg.Server.MaxBodyBytes,
		Timeout:       cfg.Server.RequestTimeout,
		ReplyToSender: cfg.Twilio.ReplyToSender,
	}, webhook.Deps{
		Sessions: sessions,
		Status:   engine,
		Replier:  sender,
		Reporter: reporter,
		Metrics:  collector,
		Logger:   logger,
	})
}

// PollDispatcher превращает срабатывание задания в оценку позывного.
// Ошибка оценки уходит в Reporter и возвращается исполнителю.
func PollDispatcher(engine *monitor.Engine, reporter *incident.Reporter) scheduler.DispatchFunc {
	return func(ctx context.Context, job scheduler.Job) error {
		_, err := engine.Evaluate(ctx, monitor.Trigger{Callsign: job.Callsign, OwnerPhone: job.OwnerPhone})
		if err != nil {
			reporter.Report(ctx, constants.OpEvaluate, job.Callsign, err)
		}
		return err
	}
}

// ProvideRunner создаёт исполнитель опросов. Таймаут срабатывания чуть больше
// таймаута оценки, чтобы ошибку вернул движок, а не исполнитель.
func ProvideRunner(cfg *config.Config, jobs *scheduler.Store, engine *monitor.Engine, reporter *incident.Reporter, logger logging.Logger) *scheduler.Runner {
	return scheduler.NewRunner(jobs, PollDispatcher(engine, reporter), scheduler.RunnerConfig{
		Tick:            cfg.Scheduler.Tick,
		MaxConcurrent:   cfg.Scheduler.MaxConcurrent,
		DispatchTimeout: cfg.Monitor.Timeout + 5*time.Second,
	}, logger)
}

// ProvideServer собирает HTTP сервер. С runnerDisabled исполнитель не запускается.
func ProvideServer(
	cfg *config.Config,
	hook *webhook.Handler,
	wd *watchdog.Watchdog,
	runner *scheduler.Runner,
	collector metrics.Collector,
	logger logging.Logger,
) *server.Server {
	deps := server.Deps{
		Webhook:  hook,
		Watchdog: wd,
		Metrics:  collector.Handler(),
		Logger:   logger,
	}
	if !cfg.Scheduler.RunnerDisabled {
		deps.Runner = runner
	}
	return server.New(server.Config{
		Addr:            cfg.Server.Addr,
		WebhookPath:     cfg.Server.WebhookPath,
		WatchdogPath:    cfg.Server.WatchdogPath,
		MetricsPath:     cfg.Server.MetricsPath,
		WatchdogToken:   cfg.Server.WatchdogToken,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		RequestTimeout:  cfg.Server.RequestTimeout,
		MaxBodyBytes:    cfg.Server.MaxBodyBytes,
	}, deps)
}
