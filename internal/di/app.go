package di

import (
	"context"

	"github.com/zzaxusl0a/APRS-notify/internal/adapter/scheduler"
	"github.com/zzaxusl0a/APRS-notify/internal/config"
	"github.com/zzaxusl0a/APRS-notify/internal/incident"
	"github.com/zzaxusl0a/APRS-notify/internal/monitor"
	"github.com/zzaxusl0a/APRS-notify/internal/pkg/alerting"
	"github.com/zzaxusl0a/APRS-notify/internal/pkg/logging"
	"github.com/zzaxusl0a/APRS-notify/internal/pkg/metrics"
	"github.com/zzaxusl0a/APRS-notify/internal/pkg/output"
	"github.com/zzaxusl0a/APRS-notify/internal/server"
	"github.com/zzaxusl0a/APRS-notify/internal/session"
	"github.com/zzaxusl0a/APRS-notify/internal/watchdog"
)

// App содержит лёгкие зависимости, общие для всех команд.
// Создаётся через InitializeApp(); не открывает базу и сетевые соединения.
//
// При добавлении новых зависимостей:
// 1. Добавить поле в App struct
// 2. Создать провайдер в providers.go
// 3. Добавить провайдер в ProviderSet в wire.go
// 4. Перегенерировать wire_gen.go: go generate ./internal/di/...
type App struct {
	Config *config.Config

	// Logger создаётся через ProvideLogger на основе секции logging.
	Logger logging.Logger

	// OutputWriter форматирует результаты команд (outputFormat).
	OutputWriter output.Writer

	// TraceID - идентификатор корреляции логов одного запуска.
	TraceID string

	// MetricsCollector - Prometheus метрики или NopCollector.
	MetricsCollector metrics.Collector

	// TracerShutdown отправляет буферизированные span-ы при завершении.
	TracerShutdown func(context.Context) error
}

// Runtime - полный граф для команд serve и poll: хранилище, движок оценки,
// сессии, watchdog и HTTP сервер. Закрывается cleanup функцией InitializeRuntime.
type Runtime struct {
	Config   *config.Config
	Logger   logging.Logger
	Metrics  metrics.Collector
	Alerter  alerting.Alerter
	Reporter *incident.Reporter
	Engine   *monitor.Engine
	Sessions *session.Manager
	Watchdog *watchdog.Watchdog
	Runner   *scheduler.Runner
	Server   *server.Server
}
