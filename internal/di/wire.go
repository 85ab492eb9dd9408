//go:build wireinject

package di

import (
	"context"

	"github.com/google/wire"

	"github.com/zzaxusl0a/APRS-notify/internal/config"
	"github.com/zzaxusl0a/APRS-notify/internal/pkg/logging"
	"github.com/zzaxusl0a/APRS-notify/internal/pkg/metrics"
)

//go:generate wire

// ProviderSet - лёгкие провайдеры, общие для всех команд.
var ProviderSet = wire.NewSet(
	ProvideLogger,
	ProvideOutputWriter,
	ProvideTraceID,
	ProvideMetricsCollector,
	ProvideTracerProvider,
	wire.Struct(new(App), "*"),
)

// RuntimeSet - хранилище, адаптеры и сервисы для serve и poll.
// Logger и Collector приходят снаружи, чтобы команда использовала те же
// экземпляры, что и main.
var RuntimeSet = wire.NewSet(
	ProvideSMSSender,
	ProvideAlerter,
	ProvideIncidentReporter,
	ProvideStorage,
	ProvideKVStore,
	ProvideJobStore,
	ProvideSessionManager,
	ProvideFeed,
	ProvideSink,
	ProvidePublisher,
	ProvideEngine,
	ProvideWatchdog,
	ProvideWebhookHandler,
	ProvideRunner,
	ProvideServer,
	wire.Struct(new(Runtime), "*"),
)

// InitializeApp создаёт App. Реализация генерируется в wire_gen.go.
func InitializeApp(cfg *config.Config) (*App, error) {
	wire.Build(ProviderSet)
	return nil, nil
}

// InitializeRuntime создаёт Runtime. cleanup закрывает соединения в обратном
// порядке открытия.
func InitializeRuntime(ctx context.Context, cfg *config.Config, logger logging.Logger, collector metrics.Collector) (*Runtime, func(), error) {
	wire.Build(RuntimeSet)
	return nil, nil, nil
}
