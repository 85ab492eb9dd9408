// Package servehandler реализует команду serve: HTTP сервер webhook SMS,
// приём пакетов watchdog, /metrics и планировщик опросов в одном процессе.
package servehandler

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/zzaxusl0a/APRS-notify/internal/command"
	"github.com/zzaxusl0a/APRS-notify/internal/command/handlers/shared"
	"github.com/zzaxusl0a/APRS-notify/internal/config"
	"github.com/zzaxusl0a/APRS-notify/internal/constants"
	"github.com/zzaxusl0a/APRS-notify/internal/di"
	"github.com/zzaxusl0a/APRS-notify/internal/pkg/logging"
	"github.com/zzaxusl0a/APRS-notify/internal/pkg/metrics"
)

// deprecatedName - имя функции SMS-процессора прежнего развёртывания.
const deprecatedName = "sms-processor"

// RegisterCmd регистрирует serve и устаревший алиас sms-processor.
func RegisterCmd() {
	command.RegisterWithAlias(&Handler{}, deprecatedName)
}

// service - запускаемая часть runtime.
type service interface {
	Run(ctx context.Context) error
}

// serviceFactory собирает runtime. cleanup освобождает ресурсы.
type serviceFactory func(ctx context.Context, cfg *config.Config, logger logging.Logger, collector metrics.Collector) (service, func(), error)

func buildService(ctx context.Context, cfg *config.Config, logger logging.Logger, collector metrics.Collector) (service, func(), error) {
	rt, cleanup, err := di.InitializeRuntime(ctx, cfg, logger, collector)
	if err != nil {
		return nil, nil, err
	}
	return rt.Server, cleanup, nil
}

// Data - итог работы сервера после остановки.
type Data struct {
	Addr       string    `json:"addr"`
	StartedAt  time.Time `json:"started_at"`
	StoppedAt  time.Time `json:"stopped_at"`
	UptimeSecs int64     `json:"uptime_secs"`
}

// WriteText выводит итог в человекочитаемом формате.
func (d *Data) WriteText(w io.Writer) error {
	_, err := fmt.Fprintf(w, "Сервер %s остановлен. Время работы: %s\n",
		d.Addr, time.Duration(d.UptimeSecs)*time.Second)
	return err
}

// Handler обрабатывает команду serve.
type Handler struct {
	// newService - фабрика runtime (для тестов). nil - di.InitializeRuntime.
	newService serviceFactory
	// signals - сигналы остановки. nil - SIGINT и SIGTERM.
	signals []os.Signal
}

// Name возвращает имя команды.
func (h *Handler) Name() string {
	return constants.ActServe
}

// Description возвращает описание команды для вывода в help.
func (h *Handler) Description() string {
	return "HTTP сервер: webhook SMS, приём watchdog, планировщик опросов"
}

// Execute собирает runtime и обслуживает запросы до сигнала остановки
// или отмены ctx.
func (h *Handler) Execute(ctx context.Context, cfg *config.Config) error {
	run := shared.Begin(ctx, cfg, constants.ActServe)
	if cfg == nil {
		return run.Fail(shared.ErrConfigMissing, "конфигурация не загружена")
	}

	factory := h.newService
	if factory == nil {
		factory = buildService
	}
	svc, cleanup, err := factory(ctx, cfg, run.Log, metrics.FromContext(ctx))
	if err != nil {
		return run.FailErr(err, shared.ErrInit)
	}
	defer cleanup()

	signals := h.signals
	if signals == nil {
		signals = []os.Signal{os.Interrupt, syscall.SIGTERM}
	}
	sigCtx, stop := signal.NotifyContext(ctx, signals...)
	defer stop()

	started := time.Now()
	run.Log.Info("сервер запущен", "addr", cfg.Server.Addr, "runner_disabled", cfg.Scheduler.RunnerDisabled)
	if err := svc.Run(sigCtx); err != nil {
		return run.FailErr(err, shared.ErrInit)
	}
	stopped := time.Now()
	run.Log.Info("сервер остановлен")

	return run.Success(&Data{
		Addr:       cfg.Server.Addr,
		StartedAt:  started.UTC(),
		StoppedAt:  stopped.UTC(),
		UptimeSecs: int64(stopped.Sub(started) / time.Second),
	})
}
