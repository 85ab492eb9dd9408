// Package main содержит точку входа aprs-notify: мониторинг температуры
// APRS маяка с управлением по SMS.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/zzaxusl0a/APRS-notify/internal/command"
	"github.com/zzaxusl0a/APRS-notify/internal/command/handlers"
	"github.com/zzaxusl0a/APRS-notify/internal/config"
	"github.com/zzaxusl0a/APRS-notify/internal/constants"
	"github.com/zzaxusl0a/APRS-notify/internal/di"
	"github.com/zzaxusl0a/APRS-notify/internal/pkg/logging"
	"github.com/zzaxusl0a/APRS-notify/internal/pkg/metrics"
	"github.com/zzaxusl0a/APRS-notify/internal/pkg/tracing"
)

// Коды завершения.
const (
	exitOK             = 0
	exitUnknownCommand = 2
	exitConfig         = 5
	exitCommandFailed  = 8
)

func main() {
	os.Exit(run(os.Args[1:]))
}

// run содержит основную логику и возвращает exit code. os.Exit вызывается
// в main после отработки всех defer (shutdown трейсинга, span.End).
func run(args []string) int {
	handlers.RegisterAll()

	cfg, err := config.Load()
	if err != nil || cfg == nil {
		fmt.Fprintf(os.Stderr, "Не удалось загрузить конфигурацию приложения: %v\n", err)
		return exitConfig
	}
	if len(args) > 0 {
		cfg.Command = args[0]
	}
	if cfg.Command == "" {
		cfg.Command = constants.ActHelp
	}

	app, err := di.InitializeApp(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Не удалось инициализировать приложение: %v\n", err)
		return exitConfig
	}
	l := logging.ToSlog(app.Logger)
	slog.SetDefault(l)
	l.Debug("Информация о сборке",
		slog.String("version", constants.Version),
		slog.String("commit_hash", constants.PreCommitHash),
	)

	ctx := tracing.WithTraceID(context.Background(), app.TraceID)
	ctx = tracing.ContextWithOTelTraceID(ctx, app.TraceID)
	ctx = metrics.WithCollector(ctx, app.MetricsCollector)

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := app.TracerShutdown(shutdownCtx); err != nil {
			l.Error("ошибка завершения tracing",
				slog.String("error", err.Error()),
				slog.String("trace_id", app.TraceID),
				slog.String("command", cfg.Command),
			)
		}
	}()

	ctx, span := otel.Tracer(constants.AppName).Start(ctx, cfg.Command,
		trace.WithAttributes(
			attribute.String("command", cfg.Command),
			attribute.String("callsign", cfg.Callsign),
			attribute.String("trace_id", app.TraceID),
		),
	)
	defer span.End()

	handler, ok := command.Get(cfg.Command)
	if !ok {
		l.Error("неизвестная команда",
			slog.String("AN_COMMAND", cfg.Command),
			slog.String(constants.MsgErrProcessing, constants.MsgAppExit),
		)
		return exitUnknownCommand
	}

	app.MetricsCollector.RecordCommandStart(cfg.Command)
	start := time.Now()
	execErr := handler.Execute(ctx, cfg)
	app.MetricsCollector.RecordCommandEnd(cfg.Command, time.Since(start), execErr == nil)
	_ = app.MetricsCollector.Push(ctx) // ошибки push логируются внутри

	if execErr != nil {
		l.Error("Ошибка выполнения команды",
			slog.String("command", cfg.Command),
			slog.String("error", execErr.Error()),
			slog.String(constants.MsgErrProcessing, constants.MsgAppExit),
		)
		return exitCommandFailed
	}
	return exitOK
}
