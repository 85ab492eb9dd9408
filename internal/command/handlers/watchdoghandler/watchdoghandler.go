// Package watchdoghandler реализует команду watchdog: пакет записей об ошибках
// в конверте подписки CloudWatch Logs читается из файла или stdin, оператор
// получает одно SMS на пакет.
package watchdoghandler

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/zzaxusl0a/APRS-notify/internal/command"
	"github.com/zzaxusl0a/APRS-notify/internal/command/handlers/shared"
	"github.com/zzaxusl0a/APRS-notify/internal/config"
	"github.com/zzaxusl0a/APRS-notify/internal/constants"
	"github.com/zzaxusl0a/APRS-notify/internal/di"
	"github.com/zzaxusl0a/APRS-notify/internal/pkg/apperrors"
	"github.com/zzaxusl0a/APRS-notify/internal/pkg/logging"
	"github.com/zzaxusl0a/APRS-notify/internal/pkg/metrics"
	"github.com/zzaxusl0a/APRS-notify/internal/watchdog"
)

// RegisterCmd регистрирует команду watchdog.
func RegisterCmd() {
	command.Register(&Handler{})
}

// maxInputBytes ограничивает размер конверта.
const maxInputBytes = 4 << 20

type batchHandler interface {
	Handle(ctx context.Context, payload []byte) watchdog.Report
}

type handlerFactory func(cfg *config.Config, logger logging.Logger, collector metrics.Collector) (batchHandler, error)

func buildHandler(cfg *config.Config, logger logging.Logger, collector metrics.Collector) (batchHandler, error) {
	sender, err := di.ProvideSMSSender(cfg, logger)
	if err != nil {
		return nil, err
	}
	return di.ProvideWatchdog(cfg, sender, collector, logger), nil
}

// Data - итог обработки пакета.
type Data struct {
	Records   int    `json:"records"`
	Message   string `json:"message"`
	MessageID string `json:"message_id"`
	Skipped   bool   `json:"skipped"`
}

// WriteText выводит итог.
func (d *Data) WriteText(w io.Writer) error {
	if d.Skipped {
		_, err := fmt.Fprintln(w, "Служебный пакет, SMS не отправлялось")
		return err
	}
	_, err := fmt.Fprintf(w, "Записей: %d\nSMS оператору (%s): %s\n", d.Records, d.MessageID, d.Message)
	return err
}

// Handler обрабатывает команду watchdog.
type Handler struct {
	newHandler handlerFactory
	// stdin - источник при пустом AN_WATCHDOG_INPUT или "-". nil - os.Stdin.
	stdin io.Reader
}

// Name возвращает имя команды.
func (h *Handler) Name() string {
	return constants.ActWatchdog
}

// Description возвращает описание команды для вывода в help.
func (h *Handler) Description() string {
	return "Уведомление оператора о пакете ошибок (AN_WATCHDOG_INPUT или stdin)"
}

// Execute читает конверт и отправляет SMS оператору.
func (h *Handler) Execute(ctx context.Context, cfg *config.Config) error {
	run := shared.Begin(ctx, cfg, constants.ActWatchdog)
	if cfg == nil {
		return run.Fail(shared.ErrConfigMissing, "конфигурация не загружена")
	}

	payload, err := h.readInput(cfg.WatchdogInput)
	if err != nil {
		return run.Fail(shared.ErrInputRead, err.Error())
	}

	factory := h.newHandler
	if factory == nil {
		factory = buildHandler
	}
	wd, err := factory(cfg, run.Log, metrics.FromContext(ctx))
	if err != nil {
		return run.FailErr(err, shared.ErrInit)
	}

	report := wd.Handle(ctx, payload)
	if !report.OK() {
		return run.FailErr(report.Err, apperrors.CodeWatchdog)
	}
	return run.Success(&Data{
		Records:   report.Records,
		Message:   report.Message,
		MessageID: report.MessageID,
		Skipped:   report.Skipped,
	})
}

func (h *Handler) readInput(path string) ([]byte, error) {
	var src io.Reader
	switch path {
	case "", "-":
		src = h.stdin
		if src == nil {
			src = os.Stdin
		}
	default:
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("открытие %s: %w", path, err)
		}
		defer f.Close()
		src = f
	}
	data, err := io.ReadAll(io.LimitReader(src, maxInputBytes+1))
	if err != nil {
		return nil, fmt.Errorf("чтение конверта: %w", err)
	}
	if len(data) > maxInputBytes {
		return nil, fmt.Errorf("конверт больше %d байт", maxInputBytes)
	}
	return data, nil
}
