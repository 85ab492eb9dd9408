// Package statushandler реализует команду status: сводка по последнему
// сохранённому состоянию позывного, тот же текст, что и ответ на SMS STATUS.
package statushandler

import (
	"context"
	"fmt"
	"io"

	"github.com/zzaxusl0a/APRS-notify/internal/command"
	"github.com/zzaxusl0a/APRS-notify/internal/command/handlers/shared"
	"github.com/zzaxusl0a/APRS-notify/internal/config"
	"github.com/zzaxusl0a/APRS-notify/internal/constants"
	"github.com/zzaxusl0a/APRS-notify/internal/di"
	"github.com/zzaxusl0a/APRS-notify/internal/pkg/logging"
	"github.com/zzaxusl0a/APRS-notify/internal/sms"
)

// RegisterCmd регистрирует команду status.
func RegisterCmd() {
	command.Register(&Handler{})
}

type statusReader interface {
	Status(ctx context.Context, callsign string) (string, error)
}

type readerFactory func(ctx context.Context, cfg *config.Config, logger logging.Logger) (statusReader, func(), error)

// buildReader открывает только хранилище: учётные данные Twilio и aprs.fi
// для чтения статуса не нужны.
func buildReader(ctx context.Context, cfg *config.Config, logger logging.Logger) (statusReader, func(), error) {
	db, cleanup, err := di.ProvideStorage(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	return di.ProvideStatusReader(cfg, di.ProvideKVStore(db), logger), cleanup, nil
}

// Data - сводка статуса.
type Data struct {
	Callsign string `json:"callsign"`
	Summary  string `json:"summary"`
}

// WriteText выводит сводку как есть.
func (d *Data) WriteText(w io.Writer) error {
	_, err := fmt.Fprintln(w, d.Summary)
	return err
}

// Handler обрабатывает команду status.
type Handler struct {
	newReader readerFactory
}

// Name возвращает имя команды.
func (h *Handler) Name() string {
	return constants.ActStatus
}

// Description возвращает описание команды для вывода в help.
func (h *Handler) Description() string {
	return "Текущий статус алерта для AN_CALLSIGN"
}

// Execute читает состояние и выводит сводку.
func (h *Handler) Execute(ctx context.Context, cfg *config.Config) error {
	run := shared.Begin(ctx, cfg, constants.ActStatus)
	if cfg == nil {
		return run.Fail(shared.ErrConfigMissing, "конфигурация не загружена")
	}
	callsign := sms.NormalizeCallsign(cfg.Callsign)
	if callsign == "" {
		return run.Fail(shared.ErrConfigMissing, "не задан позывной (AN_CALLSIGN)")
	}

	factory := h.newReader
	if factory == nil {
		factory = buildReader
	}
	reader, cleanup, err := factory(ctx, cfg, run.Log)
	if err != nil {
		return run.FailErr(err, shared.ErrInit)
	}
	defer cleanup()

	summary, err := reader.Status(ctx, callsign)
	if err != nil {
		return run.FailErr(err, shared.ErrInit)
	}
	return run.Success(&Data{Callsign: callsign, Summary: summary})
}
