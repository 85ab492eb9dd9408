// Package pollhandler реализует команду poll: один цикл оценки телеметрии
// для позывного из AN_CALLSIGN. Используется внешним планировщиком вместо
// встроенного исполнителя.
package pollhandler

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/zzaxusl0a/APRS-notify/internal/command"
	"github.com/zzaxusl0a/APRS-notify/internal/command/handlers/shared"
	"github.com/zzaxusl0a/APRS-notify/internal/config"
	"github.com/zzaxusl0a/APRS-notify/internal/constants"
	"github.com/zzaxusl0a/APRS-notify/internal/di"
	"github.com/zzaxusl0a/APRS-notify/internal/monitor"
	"github.com/zzaxusl0a/APRS-notify/internal/pkg/logging"
	"github.com/zzaxusl0a/APRS-notify/internal/pkg/metrics"
	"github.com/zzaxusl0a/APRS-notify/internal/sms"
)

// deprecatedName - имя функции опроса прежнего развёртывания.
const deprecatedName = "notify"

// RegisterCmd регистрирует poll и устаревший алиас notify.
func RegisterCmd() {
	command.RegisterWithAlias(&Handler{}, deprecatedName)
}

type evaluator interface {
	Evaluate(ctx context.Context, trig monitor.Trigger) (monitor.Outcome, error)
}

type reporter interface {
	Report(ctx context.Context, operation, callsign string, err error)
}

type depsFactory func(ctx context.Context, cfg *config.Config, logger logging.Logger, collector metrics.Collector) (evaluator, reporter, func(), error)

func buildDeps(ctx context.Context, cfg *config.Config, logger logging.Logger, collector metrics.Collector) (evaluator, reporter, func(), error) {
	rt, cleanup, err := di.InitializeRuntime(ctx, cfg, logger, collector)
	if err != nil {
		return nil, nil, nil, err
	}
	return rt.Engine, rt.Reporter, cleanup, nil
}

// Data - результат одной оценки.
type Data struct {
	Callsign     string    `json:"callsign"`
	Condition    string    `json:"condition"`
	PriorStatus  string    `json:"prior_status"`
	Status       string    `json:"status"`
	Message      string    `json:"message,omitempty"`
	Notified     bool      `json:"notified"`
	MessageID    string    `json:"message_id,omitempty"`
	Conflict     bool      `json:"conflict"`
	InternalTemp float64   `json:"internal_temp"`
	AuxTemp      float64   `json:"aux_temp"`
	ObservedAt   time.Time `json:"observed_at"`
}

func newData(out monitor.Outcome) *Data {
	return &Data{
		Callsign:     out.Callsign,
		Condition:    string(out.Condition),
		PriorStatus:  string(out.PriorStatus),
		Status:       string(out.Status),
		Message:      out.Message,
		Notified:     out.Notified,
		MessageID:    out.MessageID,
		Conflict:     out.Conflict,
		InternalTemp: out.Reading.InternalTemp,
		AuxTemp:      out.Reading.AuxTemp,
		ObservedAt:   out.Reading.ObservedAt,
	}
}

// WriteText выводит итог оценки.
func (d *Data) WriteText(w io.Writer) error {
	if d.Conflict {
		_, err := fmt.Fprintf(w, "%s: состояние уже записано параллельным опросом, оценка пропущена\n", d.Callsign)
		return err
	}
	if _, err := fmt.Fprintf(w, "%s: %s (%.2f / %.2f), статус %s → %s\n",
		d.Callsign, d.Condition, d.InternalTemp, d.AuxTemp, d.PriorStatus, d.Status); err != nil {
		return err
	}
	if !d.Notified {
		return nil
	}
	_, err := fmt.Fprintf(w, "SMS отправлено (%s): %s\n", d.MessageID, d.Message)
	return err
}

// Handler обрабатывает команду poll.
type Handler struct {
	// newDeps - фабрика движка (для тестов). nil - di.InitializeRuntime.
	newDeps depsFactory
}

// Name возвращает имя команды.
func (h *Handler) Name() string {
	return constants.ActPoll
}

// Description возвращает описание команды для вывода в help.
func (h *Handler) Description() string {
	return "Один цикл оценки телеметрии для AN_CALLSIGN"
}

// Execute выполняет одну оценку. Ошибка оценки дополнительно уходит
// в incident reporter.
func (h *Handler) Execute(ctx context.Context, cfg *config.Config) error {
	run := shared.Begin(ctx, cfg, constants.ActPoll)
	if cfg == nil {
		return run.Fail(shared.ErrConfigMissing, "конфигурация не загружена")
	}
	callsign := sms.NormalizeCallsign(cfg.Callsign)
	if callsign == "" {
		return run.Fail(shared.ErrConfigMissing, "не задан позывной (AN_CALLSIGN)")
	}
	if cfg.OwnerPhone == "" {
		return run.Fail(shared.ErrConfigMissing, "не задан телефон владельца (AN_OWNER_PHONE)")
	}

	factory := h.newDeps
	if factory == nil {
		factory = buildDeps
	}
	engine, incidents, cleanup, err := factory(ctx, cfg, run.Log, metrics.FromContext(ctx))
	if err != nil {
		return run.FailErr(err, shared.ErrInit)
	}
	defer cleanup()

	out, err := engine.Evaluate(ctx, monitor.Trigger{Callsign: callsign, OwnerPhone: cfg.OwnerPhone})
	if err != nil {
		incidents.Report(ctx, constants.OpEvaluate, callsign, err)
		return run.FailErr(err, shared.ErrInit)
	}
	run.Log.Info("оценка выполнена", "callsign", callsign, "status", string(out.Status), "notified", out.Notified)
	return run.Success(newData(out))
}
