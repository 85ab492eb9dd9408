// Package monitor оценивает телеметрию позывного по упорядоченным правилам
// и отправляет SMS владельцу только при переходе в состояние алерта.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/zzaxusl0a/APRS-notify/internal/adapter/aprsfi"
	"github.com/zzaxusl0a/APRS-notify/internal/adapter/kvstore"
	"github.com/zzaxusl0a/APRS-notify/internal/constants"
	"github.com/zzaxusl0a/APRS-notify/internal/pkg/apperrors"
	"github.com/zzaxusl0a/APRS-notify/internal/pkg/logging"
	"github.com/zzaxusl0a/APRS-notify/internal/pkg/metrics"
	"github.com/zzaxusl0a/APRS-notify/internal/pkg/tracing"
)

// Feed - источник последней телеметрии позывного.
type Feed interface {
	Latest(ctx context.Context, callsign string) (aprsfi.Entry, error)
}

// StateStore - хранилище AlertState по позывному.
type StateStore interface {
	Get(ctx context.Context, domain, item string) (map[string]string, bool, error)
	Put(ctx context.Context, domain, item string, attrs map[string]string) error
	PutIf(ctx context.Context, domain, item string, attrs map[string]string, cond kvstore.Condition) error
}

// Sender - канал SMS уведомлений.
type Sender interface {
	Send(ctx context.Context, to, body string) (string, error)
}

// Sink сохраняет каждое показание (история температур).
type Sink interface {
	Record(ctx context.Context, r Reading) error
}

// Publisher публикует смену статуса алерта.
type Publisher interface {
	PublishTransition(ctx context.Context, t Transition) error
}

// Config - пороги правил.
type Config struct {
	MaxTemp          float64
	MinTemp          float64
	MaxTempDelta     float64
	MaxBeaconAge     time.Duration
	MismatchDelta    float64
	MalfunctionAbove float64
	Timeout          time.Duration
	Domain           string
}

// DefaultConfig - пороги по умолчанию.
func DefaultConfig() Config {
	return Config{
		MaxTemp:          85,
		MinTemp:          40,
		MaxTempDelta:     3,
		MaxBeaconAge:     5 * time.Minute,
		MismatchDelta:    20,
		MalfunctionAbove: 199,
		Timeout:          30 * time.Second,
		Domain:           "APRS_tracker",
	}
}

// Condition - результат правил.
type Condition string

// Условия в порядке проверки.
const (
	ConditionOK          Condition = "ok"
	ConditionMalfunction Condition = "malfunction"
	ConditionOverTemp    Condition = "over_temp"
	ConditionUnderTemp   Condition = "under_temp"
	ConditionMismatch    Condition = "mismatch"
	ConditionStale       Condition = "stale"
	ConditionDelta       Condition = "delta"
)

// Trigger - один тик опроса.
type Trigger struct {
	Callsign   string
	OwnerPhone string
}

// Reading - распознанное показание маяка.
type Reading struct {
	Callsign     string
	ObservedAt   time.Time
	InternalTemp float64
	AuxTemp      float64
	Comment      string
	Condition    Condition
}

// Transition - смена статуса алерта.
type Transition struct {
	Callsign     string    `json:"callsign"`
	From         Status    `json:"from"`
	To           Status    `json:"to"`
	Condition    Condition `json:"condition"`
	Message      string    `json:"message"`
	InternalTemp float64   `json:"internal_temp"`
	ObservedAt   time.Time `json:"observed_at"`
}

// Outcome - итог одной оценки.
type Outcome struct {
	Callsign    string
	Reading     Reading
	Condition   Condition
	Message     string
	PriorStatus Status
	Status      Status
	Notified    bool
	MessageID   string
	// Conflict - параллельный тик уже записал состояние, оценка пропущена.
	Conflict bool
}

// Deps - зависимости Engine. Sink, Publisher и Metrics необязательны.
type Deps struct {
	Feed      Feed
	Store     StateStore
	Sender    Sender
	Sink      Sink
	Publisher Publisher
	Metrics   metrics.Collector
	Logger    logging.Logger
}

// Engine выполняет оценку позывного.
type Engine struct {
	config Config
	deps   Deps
	now    func() time.Time
}

// NewEngine создаёт Engine.
func NewEngine(config Config, deps Deps) *Engine {
	if config.Domain == "" {
		config.Domain = DefaultConfig().Domain
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.NewNopCollector()
	}
	if deps.Logger == nil {
		deps.Logger = logging.NewNopLogger()
	}
	return &Engine{config: config, deps: deps, now: time.Now}
}

// SetNowFunc подменяет часы (для тестов).
func (e *Engine) SetNowFunc(now func() time.Time) {
	e.now = now
}

// Evaluate выполняет один тик: телеметрия, правила, запись состояния и
// уведомление при переходе в алерт.
func (e *Engine) Evaluate(ctx context.Context, trig Trigger) (out Outcome, err error) {
	ctx, span := tracing.StartSpan(ctx, "monitor.evaluate", attribute.String("callsign", trig.Callsign))
	defer func() { tracing.EndSpan(span, err) }()

	if e.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.config.Timeout)
		defer cancel()
	}

	log := e.deps.Logger.With(
		"callsign", trig.Callsign,
		"operation", constants.OpEvaluate,
		"trace_id", tracing.TraceIDFromContext(ctx),
	)
	out.Callsign = trig.Callsign

	entry, err := e.deps.Feed.Latest(ctx, trig.Callsign)
	if err != nil {
		return out, e.fail(log, apperrors.CodeFeed, "fetch telemetry", err)
	}
	internal, aux, err := ParseComment(entry.Comment)
	if err != nil {
		return out, e.fail(log, apperrors.CodeFeed, "parse telemetry", err)
	}
	reading := Reading{
		Callsign:     trig.Callsign,
		ObservedAt:   entry.LastTime.UTC(),
		InternalTemp: internal,
		AuxTemp:      aux,
		Comment:      entry.Comment,
	}

	attrs, found, err := e.deps.Store.Get(ctx, e.config.Domain, trig.Callsign)
	if err != nil {
		return out, e.fail(log, apperrors.CodeStore, "read state", err)
	}
	var prior *AlertState
	if found {
		st := decodeState(attrs)
		prior = &st
		out.PriorStatus = st.Status
	} else {
		out.PriorStatus = StatusUnknown
		log.Info("состояние не найдено, первая оценка")
	}

	cond, msg := e.classify(reading, prior, e.now().UTC())
	reading.Condition = cond
	out.Reading = reading
	out.Condition = cond
	out.Message = msg
	out.Status = StatusClear
	if cond != ConditionOK {
		out.Status = StatusActive
	}

	if err = e.persist(ctx, trig.Callsign, reading, out.Status, prior); err != nil {
		if errors.Is(err, kvstore.ErrConditionFailed) {
			log.Warn("состояние изменено параллельным тиком, оценка пропущена")
			out.Conflict = true
			return out, nil
		}
		return out, e.fail(log, apperrors.CodeStore, "write state", err)
	}

	log.Info("оценка выполнена",
		"condition", string(cond),
		"prior_status", string(out.PriorStatus),
		"status", string(out.Status),
	)

	e.record(ctx, log, reading)
	if out.PriorStatus != out.Status {
		e.publish(ctx, log, Transition{
			Callsign:     trig.Callsign,
			From:         out.PriorStatus,
			To:           out.Status,
			Condition:    cond,
			Message:      msg,
			InternalTemp: internal,
			ObservedAt:   reading.ObservedAt,
		})
	}

	if out.Status == StatusActive && out.PriorStatus != StatusActive {
		err = e.notify(ctx, log, trig, msg, &out)
	}
	e.deps.Metrics.RecordEvaluation(trig.Callsign, string(cond), out.Notified)
	return out, err
}

// classify применяет правила по порядку, первое совпадение побеждает.
// Проверки давности и скачка выполняются только при наличии прошлого состояния.
func (e *Engine) classify(r Reading, prior *AlertState, now time.Time) (Condition, string) {
	c := e.config
	switch {
	case r.InternalTemp > c.MalfunctionAbove:
		return ConditionMalfunction, "Temperature Sensor Malfunction error 200"
	case r.InternalTemp >= c.MaxTemp:
		return ConditionOverTemp, fmt.Sprintf("Temperature exceeds Maximum! Internal Temp: %.2f", r.InternalTemp)
	case r.InternalTemp <= c.MinTemp:
		return ConditionUnderTemp, fmt.Sprintf("Temperature below Minimum! Internal Temp: %.2f", r.InternalTemp)
	case math.Abs(r.InternalTemp-r.AuxTemp) >= c.MismatchDelta:
		return ConditionMismatch, fmt.Sprintf("Temperature Sensor Mismatch! Internal Temp: %.2f, BMP Temp: %.2f",
			r.InternalTemp, r.AuxTemp)
	}
	if prior == nil {
		return ConditionOK, "APRS is ok and current"
	}
	if now.Sub(r.ObservedAt) >= c.MaxBeaconAge {
		return ConditionStale, fmt.Sprintf("APRS report is greater than %s minutes old. Last Reported time: %s",
			strconv.FormatFloat(c.MaxBeaconAge.Minutes(), 'f', -1, 64), r.ObservedAt.Format(time.RFC3339))
	}
	if prev, ok := parseInternal(prior.LastComment); ok && math.Abs(r.InternalTemp-prev) >= c.MaxTempDelta {
		return ConditionDelta, fmt.Sprintf("Temperature Delta Too High! Internal Temp: %.2f, Previous Temp: %.2f",
			r.InternalTemp, prev)
	}
	return ConditionOK, "APRS is ok and current"
}

// persist пишет состояние с проверкой revision, прочитанной в начале тика.
func (e *Engine) persist(ctx context.Context, callsign string, r Reading, status Status, prior *AlertState) error {
	cond := kvstore.Condition{Name: attrRevision}
	var next int64 = 1
	if prior != nil && prior.hasRevision {
		cond.Exists = true
		cond.Value = strconv.FormatInt(prior.revision, 10)
		next = prior.revision + 1
	}
	attrs := map[string]string{
		attrReportTime: r.ObservedAt.Format(time.RFC3339),
		attrComment:    r.Comment,
		attrAlertSent:  alertSentValue(status),
		attrRevision:   strconv.FormatInt(next, 10),
	}
	return e.deps.Store.PutIf(ctx, e.config.Domain, callsign, attrs, cond)
}

// notify отправляет SMS владельцу и сохраняет SMS_sid.
func (e *Engine) notify(ctx context.Context, log logging.Logger, trig Trigger, msg string, out *Outcome) error {
	if trig.OwnerPhone == "" {
		log.Warn("алерт без получателя, SMS не отправлено")
		return nil
	}
	sid, err := e.deps.Sender.Send(ctx, trig.OwnerPhone, trig.Callsign+": "+msg)
	e.deps.Metrics.RecordNotification("alert", err == nil)
	if err != nil {
		return e.fail(log, apperrors.CodeNotify, "send alert", err)
	}
	out.Notified = true
	out.MessageID = sid
	log.Info("алерт отправлен", "sid", sid)

	if err := e.deps.Store.Put(ctx, e.config.Domain, trig.Callsign, map[string]string{attrSMSSID: sid}); err != nil {
		return e.fail(log, apperrors.CodeStore, "write message id", err)
	}
	return nil
}

func (e *Engine) record(ctx context.Context, log logging.Logger, r Reading) {
	if e.deps.Sink == nil {
		return
	}
	if err := e.deps.Sink.Record(ctx, r); err != nil {
		log.Warn("не удалось сохранить показание в историю", "error", err.Error())
	}
}

func (e *Engine) publish(ctx context.Context, log logging.Logger, t Transition) {
	if e.deps.Publisher == nil {
		return
	}
	if err := e.deps.Publisher.PublishTransition(ctx, t); err != nil {
		log.Warn("не удалось опубликовать смену статуса", "error", err.Error())
	}
}

func (e *Engine) fail(log logging.Logger, code, op string, cause error) error {
	log.Error("ошибка оценки", "code", code, "step", op, "error", cause.Error())
	return apperrors.NewTransportError(code, op+" failed", cause)
}

// Status возвращает сводку по последнему сохранённому состоянию.
// Отсутствие записи не ошибка.
func (e *Engine) Status(ctx context.Context, callsign string) (msg string, err error) {
	ctx, span := tracing.StartSpan(ctx, "monitor.status", attribute.String("callsign", callsign))
	defer func() { tracing.EndSpan(span, err) }()

	if e.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.config.Timeout)
		defer cancel()
	}
	log := e.deps.Logger.With("callsign", callsign, "operation", constants.OpStatus)

	attrs, found, err := e.deps.Store.Get(ctx, e.config.Domain, callsign)
	if err != nil {
		return "", e.fail(log, apperrors.CodeStore, "read state", err)
	}
	if !found {
		return fmt.Sprintf("No record found for %s", callsign), nil
	}
	st := decodeState(attrs)

	temp := "unknown"
	if v, ok := parseInternal(st.LastComment); ok {
		temp = fmt.Sprintf("%.2f", v)
	}
	age := "unknown"
	if !st.LastObservedAt.IsZero() {
		age = strconv.FormatInt(int64(e.now().Sub(st.LastObservedAt)/time.Minute), 10)
	}
	return fmt.Sprintf("%s: last temperature %s, reported %s minutes ago. Alert status: %s",
		callsign, temp, age, st.Status), nil
}
