// Package webhook принимает входящие SMS от Twilio: проверка подписи,
// разбор команды, вызов менеджера сессий или чтение статуса.
package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/zzaxusl0a/APRS-notify/internal/constants"
	"github.com/zzaxusl0a/APRS-notify/internal/pkg/apperrors"
	"github.com/zzaxusl0a/APRS-notify/internal/pkg/logging"
	"github.com/zzaxusl0a/APRS-notify/internal/pkg/metrics"
	"github.com/zzaxusl0a/APRS-notify/internal/pkg/tracing"
	"github.com/zzaxusl0a/APRS-notify/internal/sms"
)

// DefaultMaxBodyBytes - предел тела запроса по умолчанию.
const DefaultMaxBodyBytes = 1 << 20

// Тексты ответов.
const (
	msgInvalidSMS        = "Invalid SMS received"
	msgSignatureFailed   = "SMS Signature validation failed"
	msgUnknownCommand    = "Unknown command. "
	msgStatusUnavailable = "Status unavailable. Try again later."
)

// Исходы входящей команды для метрик.
const (
	outcomeOK         = "ok"
	outcomeUsage      = "usage"
	outcomeDenied     = "denied"
	outcomeError      = "error"
	outcomeAuthFailed = "auth_failed"
	outcomeMalformed  = "malformed"
)

// SessionManager - START и STOP.
type SessionManager interface {
	Start(ctx context.Context, callsign, ownerPhone string) (string, error)
	Stop(ctx context.Context, callsign, requesterPhone string) (string, error)
}

// StatusReader - STATUS.
type StatusReader interface {
	Status(ctx context.Context, callsign string) (string, error)
}

// Replier отправляет ответ отправителю команды.
type Replier interface {
	Send(ctx context.Context, to, body string) (string, error)
}

// IncidentReporter фиксирует ошибки компонентов.
type IncidentReporter interface {
	Report(ctx context.Context, operation, callsign string, err error)
}

// Response - тело JSON ответа.
type Response struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Config - параметры обработчика.
type Config struct {
	// PublicBaseURL - схема и хост, по которым Twilio вызывает webhook.
	// Пусто: берётся из запроса (X-Forwarded-Proto и Host).
	PublicBaseURL string
	AuthToken     string
	MaxBodyBytes  int64
	Timeout       time.Duration
	ReplyToSender bool
}

// Deps - зависимости обработчика. Replier, Metrics и Reporter необязательны.
type Deps struct {
	Sessions SessionManager
	Status   StatusReader
	Replier  Replier
	Reporter IncidentReporter
	Metrics  metrics.Collector
	Logger   logging.Logger
}

// Handler - http.Handler для входящих SMS.
type Handler struct {
	config Config
	deps   Deps
}

// NewHandler создаёт Handler.
func NewHandler(config Config, deps Deps) *Handler {
	if config.MaxBodyBytes <= 0 {
		config.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.NewNopCollector()
	}
	if deps.Logger == nil {
		deps.Logger = logging.NewNopLogger()
	}
	return &Handler{config: config, deps: deps}
}

// ServeHTTP отвечает 200 на любую обработанную команду и 400 на
// неверную подпись или повреждённый запрос.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, traceID := tracing.EnsureTraceID(r.Context())
	ctx, span := tracing.StartSpan(ctx, "webhook.sms")
	defer span.End()

	if h.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.config.Timeout)
		defer cancel()
	}
	log := h.deps.Logger.With("operation", constants.OpWebhook, "trace_id", traceID)

	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.config.MaxBodyBytes))
	if err != nil {
		log.Warn("не удалось прочитать тело запроса", "error", err.Error())
		h.reject(w, outcomeMalformed, msgInvalidSMS)
		return
	}
	form, err := url.ParseQuery(string(raw))
	if err != nil {
		log.Warn("тело запроса не является формой", "error", err.Error())
		h.reject(w, outcomeMalformed, msgInvalidSMS)
		return
	}

	signature := r.Header.Get(sms.SignatureHeader)
	if !sms.ValidateSignature(signature, h.requestURL(r), form, h.config.AuthToken) {
		log.Error("подпись SMS не прошла проверку", "code", apperrors.CodeAuth)
		h.reject(w, outcomeAuthFailed, msgSignatureFailed)
		return
	}

	from := strings.TrimSpace(form.Get("From"))
	if from == "" {
		log.Warn("запрос без поля From")
		h.reject(w, outcomeMalformed, msgInvalidSMS)
		return
	}

	resp := h.Process(ctx, form.Get("Body"), from)
	span.SetAttributes(attribute.String("code", resp.Code))
	writeJSON(w, http.StatusOK, resp)
}

// Process выполняет уже аутентифицированную команду и отвечает отправителю.
func (h *Handler) Process(ctx context.Context, body, from string) Response {
	cmd, err := sms.ParseCommand(body, from)
	log := h.deps.Logger.With(
		"operation", constants.OpWebhook,
		"verb", string(cmd.Verb),
		"callsign", cmd.Callsign,
		"trace_id", tracing.TraceIDFromContext(ctx),
	)

	var resp Response
	switch {
	case err != nil:
		log.Info("некорректная команда", "error", err.Error())
		resp = h.respond(outcomeUsage, cmd, apperrors.MessageOf(err), apperrors.CodeOf(err))
	case cmd.Verb == sms.VerbUnknown:
		log.Info("неизвестная команда")
		resp = h.respond(outcomeUsage, cmd, msgUnknownCommand+sms.UsageText, apperrors.CodeCommand)
	default:
		resp = h.dispatch(ctx, log, cmd)
	}

	h.reply(ctx, log, from, resp.Message)
	return resp
}

func (h *Handler) dispatch(ctx context.Context, log logging.Logger, cmd sms.Command) Response {
	var (
		msg string
		err error
		op  string
	)
	switch cmd.Verb {
	case sms.VerbStart:
		op = constants.OpStart
		msg, err = h.deps.Sessions.Start(ctx, cmd.Callsign, cmd.From)
	case sms.VerbStop:
		op = constants.OpStop
		msg, err = h.deps.Sessions.Stop(ctx, cmd.Callsign, cmd.From)
	case sms.VerbStatus:
		op = constants.OpStatus
		msg, err = h.deps.Status.Status(ctx, cmd.Callsign)
		if err != nil {
			msg = msgStatusUnavailable
		}
	}

	switch {
	case err == nil:
		log.Info("команда выполнена")
		return h.respond(outcomeOK, cmd, msg, "")
	case apperrors.KindOf(err) == apperrors.KindAuthorization:
		log.Warn("отказано в доступе", "code", apperrors.CodeDenied)
		return h.respond(outcomeDenied, cmd, msg, apperrors.CodeDenied)
	default:
		h.report(ctx, op, cmd.Callsign, err)
		code := apperrors.CodeOf(err)
		if code == "" {
			code = apperrors.CodeMonitor
		}
		return h.respond(outcomeError, cmd, msg, code)
	}
}

func (h *Handler) respond(outcome string, cmd sms.Command, msg, code string) Response {
	h.deps.Metrics.RecordInbound(string(cmd.Verb), outcome)
	return Response{Status: strconv.Itoa(http.StatusOK), Message: msg, Code: code}
}

func (h *Handler) reject(w http.ResponseWriter, outcome, msg string) {
	h.deps.Metrics.RecordInbound("", outcome)
	writeJSON(w, http.StatusBadRequest, Response{
		Status:  strconv.Itoa(http.StatusBadRequest),
		Message: msg,
		Code:    apperrors.CodeAuth,
	})
}

// reply отправляет текст ответа SMS, если это включено. Ошибка не меняет ответ webhook.
func (h *Handler) reply(ctx context.Context, log logging.Logger, to, msg string) {
	if !h.config.ReplyToSender || h.deps.Replier == nil || msg == "" {
		return
	}
	sid, err := h.deps.Replier.Send(ctx, to, msg)
	h.deps.Metrics.RecordNotification("reply", err == nil)
	if err != nil {
		h.report(ctx, constants.OpWebhook, "", apperrors.NewTransportError(apperrors.CodeNotify, "send reply failed", err))
		return
	}
	log.Debug("ответ отправлен", "sid", sid)
}

func (h *Handler) report(ctx context.Context, op, callsign string, err error) {
	if h.deps.Reporter != nil {
		h.deps.Reporter.Report(ctx, op, callsign, err)
		return
	}
	h.deps.Logger.Error("ошибка обработки команды", "operation", op, "callsign", callsign, "error", err.Error())
}

// requestURL - адрес, который подписывал Twilio: внешний базовый адрес,
// путь и строка запроса.
func (h *Handler) requestURL(r *http.Request) string {
	base := strings.TrimRight(h.config.PublicBaseURL, "/")
	if base == "" {
		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		if p := r.Header.Get("X-Forwarded-Proto"); p != "" {
			scheme = p
		}
		base = scheme + "://" + r.Host
	}
	u := base + r.URL.EscapedPath()
	if r.URL.RawQuery != "" {
		u += "?" + r.URL.RawQuery
	}
	return u
}

func writeJSON(w http.ResponseWriter, status int, resp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp) //nolint:errcheck // клиент мог закрыть соединение
}
