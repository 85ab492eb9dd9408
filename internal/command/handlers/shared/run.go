package shared

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/zzaxusl0a/APRS-notify/internal/config"
	"github.com/zzaxusl0a/APRS-notify/internal/constants"
	"github.com/zzaxusl0a/APRS-notify/internal/pkg/apperrors"
	"github.com/zzaxusl0a/APRS-notify/internal/pkg/logging"
	"github.com/zzaxusl0a/APRS-notify/internal/pkg/output"
	"github.com/zzaxusl0a/APRS-notify/internal/pkg/tracing"
)

// Run - одно выполнение команды: формат вывода, trace_id и время начала.
type Run struct {
	Command string
	Format  string
	TraceID string
	Start   time.Time
	Log     logging.Logger
	out     io.Writer
}

// Begin начинает выполнение. Логгер берётся из slog.Default(), который
// main настраивает по секции logging. Вывод идёт в текущий os.Stdout.
func Begin(ctx context.Context, cfg *config.Config, command string) *Run {
	traceID := tracing.TraceIDFromContext(ctx)
	if traceID == "" {
		traceID = tracing.GenerateTraceID()
	}
	format := output.FormatText
	if cfg != nil && cfg.OutputFormat != "" {
		format = cfg.OutputFormat
	}
	return &Run{
		Command: command,
		Format:  format,
		TraceID: traceID,
		Start:   time.Now(),
		Log: logging.NewSlogAdapter(slog.Default()).With(
			"trace_id", traceID,
			"command", command,
		),
		out: os.Stdout,
	}
}

func (r *Run) metadata() *output.Metadata {
	return &output.Metadata{
		DurationMs: time.Since(r.Start).Milliseconds(),
		TraceID:    r.TraceID,
		APIVersion: constants.APIVersion,
	}
}

// Success выводит data. Текстовый формат использует TextRenderer у data,
// если он есть; JSON - стандартный Result.
func (r *Run) Success(data any) error {
	if !output.IsJSON(r.Format) {
		if tr, ok := data.(output.TextRenderer); ok {
			return tr.WriteText(r.out)
		}
	}
	return output.NewWriter(r.Format).Write(r.out, &output.Result{
		Status:   output.StatusSuccess,
		Command:  r.Command,
		Data:     data,
		Metadata: r.metadata(),
	})
}

// Fail выводит ошибку и возвращает её как error "CODE: message".
func (r *Run) Fail(code, message string) error {
	r.write(code, message)
	return fmt.Errorf("%s: %s", code, message)
}

// FailErr выводит ошибку компонента. Код берётся из AppError в цепочке,
// иначе используется fallback. Возвращается исходная ошибка.
func (r *Run) FailErr(err error, fallback string) error {
	code := apperrors.CodeOf(err)
	if code == "" {
		code = fallback
	}
	r.write(code, err.Error())
	return err
}

func (r *Run) write(code, message string) {
	r.Log.Error(message, "code", code)
	if !output.IsJSON(r.Format) {
		_, _ = fmt.Fprintf(r.out, "Ошибка: %s\nКод: %s\n", message, code)
		return
	}
	result := &output.Result{
		Status:   output.StatusError,
		Command:  r.Command,
		Error:    &output.ErrorInfo{Code: code, Message: message},
		Metadata: r.metadata(),
	}
	if err := output.NewWriter(r.Format).Write(r.out, result); err != nil {
		r.Log.Error("не удалось записать JSON-ответ об ошибке", "error", err.Error())
	}
}
