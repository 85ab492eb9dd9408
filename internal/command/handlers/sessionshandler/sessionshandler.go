// Package sessionshandler реализует команду sessions: список активных сессий
// мониторинга из таблицы заданий опроса.
package sessionshandler

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/zzaxusl0a/APRS-notify/internal/command"
	"github.com/zzaxusl0a/APRS-notify/internal/command/handlers/shared"
	"github.com/zzaxusl0a/APRS-notify/internal/config"
	"github.com/zzaxusl0a/APRS-notify/internal/constants"
	"github.com/zzaxusl0a/APRS-notify/internal/di"
	"github.com/zzaxusl0a/APRS-notify/internal/pkg/logging"
	"github.com/zzaxusl0a/APRS-notify/internal/session"
)

// RegisterCmd регистрирует команду sessions.
func RegisterCmd() {
	command.Register(&Handler{})
}

type lister interface {
	List(ctx context.Context) ([]session.Session, error)
}

type listerFactory func(ctx context.Context, cfg *config.Config, logger logging.Logger) (lister, func(), error)

func buildLister(ctx context.Context, cfg *config.Config, logger logging.Logger) (lister, func(), error) {
	db, cleanup, err := di.ProvideStorage(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	return di.ProvideSessionManager(di.ProvideJobStore(db), cfg, logger), cleanup, nil
}

// Data - активные сессии.
type Data struct {
	Sessions []session.Session `json:"sessions"`
}

// WriteText выводит сессии таблицей.
func (d *Data) WriteText(w io.Writer) error {
	if len(d.Sessions) == 0 {
		_, err := fmt.Fprintln(w, "Активных сессий нет")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CALLSIGN\tOWNER\tEXPIRES (UTC)\tINTERVAL")
	for _, s := range d.Sessions {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			s.Callsign, s.OwnerPhone, s.ExpiresAt.UTC().Format("2006-01-02 15:04"), s.PollInterval)
	}
	return tw.Flush()
}

// Handler обрабатывает команду sessions.
type Handler struct {
	newLister listerFactory
}

// Name возвращает имя команды.
func (h *Handler) Name() string {
	return constants.ActSessions
}

// Description возвращает описание команды для вывода в help.
func (h *Handler) Description() string {
	return "Список активных сессий мониторинга"
}

// Execute выводит активные сессии.
func (h *Handler) Execute(ctx context.Context, cfg *config.Config) error {
	run := shared.Begin(ctx, cfg, constants.ActSessions)
	if cfg == nil {
		return run.Fail(shared.ErrConfigMissing, "конфигурация не загружена")
	}

	factory := h.newLister
	if factory == nil {
		factory = buildLister
	}
	manager, cleanup, err := factory(ctx, cfg, run.Log)
	if err != nil {
		return run.FailErr(err, shared.ErrInit)
	}
	defer cleanup()

	sessions, err := manager.List(ctx)
	if err != nil {
		return run.FailErr(err, shared.ErrInit)
	}
	return run.Success(&Data{Sessions: sessions})
}
