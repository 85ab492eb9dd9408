// Package session управляет сессиями мониторинга: создание, продление с
// ограничением общей длительности и остановка владельцем.
//
// Сессия хранится как периодическое задание планировщика
// (scheduler.Job): запись задания и есть сессия, поэтому задание без сессии
// или сессия без задания невозможны.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/zzaxusl0a/APRS-notify/internal/adapter/scheduler"
	"github.com/zzaxusl0a/APRS-notify/internal/constants"
	"github.com/zzaxusl0a/APRS-notify/internal/pkg/apperrors"
	"github.com/zzaxusl0a/APRS-notify/internal/pkg/logging"
	"github.com/zzaxusl0a/APRS-notify/internal/pkg/tracing"
)

// JobStore - хранилище периодических заданий.
type JobStore interface {
	Get(ctx context.Context, name string) (scheduler.Job, bool, error)
	Create(ctx context.Context, job scheduler.Job) (bool, error)
	UpdateEnd(ctx context.Context, name string, prevEnd, newEnd time.Time) (bool, error)
	Replace(ctx context.Context, prev, next scheduler.Job) (bool, error)
	Delete(ctx context.Context, name string) error
	List(ctx context.Context, prefix string) ([]scheduler.Job, error)
}

// Config - параметры сессий.
type Config struct {
	// DefaultWindow - на сколько START открывает или продлевает сессию.
	DefaultWindow time.Duration
	// MaxTotalDuration - предел от создания сессии до её окончания.
	MaxTotalDuration time.Duration
	// PollInterval - период опроса позывного.
	PollInterval time.Duration
	// JobPrefix - префикс имени задания, имя = JobPrefix + CALLSIGN.
	JobPrefix string
	// Timeout ограничивает одну операцию с планировщиком.
	Timeout time.Duration
}

// DefaultConfig возвращает параметры по умолчанию.
func DefaultConfig() Config {
	return Config{
		DefaultWindow:    4 * time.Hour,
		MaxTotalDuration: 24 * time.Hour,
		PollInterval:     5 * time.Minute,
		JobPrefix:        "aprs-notify-",
		Timeout:          10 * time.Second,
	}
}

// Session - активная сессия мониторинга.
type Session struct {
	Callsign     string    `json:"callsign"`
	OwnerPhone   string    `json:"owner_phone"`
	CreatedAt    time.Time `json:"created_at"`
	ExpiresAt    time.Time `json:"expires_at"`
	PollInterval string    `json:"poll_interval"`
}

// Тексты ответов пользователю.
const (
	msgStarted      = "Monitoring %s until %s UTC. Send STOP %s to end."
	msgExtended     = "Monitoring %s extended until %s UTC."
	msgLimitReached = "Extension limit reached for %s. Monitoring ends at %s UTC."
	msgNotMonitored = "%s is not being monitored."
	msgStopped      = "Monitoring %s stopped."
	msgDenied       = "Permission denied."
	msgNoChanges    = "Scheduler unavailable. No changes made."
)

const (
	timeLayout     = "2006-01-02 15:04"
	maxCASAttempts = 3
)

// errConflict - конкурентное изменение задания не удалось переиграть.
var errConflict = errors.New("session: concurrent update of job")

// Manager - менеджер сессий.
type Manager struct {
	store  JobStore
	config Config
	logger logging.Logger
	now    func() time.Time
}

// NewManager создаёт Manager.
func NewManager(store JobStore, config Config, logger logging.Logger) *Manager {
	return &Manager{
		store:  store,
		config: config,
		logger: logger,
		now:    time.Now,
	}
}

// SetNowFunc подменяет часы (для тестов).
func (m *Manager) SetNowFunc(now func() time.Time) {
	m.now = now
}

// JobName возвращает имя задания сессии позывного.
func (m *Manager) JobName(callsign string) string {
	return m.config.JobPrefix + callsign
}

// Start открывает сессию или продлевает существующую.
//
// Продление сдвигает окончание на now+DefaultWindow, если оно не выходит за
// CreatedAt+MaxTotalDuration, иначе сессия не меняется и возвращается
// сообщение о пределе продления. Продление не меняет владельца.
// При сбое планировщика возвращается сообщение "No changes made" вместе с
// TransportError SCH.
func (m *Manager) Start(ctx context.Context, callsign, ownerPhone string) (msg string, err error) {
	ctx, span := tracing.StartSpan(ctx, "session.start", attribute.String("callsign", callsign))
	defer func() { tracing.EndSpan(span, err) }()

	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	log := m.logger.With("callsign", callsign, "operation", constants.OpStart)
	name := m.JobName(callsign)

	for attempt := 1; attempt <= maxCASAttempts; attempt++ {
		now := m.now().UTC().Truncate(time.Second)

		job, found, err := m.store.Get(ctx, name)
		if err != nil {
			return m.schedulerFault(log, "get job", err)
		}

		var done bool
		switch {
		case !found:
			done, err = m.store.Create(ctx, m.newJob(name, callsign, ownerPhone, now))
			if err == nil && done {
				log.Info("сессия создана", "owner", ownerPhone, "expires_at", now.Add(m.config.DefaultWindow))
				return m.started(callsign, now), nil
			}
		case !job.Active(now):
			done, err = m.store.Replace(ctx, job, m.newJob(name, callsign, ownerPhone, now))
			if err == nil && done {
				log.Info("истёкшая сессия заменена новой", "owner", ownerPhone)
				return m.started(callsign, now), nil
			}
		default:
			newEnd := now.Add(m.config.DefaultWindow)
			limit := job.CreatedAt.Add(m.config.MaxTotalDuration)
			if newEnd.After(limit) {
				log.Info("предел продления достигнут", "created_at", job.CreatedAt, "expires_at", job.EndAt)
				return fmt.Sprintf(msgLimitReached, callsign, job.EndAt.Format(timeLayout)), nil
			}
			if !newEnd.After(job.EndAt) {
				// повторная доставка START: окончание уже не раньше запрошенного
				return extendedReply(job, callsign, ownerPhone, job.EndAt), nil
			}
			done, err = m.store.UpdateEnd(ctx, name, job.EndAt, newEnd)
			if err == nil && done {
				log.Info("сессия продлена", "requester", ownerPhone, "owner", job.OwnerPhone, "expires_at", newEnd)
				return extendedReply(job, callsign, ownerPhone, newEnd), nil
			}
		}
		if err != nil {
			return m.schedulerFault(log, "write job", err)
		}
		log.Debug("задание изменено конкурентно, повтор", "attempt", attempt)
	}
	return m.schedulerFault(log, "write job", errConflict)
}

// Stop останавливает сессию. Остановить может только владелец; остальным
// возвращается общий отказ без подробностей и AuthorizationError.
// Отсутствующая или истёкшая сессия не ошибка.
func (m *Manager) Stop(ctx context.Context, callsign, requesterPhone string) (msg string, err error) {
	ctx, span := tracing.StartSpan(ctx, "session.stop", attribute.String("callsign", callsign))
	defer func() { tracing.EndSpan(span, err) }()

	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	log := m.logger.With("callsign", callsign, "operation", constants.OpStop)
	name := m.JobName(callsign)

	job, found, err := m.store.Get(ctx, name)
	if err != nil {
		return m.schedulerFault(log, "get job", err)
	}
	if !found || !job.Active(m.now()) {
		return fmt.Sprintf(msgNotMonitored, callsign), nil
	}
	if job.OwnerPhone != requesterPhone {
		log.Warn("STOP от не владельца отклонён", "requester", requesterPhone)
		return msgDenied, apperrors.NewAuthorizationError("requester does not own the session")
	}
	if err := m.store.Delete(ctx, name); err != nil {
		return m.schedulerFault(log, "delete job", err)
	}
	log.Info("сессия остановлена")
	return fmt.Sprintf(msgStopped, callsign), nil
}

// List возвращает активные сессии.
func (m *Manager) List(ctx context.Context) ([]Session, error) {
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	jobs, err := m.store.List(ctx, m.config.JobPrefix)
	if err != nil {
		return nil, apperrors.NewTransportError(apperrors.CodeScheduler, "failed to list sessions", err)
	}
	now := m.now()
	sessions := make([]Session, 0, len(jobs))
	for _, job := range jobs {
		if !job.Active(now) {
			continue
		}
		sessions = append(sessions, Session{
			Callsign:     job.Callsign,
			OwnerPhone:   job.OwnerPhone,
			CreatedAt:    job.CreatedAt,
			ExpiresAt:    job.EndAt,
			PollInterval: job.Interval.String(),
		})
	}
	return sessions, nil
}

func (m *Manager) newJob(name, callsign, ownerPhone string, now time.Time) scheduler.Job {
	return scheduler.Job{
		Name:       name,
		Callsign:   callsign,
		OwnerPhone: ownerPhone,
		CreatedAt:  now,
		StartAt:    now,
		EndAt:      now.Add(m.config.DefaultWindow),
		Interval:   m.config.PollInterval,
		NextRunAt:  now,
	}
}

func (m *Manager) started(callsign string, now time.Time) string {
	return fmt.Sprintf(msgStarted, callsign, now.Add(m.config.DefaultWindow).Format(timeLayout), callsign)
}

// extendedReply - ответ на продление. Не владелец получает тот же текст,
// что и при создании сессии: ответ не раскрывает, что позывной уже
// отслеживается другим номером.
func extendedReply(job scheduler.Job, callsign, requester string, end time.Time) string {
	if job.OwnerPhone != requester {
		return fmt.Sprintf(msgStarted, callsign, end.Format(timeLayout), callsign)
	}
	return fmt.Sprintf(msgExtended, callsign, end.Format(timeLayout))
}

func (m *Manager) schedulerFault(log logging.Logger, op string, err error) (string, error) {
	log.Error("сбой планировщика", "step", op, "code", apperrors.CodeScheduler, "error", err.Error())
	return msgNoChanges, apperrors.NewTransportError(apperrors.CodeScheduler, "scheduler operation failed: "+op, err)
}

func (m *Manager) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if m.config.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, m.config.Timeout)
}
