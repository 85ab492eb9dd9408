package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/zzaxusl0a/APRS-notify/internal/pkg/logging"
)

// DispatchFunc выполняет одно срабатывание задания.
type DispatchFunc func(ctx context.Context, job Job) error

// RunnerConfig - параметры исполнителя.
type RunnerConfig struct {
	// Tick - период опроса таблицы заданий.
	Tick time.Duration
	// MaxConcurrent - сколько срабатываний выполняется одновременно.
	MaxConcurrent int
	// DispatchTimeout ограничивает одно срабатывание.
	DispatchTimeout time.Duration
}

// Runner забирает наступившие задания и передаёт их в DispatchFunc.
// Несколько Runner над одной базой не выполнят одно срабатывание дважды:
// задание забирается compare-and-set по next_run_at.
type Runner struct {
	store    *Store
	dispatch DispatchFunc
	config   RunnerConfig
	logger   logging.Logger
	now      func() time.Time
	sem      chan struct{}
	wg       sync.WaitGroup
}

// NewRunner создаёт Runner.
func NewRunner(store *Store, dispatch DispatchFunc, config RunnerConfig, logger logging.Logger) *Runner {
	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = 1
	}
	if config.Tick <= 0 {
		config.Tick = 15 * time.Second
	}
	return &Runner{
		store:    store,
		dispatch: dispatch,
		config:   config,
		logger:   logger,
		now:      time.Now,
		sem:      make(chan struct{}, config.MaxConcurrent),
	}
}

// SetNowFunc подменяет часы (для тестов).
func (r *Runner) SetNowFunc(now func() time.Time) {
	r.now = now
}

// Run опрашивает таблицу до отмены ctx и дожидается начатых срабатываний.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.Info("планировщик запущен", "tick", r.config.Tick.String(), "max_concurrent", r.config.MaxConcurrent)
	ticker := time.NewTicker(r.config.Tick)
	defer ticker.Stop()
	defer r.wg.Wait()

	for {
		if err := r.RunOnce(ctx); err != nil {
			r.logger.Error("ошибка цикла планировщика", "error", err.Error())
		}
		select {
		case <-ctx.Done():
			r.logger.Info("планировщик остановлен")
			return nil
		case <-ticker.C:
		}
	}
}

// RunOnce удаляет истёкшие задания, забирает наступившие и запускает их.
// Не ждёт завершения запущенных срабатываний, для этого есть Wait.
func (r *Runner) RunOnce(ctx context.Context) error {
	now := r.now().UTC()

	reaped, err := r.store.DeleteExpired(ctx, now)
	if err != nil {
		return err
	}
	if reaped > 0 {
		r.logger.Info("удалены истёкшие задания", "count", reaped)
	}

	due, err := r.store.Due(ctx, now, r.config.MaxConcurrent*4)
	if err != nil {
		return err
	}

	for _, job := range due {
		next := nextRun(job, now)
		claimed, err := r.store.Claim(ctx, job.Name, job.NextRunAt, next)
		if err != nil {
			return err
		}
		if !claimed {
			r.logger.Debug("задание уже забрано", "job", job.Name)
			continue
		}
		select {
		case r.sem <- struct{}{}:
		case <-ctx.Done():
			return nil
		}
		job := job
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			defer func() { <-r.sem }()
			r.fire(ctx, job)
		}()
	}
	return nil
}

// Wait дожидается завершения запущенных срабатываний.
func (r *Runner) Wait() {
	r.wg.Wait()
}

func (r *Runner) fire(ctx context.Context, job Job) {
	if r.config.DispatchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.config.DispatchTimeout)
		defer cancel()
	}
	start := time.Now()
	if err := r.dispatch(ctx, job); err != nil {
		r.logger.Warn("срабатывание завершилось ошибкой",
			"job", job.Name,
			"callsign", job.Callsign,
			"error", err.Error(),
		)
		return
	}
	r.logger.Debug("срабатывание выполнено", "job", job.Name, "duration_ms", time.Since(start).Milliseconds())
}

// nextRun - следующее срабатывание по сетке интервала. Пропущенные срабатывания
// не догоняются: если сетка отстала, отсчёт идёт от now.
func nextRun(job Job, now time.Time) time.Time {
	interval := job.Interval
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	next := job.NextRunAt.Add(interval)
	if !next.After(now) {
		next = now.Add(interval)
	}
	return next
}
