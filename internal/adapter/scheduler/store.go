// Package scheduler хранит именованные периодические задания в таблице
// schedules и исполняет наступившие задания (Runner).
//
// Запись задания и есть сессия мониторинга: отдельного реестра сессий нет.
package scheduler

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/zzaxusl0a/APRS-notify/internal/adapter/storage"
)

// Job - периодическое задание опроса одного позывного.
type Job struct {
	Name       string
	Callsign   string
	OwnerPhone string
	CreatedAt  time.Time
	StartAt    time.Time
	EndAt      time.Time
	Interval   time.Duration
	NextRunAt  time.Time
}

// Active сообщает, не истекло ли задание к моменту now.
func (j Job) Active(now time.Time) bool {
	return now.Before(j.EndAt)
}

// Store - CRUD заданий с операциями compare-and-set.
type Store struct {
	db *storage.DB
}

// NewStore создаёт Store поверх открытой базы.
func NewStore(db *storage.DB) *Store {
	return &Store{db: db}
}

const jobColumns = `name, callsign, owner_phone, created_at, start_at, end_at, interval_seconds, next_run_at`

const (
	selectJob   = `SELECT ` + jobColumns + ` FROM schedules WHERE name = ?`
	selectByPfx = `SELECT ` + jobColumns + ` FROM schedules WHERE name LIKE ? ESCAPE '\' ORDER BY name`

	insertIfAbsentSQLite    = `INSERT OR IGNORE INTO schedules (` + jobColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	insertIfAbsentSQLServer = `INSERT INTO schedules (` + jobColumns + `)
		SELECT ?, ?, ?, ?, ?, ?, ?, ?
		WHERE NOT EXISTS (SELECT 1 FROM schedules WITH (UPDLOCK, HOLDLOCK) WHERE name = ?)`

	updateEnd  = `UPDATE schedules SET end_at = ? WHERE name = ? AND end_at = ?`
	replaceJob = `UPDATE schedules SET callsign = ?, owner_phone = ?, created_at = ?, start_at = ?,
		end_at = ?, interval_seconds = ?, next_run_at = ? WHERE name = ? AND end_at = ?`

	deleteJob     = `DELETE FROM schedules WHERE name = ?`
	deleteExpired = `DELETE FROM schedules WHERE end_at <= ?`
	claimJob      = `UPDATE schedules SET next_run_at = ? WHERE name = ? AND next_run_at = ?`
)

// Get возвращает задание по имени. found=false, если задания нет.
func (s *Store) Get(ctx context.Context, name string) (Job, bool, error) {
	ctx, cancel := s.db.WithTimeout(ctx)
	defer cancel()

	row := s.db.SQL.QueryRowContext(ctx, s.db.Dialect.Rebind(selectJob), name)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Job{}, false, nil
	}
	if err != nil {
		return Job{}, false, fmt.Errorf("scheduler: get %s: %w", name, err)
	}
	return job, true, nil
}

// Create вставляет задание, если задания с таким именем нет.
// created=false означает, что задание уже существует.
func (s *Store) Create(ctx context.Context, job Job) (bool, error) {
	ctx, cancel := s.db.WithTimeout(ctx)
	defer cancel()

	args := jobArgs(job)
	var (
		res sql.Result
		err error
	)
	if s.db.Dialect == storage.SQLServer {
		res, err = s.db.SQL.ExecContext(ctx, s.db.Dialect.Rebind(insertIfAbsentSQLServer), append(args, job.Name)...)
	} else {
		res, err = s.db.SQL.ExecContext(ctx, insertIfAbsentSQLite, args...)
	}
	if err != nil {
		return false, fmt.Errorf("scheduler: create %s: %w", job.Name, err)
	}
	return affected(res, job.Name)
}

// UpdateEnd переносит окончание задания, если текущее окончание равно prevEnd.
func (s *Store) UpdateEnd(ctx context.Context, name string, prevEnd, newEnd time.Time) (bool, error) {
	ctx, cancel := s.db.WithTimeout(ctx)
	defer cancel()

	res, err := s.db.SQL.ExecContext(ctx, s.db.Dialect.Rebind(updateEnd), newEnd.Unix(), name, prevEnd.Unix())
	if err != nil {
		return false, fmt.Errorf("scheduler: update %s: %w", name, err)
	}
	return affected(res, name)
}

// Replace перезаписывает задание целиком, если окончание prev не изменилось.
// Используется для истёкшего, но ещё не удалённого задания.
func (s *Store) Replace(ctx context.Context, prev, next Job) (bool, error) {
	ctx, cancel := s.db.WithTimeout(ctx)
	defer cancel()

	res, err := s.db.SQL.ExecContext(ctx, s.db.Dialect.Rebind(replaceJob),
		next.Callsign, next.OwnerPhone, next.CreatedAt.Unix(), next.StartAt.Unix(),
		next.EndAt.Unix(), int64(next.Interval/time.Second), next.NextRunAt.Unix(),
		prev.Name, prev.EndAt.Unix())
	if err != nil {
		return false, fmt.Errorf("scheduler: replace %s: %w", prev.Name, err)
	}
	return affected(res, prev.Name)
}

// Delete удаляет задание. Отсутствие задания не ошибка.
func (s *Store) Delete(ctx context.Context, name string) error {
	ctx, cancel := s.db.WithTimeout(ctx)
	defer cancel()

	if _, err := s.db.SQL.ExecContext(ctx, s.db.Dialect.Rebind(deleteJob), name); err != nil {
		return fmt.Errorf("scheduler: delete %s: %w", name, err)
	}
	return nil
}

// List возвращает задания, имя которых начинается с prefix.
func (s *Store) List(ctx context.Context, prefix string) ([]Job, error) {
	return s.query(ctx, selectByPfx, escapeLike(prefix)+"%")
}

// Due возвращает наступившие задания: next_run_at <= now, start_at <= now < end_at.
func (s *Store) Due(ctx context.Context, now time.Time, limit int) ([]Job, error) {
	ts := now.Unix()
	query := `SELECT ` + jobColumns + ` FROM schedules
		WHERE next_run_at <= ? AND start_at <= ? AND end_at > ? ORDER BY next_run_at`
	if s.db.Dialect == storage.SQLServer {
		query = fmt.Sprintf(`SELECT TOP (%d) `+jobColumns+` FROM schedules
		WHERE next_run_at <= ? AND start_at <= ? AND end_at > ? ORDER BY next_run_at`, limit)
	} else {
		query += fmt.Sprintf(` LIMIT %d`, limit)
	}
	return s.query(ctx, query, ts, ts, ts)
}

// Claim сдвигает next_run_at с prevNext на newNext. claimed=false - задание
// забрал другой исполнитель или его изменили.
func (s *Store) Claim(ctx context.Context, name string, prevNext, newNext time.Time) (bool, error) {
	ctx, cancel := s.db.WithTimeout(ctx)
	defer cancel()

	res, err := s.db.SQL.ExecContext(ctx, s.db.Dialect.Rebind(claimJob), newNext.Unix(), name, prevNext.Unix())
	if err != nil {
		return false, fmt.Errorf("scheduler: claim %s: %w", name, err)
	}
	return affected(res, name)
}

// DeleteExpired удаляет задания с end_at <= now и возвращает их число.
func (s *Store) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	ctx, cancel := s.db.WithTimeout(ctx)
	defer cancel()

	res, err := s.db.SQL.ExecContext(ctx, s.db.Dialect.Rebind(deleteExpired), now.Unix())
	if err != nil {
		return 0, fmt.Errorf("scheduler: reap: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("scheduler: reap: %w", err)
	}
	return n, nil
}

func (s *Store) query(ctx context.Context, query string, args ...any) ([]Job, error) {
	ctx, cancel := s.db.WithTimeout(ctx)
	defer cancel()

	rows, err := s.db.SQL.QueryContext(ctx, s.db.Dialect.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("scheduler: query: %w", err)
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scheduler: scan: %w", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scheduler: query: %w", err)
	}
	return jobs, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(sc scanner) (Job, error) {
	var (
		job                                       Job
		created, start, end, next, intervalSecond int64
	)
	if err := sc.Scan(&job.Name, &job.Callsign, &job.OwnerPhone, &created, &start, &end, &intervalSecond, &next); err != nil {
		return Job{}, err
	}
	job.CreatedAt = time.Unix(created, 0).UTC()
	job.StartAt = time.Unix(start, 0).UTC()
	job.EndAt = time.Unix(end, 0).UTC()
	job.NextRunAt = time.Unix(next, 0).UTC()
	job.Interval = time.Duration(intervalSecond) * time.Second
	return job, nil
}

func jobArgs(job Job) []any {
	return []any{
		job.Name, job.Callsign, job.OwnerPhone,
		job.CreatedAt.Unix(), job.StartAt.Unix(), job.EndAt.Unix(),
		int64(job.Interval / time.Second), job.NextRunAt.Unix(),
	}
}

func affected(res sql.Result, name string) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("scheduler: rows affected for %s: %w", name, err)
	}
	return n > 0, nil
}

// escapeLike экранирует спецсимволы LIKE обратной косой чертой.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`, `[`, `\[`)
	return r.Replace(s)
}
