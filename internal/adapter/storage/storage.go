// Package storage открывает SQL базу состояния (SQLite или SQL Server) и
// применяет миграции схемы. Таблицы используют пакеты kvstore и scheduler.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	// драйверы регистрируются в database/sql
	_ "github.com/denisenkom/go-mssqldb"
	_ "modernc.org/sqlite"

	"github.com/zzaxusl0a/APRS-notify/internal/constants"
	"github.com/zzaxusl0a/APRS-notify/internal/pkg/logging"
)

// Dialect - диалект SQL базы.
type Dialect int

const (
	// SQLite - modernc.org/sqlite, плейсхолдеры "?".
	SQLite Dialect = iota
	// SQLServer - go-mssqldb, плейсхолдеры "@pN".
	SQLServer
)

// String возвращает имя драйвера database/sql.
func (d Dialect) String() string {
	if d == SQLServer {
		return "sqlserver"
	}
	return "sqlite"
}

// Rebind переписывает плейсхолдеры "?" в формат диалекта.
// Запросы пакета не содержат "?" внутри строковых литералов.
func (d Dialect) Rebind(query string) string {
	if d != SQLServer {
		return query
	}
	var sb strings.Builder
	sb.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			sb.WriteString("@p")
			sb.WriteString(strconv.Itoa(n))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// ErrUnsupportedDriver - неизвестный драйвер в конфигурации.
var ErrUnsupportedDriver = errors.New("storage: unsupported driver")

// Options - параметры подключения.
type Options struct {
	// Driver: "sqlite" или "sqlserver".
	Driver string
	// Path - файл SQLite.
	Path string
	// DSN - строка подключения SQL Server.
	DSN string
	// Timeout - таймаут одного запроса.
	Timeout time.Duration
	// MigrateMaxElapsed - сколько ждать доступности базы при открытии.
	MigrateMaxElapsed time.Duration
}

// DB - подключение к базе с диалектом и таймаутом запросов.
type DB struct {
	SQL     *sql.DB
	Dialect Dialect
	Timeout time.Duration
}

// New оборачивает готовое подключение. Используется в тестах с sqlmock.
func New(db *sql.DB, dialect Dialect, timeout time.Duration) *DB {
	return &DB{SQL: db, Dialect: dialect, Timeout: timeout}
}

// Open открывает базу, дожидается её доступности и применяет миграции.
func Open(ctx context.Context, opts Options, logger logging.Logger) (*DB, error) {
	var (
		sqlDB   *sql.DB
		dialect Dialect
		err     error
	)
	switch opts.Driver {
	case "sqlite", "":
		dialect = SQLite
		sqlDB, err = openSQLite(opts.Path)
	case "sqlserver":
		dialect = SQLServer
		sqlDB, err = sql.Open("sqlserver", opts.DSN)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, opts.Driver)
	}
	if err != nil {
		return nil, err
	}

	db := New(sqlDB, dialect, opts.Timeout)
	if err := db.waitReady(ctx, opts.MigrateMaxElapsed, logger); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	if err := Migrate(ctx, db); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	logger.Debug("хранилище открыто", "driver", dialect.String())
	return db, nil
}

func openSQLite(path string) (*sql.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("storage: sqlite path is empty")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), constants.DirPermStandard); err != nil {
			return nil, fmt.Errorf("storage: creating parent directories: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage: opening sqlite: %w", err)
	}
	// Одно соединение на процесс; между процессами ждёт busy_timeout.
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000"} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("storage: %s: %w", pragma, err)
		}
	}
	return db, nil
}

// waitReady пингует базу с экспоненциальной паузой, пока не истечёт maxElapsed.
func (db *DB) waitReady(ctx context.Context, maxElapsed time.Duration, logger logging.Logger) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 250 * time.Millisecond
	bo.MaxElapsedTime = maxElapsed
	var policy backoff.BackOff = bo
	if maxElapsed <= 0 {
		policy = backoff.WithMaxRetries(bo, 0)
	}

	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		pingCtx, cancel := db.WithTimeout(ctx)
		defer cancel()
		if err := db.SQL.PingContext(pingCtx); err != nil {
			logger.Warn("база недоступна", "attempt", attempt, "error", err.Error())
			return err
		}
		return nil
	}, backoff.WithContext(policy, ctx))
	if err != nil {
		return fmt.Errorf("storage: database not reachable: %w", err)
	}
	return nil
}

// WithTimeout ограничивает запрос таймаутом базы.
func (db *DB) WithTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if db.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, db.Timeout)
}

// Close закрывает подключение.
func (db *DB) Close() error {
	return db.SQL.Close()
}
