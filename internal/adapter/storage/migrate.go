package storage

import (
	"context"
	"database/sql"
	"fmt"
)

// migration - шаг схемы. Запросы выполняются в одной транзакции.
type migration struct {
	version   int
	sqlite    []string
	sqlserver []string
}

// migrations упорядочены по version.
var migrations = []migration{
	{
		version: 1,
		sqlite: []string{
			`CREATE TABLE IF NOT EXISTS attributes (
				domain TEXT NOT NULL,
				item   TEXT NOT NULL,
				name   TEXT NOT NULL,
				value  TEXT NOT NULL,
				PRIMARY KEY (domain, item, name)
			)`,
			`CREATE TABLE IF NOT EXISTS schedules (
				name             TEXT PRIMARY KEY,
				callsign         TEXT NOT NULL,
				owner_phone      TEXT NOT NULL,
				created_at       INTEGER NOT NULL,
				start_at         INTEGER NOT NULL,
				end_at           INTEGER NOT NULL,
				interval_seconds INTEGER NOT NULL,
				next_run_at      INTEGER NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_schedules_next_run ON schedules(next_run_at)`,
		},
		sqlserver: []string{
			`IF OBJECT_ID(N'dbo.attributes', N'U') IS NULL
			CREATE TABLE dbo.attributes (
				domain NVARCHAR(128)  NOT NULL,
				item   NVARCHAR(128)  NOT NULL,
				name   NVARCHAR(128)  NOT NULL,
				value  NVARCHAR(1024) NOT NULL,
				CONSTRAINT pk_attributes PRIMARY KEY (domain, item, name)
			)`,
			`IF OBJECT_ID(N'dbo.schedules', N'U') IS NULL
			CREATE TABLE dbo.schedules (
				name             NVARCHAR(128) NOT NULL PRIMARY KEY,
				callsign         NVARCHAR(32)  NOT NULL,
				owner_phone      NVARCHAR(32)  NOT NULL,
				created_at       BIGINT NOT NULL,
				start_at         BIGINT NOT NULL,
				end_at           BIGINT NOT NULL,
				interval_seconds INT    NOT NULL,
				next_run_at      BIGINT NOT NULL
			)`,
			`IF NOT EXISTS (SELECT 1 FROM sys.indexes WHERE name = 'idx_schedules_next_run')
			CREATE INDEX idx_schedules_next_run ON dbo.schedules(next_run_at)`,
		},
	},
}

// CurrentSchemaVersion - версия схемы после всех миграций.
func CurrentSchemaVersion() int {
	return migrations[len(migrations)-1].version
}

const (
	createVersionSQLite    = `CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`
	createVersionSQLServer = `IF OBJECT_ID(N'dbo.schema_version', N'U') IS NULL CREATE TABLE dbo.schema_version (version INT NOT NULL)`
	selectVersion          = `SELECT COALESCE(MAX(version), 0) FROM schema_version`
	insertVersion          = `INSERT INTO schema_version (version) VALUES (?)`
)

// Migrate применяет недостающие миграции. База новее приложения - ошибка.
func Migrate(ctx context.Context, db *DB) error {
	createVersion := createVersionSQLite
	if db.Dialect == SQLServer {
		createVersion = createVersionSQLServer
	}
	if _, err := db.SQL.ExecContext(ctx, createVersion); err != nil {
		return fmt.Errorf("storage: creating schema_version: %w", err)
	}

	var current int
	if err := db.SQL.QueryRowContext(ctx, selectVersion).Scan(&current); err != nil {
		return fmt.Errorf("storage: reading schema version: %w", err)
	}
	if current > CurrentSchemaVersion() {
		return fmt.Errorf("storage: database schema version %d is newer than supported %d", current, CurrentSchemaVersion())
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		if err := db.apply(ctx, m); err != nil {
			return fmt.Errorf("storage: migration v%d: %w", m.version, err)
		}
	}
	return nil
}

func (db *DB) apply(ctx context.Context, m migration) error {
	stmts := m.sqlite
	if db.Dialect == SQLServer {
		stmts = m.sqlserver
	}

	tx, err := db.SQL.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	if _, err := tx.ExecContext(ctx, db.Dialect.Rebind(insertVersion), m.version); err != nil {
		return err
	}
	return commit(tx)
}

func commit(tx *sql.Tx) error {
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
