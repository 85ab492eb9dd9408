// Package kvstore - хранилище атрибутов в стиле SimpleDB поверх SQL таблицы
// attributes: домен, элемент, набор именованных строковых атрибутов.
package kvstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"github.com/zzaxusl0a/APRS-notify/internal/adapter/storage"
)

// ErrConditionFailed - условие PutIf не выполнено, запись не изменена.
var ErrConditionFailed = errors.New("kvstore: conditional check failed")

// Condition - ожидаемое состояние атрибута перед записью.
// Exists=false означает, что атрибута быть не должно.
type Condition struct {
	Name   string
	Value  string
	Exists bool
}

// Store - хранилище атрибутов.
type Store struct {
	db *storage.DB
}

// New создаёт Store поверх открытой базы.
func New(db *storage.DB) *Store {
	return &Store{db: db}
}

const (
	selectItem = `SELECT name, value FROM attributes WHERE domain = ? AND item = ?`

	selectAttrSQLite    = `SELECT value FROM attributes WHERE domain = ? AND item = ? AND name = ?`
	selectAttrSQLServer = `SELECT value FROM attributes WITH (UPDLOCK, HOLDLOCK) WHERE domain = ? AND item = ? AND name = ?`

	upsertSQLite = `INSERT INTO attributes (domain, item, name, value) VALUES (?, ?, ?, ?)
		ON CONFLICT (domain, item, name) DO UPDATE SET value = excluded.value`
	upsertSQLServer = `MERGE attributes WITH (HOLDLOCK) AS t
		USING (SELECT ? AS domain, ? AS item, ? AS name, ? AS value) AS s
		ON t.domain = s.domain AND t.item = s.item AND t.name = s.name
		WHEN MATCHED THEN UPDATE SET value = s.value
		WHEN NOT MATCHED THEN INSERT (domain, item, name, value) VALUES (s.domain, s.item, s.name, s.value);`

	deleteItem = `DELETE FROM attributes WHERE domain = ? AND item = ?`
)

// Get возвращает все атрибуты элемента. found=false, если атрибутов нет.
func (s *Store) Get(ctx context.Context, domain, item string) (map[string]string, bool, error) {
	ctx, cancel := s.db.WithTimeout(ctx)
	defer cancel()

	rows, err := s.db.SQL.QueryContext(ctx, s.db.Dialect.Rebind(selectItem), domain, item)
	if err != nil {
		return nil, false, fmt.Errorf("kvstore: get %s/%s: %w", domain, item, err)
	}
	defer rows.Close()

	attrs := make(map[string]string)
	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return nil, false, fmt.Errorf("kvstore: scan %s/%s: %w", domain, item, err)
		}
		attrs[name] = value
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("kvstore: get %s/%s: %w", domain, item, err)
	}
	if len(attrs) == 0 {
		return nil, false, nil
	}
	return attrs, true, nil
}

// Put заменяет значения перечисленных атрибутов. Остальные атрибуты элемента не меняются.
func (s *Store) Put(ctx context.Context, domain, item string, attrs map[string]string) error {
	return s.put(ctx, domain, item, attrs, nil)
}

// PutIf заменяет атрибуты, только если cond выполняется.
// Проверка и запись идут в одной транзакции. При невыполненном условии
// возвращается ErrConditionFailed.
func (s *Store) PutIf(ctx context.Context, domain, item string, attrs map[string]string, cond Condition) error {
	return s.put(ctx, domain, item, attrs, &cond)
}

func (s *Store) put(ctx context.Context, domain, item string, attrs map[string]string, cond *Condition) error {
	ctx, cancel := s.db.WithTimeout(ctx)
	defer cancel()

	tx, err := s.db.SQL.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("kvstore: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if cond != nil {
		if err := s.check(ctx, tx, domain, item, *cond); err != nil {
			return err
		}
	}

	upsert := upsertSQLite
	if s.db.Dialect == storage.SQLServer {
		upsert = upsertSQLServer
	}
	upsert = s.db.Dialect.Rebind(upsert)

	// порядок имён фиксирован: одинаковый порядок блокировок у конкурентов
	names := make([]string, 0, len(attrs))
	for name := range attrs {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if _, err := tx.ExecContext(ctx, upsert, domain, item, name, attrs[name]); err != nil {
			return fmt.Errorf("kvstore: put %s/%s.%s: %w", domain, item, name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("kvstore: commit %s/%s: %w", domain, item, err)
	}
	return nil
}

func (s *Store) check(ctx context.Context, tx *sql.Tx, domain, item string, cond Condition) error {
	query := selectAttrSQLite
	if s.db.Dialect == storage.SQLServer {
		query = selectAttrSQLServer
	}

	var current string
	err := tx.QueryRowContext(ctx, s.db.Dialect.Rebind(query), domain, item, cond.Name).Scan(&current)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if cond.Exists {
			return ErrConditionFailed
		}
		return nil
	case err != nil:
		return fmt.Errorf("kvstore: check %s/%s.%s: %w", domain, item, cond.Name, err)
	}
	if !cond.Exists || current != cond.Value {
		return ErrConditionFailed
	}
	return nil
}

// Delete удаляет элемент целиком.
func (s *Store) Delete(ctx context.Context, domain, item string) error {
	ctx, cancel := s.db.WithTimeout(ctx)
	defer cancel()

	if _, err := s.db.SQL.ExecContext(ctx, s.db.Dialect.Rebind(deleteItem), domain, item); err != nil {
		return fmt.Errorf("kvstore: delete %s/%s: %w", domain, item, err)
	}
	return nil
}
