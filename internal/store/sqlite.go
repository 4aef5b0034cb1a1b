package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

type SQLiteStore struct {
	db  *sql.DB
	sql sq.StatementBuilderType
}

func NewSQLiteStore(dataSourceName string) (*SQLiteStore, error) {
	if dataSourceName == "" {
		return nil, fmt.Errorf("sqlite data source is empty")
	}
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One writer at a time; whole-blob writes make this the natural granularity.
	db.SetMaxOpenConns(1)
	if err = db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &SQLiteStore{
		db:  db,
		sql: sq.StatementBuilder.PlaceholderFormat(sq.Question),
	}
	if err = store.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	schema := `
    CREATE TABLE IF NOT EXISTS kv (
        scope TEXT NOT NULL,
        name TEXT NOT NULL,
        value BLOB NOT NULL,
        updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
        PRIMARY KEY (scope, name)
    );

    CREATE INDEX IF NOT EXISTS idx_kv_name ON kv (name);
    `
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) Get(ctx context.Context, scope, key string) ([]byte, error) {
	query, args, err := s.sql.Select("value").
		From("kv").
		Where(sq.Eq{"scope": scope, "name": key}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get query: %w", err)
	}

	var value []byte
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get %s: %w", Key{Scope: scope, Name: key}, err)
	}
	return value, nil
}

func (s *SQLiteStore) Put(ctx context.Context, scope, key string, value []byte) error {
	query, args, err := s.sql.Insert("kv").
		Columns("scope", "name", "value", "updated_at").
		Values(scope, key, value, time.Now().UTC()).
		Suffix("ON CONFLICT(scope, name) DO UPDATE SET value=excluded.value, updated_at=excluded.updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build put query: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to put %s: %w", Key{Scope: scope, Name: key}, err)
	}
	return nil
}

func (s *SQLiteStore) Delete(ctx context.Context, scope, key string) error {
	query, args, err := s.sql.Delete("kv").
		Where(sq.Eq{"scope": scope, "name": key}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete query: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to delete %s: %w", Key{Scope: scope, Name: key}, err)
	}
	return nil
}

func (s *SQLiteStore) ListKeysWithPrefix(ctx context.Context, prefix string) ([]Key, error) {
	query, args, err := s.sql.Select("scope", "name").
		From("kv").
		Where(sq.Expr("name LIKE ? ESCAPE '\\'", escapeLike(prefix)+"%")).
		OrderBy("name", "scope").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list keys: %w", err)
	}
	defer rows.Close()

	var keys []Key
	for rows.Next() {
		var k Key
		if err := rows.Scan(&k.Scope, &k.Name); err != nil {
			return nil, fmt.Errorf("failed to scan key row: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
