package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"NewsRadar/internal/ports"
)

// PostgresStore persists delivered keys into a Postgres table.
type PostgresStore struct {
	db        *sql.DB
	table     string
	retention int
	psql      sq.StatementBuilderType
}

var _ ports.DeliverableStore = (*PostgresStore)(nil)

// OpenPostgres opens and pings a connection pool.
func OpenPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// NewPostgresStore wires a sql.DB implementation.
func NewPostgresStore(db *sql.DB, table string, retention int) *PostgresStore {
	if strings.TrimSpace(table) == "" {
		table = "delivered_keys"
	}
	return &PostgresStore{
		db:        db,
		table:     pq.QuoteIdentifier(table),
		retention: retention,
		psql:      sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// EnsureSchema creates the key table when it does not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	_, err := s.db.ExecContext(ctx, s.schemaSQL())
	if err != nil {
		return fmt.Errorf("create table: %w", err)
	}
	return nil
}

// Load returns the stored keys oldest first.
func (s *PostgresStore) Load(ctx context.Context) ([]string, error) {
	if s.db == nil {
		return nil, nil
	}

	query, args, err := s.loadQuery().ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query keys: %w", err)
	}

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan key: %w", err)
		}
		keys = append(keys, key)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("rows iteration: %w", rowsErr)
	}

	if closeErr := rows.Close(); closeErr != nil {
		return nil, fmt.Errorf("close rows: %w", closeErr)
	}

	return keys, nil
}

// Commit inserts keys and evicts the oldest rows beyond the retention cap
// in one transaction.
func (s *PostgresStore) Commit(ctx context.Context, keys []string) (err error) {
	if s.db == nil || len(keys) == 0 {
		return nil
	}

	insert, ok := s.insertQuery(keys)
	if !ok {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = insert.RunWith(tx).ExecContext(ctx); err != nil {
		return fmt.Errorf("insert keys: %w", err)
	}

	if s.retention > 0 {
		if _, err = s.trimQuery().RunWith(tx).ExecContext(ctx); err != nil {
			return fmt.Errorf("trim keys: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (s *PostgresStore) schemaSQL() string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    id BIGSERIAL PRIMARY KEY,
    key TEXT NOT NULL UNIQUE,
    delivered_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`, s.table)
}

func (s *PostgresStore) loadQuery() sq.SelectBuilder {
	return s.psql.Select("key").From(s.table).OrderBy("id ASC")
}

func (s *PostgresStore) insertQuery(keys []string) (sq.InsertBuilder, bool) {
	q := s.psql.Insert(s.table).Columns("key")
	seen := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		q = q.Values(k)
	}
	if len(seen) == 0 {
		return q, false
	}
	return q.Suffix("ON CONFLICT (key) DO NOTHING"), true
}

func (s *PostgresStore) trimQuery() sq.DeleteBuilder {
	return s.psql.Delete(s.table).Where(
		sq.Expr(fmt.Sprintf("id NOT IN (SELECT id FROM %s ORDER BY id DESC LIMIT ?)", s.table), s.retention),
	)
}
