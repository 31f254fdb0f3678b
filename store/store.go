// Package store persists items and reviews in a single sqlite file.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/aluiziolira/phone-reviews/metrics"
	"github.com/aluiziolira/phone-reviews/models"
	_ "modernc.org/sqlite"
)

// Store wraps the sqlite handle. It holds a single connection; no statement,
// row set or transaction outlives a method call.
type Store struct {
	db      *sql.DB
	path    string
	metrics *metrics.Metrics
}

// Exists reports whether the database file is present. It must be checked
// before Open, which creates the file.
func Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// Remove deletes the database file and its journal side files.
func Remove(path string) error {
	for _, p := range []string{path, path + "-journal", path + "-wal", path + "-shm"} {
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("remove %s: %w", p, err)
		}
	}
	return nil
}

// Open opens (creating if needed) the database with foreign keys enforced.
func Open(ctx context.Context, path string, m *metrics.Metrics) (*Store, error) {
	dsn := "file:" + path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database %s: %w", path, err)
	}
	return &Store{db: db, path: path, metrics: m}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// QueryContext runs a read-only query. It lets the report layer depend on an
// interface rather than the store.
func (s *Store) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.db.QueryContext(ctx, query, args...)
}

// Load inserts a batch atomically: either every item and review is committed
// or none is.
func (s *Store) Load(ctx context.Context, batch models.Batch) error {
	start := time.Now()
	defer func() { s.metrics.ObserveLoad(time.Since(start)) }()

	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := insertAll(ctx, tx, itemsTable, itemColumns, len(batch.Items), func(i int) []any {
			return batch.Items[i].Values()
		}); err != nil {
			return err
		}
		return insertAll(ctx, tx, reviewsTable, reviewColumns, len(batch.Reviews), func(i int) []any {
			return batch.Reviews[i].Values()
		})
	})
}

func insertAll(ctx context.Context, tx *sql.Tx, table string, cols []string, n int, values func(int) []any) error {
	if n == 0 {
		return nil
	}
	ph := strings.TrimRight(strings.Repeat("?,", len(cols)), ",")
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO `+table+` (`+strings.Join(cols, ", ")+`) VALUES (`+ph+`)`)
	if err != nil {
		return fmt.Errorf("prepare insert into %s: %w", table, err)
	}
	defer stmt.Close()

	for i := 0; i < n; i++ {
		if _, err := stmt.ExecContext(ctx, values(i)...); err != nil {
			return classify(table, i+1, err)
		}
	}
	slog.Debug("inserted rows", slog.String("table", table), slog.Int("rows", n))
	return nil
}

// Tables lists user tables with their row counts, ordered by name.
func (s *Store) Tables(ctx context.Context) ([]models.TableInfo, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan table name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("list tables: %w", err)
	}
	rows.Close()

	out := make([]models.TableInfo, 0, len(names))
	for _, name := range names {
		var count int64
		if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM `+quoteIdent(name)).Scan(&count); err != nil {
			return nil, fmt.Errorf("count %s: %w", name, err)
		}
		out = append(out, models.TableInfo{Name: name, Rows: count})
	}
	return out, nil
}

// HasTable reports whether a relation exists.
func (s *Store) HasTable(ctx context.Context, name string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT count(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, name).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("lookup table %s: %w", name, err)
	}
	return n > 0, nil
}

func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			slog.Error("rollback failed", slog.Any("error", rbErr))
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
