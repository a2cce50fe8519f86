package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/wateryu2030/newhigh-zh/internal/domain"
	"github.com/wateryu2030/newhigh-zh/internal/schema"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// Compile-time interface check.
var _ DB = (*SQLiteDB)(nil)

// lockedRetries bounds retries when another connection holds the write lock.
const lockedRetries = 5

// SQLiteDB implements DB backed by a single SQLite file.
type SQLiteDB struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database file at path, creating parent
// directories as needed, and applies the pragmas the sync workload needs:
// WAL journaling so readers never block the writer, and NORMAL sync which
// is durable enough for re-fetchable market data.
func OpenSQLite(path string) (*SQLiteDB, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// A single writer connection sidesteps most lock contention.
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply %s: %w", pragma, err)
		}
	}
	return &SQLiteDB{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteDB) Close() error {
	return s.db.Close()
}

// EnsureSchema creates every registered table that does not yet exist.
func (s *SQLiteDB) EnsureSchema(ctx context.Context) error {
	for _, t := range schema.All() {
		if _, err := s.db.ExecContext(ctx, schema.DDL(t, schema.SQLite)); err != nil {
			return fmt.Errorf("create table %s: %w", t.Name, err)
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Upsert
// ---------------------------------------------------------------------------

// Upsert deletes any existing rows with matching natural keys and inserts
// the replacements, chunk by chunk, each chunk in its own transaction.
func (s *SQLiteDB) Upsert(ctx context.Context, table *schema.Table, rows []schema.Row) (Result, error) {
	valid, rejected := splitRows(table, rows)
	res := Result{Rejected: rejected}
	for start := 0; start < len(valid); start += upsertChunk {
		end := start + upsertChunk
		if end > len(valid) {
			end = len(valid)
		}
		if err := s.upsertChunkLocked(ctx, table, valid[start:end]); err != nil {
			return res, fmt.Errorf("upsert %s: %w", table.Name, err)
		}
		res.Written += end - start
	}
	return res, nil
}

// upsertChunkLocked runs one delete+insert transaction, retrying when
// another process holds the database lock.
func (s *SQLiteDB) upsertChunkLocked(ctx context.Context, table *schema.Table, chunk []schema.Row) error {
	var err error
	for attempt := 0; attempt < lockedRetries; attempt++ {
		err = s.upsertTx(ctx, table, chunk)
		if err == nil || !isLocked(err) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt+1) * 100 * time.Millisecond):
		}
	}
	return err
}

func (s *SQLiteDB) upsertTx(ctx context.Context, table *schema.Table, chunk []schema.Row) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// Delete rows whose natural key matches an incoming row.
	var cond strings.Builder
	args := make([]any, 0, len(chunk)*len(table.Key))
	for i, r := range chunk {
		if i > 0 {
			cond.WriteString(" OR ")
		}
		cond.WriteByte('(')
		for j, k := range table.Key {
			if j > 0 {
				cond.WriteString(" AND ")
			}
			cond.WriteString(k)
			cond.WriteString("=?")
			args = append(args, r[k])
		}
		cond.WriteByte(')')
	}
	delStmt := fmt.Sprintf("DELETE FROM %s WHERE %s", table.Name, cond.String())
	if _, err := tx.ExecContext(ctx, delStmt, args...); err != nil {
		return fmt.Errorf("delete matching keys: %w", err)
	}

	insStmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		table.Name, strings.Join(table.ColumnNames(), ", "), placeholders(len(table.Columns)))
	stmt, err := tx.PrepareContext(ctx, insStmt)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, r := range chunk {
		if _, err := stmt.ExecContext(ctx, rowValues(table, r)...); err != nil {
			return fmt.Errorf("insert row: %w", err)
		}
	}
	return tx.Commit()
}

func isLocked(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "SQLITE_BUSY")
}

// ---------------------------------------------------------------------------
// Queries
// ---------------------------------------------------------------------------

// MaxDate returns the highest watermark value stored for code, and false
// when the code has no rows yet.
func (s *SQLiteDB) MaxDate(ctx context.Context, table *schema.Table, code string) (string, bool, error) {
	return maxDate(ctx, s.db, table, code)
}

// ListCodes returns the distinct instrument codes in basic_info.
func (s *SQLiteDB) ListCodes(ctx context.Context) ([]string, error) {
	return listCodes(ctx, s.db)
}

// QueryBars returns daily bars for code in [start, end], ordered by date.
func (s *SQLiteDB) QueryBars(ctx context.Context, code, start, end string) ([]domain.DailyBar, error) {
	return queryBars(ctx, s.db, code, start, end)
}

// QueryInstruments returns all instrument records.
func (s *SQLiteDB) QueryInstruments(ctx context.Context) ([]domain.Instrument, error) {
	return queryInstruments(ctx, s.db)
}

// QueryIndicators returns indicators for code in [start, end], ordered by date.
func (s *SQLiteDB) QueryIndicators(ctx context.Context, code, start, end string) ([]domain.TechnicalIndicator, error) {
	return queryIndicators(ctx, s.db, code, start, end)
}
