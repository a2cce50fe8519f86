package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/wateryu2030/newhigh-zh/internal/domain"
	"github.com/wateryu2030/newhigh-zh/internal/schema"

	_ "github.com/go-sql-driver/mysql" // MySQL driver.
)

// Compile-time interface check.
var _ DB = (*MySQLDB)(nil)

// MySQLDB implements DB backed by a MySQL server.
type MySQLDB struct {
	db *sql.DB
}

// OpenMySQL connects to the server described by dsn and verifies the
// connection before returning.
func OpenMySQL(dsn string) (*MySQLDB, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(8)
	db.SetConnMaxLifetime(time.Hour)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping mysql: %w", err)
	}
	return &MySQLDB{db: db}, nil
}

// Close closes the connection pool.
func (m *MySQLDB) Close() error {
	return m.db.Close()
}

// EnsureSchema creates every registered table that does not yet exist.
func (m *MySQLDB) EnsureSchema(ctx context.Context) error {
	for _, t := range schema.All() {
		if _, err := m.db.ExecContext(ctx, schema.DDL(t, schema.MySQL)); err != nil {
			return fmt.Errorf("create table %s: %w", t.Name, err)
		}
	}
	return nil
}

// Upsert writes rows with REPLACE INTO, which deletes any row violating the
// natural-key UNIQUE constraint before inserting the replacement. Rows go
// out in multi-row statements, chunked to keep parameter counts bounded.
func (m *MySQLDB) Upsert(ctx context.Context, table *schema.Table, rows []schema.Row) (Result, error) {
	valid, rejected := splitRows(table, rows)
	res := Result{Rejected: rejected}
	cols := strings.Join(table.ColumnNames(), ", ")
	rowPh := "(" + placeholders(len(table.Columns)) + ")"
	for start := 0; start < len(valid); start += upsertChunk {
		end := start + upsertChunk
		if end > len(valid) {
			end = len(valid)
		}
		chunk := valid[start:end]
		phs := make([]string, len(chunk))
		args := make([]any, 0, len(chunk)*len(table.Columns))
		for i, r := range chunk {
			phs[i] = rowPh
			args = append(args, rowValues(table, r)...)
		}
		stmt := fmt.Sprintf("REPLACE INTO %s (%s) VALUES %s", table.Name, cols, strings.Join(phs, ", "))
		if _, err := m.db.ExecContext(ctx, stmt, args...); err != nil {
			return res, fmt.Errorf("upsert %s: %w", table.Name, err)
		}
		res.Written += len(chunk)
	}
	return res, nil
}

// MaxDate returns the highest watermark value stored for code, and false
// when the code has no rows yet.
func (m *MySQLDB) MaxDate(ctx context.Context, table *schema.Table, code string) (string, bool, error) {
	return maxDate(ctx, m.db, table, code)
}

// ListCodes returns the distinct instrument codes in basic_info.
func (m *MySQLDB) ListCodes(ctx context.Context) ([]string, error) {
	return listCodes(ctx, m.db)
}

// QueryBars returns daily bars for code in [start, end], ordered by date.
func (m *MySQLDB) QueryBars(ctx context.Context, code, start, end string) ([]domain.DailyBar, error) {
	return queryBars(ctx, m.db, code, start, end)
}

// QueryInstruments returns all instrument records.
func (m *MySQLDB) QueryInstruments(ctx context.Context) ([]domain.Instrument, error) {
	return queryInstruments(ctx, m.db)
}

// QueryIndicators returns indicators for code in [start, end], ordered by date.
func (m *MySQLDB) QueryIndicators(ctx context.Context, code, start, end string) ([]domain.TechnicalIndicator, error) {
	return queryIndicators(ctx, m.db, code, start, end)
}
