// Package store persists market data behind a backend-neutral DB interface.
// Two backends exist: SQLite (single file, pure-Go driver) and MySQL. Both
// implement replace-by-key upsert semantics so re-running a sync pass over
// the same date range never duplicates rows.
package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/wateryu2030/newhigh-zh/internal/config"
	"github.com/wateryu2030/newhigh-zh/internal/domain"
	"github.com/wateryu2030/newhigh-zh/internal/schema"
)

// upsertChunk bounds the number of natural keys handled per statement so the
// parameter count stays under both drivers' placeholder limits.
const upsertChunk = 200

// Result reports the outcome of a single Upsert call.
type Result struct {
	// Written is the number of rows persisted.
	Written int
	// Rejected is the number of rows dropped because a natural-key column
	// was missing or empty.
	Rejected int
}

// DB is the backend-neutral persistence interface. Callers never branch on
// the concrete backend; the dialect differences live entirely inside the
// implementations.
type DB interface {
	// EnsureSchema creates every registered table that does not yet exist.
	EnsureSchema(ctx context.Context) error

	// Upsert writes rows into table with replace-by-key semantics: a row
	// whose natural key matches an existing row overwrites it entirely.
	// Rows missing a key column are counted in Result.Rejected and skipped.
	Upsert(ctx context.Context, table *schema.Table, rows []schema.Row) (Result, error)

	// MaxDate returns the highest watermark value stored for code in table,
	// and false when the code has no rows yet.
	MaxDate(ctx context.Context, table *schema.Table, code string) (string, bool, error)

	// ListCodes returns the distinct instrument codes in basic_info,
	// ordered ascending.
	ListCodes(ctx context.Context) ([]string, error)

	// QueryBars returns daily bars for code in the inclusive date range,
	// ordered by trade date.
	QueryBars(ctx context.Context, code, start, end string) ([]domain.DailyBar, error)

	// QueryInstruments returns all instrument records.
	QueryInstruments(ctx context.Context) ([]domain.Instrument, error)

	// QueryIndicators returns computed indicators for code in the
	// inclusive date range, ordered by trade date.
	QueryIndicators(ctx context.Context, code, start, end string) ([]domain.TechnicalIndicator, error)

	Close() error
}

// Open constructs the backend named in cfg. Unknown backends are an error,
// not a silent fallback.
func Open(cfg config.Storage) (DB, error) {
	switch cfg.Backend {
	case "sqlite":
		return OpenSQLite(cfg.SQLitePath)
	case "mysql":
		return OpenMySQL(cfg.MySQLDSN)
	default:
		return nil, fmt.Errorf("store: unknown backend %q", cfg.Backend)
	}
}

// ---------------------------------------------------------------------------
// Typed writer facade
// ---------------------------------------------------------------------------

// Writer is the typed persistence surface the gatherers write through. It
// keeps the map-based Row conversion in one place so gather code only ever
// handles domain structs.
type Writer interface {
	WriteInstruments(ctx context.Context, recs []domain.Instrument) (Result, error)
	WriteDailyBars(ctx context.Context, bars []domain.DailyBar) (Result, error)
	WriteFinancials(ctx context.Context, recs []domain.FinancialSnapshot) (Result, error)
	WriteIndicators(ctx context.Context, recs []domain.TechnicalIndicator) (Result, error)
	WriteMoneyFlows(ctx context.Context, recs []domain.MoneyFlow) (Result, error)
	WriteConceptIndustry(ctx context.Context, recs []domain.ConceptIndustry) (Result, error)
	WriteIndexConstituents(ctx context.Context, recs []domain.IndexConstituent) (Result, error)
	WriteIndexBars(ctx context.Context, bars []domain.IndexDailyBar) (Result, error)
}

// Compile-time interface check.
var _ Writer = (*TypedStore)(nil)

// TypedStore adapts a DB into a Writer by converting domain structs to
// schema rows before each upsert.
type TypedStore struct {
	db DB
}

// NewTypedStore wraps db in the typed writer facade.
func NewTypedStore(db DB) *TypedStore {
	return &TypedStore{db: db}
}

// DB exposes the wrapped backend for read queries.
func (t *TypedStore) DB() DB { return t.db }

func (t *TypedStore) WriteInstruments(ctx context.Context, recs []domain.Instrument) (Result, error) {
	rows := make([]schema.Row, len(recs))
	for i := range recs {
		rows[i] = schema.InstrumentRow(recs[i])
	}
	return t.db.Upsert(ctx, schema.BasicInfo, rows)
}

func (t *TypedStore) WriteDailyBars(ctx context.Context, bars []domain.DailyBar) (Result, error) {
	rows := make([]schema.Row, len(bars))
	for i := range bars {
		rows[i] = schema.DailyBarRow(bars[i])
	}
	return t.db.Upsert(ctx, schema.MarketDaily, rows)
}

func (t *TypedStore) WriteFinancials(ctx context.Context, recs []domain.FinancialSnapshot) (Result, error) {
	rows := make([]schema.Row, len(recs))
	for i := range recs {
		rows[i] = schema.FinancialRow(recs[i])
	}
	return t.db.Upsert(ctx, schema.Financials, rows)
}

func (t *TypedStore) WriteIndicators(ctx context.Context, recs []domain.TechnicalIndicator) (Result, error) {
	rows := make([]schema.Row, len(recs))
	for i := range recs {
		rows[i] = schema.IndicatorRow(recs[i])
	}
	return t.db.Upsert(ctx, schema.Indicators, rows)
}

func (t *TypedStore) WriteMoneyFlows(ctx context.Context, recs []domain.MoneyFlow) (Result, error) {
	rows := make([]schema.Row, len(recs))
	for i := range recs {
		rows[i] = schema.MoneyFlowRow(recs[i])
	}
	return t.db.Upsert(ctx, schema.MoneyFlow, rows)
}

func (t *TypedStore) WriteConceptIndustry(ctx context.Context, recs []domain.ConceptIndustry) (Result, error) {
	rows := make([]schema.Row, len(recs))
	for i := range recs {
		rows[i] = schema.ConceptIndustryRow(recs[i])
	}
	return t.db.Upsert(ctx, schema.ConceptIndustry, rows)
}

func (t *TypedStore) WriteIndexConstituents(ctx context.Context, recs []domain.IndexConstituent) (Result, error) {
	rows := make([]schema.Row, len(recs))
	for i := range recs {
		rows[i] = schema.IndexConstituentRow(recs[i])
	}
	return t.db.Upsert(ctx, schema.IndexConstituents, rows)
}

func (t *TypedStore) WriteIndexBars(ctx context.Context, bars []domain.IndexDailyBar) (Result, error) {
	rows := make([]schema.Row, len(bars))
	for i := range bars {
		rows[i] = schema.IndexDailyRow(bars[i])
	}
	return t.db.Upsert(ctx, schema.IndexDaily, rows)
}

// ---------------------------------------------------------------------------
// Shared row helpers
// ---------------------------------------------------------------------------

// splitRows drops rows with a missing or empty natural-key column and
// collapses duplicate keys within the batch to the last occurrence, so both
// backends apply the same replace-by-key law. Returns the survivors plus
// the rejected count.
func splitRows(table *schema.Table, rows []schema.Row) ([]schema.Row, int) {
	valid := rows[:0:0]
	seen := make(map[string]int, len(rows))
	rejected := 0
	for _, r := range rows {
		if !rowKeyComplete(table, r) {
			rejected++
			continue
		}
		k := rowKey(table, r)
		if i, dup := seen[k]; dup {
			valid[i] = r
			continue
		}
		seen[k] = len(valid)
		valid = append(valid, r)
	}
	return valid, rejected
}

// rowKey builds the natural-key identity of a row. Key columns are strings
// for every registered table.
func rowKey(table *schema.Table, r schema.Row) string {
	var b strings.Builder
	for i, k := range table.Key {
		if i > 0 {
			b.WriteByte('\x1f')
		}
		if s, ok := r[k].(string); ok {
			b.WriteString(s)
		}
	}
	return b.String()
}

func rowKeyComplete(table *schema.Table, r schema.Row) bool {
	for _, k := range table.Key {
		v, ok := r[k]
		if !ok || v == nil {
			return false
		}
		if s, isStr := v.(string); isStr && s == "" {
			return false
		}
	}
	return true
}

// rowValues extracts column values in table order, substituting nil for
// absent columns so every row binds the same parameter count.
func rowValues(table *schema.Table, r schema.Row) []any {
	vals := make([]any, len(table.Columns))
	for i, c := range table.Columns {
		if v, ok := r[c.Name]; ok {
			vals[i] = v
		}
	}
	return vals
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	b := make([]byte, 0, n*2-1)
	for i := 0; i < n; i++ {
		if i > 0 {
			b = append(b, ',')
		}
		b = append(b, '?')
	}
	return string(b)
}
