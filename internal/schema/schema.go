// Package schema is the declarative table registry. Every persisted entity
// is described once here: table name, ordered column list, and the natural
// key enforced as a UNIQUE constraint. Both storage backends derive their
// DDL and upsert statements from these definitions, so the registry and the
// physical schema cannot drift.
package schema

import (
	"fmt"
	"strings"
)

// ColType is the abstract column type mapped per dialect.
type ColType int

const (
	// Text stores codes, names and YYYY-MM-DD dates.
	Text ColType = iota
	// Real stores all numeric measures (prices, volumes, ratios).
	Real
)

// Column is one column of a table definition.
type Column struct {
	Name string
	Type ColType
}

// Table describes one persisted entity.
type Table struct {
	// Name is the physical table name.
	Name string
	// Columns is the ordered column set; inserts always bind every column.
	Columns []Column
	// Key is the natural key, an ordered subset of Columns. Key[0] is the
	// instrument/index code column used by watermark queries.
	Key []string
	// Watermark names the date column used to bound incremental fetches,
	// or "" for tables without a per-code watermark.
	Watermark string
}

// ColumnNames returns the ordered column name list.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// HasColumn reports whether the table declares the named column.
func (t *Table) HasColumn(name string) bool {
	for _, c := range t.Columns {
		if c.Name == name {
			return true
		}
	}
	return false
}

// ---------------------------------------------------------------------------
// Registry
// ---------------------------------------------------------------------------

func cols(pairs ...any) []Column {
	out := make([]Column, 0, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		out = append(out, Column{Name: pairs[i].(string), Type: pairs[i+1].(ColType)})
	}
	return out
}

// BasicInfo is the instrument identity table.
var BasicInfo = &Table{
	Name: "stock_basic_info",
	Columns: cols(
		"ts_code", Text, "symbol", Text, "name", Text, "area", Text,
		"industry", Text, "market", Text, "list_date", Text,
		"delist_date", Text, "is_hs", Text,
	),
	Key: []string{"ts_code"},
}

// MarketDaily holds one OHLCV + valuation row per instrument per trading day.
var MarketDaily = &Table{
	Name: "stock_market_daily",
	Columns: cols(
		"ts_code", Text, "trade_date", Text, "open", Real, "high", Real,
		"low", Real, "close", Real, "preclose", Real, "pct_chg", Real,
		"volume", Real, "amount", Real, "turnover_rate", Real,
		"amplitude", Real, "pe_ttm", Real, "pb_mrq", Real, "ps_ttm", Real,
	),
	Key:       []string{"ts_code", "trade_date"},
	Watermark: "trade_date",
}

// Financials holds periodic fundamental snapshots.
var Financials = &Table{
	Name: "stock_financials",
	Columns: cols(
		"ts_code", Text, "trade_date", Text, "pe", Real, "pb", Real,
		"ps", Real, "pcf", Real, "roe", Real, "roa", Real, "eps", Real,
		"bps", Real, "total_mv", Real, "circ_mv", Real, "revenue_yoy", Real,
		"net_profit_yoy", Real, "gross_profit_margin", Real,
	),
	Key:       []string{"ts_code", "trade_date"},
	Watermark: "trade_date",
}

// Indicators holds the derived technical series.
var Indicators = &Table{
	Name: "stock_technical_indicators",
	Columns: cols(
		"ts_code", Text, "trade_date", Text, "ma5", Real, "ma20", Real,
		"ma60", Real, "rsi", Real, "macd", Real, "kdj_k", Real,
		"kdj_d", Real, "atr", Real, "volatility", Real,
	),
	Key:       []string{"ts_code", "trade_date"},
	Watermark: "trade_date",
}

// MoneyFlow holds per-day order-size buckets.
var MoneyFlow = &Table{
	Name: "stock_moneyflow",
	Columns: cols(
		"ts_code", Text, "trade_date", Text, "net_amount", Real,
		"buy_lg_amount", Real, "sell_lg_amount", Real, "buy_md_amount", Real,
		"sell_md_amount", Real, "buy_sm_amount", Real, "sell_sm_amount", Real,
	),
	Key:       []string{"ts_code", "trade_date"},
	Watermark: "trade_date",
}

// ConceptIndustry maps instruments to concept/industry labels.
var ConceptIndustry = &Table{
	Name: "stock_concept_industry",
	Columns: cols(
		"ts_code", Text, "concept", Text, "industry_sw", Text,
		"industry_csrc", Text,
	),
	Key: []string{"ts_code", "concept"},
}

// IndexConstituents records index membership.
var IndexConstituents = &Table{
	Name: "index_constituents",
	Columns: cols(
		"index_key", Text, "index_name", Text, "ts_code", Text,
		"code_name", Text, "date", Text,
	),
	Key: []string{"index_key", "ts_code"},
}

// IndexDaily holds market-index daily quotes.
var IndexDaily = &Table{
	Name: "market_index_daily",
	Columns: cols(
		"index_code", Text, "name", Text, "trade_date", Text, "open", Real,
		"high", Real, "low", Real, "close", Real, "preclose", Real,
		"pct_chg", Real, "volume", Real, "amount", Real,
	),
	Key:       []string{"index_code", "trade_date"},
	Watermark: "trade_date",
}

// All returns every table in creation order.
func All() []*Table {
	return []*Table{
		BasicInfo, MarketDaily, Financials, Indicators,
		MoneyFlow, ConceptIndustry, IndexConstituents, IndexDaily,
	}
}

// ---------------------------------------------------------------------------
// DDL
// ---------------------------------------------------------------------------

// Dialect selects the DDL type mapping for a storage backend.
type Dialect int

const (
	// SQLite is the embedded file backend.
	SQLite Dialect = iota
	// MySQL is the client/server backend.
	MySQL
)

func (d Dialect) colType(t ColType) string {
	switch d {
	case MySQL:
		if t == Real {
			return "DOUBLE"
		}
		return "VARCHAR(191)"
	default:
		if t == Real {
			return "REAL"
		}
		return "TEXT"
	}
}

// DDL returns an idempotent CREATE TABLE statement for the table in the
// given dialect, including the natural-key UNIQUE constraint.
func DDL(t *Table, d Dialect) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s (\n", t.Name)
	for _, c := range t.Columns {
		fmt.Fprintf(&b, "  %s %s,\n", c.Name, d.colType(c.Type))
	}
	fmt.Fprintf(&b, "  UNIQUE (%s)\n)", strings.Join(t.Key, ", "))
	return b.String()
}
