// Package domain defines the entities persisted by the sync engine: one
// struct per table, keyed by instrument code (ts_code, e.g. "600000.SH")
// and, for time series, the trade date in YYYY-MM-DD form. Nullable numeric
// fields are pointers; nil means the provider did not report a value (or,
// for indicators, that the lookback window is not yet full) and is stored as
// SQL NULL, never as a fabricated zero.
//
// The parquet struct tags describe the write-buffer spill format.
package domain

// Instrument is the identity record for a tradable security
// (stock_basic_info). Exactly one row exists per TSCode; delisting is
// represented by a populated DelistDate, never by row removal.
type Instrument struct {
	TSCode     string `parquet:"ts_code" json:"ts_code"`
	Symbol     string `parquet:"symbol" json:"symbol"`
	Name       string `parquet:"name" json:"name"`
	Area       string `parquet:"area" json:"area"`
	Industry   string `parquet:"industry" json:"industry"`
	Market     string `parquet:"market" json:"market"`
	ListDate   string `parquet:"list_date" json:"list_date"`
	DelistDate string `parquet:"delist_date" json:"delist_date"` // empty while listed
	IsHS       string `parquet:"is_hs" json:"is_hs"`             // cross-border eligibility: N/H/S
}

// Listed reports whether the instrument is still trading.
func (i Instrument) Listed() bool { return i.DelistDate == "" }

// DailyBar is one trading day's OHLCV and valuation snapshot for one
// instrument (stock_market_daily), keyed by (TSCode, TradeDate).
type DailyBar struct {
	TSCode       string   `parquet:"ts_code" json:"ts_code"`
	TradeDate    string   `parquet:"trade_date" json:"trade_date"`
	Open         float64  `parquet:"open" json:"open"`
	High         float64  `parquet:"high" json:"high"`
	Low          float64  `parquet:"low" json:"low"`
	Close        float64  `parquet:"close" json:"close"`
	PreClose     float64  `parquet:"preclose" json:"preclose"`
	PctChg       float64  `parquet:"pct_chg" json:"pct_chg"`
	Volume       float64  `parquet:"volume" json:"volume"`
	Amount       float64  `parquet:"amount" json:"amount"`
	TurnoverRate *float64 `parquet:"turnover_rate,optional" json:"turnover_rate"`
	Amplitude    *float64 `parquet:"amplitude,optional" json:"amplitude"`
	PETTM        *float64 `parquet:"pe_ttm,optional" json:"pe_ttm"`
	PBMRQ        *float64 `parquet:"pb_mrq,optional" json:"pb_mrq"`
	PSTTM        *float64 `parquet:"ps_ttm,optional" json:"ps_ttm"`
}

// FinancialSnapshot is a periodic fundamental/valuation aggregate per
// instrument per date (stock_financials), keyed by (TSCode, TradeDate). Its
// lifecycle is independent of DailyBar: different provider call, different
// cadence.
type FinancialSnapshot struct {
	TSCode            string   `parquet:"ts_code" json:"ts_code"`
	TradeDate         string   `parquet:"trade_date" json:"trade_date"`
	PE                *float64 `parquet:"pe,optional" json:"pe"`
	PB                *float64 `parquet:"pb,optional" json:"pb"`
	PS                *float64 `parquet:"ps,optional" json:"ps"`
	PCF               *float64 `parquet:"pcf,optional" json:"pcf"`
	ROE               *float64 `parquet:"roe,optional" json:"roe"`
	ROA               *float64 `parquet:"roa,optional" json:"roa"`
	EPS               *float64 `parquet:"eps,optional" json:"eps"`
	BPS               *float64 `parquet:"bps,optional" json:"bps"`
	TotalMV           *float64 `parquet:"total_mv,optional" json:"total_mv"`
	CircMV            *float64 `parquet:"circ_mv,optional" json:"circ_mv"`
	RevenueYoY        *float64 `parquet:"revenue_yoy,optional" json:"revenue_yoy"`
	NetProfitYoY      *float64 `parquet:"net_profit_yoy,optional" json:"net_profit_yoy"`
	GrossProfitMargin *float64 `parquet:"gross_profit_margin,optional" json:"gross_profit_margin"`
}

// TechnicalIndicator holds the derived series per (TSCode, TradeDate)
// (stock_technical_indicators). Rows are never fetched: they are recomputed
// from DailyBar history, and recomputation over identical history yields
// identical rows.
type TechnicalIndicator struct {
	TSCode     string   `parquet:"ts_code" json:"ts_code"`
	TradeDate  string   `parquet:"trade_date" json:"trade_date"`
	MA5        *float64 `parquet:"ma5,optional" json:"ma5"`
	MA20       *float64 `parquet:"ma20,optional" json:"ma20"`
	MA60       *float64 `parquet:"ma60,optional" json:"ma60"`
	RSI        *float64 `parquet:"rsi,optional" json:"rsi"`
	MACD       *float64 `parquet:"macd,optional" json:"macd"`
	KDJK       *float64 `parquet:"kdj_k,optional" json:"kdj_k"`
	KDJD       *float64 `parquet:"kdj_d,optional" json:"kdj_d"`
	ATR        *float64 `parquet:"atr,optional" json:"atr"`
	Volatility *float64 `parquet:"volatility,optional" json:"volatility"`
}

// MoneyFlow records per-day order-size buckets for one instrument
// (stock_moneyflow), keyed by (TSCode, TradeDate).
type MoneyFlow struct {
	TSCode       string   `parquet:"ts_code" json:"ts_code"`
	TradeDate    string   `parquet:"trade_date" json:"trade_date"`
	NetAmount    *float64 `parquet:"net_amount,optional" json:"net_amount"`
	BuyLgAmount  *float64 `parquet:"buy_lg_amount,optional" json:"buy_lg_amount"`
	SellLgAmount *float64 `parquet:"sell_lg_amount,optional" json:"sell_lg_amount"`
	BuyMdAmount  *float64 `parquet:"buy_md_amount,optional" json:"buy_md_amount"`
	SellMdAmount *float64 `parquet:"sell_md_amount,optional" json:"sell_md_amount"`
	BuySmAmount  *float64 `parquet:"buy_sm_amount,optional" json:"buy_sm_amount"`
	SellSmAmount *float64 `parquet:"sell_sm_amount,optional" json:"sell_sm_amount"`
}

// ConceptIndustry maps an instrument to a concept/industry label
// (stock_concept_industry), keyed by (TSCode, Concept).
type ConceptIndustry struct {
	TSCode       string `parquet:"ts_code" json:"ts_code"`
	Concept      string `parquet:"concept" json:"concept"`
	IndustrySW   string `parquet:"industry_sw" json:"industry_sw"`
	IndustryCSRC string `parquet:"industry_csrc" json:"industry_csrc"`
}

// IndexConstituent records membership of an instrument in a market index
// (index_constituents), keyed by (IndexKey, TSCode).
type IndexConstituent struct {
	IndexKey  string `parquet:"index_key" json:"index_key"` // hs300, sz50, zz500
	IndexName string `parquet:"index_name" json:"index_name"`
	TSCode    string `parquet:"ts_code" json:"ts_code"`
	CodeName  string `parquet:"code_name" json:"code_name"`
	Date      string `parquet:"date" json:"date"` // provider update date
}

// IndexDailyBar is one trading day's quote for a market index
// (market_index_daily), keyed by (IndexCode, TradeDate).
type IndexDailyBar struct {
	IndexCode string  `parquet:"index_code" json:"index_code"`
	Name      string  `parquet:"name" json:"name"`
	TradeDate string  `parquet:"trade_date" json:"trade_date"`
	Open      float64 `parquet:"open" json:"open"`
	High      float64 `parquet:"high" json:"high"`
	Low       float64 `parquet:"low" json:"low"`
	Close     float64 `parquet:"close" json:"close"`
	PreClose  float64 `parquet:"preclose" json:"preclose"`
	PctChg    float64 `parquet:"pct_chg" json:"pct_chg"`
	Volume    float64 `parquet:"volume" json:"volume"`
	Amount    float64 `parquet:"amount" json:"amount"`
}
