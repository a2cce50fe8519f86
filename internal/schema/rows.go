package schema

import "github.com/wateryu2030/newhigh-zh/internal/domain"

// Row is one record keyed by column name, aligned with a Table's column
// list. Values are string, float64 or nil (stored as SQL NULL). The typed
// converters below are the only producers, so field coverage is checked at
// compile time rather than by runtime column lookup.
type Row map[string]any

// opt converts a nullable numeric field to its stored form.
func opt(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}

// InstrumentRow converts an Instrument to its stored form.
func InstrumentRow(v domain.Instrument) Row {
	return Row{
		"ts_code": v.TSCode, "symbol": v.Symbol, "name": v.Name,
		"area": v.Area, "industry": v.Industry, "market": v.Market,
		"list_date": v.ListDate, "delist_date": v.DelistDate, "is_hs": v.IsHS,
	}
}

// DailyBarRow converts a DailyBar to its stored form.
func DailyBarRow(v domain.DailyBar) Row {
	return Row{
		"ts_code": v.TSCode, "trade_date": v.TradeDate,
		"open": v.Open, "high": v.High, "low": v.Low, "close": v.Close,
		"preclose": v.PreClose, "pct_chg": v.PctChg, "volume": v.Volume,
		"amount": v.Amount, "turnover_rate": opt(v.TurnoverRate),
		"amplitude": opt(v.Amplitude), "pe_ttm": opt(v.PETTM),
		"pb_mrq": opt(v.PBMRQ), "ps_ttm": opt(v.PSTTM),
	}
}

// FinancialRow converts a FinancialSnapshot to its stored form.
func FinancialRow(v domain.FinancialSnapshot) Row {
	return Row{
		"ts_code": v.TSCode, "trade_date": v.TradeDate,
		"pe": opt(v.PE), "pb": opt(v.PB), "ps": opt(v.PS), "pcf": opt(v.PCF),
		"roe": opt(v.ROE), "roa": opt(v.ROA), "eps": opt(v.EPS),
		"bps": opt(v.BPS), "total_mv": opt(v.TotalMV),
		"circ_mv": opt(v.CircMV), "revenue_yoy": opt(v.RevenueYoY),
		"net_profit_yoy":      opt(v.NetProfitYoY),
		"gross_profit_margin": opt(v.GrossProfitMargin),
	}
}

// IndicatorRow converts a TechnicalIndicator to its stored form.
func IndicatorRow(v domain.TechnicalIndicator) Row {
	return Row{
		"ts_code": v.TSCode, "trade_date": v.TradeDate,
		"ma5": opt(v.MA5), "ma20": opt(v.MA20), "ma60": opt(v.MA60),
		"rsi": opt(v.RSI), "macd": opt(v.MACD), "kdj_k": opt(v.KDJK),
		"kdj_d": opt(v.KDJD), "atr": opt(v.ATR), "volatility": opt(v.Volatility),
	}
}

// MoneyFlowRow converts a MoneyFlow to its stored form.
func MoneyFlowRow(v domain.MoneyFlow) Row {
	return Row{
		"ts_code":        v.TSCode,
		"trade_date":     v.TradeDate,
		"net_amount":     opt(v.NetAmount),
		"buy_lg_amount":  opt(v.BuyLgAmount),
		"sell_lg_amount": opt(v.SellLgAmount),
		"buy_md_amount":  opt(v.BuyMdAmount),
		"sell_md_amount": opt(v.SellMdAmount),
		"buy_sm_amount":  opt(v.BuySmAmount),
		"sell_sm_amount": opt(v.SellSmAmount),
	}
}

// ConceptIndustryRow converts a ConceptIndustry mapping to its stored form.
func ConceptIndustryRow(v domain.ConceptIndustry) Row {
	return Row{
		"ts_code": v.TSCode, "concept": v.Concept,
		"industry_sw": v.IndustrySW, "industry_csrc": v.IndustryCSRC,
	}
}

// IndexConstituentRow converts an IndexConstituent to its stored form.
func IndexConstituentRow(v domain.IndexConstituent) Row {
	return Row{
		"index_key": v.IndexKey, "index_name": v.IndexName,
		"ts_code": v.TSCode, "code_name": v.CodeName, "date": v.Date,
	}
}

// IndexDailyRow converts an IndexDailyBar to its stored form.
func IndexDailyRow(v domain.IndexDailyBar) Row {
	return Row{
		"index_code": v.IndexCode, "name": v.Name, "trade_date": v.TradeDate,
		"open": v.Open, "high": v.High, "low": v.Low, "close": v.Close,
		"preclose": v.PreClose, "pct_chg": v.PctChg,
		"volume": v.Volume, "amount": v.Amount,
	}
}
