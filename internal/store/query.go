package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/wateryu2030/newhigh-zh/internal/domain"
	"github.com/wateryu2030/newhigh-zh/internal/schema"
)

// The read queries are identical in both dialects, so both backends share
// these helpers over the raw *sql.DB handle.

func maxDate(ctx context.Context, db *sql.DB, table *schema.Table, code string) (string, bool, error) {
	if table.Watermark == "" {
		return "", false, fmt.Errorf("table %s has no watermark column", table.Name)
	}
	q := fmt.Sprintf("SELECT MAX(%s) FROM %s WHERE %s = ?",
		table.Watermark, table.Name, table.Key[0])
	var max sql.NullString
	if err := db.QueryRowContext(ctx, q, code).Scan(&max); err != nil {
		return "", false, fmt.Errorf("max %s for %s: %w", table.Watermark, code, err)
	}
	if !max.Valid || max.String == "" {
		return "", false, nil
	}
	return max.String, true, nil
}

func listCodes(ctx context.Context, db *sql.DB) ([]string, error) {
	q := fmt.Sprintf("SELECT DISTINCT ts_code FROM %s ORDER BY ts_code", schema.BasicInfo.Name)
	rows, err := db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list codes: %w", err)
	}
	defer rows.Close()
	var codes []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		codes = append(codes, c)
	}
	return codes, rows.Err()
}

func queryBars(ctx context.Context, db *sql.DB, code, start, end string) ([]domain.DailyBar, error) {
	q := fmt.Sprintf(`SELECT ts_code, trade_date, open, high, low, close, preclose,
		pct_chg, volume, amount, turnover_rate, amplitude, pe_ttm, pb_mrq, ps_ttm
		FROM %s WHERE ts_code = ? AND trade_date >= ? AND trade_date <= ?
		ORDER BY trade_date`, schema.MarketDaily.Name)
	rows, err := db.QueryContext(ctx, q, code, start, end)
	if err != nil {
		return nil, fmt.Errorf("query bars for %s: %w", code, err)
	}
	defer rows.Close()
	var out []domain.DailyBar
	for rows.Next() {
		var b domain.DailyBar
		var open, high, low, cl, pre, chg, vol, amt sql.NullFloat64
		var turn, amp, pe, pb, ps sql.NullFloat64
		if err := rows.Scan(&b.TSCode, &b.TradeDate, &open, &high, &low, &cl, &pre,
			&chg, &vol, &amt, &turn, &amp, &pe, &pb, &ps); err != nil {
			return nil, err
		}
		b.Open, b.High, b.Low, b.Close = open.Float64, high.Float64, low.Float64, cl.Float64
		b.PreClose, b.PctChg, b.Volume, b.Amount = pre.Float64, chg.Float64, vol.Float64, amt.Float64
		b.TurnoverRate = nullPtr(turn)
		b.Amplitude = nullPtr(amp)
		b.PETTM = nullPtr(pe)
		b.PBMRQ = nullPtr(pb)
		b.PSTTM = nullPtr(ps)
		out = append(out, b)
	}
	return out, rows.Err()
}

func queryInstruments(ctx context.Context, db *sql.DB) ([]domain.Instrument, error) {
	q := fmt.Sprintf(`SELECT ts_code, symbol, name, area, industry, market,
		list_date, delist_date, is_hs FROM %s ORDER BY ts_code`, schema.BasicInfo.Name)
	rows, err := db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query instruments: %w", err)
	}
	defer rows.Close()
	var out []domain.Instrument
	for rows.Next() {
		var r domain.Instrument
		var area, industry, market, listDate, delistDate, isHS sql.NullString
		if err := rows.Scan(&r.TSCode, &r.Symbol, &r.Name, &area, &industry,
			&market, &listDate, &delistDate, &isHS); err != nil {
			return nil, err
		}
		r.Area, r.Industry, r.Market = area.String, industry.String, market.String
		r.ListDate, r.DelistDate, r.IsHS = listDate.String, delistDate.String, isHS.String
		out = append(out, r)
	}
	return out, rows.Err()
}

func queryIndicators(ctx context.Context, db *sql.DB, code, start, end string) ([]domain.TechnicalIndicator, error) {
	q := fmt.Sprintf(`SELECT ts_code, trade_date, ma5, ma20, ma60, rsi, macd,
		kdj_k, kdj_d, atr, volatility
		FROM %s WHERE ts_code = ? AND trade_date >= ? AND trade_date <= ?
		ORDER BY trade_date`, schema.Indicators.Name)
	rows, err := db.QueryContext(ctx, q, code, start, end)
	if err != nil {
		return nil, fmt.Errorf("query indicators for %s: %w", code, err)
	}
	defer rows.Close()
	var out []domain.TechnicalIndicator
	for rows.Next() {
		var r domain.TechnicalIndicator
		var ma5, ma20, ma60, rsi, macd, k, d, atr, vol sql.NullFloat64
		if err := rows.Scan(&r.TSCode, &r.TradeDate, &ma5, &ma20, &ma60, &rsi,
			&macd, &k, &d, &atr, &vol); err != nil {
			return nil, err
		}
		r.MA5, r.MA20, r.MA60 = nullPtr(ma5), nullPtr(ma20), nullPtr(ma60)
		r.RSI, r.MACD = nullPtr(rsi), nullPtr(macd)
		r.KDJK, r.KDJD = nullPtr(k), nullPtr(d)
		r.ATR, r.Volatility = nullPtr(atr), nullPtr(vol)
		out = append(out, r)
	}
	return out, rows.Err()
}

func nullPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
