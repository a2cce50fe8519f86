// Package indicator computes technical series from stored daily bars. All
// functions are deterministic: the same bar history always produces the
// same values. A value is nil until its lookback window is full, so early
// rows carry NULLs rather than partial estimates.
package indicator

import (
	"math"

	"github.com/wateryu2030/newhigh-zh/internal/domain"
)

// Window lengths.
const (
	ma5Window   = 5
	ma20Window  = 20
	ma60Window  = 60
	rsiWindow   = 14
	macdFast    = 12
	macdSlow    = 26
	kdjWindow   = 9
	atrWindow   = 14
	volWindow   = 20
	tradingDays = 252
)

// MinBars is the history needed before every series has a value.
const MinBars = ma60Window

// Compute derives one indicator row per input bar. Bars must belong to a
// single instrument and be sorted by trade date ascending.
func Compute(bars []domain.DailyBar) []domain.TechnicalIndicator {
	n := len(bars)
	if n == 0 {
		return nil
	}
	closes := make([]float64, n)
	for i, b := range bars {
		closes[i] = b.Close
	}

	out := make([]domain.TechnicalIndicator, n)
	for i, b := range bars {
		out[i] = domain.TechnicalIndicator{TSCode: b.TSCode, TradeDate: b.TradeDate}
	}

	fillSMA(out, closes, ma5Window, func(r *domain.TechnicalIndicator, v float64) { r.MA5 = &v })
	fillSMA(out, closes, ma20Window, func(r *domain.TechnicalIndicator, v float64) { r.MA20 = &v })
	fillSMA(out, closes, ma60Window, func(r *domain.TechnicalIndicator, v float64) { r.MA60 = &v })
	fillRSI(out, closes)
	fillMACD(out, closes)
	fillKDJ(out, bars)
	fillATR(out, bars)
	fillVolatility(out, closes)
	return out
}

// fillSMA writes a simple moving average once the window is full.
func fillSMA(out []domain.TechnicalIndicator, closes []float64, window int, set func(*domain.TechnicalIndicator, float64)) {
	if len(closes) < window {
		return
	}
	var sum float64
	for i, c := range closes {
		sum += c
		if i >= window {
			sum -= closes[i-window]
		}
		if i >= window-1 {
			set(&out[i], sum/float64(window))
		}
	}
}

// fillRSI writes Wilder's RSI: the first value seeds from a simple average
// of the first 14 changes, later values use the smoothed running average.
func fillRSI(out []domain.TechnicalIndicator, closes []float64) {
	if len(closes) <= rsiWindow {
		return
	}
	var avgGain, avgLoss float64
	for i := 1; i < len(closes); i++ {
		change := closes[i] - closes[i-1]
		gain, loss := 0.0, 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		switch {
		case i < rsiWindow:
			avgGain += gain
			avgLoss += loss
			continue
		case i == rsiWindow:
			avgGain = (avgGain + gain) / rsiWindow
			avgLoss = (avgLoss + loss) / rsiWindow
		default:
			avgGain = (avgGain*(rsiWindow-1) + gain) / rsiWindow
			avgLoss = (avgLoss*(rsiWindow-1) + loss) / rsiWindow
		}
		rsi := 100.0
		if avgLoss > 0 {
			rsi = 100 - 100/(1+avgGain/avgLoss)
		}
		v := rsi
		out[i].RSI = &v
	}
}

// fillMACD writes the MACD line (fast EMA minus slow EMA). Each EMA seeds
// from the simple average of its first window, so the line starts once the
// slow window is full.
func fillMACD(out []domain.TechnicalIndicator, closes []float64) {
	if len(closes) < macdSlow {
		return
	}
	fast := ema(closes, macdFast)
	slow := ema(closes, macdSlow)
	for i := macdSlow - 1; i < len(closes); i++ {
		v := fast[i] - slow[i]
		out[i].MACD = &v
	}
}

// ema returns the exponential moving average with an SMA seed; entries
// before the seed index are zero and must not be read.
func ema(vals []float64, window int) []float64 {
	out := make([]float64, len(vals))
	if len(vals) < window {
		return out
	}
	var sum float64
	for i := 0; i < window; i++ {
		sum += vals[i]
	}
	out[window-1] = sum / float64(window)
	k := 2.0 / float64(window+1)
	for i := window; i < len(vals); i++ {
		out[i] = vals[i]*k + out[i-1]*(1-k)
	}
	return out
}

// fillKDJ writes the stochastic K and D lines. RSV compares the close to
// the 9-day high/low range; K and D smooth it with 1/3 weights, both
// seeded at 50.
func fillKDJ(out []domain.TechnicalIndicator, bars []domain.DailyBar) {
	if len(bars) < kdjWindow {
		return
	}
	k, d := 50.0, 50.0
	for i := kdjWindow - 1; i < len(bars); i++ {
		hh, ll := bars[i].High, bars[i].Low
		for j := i - kdjWindow + 1; j < i; j++ {
			if bars[j].High > hh {
				hh = bars[j].High
			}
			if bars[j].Low < ll {
				ll = bars[j].Low
			}
		}
		rsv := 50.0
		if hh > ll {
			rsv = (bars[i].Close - ll) / (hh - ll) * 100
		}
		k = k*2/3 + rsv/3
		d = d*2/3 + k/3
		kv, dv := k, d
		out[i].KDJK = &kv
		out[i].KDJD = &dv
	}
}

// fillATR writes Wilder's average true range, seeded from a simple average
// of the first 14 true ranges.
func fillATR(out []domain.TechnicalIndicator, bars []domain.DailyBar) {
	if len(bars) <= atrWindow {
		return
	}
	var atr float64
	for i := 1; i < len(bars); i++ {
		tr := trueRange(&bars[i], bars[i-1].Close)
		switch {
		case i < atrWindow:
			atr += tr
			continue
		case i == atrWindow:
			atr = (atr + tr) / atrWindow
		default:
			atr = (atr*(atrWindow-1) + tr) / atrWindow
		}
		v := atr
		out[i].ATR = &v
	}
}

func trueRange(b *domain.DailyBar, prevClose float64) float64 {
	tr := b.High - b.Low
	if d := math.Abs(b.High - prevClose); d > tr {
		tr = d
	}
	if d := math.Abs(b.Low - prevClose); d > tr {
		tr = d
	}
	return tr
}

// fillVolatility writes the annualized 20-day sample standard deviation of
// daily returns.
func fillVolatility(out []domain.TechnicalIndicator, closes []float64) {
	if len(closes) <= volWindow {
		return
	}
	returns := make([]float64, len(closes))
	for i := 1; i < len(closes); i++ {
		if closes[i-1] != 0 {
			returns[i] = closes[i]/closes[i-1] - 1
		}
	}
	for i := volWindow; i < len(closes); i++ {
		window := returns[i-volWindow+1 : i+1]
		var mean float64
		for _, r := range window {
			mean += r
		}
		mean /= float64(len(window))
		var sq float64
		for _, r := range window {
			sq += (r - mean) * (r - mean)
		}
		// Sample variance, matching rolling std with one delta dof.
		v := math.Sqrt(sq/float64(len(window)-1)) * math.Sqrt(tradingDays)
		out[i].Volatility = &v
	}
}
