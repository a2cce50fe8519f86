package gather

import (
	"github.com/wateryu2030/newhigh-zh/internal/domain"
	"github.com/wateryu2030/newhigh-zh/internal/util"
)

// CleanBars validates and deduplicates fetched daily bars before they are
// persisted. A bar is rejected when its key is incomplete, its date is
// malformed, or its price fields are not positive. Duplicate keys within
// the batch keep the last occurrence, matching upstream corrections that
// arrive later in the same response.
func CleanBars(bars []domain.DailyBar) (clean []domain.DailyBar, rejected int) {
	type key struct{ code, date string }
	seen := make(map[key]int, len(bars))
	clean = make([]domain.DailyBar, 0, len(bars))
	for _, b := range bars {
		if !validBar(&b) {
			rejected++
			continue
		}
		k := key{b.TSCode, b.TradeDate}
		if i, dup := seen[k]; dup {
			clean[i] = b
			continue
		}
		seen[k] = len(clean)
		clean = append(clean, b)
	}
	return clean, rejected
}

func validBar(b *domain.DailyBar) bool {
	if b.TSCode == "" || !util.ValidDate(b.TradeDate) {
		return false
	}
	if b.Open <= 0 || b.High <= 0 || b.Low <= 0 || b.Close <= 0 {
		return false
	}
	if b.High < b.Low {
		return false
	}
	return true
}

// DedupeInstruments drops instruments with an empty code and collapses
// duplicate codes to the last occurrence.
func DedupeInstruments(recs []domain.Instrument) (clean []domain.Instrument, rejected int) {
	seen := make(map[string]int, len(recs))
	clean = make([]domain.Instrument, 0, len(recs))
	for _, r := range recs {
		if r.TSCode == "" {
			rejected++
			continue
		}
		if i, dup := seen[r.TSCode]; dup {
			clean[i] = r
			continue
		}
		seen[r.TSCode] = len(clean)
		clean = append(clean, r)
	}
	return clean, rejected
}

// CleanIndexBars applies the same validation to market-index bars.
func CleanIndexBars(bars []domain.IndexDailyBar) (clean []domain.IndexDailyBar, rejected int) {
	type key struct{ code, date string }
	seen := make(map[key]int, len(bars))
	clean = make([]domain.IndexDailyBar, 0, len(bars))
	for _, b := range bars {
		if b.IndexCode == "" || !util.ValidDate(b.TradeDate) || b.Close <= 0 {
			rejected++
			continue
		}
		k := key{b.IndexCode, b.TradeDate}
		if i, dup := seen[k]; dup {
			clean[i] = b
			continue
		}
		seen[k] = len(clean)
		clean = append(clean, b)
	}
	return clean, rejected
}
