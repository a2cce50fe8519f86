package indicator

import (
	"math"
	"reflect"
	"testing"

	"github.com/wateryu2030/newhigh-zh/internal/domain"
)

// flatBars returns n identical bars: constant close, constant range.
func flatBars(n int, close, spread float64) []domain.DailyBar {
	bars := make([]domain.DailyBar, n)
	for i := range bars {
		bars[i] = domain.DailyBar{
			TSCode:    "600000.SH",
			TradeDate: testDate(i),
			Open:      close,
			High:      close + spread,
			Low:       close - spread,
			Close:     close,
			PreClose:  close,
		}
	}
	return bars
}

// risingBars returns n bars with strictly increasing closes.
func risingBars(n int) []domain.DailyBar {
	bars := make([]domain.DailyBar, n)
	for i := range bars {
		c := 10 + float64(i)*0.1
		bars[i] = domain.DailyBar{
			TSCode:    "600000.SH",
			TradeDate: testDate(i),
			Open:      c - 0.05,
			High:      c + 0.05,
			Low:       c - 0.1,
			Close:     c,
			PreClose:  c - 0.1,
		}
	}
	return bars
}

func testDate(i int) string {
	// Distinct, sortable synthetic dates.
	return "2025-" + string(rune('A'+i/100)) + string(rune('0'+(i/10)%10)) + string(rune('0'+i%10))
}

func TestComputeWindowEdges(t *testing.T) {
	rows := Compute(risingBars(70))

	edges := []struct {
		name  string
		field func(r *domain.TechnicalIndicator) *float64
		first int
	}{
		{"MA5", func(r *domain.TechnicalIndicator) *float64 { return r.MA5 }, 4},
		{"MA20", func(r *domain.TechnicalIndicator) *float64 { return r.MA20 }, 19},
		{"MA60", func(r *domain.TechnicalIndicator) *float64 { return r.MA60 }, 59},
		{"RSI", func(r *domain.TechnicalIndicator) *float64 { return r.RSI }, 14},
		{"MACD", func(r *domain.TechnicalIndicator) *float64 { return r.MACD }, 25},
		{"KDJK", func(r *domain.TechnicalIndicator) *float64 { return r.KDJK }, 8},
		{"ATR", func(r *domain.TechnicalIndicator) *float64 { return r.ATR }, 14},
		{"Volatility", func(r *domain.TechnicalIndicator) *float64 { return r.Volatility }, 20},
	}
	for _, e := range edges {
		if v := e.field(&rows[e.first-1]); v != nil {
			t.Errorf("%s at index %d = %v, want nil before window fills", e.name, e.first-1, *v)
		}
		if v := e.field(&rows[e.first]); v == nil {
			t.Errorf("%s at index %d = nil, want first value", e.name, e.first)
		}
	}
}

func TestComputeKnownValues(t *testing.T) {
	// MA5 over closes 10.0, 10.1, ..., is the middle close.
	rows := Compute(risingBars(70))
	if got := *rows[4].MA5; math.Abs(got-10.2) > 1e-9 {
		t.Errorf("MA5[4] = %v, want 10.2", got)
	}
	// Strictly rising closes drive RSI to 100.
	if got := *rows[14].RSI; got != 100 {
		t.Errorf("RSI[14] = %v, want 100 for monotone gains", got)
	}

	flat := Compute(flatBars(70, 11.49, 0.1))
	// Constant closes: MACD line is zero, volatility is zero.
	if got := *flat[30].MACD; math.Abs(got) > 1e-9 {
		t.Errorf("MACD = %v, want 0 for constant closes", got)
	}
	if got := *flat[30].Volatility; got != 0 {
		t.Errorf("Volatility = %v, want 0 for constant closes", got)
	}
	// Constant range: ATR equals the bar range.
	if got := *flat[30].ATR; math.Abs(got-0.2) > 1e-9 {
		t.Errorf("ATR = %v, want 0.2", got)
	}
	// Close centered in a constant band: RSV 50, so K and D stay at 50.
	if got := *flat[30].KDJK; math.Abs(got-50) > 1e-9 {
		t.Errorf("KDJK = %v, want 50", got)
	}
	if got := *flat[30].KDJD; math.Abs(got-50) > 1e-9 {
		t.Errorf("KDJD = %v, want 50", got)
	}
}

func TestComputeDeterministic(t *testing.T) {
	bars := risingBars(80)
	a := Compute(bars)
	b := Compute(bars)
	if !reflect.DeepEqual(a, b) {
		t.Error("Compute is not deterministic for identical input")
	}
}

func TestComputeEmptyAndShort(t *testing.T) {
	if got := Compute(nil); got != nil {
		t.Errorf("Compute(nil) = %v, want nil", got)
	}
	rows := Compute(risingBars(3))
	if len(rows) != 3 {
		t.Fatalf("len = %d, want 3", len(rows))
	}
	for i, r := range rows {
		if r.MA5 != nil || r.RSI != nil || r.MACD != nil || r.ATR != nil {
			t.Errorf("row %d has values despite insufficient history: %+v", i, r)
		}
		if r.TSCode != "600000.SH" || r.TradeDate == "" {
			t.Errorf("row %d key not carried over: %+v", i, r)
		}
	}
}
