package gather

import (
	"testing"

	"github.com/wateryu2030/newhigh-zh/internal/domain"
)

func TestCleanBarsKeepsLastDuplicate(t *testing.T) {
	bars := []domain.DailyBar{
		bar("600000.SH", "2025-10-30", 11.42, nil),
		bar("600000.SH", "2025-10-31", 11.40, nil), // superseded
		bar("600000.SH", "2025-10-31", 11.49, nil), // correction wins
	}
	clean, rejected := CleanBars(bars)
	if rejected != 0 {
		t.Errorf("rejected = %d, want 0", rejected)
	}
	if len(clean) != 2 {
		t.Fatalf("len(clean) = %d, want 2", len(clean))
	}
	if clean[1].TradeDate != "2025-10-31" || clean[1].Close != 11.49 {
		t.Errorf("kept bar = %+v, want the later 11.49 row", clean[1])
	}
}

func TestCleanBarsRejectsInvalid(t *testing.T) {
	valid := bar("600000.SH", "2025-10-31", 11.49, nil)
	cases := []struct {
		name string
		bar  domain.DailyBar
	}{
		{"missing code", func() domain.DailyBar { b := valid; b.TSCode = ""; return b }()},
		{"bad date", func() domain.DailyBar { b := valid; b.TradeDate = "20251031"; return b }()},
		{"zero close", func() domain.DailyBar { b := valid; b.Close = 0; return b }()},
		{"negative open", func() domain.DailyBar { b := valid; b.Open = -1; return b }()},
		{"high below low", func() domain.DailyBar { b := valid; b.High = b.Low - 1; return b }()},
	}
	for _, tc := range cases {
		clean, rejected := CleanBars([]domain.DailyBar{tc.bar, valid})
		if rejected != 1 {
			t.Errorf("%s: rejected = %d, want 1", tc.name, rejected)
		}
		if len(clean) != 1 || clean[0].Close != 11.49 {
			t.Errorf("%s: clean = %v, want only the valid bar", tc.name, clean)
		}
	}
}

func TestCleanIndexBars(t *testing.T) {
	bars := []domain.IndexDailyBar{
		{IndexCode: "000300.SH", TradeDate: "2025-10-31", Close: 3940},
		{IndexCode: "", TradeDate: "2025-10-31", Close: 100},
		{IndexCode: "000300.SH", TradeDate: "2025-10-31", Close: 3941}, // keep-last
	}
	clean, rejected := CleanIndexBars(bars)
	if rejected != 1 {
		t.Errorf("rejected = %d, want 1", rejected)
	}
	if len(clean) != 1 || clean[0].Close != 3941 {
		t.Errorf("clean = %v, want single bar with close 3941", clean)
	}
}

func TestDedupeInstruments(t *testing.T) {
	recs := []domain.Instrument{
		{TSCode: "600000.SH", Name: "浦发银行"},
		{TSCode: ""},
		{TSCode: "600000.SH", Name: "浦发银行(更名)"}, // keep-last
		{TSCode: "000001.SZ", Name: "平安银行"},
	}
	clean, rejected := DedupeInstruments(recs)
	if rejected != 1 {
		t.Errorf("rejected = %d, want 1", rejected)
	}
	if len(clean) != 2 || clean[0].Name != "浦发银行(更名)" {
		t.Errorf("clean = %v, want 2 instruments with last duplicate kept", clean)
	}
}
