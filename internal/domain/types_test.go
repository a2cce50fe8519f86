package domain

import "testing"

func TestZeroValues(t *testing.T) {
	// Verify DailyBar can be instantiated with zero values.
	bar := DailyBar{}
	if bar.TSCode != "" || bar.TradeDate != "" {
		t.Error("expected empty key fields for zero-value DailyBar")
	}
	if bar.Open != 0 || bar.High != 0 || bar.Low != 0 || bar.Close != 0 {
		t.Error("expected zero OHLC values for zero-value DailyBar")
	}
	if bar.PETTM != nil || bar.PBMRQ != nil || bar.PSTTM != nil {
		t.Error("expected nil valuation fields for zero-value DailyBar")
	}

	// Indicators start with every derived value absent.
	ind := TechnicalIndicator{}
	if ind.MA5 != nil || ind.RSI != nil || ind.MACD != nil || ind.ATR != nil {
		t.Error("expected nil derived values for zero-value TechnicalIndicator")
	}
}

func TestInstrumentListed(t *testing.T) {
	inst := Instrument{TSCode: "600000.SH", Name: "浦发银行", ListDate: "1999-11-10"}
	if !inst.Listed() {
		t.Error("instrument without delist date should be listed")
	}

	inst.DelistDate = "2024-06-28"
	if inst.Listed() {
		t.Error("instrument with delist date should not be listed")
	}
}
