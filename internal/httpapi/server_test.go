package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/wateryu2030/newhigh-zh/internal/domain"
	"github.com/wateryu2030/newhigh-zh/internal/gather"
	"github.com/wateryu2030/newhigh-zh/internal/store"
	"github.com/wateryu2030/newhigh-zh/internal/util"
)

func newTestServer(t *testing.T) (*Server, *store.TypedStore) {
	t.Helper()
	db, err := store.OpenSQLite(filepath.Join(t.TempDir(), "api.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}
	return NewServer(db, util.NewLogger("error", "text")), store.NewTypedStore(db)
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandleInstruments(t *testing.T) {
	s, sink := newTestServer(t)
	if _, err := sink.WriteInstruments(context.Background(), []domain.Instrument{
		{TSCode: "600000.SH", Symbol: "600000", Name: "浦发银行"},
	}); err != nil {
		t.Fatalf("WriteInstruments: %v", err)
	}

	rec := get(t, s.Handler(), "/api/instruments")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp InstrumentsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Count != 1 || resp.Instruments[0].TSCode != "600000.SH" {
		t.Errorf("resp = %+v, want one instrument 600000.SH", resp)
	}
}

func TestHandleBarsRange(t *testing.T) {
	s, sink := newTestServer(t)
	pe := 7.83
	bars := []domain.DailyBar{
		{TSCode: "600000.SH", TradeDate: "2025-10-30", Open: 11.3, High: 11.5, Low: 11.2, Close: 11.42, Volume: 1},
		{TSCode: "600000.SH", TradeDate: "2025-10-31", Open: 11.4, High: 11.55, Low: 11.35, Close: 11.49, Volume: 1, PETTM: &pe},
	}
	if _, err := sink.WriteDailyBars(context.Background(), bars); err != nil {
		t.Fatalf("WriteDailyBars: %v", err)
	}

	rec := get(t, s.Handler(), "/api/bars/600000.SH?start=2025-10-31&end=2025-10-31")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp BarsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Count != 1 || resp.Bars[0].Close != 11.49 {
		t.Errorf("resp = %+v, want single 10-31 bar", resp)
	}
	if resp.Bars[0].PETTM == nil || *resp.Bars[0].PETTM != 7.83 {
		t.Errorf("PETTM = %v, want 7.83", resp.Bars[0].PETTM)
	}
}

func TestHandleBarsBadRange(t *testing.T) {
	s, _ := newTestServer(t)
	rec := get(t, s.Handler(), "/api/bars/600000.SH?start=20251031")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestHandleSummary(t *testing.T) {
	s, _ := newTestServer(t)
	sum := gather.NewSummary("daily")
	sum.Processed = 42
	s.Record(sum.Finish())

	rec := get(t, s.Handler(), "/api/summary")
	var resp SummaryResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Passes) != 1 || resp.Passes[0].Gatherer != "daily" || resp.Passes[0].Processed != 42 {
		t.Errorf("resp = %+v, want one daily pass with 42 processed", resp)
	}
}

func TestHandleHealth(t *testing.T) {
	s, _ := newTestServer(t)
	rec := get(t, s.Handler(), "/healthz")
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}
