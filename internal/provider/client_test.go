package provider

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/wateryu2030/newhigh-zh/internal/config"
	"github.com/wateryu2030/newhigh-zh/internal/domain"
	"github.com/wateryu2030/newhigh-zh/internal/util"
)

// flaky fails a fixed number of times before succeeding.
type flaky struct {
	stub
	failures int
	calls    int
	err      error
}

// stub is an embeddable zero Provider.
type stub struct{}

func (stub) Instruments(context.Context) ([]domain.Instrument, error) { return nil, nil }
func (stub) DailyBars(context.Context, string, string, string) ([]domain.DailyBar, error) {
	return nil, nil
}
func (stub) Financials(context.Context, string, string, string) ([]domain.FinancialSnapshot, error) {
	return nil, nil
}
func (stub) MoneyFlows(context.Context, string, string, string) ([]domain.MoneyFlow, error) {
	return nil, nil
}
func (stub) ConceptIndustry(context.Context) ([]domain.ConceptIndustry, error) { return nil, nil }
func (stub) IndexConstituents(context.Context, string) ([]domain.IndexConstituent, error) {
	return nil, nil
}
func (stub) IndexDailyBars(context.Context, string, string, string) ([]domain.IndexDailyBar, error) {
	return nil, nil
}

func (f *flaky) DailyBars(_ context.Context, code, start, end string) ([]domain.DailyBar, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, f.err
	}
	return []domain.DailyBar{{TSCode: code, TradeDate: end, Close: 11.49}}, nil
}

func testClient(inner Provider) *Client {
	c := NewClient(inner, config.Provider{
		RateLimitMS:      0,
		RetryMaxAttempts: 4,
		RetryBaseMS:      1,
	}, util.NewLogger("error", "text"))
	// No real sleeping in tests.
	c.retry.Sleep = func(context.Context, time.Duration) error { return nil }
	return c
}

func TestClientRetriesTransient(t *testing.T) {
	f := &flaky{failures: 2, err: Errf(Transient, "daily_bars", "connection reset")}
	c := testClient(f)

	bars, err := c.DailyBars(context.Background(), "600000.SH", "2025-10-01", "2025-10-31")
	if err != nil {
		t.Fatalf("DailyBars: %v", err)
	}
	if f.calls != 3 {
		t.Errorf("calls = %d, want 3 (2 failures + success)", f.calls)
	}
	if len(bars) != 1 || bars[0].Close != 11.49 {
		t.Errorf("bars = %v, want one bar with close 11.49", bars)
	}
}

func TestClientStopsOnInvalidCode(t *testing.T) {
	f := &flaky{failures: 10, err: Errf(InvalidCode, "daily_bars", "no such code")}
	c := testClient(f)

	_, err := c.DailyBars(context.Background(), "999999.XX", "2025-10-01", "2025-10-31")
	if err == nil {
		t.Fatal("want error for invalid code")
	}
	if f.calls != 1 {
		t.Errorf("calls = %d, want 1 (fatal errors never retry)", f.calls)
	}
	var pe *Error
	if !errors.As(err, &pe) || pe.Kind != InvalidCode {
		t.Errorf("error kind = %v, want InvalidCode", err)
	}
}

func TestRetryableClassification(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{Errf(Transient, "x", "net"), true},
		{Errf(RateLimited, "x", "429"), true},
		{Errf(Auth, "x", "login failed"), false},
		{Errf(InvalidCode, "x", "bad code"), false},
		{Errf(SchemaDrift, "x", "column moved"), false},
		{errors.New("plain"), true},
	}
	for _, tc := range cases {
		if got := Retryable(tc.err); got != tc.want {
			t.Errorf("Retryable(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}
