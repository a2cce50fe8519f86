package store

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/wateryu2030/newhigh-zh/internal/config"
	"github.com/wateryu2030/newhigh-zh/internal/domain"
	"github.com/wateryu2030/newhigh-zh/internal/util"
)

func bufCfg(maxRows int) config.Buffer {
	return config.Buffer{
		Enabled: true,
		MaxRows: maxRows,
		Workers: 2,
		// Interval flush disabled; tests drive flushes explicitly.
		FlushIntervalSec: 0,
	}
}

type collector struct {
	mu   sync.Mutex
	rows []domain.DailyBar
}

func (c *collector) flush(_ context.Context, items []domain.DailyBar) (Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rows = append(c.rows, items...)
	return Result{Written: len(items)}, nil
}

func testBars(n int) []domain.DailyBar {
	bars := make([]domain.DailyBar, n)
	for i := range bars {
		bars[i] = domain.DailyBar{TSCode: "600000.SH", TradeDate: dateN(i), Close: 10}
	}
	return bars
}

func TestBufferFlushesOnSizeThreshold(t *testing.T) {
	c := &collector{}
	buf, err := NewBuffer("bars", t.TempDir(), bufCfg(3), c.flush, util.NewLogger("error", "text"))
	if err != nil {
		t.Fatalf("NewBuffer: %v", err)
	}

	if err := buf.Add(testBars(7)...); err != nil {
		t.Fatalf("Add: %v", err)
	}
	lost, err := buf.Drain(context.Background())
	if err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if lost != 0 {
		t.Errorf("lost = %d, want 0", lost)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.rows) != 7 {
		t.Errorf("flushed %d rows, want 7", len(c.rows))
	}
	if buf.Written() != 7 {
		t.Errorf("Written() = %d, want 7", buf.Written())
	}
}

func TestBufferFlushWaitsForPersistence(t *testing.T) {
	c := &collector{}
	buf, err := NewBuffer("bars", t.TempDir(), bufCfg(1000), c.flush, util.NewLogger("error", "text"))
	if err != nil {
		t.Fatalf("NewBuffer: %v", err)
	}

	if err := buf.Add(testBars(4)...); err != nil {
		t.Fatalf("Add: %v", err)
	}
	// Flush must block until workers have persisted everything; the rows
	// have to be visible the moment it returns.
	if err := buf.Flush(context.Background()); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	c.mu.Lock()
	got := len(c.rows)
	c.mu.Unlock()
	if got != 4 {
		t.Errorf("rows visible after Flush = %d, want 4", got)
	}
	if _, err := buf.Drain(context.Background()); err != nil {
		t.Fatalf("Drain: %v", err)
	}
}

func TestBufferAddDoesNotBlockOnSlowFlush(t *testing.T) {
	gate := make(chan struct{})
	c := &collector{}
	slow := func(ctx context.Context, items []domain.DailyBar) (Result, error) {
		<-gate
		return c.flush(ctx, items)
	}
	cfg := bufCfg(2)
	cfg.Workers = 1
	buf, err := NewBuffer("bars", t.TempDir(), cfg, slow, util.NewLogger("error", "text"))
	if err != nil {
		t.Fatalf("NewBuffer: %v", err)
	}

	// With the single worker parked on the gate, cutting many batches must
	// still return immediately; the queue absorbs them.
	for i := 0; i < 10; i++ {
		if err := buf.Add(testBars(2)...); err != nil {
			t.Fatalf("Add batch %d: %v", i, err)
		}
	}
	close(gate)
	lost, err := buf.Drain(context.Background())
	if err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if lost != 0 {
		t.Errorf("lost = %d, want 0", lost)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.rows) != 20 {
		t.Errorf("flushed %d rows, want 20", len(c.rows))
	}
}

func TestBufferDrainReportsLostRows(t *testing.T) {
	failing := func(_ context.Context, items []domain.DailyBar) (Result, error) {
		return Result{}, errors.New("backend down")
	}
	buf, err := NewBuffer("bars", t.TempDir(), bufCfg(100), failing, util.NewLogger("error", "text"))
	if err != nil {
		t.Fatalf("NewBuffer: %v", err)
	}

	if err := buf.Add(testBars(5)...); err != nil {
		t.Fatalf("Add: %v", err)
	}
	lost, err := buf.Drain(context.Background())
	if err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if lost != 5 {
		t.Errorf("lost = %d, want 5", lost)
	}
}

func TestBufferedStorePassthroughAndDrain(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	bs, err := NewBufferedStore(db, t.TempDir(), bufCfg(1000), util.NewLogger("error", "text"))
	if err != nil {
		t.Fatalf("NewBufferedStore: %v", err)
	}

	// Instruments bypass the buffer and land immediately.
	if _, err := bs.WriteInstruments(ctx, []domain.Instrument{{TSCode: "600000.SH", Symbol: "600000", Name: "浦发银行"}}); err != nil {
		t.Fatalf("WriteInstruments: %v", err)
	}
	codes, err := db.ListCodes(ctx)
	if err != nil || len(codes) != 1 {
		t.Fatalf("ListCodes = %v err=%v, want 1 code", codes, err)
	}

	// Bars sit in the buffer until drained.
	if _, err := bs.WriteDailyBars(ctx, testBars(4)); err != nil {
		t.Fatalf("WriteDailyBars: %v", err)
	}
	lost, err := bs.Drain(ctx)
	if err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if lost != 0 {
		t.Errorf("lost = %d, want 0", lost)
	}
	if n := countRows(t, db, "stock_market_daily"); n != 4 {
		t.Errorf("bar rows after drain = %d, want 4", n)
	}
}
