package gather

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/wateryu2030/newhigh-zh/internal/config"
	"github.com/wateryu2030/newhigh-zh/internal/domain"
	"github.com/wateryu2030/newhigh-zh/internal/provider"
	"github.com/wateryu2030/newhigh-zh/internal/schema"
	"github.com/wateryu2030/newhigh-zh/internal/store"
	"github.com/wateryu2030/newhigh-zh/internal/util"
)

// Compile-time interface check.
var _ Gatherer = (*DailyGatherer)(nil)

// DailyGatherer performs the incremental daily-bar sync. For each stored
// instrument it reads the persisted watermark, fetches only the missing
// date range, validates the rows, and writes bars plus the valuation
// snapshots derived from them. Instruments that are already current cost
// zero provider calls.
type DailyGatherer struct {
	provider provider.Provider
	sink     store.Writer
	db       store.DB
	cfg      config.Sync
	target   string // end date of the pass, inclusive
	log      *slog.Logger

	// Full ignores stored watermarks and refetches every instrument from
	// the configured start date. The upsert keeps the resync idempotent.
	Full bool
}

// NewDailyGatherer builds the daily sync pass targeting today.
func NewDailyGatherer(p provider.Provider, sink store.Writer, db store.DB, cfg config.Sync, log *slog.Logger) *DailyGatherer {
	return &DailyGatherer{
		provider: p,
		sink:     sink,
		db:       db,
		cfg:      cfg,
		target:   util.Today(),
		log:      log.With("gatherer", "daily"),
	}
}

// Name returns the gatherer identifier.
func (g *DailyGatherer) Name() string { return "daily" }

// Run executes one incremental pass over the instrument universe.
func (g *DailyGatherer) Run(ctx context.Context) (*Summary, error) {
	sum := NewSummary(g.Name())

	// 1. Push any buffered rows down so watermarks reflect reality.
	if f, ok := g.sink.(store.Flusher); ok {
		if err := f.Flush(ctx); err != nil {
			return sum.Finish(), fmt.Errorf("flush before pass: %w", err)
		}
	}

	// 2. Load the universe. An empty universe means the instrument pass
	// has not run yet.
	codes, err := g.db.ListCodes(ctx)
	if err != nil {
		return sum.Finish(), fmt.Errorf("list codes: %w", err)
	}
	if len(codes) == 0 {
		return sum.Finish(), fmt.Errorf("no instruments stored, run the instrument sync first")
	}

	// 3. Cap the pass size. Zero means the full universe.
	if g.cfg.BatchSize > 0 && len(codes) > g.cfg.BatchSize {
		codes = codes[:g.cfg.BatchSize]
	}
	g.log.Info("starting daily pass", "pass_id", sum.PassID, "codes", len(codes), "target", g.target)

	// 4. Sync each instrument; one failure never stops the pass.
	for i, code := range codes {
		if err := ctx.Err(); err != nil {
			return sum.Finish(), err
		}
		if err := g.syncOne(ctx, sum, code); err != nil {
			sum.AddError(fmt.Sprintf("%s: %v", code, err))
			g.log.Warn("instrument sync failed", "code", code, "error", err)
		}
		if g.cfg.ProgressEvery > 0 && (i+1)%g.cfg.ProgressEvery == 0 {
			g.log.Info("progress", "done", i+1, "total", len(codes),
				"written", sum.RowsWritten, "skipped", sum.Skipped, "failed", sum.Failed)
		}
	}

	sum.Finish()
	g.log.Info("daily pass finished", "pass_id", sum.PassID,
		"processed", sum.Processed, "skipped", sum.Skipped, "failed", sum.Failed,
		"rows_written", sum.RowsWritten, "rows_rejected", sum.RowsRejected,
		"duration", sum.Duration())
	return sum, nil
}

// syncOne brings a single instrument up to the target date.
func (g *DailyGatherer) syncOne(ctx context.Context, sum *Summary, code string) error {
	wm, ok, err := g.db.MaxDate(ctx, schema.MarketDaily, code)
	if err != nil {
		return err
	}

	start := g.startDate()
	if ok && !g.Full {
		// Already current: no provider call at all.
		if wm >= g.target {
			sum.Skipped++
			return nil
		}
		start = util.NextDay(wm)
	}

	bars, err := g.provider.DailyBars(ctx, code, start, g.target)
	if err != nil {
		return err
	}
	clean, rejected := CleanBars(bars)
	sum.RowsRejected += rejected
	if len(clean) == 0 {
		// Nothing new, likely a holiday stretch.
		sum.Processed++
		return nil
	}

	res, err := g.sink.WriteDailyBars(ctx, clean)
	if err != nil {
		return err
	}
	sum.RowsWritten += res.Written
	sum.RowsRejected += res.Rejected

	// Valuation ratios ride along on the daily bars; mirror them into the
	// financials series so fundamental queries need only one table.
	if snaps := valuationSnapshots(clean); len(snaps) > 0 {
		fres, err := g.sink.WriteFinancials(ctx, snaps)
		if err != nil {
			return err
		}
		sum.RowsWritten += fres.Written
		sum.RowsRejected += fres.Rejected
	}

	sum.Processed++
	return nil
}

// startDate is the fetch start for instruments with no stored history.
func (g *DailyGatherer) startDate() string {
	if g.cfg.StartDate != "" {
		return g.cfg.StartDate
	}
	return util.DaysAgo(g.cfg.BackfillDays)
}

// valuationSnapshots extracts PE/PB/PS rows from daily bars.
func valuationSnapshots(bars []domain.DailyBar) []domain.FinancialSnapshot {
	var out []domain.FinancialSnapshot
	for _, b := range bars {
		if b.PETTM == nil && b.PBMRQ == nil && b.PSTTM == nil {
			continue
		}
		out = append(out, domain.FinancialSnapshot{
			TSCode:    b.TSCode,
			TradeDate: b.TradeDate,
			PE:        b.PETTM,
			PB:        b.PBMRQ,
			PS:        b.PSTTM,
		})
	}
	return out
}
