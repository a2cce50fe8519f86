package gather

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/wateryu2030/newhigh-zh/internal/config"
	"github.com/wateryu2030/newhigh-zh/internal/provider"
	"github.com/wateryu2030/newhigh-zh/internal/schema"
	"github.com/wateryu2030/newhigh-zh/internal/store"
	"github.com/wateryu2030/newhigh-zh/internal/util"
)

// Compile-time interface check.
var _ Gatherer = (*FinancialGatherer)(nil)

// FinancialGatherer syncs the fundamental snapshot series. It follows the
// same watermark protocol as the daily pass but against the financials
// table, so the two passes advance independently.
type FinancialGatherer struct {
	provider provider.Provider
	sink     store.Writer
	db       store.DB
	cfg      config.Sync
	target   string
	log      *slog.Logger
}

// NewFinancialGatherer builds the fundamentals sync pass targeting today.
func NewFinancialGatherer(p provider.Provider, sink store.Writer, db store.DB, cfg config.Sync, log *slog.Logger) *FinancialGatherer {
	return &FinancialGatherer{
		provider: p,
		sink:     sink,
		db:       db,
		cfg:      cfg,
		target:   util.Today(),
		log:      log.With("gatherer", "financials"),
	}
}

// Name returns the gatherer identifier.
func (g *FinancialGatherer) Name() string { return "financials" }

// Run executes one incremental pass over the universe.
func (g *FinancialGatherer) Run(ctx context.Context) (*Summary, error) {
	sum := NewSummary(g.Name())

	if f, ok := g.sink.(store.Flusher); ok {
		if err := f.Flush(ctx); err != nil {
			return sum.Finish(), fmt.Errorf("flush before pass: %w", err)
		}
	}

	codes, err := g.db.ListCodes(ctx)
	if err != nil {
		return sum.Finish(), fmt.Errorf("list codes: %w", err)
	}
	if g.cfg.BatchSize > 0 && len(codes) > g.cfg.BatchSize {
		codes = codes[:g.cfg.BatchSize]
	}
	g.log.Info("starting financials pass", "pass_id", sum.PassID, "codes", len(codes))

	for i, code := range codes {
		if err := ctx.Err(); err != nil {
			return sum.Finish(), err
		}
		if err := g.syncOne(ctx, sum, code); err != nil {
			sum.AddError(fmt.Sprintf("%s: %v", code, err))
			g.log.Warn("financials sync failed", "code", code, "error", err)
		}
		if g.cfg.ProgressEvery > 0 && (i+1)%g.cfg.ProgressEvery == 0 {
			g.log.Info("progress", "done", i+1, "total", len(codes))
		}
	}

	sum.Finish()
	g.log.Info("financials pass finished", "pass_id", sum.PassID,
		"processed", sum.Processed, "skipped", sum.Skipped, "failed", sum.Failed,
		"rows_written", sum.RowsWritten)
	return sum, nil
}

func (g *FinancialGatherer) syncOne(ctx context.Context, sum *Summary, code string) error {
	wm, ok, err := g.db.MaxDate(ctx, schema.Financials, code)
	if err != nil {
		return err
	}
	start := g.cfg.StartDate
	if start == "" {
		start = util.DaysAgo(g.cfg.BackfillDays)
	}
	if ok {
		if wm >= g.target {
			sum.Skipped++
			return nil
		}
		start = util.NextDay(wm)
	}

	recs, err := g.provider.Financials(ctx, code, start, g.target)
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		sum.Processed++
		return nil
	}
	res, err := g.sink.WriteFinancials(ctx, recs)
	if err != nil {
		return err
	}
	sum.RowsWritten += res.Written
	sum.RowsRejected += res.Rejected
	sum.Processed++
	return nil
}
