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
var _ Gatherer = (*ExtendedGatherer)(nil)

// MarketIndex identifies one of the tracked market indexes.
type MarketIndex struct {
	Code string
	Name string
}

// MarketIndexes is the fixed set of headline indexes whose daily quotes
// are synced alongside the stock universe.
var MarketIndexes = []MarketIndex{
	{Code: "000001.SH", Name: "上证综指"},
	{Code: "399001.SZ", Name: "深证成指"},
	{Code: "399006.SZ", Name: "创业板指"},
	{Code: "000300.SH", Name: "沪深300"},
	{Code: "000905.SH", Name: "中证500"},
	{Code: "000016.SH", Name: "上证50"},
}

// ConstituentIndexes is the set of index memberships tracked.
var ConstituentIndexes = []string{"hs300", "sz50", "zz500"}

// ExtendedGatherer syncs the slower-moving extended datasets: concept and
// industry labels, index constituents, market-index daily quotes, and
// per-instrument money flows. Each section fails independently.
type ExtendedGatherer struct {
	provider provider.Provider
	sink     store.Writer
	db       store.DB
	cfg      config.Sync
	target   string
	log      *slog.Logger

	// MoneyFlowEnabled turns the per-instrument money-flow section on.
	// It multiplies provider calls by the universe size, so it defaults
	// to off for gateways without that dataset.
	MoneyFlowEnabled bool
}

// NewExtendedGatherer builds the extended-dataset pass targeting today.
func NewExtendedGatherer(p provider.Provider, sink store.Writer, db store.DB, cfg config.Sync, log *slog.Logger) *ExtendedGatherer {
	return &ExtendedGatherer{
		provider: p,
		sink:     sink,
		db:       db,
		cfg:      cfg,
		target:   util.Today(),
		log:      log.With("gatherer", "extended"),
	}
}

// Name returns the gatherer identifier.
func (g *ExtendedGatherer) Name() string { return "extended" }

// Run executes each extended section in turn. A failed section is counted
// and the pass moves on.
func (g *ExtendedGatherer) Run(ctx context.Context) (*Summary, error) {
	sum := NewSummary(g.Name())
	g.log.Info("starting extended pass", "pass_id", sum.PassID)

	// 1. Concept and industry labels, full refresh.
	if err := g.syncConceptIndustry(ctx, sum); err != nil {
		sum.AddError(fmt.Sprintf("concept_industry: %v", err))
		g.log.Warn("concept/industry sync failed", "error", err)
	}

	// 2. Index constituents, full refresh per index.
	for _, key := range ConstituentIndexes {
		if err := ctx.Err(); err != nil {
			return sum.Finish(), err
		}
		if err := g.syncConstituents(ctx, sum, key); err != nil {
			sum.AddError(fmt.Sprintf("constituents %s: %v", key, err))
			g.log.Warn("constituent sync failed", "index", key, "error", err)
		}
	}

	// 3. Market-index daily quotes, incremental.
	for _, idx := range MarketIndexes {
		if err := ctx.Err(); err != nil {
			return sum.Finish(), err
		}
		if err := g.syncIndexDaily(ctx, sum, idx); err != nil {
			sum.AddError(fmt.Sprintf("index %s: %v", idx.Code, err))
			g.log.Warn("index daily sync failed", "index", idx.Code, "error", err)
		}
	}

	// 4. Money flows, incremental per instrument.
	if g.MoneyFlowEnabled {
		if err := g.syncMoneyFlows(ctx, sum); err != nil {
			return sum.Finish(), err
		}
	}

	sum.Finish()
	g.log.Info("extended pass finished", "pass_id", sum.PassID,
		"processed", sum.Processed, "skipped", sum.Skipped, "failed", sum.Failed,
		"rows_written", sum.RowsWritten, "duration", sum.Duration())
	return sum, nil
}

func (g *ExtendedGatherer) syncConceptIndustry(ctx context.Context, sum *Summary) error {
	recs, err := g.provider.ConceptIndustry(ctx)
	if err != nil {
		return err
	}
	res, err := g.sink.WriteConceptIndustry(ctx, recs)
	if err != nil {
		return err
	}
	sum.RowsWritten += res.Written
	sum.RowsRejected += res.Rejected
	sum.Processed++
	return nil
}

func (g *ExtendedGatherer) syncConstituents(ctx context.Context, sum *Summary, indexKey string) error {
	recs, err := g.provider.IndexConstituents(ctx, indexKey)
	if err != nil {
		return err
	}
	res, err := g.sink.WriteIndexConstituents(ctx, recs)
	if err != nil {
		return err
	}
	sum.RowsWritten += res.Written
	sum.RowsRejected += res.Rejected
	sum.Processed++
	return nil
}

func (g *ExtendedGatherer) syncIndexDaily(ctx context.Context, sum *Summary, idx MarketIndex) error {
	wm, ok, err := g.db.MaxDate(ctx, schema.IndexDaily, idx.Code)
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

	bars, err := g.provider.IndexDailyBars(ctx, idx.Code, start, g.target)
	if err != nil {
		return err
	}
	for i := range bars {
		bars[i].Name = idx.Name
	}
	clean, rejected := CleanIndexBars(bars)
	sum.RowsRejected += rejected
	if len(clean) == 0 {
		sum.Processed++
		return nil
	}
	res, err := g.sink.WriteIndexBars(ctx, clean)
	if err != nil {
		return err
	}
	sum.RowsWritten += res.Written
	sum.RowsRejected += res.Rejected
	sum.Processed++
	return nil
}

func (g *ExtendedGatherer) syncMoneyFlows(ctx context.Context, sum *Summary) error {
	codes, err := g.db.ListCodes(ctx)
	if err != nil {
		return fmt.Errorf("list codes: %w", err)
	}
	if g.cfg.BatchSize > 0 && len(codes) > g.cfg.BatchSize {
		codes = codes[:g.cfg.BatchSize]
	}
	for i, code := range codes {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := g.syncMoneyFlowOne(ctx, sum, code); err != nil {
			sum.AddError(fmt.Sprintf("moneyflow %s: %v", code, err))
			g.log.Warn("money flow sync failed", "code", code, "error", err)
		}
		if g.cfg.ProgressEvery > 0 && (i+1)%g.cfg.ProgressEvery == 0 {
			g.log.Info("moneyflow progress", "done", i+1, "total", len(codes))
		}
	}
	return nil
}

func (g *ExtendedGatherer) syncMoneyFlowOne(ctx context.Context, sum *Summary, code string) error {
	wm, ok, err := g.db.MaxDate(ctx, schema.MoneyFlow, code)
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

	recs, err := g.provider.MoneyFlows(ctx, code, start, g.target)
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		sum.Processed++
		return nil
	}
	res, err := g.sink.WriteMoneyFlows(ctx, recs)
	if err != nil {
		return err
	}
	sum.RowsWritten += res.Written
	sum.RowsRejected += res.Rejected
	sum.Processed++
	return nil
}
