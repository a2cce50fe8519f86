package gather

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/wateryu2030/newhigh-zh/internal/provider"
	"github.com/wateryu2030/newhigh-zh/internal/store"
)

// Compile-time interface check.
var _ Gatherer = (*InstrumentGatherer)(nil)

// InstrumentGatherer refreshes the listed-security universe. It runs before
// the daily pass so new listings are picked up the day they appear.
type InstrumentGatherer struct {
	provider provider.Provider
	sink     store.Writer
	log      *slog.Logger
}

// NewInstrumentGatherer builds the universe refresh pass.
func NewInstrumentGatherer(p provider.Provider, sink store.Writer, log *slog.Logger) *InstrumentGatherer {
	return &InstrumentGatherer{
		provider: p,
		sink:     sink,
		log:      log.With("gatherer", "instruments"),
	}
}

// Name returns the gatherer identifier.
func (g *InstrumentGatherer) Name() string { return "instruments" }

// Run fetches the full universe and upserts it. Re-listing information for
// an existing code overwrites the stored record.
func (g *InstrumentGatherer) Run(ctx context.Context) (*Summary, error) {
	sum := NewSummary(g.Name())

	recs, err := g.provider.Instruments(ctx)
	if err != nil {
		return sum.Finish(), fmt.Errorf("fetch instruments: %w", err)
	}
	recs, rejected := DedupeInstruments(recs)
	sum.RowsRejected += rejected
	res, err := g.sink.WriteInstruments(ctx, recs)
	if err != nil {
		return sum.Finish(), fmt.Errorf("write instruments: %w", err)
	}
	sum.Processed = len(recs)
	sum.RowsWritten = res.Written
	sum.RowsRejected += res.Rejected

	sum.Finish()
	g.log.Info("instrument universe refreshed", "pass_id", sum.PassID,
		"instruments", len(recs), "rows_written", res.Written, "rows_rejected", res.Rejected)
	return sum, nil
}
