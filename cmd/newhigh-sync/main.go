// newhigh-sync runs one synchronization pass: refresh the instrument
// universe, then bring every instrument's daily bars up to date.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/wateryu2030/newhigh-zh/internal/config"
	"github.com/wateryu2030/newhigh-zh/internal/gather"
	"github.com/wateryu2030/newhigh-zh/internal/provider"
	"github.com/wateryu2030/newhigh-zh/internal/provider/baostock"
	"github.com/wateryu2030/newhigh-zh/internal/store"
	"github.com/wateryu2030/newhigh-zh/internal/util"
)

func main() {
	cfgPath := flag.String("config", "config/newhigh.yaml", "config file path")
	batch := flag.Int("batch", -1, "override sync batch size (0 = full universe)")
	full := flag.Bool("full", false, "ignore watermarks and refetch from the start date")
	skipInstruments := flag.Bool("skip-instruments", false, "skip the universe refresh")
	skipFinancials := flag.Bool("skip-financials", false, "skip the financial backfill")
	flag.Parse()

	if p := os.Getenv("NEWHIGH_CONFIG"); p != "" {
		*cfgPath = p
	}
	cfg, err := config.LoadOrDefault(*cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if *batch >= 0 {
		cfg.Sync.BatchSize = *batch
	}

	logger := util.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	util.SetDefault(logger)

	db, err := store.Open(cfg.Storage)
	if err != nil {
		log.Fatalf("failed to open store: %v", err)
	}
	defer db.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := db.EnsureSchema(ctx); err != nil {
		log.Fatalf("failed to create schema: %v", err)
	}

	client := provider.NewClient(baostock.New(cfg.Provider, logger), cfg.Provider, logger)

	var sink store.Writer = store.NewTypedStore(db)
	var buffered *store.BufferedStore
	if cfg.Buffer.Enabled {
		buffered, err = store.NewBufferedStore(db, cfg.Storage.CacheDir, cfg.Buffer, logger)
		if err != nil {
			log.Fatalf("failed to start write buffer: %v", err)
		}
		sink = buffered
	}

	passes := []gather.Gatherer{}
	if !*skipInstruments {
		passes = append(passes, gather.NewInstrumentGatherer(client, sink, logger))
	}
	daily := gather.NewDailyGatherer(client, sink, db, cfg.Sync, logger)
	daily.Full = *full
	passes = append(passes, daily)
	if !*skipFinancials {
		passes = append(passes, gather.NewFinancialGatherer(client, sink, db, cfg.Sync, logger))
	}

	exitCode := 0
	for _, g := range passes {
		sum, err := g.Run(ctx)
		if err != nil {
			logger.Error("pass aborted", "gatherer", g.Name(), "error", err)
			exitCode = 1
			break
		}
		if sum.Failed > 0 {
			exitCode = 1
		}
	}

	if buffered != nil {
		drainCtx, drainCancel := context.WithTimeout(context.Background(),
			time.Duration(cfg.Buffer.DrainTimeoutSec)*time.Second)
		defer drainCancel()
		lost, err := buffered.Drain(drainCtx)
		if err != nil {
			logger.Error("drain failed", "lost_rows", lost, "error", err)
			exitCode = 1
		} else if lost > 0 {
			logger.Warn("drain lost rows", "lost_rows", lost)
			exitCode = 1
		}
	}
	os.Exit(exitCode)
}
