// newhigh-extended syncs the slower-moving datasets: concept/industry
// labels, index constituents, market-index daily quotes, and optionally
// per-instrument money flows.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/wateryu2030/newhigh-zh/internal/config"
	"github.com/wateryu2030/newhigh-zh/internal/gather"
	"github.com/wateryu2030/newhigh-zh/internal/provider"
	"github.com/wateryu2030/newhigh-zh/internal/provider/baostock"
	"github.com/wateryu2030/newhigh-zh/internal/store"
	"github.com/wateryu2030/newhigh-zh/internal/util"
)

func main() {
	cfgPath := flag.String("config", "config/newhigh.yaml", "config file path")
	moneyFlow := flag.Bool("moneyflow", false, "also sync per-instrument money flows")
	flag.Parse()

	if p := os.Getenv("NEWHIGH_CONFIG"); p != "" {
		*cfgPath = p
	}
	cfg, err := config.LoadOrDefault(*cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
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
	sink := store.NewTypedStore(db)

	g := gather.NewExtendedGatherer(client, sink, db, cfg.Sync, logger)
	g.MoneyFlowEnabled = *moneyFlow

	sum, err := g.Run(ctx)
	if err != nil {
		log.Fatalf("extended pass aborted: %v", err)
	}
	if sum.Failed > 0 {
		os.Exit(1)
	}
}
