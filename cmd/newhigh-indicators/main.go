// newhigh-indicators recomputes the technical indicator series from stored
// daily bars. It needs no provider access.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/wateryu2030/newhigh-zh/internal/config"
	"github.com/wateryu2030/newhigh-zh/internal/indicator"
	"github.com/wateryu2030/newhigh-zh/internal/store"
	"github.com/wateryu2030/newhigh-zh/internal/util"
)

func main() {
	cfgPath := flag.String("config", "config/newhigh.yaml", "config file path")
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

	stage := indicator.NewStage(store.NewTypedStore(db), db, cfg.Sync, logger)
	sum, err := stage.Run(ctx)
	if err != nil {
		log.Fatalf("indicator pass aborted: %v", err)
	}
	if sum.Failed > 0 {
		os.Exit(1)
	}
}
