// newhigh-syncd is the long-running service: it schedules the daily and
// extended passes with cron and serves the read-only query API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/wateryu2030/newhigh-zh/internal/config"
	"github.com/wateryu2030/newhigh-zh/internal/gather"
	"github.com/wateryu2030/newhigh-zh/internal/httpapi"
	"github.com/wateryu2030/newhigh-zh/internal/indicator"
	"github.com/wateryu2030/newhigh-zh/internal/provider"
	"github.com/wateryu2030/newhigh-zh/internal/provider/baostock"
	"github.com/wateryu2030/newhigh-zh/internal/store"
	"github.com/wateryu2030/newhigh-zh/internal/util"
)

func main() {
	cfgPath := flag.String("config", "config/newhigh.yaml", "config file path")
	runNow := flag.Bool("run-now", false, "run the daily pass immediately at startup")
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

	var sink store.Writer = store.NewTypedStore(db)
	var buffered *store.BufferedStore
	if cfg.Buffer.Enabled {
		buffered, err = store.NewBufferedStore(db, cfg.Storage.CacheDir, cfg.Buffer, logger)
		if err != nil {
			log.Fatalf("failed to start write buffer: %v", err)
		}
		sink = buffered
	}

	api := httpapi.NewServer(db, logger)

	// runPasses executes a sequence of gatherers, recording each summary.
	runPasses := func(gs ...gather.Gatherer) {
		for _, g := range gs {
			sum, err := g.Run(ctx)
			api.Record(sum)
			if err != nil {
				logger.Error("pass aborted", "gatherer", g.Name(), "error", err)
				return
			}
		}
	}

	dailyJob := func() {
		runPasses(
			gather.NewInstrumentGatherer(client, sink, logger),
			gather.NewDailyGatherer(client, sink, db, cfg.Sync, logger),
			gather.NewFinancialGatherer(client, sink, db, cfg.Sync, logger),
			indicator.NewStage(sink, db, cfg.Sync, logger),
		)
	}
	extendedJob := func() {
		runPasses(gather.NewExtendedGatherer(client, sink, db, cfg.Sync, logger))
	}

	// Six-field cron expressions with a seconds column.
	sched := cron.New(cron.WithSeconds())
	if _, err := sched.AddFunc(cfg.Schedule.Daily, dailyJob); err != nil {
		log.Fatalf("invalid daily schedule %q: %v", cfg.Schedule.Daily, err)
	}
	if _, err := sched.AddFunc(cfg.Schedule.Extended, extendedJob); err != nil {
		log.Fatalf("invalid extended schedule %q: %v", cfg.Schedule.Extended, err)
	}
	sched.Start()
	defer sched.Stop()

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: api.Handler(),
	}
	go func() {
		logger.Info("api listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api server failed", "error", err)
			cancel()
		}
	}()

	if *runNow {
		go dailyJob()
	}

	logger.Info("syncd started",
		"daily_schedule", cfg.Schedule.Daily,
		"extended_schedule", cfg.Schedule.Extended)
	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("api shutdown", "error", err)
	}

	if buffered != nil {
		drainCtx, drainCancel := context.WithTimeout(context.Background(),
			time.Duration(cfg.Buffer.DrainTimeoutSec)*time.Second)
		defer drainCancel()
		if lost, err := buffered.Drain(drainCtx); err != nil || lost > 0 {
			logger.Warn("drain finished", "lost_rows", lost, "error", err)
		}
	}
}
