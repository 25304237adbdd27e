package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"feedkeeper/internal/cache"
	"feedkeeper/internal/config"
	"feedkeeper/internal/database"
	"feedkeeper/internal/fetcher"
	"feedkeeper/internal/ingest"
	"feedkeeper/internal/parser"
	"feedkeeper/internal/ratelimiter"
	"feedkeeper/internal/scheduler"
)

// One refresh-all per user per this interval.
const refreshAllInterval = 300 * time.Second

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(log)

	start := time.Now()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := config.LoadConfig()

	db, err := database.New(ctx, cfg.DBPath, log)
	if err != nil {
		log.ErrorContext(ctx, "Failed to initialize db",
			"error", err,
			"dbPath", cfg.DBPath)

		return
	}
	defer func() {
		if err = db.Close(); err != nil {
			log.ErrorContext(ctx, "Failed to close db",
				"error", err,
				"dbPath", cfg.DBPath)
		}
	}()
	log.InfoContext(ctx, "DB is initialized",
		"dbPath", cfg.DBPath)

	engine := ingest.New(
		db,
		cache.New(cfg.CacheMaxEntries),
		ratelimiter.New(refreshAllInterval, 1),
		ingest.NewPipeline(fetcher.New(cfg.ProxyBaseURL, log), parser.New(log)),
		log,
		cfg.CronSecret,
	)
	log.InfoContext(ctx, "Ingestion engine is initialized",
		"proxyBaseURL", cfg.ProxyBaseURL,
		"cacheMaxEntries", cfg.CacheMaxEntries)

	sched := scheduler.New(ctx, engine, cfg.SweepSpec, cfg.CronSecret, log)

	if err = sched.Start(); err != nil {
		log.ErrorContext(ctx, "Failed to start scheduler",
			"error", err,
			"spec", cfg.SweepSpec,
			"timezone", time.FixedZone(scheduler.Timezone, scheduler.TimezoneOffsetSeconds).String())

		return
	}
	defer sched.Stop()
	log.InfoContext(ctx, "Scheduler is started",
		"spec", cfg.SweepSpec,
		"timezone", time.FixedZone(scheduler.Timezone, scheduler.TimezoneOffsetSeconds).String())

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	sig := <-c
	log.InfoContext(ctx, "Shutdown signal is received",
		"signal", sig.String())
	cancel()

	log.InfoContext(ctx, "Exiting...",
		"signal", sig.String(),
		"uptimeSeconds", time.Since(start).Seconds())
}
