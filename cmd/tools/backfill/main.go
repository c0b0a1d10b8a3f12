// The backfill tool drives a historical import to completion from the
// command line, re-invoking the day-bounded importer until the job reaches a
// terminal state.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/buildingvitals/vitalstore/internal/archive"
	"github.com/buildingvitals/vitalstore/internal/backfill"
	"github.com/buildingvitals/vitalstore/internal/cache"
	"github.com/buildingvitals/vitalstore/internal/config"
	"github.com/buildingvitals/vitalstore/internal/kv"
	"github.com/buildingvitals/vitalstore/internal/logging"
	"github.com/buildingvitals/vitalstore/internal/models"
	"github.com/buildingvitals/vitalstore/internal/upstream"
	"golang.org/x/time/rate"
)

var (
	Version   = "dev"     // Injected via ldflags during build
	GitCommit = "unknown" // Injected via ldflags during build
	BuildTime = "unknown" // Injected via ldflags during build
)

func main() {
	configPath := flag.String("config", "", "Path to configuration file")
	siteID := flag.String("site", "", "Site ID to backfill")
	startDate := flag.String("start", "", "Start date (YYYY-MM-DD)")
	endDate := flag.String("end", "", "End date (YYYY-MM-DD)")
	forceRestart := flag.Bool("force-restart", false, "Abandon any active job for this site and start over")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.NewFromConfig(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logging.SetGlobal(logger)
	logger.Info("Backfill tool starting...",
		"version", Version, "commit", GitCommit, "build time", BuildTime)

	req := &models.BackfillRequest{
		SiteID:       *siteID,
		StartDate:    *startDate,
		EndDate:      *endDate,
		ForceRestart: *forceRestart,
	}
	if err := req.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid arguments: %v\n", err)
		flag.Usage()
		os.Exit(2)
	}

	store, err := archive.NewFSStore(cfg.Archive.RootDir)
	if err != nil {
		logger.Fatal("Failed to open archive store", "error", err)
	}

	var kvStore kv.Store
	if cfg.Cache.Backend == "memory" {
		kvStore = kv.NewMemoryStore()
	} else {
		kvStore, err = kv.NewRedisStore(kv.RedisConfig{
			Addr:     cfg.Cache.Addr,
			Password: cfg.Cache.Password,
			DB:       cfg.Cache.DB,
		})
		if err != nil {
			logger.Fatal("Failed to connect to Redis", "error", err)
		}
	}
	defer func() { _ = kvStore.Close() }()
	queryCache := cache.NewQueryCache(kvStore, cache.PolicyFromConfig(cfg.Cache), logger)

	limiter := rate.NewLimiter(rate.Limit(float64(cfg.Backfill.RateLimitPerMinute)/60.0), 1)
	api := upstream.NewClient(cfg.Upstream, limiter, logger)

	importer := backfill.NewImporter(api, store, kvStore, queryCache, backfill.Config{
		DaysPerInvocation: cfg.Backfill.DaysPerInvocation,
		DayPause:          cfg.Backfill.DayPause,
	}, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// First Ctrl-C cancels the job at the next day boundary, second kills
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		logger.Info("Cancel requested, stopping at the next day boundary")
		cancel()
		<-quit
		os.Exit(130)
	}()

	resp, state, err := importer.Start(ctx, req)
	if err != nil {
		logger.Fatal("Failed to start backfill", "error", err)
	}
	if resp.Resumed {
		logger.Info("Resuming existing job",
			"backfill_id", resp.BackfillID,
			"current_date", state.CurrentDate,
			"remaining_days", resp.EstimatedDays,
		)
	}

	// Each Run processes at most days_per_invocation days; loop until the
	// job reaches a terminal state
	for {
		if err := importer.Run(ctx, resp.BackfillID); err != nil {
			if ctx.Err() != nil {
				break
			}
			logger.Fatal("Backfill run failed", "backfill_id", resp.BackfillID, "error", err)
		}

		state, err := importer.State(ctx, resp.BackfillID)
		if err != nil {
			logger.Fatal("Failed to read job state", "error", err)
		}

		logger.Info("Progress",
			"backfill_id", resp.BackfillID,
			"status", state.Status,
			"days_completed", state.DaysCompleted,
			"days_total", state.DaysTotal,
			"records", state.RecordsProcessed,
		)

		if state.Status != models.BackfillInProgress {
			if state.Status != models.BackfillCompleted {
				os.Exit(1)
			}
			break
		}
		if ctx.Err() != nil {
			break
		}
	}

	logger.Info("Backfill tool exiting")
}
