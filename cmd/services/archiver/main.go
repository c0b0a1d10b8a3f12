// The archiver runs one archival pass and exits. It is intended to be
// scheduled (cron or a Kubernetes CronJob) outside of request traffic hours.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/buildingvitals/vitalstore/internal/archival"
	"github.com/buildingvitals/vitalstore/internal/archive"
	"github.com/buildingvitals/vitalstore/internal/cache"
	"github.com/buildingvitals/vitalstore/internal/config"
	"github.com/buildingvitals/vitalstore/internal/hotstore"
	"github.com/buildingvitals/vitalstore/internal/kv"
	"github.com/buildingvitals/vitalstore/internal/logging"
)

var (
	Version   = "dev"     // Injected via ldflags during build
	GitCommit = "unknown" // Injected via ldflags during build
	BuildTime = "unknown" // Injected via ldflags during build
)

func main() {
	configPath := flag.String("config", "", "Path to configuration file")
	sitesFlag := flag.String("sites", "", "Comma-separated site IDs to archive")
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
	logger.Info("Archiver starting...",
		"version", Version, "commit", GitCommit, "build time", BuildTime)

	sites := parseSites(*sitesFlag, cfg.Ingest.Sites)
	if len(sites) == 0 {
		logger.Fatal("No sites to archive: pass -sites or configure ingest.sites")
	}

	hot, err := hotstore.Open(hotstore.Config{
		DataDir:     cfg.HotStore.DataDir,
		InMemory:    cfg.HotStore.InMemory,
		MaxMemoryMB: cfg.HotStore.MaxMemoryMB,
	})
	if err != nil {
		logger.Fatal("Failed to open hot store", "error", err)
	}
	defer func() { _ = hot.Close() }()

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

	pipeline := archival.NewPipeline(hot, store, kvStore, queryCache, archival.Config{
		HotWindowDays: cfg.HotStore.HotWindowDays,
		BatchSize:     cfg.Archival.BatchSize,
		MaxDaysPerRun: cfg.Archival.MaxDaysPerRun,
	}, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// SIGTERM stops between days, never mid-promotion
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		logger.Info("Shutdown requested, stopping after the current day")
		cancel()
	}()

	if cfg.Archival.RunTimeout > 0 {
		var timeoutCancel context.CancelFunc
		ctx, timeoutCancel = context.WithTimeout(ctx, cfg.Archival.RunTimeout)
		defer timeoutCancel()
	}

	result, err := pipeline.Run(ctx, sites)
	if err != nil {
		logger.Error("Archival run aborted", "error", err)
	}
	logger.Info("Archival run finished",
		"examined", result.DaysExamined,
		"archived", result.DaysArchived,
		"skipped", result.DaysSkipped,
		"failed", result.DaysFailed,
		"rows", result.RowsMigrated,
	)

	// Reclaim value-log space freed by the deleted days
	ratio := cfg.HotStore.GCDiscardRatio
	if ratio <= 0 {
		ratio = 0.5
	}
	if err := hot.RunGC(ratio); err != nil {
		logger.Debug("Value log GC skipped", "reason", err)
	}

	if err != nil || result.DaysFailed > 0 {
		os.Exit(1)
	}
}

func parseSites(flagValue string, configured []string) []string {
	if flagValue == "" {
		return configured
	}

	var sites []string
	for _, s := range strings.Split(flagValue, ",") {
		if s = strings.TrimSpace(s); s != "" {
			sites = append(sites, s)
		}
	}
	return sites
}
