package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/buildingvitals/vitalstore/internal/archival"
	"github.com/buildingvitals/vitalstore/internal/archive"
	"github.com/buildingvitals/vitalstore/internal/backfill"
	"github.com/buildingvitals/vitalstore/internal/cache"
	"github.com/buildingvitals/vitalstore/internal/config"
	"github.com/buildingvitals/vitalstore/internal/hotstore"
	"github.com/buildingvitals/vitalstore/internal/ingest"
	"github.com/buildingvitals/vitalstore/internal/kv"
	"github.com/buildingvitals/vitalstore/internal/logging"
	"github.com/buildingvitals/vitalstore/internal/query"
	"github.com/buildingvitals/vitalstore/internal/router"
	"github.com/buildingvitals/vitalstore/internal/services"
	"github.com/buildingvitals/vitalstore/internal/subscriber"
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
	logger.Info("API service starting...",
		"version", Version, "commit", GitCommit, "build time", BuildTime)

	// Hot tier
	hot, err := hotstore.Open(hotstore.Config{
		DataDir:     cfg.HotStore.DataDir,
		InMemory:    cfg.HotStore.InMemory,
		MaxMemoryMB: cfg.HotStore.MaxMemoryMB,
	})
	if err != nil {
		logger.Fatal("Failed to open hot store", "error", err)
	}
	defer func() { _ = hot.Close() }()
	logger.Info("Hot store opened", "data_dir", cfg.HotStore.DataDir)

	// Cold tier
	store, err := archive.NewFSStore(cfg.Archive.RootDir)
	if err != nil {
		logger.Fatal("Failed to open archive store", "error", err)
	}
	reader := archive.NewReader(store, cfg.Archive.FetchConcurrency, logger)

	// Cache / job-state store
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

	// Upstream provider client, rate limited for backfill use
	limiter := rate.NewLimiter(rate.Limit(float64(cfg.Backfill.RateLimitPerMinute)/60.0), 1)
	api := upstream.NewClient(cfg.Upstream, limiter, logger)

	engine := query.NewEngine(hot, reader, queryCache, api, query.Options{
		HotWindowDays:    cfg.HotStore.HotWindowDays,
		PreferHot:        true,
		HotQueryTimeout:  cfg.HotStore.QueryTimeout,
		ColdFetchTimeout: cfg.Archive.FetchTimeout,
	}, logger)

	pipeline := archival.NewPipeline(hot, store, kvStore, queryCache, archival.Config{
		HotWindowDays: cfg.HotStore.HotWindowDays,
		BatchSize:     cfg.Archival.BatchSize,
		MaxDaysPerRun: cfg.Archival.MaxDaysPerRun,
	}, logger)

	importer := backfill.NewImporter(api, store, kvStore, queryCache, backfill.Config{
		DaysPerInvocation: cfg.Backfill.DaysPerInvocation,
		DayPause:          cfg.Backfill.DayPause,
	}, logger)

	queryService := services.NewQueryService(logger, engine)
	backfillService := services.NewBackfillService(logger, importer)
	adminService := services.NewAdminService(logger, hot, store, pipeline)

	if cfg.Auth.Enabled {
		logger.Info("API key authentication enabled", "num_keys", len(cfg.Auth.APIKeys))
	} else {
		logger.Warn("API key authentication DISABLED - all requests will be allowed")
	}

	app := router.New(logger, queryService, backfillService, adminService, *cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Live ingest from the message queue
	var consumer *ingest.Consumer
	if cfg.Ingest.Enabled {
		sub, err := subscriber.NewSubscriber(cfg.Ingest, subscriber.Config{
			NodeID:        cfg.Ingest.NodeID,
			ConsumerGroup: cfg.Ingest.ConsumerGroup,
			MaxRetries:    3,
			BatchSize:     100,
		})
		if err != nil {
			logger.Fatal("Failed to connect to queue", "error", err)
		}
		defer func() { _ = sub.Close() }()

		consumer = ingest.NewConsumer(sub, hot, cfg.Ingest.Sites, logger)
		if err := consumer.Start(ctx); err != nil {
			logger.Fatal("Failed to start ingest consumer", "error", err)
		}
	}

	go func() {
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.HTTPPort)
		logger.Info("Server listening", "address", addr)
		if err := app.Listen(addr); err != nil {
			logger.Fatal("Failed to start server", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	if consumer != nil {
		if err := consumer.Stop(); err != nil {
			logger.Warn("Ingest consumer shutdown error", "error", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}

	logger.Info("Server exited")
}
