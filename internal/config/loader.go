package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Load loads configuration from file
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Default config locations
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/vitalstore")
	}

	setDefaults(v)

	// Enable environment variable overrides
	v.SetEnvPrefix("VITALSTORE")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found; use defaults
			return parseConfig(v)
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	return parseConfig(v)
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.http_port", 8080)

	// Hot store defaults
	v.SetDefault("hot_store.data_dir", "./data/hot")
	v.SetDefault("hot_store.hot_window_days", 21)
	v.SetDefault("hot_store.query_timeout", "5s")
	v.SetDefault("hot_store.gc_discard_ratio", 0.5)

	// Archive defaults
	v.SetDefault("archive.root_dir", "./data/archive")
	v.SetDefault("archive.key_prefix", "timeseries")
	v.SetDefault("archive.fetch_concurrency", 10)
	v.SetDefault("archive.fetch_timeout", "60s")

	// Cache defaults
	v.SetDefault("cache.backend", "redis")
	v.SetDefault("cache.addr", "localhost:6379")
	v.SetDefault("cache.ttl_recent", "5m")
	v.SetDefault("cache.ttl_week", "30m")
	v.SetDefault("cache.ttl_month", "1h")
	v.SetDefault("cache.ttl_archive", "24h")

	// Upstream defaults
	v.SetDefault("upstream.base_url", "https://flightdeck.aceiot.cloud/api")
	v.SetDefault("upstream.page_size", 5000)
	v.SetDefault("upstream.request_timeout", "30s")
	v.SetDefault("upstream.max_retries", 3)
	v.SetDefault("upstream.retry_backoff", "2s")

	// Archival defaults
	v.SetDefault("archival.batch_size", 10000)
	v.SetDefault("archival.max_days_per_run", 30)
	v.SetDefault("archival.run_timeout", "10m")

	// Backfill defaults
	v.SetDefault("backfill.days_per_invocation", 7)
	v.SetDefault("backfill.rate_limit_per_minute", 60)
	v.SetDefault("backfill.day_pause", "500ms")

	// Ingest defaults
	v.SetDefault("ingest.enabled", false)
	v.SetDefault("ingest.queue_type", "nats")
	v.SetDefault("ingest.url", "nats://localhost:4222")
	v.SetDefault("ingest.redis_stream", "vitals")
	v.SetDefault("ingest.consumer_group", "vitalstore")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output_path", "stdout")
}

// parseConfig parses viper config into Config struct
func parseConfig(v *viper.Viper) (*Config, error) {
	var cfg Config

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:     "0.0.0.0",
			HTTPPort: 8080,
		},
		HotStore: HotStoreConfig{
			DataDir:        "./data/hot",
			HotWindowDays:  21,
			QueryTimeout:   5 * time.Second,
			GCDiscardRatio: 0.5,
		},
		Archive: ArchiveConfig{
			RootDir:          "./data/archive",
			KeyPrefix:        "timeseries",
			FetchConcurrency: 10,
			FetchTimeout:     60 * time.Second,
		},
		Cache: CacheConfig{
			Backend:    "memory",
			TTLRecent:  5 * time.Minute,
			TTLWeek:    30 * time.Minute,
			TTLMonth:   time.Hour,
			TTLArchive: 24 * time.Hour,
		},
		Upstream: UpstreamConfig{
			BaseURL:        "https://flightdeck.aceiot.cloud/api",
			PageSize:       5000,
			RequestTimeout: 30 * time.Second,
			MaxRetries:     3,
			RetryBackoff:   2 * time.Second,
		},
		Archival: ArchivalConfig{
			BatchSize:     10000,
			MaxDaysPerRun: 30,
			RunTimeout:    10 * time.Minute,
		},
		Backfill: BackfillConfig{
			DaysPerInvocation:  7,
			RateLimitPerMinute: 60,
			DayPause:           500 * time.Millisecond,
		},
		Ingest: IngestConfig{
			QueueType:     "nats",
			URL:           "nats://localhost:4222",
			RedisStream:   "vitals",
			ConsumerGroup: "vitalstore",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "json",
			OutputPath: "stdout",
		},
	}
}
