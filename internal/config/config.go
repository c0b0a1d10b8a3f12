package config

import (
	"fmt"
	"time"
)

// Config represents the complete application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	HotStore HotStoreConfig `mapstructure:"hot_store"`
	Archive  ArchiveConfig  `mapstructure:"archive"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Upstream UpstreamConfig `mapstructure:"upstream"`
	Archival ArchivalConfig `mapstructure:"archival"`
	Backfill BackfillConfig `mapstructure:"backfill"`
	Ingest   IngestConfig   `mapstructure:"ingest"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host     string `mapstructure:"host"`      // Bind address (e.g., 0.0.0.0 for all interfaces)
	HTTPPort int    `mapstructure:"http_port"` // HTTP server port
}

// HotStoreConfig represents the embedded recent-data store
type HotStoreConfig struct {
	DataDir        string        `mapstructure:"data_dir"`         // Badger directory
	HotWindowDays  int           `mapstructure:"hot_window_days"`  // Retention boundary (default: 21)
	InMemory       bool          `mapstructure:"in_memory"`        // In-memory mode for tests
	QueryTimeout   time.Duration `mapstructure:"query_timeout"`    // Per-query timeout (short; hot tier is local)
	MaxMemoryMB    int64         `mapstructure:"max_memory_mb"`    // Badger memory budget (0 = defaults)
	GCDiscardRatio float64       `mapstructure:"gc_discard_ratio"` // Value-log GC threshold
}

// ArchiveConfig represents the cold object store
type ArchiveConfig struct {
	RootDir          string        `mapstructure:"root_dir"`          // Object store root (filesystem backend)
	KeyPrefix        string        `mapstructure:"key_prefix"`        // Key prefix (default: "timeseries")
	FetchConcurrency int           `mapstructure:"fetch_concurrency"` // Parallel daily-file fetches (default: 10)
	FetchTimeout     time.Duration `mapstructure:"fetch_timeout"`     // Per multi-file cold read
}

// CacheConfig represents the query-result cache and job-state store
type CacheConfig struct {
	Backend  string `mapstructure:"backend"`  // redis (default), memory
	Addr     string `mapstructure:"addr"`     // Redis address (e.g., localhost:6379)
	Password string `mapstructure:"password"` // Optional authentication
	DB       int    `mapstructure:"db"`       // Redis database number

	// Result TTL by age of the query's end_time
	TTLRecent  time.Duration `mapstructure:"ttl_recent"`   // end_time < 1 day old
	TTLWeek    time.Duration `mapstructure:"ttl_week"`     // 1-7 days old
	TTLMonth   time.Duration `mapstructure:"ttl_month"`    // 7-30 days old
	TTLArchive time.Duration `mapstructure:"ttl_archive"`  // > 30 days old
}

// UpstreamConfig represents the external sensor-data provider
type UpstreamConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	APIKey         string        `mapstructure:"api_key"`
	PageSize       int           `mapstructure:"page_size"`       // Samples per page (default: 5000)
	RequestTimeout time.Duration `mapstructure:"request_timeout"` // Per HTTP request
	MaxRetries     int           `mapstructure:"max_retries"`     // Attempts on 429/5xx (default: 3)
	RetryBackoff   time.Duration `mapstructure:"retry_backoff"`   // Base backoff, doubled per attempt
}

// ArchivalConfig represents the hot-to-cold migration pipeline
type ArchivalConfig struct {
	BatchSize   int           `mapstructure:"batch_size"`   // Hot rows read per batch (default: 10000)
	MaxDaysPerRun int         `mapstructure:"max_days_per_run"` // Days migrated per invocation
	RunTimeout  time.Duration `mapstructure:"run_timeout"`  // Whole-run budget
}

// BackfillConfig represents the historical importer
type BackfillConfig struct {
	DaysPerInvocation  int           `mapstructure:"days_per_invocation"`   // Chunking limit (default: 7)
	RateLimitPerMinute int           `mapstructure:"rate_limit_per_minute"` // Upstream request budget
	DayPause           time.Duration `mapstructure:"day_pause"`             // Pause between days
}

// IngestConfig represents the live-ingest queue consumer
type IngestConfig struct {
	Enabled       bool     `mapstructure:"enabled"`
	QueueType     string   `mapstructure:"queue_type"`     // nats (default), redis, kafka, memory
	URL           string   `mapstructure:"url"`            // Queue server URL
	Password      string   `mapstructure:"password"`       // Optional authentication
	RedisDB       int      `mapstructure:"redis_db"`       // Redis database number
	RedisStream   string   `mapstructure:"redis_stream"`   // Redis stream prefix (default: "vitals")
	KafkaBrokers  []string `mapstructure:"kafka_brokers"`  // Kafka broker addresses
	ConsumerGroup string   `mapstructure:"consumer_group"` // Consumer group (default: "vitalstore")
	NodeID        string   `mapstructure:"node_id"`        // Unique consumer identity
	Sites         []string `mapstructure:"sites"`          // Sites to subscribe for
}

// AuthConfig represents API authentication configuration
type AuthConfig struct {
	Enabled bool     `mapstructure:"enabled"`  // Enable/disable API key authentication
	APIKeys []string `mapstructure:"api_keys"` // List of valid API keys
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level"`       // debug, info, warn, error
	Format     string `mapstructure:"format"`      // json, console
	OutputPath string `mapstructure:"output_path"` // stdout, stderr, file path
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server config: %w", err)
	}

	if err := c.HotStore.Validate(); err != nil {
		return fmt.Errorf("hot_store config: %w", err)
	}

	if err := c.Archive.Validate(); err != nil {
		return fmt.Errorf("archive config: %w", err)
	}

	if err := c.Cache.Validate(); err != nil {
		return fmt.Errorf("cache config: %w", err)
	}

	if err := c.Backfill.Validate(); err != nil {
		return fmt.Errorf("backfill config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

// Validate validates server configuration
func (c *ServerConfig) Validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid http_port: %d", c.HTTPPort)
	}

	return nil
}

// Validate validates hot store configuration
func (c *HotStoreConfig) Validate() error {
	if c.DataDir == "" && !c.InMemory {
		return fmt.Errorf("data_dir is required")
	}

	if c.HotWindowDays < 1 {
		return fmt.Errorf("hot_window_days must be at least 1")
	}

	return nil
}

// Validate validates archive configuration
func (c *ArchiveConfig) Validate() error {
	if c.RootDir == "" {
		return fmt.Errorf("root_dir is required")
	}

	if c.FetchConcurrency < 1 {
		return fmt.Errorf("fetch_concurrency must be at least 1")
	}

	return nil
}

// Validate validates cache configuration
func (c *CacheConfig) Validate() error {
	switch c.Backend {
	case "redis", "memory":
	default:
		return fmt.Errorf("cache.backend must be 'redis' or 'memory'")
	}

	if c.Backend == "redis" && c.Addr == "" {
		return fmt.Errorf("cache.addr is required for redis backend")
	}

	return nil
}

// Validate validates backfill configuration
func (c *BackfillConfig) Validate() error {
	if c.DaysPerInvocation < 1 {
		return fmt.Errorf("days_per_invocation must be at least 1")
	}

	if c.RateLimitPerMinute < 1 {
		return fmt.Errorf("rate_limit_per_minute must be at least 1")
	}

	return nil
}

// Validate validates logging configuration
func (c *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}

	if !validLevels[c.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}

	validFormats := map[string]bool{
		"json":    true,
		"console": true,
	}

	if !validFormats[c.Format] {
		return fmt.Errorf("logging.format must be 'json' or 'console'")
	}

	return nil
}
