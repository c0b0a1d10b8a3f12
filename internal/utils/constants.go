package utils

import "time"

// =============================================================================
// Timeout Constants
// =============================================================================

const (
	// DefaultRequestTimeout is the default timeout for HTTP requests
	DefaultRequestTimeout = 30 * time.Second

	// HotQueryTimeout is the timeout for hot-tier range queries
	HotQueryTimeout = 5 * time.Second

	// ColdFetchTimeout is the timeout for a multi-file cold-tier read
	ColdFetchTimeout = 60 * time.Second

	// JobStateTimeout is the timeout for job-state store operations
	JobStateTimeout = 5 * time.Second
)

// =============================================================================
// Tiering Constants
// =============================================================================

const (
	// DefaultHotWindowDays is the default hot/cold retention boundary
	DefaultHotWindowDays = 21

	// DefaultColdFetchConcurrency bounds parallel daily-file fetches
	DefaultColdFetchConcurrency = 10

	// DefaultArchiveBatchSize is the hot-row read batch during migration
	DefaultArchiveBatchSize = 10000

	// HoursPerDay is the number of hours in a day
	HoursPerDay = 24 * time.Hour
)

// =============================================================================
// Retry and Backoff Constants
// =============================================================================

const (
	// DefaultMaxRetries is the default number of retry attempts
	DefaultMaxRetries = 3

	// DefaultRetryBackoff is the base backoff duration between retries
	DefaultRetryBackoff = 2 * time.Second

	// MaxRetryBackoff is the maximum backoff duration
	MaxRetryBackoff = 60 * time.Second
)

// =============================================================================
// Queue Type Constants
// =============================================================================

// QueueType represents the type of message queue
type QueueType string

const (
	// QueueTypeNATS represents NATS JetStream queue (default)
	QueueTypeNATS QueueType = "nats"

	// QueueTypeRedis represents Redis Streams queue
	QueueTypeRedis QueueType = "redis"

	// QueueTypeKafka represents Apache Kafka queue
	QueueTypeKafka QueueType = "kafka"

	// QueueTypeMemory represents in-memory queue (for testing)
	QueueTypeMemory QueueType = "memory"
)

// DayFormat is the canonical YYYY-MM-DD day key format
const DayFormat = "2006-01-02"
