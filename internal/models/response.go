package models

// Data sources reported in query provenance
const (
	SourceHot      = "HOT"
	SourceCold     = "COLD"
	SourceCache    = "CACHE"
	SourceUpstream = "UPSTREAM"
)

// HealthResponse represents health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// SampleView is a single sample in query results
type SampleView struct {
	PointName string  `json:"point_name"`
	Timestamp int64   `json:"timestamp"`
	Value     float64 `json:"value"`
}

// QueryMetadata describes which tier(s) served a query
type QueryMetadata struct {
	Sources            []string       `json:"sources"`
	SourceSampleCounts map[string]int `json:"source_sample_counts"`
	CacheHit           bool           `json:"cache_hit"`
	Degraded           bool           `json:"degraded,omitempty"`
	GapDays            []string       `json:"gap_days,omitempty"` // Cold-side days with no archive file
	QueryTimeMs        int64          `json:"query_time_ms"`
}

// QueryResponse represents a timeseries query response
type QueryResponse struct {
	SiteID   string        `json:"site_id"`
	Samples  []SampleView  `json:"samples"`
	Count    int           `json:"count"`
	Metadata QueryMetadata `json:"metadata"`
}

// BackfillStartResponse is returned by POST /backfill/start
type BackfillStartResponse struct {
	BackfillID    string `json:"backfill_id"`
	EstimatedDays int    `json:"estimated_days"`
	Resumed       bool   `json:"resumed"`
}

// BackfillStatusResponse is returned by GET /backfill/status
type BackfillStatusResponse struct {
	BackfillID          string  `json:"backfill_id"`
	Status              string  `json:"status"`
	CurrentDate         string  `json:"current_date"`
	DaysCompleted       int     `json:"days_completed"`
	DaysTotal           int     `json:"days_total"`
	ProgressPercent     float64 `json:"progress_percent"`
	RecordsProcessed    int64   `json:"records_processed"`
	EstimatedCompletion string  `json:"estimated_completion,omitempty"`
}

// BackfillCancelResponse is returned by POST /backfill/cancel
type BackfillCancelResponse struct {
	Status        string `json:"status"`
	DaysCompleted int    `json:"days_completed"`
}

// ArchiveRunResponse summarizes one archival pipeline invocation
type ArchiveRunResponse struct {
	DaysExamined int      `json:"days_examined"`
	DaysArchived int      `json:"days_archived"`
	DaysSkipped  int      `json:"days_skipped"`
	DaysFailed   int      `json:"days_failed"`
	RowsMigrated int64    `json:"rows_migrated"`
	FailedDays   []string `json:"failed_days,omitempty"`
}

// HotStoreStatsResponse reports hot tier occupancy
type HotStoreStatsResponse struct {
	SampleCount  int64  `json:"sample_count"`
	PointCount   int    `json:"point_count"`
	OldestSample string `json:"oldest_sample,omitempty"`
	NewestSample string `json:"newest_sample,omitempty"`
	SizeBytes    int64  `json:"size_bytes"`
}

// CoverageDay reports per-day sample coverage across tiers
type CoverageDay struct {
	Day         string `json:"day"`
	HotSamples  int64  `json:"hot_samples"`
	ColdSamples int64  `json:"cold_samples"`
	Archived    bool   `json:"archived"`
	Gap         bool   `json:"gap"`
}

// CoverageResponse is returned by GET /admin/coverage
type CoverageResponse struct {
	SiteID string        `json:"site_id"`
	Days   []CoverageDay `json:"days"`
}

// ErrorResponse represents error response
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail represents error details
type ErrorDetail struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Path    string                 `json:"path,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
}
