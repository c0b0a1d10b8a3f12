package models

import (
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Query modes
const (
	QueryModeTiered = "tiered" // Route between hot and cold tiers (default)
	QueryModeLegacy = "legacy" // Bypass storage, query the upstream provider directly
)

// QueryRequest represents the parsed timeseries query input
type QueryRequest struct {
	SiteID      string
	PointNames  []string
	StartTime   string
	EndTime     string
	Aggregation string // none (default), avg, min, max, sum, count
	Mode        string // tiered (default), legacy

	StartTimeParsed time.Time
	EndTimeParsed   time.Time
}

// NewQueryRequest creates a new QueryRequest with defaults applied
func NewQueryRequest(siteID string, pointNames []string, startTime, endTime, aggregation, mode string) *QueryRequest {
	if aggregation == "" {
		aggregation = "none"
	}

	if mode == "" {
		mode = QueryModeTiered
	}

	return &QueryRequest{
		SiteID:      siteID,
		PointNames:  pointNames,
		StartTime:   startTime,
		EndTime:     endTime,
		Aggregation: aggregation,
		Mode:        mode,
	}
}

// Validate validates the query input and parses times into the *Parsed fields
func (q *QueryRequest) Validate() error {
	if strings.TrimSpace(q.SiteID) == "" {
		return &fiber.Error{
			Code:    fiber.StatusBadRequest,
			Message: "site_name is required",
		}
	}

	if q.StartTime == "" || q.EndTime == "" {
		return &fiber.Error{
			Code:    fiber.StatusBadRequest,
			Message: "start_time and end_time are required",
		}
	}

	startTime, err := parseQueryTime(q.StartTime)
	if err != nil {
		return &fiber.Error{
			Code:    fiber.StatusBadRequest,
			Message: "start_time must be RFC3339 (e.g., 2006-01-02T15:04:05Z) or epoch milliseconds",
		}
	}

	endTime, err := parseQueryTime(q.EndTime)
	if err != nil {
		return &fiber.Error{
			Code:    fiber.StatusBadRequest,
			Message: "end_time must be RFC3339 (e.g., 2006-01-02T15:04:05Z) or epoch milliseconds",
		}
	}

	if endTime.Before(startTime) {
		return &fiber.Error{
			Code:    fiber.StatusBadRequest,
			Message: "end_time must be after start_time",
		}
	}

	validAggregations := map[string]bool{
		"none": true, "avg": true, "min": true, "max": true, "sum": true, "count": true,
	}
	if !validAggregations[q.Aggregation] {
		return &fiber.Error{
			Code:    fiber.StatusBadRequest,
			Message: "aggregation must be one of: none, avg, min, max, sum, count",
		}
	}

	if q.Mode != QueryModeTiered && q.Mode != QueryModeLegacy {
		return &fiber.Error{
			Code:    fiber.StatusBadRequest,
			Message: "mode must be 'tiered' or 'legacy'",
		}
	}

	q.StartTimeParsed = startTime.UTC()
	q.EndTimeParsed = endTime.UTC()

	return nil
}

// parseQueryTime accepts RFC3339 or epoch milliseconds
func parseQueryTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}

	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(ms), nil
}
