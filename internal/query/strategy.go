// Package query routes timeseries reads across the hot and cold tiers,
// merging results into a single deduplicated response with provenance.
package query

import (
	"time"

	"github.com/buildingvitals/vitalstore/internal/utils"
)

// Strategy says which tier(s) a query touches
type Strategy string

const (
	StrategyHotOnly  Strategy = "hot_only"
	StrategyColdOnly Strategy = "cold_only"
	StrategySplit    Strategy = "split"
	StrategyLegacy   Strategy = "legacy"
)

// Plan is the routing decision for one query
type Plan struct {
	Strategy Strategy

	// Boundary is the hot/cold cutover instant: now - hotWindowDays
	Boundary time.Time

	// Cutover is Boundary floored to the start of its UTC day, the actual
	// routing point
	Cutover time.Time

	// Hot sub-range, valid when Strategy is hot_only or split
	HotStartMs int64
	HotEndMs   int64

	// Cold sub-range, valid when Strategy is cold_only or split
	ColdStartMs int64
	ColdEndMs   int64
}

// Classify decides the strategy for [start, end] given the moving boundary.
// The boundary is evaluated per query: yesterday's split query can be
// hot-only today.
//
// Archival migrates whole UTC days, so routing happens at day granularity:
// the hot side starts at the start of the boundary day. Hours of that day
// older than the boundary instant are not yet archived and must still be
// read from the hot tier.
func Classify(start, end time.Time, now time.Time, hotWindowDays int) Plan {
	if hotWindowDays <= 0 {
		hotWindowDays = utils.DefaultHotWindowDays
	}

	boundary := now.UTC().Add(-time.Duration(hotWindowDays) * utils.HoursPerDay)
	cutover := boundary.Truncate(utils.HoursPerDay)
	plan := Plan{Boundary: boundary, Cutover: cutover}

	startMs := start.UnixMilli()
	endMs := end.UnixMilli()
	cutoverMs := cutover.UnixMilli()

	switch {
	case startMs >= cutoverMs:
		plan.Strategy = StrategyHotOnly
		plan.HotStartMs = startMs
		plan.HotEndMs = endMs

	case endMs < cutoverMs:
		plan.Strategy = StrategyColdOnly
		plan.ColdStartMs = startMs
		plan.ColdEndMs = endMs

	default:
		// Straddles the cutover: cold side ends just before it, hot side
		// starts at it, so the sub-ranges never overlap
		plan.Strategy = StrategySplit
		plan.ColdStartMs = startMs
		plan.ColdEndMs = cutoverMs - 1
		plan.HotStartMs = cutoverMs
		plan.HotEndMs = endMs
	}

	return plan
}
