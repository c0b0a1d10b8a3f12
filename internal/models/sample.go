package models

import (
	"sort"
	"time"
)

// Sample is the atomic unit of sensor data: one reading for one point.
// Uniquely identified by (SiteID, PointName, Timestamp); duplicate writes
// for the same key are last-write-wins upserts, never duplicated rows.
type Sample struct {
	SiteID    string  `json:"site_id"`
	PointName string  `json:"point_name"`
	Timestamp int64   `json:"timestamp"` // Milliseconds since epoch, UTC
	Value     float64 `json:"value"`
}

// Time returns the sample timestamp as a UTC time.Time
func (s Sample) Time() time.Time {
	return time.UnixMilli(s.Timestamp).UTC()
}

// Day returns the UTC calendar day the sample belongs to
func (s Sample) Day() time.Time {
	t := s.Time()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// SampleKey identifies a sample within a site
type SampleKey struct {
	PointName string
	Timestamp int64
}

// Key returns the dedupe key for this sample
func (s Sample) Key() SampleKey {
	return SampleKey{PointName: s.PointName, Timestamp: s.Timestamp}
}

// SortSamplesAscending orders samples by timestamp, then point name for a
// stable order at equal timestamps.
func SortSamplesAscending(samples []Sample) {
	sort.Slice(samples, func(i, j int) bool {
		if samples[i].Timestamp != samples[j].Timestamp {
			return samples[i].Timestamp < samples[j].Timestamp
		}
		return samples[i].PointName < samples[j].PointName
	})
}
