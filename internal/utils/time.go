package utils

import (
	"strconv"
	"time"
)

// ParseTimestamp converts an upstream time value to epoch milliseconds.
// Accepts epoch milliseconds as a JSON number or numeric string, or an
// RFC3339 string.
func ParseTimestamp(v interface{}) (int64, bool) {
	switch t := v.(type) {
	case float64:
		return int64(t), true
	case int64:
		return t, true
	case int:
		return int64(t), true
	case string:
		if ms, err := strconv.ParseInt(t, 10, 64); err == nil {
			return ms, true
		}
		if parsed, err := time.Parse(time.RFC3339, t); err == nil {
			return parsed.UnixMilli(), true
		}
		return 0, false
	default:
		return 0, false
	}
}

// DayRange lists UTC days from start to end inclusive
func DayRange(start, end time.Time) []time.Time {
	start = start.UTC().Truncate(HoursPerDay)
	end = end.UTC().Truncate(HoursPerDay)

	var days []time.Time
	for d := start; !d.After(end); d = d.Add(HoursPerDay) {
		days = append(days, d)
	}
	return days
}
