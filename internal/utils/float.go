package utils

import (
	"math"
	"strconv"
)

// ToFloat64 converts values as they arrive from upstream JSON payloads to
// float64. Returns the converted value and true, or 0 and false if the value
// is missing, non-numeric, or NaN/Inf.
func ToFloat64(v interface{}) (float64, bool) {
	if v == nil {
		return 0, false
	}

	var f float64
	switch val := v.(type) {
	case float64:
		f = val
	case float32:
		f = float64(val)
	case int:
		f = float64(val)
	case int32:
		f = float64(val)
	case int64:
		f = float64(val)
	case uint:
		f = float64(val)
	case uint64:
		f = float64(val)
	case bool:
		if val {
			f = 1
		}
	case string:
		parsed, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// IsNumeric checks if a value can be converted to a finite float64
func IsNumeric(v interface{}) bool {
	_, ok := ToFloat64(v)
	return ok
}
