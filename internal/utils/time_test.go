package utils

import (
	"testing"
	"time"
)

func TestParseTimestamp(t *testing.T) {
	rfcWant := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC).UnixMilli()

	tests := []struct {
		name   string
		in     interface{}
		want   int64
		wantOK bool
	}{
		{"epoch ms number", float64(1754006400000), 1754006400000, true},
		{"epoch ms string", "1754006400000", 1754006400000, true},
		{"rfc3339", "2026-08-01T00:00:00Z", rfcWant, true},
		{"garbage", "yesterday", 0, false},
		{"nil", nil, 0, false},
		{"bool", true, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseTimestamp(tt.in)
			if ok != tt.wantOK {
				t.Fatalf("ParseTimestamp(%v) ok = %v, want %v", tt.in, ok, tt.wantOK)
			}
			if ok && got != tt.want {
				t.Errorf("ParseTimestamp(%v) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestDayRange(t *testing.T) {
	start := time.Date(2026, 8, 30, 14, 0, 0, 0, time.UTC)
	end := time.Date(2026, 9, 2, 3, 0, 0, 0, time.UTC)

	days := DayRange(start, end)
	if len(days) != 4 {
		t.Fatalf("Expected 4 days, got %d: %v", len(days), days)
	}
	if days[0] != time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC) {
		t.Errorf("Unexpected first day: %v", days[0])
	}
	if days[3] != time.Date(2026, 9, 2, 0, 0, 0, 0, time.UTC) {
		t.Errorf("Unexpected last day: %v", days[3])
	}
}

func TestDayRange_SingleDay(t *testing.T) {
	day := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	days := DayRange(day, day)
	if len(days) != 1 {
		t.Errorf("Expected 1 day, got %d", len(days))
	}
}

func TestToFloat64(t *testing.T) {
	tests := []struct {
		name   string
		in     interface{}
		want   float64
		wantOK bool
	}{
		{"float", 21.5, 21.5, true},
		{"int", 3, 3, true},
		{"numeric string", "23.1", 23.1, true},
		{"bool true", true, 1, true},
		{"text", "unknown", 0, false},
		{"nil", nil, 0, false},
		{"nan string", "NaN", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ToFloat64(tt.in)
			if ok != tt.wantOK {
				t.Fatalf("ToFloat64(%v) ok = %v, want %v", tt.in, ok, tt.wantOK)
			}
			if ok && got != tt.want {
				t.Errorf("ToFloat64(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}
