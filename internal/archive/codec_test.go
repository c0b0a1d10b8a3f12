package archive

import (
	"testing"
	"time"

	"github.com/buildingvitals/vitalstore/internal/models"
)

func daySamples() []models.Sample {
	base := time.Date(2026, 7, 14, 0, 0, 0, 0, time.UTC).UnixMilli()
	return []models.Sample{
		// Deliberately out of order to exercise sorting
		{SiteID: "site-1", PointName: "ahu1/sat", Timestamp: base + 600_000, Value: 21.7},
		{SiteID: "site-1", PointName: "ahu1/sat", Timestamp: base, Value: 21.5},
		{SiteID: "site-1", PointName: "ahu1/rat", Timestamp: base, Value: 23.1},
		{SiteID: "site-1", PointName: "ahu1/rat", Timestamp: base + 300_000, Value: 23.4},
		{SiteID: "site-1", PointName: "ahu1/fan_status", Timestamp: base + 60_000, Value: 1},
	}
}

func TestSegmentRoundTrip(t *testing.T) {
	original := daySamples()

	data, err := EncodeSegment(original)
	if err != nil {
		t.Fatalf("EncodeSegment failed: %v", err)
	}

	decoded, err := DecodeSegment("site-1", data)
	if err != nil {
		t.Fatalf("DecodeSegment failed: %v", err)
	}

	if len(decoded) != len(original) {
		t.Fatalf("Expected %d samples, got %d", len(original), len(decoded))
	}

	// Decoded samples are sorted ascending by timestamp
	for i := 1; i < len(decoded); i++ {
		if decoded[i].Timestamp < decoded[i-1].Timestamp {
			t.Errorf("Samples out of order at %d: %d < %d", i, decoded[i].Timestamp, decoded[i-1].Timestamp)
		}
	}

	// Every original sample survives with its value intact
	want := make(map[models.SampleKey]float64)
	for _, s := range original {
		want[s.Key()] = s.Value
	}
	for _, s := range decoded {
		v, ok := want[s.Key()]
		if !ok {
			t.Errorf("Unexpected sample %s@%d", s.PointName, s.Timestamp)
			continue
		}
		if v != s.Value {
			t.Errorf("Value mismatch for %s@%d: want %v, got %v", s.PointName, s.Timestamp, v, s.Value)
		}
		if s.SiteID != "site-1" {
			t.Errorf("SiteID not restored: %q", s.SiteID)
		}
	}
}

func TestSegmentRowCount(t *testing.T) {
	data, err := EncodeSegment(daySamples())
	if err != nil {
		t.Fatalf("EncodeSegment failed: %v", err)
	}

	rows, err := SegmentRowCount(data)
	if err != nil {
		t.Fatalf("SegmentRowCount failed: %v", err)
	}
	if rows != 5 {
		t.Errorf("Expected 5 rows, got %d", rows)
	}
}

func TestEncodeSegment_Empty(t *testing.T) {
	data, err := EncodeSegment(nil)
	if err != nil {
		t.Fatalf("EncodeSegment failed: %v", err)
	}

	rows, err := SegmentRowCount(data)
	if err != nil {
		t.Fatalf("SegmentRowCount failed: %v", err)
	}
	if rows != 0 {
		t.Errorf("Expected 0 rows, got %d", rows)
	}

	decoded, err := DecodeSegment("site-1", data)
	if err != nil {
		t.Fatalf("DecodeSegment failed: %v", err)
	}
	if len(decoded) != 0 {
		t.Errorf("Expected no samples, got %d", len(decoded))
	}
}

func TestDecodeSegment_Corrupt(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"too short", []byte{'V', 'S'}},
		{"bad magic", []byte{'X', 'X', 'X', 'X', 0, 0, 0, 0}},
		{"garbage body", append([]byte{'V', 'S', 'G', '1', 1, 0, 0, 0}, []byte("not snappy")...)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodeSegment("site-1", tt.data); err == nil {
				t.Error("Expected decode error")
			}
		})
	}
}

func TestDecodeSegment_TruncatedBody(t *testing.T) {
	data, err := EncodeSegment(daySamples())
	if err != nil {
		t.Fatalf("EncodeSegment failed: %v", err)
	}

	// Chopping compressed bytes must fail cleanly, not panic
	if _, err := DecodeSegment("site-1", data[:len(data)-3]); err == nil {
		t.Error("Expected decode error on truncated segment")
	}
}

func TestDayKey(t *testing.T) {
	day := time.Date(2026, 3, 7, 0, 0, 0, 0, time.UTC)
	got := DayKey("site-1", day)
	want := "timeseries/site-1/2026/03/07.vseg"
	if got != want {
		t.Errorf("DayKey = %q, want %q", got, want)
	}
}
