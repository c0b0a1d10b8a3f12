package query

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/buildingvitals/vitalstore/internal/cache"
	"github.com/buildingvitals/vitalstore/internal/kv"
	"github.com/buildingvitals/vitalstore/internal/logging"
	"github.com/buildingvitals/vitalstore/internal/models"
)

type fakeHot struct {
	samples []models.Sample
	err     error
	calls   int
}

func (f *fakeHot) Query(_ context.Context, _ string, _ []string, startMs, endMs int64) ([]models.Sample, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	var out []models.Sample
	for _, s := range f.samples {
		if s.Timestamp >= startMs && s.Timestamp <= endMs {
			out = append(out, s)
		}
	}
	return out, nil
}

type fakeCold struct {
	samples []models.Sample
	gaps    []string
	err     error
	calls   int
}

func (f *fakeCold) ReadRange(_ context.Context, _ string, startMs, endMs int64, _ []string) ([]models.Sample, []string, error) {
	f.calls++
	if f.err != nil {
		return nil, nil, f.err
	}
	var out []models.Sample
	for _, s := range f.samples {
		if s.Timestamp >= startMs && s.Timestamp <= endMs {
			out = append(out, s)
		}
	}
	return out, f.gaps, nil
}

type fakeUpstream struct {
	samples []models.Sample
	calls   int
}

func (f *fakeUpstream) FetchRange(_ context.Context, _ string, _, _ time.Time) ([]models.Sample, error) {
	f.calls++
	return f.samples, nil
}

func request(t *testing.T, start, end time.Time, mode string) *models.QueryRequest {
	t.Helper()
	req := models.NewQueryRequest("site-1", []string{"p1"},
		start.Format(time.RFC3339), end.Format(time.RFC3339), "", mode)
	if err := req.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	return req
}

func TestEngine_HotOnly(t *testing.T) {
	now := time.Now().UTC()
	hot := &fakeHot{samples: []models.Sample{
		{SiteID: "site-1", PointName: "p1", Timestamp: now.Add(-2 * time.Hour).UnixMilli(), Value: 1},
	}}
	cold := &fakeCold{}

	engine := NewEngine(hot, cold, nil, nil, Options{HotWindowDays: 21, PreferHot: true}, logging.NewDevelopment())

	resp, err := engine.Query(context.Background(), request(t, now.Add(-3*time.Hour), now, ""))
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}

	if cold.calls != 0 {
		t.Error("Cold tier must not be touched for a hot-only query")
	}
	if resp.Count != 1 {
		t.Errorf("Expected 1 sample, got %d", resp.Count)
	}
	if len(resp.Metadata.Sources) != 1 || resp.Metadata.Sources[0] != models.SourceHot {
		t.Errorf("Expected sources [HOT], got %v", resp.Metadata.Sources)
	}
}

func TestEngine_ColdOnly(t *testing.T) {
	now := time.Now().UTC()
	old := now.Add(-60 * 24 * time.Hour)

	hot := &fakeHot{}
	cold := &fakeCold{samples: []models.Sample{
		{SiteID: "site-1", PointName: "p1", Timestamp: old.Add(time.Hour).UnixMilli(), Value: 2},
	}}

	engine := NewEngine(hot, cold, nil, nil, Options{HotWindowDays: 21, PreferHot: true}, logging.NewDevelopment())

	resp, err := engine.Query(context.Background(), request(t, old, old.Add(24*time.Hour), ""))
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}

	if hot.calls != 0 {
		t.Error("Hot tier must not be touched for a cold-only query")
	}
	if resp.Count != 1 {
		t.Errorf("Expected 1 sample, got %d", resp.Count)
	}
	if len(resp.Metadata.Sources) != 1 || resp.Metadata.Sources[0] != models.SourceCold {
		t.Errorf("Expected sources [COLD], got %v", resp.Metadata.Sources)
	}
}

func TestEngine_SplitMergesBothTiers(t *testing.T) {
	now := time.Now().UTC()
	dupTs := now.Add(-22 * 24 * time.Hour).UnixMilli()

	hot := &fakeHot{samples: []models.Sample{
		{SiteID: "site-1", PointName: "p1", Timestamp: now.Add(-time.Hour).UnixMilli(), Value: 1},
	}}
	cold := &fakeCold{
		samples: []models.Sample{
			{SiteID: "site-1", PointName: "p1", Timestamp: dupTs, Value: 2},
		},
		gaps: []string{"2026-07-20"},
	}

	engine := NewEngine(hot, cold, nil, nil, Options{HotWindowDays: 21, PreferHot: true}, logging.NewDevelopment())

	resp, err := engine.Query(context.Background(), request(t, now.Add(-40*24*time.Hour), now, ""))
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}

	if hot.calls != 1 || cold.calls != 1 {
		t.Errorf("Expected both tiers queried, hot=%d cold=%d", hot.calls, cold.calls)
	}
	if resp.Count != 2 {
		t.Errorf("Expected 2 merged samples, got %d", resp.Count)
	}
	if len(resp.Metadata.Sources) != 2 {
		t.Errorf("Expected sources [HOT COLD], got %v", resp.Metadata.Sources)
	}
	if len(resp.Metadata.GapDays) != 1 || resp.Metadata.GapDays[0] != "2026-07-20" {
		t.Errorf("Gap days not propagated: %v", resp.Metadata.GapDays)
	}
}

func TestEngine_SplitDegradesWhenColdFails(t *testing.T) {
	now := time.Now().UTC()

	hot := &fakeHot{samples: []models.Sample{
		{SiteID: "site-1", PointName: "p1", Timestamp: now.Add(-time.Hour).UnixMilli(), Value: 1},
	}}
	cold := &fakeCold{err: errors.New("object store down")}

	engine := NewEngine(hot, cold, nil, nil, Options{HotWindowDays: 21, PreferHot: true}, logging.NewDevelopment())

	resp, err := engine.Query(context.Background(), request(t, now.Add(-40*24*time.Hour), now, ""))
	if err != nil {
		t.Fatalf("Split query should degrade, not fail: %v", err)
	}

	if !resp.Metadata.Degraded {
		t.Error("Expected degraded flag")
	}
	if resp.Count != 1 {
		t.Errorf("Expected hot-side samples only, got %d", resp.Count)
	}
	for _, src := range resp.Metadata.Sources {
		if src == models.SourceCold {
			t.Error("COLD must not be reported as a source when it failed")
		}
	}
}

func TestEngine_EmptyPointListIsEmptyResult(t *testing.T) {
	now := time.Now().UTC()

	hot := &fakeHot{samples: []models.Sample{
		{SiteID: "site-1", PointName: "p1", Timestamp: now.Add(-time.Hour).UnixMilli(), Value: 1},
	}}
	cold := &fakeCold{}

	engine := NewEngine(hot, cold, nil, nil, Options{HotWindowDays: 21, PreferHot: true}, logging.NewDevelopment())

	req := models.NewQueryRequest("site-1", nil,
		now.Add(-2*time.Hour).Format(time.RFC3339), now.Format(time.RFC3339), "", "")
	if err := req.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}

	resp, err := engine.Query(context.Background(), req)
	if err != nil {
		t.Fatalf("Empty point list must not error: %v", err)
	}
	if resp.Count != 0 || len(resp.Samples) != 0 {
		t.Errorf("Expected empty result, got %d samples", resp.Count)
	}
	if hot.calls != 0 || cold.calls != 0 {
		t.Error("No tier should be touched for an empty point list")
	}
}

func TestEngine_BoundaryDayServedFromHot(t *testing.T) {
	now := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	boundary := now.Add(-21 * 24 * time.Hour)

	// Two hours before the boundary instant, inside the boundary day: not
	// yet archived, so it only exists in the hot tier
	hot := &fakeHot{samples: []models.Sample{
		{SiteID: "site-1", PointName: "p1", Timestamp: boundary.Add(-2 * time.Hour).UnixMilli(), Value: 3},
	}}
	cold := &fakeCold{}

	engine := NewEngine(hot, cold, nil, nil, Options{HotWindowDays: 21, PreferHot: true}, logging.NewDevelopment())
	engine.now = func() time.Time { return now }

	resp, err := engine.Query(context.Background(), request(t, now.Add(-30*24*time.Hour), now, ""))
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}

	if resp.Count != 1 {
		t.Errorf("Boundary-day sample missing from split result, got %d samples", resp.Count)
	}
}

func TestEngine_HotFailureFallsBackToCold(t *testing.T) {
	now := time.Now().UTC()

	hot := &fakeHot{err: errors.New("hot store unreachable")}
	cold := &fakeCold{samples: []models.Sample{
		{SiteID: "site-1", PointName: "p1", Timestamp: now.Add(-time.Hour).UnixMilli(), Value: 4},
	}}

	engine := NewEngine(hot, cold, nil, nil, Options{HotWindowDays: 21, PreferHot: true}, logging.NewDevelopment())

	resp, err := engine.Query(context.Background(), request(t, now.Add(-2*time.Hour), now, ""))
	if err != nil {
		t.Fatalf("Hot failure should fall back to cold, not error: %v", err)
	}

	if !resp.Metadata.Degraded {
		t.Error("Expected degraded flag")
	}
	if resp.Count != 1 {
		t.Errorf("Expected the cold tier's sample, got %d", resp.Count)
	}
	if len(resp.Metadata.Sources) != 1 || resp.Metadata.Sources[0] != models.SourceCold {
		t.Errorf("Expected sources [COLD], got %v", resp.Metadata.Sources)
	}
	if cold.calls != 1 {
		t.Errorf("Expected one cold fallback read, got %d", cold.calls)
	}
}

func TestEngine_HotFallbackNotCached(t *testing.T) {
	now := time.Now().UTC()
	store := kv.NewMemoryStore()
	defer store.Close()
	qc := cache.NewQueryCache(store, cache.DefaultTTLPolicy(), logging.NewDevelopment())

	hot := &fakeHot{err: errors.New("hot store unreachable")}
	engine := NewEngine(hot, &fakeCold{}, qc, nil, Options{HotWindowDays: 21, PreferHot: true}, logging.NewDevelopment())

	req := request(t, now.Add(-2*time.Hour), now, "")

	engine.Query(context.Background(), req)
	hot.err = nil
	hot.calls = 0

	resp, err := engine.Query(context.Background(), req)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if resp.Metadata.CacheHit {
		t.Error("Degraded fallback response must not have been cached")
	}
	if hot.calls != 1 {
		t.Error("Hot tier should be retried once it recovers")
	}
}

func TestEngine_BothTiersFailed(t *testing.T) {
	now := time.Now().UTC()

	engine := NewEngine(
		&fakeHot{err: errors.New("hot down")},
		&fakeCold{err: errors.New("cold down")},
		nil, nil, Options{HotWindowDays: 21, PreferHot: true}, logging.NewDevelopment())

	// Split range exercises the parallel path, recent range the fallback path
	if _, err := engine.Query(context.Background(), request(t, now.Add(-40*24*time.Hour), now, "")); err == nil {
		t.Error("Split query must fail when both tiers fail")
	}
	if _, err := engine.Query(context.Background(), request(t, now.Add(-2*time.Hour), now, "")); err == nil {
		t.Error("Hot-only query must fail when the cold fallback also fails")
	}
}

func TestEngine_ColdOnlyFailurePropagates(t *testing.T) {
	now := time.Now().UTC()
	old := now.Add(-60 * 24 * time.Hour)

	engine := NewEngine(&fakeHot{}, &fakeCold{err: errors.New("down")}, nil, nil,
		Options{HotWindowDays: 21, PreferHot: true}, logging.NewDevelopment())

	if _, err := engine.Query(context.Background(), request(t, old, old.Add(time.Hour), "")); err == nil {
		t.Error("Cold-only query must fail when the cold tier fails")
	}
}

func TestEngine_CacheTransparency(t *testing.T) {
	now := time.Now().UTC()
	store := kv.NewMemoryStore()
	defer store.Close()
	qc := cache.NewQueryCache(store, cache.DefaultTTLPolicy(), logging.NewDevelopment())

	hot := &fakeHot{samples: []models.Sample{
		{SiteID: "site-1", PointName: "p1", Timestamp: now.Add(-2 * time.Hour).UnixMilli(), Value: 1},
	}}

	engine := NewEngine(hot, &fakeCold{}, qc, nil, Options{HotWindowDays: 21, PreferHot: true}, logging.NewDevelopment())

	req := request(t, now.Add(-3*time.Hour), now, "")

	first, err := engine.Query(context.Background(), req)
	if err != nil {
		t.Fatalf("First query failed: %v", err)
	}
	if first.Metadata.CacheHit {
		t.Error("First query must be a miss")
	}

	second, err := engine.Query(context.Background(), req)
	if err != nil {
		t.Fatalf("Second query failed: %v", err)
	}
	if !second.Metadata.CacheHit {
		t.Error("Second query must be a hit")
	}
	if hot.calls != 1 {
		t.Errorf("Hot tier must be queried once, got %d", hot.calls)
	}

	// Identical payload either way
	if second.Count != first.Count || second.Samples[0] != first.Samples[0] {
		t.Error("Cached response differs from computed response")
	}
}

func TestEngine_DegradedNotCached(t *testing.T) {
	now := time.Now().UTC()
	store := kv.NewMemoryStore()
	defer store.Close()
	qc := cache.NewQueryCache(store, cache.DefaultTTLPolicy(), logging.NewDevelopment())

	cold := &fakeCold{err: errors.New("down")}
	engine := NewEngine(&fakeHot{}, cold, qc, nil, Options{HotWindowDays: 21, PreferHot: true}, logging.NewDevelopment())

	req := request(t, now.Add(-40*24*time.Hour), now, "")

	engine.Query(context.Background(), req)
	cold.err = nil
	cold.calls = 0

	resp, err := engine.Query(context.Background(), req)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if resp.Metadata.CacheHit {
		t.Error("Degraded response must not have been cached")
	}
	if cold.calls != 1 {
		t.Error("Cold tier should be retried once it recovers")
	}
}

func TestEngine_LegacyBypassesTiers(t *testing.T) {
	now := time.Now().UTC()

	hot := &fakeHot{}
	cold := &fakeCold{}
	api := &fakeUpstream{samples: []models.Sample{
		{SiteID: "site-1", PointName: "p1", Timestamp: now.Add(-time.Hour).UnixMilli(), Value: 7},
	}}

	engine := NewEngine(hot, cold, nil, api, Options{HotWindowDays: 21, PreferHot: true}, logging.NewDevelopment())

	resp, err := engine.Query(context.Background(), request(t, now.Add(-2*time.Hour), now, models.QueryModeLegacy))
	if err != nil {
		t.Fatalf("Legacy query failed: %v", err)
	}

	if hot.calls != 0 || cold.calls != 0 {
		t.Error("Legacy mode must bypass both tiers")
	}
	if api.calls != 1 {
		t.Errorf("Expected 1 upstream call, got %d", api.calls)
	}
	if len(resp.Metadata.Sources) != 1 || resp.Metadata.Sources[0] != models.SourceUpstream {
		t.Errorf("Expected sources [UPSTREAM], got %v", resp.Metadata.Sources)
	}
}
