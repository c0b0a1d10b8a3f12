package archival

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/buildingvitals/vitalstore/internal/archive"
	"github.com/buildingvitals/vitalstore/internal/hotstore"
	"github.com/buildingvitals/vitalstore/internal/kv"
	"github.com/buildingvitals/vitalstore/internal/logging"
	"github.com/buildingvitals/vitalstore/internal/models"
)

var testNow = time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)

// flakyStore wraps an ObjectStore to inject faults
type flakyStore struct {
	archive.ObjectStore
	failPut     bool
	corruptGets bool
}

func (f *flakyStore) Put(ctx context.Context, key string, data []byte) error {
	if f.failPut {
		return errors.New("injected upload failure")
	}
	return f.ObjectStore.Put(ctx, key, data)
}

func (f *flakyStore) Get(ctx context.Context, key string) ([]byte, error) {
	if f.corruptGets {
		return []byte("corrupt"), nil
	}
	return f.ObjectStore.Get(ctx, key)
}

type testEnv struct {
	hot   *hotstore.Store
	store *flakyStore
	jobs  *kv.MemoryStore
	pipe  *Pipeline
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	hot, err := hotstore.Open(hotstore.Config{InMemory: true})
	if err != nil {
		t.Fatalf("Failed to open hot store: %v", err)
	}
	t.Cleanup(func() { hot.Close() })

	fsStore, err := archive.NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create object store: %v", err)
	}
	store := &flakyStore{ObjectStore: fsStore}

	jobs := kv.NewMemoryStore()
	t.Cleanup(func() { jobs.Close() })

	pipe := NewPipeline(hot, store, jobs, nil, Config{
		HotWindowDays: 21,
		BatchSize:     1000,
	}, logging.NewDevelopment())
	pipe.now = func() time.Time { return testNow }

	return &testEnv{hot: hot, store: store, jobs: jobs, pipe: pipe}
}

// seedDay writes n samples into the hot store on the given day
func (e *testEnv) seedDay(t *testing.T, siteID string, day time.Time, n int) {
	t.Helper()
	var samples []models.Sample
	for i := 0; i < n; i++ {
		samples = append(samples, models.Sample{
			SiteID:    siteID,
			PointName: "p1",
			Timestamp: day.Add(time.Duration(i) * time.Minute).UnixMilli(),
			Value:     float64(i),
		})
	}
	if err := e.hot.Write(context.Background(), samples); err != nil {
		t.Fatalf("Failed to seed hot store: %v", err)
	}
}

func TestPipeline_ArchivesOldDay(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	oldDay := testNow.Truncate(24 * time.Hour).Add(-30 * 24 * time.Hour)
	env.seedDay(t, "site-1", oldDay, 10)

	result, err := env.pipe.RunSite(ctx, "site-1")
	if err != nil {
		t.Fatalf("RunSite failed: %v", err)
	}

	if result.DaysArchived != 1 || result.RowsMigrated != 10 {
		t.Errorf("Unexpected result: %+v", result)
	}

	// Hot rows are gone
	count, _ := env.hot.CountDay(ctx, "site-1", oldDay)
	if count != 0 {
		t.Errorf("Hot rows should be deleted after archive, got %d", count)
	}

	// Archive file holds them all
	data, err := env.store.Get(ctx, archive.DayKey("site-1", oldDay))
	if err != nil {
		t.Fatalf("Archive file missing: %v", err)
	}
	decoded, err := archive.DecodeSegment("site-1", data)
	if err != nil {
		t.Fatalf("Archive file corrupt: %v", err)
	}
	if len(decoded) != 10 {
		t.Errorf("Expected 10 archived rows, got %d", len(decoded))
	}

	// Marker is completed
	state, err := env.pipe.DayState(ctx, "site-1", oldDay)
	if err != nil || state == nil {
		t.Fatalf("Missing day state: %v", err)
	}
	if state.Status != models.ArchiveDayCompleted || state.RowCount != 10 {
		t.Errorf("Unexpected state: %+v", state)
	}
}

func TestPipeline_RecentDaysUntouched(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	recentDay := testNow.Truncate(24 * time.Hour).Add(-5 * 24 * time.Hour)
	env.seedDay(t, "site-1", recentDay, 5)

	result, err := env.pipe.RunSite(ctx, "site-1")
	if err != nil {
		t.Fatalf("RunSite failed: %v", err)
	}
	if result.DaysArchived != 0 {
		t.Errorf("Recent day must not be archived: %+v", result)
	}

	count, _ := env.hot.CountDay(ctx, "site-1", recentDay)
	if count != 5 {
		t.Errorf("Recent hot rows must survive, got %d", count)
	}
}

func TestPipeline_NoDataLossOnUploadFailure(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	oldDay := testNow.Truncate(24 * time.Hour).Add(-30 * 24 * time.Hour)
	env.seedDay(t, "site-1", oldDay, 10)

	env.store.failPut = true
	result, err := env.pipe.RunSite(ctx, "site-1")
	if err != nil {
		t.Fatalf("RunSite should continue past day failures: %v", err)
	}
	if result.DaysFailed != 1 {
		t.Errorf("Expected 1 failed day, got %+v", result)
	}

	// The failed day keeps every hot row
	count, _ := env.hot.CountDay(ctx, "site-1", oldDay)
	if count != 10 {
		t.Errorf("Hot rows must survive a failed upload, got %d", count)
	}

	// Next run succeeds and finishes the job
	env.store.failPut = false
	result, err = env.pipe.RunSite(ctx, "site-1")
	if err != nil {
		t.Fatalf("Retry run failed: %v", err)
	}
	if result.DaysArchived != 1 || result.RowsMigrated != 10 {
		t.Errorf("Retry should archive the day: %+v", result)
	}

	count, _ = env.hot.CountDay(ctx, "site-1", oldDay)
	if count != 0 {
		t.Errorf("Hot rows should be deleted after successful retry, got %d", count)
	}
}

func TestPipeline_NoDeleteOnVerifyFailure(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	oldDay := testNow.Truncate(24 * time.Hour).Add(-30 * 24 * time.Hour)
	env.seedDay(t, "site-1", oldDay, 10)

	env.store.corruptGets = true
	result, err := env.pipe.RunSite(ctx, "site-1")
	if err != nil {
		t.Fatalf("RunSite failed: %v", err)
	}
	if result.DaysFailed != 1 {
		t.Errorf("Verification failure must fail the day: %+v", result)
	}

	count, _ := env.hot.CountDay(ctx, "site-1", oldDay)
	if count != 10 {
		t.Errorf("Hot rows must survive a failed verification, got %d", count)
	}
}

func TestPipeline_CompletedDaysSkipped(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	oldDay := testNow.Truncate(24 * time.Hour).Add(-30 * 24 * time.Hour)
	env.seedDay(t, "site-1", oldDay, 10)

	if _, err := env.pipe.RunSite(ctx, "site-1"); err != nil {
		t.Fatalf("First run failed: %v", err)
	}

	// Re-seed the same day to prove completed markers win over data presence
	env.seedDay(t, "site-1", oldDay, 3)

	result, err := env.pipe.RunSite(ctx, "site-1")
	if err != nil {
		t.Fatalf("Second run failed: %v", err)
	}
	if result.DaysArchived != 0 {
		t.Errorf("Completed day must not be re-archived: %+v", result)
	}
	if result.DaysSkipped == 0 {
		t.Errorf("Expected skips, got %+v", result)
	}
}

func TestPipeline_MaxDaysPerRun(t *testing.T) {
	env := newTestEnv(t)
	env.pipe.cfg.MaxDaysPerRun = 2
	ctx := context.Background()

	base := testNow.Truncate(24 * time.Hour).Add(-40 * 24 * time.Hour)
	for i := 0; i < 4; i++ {
		env.seedDay(t, "site-1", base.Add(time.Duration(i)*24*time.Hour), 2)
	}

	result, err := env.pipe.RunSite(ctx, "site-1")
	if err != nil {
		t.Fatalf("RunSite failed: %v", err)
	}
	if result.DaysExamined != 2 {
		t.Errorf("Expected run capped at 2 days, examined %d", result.DaysExamined)
	}
}

func TestPipeline_EmptyDayMarkedWithoutFile(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// Two old days with a hole between them
	day1 := testNow.Truncate(24 * time.Hour).Add(-32 * 24 * time.Hour)
	day3 := day1.Add(2 * 24 * time.Hour)
	env.seedDay(t, "site-1", day1, 2)
	env.seedDay(t, "site-1", day3, 2)

	if _, err := env.pipe.RunSite(ctx, "site-1"); err != nil {
		t.Fatalf("RunSite failed: %v", err)
	}

	emptyDay := day1.Add(24 * time.Hour)
	state, err := env.pipe.DayState(ctx, "site-1", emptyDay)
	if err != nil || state == nil {
		t.Fatalf("Empty day should carry a completed marker: %v", err)
	}
	if state.Status != models.ArchiveDayCompleted || state.RowCount != 0 {
		t.Errorf("Unexpected empty-day state: %+v", state)
	}

	if _, err := env.store.Stat(ctx, archive.DayKey("site-1", emptyDay)); err != archive.ErrObjectNotFound {
		t.Error("Empty day must not produce an archive file")
	}
}
