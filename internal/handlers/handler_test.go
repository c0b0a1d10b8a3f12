package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/buildingvitals/vitalstore/internal/archival"
	"github.com/buildingvitals/vitalstore/internal/archive"
	"github.com/buildingvitals/vitalstore/internal/backfill"
	"github.com/buildingvitals/vitalstore/internal/hotstore"
	"github.com/buildingvitals/vitalstore/internal/kv"
	"github.com/buildingvitals/vitalstore/internal/logging"
	"github.com/buildingvitals/vitalstore/internal/models"
	"github.com/buildingvitals/vitalstore/internal/query"
	"github.com/buildingvitals/vitalstore/internal/services"
	"github.com/gofiber/fiber/v2"
)

type testApp struct {
	app *fiber.App
	hot *hotstore.Store
}

type hourlyAPI struct{}

func (hourlyAPI) FetchRange(_ context.Context, siteID string, start, end time.Time) ([]models.Sample, error) {
	var samples []models.Sample
	for ts := start; ts.Before(end); ts = ts.Add(time.Hour) {
		samples = append(samples, models.Sample{
			SiteID:    siteID,
			PointName: "p1",
			Timestamp: ts.UnixMilli(),
			Value:     1.0,
		})
	}
	return samples, nil
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	logger := logging.NewDevelopment()

	hot, err := hotstore.Open(hotstore.Config{InMemory: true})
	if err != nil {
		t.Fatalf("Failed to open hot store: %v", err)
	}
	t.Cleanup(func() { hot.Close() })

	store, err := archive.NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create object store: %v", err)
	}

	jobs := kv.NewMemoryStore()
	t.Cleanup(func() { jobs.Close() })

	reader := archive.NewReader(store, 4, logger)
	engine := query.NewEngine(hot, reader, nil, nil, query.Options{HotWindowDays: 21, PreferHot: true}, logger)
	pipeline := archival.NewPipeline(hot, store, jobs, nil, archival.Config{HotWindowDays: 21}, logger)
	importer := backfill.NewImporter(hourlyAPI{}, store, jobs, nil, backfill.Config{DaysPerInvocation: 10}, logger)

	h := New(logger,
		services.NewQueryService(logger, engine),
		services.NewBackfillService(logger, importer),
		services.NewAdminService(logger, hot, store, pipeline),
	)

	app := fiber.New()
	app.Get("/v1/timeseries/query", h.Query)
	app.Post("/v1/backfill/start", h.BackfillStart)
	app.Get("/v1/backfill/status", h.BackfillStatus)
	app.Post("/v1/backfill/cancel", h.BackfillCancel)
	app.Post("/v1/admin/archive/run", h.ArchiveRun)
	app.Get("/v1/admin/archive/status", h.ArchiveStatus)
	app.Get("/v1/admin/hotstore/stats", h.HotStoreStats)
	app.Get("/v1/admin/coverage", h.Coverage)
	app.Get("/health", h.Health)
	app.Use(h.NotFound)

	return &testApp{app: app, hot: hot}
}

func (ta *testApp) seed(t *testing.T, siteID string, ts time.Time, n int) {
	t.Helper()
	var samples []models.Sample
	for i := 0; i < n; i++ {
		samples = append(samples, models.Sample{
			SiteID:    siteID,
			PointName: "p1",
			Timestamp: ts.Add(time.Duration(i) * time.Minute).UnixMilli(),
			Value:     float64(i),
		})
	}
	if err := ta.hot.Write(context.Background(), samples); err != nil {
		t.Fatalf("Failed to seed hot store: %v", err)
	}
}

func TestHealth(t *testing.T) {
	ta := newTestApp(t)

	resp, err := ta.app.Test(httptest.NewRequest("GET", "/health", nil))
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Errorf("Expected 200, got %d", resp.StatusCode)
	}

	var health models.HealthResponse
	json.NewDecoder(resp.Body).Decode(&health)
	if health.Status != "healthy" {
		t.Errorf("Unexpected health response: %+v", health)
	}
}

func TestQuery_MissingParams(t *testing.T) {
	ta := newTestApp(t)

	resp, err := ta.app.Test(httptest.NewRequest("GET", "/v1/timeseries/query", nil))
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Errorf("Expected 400, got %d", resp.StatusCode)
	}

	var errResp models.ErrorResponse
	json.NewDecoder(resp.Body).Decode(&errResp)
	if errResp.Error.Code != "INVALID_REQUEST" {
		t.Errorf("Unexpected error code: %s", errResp.Error.Code)
	}
}

func TestQuery_HotData(t *testing.T) {
	ta := newTestApp(t)

	now := time.Now().UTC()
	ta.seed(t, "site-1", now.Add(-time.Hour), 5)

	url := fmt.Sprintf("/v1/timeseries/query?site_name=site-1&point_names=p1&start_time=%s&end_time=%s",
		now.Add(-2*time.Hour).Format(time.RFC3339),
		now.Format(time.RFC3339))
	resp, err := ta.app.Test(httptest.NewRequest("GET", url, nil))
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}

	var result models.QueryResponse
	json.NewDecoder(resp.Body).Decode(&result)
	if result.Count != 5 {
		t.Errorf("Expected 5 samples, got %d", result.Count)
	}
	if len(result.Metadata.Sources) != 1 || result.Metadata.Sources[0] != models.SourceHot {
		t.Errorf("Expected HOT provenance, got %v", result.Metadata.Sources)
	}
}

func TestQuery_NoPointsIsEmpty(t *testing.T) {
	ta := newTestApp(t)

	now := time.Now().UTC()
	ta.seed(t, "site-1", now.Add(-time.Hour), 5)

	url := fmt.Sprintf("/v1/timeseries/query?site_name=site-1&start_time=%s&end_time=%s",
		now.Add(-2*time.Hour).Format(time.RFC3339),
		now.Format(time.RFC3339))
	resp, err := ta.app.Test(httptest.NewRequest("GET", url, nil))
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}

	var result models.QueryResponse
	json.NewDecoder(resp.Body).Decode(&result)
	if result.Count != 0 {
		t.Errorf("Empty point list must select nothing, got %d samples", result.Count)
	}
}

func TestQuery_PointsAliasAccepted(t *testing.T) {
	ta := newTestApp(t)

	now := time.Now().UTC()
	ta.seed(t, "site-1", now.Add(-time.Hour), 5)

	url := fmt.Sprintf("/v1/timeseries/query?site_name=site-1&points=p1&start_time=%s&end_time=%s",
		now.Add(-2*time.Hour).Format(time.RFC3339),
		now.Format(time.RFC3339))
	resp, err := ta.app.Test(httptest.NewRequest("GET", url, nil))
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}

	var result models.QueryResponse
	json.NewDecoder(resp.Body).Decode(&result)
	if result.Count != 5 {
		t.Errorf("Expected 5 samples via the legacy alias, got %d", result.Count)
	}
}

func TestQuery_InvalidAggregation(t *testing.T) {
	ta := newTestApp(t)

	url := "/v1/timeseries/query?site_name=site-1&start_time=2026-06-01T00:00:00Z&end_time=2026-06-02T00:00:00Z&aggregation=median"
	resp, err := ta.app.Test(httptest.NewRequest("GET", url, nil))
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Errorf("Expected 400, got %d", resp.StatusCode)
	}
}

func TestBackfill_Lifecycle(t *testing.T) {
	ta := newTestApp(t)

	body, _ := json.Marshal(models.BackfillRequest{
		SiteID:    "site-1",
		StartDate: "2026-06-01",
		EndDate:   "2026-06-02",
	})
	req := httptest.NewRequest("POST", "/v1/backfill/start", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := ta.app.Test(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusAccepted {
		t.Fatalf("Expected 202, got %d", resp.StatusCode)
	}

	var started models.BackfillStartResponse
	json.NewDecoder(resp.Body).Decode(&started)
	if started.BackfillID == "" || started.EstimatedDays != 2 {
		t.Fatalf("Unexpected start response: %+v", started)
	}

	// Poll status until the background run completes
	deadline := time.Now().Add(5 * time.Second)
	var status models.BackfillStatusResponse
	for time.Now().Before(deadline) {
		resp, err := ta.app.Test(httptest.NewRequest("GET", "/v1/backfill/status?backfill_id="+started.BackfillID, nil))
		if err != nil {
			t.Fatalf("Status request failed: %v", err)
		}
		json.NewDecoder(resp.Body).Decode(&status)
		if status.Status == models.BackfillCompleted {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if status.Status != models.BackfillCompleted || status.DaysCompleted != 2 {
		t.Fatalf("Backfill did not complete: %+v", status)
	}

	// Cancelling a completed job is a no-op returning its terminal state
	cancelBody, _ := json.Marshal(fiber.Map{"backfill_id": started.BackfillID})
	cancelReq := httptest.NewRequest("POST", "/v1/backfill/cancel", bytes.NewReader(cancelBody))
	cancelReq.Header.Set("Content-Type", "application/json")

	resp, err = ta.app.Test(cancelReq)
	if err != nil {
		t.Fatalf("Cancel request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Errorf("Expected 200, got %d", resp.StatusCode)
	}
}

func TestBackfill_StartInvalidDates(t *testing.T) {
	ta := newTestApp(t)

	body, _ := json.Marshal(models.BackfillRequest{
		SiteID:    "site-1",
		StartDate: "2026-06-10",
		EndDate:   "2026-06-01",
	})
	req := httptest.NewRequest("POST", "/v1/backfill/start", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := ta.app.Test(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Errorf("Expected 400, got %d", resp.StatusCode)
	}
}

func TestBackfillStatus_Unknown(t *testing.T) {
	ta := newTestApp(t)

	resp, err := ta.app.Test(httptest.NewRequest("GET", "/v1/backfill/status?backfill_id=nope", nil))
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusNotFound {
		t.Errorf("Expected 404, got %d", resp.StatusCode)
	}
}

func TestArchiveRun_RequiresSites(t *testing.T) {
	ta := newTestApp(t)

	req := httptest.NewRequest("POST", "/v1/admin/archive/run", bytes.NewReader([]byte(`{}`)))
	req.Header.Set("Content-Type", "application/json")

	resp, err := ta.app.Test(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Errorf("Expected 400, got %d", resp.StatusCode)
	}
}

func TestArchiveRun_MigratesOldDays(t *testing.T) {
	ta := newTestApp(t)

	oldDay := time.Now().UTC().Truncate(24 * time.Hour).Add(-30 * 24 * time.Hour)
	ta.seed(t, "site-1", oldDay, 10)

	body, _ := json.Marshal(fiber.Map{"site_ids": []string{"site-1"}})
	req := httptest.NewRequest("POST", "/v1/admin/archive/run", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := ta.app.Test(req, int(10*time.Second/time.Millisecond))
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}

	var result models.ArchiveRunResponse
	json.NewDecoder(resp.Body).Decode(&result)
	if result.DaysArchived != 1 || result.RowsMigrated != 10 {
		t.Errorf("Unexpected run result: %+v", result)
	}
}

func TestHotStoreStats(t *testing.T) {
	ta := newTestApp(t)
	ta.seed(t, "site-1", time.Now().UTC().Add(-time.Hour), 3)

	resp, err := ta.app.Test(httptest.NewRequest("GET", "/v1/admin/hotstore/stats", nil))
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}

	var stats models.HotStoreStatsResponse
	json.NewDecoder(resp.Body).Decode(&stats)
	if stats.SampleCount != 3 {
		t.Errorf("Expected 3 samples, got %d", stats.SampleCount)
	}
}

func TestCoverage_BadDates(t *testing.T) {
	ta := newTestApp(t)

	resp, err := ta.app.Test(httptest.NewRequest("GET", "/v1/admin/coverage?site_name=site-1&start_date=junk&end_date=2026-06-01", nil))
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Errorf("Expected 400, got %d", resp.StatusCode)
	}
}

func TestNotFound(t *testing.T) {
	ta := newTestApp(t)

	resp, err := ta.app.Test(httptest.NewRequest("GET", "/no/such/route", nil))
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusNotFound {
		t.Errorf("Expected 404, got %d", resp.StatusCode)
	}

	var errResp models.ErrorResponse
	json.NewDecoder(resp.Body).Decode(&errResp)
	if errResp.Error.Code != "NOT_FOUND" || errResp.Error.Path != "/no/such/route" {
		t.Errorf("Unexpected error body: %+v", errResp)
	}
}
