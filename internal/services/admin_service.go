package services

import (
	"context"
	"time"

	"github.com/buildingvitals/vitalstore/internal/archival"
	"github.com/buildingvitals/vitalstore/internal/archive"
	"github.com/buildingvitals/vitalstore/internal/hotstore"
	"github.com/buildingvitals/vitalstore/internal/logging"
	"github.com/buildingvitals/vitalstore/internal/models"
	"github.com/buildingvitals/vitalstore/internal/utils"
)

// AdminService backs the operational endpoints: archival runs, tier stats,
// and coverage reporting
type AdminService struct {
	logger   *logging.Logger
	hot      *hotstore.Store
	store    archive.ObjectStore
	pipeline *archival.Pipeline
}

// NewAdminService creates a new AdminService
func NewAdminService(logger *logging.Logger, hot *hotstore.Store, store archive.ObjectStore, pipeline *archival.Pipeline) *AdminService {
	return &AdminService{
		logger:   logger,
		hot:      hot,
		store:    store,
		pipeline: pipeline,
	}
}

// RunArchival triggers a synchronous archival run for the given sites
func (s *AdminService) RunArchival(ctx context.Context, siteIDs []string) (*models.ArchiveRunResponse, error) {
	if len(siteIDs) == 0 {
		return nil, NewServiceError("BAD_REQUEST", "At least one site_id is required")
	}

	result, err := s.pipeline.Run(ctx, siteIDs)
	if err != nil {
		s.logger.Error("Archival run failed", "sites", siteIDs, "error", err)
		return nil, &ServiceError{
			Code:    "ARCHIVAL_FAILED",
			Message: "Archival run failed",
			Details: map[string]interface{}{"error": err.Error()},
		}
	}

	return result, nil
}

// ArchiveStatus reports per-day archival markers for a site over a day range
func (s *AdminService) ArchiveStatus(ctx context.Context, siteID string, start, end time.Time) ([]models.ArchiveDayState, error) {
	if siteID == "" {
		return nil, NewServiceError("BAD_REQUEST", "site_id is required")
	}

	var states []models.ArchiveDayState
	for _, day := range utils.DayRange(start, end) {
		state, err := s.pipeline.DayState(ctx, siteID, day)
		if err != nil {
			return nil, &ServiceError{
				Code:    "ARCHIVE_STATUS_FAILED",
				Message: "Failed to read archive state",
				Details: map[string]interface{}{"error": err.Error()},
			}
		}
		if state == nil {
			state = &models.ArchiveDayState{
				SiteID: siteID,
				Day:    day.Format(utils.DayFormat),
				Status: models.ArchiveDayPending,
			}
		}
		states = append(states, *state)
	}

	return states, nil
}

// HotStoreStats reports hot tier occupancy
func (s *AdminService) HotStoreStats(ctx context.Context) (*models.HotStoreStatsResponse, error) {
	stats, err := s.hot.Stats(ctx)
	if err != nil {
		return nil, &ServiceError{
			Code:    "STATS_FAILED",
			Message: "Failed to read hot store stats",
			Details: map[string]interface{}{"error": err.Error()},
		}
	}

	resp := &models.HotStoreStatsResponse{
		SampleCount: stats.SampleCount,
		PointCount:  stats.PointCount,
		SizeBytes:   stats.SizeBytes,
	}
	if !stats.Oldest.IsZero() {
		resp.OldestSample = stats.Oldest.UTC().Format(time.RFC3339)
	}
	if !stats.Newest.IsZero() {
		resp.NewestSample = stats.Newest.UTC().Format(time.RFC3339)
	}

	return resp, nil
}

// Coverage reports per-day sample presence across both tiers for a site.
// A day is a gap when neither tier holds data and no completion marker
// explains the absence.
func (s *AdminService) Coverage(ctx context.Context, siteID string, start, end time.Time) (*models.CoverageResponse, error) {
	if siteID == "" {
		return nil, NewServiceError("BAD_REQUEST", "site_id is required")
	}

	resp := &models.CoverageResponse{SiteID: siteID}

	for _, day := range utils.DayRange(start, end) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		entry := models.CoverageDay{Day: day.Format(utils.DayFormat)}

		hotCount, err := s.hot.CountDay(ctx, siteID, day)
		if err != nil {
			return nil, &ServiceError{
				Code:    "COVERAGE_FAILED",
				Message: "Failed to count hot samples",
				Details: map[string]interface{}{"error": err.Error()},
			}
		}
		entry.HotSamples = hotCount

		coldCount, err := s.coldRowCount(ctx, siteID, day)
		if err != nil {
			return nil, err
		}
		entry.ColdSamples = coldCount

		state, err := s.pipeline.DayState(ctx, siteID, day)
		if err == nil && state != nil && state.Status == models.ArchiveDayCompleted {
			entry.Archived = true
		}

		entry.Gap = entry.HotSamples == 0 && entry.ColdSamples == 0 && !entry.Archived

		resp.Days = append(resp.Days, entry)
	}

	return resp, nil
}

// coldRowCount reads just the segment header, not the whole file
func (s *AdminService) coldRowCount(ctx context.Context, siteID string, day time.Time) (int64, error) {
	data, err := s.store.Get(ctx, archive.DayKey(siteID, day))
	if err == archive.ErrObjectNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, &ServiceError{
			Code:    "COVERAGE_FAILED",
			Message: "Failed to read cold segment",
			Details: map[string]interface{}{"error": err.Error()},
		}
	}

	rows, err := archive.SegmentRowCount(data)
	if err != nil {
		s.logger.Warn("Unreadable cold segment in coverage scan",
			"site_id", siteID,
			"day", day.Format(utils.DayFormat),
			"error", err,
		)
		return 0, nil
	}
	return rows, nil
}
