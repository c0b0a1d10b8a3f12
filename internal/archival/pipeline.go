// Package archival migrates whole days of hot-tier data into the cold tier.
// The move is promote-before-delete: hot rows are only removed after the
// archive file is uploaded and verified, so a failure at any step leaves the
// day intact in the hot tier for the next run.
package archival

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/buildingvitals/vitalstore/internal/archive"
	"github.com/buildingvitals/vitalstore/internal/kv"
	"github.com/buildingvitals/vitalstore/internal/logging"
	"github.com/buildingvitals/vitalstore/internal/models"
	"github.com/buildingvitals/vitalstore/internal/utils"
)

// HotStore is the hot-tier surface the pipeline needs
type HotStore interface {
	SiteBounds(ctx context.Context, siteID string) (time.Time, time.Time, error)
	ReadDay(ctx context.Context, siteID string, day time.Time) ([]models.Sample, error)
	DeleteDay(ctx context.Context, siteID string, day time.Time, batchSize int) (int64, error)
}

// Invalidator evicts cached query results after tier contents change
type Invalidator interface {
	Invalidate(ctx context.Context, siteID string) error
}

// Config holds archival pipeline settings
type Config struct {
	HotWindowDays int
	BatchSize     int
	MaxDaysPerRun int
}

// Pipeline runs day-by-day hot-to-cold migration
type Pipeline struct {
	hot    HotStore
	store  archive.ObjectStore
	jobs   kv.Store
	cache  Invalidator
	cfg    Config
	logger *logging.Logger

	now func() time.Time
}

// NewPipeline creates an archival pipeline. Cache may be nil.
func NewPipeline(hot HotStore, store archive.ObjectStore, jobs kv.Store, cache Invalidator, cfg Config, logger *logging.Logger) *Pipeline {
	if cfg.HotWindowDays <= 0 {
		cfg.HotWindowDays = utils.DefaultHotWindowDays
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = utils.DefaultArchiveBatchSize
	}

	return &Pipeline{
		hot:    hot,
		store:  store,
		jobs:   jobs,
		cache:  cache,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

// dayStateKey is the per-(site, day) completion marker key
func dayStateKey(siteID, day string) string {
	return fmt.Sprintf("archive:%s:%s", siteID, day)
}

// Run archives eligible days for each site, continuing past per-day failures
func (p *Pipeline) Run(ctx context.Context, siteIDs []string) (*models.ArchiveRunResponse, error) {
	result := &models.ArchiveRunResponse{}

	for _, siteID := range siteIDs {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		siteResult, err := p.RunSite(ctx, siteID)
		if err != nil {
			return result, err
		}

		result.DaysExamined += siteResult.DaysExamined
		result.DaysArchived += siteResult.DaysArchived
		result.DaysSkipped += siteResult.DaysSkipped
		result.DaysFailed += siteResult.DaysFailed
		result.RowsMigrated += siteResult.RowsMigrated
		result.FailedDays = append(result.FailedDays, siteResult.FailedDays...)
	}

	return result, nil
}

// RunSite archives every eligible day for one site, oldest first
func (p *Pipeline) RunSite(ctx context.Context, siteID string) (*models.ArchiveRunResponse, error) {
	result := &models.ArchiveRunResponse{}

	days, err := p.eligibleDays(ctx, siteID)
	if err != nil {
		return nil, err
	}
	if len(days) == 0 {
		return result, nil
	}

	if p.cfg.MaxDaysPerRun > 0 && len(days) > p.cfg.MaxDaysPerRun {
		days = days[:p.cfg.MaxDaysPerRun]
	}

	for _, day := range days {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		result.DaysExamined++
		dayKey := day.Format(utils.DayFormat)

		state, err := p.dayState(ctx, siteID, dayKey)
		if err != nil {
			return result, err
		}
		if state != nil && state.Status == models.ArchiveDayCompleted {
			result.DaysSkipped++
			continue
		}

		rows, err := p.archiveDay(ctx, siteID, day)
		if err != nil {
			p.logger.Error("Day archival failed",
				"site_id", siteID,
				"day", dayKey,
				"error", err,
			)
			p.markDay(ctx, siteID, dayKey, &models.ArchiveDayState{
				SiteID:    siteID,
				Day:       dayKey,
				Status:    models.ArchiveDayFailed,
				LastError: err.Error(),
			})
			result.DaysFailed++
			result.FailedDays = append(result.FailedDays, dayKey)
			continue
		}

		result.DaysArchived++
		result.RowsMigrated += rows
	}

	if result.DaysArchived > 0 && p.cache != nil {
		if err := p.cache.Invalidate(ctx, siteID); err != nil {
			p.logger.Warn("Cache invalidation failed after archival", "site_id", siteID, "error", err)
		}
	}

	p.logger.Info("Archival run finished",
		"site_id", siteID,
		"examined", result.DaysExamined,
		"archived", result.DaysArchived,
		"skipped", result.DaysSkipped,
		"failed", result.DaysFailed,
		"rows", result.RowsMigrated,
	)

	return result, nil
}

// eligibleDays lists days strictly older than the hot window, oldest first
func (p *Pipeline) eligibleDays(ctx context.Context, siteID string) ([]time.Time, error) {
	oldest, _, err := p.hot.SiteBounds(ctx, siteID)
	if err != nil {
		return nil, err
	}
	if oldest.IsZero() {
		return nil, nil
	}

	boundaryDay := p.now().UTC().Truncate(utils.HoursPerDay).
		Add(-time.Duration(p.cfg.HotWindowDays) * utils.HoursPerDay)

	lastEligible := boundaryDay.Add(-utils.HoursPerDay)
	if oldest.After(lastEligible) {
		return nil, nil
	}

	return utils.DayRange(oldest, lastEligible), nil
}

// archiveDay performs the promote-before-delete sequence for one day
func (p *Pipeline) archiveDay(ctx context.Context, siteID string, day time.Time) (int64, error) {
	dayKey := day.Format(utils.DayFormat)

	samples, err := p.hot.ReadDay(ctx, siteID, day)
	if err != nil {
		return 0, fmt.Errorf("read hot day: %w", err)
	}

	if len(samples) == 0 {
		// Nothing to promote: mark done so the day is not re-examined
		p.markDay(ctx, siteID, dayKey, &models.ArchiveDayState{
			SiteID:      siteID,
			Day:         dayKey,
			Status:      models.ArchiveDayCompleted,
			RowCount:    0,
			CompletedAt: p.now().UTC().Format(time.RFC3339),
		})
		return 0, nil
	}

	data, err := archive.EncodeSegment(samples)
	if err != nil {
		return 0, fmt.Errorf("encode segment: %w", err)
	}

	objectKey := archive.DayKey(siteID, day)
	if err := p.store.Put(ctx, objectKey, data); err != nil {
		return 0, fmt.Errorf("upload segment: %w", err)
	}

	if err := p.verify(ctx, objectKey, int64(len(samples))); err != nil {
		return 0, fmt.Errorf("verify segment: %w", err)
	}

	// Verified in the cold tier. Only now is deleting the hot rows safe.
	deleted, err := p.hot.DeleteDay(ctx, siteID, day, p.cfg.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("delete hot day after archive: %w", err)
	}

	p.markDay(ctx, siteID, dayKey, &models.ArchiveDayState{
		SiteID:      siteID,
		Day:         dayKey,
		Status:      models.ArchiveDayCompleted,
		ArchivePath: objectKey,
		RowCount:    int64(len(samples)),
		CompletedAt: p.now().UTC().Format(time.RFC3339),
	})

	p.logger.Info("Archived day",
		"site_id", siteID,
		"day", dayKey,
		"rows", len(samples),
		"deleted", deleted,
		"key", objectKey,
	)

	return int64(len(samples)), nil
}

// verify confirms the uploaded object before any hot data is deleted
func (p *Pipeline) verify(ctx context.Context, key string, wantRows int64) error {
	return archive.VerifyObject(ctx, p.store, key, wantRows)
}

func (p *Pipeline) dayState(ctx context.Context, siteID, day string) (*models.ArchiveDayState, error) {
	ctx, cancel := context.WithTimeout(ctx, utils.JobStateTimeout)
	defer cancel()

	data, err := p.jobs.Get(ctx, dayStateKey(siteID, day))
	if err == kv.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read day state: %w", err)
	}

	var state models.ArchiveDayState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("decode day state: %w", err)
	}
	return &state, nil
}

func (p *Pipeline) markDay(ctx context.Context, siteID, day string, state *models.ArchiveDayState) {
	ctx, cancel := context.WithTimeout(ctx, utils.JobStateTimeout)
	defer cancel()

	data, err := json.Marshal(state)
	if err != nil {
		p.logger.Error("Failed to encode day state", "site_id", siteID, "day", day, "error", err)
		return
	}
	if err := p.jobs.Set(ctx, dayStateKey(siteID, day), data, 0); err != nil {
		p.logger.Error("Failed to persist day state", "site_id", siteID, "day", day, "error", err)
	}
}

// DayState exposes the persisted marker for admin status reporting
func (p *Pipeline) DayState(ctx context.Context, siteID string, day time.Time) (*models.ArchiveDayState, error) {
	return p.dayState(ctx, siteID, day.Format(utils.DayFormat))
}
