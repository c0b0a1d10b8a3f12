// Package backfill imports historical data from the upstream provider
// directly into the cold tier, one UTC day at a time. Progress lives in the
// job-state store, so a crashed or rescheduled import resumes from its
// per-day cursor instead of starting over.
package backfill

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/buildingvitals/vitalstore/internal/archive"
	"github.com/buildingvitals/vitalstore/internal/kv"
	"github.com/buildingvitals/vitalstore/internal/logging"
	"github.com/buildingvitals/vitalstore/internal/models"
	"github.com/buildingvitals/vitalstore/internal/upstream"
	"github.com/buildingvitals/vitalstore/internal/utils"
	"github.com/google/uuid"
)

const currentJobKey = "backfill:current"

// Invalidator evicts cached query results after cold-tier contents change
type Invalidator interface {
	Invalidate(ctx context.Context, siteID string) error
}

// Config holds importer settings
type Config struct {
	// DaysPerInvocation bounds how many days one Run processes
	DaysPerInvocation int

	// DayPause is an optional pause between days to spread provider load
	DayPause time.Duration
}

// Importer drives historical imports
type Importer struct {
	api    upstream.API
	store  archive.ObjectStore
	jobs   kv.Store
	cache  Invalidator
	cfg    Config
	logger *logging.Logger

	now func() time.Time
}

// NewImporter creates a backfill importer. Cache may be nil.
func NewImporter(api upstream.API, store archive.ObjectStore, jobs kv.Store, cache Invalidator, cfg Config, logger *logging.Logger) *Importer {
	if cfg.DaysPerInvocation <= 0 {
		cfg.DaysPerInvocation = 7
	}

	return &Importer{
		api:    api,
		store:  store,
		jobs:   jobs,
		cache:  cache,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

func jobKey(backfillID string) string {
	return "backfill:" + backfillID
}

// Start creates a new backfill job, or resumes the active one when it covers
// the same site and force_restart is not set.
func (im *Importer) Start(ctx context.Context, req *models.BackfillRequest) (*models.BackfillStartResponse, *models.BackfillState, error) {
	existing, err := im.Current(ctx)
	if err != nil {
		return nil, nil, err
	}

	if existing != nil && existing.SiteID == req.SiteID && !req.ForceRestart &&
		existing.Status != models.BackfillCompleted {
		// Cancelled and failed jobs resume from their cursor; starting over
		// takes force_restart
		if existing.Status == models.BackfillCancelled || existing.Status == models.BackfillFailed {
			existing.Status = models.BackfillNotStarted
			existing.LastError = ""
			existing.UpdatedAt = im.now().UTC().Format(time.RFC3339)
			if err := im.saveState(ctx, existing); err != nil {
				return nil, nil, err
			}
		}

		im.logger.Info("Resuming backfill",
			"backfill_id", existing.BackfillID,
			"site_id", existing.SiteID,
			"current_date", existing.CurrentDate,
		)
		return &models.BackfillStartResponse{
			BackfillID:    existing.BackfillID,
			EstimatedDays: existing.DaysTotal - existing.DaysCompleted,
			Resumed:       true,
		}, existing, nil
	}

	days := utils.DayRange(req.StartDateParsed, req.EndDateParsed)
	state := &models.BackfillState{
		BackfillID:  uuid.NewString(),
		SiteID:      req.SiteID,
		StartDate:   req.StartDateParsed.Format(utils.DayFormat),
		EndDate:     req.EndDateParsed.Format(utils.DayFormat),
		CurrentDate: req.StartDateParsed.Format(utils.DayFormat),
		Status:      models.BackfillNotStarted,
		DaysTotal:   len(days),
		UpdatedAt:   im.now().UTC().Format(time.RFC3339),
	}

	if err := im.saveState(ctx, state); err != nil {
		return nil, nil, err
	}
	if err := im.jobs.Set(ctx, currentJobKey, []byte(state.BackfillID), 0); err != nil {
		return nil, nil, fmt.Errorf("failed to set current backfill: %w", err)
	}

	im.logger.Info("Backfill created",
		"backfill_id", state.BackfillID,
		"site_id", state.SiteID,
		"start_date", state.StartDate,
		"end_date", state.EndDate,
		"days_total", state.DaysTotal,
	)

	return &models.BackfillStartResponse{
		BackfillID:    state.BackfillID,
		EstimatedDays: state.DaysTotal,
	}, state, nil
}

// Run processes up to DaysPerInvocation days of the job, starting at its
// cursor. It re-reads job state at every day boundary so an external cancel
// takes effect between days, never mid-day.
func (im *Importer) Run(ctx context.Context, backfillID string) error {
	state, err := im.State(ctx, backfillID)
	if err != nil {
		return err
	}
	if state == nil {
		return fmt.Errorf("unknown backfill %s", backfillID)
	}

	switch state.Status {
	case models.BackfillCompleted, models.BackfillCancelled:
		return nil
	}

	state.Status = models.BackfillInProgress
	state.LastError = ""
	if state.StartedAt == "" {
		state.StartedAt = im.now().UTC().Format(time.RFC3339)
	}
	if err := im.saveState(ctx, state); err != nil {
		return err
	}

	endDate, err := time.ParseInLocation(utils.DayFormat, state.EndDate, time.UTC)
	if err != nil {
		return fmt.Errorf("corrupt end date %q: %w", state.EndDate, err)
	}

	processed := 0
	for processed < im.cfg.DaysPerInvocation {
		// Reload at the day boundary: cancellation and concurrent updates
		// land here
		state, err = im.State(ctx, backfillID)
		if err != nil {
			return err
		}
		if state.Status == models.BackfillCancelled {
			im.logger.Info("Backfill cancelled, stopping at day boundary",
				"backfill_id", backfillID,
				"days_completed", state.DaysCompleted,
			)
			return nil
		}

		day, err := time.ParseInLocation(utils.DayFormat, state.CurrentDate, time.UTC)
		if err != nil {
			return fmt.Errorf("corrupt cursor %q: %w", state.CurrentDate, err)
		}
		if day.After(endDate) {
			break
		}

		if err := ctx.Err(); err != nil {
			return err
		}

		rows, err := im.importDay(ctx, state.SiteID, day)
		if err != nil {
			state.Status = models.BackfillFailed
			state.LastError = err.Error()
			state.UpdatedAt = im.now().UTC().Format(time.RFC3339)
			im.saveState(ctx, state)
			return fmt.Errorf("backfill day %s failed: %w", state.CurrentDate, err)
		}

		state.CurrentDate = day.Add(utils.HoursPerDay).Format(utils.DayFormat)
		state.DaysCompleted++
		state.RecordsProcessed += rows
		state.UpdatedAt = im.now().UTC().Format(time.RFC3339)
		if err := im.saveState(ctx, state); err != nil {
			return err
		}

		processed++

		if im.cfg.DayPause > 0 {
			select {
			case <-time.After(im.cfg.DayPause):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	if state.CurrentDate > state.EndDate {
		state.Status = models.BackfillCompleted
		state.UpdatedAt = im.now().UTC().Format(time.RFC3339)
		if err := im.saveState(ctx, state); err != nil {
			return err
		}
		im.logger.Info("Backfill completed",
			"backfill_id", backfillID,
			"days", state.DaysCompleted,
			"records", state.RecordsProcessed,
		)
	}

	if processed > 0 && im.cache != nil {
		if err := im.cache.Invalidate(ctx, state.SiteID); err != nil {
			im.logger.Warn("Cache invalidation failed after backfill", "site_id", state.SiteID, "error", err)
		}
	}

	return nil
}

// importDay fetches one day from upstream and writes it to the cold tier,
// merging with any segment already present for that day
func (im *Importer) importDay(ctx context.Context, siteID string, day time.Time) (int64, error) {
	samples, err := im.api.FetchRange(ctx, siteID, day, day.Add(utils.HoursPerDay))
	if err != nil {
		return 0, err
	}

	// The provider can return edge samples outside the day
	start, end := day.UnixMilli(), day.Add(utils.HoursPerDay).UnixMilli()
	kept := samples[:0]
	for _, s := range samples {
		if s.Timestamp >= start && s.Timestamp < end {
			kept = append(kept, s)
		}
	}

	if len(kept) == 0 {
		im.logger.Debug("No upstream data for day", "site_id", siteID, "day", day.Format(utils.DayFormat))
		return 0, nil
	}

	key := archive.DayKey(siteID, day)

	// Last-wins merge over any existing segment so re-imports refresh values
	// without dropping points the provider no longer returns
	existing, err := im.store.Get(ctx, key)
	if err != nil && err != archive.ErrObjectNotFound {
		return 0, fmt.Errorf("read existing segment: %w", err)
	}
	if existing != nil {
		old, err := archive.DecodeSegment(siteID, existing)
		if err != nil {
			im.logger.Warn("Existing segment unreadable, replacing", "key", key, "error", err)
		} else {
			merged := make(map[models.SampleKey]models.Sample, len(old)+len(kept))
			for _, s := range old {
				merged[s.Key()] = s
			}
			for _, s := range kept {
				merged[s.Key()] = s
			}
			kept = kept[:0]
			for _, s := range merged {
				kept = append(kept, s)
			}
		}
	}

	data, err := archive.EncodeSegment(kept)
	if err != nil {
		return 0, fmt.Errorf("encode segment: %w", err)
	}
	if err := im.store.Put(ctx, key, data); err != nil {
		return 0, fmt.Errorf("upload segment: %w", err)
	}

	// The cursor only advances past a day whose upload reads back intact
	if err := archive.VerifyObject(ctx, im.store, key, int64(len(kept))); err != nil {
		return 0, fmt.Errorf("verify segment: %w", err)
	}

	im.logger.Info("Backfilled day",
		"site_id", siteID,
		"day", day.Format(utils.DayFormat),
		"rows", len(kept),
	)

	return int64(len(kept)), nil
}

// Cancel marks the job cancelled. A running import observes this at its next
// day boundary; completed days stay imported.
func (im *Importer) Cancel(ctx context.Context, backfillID string) (*models.BackfillState, error) {
	state, err := im.State(ctx, backfillID)
	if err != nil {
		return nil, err
	}
	if state == nil {
		return nil, fmt.Errorf("unknown backfill %s", backfillID)
	}

	switch state.Status {
	case models.BackfillCompleted, models.BackfillCancelled, models.BackfillFailed:
		return state, nil
	}

	state.Status = models.BackfillCancelled
	state.UpdatedAt = im.now().UTC().Format(time.RFC3339)
	if err := im.saveState(ctx, state); err != nil {
		return nil, err
	}

	im.logger.Info("Backfill cancel requested", "backfill_id", backfillID)
	return state, nil
}

// Current returns the most recently started job's state, or nil
func (im *Importer) Current(ctx context.Context) (*models.BackfillState, error) {
	getCtx, cancel := context.WithTimeout(ctx, utils.JobStateTimeout)
	defer cancel()

	id, err := im.jobs.Get(getCtx, currentJobKey)
	if err == kv.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read current backfill: %w", err)
	}
	return im.State(ctx, string(id))
}

// State returns a job's persisted state, or nil if unknown
func (im *Importer) State(ctx context.Context, backfillID string) (*models.BackfillState, error) {
	ctx, cancel := context.WithTimeout(ctx, utils.JobStateTimeout)
	defer cancel()

	data, err := im.jobs.Get(ctx, jobKey(backfillID))
	if err == kv.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read backfill state: %w", err)
	}

	var state models.BackfillState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("decode backfill state: %w", err)
	}
	return &state, nil
}

func (im *Importer) saveState(ctx context.Context, state *models.BackfillState) error {
	ctx, cancel := context.WithTimeout(ctx, utils.JobStateTimeout)
	defer cancel()

	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode backfill state: %w", err)
	}
	if err := im.jobs.Set(ctx, jobKey(state.BackfillID), data, 0); err != nil {
		return fmt.Errorf("persist backfill state: %w", err)
	}
	return nil
}
