package archive

import (
	"context"
	"sync"
	"time"

	"github.com/buildingvitals/vitalstore/internal/logging"
	"github.com/buildingvitals/vitalstore/internal/models"
	"github.com/buildingvitals/vitalstore/internal/utils"
)

// Reader fetches and decodes daily segments with bounded concurrency
type Reader struct {
	store       ObjectStore
	concurrency int
	logger      *logging.Logger
}

// NewReader creates a cold-tier reader
func NewReader(store ObjectStore, concurrency int, logger *logging.Logger) *Reader {
	if concurrency <= 0 {
		concurrency = utils.DefaultColdFetchConcurrency
	}
	return &Reader{
		store:       store,
		concurrency: concurrency,
		logger:      logger,
	}
}

type dayResult struct {
	day     time.Time
	samples []models.Sample
	missing bool
	err     error
}

// ReadRange reads every daily segment touching [startMs, endMs] and returns
// samples within the range, optionally filtered to pointNames. Days with no
// segment file are reported as gaps, not errors.
func (r *Reader) ReadRange(ctx context.Context, siteID string, startMs, endMs int64, pointNames []string) ([]models.Sample, []string, error) {
	days := utils.DayRange(time.UnixMilli(startMs).UTC(), time.UnixMilli(endMs).UTC())

	results := make([]dayResult, len(days))
	sem := make(chan struct{}, r.concurrency)
	var wg sync.WaitGroup

	for i, day := range days {
		wg.Add(1)
		go func(i int, day time.Time) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			results[i] = r.readDay(ctx, siteID, day)
		}(i, day)
	}
	wg.Wait()

	var pointFilter map[string]bool
	if len(pointNames) > 0 {
		pointFilter = make(map[string]bool, len(pointNames))
		for _, name := range pointNames {
			pointFilter[name] = true
		}
	}

	var samples []models.Sample
	var gaps []string

	for _, res := range results {
		if res.err != nil {
			return nil, nil, res.err
		}
		if res.missing {
			gaps = append(gaps, res.day.Format(utils.DayFormat))
			continue
		}
		for _, s := range res.samples {
			if s.Timestamp < startMs || s.Timestamp > endMs {
				continue
			}
			if pointFilter != nil && !pointFilter[s.PointName] {
				continue
			}
			samples = append(samples, s)
		}
	}

	models.SortSamplesAscending(samples)
	return samples, gaps, nil
}

func (r *Reader) readDay(ctx context.Context, siteID string, day time.Time) dayResult {
	key := DayKey(siteID, day)

	data, err := r.store.Get(ctx, key)
	if err == ErrObjectNotFound {
		return dayResult{day: day, missing: true}
	}
	if err != nil {
		return dayResult{day: day, err: err}
	}

	samples, err := DecodeSegment(siteID, data)
	if err != nil {
		r.logger.Error("Failed to decode archive segment", "key", key, "error", err)
		return dayResult{day: day, err: err}
	}

	return dayResult{day: day, samples: samples}
}
