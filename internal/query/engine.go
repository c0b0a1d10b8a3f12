package query

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/buildingvitals/vitalstore/internal/cache"
	"github.com/buildingvitals/vitalstore/internal/logging"
	"github.com/buildingvitals/vitalstore/internal/models"
	"github.com/buildingvitals/vitalstore/internal/upstream"
	"github.com/buildingvitals/vitalstore/internal/utils"
)

// HotReader is the hot-tier read surface
type HotReader interface {
	Query(ctx context.Context, siteID string, pointNames []string, startMs, endMs int64) ([]models.Sample, error)
}

// ColdReader is the cold-tier read surface
type ColdReader interface {
	ReadRange(ctx context.Context, siteID string, startMs, endMs int64, pointNames []string) ([]models.Sample, []string, error)
}

// Engine executes tiered timeseries queries
type Engine struct {
	hot           HotReader
	cold          ColdReader
	cache         *cache.QueryCache
	upstream      upstream.API
	hotWindowDays int
	preferHot     bool
	hotTimeout    time.Duration
	coldTimeout   time.Duration
	logger        *logging.Logger

	now func() time.Time
}

// Options configures engine behavior
type Options struct {
	HotWindowDays int

	// PreferHot picks the hot tier's value when both tiers hold a sample for
	// the same (point, timestamp)
	PreferHot bool

	// HotQueryTimeout bounds one hot-tier read (default: 5s; the hot tier
	// is local)
	HotQueryTimeout time.Duration

	// ColdFetchTimeout bounds one multi-file cold-tier read (default: 60s)
	ColdFetchTimeout time.Duration
}

// NewEngine creates a query engine. Cache and upstream may be nil, disabling
// result caching and legacy mode respectively.
func NewEngine(hot HotReader, cold ColdReader, qc *cache.QueryCache, api upstream.API, opts Options, logger *logging.Logger) *Engine {
	if opts.HotQueryTimeout <= 0 {
		opts.HotQueryTimeout = utils.HotQueryTimeout
	}
	if opts.ColdFetchTimeout <= 0 {
		opts.ColdFetchTimeout = utils.ColdFetchTimeout
	}

	return &Engine{
		hot:           hot,
		cold:          cold,
		cache:         qc,
		upstream:      api,
		hotWindowDays: opts.HotWindowDays,
		preferHot:     opts.PreferHot,
		hotTimeout:    opts.HotQueryTimeout,
		coldTimeout:   opts.ColdFetchTimeout,
		logger:        logger,
		now:           time.Now,
	}
}

// Query runs a validated request and returns the merged response
func (e *Engine) Query(ctx context.Context, req *models.QueryRequest) (*models.QueryResponse, error) {
	started := time.Now()

	if req.Mode == models.QueryModeLegacy {
		return e.queryLegacy(ctx, req, started)
	}

	// An empty point list selects nothing
	if len(req.PointNames) == 0 {
		return &models.QueryResponse{
			SiteID:  req.SiteID,
			Samples: []models.SampleView{},
			Metadata: models.QueryMetadata{
				SourceSampleCounts: map[string]int{},
				QueryTimeMs:        time.Since(started).Milliseconds(),
			},
		}, nil
	}

	if e.cache != nil {
		if cached := e.cache.Get(ctx, req); cached != nil {
			cached.Metadata.CacheHit = true
			cached.Metadata.QueryTimeMs = time.Since(started).Milliseconds()
			e.logger.Debug("Query served from cache", "site_id", req.SiteID)
			return cached, nil
		}
	}

	plan := Classify(req.StartTimeParsed, req.EndTimeParsed, e.now().UTC(), e.hotWindowDays)

	wantHot := plan.Strategy == StrategyHotOnly || plan.Strategy == StrategySplit
	wantCold := plan.Strategy == StrategyColdOnly || plan.Strategy == StrategySplit

	var (
		hotSamples, coldSamples []models.Sample
		gaps                    []string
		hotErr, coldErr         error
	)

	// The tier reads are independent; run them in parallel and join before
	// merging
	var wg sync.WaitGroup
	if wantHot {
		wg.Add(1)
		go func() {
			defer wg.Done()
			hotSamples, hotErr = e.queryHot(ctx, req, plan.HotStartMs, plan.HotEndMs)
		}()
	}
	if wantCold {
		wg.Add(1)
		go func() {
			defer wg.Done()
			coldSamples, gaps, coldErr = e.queryCold(ctx, req, plan.ColdStartMs, plan.ColdEndMs)
		}()
	}
	wg.Wait()

	if wantHot && wantCold && hotErr != nil && coldErr != nil {
		return nil, fmt.Errorf("both tiers failed: hot: %v; cold: %v", hotErr, coldErr)
	}
	if !wantHot && coldErr != nil {
		return nil, fmt.Errorf("cold tier query failed: %w", coldErr)
	}

	degraded := false
	hotServed := wantHot && hotErr == nil
	coldServed := wantCold && coldErr == nil

	if wantCold && coldErr != nil {
		// Hot side is intact; serve it and flag the response
		e.logger.Error("Cold tier failed during split query, serving hot side only",
			"site_id", req.SiteID,
			"error", coldErr,
		)
		degraded = true
		coldSamples = nil
		gaps = nil
	}

	if wantHot && hotErr != nil {
		// Hot tier down: its sub-range may already be archived, so serve
		// what the cold tier has for it and flag the response
		e.logger.Error("Hot tier failed, falling back to cold for the hot sub-range",
			"site_id", req.SiteID,
			"error", hotErr,
		)
		degraded = true
		hotSamples = nil

		fallback, fbGaps, fbErr := e.queryCold(ctx, req, plan.HotStartMs, plan.HotEndMs)
		if fbErr != nil {
			if !coldServed {
				return nil, fmt.Errorf("both tiers failed: hot: %v; cold: %v", hotErr, fbErr)
			}
			e.logger.Error("Cold fallback for the hot sub-range failed",
				"site_id", req.SiteID,
				"error", fbErr,
			)
		} else {
			coldSamples = append(coldSamples, fallback...)
			gaps = append(gaps, fbGaps...)
			coldServed = true
		}
	}

	merged := Merge(hotSamples, coldSamples, e.preferHot)
	merged = Aggregate(merged, req.Aggregation)

	var sources []string
	counts := make(map[string]int)
	if hotServed {
		sources = append(sources, models.SourceHot)
		counts[models.SourceHot] = len(hotSamples)
	}
	if coldServed {
		sources = append(sources, models.SourceCold)
		counts[models.SourceCold] = len(coldSamples)
	}

	resp := &models.QueryResponse{
		SiteID:  req.SiteID,
		Samples: toViews(merged),
		Count:   len(merged),
		Metadata: models.QueryMetadata{
			Sources:            sources,
			SourceSampleCounts: counts,
			Degraded:           degraded,
			GapDays:            gaps,
		},
	}
	resp.Metadata.QueryTimeMs = time.Since(started).Milliseconds()

	if e.cache != nil && !degraded {
		if err := e.cache.Set(ctx, req, resp); err != nil {
			e.logger.Warn("Failed to cache query response", "site_id", req.SiteID, "error", err)
		}
	}

	e.logger.Debug("Query executed",
		"site_id", req.SiteID,
		"strategy", string(plan.Strategy),
		"hot_samples", len(hotSamples),
		"cold_samples", len(coldSamples),
		"merged", len(merged),
		"degraded", degraded,
	)

	return resp, nil
}

// queryHot reads the hot sub-range under the short hot-tier timeout
func (e *Engine) queryHot(ctx context.Context, req *models.QueryRequest, startMs, endMs int64) ([]models.Sample, error) {
	hctx, cancel := context.WithTimeout(ctx, e.hotTimeout)
	defer cancel()
	return e.hot.Query(hctx, req.SiteID, req.PointNames, startMs, endMs)
}

// queryCold reads a cold sub-range under the longer multi-file timeout
func (e *Engine) queryCold(ctx context.Context, req *models.QueryRequest, startMs, endMs int64) ([]models.Sample, []string, error) {
	cctx, cancel := context.WithTimeout(ctx, e.coldTimeout)
	defer cancel()
	return e.cold.ReadRange(cctx, req.SiteID, startMs, endMs, req.PointNames)
}

func (e *Engine) queryLegacy(ctx context.Context, req *models.QueryRequest, started time.Time) (*models.QueryResponse, error) {
	if e.upstream == nil {
		return nil, fmt.Errorf("legacy mode is not configured")
	}

	samples, err := e.upstream.FetchRange(ctx, req.SiteID, req.StartTimeParsed, req.EndTimeParsed)
	if err != nil {
		return nil, fmt.Errorf("legacy upstream query failed: %w", err)
	}

	startMs := req.StartTimeParsed.UnixMilli()
	endMs := req.EndTimeParsed.UnixMilli()

	var pointFilter map[string]bool
	if len(req.PointNames) > 0 {
		pointFilter = make(map[string]bool, len(req.PointNames))
		for _, name := range req.PointNames {
			pointFilter[name] = true
		}
	}

	filtered := samples[:0]
	for _, s := range samples {
		if s.Timestamp < startMs || s.Timestamp > endMs {
			continue
		}
		if pointFilter != nil && !pointFilter[s.PointName] {
			continue
		}
		filtered = append(filtered, s)
	}

	merged := Merge(nil, filtered, false)
	merged = Aggregate(merged, req.Aggregation)

	resp := &models.QueryResponse{
		SiteID:  req.SiteID,
		Samples: toViews(merged),
		Count:   len(merged),
		Metadata: models.QueryMetadata{
			Sources:            []string{models.SourceUpstream},
			SourceSampleCounts: map[string]int{models.SourceUpstream: len(merged)},
			QueryTimeMs:        time.Since(started).Milliseconds(),
		},
	}
	return resp, nil
}

func toViews(samples []models.Sample) []models.SampleView {
	views := make([]models.SampleView, len(samples))
	for i, s := range samples {
		views[i] = models.SampleView{
			PointName: s.PointName,
			Timestamp: s.Timestamp,
			Value:     s.Value,
		}
	}
	return views
}
