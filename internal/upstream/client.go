// Package upstream implements the client for the building telemetry provider
// API. It is the data source for backfill imports and the fallback target for
// legacy-mode queries.
package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/buildingvitals/vitalstore/internal/config"
	"github.com/buildingvitals/vitalstore/internal/logging"
	"github.com/buildingvitals/vitalstore/internal/models"
	"github.com/buildingvitals/vitalstore/internal/utils"
	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"
)

// API is the upstream surface consumed by the importer and the query engine
type API interface {
	// FetchRange fetches all samples for a site in [start, end)
	FetchRange(ctx context.Context, siteID string, start, end time.Time) ([]models.Sample, error)
}

// Client talks to the provider's paginated timeseries endpoint
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	pageSize   int
	maxRetries int
	backoff    time.Duration
	limiter    *rate.Limiter
	logger     *logging.Logger
}

// NewClient creates an upstream client. A nil limiter disables client-side
// rate limiting.
func NewClient(cfg config.UpstreamConfig, limiter *rate.Limiter, logger *logging.Logger) *Client {
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = 5000
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = utils.DefaultMaxRetries
	}
	retryBackoff := cfg.RetryBackoff
	if retryBackoff <= 0 {
		retryBackoff = utils.DefaultRetryBackoff
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = utils.DefaultRequestTimeout
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		pageSize:   pageSize,
		maxRetries: maxRetries,
		backoff:    retryBackoff,
		limiter:    limiter,
		logger:     logger,
	}
}

// pageResponse is the provider's paginated payload
type pageResponse struct {
	PointSamples []rawSample `json:"point_samples"`
	NextCursor   string      `json:"next_cursor"`
}

// rawSample carries time as either epoch milliseconds or an RFC3339 string
type rawSample struct {
	Name  string      `json:"name"`
	Time  interface{} `json:"time"`
	Value interface{} `json:"value"`
}

// FetchRange pages through the provider API until the cursor is exhausted.
// Non-numeric and unparseable samples are dropped, not errors.
func (c *Client) FetchRange(ctx context.Context, siteID string, start, end time.Time) ([]models.Sample, error) {
	var samples []models.Sample
	cursor := ""
	pages := 0
	dropped := 0

	for {
		page, err := c.fetchPage(ctx, siteID, start, end, cursor)
		if err != nil {
			return nil, err
		}
		pages++

		for _, raw := range page.PointSamples {
			sample, ok := c.transform(siteID, raw)
			if !ok {
				dropped++
				continue
			}
			samples = append(samples, sample)
		}

		if page.NextCursor == "" {
			break
		}
		cursor = page.NextCursor
	}

	c.logger.Debug("Fetched upstream range",
		"site_id", siteID,
		"start", start.Format(time.RFC3339),
		"end", end.Format(time.RFC3339),
		"pages", pages,
		"samples", len(samples),
		"dropped", dropped,
	)

	return samples, nil
}

// fetchPage performs one paginated request with retry on transient statuses
func (c *Client) fetchPage(ctx context.Context, siteID string, start, end time.Time, cursor string) (*pageResponse, error) {
	endpoint := fmt.Sprintf("%s/sites/%s/timeseries/paginated", c.baseURL, url.PathEscape(siteID))

	q := url.Values{}
	q.Set("start_time", start.UTC().Format(time.RFC3339))
	q.Set("end_time", end.UTC().Format(time.RFC3339))
	q.Set("page_size", strconv.Itoa(c.pageSize))
	q.Set("raw_data", "true")
	if cursor != "" {
		q.Set("cursor", cursor)
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(
		backoff.NewExponentialBackOff(
			backoff.WithInitialInterval(c.backoff),
			backoff.WithMaxInterval(utils.MaxRetryBackoff),
		),
		// MaxRetries counts total attempts, backoff counts retries after the first
		uint64(c.maxRetries-1),
	), ctx)

	var page *pageResponse
	attempt := 0

	operation := func() error {
		attempt++

		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return backoff.Permanent(err)
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+q.Encode(), nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			// Network errors are retryable
			return fmt.Errorf("upstream request failed: %w", err)
		}
		defer resp.Body.Close()

		if retryableStatus(resp.StatusCode) {
			io.Copy(io.Discard, resp.Body)
			c.logger.Warn("Upstream returned retryable status",
				"site_id", siteID,
				"status", resp.StatusCode,
				"attempt", attempt,
			)
			return fmt.Errorf("upstream returned status %d", resp.StatusCode)
		}

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
			return backoff.Permanent(fmt.Errorf("upstream returned status %d: %s", resp.StatusCode, body))
		}

		var decoded pageResponse
		if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
			return backoff.Permanent(fmt.Errorf("failed to decode upstream response: %w", err))
		}

		page = &decoded
		return nil
	}

	if err := backoff.Retry(operation, policy); err != nil {
		return nil, fmt.Errorf("upstream fetch failed after %d attempts: %w", attempt, err)
	}

	return page, nil
}

func retryableStatus(status int) bool {
	switch status {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// transform converts a raw provider sample into the internal model
func (c *Client) transform(siteID string, raw rawSample) (models.Sample, bool) {
	if raw.Name == "" {
		return models.Sample{}, false
	}

	ts, ok := utils.ParseTimestamp(raw.Time)
	if !ok {
		return models.Sample{}, false
	}

	value, ok := utils.ToFloat64(raw.Value)
	if !ok {
		return models.Sample{}, false
	}

	return models.Sample{
		SiteID:    siteID,
		PointName: raw.Name,
		Timestamp: ts,
		Value:     value,
	}, true
}
