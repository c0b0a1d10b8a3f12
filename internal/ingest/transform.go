// Package ingest consumes live telemetry from the message queue and writes
// it into the hot store.
package ingest

import (
	"encoding/json"
	"fmt"

	"github.com/buildingvitals/vitalstore/internal/models"
	"github.com/buildingvitals/vitalstore/internal/utils"
)

// rawSample is one reading as published by site gateways. Time and value
// arrive in whatever shape the gateway produces.
type rawSample struct {
	Name  string      `json:"name"`
	Time  interface{} `json:"time"`
	Value interface{} `json:"value"`
}

// batchPayload is the message envelope published per site
type batchPayload struct {
	SiteID  string      `json:"site_id,omitempty"`
	Samples []rawSample `json:"samples"`
}

// DecodeBatch parses a queue message into samples for the given site. Samples
// with unparseable times or non-numeric values are dropped, not failed: one
// bad reading must not poison the batch. It returns the samples and the
// number of dropped readings.
func DecodeBatch(siteID string, data []byte) ([]models.Sample, int, error) {
	var payload batchPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, 0, fmt.Errorf("failed to decode batch: %w", err)
	}

	if payload.SiteID != "" {
		siteID = payload.SiteID
	}
	if siteID == "" {
		return nil, 0, fmt.Errorf("batch has no site_id")
	}

	samples := make([]models.Sample, 0, len(payload.Samples))
	dropped := 0
	for _, raw := range payload.Samples {
		if raw.Name == "" {
			dropped++
			continue
		}
		ts, ok := utils.ParseTimestamp(raw.Time)
		if !ok {
			dropped++
			continue
		}
		value, ok := utils.ToFloat64(raw.Value)
		if !ok {
			dropped++
			continue
		}
		samples = append(samples, models.Sample{
			SiteID:    siteID,
			PointName: raw.Name,
			Timestamp: ts,
			Value:     value,
		})
	}

	return samples, dropped, nil
}
