package services

import (
	"context"
	"time"

	"github.com/buildingvitals/vitalstore/internal/logging"
	"github.com/buildingvitals/vitalstore/internal/models"
	"github.com/buildingvitals/vitalstore/internal/query"
)

// QueryService handles timeseries query business logic
type QueryService struct {
	logger *logging.Logger
	engine *query.Engine
}

// NewQueryService creates a new QueryService
func NewQueryService(logger *logging.Logger, engine *query.Engine) *QueryService {
	return &QueryService{
		logger: logger,
		engine: engine,
	}
}

// Execute runs a validated query through the tiered engine
func (s *QueryService) Execute(ctx context.Context, input *models.QueryRequest) (*models.QueryResponse, error) {
	startTime := time.Now()

	resp, err := s.engine.Query(ctx, input)
	if err != nil {
		latency := time.Since(startTime)
		s.logger.Error("Query failed",
			"site_id", input.SiteID,
			"mode", input.Mode,
			"error", err,
			"latency_ms", latency.Milliseconds())
		return nil, &ServiceError{
			Code:    "QUERY_FAILED",
			Message: "Failed to execute query",
			Details: map[string]interface{}{"error": err.Error()},
		}
	}

	latency := time.Since(startTime)
	s.logger.Info("Query completed",
		"site_id", input.SiteID,
		"mode", input.Mode,
		"points", len(input.PointNames),
		"aggregation", input.Aggregation,
		"samples", resp.Count,
		"sources", resp.Metadata.Sources,
		"cache_hit", resp.Metadata.CacheHit,
		"degraded", resp.Metadata.Degraded,
		"latency_ms", latency.Milliseconds())

	return resp, nil
}
