package services

import (
	"context"
	"sync"
	"time"

	"github.com/buildingvitals/vitalstore/internal/backfill"
	"github.com/buildingvitals/vitalstore/internal/logging"
	"github.com/buildingvitals/vitalstore/internal/models"
)

// BackfillService handles backfill job lifecycle. Start is asynchronous: the
// import itself runs in a background goroutine while the caller gets the job
// ID immediately.
type BackfillService struct {
	logger   *logging.Logger
	importer *backfill.Importer

	mu      sync.Mutex
	running map[string]bool
}

// NewBackfillService creates a new BackfillService
func NewBackfillService(logger *logging.Logger, importer *backfill.Importer) *BackfillService {
	return &BackfillService{
		logger:   logger,
		importer: importer,
		running:  make(map[string]bool),
	}
}

// Start creates or resumes a backfill job and launches its first run in the
// background
func (s *BackfillService) Start(ctx context.Context, req *models.BackfillRequest) (*models.BackfillStartResponse, error) {
	resp, _, err := s.importer.Start(ctx, req)
	if err != nil {
		s.logger.Error("Backfill start failed", "site_id", req.SiteID, "error", err)
		return nil, &ServiceError{
			Code:    "BACKFILL_START_FAILED",
			Message: "Failed to start backfill",
			Details: map[string]interface{}{"error": err.Error()},
		}
	}

	s.launch(resp.BackfillID)
	return resp, nil
}

// launch runs the job in the background unless a run is already active
func (s *BackfillService) launch(backfillID string) {
	s.mu.Lock()
	if s.running[backfillID] {
		s.mu.Unlock()
		return
	}
	s.running[backfillID] = true
	s.mu.Unlock()

	go func() {
		defer func() {
			s.mu.Lock()
			delete(s.running, backfillID)
			s.mu.Unlock()
		}()

		// The run outlives the HTTP request that triggered it
		if err := s.importer.Run(context.Background(), backfillID); err != nil {
			s.logger.Error("Backfill run failed", "backfill_id", backfillID, "error", err)
		}
	}()
}

// Resume launches another run of an existing job, picking up at its cursor
func (s *BackfillService) Resume(ctx context.Context, backfillID string) error {
	state, err := s.importer.State(ctx, backfillID)
	if err != nil {
		return &ServiceError{
			Code:    "BACKFILL_STATUS_FAILED",
			Message: "Failed to read backfill state",
			Details: map[string]interface{}{"error": err.Error()},
		}
	}
	if state == nil {
		return NewServiceError("BACKFILL_NOT_FOUND", "Unknown backfill ID")
	}

	s.launch(backfillID)
	return nil
}

// Status reports a job's progress. An empty backfillID returns the most
// recently started job.
func (s *BackfillService) Status(ctx context.Context, backfillID string) (*models.BackfillStatusResponse, error) {
	var state *models.BackfillState
	var err error

	if backfillID == "" {
		state, err = s.importer.Current(ctx)
	} else {
		state, err = s.importer.State(ctx, backfillID)
	}
	if err != nil {
		return nil, &ServiceError{
			Code:    "BACKFILL_STATUS_FAILED",
			Message: "Failed to read backfill state",
			Details: map[string]interface{}{"error": err.Error()},
		}
	}
	if state == nil {
		return nil, NewServiceError("BACKFILL_NOT_FOUND", "Unknown backfill ID")
	}

	progress := 0.0
	if state.DaysTotal > 0 {
		progress = float64(state.DaysCompleted) / float64(state.DaysTotal) * 100
	}

	return &models.BackfillStatusResponse{
		BackfillID:          state.BackfillID,
		Status:              state.Status,
		CurrentDate:         state.CurrentDate,
		DaysCompleted:       state.DaysCompleted,
		DaysTotal:           state.DaysTotal,
		ProgressPercent:     progress,
		RecordsProcessed:    state.RecordsProcessed,
		EstimatedCompletion: estimateCompletion(state, time.Now().UTC()),
	}, nil
}

// estimateCompletion projects the finish time of a running job from its
// per-day pace so far. Jobs without measurable progress get no estimate.
func estimateCompletion(state *models.BackfillState, now time.Time) string {
	if state.Status != models.BackfillInProgress || state.DaysCompleted <= 0 || state.StartedAt == "" {
		return ""
	}

	started, err := time.Parse(time.RFC3339, state.StartedAt)
	if err != nil {
		return ""
	}

	elapsed := now.Sub(started)
	if elapsed <= 0 {
		return ""
	}

	perDay := elapsed / time.Duration(state.DaysCompleted)
	remaining := state.DaysTotal - state.DaysCompleted
	return now.Add(perDay * time.Duration(remaining)).UTC().Format(time.RFC3339)
}

// Cancel requests cancellation of a job. A running import stops at its next
// day boundary.
func (s *BackfillService) Cancel(ctx context.Context, backfillID string) (*models.BackfillCancelResponse, error) {
	if backfillID == "" {
		state, err := s.importer.Current(ctx)
		if err != nil || state == nil {
			return nil, NewServiceError("BACKFILL_NOT_FOUND", "No active backfill")
		}
		backfillID = state.BackfillID
	}

	state, err := s.importer.Cancel(ctx, backfillID)
	if err != nil {
		return nil, &ServiceError{
			Code:    "BACKFILL_CANCEL_FAILED",
			Message: "Failed to cancel backfill",
			Details: map[string]interface{}{"error": err.Error()},
		}
	}

	return &models.BackfillCancelResponse{
		Status:        state.Status,
		DaysCompleted: state.DaysCompleted,
	}, nil
}
