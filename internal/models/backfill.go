package models

import (
	"time"

	"github.com/gofiber/fiber/v2"
)

// Backfill job statuses
const (
	BackfillNotStarted = "NOT_STARTED"
	BackfillInProgress = "IN_PROGRESS"
	BackfillCompleted  = "COMPLETED"
	BackfillCancelled  = "CANCELLED"
	BackfillFailed     = "FAILED"
)

// Archive day statuses
const (
	ArchiveDayPending   = "pending"
	ArchiveDayCompleted = "completed"
	ArchiveDayFailed    = "failed"
)

// BackfillRequest represents a backfill start request
type BackfillRequest struct {
	SiteID       string `json:"site_id"`
	StartDate    string `json:"start_date"` // YYYY-MM-DD
	EndDate      string `json:"end_date"`   // YYYY-MM-DD
	ForceRestart bool   `json:"force_restart,omitempty"`

	StartDateParsed time.Time `json:"-"`
	EndDateParsed   time.Time `json:"-"`
}

// Validate validates the backfill request and parses the date bounds
func (r *BackfillRequest) Validate() error {
	if r.SiteID == "" {
		return &fiber.Error{
			Code:    fiber.StatusBadRequest,
			Message: "site_id is required",
		}
	}

	if r.StartDate == "" || r.EndDate == "" {
		return &fiber.Error{
			Code:    fiber.StatusBadRequest,
			Message: "start_date and end_date are required",
		}
	}

	start, err := time.ParseInLocation("2006-01-02", r.StartDate, time.UTC)
	if err != nil {
		return &fiber.Error{
			Code:    fiber.StatusBadRequest,
			Message: "start_date must be YYYY-MM-DD",
		}
	}

	end, err := time.ParseInLocation("2006-01-02", r.EndDate, time.UTC)
	if err != nil {
		return &fiber.Error{
			Code:    fiber.StatusBadRequest,
			Message: "end_date must be YYYY-MM-DD",
		}
	}

	if end.Before(start) {
		return &fiber.Error{
			Code:    fiber.StatusBadRequest,
			Message: "end_date must not be before start_date",
		}
	}

	r.StartDateParsed = start
	r.EndDateParsed = end

	return nil
}

// BackfillState is the resumable cursor persisted in the job-state store.
// It is the single source of truth for resumption: on restart the importer
// continues from CurrentDate unless force_restart is given.
type BackfillState struct {
	BackfillID       string `json:"backfill_id"`
	SiteID           string `json:"site_id"`
	StartDate        string `json:"start_date"`   // YYYY-MM-DD
	EndDate          string `json:"end_date"`     // YYYY-MM-DD
	CurrentDate      string `json:"current_date"` // Next day to process
	Status           string `json:"status"`
	RecordsProcessed int64  `json:"records_processed"`
	DaysCompleted    int    `json:"days_completed"`
	DaysTotal        int    `json:"days_total"`
	LastError        string `json:"last_error,omitempty"`
	StartedAt        string `json:"started_at,omitempty"` // RFC3339, set on the first run
	UpdatedAt        string `json:"updated_at"`           // RFC3339
}

// ArchiveDayState is the per-(site, day) completion marker for the archival
// pipeline. Completed days are never reprocessed.
type ArchiveDayState struct {
	SiteID      string `json:"site_id"`
	Day         string `json:"day"` // YYYY-MM-DD
	Status      string `json:"status"`
	ArchivePath string `json:"archive_path,omitempty"`
	RowCount    int64  `json:"row_count,omitempty"`
	CompletedAt string `json:"completed_at,omitempty"` // RFC3339
	LastError   string `json:"last_error,omitempty"`
}
