package handlers

import (
	"time"

	"github.com/buildingvitals/vitalstore/internal/models"
	"github.com/gofiber/fiber/v2"
)

// ArchiveRun triggers a synchronous archival run
// POST /v1/admin/archive/run
func (h *Handler) ArchiveRun(c *fiber.Ctx) error {
	var body struct {
		SiteIDs []string `json:"site_ids"`
	}
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
			Error: models.ErrorDetail{
				Code:    "INVALID_JSON",
				Message: "Failed to parse JSON body",
				Details: map[string]interface{}{"error": err.Error()},
			},
		})
	}

	result, err := h.adminService.RunArchival(c.Context(), body.SiteIDs)
	if err != nil {
		return h.serviceError(c, err, "ARCHIVAL_FAILED")
	}

	return c.JSON(result)
}

// ArchiveStatus reports per-day archival markers for a site
// GET /v1/admin/archive/status?site_name=xxx&start_date=YYYY-MM-DD&end_date=YYYY-MM-DD
func (h *Handler) ArchiveStatus(c *fiber.Ctx) error {
	start, end, err := parseDayRange(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
			Error: models.ErrorDetail{
				Code:    "INVALID_REQUEST",
				Message: err.Error(),
			},
		})
	}

	states, err := h.adminService.ArchiveStatus(c.Context(), c.Query("site_name"), start, end)
	if err != nil {
		return h.serviceError(c, err, "ARCHIVE_STATUS_FAILED")
	}

	return c.JSON(fiber.Map{
		"site_id": c.Query("site_name"),
		"days":    states,
	})
}

// HotStoreStats reports hot tier occupancy
// GET /v1/admin/hotstore/stats
func (h *Handler) HotStoreStats(c *fiber.Ctx) error {
	stats, err := h.adminService.HotStoreStats(c.Context())
	if err != nil {
		return h.serviceError(c, err, "STATS_FAILED")
	}

	return c.JSON(stats)
}

// Coverage reports per-day sample presence across tiers
// GET /v1/admin/coverage?site_name=xxx&start_date=YYYY-MM-DD&end_date=YYYY-MM-DD
func (h *Handler) Coverage(c *fiber.Ctx) error {
	start, end, err := parseDayRange(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
			Error: models.ErrorDetail{
				Code:    "INVALID_REQUEST",
				Message: err.Error(),
			},
		})
	}

	result, err := h.adminService.Coverage(c.Context(), c.Query("site_name"), start, end)
	if err != nil {
		return h.serviceError(c, err, "COVERAGE_FAILED")
	}

	return c.JSON(result)
}

// parseDayRange parses the start_date/end_date query parameters
func parseDayRange(c *fiber.Ctx) (time.Time, time.Time, error) {
	start, err := time.ParseInLocation("2006-01-02", c.Query("start_date"), time.UTC)
	if err != nil {
		return time.Time{}, time.Time{}, fiber.NewError(fiber.StatusBadRequest, "start_date must be YYYY-MM-DD")
	}

	end, err := time.ParseInLocation("2006-01-02", c.Query("end_date"), time.UTC)
	if err != nil {
		return time.Time{}, time.Time{}, fiber.NewError(fiber.StatusBadRequest, "end_date must be YYYY-MM-DD")
	}

	if end.Before(start) {
		return time.Time{}, time.Time{}, fiber.NewError(fiber.StatusBadRequest, "end_date must not be before start_date")
	}

	return start, end, nil
}
