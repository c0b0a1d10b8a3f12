package handlers

import (
	"github.com/buildingvitals/vitalstore/internal/models"
	"github.com/buildingvitals/vitalstore/internal/services"
	"github.com/gofiber/fiber/v2"
)

// BackfillStart handles backfill start requests. The import runs in the
// background; the response carries the job ID for polling.
// POST /v1/backfill/start
func (h *Handler) BackfillStart(c *fiber.Ctx) error {
	var req models.BackfillRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
			Error: models.ErrorDetail{
				Code:    "INVALID_JSON",
				Message: "Failed to parse JSON body",
				Details: map[string]interface{}{"error": err.Error()},
			},
		})
	}

	if err := req.Validate(); err != nil {
		fiberErr := err.(*fiber.Error)
		return c.Status(fiberErr.Code).JSON(models.ErrorResponse{
			Error: models.ErrorDetail{
				Code:    "INVALID_REQUEST",
				Message: fiberErr.Message,
			},
		})
	}

	result, err := h.backfillService.Start(c.Context(), &req)
	if err != nil {
		return h.serviceError(c, err, "BACKFILL_START_FAILED")
	}

	return c.Status(fiber.StatusAccepted).JSON(result)
}

// BackfillStatus handles backfill status requests. Without a backfill_id it
// reports the most recently started job.
// GET /v1/backfill/status?backfill_id=xxx
func (h *Handler) BackfillStatus(c *fiber.Ctx) error {
	result, err := h.backfillService.Status(c.Context(), c.Query("backfill_id"))
	if err != nil {
		if svcErr, ok := err.(*services.ServiceError); ok && svcErr.Code == "BACKFILL_NOT_FOUND" {
			return c.Status(fiber.StatusNotFound).JSON(models.ErrorResponse{
				Error: models.ErrorDetail{
					Code:    svcErr.Code,
					Message: svcErr.Message,
				},
			})
		}
		return h.serviceError(c, err, "BACKFILL_STATUS_FAILED")
	}

	return c.JSON(result)
}

// BackfillCancel handles backfill cancel requests. A running import stops at
// its next day boundary; completed days stay imported.
// POST /v1/backfill/cancel
func (h *Handler) BackfillCancel(c *fiber.Ctx) error {
	var body struct {
		BackfillID string `json:"backfill_id"`
	}
	// An empty body cancels the current job
	_ = c.BodyParser(&body)

	result, err := h.backfillService.Cancel(c.Context(), body.BackfillID)
	if err != nil {
		if svcErr, ok := err.(*services.ServiceError); ok && svcErr.Code == "BACKFILL_NOT_FOUND" {
			return c.Status(fiber.StatusNotFound).JSON(models.ErrorResponse{
				Error: models.ErrorDetail{
					Code:    svcErr.Code,
					Message: svcErr.Message,
				},
			})
		}
		return h.serviceError(c, err, "BACKFILL_CANCEL_FAILED")
	}

	return c.JSON(result)
}

// serviceError maps a service layer error onto the JSON error envelope
func (h *Handler) serviceError(c *fiber.Ctx, err error, fallbackCode string) error {
	if svcErr, ok := err.(*services.ServiceError); ok {
		status := fiber.StatusInternalServerError
		if svcErr.Code == "BAD_REQUEST" {
			status = fiber.StatusBadRequest
		}
		return c.Status(status).JSON(models.ErrorResponse{
			Error: models.ErrorDetail{
				Code:    svcErr.Code,
				Message: svcErr.Message,
				Details: svcErr.Details,
			},
		})
	}
	return c.Status(fiber.StatusInternalServerError).JSON(models.ErrorResponse{
		Error: models.ErrorDetail{
			Code:    fallbackCode,
			Message: err.Error(),
		},
	})
}
