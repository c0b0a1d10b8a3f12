package handlers

import (
	"strings"

	"github.com/buildingvitals/vitalstore/internal/models"
	"github.com/buildingvitals/vitalstore/internal/services"
	"github.com/gofiber/fiber/v2"
)

// Query handles timeseries query requests
// GET /v1/timeseries/query?site_name=xxx&point_names=a,b&start_time=xxx&end_time=xxx&aggregation=avg&mode=tiered
func (h *Handler) Query(c *fiber.Ctx) error {
	// Point names are comma-separated; an empty list selects nothing.
	// "points" is accepted as a legacy alias.
	pointsStr := c.Query("point_names")
	if pointsStr == "" {
		pointsStr = c.Query("points")
	}

	var points []string
	if pointsStr != "" {
		points = strings.Split(pointsStr, ",")
		for i := range points {
			points[i] = strings.TrimSpace(points[i])
		}
	}

	input := models.NewQueryRequest(
		c.Query("site_name"),
		points,
		c.Query("start_time"),
		c.Query("end_time"),
		c.Query("aggregation", "none"),
		c.Query("mode", models.QueryModeTiered),
	)

	if err := input.Validate(); err != nil {
		fiberErr := err.(*fiber.Error)
		return c.Status(fiberErr.Code).JSON(models.ErrorResponse{
			Error: models.ErrorDetail{
				Code:    "INVALID_REQUEST",
				Message: fiberErr.Message,
			},
		})
	}

	result, err := h.queryService.Execute(c.Context(), input)
	if err != nil {
		if svcErr, ok := err.(*services.ServiceError); ok {
			return c.Status(fiber.StatusInternalServerError).JSON(models.ErrorResponse{
				Error: models.ErrorDetail{
					Code:    svcErr.Code,
					Message: svcErr.Message,
					Details: svcErr.Details,
				},
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(models.ErrorResponse{
			Error: models.ErrorDetail{
				Code:    "QUERY_FAILED",
				Message: err.Error(),
			},
		})
	}

	return c.JSON(result)
}
