// Package handlers contains the HTTP layer: request parsing, service
// dispatch, and response shaping.
package handlers

import (
	"github.com/buildingvitals/vitalstore/internal/logging"
	"github.com/buildingvitals/vitalstore/internal/services"
)

// Handler contains all HTTP handlers
type Handler struct {
	logger          *logging.Logger
	queryService    *services.QueryService
	backfillService *services.BackfillService
	adminService    *services.AdminService
}

// New creates a new handler instance
func New(
	logger *logging.Logger,
	queryService *services.QueryService,
	backfillService *services.BackfillService,
	adminService *services.AdminService,
) *Handler {
	return &Handler{
		logger:          logger,
		queryService:    queryService,
		backfillService: backfillService,
		adminService:    adminService,
	}
}
