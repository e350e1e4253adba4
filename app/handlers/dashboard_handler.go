package handlers

import (
	"github.com/apaysummit/summit-registration/app/dto"
	businessflow "github.com/apaysummit/summit-registration/business_flow"
	"github.com/gofiber/fiber/v3"
)

// DashboardHandler serves the landing view
type DashboardHandler struct {
	baseHandler
	flow businessflow.DashboardFlow
}

// NewDashboardHandler creates a new dashboard handler
func NewDashboardHandler(flow businessflow.DashboardFlow) *DashboardHandler {
	return &DashboardHandler{
		baseHandler: newBaseHandler(),
		flow:        flow,
	}
}

// GetDashboard returns system statistics to staff and invoice standing to registrants
// @Summary Dashboard
// @Tags Dashboard
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.APIResponse{data=dto.DashboardResponse} "Dashboard"
// @Router /api/v1/dashboard [get]
func (h *DashboardHandler) GetDashboard(c fiber.Ctx) error {
	accountID, isStaff, ok := caller(c)
	if !ok {
		return h.unauthenticated(c)
	}

	ctx, cancel := createRequestContext(c, "/api/v1/dashboard")
	defer cancel()

	result, err := h.flow.GetDashboard(ctx, &dto.DashboardRequest{AccountID: accountID, IsStaff: isStaff}, clientMetadata(c))
	if err != nil {
		return h.respondFlowError(c, err, "Failed to load dashboard", "DASHBOARD_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Dashboard retrieved successfully", result)
}
