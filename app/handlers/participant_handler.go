package handlers

import (
	"github.com/apaysummit/summit-registration/app/dto"
	businessflow "github.com/apaysummit/summit-registration/business_flow"
	"github.com/gofiber/fiber/v3"
)

// ParticipantHandlerInterface defines the contract for participant handlers
type ParticipantHandlerInterface interface {
	AddParticipant(c fiber.Ctx) error
	BulkAddParticipants(c fiber.Ctx) error
	ListParticipants(c fiber.Ctx) error
	ExportParticipants(c fiber.Ctx) error
	DetachParticipant(c fiber.Ctx) error
}

// ParticipantHandler handles participant registration requests
type ParticipantHandler struct {
	baseHandler
	flow businessflow.ParticipantFlow
}

// NewParticipantHandler creates a new participant handler
func NewParticipantHandler(flow businessflow.ParticipantFlow) *ParticipantHandler {
	return &ParticipantHandler{
		baseHandler: newBaseHandler(),
		flow:        flow,
	}
}

// AddParticipant registers one participant on the caller's open invoice
// @Summary Add participant
// @Tags Participants
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.AddParticipantRequest true "Participant"
// @Success 201 {object} dto.APIResponse{data=dto.AddParticipantResponse} "Participant added"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Router /api/v1/participants [post]
func (h *ParticipantHandler) AddParticipant(c fiber.Ctx) error {
	accountID, _, ok := caller(c)
	if !ok {
		return h.unauthenticated(c)
	}

	var req dto.AddParticipantRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if ok, resp := h.validate(c, &req); !ok {
		return resp
	}
	req.AccountID = accountID

	ctx, cancel := createRequestContext(c, "/api/v1/participants")
	defer cancel()

	result, err := h.flow.AddParticipant(ctx, &req, clientMetadata(c))
	if err != nil {
		return h.respondFlowError(c, err, "Failed to add participant", "ADD_PARTICIPANT_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusCreated, result.Message, result)
}

// BulkAddParticipants imports participants, one "Name,Email,Phone" row per line
// @Summary Bulk add participants
// @Description Rejected lines are reported in errors; accepted lines are added to one invoice
// @Tags Participants
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.BulkAddParticipantsRequest true "Participants data"
// @Success 200 {object} dto.APIResponse{data=dto.BulkAddParticipantsResponse} "Import summary"
// @Router /api/v1/participants/bulk [post]
func (h *ParticipantHandler) BulkAddParticipants(c fiber.Ctx) error {
	accountID, _, ok := caller(c)
	if !ok {
		return h.unauthenticated(c)
	}

	var req dto.BulkAddParticipantsRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if ok, resp := h.validate(c, &req); !ok {
		return resp
	}
	req.AccountID = accountID

	ctx, cancel := createRequestContext(c, "/api/v1/participants/bulk")
	defer cancel()

	result, err := h.flow.BulkAddParticipants(ctx, &req, clientMetadata(c))
	if err != nil {
		return h.respondFlowError(c, err, "Failed to add participants", "BULK_ADD_PARTICIPANTS_FAILED")
	}

	status := fiber.StatusOK
	if result.AddedCount > 0 {
		status = fiber.StatusCreated
	}
	return h.SuccessResponse(c, status, result.Message, result)
}

// ListParticipants pages through the caller's participants
// @Summary List participants
// @Tags Participants
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} dto.APIResponse{data=dto.ListParticipantsResponse} "Participants"
// @Router /api/v1/participants [get]
func (h *ParticipantHandler) ListParticipants(c fiber.Ctx) error {
	accountID, _, ok := caller(c)
	if !ok {
		return h.unauthenticated(c)
	}

	var req dto.ListParticipantsRequest
	if err := c.Bind().Query(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid query parameters", "INVALID_REQUEST", err.Error())
	}
	req.AccountID = accountID

	ctx, cancel := createRequestContext(c, "/api/v1/participants")
	defer cancel()

	result, err := h.flow.ListParticipants(ctx, &req, clientMetadata(c))
	if err != nil {
		return h.respondFlowError(c, err, "Failed to list participants", "LIST_PARTICIPANTS_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Participants retrieved successfully", result)
}

// ExportParticipants downloads the caller's participants as CSV or XLSX
// @Summary Export participants
// @Tags Participants
// @Produce text/csv
// @Security BearerAuth
// @Param format query string false "csv or xlsx"
// @Success 200 {string} string "Export file"
// @Router /api/v1/participants/export [get]
func (h *ParticipantHandler) ExportParticipants(c fiber.Ctx) error {
	accountID, _, ok := caller(c)
	if !ok {
		return h.unauthenticated(c)
	}

	var req dto.ExportParticipantsRequest
	if err := c.Bind().Query(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid query parameters", "INVALID_REQUEST", err.Error())
	}
	if ok, resp := h.validate(c, &req); !ok {
		return resp
	}
	req.AccountID = accountID

	ctx, cancel := createRequestContext(c, "/api/v1/participants/export")
	defer cancel()

	file, err := h.flow.ExportParticipants(ctx, &req, clientMetadata(c))
	if err != nil {
		return h.respondFlowError(c, err, "Failed to export participants", "EXPORT_PARTICIPANTS_FAILED")
	}

	return h.sendFile(c, file, "attachment")
}

// DetachParticipant removes a participant from an invoice that is still pending
// @Summary Remove participant from invoice
// @Tags Invoices
// @Produce json
// @Security BearerAuth
// @Param id path int true "Invoice ID"
// @Param participant_id path int true "Participant ID"
// @Success 200 {object} dto.APIResponse{data=dto.DetachParticipantResponse} "Invoice repriced"
// @Failure 404 {object} dto.APIResponse "Invoice or participant not found"
// @Failure 409 {object} dto.APIResponse "Invoice no longer editable"
// @Router /api/v1/invoices/{id}/participants/{participant_id} [delete]
func (h *ParticipantHandler) DetachParticipant(c fiber.Ctx) error {
	accountID, isStaff, ok := caller(c)
	if !ok {
		return h.unauthenticated(c)
	}

	invoiceID, ok := pathID(c, "id")
	if !ok {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid invoice ID", "INVALID_INVOICE_ID", nil)
	}
	participantID, ok := pathID(c, "participant_id")
	if !ok {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid participant ID", "INVALID_PARTICIPANT_ID", nil)
	}

	ctx, cancel := createRequestContext(c, "/api/v1/invoices/{id}/participants/{participant_id}")
	defer cancel()

	req := dto.DetachParticipantRequest{
		AccountID:     accountID,
		IsStaff:       isStaff,
		InvoiceID:     invoiceID,
		ParticipantID: participantID,
	}
	result, err := h.flow.DetachParticipant(ctx, &req, clientMetadata(c))
	if err != nil {
		if businessflow.IsParticipantNotOnInvoice(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Participant is not attached to this invoice", "PARTICIPANT_NOT_ON_INVOICE", nil)
		}
		return h.respondFlowError(c, err, "Failed to remove participant from invoice", "DETACH_PARTICIPANT_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, result.Message, result)
}
