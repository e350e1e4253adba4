package handlers

import (
	"github.com/apaysummit/summit-registration/app/dto"
	businessflow "github.com/apaysummit/summit-registration/business_flow"
	"github.com/gofiber/fiber/v3"
)

// InvoiceHandlerInterface defines the contract for invoice handlers
type InvoiceHandlerInterface interface {
	ListInvoices(c fiber.Ctx) error
	GetInvoice(c fiber.Ctx) error
	DownloadInvoicePDF(c fiber.Ctx) error
	QuotePrice(c fiber.Ctx) error
	AdminListInvoices(c fiber.Ctx) error
	AdminExportInvoices(c fiber.Ctx) error
	AdminRecomputeInvoice(c fiber.Ctx) error
}

// InvoiceHandler handles invoice views, exports and pricing quotes
type InvoiceHandler struct {
	baseHandler
	flow businessflow.InvoiceFlow
}

// NewInvoiceHandler creates a new invoice handler
func NewInvoiceHandler(flow businessflow.InvoiceFlow) *InvoiceHandler {
	return &InvoiceHandler{
		baseHandler: newBaseHandler(),
		flow:        flow,
	}
}

// ListInvoices pages through the caller's invoices
// @Summary List invoices
// @Tags Invoices
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} dto.APIResponse{data=dto.ListInvoicesResponse} "Invoices with totals"
// @Router /api/v1/invoices [get]
func (h *InvoiceHandler) ListInvoices(c fiber.Ctx) error {
	accountID, _, ok := caller(c)
	if !ok {
		return h.unauthenticated(c)
	}

	var req dto.ListInvoicesRequest
	if err := c.Bind().Query(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid query parameters", "INVALID_REQUEST", err.Error())
	}
	req.AccountID = accountID

	ctx, cancel := createRequestContext(c, "/api/v1/invoices")
	defer cancel()

	result, err := h.flow.ListInvoices(ctx, &req, clientMetadata(c))
	if err != nil {
		return h.respondFlowError(c, err, "Failed to list invoices", "LIST_INVOICES_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Invoices retrieved successfully", result)
}

// GetInvoice returns an invoice with its items and participants. Staff may view any invoice.
// @Summary Invoice detail
// @Tags Invoices
// @Produce json
// @Security BearerAuth
// @Param id path int true "Invoice ID"
// @Success 200 {object} dto.APIResponse{data=dto.InvoiceDetailDTO} "Invoice"
// @Failure 403 {object} dto.APIResponse "Not the invoice owner"
// @Failure 404 {object} dto.APIResponse "Invoice not found"
// @Router /api/v1/invoices/{id} [get]
func (h *InvoiceHandler) GetInvoice(c fiber.Ctx) error {
	req, ok := h.invoiceRequest(c)
	if !ok {
		return nil
	}

	ctx, cancel := createRequestContext(c, "/api/v1/invoices/{id}")
	defer cancel()

	result, err := h.flow.GetInvoice(ctx, req, clientMetadata(c))
	if err != nil {
		return h.respondFlowError(c, err, "Failed to load invoice", "GET_INVOICE_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Invoice retrieved successfully", result)
}

// DownloadInvoicePDF renders the invoice as a PDF attachment
// @Summary Download invoice PDF
// @Tags Invoices
// @Produce application/pdf
// @Security BearerAuth
// @Param id path int true "Invoice ID"
// @Success 200 {string} string "PDF document"
// @Router /api/v1/invoices/{id}/pdf [get]
func (h *InvoiceHandler) DownloadInvoicePDF(c fiber.Ctx) error {
	req, ok := h.invoiceRequest(c)
	if !ok {
		return nil
	}

	ctx, cancel := createRequestContext(c, "/api/v1/invoices/{id}/pdf")
	defer cancel()

	file, err := h.flow.DownloadInvoicePDF(ctx, req, clientMetadata(c))
	if err != nil {
		return h.respondFlowError(c, err, businessMessage(err, "Failed to download invoice"), "DOWNLOAD_INVOICE_FAILED")
	}

	return h.sendFile(c, file, "attachment")
}

// QuotePrice prices a participant count without creating anything
// @Summary Pricing quote
// @Tags Pricing
// @Produce json
// @Param count query int true "Participant count"
// @Success 200 {object} dto.APIResponse{data=dto.PricingQuoteResponse} "Quote"
// @Failure 400 {object} dto.APIResponse "Invalid count"
// @Router /api/v1/pricing/quote [get]
func (h *InvoiceHandler) QuotePrice(c fiber.Ctx) error {
	var req dto.PricingQuoteRequest
	if err := c.Bind().Query(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid query parameters", "INVALID_REQUEST", err.Error())
	}
	if ok, resp := h.validate(c, &req); !ok {
		return resp
	}

	ctx, cancel := createRequestContext(c, "/api/v1/pricing/quote")
	defer cancel()

	result, err := h.flow.QuotePrice(ctx, &req)
	if err != nil {
		return h.respondFlowError(c, err, "Failed to price quote", "PRICING_QUOTE_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Quote calculated", result)
}

// AdminListInvoices lists every invoice with status filter and search
// @Summary Staff invoice list
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param status query string false "Invoice status"
// @Param search query string false "Invoice number, username, email or payment reference"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} dto.APIResponse{data=dto.AdminListInvoicesResponse} "Invoices"
// @Failure 403 {object} dto.APIResponse "Staff only"
// @Router /api/v1/admin/invoices [get]
func (h *InvoiceHandler) AdminListInvoices(c fiber.Ctx) error {
	var req dto.AdminListInvoicesRequest
	if err := c.Bind().Query(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid query parameters", "INVALID_REQUEST", err.Error())
	}
	if ok, resp := h.validate(c, &req); !ok {
		return resp
	}

	ctx, cancel := createRequestContext(c, "/api/v1/admin/invoices")
	defer cancel()

	result, err := h.flow.AdminListInvoices(ctx, &req, clientMetadata(c))
	if err != nil {
		return h.respondFlowError(c, err, "Failed to list invoices", "ADMIN_LIST_INVOICES_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Invoices retrieved successfully", result)
}

// AdminExportInvoices downloads the filtered invoice list as CSV or XLSX
// @Summary Export invoices
// @Tags Admin
// @Produce text/csv
// @Security BearerAuth
// @Param status query string false "Invoice status"
// @Param search query string false "Search term"
// @Param format query string false "csv or xlsx"
// @Success 200 {string} string "Export file"
// @Router /api/v1/admin/invoices/export [get]
func (h *InvoiceHandler) AdminExportInvoices(c fiber.Ctx) error {
	var req dto.ExportInvoicesRequest
	if err := c.Bind().Query(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid query parameters", "INVALID_REQUEST", err.Error())
	}
	if ok, resp := h.validate(c, &req); !ok {
		return resp
	}

	ctx, cancel := createRequestContext(c, "/api/v1/admin/invoices/export")
	defer cancel()

	file, err := h.flow.ExportInvoices(ctx, &req, clientMetadata(c))
	if err != nil {
		return h.respondFlowError(c, err, "Failed to export invoices", "EXPORT_INVOICES_FAILED")
	}

	return h.sendFile(c, file, "attachment")
}

// AdminRecomputeInvoice reprices an invoice from its current participant count
// @Summary Recompute invoice totals
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param id path int true "Invoice ID"
// @Success 200 {object} dto.APIResponse{data=dto.InvoiceDetailDTO} "Recomputed invoice"
// @Router /api/v1/admin/invoices/{id}/recompute [post]
func (h *InvoiceHandler) AdminRecomputeInvoice(c fiber.Ctx) error {
	invoiceID, ok := pathID(c, "id")
	if !ok {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid invoice ID", "INVALID_INVOICE_ID", nil)
	}

	ctx, cancel := createRequestContext(c, "/api/v1/admin/invoices/{id}/recompute")
	defer cancel()

	result, err := h.flow.RecomputeInvoice(ctx, &dto.RecomputeInvoiceRequest{InvoiceID: invoiceID}, clientMetadata(c))
	if err != nil {
		return h.respondFlowError(c, err, "Failed to recompute invoice", "RECOMPUTE_INVOICE_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Invoice totals recomputed", result)
}

// invoiceRequest reads the caller and invoice id. When ok is false the error response has been written.
func (h *InvoiceHandler) invoiceRequest(c fiber.Ctx) (*dto.GetInvoiceRequest, bool) {
	accountID, isStaff, ok := caller(c)
	if !ok {
		_ = h.unauthenticated(c)
		return nil, false
	}
	invoiceID, ok := pathID(c, "id")
	if !ok {
		_ = h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid invoice ID", "INVALID_INVOICE_ID", nil)
		return nil, false
	}
	return &dto.GetInvoiceRequest{AccountID: accountID, IsStaff: isStaff, InvoiceID: invoiceID}, true
}
