package handlers

import (
	"github.com/apaysummit/summit-registration/app/dto"
	businessflow "github.com/apaysummit/summit-registration/business_flow"
	"github.com/gofiber/fiber/v3"
)

// proofFormField is the multipart field carrying the proof of payment file
const proofFormField = "proof_of_payment"

// PaymentHandlerInterface defines the contract for payment handlers
type PaymentHandlerInterface interface {
	UploadProof(c fiber.Ctx) error
	DownloadProof(c fiber.Ctx) error
	PreviewProof(c fiber.Ctx) error
	AdminUpdatePaymentStatus(c fiber.Ctx) error
	AdminBulkUpdateStatus(c fiber.Ctx) error
}

// PaymentHandler handles proof of payment uploads and staff payment updates
type PaymentHandler struct {
	baseHandler
	flow businessflow.PaymentFlow
}

// NewPaymentHandler creates a new payment handler
func NewPaymentHandler(flow businessflow.PaymentFlow) *PaymentHandler {
	return &PaymentHandler{
		baseHandler: newBaseHandler(),
		flow:        flow,
	}
}

// UploadProof attaches a proof of payment to an invoice and queues it for review
// @Summary Upload proof of payment
// @Description pdf/jpg/jpeg/png, at most 5MB. Replaces any earlier proof.
// @Tags Payments
// @Accept mpfd
// @Produce json
// @Security BearerAuth
// @Param id path int true "Invoice ID"
// @Param proof_of_payment formData file true "Proof of payment"
// @Param payment_method formData string false "mpesa, bank_transfer, cheque, cash or other"
// @Param payment_notes formData string false "Notes for the reviewer"
// @Success 200 {object} dto.APIResponse{data=dto.UploadProofResponse} "Proof uploaded"
// @Failure 400 {object} dto.APIResponse "Invalid file"
// @Failure 409 {object} dto.APIResponse "Invoice is paid or cancelled"
// @Router /api/v1/invoices/{id}/proof [post]
func (h *PaymentHandler) UploadProof(c fiber.Ctx) error {
	accountID, isStaff, ok := caller(c)
	if !ok {
		return h.unauthenticated(c)
	}
	invoiceID, ok := pathID(c, "id")
	if !ok {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid invoice ID", "INVALID_INVOICE_ID", nil)
	}

	fileHeader, err := c.FormFile(proofFormField)
	if err != nil || fileHeader == nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Please select a file to upload.", "INVALID_FILE", []dto.FieldErrorDTO{
			{Field: proofFormField, Message: "This field is required."},
		})
	}

	var req dto.UploadProofRequest
	if v := c.FormValue("payment_method"); v != "" {
		req.PaymentMethod = &v
	}
	if v := c.FormValue("payment_notes"); v != "" {
		req.PaymentNotes = &v
	}
	if ok, resp := h.validate(c, &req); !ok {
		return resp
	}

	file, err := fileHeader.Open()
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "invalid file", "INVALID_FILE", err.Error())
	}
	defer file.Close()

	req.AccountID = accountID
	req.IsStaff = isStaff
	req.InvoiceID = invoiceID
	req.FileName = fileHeader.Filename
	req.Size = fileHeader.Size
	req.Content = file

	ctx, cancel := createRequestContext(c, "/api/v1/invoices/{id}/proof")
	defer cancel()

	result, err := h.flow.UploadProof(ctx, &req, clientMetadata(c))
	if err != nil {
		if businessflow.IsProofUploadNotAllowed(err) {
			return h.ErrorResponse(c, fiber.StatusConflict, "Proof of payment cannot be uploaded for a paid or cancelled invoice", "PROOF_UPLOAD_NOT_ALLOWED", nil)
		}
		return h.respondFlowError(c, err, "Failed to upload proof of payment", "UPLOAD_PROOF_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, result.Message, result)
}

// DownloadProof streams the stored proof of payment
// @Summary Download proof of payment
// @Tags Payments
// @Produce application/octet-stream
// @Security BearerAuth
// @Param id path int true "Invoice ID"
// @Success 200 {string} string "Proof file"
// @Failure 404 {object} dto.APIResponse "No proof uploaded"
// @Router /api/v1/invoices/{id}/proof [get]
func (h *PaymentHandler) DownloadProof(c fiber.Ctx) error {
	req, ok := h.proofRequest(c)
	if !ok {
		return nil
	}

	ctx, cancel := createRequestContext(c, "/api/v1/invoices/{id}/proof")
	defer cancel()

	file, err := h.flow.DownloadProof(ctx, req, clientMetadata(c))
	if err != nil {
		return h.respondFlowError(c, err, "Failed to download proof of payment", "DOWNLOAD_PROOF_FAILED")
	}

	return h.sendFile(c, file, "attachment")
}

// PreviewProof returns a JPEG thumbnail of an image proof
// @Summary Preview proof of payment
// @Tags Payments
// @Produce image/jpeg
// @Security BearerAuth
// @Param id path int true "Invoice ID"
// @Success 200 {string} string "Thumbnail image"
// @Failure 415 {object} dto.APIResponse "Proof is not an image"
// @Router /api/v1/invoices/{id}/proof/preview [get]
func (h *PaymentHandler) PreviewProof(c fiber.Ctx) error {
	req, ok := h.proofRequest(c)
	if !ok {
		return nil
	}

	ctx, cancel := createRequestContext(c, "/api/v1/invoices/{id}/proof/preview")
	defer cancel()

	file, err := h.flow.PreviewProof(ctx, req, clientMetadata(c))
	if err != nil {
		if businessflow.IsProofPreviewNotSupported(err) {
			return h.ErrorResponse(c, fiber.StatusUnsupportedMediaType, "Preview is only available for image proofs", "PREVIEW_NOT_SUPPORTED", nil)
		}
		return h.respondFlowError(c, err, "Failed to preview proof of payment", "PREVIEW_PROOF_FAILED")
	}

	return h.sendFile(c, file, "inline")
}

// AdminUpdatePaymentStatus records a staff payment decision
// @Summary Update payment status
// @Description Paid stamps today's date when none is given. Moves outside the standard lifecycle are allowed and logged.
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Invoice ID"
// @Param request body dto.UpdatePaymentStatusRequest true "Payment form"
// @Success 200 {object} dto.APIResponse{data=dto.UpdatePaymentStatusResponse} "Status updated"
// @Router /api/v1/admin/invoices/{id}/payment [put]
func (h *PaymentHandler) AdminUpdatePaymentStatus(c fiber.Ctx) error {
	staffID, _, ok := caller(c)
	if !ok {
		return h.unauthenticated(c)
	}
	invoiceID, ok := pathID(c, "id")
	if !ok {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid invoice ID", "INVALID_INVOICE_ID", nil)
	}

	var req dto.UpdatePaymentStatusRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if ok, resp := h.validate(c, &req); !ok {
		return resp
	}
	req.StaffID = staffID
	req.InvoiceID = invoiceID

	ctx, cancel := createRequestContext(c, "/api/v1/admin/invoices/{id}/payment")
	defer cancel()

	result, err := h.flow.UpdatePaymentStatus(ctx, &req, clientMetadata(c))
	if err != nil {
		if businessflow.IsOpenInvoiceExists(err) {
			return h.ErrorResponse(c, fiber.StatusConflict, "The account already has another pending invoice; cancel or settle it first", "OPEN_INVOICE_EXISTS", nil)
		}
		return h.respondFlowError(c, err, "Failed to update payment status", "UPDATE_PAYMENT_STATUS_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, result.Message, result)
}

// AdminBulkUpdateStatus applies one status action to many invoices
// @Summary Bulk status action
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.BulkStatusRequest true "Action and invoice IDs"
// @Success 200 {object} dto.APIResponse{data=dto.BulkStatusResponse} "Invoices updated"
// @Router /api/v1/admin/invoices/bulk-status [post]
func (h *PaymentHandler) AdminBulkUpdateStatus(c fiber.Ctx) error {
	staffID, _, ok := caller(c)
	if !ok {
		return h.unauthenticated(c)
	}

	var req dto.BulkStatusRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if ok, resp := h.validate(c, &req); !ok {
		return resp
	}
	req.StaffID = staffID

	ctx, cancel := createRequestContext(c, "/api/v1/admin/invoices/bulk-status")
	defer cancel()

	result, err := h.flow.BulkUpdateStatus(ctx, &req, clientMetadata(c))
	if err != nil {
		if businessflow.IsUnsupportedBulkAction(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Unsupported bulk action", "UNSUPPORTED_BULK_ACTION", nil)
		}
		return h.respondFlowError(c, err, "Failed to update invoices", "BULK_STATUS_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, result.Message, result)
}

func (h *PaymentHandler) proofRequest(c fiber.Ctx) (*dto.ProofFileRequest, bool) {
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
	return &dto.ProofFileRequest{AccountID: accountID, IsStaff: isStaff, InvoiceID: invoiceID}, true
}
