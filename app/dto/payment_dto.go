package dto

import "io"

// UploadProofRequest carries a proof of payment file. Content is read at most once.
type UploadProofRequest struct {
	AccountID     uint      `json:"-"`
	IsStaff       bool      `json:"-"`
	InvoiceID     uint      `json:"-"`
	FileName      string    `json:"-"`
	Size          int64     `json:"-"`
	Content       io.Reader `json:"-"`
	PaymentMethod *string   `json:"payment_method,omitempty" form:"payment_method" validate:"omitempty,oneof=mpesa bank_transfer cheque cash other"`
	PaymentNotes  *string   `json:"payment_notes,omitempty" form:"payment_notes" validate:"omitempty,max=1000"`
}

// UploadProofResponse returns the invoice after the proof was attached
type UploadProofResponse struct {
	Message string           `json:"message"`
	Invoice InvoiceDetailDTO `json:"invoice"`
}

// ProofFileRequest asks for a stored proof or its preview
type ProofFileRequest struct {
	AccountID uint `json:"-"`
	IsStaff   bool `json:"-"`
	InvoiceID uint `json:"-"`
}

// UpdatePaymentStatusRequest is the staff payment form
type UpdatePaymentStatusRequest struct {
	StaffID          uint    `json:"-"`
	InvoiceID        uint    `json:"-"`
	Status           string  `json:"status" validate:"required,oneof=pending under_review paid overdue cancelled"`
	PaymentDate      *string `json:"payment_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	PaymentReference *string `json:"payment_reference,omitempty" validate:"omitempty,max=100"`
}

// UpdatePaymentStatusResponse returns the updated invoice.
// Override is set when the move was outside the standard payment lifecycle.
type UpdatePaymentStatusResponse struct {
	Message  string           `json:"message"`
	Override bool             `json:"override"`
	Invoice  InvoiceDetailDTO `json:"invoice"`
}

// Bulk status actions
const (
	BulkActionMarkAsPaid      = "mark_as_paid"
	BulkActionMarkAsPending   = "mark_as_pending"
	BulkActionMarkAsOverdue   = "mark_as_overdue"
	BulkActionMarkAsCancelled = "mark_as_cancelled"
)

// BulkStatusRequest applies one action to many invoices
type BulkStatusRequest struct {
	StaffID    uint   `json:"-"`
	InvoiceIDs []uint `json:"invoice_ids" validate:"required,min=1,max=500,dive,gt=0"`
	Action     string `json:"action" validate:"required,oneof=mark_as_paid mark_as_pending mark_as_overdue mark_as_cancelled"`
}

// BulkStatusError reports an invoice the action could not be applied to
type BulkStatusError struct {
	InvoiceID uint   `json:"invoice_id"`
	Message   string `json:"message"`
}

// BulkStatusResponse summarizes a bulk action
type BulkStatusResponse struct {
	Message string            `json:"message"`
	Updated int               `json:"updated"`
	Errors  []BulkStatusError `json:"errors"`
}
