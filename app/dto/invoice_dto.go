package dto

import (
	"github.com/apaysummit/summit-registration/pricing"
)

// InvoiceSummaryDTO is the list view of an invoice
type InvoiceSummaryDTO struct {
	ID               uint          `json:"id"`
	InvoiceNumber    string        `json:"invoice_number"`
	Status           string        `json:"status"`
	IssueDate        string        `json:"issue_date"`
	DueDate          string        `json:"due_date"`
	Subtotal         pricing.Money `json:"subtotal"`
	TaxAmount        pricing.Money `json:"tax_amount"`
	TotalAmount      pricing.Money `json:"total_amount"`
	AmountDue        pricing.Money `json:"amount_due"`
	ParticipantCount int           `json:"participant_count"`
	PaymentStatus    string        `json:"payment_status"`
	HasProof         bool          `json:"has_proof"`
}

// InvoiceItemDTO is one invoice line
type InvoiceItemDTO struct {
	Description string        `json:"description"`
	Quantity    int           `json:"quantity"`
	UnitPrice   pricing.Money `json:"unit_price"`
	Total       pricing.Money `json:"total"`
}

// InvoiceDetailDTO is the full view of an invoice
type InvoiceDetailDTO struct {
	InvoiceSummaryDTO
	Notes              string           `json:"notes"`
	PaymentDate        *string          `json:"payment_date,omitempty"`
	PaymentReference   *string          `json:"payment_reference,omitempty"`
	PaymentMethod      *string          `json:"payment_method,omitempty"`
	PaymentNotes       *string          `json:"payment_notes,omitempty"`
	ProofOriginalName  *string          `json:"proof_original_name,omitempty"`
	ProofUploadedAt    *string          `json:"proof_uploaded_at,omitempty"`
	CanAddParticipants bool             `json:"can_add_participants"`
	IsEditable         bool             `json:"is_editable"`
	Items              []InvoiceItemDTO `json:"items"`
	Participants       []ParticipantDTO `json:"participants"`
	Owner              *AccountDTO      `json:"owner,omitempty"`
}

// ListInvoicesRequest pages through the caller's invoices
type ListInvoicesRequest struct {
	AccountID uint `json:"-"`
	Page      int  `json:"page,omitempty" query:"page"`
	PageSize  int  `json:"page_size,omitempty" query:"page_size"`
}

// ListInvoicesResponse returns a page of invoices with totals over all of the caller's invoices
type ListInvoicesResponse struct {
	Invoices      []InvoiceSummaryDTO `json:"invoices"`
	TotalInvoices int64               `json:"total_invoices"`
	UnpaidCount   int64               `json:"unpaid_count"`
	TotalDue      pricing.Money       `json:"total_due"`
	Pagination    PaginationInfo      `json:"pagination"`
}

// GetInvoiceRequest identifies an invoice and the viewer
type GetInvoiceRequest struct {
	AccountID uint `json:"-"`
	IsStaff   bool `json:"-"`
	InvoiceID uint `json:"-"`
}

// AdminInvoiceDTO is an invoice row in staff listings
type AdminInvoiceDTO struct {
	InvoiceSummaryDTO
	AccountID        uint    `json:"account_id"`
	Username         string  `json:"username"`
	Email            string  `json:"email"`
	PaymentDate      *string `json:"payment_date,omitempty"`
	PaymentReference *string `json:"payment_reference,omitempty"`
}

// AdminListInvoicesRequest filters the staff invoice list
type AdminListInvoicesRequest struct {
	Status   string `json:"status,omitempty" query:"status" validate:"omitempty,oneof=pending under_review paid overdue cancelled"`
	Search   string `json:"search,omitempty" query:"search" validate:"omitempty,max=100"`
	Page     int    `json:"page,omitempty" query:"page"`
	PageSize int    `json:"page_size,omitempty" query:"page_size"`
}

// AdminListInvoicesResponse returns a page of invoices for staff
type AdminListInvoicesResponse struct {
	Invoices   []AdminInvoiceDTO `json:"invoices"`
	Pagination PaginationInfo    `json:"pagination"`
}

// ExportInvoicesRequest selects the invoices and format of a staff export
type ExportInvoicesRequest struct {
	Status string `json:"status,omitempty" query:"status" validate:"omitempty,oneof=pending under_review paid overdue cancelled"`
	Search string `json:"search,omitempty" query:"search" validate:"omitempty,max=100"`
	Format string `json:"format,omitempty" query:"format" validate:"omitempty,oneof=csv xlsx"`
}

// RecomputeInvoiceRequest reprices one invoice from its participant count
type RecomputeInvoiceRequest struct {
	InvoiceID uint `json:"-"`
}

// PricingQuoteRequest asks for the price of a participant count
type PricingQuoteRequest struct {
	Count int `json:"count" query:"count" validate:"gte=0,lte=10000"`
}

// PricingQuoteResponse is the priced quote
type PricingQuoteResponse struct {
	Count       int           `json:"count"`
	Tier        string        `json:"tier"`
	UnitPrice   pricing.Money `json:"unit_price"`
	Subtotal    pricing.Money `json:"subtotal"`
	TaxAmount   pricing.Money `json:"tax_amount"`
	TotalAmount pricing.Money `json:"total_amount"`
	Description string        `json:"description"`
	Notes       string        `json:"notes"`
	Formatted   string        `json:"formatted_total"`
}
