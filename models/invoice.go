package models

import (
	"time"

	"github.com/apaysummit/summit-registration/pricing"
)

// Invoice status values
const (
	InvoiceStatusPending     = "pending"
	InvoiceStatusUnderReview = "under_review"
	InvoiceStatusPaid        = "paid"
	InvoiceStatusOverdue     = "overdue"
	InvoiceStatusCancelled   = "cancelled"
)

// InvoiceStatuses lists every status in display order
var InvoiceStatuses = []string{
	InvoiceStatusPending,
	InvoiceStatusUnderReview,
	InvoiceStatusPaid,
	InvoiceStatusOverdue,
	InvoiceStatusCancelled,
}

// Payment method values recorded with a proof of payment
const (
	PaymentMethodMpesa        = "mpesa"
	PaymentMethodBankTransfer = "bank_transfer"
	PaymentMethodCheque       = "cheque"
	PaymentMethodCash         = "cash"
	PaymentMethodOther        = "other"
)

// PaymentMethods lists the accepted payment methods
var PaymentMethods = []string{
	PaymentMethodMpesa,
	PaymentMethodBankTransfer,
	PaymentMethodCheque,
	PaymentMethodCash,
	PaymentMethodOther,
}

// Invoice is a registrant's bill for the participants attached to it.
// Subtotal, TaxAmount, TotalAmount and Items are derived by recompute from the participant count.
type Invoice struct {
	ID            uint          `gorm:"primaryKey" json:"id"`
	InvoiceNumber string        `gorm:"size:20;not null;uniqueIndex:uk_invoices_invoice_number" json:"invoice_number"`
	AccountID     uint          `gorm:"not null;index:idx_invoices_account_id" json:"account_id"`
	IssueDate     time.Time     `gorm:"type:date;not null" json:"issue_date"`
	DueDate       time.Time     `gorm:"type:date;not null" json:"due_date"`
	Status        string        `gorm:"size:20;not null;default:'pending';index:idx_invoices_status" json:"status"`
	Subtotal      pricing.Money `gorm:"type:bigint;not null;default:0" json:"subtotal"`
	TaxAmount     pricing.Money `gorm:"type:bigint;not null;default:0" json:"tax_amount"`
	TotalAmount   pricing.Money `gorm:"type:bigint;not null;default:0" json:"total_amount"`
	Notes         string        `gorm:"type:text" json:"notes"`

	// Payment fields
	PaymentDate       *time.Time `gorm:"type:date" json:"payment_date,omitempty"`
	PaymentReference  *string    `gorm:"size:100" json:"payment_reference,omitempty"`
	ProofOfPayment    *string    `gorm:"size:255" json:"-"`
	ProofOriginalName *string    `gorm:"size:255" json:"proof_original_name,omitempty"`
	ProofContentType  *string    `gorm:"size:100" json:"-"`
	PaymentMethod     *string    `gorm:"size:20" json:"payment_method,omitempty"`
	PaymentNotes      *string    `gorm:"type:text" json:"payment_notes,omitempty"`
	ProofUploadedAt   *time.Time `json:"proof_uploaded_at,omitempty"`

	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_invoices_created_at" json:"created_at"`
	UpdatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`

	// Relations
	Account      *Account      `gorm:"foreignKey:AccountID;references:ID" json:"-"`
	Items        []InvoiceItem `gorm:"foreignKey:InvoiceID;constraint:OnDelete:CASCADE" json:"items,omitempty"`
	Participants []Participant `gorm:"many2many:invoice_participants;" json:"participants,omitempty"`
}

func (Invoice) TableName() string {
	return "invoices"
}

// IsEditable reports whether participants may still be changed on the invoice.
func (i *Invoice) IsEditable() bool {
	return i.Status == InvoiceStatusPending || i.Status == InvoiceStatusOverdue
}

// CanAcceptParticipants reports whether new participants may be attached. Only open invoices qualify.
func (i *Invoice) CanAcceptParticipants() bool {
	return i.Status == InvoiceStatusPending
}

// IsUnpaid reports whether the invoice still counts towards the amount due.
func (i *Invoice) IsUnpaid() bool {
	return i.Status == InvoiceStatusPending || i.Status == InvoiceStatusOverdue
}

// AmountDue is zero once the invoice is paid, otherwise the full total.
func (i *Invoice) AmountDue() pricing.Money {
	if i.Status == InvoiceStatusPaid {
		return 0
	}
	return i.TotalAmount
}

// HasProof reports whether a proof of payment file is attached.
func (i *Invoice) HasProof() bool {
	return i.ProofOfPayment != nil && *i.ProofOfPayment != ""
}

// ApplyQuote overwrites the derived money fields and notes from a pricing quote.
func (i *Invoice) ApplyQuote(q pricing.Quote) {
	i.Subtotal = q.Subtotal
	i.TaxAmount = q.TaxAmount
	i.TotalAmount = q.Subtotal.Add(q.TaxAmount)
	i.Notes = q.Notes
}

// InvoiceFilter represents filter criteria for invoice queries
type InvoiceFilter struct {
	ID            *uint
	IDs           []uint
	AccountID     *uint
	InvoiceNumber *string
	Status        *string
	Statuses      []string
	// Search matches invoice number, owner username, owner email or payment reference, case-insensitively
	Search       *string
	IssuedAfter  *time.Time
	IssuedBefore *time.Time
}

// InvoiceParticipant links a participant to an invoice
type InvoiceParticipant struct {
	InvoiceID     uint `gorm:"primaryKey"`
	ParticipantID uint `gorm:"primaryKey"`
}

func (InvoiceParticipant) TableName() string {
	return "invoice_participants"
}

// InvoiceItem is a line on an invoice. Total always equals Quantity * UnitPrice.
type InvoiceItem struct {
	ID          uint          `gorm:"primaryKey" json:"id"`
	InvoiceID   uint          `gorm:"not null;index:idx_invoice_items_invoice_id" json:"invoice_id"`
	Description string        `gorm:"size:200;not null" json:"description"`
	Quantity    int           `gorm:"not null;default:1" json:"quantity"`
	UnitPrice   pricing.Money `gorm:"type:bigint;not null" json:"unit_price"`
	Total       pricing.Money `gorm:"type:bigint;not null" json:"total"`
}

func (InvoiceItem) TableName() string {
	return "invoice_items"
}

// NewInvoiceItem builds a line item whose total is derived from quantity and unit price.
func NewInvoiceItem(invoiceID uint, description string, quantity int, unitPrice pricing.Money) InvoiceItem {
	return InvoiceItem{
		InvoiceID:   invoiceID,
		Description: description,
		Quantity:    quantity,
		UnitPrice:   unitPrice,
		Total:       unitPrice.Multiply(int64(quantity)),
	}
}
