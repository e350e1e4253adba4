package models

import (
	"fmt"
	"slices"
	"time"

	"github.com/apaysummit/summit-registration/utils"
)

// standardTransitions are the edges of the normal payment lifecycle.
// Staff may still move an invoice along any other edge; those moves are overrides.
var standardTransitions = map[string][]string{
	InvoiceStatusPending:     {InvoiceStatusUnderReview, InvoiceStatusPaid, InvoiceStatusOverdue, InvoiceStatusCancelled},
	InvoiceStatusUnderReview: {InvoiceStatusPaid, InvoiceStatusPending, InvoiceStatusCancelled},
	InvoiceStatusOverdue:     {InvoiceStatusPending, InvoiceStatusUnderReview, InvoiceStatusPaid, InvoiceStatusCancelled},
	InvoiceStatusPaid:        {},
	InvoiceStatusCancelled:   {},
}

// IsValidInvoiceStatus reports whether s is a known invoice status
func IsValidInvoiceStatus(s string) bool {
	return slices.Contains(InvoiceStatuses, s)
}

// IsValidPaymentMethod reports whether s is a known payment method
func IsValidPaymentMethod(s string) bool {
	return slices.Contains(PaymentMethods, s)
}

// IsStandardTransition reports whether from -> to is part of the normal lifecycle.
// Staying in the same status is always standard.
func IsStandardTransition(from, to string) bool {
	if from == to {
		return true
	}
	return slices.Contains(standardTransitions[from], to)
}

// CanUploadProof reports whether a registrant may still attach a proof of payment.
func (i *Invoice) CanUploadProof() bool {
	return i.Status != InvoiceStatusPaid && i.Status != InvoiceStatusCancelled
}

// AttachProof records an uploaded proof and moves a pending invoice to under_review.
func (i *Invoice) AttachProof(storedPath, originalName, contentType string, method, notes *string, uploadedAt time.Time) {
	i.ProofOfPayment = &storedPath
	i.ProofOriginalName = &originalName
	if contentType != "" {
		i.ProofContentType = &contentType
	}
	i.PaymentMethod = method
	i.PaymentNotes = notes
	i.ProofUploadedAt = &uploadedAt
	if i.Status == InvoiceStatusPending {
		i.Status = InvoiceStatusUnderReview
	}
}

// ApplyStatus moves the invoice to status and applies the payment-date side effects.
// paid stamps paymentDate, else keeps an existing date, else uses today.
// pending clears the payment date. Other statuses only change the status field.
func (i *Invoice) ApplyStatus(status string, paymentDate *time.Time, reference *string, today time.Time) error {
	if !IsValidInvoiceStatus(status) {
		return fmt.Errorf("invalid invoice status %q", status)
	}

	i.Status = status
	switch status {
	case InvoiceStatusPaid:
		switch {
		case paymentDate != nil:
			d := utils.DateOnly(*paymentDate)
			i.PaymentDate = &d
		case i.PaymentDate == nil:
			d := utils.DateOnly(today)
			i.PaymentDate = &d
		}
		if reference != nil {
			i.PaymentReference = reference
		}
	case InvoiceStatusPending:
		i.PaymentDate = nil
	}
	return nil
}

// PaymentStatus is the human readable payment state of the invoice on the given day.
func (i *Invoice) PaymentStatus(today time.Time) string {
	switch i.Status {
	case InvoiceStatusPaid:
		if i.PaymentDate != nil {
			return "Paid on " + i.PaymentDate.Format(utils.DateLayout)
		}
		return "Paid"
	case InvoiceStatusUnderReview:
		return "Under Review"
	}

	days := utils.DaysBetween(today, i.DueDate)
	switch {
	case days < 0:
		return "Overdue"
	case days == 0:
		return "Due today"
	default:
		return fmt.Sprintf("Due in %d days", days)
	}
}
