package models

import (
	"testing"
	"time"

	"github.com/apaysummit/summit-registration/pricing"
	"github.com/apaysummit/summit-registration/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInvoice_StatusPredicates(t *testing.T) {
	tests := []struct {
		status         string
		editable       bool
		acceptsPeople  bool
		canUploadProof bool
	}{
		{InvoiceStatusPending, true, true, true},
		{InvoiceStatusUnderReview, false, false, true},
		{InvoiceStatusPaid, false, false, false},
		{InvoiceStatusOverdue, true, false, true},
		{InvoiceStatusCancelled, false, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			inv := &Invoice{Status: tt.status}
			assert.Equal(t, tt.editable, inv.IsEditable())
			assert.Equal(t, tt.acceptsPeople, inv.CanAcceptParticipants())
			assert.Equal(t, tt.canUploadProof, inv.CanUploadProof())
		})
	}
}

func TestInvoice_AmountDue(t *testing.T) {
	inv := &Invoice{Status: InvoiceStatusPending, TotalAmount: pricing.KES(30000)}
	assert.Equal(t, pricing.KES(30000), inv.AmountDue())

	inv.Status = InvoiceStatusPaid
	assert.Equal(t, pricing.Money(0), inv.AmountDue())
}

func TestInvoice_ApplyStatus(t *testing.T) {
	today := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	t.Run("pending to paid stamps today", func(t *testing.T) {
		inv := &Invoice{Status: InvoiceStatusPending}
		require.NoError(t, inv.ApplyStatus(InvoiceStatusPaid, nil, utils.ToPtr("MPESA123"), today))
		require.NotNil(t, inv.PaymentDate)
		assert.Equal(t, today, *inv.PaymentDate)
		assert.Equal(t, "MPESA123", *inv.PaymentReference)
	})

	t.Run("paid keeps supplied date", func(t *testing.T) {
		supplied := time.Date(2026, 3, 1, 15, 30, 0, 0, time.UTC)
		inv := &Invoice{Status: InvoiceStatusUnderReview}
		require.NoError(t, inv.ApplyStatus(InvoiceStatusPaid, &supplied, nil, today))
		assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), *inv.PaymentDate)
		assert.Nil(t, inv.PaymentReference)
	})

	t.Run("paid keeps existing date", func(t *testing.T) {
		existing := time.Date(2026, 2, 20, 0, 0, 0, 0, time.UTC)
		inv := &Invoice{Status: InvoiceStatusPaid, PaymentDate: &existing}
		require.NoError(t, inv.ApplyStatus(InvoiceStatusPaid, nil, nil, today))
		assert.Equal(t, existing, *inv.PaymentDate)
	})

	t.Run("paid to pending clears date", func(t *testing.T) {
		existing := time.Date(2026, 2, 20, 0, 0, 0, 0, time.UTC)
		inv := &Invoice{Status: InvoiceStatusPaid, PaymentDate: &existing, PaymentReference: utils.ToPtr("REF")}
		require.NoError(t, inv.ApplyStatus(InvoiceStatusPending, nil, nil, today))
		assert.Nil(t, inv.PaymentDate)
		assert.Equal(t, "REF", *inv.PaymentReference)
	})

	t.Run("overdue only changes status", func(t *testing.T) {
		existing := time.Date(2026, 2, 20, 0, 0, 0, 0, time.UTC)
		inv := &Invoice{Status: InvoiceStatusPaid, PaymentDate: &existing}
		require.NoError(t, inv.ApplyStatus(InvoiceStatusOverdue, nil, utils.ToPtr("ignored"), today))
		assert.Equal(t, InvoiceStatusOverdue, inv.Status)
		assert.Equal(t, existing, *inv.PaymentDate)
		assert.Nil(t, inv.PaymentReference)
	})

	t.Run("unknown status rejected", func(t *testing.T) {
		inv := &Invoice{Status: InvoiceStatusPending}
		assert.Error(t, inv.ApplyStatus("refunded", nil, nil, today))
		assert.Equal(t, InvoiceStatusPending, inv.Status)
	})
}

func TestInvoice_AttachProof(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	inv := &Invoice{Status: InvoiceStatusPending}
	inv.AttachProof("proofs/2026-03-10/a.png", "receipt.png", "image/png", utils.ToPtr(PaymentMethodMpesa), nil, now)
	assert.Equal(t, InvoiceStatusUnderReview, inv.Status)
	assert.True(t, inv.HasProof())
	assert.Equal(t, "receipt.png", *inv.ProofOriginalName)

	overdue := &Invoice{Status: InvoiceStatusOverdue}
	overdue.AttachProof("p.pdf", "p.pdf", "", nil, nil, now)
	assert.Equal(t, InvoiceStatusOverdue, overdue.Status)
	assert.Nil(t, overdue.ProofContentType)
}

func TestInvoice_PaymentStatus(t *testing.T) {
	today := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	paidOn := time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		inv  Invoice
		want string
	}{
		{"paid with date", Invoice{Status: InvoiceStatusPaid, PaymentDate: &paidOn}, "Paid on 2026-03-05"},
		{"paid without date", Invoice{Status: InvoiceStatusPaid}, "Paid"},
		{"under review", Invoice{Status: InvoiceStatusUnderReview, DueDate: today.AddDate(0, 0, -5)}, "Under Review"},
		{"past due", Invoice{Status: InvoiceStatusPending, DueDate: today.AddDate(0, 0, -1)}, "Overdue"},
		{"due today", Invoice{Status: InvoiceStatusPending, DueDate: today}, "Due today"},
		{"due later", Invoice{Status: InvoiceStatusOverdue, DueDate: today.AddDate(0, 0, 12)}, "Due in 12 days"},
		{"due tomorrow", Invoice{Status: InvoiceStatusPending, DueDate: today.AddDate(0, 0, 1)}, "Due in 1 days"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.inv.PaymentStatus(today))
		})
	}
}

func TestIsStandardTransition(t *testing.T) {
	assert.True(t, IsStandardTransition(InvoiceStatusPending, InvoiceStatusUnderReview))
	assert.True(t, IsStandardTransition(InvoiceStatusUnderReview, InvoiceStatusPaid))
	assert.True(t, IsStandardTransition(InvoiceStatusOverdue, InvoiceStatusPending))
	assert.True(t, IsStandardTransition(InvoiceStatusPaid, InvoiceStatusPaid))
	assert.False(t, IsStandardTransition(InvoiceStatusPaid, InvoiceStatusPending))
	assert.False(t, IsStandardTransition(InvoiceStatusCancelled, InvoiceStatusPending))
}

func TestNewInvoiceItem(t *testing.T) {
	item := NewInvoiceItem(7, "Group Registration – 4 participants (Special Rate)", 4, pricing.KES(11250))
	assert.Equal(t, pricing.KES(45000), item.Total)
	assert.Equal(t, uint(7), item.InvoiceID)
}

func TestProfile_Verification(t *testing.T) {
	sent := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	p := NewProfile(3, "Acme", "Nairobi", "0712345678", "abc123", sent)
	require.NotNil(t, p.VerificationToken)
	assert.Equal(t, "abc123", *p.VerificationToken)
	assert.False(t, p.EmailVerified)

	assert.False(t, p.VerificationExpired(sent.Add(23*time.Hour), 24*time.Hour))
	assert.True(t, p.VerificationExpired(sent.Add(25*time.Hour), 24*time.Hour))

	p.MarkEmailVerified()
	assert.True(t, p.EmailVerified)
	assert.Nil(t, p.VerificationToken)

	bare := NewProfile(4, "", "", "", "", sent)
	assert.Nil(t, bare.VerificationToken)
	assert.Nil(t, bare.VerificationSentAt)
}
