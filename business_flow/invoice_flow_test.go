package businessflow

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/apaysummit/summit-registration/app/dto"
	"github.com/apaysummit/summit-registration/app/services"
	"github.com/apaysummit/summit-registration/models"
	"github.com/apaysummit/summit-registration/pricing"
	"github.com/apaysummit/summit-registration/repository/memory"
	"github.com/apaysummit/summit-registration/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestInvoiceFlow(s *memory.Store) *InvoiceFlowImpl {
	policy := pricing.NewSummitPolicy()
	f := NewInvoiceFlow(
		s.Accounts(),
		s.Profiles(),
		s.Participants(),
		s.Invoices(),
		newTestLedger(s),
		services.NewDocumentRenderer(policy, "Apay Summit"),
		policy,
	).(*InvoiceFlowImpl)
	f.now = func() time.Time { return fixedNow }
	return f
}

// seedInvoice opens an invoice for owner carrying n fresh participants
func seedInvoice(t *testing.T, s *memory.Store, owner *models.Account, n int) *dto.InvoiceSummaryDTO {
	t.Helper()
	flow := newTestParticipantFlow(s)
	var last *dto.InvoiceSummaryDTO
	for i := 0; i < n; i++ {
		resp, err := flow.AddParticipant(context.Background(), &dto.AddParticipantRequest{
			AccountID: owner.ID,
			Name:      owner.Username + "-guest",
			Email:     owner.Username + "@guests.example.co.ke",
		}, nil)
		require.NoError(t, err)
		last = &resp.Invoice
	}
	return last
}

func setStatus(t *testing.T, s *memory.Store, invoiceID uint, status string) {
	t.Helper()
	ctx := context.Background()
	inv, err := s.Invoices().ByID(ctx, invoiceID)
	require.NoError(t, err)
	inv.Status = status
	require.NoError(t, s.Invoices().Update(ctx, inv))
}

func TestInvoiceFlow_ListInvoicesTotals(t *testing.T) {
	s := memory.New()
	flow := newTestInvoiceFlow(s)
	ctx := context.Background()
	owner := seedAccount(t, s, "wanjiku")

	paid := seedInvoice(t, s, owner, 1)
	setStatus(t, s, paid.ID, models.InvoiceStatusPaid)
	overdue := seedInvoice(t, s, owner, 2)
	setStatus(t, s, overdue.ID, models.InvoiceStatusOverdue)
	seedInvoice(t, s, owner, 4)

	resp, err := flow.ListInvoices(ctx, &dto.ListInvoicesRequest{AccountID: owner.ID}, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(3), resp.TotalInvoices)
	assert.Equal(t, int64(2), resp.UnpaidCount)
	assert.Equal(t, pricing.KES(30000+45000), resp.TotalDue)
	require.Len(t, resp.Invoices, 3)

	for _, inv := range resp.Invoices {
		if inv.ID == paid.ID {
			assert.True(t, inv.AmountDue.IsZero())
		}
	}
}

func TestInvoiceFlow_GetInvoiceAccess(t *testing.T) {
	s := memory.New()
	flow := newTestInvoiceFlow(s)
	ctx := context.Background()
	owner := seedAccount(t, s, "wanjiku")
	stranger := seedAccount(t, s, "stranger")
	require.NoError(t, s.Profiles().Save(ctx, models.NewProfile(owner.ID, "Apay Ltd", "Nairobi", "0712345678", "", fixedNow)))

	inv := seedInvoice(t, s, owner, 2)

	tests := []struct {
		name    string
		req     dto.GetInvoiceRequest
		wantErr error
	}{
		{name: "owner", req: dto.GetInvoiceRequest{AccountID: owner.ID, InvoiceID: inv.ID}},
		{name: "staff", req: dto.GetInvoiceRequest{AccountID: stranger.ID, IsStaff: true, InvoiceID: inv.ID}},
		{name: "stranger", req: dto.GetInvoiceRequest{AccountID: stranger.ID, InvoiceID: inv.ID}, wantErr: ErrInvoiceAccessDenied},
		{name: "missing", req: dto.GetInvoiceRequest{AccountID: owner.ID, InvoiceID: 9999}, wantErr: ErrInvoiceNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := flow.GetInvoice(ctx, &tt.req, nil)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, inv.InvoiceNumber, got.InvoiceNumber)
			assert.Len(t, got.Participants, 2)
			require.Len(t, got.Items, 1)
			assert.Equal(t, "Individual Registration – 2 participant(s)", got.Items[0].Description)
			assert.True(t, got.CanAddParticipants)
			assert.Equal(t, "Due in 30 days", got.PaymentStatus)
			require.NotNil(t, got.Owner)
			assert.Equal(t, "Apay Ltd", got.Owner.CompanyName)
		})
	}
}

func TestInvoiceFlow_DownloadInvoicePDF(t *testing.T) {
	s := memory.New()
	flow := newTestInvoiceFlow(s)
	ctx := context.Background()
	owner := seedAccount(t, s, "wanjiku")
	inv := seedInvoice(t, s, owner, 1)

	file, err := flow.DownloadInvoicePDF(ctx, &dto.GetInvoiceRequest{AccountID: owner.ID, InvoiceID: inv.ID}, nil)
	require.NoError(t, err)
	assert.Equal(t, "invoice_"+inv.InvoiceNumber+".pdf", file.FileName)
	assert.Equal(t, services.ContentTypePDF, file.ContentType)
	assert.True(t, bytes.HasPrefix(file.Content, []byte("%PDF-")))
}

func TestInvoiceFlow_AdminListAndExport(t *testing.T) {
	s := memory.New()
	flow := newTestInvoiceFlow(s)
	ctx := context.Background()
	alice := seedAccount(t, s, "alice")
	bob := seedAccount(t, s, "bob")

	a := seedInvoice(t, s, alice, 1)
	b := seedInvoice(t, s, bob, 5)
	inv, err := s.Invoices().ByID(ctx, b.ID)
	require.NoError(t, err)
	inv.Status = models.InvoiceStatusPaid
	inv.PaymentReference = utils.ToPtr("MPESA-QX7")
	require.NoError(t, s.Invoices().Update(ctx, inv))

	all, err := flow.AdminListInvoices(ctx, &dto.AdminListInvoicesRequest{}, nil)
	require.NoError(t, err)
	assert.Len(t, all.Invoices, 2)
	assert.Equal(t, int64(2), all.Pagination.Total)

	pending, err := flow.AdminListInvoices(ctx, &dto.AdminListInvoicesRequest{Status: models.InvoiceStatusPending}, nil)
	require.NoError(t, err)
	require.Len(t, pending.Invoices, 1)
	assert.Equal(t, a.ID, pending.Invoices[0].ID)
	assert.Equal(t, "alice", pending.Invoices[0].Username)

	byRef, err := flow.AdminListInvoices(ctx, &dto.AdminListInvoicesRequest{Search: "qx7"}, nil)
	require.NoError(t, err)
	require.Len(t, byRef.Invoices, 1)
	assert.Equal(t, 5, byRef.Invoices[0].ParticipantCount)

	_, err = flow.AdminListInvoices(ctx, &dto.AdminListInvoicesRequest{Status: "refunded"}, nil)
	assert.True(t, IsValidationError(err))

	file, err := flow.ExportInvoices(ctx, &dto.ExportInvoicesRequest{Status: models.InvoiceStatusPaid}, nil)
	require.NoError(t, err)
	assert.Equal(t, "invoices_20260504.csv", file.FileName)
	assert.Contains(t, string(file.Content), "55000.00")
	assert.Contains(t, string(file.Content), "MPESA-QX7")
	assert.NotContains(t, string(file.Content), a.InvoiceNumber)
}

func TestInvoiceFlow_RecomputeInvoice(t *testing.T) {
	s := memory.New()
	flow := newTestInvoiceFlow(s)
	ctx := context.Background()
	owner := seedAccount(t, s, "wanjiku")
	inv := seedInvoice(t, s, owner, 3)

	stale, err := s.Invoices().ByID(ctx, inv.ID)
	require.NoError(t, err)
	stale.Subtotal = pricing.KES(1)
	stale.TotalAmount = pricing.KES(1)
	require.NoError(t, s.Invoices().Update(ctx, stale))

	got, err := flow.RecomputeInvoice(ctx, &dto.RecomputeInvoiceRequest{InvoiceID: inv.ID}, nil)
	require.NoError(t, err)
	assert.Equal(t, pricing.KES(45000), got.TotalAmount)

	_, err = flow.RecomputeInvoice(ctx, &dto.RecomputeInvoiceRequest{InvoiceID: 9999}, nil)
	assert.True(t, IsNotFoundError(err))
}

func TestInvoiceFlow_QuotePrice(t *testing.T) {
	flow := newTestInvoiceFlow(memory.New())

	tests := []struct {
		count int
		total pricing.Money
		tier  string
	}{
		{count: 0, total: 0, tier: "none"},
		{count: 3, total: pricing.KES(45000), tier: "individual"},
		{count: 4, total: pricing.KES(45000), tier: "special_group"},
		{count: 6, total: pricing.KES(66000), tier: "group"},
	}
	for _, tt := range tests {
		got, err := flow.QuotePrice(context.Background(), &dto.PricingQuoteRequest{Count: tt.count})
		require.NoError(t, err)
		assert.Equal(t, tt.total, got.TotalAmount)
		assert.Equal(t, tt.tier, got.Tier)
	}

	_, err := flow.QuotePrice(context.Background(), &dto.PricingQuoteRequest{Count: -1})
	assert.True(t, IsValidationError(err))
}
