package businessflow

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/apaysummit/summit-registration/models"
	"github.com/apaysummit/summit-registration/pricing"
	"github.com/apaysummit/summit-registration/repository/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 5, 4, 9, 30, 0, 0, time.UTC)

func newTestLedger(s *memory.Store) *InvoiceLedgerImpl {
	l := NewInvoiceLedger(s.Accounts(), s.Invoices(), s, pricing.NewSummitPolicy()).(*InvoiceLedgerImpl)
	l.now = func() time.Time { return fixedNow }
	return l
}

func seedAccount(t *testing.T, s *memory.Store, username string) *models.Account {
	t.Helper()
	a := &models.Account{Username: username, Email: username + "@example.co.ke", PasswordHash: "x"}
	require.NoError(t, s.Accounts().Save(context.Background(), a))
	return a
}

func attachNew(t *testing.T, s *memory.Store, owner *models.Account, invoiceID uint, n int) {
	t.Helper()
	ctx := context.Background()
	ids := make([]uint, 0, n)
	for i := 0; i < n; i++ {
		p := &models.Participant{AccountID: owner.ID, Name: fmt.Sprintf("P%d", i), Email: fmt.Sprintf("p%d@example.co.ke", i)}
		require.NoError(t, s.Participants().Save(ctx, p))
		ids = append(ids, p.ID)
	}
	require.NoError(t, s.Invoices().AttachParticipants(ctx, invoiceID, ids))
}

func TestInvoiceLedger_GetOrCreateOpenInvoice(t *testing.T) {
	s := memory.New()
	ledger := newTestLedger(s)
	ctx := context.Background()
	owner := seedAccount(t, s, "wanjiku")

	first, created, err := ledger.GetOrCreateOpenInvoice(ctx, owner.ID)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, models.InvoiceStatusPending, first.Status)
	assert.Regexp(t, `^INV-[0-9A-F]{8}$`, first.InvoiceNumber)
	assert.Equal(t, time.Date(2026, 5, 4, 0, 0, 0, 0, time.UTC), first.IssueDate)
	assert.Equal(t, time.Date(2026, 6, 3, 0, 0, 0, 0, time.UTC), first.DueDate)
	assert.Equal(t, "Apay Summit Registration", first.Notes)
	assert.True(t, first.TotalAmount.IsZero())

	second, created, err := ledger.GetOrCreateOpenInvoice(ctx, owner.ID)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)

	count, err := s.Invoices().Count(ctx, models.InvoiceFilter{AccountID: &owner.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestInvoiceLedger_NewInvoiceOnceOpenOneIsClosed(t *testing.T) {
	s := memory.New()
	ledger := newTestLedger(s)
	ctx := context.Background()
	owner := seedAccount(t, s, "wanjiku")

	first, _, err := ledger.GetOrCreateOpenInvoice(ctx, owner.ID)
	require.NoError(t, err)
	first.Status = models.InvoiceStatusUnderReview
	require.NoError(t, s.Invoices().Update(ctx, first))

	second, created, err := ledger.GetOrCreateOpenInvoice(ctx, owner.ID)
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, first.ID, second.ID)
	assert.NotEqual(t, first.InvoiceNumber, second.InvoiceNumber)
}

func TestInvoiceLedger_UnknownAccount(t *testing.T) {
	s := memory.New()
	ledger := newTestLedger(s)

	_, _, err := ledger.GetOrCreateOpenInvoice(context.Background(), 404)
	assert.ErrorIs(t, err, ErrAccountNotFound)
	assert.True(t, IsNotFoundError(err))
}

func TestInvoiceLedger_NumberCollisionsAreRetried(t *testing.T) {
	s := memory.New()
	ledger := newTestLedger(s)
	ctx := context.Background()
	alice := seedAccount(t, s, "alice")
	bob := seedAccount(t, s, "bob")

	candidates := []string{"INV-AAAAAAAA", "INV-AAAAAAAA", "INV-BBBBBBBB"}
	ledger.newNumber = func() string {
		next := candidates[0]
		candidates = candidates[1:]
		return next
	}

	a, _, err := ledger.GetOrCreateOpenInvoice(ctx, alice.ID)
	require.NoError(t, err)
	b, _, err := ledger.GetOrCreateOpenInvoice(ctx, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, "INV-AAAAAAAA", a.InvoiceNumber)
	assert.Equal(t, "INV-BBBBBBBB", b.InvoiceNumber)

	ledger.newNumber = func() string { return "INV-AAAAAAAA" }
	carol := seedAccount(t, s, "carol")
	_, _, err = ledger.GetOrCreateOpenInvoice(ctx, carol.ID)
	assert.ErrorIs(t, err, ErrInvoiceNumberUnavailable)
}

func TestInvoiceLedger_RecomputeTiers(t *testing.T) {
	tests := []struct {
		count    int
		subtotal pricing.Money
		unit     pricing.Money
		items    int
	}{
		{count: 0, subtotal: 0, unit: 0, items: 0},
		{count: 1, subtotal: pricing.KES(15000), unit: pricing.KES(15000), items: 1},
		{count: 3, subtotal: pricing.KES(45000), unit: pricing.KES(15000), items: 1},
		{count: 4, subtotal: pricing.KES(45000), unit: pricing.KES(11250), items: 1},
		{count: 5, subtotal: pricing.KES(55000), unit: pricing.KES(11000), items: 1},
		{count: 6, subtotal: pricing.KES(66000), unit: pricing.KES(11000), items: 1},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d participants", tt.count), func(t *testing.T) {
			s := memory.New()
			ledger := newTestLedger(s)
			ctx := context.Background()
			owner := seedAccount(t, s, "wanjiku")

			inv, _, err := ledger.GetOrCreateOpenInvoice(ctx, owner.ID)
			require.NoError(t, err)
			attachNew(t, s, owner, inv.ID, tt.count)

			got, err := ledger.Recompute(ctx, inv.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.subtotal, got.Subtotal)
			assert.True(t, got.TaxAmount.IsZero())
			assert.Equal(t, got.Subtotal.Add(got.TaxAmount), got.TotalAmount)

			items, err := s.Invoices().Items(ctx, inv.ID)
			require.NoError(t, err)
			require.Len(t, items, tt.items)
			if tt.items == 1 {
				assert.Equal(t, tt.count, items[0].Quantity)
				assert.Equal(t, tt.unit, items[0].UnitPrice)
				assert.Equal(t, items[0].UnitPrice.Multiply(int64(items[0].Quantity)), items[0].Total)
			} else {
				assert.Equal(t, "Add participants to generate invoice", got.Notes)
			}
		})
	}
}

func TestInvoiceLedger_RecomputeIsIdempotent(t *testing.T) {
	s := memory.New()
	ledger := newTestLedger(s)
	ctx := context.Background()
	owner := seedAccount(t, s, "wanjiku")

	inv, _, err := ledger.GetOrCreateOpenInvoice(ctx, owner.ID)
	require.NoError(t, err)
	attachNew(t, s, owner, inv.ID, 2)

	once, err := ledger.Recompute(ctx, inv.ID)
	require.NoError(t, err)
	twice, err := ledger.Recompute(ctx, inv.ID)
	require.NoError(t, err)

	assert.Equal(t, once.Subtotal, twice.Subtotal)
	assert.Equal(t, once.TotalAmount, twice.TotalAmount)
	assert.Equal(t, once.Notes, twice.Notes)

	items, err := s.Invoices().Items(ctx, inv.ID)
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestInvoiceLedger_RecomputeFailureRollsBack(t *testing.T) {
	s := memory.New()
	ledger := newTestLedger(s)
	ctx := context.Background()
	owner := seedAccount(t, s, "wanjiku")

	inv, _, err := ledger.GetOrCreateOpenInvoice(ctx, owner.ID)
	require.NoError(t, err)
	attachNew(t, s, owner, inv.ID, 1)
	_, err = ledger.Recompute(ctx, inv.ID)
	require.NoError(t, err)

	attachNew(t, s, owner, inv.ID, 1)
	s.FailNext("invoices.ReplaceItems", errors.New("connection reset"))

	_, err = ledger.Recompute(ctx, inv.ID)
	require.Error(t, err)
	assert.True(t, IsPersistenceError(err))

	stored, err := s.Invoices().ByID(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, pricing.KES(15000), stored.Subtotal, "totals are not half-applied")
}

func TestInvoiceLedger_RecomputeUnknownInvoice(t *testing.T) {
	s := memory.New()
	ledger := newTestLedger(s)

	_, err := ledger.Recompute(context.Background(), 99)
	assert.ErrorIs(t, err, ErrInvoiceNotFound)
}
