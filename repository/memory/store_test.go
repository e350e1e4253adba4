package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/apaysummit/summit-registration/models"
	"github.com/apaysummit/summit-registration/pricing"
	"github.com/apaysummit/summit-registration/repository"
	"github.com/apaysummit/summit-registration/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedAccount(t *testing.T, s *Store, username, email string) *models.Account {
	t.Helper()
	a := &models.Account{Username: username, Email: email, PasswordHash: "x"}
	require.NoError(t, s.Accounts().Save(context.Background(), a))
	return a
}

func TestStore_TransactionRollback(t *testing.T) {
	s := New()
	ctx := context.Background()
	owner := seedAccount(t, s, "alice", "alice@example.com")

	boom := errors.New("boom")
	err := s.WithTransaction(ctx, func(txCtx context.Context) error {
		p := &models.Participant{AccountID: owner.ID, Name: "Jane", Email: "jane@example.com"}
		require.NoError(t, s.Participants().Save(txCtx, p))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	count, err := s.Participants().Count(ctx, models.ParticipantFilter{AccountID: &owner.ID})
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestStore_NestedTransactionJoinsOuter(t *testing.T) {
	s := New()
	ctx := context.Background()
	owner := seedAccount(t, s, "alice", "alice@example.com")

	err := s.WithTransaction(ctx, func(outer context.Context) error {
		return s.WithTransaction(outer, func(inner context.Context) error {
			return s.Participants().Save(inner, &models.Participant{AccountID: owner.ID, Name: "A", Email: "a@x.io"})
		})
	})
	require.NoError(t, err)

	count, err := s.Participants().Count(ctx, models.ParticipantFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestStore_PanicRollsBack(t *testing.T) {
	s := New()
	ctx := context.Background()

	err := s.WithTransaction(ctx, func(txCtx context.Context) error {
		require.NoError(t, s.Accounts().Save(txCtx, &models.Account{Username: "ghost", Email: "ghost@example.com"}))
		panic("unexpected")
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panic in transaction")

	ghost, err := s.Accounts().ByUsername(ctx, "ghost")
	require.NoError(t, err)
	assert.Nil(t, ghost)
}

func TestStore_UniqueConstraints(t *testing.T) {
	s := New()
	ctx := context.Background()
	owner := seedAccount(t, s, "alice", "alice@example.com")

	err := s.Accounts().Save(ctx, &models.Account{Username: "alice2", Email: "ALICE@example.com"})
	assert.ErrorIs(t, err, ErrUniqueViolation)

	first := &models.Invoice{InvoiceNumber: "INV-AAAAAAAA", AccountID: owner.ID, Status: models.InvoiceStatusPending}
	require.NoError(t, s.Invoices().Save(ctx, first))

	second := &models.Invoice{InvoiceNumber: "INV-BBBBBBBB", AccountID: owner.ID, Status: models.InvoiceStatusPending}
	assert.ErrorIs(t, s.Invoices().Save(ctx, second), ErrUniqueViolation)

	second.Status = models.InvoiceStatusPaid
	require.NoError(t, s.Invoices().Save(ctx, second))

	dup := &models.Invoice{InvoiceNumber: "INV-AAAAAAAA", AccountID: owner.ID, Status: models.InvoiceStatusCancelled}
	assert.ErrorIs(t, s.Invoices().Save(ctx, dup), ErrUniqueViolation)
}

func TestStore_InvoiceLinksAndItems(t *testing.T) {
	s := New()
	ctx := context.Background()
	owner := seedAccount(t, s, "alice", "alice@example.com")

	inv := &models.Invoice{InvoiceNumber: "INV-12345678", AccountID: owner.ID}
	require.NoError(t, s.Invoices().Save(ctx, inv))

	people := []*models.Participant{
		{AccountID: owner.ID, Name: "A", Email: "a@x.io"},
		{AccountID: owner.ID, Name: "B", Email: "b@x.io"},
	}
	require.NoError(t, s.Participants().SaveBatch(ctx, people))
	require.NoError(t, s.Invoices().AttachParticipants(ctx, inv.ID, []uint{people[0].ID, people[1].ID, people[0].ID}))

	n, err := s.Invoices().CountParticipants(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	attached, err := s.Participants().ByFilter(ctx, models.ParticipantFilter{InvoiceID: &inv.ID}, repository.ParticipantOrderAdded, 0, 0)
	require.NoError(t, err)
	require.Len(t, attached, 2)
	assert.Equal(t, "A", attached[0].Name)

	removed, err := s.Invoices().DetachParticipant(ctx, inv.ID, people[0].ID)
	require.NoError(t, err)
	assert.True(t, removed)
	removed, err = s.Invoices().DetachParticipant(ctx, inv.ID, people[0].ID)
	require.NoError(t, err)
	assert.False(t, removed)

	items := []models.InvoiceItem{models.NewInvoiceItem(0, "Individual Registration – 1 participant(s)", 1, pricing.KES(15000))}
	require.NoError(t, s.Invoices().ReplaceItems(ctx, inv.ID, items))
	require.NoError(t, s.Invoices().ReplaceItems(ctx, inv.ID, items))

	stored, err := s.Invoices().Items(ctx, inv.ID)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, inv.ID, stored[0].InvoiceID)
}

func TestStore_InvoiceOrderingAndSearch(t *testing.T) {
	s := New()
	ctx := context.Background()
	alice := seedAccount(t, s, "alice", "alice@example.com")
	bob := seedAccount(t, s, "bob", "bob@corp.io")

	day := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	rows := []*models.Invoice{
		{InvoiceNumber: "INV-00000001", AccountID: alice.ID, Status: models.InvoiceStatusPaid, IssueDate: day, TotalAmount: pricing.KES(15000)},
		{InvoiceNumber: "INV-00000002", AccountID: alice.ID, Status: models.InvoiceStatusPending, IssueDate: day.AddDate(0, 0, 1)},
		{InvoiceNumber: "INV-00000003", AccountID: bob.ID, Status: models.InvoiceStatusPaid, IssueDate: day.AddDate(0, 0, 2), TotalAmount: pricing.KES(45000),
			PaymentReference: utils.ToPtr("MPESA-XYZ")},
	}
	require.NoError(t, s.Invoices().SaveBatch(ctx, rows))

	byStatus, err := s.Invoices().ByFilter(ctx, models.InvoiceFilter{}, repository.InvoiceOrderByStatus, 0, 0)
	require.NoError(t, err)
	require.Len(t, byStatus, 3)
	assert.Equal(t, "INV-00000003", byStatus[0].InvoiceNumber)
	assert.Equal(t, "INV-00000001", byStatus[1].InvoiceNumber)
	assert.Equal(t, "INV-00000002", byStatus[2].InvoiceNumber)

	found, err := s.Invoices().ByFilter(ctx, models.InvoiceFilter{Search: utils.ToPtr("CORP")}, "", 0, 0)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, bob.ID, found[0].AccountID)

	found, err = s.Invoices().ByFilter(ctx, models.InvoiceFilter{Search: utils.ToPtr("mpesa")}, "", 0, 0)
	require.NoError(t, err)
	require.Len(t, found, 1)

	paid := models.InvoiceStatusPaid
	revenue, err := s.Invoices().SumTotal(ctx, models.InvoiceFilter{Status: &paid})
	require.NoError(t, err)
	assert.Equal(t, pricing.KES(60000), revenue)

	_, err = s.Invoices().ByFilter(ctx, models.InvoiceFilter{}, "amount DESC", 0, 0)
	assert.Error(t, err)

	paged, err := s.Invoices().ByFilter(ctx, models.InvoiceFilter{}, "", 2, 2)
	require.NoError(t, err)
	assert.Len(t, paged, 1)
}

func TestStore_FailNext(t *testing.T) {
	s := New()
	ctx := context.Background()
	injected := errors.New("disk full")

	s.FailNext("accounts.Save", injected)
	err := s.Accounts().Save(ctx, &models.Account{Username: "alice", Email: "alice@example.com"})
	assert.ErrorIs(t, err, injected)

	require.NoError(t, s.Accounts().Save(ctx, &models.Account{Username: "alice", Email: "alice@example.com"}))
}
