package tests

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/apaysummit/summit-registration/app/dto"
	"github.com/apaysummit/summit-registration/app/services"
	businessflow "github.com/apaysummit/summit-registration/business_flow"
	"github.com/apaysummit/summit-registration/models"
	"github.com/apaysummit/summit-registration/pricing"
	"github.com/apaysummit/summit-registration/repository"
	testingutil "github.com/apaysummit/summit-registration/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newParticipantFlow(db *testingutil.TestDB) businessflow.ParticipantFlow {
	accountRepo := repository.NewAccountRepository(db.DB)
	invoiceRepo := repository.NewInvoiceRepository(db.DB)
	txr := repository.NewTransactor(db.DB)
	policy := pricing.NewSummitPolicy()
	ledger := businessflow.NewInvoiceLedger(accountRepo, invoiceRepo, txr, policy)

	return businessflow.NewParticipantFlow(
		repository.NewParticipantRepository(db.DB),
		invoiceRepo,
		ledger,
		txr,
		services.NewDocumentRenderer(policy, "Apay Summit"),
	)
}

func TestParticipantFlow_ConcurrentAddsShareOneOpenInvoice(t *testing.T) {
	withDB(t, func(t *testing.T, db *testingutil.TestDB) {
		ctx := context.Background()
		flow := newParticipantFlow(db)
		account, err := testingutil.NewTestFixtures(db).CreateTestAccount(false)
		require.NoError(t, err)

		const workers = 6
		var wg sync.WaitGroup
		errs := make(chan error, workers)
		for i := range workers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := flow.AddParticipant(ctx, &dto.AddParticipantRequest{
					AccountID: account.ID,
					Name:      fmt.Sprintf("Delegate %d", i),
					Email:     fmt.Sprintf("delegate%d@example.co.ke", i),
				}, nil)
				errs <- err
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			require.NoError(t, err)
		}

		invoiceRepo := repository.NewInvoiceRepository(db.DB)
		accountID := account.ID
		invoices, err := invoiceRepo.ByFilter(ctx, models.InvoiceFilter{AccountID: &accountID}, "", 0, 0)
		require.NoError(t, err)
		require.Len(t, invoices, 1)

		invoice := invoices[0]
		assert.Equal(t, models.InvoiceStatusPending, invoice.Status)
		assert.Equal(t, pricing.KES(66000), invoice.Subtotal)
		assert.Equal(t, invoice.Subtotal.Add(invoice.TaxAmount), invoice.TotalAmount)

		count, err := invoiceRepo.CountParticipants(ctx, invoice.ID)
		require.NoError(t, err)
		assert.Equal(t, workers, count)

		items, err := invoiceRepo.Items(ctx, invoice.ID)
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, workers, items[0].Quantity)
		assert.Equal(t, invoice.Subtotal, items[0].Total)
	})
}

func TestParticipantFlow_DetachReprices(t *testing.T) {
	withDB(t, func(t *testing.T, db *testingutil.TestDB) {
		ctx := context.Background()
		flow := newParticipantFlow(db)
		account, err := testingutil.NewTestFixtures(db).CreateTestAccount(false)
		require.NoError(t, err)

		var last *dto.BulkAddParticipantsResponse
		last, err = flow.BulkAddParticipants(ctx, &dto.BulkAddParticipantsRequest{
			AccountID: account.ID,
			Data:      "Jane,jane@example.co.ke,0712345678\nOtieno,otieno@example.co.ke,\nAmina,amina@example.co.ke,\nKip,kip@example.co.ke,",
		}, nil)
		require.NoError(t, err)
		require.Equal(t, 4, last.AddedCount)
		require.NotNil(t, last.Invoice)
		assert.Equal(t, pricing.KES(45000), last.Invoice.Subtotal)

		list, err := flow.ListParticipants(ctx, &dto.ListParticipantsRequest{AccountID: account.ID}, nil)
		require.NoError(t, err)
		require.Len(t, list.Participants, 4)

		res, err := flow.DetachParticipant(ctx, &dto.DetachParticipantRequest{
			AccountID:     account.ID,
			InvoiceID:     last.Invoice.ID,
			ParticipantID: list.Participants[0].ID,
		}, nil)
		require.NoError(t, err)
		assert.Equal(t, 3, res.Invoice.ParticipantCount)
		assert.Equal(t, pricing.KES(45000), res.Invoice.Subtotal)

		// The participant row itself survives the detach
		participantRepo := repository.NewParticipantRepository(db.DB)
		stored, err := participantRepo.ByID(ctx, list.Participants[0].ID)
		require.NoError(t, err)
		assert.NotNil(t, stored)
	})
}
