package businessflow

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/apaysummit/summit-registration/models"
	"github.com/apaysummit/summit-registration/pricing"
	"github.com/apaysummit/summit-registration/repository"
	"github.com/apaysummit/summit-registration/utils"
	"github.com/google/uuid"
)

// maxInvoiceNumberAttempts bounds the retries when a generated number is already taken
const maxInvoiceNumberAttempts = 10

// InvoiceLedger owns the open invoice of each account and keeps invoice totals in line
// with the participants attached to them.
type InvoiceLedger interface {
	// GetOrCreateOpenInvoice returns the owner's pending invoice, creating one when there is none.
	// created reports whether this call made the invoice. It joins the caller's transaction when ctx carries one.
	GetOrCreateOpenInvoice(ctx context.Context, accountID uint) (invoice *models.Invoice, created bool, err error)
	// Recompute reprices an invoice from its participant count and rewrites its line items.
	Recompute(ctx context.Context, invoiceID uint) (*models.Invoice, error)
}

// InvoiceLedgerImpl implements InvoiceLedger
type InvoiceLedgerImpl struct {
	accountRepo repository.AccountRepository
	invoiceRepo repository.InvoiceRepository
	txr         repository.Transactor
	policy      pricing.Policy

	now       func() time.Time
	newNumber func() string
}

// NewInvoiceLedger creates a new invoice ledger
func NewInvoiceLedger(
	accountRepo repository.AccountRepository,
	invoiceRepo repository.InvoiceRepository,
	txr repository.Transactor,
	policy pricing.Policy,
) InvoiceLedger {
	return &InvoiceLedgerImpl{
		accountRepo: accountRepo,
		invoiceRepo: invoiceRepo,
		txr:         txr,
		policy:      policy,
		now:         utils.UTCNow,
		newNumber:   generateInvoiceNumber,
	}
}

// generateInvoiceNumber returns "INV-" followed by eight upper-case hex digits
func generateInvoiceNumber() string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	return utils.InvoiceNumberPrefix + strings.ToUpper(hex[:8])
}

func (l *InvoiceLedgerImpl) GetOrCreateOpenInvoice(ctx context.Context, accountID uint) (*models.Invoice, bool, error) {
	var invoice *models.Invoice
	var isNew bool

	err := l.txr.WithTransaction(ctx, func(txCtx context.Context) error {
		// The account row lock serializes open-invoice creation per owner
		account, err := l.accountRepo.LockByID(txCtx, accountID)
		if err != nil {
			return persistence("lock account", err)
		}
		if account == nil {
			return ErrAccountNotFound
		}

		open, err := l.invoiceRepo.OpenByAccount(txCtx, accountID)
		if err != nil {
			return persistence("find open invoice", err)
		}
		if open != nil {
			invoice = open
			return nil
		}

		number, err := l.allocateNumber(txCtx)
		if err != nil {
			return err
		}

		today := utils.DateOnly(l.now())
		created := &models.Invoice{
			InvoiceNumber: number,
			AccountID:     accountID,
			IssueDate:     today,
			DueDate:       today.AddDate(0, 0, utils.InvoiceDueDays),
			Status:        models.InvoiceStatusPending,
			Notes:         utils.InvoiceCreationNote,
		}
		if err := l.invoiceRepo.Save(txCtx, created); err != nil {
			return persistence("create invoice", err)
		}

		invoicesCreatedTotal.Inc()
		slog.InfoContext(txCtx, "Invoice created", "invoice_number", created.InvoiceNumber, "account_id", accountID)
		invoice = created
		isNew = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	return invoice, isNew, nil
}

func (l *InvoiceLedgerImpl) allocateNumber(ctx context.Context) (string, error) {
	for range maxInvoiceNumberAttempts {
		candidate := l.newNumber()
		taken, err := l.invoiceRepo.ByNumber(ctx, candidate)
		if err != nil {
			return "", persistence("check invoice number", err)
		}
		if taken == nil {
			return candidate, nil
		}
	}
	return "", ErrInvoiceNumberUnavailable
}

func (l *InvoiceLedgerImpl) Recompute(ctx context.Context, invoiceID uint) (*models.Invoice, error) {
	var invoice *models.Invoice

	err := l.txr.WithTransaction(ctx, func(txCtx context.Context) error {
		inv, err := l.invoiceRepo.LockByID(txCtx, invoiceID)
		if err != nil {
			return persistence("lock invoice", err)
		}
		if inv == nil {
			return ErrInvoiceNotFound
		}

		count, err := l.invoiceRepo.CountParticipants(txCtx, invoiceID)
		if err != nil {
			return persistence("count participants", err)
		}

		quote := l.policy.Price(count)
		inv.ApplyQuote(quote)
		if err := l.invoiceRepo.Update(txCtx, inv); err != nil {
			return persistence("update invoice totals", err)
		}

		items := []models.InvoiceItem{}
		if quote.HasItem() {
			items = append(items, models.NewInvoiceItem(inv.ID, quote.Description, quote.Count, quote.UnitPrice))
		}
		if err := l.invoiceRepo.ReplaceItems(txCtx, inv.ID, items); err != nil {
			return persistence("replace invoice items", err)
		}

		invoiceRecomputeTotal.WithLabelValues(string(quote.Tier)).Inc()
		inv.Items = items
		invoice = inv
		return nil
	})
	if err != nil {
		return nil, err
	}

	return invoice, nil
}
