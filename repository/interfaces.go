// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"time"

	"github.com/apaysummit/summit-registration/models"
	"github.com/apaysummit/summit-registration/pricing"
)

// RepositoryContext key for transaction in context
type contextKey string

const TxContextKey contextKey = "tx"

// Orderings understood by every InvoiceRepository and ParticipantRepository implementation
const (
	InvoiceOrderNewest      = "invoices.created_at DESC, invoices.id DESC"
	InvoiceOrderByStatus    = "invoices.status ASC, invoices.issue_date DESC, invoices.id DESC"
	ParticipantOrderNewest  = "participants.created_at DESC, participants.id DESC"
	ParticipantOrderAdded   = "participants.id ASC"
	AccountOrderByUsername  = "accounts.username ASC"
	defaultInvoiceOrderBy   = InvoiceOrderNewest
	defaultParticipantOrder = ParticipantOrderNewest
	defaultAccountOrderBy   = "accounts.id DESC"
)

type Repository[T any, F any] interface {
	ByID(ctx context.Context, id uint) (*T, error)
	ByFilter(ctx context.Context, filter F, orderBy string, limit, offset int) ([]*T, error)
	Save(ctx context.Context, entity *T) error
	SaveBatch(ctx context.Context, entities []*T) error
	Count(ctx context.Context, filter F) (int64, error)
	Exists(ctx context.Context, filter F) (bool, error)
}

// Transactor runs fn atomically. Nested calls join the transaction already carried by ctx.
type Transactor interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// AccountRepository defines operations for accounts
type AccountRepository interface {
	Repository[models.Account, models.AccountFilter]
	ByUsername(ctx context.Context, username string) (*models.Account, error)
	ByEmail(ctx context.Context, email string) (*models.Account, error)
	// LockByID serializes writers that act on behalf of one account
	LockByID(ctx context.Context, id uint) (*models.Account, error)
	Update(ctx context.Context, account *models.Account) error
	UpdateLastLogin(ctx context.Context, id uint, at time.Time) error
}

// ProfileRepository defines operations for registrant profiles
type ProfileRepository interface {
	Repository[models.Profile, models.ProfileFilter]
	ByAccountID(ctx context.Context, accountID uint) (*models.Profile, error)
	ByVerificationToken(ctx context.Context, token string) (*models.Profile, error)
	Update(ctx context.Context, profile *models.Profile) error
}

// ParticipantRepository defines operations for participants
type ParticipantRepository interface {
	Repository[models.Participant, models.ParticipantFilter]
}

// InvoiceRepository defines operations for invoices, their items and their participant links
type InvoiceRepository interface {
	Repository[models.Invoice, models.InvoiceFilter]
	ByNumber(ctx context.Context, number string) (*models.Invoice, error)
	// OpenByAccount returns the account's pending invoice, if any
	OpenByAccount(ctx context.Context, accountID uint) (*models.Invoice, error)
	LockByID(ctx context.Context, id uint) (*models.Invoice, error)
	Update(ctx context.Context, invoice *models.Invoice) error
	AttachParticipants(ctx context.Context, invoiceID uint, participantIDs []uint) error
	DetachParticipant(ctx context.Context, invoiceID, participantID uint) (bool, error)
	CountParticipants(ctx context.Context, invoiceID uint) (int, error)
	ReplaceItems(ctx context.Context, invoiceID uint, items []models.InvoiceItem) error
	Items(ctx context.Context, invoiceID uint) ([]models.InvoiceItem, error)
	SumTotal(ctx context.Context, filter models.InvoiceFilter) (pricing.Money, error)
}
