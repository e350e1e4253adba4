package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/apaysummit/summit-registration/models"
	"github.com/apaysummit/summit-registration/pricing"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// InvoiceRepositoryImpl implements InvoiceRepository interface
type InvoiceRepositoryImpl struct {
	*BaseRepository[models.Invoice, models.InvoiceFilter]
}

// NewInvoiceRepository creates a new invoice repository
func NewInvoiceRepository(db *gorm.DB) InvoiceRepository {
	return &InvoiceRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Invoice, models.InvoiceFilter](db),
	}
}

// ByNumber retrieves an invoice by its public number
func (r *InvoiceRepositoryImpl) ByNumber(ctx context.Context, number string) (*models.Invoice, error) {
	return r.first(ctx, models.InvoiceFilter{InvoiceNumber: &number})
}

// OpenByAccount returns the account's pending invoice, if any
func (r *InvoiceRepositoryImpl) OpenByAccount(ctx context.Context, accountID uint) (*models.Invoice, error) {
	status := models.InvoiceStatusPending
	return r.first(ctx, models.InvoiceFilter{AccountID: &accountID, Status: &status})
}

func (r *InvoiceRepositoryImpl) first(ctx context.Context, filter models.InvoiceFilter) (*models.Invoice, error) {
	rows, err := r.ByFilter(ctx, filter, "", 1, 0)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// AttachParticipants links participants to an invoice. Existing links are kept.
func (r *InvoiceRepositoryImpl) AttachParticipants(ctx context.Context, invoiceID uint, participantIDs []uint) error {
	if len(participantIDs) == 0 {
		return nil
	}

	links := make([]models.InvoiceParticipant, 0, len(participantIDs))
	for _, id := range participantIDs {
		links = append(links, models.InvoiceParticipant{InvoiceID: invoiceID, ParticipantID: id})
	}

	return r.write(ctx, func(db *gorm.DB) error {
		if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&links).Error; err != nil {
			return fmt.Errorf("failed to attach participants to invoice %d: %w", invoiceID, err)
		}
		return nil
	})
}

// DetachParticipant removes one link and reports whether it existed
func (r *InvoiceRepositoryImpl) DetachParticipant(ctx context.Context, invoiceID, participantID uint) (bool, error) {
	var removed bool
	err := r.write(ctx, func(db *gorm.DB) error {
		res := db.Where("invoice_id = ? AND participant_id = ?", invoiceID, participantID).
			Delete(&models.InvoiceParticipant{})
		if res.Error != nil {
			return fmt.Errorf("failed to detach participant %d from invoice %d: %w", participantID, invoiceID, res.Error)
		}
		removed = res.RowsAffected > 0
		return nil
	})
	return removed, err
}

// CountParticipants returns the number of participants linked to the invoice
func (r *InvoiceRepositoryImpl) CountParticipants(ctx context.Context, invoiceID uint) (int, error) {
	db := r.getDB(ctx)
	var count int64
	if err := db.Model(&models.InvoiceParticipant{}).Where("invoice_id = ?", invoiceID).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count participants of invoice %d: %w", invoiceID, err)
	}
	return int(count), nil
}

// ReplaceItems deletes every line of the invoice and inserts items in their place
func (r *InvoiceRepositoryImpl) ReplaceItems(ctx context.Context, invoiceID uint, items []models.InvoiceItem) error {
	return r.write(ctx, func(db *gorm.DB) error {
		if err := db.Where("invoice_id = ?", invoiceID).Delete(&models.InvoiceItem{}).Error; err != nil {
			return fmt.Errorf("failed to clear items of invoice %d: %w", invoiceID, err)
		}
		if len(items) == 0 {
			return nil
		}
		for i := range items {
			items[i].ID = 0
			items[i].InvoiceID = invoiceID
		}
		if err := db.Create(&items).Error; err != nil {
			return fmt.Errorf("failed to insert items of invoice %d: %w", invoiceID, err)
		}
		return nil
	})
}

// Items returns the invoice lines in insertion order
func (r *InvoiceRepositoryImpl) Items(ctx context.Context, invoiceID uint) ([]models.InvoiceItem, error) {
	db := r.getDB(ctx)
	var rows []models.InvoiceItem
	if err := db.Where("invoice_id = ?", invoiceID).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load items of invoice %d: %w", invoiceID, err)
	}
	return rows, nil
}

// SumTotal adds up total_amount over the invoices matching filter
func (r *InvoiceRepositoryImpl) SumTotal(ctx context.Context, filter models.InvoiceFilter) (pricing.Money, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.Invoice{}), filter)

	var total int64
	if err := query.Select("COALESCE(SUM(invoices.total_amount), 0)").Scan(&total).Error; err != nil {
		return 0, fmt.Errorf("failed to sum invoice totals: %w", err)
	}
	return pricing.Money(total), nil
}

// applyFilter applies filter criteria to a GORM query
func (r *InvoiceRepositoryImpl) applyFilter(query *gorm.DB, filter models.InvoiceFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("invoices.id = ?", *filter.ID)
	}
	if len(filter.IDs) > 0 {
		query = query.Where("invoices.id IN ?", filter.IDs)
	}
	if filter.AccountID != nil {
		query = query.Where("invoices.account_id = ?", *filter.AccountID)
	}
	if filter.InvoiceNumber != nil {
		query = query.Where("invoices.invoice_number = ?", *filter.InvoiceNumber)
	}
	if filter.Status != nil {
		query = query.Where("invoices.status = ?", *filter.Status)
	}
	if len(filter.Statuses) > 0 {
		query = query.Where("invoices.status IN ?", filter.Statuses)
	}
	if filter.IssuedAfter != nil {
		query = query.Where("invoices.issue_date >= ?", *filter.IssuedAfter)
	}
	if filter.IssuedBefore != nil {
		query = query.Where("invoices.issue_date <= ?", *filter.IssuedBefore)
	}
	if filter.Search != nil {
		if term := strings.TrimSpace(*filter.Search); term != "" {
			like := "%" + escapeLike(term) + "%"
			query = query.Joins("JOIN accounts ON accounts.id = invoices.account_id").
				Where("invoices.invoice_number ILIKE ? OR accounts.username ILIKE ? OR accounts.email ILIKE ? OR invoices.payment_reference ILIKE ?",
					like, like, like, like)
		}
	}
	return query
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike makes term match literally inside a LIKE pattern; PostgreSQL's default escape is backslash
func escapeLike(term string) string {
	return likeEscaper.Replace(term)
}

// ByFilter retrieves invoices based on filter criteria
func (r *InvoiceRepositoryImpl) ByFilter(ctx context.Context, filter models.InvoiceFilter, orderBy string, limit, offset int) ([]*models.Invoice, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.Invoice{}).Select("invoices.*"), filter)

	if orderBy == "" {
		orderBy = defaultInvoiceOrderBy
	}
	query = query.Order(orderBy)

	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var rows []*models.Invoice
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to find invoices: %w", err)
	}
	return rows, nil
}

// Count returns number of invoices matching filter
func (r *InvoiceRepositoryImpl) Count(ctx context.Context, filter models.InvoiceFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.Invoice{}), filter)
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Exists checks if any invoice matches the filter
func (r *InvoiceRepositoryImpl) Exists(ctx context.Context, filter models.InvoiceFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}
