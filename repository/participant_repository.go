package repository

import (
	"context"
	"fmt"

	"github.com/apaysummit/summit-registration/models"
	"gorm.io/gorm"
)

// ParticipantRepositoryImpl implements ParticipantRepository interface
type ParticipantRepositoryImpl struct {
	*BaseRepository[models.Participant, models.ParticipantFilter]
}

// NewParticipantRepository creates a new participant repository
func NewParticipantRepository(db *gorm.DB) ParticipantRepository {
	return &ParticipantRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Participant, models.ParticipantFilter](db),
	}
}

// applyFilter applies filter criteria to a GORM query
func (r *ParticipantRepositoryImpl) applyFilter(query *gorm.DB, filter models.ParticipantFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("participants.id = ?", *filter.ID)
	}
	if filter.AccountID != nil {
		query = query.Where("participants.account_id = ?", *filter.AccountID)
	}
	if filter.Email != nil {
		query = query.Where("LOWER(participants.email) = LOWER(?)", *filter.Email)
	}
	if filter.InvoiceID != nil {
		query = query.Joins("JOIN invoice_participants ip ON ip.participant_id = participants.id").
			Where("ip.invoice_id = ?", *filter.InvoiceID)
	}
	return query
}

// ByFilter retrieves participants based on filter criteria
func (r *ParticipantRepositoryImpl) ByFilter(ctx context.Context, filter models.ParticipantFilter, orderBy string, limit, offset int) ([]*models.Participant, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.Participant{}).Select("participants.*"), filter)

	if orderBy == "" {
		orderBy = defaultParticipantOrder
	}
	query = query.Order(orderBy)

	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var rows []*models.Participant
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to find participants: %w", err)
	}
	return rows, nil
}

// Count returns number of participants matching filter
func (r *ParticipantRepositoryImpl) Count(ctx context.Context, filter models.ParticipantFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.Participant{}), filter)
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Exists checks if any participant matches the filter
func (r *ParticipantRepositoryImpl) Exists(ctx context.Context, filter models.ParticipantFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}
