package repository

import (
	"context"
	"fmt"

	"github.com/apaysummit/summit-registration/models"
	"gorm.io/gorm"
)

// ProfileRepositoryImpl implements ProfileRepository interface
type ProfileRepositoryImpl struct {
	*BaseRepository[models.Profile, models.ProfileFilter]
}

// NewProfileRepository creates a new profile repository
func NewProfileRepository(db *gorm.DB) ProfileRepository {
	return &ProfileRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Profile, models.ProfileFilter](db),
	}
}

// ByAccountID retrieves the profile owned by an account
func (r *ProfileRepositoryImpl) ByAccountID(ctx context.Context, accountID uint) (*models.Profile, error) {
	rows, err := r.ByFilter(ctx, models.ProfileFilter{AccountID: &accountID}, "", 1, 0)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// ByVerificationToken retrieves the profile holding an outstanding verification token
func (r *ProfileRepositoryImpl) ByVerificationToken(ctx context.Context, token string) (*models.Profile, error) {
	if token == "" {
		return nil, nil
	}
	rows, err := r.ByFilter(ctx, models.ProfileFilter{VerificationToken: &token}, "", 1, 0)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// applyFilter applies filter criteria to a GORM query
func (r *ProfileRepositoryImpl) applyFilter(query *gorm.DB, filter models.ProfileFilter) *gorm.DB {
	if filter.AccountID != nil {
		query = query.Where("account_id = ?", *filter.AccountID)
	}
	if filter.VerificationToken != nil {
		query = query.Where("verification_token = ?", *filter.VerificationToken)
	}
	if filter.EmailVerified != nil {
		query = query.Where("email_verified = ?", *filter.EmailVerified)
	}
	return query
}

// ByFilter retrieves profiles based on filter criteria
func (r *ProfileRepositoryImpl) ByFilter(ctx context.Context, filter models.ProfileFilter, orderBy string, limit, offset int) ([]*models.Profile, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.Profile{}), filter)

	if orderBy == "" {
		orderBy = "id DESC"
	}
	query = query.Order(orderBy)

	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var rows []*models.Profile
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to find profiles: %w", err)
	}
	return rows, nil
}

// Count returns number of profiles matching filter
func (r *ProfileRepositoryImpl) Count(ctx context.Context, filter models.ProfileFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.Profile{}), filter)
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Exists checks if any profile matches the filter
func (r *ProfileRepositoryImpl) Exists(ctx context.Context, filter models.ProfileFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}
