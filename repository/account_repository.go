package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/apaysummit/summit-registration/models"
	"gorm.io/gorm"
)

// AccountRepositoryImpl implements AccountRepository interface
type AccountRepositoryImpl struct {
	*BaseRepository[models.Account, models.AccountFilter]
}

// NewAccountRepository creates a new account repository
func NewAccountRepository(db *gorm.DB) AccountRepository {
	return &AccountRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Account, models.AccountFilter](db),
	}
}

// ByUsername retrieves an account by its exact username
func (r *AccountRepositoryImpl) ByUsername(ctx context.Context, username string) (*models.Account, error) {
	return r.first(ctx, models.AccountFilter{Username: &username})
}

// ByEmail retrieves an account by email, ignoring case
func (r *AccountRepositoryImpl) ByEmail(ctx context.Context, email string) (*models.Account, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return r.first(ctx, models.AccountFilter{Email: &email})
}

func (r *AccountRepositoryImpl) first(ctx context.Context, filter models.AccountFilter) (*models.Account, error) {
	rows, err := r.ByFilter(ctx, filter, "", 1, 0)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// UpdateLastLogin stamps the last successful login time
func (r *AccountRepositoryImpl) UpdateLastLogin(ctx context.Context, id uint, at time.Time) error {
	return r.write(ctx, func(db *gorm.DB) error {
		res := db.Model(&models.Account{}).Where("id = ?", id).Updates(map[string]any{
			"last_login_at": at,
			"updated_at":    at,
		})
		if res.Error != nil {
			return fmt.Errorf("failed to update last login: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return errors.New("account not found")
		}
		return nil
	})
}

// applyFilter applies filter criteria to a GORM query
func (r *AccountRepositoryImpl) applyFilter(query *gorm.DB, filter models.AccountFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("accounts.id = ?", *filter.ID)
	}
	if filter.Username != nil {
		query = query.Where("accounts.username = ?", *filter.Username)
	}
	if filter.Email != nil {
		query = query.Where("LOWER(accounts.email) = ?", strings.ToLower(*filter.Email))
	}
	if filter.IsStaff != nil {
		query = query.Where("accounts.is_staff = ?", *filter.IsStaff)
	}
	if filter.IsActive != nil {
		query = query.Where("accounts.is_active = ?", *filter.IsActive)
	}
	return query
}

// ByFilter retrieves accounts based on filter criteria
func (r *AccountRepositoryImpl) ByFilter(ctx context.Context, filter models.AccountFilter, orderBy string, limit, offset int) ([]*models.Account, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.Account{}), filter)

	if orderBy == "" {
		orderBy = defaultAccountOrderBy
	}
	query = query.Order(orderBy)

	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var rows []*models.Account
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to find accounts: %w", err)
	}
	return rows, nil
}

// Count returns number of accounts matching filter
func (r *AccountRepositoryImpl) Count(ctx context.Context, filter models.AccountFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.Account{}), filter)
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Exists checks if any account matches the filter
func (r *AccountRepositoryImpl) Exists(ctx context.Context, filter models.AccountFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}
