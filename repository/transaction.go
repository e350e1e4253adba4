package repository

import (
	"context"

	"gorm.io/gorm"
)

// GormTransactor implements Transactor on top of a gorm connection
type GormTransactor struct {
	db *gorm.DB
}

// NewTransactor creates a Transactor bound to db
func NewTransactor(db *gorm.DB) Transactor {
	return &GormTransactor{db: db}
}

// WithTransaction joins the transaction in ctx when present, otherwise starts a new one
func (t *GormTransactor) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if tx, ok := ctx.Value(TxContextKey).(*gorm.DB); ok && tx != nil {
		return fn(ctx)
	}
	return WithTransaction(ctx, t.db, fn)
}
