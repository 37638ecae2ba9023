package uow

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"ppesuite/internal/ports"
)

// UnitOfWork implements ports.UnitOfWork with gorm.
type UnitOfWork struct {
	db *gorm.DB
}

var _ ports.UnitOfWork = (*UnitOfWork)(nil)

func NewUnitOfWork(db *gorm.DB) *UnitOfWork {
	return &UnitOfWork{db: db}
}

// WithTx joins an outer transaction when ctx already carries one.
func (u *UnitOfWork) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if ports.TxFromContext(ctx) != nil {
		return fn(ctx)
	}
	return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ports.WithTxContext(ctx, tx))
	})
}
