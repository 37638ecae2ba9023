package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"ppesuite/internal/ports"
)

func dbFromContext(ctx context.Context, db *gorm.DB) (*gorm.DB, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tx := ports.TxFromContext(ctx)
	if tx == nil {
		return db.WithContext(ctx), nil
	}

	gormTx, ok := tx.(*gorm.DB)
	if !ok || gormTx == nil {
		return nil, fmt.Errorf("invalid tx in context: %T", tx)
	}
	return gormTx.WithContext(ctx), nil
}
