package cache

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"ppesuite/internal/errs"
	"ppesuite/internal/infrastructure/persistence/sqlite/model"
	"ppesuite/internal/ports"
)

type SQLiteCache struct {
	db  *gorm.DB
	now func() time.Time
}

var _ ports.Cache = (*SQLiteCache)(nil)

func NewSQLiteCache(db *gorm.DB) *SQLiteCache {
	return &SQLiteCache{db: db, now: time.Now}
}

func (c *SQLiteCache) Get(ctx context.Context, key string) (string, bool, error) {
	trimmedKey, err := checkKey(ctx, key)
	if err != nil {
		return "", false, err
	}

	var row model.AppKV
	if err := c.db.WithContext(ctx).Where("key = ?", trimmedKey).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", false, nil
		}
		return "", false, errs.Wrap(err, "query cache by key")
	}

	if row.ExpiresAt > 0 && row.ExpiresAt <= c.now().UnixMilli() {
		if err := c.db.WithContext(ctx).
			Where("key = ? AND expires_at = ?", trimmedKey, row.ExpiresAt).
			Delete(&model.AppKV{}).Error; err != nil {
			return "", false, errs.Wrap(err, "delete expired cache key")
		}
		return "", false, nil
	}

	return row.Value, true, nil
}

func (c *SQLiteCache) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	trimmedKey, err := checkKey(ctx, key)
	if err != nil {
		return err
	}
	if ttl < 0 {
		return errors.New("ttl must not be negative")
	}

	now := c.now().UTC()
	row := model.AppKV{
		Key:       trimmedKey,
		Value:     value,
		UpdatedAt: now.Format(time.RFC3339Nano),
	}
	if ttl > 0 {
		row.ExpiresAt = now.Add(ttl).UnixMilli()
	}

	if err := c.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "key"}},
		DoUpdates: clause.Assignments(map[string]any{
			"value":      row.Value,
			"updated_at": row.UpdatedAt,
			"expires_at": row.ExpiresAt,
		}),
	}).Create(&row).Error; err != nil {
		return errs.Wrap(err, "upsert cache key")
	}

	return nil
}

func (c *SQLiteCache) Delete(ctx context.Context, key string) error {
	trimmedKey, err := checkKey(ctx, key)
	if err != nil {
		return err
	}

	if err := c.db.WithContext(ctx).Where("key = ?", trimmedKey).Delete(&model.AppKV{}).Error; err != nil {
		return errs.Wrap(err, "delete cache key")
	}
	return nil
}

// Purge removes every expired entry and reports how many were dropped.
func (c *SQLiteCache) Purge(ctx context.Context) (int64, error) {
	if ctx == nil {
		return 0, errors.New("context is required")
	}
	result := c.db.WithContext(ctx).
		Where("expires_at > 0 AND expires_at <= ?", c.now().UnixMilli()).
		Delete(&model.AppKV{})
	if result.Error != nil {
		return 0, errs.Wrap(result.Error, "purge expired cache keys")
	}
	return result.RowsAffected, nil
}

func checkKey(ctx context.Context, key string) (string, error) {
	if ctx == nil {
		return "", errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return "", errs.Wrap(err, "check context")
	}

	trimmedKey := strings.TrimSpace(key)
	if trimmedKey == "" {
		return "", errors.New("key is required")
	}
	return trimmedKey, nil
}
