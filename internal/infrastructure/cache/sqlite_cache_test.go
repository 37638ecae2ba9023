package cache

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"ppesuite/internal/infrastructure/persistence/sqlite/model"
)

func setupSQLiteCache(t *testing.T) *SQLiteCache {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "cache.sqlite")
	db, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql db: %v", err)
	}
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	if err := db.AutoMigrate(&model.AppKV{}); err != nil {
		t.Fatalf("auto migrate app_kv: %v", err)
	}

	return NewSQLiteCache(db)
}

func TestSQLiteCacheSetGetDelete(t *testing.T) {
	cache := setupSQLiteCache(t)
	ctx := context.Background()

	if err := cache.Set(ctx, "session:abc", `{"email":"a@example.com"}`, 0); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	value, found, err := cache.Get(ctx, "session:abc")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !found || value != `{"email":"a@example.com"}` {
		t.Fatalf("Get() = %q, found=%v", value, found)
	}

	if err := cache.Set(ctx, "session:abc", "v2", time.Hour); err != nil {
		t.Fatalf("Set(update) error = %v", err)
	}
	value, found, err = cache.Get(ctx, "session:abc")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !found || value != "v2" {
		t.Fatalf("Get() after update = %q, found=%v", value, found)
	}

	if err := cache.Delete(ctx, "session:abc"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, found, err := cache.Get(ctx, "session:abc"); err != nil || found {
		t.Fatalf("Get() after delete found=%v err=%v", found, err)
	}
}

func TestSQLiteCacheExpiry(t *testing.T) {
	cache := setupSQLiteCache(t)
	ctx := context.Background()

	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return now }

	if err := cache.Set(ctx, "oauth_state:x", "1", 10*time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := cache.Set(ctx, "pinned", "1", 0); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	now = now.Add(9 * time.Minute)
	if _, found, err := cache.Get(ctx, "oauth_state:x"); err != nil || !found {
		t.Fatalf("Get() before expiry found=%v err=%v", found, err)
	}

	now = now.Add(2 * time.Minute)
	if _, found, err := cache.Get(ctx, "oauth_state:x"); err != nil || found {
		t.Fatalf("Get() after expiry found=%v err=%v", found, err)
	}
	if _, found, err := cache.Get(ctx, "pinned"); err != nil || !found {
		t.Fatalf("Get(pinned) found=%v err=%v", found, err)
	}

	if err := cache.Set(ctx, "short", "1", time.Second); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	now = now.Add(time.Minute)
	purged, err := cache.Purge(ctx)
	if err != nil {
		t.Fatalf("Purge() error = %v", err)
	}
	if purged != 1 {
		t.Fatalf("Purge() = %d, want 1", purged)
	}
}

func TestSQLiteCacheRejectsBlankKey(t *testing.T) {
	cache := setupSQLiteCache(t)
	if err := cache.Set(context.Background(), "  ", "v", 0); err == nil {
		t.Fatalf("Set(blank) expected error")
	}
}
