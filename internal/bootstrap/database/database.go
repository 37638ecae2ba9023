package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"ppesuite/internal/bootstrap/config"
	"ppesuite/internal/bootstrap/logging"
	"ppesuite/internal/errs"
)

// Open connects the sqlite database that holds sessions, and the outcome and
// profile tables when the sqlite stores backend is selected.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*gorm.DB, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, errs.Wrap(err, "check context")
	}

	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.database"))

	switch strings.ToLower(cfg.Driver) {
	case "sqlite", "sqlite3":
		if err := ensureSQLiteDirectory(logCtx, cfg.DSN); err != nil {
			return nil, errs.Wrap(err, "ensure sqlite directory")
		}

		db, err := gorm.Open(gormsqlite.Open(cfg.DSN), &gorm.Config{
			Logger: gormlogger.Default.LogMode(gormlogger.Warn),
		})
		if err != nil {
			return nil, errs.Wrap(err, "open sqlite db")
		}

		sqlDB, err := db.DB()
		if err != nil {
			return nil, errs.Wrap(err, "get sql db")
		}
		// sqlite serializes writers; one connection avoids SQLITE_BUSY under the HTTP server.
		sqlDB.SetMaxOpenConns(1)
		if err := sqlDB.PingContext(ctx); err != nil {
			return nil, errs.Wrap(err, "ping sqlite db")
		}

		logging.Info(logCtx, "database opened", slog.String("driver", "sqlite"), slog.String("dsn", cfg.DSN))
		return db, nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

func ensureSQLiteDirectory(ctx context.Context, dsn string) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return errs.Wrap(err, "check context")
	}

	candidate := strings.TrimSpace(dsn)
	if candidate == "" || candidate == ":memory:" {
		return nil
	}

	if strings.HasPrefix(strings.ToLower(candidate), "file:") {
		candidate = strings.TrimPrefix(candidate, "file:")
	}
	if idx := strings.Index(candidate, "?"); idx >= 0 {
		candidate = candidate[:idx]
	}
	if candidate == ":memory:" {
		return nil
	}

	dir := filepath.Dir(candidate)
	if dir == "" || dir == "." {
		return nil
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errs.Wrapf(err, "create sqlite directory %q", dir)
	}

	logging.Debug(ctx, "sqlite directory ensured", slog.String("dir", dir))
	return nil
}
