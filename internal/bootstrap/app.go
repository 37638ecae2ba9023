package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"

	"ppesuite/internal/bootstrap/config"
	"ppesuite/internal/bootstrap/logging"
	"ppesuite/internal/errs"
	cacheinfra "ppesuite/internal/infrastructure/cache"
	"ppesuite/internal/infrastructure/persistence/sqlite/model"
	"ppesuite/internal/ports"
	"ppesuite/internal/usecase/analytics"
	"ppesuite/internal/usecase/correlation"
	"ppesuite/internal/usecase/directory"
	"ppesuite/internal/usecase/fixtures"
	"ppesuite/internal/usecase/ledger"
	"ppesuite/internal/usecase/session"
	"ppesuite/internal/usecase/upload"
)

// App is everything a command needs once the container has started.
type App struct {
	Config   config.Config
	DB       *gorm.DB
	Registry *prometheus.Registry
	Handler  http.Handler
	Blobs    ports.BlobStore

	Correlation *correlation.Service
	Uploads     *upload.Service
	Directory   *directory.Service
	Ledger      *ledger.Service
	Analytics   *analytics.Service
	Sessions    *session.Service
	Fixtures    *fixtures.Service
	// Cache holds sessions and login state.
	Cache *cacheinfra.SQLiteCache
}

// InitSchema migrates the tables owned by this service. The outcome and profile
// tables only live here with the sqlite stores backend; app_kv always does.
func (a *App) InitSchema(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return errs.Wrap(err, "check context")
	}

	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.app"))
	logging.Info(logCtx, "start schema migration", slog.String("stores_backend", a.Config.Stores.Backend))

	tables := []any{&model.AppKV{}}
	if strings.EqualFold(a.Config.Stores.Backend, config.BackendSQLite) {
		tables = model.All()
	}
	if err := a.DB.WithContext(ctx).AutoMigrate(tables...); err != nil {
		return errs.Wrap(err, "auto migrate schema")
	}

	logging.Info(logCtx, "schema migration completed", slog.Int("tables", len(tables)))
	return nil
}
