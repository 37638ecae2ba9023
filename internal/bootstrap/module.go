package bootstrap

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/fx"
	"golang.org/x/oauth2"
	"gorm.io/gorm"

	"ppesuite/internal/bootstrap/config"
	"ppesuite/internal/bootstrap/database"
	"ppesuite/internal/bootstrap/logging"
	"ppesuite/internal/errs"
	"ppesuite/internal/infrastructure/awsclient"
	"ppesuite/internal/infrastructure/blob"
	cacheinfra "ppesuite/internal/infrastructure/cache"
	"ppesuite/internal/infrastructure/events"
	"ppesuite/internal/infrastructure/persistence/dynamostore"
	sqliterepo "ppesuite/internal/infrastructure/persistence/sqlite/repository"
	sqliteuow "ppesuite/internal/infrastructure/persistence/sqlite/uow"
	"ppesuite/internal/metrics"
	"ppesuite/internal/ports"
	"ppesuite/internal/transport/httpapi"
	"ppesuite/internal/usecase/analytics"
	"ppesuite/internal/usecase/correlation"
	"ppesuite/internal/usecase/directory"
	"ppesuite/internal/usecase/fixtures"
	"ppesuite/internal/usecase/ledger"
	"ppesuite/internal/usecase/session"
	"ppesuite/internal/usecase/upload"
)

// BlobPublicBase is where the filesystem blob backend's links point; the HTTP
// API serves it.
const BlobPublicBase = "/api/blobs"

var Module = fx.Options(
	fx.Provide(provideConfig),
	fx.Provide(provideDatabase),
	fx.Provide(provideStores),
	fx.Provide(provideBlobStore),
	fx.Provide(cacheinfra.NewSQLiteCache),
	fx.Provide(func(c *cacheinfra.SQLiteCache) ports.Cache { return c }),
	fx.Provide(provideRegistry),
	fx.Provide(providePublisher),
	fx.Provide(provideCorrelation),
	fx.Provide(provideUploads),
	fx.Provide(provideDirectory),
	fx.Provide(ledger.NewService),
	fx.Provide(provideAnalytics),
	fx.Provide(provideSessions),
	fx.Provide(fixtures.NewService),
	fx.Provide(provideHandler),
	fx.Provide(provideApp),
)

type configParams struct {
	fx.In

	Ctx        context.Context
	ConfigFile string `name:"configFile"`
}

func provideConfig(p configParams) (config.Config, error) {
	ctx := logging.WithAttrs(p.Ctx, slog.String("component", "bootstrap.fx"))
	return config.Load(ctx, p.ConfigFile)
}

func provideDatabase(lc fx.Lifecycle, ctx context.Context, cfg config.Config) (*gorm.DB, error) {
	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.fx"))

	db, err := database.Open(logCtx, cfg.Database)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		},
	})

	return db, nil
}

type storesResult struct {
	fx.Out

	Outcomes   ports.OutcomeStore
	Profiles   ports.ProfileStore
	UnitOfWork ports.UnitOfWork
}

// provideStores picks the outcome and profile backends. DynamoDB has no
// cross-table transactions here, so edits run without a unit of work.
func provideStores(ctx context.Context, cfg config.Config, db *gorm.DB) (storesResult, error) {
	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.fx"))

	if strings.EqualFold(cfg.Stores.Backend, config.BackendDynamoDB) {
		awsCfg, err := awsclient.Load(logCtx, cfg.AWS)
		if err != nil {
			return storesResult{}, errs.Wrap(err, "load aws config for stores")
		}
		client := dynamostore.NewClient(awsCfg, awsclient.Endpoint(cfg.AWS))
		logging.Info(logCtx, "using dynamodb stores",
			slog.String("outcome_table", cfg.Stores.OutcomeTable),
			slog.String("profile_table", cfg.Stores.ProfileTable),
		)
		return storesResult{
			Outcomes:   dynamostore.NewOutcomeStore(client, cfg.Stores.OutcomeTable),
			Profiles:   dynamostore.NewProfileStore(client, cfg.Stores.ProfileTable),
			UnitOfWork: ports.DirectUnitOfWork{},
		}, nil
	}

	logging.Info(logCtx, "using sqlite stores", slog.String("dsn", cfg.Database.DSN))
	return storesResult{
		Outcomes:   sqliterepo.NewOutcomeRepository(db),
		Profiles:   sqliterepo.NewProfileRepository(db),
		UnitOfWork: sqliteuow.NewUnitOfWork(db),
	}, nil
}

func provideBlobStore(ctx context.Context, cfg config.Config) (ports.BlobStore, error) {
	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.fx"))

	if strings.EqualFold(cfg.Blob.Backend, config.BlobS3) {
		awsCfg, err := awsclient.Load(logCtx, cfg.AWS)
		if err != nil {
			return nil, errs.Wrap(err, "load aws config for blobs")
		}
		logging.Info(logCtx, "using s3 blob store", slog.String("bucket", cfg.Blob.Bucket))
		return blob.NewS3Store(awsCfg, cfg.Blob.Bucket, awsclient.Endpoint(cfg.AWS)), nil
	}

	logging.Info(logCtx, "using filesystem blob store", slog.String("root", cfg.Blob.Root))
	return blob.NewFilesystemStore(cfg.Blob.Root, BlobPublicBase), nil
}

func provideRegistry() (*prometheus.Registry, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	if err := metrics.Register(reg); err != nil {
		return nil, errs.Wrap(err, "register metrics")
	}
	return reg, nil
}

func providePublisher(lc fx.Lifecycle, ctx context.Context, cfg config.Config) (ports.EventPublisher, error) {
	if strings.TrimSpace(cfg.Events.NATSURL) == "" {
		return events.Noop{}, nil
	}

	publisher, err := events.Connect(logging.WithAttrs(ctx, slog.String("component", "bootstrap.fx")), cfg.Events.NATSURL, cfg.Events.SubjectPrefix)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			return publisher.Close()
		},
	})
	return publisher, nil
}

func provideCorrelation(cfg config.Config, outcomes ports.OutcomeStore, profiles ports.ProfileStore, blobs ports.BlobStore) *correlation.Service {
	return correlation.NewService(outcomes, profiles, blobs, correlation.Policy{
		Budget:       cfg.Correlation.Budget,
		PollInterval: cfg.Correlation.PollInterval,
		MaxBudget:    cfg.Correlation.MaxBudget,
	})
}

func provideUploads(cfg config.Config, blobs ports.BlobStore, correlator *correlation.Service, publisher ports.EventPublisher) *upload.Service {
	return upload.NewService(blobs, correlator, cfg.Blob.UploadPrefix).WithPublisher(publisher)
}

func provideDirectory(cfg config.Config, profiles ports.ProfileStore, blobs ports.BlobStore) *directory.Service {
	return directory.NewService(profiles, blobs, cfg.Blob.EmployeePrefix, cfg.Blob.PresignTTL)
}

func provideAnalytics(profiles ports.ProfileStore, outcomes ports.OutcomeStore) *analytics.Service {
	return analytics.NewService(profiles, outcomes)
}

func provideSessions(cfg config.Config, cache ports.Cache) *session.Service {
	authURL, tokenURL, userInfoURL := cfg.Auth.Endpoints()
	return session.NewService(cache, session.Config{
		OAuth: oauth2.Config{
			ClientID:     cfg.Auth.ClientID,
			ClientSecret: cfg.Auth.ClientSecret,
			RedirectURL:  cfg.Auth.RedirectURL,
			Scopes:       cfg.Auth.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:  authURL,
				TokenURL: tokenURL,
			},
		},
		UserInfoURL: userInfoURL,
		TTL:         cfg.Auth.SessionTTL,
	})
}

type handlerParams struct {
	fx.In

	Config      config.Config
	Blobs       ports.BlobStore
	Uploads     *upload.Service
	Correlation *correlation.Service
	Directory   *directory.Service
	Ledger      *ledger.Service
	Analytics   *analytics.Service
	Sessions    *session.Service
}

func provideHandler(p handlerParams) http.Handler {
	services := httpapi.Services{
		Uploads:    p.Uploads,
		Correlator: p.Correlation,
		Directory:  p.Directory,
		Ledger:     p.Ledger,
		Analytics:  p.Analytics,
		Sessions:   p.Sessions,
	}
	// S3 links are presigned and go straight to the bucket.
	if strings.EqualFold(p.Config.Blob.Backend, config.BlobFilesystem) {
		services.Blobs = p.Blobs
	}
	return httpapi.NewHandler(services, httpapi.Options{
		AuthEnabled:    p.Config.Auth.Enabled,
		CookieName:     p.Config.Auth.CookieName,
		MaxUploadBytes: p.Config.HTTP.MaxUploadBytes,
	})
}

type appParams struct {
	fx.In

	Config      config.Config
	DB          *gorm.DB
	Registry    *prometheus.Registry
	Handler     http.Handler
	Blobs       ports.BlobStore
	Correlation *correlation.Service
	Uploads     *upload.Service
	Directory   *directory.Service
	Ledger      *ledger.Service
	Analytics   *analytics.Service
	Sessions    *session.Service
	Fixtures    *fixtures.Service
	Cache       *cacheinfra.SQLiteCache
}

func provideApp(p appParams) *App {
	return &App{
		Config:      p.Config,
		DB:          p.DB,
		Registry:    p.Registry,
		Handler:     p.Handler,
		Blobs:       p.Blobs,
		Correlation: p.Correlation,
		Uploads:     p.Uploads,
		Directory:   p.Directory,
		Ledger:      p.Ledger,
		Analytics:   p.Analytics,
		Sessions:    p.Sessions,
		Fixtures:    p.Fixtures,
		Cache:       p.Cache,
	}
}
