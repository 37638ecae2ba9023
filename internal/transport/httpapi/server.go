package httpapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"ppesuite/internal/bootstrap/logging"
	"ppesuite/internal/domain/compliance"
	"ppesuite/internal/usecase/analytics"
	"ppesuite/internal/usecase/correlation"
	"ppesuite/internal/usecase/directory"
	"ppesuite/internal/usecase/ledger"
	"ppesuite/internal/usecase/session"
	"ppesuite/internal/usecase/upload"
)

type Uploader interface {
	UploadAndCorrelate(ctx context.Context, input upload.Input) (upload.Output, error)
}

type Correlator interface {
	CorrelateWithProgress(
		ctx context.Context,
		imageKey string,
		budget time.Duration,
		pollInterval time.Duration,
		observe func(correlation.Progress),
	) (compliance.DisplayResult, error)
}

type Directory interface {
	List(ctx context.Context, filter directory.ListFilter) (directory.ListOutput, error)
	Register(ctx context.Context, input directory.RegisterInput) (compliance.ProfileRecord, error)
}

type Ledger interface {
	List(ctx context.Context, filter ledger.ListFilter) (ledger.ListOutput, error)
	SaveChanges(ctx context.Context, edits []ledger.Row) (int, error)
	Upsert(ctx context.Context, employeeID string, violations int) error
}

type Analytics interface {
	Build(ctx context.Context, filter analytics.Filter) (analytics.Report, error)
}

type Sessions interface {
	LoginURL(ctx context.Context) (string, error)
	Complete(ctx context.Context, code string, state string) (session.Session, error)
	Load(ctx context.Context, id string) (session.Session, error)
	End(ctx context.Context, id string) error
}

type BlobReader interface {
	Get(ctx context.Context, key string) ([]byte, error)
}

// Services are the usecases behind the routes. A nil service disables its routes.
type Services struct {
	Uploads    Uploader
	Correlator Correlator
	Directory  Directory
	Ledger     Ledger
	Analytics  Analytics
	Sessions   Sessions
	Blobs      BlobReader
}

type Options struct {
	AuthEnabled    bool
	CookieName     string
	MaxUploadBytes int64
}

type handler struct {
	services Services
	options  Options
}

// NewHandler builds the API router.
func NewHandler(services Services, options Options) http.Handler {
	if options.CookieName == "" {
		options.CookieName = "ppe_session"
	}
	if options.MaxUploadBytes <= 0 {
		options.MaxUploadBytes = 10 << 20
	}
	h := &handler{services: services, options: options}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(h.logRequests)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/auth", func(r chi.Router) {
		r.Get("/login", h.handleLogin)
		r.Get("/callback", h.handleCallback)
		r.Post("/logout", h.handleLogout)
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(h.requireSession)
		r.Get("/me", h.handleMe)
		r.Get("/schema", h.handleSchemaIndex)
		r.Get("/schema/{name}", h.handleSchema)

		if services.Uploads != nil {
			r.Post("/uploads", h.handleUpload)
		}
		if services.Correlator != nil {
			r.Get("/results", h.handleResult)
			r.Get("/results/stream", h.handleResultStream)
		}
		if services.Directory != nil {
			r.Get("/employees", h.handleListEmployees)
			r.Post("/employees", h.handleRegisterEmployee)
		}
		if services.Ledger != nil {
			r.Get("/violations", h.handleListViolations)
			r.Put("/violations", h.handleSaveViolations)
			r.Post("/violations", h.handleUpsertViolation)
		}
		if services.Analytics != nil {
			r.Get("/analytics", h.handleAnalytics)
		}
		if services.Blobs != nil {
			r.Get("/blobs/*", h.handleBlob)
		}
	})

	return r
}

func (h *handler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := logging.WithAttrs(
			logging.WithRequest(r.Context(), middleware.GetReqID(r.Context()), ""),
			slog.String("component", "transport.httpapi"),
		)
		r = r.WithContext(ctx)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		started := time.Now()
		next.ServeHTTP(ww, r)

		logging.Info(ctx, "http request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			slog.Int("bytes", ww.BytesWritten()),
			slog.Duration("duration", time.Since(started)),
		)
	})
}

// parseDuration accepts Go durations ("30s") and plain seconds ("30").
// Empty means zero, which the correlator reads as "use the configured policy".
func parseDuration(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	seconds, err := strconv.ParseFloat(raw, 64)
	switch {
	case errors.Is(err, strconv.ErrRange):
		return 0, fmt.Errorf("%w: %q", errDurationOutOfRange, raw)
	case err != nil:
		return time.ParseDuration(raw)
	case math.IsNaN(seconds) || math.IsInf(seconds, 0) || math.Abs(seconds) > maxDurationSeconds:
		return 0, fmt.Errorf("%w: %q", errDurationOutOfRange, raw)
	}
	return time.Duration(seconds * float64(time.Second)), nil
}

var errDurationOutOfRange = errors.New("duration out of range")

// maxDurationSeconds keeps the conversion to time.Duration inside int64.
const maxDurationSeconds = float64(math.MaxInt64 / int64(time.Second))
