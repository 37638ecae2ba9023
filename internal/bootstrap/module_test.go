package bootstrap

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/fx"

	"ppesuite/internal/domain/compliance"
	"ppesuite/internal/usecase/fixtures"
)

func startApp(t *testing.T) *App {
	t.Helper()

	dir := t.TempDir()
	configFile := filepath.Join(dir, "config.yaml")
	body := strings.Join([]string{
		"database:",
		"  dsn: " + filepath.Join(dir, "app.sqlite"),
		"blob:",
		"  root: " + filepath.Join(dir, "blobs"),
		"correlation:",
		"  budget: 1s",
		"  poll_interval: 100ms",
		"metrics:",
		"  address: \"\"",
	}, "\n")
	if err := os.WriteFile(configFile, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	ctx := context.Background()
	var app *App
	fxApp := fx.New(
		Module,
		fx.NopLogger,
		fx.Provide(func() context.Context { return ctx }),
		fx.Provide(
			fx.Annotate(
				func() string { return configFile },
				fx.ResultTags(`name:"configFile"`),
			),
		),
		fx.Populate(&app),
	)
	startCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := fxApp.Start(startCtx); err != nil {
		t.Fatalf("fx Start() error = %v", err)
	}
	t.Cleanup(func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = fxApp.Stop(stopCtx)
	})
	return app
}

func TestModuleWiresSQLiteBackend(t *testing.T) {
	app := startApp(t)
	ctx := context.Background()

	if err := app.InitSchema(ctx); err != nil {
		t.Fatalf("InitSchema() error = %v", err)
	}

	doc := fixtures.Document{
		Profiles: []compliance.ProfileRecord{{EmployeeID: "emp07", DisplayName: "Jordan Alvarez", Department: "Quality", Site: "Plant 3"}},
		Outcomes: []fixtures.Outcome{{EmployeeID: "emp07", Violations: 2, MissingItems: "No Helmet", ImageKey: "uploads/1-ab.png"}},
	}
	if _, err := app.Fixtures.Seed(ctx, doc); err != nil {
		t.Fatalf("Seed() error = %v", err)
	}

	result, err := app.Correlation.Correlate(ctx, "uploads/1-ab.png", 0, 0)
	if err != nil {
		t.Fatalf("Correlate() error = %v", err)
	}
	if result.Status != compliance.StatusNonCompliant || result.DisplayName != "Jordan Alvarez" {
		t.Fatalf("Correlate() = %+v", result)
	}

	rec := httptest.NewRecorder()
	app.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/violations", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"emp07"`) {
		t.Fatalf("GET /api/violations status = %d body=%s", rec.Code, rec.Body.String())
	}

	families, err := app.Registry.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	found := false
	for _, family := range families {
		if family.GetName() == "ppesuite_poll_attempts_total" {
			found = true
		}
	}
	if !found {
		t.Fatalf("ppesuite collectors are not registered")
	}
}
