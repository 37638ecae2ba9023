package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"ppesuite/internal/usecase/ledger"
)

func execute(t *testing.T, args ...string) string {
	t.Helper()

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("execute %v error = %v", args, err)
	}
	return out.String()
}

func writeConfig(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := strings.Join([]string{
		"database:",
		"  dsn: " + filepath.Join(dir, "app.sqlite"),
		"blob:",
		"  root: " + filepath.Join(dir, "blobs"),
		"logging:",
		"  level: error",
		"metrics:",
		"  address: \"\"",
	}, "\n")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestSeedThenListViolations(t *testing.T) {
	configFile := writeConfig(t)
	fixture := filepath.Join(filepath.Dir(configFile), "seed.yaml")
	body := strings.Join([]string{
		"profiles:",
		"  - employee_id: emp07",
		"    name: Jordan Alvarez",
		"    department: Quality",
		"    site: Plant 3",
		"outcomes:",
		"  - employee_id: emp07",
		"    violations: 3",
		"    last_missing: No Helmet",
		"  - employee_id: emp09",
		"    violations: 1",
	}, "\n")
	if err := os.WriteFile(fixture, []byte(body), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	seeded := execute(t, "--config", configFile, "seed", "--file", fixture)
	if !strings.Contains(seeded, "profiles=1 outcomes=2") {
		t.Fatalf("seed output = %q", seeded)
	}

	raw := execute(t, "--config", configFile, "violations", "list", "--json")
	var listed ledger.ListOutput
	if err := json.Unmarshal([]byte(raw), &listed); err != nil {
		t.Fatalf("decode violations output: %v\n%s", err, raw)
	}
	if listed.Employees != 2 || listed.TotalViolations != 4 || listed.Rows[0].EmployeeID != "emp07" {
		t.Fatalf("violations list = %+v", listed)
	}
}

func TestSchemaCommand(t *testing.T) {
	names := execute(t, "schema")
	if !strings.Contains(names, "display-result") || !strings.Contains(names, "analytics-report") {
		t.Fatalf("schema names = %q", names)
	}

	raw := execute(t, "schema", "display-result")
	var document map[string]any
	if err := json.Unmarshal([]byte(raw), &document); err != nil {
		t.Fatalf("decode schema output: %v", err)
	}
	properties, ok := document["properties"].(map[string]any)
	if !ok || properties["employee_id"] == nil {
		t.Fatalf("schema properties = %v", document["properties"])
	}
}
