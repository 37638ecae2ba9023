// Package schema publishes JSON Schemas for the API payloads so station
// clients and the pipeline team can validate what they send and receive.
package schema

import (
	"fmt"
	"sort"
	"strings"

	"github.com/invopop/jsonschema"

	"ppesuite/internal/domain/compliance"
	"ppesuite/internal/usecase/analytics"
	"ppesuite/internal/usecase/correlation"
	"ppesuite/internal/usecase/directory"
	"ppesuite/internal/usecase/ledger"
	"ppesuite/internal/usecase/upload"
)

const baseID = "https://ppesuite.local/schemas/"

var documents = map[string]func() any{
	"display-result":    func() any { return &compliance.DisplayResult{} },
	"upload-output":     func() any { return &upload.Output{} },
	"detection-sidecar": func() any { return &compliance.DetectionDetails{} },
	"progress":          func() any { return &correlation.Progress{} },
	"employee":          func() any { return &compliance.ProfileRecord{} },
	"employee-list":     func() any { return &directory.ListOutput{} },
	"violation-row":     func() any { return &ledger.Row{} },
	"violation-list":    func() any { return &ledger.ListOutput{} },
	"analytics-report":  func() any { return &analytics.Report{} },
}

// Names lists the published schema names in order.
func Names() []string {
	names := make([]string, 0, len(documents))
	for name := range documents {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// For reflects the schema registered under name.
func For(name string) (*jsonschema.Schema, error) {
	build, ok := documents[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("unknown schema %q", name)
	}

	reflector := &jsonschema.Reflector{
		DoNotReference:            true,
		AllowAdditionalProperties: true,
	}
	s := reflector.Reflect(build())
	s.ID = jsonschema.ID(baseID + name + ".json")
	return s, nil
}
