package fixtures

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"ppesuite/internal/bootstrap/logging"
	"ppesuite/internal/domain/compliance"
	"ppesuite/internal/errs"
	"ppesuite/internal/ports"
)

// Document is a seed file: directory entries plus pipeline outcomes, so a
// local setup can be demoed without the detection pipeline.
type Document struct {
	Profiles []compliance.ProfileRecord `yaml:"profiles" toml:"profiles"`
	Outcomes []Outcome                  `yaml:"outcomes" toml:"outcomes"`
}

// Outcome mirrors one outcome table row as the pipeline writes it.
type Outcome struct {
	EmployeeID   string `yaml:"employee_id" toml:"employee_id"`
	Violations   int    `yaml:"violations" toml:"violations"`
	MissingItems string `yaml:"last_missing" toml:"last_missing"`
	ImageKey     string `yaml:"last_image_key" toml:"last_image_key"`
	UpdatedAt    string `yaml:"last_updated" toml:"last_updated"`
}

type Summary struct {
	Profiles int
	Outcomes int
}

type Service struct {
	profiles ports.ProfileStore
	outcomes ports.OutcomeStore
	uow      ports.UnitOfWork
	now      func() time.Time
}

func NewService(profiles ports.ProfileStore, outcomes ports.OutcomeStore, uow ports.UnitOfWork) *Service {
	if uow == nil {
		uow = ports.DirectUnitOfWork{}
	}
	return &Service{profiles: profiles, outcomes: outcomes, uow: uow, now: time.Now}
}

// LoadFile reads a .yaml, .yml or .toml seed file.
func LoadFile(path string) (Document, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return Document{}, errors.New("fixture file is required")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Document{}, errs.Wrap(err, "read fixture file")
	}
	return Parse(raw, filepath.Ext(path))
}

// Parse decodes raw by format, which is a file extension with or without the dot.
func Parse(raw []byte, format string) (Document, error) {
	var doc Document
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(format), ".")) {
	case "yaml", "yml":
		if err := yaml.Unmarshal(raw, &doc); err != nil {
			return Document{}, errs.Wrap(err, "decode yaml fixture")
		}
	case "toml":
		if err := toml.Unmarshal(raw, &doc); err != nil {
			return Document{}, errs.Wrap(err, "decode toml fixture")
		}
	default:
		return Document{}, fmt.Errorf("unsupported fixture format %q", format)
	}
	if err := doc.Validate(); err != nil {
		return Document{}, err
	}
	return doc, nil
}

func (d Document) Validate() error {
	for i, profile := range d.Profiles {
		if strings.TrimSpace(profile.EmployeeID) == "" {
			return fmt.Errorf("profiles[%d]: %w", i, compliance.ErrEmployeeIDRequired)
		}
		if strings.TrimSpace(profile.DisplayName) == "" {
			return fmt.Errorf("profiles[%d]: %w", i, compliance.ErrEmployeeNameRequired)
		}
	}
	for i, outcome := range d.Outcomes {
		if strings.TrimSpace(outcome.EmployeeID) == "" {
			return fmt.Errorf("outcomes[%d]: %w", i, compliance.ErrEmployeeIDRequired)
		}
		if outcome.Violations < 0 {
			return fmt.Errorf("outcomes[%d]: %w", i, compliance.ErrInvalidViolationCount)
		}
	}
	return nil
}

// Seed writes every profile and outcome in one unit of work. Existing rows
// with the same employee id are replaced.
func (s *Service) Seed(ctx context.Context, doc Document) (Summary, error) {
	if ctx == nil {
		return Summary{}, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return Summary{}, errs.Wrap(err, "check context")
	}
	if s.profiles == nil || s.outcomes == nil {
		return Summary{}, errors.New("profile and outcome stores are required")
	}
	if err := doc.Validate(); err != nil {
		return Summary{}, err
	}

	logCtx := logging.WithAttrs(ctx, slog.String("component", "usecase.fixtures"))
	stamp := s.now().UTC().Format(time.RFC3339)

	var summary Summary
	err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
		for _, profile := range doc.Profiles {
			profile.EmployeeID = strings.TrimSpace(profile.EmployeeID)
			if profile.CreatedAt == "" {
				profile.CreatedAt = stamp
			}
			if err := s.profiles.Put(txCtx, profile); err != nil {
				return errs.Wrapf(err, "put profile %s", profile.EmployeeID)
			}
			summary.Profiles++
		}
		for _, outcome := range doc.Outcomes {
			record := compliance.OutcomeRecord{
				EmployeeID:               strings.TrimSpace(outcome.EmployeeID),
				CumulativeViolationCount: outcome.Violations,
				LastMissingItems:         outcome.MissingItems,
				LastImageKey:             strings.TrimSpace(outcome.ImageKey),
				LastUpdatedAt:            firstNonEmpty(outcome.UpdatedAt, stamp),
			}
			if err := s.outcomes.Upsert(txCtx, record); err != nil {
				return errs.Wrapf(err, "upsert outcome %s", record.EmployeeID)
			}
			summary.Outcomes++
		}
		return nil
	})
	if err != nil {
		logging.Error(logCtx, "seed fixtures failed", slog.Any("err", errs.Loggable(err)))
		return Summary{}, errs.Wrap(err, "seed fixtures")
	}

	logging.Info(logCtx, "fixtures seeded", slog.Int("profiles", summary.Profiles), slog.Int("outcomes", summary.Outcomes))
	return summary, nil
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
