package directory

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"ppesuite/internal/bootstrap/logging"
	"ppesuite/internal/domain/compliance"
	"ppesuite/internal/errs"
)

type RegisterInput struct {
	Name          string
	Department    string
	Site          string
	Line          string
	JobTitle      string
	Email         string
	PhotoFilename string
	Photo         []byte
}

// Register stores the ID photo first, then the profile, so a saved profile
// never points at a missing photo.
func (s *Service) Register(ctx context.Context, input RegisterInput) (compliance.ProfileRecord, error) {
	if ctx == nil {
		return compliance.ProfileRecord{}, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return compliance.ProfileRecord{}, errs.Wrap(err, "check context")
	}
	if s.profiles == nil {
		return compliance.ProfileRecord{}, errors.New("profile store is required")
	}
	if s.blobs == nil {
		return compliance.ProfileRecord{}, errors.New("blob store is required")
	}

	name := strings.TrimSpace(input.Name)
	if name == "" {
		return compliance.ProfileRecord{}, compliance.ErrEmployeeNameRequired
	}
	if len(input.Photo) == 0 {
		return compliance.ProfileRecord{}, compliance.ErrPhotoRequired
	}
	department, err := compliance.NormalizeDepartment(input.Department)
	if err != nil {
		return compliance.ProfileRecord{}, err
	}

	now := s.now().UTC()
	employeeID := compliance.NewEmployeeID(name, now, s.newSuffix())
	photoKey, contentType := compliance.EmployeePhotoKey(s.photoPrefix, employeeID, input.PhotoFilename)

	if err := s.blobs.Put(ctx, photoKey, bytes.NewReader(input.Photo), int64(len(input.Photo)), contentType); err != nil {
		return compliance.ProfileRecord{}, errs.Wrap(err, "put employee photo")
	}

	profile := compliance.ProfileRecord{
		EmployeeID:  employeeID,
		DisplayName: name,
		Department:  department,
		Site:        strings.TrimSpace(input.Site),
		Line:        strings.TrimSpace(input.Line),
		JobTitle:    strings.TrimSpace(input.JobTitle),
		Email:       strings.TrimSpace(input.Email),
		PhotoKey:    photoKey,
		Status:      "Active",
		CreatedAt:   now.Truncate(time.Second).Format(time.RFC3339),
	}
	if err := s.profiles.Put(ctx, profile); err != nil {
		return compliance.ProfileRecord{}, errs.Wrap(err, "put employee profile")
	}

	logging.Info(
		logging.WithAttrs(ctx, slog.String("component", "usecase.directory")),
		"employee registered",
		slog.String("employee_id", employeeID),
		slog.String("department", department),
	)
	return profile, nil
}
