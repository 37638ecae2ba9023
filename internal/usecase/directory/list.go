package directory

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"

	"ppesuite/internal/bootstrap/logging"
	"ppesuite/internal/domain/compliance"
	"ppesuite/internal/errs"
)

// AllDepartments disables the department filter.
const AllDepartments = "All"

type ListFilter struct {
	Search     string
	Department string
}

type Entry struct {
	compliance.ProfileRecord
	PhotoURL string `json:"photo_url"`
}

type ListOutput struct {
	Employees []Entry `json:"employees"`
	Filtered  int     `json:"filtered"`
	Total     int     `json:"total"`
}

// List returns the directory sorted by name then id. Photo links that cannot
// be signed are left empty.
func (s *Service) List(ctx context.Context, filter ListFilter) (ListOutput, error) {
	if ctx == nil {
		return ListOutput{}, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return ListOutput{}, errs.Wrap(err, "check context")
	}
	if s.profiles == nil {
		return ListOutput{}, errors.New("profile store is required")
	}

	profiles, err := s.profiles.List(ctx)
	if err != nil {
		return ListOutput{}, errs.Wrap(err, "list profiles")
	}

	sort.SliceStable(profiles, func(i, j int) bool {
		if profiles[i].DisplayName != profiles[j].DisplayName {
			return profiles[i].DisplayName < profiles[j].DisplayName
		}
		return profiles[i].EmployeeID < profiles[j].EmployeeID
	})

	search := strings.ToLower(strings.TrimSpace(filter.Search))
	department := strings.TrimSpace(filter.Department)
	if strings.EqualFold(department, AllDepartments) {
		department = ""
	}

	logCtx := logging.WithAttrs(ctx, slog.String("component", "usecase.directory"))
	out := ListOutput{Employees: make([]Entry, 0, len(profiles)), Total: len(profiles)}
	for _, profile := range profiles {
		if search != "" && !matchesSearch(profile, search) {
			continue
		}
		if department != "" && profile.Department != department {
			continue
		}
		out.Employees = append(out.Employees, Entry{
			ProfileRecord: profile,
			PhotoURL:      s.photoURL(logCtx, profile.PhotoKey),
		})
	}
	out.Filtered = len(out.Employees)
	return out, nil
}

func matchesSearch(profile compliance.ProfileRecord, needle string) bool {
	for _, field := range []string{profile.DisplayName, profile.EmployeeID, profile.Department, profile.Site, profile.Email} {
		if strings.Contains(strings.ToLower(field), needle) {
			return true
		}
	}
	return false
}

func (s *Service) photoURL(ctx context.Context, key string) string {
	if key == "" || s.blobs == nil {
		return ""
	}
	url, err := s.blobs.PresignGet(ctx, key, s.presignTTL)
	if err != nil {
		logging.Warn(ctx, "presign employee photo failed", slog.String("photo_key", key), slog.Any("err", errs.Loggable(err)))
		return ""
	}
	return url
}
