package analytics

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"ppesuite/internal/domain/compliance"
	"ppesuite/internal/errs"
	"ppesuite/internal/ports"
)

const (
	DefaultLookbackDays = 30
	MinLookbackDays     = 7
	MaxLookbackDays     = 90

	topJobTitles = 15
	topOffenders = 10
)

type Service struct {
	profiles ports.ProfileReader
	outcomes ports.OutcomeReader
	now      func() time.Time
}

func NewService(profiles ports.ProfileReader, outcomes ports.OutcomeReader) *Service {
	return &Service{profiles: profiles, outcomes: outcomes, now: time.Now}
}

// Filter narrows the employee set; an empty list means no filter on that field.
type Filter struct {
	Departments  []string
	Sites        []string
	JobTitles    []string
	LookbackDays int
}

type KPIs struct {
	Employees         int     `json:"employees"`
	EmployeesFiltered int     `json:"employees_filtered"`
	TotalViolations   int     `json:"total_violations"`
	MedianViolations  float64 `json:"median_violations"`
}

type Bucket struct {
	Label      string `json:"label"`
	Violations int    `json:"violations"`
}

type Offender struct {
	EmployeeID string `json:"employee_id"`
	Name       string `json:"name"`
	Department string `json:"department"`
	Site       string `json:"site"`
	Violations int    `json:"violations"`
}

// DistributionBin counts employees whose violation total equals Violations.
type DistributionBin struct {
	Violations int `json:"violations"`
	Employees  int `json:"employees"`
}

type Report struct {
	KPIs         KPIs              `json:"kpis"`
	ByDepartment []Bucket          `json:"by_department"`
	BySite       []Bucket          `json:"by_site"`
	ByJobTitle   []Bucket          `json:"by_job_title"`
	OverTime     []Bucket          `json:"over_time"`
	TopOffenders []Offender        `json:"top_offenders"`
	Distribution []DistributionBin `json:"distribution"`
	LookbackDays int               `json:"lookback_days"`
	Departments  []string          `json:"departments"`
	Sites        []string          `json:"sites"`
	JobTitles    []string          `json:"job_titles"`
}

type row struct {
	profile     compliance.ProfileRecord
	violations  int
	lastUpdated time.Time
	hasUpdated  bool
}

// Build joins the directory with the outcome table by employee id and
// aggregates the rows that pass filter. Employees without outcomes count as
// zero violations.
func (s *Service) Build(ctx context.Context, filter Filter) (Report, error) {
	if ctx == nil {
		return Report{}, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return Report{}, errs.Wrap(err, "check context")
	}
	if s.profiles == nil || s.outcomes == nil {
		return Report{}, errors.New("profile and outcome stores are required")
	}

	profiles, err := s.profiles.List(ctx)
	if err != nil {
		return Report{}, errs.Wrap(err, "list profiles")
	}
	outcomes, err := s.outcomes.List(ctx)
	if err != nil {
		return Report{}, errs.Wrap(err, "list outcomes")
	}

	rows := join(profiles, outcomes)
	lookback := ClampLookback(filter.LookbackDays)

	report := Report{
		LookbackDays: lookback,
		Departments:  distinct(rows, func(r row) string { return r.profile.Department }),
		Sites:        distinct(rows, func(r row) string { return r.profile.Site }),
		JobTitles:    distinct(rows, func(r row) string { return r.profile.JobTitle }),
	}
	report.KPIs.Employees = len(profiles)

	view := make([]row, 0, len(rows))
	for _, r := range rows {
		if !in(filter.Departments, r.profile.Department) || !in(filter.Sites, r.profile.Site) || !in(filter.JobTitles, r.profile.JobTitle) {
			continue
		}
		view = append(view, r)
	}

	counts := make([]int, 0, len(view))
	for _, r := range view {
		report.KPIs.TotalViolations += r.violations
		counts = append(counts, r.violations)
	}
	report.KPIs.EmployeesFiltered = len(view)
	report.KPIs.MedianViolations = median(counts)

	report.ByDepartment = groupBy(view, func(r row) string { return r.profile.Department }, 0)
	report.BySite = groupBy(view, func(r row) string { return r.profile.Site }, 0)
	report.ByJobTitle = groupBy(view, func(r row) string { return r.profile.JobTitle }, topJobTitles)
	report.OverTime = overTime(view, s.now().UTC().Add(-time.Duration(lookback)*24*time.Hour))
	report.TopOffenders = offenders(view, topOffenders)
	report.Distribution = distribution(counts)
	return report, nil
}

// ClampLookback keeps the time window within 7..90 days, 0 selecting the default.
func ClampLookback(days int) int {
	switch {
	case days == 0:
		return DefaultLookbackDays
	case days < MinLookbackDays:
		return MinLookbackDays
	case days > MaxLookbackDays:
		return MaxLookbackDays
	default:
		return days
	}
}

func join(profiles []compliance.ProfileRecord, outcomes []compliance.OutcomeRecord) []row {
	byID := make(map[string]compliance.OutcomeRecord, len(outcomes))
	for _, o := range outcomes {
		id := strings.TrimSpace(o.EmployeeID)
		if prev, ok := byID[id]; ok {
			o.CumulativeViolationCount += prev.CumulativeViolationCount
		}
		byID[id] = o
	}

	rows := make([]row, 0, len(profiles))
	for _, p := range profiles {
		r := row{profile: p}
		if o, ok := byID[strings.TrimSpace(p.EmployeeID)]; ok {
			r.violations = o.CumulativeViolationCount
			if ts, err := parseUpdated(o.LastUpdatedAt); err == nil {
				r.lastUpdated = ts
				r.hasUpdated = true
			}
		}
		rows = append(rows, r)
	}
	return rows
}

func parseUpdated(value string) (time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if t, err := time.Parse(time.RFC3339Nano, trimmed); err == nil {
		return t.UTC(), nil
	}
	return time.Parse("2006-01-02T15:04:05", trimmed)
}

func in(set []string, value string) bool {
	if len(set) == 0 {
		return true
	}
	for _, candidate := range set {
		if candidate == value {
			return true
		}
	}
	return false
}

func distinct(rows []row, key func(row) string) []string {
	seen := make(map[string]struct{}, len(rows))
	out := make([]string, 0)
	for _, r := range rows {
		k := strings.TrimSpace(key(r))
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func groupBy(rows []row, key func(row) string, limit int) []Bucket {
	sums := make(map[string]int)
	for _, r := range rows {
		sums[key(r)] += r.violations
	}
	out := make([]Bucket, 0, len(sums))
	for label, total := range sums {
		out = append(out, Bucket{Label: label, Violations: total})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Violations != out[j].Violations {
			return out[i].Violations > out[j].Violations
		}
		return out[i].Label < out[j].Label
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func overTime(rows []row, since time.Time) []Bucket {
	sums := make(map[string]int)
	for _, r := range rows {
		if !r.hasUpdated || r.lastUpdated.Before(since) {
			continue
		}
		sums[r.lastUpdated.UTC().Format("2006-01-02")] += r.violations
	}
	out := make([]Bucket, 0, len(sums))
	for day, total := range sums {
		out = append(out, Bucket{Label: day, Violations: total})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Label < out[j].Label })
	return out
}

func offenders(rows []row, limit int) []Offender {
	sorted := make([]row, len(rows))
	copy(sorted, rows)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].violations > sorted[j].violations })
	if len(sorted) > limit {
		sorted = sorted[:limit]
	}

	out := make([]Offender, 0, len(sorted))
	for _, r := range sorted {
		out = append(out, Offender{
			EmployeeID: r.profile.EmployeeID,
			Name:       r.profile.DisplayName,
			Department: r.profile.Department,
			Site:       r.profile.Site,
			Violations: r.violations,
		})
	}
	return out
}

func distribution(counts []int) []DistributionBin {
	byValue := make(map[int]int)
	for _, c := range counts {
		byValue[c]++
	}
	out := make([]DistributionBin, 0, len(byValue))
	for value, n := range byValue {
		out = append(out, DistributionBin{Violations: value, Employees: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Violations < out[j].Violations })
	return out
}

func median(values []int) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]int, len(values))
	copy(sorted, values)
	sort.Ints(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return float64(sorted[mid])
	}
	return float64(sorted[mid-1]+sorted[mid]) / 2
}
