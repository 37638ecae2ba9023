package analytics

import (
	"context"
	"testing"
	"time"

	"ppesuite/internal/domain/compliance"
)

type staticProfiles []compliance.ProfileRecord

func (s staticProfiles) Get(context.Context, string) (compliance.ProfileRecord, bool, error) {
	return compliance.ProfileRecord{}, false, nil
}

func (s staticProfiles) List(context.Context) ([]compliance.ProfileRecord, error) {
	return s, nil
}

type staticOutcomes []compliance.OutcomeRecord

func (s staticOutcomes) FindByImageKey(context.Context, string) ([]compliance.OutcomeRecord, error) {
	return nil, nil
}

func (s staticOutcomes) Get(context.Context, string) (compliance.OutcomeRecord, bool, error) {
	return compliance.OutcomeRecord{}, false, nil
}

func (s staticOutcomes) List(context.Context) ([]compliance.OutcomeRecord, error) {
	return s, nil
}

func newTestService() *Service {
	profiles := staticProfiles{
		{EmployeeID: "emp01", DisplayName: "Ana", Department: "Safety", Site: "Plant 1", JobTitle: "Inspector"},
		{EmployeeID: "emp02", DisplayName: "Sam", Department: "Quality", Site: "Plant 3", JobTitle: "Operator"},
		{EmployeeID: "emp03", DisplayName: "Kim", Department: "Quality", Site: "Plant 1", JobTitle: "Operator"},
		{EmployeeID: "emp04", DisplayName: "Lee", Department: "Logistics", Site: "Plant 3", JobTitle: "Driver"},
	}
	outcomes := staticOutcomes{
		{EmployeeID: "emp01", CumulativeViolationCount: 2, LastUpdatedAt: "2025-03-10T08:00:00Z"},
		{EmployeeID: "emp02", CumulativeViolationCount: 7, LastUpdatedAt: "2025-03-10T17:30:00Z"},
		{EmployeeID: "emp03", CumulativeViolationCount: 1, LastUpdatedAt: "2024-11-01T08:00:00Z"},
		{EmployeeID: "ghost", CumulativeViolationCount: 50, LastUpdatedAt: "2025-03-10T08:00:00Z"},
	}
	svc := NewService(profiles, outcomes)
	svc.now = func() time.Time { return time.Date(2025, 3, 12, 0, 0, 0, 0, time.UTC) }
	return svc
}

func TestBuildReport(t *testing.T) {
	report, err := newTestService().Build(context.Background(), Filter{})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	if report.KPIs.Employees != 4 || report.KPIs.EmployeesFiltered != 4 || report.KPIs.TotalViolations != 10 {
		t.Fatalf("KPIs = %+v", report.KPIs)
	}
	// counts 0,1,2,7
	if report.KPIs.MedianViolations != 1.5 {
		t.Fatalf("MedianViolations = %v", report.KPIs.MedianViolations)
	}
	if report.ByDepartment[0].Label != "Quality" || report.ByDepartment[0].Violations != 8 {
		t.Fatalf("ByDepartment = %+v", report.ByDepartment)
	}
	if len(report.OverTime) != 1 || report.OverTime[0].Label != "2025-03-10" || report.OverTime[0].Violations != 9 {
		t.Fatalf("OverTime = %+v", report.OverTime)
	}
	if report.TopOffenders[0].EmployeeID != "emp02" || report.TopOffenders[3].Violations != 0 {
		t.Fatalf("TopOffenders = %+v", report.TopOffenders)
	}
	if report.LookbackDays != DefaultLookbackDays || len(report.Departments) != 3 {
		t.Fatalf("report meta = %d %v", report.LookbackDays, report.Departments)
	}
	if len(report.Distribution) != 4 || report.Distribution[0].Violations != 0 {
		t.Fatalf("Distribution = %+v", report.Distribution)
	}
}

func TestBuildFiltersAndLookback(t *testing.T) {
	report, err := newTestService().Build(context.Background(), Filter{
		Departments:  []string{"Quality"},
		Sites:        []string{"Plant 1"},
		LookbackDays: 365,
	})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if report.KPIs.EmployeesFiltered != 1 || report.KPIs.TotalViolations != 1 || report.KPIs.MedianViolations != 1 {
		t.Fatalf("KPIs = %+v", report.KPIs)
	}
	if report.LookbackDays != MaxLookbackDays || len(report.OverTime) != 0 {
		t.Fatalf("lookback=%d OverTime=%+v", report.LookbackDays, report.OverTime)
	}
}

func TestClampLookback(t *testing.T) {
	cases := map[int]int{0: 30, 1: 7, 7: 7, 45: 45, 91: 90, -5: 7}
	for in, want := range cases {
		if got := ClampLookback(in); got != want {
			t.Fatalf("ClampLookback(%d) = %d, want %d", in, got, want)
		}
	}
}
