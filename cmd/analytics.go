package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"ppesuite/internal/bootstrap"
	"ppesuite/internal/errs"
	"ppesuite/internal/usecase/analytics"
)

var analyticsCmd = &cobra.Command{
	Use:   "analytics",
	Short: "Summarize violations by department, site and job title",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App) error {
		departments, _ := cmd.Flags().GetStringSlice("department")
		sites, _ := cmd.Flags().GetStringSlice("site")
		jobTitles, _ := cmd.Flags().GetStringSlice("job-title")
		days, _ := cmd.Flags().GetInt("days")
		asJSON, _ := cmd.Flags().GetBool("json")

		report, err := app.Analytics.Build(cmd.Context(), analytics.Filter{
			Departments:  departments,
			Sites:        sites,
			JobTitles:    jobTitles,
			LookbackDays: days,
		})
		if err != nil {
			return errs.Wrap(err, "build analytics report")
		}
		if asJSON {
			return printJSON(cmd, report)
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		lines := []struct {
			label string
			value any
		}{
			{"employees", report.KPIs.Employees},
			{"employees_filtered", report.KPIs.EmployeesFiltered},
			{"total_violations", report.KPIs.TotalViolations},
			{"median_violations", fmt.Sprintf("%.1f", report.KPIs.MedianViolations)},
			{"lookback_days", report.LookbackDays},
		}
		for _, line := range lines {
			if _, err := fmt.Fprintf(w, "%s\t%v\n", line.label, line.value); err != nil {
				return errs.Wrap(err, "write analytics kpi")
			}
		}
		if err := writeBuckets(w, "by_department", report.ByDepartment); err != nil {
			return err
		}
		if err := writeBuckets(w, "by_site", report.BySite); err != nil {
			return err
		}
		if err := writeBuckets(w, "by_job_title", report.ByJobTitle); err != nil {
			return err
		}
		if _, err := fmt.Fprintln(w, "\ntop_offenders"); err != nil {
			return errs.Wrap(err, "write analytics offenders")
		}
		for _, offender := range report.TopOffenders {
			if _, err := fmt.Fprintf(w, "  %s\t%s\t%s\t%d\n", offender.EmployeeID, offender.Name, offender.Department, offender.Violations); err != nil {
				return errs.Wrap(err, "write analytics offender")
			}
		}
		if err := w.Flush(); err != nil {
			return errs.Wrap(err, "flush analytics output")
		}
		return nil
	}),
}

func writeBuckets(w *tabwriter.Writer, title string, buckets []analytics.Bucket) error {
	if _, err := fmt.Fprintf(w, "\n%s\n", title); err != nil {
		return errs.Wrap(err, "write analytics section")
	}
	for _, bucket := range buckets {
		if _, err := fmt.Fprintf(w, "  %s\t%d\n", bucket.Label, bucket.Violations); err != nil {
			return errs.Wrap(err, "write analytics bucket")
		}
	}
	return nil
}

func init() {
	rootCmd.AddCommand(analyticsCmd)
	analyticsCmd.Flags().StringSlice("department", nil, "Department filter (repeatable)")
	analyticsCmd.Flags().StringSlice("site", nil, "Site filter (repeatable)")
	analyticsCmd.Flags().StringSlice("job-title", nil, "Job title filter (repeatable)")
	analyticsCmd.Flags().Int("days", 30, "Lookback window for the trend, in days")
	analyticsCmd.Flags().Bool("json", false, "Print as JSON")
}
