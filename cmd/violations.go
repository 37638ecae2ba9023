package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"ppesuite/internal/bootstrap"
	"ppesuite/internal/errs"
	"ppesuite/internal/usecase/ledger"
)

var violationsCmd = &cobra.Command{
	Use:   "violations",
	Short: "Violation ledger commands",
}

var violationsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List cumulative violation counts",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App) error {
		query, _ := cmd.Flags().GetString("query")
		minViolations, _ := cmd.Flags().GetInt("min")
		sortOrder, _ := cmd.Flags().GetString("sort")
		asJSON, _ := cmd.Flags().GetBool("json")

		output, err := app.Ledger.List(cmd.Context(), ledger.ListFilter{
			Query:         query,
			MinViolations: minViolations,
			Sort:          ledger.SortOrder(sortOrder),
		})
		if err != nil {
			return errs.Wrap(err, "list violations")
		}
		if asJSON {
			return printJSON(cmd, output)
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		if _, err := fmt.Fprintln(w, "EMPLOYEE ID\tVIOLATIONS"); err != nil {
			return errs.Wrap(err, "write violations header")
		}
		for _, row := range output.Rows {
			if _, err := fmt.Fprintf(w, "%s\t%d\n", row.EmployeeID, row.Violations); err != nil {
				return errs.Wrap(err, "write violation row")
			}
		}
		if _, err := fmt.Fprintf(w, "\nemployees\t%d\ntotal_violations\t%d\n", output.Employees, output.TotalViolations); err != nil {
			return errs.Wrap(err, "write violations footer")
		}
		if err := w.Flush(); err != nil {
			return errs.Wrap(err, "flush violations output")
		}
		return nil
	}),
}

var violationsSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Overwrite one employee's cumulative violation count",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App) error {
		employeeID, _ := cmd.Flags().GetString("employee-id")
		violations, _ := cmd.Flags().GetInt("violations")

		if err := app.Ledger.Upsert(cmd.Context(), employeeID, violations); err != nil {
			return errs.Wrap(err, "set violations")
		}
		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "saved employee_id=%s violations=%d\n", employeeID, violations); err != nil {
			return errs.Wrap(err, "write violations output")
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(violationsCmd)
	violationsCmd.AddCommand(violationsListCmd, violationsSetCmd)

	violationsListCmd.Flags().String("query", "", "Employee id substring")
	violationsListCmd.Flags().Int("min", 0, "Minimum violations")
	violationsListCmd.Flags().String("sort", string(ledger.SortByViolations), "Sort order: violations or employee")
	violationsListCmd.Flags().Bool("json", false, "Print as JSON")

	violationsSetCmd.Flags().String("employee-id", "", "Employee id")
	violationsSetCmd.Flags().Int("violations", 0, "Cumulative violation count")
	_ = violationsSetCmd.MarkFlagRequired("employee-id")
	_ = violationsSetCmd.MarkFlagRequired("violations")
}
