package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"ppesuite/internal/bootstrap"
	"ppesuite/internal/errs"
	"ppesuite/internal/usecase/directory"
)

var employeesCmd = &cobra.Command{
	Use:   "employees",
	Short: "Employee directory commands",
}

var employeesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered employees",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App) error {
		search, _ := cmd.Flags().GetString("search")
		department, _ := cmd.Flags().GetString("department")
		asJSON, _ := cmd.Flags().GetBool("json")

		output, err := app.Directory.List(cmd.Context(), directory.ListFilter{Search: search, Department: department})
		if err != nil {
			return errs.Wrap(err, "list employees")
		}
		if asJSON {
			return printJSON(cmd, output)
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		if _, err := fmt.Fprintln(w, "EMPLOYEE ID\tNAME\tDEPARTMENT\tSITE\tJOB TITLE"); err != nil {
			return errs.Wrap(err, "write employees header")
		}
		for _, entry := range output.Employees {
			if _, err := fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", entry.EmployeeID, entry.DisplayName, entry.Department, entry.Site, entry.JobTitle); err != nil {
				return errs.Wrap(err, "write employee row")
			}
		}
		if _, err := fmt.Fprintf(w, "\nshowing %d of %d\n", output.Filtered, output.Total); err != nil {
			return errs.Wrap(err, "write employees footer")
		}
		if err := w.Flush(); err != nil {
			return errs.Wrap(err, "flush employees output")
		}
		return nil
	}),
}

var employeesRegisterCmd = &cobra.Command{
	Use:   "register",
	Short: "Register an employee with an ID photo",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App) error {
		name, _ := cmd.Flags().GetString("name")
		department, _ := cmd.Flags().GetString("department")
		site, _ := cmd.Flags().GetString("site")
		line, _ := cmd.Flags().GetString("line")
		jobTitle, _ := cmd.Flags().GetString("job-title")
		email, _ := cmd.Flags().GetString("email")
		photo, _ := cmd.Flags().GetString("photo")

		photoName, photoBody, err := readInputFile(photo)
		if err != nil {
			return err
		}

		profile, err := app.Directory.Register(cmd.Context(), directory.RegisterInput{
			Name:          name,
			Department:    department,
			Site:          site,
			Line:          line,
			JobTitle:      jobTitle,
			Email:         email,
			PhotoFilename: photoName,
			Photo:         photoBody,
		})
		if err != nil {
			return errs.Wrap(err, "register employee")
		}

		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "registered employee_id=%s photo=%s\n", profile.EmployeeID, profile.PhotoKey); err != nil {
			return errs.Wrap(err, "write register output")
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(employeesCmd)
	employeesCmd.AddCommand(employeesListCmd, employeesRegisterCmd)

	employeesListCmd.Flags().String("search", "", "Match name, id, site or job title")
	employeesListCmd.Flags().String("department", directory.AllDepartments, "Department filter")
	employeesListCmd.Flags().Bool("json", false, "Print as JSON")

	employeesRegisterCmd.Flags().String("name", "", "Full name")
	employeesRegisterCmd.Flags().String("department", "", "Department")
	employeesRegisterCmd.Flags().String("site", "", "Site")
	employeesRegisterCmd.Flags().String("line", "", "Production line")
	employeesRegisterCmd.Flags().String("job-title", "", "Job title")
	employeesRegisterCmd.Flags().String("email", "", "Email")
	employeesRegisterCmd.Flags().String("photo", "", "ID photo file")
	_ = employeesRegisterCmd.MarkFlagRequired("name")
	_ = employeesRegisterCmd.MarkFlagRequired("department")
	_ = employeesRegisterCmd.MarkFlagRequired("photo")
}
