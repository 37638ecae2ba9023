package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"ppesuite/internal/bootstrap"
	"ppesuite/internal/errs"
	"ppesuite/internal/usecase/resultconsole"
)

var correlateCmd = &cobra.Command{
	Use:   "correlate",
	Short: "Resolve an already uploaded image key into a result",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App) error {
		imageKey, _ := cmd.Flags().GetString("image-key")
		budget, _ := cmd.Flags().GetDuration("budget")
		pollInterval, _ := cmd.Flags().GetDuration("poll-interval")
		interactive, _ := cmd.Flags().GetBool("interactive")
		asJSON, _ := cmd.Flags().GetBool("json")

		if interactive {
			return runResultConsole(cmd, app, resultconsole.Options{ImageKey: imageKey, Budget: budget, PollInterval: pollInterval})
		}

		result, err := app.Correlation.Correlate(cmd.Context(), imageKey, budget, pollInterval)
		if err != nil {
			return errs.Wrap(err, "correlate")
		}
		if asJSON {
			return printJSON(cmd, result)
		}
		if _, err := fmt.Fprintln(cmd.OutOrStdout(), resultconsole.Render(result)); err != nil {
			return errs.Wrap(err, "write correlate output")
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(correlateCmd)
	correlateCmd.Flags().String("image-key", "", "Image key returned by upload")
	correlateCmd.Flags().Duration("budget", 0, "Correlation budget; 0 uses the configured default")
	correlateCmd.Flags().Duration("poll-interval", 0, "Poll interval; 0 uses the configured default")
	correlateCmd.Flags().Bool("interactive", false, "Show live progress in a terminal console")
	correlateCmd.Flags().Bool("json", false, "Print the result as JSON")
	_ = correlateCmd.MarkFlagRequired("image-key")
}
