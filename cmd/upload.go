package cmd

import (
	"fmt"
	"log/slog"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"ppesuite/internal/bootstrap"
	"ppesuite/internal/bootstrap/logging"
	"ppesuite/internal/errs"
	"ppesuite/internal/usecase/resultconsole"
	"ppesuite/internal/usecase/upload"
)

var uploadCmd = &cobra.Command{
	Use:   "upload",
	Short: "Upload a site photo and wait for its PPE result",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App) error {
		ctx := cmd.Context()

		file, _ := cmd.Flags().GetString("file")
		budget, _ := cmd.Flags().GetDuration("budget")
		pollInterval, _ := cmd.Flags().GetDuration("poll-interval")
		interactive, _ := cmd.Flags().GetBool("interactive")
		asJSON, _ := cmd.Flags().GetBool("json")

		filename, body, err := readInputFile(file)
		if err != nil {
			return err
		}
		input := upload.Input{Filename: filename, Body: body, Budget: budget, PollInterval: pollInterval}

		if !interactive {
			output, err := app.Uploads.UploadAndCorrelate(ctx, input)
			if err != nil {
				if output.Upload.ImageKey != "" {
					logging.Warn(ctx, "image stored but correlation failed", slog.String("image_key", output.Upload.ImageKey))
				}
				return errs.Wrap(err, "upload and correlate")
			}
			if asJSON {
				return printJSON(cmd, output)
			}
			if _, err := fmt.Fprintln(cmd.OutOrStdout(), resultconsole.Render(output.Result)); err != nil {
				return errs.Wrap(err, "write upload output")
			}
			return nil
		}

		record, err := app.Uploads.Store(ctx, input)
		if err != nil {
			return errs.Wrap(err, "store upload")
		}
		return runResultConsole(cmd, app, resultconsole.Options{
			ImageKey:     record.ImageKey,
			Budget:       budget,
			PollInterval: pollInterval,
		})
	}),
}

func runResultConsole(cmd *cobra.Command, app *bootstrap.App, options resultconsole.Options) error {
	model := resultconsole.NewModel(cmd.Context(), app.Correlation, options)
	program := tea.NewProgram(
		model,
		tea.WithContext(cmd.Context()),
		tea.WithInput(cmd.InOrStdin()),
		tea.WithOutput(cmd.OutOrStdout()),
	)
	if _, err := program.Run(); err != nil {
		return errs.Wrap(err, "run result console")
	}

	_, done, err := model.Outcome()
	if !done {
		return nil
	}
	if err != nil {
		return errs.Wrap(err, "correlate upload")
	}
	return nil
}

func init() {
	rootCmd.AddCommand(uploadCmd)
	uploadCmd.Flags().String("file", "", "Image file to upload (.jpg, .jpeg, .png)")
	uploadCmd.Flags().Duration("budget", 0, "Correlation budget; 0 uses the configured default")
	uploadCmd.Flags().Duration("poll-interval", 0, "Poll interval; 0 uses the configured default")
	uploadCmd.Flags().Bool("interactive", false, "Show live progress in a terminal console")
	uploadCmd.Flags().Bool("json", false, "Print the upload and result as JSON")
	_ = uploadCmd.MarkFlagRequired("file")
}
