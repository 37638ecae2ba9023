package cmd

import (
	"context"
	"errors"
	"log/slog"

	"github.com/spf13/cobra"

	"ppesuite/internal/bootstrap/logging"
	"ppesuite/internal/errs"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:          "ppesuite",
	Short:        "PPE compliance station backend",
	Long:         "Uploads site photos, waits for the PPE detection pipeline and reports who was found and what they were missing.",
	SilenceUsage: true,
}

// Execute runs the root command. It is called once by main.main().
func Execute(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}

	logger := logging.New("info", "text", rootCmd.ErrOrStderr())
	ctx = logging.WithLogger(ctx, logger)
	ctx = logging.WithAttrs(ctx, slog.String("app", "ppesuite"))

	rootCmd.SetContext(ctx)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		logging.Error(ctx, "command execution failed", slog.Any("err", errs.Loggable(err)))
		return errs.Wrap(err, "execute root command")
	}

	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "configs/config.yaml", "Config file path")
}
