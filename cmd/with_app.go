package cmd

import (
	"context"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"ppesuite/internal/bootstrap"
	"ppesuite/internal/bootstrap/logging"
	"ppesuite/internal/errs"
)

func withApp(run func(cmd *cobra.Command, app *bootstrap.App) error) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := logging.WithAttrs(
			cmd.Context(),
			slog.String("command", cmd.CommandPath()),
			slog.String("config_file", cfgFile),
		)

		var app *bootstrap.App
		fxApp := fx.New(
			bootstrap.Module,
			fx.NopLogger,
			fx.Provide(func() context.Context { return ctx }),
			fx.Provide(
				fx.Annotate(
					func() string { return cfgFile },
					fx.ResultTags(`name:"configFile"`),
				),
			),
			fx.Populate(&app),
		)

		startCtx, cancelStart := context.WithTimeout(ctx, 30*time.Second)
		defer cancelStart()
		if err := fxApp.Start(startCtx); err != nil {
			logging.Error(ctx, "bootstrap application failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "start fx application")
		}

		defer func() {
			stopCtx, cancelStop := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancelStop()
			if err := fxApp.Stop(stopCtx); err != nil {
				logging.Error(ctx, "fx application stop failed", slog.Any("err", errs.Loggable(err)))
			}
		}()

		// Reconfigure logging now that the config file has been read.
		runCtx := logging.WithLogger(cmd.Context(), logging.New(app.Config.Logging.Level, app.Config.Logging.Format, cmd.ErrOrStderr()))
		cmd.SetContext(logging.WithAttrs(runCtx, slog.String("command", cmd.CommandPath())))

		if err := run(cmd, app); err != nil {
			return errs.Wrap(err, "run command")
		}
		return nil
	}
}
