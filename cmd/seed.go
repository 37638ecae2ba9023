package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"ppesuite/internal/bootstrap"
	"ppesuite/internal/errs"
	"ppesuite/internal/usecase/fixtures"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load employee profiles and outcomes from a yaml or toml fixture",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App) error {
		ctx := cmd.Context()
		file, _ := cmd.Flags().GetString("file")

		if err := app.InitSchema(ctx); err != nil {
			return errs.Wrap(err, "initialize schema")
		}

		doc, err := fixtures.LoadFile(file)
		if err != nil {
			return err
		}
		summary, err := app.Fixtures.Seed(ctx, doc)
		if err != nil {
			return errs.Wrap(err, "seed fixtures")
		}

		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "seeded profiles=%d outcomes=%d from %s\n", summary.Profiles, summary.Outcomes, file); err != nil {
			return errs.Wrap(err, "write seed output")
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(seedCmd)
	seedCmd.Flags().String("file", "", "Fixture file (.yaml, .yml or .toml)")
	_ = seedCmd.MarkFlagRequired("file")
}
