package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"ppesuite/internal/errs"
	"ppesuite/internal/schema"
)

var schemaCmd = &cobra.Command{
	Use:   "schema [name]",
	Short: "Print the JSON schema of an API document",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			for _, name := range schema.Names() {
				if _, err := fmt.Fprintln(cmd.OutOrStdout(), name); err != nil {
					return errs.Wrap(err, "write schema names")
				}
			}
			return nil
		}

		document, err := schema.For(args[0])
		if err != nil {
			return err
		}
		return printJSON(cmd, document)
	},
}

func init() {
	rootCmd.AddCommand(schemaCmd)
}
