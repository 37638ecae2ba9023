package cmd

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"ppesuite/internal/errs"
)

func printJSON(cmd *cobra.Command, value any) error {
	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(value); err != nil {
		return errs.Wrap(err, "write json output")
	}
	return nil
}

func readInputFile(path string) (string, []byte, error) {
	body, err := os.ReadFile(path)
	if err != nil {
		return "", nil, errs.Wrapf(err, "read %s", path)
	}
	return filepath.Base(path), body, nil
}
