package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check <path>",
	Short: "Parse and type-check a program without executing it",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		logger := newLogger()
		previous := checkOnly
		checkOnly = true
		defer func() { checkOnly = previous }()

		if err := runPipeline(args[0], logger, os.Stdout); err != nil {
			return err
		}
		if logger.WarningCount() > 0 {
			fmt.Fprintf(os.Stderr, "%d warning(s)\n", logger.WarningCount())
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
}
