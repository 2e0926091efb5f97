package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var disasmCmd = &cobra.Command{
	Use:   "disasm <path>",
	Short: "Compile a program and print its bytecode listing",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		previousCheck, previousDisasm := checkOnly, disassembleCode
		checkOnly, disassembleCode = true, true
		defer func() { checkOnly, disassembleCode = previousCheck, previousDisasm }()

		return runPipeline(args[0], newLogger(), os.Stdout)
	},
}

func init() {
	rootCmd.AddCommand(disasmCmd)
}
