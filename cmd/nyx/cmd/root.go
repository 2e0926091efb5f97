// Package cmd wires the nyx CLI: run, check, fmt, disasm and version.
package cmd

import (
	"github.com/spf13/cobra"
)

var (
	// Version information (set by build flags)
	Version   = "0.1.0-dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

var noColorizeOutput bool

var rootCmd = &cobra.Command{
	Use:   "nyx",
	Short: "Interpreter for the nyx programming language",
	Long: `go-nyx is a Go implementation of the nyx programming language.

nyx is a small statically-typed imperative language with classes,
references, tuples, lists and modules, executed on a stack-based
bytecode virtual machine with purely lexical lifetimes.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&noColorizeOutput, "no-colorize-output", false,
		"disable ANSI colors in diagnostic output")
}
