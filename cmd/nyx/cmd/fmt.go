package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cwbudde/go-nyx/internal/lexer"
	"github.com/cwbudde/go-nyx/internal/parser"
	"github.com/cwbudde/go-nyx/internal/printer"
)

var (
	useTabs                 bool
	tabSize                 int
	collapseSingleLineBlock bool
	braceNextLine           bool
	writeInPlace            bool
)

var fmtCmd = &cobra.Command{
	Use:   "fmt <path>",
	Short: "Format a nyx source file",
	Long: `Parse a source file (keeping comments) and print it back in canonical
form. Options come from flags, falling back to a ` + printer.ConfigFileName + `
YAML file in the working directory.`,
	Args: cobra.ExactArgs(1),
	RunE: formatFile,
}

func init() {
	rootCmd.AddCommand(fmtCmd)

	fmtCmd.Flags().BoolVar(&useTabs, "use-tabs", false, "indent with tabs instead of spaces")
	fmtCmd.Flags().IntVar(&tabSize, "tab-size", 0, "spaces per indent level (default 4)")
	fmtCmd.Flags().BoolVar(&collapseSingleLineBlock, "collapse-single-line-block", false,
		"render single-statement blocks on one line")
	fmtCmd.Flags().BoolVar(&braceNextLine, "brace-next-line", false, "place opening braces on their own line")
	fmtCmd.Flags().BoolVarP(&writeInPlace, "write", "w", false, "rewrite the file instead of printing")
}

func formatFile(cobraCmd *cobra.Command, args []string) error {
	content, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading %s: %w", args[0], err)
	}

	opts, err := printer.LoadConfig(printer.ConfigFileName)
	if err != nil {
		return err
	}
	if cobraCmd.Flags().Changed("use-tabs") {
		opts.UseTabs = useTabs
	}
	if cobraCmd.Flags().Changed("tab-size") {
		opts.TabSize = tabSize
	}
	if cobraCmd.Flags().Changed("collapse-single-line-block") {
		opts.CollapseSingleLineBlock = collapseSingleLineBlock
	}
	if cobraCmd.Flags().Changed("brace-next-line") {
		opts.BraceNextLine = braceNextLine
	}

	logger := newLogger()
	lx := lexer.New(string(content), lexer.KeepComments())
	p := parser.New(lx, nil, logger, nil, 0, parser.KeepComments())
	stmts := p.Parse()
	if logger.HadError() {
		return fmt.Errorf("cannot format: %d syntax error(s)", logger.ErrorCount())
	}

	formatted := printer.NewFormatter(opts).Format(stmts)
	if writeInPlace {
		return os.WriteFile(args[0], []byte(formatted), 0o644)
	}
	fmt.Print(formatted)
	return nil
}
