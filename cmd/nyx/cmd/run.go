package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/cwbudde/go-nyx/internal/bytecode"
	"github.com/cwbudde/go-nyx/internal/errors"
	"github.com/cwbudde/go-nyx/internal/modules"
	"github.com/cwbudde/go-nyx/internal/printer"
	"github.com/cwbudde/go-nyx/internal/semantic"
)

var (
	mainModule      string
	checkOnly       bool
	dumpAST         bool
	disassembleCode bool
	traceExec       []string
)

var runCmd = &cobra.Command{
	Use:   "run [--main] <path>",
	Short: "Compile and execute a nyx program",
	Long: `Compile the entry module and everything it imports, then execute the
program on the bytecode VM.

Examples:
  # Run a program
  nyx run program.nyx

  # Parse and type-check only
  nyx run --check program.nyx

  # Show the compiled bytecode of every module
  nyx run --disassemble-code program.nyx

  # Trace the VM (repeatable: stack, frame, module, insn, module_init)
  nyx run --trace-exec insn --trace-exec stack program.nyx`,
	Args: cobra.MaximumNArgs(1),
	RunE: runProgram,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&mainModule, "main", "", "entry module path")
	runCmd.Flags().BoolVar(&checkOnly, "check", false, "parse and type-check only; do not execute")
	runCmd.Flags().BoolVar(&dumpAST, "dump-ast", false, "print the AST of each module after resolution")
	runCmd.Flags().BoolVar(&disassembleCode, "disassemble-code", false, "print the bytecode of each module and function")
	runCmd.Flags().StringArrayVar(&traceExec, "trace-exec", nil,
		"VM tracing: stack, frame, module, insn, module_init (repeatable)")
}

func runProgram(_ *cobra.Command, args []string) error {
	entry := mainModule
	if entry == "" && len(args) == 1 {
		entry = args[0]
	}
	if entry == "" {
		return fmt.Errorf("an entry module is required: pass a path or --main <path>")
	}

	logger := newLogger()
	return runPipeline(entry, logger, os.Stdout)
}

// runPipeline drives source -> modules -> resolver -> emitter -> VM.
func runPipeline(entry string, logger *errors.Logger, out io.Writer) error {
	manager := modules.NewManager(logger)
	mainIndex, err := manager.LoadMain(entry)
	if err != nil {
		return err
	}
	if logger.HadError() {
		return fmt.Errorf("parsing failed with %d error(s)", logger.ErrorCount())
	}

	order := manager.CompileOrder()

	resolver := semantic.NewResolver(logger, manager.Modules)
	for _, index := range order {
		resolver.Check(manager.Modules[index])
	}
	if logger.HadError() {
		return fmt.Errorf("type checking failed with %d error(s)", logger.ErrorCount())
	}

	if dumpAST {
		for _, index := range order {
			module := manager.Modules[index]
			fmt.Fprintf(out, "AST of %s:\n", module.Name)
			printer.PrintAST(out, module.Statements)
			fmt.Fprintln(out)
		}
	}

	compiler := bytecode.NewCompiler(logger, manager.Modules, manager.PathIndexMap())
	compiled := make([]*bytecode.RuntimeModule, len(manager.Modules))
	for _, index := range order {
		module, err := compiler.Compile(manager.Modules[index], index, index == mainIndex)
		if err != nil {
			return err
		}
		compiled[index] = module
	}

	if disassembleCode {
		for _, index := range order {
			bytecode.DisassembleModule(out, compiled[index])
		}
	}

	if checkOnly {
		return nil
	}

	vm := bytecode.NewVM(logger,
		bytecode.WithOutput(out),
		bytecode.WithTrace(parseTraceOptions(traceExec)))
	if err := vm.Run(compiled, order); err != nil {
		return err
	}
	if logger.HadError() {
		return fmt.Errorf("execution failed")
	}
	return nil
}

func parseTraceOptions(opts []string) bytecode.TraceOptions {
	var trace bytecode.TraceOptions
	for _, opt := range opts {
		switch opt {
		case "stack":
			trace.Stack = true
		case "frame":
			trace.Frames = true
		case "module":
			trace.Modules = true
		case "insn":
			trace.Instructions = true
		case "module_init":
			trace.ModuleInit = true
		}
	}
	return trace
}

// newLogger builds the compile context's logger; color detection stays
// with the logger unless --no-colorize-output forces it off.
func newLogger() *errors.Logger {
	if noColorizeOutput {
		return errors.NewLogger(errors.WithColor(false))
	}
	return errors.NewLogger()
}
