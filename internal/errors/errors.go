// Package errors provides diagnostic formatting and collection for the
// nyx compiler and VM. Diagnostics carry position and source context and
// are rendered with the offending line and a caret pointing at the
// column. One Logger is shared by a whole compile context; its had-error
// flag decides whether execution is suppressed.
package errors

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/cwbudde/go-nyx/internal/lexer"
	"github.com/mattn/go-isatty"
)

// Severity of a diagnostic.
type Severity int

const (
	SeverityWarning Severity = iota
	SeverityError
	SeverityFatal
	SeverityRuntime
)

func (s Severity) String() string {
	switch s {
	case SeverityWarning:
		return "warning"
	case SeverityFatal:
		return "fatal error"
	case SeverityRuntime:
		return "runtime error"
	default:
		return "error"
	}
}

// Diagnostic is a single reported problem.
type Diagnostic struct {
	Severity Severity
	Message  string
	Module   string
	Source   string
	Pos      lexer.Position
	HasPos   bool
}

// Format renders the diagnostic with source context. If color is true,
// ANSI codes highlight the caret and message.
func (d *Diagnostic) Format(color bool) string {
	var sb strings.Builder

	if d.HasPos {
		if d.Module != "" {
			fmt.Fprintf(&sb, "%s in %s:%d:%d\n", title(d.Severity), d.Module, d.Pos.Line, d.Pos.Column)
		} else {
			fmt.Fprintf(&sb, "%s at line %d:%d\n", title(d.Severity), d.Pos.Line, d.Pos.Column)
		}
		if line := sourceLine(d.Source, d.Pos.Line); line != "" {
			lineNum := fmt.Sprintf("%4d | ", d.Pos.Line)
			sb.WriteString(lineNum)
			sb.WriteString(line)
			sb.WriteByte('\n')

			col := d.Pos.Column
			if col < 1 {
				col = 1
			}
			sb.WriteString(strings.Repeat(" ", len(lineNum)+col-1))
			if color {
				sb.WriteString(caretColor(d.Severity))
			}
			sb.WriteByte('^')
			if color {
				sb.WriteString("\033[0m")
			}
			sb.WriteByte('\n')
		}
	} else {
		fmt.Fprintf(&sb, "%s", title(d.Severity))
		sb.WriteString(": ")
	}

	if color {
		sb.WriteString("\033[1m")
	}
	sb.WriteString(d.Message)
	if color {
		sb.WriteString("\033[0m")
	}
	sb.WriteByte('\n')
	return sb.String()
}

func title(s Severity) string {
	switch s {
	case SeverityWarning:
		return "Warning"
	case SeverityFatal:
		return "Fatal error"
	case SeverityRuntime:
		return "Runtime error"
	default:
		return "Error"
	}
}

func caretColor(s Severity) string {
	if s == SeverityWarning {
		return "\033[1;33m"
	}
	return "\033[1;31m"
}

func sourceLine(source string, lineNum int) string {
	if source == "" || lineNum < 1 {
		return ""
	}
	lines := strings.Split(source, "\n")
	if lineNum > len(lines) {
		return ""
	}
	return lines[lineNum-1]
}

// Logger collects diagnostics for one compile context.
type Logger struct {
	out         io.Writer
	colorize    bool
	diagnostics []Diagnostic
	errorCount  int
	warnCount   int
	hadRuntime  bool
}

// LoggerOption configures a Logger.
type LoggerOption func(*Logger)

// WithOutput redirects diagnostic output (default os.Stderr).
func WithOutput(w io.Writer) LoggerOption {
	return func(l *Logger) { l.out = w }
}

// WithColor forces colorization on or off.
func WithColor(on bool) LoggerOption {
	return func(l *Logger) { l.colorize = on }
}

// NewLogger creates a logger writing to stderr, colorized when stderr is
// a terminal.
func NewLogger(opts ...LoggerOption) *Logger {
	l := &Logger{
		out:      os.Stderr,
		colorize: isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd()),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Logger) report(d Diagnostic) {
	l.diagnostics = append(l.diagnostics, d)
	switch d.Severity {
	case SeverityWarning:
		l.warnCount++
	case SeverityRuntime:
		l.hadRuntime = true
	default:
		l.errorCount++
	}
	fmt.Fprint(l.out, d.Format(l.colorize))
}

// Error reports an error at a token within a module.
func (l *Logger) Error(module *ModuleSource, msg string, where lexer.Token) {
	d := Diagnostic{Severity: SeverityError, Message: msg, Pos: where.Pos(), HasPos: true}
	if module != nil {
		d.Module = module.Name
		d.Source = module.Source
	}
	l.report(d)
}

// Warning reports a warning at a token within a module; warnings never
// set the had-error flag.
func (l *Logger) Warning(module *ModuleSource, msg string, where lexer.Token) {
	d := Diagnostic{Severity: SeverityWarning, Message: msg, Pos: where.Pos(), HasPos: true}
	if module != nil {
		d.Module = module.Name
		d.Source = module.Source
	}
	l.report(d)
}

// Note prints supplementary information for the previous diagnostic.
func (l *Logger) Note(msg string) {
	if l.colorize {
		fmt.Fprintf(l.out, "\033[36mnote:\033[0m %s\n", msg)
	} else {
		fmt.Fprintf(l.out, "note: %s\n", msg)
	}
}

// FatalError reports an unrecoverable compile error.
func (l *Logger) FatalError(msg string) {
	l.report(Diagnostic{Severity: SeverityFatal, Message: msg})
}

// RuntimeError reports a VM error at a source line.
func (l *Logger) RuntimeError(msg string, line int) {
	l.report(Diagnostic{
		Severity: SeverityRuntime,
		Message:  msg,
		Pos:      lexer.Position{Line: line, Column: 1},
		HasPos:   line > 0,
	})
}

// HadError reports whether any error (not warning) was logged.
func (l *Logger) HadError() bool {
	return l.errorCount > 0 || l.hadRuntime
}

// ErrorCount returns the number of errors logged.
func (l *Logger) ErrorCount() int { return l.errorCount }

// WarningCount returns the number of warnings logged.
func (l *Logger) WarningCount() int { return l.warnCount }

// Diagnostics returns everything logged so far.
func (l *Logger) Diagnostics() []Diagnostic { return l.diagnostics }

// ModuleSource names a module and carries its source for excerpts. It is
// deliberately tiny so callers outside the module manager (the parser,
// the resolver) can hand the logger just what it needs.
type ModuleSource struct {
	Name   string
	Source string
}
