package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/gkampitakis/go-snaps/snaps"

	"github.com/cwbudde/go-nyx/internal/errors"
)

func writeProgram(t *testing.T, dir, name, source string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(source), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func runForTest(t *testing.T, entry string) (string, string, error) {
	t.Helper()
	var out, diag bytes.Buffer
	logger := errors.NewLogger(errors.WithOutput(&diag), errors.WithColor(false))
	err := runPipeline(entry, logger, &out)
	return out.String(), diag.String(), err
}

func TestRunPipelinePrograms(t *testing.T) {
	tests := []struct {
		name   string
		source string
	}{
		{
			name: "Fibonacci",
			source: `
fn fib(n: int) -> int {
  if (n < 2) { return n; }
  return fib(n - 1) + fib(n - 2);
}
fn main() -> null {
  for (var i: int = 0; i < 10; i = i + 1) {
    print(fib(i));
    print(" ");
  }
  return;
}`,
		},
		{
			name: "ClassLifecycle",
			source: `
class Counter {
  public var count: int = 0;
  public fn Counter() -> Counter { return this; }
  public fn ~Counter() -> null { print("done"); return; }
}
fn main() -> null {
  var c: Counter = Counter();
  c.count = 3;
  while (c.count > 0) {
    print(c.count);
    c.count = c.count - 1;
  }
  return;
}`,
		},
		{
			name: "ListsAndRanges",
			source: `
fn sum(xs: [int]) -> int {
  var total: int = 0;
  for (var i: int = 0; i < size(xs); i = i + 1) {
    total = total + xs[i];
  }
  return total;
}
fn main() -> null {
  print(sum(1 ..= 10));
  return;
}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			entry := writeProgram(t, dir, "main.nyx", tt.source)
			out, diag, err := runForTest(t, entry)
			if err != nil {
				t.Fatalf("run failed: %v\n%s", err, diag)
			}
			snaps.MatchSnapshot(t, out)
		})
	}
}

func TestRunWithImports(t *testing.T) {
	dir := t.TempDir()
	writeProgram(t, dir, "mathlib.nyx", `
fn double(x: int) -> int { return x * 2; }
fn triple(x: int) -> int { return x * 3; }`)
	entry := writeProgram(t, dir, "main.nyx", `
import "mathlib.nyx";
fn main() -> null {
  print(mathlib::double(21));
  print(" ");
  print(mathlib::triple(7));
  return;
}`)

	out, diag, err := runForTest(t, entry)
	if err != nil {
		t.Fatalf("run failed: %v\n%s", err, diag)
	}
	if out != "42 21" {
		t.Errorf("output = %q, want %q", out, "42 21")
	}
}

func TestCheckOnlySkipsExecution(t *testing.T) {
	dir := t.TempDir()
	entry := writeProgram(t, dir, "main.nyx", `fn main() -> null { print("ran"); return; }`)

	previous := checkOnly
	checkOnly = true
	defer func() { checkOnly = previous }()

	out, diag, err := runForTest(t, entry)
	if err != nil {
		t.Fatalf("check failed: %v\n%s", err, diag)
	}
	if out != "" {
		t.Errorf("check must not execute, got output %q", out)
	}
}

func TestTypeErrorsFailTheRun(t *testing.T) {
	dir := t.TempDir()
	entry := writeProgram(t, dir, "main.nyx", `fn main() -> null { var x: int = "nope"; return; }`)

	_, diag, err := runForTest(t, entry)
	if err == nil {
		t.Fatal("expected a type-check failure")
	}
	if diag == "" {
		t.Error("expected diagnostics on the logger output")
	}
}

func TestDisassembleFlag(t *testing.T) {
	dir := t.TempDir()
	entry := writeProgram(t, dir, "main.nyx", `fn main() -> null { print(3); return; }`)

	previousCheck, previousDisasm := checkOnly, disassembleCode
	checkOnly, disassembleCode = true, true
	defer func() { checkOnly, disassembleCode = previousCheck, previousDisasm }()

	out, diag, err := runForTest(t, entry)
	if err != nil {
		t.Fatalf("disassembly failed: %v\n%s", err, diag)
	}
	snaps.MatchSnapshot(t, out)
}

func TestParseTraceOptions(t *testing.T) {
	trace := parseTraceOptions([]string{"stack", "insn", "module_init"})
	if !trace.Stack || !trace.Instructions || !trace.ModuleInit {
		t.Errorf("trace = %+v", trace)
	}
	if trace.Frames || trace.Modules {
		t.Errorf("unselected trace options enabled: %+v", trace)
	}
}
