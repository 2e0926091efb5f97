package bytecode

import (
	"bytes"
	"strings"
	"testing"

	"github.com/cwbudde/go-nyx/internal/ast"
	"github.com/cwbudde/go-nyx/internal/errors"
	"github.com/cwbudde/go-nyx/internal/lexer"
	"github.com/cwbudde/go-nyx/internal/parser"
	"github.com/cwbudde/go-nyx/internal/semantic"
)

// compileSource runs the full frontend over a single-module program.
func compileSource(t *testing.T, source string) (*RuntimeModule, *errors.Logger) {
	t.Helper()
	var diag bytes.Buffer
	logger := errors.NewLogger(errors.WithOutput(&diag), errors.WithColor(false))

	module := ast.NewModule("main", "main.nyx", source)
	p := parser.New(lexer.New(source), module, logger, nil, 0)
	p.Parse()
	if logger.HadError() {
		t.Fatalf("parse errors:\n%s", diag.String())
	}

	resolver := semantic.NewResolver(logger, []*ast.Module{module})
	resolver.Check(module)
	if logger.HadError() {
		t.Fatalf("type errors:\n%s", diag.String())
	}

	compiler := NewCompiler(logger, []*ast.Module{module}, map[string]int{"main.nyx": 0})
	compiled, err := compiler.Compile(module, 0, true)
	if err != nil {
		t.Fatalf("compile error: %v\n%s", err, diag.String())
	}
	return compiled, logger
}

// runSource executes a program and returns its standard output and the
// VM (for cache inspection).
func runSource(t *testing.T, source string) (string, *VM) {
	t.Helper()
	compiled, logger := compileSource(t, source)

	var out bytes.Buffer
	vm := NewVM(logger, WithOutput(&out))
	if err := vm.Run([]*RuntimeModule{compiled}, []int{0}); err != nil {
		t.Fatalf("runtime error: %v", err)
	}
	return out.String(), vm
}

func TestEndToEndScenarios(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   string
	}{
		{
			name:   "arithmetic and print",
			source: `fn main() -> null { print(1 + 2 * 3); return; }`,
			want:   "7",
		},
		{
			name: "reference mutation",
			source: `fn main() -> null { var x: int = 1; ref y: ref int = x; y = 5;
				print(x); return; }`,
			want: "5",
		},
		{
			name: "list copy on bind",
			source: `fn main() -> null { var a: [int] = [1,2,3]; var b: [int] = a;
				b[0] = 99; print(a[0]); print(b[0]); return; }`,
			want: "199",
		},
		{
			name: "tuple destructuring",
			source: `fn main() -> null { var {x, y}: {int, int} = {3, 4};
				print(x + y); return; }`,
			want: "7",
		},
		{
			name: "class and destructor ordering",
			source: `
class C { public fn C() -> C { return this; }
          public fn ~C() -> null { print("d"); return; } }
fn main() -> null { var c: C = C(); print("m"); return; }`,
			want: "md",
		},
		{
			name: "range and switch",
			source: `
fn main() -> null {
  var xs: [int] = 0 ..= 2;
  switch (xs[1]) { case 1: print("one"); case 2: print("two");
                   default: print("?"); }
  return;
}`,
			want: "one",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _ := runSource(t, tt.source)
			if got != tt.want {
				t.Errorf("output = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestStringCacheNetZero(t *testing.T) {
	source := `
fn greet(name: string) -> string { return "hello " + name; }
fn main() -> null {
  var a: string = "world";
  var b: string = greet(a);
  print(b);
  var c: string = b + "!";
  print(c);
  return;
}`
	got, vm := runSource(t, source)
	if got != "hello worldhello world!" {
		t.Fatalf("output = %q", got)
	}
	if live := vm.Cache().LiveCount(); live != 0 {
		t.Errorf("string cache still holds %d entries after completion", live)
	}
}

func TestListNonAliasing(t *testing.T) {
	source := `
fn main() -> null {
  var a: [int] = [1, 2, 3];
  var b: [int] = a;
  b[0] = 42;
  a[2] = 7;
  print(a[0]); print(b[0]);
  print(a[2]); print(b[2]);
  return;
}`
	got, _ := runSource(t, source)
	if got != "14273" {
		t.Errorf("output = %q, want %q (mutations must not alias)", got, "14273")
	}
}

func TestReferenceTransparencyForLists(t *testing.T) {
	source := `
fn main() -> null {
  var xs: [int] = [1, 2];
  ref view: ref [int] = xs;
  view[1] = 9;
  print(xs[1]);
  return;
}`
	got, _ := runSource(t, source)
	if got != "9" {
		t.Errorf("output = %q, want 9 (a list ref is a shared view)", got)
	}
}

func TestRangeBounds(t *testing.T) {
	tests := []struct {
		source string
		want   string
	}{
		{`fn main() -> null { print(size(0 .. 3)); return; }`, "3"},
		{`fn main() -> null { print(size(0 ..= 3)); return; }`, "4"},
		{`fn main() -> null { print(size(5 .. 5)); return; }`, "0"},
		{`fn main() -> null { print(size(5 .. 2)); return; }`, "0"},
		{`fn main() -> null { var xs: [int] = 2 ..= 4; print(xs[0]); print(xs[2]); return; }`, "24"},
	}
	for _, tt := range tests {
		got, _ := runSource(t, tt.source)
		if got != tt.want {
			t.Errorf("%s: output = %q, want %q", tt.source, got, tt.want)
		}
	}
}

func TestShortCircuitEvaluation(t *testing.T) {
	source := `
var calls: int = 0;
fn touched() -> bool { calls = calls + 1; return true; }
fn main() -> null {
  var a: bool = false and touched();
  print(calls);
  var b: bool = true or touched();
  print(calls);
  var c: bool = true and touched();
  print(calls);
  return;
}`
	got, _ := runSource(t, source)
	if got != "001" {
		t.Errorf("output = %q, want %q (short-circuit must skip the rhs)", got, "001")
	}
}

func TestNumericConversionRoundTrip(t *testing.T) {
	source := `
fn main() -> null {
  var x: float = 2.75;
  var y: int = x;
  print(y);
  var z: float = y;
  print(z);
  return;
}`
	got, _ := runSource(t, source)
	if got != "22" {
		t.Errorf("output = %q, want %q (float->int truncates)", got, "22")
	}
}

func TestScopeTeardownOnEveryExit(t *testing.T) {
	source := `
class D { public fn ~D() -> null { print("x"); return; } }
fn leave(early: bool) -> null {
  var d: D = D();
  if (early) { return; }
  return;
}
fn main() -> null {
  leave(true);
  leave(false);
  var i: int = 0;
  while (i < 2) {
    var d: D = D();
    i = i + 1;
    if (i == 2) { break; }
  }
  return;
}`
	got, _ := runSource(t, source)
	if got != "xxxx" {
		t.Errorf("output = %q, want %q (one destructor run per scope exit)", got, "xxxx")
	}
}

func TestWhileAndForLoops(t *testing.T) {
	source := `
fn main() -> null {
  var total: int = 0;
  for (var i: int = 0; i < 5; i = i + 1) {
    if (i == 3) { continue; }
    total = total + i;
  }
  print(total);
  return;
}`
	got, _ := runSource(t, source)
	if got != "7" {
		t.Errorf("output = %q, want 7", got)
	}
}

func TestFunctionCallsWithRefParams(t *testing.T) {
	source := `
fn bump(x: ref int) -> null { x = x + 1; return; }
fn main() -> null {
  var n: int = 41;
  bump(n);
  print(n);
  return;
}`
	got, _ := runSource(t, source)
	if got != "42" {
		t.Errorf("output = %q, want 42", got)
	}
}

func TestTernaryAndCompoundAssign(t *testing.T) {
	source := `
fn main() -> null {
  var x: int = 10;
  x += 5; x *= 2; x -= 6; x /= 4;
  print(x);
  print(x == 6 ? "yes" : "no");
  return;
}`
	got, _ := runSource(t, source)
	if got != "6yes" {
		t.Errorf("output = %q, want %q", got, "6yes")
	}
}

func TestListAppendPopAndRepeat(t *testing.T) {
	source := `
fn main() -> null {
  var xs: [int] = [7; 3];
  print(size(xs));
  print(xs[2]);
  xs << 9;
  print(size(xs));
  print(xs[3]);
  xs >> 2;
  print(size(xs));
  return;
}`
	got, _ := runSource(t, source)
	if got != "37492" {
		t.Errorf("output = %q, want %q", got, "37492")
	}
}

func TestStringIndexingAndEquality(t *testing.T) {
	source := `
fn main() -> null {
  var s: string = "nyx";
  print(s[1]);
  print("ab" + "cd" == "abcd" ? "eq" : "ne");
  return;
}`
	got, vm := runSource(t, source)
	if got != "yeq" {
		t.Errorf("output = %q, want %q", got, "yeq")
	}
	if live := vm.Cache().LiveCount(); live != 0 {
		t.Errorf("string cache still holds %d entries", live)
	}
}

func TestMoveLeavesNullBehind(t *testing.T) {
	source := `
fn main() -> null {
  var xs: [int] = [1, 2, 3];
  var ys: [int] = move xs;
  print(size(ys));
  return;
}`
	got, _ := runSource(t, source)
	if got != "3" {
		t.Errorf("output = %q, want 3", got)
	}
}

func TestPrefixAndPostfixIncrement(t *testing.T) {
	source := `
fn main() -> null {
  var x: int = 5;
  print(++x);
  print(x++);
  print(x);
  print(--x);
  return;
}`
	got, _ := runSource(t, source)
	if got != "6676" {
		t.Errorf("output = %q, want %q", got, "6676")
	}
}

func TestClassMembersAndVisibility(t *testing.T) {
	source := `
class Point {
  public var x: int = 1;
  public var y: int = 2;
  public fn Point() -> Point { return this; }
  public fn ~Point() -> null { return; }
}
fn main() -> null {
  var p: Point = Point();
  p.x = 10;
  print(p.x + p.y);
  return;
}`
	got, _ := runSource(t, source)
	if got != "12" {
		t.Errorf("output = %q, want 12", got)
	}
}

func TestRuntimeErrors(t *testing.T) {
	tests := []struct {
		name    string
		source  string
		wantErr string
	}{
		{
			name:    "division by zero",
			source:  `fn main() -> null { var z: int = 0; print(1 / z); return; }`,
			wantErr: "division by zero",
		},
		{
			name:    "list index out of range",
			source:  `fn main() -> null { var xs: [int] = [1]; print(xs[5]); return; }`,
			wantErr: "out of range",
		},
		{
			name:    "string index out of range",
			source:  `fn main() -> null { var s: string = "a"; print(s[3]); return; }`,
			wantErr: "out of range",
		},
		{
			name:    "falling off a non-null function",
			source:  `fn f() -> int { var x: int = 1; x = 2; } fn main() -> null { print(f()); return; }`,
			wantErr: "non-null function",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			compiled, logger := compileSource(t, tt.source)
			var out bytes.Buffer
			vm := NewVM(logger, WithOutput(&out))
			err := vm.Run([]*RuntimeModule{compiled}, []int{0})
			if err == nil {
				t.Fatal("expected a runtime error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestGlobalInitAndTeardown(t *testing.T) {
	source := `
var greeting: string = "hi";
fn main() -> null { print(greeting); return; }`
	got, vm := runSource(t, source)
	if got != "hi" {
		t.Fatalf("output = %q", got)
	}
	if live := vm.Cache().LiveCount(); live != 0 {
		t.Errorf("module teardown leaked %d cache entries", live)
	}
}

func TestAggregateDestructorForListOfClass(t *testing.T) {
	source := `
class R { public fn ~R() -> null { print("r"); return; } }
fn main() -> null {
  var rs: [R] = [R(), R()];
  print("-");
  return;
}`
	got, _ := runSource(t, source)
	if got != "-rr" {
		t.Errorf("output = %q, want %q (both elements destroyed at scope end)", got, "-rr")
	}
}
