package semantic

import (
	"bytes"
	"strings"
	"testing"

	"github.com/cwbudde/go-nyx/internal/ast"
	"github.com/cwbudde/go-nyx/internal/errors"
	"github.com/cwbudde/go-nyx/internal/lexer"
	"github.com/cwbudde/go-nyx/internal/parser"
)

// resolve parses and checks a single module, returning the module, the
// logger and the collected diagnostic text.
func resolve(t *testing.T, source string) (*ast.Module, *errors.Logger, string) {
	t.Helper()
	var diag bytes.Buffer
	logger := errors.NewLogger(errors.WithOutput(&diag), errors.WithColor(false))

	module := ast.NewModule("test", "test.nyx", source)
	p := parser.New(lexer.New(source), module, logger, nil, 0)
	p.Parse()
	if logger.HadError() {
		t.Fatalf("parse errors:\n%s", diag.String())
	}

	NewResolver(logger, []*ast.Module{module}).Check(module)
	return module, logger, diag.String()
}

func TestResolveErrors(t *testing.T) {
	tests := []struct {
		name    string
		source  string
		wantMsg string
	}{
		{
			name:    "type mismatch in initializer",
			source:  `var x: int = true;`,
			wantMsg: "cannot initialize",
		},
		{
			name:    "assignment to const",
			source:  `const x: int = 1; fn main() -> null { x = 2; return; }`,
			wantMsg: "const",
		},
		{
			name:    "undefined name",
			source:  `fn main() -> null { print(missing); return; }`,
			wantMsg: "undefined name",
		},
		{
			name:    "redeclaration in same scope",
			source:  `fn main() -> null { var x: int = 1; var x: int = 2; return; }`,
			wantMsg: "redeclaration",
		},
		{
			name:    "reference to rvalue",
			source:  `fn main() -> null { ref x: ref int = 1 + 2; return; }`,
			wantMsg: "l-value",
		},
		{
			name:    "non-const ref to const",
			source:  `fn main() -> null { const c: int = 1; ref r: ref int = c; return; }`,
			wantMsg: "const",
		},
		{
			name:    "tuple position out of range",
			source:  `fn main() -> null { var t: {int, int} = {1, 2}; print(t.5); return; }`,
			wantMsg: "out of range",
		},
		{
			name:    "tuple arity mismatch",
			source:  `fn main() -> null { var {a, b, c}: {int, int} = {1, 2}; return; }`,
			wantMsg: "does not match",
		},
		{
			name:    "bool condition required",
			source:  `fn main() -> null { if (1) { return; } return; }`,
			wantMsg: "bool",
		},
		{
			name: "wrong arity in call",
			source: `fn f(x: int) -> int { return x; }
fn main() -> null { print(f()); return; }`,
			wantMsg: "expects 1 arguments",
		},
		{
			name: "return type mismatch",
			source: `fn f() -> int { return "s"; }
fn main() -> null { return; }`,
			wantMsg: "return type",
		},
		{
			name: "private member access outside class",
			source: `
class C { private var secret: int = 1;
          public fn C() -> C { return this; }
          public fn ~C() -> null { return; } }
fn main() -> null { var c: C = C(); print(c.secret); return; }`,
			wantMsg: "private",
		},
		{
			name: "this outside ctor or dtor",
			source: `
class C { public fn C() -> C { return this; }
          public fn ~C() -> null { return; }
          public fn m() -> null { this; return; } }
fn main() -> null { return; }`,
			wantMsg: "'this' can only be used inside a constructor or destructor",
		},
		{
			name:    "native used as value",
			source:  `fn main() -> null { var p = print; return; }`,
			wantMsg: "native",
		},
		{
			name:    "list elements of mixed types",
			source:  `fn main() -> null { var xs = [1, "two"]; return; }`,
			wantMsg: "same type",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, logger, diag := resolve(t, tt.source)
			if !logger.HadError() {
				t.Fatalf("expected a type error, got none")
			}
			if !strings.Contains(diag, tt.wantMsg) {
				t.Errorf("diagnostics do not mention %q:\n%s", tt.wantMsg, diag)
			}
		})
	}
}

func TestNumericConversionWarnsAndTags(t *testing.T) {
	module, logger, diag := resolve(t, `fn main() -> null { var x: int = 1.5; return; }`)
	if logger.HadError() {
		t.Fatalf("unexpected errors:\n%s", diag)
	}
	if logger.WarningCount() == 0 {
		t.Error("expected an implicit-conversion warning")
	}

	fn := module.Functions["main"]
	decl := fn.Body.Stmts[0].(*ast.VarStmt)
	if decl.Conversion != ast.ConvFloatToInt {
		t.Errorf("conversion tag = %v, want FLOAT_TO_INT", decl.Conversion)
	}
}

func TestIdentifierKindsAndSlots(t *testing.T) {
	source := `
var g: int = 1;
fn main() -> null {
  var a: int = 2;
  var b: int = 3;
  a = g;
  b = a;
  return;
}`
	module, logger, diag := resolve(t, source)
	if logger.HadError() {
		t.Fatalf("unexpected errors:\n%s", diag)
	}

	fn := module.Functions["main"]
	assignA := fn.Body.Stmts[2].(*ast.ExpressionStmt).Expr.(*ast.AssignExpr)
	if assignA.TargetKind != ast.IdentLocal || assignA.Attrs().StackSlot != 0 {
		t.Errorf("a: kind=%v slot=%d, want local slot 0", assignA.TargetKind, assignA.Attrs().StackSlot)
	}
	g := assignA.Value.(*ast.VariableExpr)
	if g.Kind != ast.IdentGlobal || g.Attrs().StackSlot != 0 {
		t.Errorf("g: kind=%v slot=%d, want global slot 0", g.Kind, g.Attrs().StackSlot)
	}
	assignB := fn.Body.Stmts[3].(*ast.ExpressionStmt).Expr.(*ast.AssignExpr)
	if assignB.Attrs().StackSlot != 1 {
		t.Errorf("b slot = %d, want 1", assignB.Attrs().StackSlot)
	}
}

func TestCtorDtorSynthesis(t *testing.T) {
	module, logger, diag := resolve(t, `
class Empty { public var v: int = 0; }
fn main() -> null { return; }`)
	if logger.HadError() {
		t.Fatalf("unexpected errors:\n%s", diag)
	}

	class := module.Classes["Empty"]
	if class.Ctor == nil || class.Dtor == nil {
		t.Fatal("ctor/dtor not synthesized")
	}
	if !class.Ctor.IsConstructor() || !class.Dtor.IsDestructor() {
		t.Error("synthesized methods misclassified")
	}
	if class.Dtor.Name.Lexeme != "~Empty" {
		t.Errorf("dtor name = %q", class.Dtor.Name.Lexeme)
	}
	if ret, ok := class.Ctor.ReturnType.(*ast.UserDefinedType); !ok || ret.Name.Lexeme != "Empty" {
		t.Error("ctor must return its class")
	}
}

func TestListInferenceMarksCopies(t *testing.T) {
	source := `
fn main() -> null {
  var a: [int] = [1, 2];
  var b: [[int]] = [a];
  return;
}`
	module, logger, diag := resolve(t, source)
	if logger.HadError() {
		t.Fatalf("unexpected errors:\n%s", diag)
	}

	fn := module.Functions["main"]
	declB := fn.Body.Stmts[1].(*ast.VarStmt)
	list := declB.Initializer.(*ast.ListExpr)
	if !list.Elements[0].RequiresCopy {
		t.Error("an l-value element bound into a non-ref list must be copied")
	}
}

func TestReferenceListInference(t *testing.T) {
	source := `
fn main() -> null {
  var a: [int] = [1, 2];
  var b: [int] = [3, 4];
  var views: [ref [int]] = [a, b];
  return;
}`
	module, logger, diag := resolve(t, source)
	if logger.HadError() {
		t.Fatalf("unexpected errors:\n%s", diag)
	}

	fn := module.Functions["main"]
	decl := fn.Body.Stmts[2].(*ast.VarStmt)
	list := decl.Initializer.(*ast.ListExpr)
	if !list.Type.Contained.Data().IsRef {
		t.Error("the literal must be retagged as a reference list")
	}
	for i, elem := range list.Elements {
		if elem.RequiresCopy {
			t.Errorf("element %d of a reference list must not be copied", i)
		}
	}
}

func TestTypeofSubstitution(t *testing.T) {
	source := `
fn main() -> null {
  var x: int = 1;
  var y: typeof(x) = 2;
  print(x + y);
  return;
}`
	module, logger, diag := resolve(t, source)
	if logger.HadError() {
		t.Fatalf("unexpected errors:\n%s", diag)
	}
	fn := module.Functions["main"]
	declY := fn.Body.Stmts[1].(*ast.VarStmt)
	if declY.Type.Data().Kind != ast.TypeInt {
		t.Errorf("typeof(x) resolved to %v, want int", declY.Type.Data().Kind)
	}
}

func TestTypeAliases(t *testing.T) {
	source := `
type Ints = [int];
fn main() -> null {
  var xs: Ints = [1, 2, 3];
  print(size(xs));
  return;
}`
	_, logger, diag := resolve(t, source)
	if logger.HadError() {
		t.Fatalf("unexpected errors:\n%s", diag)
	}
}

func TestConstPropagatesThroughMemberAccess(t *testing.T) {
	source := `
class P { public var x: int = 0;
          public fn P() -> P { return this; }
          public fn ~P() -> null { return; } }
fn probe(p: const P) -> null { p.x = 1; return; }
fn main() -> null { return; }`
	_, logger, diag := resolve(t, source)
	if !logger.HadError() {
		t.Fatal("expected an error assigning through a const object")
	}
	if !strings.Contains(diag, "const") {
		t.Errorf("diagnostics:\n%s", diag)
	}
}

func TestCrossModuleScopeAccess(t *testing.T) {
	var diag bytes.Buffer
	logger := errors.NewLogger(errors.WithOutput(&diag), errors.WithColor(false))

	libSource := `fn helper() -> int { return 41; }`
	lib := ast.NewModule("lib", "lib.nyx", libSource)
	parser.New(lexer.New(libSource), lib, logger, nil, 1).Parse()

	mainSource := `fn main() -> null { print(lib::helper() + 1); return; }`
	main := ast.NewModule("main", "main.nyx", mainSource)
	parser.New(lexer.New(mainSource), main, logger, nil, 0).Parse()
	main.Imported = append(main.Imported, 0)

	if logger.HadError() {
		t.Fatalf("parse errors:\n%s", diag.String())
	}

	resolver := NewResolver(logger, []*ast.Module{lib, main})
	resolver.Check(lib)
	resolver.Check(main)
	if logger.HadError() {
		t.Fatalf("resolve errors:\n%s", diag.String())
	}

	fn := main.Functions["main"]
	call := fn.Body.Stmts[0].(*ast.ExpressionStmt).Expr.(*ast.CallExpr).
		Args[0].Value.(*ast.BinaryExpr).Left.(*ast.CallExpr)
	access := call.Function.(*ast.ScopeAccessExpr)
	if access.Attrs().Func == nil || access.Attrs().Func.Name.Lexeme != "helper" {
		t.Error("scope access did not bind the imported function")
	}
	if access.Attrs().ModuleIndex != 0 {
		t.Errorf("module index = %d, want 0", access.Attrs().ModuleIndex)
	}
}
