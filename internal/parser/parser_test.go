package parser

import (
	"bytes"
	"testing"

	"github.com/cwbudde/go-nyx/internal/ast"
	"github.com/cwbudde/go-nyx/internal/errors"
	"github.com/cwbudde/go-nyx/internal/lexer"
)

func parseSource(t *testing.T, source string) ([]ast.Stmt, *errors.Logger) {
	t.Helper()
	var buf bytes.Buffer
	logger := errors.NewLogger(errors.WithOutput(&buf), errors.WithColor(false))
	module := ast.NewModule("test", "test.nyx", source)
	p := New(lexer.New(source), module, logger, nil, 0)
	stmts := p.Parse()
	return stmts, logger
}

func TestParseFunctionDeclaration(t *testing.T) {
	stmts, logger := parseSource(t, "fn main() -> null { print(1 + 2 * 3); return; }")
	if logger.HadError() {
		t.Fatalf("unexpected parse errors")
	}
	if len(stmts) != 1 {
		t.Fatalf("expected 1 statement, got %d", len(stmts))
	}
	fn, ok := stmts[0].(*ast.FunctionStmt)
	if !ok {
		t.Fatalf("expected FunctionStmt, got %T", stmts[0])
	}
	if fn.Name.Lexeme != "main" {
		t.Errorf("expected function name main, got %q", fn.Name.Lexeme)
	}
	if rt, ok := fn.ReturnType.(*ast.PrimitiveType); !ok || rt.Kind != ast.TypeNull {
		t.Errorf("expected null return type")
	}
	if len(fn.Body.Stmts) != 2 {
		t.Fatalf("expected 2 body statements, got %d", len(fn.Body.Stmts))
	}
}

func TestConstantFoldingOfLiteralArithmetic(t *testing.T) {
	stmts, logger := parseSource(t, "var x: int = 1 + 2 * 3;")
	if logger.HadError() {
		t.Fatal("unexpected parse errors")
	}
	decl := stmts[0].(*ast.VarStmt)
	lit, ok := decl.Initializer.(*ast.LiteralExpr)
	if !ok {
		t.Fatalf("expected folded literal, got %T", decl.Initializer)
	}
	if lit.Value.Kind != ast.LitInt || lit.Value.Int != 7 {
		t.Errorf("expected folded value 7, got %+v", lit.Value)
	}
}

func TestParseVarDeclarations(t *testing.T) {
	tests := []struct {
		name     string
		source   string
		typeless bool
	}{
		{"typed", "var x: int = 1;", false},
		{"typeless", "var x = 1;", true},
		{"const", "const y: float = 2.5;", false},
		{"list", "var xs: [int] = [1, 2, 3];", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stmts, logger := parseSource(t, tt.source)
			if logger.HadError() {
				t.Fatal("unexpected parse errors")
			}
			decl, ok := stmts[0].(*ast.VarStmt)
			if !ok {
				t.Fatalf("expected VarStmt, got %T", stmts[0])
			}
			if decl.OriginallyTypeless != tt.typeless {
				t.Errorf("OriginallyTypeless = %v, want %v", decl.OriginallyTypeless, tt.typeless)
			}
		})
	}
}

func TestParseRefDeclaration(t *testing.T) {
	stmts, logger := parseSource(t, "var x: int = 1; ref y: ref int = x;")
	if logger.HadError() {
		t.Fatal("unexpected parse errors")
	}
	decl := stmts[1].(*ast.VarStmt)
	if decl.Keyword.Type != lexer.KwRef {
		t.Errorf("expected ref keyword")
	}
	if !decl.Type.Data().IsRef {
		t.Errorf("expected a reference type")
	}
}

func TestParseVarTuple(t *testing.T) {
	stmts, logger := parseSource(t, "var {x, y}: {int, int} = {3, 4};")
	if logger.HadError() {
		t.Fatal("unexpected parse errors")
	}
	decl, ok := stmts[0].(*ast.VarTupleStmt)
	if !ok {
		t.Fatalf("expected VarTupleStmt, got %T", stmts[0])
	}
	if decl.Names.Size() != 2 {
		t.Errorf("expected 2 names, got %d", decl.Names.Size())
	}
	typ, ok := decl.Type.(*ast.TupleType)
	if !ok || len(typ.Types) != 2 {
		t.Errorf("expected a 2-tuple type")
	}
}

func TestParseClassWithVisibility(t *testing.T) {
	source := `
class C {
  public fn C() -> C { return this; }
  public fn ~C() -> null { return; }
  private var x: int = 0;
  public fn get() -> int { return this.x; }
}`
	stmts, logger := parseSource(t, source)
	if logger.HadError() {
		t.Fatal("unexpected parse errors")
	}
	class, ok := stmts[0].(*ast.ClassStmt)
	if !ok {
		t.Fatalf("expected ClassStmt, got %T", stmts[0])
	}
	if class.Ctor == nil || !class.Ctor.IsConstructor() {
		t.Error("constructor not recognized")
	}
	if class.Dtor == nil || !class.Dtor.IsDestructor() {
		t.Error("destructor not recognized")
	}
	if len(class.Members) != 1 || class.Members[0].Visibility != ast.VisibilityPrivate {
		t.Error("expected one private member")
	}
	if len(class.Methods) != 3 {
		t.Errorf("expected 3 methods, got %d", len(class.Methods))
	}
}

func TestParseControlFlow(t *testing.T) {
	source := `
fn main() -> null {
  var i: int = 0;
  while (i < 10) { i = i + 1; if (i == 5) { break; } }
  for (var j: int = 0; j < 3; j = j + 1) { continue; }
  switch (i) { case 1: i = 2; default: i = 0; }
  return;
}`
	_, logger := parseSource(t, source)
	if logger.HadError() {
		t.Fatal("unexpected parse errors")
	}
}

func TestParseRangeAndTernary(t *testing.T) {
	stmts, logger := parseSource(t, "var xs = 0 ..= 2; var y = true ? 1 : 2;")
	if logger.HadError() {
		t.Fatal("unexpected parse errors")
	}
	rangeDecl := stmts[0].(*ast.VarStmt)
	rng, ok := rangeDecl.Initializer.(*ast.BinaryExpr)
	if !ok || rng.Attrs().Token.Type != lexer.DotDotEqual {
		t.Errorf("expected ..= binary expression, got %T", rangeDecl.Initializer)
	}
	ternDecl := stmts[1].(*ast.VarStmt)
	if _, ok := ternDecl.Initializer.(*ast.TernaryExpr); !ok {
		t.Errorf("expected ternary expression, got %T", ternDecl.Initializer)
	}
}

func TestParseScopeAccess(t *testing.T) {
	stmts, logger := parseSource(t, "fn f() -> null { mod::g(); return; }")
	if logger.HadError() {
		t.Fatal("unexpected parse errors")
	}
	fn := stmts[0].(*ast.FunctionStmt)
	exprStmt := fn.Body.Stmts[0].(*ast.ExpressionStmt)
	call := exprStmt.Expr.(*ast.CallExpr)
	access, ok := call.Function.(*ast.ScopeAccessExpr)
	if !ok {
		t.Fatalf("expected ScopeAccessExpr, got %T", call.Function)
	}
	if _, ok := access.Scope.(*ast.ScopeNameExpr); !ok {
		t.Errorf("expected ScopeNameExpr on the left of '::', got %T", access.Scope)
	}
}

func TestParseErrorsRecoverAtStatementBoundary(t *testing.T) {
	stmts, logger := parseSource(t, "var = 1;\nvar ok: int = 2;")
	if !logger.HadError() {
		t.Fatal("expected a parse error")
	}
	// The second declaration still parses after recovery.
	found := false
	for _, stmt := range stmts {
		if decl, ok := stmt.(*ast.VarStmt); ok && decl.Name.Lexeme == "ok" {
			found = true
		}
	}
	if !found {
		t.Error("expected parser to recover and parse the second declaration")
	}
}

func TestBreakOutsideLoopIsAnError(t *testing.T) {
	_, logger := parseSource(t, "fn f() -> null { break; }")
	if !logger.HadError() {
		t.Fatal("expected an error for break outside a loop")
	}
}

func TestListRepeatExpression(t *testing.T) {
	stmts, logger := parseSource(t, "var xs: [int] = [0; 5];")
	if logger.HadError() {
		t.Fatal("unexpected parse errors")
	}
	decl := stmts[0].(*ast.VarStmt)
	if _, ok := decl.Initializer.(*ast.ListRepeatExpr); !ok {
		t.Errorf("expected ListRepeatExpr, got %T", decl.Initializer)
	}
}
