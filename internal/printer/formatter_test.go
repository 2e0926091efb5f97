package printer

import (
	"bytes"
	"strings"
	"testing"

	"github.com/cwbudde/go-nyx/internal/ast"
	"github.com/cwbudde/go-nyx/internal/errors"
	"github.com/cwbudde/go-nyx/internal/lexer"
	"github.com/cwbudde/go-nyx/internal/parser"
)

func parseForFormat(t *testing.T, source string) []ast.Stmt {
	t.Helper()
	var diag bytes.Buffer
	logger := errors.NewLogger(errors.WithOutput(&diag), errors.WithColor(false))
	p := parser.New(lexer.New(source, lexer.KeepComments()), nil, logger, nil, 0, parser.KeepComments())
	stmts := p.Parse()
	if logger.HadError() {
		t.Fatalf("parse errors:\n%s", diag.String())
	}
	return stmts
}

func TestFormatFunction(t *testing.T) {
	stmts := parseForFormat(t, "fn main()->null{var x:int=1;print(x);return;}")
	got := NewFormatter(DefaultOptions()).Format(stmts)
	want := `fn main() -> null {
    var x: int = 1;
    print(x);
    return;
}
`
	if got != want {
		t.Errorf("formatted output:\n%s\nwant:\n%s", got, want)
	}
}

func TestFormatUseTabs(t *testing.T) {
	stmts := parseForFormat(t, "fn f()->int{return 1;}")
	opts := DefaultOptions()
	opts.UseTabs = true
	got := NewFormatter(opts).Format(stmts)
	if !strings.Contains(got, "\treturn 1;") {
		t.Errorf("expected tab indentation:\n%q", got)
	}
}

func TestFormatTabSize(t *testing.T) {
	stmts := parseForFormat(t, "fn f()->int{return 1;}")
	opts := DefaultOptions()
	opts.TabSize = 2
	got := NewFormatter(opts).Format(stmts)
	if !strings.Contains(got, "\n  return 1;") {
		t.Errorf("expected two-space indentation:\n%q", got)
	}
}

func TestFormatCollapseSingleLineBlock(t *testing.T) {
	stmts := parseForFormat(t, "fn f()->int{return 1;}")
	opts := DefaultOptions()
	opts.CollapseSingleLineBlock = true
	got := NewFormatter(opts).Format(stmts)
	if !strings.Contains(got, "fn f() -> int { return 1; }") {
		t.Errorf("expected collapsed block:\n%q", got)
	}
}

func TestFormatBraceNextLine(t *testing.T) {
	stmts := parseForFormat(t, "fn f()->int{return 1;}")
	opts := DefaultOptions()
	opts.BraceNextLine = true
	got := NewFormatter(opts).Format(stmts)
	if !strings.Contains(got, "fn f() -> int\n{\n") {
		t.Errorf("expected brace on its own line:\n%q", got)
	}
}

func TestFormatKeepsComments(t *testing.T) {
	stmts := parseForFormat(t, "// leading note\nvar x: int = 1;")
	got := NewFormatter(DefaultOptions()).Format(stmts)
	if !strings.Contains(got, "// leading note") {
		t.Errorf("comment dropped:\n%q", got)
	}
}

func TestFormatTypelessDeclarationStaysTypeless(t *testing.T) {
	stmts := parseForFormat(t, "var x = 1;")
	got := NewFormatter(DefaultOptions()).Format(stmts)
	if strings.Contains(got, ":") {
		t.Errorf("inferred type must not be printed back:\n%q", got)
	}
}

func TestFormatClass(t *testing.T) {
	stmts := parseForFormat(t, `class C{public var x:int=0;public fn C()->C{return this;}}`)
	got := NewFormatter(DefaultOptions()).Format(stmts)
	for _, want := range []string{"class C {", "public var x: int = 0;", "public fn C() -> C {"} {
		if !strings.Contains(got, want) {
			t.Errorf("formatted class missing %q:\n%s", want, got)
		}
	}
}

func TestFormatControlFlow(t *testing.T) {
	source := `fn main()->null{for(var i:int=0;i<3;i=i+1){print(i);}switch(1){case 1:print("a");default:print("b");}while(true){break;}return;}`
	stmts := parseForFormat(t, source)
	got := NewFormatter(DefaultOptions()).Format(stmts)
	for _, want := range []string{
		"for (var i: int = 0; i < 3; i = i + 1) {",
		"switch (1) {",
		"case 1:",
		"default:",
		"while (true) {",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("formatted output missing %q:\n%s", want, got)
		}
	}
}

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	opts, err := LoadConfig("does-not-exist.yaml")
	if err != nil {
		t.Fatal(err)
	}
	if opts != DefaultOptions() {
		t.Errorf("opts = %+v, want defaults", opts)
	}
}

func TestPrintASTIncludesDeclaredTypes(t *testing.T) {
	source := `fn main() -> null { var x: int = 1; return; }`
	var diag bytes.Buffer
	logger := errors.NewLogger(errors.WithOutput(&diag), errors.WithColor(false))
	module := ast.NewModule("main", "main.nyx", source)
	parser.New(lexer.New(source), module, logger, nil, 0).Parse()

	var out bytes.Buffer
	PrintAST(&out, module.Statements)
	for _, want := range []string{"Function main() -> null", "var x: int", "Return"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("AST dump missing %q:\n%s", want, out.String())
		}
	}
}
