package printer

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cwbudde/go-nyx/internal/ast"
)

// Options controls the formatter's layout decisions.
type Options struct {
	UseTabs                 bool `yaml:"use-tabs"`
	TabSize                 int  `yaml:"tab-size"`
	CollapseSingleLineBlock bool `yaml:"collapse-single-line-block"`
	BraceNextLine           bool `yaml:"brace-next-line"`
}

// DefaultOptions returns the formatter defaults: four spaces, braces on
// the same line.
func DefaultOptions() Options {
	return Options{TabSize: 4}
}

// ConfigFileName is the per-project formatter configuration file,
// looked up in the working directory.
const ConfigFileName = ".nyxfmt"

// LoadConfig reads formatter options from a YAML config file. A missing
// file yields the defaults without an error.
func LoadConfig(path string) (Options, error) {
	opts := DefaultOptions()
	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return opts, nil
		}
		return opts, fmt.Errorf("reading formatter config: %w", err)
	}
	if err := yaml.Unmarshal(content, &opts); err != nil {
		return opts, fmt.Errorf("parsing formatter config: %w", err)
	}
	if opts.TabSize <= 0 {
		opts.TabSize = 4
	}
	return opts, nil
}

// Formatter renders an AST back to canonical source text.
type Formatter struct {
	opts Options
	sb   strings.Builder
}

// NewFormatter creates a formatter with the given options.
func NewFormatter(opts Options) *Formatter {
	if opts.TabSize <= 0 {
		opts.TabSize = 4
	}
	return &Formatter{opts: opts}
}

// Format renders the statements as formatted source.
func (f *Formatter) Format(stmts []ast.Stmt) string {
	f.sb.Reset()
	for i, stmt := range stmts {
		f.stmt(stmt, 0)
		if i < len(stmts)-1 {
			if isDeclarationWithBody(stmt) {
				f.sb.WriteByte('\n')
			}
		}
	}
	return f.sb.String()
}

func isDeclarationWithBody(stmt ast.Stmt) bool {
	switch stmt.(type) {
	case *ast.FunctionStmt, *ast.ClassStmt:
		return true
	}
	return false
}

func (f *Formatter) indent(depth int) string {
	if f.opts.UseTabs {
		return strings.Repeat("\t", depth)
	}
	return strings.Repeat(" ", depth*f.opts.TabSize)
}

func (f *Formatter) write(depth int, text string) {
	f.sb.WriteString(f.indent(depth))
	f.sb.WriteString(text)
	f.sb.WriteByte('\n')
}

// openBrace writes a block opener after header, honoring
// brace-next-line.
func (f *Formatter) openBrace(depth int, header string) {
	if f.opts.BraceNextLine {
		f.write(depth, header)
		f.write(depth, "{")
	} else {
		f.write(depth, header+" {")
	}
}

func (f *Formatter) stmt(stmt ast.Stmt, depth int) {
	switch s := stmt.(type) {
	case *ast.BlockStmt:
		f.block(s, depth, "")
	case *ast.BreakStmt:
		f.write(depth, "break;")
	case *ast.ContinueStmt:
		f.write(depth, "continue;")
	case *ast.ClassStmt:
		f.classStmt(s, depth)
	case *ast.CommentStmt:
		f.write(depth, s.Text.Lexeme)
	case *ast.ExpressionStmt:
		f.write(depth, ExprString(s.Expr)+";")
	case *ast.ForStmt:
		f.forStmt(s, depth)
	case *ast.FunctionStmt:
		f.functionStmt(s, depth)
	case *ast.IfStmt:
		f.ifStmt(s, depth)
	case *ast.ImportStmt:
		f.write(depth, fmt.Sprintf("import %q;", s.Path.Lexeme))
	case *ast.ReturnStmt:
		if s.Value != nil {
			f.write(depth, "return "+ExprString(s.Value)+";")
		} else {
			f.write(depth, "return;")
		}
	case *ast.SwitchStmt:
		f.switchStmt(s, depth)
	case *ast.TypeStmt:
		f.write(depth, "type "+s.Name.Lexeme+" = "+ast.TypeExprString(s.Aliased)+";")
	case *ast.VarStmt:
		f.varStmt(s, depth)
	case *ast.VarTupleStmt:
		f.varTupleStmt(s, depth)
	case *ast.WhileStmt:
		f.openBrace(depth, "while ("+ExprString(s.Cond)+")")
		f.blockBody(s.Body, depth)
		f.write(depth, "}")
	}
}

// block renders a braced block, optionally collapsing single-statement
// bodies onto one line.
func (f *Formatter) block(block *ast.BlockStmt, depth int, header string) {
	if f.opts.CollapseSingleLineBlock && len(block.Stmts) == 1 {
		if collapsed, ok := f.collapse(block.Stmts[0]); ok {
			f.write(depth, strings.TrimSpace(header+" { "+collapsed+" }"))
			return
		}
	}
	f.openBrace(depth, strings.TrimSpace(header))
	for _, stmt := range block.Stmts {
		f.stmt(stmt, depth+1)
	}
	f.write(depth, "}")
}

// collapse renders simple statements inline.
func (f *Formatter) collapse(stmt ast.Stmt) (string, bool) {
	switch s := stmt.(type) {
	case *ast.ExpressionStmt:
		return ExprString(s.Expr) + ";", true
	case *ast.ReturnStmt:
		if s.Value != nil {
			return "return " + ExprString(s.Value) + ";", true
		}
		return "return;", true
	case *ast.BreakStmt:
		return "break;", true
	case *ast.ContinueStmt:
		return "continue;", true
	}
	return "", false
}

func (f *Formatter) blockBody(stmt ast.Stmt, depth int) {
	if block, ok := stmt.(*ast.BlockStmt); ok {
		for _, inner := range block.Stmts {
			f.stmt(inner, depth+1)
		}
		return
	}
	f.stmt(stmt, depth+1)
}

func (f *Formatter) varStmt(s *ast.VarStmt, depth int) {
	var sb strings.Builder
	sb.WriteString(s.Keyword.Lexeme)
	sb.WriteByte(' ')
	sb.WriteString(s.Name.Lexeme)
	if !s.OriginallyTypeless && s.Type != nil {
		sb.WriteString(": ")
		sb.WriteString(ast.TypeExprString(s.Type))
	}
	sb.WriteString(" = ")
	sb.WriteString(ExprString(s.Initializer))
	sb.WriteByte(';')
	f.write(depth, sb.String())
}

func (f *Formatter) varTupleStmt(s *ast.VarTupleStmt, depth int) {
	var sb strings.Builder
	sb.WriteString(s.Token.Lexeme)
	sb.WriteByte(' ')
	sb.WriteString(identTupleString(s.Names))
	if !s.OriginallyTypeless && s.Type != nil {
		sb.WriteString(": ")
		sb.WriteString(ast.TypeExprString(s.Type))
	}
	sb.WriteString(" = ")
	sb.WriteString(ExprString(s.Initializer))
	sb.WriteByte(';')
	f.write(depth, sb.String())
}

func (f *Formatter) functionStmt(s *ast.FunctionStmt, depth int) {
	params := make([]string, len(s.Params))
	for i, param := range s.Params {
		params[i] = param.Name.Lexeme + ": " + ast.TypeExprString(param.Type)
	}
	header := "fn " + s.Name.Lexeme + "(" + strings.Join(params, ", ") + ") -> " +
		ast.TypeExprString(s.ReturnType)
	f.block(s.Body, depth, header)
}

func (f *Formatter) classStmt(s *ast.ClassStmt, depth int) {
	f.openBrace(depth, "class "+s.Name.Lexeme)
	for _, member := range s.Members {
		f.sb.WriteString(f.indent(depth + 1))
		f.sb.WriteString(member.Visibility.String())
		f.sb.WriteByte(' ')
		sub := NewFormatter(f.opts)
		sub.varStmt(member.Var, 0)
		f.sb.WriteString(sub.sb.String())
	}
	for _, method := range s.Methods {
		f.sb.WriteString(f.indent(depth + 1))
		f.sb.WriteString(method.Visibility.String())
		f.sb.WriteByte(' ')
		sub := NewFormatter(f.opts)
		sub.functionStmt(method.Fn, 0)
		f.writeIndentedTail(sub.sb.String(), depth+1)
	}
	f.write(depth, "}")
}

// writeIndentedTail writes a multi-line fragment whose first line is
// already positioned, indenting the remaining lines.
func (f *Formatter) writeIndentedTail(text string, depth int) {
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	for i, line := range lines {
		if i == 0 {
			f.sb.WriteString(line)
			f.sb.WriteByte('\n')
			continue
		}
		f.sb.WriteString(f.indent(depth))
		f.sb.WriteString(line)
		f.sb.WriteByte('\n')
	}
}

func (f *Formatter) ifStmt(s *ast.IfStmt, depth int) {
	f.openBrace(depth, "if ("+ExprString(s.Cond)+")")
	f.blockBody(s.Then, depth)
	if s.Else == nil {
		f.write(depth, "}")
		return
	}
	f.write(depth, "} else {")
	f.blockBody(s.Else, depth)
	f.write(depth, "}")
}

func (f *Formatter) forStmt(s *ast.ForStmt, depth int) {
	var init, cond, incr string
	if s.Init != nil {
		sub := NewFormatter(f.opts)
		sub.stmt(s.Init, 0)
		init = strings.TrimSuffix(strings.TrimSpace(sub.sb.String()), ";")
	}
	if s.Cond != nil {
		cond = ExprString(s.Cond)
	}
	if s.Increment != nil {
		if exprStmt, ok := s.Increment.(*ast.ExpressionStmt); ok {
			incr = ExprString(exprStmt.Expr)
		}
	}
	f.openBrace(depth, "for ("+init+"; "+cond+"; "+incr+")")
	f.blockBody(s.Body, depth)
	f.write(depth, "}")
}

func (f *Formatter) switchStmt(s *ast.SwitchStmt, depth int) {
	f.openBrace(depth, "switch ("+ExprString(s.Cond)+")")
	for _, switchCase := range s.Cases {
		f.write(depth+1, "case "+ExprString(switchCase.Value)+":")
		f.stmt(switchCase.Body, depth+2)
	}
	if s.Default != nil {
		f.write(depth+1, "default:")
		f.stmt(s.Default, depth+2)
	}
	f.write(depth, "}")
}
