// Package printer renders the AST: a debugging tree dump for
// --dump-ast, and the source formatter behind `nyx fmt`.
package printer

import (
	"fmt"
	"io"
	"strings"

	"github.com/cwbudde/go-nyx/internal/ast"
)

// PrintAST writes an indented tree dump of the statements.
func PrintAST(w io.Writer, stmts []ast.Stmt) {
	p := &astPrinter{w: w}
	for _, stmt := range stmts {
		p.stmt(stmt, 0)
	}
}

type astPrinter struct {
	w io.Writer
}

func (p *astPrinter) line(depth int, format string, args ...any) {
	fmt.Fprintf(p.w, "%s%s\n", strings.Repeat("  ", depth), fmt.Sprintf(format, args...))
}

func (p *astPrinter) stmt(stmt ast.Stmt, depth int) {
	switch s := stmt.(type) {
	case *ast.BlockStmt:
		p.line(depth, "Block")
		for _, inner := range s.Stmts {
			p.stmt(inner, depth+1)
		}
	case *ast.BreakStmt:
		p.line(depth, "Break")
	case *ast.ContinueStmt:
		p.line(depth, "Continue")
	case *ast.ClassStmt:
		p.line(depth, "Class %s", s.Name.Lexeme)
		for _, member := range s.Members {
			p.line(depth+1, "%s member:", member.Visibility)
			p.stmt(member.Var, depth+2)
		}
		for _, method := range s.Methods {
			p.line(depth+1, "%s method:", method.Visibility)
			p.stmt(method.Fn, depth+2)
		}
	case *ast.CommentStmt:
		p.line(depth, "Comment %q", s.Text.Lexeme)
	case *ast.ExpressionStmt:
		p.line(depth, "Expression")
		p.expr(s.Expr, depth+1)
	case *ast.ForStmt:
		p.line(depth, "For")
		if s.Init != nil {
			p.stmt(s.Init, depth+1)
		}
		if s.Cond != nil {
			p.expr(s.Cond, depth+1)
		}
		if s.Increment != nil {
			p.stmt(s.Increment, depth+1)
		}
		p.stmt(s.Body, depth+1)
	case *ast.FunctionStmt:
		params := make([]string, len(s.Params))
		for i, param := range s.Params {
			params[i] = param.Name.Lexeme + ": " + ast.TypeExprString(param.Type)
		}
		p.line(depth, "Function %s(%s) -> %s", s.Name.Lexeme,
			strings.Join(params, ", "), ast.TypeExprString(s.ReturnType))
		p.stmt(s.Body, depth+1)
	case *ast.IfStmt:
		p.line(depth, "If")
		p.expr(s.Cond, depth+1)
		p.stmt(s.Then, depth+1)
		if s.Else != nil {
			p.line(depth, "Else")
			p.stmt(s.Else, depth+1)
		}
	case *ast.ImportStmt:
		p.line(depth, "Import %q (module %d)", s.Path.Lexeme, s.ModuleIndex)
	case *ast.ReturnStmt:
		p.line(depth, "Return")
		if s.Value != nil {
			p.expr(s.Value, depth+1)
		}
	case *ast.SwitchStmt:
		p.line(depth, "Switch")
		p.expr(s.Cond, depth+1)
		for _, switchCase := range s.Cases {
			p.line(depth+1, "Case")
			p.expr(switchCase.Value, depth+2)
			p.stmt(switchCase.Body, depth+2)
		}
		if s.Default != nil {
			p.line(depth+1, "Default")
			p.stmt(s.Default, depth+2)
		}
	case *ast.TypeStmt:
		p.line(depth, "Type %s = %s", s.Name.Lexeme, ast.TypeExprString(s.Aliased))
	case *ast.VarStmt:
		typeName := "<inferred>"
		if s.Type != nil {
			typeName = ast.TypeExprString(s.Type)
		}
		p.line(depth, "%s %s: %s", s.Keyword.Lexeme, s.Name.Lexeme, typeName)
		p.expr(s.Initializer, depth+1)
	case *ast.VarTupleStmt:
		p.line(depth, "%s %s", s.Token.Lexeme, identTupleString(s.Names))
		p.expr(s.Initializer, depth+1)
	case *ast.WhileStmt:
		p.line(depth, "While")
		p.expr(s.Cond, depth+1)
		p.stmt(s.Body, depth+1)
	default:
		p.line(depth, "%T", stmt)
	}
}

func (p *astPrinter) expr(expr ast.Expr, depth int) {
	p.line(depth, "%s", ExprString(expr))
	if info := expr.Attrs().Info; info != nil {
		p.line(depth+1, ": %s%s", ast.TypeExprString(info), lvalueSuffix(expr))
	}
}

func lvalueSuffix(expr ast.Expr) string {
	if expr.Attrs().IsLvalue {
		return " (lvalue)"
	}
	return ""
}

func identTupleString(tuple *ast.IdentTuple) string {
	parts := make([]string, len(tuple.Elems))
	for i, elem := range tuple.Elems {
		if elem.Nested != nil {
			parts[i] = identTupleString(elem.Nested)
		} else {
			parts[i] = elem.Name.Lexeme
		}
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
