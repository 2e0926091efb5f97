package printer

import (
	"strconv"
	"strings"

	"github.com/cwbudde/go-nyx/internal/ast"
	"github.com/cwbudde/go-nyx/internal/lexer"
)

// ExprString renders an expression back to source form.
func ExprString(expr ast.Expr) string {
	switch e := expr.(type) {
	case *ast.AssignExpr:
		return e.Target.Lexeme + " " + e.Attrs().Token.Lexeme + " " + ExprString(e.Value)
	case *ast.BinaryExpr:
		return ExprString(e.Left) + " " + e.Attrs().Token.Lexeme + " " + ExprString(e.Right)
	case *ast.CallExpr:
		args := make([]string, len(e.Args))
		for i, arg := range e.Args {
			args[i] = ExprString(arg.Value)
		}
		return ExprString(e.Function) + "(" + strings.Join(args, ", ") + ")"
	case *ast.CommaExpr:
		parts := make([]string, len(e.Exprs))
		for i, operand := range e.Exprs {
			parts[i] = ExprString(operand)
		}
		return strings.Join(parts, ", ")
	case *ast.GetExpr:
		return ExprString(e.Object) + "." + e.Name.Lexeme
	case *ast.GroupingExpr:
		return "(" + ExprString(e.Inner) + ")"
	case *ast.IndexExpr:
		return ExprString(e.Object) + "[" + ExprString(e.Index) + "]"
	case *ast.ListExpr:
		elems := make([]string, len(e.Elements))
		for i, elem := range e.Elements {
			elems[i] = ExprString(elem.Value)
		}
		return "[" + strings.Join(elems, ", ") + "]"
	case *ast.ListAssignExpr:
		return ExprString(e.List) + " " + e.Attrs().Token.Lexeme + " " + ExprString(e.Value)
	case *ast.ListRepeatExpr:
		return "[" + ExprString(e.Element.Value) + "; " + ExprString(e.Quantity.Value) + "]"
	case *ast.LiteralExpr:
		return literalString(e.Value)
	case *ast.LogicalExpr:
		return ExprString(e.Left) + " " + e.Attrs().Token.Lexeme + " " + ExprString(e.Right)
	case *ast.MoveExpr:
		return "move " + ExprString(e.Inner)
	case *ast.ScopeAccessExpr:
		return ExprString(e.Scope) + "::" + e.Name.Lexeme
	case *ast.ScopeNameExpr:
		return e.Name.Lexeme
	case *ast.SetExpr:
		return ExprString(e.Object) + "." + e.Name.Lexeme + " " + e.Attrs().Token.Lexeme + " " + ExprString(e.Value)
	case *ast.SuperExpr:
		return "super." + e.Name.Lexeme
	case *ast.TernaryExpr:
		return ExprString(e.Cond) + " ? " + ExprString(e.Middle) + " : " + ExprString(e.Right)
	case *ast.ThisExpr:
		return "this"
	case *ast.TupleExpr:
		elems := make([]string, len(e.Elements))
		for i, elem := range e.Elements {
			elems[i] = ExprString(elem.Value)
		}
		return "{" + strings.Join(elems, ", ") + "}"
	case *ast.UnaryExpr:
		if e.Postfix {
			return ExprString(e.Right) + e.Oper.Lexeme
		}
		if e.Oper.Type == lexer.KwNot {
			return "not " + ExprString(e.Right)
		}
		return e.Oper.Lexeme + ExprString(e.Right)
	case *ast.VariableExpr:
		return e.Name.Lexeme
	default:
		return "<?>"
	}
}

func literalString(v ast.LiteralValue) string {
	switch v.Kind {
	case ast.LitInt:
		return strconv.FormatInt(int64(v.Int), 10)
	case ast.LitFloat:
		s := strconv.FormatFloat(v.Float, 'g', -1, 64)
		if !strings.ContainsAny(s, ".eE") {
			s += ".0"
		}
		return s
	case ast.LitString:
		return strconv.Quote(v.Str)
	case ast.LitBool:
		if v.Bool {
			return "true"
		}
		return "false"
	default:
		return "null"
	}
}
