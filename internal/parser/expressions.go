package parser

import (
	"strconv"

	"github.com/cwbudde/go-nyx/internal/ast"
	"github.com/cwbudde/go-nyx/internal/lexer"
)

// parsePrecedence parses an expression at or above the given level.
func (p *Parser) parsePrecedence(prec precedence) ast.Expr {
	p.advance()
	rule := p.ruleFor(p.current.Type)
	if rule.prefix == nil {
		p.errorAt("expected an expression", p.current)
		panic(parseBail{})
	}

	canAssign := prec <= precAssignment
	left := rule.prefix(canAssign)

	for prec <= p.ruleFor(p.next.Type).prec {
		p.advance()
		infix := p.ruleFor(p.current.Type).infix
		if infix == nil {
			break
		}
		left = infix(canAssign, left)
	}

	if canAssign && p.match(lexer.Equal) {
		p.errorAt("invalid assignment target", p.current)
		panic(parseBail{})
	}

	return left
}

// expression parses a full expression including comma expressions.
func (p *Parser) expression() ast.Expr {
	return p.parsePrecedence(precComma)
}

// assignment parses an expression without crossing a comma.
func (p *Parser) assignment() ast.Expr {
	return p.parsePrecedence(precAssignment)
}

func (p *Parser) literal(bool) ast.Expr {
	tok := p.current
	expr := &ast.LiteralExpr{}
	expr.Attrs().Token = tok
	switch tok.Type {
	case lexer.IntValue:
		value, err := strconv.ParseInt(tok.Lexeme, 10, 32)
		if err != nil {
			p.errorAt("integer literal out of range", tok)
			value = 0
		}
		expr.Value = ast.LiteralValue{Kind: ast.LitInt, Int: int32(value)}
	case lexer.FloatValue:
		value, err := strconv.ParseFloat(tok.Lexeme, 64)
		if err != nil {
			p.errorAt("malformed float literal", tok)
		}
		expr.Value = ast.LiteralValue{Kind: ast.LitFloat, Float: value}
	case lexer.StringValue:
		expr.Value = ast.LiteralValue{Kind: ast.LitString, Str: tok.Lexeme}
	case lexer.KwTrue:
		expr.Value = ast.LiteralValue{Kind: ast.LitBool, Bool: true}
	case lexer.KwFalse:
		expr.Value = ast.LiteralValue{Kind: ast.LitBool, Bool: false}
	case lexer.KwNull:
		expr.Value = ast.LiteralValue{Kind: ast.LitNull}
	}
	return expr
}

func (p *Parser) variable(canAssign bool) ast.Expr {
	name := p.current

	if canAssign && p.match(lexer.Equal, lexer.PlusEqual, lexer.MinusEqual, lexer.StarEqual, lexer.SlashEqual) {
		oper := p.current
		value := p.assignment()
		expr := &ast.AssignExpr{Target: name, Value: value}
		expr.Attrs().Token = oper
		return expr
	}

	expr := &ast.VariableExpr{Name: name}
	expr.Attrs().Token = name
	return expr
}

func (p *Parser) grouping(bool) ast.Expr {
	paren := p.current
	inner := p.expression()
	p.consume("expected ')' after expression", lexer.RightParen)
	expr := &ast.GroupingExpr{Inner: inner}
	expr.Attrs().Token = paren
	return expr
}

func (p *Parser) unary(bool) ast.Expr {
	oper := p.current
	right := p.parsePrecedence(precUnary)
	expr := &ast.UnaryExpr{Oper: oper, Right: right}
	expr.Attrs().Token = oper
	return expr
}

func (p *Parser) postfix(_ bool, left ast.Expr) ast.Expr {
	oper := p.current
	expr := &ast.UnaryExpr{Oper: oper, Right: left, Postfix: true}
	expr.Attrs().Token = oper
	return expr
}

func (p *Parser) binary(_ bool, left ast.Expr) ast.Expr {
	oper := p.current
	rule := p.ruleFor(oper.Type)
	right := p.parsePrecedence(rule.prec + 1)

	// Fold literal arithmetic eagerly; anything non-literal is left to
	// the emitter untouched.
	if folded, ok := foldBinary(left, oper, right); ok {
		return folded
	}

	expr := &ast.BinaryExpr{Left: left, Right: right}
	expr.Attrs().Token = oper
	return expr
}

func (p *Parser) logicalAnd(_ bool, left ast.Expr) ast.Expr {
	oper := p.current
	right := p.parsePrecedence(precLogicAnd + 1)
	expr := &ast.LogicalExpr{Left: left, Right: right}
	expr.Attrs().Token = oper
	return expr
}

func (p *Parser) logicalOr(_ bool, left ast.Expr) ast.Expr {
	oper := p.current
	right := p.parsePrecedence(precLogicOr + 1)
	expr := &ast.LogicalExpr{Left: left, Right: right}
	expr.Attrs().Token = oper
	return expr
}

func (p *Parser) ternary(_ bool, cond ast.Expr) ast.Expr {
	question := p.current
	middle := p.parsePrecedence(precLogicOr)
	p.consume("expected ':' in ternary expression", lexer.Colon)
	right := p.parsePrecedence(precTernary)
	expr := &ast.TernaryExpr{Cond: cond, Middle: middle, Right: right}
	expr.Attrs().Token = question
	return expr
}

func (p *Parser) comma(_ bool, left ast.Expr) ast.Expr {
	exprs := []ast.Expr{left}
	for {
		exprs = append(exprs, p.assignment())
		if !p.match(lexer.Comma) {
			break
		}
	}
	expr := &ast.CommaExpr{Exprs: exprs}
	expr.Attrs().Token = p.current
	return expr
}

func (p *Parser) call(_ bool, function ast.Expr) ast.Expr {
	paren := p.current
	var args []*ast.Argument
	if !p.check(lexer.RightParen) {
		for {
			args = append(args, &ast.Argument{Value: p.assignment()})
			if !p.match(lexer.Comma) {
				break
			}
		}
	}
	p.consume("expected ')' after call arguments", lexer.RightParen)
	expr := &ast.CallExpr{Function: function, Args: args}
	expr.Attrs().Token = paren
	return expr
}

func (p *Parser) index(canAssign bool, object ast.Expr) ast.Expr {
	bracket := p.current
	idx := p.expression()
	p.consume("expected ']' after index", lexer.RightBracket)

	indexExpr := &ast.IndexExpr{Object: object, Index: idx}
	indexExpr.Attrs().Token = bracket

	if canAssign && p.match(lexer.Equal, lexer.PlusEqual, lexer.MinusEqual, lexer.StarEqual, lexer.SlashEqual) {
		oper := p.current
		value := p.assignment()
		assign := &ast.ListAssignExpr{List: indexExpr, Value: value}
		assign.Attrs().Token = oper
		return assign
	}
	return indexExpr
}

func (p *Parser) dot(canAssign bool, object ast.Expr) ast.Expr {
	dotTok := p.current
	name := p.consume("expected member name or tuple position after '.'", lexer.Identifier, lexer.IntValue)

	if canAssign && p.match(lexer.Equal, lexer.PlusEqual, lexer.MinusEqual, lexer.StarEqual, lexer.SlashEqual) {
		oper := p.current
		value := p.assignment()
		expr := &ast.SetExpr{Object: object, Name: name, Value: value}
		expr.Attrs().Token = oper
		return expr
	}

	expr := &ast.GetExpr{Object: object, Name: name}
	expr.Attrs().Token = dotTok
	return expr
}

func (p *Parser) scopeAccess(_ bool, left ast.Expr) ast.Expr {
	colons := p.current
	name := p.consume("expected name after '::'", lexer.Identifier)

	// The leftmost name of a scope chain is a scope name, not a variable.
	if variable, ok := left.(*ast.VariableExpr); ok {
		scopeName := &ast.ScopeNameExpr{Name: variable.Name}
		scopeName.Attrs().Token = variable.Name
		left = scopeName
	}

	expr := &ast.ScopeAccessExpr{Scope: left, Name: name}
	expr.Attrs().Token = colons
	return expr
}

func (p *Parser) list(bool) ast.Expr {
	bracket := p.current

	var elements []*ast.Argument
	if !p.check(lexer.RightBracket) {
		first := p.assignment()
		// `[expr; count]` is a list-repeat expression.
		if p.match(lexer.Semicolon) {
			quantity := p.assignment()
			p.consume("expected ']' after repeat count", lexer.RightBracket)
			expr := &ast.ListRepeatExpr{
				Bracket:  bracket,
				Element:  &ast.Argument{Value: first},
				Quantity: &ast.Argument{Value: quantity},
			}
			expr.Attrs().Token = bracket
			return expr
		}
		elements = append(elements, &ast.Argument{Value: first})
		for p.match(lexer.Comma) {
			elements = append(elements, &ast.Argument{Value: p.assignment()})
		}
	}
	p.consume("expected ']' after list elements", lexer.RightBracket)

	expr := &ast.ListExpr{Bracket: bracket, Elements: elements}
	expr.Attrs().Token = bracket
	return expr
}

func (p *Parser) tuple(bool) ast.Expr {
	brace := p.current
	var elements []*ast.Argument
	if !p.check(lexer.RightBrace) {
		for {
			elements = append(elements, &ast.Argument{Value: p.assignment()})
			if !p.match(lexer.Comma) {
				break
			}
		}
	}
	p.consume("expected '}' after tuple elements", lexer.RightBrace)

	expr := &ast.TupleExpr{Brace: brace, Elements: elements}
	expr.Attrs().Token = brace
	return expr
}

func (p *Parser) thisExpr(bool) ast.Expr {
	keyword := p.current
	if !p.inClass {
		p.errorAt("cannot use 'this' outside a class", keyword)
	}
	expr := &ast.ThisExpr{Keyword: keyword}
	expr.Attrs().Token = keyword
	return expr
}

func (p *Parser) superExpr(bool) ast.Expr {
	keyword := p.current
	if !p.inClass {
		p.errorAt("cannot use 'super' outside a class", keyword)
	}
	p.consume("expected '.' after 'super'", lexer.Dot)
	name := p.consume("expected method name after 'super.'", lexer.Identifier)
	expr := &ast.SuperExpr{Keyword: keyword, Name: name}
	expr.Attrs().Token = keyword
	return expr
}

func (p *Parser) move(bool) ast.Expr {
	keyword := p.current
	inner := p.parsePrecedence(precUnary)
	expr := &ast.MoveExpr{Inner: inner}
	expr.Attrs().Token = keyword
	return expr
}

// foldBinary constant-folds arithmetic and comparison over literal
// operands.
func foldBinary(left ast.Expr, oper lexer.Token, right ast.Expr) (ast.Expr, bool) {
	l, ok := left.(*ast.LiteralExpr)
	if !ok {
		return nil, false
	}
	r, ok := right.(*ast.LiteralExpr)
	if !ok {
		return nil, false
	}

	result := &ast.LiteralExpr{}
	result.Attrs().Token = oper

	if l.Value.Kind == ast.LitInt && r.Value.Kind == ast.LitInt {
		a, b := l.Value.Int, r.Value.Int
		switch oper.Type {
		case lexer.Plus:
			result.Value = ast.LiteralValue{Kind: ast.LitInt, Int: a + b}
		case lexer.Minus:
			result.Value = ast.LiteralValue{Kind: ast.LitInt, Int: a - b}
		case lexer.Star:
			result.Value = ast.LiteralValue{Kind: ast.LitInt, Int: a * b}
		case lexer.Slash:
			if b == 0 {
				return nil, false
			}
			result.Value = ast.LiteralValue{Kind: ast.LitInt, Int: a / b}
		case lexer.Percent:
			if b == 0 {
				return nil, false
			}
			result.Value = ast.LiteralValue{Kind: ast.LitInt, Int: a % b}
		default:
			return nil, false
		}
		return result, true
	}

	if (l.Value.Kind == ast.LitFloat || l.Value.Kind == ast.LitInt) &&
		(r.Value.Kind == ast.LitFloat || r.Value.Kind == ast.LitInt) &&
		(l.Value.Kind == ast.LitFloat || r.Value.Kind == ast.LitFloat) {
		a, b := literalAsFloat(l.Value), literalAsFloat(r.Value)
		switch oper.Type {
		case lexer.Plus:
			result.Value = ast.LiteralValue{Kind: ast.LitFloat, Float: a + b}
		case lexer.Minus:
			result.Value = ast.LiteralValue{Kind: ast.LitFloat, Float: a - b}
		case lexer.Star:
			result.Value = ast.LiteralValue{Kind: ast.LitFloat, Float: a * b}
		case lexer.Slash:
			if b == 0 {
				return nil, false
			}
			result.Value = ast.LiteralValue{Kind: ast.LitFloat, Float: a / b}
		default:
			return nil, false
		}
		return result, true
	}

	if l.Value.Kind == ast.LitString && r.Value.Kind == ast.LitString && oper.Type == lexer.Plus {
		result.Value = ast.LiteralValue{Kind: ast.LitString, Str: l.Value.Str + r.Value.Str}
		return result, true
	}

	return nil, false
}

func literalAsFloat(v ast.LiteralValue) float64 {
	if v.Kind == ast.LitInt {
		return float64(v.Int)
	}
	return v.Float
}
