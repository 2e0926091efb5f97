package parser

import (
	"github.com/cwbudde/go-nyx/internal/ast"
	"github.com/cwbudde/go-nyx/internal/lexer"
)

// parseType parses a type: optional const/ref qualifiers followed by a
// primitive name, a class name, a list type, a tuple type or typeof.
func (p *Parser) parseType() ast.TypeExpr {
	isConst := p.match(lexer.KwConst)
	isRef := p.match(lexer.KwRef)

	switch {
	case p.match(lexer.KwInt):
		return ast.NewPrimitive(ast.TypeInt, isConst, isRef)
	case p.match(lexer.KwFloat):
		return ast.NewPrimitive(ast.TypeFloat, isConst, isRef)
	case p.match(lexer.KwString):
		return ast.NewPrimitive(ast.TypeString, isConst, isRef)
	case p.match(lexer.KwBool):
		return ast.NewPrimitive(ast.TypeBool, isConst, isRef)
	case p.match(lexer.KwNull):
		if isRef {
			p.errorAt("cannot form a reference to 'null'", p.current)
		}
		return ast.NewPrimitive(ast.TypeNull, isConst, false)
	case p.match(lexer.LeftBracket):
		return p.listType(isConst, isRef)
	case p.match(lexer.LeftBrace):
		return p.tupleType(isConst, isRef)
	case p.match(lexer.KwTypeof):
		return p.typeofType(isConst, isRef)
	case p.match(lexer.Identifier):
		name := p.current
		return &ast.UserDefinedType{
			TypeData: ast.TypeData{Kind: ast.TypeClass, IsConst: isConst, IsRef: isRef},
			Name:     name,
		}
	default:
		p.errorAt("expected a type", p.next)
		panic(parseBail{})
	}
}

func (p *Parser) listType(isConst, isRef bool) ast.TypeExpr {
	contained := p.parseType()
	p.consume("expected ']' after list element type", lexer.RightBracket)
	// The list's qualifiers propagate into the element type at
	// construction.
	if isConst {
		contained.Data().IsConst = true
	}
	return &ast.ListType{
		TypeData:  ast.TypeData{Kind: ast.TypeList, IsConst: isConst, IsRef: isRef},
		Contained: contained,
	}
}

func (p *Parser) tupleType(isConst, isRef bool) ast.TypeExpr {
	var types []ast.TypeExpr
	for {
		types = append(types, p.parseType())
		if !p.match(lexer.Comma) {
			break
		}
	}
	p.consume("expected '}' after tuple element types", lexer.RightBrace)
	if isConst {
		for _, t := range types {
			t.Data().IsConst = true
		}
	}
	return &ast.TupleType{
		TypeData: ast.TypeData{Kind: ast.TypeTuple, IsConst: isConst, IsRef: isRef},
		Types:    types,
	}
}

func (p *Parser) typeofType(isConst, isRef bool) ast.TypeExpr {
	p.consume("expected '(' after 'typeof'", lexer.LeftParen)
	expr := p.expression()
	p.consume("expected ')' after typeof expression", lexer.RightParen)
	return &ast.TypeofType{
		TypeData: ast.TypeData{Kind: ast.TypeTypeof, IsConst: isConst, IsRef: isRef},
		Expr:     expr,
	}
}
