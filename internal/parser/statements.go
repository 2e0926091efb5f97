package parser

import (
	"github.com/cwbudde/go-nyx/internal/ast"
	"github.com/cwbudde/go-nyx/internal/lexer"
)

func (p *Parser) declaration() ast.Stmt {
	switch {
	case p.match(lexer.SingleLineComment):
		return &ast.CommentStmt{Text: p.current}
	case p.match(lexer.MultiLineComment):
		return &ast.CommentStmt{Text: p.current, Multiline: true}
	case p.match(lexer.KwClass):
		return p.classDeclaration()
	case p.match(lexer.KwFn):
		return p.functionDeclaration(nil)
	case p.match(lexer.KwImport):
		return p.importStatement()
	case p.match(lexer.KwType):
		return p.typeDeclaration()
	case p.match(lexer.KwVar, lexer.KwConst, lexer.KwRef):
		return p.variableDeclaration()
	default:
		return p.statement()
	}
}

func (p *Parser) classDeclaration() ast.Stmt {
	name := p.consume("expected class name after 'class'", lexer.Identifier)
	p.consume("expected '{' before class body", lexer.LeftBrace)

	wasInClass := p.inClass
	p.inClass = true
	defer func() { p.inClass = wasInClass }()

	class := &ast.ClassStmt{
		Name:      name,
		MemberMap: make(map[string]int),
		MethodMap: make(map[string]int),
	}
	if p.module != nil {
		class.ModulePath = p.module.Path
	}

	for !p.check(lexer.RightBrace) && !p.isAtEnd() {
		visibility := ast.VisibilityPublic
		switch {
		case p.match(lexer.KwPublic):
			visibility = ast.VisibilityPublic
		case p.match(lexer.KwProtected):
			visibility = ast.VisibilityProtected
		case p.match(lexer.KwPrivate):
			visibility = ast.VisibilityPrivate
		default:
			p.errorAt("expected 'public', 'protected' or 'private' before class member", p.next)
			panic(parseBail{})
		}

		switch {
		case p.match(lexer.KwFn):
			fn := p.methodDeclaration(class)
			if _, exists := class.MethodMap[fn.Name.Lexeme]; exists {
				p.errorAt("duplicate method '"+fn.Name.Lexeme+"'", fn.Name)
			}
			class.MethodMap[fn.Name.Lexeme] = len(class.Methods)
			class.Methods = append(class.Methods, &ast.ClassMethod{Fn: fn, Visibility: visibility})
			if fn.Name.Lexeme == name.Lexeme {
				class.Ctor = fn
			} else if fn.Name.Lexeme == "~"+name.Lexeme {
				class.Dtor = fn
			}
		case p.match(lexer.KwVar, lexer.KwConst):
			member, ok := p.variableDeclaration().(*ast.VarStmt)
			if !ok {
				p.errorAt("class members cannot be destructuring declarations", p.current)
				panic(parseBail{})
			}
			if _, exists := class.MemberMap[member.Name.Lexeme]; exists {
				p.errorAt("duplicate member '"+member.Name.Lexeme+"'", member.Name)
			}
			class.MemberMap[member.Name.Lexeme] = len(class.Members)
			class.Members = append(class.Members, &ast.ClassMember{Var: member, Visibility: visibility})
		default:
			p.errorAt("expected method or member declaration in class body", p.next)
			panic(parseBail{})
		}
	}

	p.consume("expected '}' after class body", lexer.RightBrace)

	if p.module != nil {
		p.module.Classes[name.Lexeme] = class
	}
	return class
}

// methodDeclaration parses a method, allowing the `~Class` destructor
// spelling.
func (p *Parser) methodDeclaration(class *ast.ClassStmt) *ast.FunctionStmt {
	var name lexer.Token
	if p.match(lexer.Tilde) {
		tilde := p.current
		ident := p.consume("expected class name after '~'", lexer.Identifier)
		if ident.Lexeme != class.Name.Lexeme {
			p.errorAt("destructor name must match the class name", ident)
		}
		name = lexer.Token{Type: lexer.Identifier, Lexeme: "~" + ident.Lexeme, Line: tilde.Line, Column: tilde.Column}
	} else {
		name = p.consume("expected method name after 'fn'", lexer.Identifier)
	}
	return p.finishFunction(name, class)
}

func (p *Parser) functionDeclaration(class *ast.ClassStmt) ast.Stmt {
	name := p.consume("expected function name after 'fn'", lexer.Identifier)
	fn := p.finishFunction(name, class)
	if p.module != nil && class == nil {
		p.module.Functions[name.Lexeme] = fn
	}
	return fn
}

func (p *Parser) finishFunction(name lexer.Token, class *ast.ClassStmt) *ast.FunctionStmt {
	p.consume("expected '(' after function name", lexer.LeftParen)

	var params []*ast.Param
	if !p.check(lexer.RightParen) {
		for {
			paramName := p.consume("expected parameter name", lexer.Identifier)
			p.consume("expected ':' after parameter name", lexer.Colon)
			paramType := p.parseType()
			params = append(params, &ast.Param{Name: paramName, Type: paramType})
			if !p.match(lexer.Comma) {
				break
			}
		}
	}
	p.consume("expected ')' after parameters", lexer.RightParen)
	p.consume("expected '->' before return type", lexer.Arrow)
	returnType := p.parseType()

	wasInFunction := p.inFunction
	p.inFunction = true
	defer func() { p.inFunction = wasInFunction }()

	p.consume("expected '{' before function body", lexer.LeftBrace)
	body := p.blockStatement().(*ast.BlockStmt)

	return &ast.FunctionStmt{
		Name:       name,
		ReturnType: returnType,
		Params:     params,
		Body:       body,
		Class:      class,
	}
}

func (p *Parser) importStatement() ast.Stmt {
	keyword := p.current
	path := p.consume("expected module path string after 'import'", lexer.StringValue)
	p.consume("expected ';' after import", lexer.Semicolon)
	index := p.resolveImportPath(path)
	return &ast.ImportStmt{Keyword: keyword, Path: path, ModuleIndex: index}
}

func (p *Parser) typeDeclaration() ast.Stmt {
	name := p.consume("expected type alias name after 'type'", lexer.Identifier)
	p.consume("expected '=' after type alias name", lexer.Equal)
	aliased := p.parseType()
	p.consume("expected ';' after type alias", lexer.Semicolon)
	return &ast.TypeStmt{Name: name, Aliased: aliased}
}

func (p *Parser) variableDeclaration() ast.Stmt {
	keyword := p.current

	if p.match(lexer.LeftBrace) {
		return p.varTupleDeclaration(keyword)
	}

	name := p.consume("expected variable name", lexer.Identifier)

	var typ ast.TypeExpr
	typeless := true
	if p.match(lexer.Colon) {
		typ = p.parseType()
		typeless = false
	}
	p.consume("expected '=' after variable name", lexer.Equal)
	initializer := p.assignment()
	p.consume("expected ';' after variable declaration", lexer.Semicolon)

	if keyword.Type == lexer.KwConst && typ != nil {
		typ.Data().IsConst = true
	}
	if keyword.Type == lexer.KwRef && typ != nil && !typ.Data().IsRef {
		p.errorAt("'ref' declarations require a reference type", name)
	}

	return &ast.VarStmt{
		Keyword:            keyword,
		Name:               name,
		Type:               typ,
		Initializer:        initializer,
		OriginallyTypeless: typeless,
	}
}

func (p *Parser) varTupleDeclaration(keyword lexer.Token) ast.Stmt {
	names := p.identTuple()

	var typ ast.TypeExpr
	typeless := true
	if p.match(lexer.Colon) {
		typ = p.parseType()
		typeless = false
	}
	p.consume("expected '=' after destructuring declaration", lexer.Equal)
	initializer := p.assignment()
	p.consume("expected ';' after variable declaration", lexer.Semicolon)

	return &ast.VarTupleStmt{
		Token:              keyword,
		Names:              names,
		Type:               typ,
		Initializer:        initializer,
		OriginallyTypeless: typeless,
	}
}

// identTuple parses the body of a destructuring target after '{'.
func (p *Parser) identTuple() *ast.IdentTuple {
	tuple := &ast.IdentTuple{}
	for {
		if p.match(lexer.LeftBrace) {
			tuple.Elems = append(tuple.Elems, &ast.IdentTupleElem{Nested: p.identTuple()})
		} else {
			name := p.consume("expected name in destructuring declaration", lexer.Identifier)
			tuple.Elems = append(tuple.Elems, &ast.IdentTupleElem{Name: name})
		}
		if !p.match(lexer.Comma) {
			break
		}
	}
	p.consume("expected '}' after destructuring names", lexer.RightBrace)
	return tuple
}

func (p *Parser) statement() ast.Stmt {
	switch {
	case p.match(lexer.LeftBrace):
		return p.blockStatement()
	case p.match(lexer.KwBreak):
		return p.breakStatement()
	case p.match(lexer.KwContinue):
		return p.continueStatement()
	case p.match(lexer.KwFor):
		return p.forStatement()
	case p.match(lexer.KwIf):
		return p.ifStatement()
	case p.match(lexer.KwReturn):
		return p.returnStatement()
	case p.match(lexer.KwSwitch):
		return p.switchStatement()
	case p.match(lexer.KwWhile):
		return p.whileStatement()
	default:
		return p.expressionStatement()
	}
}

func (p *Parser) blockStatement() ast.Stmt {
	block := &ast.BlockStmt{}
	for !p.check(lexer.RightBrace) && !p.isAtEnd() {
		if stmt := p.declarationSafe(); stmt != nil {
			block.Stmts = append(block.Stmts, stmt)
		}
	}
	p.consume("expected '}' after block", lexer.RightBrace)
	return block
}

func (p *Parser) breakStatement() ast.Stmt {
	keyword := p.current
	if !p.inLoop && !p.inSwitch {
		p.errorAt("cannot use 'break' outside a loop or switch", keyword)
	}
	p.consume("expected ';' after 'break'", lexer.Semicolon)
	return &ast.BreakStmt{Keyword: keyword}
}

func (p *Parser) continueStatement() ast.Stmt {
	keyword := p.current
	if !p.inLoop {
		p.errorAt("cannot use 'continue' outside a loop", keyword)
	}
	p.consume("expected ';' after 'continue'", lexer.Semicolon)
	return &ast.ContinueStmt{Keyword: keyword}
}

func (p *Parser) expressionStatement() ast.Stmt {
	expr := p.expression()
	p.consume("expected ';' after expression", lexer.Semicolon)
	return &ast.ExpressionStmt{Expr: expr}
}

func (p *Parser) forStatement() ast.Stmt {
	keyword := p.current
	p.consume("expected '(' after 'for'", lexer.LeftParen)

	var init ast.Stmt
	switch {
	case p.match(lexer.Semicolon):
		init = nil
	case p.match(lexer.KwVar, lexer.KwConst, lexer.KwRef):
		init = p.variableDeclaration()
	default:
		init = p.expressionStatement()
	}

	var cond ast.Expr
	if !p.check(lexer.Semicolon) {
		cond = p.expression()
	}
	p.consume("expected ';' after loop condition", lexer.Semicolon)

	var increment ast.Stmt
	if !p.check(lexer.RightParen) {
		increment = &ast.ExpressionStmt{Expr: p.expression()}
	}
	p.consume("expected ')' after for clauses", lexer.RightParen)

	wasInLoop := p.inLoop
	p.inLoop = true
	body := p.statement()
	p.inLoop = wasInLoop

	return &ast.ForStmt{Keyword: keyword, Init: init, Cond: cond, Increment: increment, Body: body}
}

func (p *Parser) ifStatement() ast.Stmt {
	keyword := p.current
	p.consume("expected '(' after 'if'", lexer.LeftParen)
	cond := p.expression()
	p.consume("expected ')' after if condition", lexer.RightParen)

	then := p.statement()
	var elseBranch ast.Stmt
	if p.match(lexer.KwElse) {
		elseBranch = p.statement()
	}
	return &ast.IfStmt{Keyword: keyword, Cond: cond, Then: then, Else: elseBranch}
}

func (p *Parser) returnStatement() ast.Stmt {
	keyword := p.current
	if !p.inFunction {
		p.errorAt("cannot return from top-level code", keyword)
	}

	var value ast.Expr
	if !p.check(lexer.Semicolon) {
		value = p.expression()
	}
	p.consume("expected ';' after return statement", lexer.Semicolon)
	return &ast.ReturnStmt{Keyword: keyword, Value: value}
}

func (p *Parser) switchStatement() ast.Stmt {
	keyword := p.current
	p.consume("expected '(' after 'switch'", lexer.LeftParen)
	cond := p.expression()
	p.consume("expected ')' after switch condition", lexer.RightParen)
	p.consume("expected '{' before switch body", lexer.LeftBrace)

	wasInSwitch := p.inSwitch
	p.inSwitch = true
	defer func() { p.inSwitch = wasInSwitch }()

	stmt := &ast.SwitchStmt{Keyword: keyword, Cond: cond}
	for !p.check(lexer.RightBrace) && !p.isAtEnd() {
		switch {
		case p.match(lexer.KwCase):
			value := p.assignment()
			p.consume("expected ':' after case value", lexer.Colon)
			stmt.Cases = append(stmt.Cases, &ast.SwitchCase{Value: value, Body: p.statement()})
		case p.match(lexer.KwDefault):
			if stmt.Default != nil {
				p.errorAt("duplicate 'default' in switch", p.current)
			}
			p.consume("expected ':' after 'default'", lexer.Colon)
			stmt.Default = p.statement()
		default:
			p.errorAt("expected 'case' or 'default' in switch body", p.next)
			panic(parseBail{})
		}
	}
	p.consume("expected '}' after switch body", lexer.RightBrace)
	return stmt
}

func (p *Parser) whileStatement() ast.Stmt {
	keyword := p.current
	p.consume("expected '(' after 'while'", lexer.LeftParen)
	cond := p.expression()
	p.consume("expected ')' after while condition", lexer.RightParen)

	wasInLoop := p.inLoop
	p.inLoop = true
	body := p.statement()
	p.inLoop = wasInLoop

	return &ast.WhileStmt{Keyword: keyword, Cond: cond, Body: body}
}
