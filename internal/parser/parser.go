// Package parser implements the recursive-descent / Pratt parser that
// turns nyx tokens into the untyped AST. Imports are resolved at parse
// time through an ImportResolver supplied by the module manager; parse
// errors synchronize to the next statement boundary so one pass surfaces
// as many problems as possible.
package parser

import (
	"fmt"

	"github.com/cwbudde/go-nyx/internal/ast"
	"github.com/cwbudde/go-nyx/internal/errors"
	"github.com/cwbudde/go-nyx/internal/lexer"
)

// precedence levels, lowest first.
type precedence int

const (
	precNone precedence = iota
	precComma
	precAssignment
	precTernary
	precLogicOr
	precLogicAnd
	precBitOr
	precBitXor
	precBitAnd
	precEquality
	precOrdering
	precRange
	precShift
	precSum
	precProduct
	precUnary
	precCall
	precPrimary
)

// ImportResolver resolves an import path into a stable module index,
// parsing the imported module first if necessary. depth is the import
// depth of the module containing the import statement.
type ImportResolver interface {
	ResolveImport(path string, depth int) (int, error)
}

type prefixParseFn func(canAssign bool) ast.Expr
type infixParseFn func(canAssign bool, left ast.Expr) ast.Expr

type parseRule struct {
	prefix prefixParseFn
	infix  infixParseFn
	prec   precedence
}

// parseBail unwinds to the nearest statement boundary after a reported
// parse error.
type parseBail struct{}

// Parser parses one module's source.
type Parser struct {
	lx      *lexer.Lexer
	logger  *errors.Logger
	imports ImportResolver
	module  *ast.Module
	modSrc  *errors.ModuleSource
	depth   int

	current lexer.Token
	next    lexer.Token

	rules map[lexer.TokenType]parseRule

	inClass    bool
	inLoop     bool
	inFunction bool
	inSwitch   bool

	keepComments bool
}

// Option configures a Parser.
type Option func(*Parser)

// KeepComments makes the parser emit CommentStmt nodes (the lexer must
// have been constructed with lexer.KeepComments as well).
func KeepComments() Option {
	return func(p *Parser) { p.keepComments = true }
}

// New creates a parser for a module at the given import depth.
func New(lx *lexer.Lexer, module *ast.Module, logger *errors.Logger, imports ImportResolver, depth int, opts ...Option) *Parser {
	p := &Parser{
		lx:      lx,
		logger:  logger,
		imports: imports,
		module:  module,
		depth:   depth,
	}
	if module != nil {
		p.modSrc = &errors.ModuleSource{Name: module.Name, Source: module.Source}
	}
	for _, opt := range opts {
		opt(p)
	}
	p.setupRules()
	// Prime the lookahead; current stays empty until the first advance.
	p.next = p.lx.NextToken()
	return p
}

func (p *Parser) setupRules() {
	p.rules = map[lexer.TokenType]parseRule{
		lexer.LeftParen:    {prefix: p.grouping, infix: p.call, prec: precCall},
		lexer.LeftBracket:  {prefix: p.list, infix: p.index, prec: precCall},
		lexer.LeftBrace:    {prefix: p.tuple},
		lexer.Dot:          {infix: p.dot, prec: precCall},
		lexer.ColonColon:   {infix: p.scopeAccess, prec: precCall},
		lexer.Comma:        {infix: p.comma, prec: precComma},
		lexer.Question:     {infix: p.ternary, prec: precTernary},
		lexer.Minus:        {prefix: p.unary, infix: p.binary, prec: precSum},
		lexer.Plus:         {infix: p.binary, prec: precSum},
		lexer.Star:         {infix: p.binary, prec: precProduct},
		lexer.Slash:        {infix: p.binary, prec: precProduct},
		lexer.Percent:      {infix: p.binary, prec: precProduct},
		lexer.LeftShift:    {infix: p.binary, prec: precShift},
		lexer.RightShift:   {infix: p.binary, prec: precShift},
		lexer.DotDot:       {infix: p.binary, prec: precRange},
		lexer.DotDotEqual:  {infix: p.binary, prec: precRange},
		lexer.BitAnd:       {infix: p.binary, prec: precBitAnd},
		lexer.BitOr:        {infix: p.binary, prec: precBitOr},
		lexer.BitXor:       {infix: p.binary, prec: precBitXor},
		lexer.Tilde:        {prefix: p.unary},
		lexer.Bang:         {prefix: p.unary},
		lexer.KwNot:        {prefix: p.unary},
		lexer.PlusPlus:     {prefix: p.unary, infix: p.postfix, prec: precCall},
		lexer.MinusMinus:   {prefix: p.unary, infix: p.postfix, prec: precCall},
		lexer.EqualEqual:   {infix: p.binary, prec: precEquality},
		lexer.BangEqual:    {infix: p.binary, prec: precEquality},
		lexer.Greater:      {infix: p.binary, prec: precOrdering},
		lexer.GreaterEqual: {infix: p.binary, prec: precOrdering},
		lexer.Less:         {infix: p.binary, prec: precOrdering},
		lexer.LessEqual:    {infix: p.binary, prec: precOrdering},
		lexer.AmpAmp:       {infix: p.logicalAnd, prec: precLogicAnd},
		lexer.KwAnd:        {infix: p.logicalAnd, prec: precLogicAnd},
		lexer.PipePipe:     {infix: p.logicalOr, prec: precLogicOr},
		lexer.KwOr:         {infix: p.logicalOr, prec: precLogicOr},
		lexer.Identifier:   {prefix: p.variable},
		lexer.IntValue:     {prefix: p.literal},
		lexer.FloatValue:   {prefix: p.literal},
		lexer.StringValue:  {prefix: p.literal},
		lexer.KwTrue:       {prefix: p.literal},
		lexer.KwFalse:      {prefix: p.literal},
		lexer.KwNull:       {prefix: p.literal},
		lexer.KwThis:       {prefix: p.thisExpr},
		lexer.KwSuper:      {prefix: p.superExpr},
		lexer.KwMove:       {prefix: p.move},
	}
}

func (p *Parser) ruleFor(typ lexer.TokenType) parseRule {
	return p.rules[typ]
}

// Parse parses the whole module, filling module.Statements and the
// declaration tables. It never returns a partial statement: statements
// that fail to parse are dropped after error recovery.
func (p *Parser) Parse() []ast.Stmt {
	var stmts []ast.Stmt
	for !p.isAtEnd() {
		if stmt := p.declarationSafe(); stmt != nil {
			stmts = append(stmts, stmt)
		}
	}
	if p.module != nil {
		p.module.Statements = stmts
	}
	return stmts
}

// declarationSafe parses one declaration, recovering at statement
// boundaries on parse errors.
func (p *Parser) declarationSafe() (stmt ast.Stmt) {
	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(parseBail); !ok {
				panic(r)
			}
			p.synchronize()
			stmt = nil
		}
	}()
	return p.declaration()
}

func (p *Parser) advance() lexer.Token {
	p.current = p.next
	p.next = p.lx.NextToken()
	return p.current
}

func (p *Parser) peek() lexer.Token {
	return p.next
}

func (p *Parser) check(typ lexer.TokenType) bool {
	return p.next.Type == typ
}

func (p *Parser) match(types ...lexer.TokenType) bool {
	for _, typ := range types {
		if p.next.Type == typ {
			p.advance()
			return true
		}
	}
	return false
}

func (p *Parser) consume(msg string, types ...lexer.TokenType) lexer.Token {
	if p.match(types...) {
		return p.current
	}
	p.errorAt(msg, p.next)
	panic(parseBail{})
}

func (p *Parser) isAtEnd() bool {
	return p.next.Type == lexer.EndOfFile
}

func (p *Parser) errorAt(msg string, where lexer.Token) {
	p.logger.Error(p.modSrc, msg, where)
}

func (p *Parser) warningAt(msg string, where lexer.Token) {
	p.logger.Warning(p.modSrc, msg, where)
}

// synchronize skips tokens until a likely statement boundary.
func (p *Parser) synchronize() {
	for !p.isAtEnd() {
		if p.current.Type == lexer.Semicolon {
			return
		}
		switch p.next.Type {
		case lexer.KwClass, lexer.KwFn, lexer.KwVar, lexer.KwConst, lexer.KwRef,
			lexer.KwFor, lexer.KwIf, lexer.KwWhile, lexer.KwReturn, lexer.KwSwitch,
			lexer.KwImport, lexer.KwType, lexer.RightBrace:
			return
		}
		p.advance()
	}
}

func (p *Parser) resolveImportPath(path lexer.Token) int {
	// Without an import resolver (formatter mode, single-module tests)
	// the statement is kept but not bound.
	if p.imports == nil {
		return -1
	}
	index, err := p.imports.ResolveImport(path.Lexeme, p.depth)
	if err != nil {
		p.errorAt(fmt.Sprintf("cannot import %q: %v", path.Lexeme, err), path)
		return -1
	}
	if p.module != nil {
		p.module.Imported = append(p.module.Imported, index)
	}
	return index
}
