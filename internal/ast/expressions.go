package ast

import "github.com/cwbudde/go-nyx/internal/lexer"

// NumericConversion tags a node with the implicit int/float conversion
// the resolver decided on.
type NumericConversion int

const (
	ConvNone NumericConversion = iota
	ConvIntToFloat
	ConvFloatToInt
)

// IdentifierKind is what a resolved name turned out to be.
type IdentifierKind int

const (
	IdentUnresolved IdentifierKind = iota
	IdentLocal
	IdentGlobal
	IdentFunction
	IdentClass
	IdentNative
)

// ScopeAccessKind discriminates what the left side of a `::` access
// resolved to, and with it which of StackSlot / ModuleIndex is
// meaningful on the attribute record.
type ScopeAccessKind int

const (
	ScopeAccessNone ScopeAccessKind = iota
	ScopeAccessModule
	ScopeAccessClass
	ScopeAccessModuleClass
)

// ExprAttrs is the attribute record the resolver synthesizes onto every
// expression: the resolved type, l-valueness, and the binding details of
// resolved names. StackSlot and ModuleIndex are separate named fields;
// ScopeKind says which one a scope access populated.
type ExprAttrs struct {
	Info        TypeExpr
	Token       lexer.Token
	Class       *ClassStmt
	Func        *FunctionStmt
	IsLvalue    bool
	StackSlot   int
	ModuleIndex int
	ScopeKind   ScopeAccessKind
}

// Expr is an expression node.
type Expr interface {
	Attrs() *ExprAttrs
	exprNode()
}

// Argument is an expression in an argument-like position (call argument,
// list/tuple element) together with the copy/conversion decisions the
// resolver made for that position.
type Argument struct {
	Value        Expr
	RequiresCopy bool
	Conversion   NumericConversion
}

type baseExpr struct {
	attrs ExprAttrs
}

func (e *baseExpr) Attrs() *ExprAttrs { return &e.attrs }
func (e *baseExpr) exprNode()         {}

// AssignExpr assigns to a named variable: `x = v`, `x += v`, ...
// The operator token is Attrs().Token.
type AssignExpr struct {
	baseExpr
	Target       lexer.Token
	Value        Expr
	TargetKind   IdentifierKind
	RequiresCopy bool
	Conversion   NumericConversion
}

// BinaryExpr is a binary operator expression; the operator token is
// Attrs().Token. Ranges (`..`, `..=`) are binary expressions too.
type BinaryExpr struct {
	baseExpr
	Left  Expr
	Right Expr
}

// CallExpr calls a function, method, constructor or native.
type CallExpr struct {
	baseExpr
	Function Expr
	Args     []*Argument
	IsNative bool
}

// CommaExpr evaluates every operand, yielding the last.
type CommaExpr struct {
	baseExpr
	Exprs []Expr
}

// GetExpr reads a class member (`obj.name`) or tuple position (`tup.0`).
type GetExpr struct {
	baseExpr
	Object Expr
	Name   lexer.Token
}

// GroupingExpr is a parenthesized expression.
type GroupingExpr struct {
	baseExpr
	Inner Expr
}

// IndexExpr indexes a list or string.
type IndexExpr struct {
	baseExpr
	Object Expr
	Index  Expr
}

// ListExpr is a list literal; Type is filled by the resolver (inference
// may retroactively mark it a reference list).
type ListExpr struct {
	baseExpr
	Bracket  lexer.Token
	Elements []*Argument
	Type     *ListType
}

// ListAssignExpr assigns through an index: `xs[i] = v`, `xs[i] += v`.
type ListAssignExpr struct {
	baseExpr
	List         *IndexExpr
	Value        Expr
	RequiresCopy bool
	Conversion   NumericConversion
}

// ListRepeatExpr is `[elem; count]`.
type ListRepeatExpr struct {
	baseExpr
	Bracket  lexer.Token
	Element  *Argument
	Quantity *Argument
	Type     *ListType
}

// LiteralKind tags LiteralValue.
type LiteralKind int

const (
	LitInt LiteralKind = iota
	LitFloat
	LitString
	LitBool
	LitNull
)

// LiteralValue is the payload of a literal expression.
type LiteralValue struct {
	Kind  LiteralKind
	Int   int32
	Float float64
	Str   string
	Bool  bool
}

// LiteralExpr is a literal; the source token is Attrs().Token.
type LiteralExpr struct {
	baseExpr
	Value LiteralValue
}

// LogicalExpr is a short-circuiting `and` / `or`.
type LogicalExpr struct {
	baseExpr
	Left  Expr
	Right Expr
}

// MoveExpr transfers ownership out of a variable or element.
type MoveExpr struct {
	baseExpr
	Inner Expr
}

// ScopeAccessExpr is `scope::name`.
type ScopeAccessExpr struct {
	baseExpr
	Scope Expr
	Name  lexer.Token
}

// ScopeNameExpr is the leftmost name of a scope access; the resolver
// decides whether it names a module or a class.
type ScopeNameExpr struct {
	baseExpr
	Name       lexer.Token
	ModulePath string
}

// SetExpr writes a class member or tuple position: `obj.name = v`.
type SetExpr struct {
	baseExpr
	Object       Expr
	Name         lexer.Token
	Value        Expr
	RequiresCopy bool
	Conversion   NumericConversion
}

// SuperExpr is `super.name`, a method access on the superclass.
type SuperExpr struct {
	baseExpr
	Keyword lexer.Token
	Name    lexer.Token
}

// TernaryExpr is `cond ? middle : right`.
type TernaryExpr struct {
	baseExpr
	Cond   Expr
	Middle Expr
	Right  Expr
}

// ThisExpr is `this`, valid inside constructors and destructors.
type ThisExpr struct {
	baseExpr
	Keyword lexer.Token
}

// TupleExpr is a tuple literal `{a, b, c}`.
type TupleExpr struct {
	baseExpr
	Brace    lexer.Token
	Elements []*Argument
	Type     *TupleType
}

// UnaryExpr is a prefix operator expression; ++/-- also come in a
// postfix form that yields the value before the step.
type UnaryExpr struct {
	baseExpr
	Oper    lexer.Token
	Right   Expr
	Postfix bool
}

// VariableExpr is a bare name; Kind is patched by the resolver.
type VariableExpr struct {
	baseExpr
	Name lexer.Token
	Kind IdentifierKind
}
