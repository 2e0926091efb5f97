// Package ast defines the nyx syntax tree: expressions, statements and
// type nodes, together with the attribute records the type resolver
// fills in. Ownership is plain Go pointers; back-references (class to
// constructor, return statement to enclosing function, user-defined type
// to resolved class) are ordinary pointer fields.
package ast

import "github.com/cwbudde/go-nyx/internal/lexer"

// Type is the primitive kind of a resolved type.
type Type int

const (
	TypeBool Type = iota
	TypeInt
	TypeFloat
	TypeString
	TypeClass
	TypeList
	TypeTuple
	TypeNull
	TypeFunction
	TypeModule
	TypeTypeof
)

var typeNames = [...]string{
	TypeBool:     "bool",
	TypeInt:      "int",
	TypeFloat:    "float",
	TypeString:   "string",
	TypeClass:    "class",
	TypeList:     "list",
	TypeTuple:    "tuple",
	TypeNull:     "null",
	TypeFunction: "function",
	TypeModule:   "module",
	TypeTypeof:   "typeof",
}

func (t Type) String() string {
	if int(t) < len(typeNames) {
		return typeNames[t]
	}
	return "unknown"
}

// TypeData carries the primitive kind and the const/ref qualifiers every
// type node has. IsRef marks a binding to another storage location; a
// ref never owns what it points at.
type TypeData struct {
	Kind    Type
	IsConst bool
	IsRef   bool
}

// TypeExpr is a type node in the AST.
type TypeExpr interface {
	Data() *TypeData
	typeNode()
}

// PrimitiveType is one of bool/int/float/string/null/function/module.
type PrimitiveType struct {
	TypeData
}

// UserDefinedType names a class; Class is patched in by the resolver.
type UserDefinedType struct {
	TypeData
	Name  lexer.Token
	Class *ClassStmt
}

// ListType is a homogeneous list of Contained elements.
type ListType struct {
	TypeData
	Contained TypeExpr
}

// TupleType is an ordered, fixed-arity sequence of types.
type TupleType struct {
	TypeData
	Types []TypeExpr
}

// TypeofType stands for the type of Expr; the resolver replaces it with
// the resolved type during checking.
type TypeofType struct {
	TypeData
	Expr Expr
}

func (t *PrimitiveType) Data() *TypeData   { return &t.TypeData }
func (t *UserDefinedType) Data() *TypeData { return &t.TypeData }
func (t *ListType) Data() *TypeData        { return &t.TypeData }
func (t *TupleType) Data() *TypeData       { return &t.TypeData }
func (t *TypeofType) Data() *TypeData      { return &t.TypeData }

func (*PrimitiveType) typeNode()   {}
func (*UserDefinedType) typeNode() {}
func (*ListType) typeNode()        {}
func (*TupleType) typeNode()       {}
func (*TypeofType) typeNode()      {}

// NewPrimitive builds a primitive type node.
func NewPrimitive(kind Type, isConst, isRef bool) *PrimitiveType {
	return &PrimitiveType{TypeData: TypeData{Kind: kind, IsConst: isConst, IsRef: isRef}}
}

// IsNontrivial reports whether values of the kind own heap storage at
// runtime (lists, tuples and class instances are all member-lists).
func IsNontrivial(kind Type) bool {
	return kind == TypeList || kind == TypeTuple || kind == TypeClass
}

// TypeExprString renders a type the way diagnostics print it.
func TypeExprString(t TypeExpr) string {
	return typeString(t, true)
}

func typeString(t TypeExpr, quals bool) string {
	if t == nil {
		return "<nil>"
	}
	prefix := ""
	if quals {
		if t.Data().IsConst {
			prefix += "const "
		}
		if t.Data().IsRef {
			prefix += "ref "
		}
	}
	switch typ := t.(type) {
	case *PrimitiveType:
		return prefix + typ.Kind.String()
	case *UserDefinedType:
		return prefix + typ.Name.Lexeme
	case *ListType:
		return prefix + "[" + typeString(typ.Contained, quals) + "]"
	case *TupleType:
		out := prefix + "{"
		for i, elem := range typ.Types {
			if i > 0 {
				out += ", "
			}
			out += typeString(elem, quals)
		}
		return out + "}"
	case *TypeofType:
		return prefix + "typeof(...)"
	default:
		return prefix + "<unknown>"
	}
}

// ShortTypeSignature renders a type as a compact signature usable inside
// a mangled function name, ignoring const qualifiers.
func ShortTypeSignature(t TypeExpr) string {
	if t == nil {
		return "_"
	}
	ref := ""
	if t.Data().IsRef {
		ref = "r"
	}
	switch typ := t.(type) {
	case *PrimitiveType:
		return ref + typ.Kind.String()
	case *UserDefinedType:
		return ref + typ.Name.Lexeme
	case *ListType:
		return ref + "l<" + ShortTypeSignature(typ.Contained) + ">"
	case *TupleType:
		out := ref + "t<"
		for i, elem := range typ.Types {
			if i > 0 {
				out += ","
			}
			out += ShortTypeSignature(elem)
		}
		return out + ">"
	default:
		return ref + "_"
	}
}
