package semantic

import (
	"fmt"

	"github.com/cwbudde/go-nyx/internal/ast"
	"github.com/cwbudde/go-nyx/internal/lexer"
)

// resolveType resolves a type node: alias substitution, class patching,
// typeof evaluation. The returned node may be a replacement for the
// input (typeof, aliases); callers must store it back.
func (r *Resolver) resolveType(t ast.TypeExpr) ast.TypeExpr {
	switch typ := t.(type) {
	case *ast.PrimitiveType:
		return typ
	case *ast.UserDefinedType:
		if aliased, ok := r.aliases[typ.Name.Lexeme]; ok {
			clone := cloneType(aliased)
			clone.Data().IsConst = clone.Data().IsConst || typ.IsConst
			clone.Data().IsRef = clone.Data().IsRef || typ.IsRef
			return clone
		}
		class := r.findClass(typ.Name.Lexeme)
		if class == nil {
			r.errorBail(fmt.Sprintf("unknown type %q", typ.Name.Lexeme), typ.Name)
		}
		typ.Class = class
		return typ
	case *ast.ListType:
		typ.Contained = r.resolveType(typ.Contained)
		return typ
	case *ast.TupleType:
		for i, elem := range typ.Types {
			typ.Types[i] = r.resolveType(elem)
		}
		return typ
	case *ast.TypeofType:
		attrs := r.resolveExpr(typ.Expr)
		clone := cloneType(attrs.Info)
		clone.Data().IsConst = clone.Data().IsConst || typ.IsConst
		clone.Data().IsRef = clone.Data().IsRef || typ.IsRef
		return clone
	default:
		return t
	}
}

// cloneType deep-copies a type node so qualifier edits do not leak into
// shared nodes.
func cloneType(t ast.TypeExpr) ast.TypeExpr {
	switch typ := t.(type) {
	case *ast.PrimitiveType:
		clone := *typ
		return &clone
	case *ast.UserDefinedType:
		clone := *typ
		return &clone
	case *ast.ListType:
		clone := *typ
		clone.Contained = cloneType(typ.Contained)
		return &clone
	case *ast.TupleType:
		clone := *typ
		clone.Types = make([]ast.TypeExpr, len(typ.Types))
		for i, elem := range typ.Types {
			clone.Types[i] = cloneType(elem)
		}
		return &clone
	case *ast.TypeofType:
		clone := *typ
		return &clone
	default:
		return t
	}
}

// stripRef returns a copy of t without the top-level ref qualifier.
func stripRef(t ast.TypeExpr) ast.TypeExpr {
	if t == nil || !t.Data().IsRef {
		return t
	}
	clone := cloneType(t)
	clone.Data().IsRef = false
	return clone
}

// stripQualifiers returns a copy without top-level const/ref.
func stripQualifiers(t ast.TypeExpr) ast.TypeExpr {
	clone := cloneType(t)
	clone.Data().IsRef = false
	clone.Data().IsConst = false
	return clone
}

// equivalentPrimitives reports whether two types have the same shape,
// ignoring const/ref qualifiers at every level.
func equivalentPrimitives(a, b ast.TypeExpr) bool {
	if a == nil || b == nil {
		return false
	}
	if a.Data().Kind != b.Data().Kind {
		return false
	}
	switch at := a.(type) {
	case *ast.ListType:
		return equivalentPrimitives(at.Contained, b.(*ast.ListType).Contained)
	case *ast.TupleType:
		bt := b.(*ast.TupleType)
		if len(at.Types) != len(bt.Types) {
			return false
		}
		for i := range at.Types {
			if !equivalentPrimitives(at.Types[i], bt.Types[i]) {
				return false
			}
		}
		return true
	case *ast.UserDefinedType:
		return at.Name.Lexeme == b.(*ast.UserDefinedType).Name.Lexeme
	default:
		return true
	}
}

// convertibleTo implements the conversion rules. to/from are resolved
// types, fromLvalue says whether the source expression is an l-value,
// and inInitializer selects the reference-binding rules. Implicit
// numeric conversions succeed with a warning; the caller tags the node.
func (r *Resolver) convertibleTo(to, from ast.TypeExpr, fromLvalue bool, where lexer.Token, inInitializer bool) bool {
	if to == nil || from == nil {
		return false
	}

	// Rule 1: binding a reference.
	if to.Data().IsRef && inInitializer {
		if !fromLvalue && !from.Data().IsRef {
			r.error("cannot bind a reference to a value that is not an l-value", where)
			return false
		}
		if from.Data().IsConst && !to.Data().IsConst {
			r.error("cannot bind a non-const reference to a const value", where)
			return false
		}
		return equivalentPrimitives(to, from)
	}

	toKind, fromKind := to.Data().Kind, from.Data().Kind

	// Rule 2: implicit numeric conversion, warned about.
	if toKind == ast.TypeInt && fromKind == ast.TypeFloat {
		r.warning("implicit conversion from float to int truncates", where)
		return true
	}
	if toKind == ast.TypeFloat && fromKind == ast.TypeInt {
		r.warning("implicit conversion from int to float", where)
		return true
	}

	switch toKind {
	case ast.TypeList:
		// Rule 3: lists match on equivalent element types.
		if fromKind != ast.TypeList {
			return false
		}
		return equivalentPrimitives(to.(*ast.ListType).Contained, from.(*ast.ListType).Contained)
	case ast.TypeTuple:
		// Rule 4: tuples match pairwise with outer qualifiers pushed in.
		if fromKind != ast.TypeTuple {
			return false
		}
		toTuple, fromTuple := to.(*ast.TupleType), from.(*ast.TupleType)
		if len(toTuple.Types) != len(fromTuple.Types) {
			return false
		}
		for i := range toTuple.Types {
			toElem := cloneType(toTuple.Types[i])
			toElem.Data().IsConst = toElem.Data().IsConst || toTuple.IsConst
			toElem.Data().IsRef = toElem.Data().IsRef || toTuple.IsRef
			if !r.convertibleTo(toElem, fromTuple.Types[i], fromLvalue, where, inInitializer) {
				return false
			}
		}
		return true
	case ast.TypeClass:
		// Rule 5: class types match on the user-defined name.
		if fromKind != ast.TypeClass {
			return false
		}
		return to.(*ast.UserDefinedType).Name.Lexeme == from.(*ast.UserDefinedType).Name.Lexeme
	default:
		return toKind == fromKind
	}
}

// conversionFor returns the numeric conversion tag for assigning from
// one kind into another.
func conversionFor(to, from ast.TypeExpr) ast.NumericConversion {
	if to == nil || from == nil {
		return ast.ConvNone
	}
	switch {
	case to.Data().Kind == ast.TypeInt && from.Data().Kind == ast.TypeFloat:
		return ast.ConvFloatToInt
	case to.Data().Kind == ast.TypeFloat && from.Data().Kind == ast.TypeInt:
		return ast.ConvIntToFloat
	default:
		return ast.ConvNone
	}
}

// requiresCopy reports whether binding a nontrivial value into a
// non-reference target needs a deep copy: l-values and references would
// otherwise alias the target.
func requiresCopy(target ast.TypeExpr, value ast.Expr) bool {
	if target == nil || target.Data().IsRef {
		return false
	}
	attrs := value.Attrs()
	if attrs.Info == nil || !ast.IsNontrivial(attrs.Info.Data().Kind) {
		return false
	}
	return attrs.IsLvalue || attrs.Info.Data().IsRef
}

// inferListType reconciles an untyped list literal with the declared
// list type. When the declared element type is a reference, every
// element must be an l-value or reference; the literal is retroactively
// tagged a reference list and its elements are not copied. Otherwise
// l-value or reference elements of nontrivial type are marked for a
// deep copy.
func (r *Resolver) inferListType(list *ast.ListExpr, target *ast.ListType, where lexer.Token) {
	if list == nil || list.Type == nil {
		return
	}
	if target.Contained.Data().IsRef {
		for _, elem := range list.Elements {
			attrs := elem.Value.Attrs()
			if !attrs.IsLvalue && (attrs.Info == nil || !attrs.Info.Data().IsRef) {
				r.error("a reference list requires every element to be an l-value or a reference", where)
				return
			}
			elem.RequiresCopy = false
		}
		list.Type.Contained.Data().IsRef = true
		list.Attrs().Info = list.Type
		return
	}
	for _, elem := range list.Elements {
		if requiresCopy(target.Contained, elem.Value) {
			elem.RequiresCopy = true
		}
	}
}
