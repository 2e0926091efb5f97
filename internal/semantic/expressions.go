package semantic

import (
	"fmt"
	"strconv"

	"github.com/cwbudde/go-nyx/internal/ast"
	"github.com/cwbudde/go-nyx/internal/lexer"
	"github.com/cwbudde/go-nyx/internal/natives"
)

func (r *Resolver) resolveExpr(expr ast.Expr) *ast.ExprAttrs {
	switch e := expr.(type) {
	case *ast.AssignExpr:
		return r.resolveAssign(e)
	case *ast.BinaryExpr:
		return r.resolveBinary(e)
	case *ast.CallExpr:
		return r.resolveCall(e)
	case *ast.CommaExpr:
		return r.resolveComma(e)
	case *ast.GetExpr:
		return r.resolveGet(e)
	case *ast.GroupingExpr:
		return r.resolveGrouping(e)
	case *ast.IndexExpr:
		return r.resolveIndex(e)
	case *ast.ListExpr:
		return r.resolveList(e)
	case *ast.ListAssignExpr:
		return r.resolveListAssign(e)
	case *ast.ListRepeatExpr:
		return r.resolveListRepeat(e)
	case *ast.LiteralExpr:
		return r.resolveLiteral(e)
	case *ast.LogicalExpr:
		return r.resolveLogical(e)
	case *ast.MoveExpr:
		return r.resolveMove(e)
	case *ast.ScopeAccessExpr:
		return r.resolveScopeAccess(e)
	case *ast.ScopeNameExpr:
		return r.resolveScopeName(e)
	case *ast.SetExpr:
		return r.resolveSet(e)
	case *ast.SuperExpr:
		r.errorBail("classes have no superclass; 'super' cannot be used", e.Keyword)
		return e.Attrs()
	case *ast.TernaryExpr:
		return r.resolveTernary(e)
	case *ast.ThisExpr:
		return r.resolveThis(e)
	case *ast.TupleExpr:
		return r.resolveTuple(e)
	case *ast.UnaryExpr:
		return r.resolveUnary(e)
	case *ast.VariableExpr:
		return r.resolveVariable(e)
	default:
		panic(fmt.Sprintf("semantic: unhandled expression %T", expr))
	}
}

func (r *Resolver) resolveVariable(expr *ast.VariableExpr) *ast.ExprAttrs {
	attrs := expr.Attrs()

	if natives.IsNative(expr.Name.Lexeme) {
		r.errorBail("cannot use a native function as a value", expr.Name)
	}

	if value, ok := r.lookup(expr.Name.Lexeme); ok {
		if value.depth == 0 {
			expr.Kind = ast.IdentGlobal
		} else {
			expr.Kind = ast.IdentLocal
		}
		attrs.Info = value.info
		attrs.Class = value.class
		attrs.IsLvalue = true
		attrs.StackSlot = value.slot
		return attrs
	}

	if fn := r.findFunction(expr.Name.Lexeme); fn != nil {
		expr.Kind = ast.IdentFunction
		attrs.Info = ast.NewPrimitive(ast.TypeFunction, true, false)
		attrs.Func = fn
		return attrs
	}

	if class := r.findClass(expr.Name.Lexeme); class != nil {
		expr.Kind = ast.IdentClass
		attrs.Info = ast.NewPrimitive(ast.TypeFunction, true, false)
		attrs.Class = class
		return attrs
	}

	r.errorBail(fmt.Sprintf("undefined name %q", expr.Name.Lexeme), expr.Name)
	return attrs
}

func (r *Resolver) resolveAssign(expr *ast.AssignExpr) *ast.ExprAttrs {
	attrs := expr.Attrs()

	value, ok := r.lookup(expr.Target.Lexeme)
	if !ok {
		r.errorBail(fmt.Sprintf("undefined name %q", expr.Target.Lexeme), expr.Target)
	}
	if value.depth == 0 {
		expr.TargetKind = ast.IdentGlobal
	} else {
		expr.TargetKind = ast.IdentLocal
	}

	valueAttrs := r.resolveExpr(expr.Value)

	if value.info.Data().IsConst {
		r.error("cannot assign to a const variable", expr.Target)
	} else if !r.convertibleTo(stripRef(value.info), valueAttrs.Info, valueAttrs.IsLvalue, attrs.Token, false) {
		r.error("cannot convert the assigned value to the target's type", attrs.Token)
		r.note(fmt.Sprintf("trying to convert from '%s' to '%s'",
			ast.TypeExprString(valueAttrs.Info), ast.TypeExprString(value.info)))
	} else if attrs.Token.Type != lexer.Equal {
		if !isNumericKind(value.info.Data().Kind) || !isNumericKind(valueAttrs.Info.Data().Kind) {
			r.errorBail("compound assignment requires numeric operands", attrs.Token)
		}
	}

	expr.Conversion = conversionFor(value.info, valueAttrs.Info)
	expr.RequiresCopy = requiresCopy(value.info, expr.Value)

	attrs.Info = value.info
	attrs.StackSlot = value.slot
	return attrs
}

func (r *Resolver) resolveBinary(expr *ast.BinaryExpr) *ast.ExprAttrs {
	attrs := expr.Attrs()
	left := r.resolveExpr(expr.Left)
	right := r.resolveExpr(expr.Right)

	leftKind := left.Info.Data().Kind
	rightKind := right.Info.Data().Kind

	switch attrs.Token.Type {
	case lexer.LeftShift, lexer.RightShift:
		if leftKind == ast.TypeList {
			if attrs.Token.Type == lexer.LeftShift {
				contained := left.Info.(*ast.ListType).Contained
				if !r.convertibleTo(stripRef(contained), right.Info, right.IsLvalue, attrs.Token, false) {
					r.error("appended value does not match the list's element type", attrs.Token)
				}
			} else if rightKind != ast.TypeInt {
				r.error("the pop count of '>>' must be an int", attrs.Token)
			}
			attrs.Info = left.Info
			return attrs
		}
		fallthrough
	case lexer.BitAnd, lexer.BitOr, lexer.BitXor:
		if leftKind != ast.TypeInt || rightKind != ast.TypeInt {
			r.errorBail("bitwise operators require int operands", attrs.Token)
		}
		attrs.Info = ast.NewPrimitive(ast.TypeInt, true, false)
		return attrs

	case lexer.Percent, lexer.Plus, lexer.Minus, lexer.Star, lexer.Slash:
		if attrs.Token.Type == lexer.Plus && leftKind == ast.TypeString && rightKind == ast.TypeString {
			attrs.Info = ast.NewPrimitive(ast.TypeString, true, false)
			return attrs
		}
		if !isNumericKind(leftKind) || !isNumericKind(rightKind) {
			r.errorBail(fmt.Sprintf("operator '%s' requires numeric operands", attrs.Token.Lexeme), attrs.Token)
		}
		if leftKind == ast.TypeFloat || rightKind == ast.TypeFloat {
			attrs.Info = ast.NewPrimitive(ast.TypeFloat, true, false)
		} else {
			attrs.Info = ast.NewPrimitive(ast.TypeInt, true, false)
		}
		return attrs

	case lexer.EqualEqual, lexer.BangEqual:
		if !comparableKinds(leftKind, rightKind) {
			r.errorBail("cannot compare values of unrelated types", attrs.Token)
		}
		if isNumericKind(leftKind) && isNumericKind(rightKind) && leftKind != rightKind {
			r.warning("comparison between int and float converts the int operand", attrs.Token)
		}
		if (leftKind == ast.TypeList || leftKind == ast.TypeTuple) &&
			!equivalentPrimitives(left.Info, right.Info) {
			r.errorBail("cannot compare aggregates of different shapes", attrs.Token)
		}
		attrs.Info = ast.NewPrimitive(ast.TypeBool, true, false)
		return attrs

	case lexer.Greater, lexer.GreaterEqual, lexer.Less, lexer.LessEqual:
		if !isNumericKind(leftKind) || !isNumericKind(rightKind) {
			r.errorBail("ordering comparison requires numeric operands", attrs.Token)
		}
		if leftKind != rightKind {
			r.warning("comparison between int and float converts the int operand", attrs.Token)
		}
		attrs.Info = ast.NewPrimitive(ast.TypeBool, true, false)
		return attrs

	case lexer.DotDot, lexer.DotDotEqual:
		if leftKind != ast.TypeInt || rightKind != ast.TypeInt {
			r.errorBail("range bounds must be ints", attrs.Token)
		}
		attrs.Info = &ast.ListType{
			TypeData:  ast.TypeData{Kind: ast.TypeList},
			Contained: ast.NewPrimitive(ast.TypeInt, false, false),
		}
		return attrs

	default:
		r.errorBail("unexpected binary operator", attrs.Token)
		return attrs
	}
}

func (r *Resolver) resolveLogical(expr *ast.LogicalExpr) *ast.ExprAttrs {
	attrs := expr.Attrs()
	left := r.resolveExpr(expr.Left)
	right := r.resolveExpr(expr.Right)
	if left.Info.Data().Kind != ast.TypeBool || right.Info.Data().Kind != ast.TypeBool {
		r.error("logical operators require bool operands", attrs.Token)
	}
	attrs.Info = ast.NewPrimitive(ast.TypeBool, true, false)
	return attrs
}

func (r *Resolver) resolveUnary(expr *ast.UnaryExpr) *ast.ExprAttrs {
	attrs := expr.Attrs()
	right := r.resolveExpr(expr.Right)
	kind := right.Info.Data().Kind

	switch expr.Oper.Type {
	case lexer.Tilde:
		if kind != ast.TypeInt {
			r.errorBail("'~' requires an int operand", expr.Oper)
		}
		attrs.Info = ast.NewPrimitive(ast.TypeInt, true, false)
	case lexer.Bang, lexer.KwNot:
		if kind != ast.TypeBool {
			r.errorBail("logical not requires a bool operand", expr.Oper)
		}
		attrs.Info = ast.NewPrimitive(ast.TypeBool, true, false)
	case lexer.Minus:
		if !isNumericKind(kind) {
			r.errorBail("unary '-' requires a numeric operand", expr.Oper)
		}
		attrs.Info = ast.NewPrimitive(kind, true, false)
	case lexer.PlusPlus, lexer.MinusMinus:
		if _, ok := expr.Right.(*ast.VariableExpr); !ok || !right.IsLvalue {
			r.errorBail("'++' and '--' require a variable operand", expr.Oper)
		}
		if right.Info.Data().IsConst {
			r.errorBail("cannot modify a const variable", expr.Oper)
		}
		if !isNumericKind(kind) {
			r.errorBail("'++' and '--' require a numeric operand", expr.Oper)
		}
		attrs.Info = ast.NewPrimitive(kind, true, false)
	default:
		r.errorBail("unexpected unary operator", expr.Oper)
	}
	return attrs
}

func (r *Resolver) resolveGrouping(expr *ast.GroupingExpr) *ast.ExprAttrs {
	attrs := expr.Attrs()
	inner := r.resolveExpr(expr.Inner)
	attrs.Info = stripRef(inner.Info)
	attrs.Class = inner.Class
	return attrs
}

func (r *Resolver) resolveLiteral(expr *ast.LiteralExpr) *ast.ExprAttrs {
	attrs := expr.Attrs()
	switch expr.Value.Kind {
	case ast.LitInt:
		attrs.Info = ast.NewPrimitive(ast.TypeInt, true, false)
	case ast.LitFloat:
		attrs.Info = ast.NewPrimitive(ast.TypeFloat, true, false)
	case ast.LitString:
		attrs.Info = ast.NewPrimitive(ast.TypeString, true, false)
	case ast.LitBool:
		attrs.Info = ast.NewPrimitive(ast.TypeBool, true, false)
	case ast.LitNull:
		attrs.Info = ast.NewPrimitive(ast.TypeNull, true, false)
	}
	return attrs
}

func (r *Resolver) resolveComma(expr *ast.CommaExpr) *ast.ExprAttrs {
	attrs := expr.Attrs()
	var last *ast.ExprAttrs
	for _, operand := range expr.Exprs {
		last = r.resolveExpr(operand)
	}
	attrs.Info = last.Info
	attrs.Class = last.Class
	return attrs
}

func (r *Resolver) resolveTernary(expr *ast.TernaryExpr) *ast.ExprAttrs {
	attrs := expr.Attrs()
	cond := r.resolveExpr(expr.Cond)
	if cond.Info.Data().Kind != ast.TypeBool {
		r.error("ternary condition must be a bool", attrs.Token)
	}
	middle := r.resolveExpr(expr.Middle)
	right := r.resolveExpr(expr.Right)
	if !equivalentPrimitives(middle.Info, right.Info) {
		r.error("both branches of a ternary must have equivalent types", attrs.Token)
		r.note(fmt.Sprintf("branches have types '%s' and '%s'",
			ast.TypeExprString(middle.Info), ast.TypeExprString(right.Info)))
	}
	attrs.Info = stripRef(middle.Info)
	return attrs
}

func (r *Resolver) resolveIndex(expr *ast.IndexExpr) *ast.ExprAttrs {
	attrs := expr.Attrs()
	object := r.resolveExpr(expr.Object)
	index := r.resolveExpr(expr.Index)

	if index.Info.Data().Kind != ast.TypeInt {
		r.error("index must be an int", attrs.Token)
	}

	switch object.Info.Data().Kind {
	case ast.TypeList:
		contained := object.Info.(*ast.ListType).Contained
		elem := cloneType(contained)
		elem.Data().IsConst = elem.Data().IsConst || object.Info.Data().IsConst
		attrs.Info = elem
		attrs.Class = r.classOf(contained)
		attrs.IsLvalue = object.IsLvalue
	case ast.TypeString:
		attrs.Info = ast.NewPrimitive(ast.TypeString, true, false)
	default:
		r.errorBail("only lists and strings can be indexed", attrs.Token)
	}
	return attrs
}

func (r *Resolver) resolveList(expr *ast.ListExpr) *ast.ExprAttrs {
	attrs := expr.Attrs()

	var contained ast.TypeExpr
	for _, elem := range expr.Elements {
		elemAttrs := r.resolveExpr(elem.Value)
		if contained == nil {
			contained = stripQualifiers(elemAttrs.Info)
			continue
		}
		if !r.convertibleTo(contained, elemAttrs.Info, elemAttrs.IsLvalue, attrs.Token, false) {
			r.error("list elements must all have the same type", attrs.Token)
			r.note(fmt.Sprintf("first element has type '%s', found '%s'",
				ast.TypeExprString(contained), ast.TypeExprString(elemAttrs.Info)))
		}
		elem.Conversion = conversionFor(contained, elemAttrs.Info)
	}
	if contained == nil {
		// The empty list takes its type from the declaration binding it.
		contained = ast.NewPrimitive(ast.TypeNull, false, false)
	}

	expr.Type = &ast.ListType{
		TypeData:  ast.TypeData{Kind: ast.TypeList},
		Contained: contained,
	}
	attrs.Info = expr.Type
	return attrs
}

func (r *Resolver) resolveListRepeat(expr *ast.ListRepeatExpr) *ast.ExprAttrs {
	attrs := expr.Attrs()
	elem := r.resolveExpr(expr.Element.Value)
	quantity := r.resolveExpr(expr.Quantity.Value)

	if quantity.Info.Data().Kind != ast.TypeInt {
		if quantity.Info.Data().Kind == ast.TypeFloat {
			r.warning("repeat count is a float and will be truncated", attrs.Token)
			expr.Quantity.Conversion = ast.ConvFloatToInt
		} else {
			r.error("repeat count must be an int", attrs.Token)
		}
	}
	expr.Element.RequiresCopy = elem.Info != nil && ast.IsNontrivial(elem.Info.Data().Kind)

	expr.Type = &ast.ListType{
		TypeData:  ast.TypeData{Kind: ast.TypeList},
		Contained: stripQualifiers(elem.Info),
	}
	attrs.Info = expr.Type
	return attrs
}

func (r *Resolver) resolveTuple(expr *ast.TupleExpr) *ast.ExprAttrs {
	attrs := expr.Attrs()
	types := make([]ast.TypeExpr, len(expr.Elements))
	for i, elem := range expr.Elements {
		elemAttrs := r.resolveExpr(elem.Value)
		types[i] = stripQualifiers(elemAttrs.Info)
	}
	expr.Type = &ast.TupleType{
		TypeData: ast.TypeData{Kind: ast.TypeTuple},
		Types:    types,
	}
	attrs.Info = expr.Type
	return attrs
}

func (r *Resolver) resolveGet(expr *ast.GetExpr) *ast.ExprAttrs {
	attrs := expr.Attrs()
	object := r.resolveExpr(expr.Object)

	switch object.Info.Data().Kind {
	case ast.TypeTuple:
		if expr.Name.Type != lexer.IntValue {
			r.errorBail("tuples are accessed by integer position", expr.Name)
		}
		tuple := object.Info.(*ast.TupleType)
		index, err := strconv.Atoi(expr.Name.Lexeme)
		if err != nil || index < 0 || index >= len(tuple.Types) {
			r.errorBail(fmt.Sprintf("tuple position %s out of range, tuple has %d elements",
				expr.Name.Lexeme, len(tuple.Types)), expr.Name)
		}
		elem := cloneType(tuple.Types[index])
		elem.Data().IsConst = elem.Data().IsConst || object.Info.Data().IsConst
		attrs.Info = elem
		attrs.Class = r.classOf(tuple.Types[index])
		attrs.IsLvalue = object.IsLvalue
		return attrs

	case ast.TypeClass:
		if expr.Name.Type != lexer.Identifier {
			r.errorBail("class members are accessed by name", expr.Name)
		}
		class := object.Class
		if class == nil {
			class = r.classOf(object.Info)
		}
		if class == nil {
			r.errorBail("cannot resolve the class of the accessed object", expr.Name)
		}
		memberIndex, ok := class.MemberMap[expr.Name.Lexeme]
		if !ok {
			r.errorBail(fmt.Sprintf("class %q has no member %q", class.Name.Lexeme, expr.Name.Lexeme), expr.Name)
		}
		member := class.Members[memberIndex]
		if !r.visibleFrom(member.Visibility, class) {
			r.errorBail(fmt.Sprintf("member %q of class %q is %s", expr.Name.Lexeme,
				class.Name.Lexeme, member.Visibility), expr.Name)
		}
		// const propagates through member access.
		info := cloneType(member.Var.Type)
		info.Data().IsConst = info.Data().IsConst || object.Info.Data().IsConst
		attrs.Info = info
		attrs.Class = r.classOf(member.Var.Type)
		attrs.IsLvalue = object.IsLvalue
		return attrs

	default:
		r.errorBail("only class instances and tuples have members", expr.Name)
		return attrs
	}
}

func (r *Resolver) resolveSet(expr *ast.SetExpr) *ast.ExprAttrs {
	attrs := expr.Attrs()

	get := &ast.GetExpr{Object: expr.Object, Name: expr.Name}
	get.Attrs().Token = expr.Name
	target := r.resolveGet(get)

	valueAttrs := r.resolveExpr(expr.Value)

	if target.Info.Data().IsConst {
		r.error("cannot assign to a const member", expr.Name)
	} else if !target.IsLvalue {
		r.error("cannot assign into a temporary", expr.Name)
	} else if !r.convertibleTo(stripRef(target.Info), valueAttrs.Info, valueAttrs.IsLvalue, attrs.Token, false) {
		r.error("cannot convert the assigned value to the member's type", attrs.Token)
		r.note(fmt.Sprintf("trying to convert from '%s' to '%s'",
			ast.TypeExprString(valueAttrs.Info), ast.TypeExprString(target.Info)))
	}

	expr.Conversion = conversionFor(target.Info, valueAttrs.Info)
	expr.RequiresCopy = requiresCopy(target.Info, expr.Value)
	attrs.Info = target.Info
	attrs.Class = target.Class
	return attrs
}

func (r *Resolver) resolveListAssign(expr *ast.ListAssignExpr) *ast.ExprAttrs {
	attrs := expr.Attrs()
	target := r.resolveIndex(expr.List)

	if target.Info.Data().Kind == ast.TypeString && expr.List.Object.Attrs().Info.Data().Kind == ast.TypeString {
		r.errorBail("strings are immutable and cannot be assigned into", attrs.Token)
	}

	valueAttrs := r.resolveExpr(expr.Value)

	if target.Info.Data().IsConst {
		r.error("cannot assign into a const list", attrs.Token)
	} else if !target.IsLvalue {
		r.error("cannot assign into a temporary list", attrs.Token)
	} else if !r.convertibleTo(stripRef(target.Info), valueAttrs.Info, valueAttrs.IsLvalue, attrs.Token, false) {
		r.error("cannot convert the assigned value to the element type", attrs.Token)
	} else if attrs.Token.Type != lexer.Equal {
		if !isNumericKind(target.Info.Data().Kind) || !isNumericKind(valueAttrs.Info.Data().Kind) {
			r.errorBail("compound assignment requires numeric operands", attrs.Token)
		}
	}

	expr.Conversion = conversionFor(target.Info, valueAttrs.Info)
	expr.RequiresCopy = requiresCopy(target.Info, expr.Value)
	attrs.Info = target.Info
	return attrs
}

func (r *Resolver) resolveMove(expr *ast.MoveExpr) *ast.ExprAttrs {
	attrs := expr.Attrs()
	inner := r.resolveExpr(expr.Inner)

	if !inner.IsLvalue {
		r.errorBail("can only move out of an l-value", attrs.Token)
	}
	if inner.Info.Data().IsConst {
		r.errorBail("cannot move out of a const binding", attrs.Token)
	}
	switch expr.Inner.(type) {
	case *ast.VariableExpr, *ast.IndexExpr, *ast.GetExpr:
	default:
		r.errorBail("can only move out of a variable, list element or member", attrs.Token)
	}

	attrs.Info = stripRef(inner.Info)
	attrs.Class = inner.Class
	return attrs
}

func (r *Resolver) resolveThis(expr *ast.ThisExpr) *ast.ExprAttrs {
	attrs := expr.Attrs()
	if !r.inCtor && !r.inDtor {
		r.errorBail("'this' can only be used inside a constructor or destructor", expr.Keyword)
	}
	attrs.Info = &ast.UserDefinedType{
		TypeData: ast.TypeData{Kind: ast.TypeClass},
		Name:     r.currentClass.Name,
		Class:    r.currentClass,
	}
	attrs.Class = r.currentClass
	attrs.IsLvalue = true
	attrs.StackSlot = 0
	return attrs
}

func (r *Resolver) resolveScopeName(expr *ast.ScopeNameExpr) *ast.ExprAttrs {
	attrs := expr.Attrs()

	if index, module := r.importedModule(expr.Name.Lexeme); module != nil {
		expr.ModulePath = module.Path
		attrs.Info = ast.NewPrimitive(ast.TypeModule, true, false)
		attrs.ModuleIndex = index
		attrs.ScopeKind = ast.ScopeAccessModule
		return attrs
	}

	if class := r.findClass(expr.Name.Lexeme); class != nil {
		attrs.Info = ast.NewPrimitive(ast.TypeClass, true, false)
		attrs.Class = class
		attrs.ScopeKind = ast.ScopeAccessClass
		return attrs
	}

	r.errorBail(fmt.Sprintf("%q does not name an imported module or a class", expr.Name.Lexeme), expr.Name)
	return attrs
}

func (r *Resolver) resolveScopeAccess(expr *ast.ScopeAccessExpr) *ast.ExprAttrs {
	attrs := expr.Attrs()
	scope := r.resolveExpr(expr.Scope)

	switch scope.ScopeKind {
	case ast.ScopeAccessModule:
		module := r.modules[scope.ModuleIndex]
		if class, ok := module.Classes[expr.Name.Lexeme]; ok {
			attrs.Info = ast.NewPrimitive(ast.TypeClass, true, false)
			attrs.Class = class
			attrs.ModuleIndex = scope.ModuleIndex
			attrs.ScopeKind = ast.ScopeAccessModuleClass
			return attrs
		}
		if fn, ok := module.Functions[expr.Name.Lexeme]; ok {
			attrs.Info = ast.NewPrimitive(ast.TypeFunction, true, false)
			attrs.Func = fn
			attrs.ModuleIndex = scope.ModuleIndex
			attrs.ScopeKind = ast.ScopeAccessModule
			return attrs
		}
		r.errorBail(fmt.Sprintf("module %q has no class or function named %q",
			module.Name, expr.Name.Lexeme), expr.Name)

	case ast.ScopeAccessClass, ast.ScopeAccessModuleClass:
		class := scope.Class
		r.ensureLifecycle(class)
		methodIndex, ok := class.MethodMap[expr.Name.Lexeme]
		if !ok {
			r.errorBail(fmt.Sprintf("class %q has no method %q", class.Name.Lexeme, expr.Name.Lexeme), expr.Name)
		}
		method := class.Methods[methodIndex]
		if !r.visibleFrom(method.Visibility, class) {
			r.errorBail(fmt.Sprintf("method %q of class %q is %s", expr.Name.Lexeme,
				class.Name.Lexeme, method.Visibility), expr.Name)
		}
		attrs.Info = ast.NewPrimitive(ast.TypeFunction, true, false)
		attrs.Func = method.Fn
		attrs.Class = class
		attrs.ModuleIndex = scope.ModuleIndex
		attrs.ScopeKind = scope.ScopeKind
		return attrs

	default:
		r.errorBail("invalid scope access", attrs.Token)
	}
	return attrs
}

func (r *Resolver) resolveCall(expr *ast.CallExpr) *ast.ExprAttrs {
	attrs := expr.Attrs()

	// Native calls are checked against the registry.
	if variable, ok := expr.Function.(*ast.VariableExpr); ok {
		if native, isNative := natives.Lookup(variable.Name.Lexeme); isNative {
			return r.resolveNativeCall(expr, variable, native)
		}
	}

	fnAttrs := r.resolveExpr(expr.Function)

	// Calling a class name constructs an instance; rewrite `X(...)` into
	// `X::X(...)` so construction and scoped calls share one shape.
	if fnAttrs.Func == nil && fnAttrs.Class != nil {
		class := fnAttrs.Class
		r.ensureLifecycle(class)
		moduleIndex := fnAttrs.ModuleIndex
		scopeKind := fnAttrs.ScopeKind

		scopeName := &ast.ScopeNameExpr{Name: class.Name}
		scopeName.Attrs().Token = class.Name
		scopeName.Attrs().Class = class
		scopeName.Attrs().ModuleIndex = moduleIndex
		if scopeKind == ast.ScopeAccessModuleClass {
			scopeName.Attrs().ScopeKind = ast.ScopeAccessModuleClass
		} else {
			scopeName.Attrs().ScopeKind = ast.ScopeAccessClass
		}

		access := &ast.ScopeAccessExpr{Scope: scopeName, Name: class.Name}
		access.Attrs().Token = class.Name
		access.Attrs().Info = ast.NewPrimitive(ast.TypeFunction, true, false)
		access.Attrs().Func = class.Ctor
		access.Attrs().Class = class
		access.Attrs().ModuleIndex = moduleIndex
		access.Attrs().ScopeKind = scopeName.Attrs().ScopeKind

		expr.Function = access
		fnAttrs = access.Attrs()
	}

	fn := fnAttrs.Func
	if fn == nil {
		r.errorBail("called expression is not a function", attrs.Token)
	}

	if len(expr.Args) != len(fn.Params) {
		r.errorBail(fmt.Sprintf("%q expects %d arguments, got %d",
			fn.Name.Lexeme, len(fn.Params), len(expr.Args)), attrs.Token)
	}

	for i, arg := range expr.Args {
		argAttrs := r.resolveExpr(arg.Value)
		param := fn.Params[i]
		if !r.convertibleTo(param.Type, argAttrs.Info, argAttrs.IsLvalue, attrs.Token, true) {
			r.error(fmt.Sprintf("argument %d does not match the parameter's type", i+1), attrs.Token)
			r.note(fmt.Sprintf("trying to convert from '%s' to '%s'",
				ast.TypeExprString(argAttrs.Info), ast.TypeExprString(param.Type)))
			continue
		}
		arg.Conversion = conversionFor(param.Type, argAttrs.Info)
		arg.RequiresCopy = requiresCopy(param.Type, arg.Value)
	}

	if fn.IsConstructor() {
		attrs.Info = &ast.UserDefinedType{
			TypeData: ast.TypeData{Kind: ast.TypeClass},
			Name:     fn.Class.Name,
			Class:    fn.Class,
		}
		attrs.Class = fn.Class
	} else {
		attrs.Info = fn.ReturnType
		attrs.Class = r.classOf(fn.ReturnType)
	}
	attrs.Func = fn
	return attrs
}

func (r *Resolver) resolveNativeCall(expr *ast.CallExpr, variable *ast.VariableExpr, native *natives.Fn) *ast.ExprAttrs {
	attrs := expr.Attrs()
	expr.IsNative = true
	variable.Kind = ast.IdentNative

	if len(expr.Args) != native.Arity {
		r.errorBail(fmt.Sprintf("native %q expects %d arguments, got %d",
			native.Name, native.Arity, len(expr.Args)), attrs.Token)
	}
	for i, arg := range expr.Args {
		argAttrs := r.resolveExpr(arg.Value)
		if !native.Accepts(i, argAttrs.Info.Data().Kind) {
			r.error(fmt.Sprintf("argument %d of native %q has unsupported type '%s'",
				i+1, native.Name, ast.TypeExprString(argAttrs.Info)), attrs.Token)
		}
	}

	attrs.Info = ast.NewPrimitive(native.ReturnKind, true, false)
	return attrs
}

func isNumericKind(kind ast.Type) bool {
	return kind == ast.TypeInt || kind == ast.TypeFloat
}

func comparableKinds(a, b ast.Type) bool {
	if a == b {
		return true
	}
	if isNumericKind(a) && isNumericKind(b) {
		return true
	}
	// Anything compares against null.
	return a == ast.TypeNull || b == ast.TypeNull
}
