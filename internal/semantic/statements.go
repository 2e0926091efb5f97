package semantic

import (
	"fmt"

	"github.com/cwbudde/go-nyx/internal/ast"
	"github.com/cwbudde/go-nyx/internal/lexer"
)

func (r *Resolver) resolveStmt(stmt ast.Stmt) {
	switch s := stmt.(type) {
	case *ast.BlockStmt:
		r.resolveBlock(s)
	case *ast.BreakStmt, *ast.ContinueStmt, *ast.CommentStmt, *ast.ImportStmt:
		// Checked syntactically; nothing to resolve.
	case *ast.ClassStmt:
		r.resolveClass(s)
	case *ast.ExpressionStmt:
		r.resolveExpr(s.Expr)
	case *ast.ForStmt:
		r.resolveFor(s)
	case *ast.FunctionStmt:
		r.resolveFunction(s)
	case *ast.IfStmt:
		r.resolveIf(s)
	case *ast.ReturnStmt:
		r.resolveReturn(s)
	case *ast.SwitchStmt:
		r.resolveSwitch(s)
	case *ast.TypeStmt:
		r.resolveTypeAlias(s)
	case *ast.VarStmt:
		r.resolveVar(s)
	case *ast.VarTupleStmt:
		r.resolveVarTuple(s)
	case *ast.WhileStmt:
		r.resolveWhile(s)
	default:
		panic(fmt.Sprintf("semantic: unhandled statement %T", stmt))
	}
}

func (r *Resolver) resolveBlock(block *ast.BlockStmt) {
	r.beginScope()
	for _, stmt := range block.Stmts {
		r.resolveStmt(stmt)
	}
	r.endScope()
}

// resolveVar handles var/const/ref declarations: type resolution or
// inference, list-literal reconciliation, conversion tagging and the
// copy-on-bind decision.
func (r *Resolver) resolveVar(stmt *ast.VarStmt) {
	initializer := r.resolveExpr(stmt.Initializer)

	if stmt.Type == nil {
		// Untyped declarations infer the initializer's type, dropping
		// the reference unless the declaration itself is 'ref'.
		inferred := cloneType(initializer.Info)
		if stmt.Keyword.Type == lexer.KwRef {
			inferred.Data().IsRef = true
		} else {
			inferred.Data().IsRef = false
		}
		if stmt.Keyword.Type == lexer.KwConst {
			inferred.Data().IsConst = true
		}
		stmt.Type = inferred
	} else {
		stmt.Type = r.resolveType(stmt.Type)
	}

	if listExpr, ok := stmt.Initializer.(*ast.ListExpr); ok {
		if target, ok := stmt.Type.(*ast.ListType); ok {
			r.inferListType(listExpr, target, stmt.Name)
		}
	}

	if !r.convertibleTo(stmt.Type, initializer.Info, initializer.IsLvalue, stmt.Name, true) {
		r.error(fmt.Sprintf("cannot initialize %q from the given expression", stmt.Name.Lexeme), stmt.Name)
		r.note(fmt.Sprintf("trying to convert from '%s' to '%s'",
			ast.TypeExprString(initializer.Info), ast.TypeExprString(stmt.Type)))
	}

	stmt.Conversion = conversionFor(stmt.Type, initializer.Info)
	stmt.RequiresCopy = requiresCopy(stmt.Type, stmt.Initializer)

	r.declare(stmt.Name, stmt.Type, r.classOf(stmt.Type))
}

func (r *Resolver) resolveVarTuple(stmt *ast.VarTupleStmt) {
	initializer := r.resolveExpr(stmt.Initializer)

	if stmt.Type == nil {
		inferred := cloneType(initializer.Info)
		inferred.Data().IsRef = false
		stmt.Type = inferred
	} else {
		stmt.Type = r.resolveType(stmt.Type)
	}

	tupleType, ok := stmt.Type.(*ast.TupleType)
	if !ok {
		r.errorBail("destructuring declarations require a tuple type", stmt.Token)
		return
	}
	if !r.matchIdentTuple(stmt.Names, tupleType) {
		r.errorBail("destructuring pattern does not match the tuple type", stmt.Token)
	}

	if !r.convertibleTo(stmt.Type, initializer.Info, initializer.IsLvalue, stmt.Token, true) {
		r.error("cannot initialize the destructuring declaration from the given expression", stmt.Token)
		r.note(fmt.Sprintf("trying to convert from '%s' to '%s'",
			ast.TypeExprString(initializer.Info), ast.TypeExprString(stmt.Type)))
	}

	stmt.RequiresCopy = requiresCopy(stmt.Type, stmt.Initializer)
	r.declareIdentTuple(stmt.Names)
}

// matchIdentTuple checks shape and copies element types onto the names.
func (r *Resolver) matchIdentTuple(tuple *ast.IdentTuple, typ *ast.TupleType) bool {
	if len(tuple.Elems) != len(typ.Types) {
		return false
	}
	for i, elem := range tuple.Elems {
		if elem.Nested != nil {
			nested, ok := typ.Types[i].(*ast.TupleType)
			if !ok || !r.matchIdentTuple(elem.Nested, nested) {
				return false
			}
		} else {
			elem.Type = typ.Types[i]
		}
	}
	return true
}

func (r *Resolver) declareIdentTuple(tuple *ast.IdentTuple) {
	for _, elem := range tuple.Elems {
		if elem.Nested != nil {
			r.declareIdentTuple(elem.Nested)
		} else {
			r.declare(elem.Name, elem.Type, r.classOf(elem.Type))
		}
	}
}

func (r *Resolver) resolveTypeAlias(stmt *ast.TypeStmt) {
	r.aliases[stmt.Name.Lexeme] = r.resolveType(stmt.Aliased)
}

// resolveClass synthesizes the missing constructor/destructor, then
// checks member initializers and methods inside the class context.
func (r *Resolver) resolveClass(stmt *ast.ClassStmt) {
	r.ensureLifecycle(stmt)

	previousClass := r.currentClass
	r.currentClass = stmt
	defer func() { r.currentClass = previousClass }()

	// Member initializers run inside make-instance with variable
	// tracking suppressed; resolve them without declaring scope names.
	for _, member := range stmt.Members {
		if member.Var.Type != nil {
			member.Var.Type = r.resolveType(member.Var.Type)
		}
		init := r.resolveExpr(member.Var.Initializer)
		if member.Var.Type == nil {
			inferred := cloneType(init.Info)
			inferred.Data().IsRef = false
			member.Var.Type = inferred
		} else if !r.convertibleTo(member.Var.Type, init.Info, init.IsLvalue, member.Var.Name, true) {
			r.error(fmt.Sprintf("cannot initialize member %q from the given expression",
				member.Var.Name.Lexeme), member.Var.Name)
		}
		member.Var.Conversion = conversionFor(member.Var.Type, init.Info)
		member.Var.RequiresCopy = requiresCopy(member.Var.Type, member.Var.Initializer)
	}

	for _, method := range stmt.Methods {
		r.resolveFunction(method.Fn)
	}
}

// ensureLifecycle synthesizes the missing constructor or destructor;
// call sites may reach a class before its declaration is resolved.
func (r *Resolver) ensureLifecycle(class *ast.ClassStmt) {
	if class.Ctor == nil {
		class.Ctor = synthesizeLifecycleMethod(class, class.Name.Lexeme)
		class.MethodMap[class.Ctor.Name.Lexeme] = len(class.Methods)
		class.Methods = append(class.Methods, &ast.ClassMethod{Fn: class.Ctor, Visibility: ast.VisibilityPublic})
	}
	if class.Dtor == nil {
		class.Dtor = synthesizeLifecycleMethod(class, "~"+class.Name.Lexeme)
		class.MethodMap[class.Dtor.Name.Lexeme] = len(class.Methods)
		class.Methods = append(class.Methods, &ast.ClassMethod{Fn: class.Dtor, Visibility: ast.VisibilityPublic})
	}
}

// synthesizeLifecycleMethod builds the implicit ctor/dtor: public, no
// parameters, body `{ return; }`. The constructor returns the class,
// the destructor returns null.
func synthesizeLifecycleMethod(class *ast.ClassStmt, name string) *ast.FunctionStmt {
	nameTok := lexer.Token{
		Type:   lexer.Identifier,
		Lexeme: name,
		Line:   class.Name.Line,
		Column: class.Name.Column,
	}
	var returnType ast.TypeExpr
	if name == class.Name.Lexeme {
		returnType = &ast.UserDefinedType{
			TypeData: ast.TypeData{Kind: ast.TypeClass},
			Name:     class.Name,
			Class:    class,
		}
	} else {
		returnType = ast.NewPrimitive(ast.TypeNull, false, false)
	}
	return &ast.FunctionStmt{
		Name:       nameTok,
		ReturnType: returnType,
		Body:       &ast.BlockStmt{Stmts: []ast.Stmt{&ast.ReturnStmt{Keyword: nameTok}}},
		Class:      class,
	}
}

func (r *Resolver) resolveFunction(fn *ast.FunctionStmt) {
	fn.ReturnType = r.resolveType(fn.ReturnType)

	if fn.IsConstructor() {
		ret, ok := fn.ReturnType.(*ast.UserDefinedType)
		if !ok || ret.Name.Lexeme != fn.Class.Name.Lexeme {
			r.error("a constructor must return its own class", fn.Name)
		}
	}
	if fn.IsDestructor() && fn.ReturnType.Data().Kind != ast.TypeNull {
		r.error("a destructor must return null", fn.Name)
	}

	previousFunction := r.currentFunction
	wasCtor, wasDtor := r.inCtor, r.inDtor
	r.currentFunction = fn
	r.inCtor = fn.IsConstructor()
	r.inDtor = fn.IsDestructor()
	defer func() {
		r.currentFunction = previousFunction
		r.inCtor, r.inDtor = wasCtor, wasDtor
	}()

	r.beginScope()
	r.pushFrame()
	fn.ScopeDepth = r.scopeDepth

	for _, param := range fn.Params {
		param.Type = r.resolveType(param.Type)
		r.declare(param.Name, param.Type, r.classOf(param.Type))
	}

	// Functions returning null (and ctors/dtors) get an implicit
	// trailing return when the body does not end with one.
	needsImplicitReturn := len(fn.Body.Stmts) == 0
	if !needsImplicitReturn {
		_, endsWithReturn := fn.Body.Stmts[len(fn.Body.Stmts)-1].(*ast.ReturnStmt)
		needsImplicitReturn = !endsWithReturn
	}
	if needsImplicitReturn &&
		(fn.ReturnType.Data().Kind == ast.TypeNull || fn.IsConstructor() || fn.IsDestructor()) {
		fn.Body.Stmts = append(fn.Body.Stmts, &ast.ReturnStmt{Keyword: fn.Name})
	}

	for _, stmt := range fn.Body.Stmts {
		r.resolveStmt(stmt)
	}

	r.popFrame()
	r.endScope()
}

func (r *Resolver) resolveReturn(stmt *ast.ReturnStmt) {
	if r.currentFunction == nil {
		r.errorBail("cannot return from top-level code", stmt.Keyword)
	}
	stmt.Function = r.currentFunction

	switch {
	case r.inCtor:
		if stmt.Value != nil {
			if _, ok := stmt.Value.(*ast.ThisExpr); !ok {
				r.errorBail("a constructor can only return 'this'", stmt.Keyword)
			}
			r.resolveExpr(stmt.Value)
		}
	case r.inDtor:
		if stmt.Value != nil {
			r.errorBail("a destructor cannot return a value", stmt.Keyword)
		}
	case stmt.Value == nil:
		if r.currentFunction.ReturnType.Data().Kind != ast.TypeNull {
			r.error("only functions returning 'null' may use an empty return", stmt.Keyword)
			r.note(fmt.Sprintf("the function returns '%s'", ast.TypeExprString(r.currentFunction.ReturnType)))
		}
	default:
		value := r.resolveExpr(stmt.Value)
		if !r.convertibleTo(r.currentFunction.ReturnType, value.Info, value.IsLvalue, stmt.Keyword, true) {
			r.error("returned value does not match the function's return type", stmt.Keyword)
			r.note(fmt.Sprintf("trying to convert from '%s' to '%s'",
				ast.TypeExprString(value.Info), ast.TypeExprString(r.currentFunction.ReturnType)))
		}
	}

	// Count the function's live frame slots at this return site.
	count := 0
	for i := len(r.values) - 1; i >= 0; i-- {
		if r.values[i].depth < stmt.Function.ScopeDepth {
			break
		}
		count++
	}
	stmt.LocalsPopped = count
}

func (r *Resolver) resolveIf(stmt *ast.IfStmt) {
	cond := r.resolveExpr(stmt.Cond)
	if kind := cond.Info.Data().Kind; kind != ast.TypeBool {
		r.error("if conditions must be bool", stmt.Keyword)
		r.note(fmt.Sprintf("the condition has type '%s'", ast.TypeExprString(cond.Info)))
	}
	r.resolveStmt(stmt.Then)
	if stmt.Else != nil {
		r.resolveStmt(stmt.Else)
	}
}

func (r *Resolver) resolveWhile(stmt *ast.WhileStmt) {
	cond := r.resolveExpr(stmt.Cond)
	if cond.Info.Data().Kind != ast.TypeBool {
		r.error("while conditions must be bool", stmt.Keyword)
	}

	wasInLoop := r.inLoop
	r.inLoop = true
	r.resolveStmt(stmt.Body)
	if stmt.Increment != nil {
		r.resolveStmt(stmt.Increment)
	}
	r.inLoop = wasInLoop
}

func (r *Resolver) resolveFor(stmt *ast.ForStmt) {
	r.beginScope()
	if stmt.Init != nil {
		r.resolveStmt(stmt.Init)
	}
	if stmt.Cond != nil {
		cond := r.resolveExpr(stmt.Cond)
		if cond.Info.Data().Kind != ast.TypeBool {
			r.error("for conditions must be bool", stmt.Keyword)
		}
	}

	wasInLoop := r.inLoop
	r.inLoop = true
	r.resolveStmt(stmt.Body)
	if stmt.Increment != nil {
		r.resolveStmt(stmt.Increment)
	}
	r.inLoop = wasInLoop
	r.endScope()
}

func (r *Resolver) resolveSwitch(stmt *ast.SwitchStmt) {
	cond := r.resolveExpr(stmt.Cond)

	wasInSwitch := r.inSwitch
	r.inSwitch = true
	defer func() { r.inSwitch = wasInSwitch }()

	for _, switchCase := range stmt.Cases {
		caseAttrs := r.resolveExpr(switchCase.Value)
		if !r.convertibleTo(stripQualifiers(cond.Info), caseAttrs.Info, caseAttrs.IsLvalue, stmt.Keyword, false) {
			r.error("case value cannot be compared with the switch condition", stmt.Keyword)
			r.note(fmt.Sprintf("condition has type '%s', case has type '%s'",
				ast.TypeExprString(cond.Info), ast.TypeExprString(caseAttrs.Info)))
		}
		r.resolveStmt(switchCase.Body)
	}
	if stmt.Default != nil {
		r.resolveStmt(stmt.Default)
	}
}
