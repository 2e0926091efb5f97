package bytecode

import (
	"fmt"

	"github.com/cwbudde/go-nyx/internal/ast"
)

func (c *Compiler) compileStmt(stmt ast.Stmt) {
	switch s := stmt.(type) {
	case *ast.BlockStmt:
		c.compileBlock(s)
	case *ast.BreakStmt:
		c.compileBreak(s)
	case *ast.ClassStmt:
		c.compileClass(s)
	case *ast.CommentStmt, *ast.ImportStmt, *ast.TypeStmt:
		// Nothing to emit.
	case *ast.ContinueStmt:
		c.compileContinue(s)
	case *ast.ExpressionStmt:
		c.compileExpressionStmt(s)
	case *ast.ForStmt:
		c.compileFor(s)
	case *ast.FunctionStmt:
		c.compileFunction(s)
	case *ast.IfStmt:
		c.compileIf(s)
	case *ast.ReturnStmt:
		c.compileReturn(s)
	case *ast.SwitchStmt:
		c.compileSwitch(s)
	case *ast.VarStmt:
		c.compileVar(s)
	case *ast.VarTupleStmt:
		c.compileVarTuple(s)
	case *ast.WhileStmt:
		c.compileWhile(s)
	default:
		panic(compileFatal{fmt.Sprintf("cannot compile statement %T", stmt)})
	}
}

func (c *Compiler) compileBlock(block *ast.BlockStmt) {
	c.beginScope()
	for _, stmt := range block.Stmts {
		c.compileStmt(stmt)
		// A return has already torn down the stack; code after it never
		// runs, so stop emitting and only forget the scope records.
		if _, isReturn := stmt.(*ast.ReturnStmt); isReturn {
			c.removeTopmostScope()
			return
		}
	}
	c.endScope()
}

func (c *Compiler) compileBreak(stmt *ast.BreakStmt) {
	loop := c.breakTarget()
	if loop == nil {
		panic(compileFatal{"break outside a loop or switch"})
	}
	c.destroyLocals(loop.scopeDepth + 1)
	idx := c.emitWith(OpJumpForward, 0, stmt.Keyword.Line)
	loop.breakJumps = append(loop.breakJumps, idx)
}

func (c *Compiler) compileContinue(stmt *ast.ContinueStmt) {
	loop := c.continueTarget()
	if loop == nil {
		panic(compileFatal{"continue outside a loop"})
	}
	c.destroyLocals(loop.scopeDepth + 1)
	idx := c.emitWith(OpJumpForward, 0, stmt.Keyword.Line)
	loop.continueJumps = append(loop.continueJumps, idx)
}

func (c *Compiler) compileClass(stmt *ast.ClassStmt) {
	for _, method := range stmt.Methods {
		c.compileFunction(method.Fn)
	}
}

func (c *Compiler) compileExpressionStmt(stmt *ast.ExpressionStmt) {
	c.compileExpr(stmt.Expr)
	attrs := stmt.Expr.Attrs()
	switch {
	case attrs.Info.Data().Kind == ast.TypeString:
		c.emit(OpPopString, 0)
	case ast.IsNontrivial(attrs.Info.Data().Kind):
		c.emit(OpPopList, 0)
	default:
		c.emit(OpPop, 0)
	}
}

func (c *Compiler) compileFunction(stmt *ast.FunctionStmt) {
	c.beginScope()
	c.fnDepths = append(c.fnDepths, c.scopeDepth)
	defer func() { c.fnDepths = c.fnDepths[:len(c.fnDepths)-1] }()

	fn := &RuntimeFunction{
		Name:  mangleFunction(stmt),
		Arity: len(stmt.Params),
	}
	for _, param := range stmt.Params {
		c.addToScope(param.Type)
	}

	previous := c.chunk
	c.chunk = &fn.Code
	c.compileBlock(stmt.Body)
	c.removeTopmostScope()

	if stmt.ReturnType.Data().Kind != ast.TypeNull && !stmt.IsConstructor() {
		endsWithReturn := false
		if n := len(stmt.Body.Stmts); n > 0 {
			_, endsWithReturn = stmt.Body.Stmts[n-1].(*ast.ReturnStmt)
		}
		if !endsWithReturn {
			c.emit(OpTrapReturn, stmt.Name.Line)
		}
	}

	c.compiled.Functions[fn.Name] = fn
	c.chunk = previous
}

func (c *Compiler) compileIf(stmt *ast.IfStmt) {
	c.compileExpr(stmt.Cond)
	if stmt.Cond.Attrs().Info.Data().IsRef {
		c.emit(OpDeref, stmt.Keyword.Line)
	}
	overThen := c.emitWith(OpPopJumpIfFalse, 0, stmt.Keyword.Line)

	c.compileStmt(stmt.Then)

	if stmt.Else != nil {
		overElse := c.emitWith(OpJumpForward, 0, stmt.Keyword.Line)
		c.patchJump(overThen)
		c.compileStmt(stmt.Else)
		c.patchJump(overElse)
	} else {
		c.patchJump(overThen)
	}
}

// compileReturn writes the return value into the reserved frame slot,
// destroys the function's body locals, then RETURNs with the arity so
// the VM releases the parameters.
func (c *Compiler) compileReturn(stmt *ast.ReturnStmt) {
	line := stmt.Keyword.Line
	fn := stmt.Function

	if stmt.Value != nil {
		c.compileExpr(stmt.Value)
		returnType := fn.ReturnType
		if ast.IsNontrivial(returnType.Data().Kind) && !returnType.Data().IsRef &&
			stmt.Value.Attrs().IsLvalue {
			c.emit(OpCopyList, line)
		}
	} else {
		c.emit(OpPushNull, line)
	}

	if fn.IsConstructor() || fn.IsDestructor() {
		// The instance already occupies slot 0.
		c.emit(OpPop, line)
	} else {
		c.emitWith(OpAssignLocal, 0, line)
		if fn.ReturnType.Data().Kind == ast.TypeString {
			c.emit(OpPopString, line)
		} else {
			c.emit(OpPop, line)
		}
	}

	// Tear down body locals only; RETURN itself releases the
	// parameters, which live at the function's own scope depth.
	c.destroyLocals(c.fnDepths[len(c.fnDepths)-1] + 1)
	c.emitWith(OpReturn, uint32(len(fn.Params)), line)
}

func (c *Compiler) compileSwitch(stmt *ast.SwitchStmt) {
	// The loop context doubles as the break-patch collector.
	loop := c.pushLoop(true)

	c.compileExpr(stmt.Cond)
	if stmt.Cond.Attrs().Info.Data().IsRef {
		c.emit(OpDeref, stmt.Keyword.Line)
	}

	jumps := make([]int, 0, len(stmt.Cases))
	for _, switchCase := range stmt.Cases {
		c.compileExpr(switchCase.Value)
		jumps = append(jumps, c.emitWith(OpPopJumpIfEqual, 0, stmt.Keyword.Line))
	}

	// No case matched: drop the condition and go to default (or past
	// the switch).
	switch {
	case stmt.Cond.Attrs().Info.Data().Kind == ast.TypeString:
		c.emit(OpPopString, stmt.Keyword.Line)
	case ast.IsNontrivial(stmt.Cond.Attrs().Info.Data().Kind):
		c.emit(OpPopList, stmt.Keyword.Line)
	default:
		c.emit(OpPop, stmt.Keyword.Line)
	}
	defaultJump := c.emitWith(OpJumpForward, 0, stmt.Keyword.Line)

	// Each arm jumps past the switch when it finishes; arms do not fall
	// through.
	endJumps := make([]int, 0, len(stmt.Cases))
	for i, switchCase := range stmt.Cases {
		c.patchJump(jumps[i])
		c.compileStmt(switchCase.Body)
		endJumps = append(endJumps, c.emitWith(OpJumpForward, 0, stmt.Keyword.Line))
	}
	c.patchJump(defaultJump)
	if stmt.Default != nil {
		c.compileStmt(stmt.Default)
	}

	for _, idx := range endJumps {
		c.patchJump(idx)
	}
	for _, breakIdx := range loop.breakJumps {
		c.patchJump(breakIdx)
	}
	c.popLoop()
}

func (c *Compiler) compileVar(stmt *ast.VarStmt) {
	line := stmt.Name.Line
	initInfo := stmt.Initializer.Attrs().Info

	if stmt.Type.Data().IsRef && !initInfo.Data().IsRef {
		c.makeRefTo(stmt.Initializer)
	} else {
		c.compileExpr(stmt.Initializer)
		if initInfo.Data().IsRef && !stmt.Type.Data().IsRef &&
			!ast.IsNontrivial(initInfo.Data().Kind) {
			c.emit(OpDeref, line)
		}
		c.emitConversion(stmt.Conversion, line)
	}
	if stmt.RequiresCopy {
		c.emit(OpCopyList, line)
	}
	c.addToScope(stmt.Type)
}

func (c *Compiler) compileVarTuple(stmt *ast.VarTupleStmt) {
	c.compileExpr(stmt.Initializer)
	if stmt.RequiresCopy {
		c.emit(OpCopyList, stmt.Token.Line)
	}
	tupleType := stmt.Type.(*ast.TupleType)
	c.compileIdentTuple(stmt.Names, tupleType)
	c.addIdentTupleToScope(stmt.Names)
}

// compileIdentTuple unpacks the tuple at the top of the stack into its
// destructured slots, in declaration order, then frees the tuple
// storage. Returns the number of slots produced.
func (c *Compiler) compileIdentTuple(tuple *ast.IdentTuple, typ *ast.TupleType) int {
	line := c.lastLine
	count := 0
	for i, elem := range tuple.Elems {
		c.emitWith(OpAccessFromTop, uint32(count+1), line)
		c.emitConstant(IntValue(int32(i)), line)
		if typ.Types[i].Data().IsRef || typ.IsRef {
			c.emit(OpMakeRefToIndex, line)
		} else {
			c.emit(OpMoveIndex, line)
		}

		if elem.Nested != nil {
			count += c.compileIdentTuple(elem.Nested, typ.Types[i].(*ast.TupleType))
		} else {
			count++
		}
	}

	// Rotate the unpacked values below the tuple, then drop it.
	for i := 0; i < count; i++ {
		c.emitWith(OpSwap, uint32(count-i), line)
	}
	c.emit(OpPopList, line)
	return count
}

func (c *Compiler) addIdentTupleToScope(tuple *ast.IdentTuple) {
	for _, elem := range tuple.Elems {
		if elem.Nested != nil {
			c.addIdentTupleToScope(elem.Nested)
		} else {
			c.addToScope(elem.Type)
		}
	}
}

// compileWhile emits the loop in condition-at-the-bottom form: jump to
// the condition, body, increment, condition, conditional back-jump.
func (c *Compiler) compileWhile(stmt *ast.WhileStmt) {
	loop := c.pushLoop(false)

	jumpToCond := c.emitWith(OpJumpForward, 0, stmt.Keyword.Line)
	loopStart := len(c.chunk.Code)

	c.compileStmt(stmt.Body)

	incrementIdx := len(c.chunk.Code)
	if stmt.Increment != nil {
		c.compileStmt(stmt.Increment)
	}

	conditionIdx := len(c.chunk.Code)
	c.compileExpr(stmt.Cond)
	if stmt.Cond.Attrs().Info.Data().IsRef {
		c.emit(OpDeref, stmt.Keyword.Line)
	}
	jumpBack := c.emitWith(OpPopJumpBackIfTrue, 0, stmt.Keyword.Line)
	loopEnd := len(c.chunk.Code)

	c.patchJumpTo(jumpBack, loopStart)
	c.patchJumpTo(jumpToCond, conditionIdx)
	for _, idx := range loop.continueJumps {
		c.patchJumpTo(idx, incrementIdx)
	}
	for _, idx := range loop.breakJumps {
		c.patchJumpTo(idx, loopEnd)
	}
	c.popLoop()
}

// compileFor wraps the while form in a scope holding the initializer.
func (c *Compiler) compileFor(stmt *ast.ForStmt) {
	c.beginScope()
	if stmt.Init != nil {
		c.compileStmt(stmt.Init)
	}

	cond := stmt.Cond
	if cond == nil {
		always := &ast.LiteralExpr{Value: ast.LiteralValue{Kind: ast.LitBool, Bool: true}}
		always.Attrs().Info = ast.NewPrimitive(ast.TypeBool, true, false)
		cond = always
	}
	c.compileWhile(&ast.WhileStmt{
		Keyword:   stmt.Keyword,
		Cond:      cond,
		Body:      stmt.Body,
		Increment: stmt.Increment,
	})
	c.endScope()
}
