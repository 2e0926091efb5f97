package bytecode

import (
	"fmt"
	"strconv"

	"github.com/cwbudde/go-nyx/internal/ast"
	"github.com/cwbudde/go-nyx/internal/lexer"
)

func (c *Compiler) compileExpr(expr ast.Expr) {
	switch e := expr.(type) {
	case *ast.AssignExpr:
		c.compileAssign(e)
	case *ast.BinaryExpr:
		c.compileBinary(e)
	case *ast.CallExpr:
		c.compileCall(e)
	case *ast.CommaExpr:
		c.compileComma(e)
	case *ast.GetExpr:
		c.compileGet(e)
	case *ast.GroupingExpr:
		c.compileExpr(e.Inner)
		if e.Inner.Attrs().Info.Data().IsRef {
			c.emit(OpDeref, e.Attrs().Token.Line)
		}
	case *ast.IndexExpr:
		c.compileIndex(e)
	case *ast.ListExpr:
		c.compileList(e)
	case *ast.ListAssignExpr:
		c.compileListAssign(e)
	case *ast.ListRepeatExpr:
		c.compileListRepeat(e)
	case *ast.LiteralExpr:
		c.compileLiteral(e)
	case *ast.LogicalExpr:
		c.compileLogical(e)
	case *ast.MoveExpr:
		c.compileMove(e)
	case *ast.ScopeAccessExpr:
		c.compileScopeAccess(e)
	case *ast.ScopeNameExpr:
		// Resolves entirely at compile time.
	case *ast.SetExpr:
		c.compileSet(e)
	case *ast.TernaryExpr:
		c.compileTernary(e)
	case *ast.ThisExpr:
		c.emitWith(OpAccessLocalList, 0, e.Keyword.Line)
	case *ast.TupleExpr:
		c.compileTuple(e)
	case *ast.UnaryExpr:
		c.compileUnary(e)
	case *ast.VariableExpr:
		c.compileVariable(e)
	default:
		panic(compileFatal{fmt.Sprintf("cannot compile expression %T", expr)})
	}
}

func (c *Compiler) compileLiteral(expr *ast.LiteralExpr) {
	line := expr.Attrs().Token.Line
	switch expr.Value.Kind {
	case ast.LitInt:
		c.emitConstant(IntValue(expr.Value.Int), line)
	case ast.LitFloat:
		c.emitConstant(FloatValue(expr.Value.Float), line)
	case ast.LitString:
		c.emitString(expr.Value.Str, line)
	case ast.LitBool:
		if expr.Value.Bool {
			c.emit(OpPushTrue, line)
		} else {
			c.emit(OpPushFalse, line)
		}
	case ast.LitNull:
		c.emit(OpPushNull, line)
	}
}

func (c *Compiler) compileVariable(expr *ast.VariableExpr) {
	line := expr.Name.Line
	switch expr.Kind {
	case ast.IdentLocal, ast.IdentGlobal:
		nontrivial := ast.IsNontrivial(expr.Attrs().Info.Data().Kind)
		var op OpCode
		switch {
		case expr.Kind == ast.IdentLocal && nontrivial:
			op = OpAccessLocalList
		case expr.Kind == ast.IdentLocal:
			op = OpAccessLocal
		case nontrivial:
			op = OpAccessGlobalList
		default:
			op = OpAccessGlobal
		}
		c.emit(op, line)
		c.emitStackSlot(expr.Attrs().StackSlot)
	case ast.IdentFunction:
		c.emitString(expr.Name.Lexeme, line)
		c.emit(OpLoadFunctionSameModule, line)
	default:
		panic(compileFatal{fmt.Sprintf("cannot compile a bare %v identifier", expr.Kind)})
	}
}

// makeRefTo emits a reference to an l-value: a variable slot, a list
// element or a member slot.
func (c *Compiler) makeRefTo(expr ast.Expr) {
	switch e := expr.(type) {
	case *ast.VariableExpr:
		if e.Kind == ast.IdentLocal {
			c.emit(OpMakeRefToLocal, e.Name.Line)
		} else {
			c.emit(OpMakeRefToGlobal, e.Name.Line)
		}
		c.emitStackSlot(e.Attrs().StackSlot)
	case *ast.IndexExpr:
		c.compileExpr(e.Object)
		c.compileExpr(e.Index)
		c.emit(OpMakeRefToIndex, e.Attrs().Token.Line)
	case *ast.GetExpr:
		c.compileExpr(e.Object)
		c.emitMemberIndex(e)
		c.emit(OpMakeRefToIndex, e.Attrs().Token.Line)
	case *ast.GroupingExpr:
		c.makeRefTo(e.Inner)
	default:
		panic(compileFatal{fmt.Sprintf("cannot take a reference to %T", expr)})
	}
}

// emitMemberIndex pushes the integer slot of a member or tuple access.
func (c *Compiler) emitMemberIndex(expr *ast.GetExpr) {
	if expr.Object.Attrs().Info.Data().Kind == ast.TypeTuple {
		index, _ := strconv.Atoi(expr.Name.Lexeme)
		c.emitConstant(IntValue(int32(index)), expr.Name.Line)
		return
	}
	class := expr.Object.Attrs().Class
	if class == nil {
		class = expr.Object.Attrs().Info.(*ast.UserDefinedType).Class
	}
	c.emitConstant(IntValue(int32(class.MemberMap[expr.Name.Lexeme])), expr.Name.Line)
}

func (c *Compiler) compileAssign(expr *ast.AssignExpr) {
	attrs := expr.Attrs()
	line := attrs.Token.Line
	local := expr.TargetKind == ast.IdentLocal

	compileRight := func() {
		c.compileExpr(expr.Value)
		valueInfo := expr.Value.Attrs().Info
		// Lists and their references share a representation, so only
		// primitive references need an explicit deref.
		if valueInfo.Data().IsRef && !ast.IsNontrivial(valueInfo.Data().Kind) {
			c.emit(OpDeref, line)
		}
		if expr.RequiresCopy {
			c.emit(OpCopyList, line)
		}
		c.emitConversion(expr.Conversion, line)
	}

	if attrs.Token.Type == lexer.Equal {
		compileRight()
		// Overwriting a list destroys the previous one; that work lives
		// off the hot path in the _LIST variants.
		if ast.IsNontrivial(attrs.Info.Data().Kind) {
			if local {
				c.emit(OpAssignLocalList, line)
			} else {
				c.emit(OpAssignGlobalList, line)
			}
		} else {
			if local {
				c.emit(OpAssignLocal, line)
			} else {
				c.emit(OpAssignGlobal, line)
			}
		}
		c.emitStackSlot(attrs.StackSlot)
		return
	}

	// Compound assignment: load, modify, store.
	if local {
		c.emit(OpAccessLocal, line)
	} else {
		c.emit(OpAccessGlobal, line)
	}
	c.emitStackSlot(attrs.StackSlot)
	if attrs.Info.Data().IsRef {
		c.emit(OpDeref, line)
	}
	compileRight()

	isFloat := attrs.Info.Data().Kind == ast.TypeFloat
	switch attrs.Token.Type {
	case lexer.PlusEqual:
		c.emit(pick(isFloat, OpFAdd, OpIAdd), line)
	case lexer.MinusEqual:
		c.emit(pick(isFloat, OpFSub, OpISub), line)
	case lexer.StarEqual:
		c.emit(pick(isFloat, OpFMul, OpIMul), line)
	case lexer.SlashEqual:
		c.emit(pick(isFloat, OpFDiv, OpIDiv), line)
	}

	if local {
		c.emit(OpAssignLocal, line)
	} else {
		c.emit(OpAssignGlobal, line)
	}
	c.emitStackSlot(attrs.StackSlot)
}

func pick(cond bool, a, b OpCode) OpCode {
	if cond {
		return a
	}
	return b
}

func (c *Compiler) compileBinary(expr *ast.BinaryExpr) {
	attrs := expr.Attrs()
	line := attrs.Token.Line
	leftInfo := expr.Left.Attrs().Info
	rightInfo := expr.Right.Attrs().Info
	requiresFloat := leftInfo.Data().Kind == ast.TypeFloat || rightInfo.Data().Kind == ast.TypeFloat

	compileLeft := func() {
		c.compileExpr(expr.Left)
		if leftInfo.Data().IsRef {
			c.emit(OpDeref, line)
		}
		if leftInfo.Data().Kind == ast.TypeInt && rightInfo.Data().Kind == ast.TypeFloat {
			c.emit(OpIntToFloat, line)
		}
	}
	compileRight := func() {
		c.compileExpr(expr.Right)
		if rightInfo.Data().IsRef {
			c.emit(OpDeref, line)
		}
		if leftInfo.Data().Kind == ast.TypeFloat && rightInfo.Data().Kind == ast.TypeInt {
			c.emit(OpIntToFloat, line)
		}
	}

	if attrs.Token.Type == lexer.DotDot || attrs.Token.Type == lexer.DotDotEqual {
		c.compileRange(expr, compileLeft, compileRight)
		return
	}

	compileLeft()
	compileRight()

	switch attrs.Token.Type {
	case lexer.LeftShift:
		if leftInfo.Data().Kind == ast.TypeList {
			c.emit(OpAppendList, line)
		} else {
			c.emit(OpShiftLeft, line)
		}
	case lexer.RightShift:
		if leftInfo.Data().Kind == ast.TypeList {
			c.emit(OpPopFromList, line)
		} else {
			c.emit(OpShiftRight, line)
		}
	case lexer.BitAnd:
		c.emit(OpBitAnd, line)
	case lexer.BitOr:
		c.emit(OpBitOr, line)
	case lexer.BitXor:
		c.emit(OpBitXor, line)
	case lexer.Percent:
		c.emit(pick(requiresFloat, OpFMod, OpIMod), line)
	case lexer.Plus:
		switch attrs.Info.Data().Kind {
		case ast.TypeString:
			c.emit(OpConcatenate, line)
		case ast.TypeFloat:
			c.emit(OpFAdd, line)
		default:
			c.emit(OpIAdd, line)
		}
	case lexer.Minus:
		c.emit(pick(requiresFloat, OpFSub, OpISub), line)
	case lexer.Star:
		c.emit(pick(requiresFloat, OpFMul, OpIMul), line)
	case lexer.Slash:
		c.emit(pick(requiresFloat, OpFDiv, OpIDiv), line)
	case lexer.EqualEqual, lexer.BangEqual:
		if isStructuralKind(leftInfo.Data().Kind) {
			c.emit(OpEqualSL, line)
		} else {
			c.emit(OpEqual, line)
		}
		if attrs.Token.Type == lexer.BangEqual {
			c.emit(OpNot, line)
		}
	case lexer.Greater:
		c.emit(OpGreater, line)
	case lexer.Less:
		c.emit(OpLesser, line)
	case lexer.GreaterEqual:
		c.emit(OpLesser, line)
		c.emit(OpNot, line)
	case lexer.LessEqual:
		c.emit(OpGreater, line)
		c.emit(OpNot, line)
	default:
		panic(compileFatal{fmt.Sprintf("cannot compile binary operator %q", attrs.Token.Lexeme)})
	}
}

// isStructuralKind selects the structural comparison that also releases
// its temporary operands. The resolver guarantees both operands are
// temporaries at these sites.
func isStructuralKind(kind ast.Type) bool {
	return kind == ast.TypeString || kind == ast.TypeList || kind == ast.TypeTuple
}

// compileRange lowers `a .. b` / `a ..= b` into an inline loop that
// appends a, a+1, ... into a fresh list kept on the stack.
func (c *Compiler) compileRange(expr *ast.BinaryExpr, compileLeft, compileRight func()) {
	line := expr.Attrs().Token.Line

	c.emitWith(OpMakeList, 0, line)
	compileLeft()
	compileRight()

	jumpToCond := c.emitWith(OpJumpForward, 0, line)

	// list.append(x)
	loopStart := c.emitWith(OpAccessFromTop, 3, line)
	c.emitWith(OpAccessFromTop, 3, line)
	c.emit(OpAppendList, line)
	c.emit(OpPop, line)

	// x = x + 1
	c.emitWith(OpAccessFromTop, 2, line)
	c.emitConstant(IntValue(1), line)
	c.emit(OpIAdd, line)
	c.emitWith(OpAssignFromTop, 3, line)
	c.emit(OpPop, line)

	// x < y, or !(x > y) for an inclusive range
	condition := c.emitWith(OpAccessFromTop, 2, line)
	c.emitWith(OpAccessFromTop, 2, line)
	if expr.Attrs().Token.Type == lexer.DotDot {
		c.emit(OpLesser, line)
	} else {
		c.emit(OpGreater, line)
		c.emit(OpNot, line)
	}
	jumpBack := c.emitWith(OpPopJumpBackIfTrue, 0, line)

	c.emit(OpPop, line)
	c.emit(OpPop, line)

	c.patchJumpTo(jumpToCond, condition)
	c.patchJumpTo(jumpBack, loopStart)
}

func (c *Compiler) compileLogical(expr *ast.LogicalExpr) {
	attrs := expr.Attrs()
	line := attrs.Token.Line

	c.compileExpr(expr.Left)
	if expr.Left.Attrs().Info.Data().IsRef {
		c.emit(OpDeref, line)
	}

	var jumpIdx int
	if attrs.Token.Type == lexer.PipePipe || attrs.Token.Type == lexer.KwOr {
		jumpIdx = c.emitWith(OpJumpIfTrue, 0, line)
	} else {
		jumpIdx = c.emitWith(OpJumpIfFalse, 0, line)
	}
	c.emit(OpPop, line)
	c.compileExpr(expr.Right)
	c.patchJump(jumpIdx)
}

func (c *Compiler) compileUnary(expr *ast.UnaryExpr) {
	line := expr.Oper.Line

	if expr.Oper.Type != lexer.PlusPlus && expr.Oper.Type != lexer.MinusMinus {
		c.compileExpr(expr.Right)
		if expr.Right.Attrs().Info.Data().IsRef {
			c.emit(OpDeref, line)
		}
	}

	switch expr.Oper.Type {
	case lexer.Tilde:
		c.emit(OpBitNot, line)
	case lexer.Bang, lexer.KwNot:
		c.emit(OpNot, line)
	case lexer.Minus:
		c.emit(pick(expr.Right.Attrs().Info.Data().Kind == ast.TypeFloat, OpFNeg, OpINeg), line)
	case lexer.PlusPlus, lexer.MinusMinus:
		variable := expr.Right.(*ast.VariableExpr)
		local := variable.Kind == ast.IdentLocal

		if expr.Postfix {
			// The result is the value before the step.
			c.emit(pick(local, OpAccessLocal, OpAccessGlobal), line)
			c.emitStackSlot(variable.Attrs().StackSlot)
			if variable.Attrs().Info.Data().IsRef {
				c.emit(OpDeref, line)
			}
		}

		c.emit(pick(local, OpAccessLocal, OpAccessGlobal), line)
		c.emitStackSlot(variable.Attrs().StackSlot)
		if variable.Attrs().Info.Data().IsRef {
			c.emit(OpDeref, line)
		}
		if variable.Attrs().Info.Data().Kind == ast.TypeFloat {
			c.emitConstant(FloatValue(1), line)
			c.emit(pick(expr.Oper.Type == lexer.PlusPlus, OpFAdd, OpFSub), line)
		} else {
			c.emitConstant(IntValue(1), line)
			c.emit(pick(expr.Oper.Type == lexer.PlusPlus, OpIAdd, OpISub), line)
		}
		c.emit(pick(local, OpAssignLocal, OpAssignGlobal), line)
		c.emitStackSlot(variable.Attrs().StackSlot)
		if expr.Postfix {
			c.emit(OpPop, line)
		}
	}
}

func (c *Compiler) compileTernary(expr *ast.TernaryExpr) {
	line := expr.Attrs().Token.Line

	c.compileExpr(expr.Cond)
	if expr.Cond.Attrs().Info.Data().IsRef {
		c.emit(OpDeref, line)
	}
	overMiddle := c.emitWith(OpPopJumpIfFalse, 0, line)

	c.compileExpr(expr.Middle)
	overRight := c.emitWith(OpJumpForward, 0, line)

	c.patchJump(overMiddle)
	c.compileExpr(expr.Right)
	c.patchJump(overRight)
}

func (c *Compiler) compileComma(expr *ast.CommaExpr) {
	for i, operand := range expr.Exprs {
		c.compileExpr(operand)
		if i == len(expr.Exprs)-1 {
			break
		}
		attrs := operand.Attrs()
		switch {
		case attrs.Info.Data().Kind == ast.TypeString:
			c.emit(OpPopString, attrs.Token.Line)
		case ast.IsNontrivial(attrs.Info.Data().Kind) && !attrs.IsLvalue:
			c.emit(OpPopList, attrs.Token.Line)
		default:
			c.emit(OpPop, attrs.Token.Line)
		}
	}
}

func (c *Compiler) compileIndex(expr *ast.IndexExpr) {
	line := expr.Attrs().Token.Line
	objectAttrs := expr.Object.Attrs()

	c.compileExpr(expr.Object)
	if objectAttrs.Info.Data().IsRef && objectAttrs.Info.Data().Kind == ast.TypeString {
		c.emit(OpDeref, line)
	}
	if !objectAttrs.IsLvalue {
		// Keep the temporary below while indexing, then free it.
		c.emitWith(OpAccessFromTop, 1, line)
	}

	c.compileExpr(expr.Index)
	if expr.Index.Attrs().Info.Data().IsRef {
		c.emit(OpDeref, line)
	}

	if objectAttrs.Info.Data().Kind == ast.TypeList {
		c.emit(OpCheckListIndex, line)
		c.emit(OpIndexList, line)
	} else {
		c.emit(OpCheckStringIndex, line)
		c.emit(OpIndexString, line)
	}

	if !objectAttrs.IsLvalue {
		c.emitWith(OpSwap, 1, line)
		if objectAttrs.Info.Data().Kind == ast.TypeString {
			c.emit(OpPopString, line)
		} else {
			c.emit(OpPopList, line)
		}
	}
}

func (c *Compiler) compileGet(expr *ast.GetExpr) {
	line := expr.Name.Line
	objectAttrs := expr.Object.Attrs()

	c.compileExpr(expr.Object)
	if !objectAttrs.IsLvalue {
		c.emitWith(OpAccessFromTop, 1, line)
	}

	c.emitMemberIndex(expr)
	c.emit(OpIndexList, line)

	if !objectAttrs.IsLvalue {
		c.emitWith(OpSwap, 1, line)
		if objectAttrs.Info.Data().Kind == ast.TypeClass {
			class := objectAttrs.Class
			if class == nil {
				class = objectAttrs.Info.(*ast.UserDefinedType).Class
			}
			c.emitDestructorCall(class, line)
		}
		c.emit(OpPopList, line)
	}
}

func (c *Compiler) compileSet(expr *ast.SetExpr) {
	line := expr.Attrs().Token.Line

	get := &ast.GetExpr{Object: expr.Object, Name: expr.Name}

	c.compileExpr(expr.Object)
	c.emitMemberIndex(get)
	c.compileExpr(expr.Value)
	valueInfo := expr.Value.Attrs().Info
	if valueInfo.Data().IsRef && !ast.IsNontrivial(valueInfo.Data().Kind) {
		c.emit(OpDeref, line)
	}
	c.emitConversion(expr.Conversion, line)
	if expr.RequiresCopy {
		c.emit(OpCopyList, line)
	}
	c.emit(OpAssignList, line)
}

func (c *Compiler) compileListAssign(expr *ast.ListAssignExpr) {
	attrs := expr.Attrs()
	line := attrs.Token.Line

	c.compileExpr(expr.List.Object)
	c.compileExpr(expr.List.Index)
	if expr.List.Index.Attrs().Info.Data().IsRef {
		c.emit(OpDeref, line)
	}
	c.emit(OpCheckListIndex, line)

	if attrs.Token.Type == lexer.Equal {
		c.compileExpr(expr.Value)
		valueInfo := expr.Value.Attrs().Info
		if valueInfo.Data().IsRef && !ast.IsNontrivial(valueInfo.Data().Kind) {
			c.emit(OpDeref, line)
		}
		if expr.RequiresCopy {
			c.emit(OpCopyList, line)
		}
		c.emitConversion(expr.Conversion, line)
		c.emit(OpAssignList, line)
		return
	}

	// Compound: read the element (the index was checked above), apply
	// the operation, store back.
	c.compileExpr(expr.List.Object)
	c.compileExpr(expr.List.Index)
	if expr.List.Index.Attrs().Info.Data().IsRef {
		c.emit(OpDeref, line)
	}
	c.emit(OpIndexList, line)

	c.compileExpr(expr.Value)
	c.emitConversion(expr.Conversion, line)

	contained := expr.List.Object.Attrs().Info.(*ast.ListType).Contained
	isFloat := contained.Data().Kind == ast.TypeFloat
	switch attrs.Token.Type {
	case lexer.PlusEqual:
		c.emit(pick(isFloat, OpFAdd, OpIAdd), line)
	case lexer.MinusEqual:
		c.emit(pick(isFloat, OpFSub, OpISub), line)
	case lexer.StarEqual:
		c.emit(pick(isFloat, OpFMul, OpIMul), line)
	case lexer.SlashEqual:
		c.emit(pick(isFloat, OpFDiv, OpIDiv), line)
	}
	c.emit(OpAssignList, line)
}

func (c *Compiler) compileList(expr *ast.ListExpr) {
	line := expr.Bracket.Line
	c.emitWith(OpMakeList, uint32(len(expr.Elements)), line)

	refElements := expr.Type.Contained.Data().IsRef
	for i, element := range expr.Elements {
		elemLine := element.Value.Attrs().Token.Line
		c.emitWith(OpAccessFromTop, 1, line)
		c.emitConstant(IntValue(int32(i)), elemLine)

		switch {
		case !refElements:
			c.compileExpr(element.Value)
			c.emitConversion(element.Conversion, elemLine)
			if element.Value.Attrs().Info.Data().IsRef &&
				!ast.IsNontrivial(element.Value.Attrs().Info.Data().Kind) {
				c.emit(OpDeref, elemLine)
			}
		case element.Value.Attrs().IsLvalue:
			c.makeRefTo(element.Value)
		default:
			// A reference element not binding to an l-value.
			c.compileExpr(element.Value)
			c.emitConversion(element.Conversion, elemLine)
		}

		if element.RequiresCopy {
			c.emit(OpCopyList, elemLine)
		}
		c.emit(OpAssignList, elemLine)
		if expr.Type.Contained.Data().Kind == ast.TypeString {
			c.emit(OpPopString, elemLine)
		} else {
			c.emit(OpPop, elemLine)
		}
	}
}

func (c *Compiler) compileTuple(expr *ast.TupleExpr) {
	line := expr.Brace.Line
	c.emitWith(OpMakeList, uint32(len(expr.Elements)), line)

	for i, element := range expr.Elements {
		elemLine := element.Value.Attrs().Token.Line
		c.emitWith(OpAccessFromTop, 1, line)
		c.emitConstant(IntValue(int32(i)), elemLine)

		if expr.Type.Types[i].Data().IsRef && element.Value.Attrs().IsLvalue {
			c.makeRefTo(element.Value)
		} else {
			c.compileExpr(element.Value)
		}

		if element.RequiresCopy {
			c.emit(OpCopyList, elemLine)
		}
		c.emitConversion(element.Conversion, elemLine)
		c.emit(OpAssignList, elemLine)
		if expr.Type.Types[i].Data().Kind == ast.TypeString {
			c.emit(OpPopString, elemLine)
		} else {
			c.emit(OpPop, elemLine)
		}
	}
}

// compileListRepeat lowers `[elem; count]` into a fill loop over a
// fresh list.
func (c *Compiler) compileListRepeat(expr *ast.ListRepeatExpr) {
	line := expr.Bracket.Line

	c.emitWith(OpMakeList, 0, line)
	c.compileExpr(expr.Quantity.Value)
	c.emitConversion(expr.Quantity.Conversion, line)
	c.emitConstant(IntValue(0), line)

	jumpToCond := c.emitWith(OpJumpForward, 0, line)

	loopStart := c.emitWith(OpAccessFromTop, 3, line)
	c.compileExpr(expr.Element.Value)
	c.emitConversion(expr.Element.Conversion, line)
	if expr.Element.RequiresCopy {
		c.emit(OpCopyList, line)
	}
	c.emit(OpAppendList, line)
	c.emit(OpPop, line)

	c.emitWith(OpAccessFromTop, 1, line)
	c.emitConstant(IntValue(1), line)
	c.emit(OpIAdd, line)
	c.emitWith(OpAssignFromTop, 2, line)
	c.emit(OpPop, line)

	condition := c.emitWith(OpAccessFromTop, 1, line)
	c.emitWith(OpAccessFromTop, 3, line)
	c.emit(OpLesser, line)
	jumpBack := c.emitWith(OpPopJumpBackIfTrue, 0, line)

	// Drop the counter and the bound, leaving the list.
	c.emit(OpPop, line)
	c.emit(OpPop, line)

	c.patchJumpTo(jumpToCond, condition)
	c.patchJumpTo(jumpBack, loopStart)
}

func (c *Compiler) compileMove(expr *ast.MoveExpr) {
	line := expr.Attrs().Token.Line
	switch inner := expr.Inner.(type) {
	case *ast.VariableExpr:
		if inner.Kind == ast.IdentLocal {
			c.emit(OpMoveLocal, line)
		} else {
			c.emit(OpMoveGlobal, line)
		}
		c.emitStackSlot(inner.Attrs().StackSlot)
	case *ast.IndexExpr:
		c.compileExpr(inner.Object)
		c.compileExpr(inner.Index)
		c.emit(OpCheckListIndex, line)
		c.emit(OpMoveIndex, line)
	case *ast.GetExpr:
		c.compileExpr(inner.Object)
		c.emitMemberIndex(inner)
		c.emit(OpMoveIndex, line)
	default:
		panic(compileFatal{fmt.Sprintf("cannot move out of %T", expr.Inner)})
	}
}

// isCtorCall reports whether the call constructs an instance: its
// callee is a scope access whose final name is the class itself.
func isCtorCall(fn ast.Expr) bool {
	access, ok := fn.(*ast.ScopeAccessExpr)
	if !ok || fn.Attrs().Class == nil {
		return false
	}
	return access.Name.Lexeme == fn.Attrs().Class.Name.Lexeme
}

func (c *Compiler) compileCall(expr *ast.CallExpr) {
	line := expr.Attrs().Token.Line

	if expr.IsNative {
		c.compileNativeCall(expr)
		return
	}

	if isCtorCall(expr.Function) {
		// The freshly built instance doubles as the return slot.
		c.makeInstance(expr.Function.Attrs().Class)
	} else {
		c.emit(OpPushNull, line)
	}

	fn := expr.Function.Attrs().Func
	for i, arg := range expr.Args {
		param := fn.Params[i]
		argInfo := arg.Value.Attrs().Info
		switch {
		case param.Type.Data().IsRef && !argInfo.Data().IsRef:
			c.makeRefTo(arg.Value)
		case !param.Type.Data().IsRef && argInfo.Data().IsRef &&
			!ast.IsNontrivial(argInfo.Data().Kind):
			c.compileExpr(arg.Value)
			c.emit(OpDeref, arg.Value.Attrs().Token.Line)
		default:
			c.compileExpr(arg.Value)
		}

		c.emitConversion(arg.Conversion, arg.Value.Attrs().Token.Line)
		if arg.RequiresCopy {
			c.emit(OpCopyList, arg.Value.Attrs().Token.Line)
		}
	}

	c.compileExpr(expr.Function)
	c.emit(OpCallFunction, line)
}

// compileNativeCall pushes a return slot and the raw arguments, calls
// the native, then tears the arguments down in reverse order.
func (c *Compiler) compileNativeCall(expr *ast.CallExpr) {
	line := expr.Attrs().Token.Line
	called := expr.Function.(*ast.VariableExpr)

	c.emit(OpPushNull, line)
	for _, arg := range expr.Args {
		c.compileExpr(arg.Value)
		c.emitConversion(arg.Conversion, arg.Value.Attrs().Token.Line)
	}

	c.emitString(called.Name.Lexeme, called.Name.Line)
	c.emit(OpCallNative, line)

	for i := len(expr.Args) - 1; i >= 0; i-- {
		arg := expr.Args[i]
		attrs := arg.Value.Attrs()
		argLine := attrs.Token.Line
		switch {
		case ast.IsNontrivial(attrs.Info.Data().Kind) && !attrs.IsLvalue && !attrs.Info.Data().IsRef:
			if containsDestructible(attrs.Info) {
				c.ensureAggregateDestructor(attrs.Info)
				c.emitAggregateDtorCall(attrs.Info)
			}
			c.emit(OpPopList, argLine)
		case attrs.Info.Data().Kind == ast.TypeString:
			c.emit(OpPopString, argLine)
		default:
			c.emit(OpPop, argLine)
		}
	}
}

func (c *Compiler) compileScopeAccess(expr *ast.ScopeAccessExpr) {
	attrs := expr.Attrs()
	line := attrs.Token.Line
	scopeAttrs := expr.Scope.Attrs()

	switch scopeAttrs.ScopeKind {
	case ast.ScopeAccessModuleClass:
		// module::Class::method
		c.emitString(mangleMemberAccess(scopeAttrs.Class, expr.Name.Lexeme), line)
		c.emitWith(OpLoadFunctionModuleIndex, uint32(scopeAttrs.ModuleIndex), line)

	case ast.ScopeAccessModule:
		// module::function
		c.emitString(expr.Name.Lexeme, expr.Name.Line)
		c.emitWith(OpLoadFunctionModuleIndex, uint32(scopeAttrs.ModuleIndex), line)

	case ast.ScopeAccessClass:
		// Class::method, same module or via the class's home module.
		class := scopeAttrs.Class
		c.emitString(mangleMemberAccess(class, expr.Name.Lexeme), line)
		if class.ModulePath == c.module.Path {
			c.emit(OpLoadFunctionSameModule, line)
		} else {
			index, ok := c.pathIndex[class.ModulePath]
			if !ok {
				panic(compileFatal{fmt.Sprintf("class %q belongs to an unknown module", class.Name.Lexeme)})
			}
			c.emitWith(OpLoadFunctionModuleIndex, uint32(index), line)
		}

	default:
		panic(compileFatal{"scope access did not resolve to a loadable function"})
	}
}
