package bytecode

import (
	"fmt"

	"github.com/cwbudde/go-nyx/internal/ast"
	"github.com/cwbudde/go-nyx/internal/errors"
)

const aggregateDtorPrefix = "__destruct_"

// compileFatal aborts emission; constant-table overflow and oversized
// jumps are not recoverable.
type compileFatal struct {
	msg string
}

type scopeEntry struct {
	typ   ast.TypeExpr
	depth int
}

type loopContext struct {
	breakJumps    []int
	continueJumps []int
	scopeDepth    int
	isSwitch      bool
}

// Compiler lowers resolved modules into RuntimeModules. One compiler is
// shared across a compile context so module indices and class homes
// resolve consistently.
type Compiler struct {
	logger    *errors.Logger
	modules   []*ast.Module
	pathIndex map[string]int

	module      *ast.Module
	moduleIndex int
	compiled    *RuntimeModule
	chunk       *Chunk

	scopeDepth int
	scopes     []scopeEntry
	loops      []*loopContext
	fnDepths   []int

	trackingSuppressed bool
	lastLine           int
}

// NewCompiler creates a compiler over the compile context's modules.
// pathIndex maps module paths to their stable indices.
func NewCompiler(logger *errors.Logger, modules []*ast.Module, pathIndex map[string]int) *Compiler {
	return &Compiler{
		logger:    logger,
		modules:   modules,
		pathIndex: pathIndex,
	}
}

// Compile lowers one resolved module. The main module additionally gets
// a synthesized call to its `main` function at the end of its top-level
// chunk. Fatal compile errors (24-bit overflows) abort with an error.
func (c *Compiler) Compile(module *ast.Module, moduleIndex int, isMain bool) (compiled *RuntimeModule, err error) {
	defer func() {
		if r := recover(); r != nil {
			fatal, ok := r.(compileFatal)
			if !ok {
				panic(r)
			}
			c.logger.FatalError(fatal.msg)
			compiled, err = nil, fmt.Errorf("compile error: %s", fatal.msg)
		}
	}()

	c.module = module
	c.moduleIndex = moduleIndex
	c.compiled = NewRuntimeModule(module.Name, module.Path)
	c.scopes = c.scopes[:0]
	c.scopeDepth = 0
	c.loops = c.loops[:0]

	c.beginScope()
	c.chunk = &c.compiled.TopLevel
	c.emit(OpPushNull, 0)

	for _, stmt := range module.Statements {
		c.compileStmt(stmt)
	}

	if isMain {
		if _, ok := module.Functions["main"]; ok {
			line := c.lastLine
			c.emit(OpPushNull, line)
			c.emitString("main", line)
			c.emit(OpLoadFunctionSameModule, line)
			c.emit(OpCallFunction, line)
			c.emit(OpPop, line)
		}
	}
	c.emit(OpHalt, 0)

	// The teardown chunk releases module globals in reverse declaration
	// order, then the reserved null below them.
	c.chunk = &c.compiled.Teardown
	c.endScope()
	c.emit(OpPop, 0)
	c.emit(OpHalt, 0)

	c.compiled.BindFunctionModules(moduleIndex)
	return c.compiled, nil
}

// ============================================================================
// Emission helpers
// ============================================================================

func (c *Compiler) emit(op OpCode, line int) int {
	if line > 0 {
		c.lastLine = line
	}
	return c.chunk.Emit(op, c.noteLine(line))
}

func (c *Compiler) emitWith(op OpCode, operand uint32, line int) int {
	if operand > MaxOperand {
		panic(compileFatal{fmt.Sprintf("operand %d does not fit in 24 bits", operand)})
	}
	if line > 0 {
		c.lastLine = line
	}
	return c.chunk.EmitWith(op, operand, c.noteLine(line))
}

func (c *Compiler) noteLine(line int) int {
	if line <= 0 {
		return c.lastLine
	}
	return line
}

// emitStackSlot encodes a frame slot: operand 0 is the reserved return
// slot, so resolver slots shift up by one.
func (c *Compiler) emitStackSlot(slot int) {
	c.patchLastOperand(uint32(slot + 1))
}

func (c *Compiler) patchLastOperand(operand uint32) {
	if operand > MaxOperand {
		panic(compileFatal{"too many variables in the current scope"})
	}
	index := len(c.chunk.Code) - 1
	c.chunk.Patch(index, operand)
}

func (c *Compiler) emitConstant(v Value, line int) {
	index := c.chunk.AddConstant(v)
	if index > MaxOperand {
		// The constants limit stays (1<<24)-1 per table, so the
		// index below never needs an EXT_ARG prefix.
		panic(compileFatal{"constant table overflow"})
	}
	c.chunk.EmitIndexed(OpConstant, index, c.noteLine(line))
}

func (c *Compiler) emitString(s string, line int) {
	index := c.chunk.AddString(s)
	if index > MaxOperand {
		panic(compileFatal{"string table overflow"})
	}
	c.chunk.EmitIndexed(OpConstantString, index, c.noteLine(line))
}

func (c *Compiler) emitConversion(conv ast.NumericConversion, line int) {
	switch conv {
	case ast.ConvIntToFloat:
		c.emit(OpIntToFloat, line)
	case ast.ConvFloatToInt:
		c.emit(OpFloatToInt, line)
	}
}

// patchJump writes a forward jump distance into the instruction at
// jumpIdx: the distance from the instruction after the jump to the
// current end of code.
func (c *Compiler) patchJump(jumpIdx int) {
	c.patchJumpTo(jumpIdx, len(c.chunk.Code))
}

func (c *Compiler) patchJumpTo(jumpIdx, target int) {
	var amount int
	if target > jumpIdx {
		amount = target - jumpIdx - 1
	} else {
		amount = jumpIdx - target + 1
	}
	if amount > MaxOperand {
		panic(compileFatal{"jump distance exceeds the 24-bit operand range"})
	}
	c.chunk.Patch(jumpIdx, uint32(amount))
}

// ============================================================================
// Scope discipline
// ============================================================================

func (c *Compiler) beginScope() {
	c.scopeDepth++
}

// removeTopmostScope forgets the current scope's records without
// emitting teardown; a return statement has already destroyed them.
func (c *Compiler) removeTopmostScope() {
	for len(c.scopes) > 0 && c.scopes[len(c.scopes)-1].depth == c.scopeDepth {
		c.scopes = c.scopes[:len(c.scopes)-1]
	}
	c.scopeDepth--
}

// endScope emits teardown for the scope's locals in reverse declaration
// order, then drops their records.
func (c *Compiler) endScope() {
	c.destroyLocals(c.scopeDepth)
	c.removeTopmostScope()
}

// destroyLocals emits one teardown instruction per local at or below
// untilDepth, in reverse declaration order, without forgetting the
// records: the same locals may need teardown again on another control
// path.
func (c *Compiler) destroyLocals(untilDepth int) {
	for i := len(c.scopes) - 1; i >= 0 && c.scopes[i].depth >= untilDepth; i-- {
		c.destroyValue(c.scopes[i].typ)
	}
}

// destroyValue emits the teardown for one stack value of the given
// type: strings release their cache entry, owning aggregates run their
// destructors then free, references pop plain.
func (c *Compiler) destroyValue(typ ast.TypeExpr) {
	data := typ.Data()
	switch {
	case data.Kind == ast.TypeString && !data.IsRef:
		c.emit(OpPopString, 0)
	case ast.IsNontrivial(data.Kind) && !data.IsRef:
		if data.Kind == ast.TypeClass {
			class := typ.(*ast.UserDefinedType).Class
			line := class.Dtor.Name.Line
			c.emitDestructorCall(class, line)
			for i := len(class.Members) - 1; i >= 0; i-- {
				member := class.Members[i]
				if member.Var.Type.Data().Kind != ast.TypeClass {
					continue
				}
				c.emitWith(OpAccessFromTop, 1, line)
				c.emitConstant(IntValue(int32(i)), line)
				c.emit(OpIndexList, line)
				c.emitDestructorCall(member.Var.Type.(*ast.UserDefinedType).Class, line)
				c.emit(OpPop, line)
			}
		} else if containsDestructible(typ) {
			c.ensureAggregateDestructor(typ)
			c.emitAggregateDtorCall(typ)
		}
		c.emit(OpPopList, 0)
	default:
		c.emit(OpPop, 0)
	}
}

func (c *Compiler) addToScope(typ ast.TypeExpr) {
	if c.trackingSuppressed {
		return
	}
	c.scopes = append(c.scopes, scopeEntry{typ: typ, depth: c.scopeDepth})
}

func (c *Compiler) suppressTracking() bool {
	previous := c.trackingSuppressed
	c.trackingSuppressed = true
	return previous
}

func (c *Compiler) restoreTracking(previous bool) {
	c.trackingSuppressed = previous
}

// ============================================================================
// Loops
// ============================================================================

func (c *Compiler) pushLoop(isSwitch bool) *loopContext {
	ctx := &loopContext{scopeDepth: c.scopeDepth, isSwitch: isSwitch}
	c.loops = append(c.loops, ctx)
	return ctx
}

func (c *Compiler) popLoop() {
	c.loops = c.loops[:len(c.loops)-1]
}

// breakTarget is the innermost loop or switch.
func (c *Compiler) breakTarget() *loopContext {
	if len(c.loops) == 0 {
		return nil
	}
	return c.loops[len(c.loops)-1]
}

// continueTarget is the innermost loop; a switch in between collects
// breaks but never continues.
func (c *Compiler) continueTarget() *loopContext {
	for i := len(c.loops) - 1; i >= 0; i-- {
		if !c.loops[i].isSwitch {
			return c.loops[i]
		}
	}
	return nil
}

// ============================================================================
// Functions, destructors, instances
// ============================================================================

func mangleFunction(fn *ast.FunctionStmt) string {
	if fn.Class != nil {
		return fn.Class.Name.Lexeme + "@" + fn.Name.Lexeme
	}
	return fn.Name.Lexeme
}

func mangleMemberAccess(class *ast.ClassStmt, name string) string {
	return class.Name.Lexeme + "@" + name
}

// emitDestructorCall invokes a class's destructor on the instance at
// the top of the stack. The instance itself serves as the callee's
// frame slot 0, so no return slot is reserved.
func (c *Compiler) emitDestructorCall(class *ast.ClassStmt, line int) {
	c.emitString(mangleFunction(class.Dtor), line)
	if class.ModulePath == c.module.Path {
		c.emit(OpLoadFunctionSameModule, line)
	} else {
		index, ok := c.pathIndex[class.ModulePath]
		if !ok {
			panic(compileFatal{fmt.Sprintf("class %q belongs to an unknown module", class.Name.Lexeme)})
		}
		c.emitWith(OpLoadFunctionModuleIndex, uint32(index), line)
	}
	c.emit(OpCallFunction, line)
}

// containsDestructible reports whether an aggregate type transitively
// contains a class type, requiring a synthesized destructor.
func containsDestructible(typ ast.TypeExpr) bool {
	switch t := typ.(type) {
	case *ast.ListType:
		switch t.Contained.Data().Kind {
		case ast.TypeList, ast.TypeTuple:
			return containsDestructible(t.Contained)
		case ast.TypeClass:
			return true
		}
		return false
	case *ast.TupleType:
		for _, elem := range t.Types {
			switch elem.Data().Kind {
			case ast.TypeClass:
				return true
			case ast.TypeList, ast.TypeTuple:
				if containsDestructible(elem) {
					return true
				}
			}
		}
		return false
	default:
		return false
	}
}

func aggregateDtorName(typ ast.TypeExpr) string {
	return aggregateDtorPrefix + ast.ShortTypeSignature(typ)
}

func (c *Compiler) ensureAggregateDestructor(typ ast.TypeExpr) {
	if _, exists := c.compiled.Functions[aggregateDtorName(typ)]; !exists {
		c.generateAggregateDestructor(typ)
	}
}

// emitAggregateDtorCall invokes the synthesized destructor on the
// aggregate at the top of the stack.
func (c *Compiler) emitAggregateDtorCall(typ ast.TypeExpr) {
	line := c.lastLine
	c.emitString(aggregateDtorName(typ), line)
	c.emit(OpLoadFunctionSameModule, line)
	c.emit(OpCallFunction, line)
}

// generateAggregateDestructor synthesizes the helper that walks a list
// or tuple and destroys its class-typed contents. The helper is an
// ordinary function of the emitting module, called with the aggregate
// in frame slot 0.
func (c *Compiler) generateAggregateDestructor(typ ast.TypeExpr) {
	dtor := &RuntimeFunction{Name: aggregateDtorName(typ)}
	// Reserve the map slot first so mutually recursive shapes
	// terminate.
	c.compiled.Functions[dtor.Name] = dtor

	previous := c.chunk
	c.chunk = &dtor.Code

	switch t := typ.(type) {
	case *ast.ListType:
		c.generateListDestructorLoop(t)
	case *ast.TupleType:
		c.generateTupleDestructor(t)
	}

	c.chunk = previous
}

// generateListDestructorLoop emits:
//
//	var i = 0
//	var n = size(list)
//	while (i < n) { elem := move list[i]; if (elem != null) destroy(elem); ++i }
func (c *Compiler) generateListDestructorLoop(list *ast.ListType) {
	if kind := list.Contained.Data().Kind; kind == ast.TypeList || kind == ast.TypeTuple {
		c.ensureAggregateDestructor(list.Contained)
	}

	line := 1
	// Slot 1: the index. Slot 2: the size, via the size native.
	c.emitConstant(IntValue(0), line)
	c.emit(OpPushNull, line)
	c.emitWith(OpAccessLocalList, 0, line)
	c.emitString("size", line)
	c.emit(OpCallNative, line)
	c.emit(OpPop, line)

	jumpBegin := c.emitWith(OpJumpForward, 0, line)

	loopBegin := c.emitWith(OpAccessLocalList, 0, line)
	c.emitWith(OpAccessLocal, 1, line)
	c.emit(OpMoveIndex, line)

	// Skip elements already moved out.
	c.emitWith(OpAccessFromTop, 1, line)
	c.emit(OpPushNull, line)
	c.emit(OpEqual, line)
	c.emit(OpNot, line)
	jumpNull := c.emitWith(OpPopJumpIfFalse, 0, line)

	if kind := list.Contained.Data().Kind; kind == ast.TypeList || kind == ast.TypeTuple {
		c.emitAggregateDtorCall(list.Contained)
	} else {
		c.emitDestructorCall(list.Contained.(*ast.UserDefinedType).Class, line)
	}
	after := c.emit(OpPopList, line)

	c.emitWith(OpAccessLocal, 1, line)
	c.emitConstant(IntValue(1), line)
	c.emit(OpIAdd, line)
	c.emitWith(OpAssignLocal, 1, line)
	c.emit(OpPop, line)

	condition := c.emitWith(OpAccessLocal, 1, line)
	c.emitWith(OpAccessLocal, 2, line)
	c.emit(OpLesser, line)
	jumpBack := c.emitWith(OpPopJumpBackIfTrue, 0, line)

	c.emit(OpPop, line)
	c.emit(OpPop, line)
	c.emitWith(OpReturn, 0, line)

	c.patchJumpTo(jumpNull, after)
	c.patchJumpTo(jumpBack, loopBegin)
	c.patchJumpTo(jumpBegin, condition)
}

// generateTupleDestructor unrolls one destroy per destructible element.
func (c *Compiler) generateTupleDestructor(tuple *ast.TupleType) {
	line := 1
	for i, elem := range tuple.Types {
		kind := elem.Data().Kind
		destructible := kind == ast.TypeClass ||
			((kind == ast.TypeList || kind == ast.TypeTuple) && containsDestructible(elem))
		if !destructible {
			continue
		}

		c.emitWith(OpAccessLocalList, 0, line)
		c.emitConstant(IntValue(int32(i)), line)
		c.emit(OpMoveIndex, line)

		c.emitWith(OpAccessFromTop, 1, line)
		c.emit(OpPushNull, line)
		c.emit(OpEqual, line)
		c.emit(OpNot, line)
		jump := c.emitWith(OpPopJumpIfFalse, 0, line)

		if kind == ast.TypeClass {
			c.emitDestructorCall(elem.(*ast.UserDefinedType).Class, line)
		} else {
			c.ensureAggregateDestructor(elem)
			c.emitAggregateDtorCall(elem)
		}
		after := c.emit(OpPopList, line)
		c.patchJumpTo(jump, after)
	}
	c.emitWith(OpReturn, 0, line)
}

// makeInstance builds a class instance: a member-list whose slots run
// their default initializers. Variable tracking is suppressed so the
// initializers' temporaries do not register as scope locals.
func (c *Compiler) makeInstance(class *ast.ClassStmt) {
	previous := c.suppressTracking()

	c.emitWith(OpMakeList, uint32(len(class.Members)), class.Name.Line)
	for i, member := range class.Members {
		line := member.Var.Name.Line
		c.emitWith(OpAccessFromTop, 1, line)
		c.emitConstant(IntValue(int32(i)), line)
		c.compileStmt(member.Var)
		c.emit(OpAssignList, line)
		if member.Var.Type.Data().Kind == ast.TypeString {
			c.emit(OpPopString, line)
		} else {
			c.emit(OpPop, line)
		}
	}

	c.restoreTracking(previous)
}
