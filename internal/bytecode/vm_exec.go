package bytecode

import (
	"fmt"
	"math"
)

// dispatch is the interpreter loop: fetch one 32-bit word, split it
// into opcode and operand, execute. It returns when the current
// top-level/teardown chunk reaches HALT, or with a runtime error.
func (vm *VM) dispatch() error {
	for {
		if vm.ip >= len(vm.chunk.Code) {
			return vm.runtimeError("instruction pointer ran past the end of the chunk")
		}
		vm.traceState()

		inst := vm.chunk.Code[vm.ip]
		vm.ip++
		op := inst.Op()
		operand := inst.Operand() | vm.pendingExt<<24
		vm.pendingExt = 0

		switch op {
		case OpHalt:
			return nil

		case OpExtArg:
			vm.pendingExt = operand

		case OpPop:
			vm.pop()

		case OpConstant:
			if err := vm.push(vm.chunk.Constants[operand]); err != nil {
				return err
			}
		case OpPushTrue:
			if err := vm.push(BoolValue(true)); err != nil {
				return err
			}
		case OpPushFalse:
			if err := vm.push(BoolValue(false)); err != nil {
				return err
			}
		case OpPushNull:
			if err := vm.push(NullValue()); err != nil {
				return err
			}

		// Integer arithmetic
		case OpIAdd:
			b, a := vm.pop(), vm.pop()
			vm.push(IntValue(a.Int + b.Int))
		case OpISub:
			b, a := vm.pop(), vm.pop()
			vm.push(IntValue(a.Int - b.Int))
		case OpIMul:
			b, a := vm.pop(), vm.pop()
			vm.push(IntValue(a.Int * b.Int))
		case OpIDiv:
			b, a := vm.pop(), vm.pop()
			if b.Int == 0 {
				return vm.runtimeError("integer division by zero")
			}
			vm.push(IntValue(a.Int / b.Int))
		case OpIMod:
			b, a := vm.pop(), vm.pop()
			if b.Int == 0 {
				return vm.runtimeError("integer modulo by zero")
			}
			vm.push(IntValue(a.Int % b.Int))
		case OpINeg:
			a := vm.pop()
			vm.push(IntValue(-a.Int))

		// Float arithmetic
		case OpFAdd:
			b, a := vm.pop(), vm.pop()
			vm.push(FloatValue(a.Float + b.Float))
		case OpFSub:
			b, a := vm.pop(), vm.pop()
			vm.push(FloatValue(a.Float - b.Float))
		case OpFMul:
			b, a := vm.pop(), vm.pop()
			vm.push(FloatValue(a.Float * b.Float))
		case OpFDiv:
			b, a := vm.pop(), vm.pop()
			if b.Float == 0 {
				return vm.runtimeError("float division by zero")
			}
			vm.push(FloatValue(a.Float / b.Float))
		case OpFMod:
			b, a := vm.pop(), vm.pop()
			if b.Float == 0 {
				return vm.runtimeError("float modulo by zero")
			}
			vm.push(FloatValue(floatMod(a.Float, b.Float)))
		case OpFNeg:
			a := vm.pop()
			vm.push(FloatValue(-a.Float))

		case OpFloatToInt:
			a := vm.pop()
			vm.push(IntValue(int32(a.Float)))
		case OpIntToFloat:
			a := vm.pop()
			vm.push(FloatValue(float64(a.Int)))

		// Bitwise
		case OpShiftLeft:
			b, a := vm.pop(), vm.pop()
			if b.Int < 0 {
				return vm.runtimeError("cannot shift by a negative amount")
			}
			vm.push(IntValue(a.Int << uint(b.Int)))
		case OpShiftRight:
			b, a := vm.pop(), vm.pop()
			if b.Int < 0 {
				return vm.runtimeError("cannot shift by a negative amount")
			}
			vm.push(IntValue(a.Int >> uint(b.Int)))
		case OpBitAnd:
			b, a := vm.pop(), vm.pop()
			vm.push(IntValue(a.Int & b.Int))
		case OpBitOr:
			b, a := vm.pop(), vm.pop()
			vm.push(IntValue(a.Int | b.Int))
		case OpBitXor:
			b, a := vm.pop(), vm.pop()
			vm.push(IntValue(a.Int ^ b.Int))
		case OpBitNot:
			a := vm.pop()
			vm.push(IntValue(^a.Int))

		// Logical and comparison
		case OpNot:
			a := vm.pop()
			vm.push(BoolValue(!a.Bool))
		case OpEqual:
			b, a := vm.pop(), vm.pop()
			vm.push(BoolValue(valuesEqual(a, b)))
		case OpEqualSL:
			b, a := vm.pop(), vm.pop()
			result := structuralEqual(a, b)
			vm.release(a)
			vm.release(b)
			vm.push(BoolValue(result))
		case OpGreater:
			b, a := vm.pop(), vm.pop()
			if a.Type == ValueFloat {
				vm.push(BoolValue(a.Float > b.Float))
			} else {
				vm.push(BoolValue(a.Int > b.Int))
			}
		case OpLesser:
			b, a := vm.pop(), vm.pop()
			if a.Type == ValueFloat {
				vm.push(BoolValue(a.Float < b.Float))
			} else {
				vm.push(BoolValue(a.Int < b.Int))
			}

		// Jumps; operands are word counts relative to the next word
		case OpJumpForward:
			vm.ip += int(operand)
		case OpJumpBackward:
			vm.ip -= int(operand)
		case OpJumpIfTrue:
			if vm.peek(0).Bool {
				vm.ip += int(operand)
			}
		case OpJumpIfFalse:
			if !vm.peek(0).Bool {
				vm.ip += int(operand)
			}
		case OpPopJumpIfFalse:
			if !vm.pop().Bool {
				vm.ip += int(operand)
			}
		case OpPopJumpBackIfTrue:
			if vm.pop().Bool {
				vm.ip -= int(operand)
			}
		case OpPopJumpIfEqual:
			caseValue := vm.pop()
			matched := structuralEqual(vm.peek(0), caseValue)
			vm.release(caseValue)
			if matched {
				vm.release(vm.pop())
				vm.ip += int(operand)
			}

		// Locals
		case OpAccessLocal:
			if err := vm.push(vm.retainedSlot(vm.frameBase() + int(operand))); err != nil {
				return err
			}
		case OpAccessLocalList:
			if err := vm.push(vm.listView(vm.frameBase() + int(operand))); err != nil {
				return err
			}
		case OpAssignLocal:
			vm.storeSlot(&vm.stack[vm.frameBase()+int(operand)], vm.peek(0))
		case OpAssignLocalList:
			vm.assignListSlot(vm.frameBase() + int(operand))
		case OpMakeRefToLocal:
			if err := vm.push(vm.makeRef(vm.frameBase() + int(operand))); err != nil {
				return err
			}
		case OpMoveLocal:
			if err := vm.push(vm.moveSlot(vm.frameBase() + int(operand))); err != nil {
				return err
			}

		// Globals
		case OpAccessGlobal:
			if err := vm.push(vm.retainedSlot(vm.moduleBases[vm.currentModuleIndex] + int(operand))); err != nil {
				return err
			}
		case OpAccessGlobalList:
			if err := vm.push(vm.listView(vm.moduleBases[vm.currentModuleIndex] + int(operand))); err != nil {
				return err
			}
		case OpAssignGlobal:
			vm.storeSlot(&vm.stack[vm.moduleBases[vm.currentModuleIndex]+int(operand)], vm.peek(0))
		case OpAssignGlobalList:
			vm.assignListSlot(vm.moduleBases[vm.currentModuleIndex] + int(operand))
		case OpMakeRefToGlobal:
			if err := vm.push(vm.makeRef(vm.moduleBases[vm.currentModuleIndex] + int(operand))); err != nil {
				return err
			}
		case OpMoveGlobal:
			if err := vm.push(vm.moveSlot(vm.moduleBases[vm.currentModuleIndex] + int(operand))); err != nil {
				return err
			}

		case OpDeref:
			a := vm.pop()
			if a.Type != ValueRef || a.Ref == nil {
				return vm.runtimeError("DEREF of a non-reference value")
			}
			vm.push(vm.retained(*a.Ref))

		// Stack utilities
		case OpAccessFromTop:
			vm.push(vm.retained(vm.stack[vm.stackTop-int(operand)]))
		case OpAssignFromTop:
			vm.stack[vm.stackTop-int(operand)] = vm.peek(0)
		case OpSwap:
			// Swaps the adjacent pair at the given depth; SWAP 1 swaps
			// the top two values.
			upper := vm.stackTop - int(operand)
			vm.stack[upper], vm.stack[upper-1] = vm.stack[upper-1], vm.stack[upper]

		// Functions
		case OpLoadFunctionSameModule:
			if err := vm.loadFunction(vm.currentModule); err != nil {
				return err
			}
		case OpLoadFunctionModuleIndex:
			if int(operand) >= len(vm.modules) {
				return vm.runtimeError("module index %d out of range", operand)
			}
			if err := vm.loadFunction(vm.modules[operand]); err != nil {
				return err
			}
		case OpLoadFunctionModulePath:
			path := vm.chunk.Strings[operand]
			module := vm.moduleByPath(path)
			if module == nil {
				return vm.runtimeError("no module loaded from %q", path)
			}
			if err := vm.loadFunction(module); err != nil {
				return err
			}

		case OpCallFunction:
			if err := vm.callFunction(); err != nil {
				return err
			}
		case OpCallNative:
			if err := vm.callNative(); err != nil {
				return err
			}
		case OpReturn:
			if err := vm.returnFromCall(int(operand)); err != nil {
				return err
			}
		case OpTrapReturn:
			return vm.runtimeError("reached the end of a non-null function")

		// Strings
		case OpConstantString:
			if err := vm.push(StringValue(vm.cache.Insert(vm.chunk.Strings[operand]))); err != nil {
				return err
			}
		case OpPopString:
			a := vm.pop()
			vm.cache.Release(a.Str)
		case OpConcatenate:
			b, a := vm.pop(), vm.pop()
			result := vm.cache.Concat(a.Str, b.Str)
			vm.cache.Release(a.Str)
			vm.cache.Release(b.Str)
			vm.push(StringValue(result))
		case OpCheckStringIndex:
			index, str := vm.peek(0), vm.peek(1)
			if index.Int < 0 || int(index.Int) >= len(str.Str.Str) {
				return vm.runtimeError("string index %d out of range [0, %d)", index.Int, len(str.Str.Str))
			}
		case OpIndexString:
			index, str := vm.pop(), vm.pop()
			ch := vm.cache.Insert(string(str.Str.Str[index.Int]))
			vm.cache.Release(str.Str)
			vm.push(StringValue(ch))

		// Lists
		case OpMakeList:
			if err := vm.push(ListValue(&List{Elems: make([]Value, operand)})); err != nil {
				return err
			}
		case OpCopyList:
			a := vm.pop()
			vm.push(vm.copyValue(a))
		case OpAppendList:
			elem := vm.pop()
			list, ok := listOf(vm.peek(0))
			if !ok {
				return vm.runtimeError("APPEND_LIST on a non-list value")
			}
			list.Elems = append(list.Elems, elem)
		case OpPopFromList:
			count := vm.pop()
			list, ok := listOf(vm.peek(0))
			if !ok {
				return vm.runtimeError("POP_FROM_LIST on a non-list value")
			}
			n := len(list.Elems) - int(count.Int)
			if n < 0 {
				return vm.runtimeError("cannot pop %d elements from a list of %d", count.Int, len(list.Elems))
			}
			for _, removed := range list.Elems[n:] {
				vm.release(removed)
			}
			list.Elems = list.Elems[:n]
		case OpCheckListIndex:
			index := vm.peek(0)
			list, ok := listOf(vm.peek(1))
			if !ok {
				return vm.runtimeError("CHECK_LIST_INDEX on a non-list value")
			}
			if index.Int < 0 || int(index.Int) >= len(list.Elems) {
				return vm.runtimeError("list index %d out of range [0, %d)", index.Int, len(list.Elems))
			}
		case OpIndexList:
			index, value := vm.pop(), vm.pop()
			list, ok := listOf(value)
			if !ok {
				return vm.runtimeError("INDEX_LIST on a non-list value")
			}
			if int(index.Int) >= len(list.Elems) || index.Int < 0 {
				return vm.runtimeError("list index %d out of range [0, %d)", index.Int, len(list.Elems))
			}
			vm.push(vm.retained(list.Elems[index.Int]))
		case OpAssignList:
			value, index, target := vm.pop(), vm.pop(), vm.pop()
			list, ok := listOf(target)
			if !ok {
				return vm.runtimeError("ASSIGN_LIST on a non-list value")
			}
			slot := &list.Elems[index.Int]
			old := *slot
			*slot = value
			vm.release(old)
			vm.push(vm.retained(value))
		case OpMakeRefToIndex:
			index, value := vm.pop(), vm.pop()
			list, ok := listOf(value)
			if !ok {
				return vm.runtimeError("MAKE_REF_TO_INDEX on a non-list value")
			}
			if int(index.Int) >= len(list.Elems) || index.Int < 0 {
				return vm.runtimeError("list index %d out of range [0, %d)", index.Int, len(list.Elems))
			}
			vm.push(RefValue(&list.Elems[index.Int]))
		case OpMoveIndex:
			index, value := vm.pop(), vm.pop()
			list, ok := listOf(value)
			if !ok {
				return vm.runtimeError("MOVE_INDEX on a non-list value")
			}
			if int(index.Int) >= len(list.Elems) || index.Int < 0 {
				return vm.runtimeError("list index %d out of range [0, %d)", index.Int, len(list.Elems))
			}
			moved := list.Elems[index.Int]
			list.Elems[index.Int] = NullValue()
			vm.push(moved)
		case OpPopList:
			a := vm.pop()
			if a.Type == ValueList {
				vm.destroyList(a.List)
			}

		default:
			return vm.runtimeError("unknown opcode %d", op)
		}
	}
}

// retainedSlot reads a variable slot for ACCESS_LOCAL/GLOBAL.
func (vm *VM) retainedSlot(index int) Value {
	v := vm.stack[index]
	if v.Type == ValueString {
		vm.cache.Retain(v.Str)
	}
	return v
}

// listView reads a list-valued slot as a non-owning view, following a
// reference binding to its pointee.
func (vm *VM) listView(index int) Value {
	v := vm.stack[index]
	if v.Type == ValueRef && v.Ref != nil {
		v = *v.Ref
	}
	if v.Type == ValueList {
		return ListRefValue(v.List)
	}
	return v
}

// listOf resolves a stack value to its list storage, following one
// reference indirection.
func listOf(v Value) (*List, bool) {
	if v.Type == ValueRef && v.Ref != nil {
		v = *v.Ref
	}
	if v.IsAnyList() && v.List != nil {
		return v.List, true
	}
	return nil, false
}

// assignListSlot writes the list on top of the stack into a variable
// slot, destroying the previous list and leaving a view on the stack.
func (vm *VM) assignListSlot(index int) {
	dst := &vm.stack[index]
	if dst.Type == ValueRef && dst.Ref != nil {
		dst = dst.Ref
	}
	value := vm.pop()
	old := *dst
	*dst = value
	vm.release(old)
	vm.push(vm.retained(value))
}

// makeRef builds a reference to a slot, collapsing references to
// references onto the final target.
func (vm *VM) makeRef(index int) Value {
	target := &vm.stack[index]
	if target.Type == ValueRef && target.Ref != nil {
		return RefValue(target.Ref)
	}
	return RefValue(target)
}

// moveSlot transfers a slot's value out, leaving null behind.
func (vm *VM) moveSlot(index int) Value {
	moved := vm.stack[index]
	vm.stack[index] = NullValue()
	return moved
}

func (vm *VM) moduleByPath(path string) *RuntimeModule {
	for _, module := range vm.modules {
		if module.Path == path {
			return module
		}
	}
	return nil
}

// loadFunction replaces the mangled name on top of the stack with the
// named function of the given module.
func (vm *VM) loadFunction(module *RuntimeModule) error {
	name := vm.pop()
	if name.Type != ValueString {
		return vm.runtimeError("function load expects a name string on the stack")
	}
	fn, ok := module.Functions[name.Str.Str]
	if !ok {
		err := vm.runtimeError("module %q has no function %q", module.Name, name.Str.Str)
		vm.cache.Release(name.Str)
		return err
	}
	vm.cache.Release(name.Str)
	return vm.push(FunctionValue(fn))
}

// callFunction pops the callee and opens its frame: the base points at
// the reserved return slot just below the arguments.
func (vm *VM) callFunction() error {
	callee := vm.pop()
	if callee.Type != ValueFunction || callee.Fn == nil {
		return vm.runtimeError("cannot call a non-function value")
	}
	if vm.frameTop >= frameSize {
		return vm.runtimeError("call stack overflow")
	}
	fn := callee.Fn

	vm.frames[vm.frameTop] = callFrame{
		base:        vm.stackTop - fn.Arity - 1,
		returnChunk: vm.chunk,
		returnIP:    vm.ip,
		module:      vm.currentModule,
		moduleIndex: vm.currentModuleIndex,
		name:        fn.Name,
	}
	vm.frameTop++

	if vm.trace.Frames {
		fmt.Fprintf(vm.traceOut, "[frame] -> %s (base %d)\n", fn.Name, vm.stackTop-fn.Arity-1)
	}
	if vm.trace.Modules && fn.Module != vm.currentModule {
		fmt.Fprintf(vm.traceOut, "[module] %s -> %s\n", vm.currentModule.Name, fn.Module.Name)
	}

	vm.currentModule = fn.Module
	vm.currentModuleIndex = fn.ModuleIndex
	vm.chunk = &fn.Code
	vm.ip = 0
	return nil
}

// returnFromCall pops the callee's parameters (releasing strings and
// destroying owned lists), leaves the value in the reserved slot and
// restores the caller's frame. Body locals were already torn down by
// emitted instructions.
func (vm *VM) returnFromCall(paramCount int) error {
	if vm.frameTop == 0 {
		return vm.runtimeError("RETURN outside a call frame")
	}
	for i := 0; i < paramCount; i++ {
		vm.release(vm.pop())
	}

	vm.frameTop--
	frame := vm.frames[vm.frameTop]
	vm.stackTop = frame.base + 1

	if vm.trace.Frames {
		fmt.Fprintf(vm.traceOut, "[frame] <- %s\n", frame.name)
	}
	if vm.trace.Modules && frame.module != vm.currentModule {
		fmt.Fprintf(vm.traceOut, "[module] %s -> %s\n", vm.currentModule.Name, frame.module.Name)
	}

	vm.chunk = frame.returnChunk
	vm.ip = frame.returnIP
	vm.currentModule = frame.module
	vm.currentModuleIndex = frame.moduleIndex
	return nil
}

// callNative pops the native's name and invokes it over its arguments
// in place; the result lands in the reserved slot below the arguments,
// which the emitted teardown then pops.
func (vm *VM) callNative() error {
	name := vm.pop()
	if name.Type != ValueString {
		return vm.runtimeError("native call expects a name string on the stack")
	}
	native, ok := vm.natives[name.Str.Str]
	if !ok {
		err := vm.runtimeError("unknown native function %q", name.Str.Str)
		vm.cache.Release(name.Str)
		return err
	}
	arity := nativeArities[name.Str.Str]
	vm.cache.Release(name.Str)

	args := vm.stack[vm.stackTop-arity : vm.stackTop]
	result, err := native(vm, args)
	if err != nil {
		return vm.runtimeError("%v", err)
	}
	vm.stack[vm.stackTop-arity-1] = result
	return nil
}

func floatMod(a, b float64) float64 {
	return math.Mod(a, b)
}
