package bytecode

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/cwbudde/go-nyx/internal/errors"
)

// VM configuration limits.
const (
	stackSize  = 32768
	frameSize  = 1024
	moduleSize = 1024
)

// TraceOptions selects what the VM prints to its trace writer while
// executing.
type TraceOptions struct {
	Stack        bool
	Frames       bool
	Modules      bool
	Instructions bool
	ModuleInit   bool
}

type callFrame struct {
	base        int
	returnChunk *Chunk
	returnIP    int
	module      *RuntimeModule
	moduleIndex int
	name        string
}

// VM executes compiled modules. The value stack is shared by module
// globals (one region per module, established during initialization)
// and call frames; the string cache is owned here and threaded into
// everything that touches string values.
type VM struct {
	stack    []Value
	stackTop int

	frames   []callFrame
	frameTop int

	moduleBases []int
	modules     []*RuntimeModule

	cache   *StringCache
	natives map[string]NativeFn

	chunk              *Chunk
	ip                 int
	currentModule      *RuntimeModule
	currentModuleIndex int

	out      io.Writer
	traceOut io.Writer
	in       *bufio.Reader
	logger   *errors.Logger
	trace    TraceOptions

	pendingExt uint32
}

// VMOption configures a VM.
type VMOption func(*VM)

// WithOutput sets the writer natives print to (default os.Stdout).
func WithOutput(w io.Writer) VMOption {
	return func(vm *VM) { vm.out = w }
}

// WithInput sets the reader readline consumes (default os.Stdin).
func WithInput(r io.Reader) VMOption {
	return func(vm *VM) { vm.in = bufio.NewReader(r) }
}

// WithTrace enables execution tracing to stderr.
func WithTrace(opts TraceOptions) VMOption {
	return func(vm *VM) { vm.trace = opts }
}

// NewVM creates a VM reporting runtime errors through the logger.
func NewVM(logger *errors.Logger, opts ...VMOption) *VM {
	vm := &VM{
		stack:    make([]Value, stackSize),
		frames:   make([]callFrame, frameSize),
		cache:    NewStringCache(),
		out:      os.Stdout,
		traceOut: os.Stderr,
		in:       bufio.NewReader(os.Stdin),
		logger:   logger,
	}
	vm.registerNatives()
	for _, opt := range opts {
		opt(vm)
	}
	return vm
}

// Cache exposes the interned string cache, mainly so tests can verify
// the net-zero refcount property.
func (vm *VM) Cache() *StringCache {
	return vm.cache
}

// Run initializes every module's globals in the given order (leaves
// first, the main module last), then unwinds the teardown chunks in
// reverse order. The main module's top-level chunk carries the
// synthesized call into `main`.
func (vm *VM) Run(compiled []*RuntimeModule, order []int) error {
	if len(compiled) > moduleSize {
		return fmt.Errorf("vm: too many modules (%d, limit %d)", len(compiled), moduleSize)
	}
	vm.modules = compiled
	vm.moduleBases = make([]int, len(compiled))

	for _, index := range order {
		module := compiled[index]
		if vm.trace.ModuleInit {
			fmt.Fprintf(vm.traceOut, "[module-init] %s\n", module.Name)
		}
		vm.moduleBases[index] = vm.stackTop
		if err := vm.execute(module, index, &module.TopLevel); err != nil {
			return err
		}
	}

	for i := len(order) - 1; i >= 0; i-- {
		module := compiled[order[i]]
		if vm.trace.ModuleInit {
			fmt.Fprintf(vm.traceOut, "[module-teardown] %s\n", module.Name)
		}
		if err := vm.execute(module, order[i], &module.Teardown); err != nil {
			return err
		}
	}
	return nil
}

// execute runs one chunk to its HALT in the context of a module.
func (vm *VM) execute(module *RuntimeModule, moduleIndex int, chunk *Chunk) error {
	vm.currentModule = module
	vm.currentModuleIndex = moduleIndex
	vm.chunk = chunk
	vm.ip = 0
	return vm.dispatch()
}

// ============================================================================
// Stack primitives
// ============================================================================

func (vm *VM) push(v Value) error {
	if vm.stackTop >= stackSize {
		return vm.runtimeError("value stack overflow")
	}
	vm.stack[vm.stackTop] = v
	vm.stackTop++
	return nil
}

func (vm *VM) pop() Value {
	vm.stackTop--
	return vm.stack[vm.stackTop]
}

func (vm *VM) peek(distance int) Value {
	return vm.stack[vm.stackTop-1-distance]
}

// frameBase is the base of the innermost call frame, or the current
// module's global region for top-level code.
func (vm *VM) frameBase() int {
	if vm.frameTop > 0 {
		return vm.frames[vm.frameTop-1].base
	}
	return vm.moduleBases[vm.currentModuleIndex]
}

func (vm *VM) currentLine() int {
	if vm.chunk == nil {
		return 0
	}
	return vm.chunk.Line(vm.ip - 1)
}

func (vm *VM) runtimeError(format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	vm.logger.RuntimeError(msg, vm.currentLine())
	return fmt.Errorf("runtime error: %s", msg)
}

// ============================================================================
// Value lifecycle helpers
// ============================================================================

// release drops one stack reference to a value: strings decref, owning
// lists are destroyed. Views and primitives are free to drop.
func (vm *VM) release(v Value) {
	switch v.Type {
	case ValueString:
		vm.cache.Release(v.Str)
	case ValueList:
		vm.destroyList(v.List)
	}
}

// destroyList frees an owning list's storage, releasing contained
// strings and destroying contained owning lists.
func (vm *VM) destroyList(list *List) {
	if list == nil {
		return
	}
	for _, elem := range list.Elems {
		vm.release(elem)
	}
	list.Elems = nil
}

// retained returns the value as pushed onto the stack: strings gain a
// reference, owning lists degrade to views so ownership stays in the
// slot.
func (vm *VM) retained(v Value) Value {
	switch v.Type {
	case ValueString:
		vm.cache.Retain(v.Str)
		return v
	case ValueList:
		return ListRefValue(v.List)
	default:
		return v
	}
}

// storeSlot writes a value into a variable slot, writing through
// references and keeping string refcounts balanced: the slot owns one
// reference, the stack copy keeps its own.
func (vm *VM) storeSlot(dst *Value, v Value) {
	if dst.Type == ValueRef && dst.Ref != nil {
		dst = dst.Ref
	}
	old := *dst
	if v.Type == ValueString {
		vm.cache.Retain(v.Str)
	}
	*dst = v
	vm.release(old)
}

// copyValue deep-copies a value for COPY_LIST: the result is a fresh
// owning list; strings inside gain references.
func (vm *VM) copyValue(v Value) Value {
	switch v.Type {
	case ValueString:
		vm.cache.Retain(v.Str)
		return v
	case ValueList, ValueListRef:
		elems := make([]Value, len(v.List.Elems))
		for i, elem := range v.List.Elems {
			elems[i] = vm.copyValue(elem)
		}
		return ListValue(&List{Elems: elems})
	case ValueRef:
		if v.Ref != nil {
			return vm.copyValue(*v.Ref)
		}
		return NullValue()
	default:
		return v
	}
}

// valuesEqual is shallow equality for EQUAL: primitives by value,
// strings by cache pointer, functions by identity.
func valuesEqual(a, b Value) bool {
	if a.Type != b.Type {
		return false
	}
	switch a.Type {
	case ValueNull:
		return true
	case ValueBool:
		return a.Bool == b.Bool
	case ValueInt:
		return a.Int == b.Int
	case ValueFloat:
		return a.Float == b.Float
	case ValueString:
		return a.Str == b.Str
	case ValueFunction:
		return a.Fn == b.Fn
	case ValueList, ValueListRef:
		return a.List == b.List
	case ValueRef:
		return a.Ref == b.Ref
	default:
		return false
	}
}

// structuralEqual is deep equality for EQUAL_SL over strings and lists.
func structuralEqual(a, b Value) bool {
	if a.Type == ValueString && b.Type == ValueString {
		return a.Str == b.Str || (a.Str != nil && b.Str != nil && a.Str.Str == b.Str.Str)
	}
	if a.IsAnyList() && b.IsAnyList() {
		if len(a.List.Elems) != len(b.List.Elems) {
			return false
		}
		for i := range a.List.Elems {
			if !structuralEqual(a.List.Elems[i], b.List.Elems[i]) {
				return false
			}
		}
		return true
	}
	return valuesEqual(a, b)
}

func (vm *VM) traceState() {
	if vm.trace.Stack {
		for i := 0; i < vm.stackTop; i++ {
			fmt.Fprintf(vm.traceOut, "[ %s ] ", vm.stack[i].Repr())
		}
		fmt.Fprintln(vm.traceOut)
	}
	if vm.trace.Instructions {
		inst := vm.chunk.Code[vm.ip]
		fmt.Fprintf(vm.traceOut, "%04d %-26s %d\n", vm.ip, inst.Op().String(), inst.Operand())
	}
}
