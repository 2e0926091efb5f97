package bytecode

// RuntimeFunction is one compiled function: its chunk, its arity and
// the module it belongs to. The mangled name (`Class@method` for
// methods) is the key under which the owning module stores it.
type RuntimeFunction struct {
	Code        Chunk
	Arity       int
	Name        string
	Module      *RuntimeModule
	ModuleIndex int
}

// RuntimeModule is one compiled module: its top-level chunk (runs at
// program start, leaving the module's globals on the stack), its
// teardown chunk (runs at program exit, releasing them in reverse
// order) and its function map keyed by mangled name.
type RuntimeModule struct {
	TopLevel  Chunk
	Teardown  Chunk
	Functions map[string]*RuntimeFunction
	Name      string
	Path      string
}

// NewRuntimeModule creates an empty compiled module.
func NewRuntimeModule(name, path string) *RuntimeModule {
	return &RuntimeModule{
		Functions: make(map[string]*RuntimeFunction),
		Name:      name,
		Path:      path,
	}
}

// BindFunctionModules patches every function's back-pointer and module
// index; the VM needs them to switch module context on calls.
func (m *RuntimeModule) BindFunctionModules(index int) {
	for _, fn := range m.Functions {
		fn.Module = m
		fn.ModuleIndex = index
	}
}
