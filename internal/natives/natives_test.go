package natives

import (
	"testing"

	"github.com/cwbudde/go-nyx/internal/ast"
)

func TestRegistryContents(t *testing.T) {
	for _, name := range []string{"print", "int", "float", "string", "readline", "size"} {
		fn, ok := Lookup(name)
		if !ok {
			t.Errorf("missing native %q", name)
			continue
		}
		if fn.Arity != len(fn.Params) {
			t.Errorf("%s: arity %d does not match %d parameter sets", name, fn.Arity, len(fn.Params))
		}
	}
	if IsNative("missing") {
		t.Error("unknown names must not be native")
	}
}

func TestAcceptedKinds(t *testing.T) {
	printFn, _ := Lookup("print")
	for _, kind := range []ast.Type{ast.TypeInt, ast.TypeString, ast.TypeList, ast.TypeClass} {
		if !printFn.Accepts(0, kind) {
			t.Errorf("print must accept %v", kind)
		}
	}

	sizeFn, _ := Lookup("size")
	if sizeFn.Accepts(0, ast.TypeInt) {
		t.Error("size must reject int arguments")
	}
	if !sizeFn.Accepts(0, ast.TypeTuple) || !sizeFn.Accepts(0, ast.TypeString) {
		t.Error("size must accept tuples and strings")
	}

	intFn, _ := Lookup("int")
	if intFn.Accepts(0, ast.TypeList) {
		t.Error("int must reject list arguments")
	}
	if intFn.Accepts(1, ast.TypeInt) {
		t.Error("out-of-range parameter index must not accept")
	}
}
