// Package natives declares the built-in function registry. The resolver
// checks call sites against this metadata (arity, accepted primitive
// kinds per argument, return type); the VM binds the implementations by
// name at execution time.
package natives

import "github.com/cwbudde/go-nyx/internal/ast"

// Fn describes one native function at resolve time. Each parameter has
// a set of accepted primitive kinds; an empty set accepts any type.
type Fn struct {
	Name       string
	ReturnKind ast.Type
	Params     [][]ast.Type
	Arity      int
}

// Accepts reports whether parameter i accepts the given primitive kind.
func (f *Fn) Accepts(i int, kind ast.Type) bool {
	if i < 0 || i >= len(f.Params) {
		return false
	}
	if len(f.Params[i]) == 0 {
		return true
	}
	for _, k := range f.Params[i] {
		if k == kind {
			return true
		}
	}
	return false
}

var registry = map[string]*Fn{
	"print": {
		Name:       "print",
		Arity:      1,
		ReturnKind: ast.TypeNull,
		Params:     [][]ast.Type{{}}, // any printable value
	},
	"int": {
		Name:       "int",
		Arity:      1,
		ReturnKind: ast.TypeInt,
		Params:     [][]ast.Type{{ast.TypeInt, ast.TypeFloat, ast.TypeString, ast.TypeBool}},
	},
	"float": {
		Name:       "float",
		Arity:      1,
		ReturnKind: ast.TypeFloat,
		Params:     [][]ast.Type{{ast.TypeInt, ast.TypeFloat, ast.TypeString, ast.TypeBool}},
	},
	"string": {
		Name:       "string",
		Arity:      1,
		ReturnKind: ast.TypeString,
		Params:     [][]ast.Type{{ast.TypeInt, ast.TypeFloat, ast.TypeString, ast.TypeBool}},
	},
	"readline": {
		Name:       "readline",
		Arity:      1,
		ReturnKind: ast.TypeString,
		Params:     [][]ast.Type{{ast.TypeString}},
	},
	"size": {
		Name:       "size",
		Arity:      1,
		ReturnKind: ast.TypeInt,
		Params:     [][]ast.Type{{ast.TypeList, ast.TypeTuple, ast.TypeString}},
	},
}

// Lookup returns the native with the given name.
func Lookup(name string) (*Fn, bool) {
	fn, ok := registry[name]
	return fn, ok
}

// IsNative reports whether name is a built-in function.
func IsNative(name string) bool {
	_, ok := registry[name]
	return ok
}

// Names returns every registered native name.
func Names() []string {
	out := make([]string, 0, len(registry))
	for name := range registry {
		out = append(out, name)
	}
	return out
}
