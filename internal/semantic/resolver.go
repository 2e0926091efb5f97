// Package semantic implements the type resolver. It walks the untyped
// AST top-down, annotates every expression with its resolved type and
// l-valueness, patches identifiers with their kind and frame slot, and
// enforces the conversion, reference and visibility rules of the
// language. A bare name that names a native is taken as the native
// before any other lookup; other bare names resolve against, in order:
// the local scope stack, then the current module's functions and
// classes. Imported modules' classes and functions are reached through
// scope access. Members of the current class are not found by bare
// name; they are reached through member access.
package semantic

import (
	"fmt"

	"github.com/cwbudde/go-nyx/internal/ast"
	"github.com/cwbudde/go-nyx/internal/errors"
	"github.com/cwbudde/go-nyx/internal/lexer"
)

// scopeValue is one name on the resolver's scope stack. Slot is the
// frame-relative stack slot the emitter will address the binding with.
type scopeValue struct {
	name  string
	info  ast.TypeExpr
	depth int
	class *ast.ClassStmt
	slot  int
}

// resolveBail unwinds to the enclosing statement boundary after a
// reported type error so resolution resumes with the next statement.
type resolveBail struct{}

// Resolver checks one compile context's modules.
type Resolver struct {
	logger  *errors.Logger
	modules []*ast.Module

	module *ast.Module
	modSrc *errors.ModuleSource

	values     []scopeValue
	scopeDepth int
	nextSlot   []int // slot counters, one per frame (module, then nested functions)

	aliases map[string]ast.TypeExpr

	currentClass    *ast.ClassStmt
	currentFunction *ast.FunctionStmt
	inCtor          bool
	inDtor          bool
	inLoop          bool
	inSwitch        bool
}

// NewResolver creates a resolver over the full module list. Module
// indices match the module manager's.
func NewResolver(logger *errors.Logger, modules []*ast.Module) *Resolver {
	return &Resolver{
		logger:  logger,
		modules: modules,
	}
}

// Check resolves one module. Errors are reported to the logger; the
// resolver recovers at statement boundaries to surface as many problems
// as possible in a single pass.
func (r *Resolver) Check(module *ast.Module) {
	r.module = module
	r.modSrc = &errors.ModuleSource{Name: module.Name, Source: module.Source}
	r.values = r.values[:0]
	r.scopeDepth = 0
	r.nextSlot = []int{0}
	r.aliases = make(map[string]ast.TypeExpr)

	for _, stmt := range module.Statements {
		r.resolveStmtSafe(stmt)
	}
}

func (r *Resolver) resolveStmtSafe(stmt ast.Stmt) {
	defer func() {
		if rec := recover(); rec != nil {
			if _, ok := rec.(resolveBail); !ok {
				panic(rec)
			}
		}
	}()
	r.resolveStmt(stmt)
}

func (r *Resolver) error(msg string, where lexer.Token) {
	r.logger.Error(r.modSrc, msg, where)
}

func (r *Resolver) errorBail(msg string, where lexer.Token) {
	r.error(msg, where)
	panic(resolveBail{})
}

func (r *Resolver) warning(msg string, where lexer.Token) {
	r.logger.Warning(r.modSrc, msg, where)
}

func (r *Resolver) note(msg string) {
	r.logger.Note(msg)
}

// ============================================================================
// Scopes
// ============================================================================

func (r *Resolver) beginScope() {
	r.scopeDepth++
}

func (r *Resolver) endScope() {
	for len(r.values) > 0 && r.values[len(r.values)-1].depth == r.scopeDepth {
		r.values = r.values[:len(r.values)-1]
		r.currentFrameSlot(-1)
	}
	r.scopeDepth--
}

// pushFrame starts a fresh slot counter for a function frame.
func (r *Resolver) pushFrame() {
	r.nextSlot = append(r.nextSlot, 0)
}

func (r *Resolver) popFrame() {
	r.nextSlot = r.nextSlot[:len(r.nextSlot)-1]
}

// currentFrameSlot bumps the innermost frame's slot counter by delta and
// returns the value before the bump.
func (r *Resolver) currentFrameSlot(delta int) int {
	i := len(r.nextSlot) - 1
	slot := r.nextSlot[i]
	r.nextSlot[i] += delta
	return slot
}

// declare pushes a binding into the current scope, assigning the next
// frame slot. Re-declaring a name in the same scope is an error.
func (r *Resolver) declare(name lexer.Token, info ast.TypeExpr, class *ast.ClassStmt) int {
	for i := len(r.values) - 1; i >= 0; i-- {
		value := r.values[i]
		if value.depth != r.scopeDepth {
			break
		}
		if value.name == name.Lexeme {
			r.errorBail(fmt.Sprintf("redeclaration of %q in the same scope", name.Lexeme), name)
		}
	}

	slot := r.currentFrameSlot(1)
	r.values = append(r.values, scopeValue{
		name:  name.Lexeme,
		info:  info,
		depth: r.scopeDepth,
		class: class,
		slot:  slot,
	})
	return slot
}

// lookup finds a binding by name, innermost first.
func (r *Resolver) lookup(name string) (*scopeValue, bool) {
	for i := len(r.values) - 1; i >= 0; i-- {
		if r.values[i].name == name {
			return &r.values[i], true
		}
	}
	return nil, false
}

// ============================================================================
// Declaration tables
// ============================================================================

func (r *Resolver) findClass(name string) *ast.ClassStmt {
	return r.module.Classes[name]
}

func (r *Resolver) findFunction(name string) *ast.FunctionStmt {
	return r.module.Functions[name]
}

// importedModule finds an imported module of the current module by name.
func (r *Resolver) importedModule(name string) (int, *ast.Module) {
	for _, index := range r.module.Imported {
		if index >= 0 && index < len(r.modules) && r.modules[index].Name == name {
			return index, r.modules[index]
		}
	}
	return -1, nil
}

func (r *Resolver) classOf(info ast.TypeExpr) *ast.ClassStmt {
	if user, ok := info.(*ast.UserDefinedType); ok {
		return user.Class
	}
	return nil
}

// visibleFrom reports whether a member/method with the given visibility
// is accessible from the current resolution context.
func (r *Resolver) visibleFrom(vis ast.Visibility, class *ast.ClassStmt) bool {
	if vis == ast.VisibilityPublic {
		return true
	}
	return r.currentClass == class
}
