// Package modules manages the import graph: it parses the main module
// and, through the parser's import hook, every transitively imported
// module. Import paths are resolved relative to the main module's parent
// directory; each module's full path maps to a stable index used by the
// emitter and VM for cross-module function loads. Modules are compiled
// in descending import-depth order so dependencies are ready before
// their dependents.
package modules

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cwbudde/go-nyx/internal/ast"
	"github.com/cwbudde/go-nyx/internal/errors"
	"github.com/cwbudde/go-nyx/internal/lexer"
	"github.com/cwbudde/go-nyx/internal/parser"
)

// Manager owns every parsed module of one compile context.
type Manager struct {
	logger  *errors.Logger
	Modules []*ast.Module
	byPath  map[string]int
	mainDir string
	parsing map[string]bool
}

// NewManager creates an empty module manager.
func NewManager(logger *errors.Logger) *Manager {
	return &Manager{
		logger:  logger,
		byPath:  make(map[string]int),
		parsing: make(map[string]bool),
	}
}

// LoadMain parses the entry module and all of its imports. It returns
// the index of the main module.
func (m *Manager) LoadMain(path string) (int, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return -1, fmt.Errorf("resolving %s: %w", path, err)
	}
	m.mainDir = filepath.Dir(abs)
	return m.load(abs, 0)
}

// ResolveImport implements parser.ImportResolver. Paths are relative to
// the main module's parent directory. Re-imports deepen the existing
// module so it still initializes before every importer.
func (m *Manager) ResolveImport(path string, depth int) (int, error) {
	abs := filepath.Join(m.mainDir, filepath.FromSlash(path))

	if index, ok := m.byPath[abs]; ok {
		if m.parsing[abs] {
			return -1, fmt.Errorf("circular import of %s", path)
		}
		m.deepen(index, depth+1)
		return index, nil
	}
	return m.load(abs, depth+1)
}

func (m *Manager) load(abs string, depth int) (int, error) {
	content, err := os.ReadFile(abs)
	if err != nil {
		return -1, fmt.Errorf("reading module: %w", err)
	}

	name := strings.TrimSuffix(filepath.Base(abs), filepath.Ext(abs))
	module := ast.NewModule(name, abs, string(content))
	module.Depth = depth

	index := len(m.Modules)
	m.Modules = append(m.Modules, module)
	m.byPath[abs] = index
	m.parsing[abs] = true
	defer delete(m.parsing, abs)

	p := parser.New(lexer.New(module.Source), module, m.logger, m, depth)
	p.Parse()
	return index, nil
}

// deepen pushes a module (and transitively its imports) at least as deep
// as the given depth, keeping the compile order topological when the
// same module is imported at several depths.
func (m *Manager) deepen(index, depth int) {
	module := m.Modules[index]
	if module.Depth >= depth {
		return
	}
	module.Depth = depth
	for _, imported := range module.Imported {
		m.deepen(imported, depth+1)
	}
}

// Index returns the stable index for a module path.
func (m *Manager) Index(path string) (int, bool) {
	index, ok := m.byPath[path]
	return index, ok
}

// PathIndexMap returns a copy of the path-to-index mapping.
func (m *Manager) PathIndexMap() map[string]int {
	out := make(map[string]int, len(m.byPath))
	for path, index := range m.byPath {
		out[path] = index
	}
	return out
}

// CompileOrder returns module indices in descending depth order, so that
// leaves compile and initialize first and the main module comes last.
// The order is stable for modules of equal depth.
func (m *Manager) CompileOrder() []int {
	order := make([]int, len(m.Modules))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return m.Modules[order[a]].Depth > m.Modules[order[b]].Depth
	})
	return order
}
