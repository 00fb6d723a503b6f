// Package cte collects the common table expressions of one compiled query.
//
// CTE bodies are produced by named modules (hierarchy, link_count,
// junction_count). A Generator lives for one compilation: registering the
// same module with equal parameters twice returns the first block, and
// blocks are attached to the statement in registration order so the emitted
// SQL is deterministic.
package cte

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/leapstack-labs/leapgrid/pkg/core"
	"github.com/leapstack-labs/leapgrid/pkg/sqlb"
)

// MaxDepth caps every hierarchical traversal.
const MaxDepth = 10

// ErrRecursiveCTEUnsupported is returned when a recursive module is
// registered for a source without recursive CTE support. Callers fall back
// to Traverse.
var ErrRecursiveCTEUnsupported = errors.New("recursive CTEs are not supported by this source")

// Module builds one kind of CTE.
type Module interface {
	// Key identifies params; equal keys share one block.
	Key(params any) (string, error)
	// Alias is the preferred CTE name for params.
	Alias(params any) string
	// Recursive reports whether the CTE references itself.
	Recursive() bool
	// Build returns the CTE named alias.
	Build(alias string, params any) (*sqlb.CTE, error)
}

var (
	modulesMu sync.RWMutex
	modules   = make(map[string]Module)
)

// RegisterModule makes a module available under name.
func RegisterModule(name string, m Module) {
	modulesMu.Lock()
	defer modulesMu.Unlock()
	modules[name] = m
}

// GetModule returns the module registered under name.
func GetModule(name string) (Module, bool) {
	modulesMu.RLock()
	defer modulesMu.RUnlock()
	m, ok := modules[name]
	return m, ok
}

// ListModules returns the registered module names (sorted).
func ListModules() []string {
	modulesMu.RLock()
	defer modulesMu.RUnlock()
	names := make([]string, 0, len(modules))
	for name := range modules {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Block is a registered CTE.
type Block struct {
	Alias  string
	Module string
	CTE    *sqlb.CTE
}

// Generator accumulates the CTEs of one query. It is not safe for
// concurrent use.
type Generator struct {
	caps    core.Capabilities
	blocks  []*Block
	byAlias map[string]*Block
	byKey   map[string]*Block
}

// NewGenerator creates a generator for a source with caps.
func NewGenerator(caps core.Capabilities) *Generator {
	return &Generator{
		caps:    caps,
		byAlias: make(map[string]*Block),
		byKey:   make(map[string]*Block),
	}
}

// Register builds the module's CTE for params and returns its block. If an
// equal block is already registered it is returned unchanged.
func (g *Generator) Register(module string, params any) (*Block, error) {
	m, ok := GetModule(module)
	if !ok {
		return nil, fmt.Errorf("unknown CTE module %q (available: %s)", module, strings.Join(ListModules(), ", "))
	}
	if m.Recursive() && !g.caps.RecursiveCTE {
		return nil, ErrRecursiveCTEUnsupported
	}

	key, err := m.Key(params)
	if err != nil {
		return nil, fmt.Errorf("module %s: %w", module, err)
	}
	key = module + "|" + key
	if b, ok := g.byKey[key]; ok {
		return b, nil
	}

	alias := g.uniqueAlias(m.Alias(params))
	c, err := m.Build(alias, params)
	if err != nil {
		return nil, fmt.Errorf("module %s: %w", module, err)
	}

	b := &Block{Alias: alias, Module: module, CTE: c}
	g.blocks = append(g.blocks, b)
	g.byAlias[alias] = b
	g.byKey[key] = b
	return b, nil
}

// Capabilities returns the capabilities the generator compiles for.
func (g *Generator) Capabilities() core.Capabilities {
	return g.caps
}

// GetExistingAlias returns the block named alias, or nil.
func (g *Generator) GetExistingAlias(alias string) *Block {
	return g.byAlias[alias]
}

// Blocks returns the registered blocks in registration order.
func (g *Generator) Blocks() []*Block {
	return g.blocks
}

// Len is the number of registered blocks.
func (g *Generator) Len() int {
	return len(g.blocks)
}

// ApplyAll attaches every block to sel in registration order.
func (g *Generator) ApplyAll(sel *sqlb.Selector) {
	for _, b := range g.blocks {
		sel.With(b.CTE)
	}
}

// Clear drops every block.
func (g *Generator) Clear() {
	g.blocks = nil
	clear(g.byAlias)
	clear(g.byKey)
}

func (g *Generator) uniqueAlias(base string) string {
	if _, taken := g.byAlias[base]; !taken {
		return base
	}
	for i := 2; ; i++ {
		alias := base + "_" + strconv.Itoa(i)
		if _, taken := g.byAlias[alias]; !taken {
			return alias
		}
	}
}

const maxAliasLen = 48

// aliasName builds a lower-case identifier from parts.
func aliasName(parts ...string) string {
	var b strings.Builder
	for i, p := range parts {
		if i > 0 {
			b.WriteByte('_')
		}
		for _, r := range strings.ToLower(p) {
			if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '_' {
				b.WriteRune(r)
			} else {
				b.WriteByte('_')
			}
		}
	}
	s := b.String()
	if len(s) > maxAliasLen {
		s = s[:maxAliasLen]
	}
	return s
}
