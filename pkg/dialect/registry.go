package dialect

import (
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/leapstack-labs/leapgrid/pkg/core"
)

// Dialect registry
var (
	dialectsMu sync.RWMutex
	dialects   = make(map[string]*Dialect)
	aliases    = make(map[string]string)
)

// ErrDialectRequired is returned when a dialect is required but not provided.
var ErrDialectRequired = errors.New("dialect is required")

// Get returns a dialect by name or alias.
func Get(name string) (*Dialect, bool) {
	dialectsMu.RLock()
	defer dialectsMu.RUnlock()
	key := strings.ToLower(name)
	if canonical, ok := aliases[key]; ok {
		key = canonical
	}
	d, ok := dialects[key]
	return d, ok
}

// Register registers a dialect and its aliases in the global registry.
// Called by dialect implementations in their init() functions.
func Register(d *Dialect) {
	dialectsMu.Lock()
	defer dialectsMu.Unlock()
	name := strings.ToLower(d.Name)
	dialects[name] = d
	for _, a := range d.Aliases {
		aliases[strings.ToLower(a)] = name
	}
}

// List returns all registered dialect names (sorted).
func List() []string {
	dialectsMu.RLock()
	defer dialectsMu.RUnlock()
	names := make([]string, 0, len(dialects))
	for name := range dialects {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ForSource resolves the dialect of a source configuration together with the
// capabilities that source actually has.
func ForSource(cfg core.SourceConfig) (*Dialect, core.Capabilities, error) {
	if cfg.Type == "" {
		return nil, core.Capabilities{}, core.ErrConfiguration("type", "source type not specified")
	}
	d, ok := Get(cfg.Type)
	if !ok {
		return nil, core.Capabilities{}, &core.UnsupportedDialectError{Type: cfg.Type, Available: List()}
	}
	return d, d.ResolveCapabilities(cfg), nil
}
