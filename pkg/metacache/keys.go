// Package metacache caches virtual-schema metadata under scoped keys.
//
// Entities are stored under "scope:id" keys. Lists are stored under
// "scope:list:arg..." keys and hold the keys of their items, so an item is
// stored once and shared by every list that contains it. A list whose items
// are not all present reads as a miss, never as a partial list.
//
// The cache is best-effort: callers treat every error as a miss and fall back
// to the metadata store.
package metacache

import "strings"

// Scope namespaces cache keys by entity kind.
type Scope string

// Cache scopes.
const (
	ScopeSource           Scope = "source"
	ScopeModel            Scope = "model"
	ScopeColumn           Scope = "column"
	ScopeColRelation      Scope = "col_relation"
	ScopeColLookup        Scope = "col_lookup"
	ScopeColRollup        Scope = "col_rollup"
	ScopeColFormula       Scope = "col_formula"
	ScopeColSelectOptions Scope = "col_select_options"
	ScopeColBarcode       Scope = "col_barcode"
	ScopeColButton        Scope = "col_button"
	ScopeBaseUser         Scope = "base_user"
	ScopeSingleQuery      Scope = "single_query"

	// scopeParents tracks which lists contain an item.
	scopeParents Scope = "parents"
)

const (
	sep     = ":"
	listTag = "list"
)

// Key returns the key of a single entity.
func Key(scope Scope, id string) string {
	return string(scope) + sep + id
}

// ListKey returns the key of a list in scope, qualified by args
// (e.g. the owning model id).
func ListKey(scope Scope, args ...string) string {
	parts := make([]string, 0, len(args)+2)
	parts = append(parts, string(scope), listTag)
	parts = append(parts, args...)
	return strings.Join(parts, sep)
}

// Prefix returns the prefix shared by every key in scope.
func Prefix(scope Scope) string {
	return string(scope) + sep
}

func parentsKey(itemKey string) string {
	return Key(scopeParents, itemKey)
}
