package core

import (
	"maps"
	"slices"
)

// Clone returns a copy of c that shares no mutable state with it.
func (c *Column) Clone() *Column {
	if c == nil {
		return nil
	}
	out := *c
	out.Meta = cloneMap(c.Meta)
	out.VisibleRoles = slices.Clone(c.VisibleRoles)
	out.Options = c.Options.clone()
	return &out
}

func (o ColOptions) clone() ColOptions {
	return ColOptions{
		Link:    clonePtr(o.Link),
		Lookup:  clonePtr(o.Lookup),
		Rollup:  clonePtr(o.Rollup),
		Formula: clonePtr(o.Formula),
		Barcode: clonePtr(o.Barcode),
		Button:  clonePtr(o.Button),
		Select:  o.Select.clone(),
	}
}

func (s *SelectOptions) clone() *SelectOptions {
	if s == nil {
		return nil
	}
	return &SelectOptions{Options: slices.Clone(s.Options)}
}

// Clone returns a copy of m.
func (m *Model) Clone() *Model {
	if m == nil {
		return nil
	}
	out := *m
	return &out
}

// Clone returns a copy of s that shares no mutable state with it.
func (s *Source) Clone() *Source {
	if s == nil {
		return nil
	}
	out := *s
	out.Config = s.Config.Clone()
	return &out
}

// Clone returns a copy of c that shares no mutable state with it.
func (c SourceConfig) Clone() SourceConfig {
	c.SSL = clonePtr(c.SSL)
	c.Options = maps.Clone(c.Options)
	c.Params = cloneMap(c.Params)
	c.Capabilities = CapabilityOverrides{
		RecursiveCTE:    clonePtr(c.Capabilities.RecursiveCTE),
		WindowFunctions: clonePtr(c.Capabilities.WindowFunctions),
		JSONAggregate:   clonePtr(c.Capabilities.JSONAggregate),
	}
	return c
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// cloneMap copies m and the maps and slices nested in it.
func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch v := v.(type) {
	case map[string]any:
		return cloneMap(v)
	case []any:
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = cloneValue(e)
		}
		return out
	case []string:
		return slices.Clone(v)
	default:
		return v
	}
}
