package relation

import (
	"slices"
	"strings"

	"github.com/leapstack-labs/leapgrid/pkg/core"
)

// Snapshot is a map-backed Lookup.
type Snapshot struct {
	models  map[string]*core.Model
	columns map[string]*core.Column
	byModel map[string][]*core.Column
}

// NewSnapshot creates a snapshot of the given entities.
func NewSnapshot(models []*core.Model, columns []*core.Column) *Snapshot {
	s := &Snapshot{
		models:  make(map[string]*core.Model, len(models)),
		columns: make(map[string]*core.Column, len(columns)),
		byModel: make(map[string][]*core.Column, len(models)),
	}
	for _, m := range models {
		s.models[m.ID] = m
	}
	for _, c := range columns {
		s.columns[c.ID] = c
		s.byModel[c.ModelID] = append(s.byModel[c.ModelID], c)
	}
	for _, cols := range s.byModel {
		slices.SortStableFunc(cols, func(a, b *core.Column) int {
			if a.Order != b.Order {
				return a.Order - b.Order
			}
			return strings.Compare(a.ID, b.ID)
		})
	}
	return s
}

// Model implements Lookup.
func (s *Snapshot) Model(id string) (*core.Model, bool) {
	m, ok := s.models[id]
	return m, ok
}

// Column implements Lookup.
func (s *Snapshot) Column(id string) (*core.Column, bool) {
	c, ok := s.columns[id]
	return c, ok
}

// ModelColumns returns the columns of a model ordered by Order.
func (s *Snapshot) ModelColumns(modelID string) []*core.Column {
	return s.byModel[modelID]
}
