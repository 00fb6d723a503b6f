package metastore

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/leapstack-labs/leapgrid/pkg/core"
)

// MemoryStore is an in-process Store. Returned entities are copies.
type MemoryStore struct {
	mu      sync.RWMutex
	sources map[string]*core.Source
	models  map[string]*core.Model
	columns map[string]*core.Column
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sources: make(map[string]*core.Source),
		models:  make(map[string]*core.Model),
		columns: make(map[string]*core.Column),
	}
}

// GetSource implements core.MetaReader.
func (s *MemoryStore) GetSource(_ context.Context, id string) (*core.Source, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	src, ok := s.sources[id]
	if !ok {
		return nil, fmt.Errorf("source %s: %w", id, core.ErrNotFound)
	}
	return src.Clone(), nil
}

// GetModel implements core.MetaReader.
func (s *MemoryStore) GetModel(_ context.Context, id string) (*core.Model, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.models[id]
	if !ok {
		return nil, fmt.Errorf("model %s: %w", id, core.ErrNotFound)
	}
	out := *m
	return &out, nil
}

// GetColumn implements core.MetaReader.
func (s *MemoryStore) GetColumn(_ context.Context, id string) (*core.Column, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.columns[id]
	if !ok {
		return nil, fmt.Errorf("column %s: %w", id, core.ErrNotFound)
	}
	return c.Clone(), nil
}

// ListColumns implements core.MetaReader.
func (s *MemoryStore) ListColumns(_ context.Context, modelID string) ([]*core.Column, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.models[modelID]; !ok {
		return nil, fmt.Errorf("model %s: %w", modelID, core.ErrNotFound)
	}
	cols := make([]*core.Column, 0)
	for _, c := range s.columns {
		if c.ModelID == modelID {
			cols = append(cols, c.Clone())
		}
	}
	sortColumns(cols)
	return cols, nil
}

// ListSources returns every source ordered by id.
func (s *MemoryStore) ListSources(_ context.Context) ([]*core.Source, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*core.Source, 0, len(s.sources))
	for _, id := range slices.Sorted(maps.Keys(s.sources)) {
		out = append(out, s.sources[id].Clone())
	}
	return out, nil
}

// ListModels returns every model ordered by title.
func (s *MemoryStore) ListModels(_ context.Context) ([]*core.Model, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*core.Model, 0, len(s.models))
	for _, m := range s.models {
		cp := *m
		out = append(out, &cp)
	}
	sortModels(out)
	return out, nil
}

// InsertSource implements Store.
func (s *MemoryStore) InsertSource(_ context.Context, src *core.Source) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if src.ID == "" {
		src.ID = generateID()
	}
	if _, ok := s.sources[src.ID]; ok {
		return fmt.Errorf("source %s: %w", src.ID, ErrExists)
	}
	s.sources[src.ID] = src.Clone()
	return nil
}

// InsertModel implements Store.
func (s *MemoryStore) InsertModel(_ context.Context, m *core.Model) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sources[m.SourceID]; !ok {
		return fmt.Errorf("source %s: %w", m.SourceID, core.ErrNotFound)
	}
	if m.ID == "" {
		m.ID = generateID()
	}
	if _, ok := s.models[m.ID]; ok {
		return fmt.Errorf("model %s: %w", m.ID, ErrExists)
	}
	cp := *m
	s.models[m.ID] = &cp
	return nil
}

// InsertColumn implements Store.
func (s *MemoryStore) InsertColumn(_ context.Context, col *core.Column) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.models[col.ModelID]; !ok {
		return fmt.Errorf("model %s: %w", col.ModelID, core.ErrNotFound)
	}
	if col.ID == "" {
		col.ID = generateID()
	}
	if _, ok := s.columns[col.ID]; ok {
		return fmt.Errorf("column %s: %w", col.ID, ErrExists)
	}
	s.columns[col.ID] = col.Clone()
	return nil
}

// UpdateColumn replaces a column. The owning model cannot change.
func (s *MemoryStore) UpdateColumn(_ context.Context, col *core.Column) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.columns[col.ID]
	if !ok {
		return fmt.Errorf("column %s: %w", col.ID, core.ErrNotFound)
	}
	updated := col.Clone()
	updated.ModelID = cur.ModelID
	s.columns[col.ID] = updated
	return nil
}

// DeleteColumn implements Store.
func (s *MemoryStore) DeleteColumn(_ context.Context, id string) (*Removed, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	col, ok := s.columns[id]
	if !ok {
		return nil, fmt.Errorf("column %s: %w", id, core.ErrNotFound)
	}
	return s.removeColumns([]*core.Column{col}), nil
}

// DeleteModel implements Store.
func (s *MemoryStore) DeleteModel(_ context.Context, id string) (*Removed, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.models[id]
	if !ok {
		return nil, fmt.Errorf("model %s: %w", id, core.ErrNotFound)
	}
	removed := s.removeColumns(s.modelColumns(id))
	delete(s.models, id)
	removed.Models = []*core.Model{m}
	return removed, nil
}

// DeleteSource implements Store.
func (s *MemoryStore) DeleteSource(_ context.Context, id string) (*Removed, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	src, ok := s.sources[id]
	if !ok {
		return nil, fmt.Errorf("source %s: %w", id, core.ErrNotFound)
	}

	var models []*core.Model
	var cols []*core.Column
	for _, m := range s.models {
		if m.SourceID == id {
			models = append(models, m)
			cols = append(cols, s.modelColumns(m.ID)...)
		}
	}
	removed := s.removeColumns(cols)
	for _, m := range models {
		delete(s.models, m.ID)
	}
	delete(s.sources, id)

	sortModels(models)
	removed.Models = models
	removed.Sources = []*core.Source{src}
	return removed, nil
}

// modelColumns returns the stored columns of a model. Callers hold mu.
func (s *MemoryStore) modelColumns(modelID string) []*core.Column {
	var cols []*core.Column
	for _, c := range s.columns {
		if c.ModelID == modelID {
			cols = append(cols, c)
		}
	}
	return cols
}

// removeColumns deletes cols and the link columns depending on them.
// Callers hold mu.
func (s *MemoryStore) removeColumns(cols []*core.Column) *Removed {
	all := slices.Collect(maps.Values(s.columns))
	links := dependentLinks(all, columnIDs(cols))

	removed := &Removed{}
	for _, c := range append(cols, links...) {
		if _, ok := s.columns[c.ID]; !ok {
			continue
		}
		delete(s.columns, c.ID)
		removed.Columns = append(removed.Columns, c)
	}
	sortByID(removed.Columns)
	return removed
}

// Close implements Store.
func (s *MemoryStore) Close() error { return nil }

var _ Store = (*MemoryStore)(nil)
