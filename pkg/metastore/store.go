// Package metastore persists the virtual schema (sources, models, columns).
//
// Store is the source of truth. Two implementations are provided: MemoryStore
// for tests and fixtures, and SQLStore on SQLite with goose migrations.
// Cached puts the metadata cache in front of any Store.
package metastore

import (
	"context"
	"errors"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/leapstack-labs/leapgrid/pkg/core"
)

// ErrExists is returned when inserting an entity whose id is taken.
var ErrExists = errors.New("already exists")

// Removed lists everything a delete took with it, cascades included.
type Removed struct {
	Sources []*core.Source
	Models  []*core.Model
	Columns []*core.Column
}

// Store reads and writes the virtual schema.
type Store interface {
	core.MetaReader

	ListSources(ctx context.Context) ([]*core.Source, error)
	ListModels(ctx context.Context) ([]*core.Model, error)

	// Insert* assign a new id when the entity has none.
	InsertSource(ctx context.Context, src *core.Source) error
	InsertModel(ctx context.Context, m *core.Model) error
	InsertColumn(ctx context.Context, col *core.Column) error
	UpdateColumn(ctx context.Context, col *core.Column) error

	// Deleting a column also deletes every link column that uses it as a
	// foreign key. Deleting a model or source deletes what it owns.
	DeleteColumn(ctx context.Context, id string) (*Removed, error)
	DeleteModel(ctx context.Context, id string) (*Removed, error)
	DeleteSource(ctx context.Context, id string) (*Removed, error)

	Close() error
}

func generateID() string {
	return uuid.New().String()
}

// dependentLinks returns the link columns among cols that reference any of ids.
func dependentLinks(cols []*core.Column, ids []string) []*core.Column {
	var out []*core.Column
	for _, c := range cols {
		link := c.Options.Link
		if link == nil || slices.Contains(ids, c.ID) {
			continue
		}
		for _, ref := range []string{link.ChildColumnID, link.ParentColumnID, link.JunctionChildColumnID, link.JunctionParentColumnID} {
			if ref != "" && slices.Contains(ids, ref) {
				out = append(out, c)
				break
			}
		}
	}
	return out
}

func sortColumns(cols []*core.Column) {
	slices.SortStableFunc(cols, func(a, b *core.Column) int {
		if a.Order != b.Order {
			return a.Order - b.Order
		}
		return strings.Compare(a.ID, b.ID)
	})
}

func sortModels(models []*core.Model) {
	slices.SortFunc(models, func(a, b *core.Model) int {
		if c := strings.Compare(a.Title, b.Title); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
}

func sortByID(cols []*core.Column) {
	slices.SortFunc(cols, func(a, b *core.Column) int {
		return strings.Compare(a.ID, b.ID)
	})
}

func columnIDs(cols []*core.Column) []string {
	ids := make([]string, len(cols))
	for i, c := range cols {
		ids[i] = c.ID
	}
	return ids
}
