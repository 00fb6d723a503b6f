package metacache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/leapstack-labs/leapgrid/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func columnEntries(cols ...*core.Column) []Entry {
	entries := make([]Entry, len(cols))
	for i, c := range cols {
		entries[i] = Entry{Key: Key(ScopeColumn, c.ID), Value: c}
	}
	return entries
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "column:c1", Key(ScopeColumn, "c1"))
	assert.Equal(t, "column:list:m1", ListKey(ScopeColumn, "m1"))
	assert.Equal(t, "single_query:list:m1:v2", ListKey(ScopeSingleQuery, "m1", "v2"))
	assert.Equal(t, "model:", Prefix(ScopeModel))
}

func TestCache_GetSet(t *testing.T) {
	ctx := context.Background()
	c := New(nil)

	var miss core.Model
	ok, err := c.Get(ctx, Key(ScopeModel, "m1"), &miss)
	require.NoError(t, err)
	assert.False(t, ok)

	model := core.Model{ID: "m1", SourceID: "s1", TableName: "orders", Title: "Orders", Type: core.ModelTypeTable}
	require.NoError(t, c.Set(ctx, Key(ScopeModel, "m1"), model))

	var got core.Model
	ok, err = c.Get(ctx, Key(ScopeModel, "m1"), &got)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, model, got)

	assert.Equal(t, Stats{Hits: 1, Misses: 1}, c.Stats())
}

func TestCache_ColumnRoundTripKeepsOptions(t *testing.T) {
	ctx := context.Background()
	c := New(nil)

	col := &core.Column{
		ID:     "c1",
		Title:  "Customer",
		UIType: core.UITypeLinkToAnother,
		Meta:   map[string]any{"bt": true, "limit": 3},
		Options: core.ColOptions{Link: &core.LinkOptions{
			Type:           core.RelationBelongsTo,
			ChildColumnID:  "c2",
			ParentColumnID: "c9",
			RelatedModelID: "m2",
		}},
	}
	require.NoError(t, c.Set(ctx, Key(ScopeColumn, col.ID), col))

	var got core.Column
	ok, err := c.Get(ctx, Key(ScopeColumn, col.ID), &got)
	require.NoError(t, err)
	require.True(t, ok)
	require.NotNil(t, got.Options.Link)
	assert.Equal(t, *col.Options.Link, *got.Options.Link)
	assert.True(t, got.MetaBool("bt"))
	assert.Equal(t, 3, core.MetaInt(got.Meta, "limit", 0))
}

func TestCache_Lists(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(ctx context.Context, t *testing.T, c *Cache)
		wantOK  bool
		wantIDs []string
	}{
		{
			name:   "unpopulated list is a miss",
			setup:  func(context.Context, *testing.T, *Cache) {},
			wantOK: false,
		},
		{
			name: "populated list resolves items in order",
			setup: func(ctx context.Context, t *testing.T, c *Cache) {
				require.NoError(t, c.SetList(ctx, ScopeColumn, []string{"m1"}, columnEntries(
					&core.Column{ID: "c2", ModelID: "m1"},
					&core.Column{ID: "c1", ModelID: "m1"},
				)))
			},
			wantOK:  true,
			wantIDs: []string{"c2", "c1"},
		},
		{
			name: "empty list is a hit",
			setup: func(ctx context.Context, t *testing.T, c *Cache) {
				require.NoError(t, c.SetList(ctx, ScopeColumn, []string{"m1"}, nil))
			},
			wantOK:  true,
			wantIDs: []string{},
		},
		{
			name: "missing item makes the whole list a miss",
			setup: func(ctx context.Context, t *testing.T, c *Cache) {
				require.NoError(t, c.SetList(ctx, ScopeColumn, []string{"m1"}, columnEntries(
					&core.Column{ID: "c1", ModelID: "m1"},
					&core.Column{ID: "c2", ModelID: "m1"},
				)))
				require.NoError(t, c.Delete(ctx, Key(ScopeColumn, "c2")))
			},
			wantOK: false,
		},
		{
			name: "append extends a populated list",
			setup: func(ctx context.Context, t *testing.T, c *Cache) {
				require.NoError(t, c.SetList(ctx, ScopeColumn, []string{"m1"}, columnEntries(
					&core.Column{ID: "c1", ModelID: "m1"},
				)))
				require.NoError(t, c.Set(ctx, Key(ScopeColumn, "c3"), &core.Column{ID: "c3", ModelID: "m1"}))
				require.NoError(t, c.AppendToList(ctx, ScopeColumn, []string{"m1"}, Key(ScopeColumn, "c3")))
				require.NoError(t, c.AppendToList(ctx, ScopeColumn, []string{"m1"}, Key(ScopeColumn, "c3")))
			},
			wantOK:  true,
			wantIDs: []string{"c1", "c3"},
		},
		{
			name: "append to an unpopulated list does nothing",
			setup: func(ctx context.Context, t *testing.T, c *Cache) {
				require.NoError(t, c.Set(ctx, Key(ScopeColumn, "c3"), &core.Column{ID: "c3"}))
				require.NoError(t, c.AppendToList(ctx, ScopeColumn, []string{"m1"}, Key(ScopeColumn, "c3")))
			},
			wantOK: false,
		},
		{
			name: "deep delete drops every containing list",
			setup: func(ctx context.Context, t *testing.T, c *Cache) {
				require.NoError(t, c.SetList(ctx, ScopeColumn, []string{"m1"}, columnEntries(
					&core.Column{ID: "c1", ModelID: "m1"},
					&core.Column{ID: "c2", ModelID: "m1"},
				)))
				require.NoError(t, c.Set(ctx, Key(ScopeColumn, "c2"), &core.Column{ID: "c2", ModelID: "m1", Title: "renamed"}))
				require.NoError(t, c.DeepDelete(ctx, Key(ScopeColumn, "c1")))
			},
			wantOK: false,
		},
		{
			name: "delete list drops list and items",
			setup: func(ctx context.Context, t *testing.T, c *Cache) {
				require.NoError(t, c.SetList(ctx, ScopeColumn, []string{"m1"}, columnEntries(
					&core.Column{ID: "c1", ModelID: "m1"},
				)))
				require.NoError(t, c.DeleteList(ctx, ScopeColumn, []string{"m1"}))
			},
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			c := New(nil)
			tt.setup(ctx, t, c)

			var cols []*core.Column
			ok, err := c.GetList(ctx, ScopeColumn, []string{"m1"}, &cols)
			require.NoError(t, err)
			assert.Equal(t, tt.wantOK, ok)
			if !tt.wantOK {
				return
			}
			ids := make([]string, 0, len(cols))
			for _, col := range cols {
				ids = append(ids, col.ID)
			}
			assert.Equal(t, tt.wantIDs, ids)
		})
	}
}

func TestCache_DeepDeleteKeepsUnrelatedLists(t *testing.T) {
	ctx := context.Background()
	c := New(nil)

	require.NoError(t, c.SetList(ctx, ScopeColumn, []string{"m1"}, columnEntries(&core.Column{ID: "c1"})))
	require.NoError(t, c.SetList(ctx, ScopeColumn, []string{"m2"}, columnEntries(&core.Column{ID: "c2"})))
	require.NoError(t, c.DeepDelete(ctx, Key(ScopeColumn, "c1")))

	var cols []*core.Column
	ok, err := c.GetList(ctx, ScopeColumn, []string{"m2"}, &cols)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Len(t, cols, 1)

	ok, err = c.Get(ctx, Key(ScopeColumn, "c1"), &core.Column{})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCache_ListClosure(t *testing.T) {
	ctx := context.Background()
	c := New(nil)
	require.NoError(t, c.SetList(ctx, ScopeColumn, []string{"m1"}, columnEntries(&core.Column{ID: "c1"})))

	assert.Equal(t, []string{
		"column:list:m1",
		"column:c1",
		"parents:column:c1",
	}, c.ListClosure(ctx, ScopeColumn, []string{"m1"}))

	assert.Equal(t, []string{"column:list:m9"}, c.ListClosure(ctx, ScopeColumn, []string{"m9"}))
}

func TestCache_DeleteScope(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend()
	c := New(backend)

	require.NoError(t, c.Set(ctx, ListKey(ScopeSingleQuery, "m1", "a"), "SELECT 1"))
	require.NoError(t, c.Set(ctx, ListKey(ScopeSingleQuery, "m1", "b"), "SELECT 2"))
	require.NoError(t, c.Set(ctx, Key(ScopeModel, "m1"), core.Model{ID: "m1"}))

	require.NoError(t, c.DeleteScope(ctx, ScopeSingleQuery))
	assert.Equal(t, 1, backend.Len())
}

func TestCache_TTL(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	backend.now = func() time.Time { return now }

	c := New(backend, WithTTL(time.Minute))
	require.NoError(t, c.Set(ctx, "k", 1))

	var v int
	ok, err := c.Get(ctx, "k", &v)
	require.NoError(t, err)
	assert.True(t, ok)

	now = now.Add(2 * time.Minute)
	ok, err = c.Get(ctx, "k", &v)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 0, backend.Len(), "expired entry is evicted on read")
}

type failingBackend struct {
	*MemoryBackend
}

func (failingBackend) Get(context.Context, string) ([]byte, error) {
	return nil, errors.New("backend down")
}

func TestCache_BackendErrorsAreReported(t *testing.T) {
	c := New(failingBackend{NewMemoryBackend()})

	ok, err := c.Get(context.Background(), "k", new(int))
	require.Error(t, err)
	assert.False(t, ok)
	assert.Contains(t, err.Error(), "backend down")
}

func TestCache_ConcurrentAppends(t *testing.T) {
	ctx := context.Background()
	c := New(nil)
	require.NoError(t, c.SetList(ctx, ScopeColumn, []string{"m1"}, nil))

	var wg sync.WaitGroup
	for _, id := range []string{"a", "b", "c", "d", "e", "f", "g", "h"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			key := Key(ScopeColumn, id)
			assert.NoError(t, c.Set(ctx, key, &core.Column{ID: id}))
			assert.NoError(t, c.AppendToList(ctx, ScopeColumn, []string{"m1"}, key))
		}()
	}
	wg.Wait()

	var cols []*core.Column
	ok, err := c.GetList(ctx, ScopeColumn, []string{"m1"}, &cols)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, cols, 8)
}
