package metastore

import (
	"context"
	"log/slog"
	"slices"
	"strconv"
	"sync/atomic"

	"github.com/leapstack-labs/leapgrid/pkg/core"
	"github.com/leapstack-labs/leapgrid/pkg/metacache"
	"golang.org/x/sync/singleflight"
)

// Cached serves reads from the metadata cache and falls back to the wrapped
// Store. Cache failures are logged and treated as misses. Writes go to the
// store first and then invalidate only the entries they touch.
//
// Every write bumps a generation counter after the store write and before
// touching the cache. A miss that read the store under an older generation
// removes what it wrote back, so a fetch racing a write never leaves the
// pre-write value cached. Returned entities are deep copies.
type Cached struct {
	store  Store
	cache  *metacache.Cache
	logger *slog.Logger
	group  singleflight.Group
	gen    atomic.Uint64
}

// NewCached wraps store. A nil cache uses an in-memory cache without TTL.
func NewCached(store Store, cache *metacache.Cache, logger *slog.Logger) *Cached {
	if cache == nil {
		cache = metacache.New(nil)
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Cached{store: store, cache: cache, logger: logger}
}

// Cache returns the cache in front of the store.
func (c *Cached) Cache() *metacache.Cache { return c.cache }

// GetSource implements core.MetaReader.
func (c *Cached) GetSource(ctx context.Context, id string) (*core.Source, error) {
	return load(ctx, c, metacache.Key(metacache.ScopeSource, id), (*core.Source).Clone, func() (*core.Source, error) {
		return c.store.GetSource(ctx, id)
	})
}

// GetModel implements core.MetaReader.
func (c *Cached) GetModel(ctx context.Context, id string) (*core.Model, error) {
	return load(ctx, c, metacache.Key(metacache.ScopeModel, id), (*core.Model).Clone, func() (*core.Model, error) {
		return c.store.GetModel(ctx, id)
	})
}

// GetColumn implements core.MetaReader.
func (c *Cached) GetColumn(ctx context.Context, id string) (*core.Column, error) {
	return load(ctx, c, metacache.Key(metacache.ScopeColumn, id), (*core.Column).Clone, func() (*core.Column, error) {
		return c.store.GetColumn(ctx, id)
	})
}

// ListColumns implements core.MetaReader.
func (c *Cached) ListColumns(ctx context.Context, modelID string) ([]*core.Column, error) {
	args := []string{modelID}
	listKey := metacache.ListKey(metacache.ScopeColumn, args...)
	var cols []*core.Column
	ok, err := c.cache.GetList(ctx, metacache.ScopeColumn, args, &cols)
	if err != nil {
		c.warn("cache list read failed", listKey, err)
	}
	if ok && err == nil {
		if cols == nil {
			cols = []*core.Column{}
		}
		return cols, nil
	}

	gen := c.gen.Load()
	v, err, _ := c.group.Do(flightKey(listKey, gen), func() (any, error) {
		cols, err := c.store.ListColumns(ctx, modelID)
		if err != nil {
			return nil, err
		}
		keys := []string{listKey}
		entries := make([]metacache.Entry, len(cols))
		for i, col := range cols {
			entries[i] = metacache.Entry{Key: metacache.Key(metacache.ScopeColumn, col.ID), Value: col}
			keys = append(keys, entries[i].Key)
		}
		if err := c.cache.SetList(ctx, metacache.ScopeColumn, args, entries); err != nil {
			c.warn("cache list write failed", listKey, err)
		}
		c.dropIfStale(ctx, gen, keys...)
		return cols, nil
	})
	if err != nil {
		return nil, err
	}

	shared := v.([]*core.Column)
	out := make([]*core.Column, len(shared))
	for i, col := range shared {
		out[i] = col.Clone()
	}
	return out, nil
}

// ListSources reads through to the store.
func (c *Cached) ListSources(ctx context.Context) ([]*core.Source, error) {
	return c.store.ListSources(ctx)
}

// ListModels reads through to the store.
func (c *Cached) ListModels(ctx context.Context) ([]*core.Model, error) {
	return c.store.ListModels(ctx)
}

// InsertSource implements Store.
func (c *Cached) InsertSource(ctx context.Context, src *core.Source) error {
	if err := c.store.InsertSource(ctx, src); err != nil {
		return err
	}
	c.gen.Add(1)
	return nil
}

// InsertModel implements Store.
func (c *Cached) InsertModel(ctx context.Context, m *core.Model) error {
	if err := c.store.InsertModel(ctx, m); err != nil {
		return err
	}
	c.gen.Add(1)
	return nil
}

// InsertColumn stores the column and appends it to its model's cached
// column list, if that list is populated.
func (c *Cached) InsertColumn(ctx context.Context, col *core.Column) error {
	if err := c.store.InsertColumn(ctx, col); err != nil {
		return err
	}
	c.gen.Add(1)

	key := metacache.Key(metacache.ScopeColumn, col.ID)
	if err := c.cache.Set(ctx, key, col); err != nil {
		c.warn("cache write failed", key, err)
		// The list cannot be extended with an item that is not cached.
		c.deleteKeys(ctx, metacache.ListKey(metacache.ScopeColumn, col.ModelID))
	} else if err := c.cache.AppendToList(ctx, metacache.ScopeColumn, []string{col.ModelID}, key); err != nil {
		c.warn("cache list append failed", key, err)
		c.deleteKeys(ctx, metacache.ListKey(metacache.ScopeColumn, col.ModelID))
	}
	c.clearQueries(ctx)
	return nil
}

// UpdateColumn stores the column and drops it from every cached list.
func (c *Cached) UpdateColumn(ctx context.Context, col *core.Column) error {
	if err := c.store.UpdateColumn(ctx, col); err != nil {
		return err
	}
	c.gen.Add(1)
	c.deepDelete(ctx, col)
	c.clearQueries(ctx)
	return nil
}

// DeleteColumn implements Store.
func (c *Cached) DeleteColumn(ctx context.Context, id string) (*Removed, error) {
	removed, err := c.store.DeleteColumn(ctx, id)
	if err != nil {
		return nil, err
	}
	c.invalidate(ctx, removed)
	return removed, nil
}

// DeleteModel removes the model, its column list and its columns from the
// cache in one atomic delete.
func (c *Cached) DeleteModel(ctx context.Context, id string) (*Removed, error) {
	removed, err := c.store.DeleteModel(ctx, id)
	if err != nil {
		return nil, err
	}
	c.invalidate(ctx, removed)
	return removed, nil
}

// DeleteSource implements Store.
func (c *Cached) DeleteSource(ctx context.Context, id string) (*Removed, error) {
	removed, err := c.store.DeleteSource(ctx, id)
	if err != nil {
		return nil, err
	}
	c.invalidate(ctx, removed)
	return removed, nil
}

// Close closes the wrapped store.
func (c *Cached) Close() error {
	return c.store.Close()
}

func (c *Cached) invalidate(ctx context.Context, removed *Removed) {
	c.gen.Add(1)
	var keys []string
	var gone []string
	for _, src := range removed.Sources {
		keys = append(keys, metacache.Key(metacache.ScopeSource, src.ID))
	}
	for _, m := range removed.Models {
		gone = append(gone, m.ID)
		keys = append(keys, metacache.Key(metacache.ScopeModel, m.ID))
		keys = append(keys, c.cache.ListClosure(ctx, metacache.ScopeColumn, []string{m.ID})...)
	}
	for _, col := range removed.Columns {
		if slices.Contains(gone, col.ModelID) {
			keys = append(keys, metacache.Key(metacache.ScopeColumn, col.ID))
		}
	}
	c.deleteKeys(ctx, keys...)

	for _, col := range removed.Columns {
		if !slices.Contains(gone, col.ModelID) {
			c.deepDelete(ctx, col)
		}
	}
	c.clearQueries(ctx)
}

func (c *Cached) deepDelete(ctx context.Context, col *core.Column) {
	key := metacache.Key(metacache.ScopeColumn, col.ID)
	if err := c.cache.DeepDelete(ctx, key); err != nil {
		c.warn("cache deep delete failed", key, err)
	}
}

func (c *Cached) deleteKeys(ctx context.Context, keys ...string) {
	if err := c.cache.Delete(ctx, keys...); err != nil {
		c.warn("cache delete failed", "", err)
	}
}

// clearQueries drops compiled queries; any column change can alter the SQL
// of every model that reaches it through a relation.
func (c *Cached) clearQueries(ctx context.Context) {
	if err := c.cache.DeleteScope(ctx, metacache.ScopeSingleQuery); err != nil {
		c.warn("cache scope delete failed", string(metacache.ScopeSingleQuery), err)
	}
}

// dropIfStale deletes keys written back by a fetch that started at gen if
// a write has happened since.
func (c *Cached) dropIfStale(ctx context.Context, gen uint64, keys ...string) {
	if c.gen.Load() == gen {
		return
	}
	c.logger.Debug("dropping stale cache write-back", slog.Int("keys", len(keys)))
	c.deleteKeys(ctx, keys...)
}

// flightKey scopes concurrent fetches to one generation, so a caller that
// arrives after a write never joins a fetch that started before it.
func flightKey(key string, gen uint64) string {
	return key + "@" + strconv.FormatUint(gen, 10)
}

func (c *Cached) warn(msg, key string, err error) {
	c.logger.Warn(msg, slog.String("key", key), slog.String("error", err.Error()))
}

// load reads key from the cache or, on a miss, from fetch. Concurrent misses
// for the same key share one fetch; each caller gets its own clone.
func load[T any](ctx context.Context, c *Cached, key string, clone func(*T) *T, fetch func() (*T, error)) (*T, error) {
	var cached T
	ok, err := c.cache.Get(ctx, key, &cached)
	if err != nil {
		c.warn("cache read failed", key, err)
	}
	if ok && err == nil {
		return &cached, nil
	}

	gen := c.gen.Load()
	v, err, _ := c.group.Do(flightKey(key, gen), func() (any, error) {
		item, err := fetch()
		if err != nil {
			return nil, err
		}
		if err := c.cache.Set(ctx, key, item); err != nil {
			c.warn("cache write failed", key, err)
		}
		c.dropIfStale(ctx, gen, key)
		return item, nil
	})
	if err != nil {
		return nil, err
	}
	return clone(v.(*T)), nil
}

var _ Store = (*Cached)(nil)
