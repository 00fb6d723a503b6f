package metacache

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"
)

// Entry is one item of a list write.
type Entry struct {
	Key   string
	Value any
}

// Stats counts lookups since the cache was created.
type Stats struct {
	Hits   int64
	Misses int64
}

// Cache stores msgpack-encoded metadata in a Backend.
type Cache struct {
	backend Backend
	ttl     time.Duration

	// listMu serializes read-modify-write of list and parent entries.
	listMu sync.Mutex

	hits   atomic.Int64
	misses atomic.Int64
}

// Option configures a Cache.
type Option func(*Cache)

// WithTTL expires every entry after d. Zero keeps entries until invalidated.
func WithTTL(d time.Duration) Option {
	return func(c *Cache) { c.ttl = d }
}

// New creates a cache over backend. A nil backend uses a MemoryBackend.
func New(backend Backend, opts ...Option) *Cache {
	if backend == nil {
		backend = NewMemoryBackend()
	}
	c := &Cache{backend: backend}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get decodes the value stored under key into dst. It reports false on a miss.
func (c *Cache) Get(ctx context.Context, key string, dst any) (bool, error) {
	ok, err := c.get(ctx, key, dst)
	c.count(ok)
	return ok, err
}

func (c *Cache) get(ctx context.Context, key string, dst any) (bool, error) {
	b, err := c.backend.Get(ctx, key)
	if err != nil {
		return false, fmt.Errorf("failed to read cache key %s: %w", key, err)
	}
	if b == nil {
		return false, nil
	}
	if err := decode(b, dst); err != nil {
		return false, fmt.Errorf("failed to decode cache key %s: %w", key, err)
	}
	return true, nil
}

// Set stores v under key.
func (c *Cache) Set(ctx context.Context, key string, v any) error {
	b, err := encode(v)
	if err != nil {
		return fmt.Errorf("failed to encode cache key %s: %w", key, err)
	}
	if err := c.backend.Set(ctx, key, b, c.ttl); err != nil {
		return fmt.Errorf("failed to write cache key %s: %w", key, err)
	}
	return nil
}

// GetList decodes the list in scope qualified by args into dst, which must be
// a pointer to a slice. A missing list or any missing item is a miss.
func (c *Cache) GetList(ctx context.Context, scope Scope, args []string, dst any) (bool, error) {
	ok, err := c.getList(ctx, scope, args, dst)
	c.count(ok)
	return ok, err
}

func (c *Cache) getList(ctx context.Context, scope Scope, args []string, dst any) (bool, error) {
	var keys []string
	ok, err := c.get(ctx, ListKey(scope, args...), &keys)
	if err != nil || !ok {
		return false, err
	}

	items := make([][]byte, len(keys))
	for i, key := range keys {
		b, err := c.backend.Get(ctx, key)
		if err != nil {
			return false, fmt.Errorf("failed to read cache key %s: %w", key, err)
		}
		if b == nil {
			return false, nil
		}
		items[i] = b
	}

	joined, err := joinItems(items)
	if err != nil {
		return false, fmt.Errorf("failed to join list items: %w", err)
	}
	if err := decode(joined, dst); err != nil {
		return false, fmt.Errorf("failed to decode list %s: %w", ListKey(scope, args...), err)
	}
	return true, nil
}

// SetList stores every entry as an item and the list of their keys. An empty
// entries slice caches an empty list.
func (c *Cache) SetList(ctx context.Context, scope Scope, args []string, entries []Entry) error {
	c.listMu.Lock()
	defer c.listMu.Unlock()

	listKey := ListKey(scope, args...)
	keys := make([]string, len(entries))
	for i, e := range entries {
		if err := c.Set(ctx, e.Key, e.Value); err != nil {
			return err
		}
		if err := c.addParent(ctx, e.Key, listKey); err != nil {
			return err
		}
		keys[i] = e.Key
	}
	return c.Set(ctx, listKey, keys)
}

// AppendToList adds key to an already-populated list. It does nothing when
// the list is not cached or already holds key.
func (c *Cache) AppendToList(ctx context.Context, scope Scope, args []string, key string) error {
	c.listMu.Lock()
	defer c.listMu.Unlock()

	listKey := ListKey(scope, args...)
	var keys []string
	ok, err := c.get(ctx, listKey, &keys)
	if err != nil || !ok {
		return err
	}
	if slices.Contains(keys, key) {
		return nil
	}

	if err := c.addParent(ctx, key, listKey); err != nil {
		return err
	}
	return c.Set(ctx, listKey, append(keys, key))
}

// Delete removes keys atomically.
func (c *Cache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := c.backend.Delete(ctx, keys...); err != nil {
		return fmt.Errorf("failed to delete cache keys: %w", err)
	}
	return nil
}

// DeepDelete removes the item under key and every list that contains it,
// atomically.
func (c *Cache) DeepDelete(ctx context.Context, key string) error {
	c.listMu.Lock()
	defer c.listMu.Unlock()

	var parents []string
	if _, err := c.get(ctx, parentsKey(key), &parents); err != nil {
		return err
	}
	keys := append([]string{key, parentsKey(key)}, parents...)
	return c.Delete(ctx, keys...)
}

// DeleteList removes the list in scope qualified by args and all of its items,
// atomically.
func (c *Cache) DeleteList(ctx context.Context, scope Scope, args []string) error {
	c.listMu.Lock()
	defer c.listMu.Unlock()

	return c.Delete(ctx, c.listClosure(ctx, scope, args)...)
}

// ListClosure returns the list key of scope/args followed by the keys of its
// items and their parent records, for inclusion in a larger atomic delete.
func (c *Cache) ListClosure(ctx context.Context, scope Scope, args []string) []string {
	c.listMu.Lock()
	defer c.listMu.Unlock()
	return c.listClosure(ctx, scope, args)
}

func (c *Cache) listClosure(ctx context.Context, scope Scope, args []string) []string {
	listKey := ListKey(scope, args...)
	closure := []string{listKey}

	var keys []string
	if ok, _ := c.get(ctx, listKey, &keys); ok {
		for _, k := range keys {
			closure = append(closure, k, parentsKey(k))
		}
	}
	return closure
}

// DeleteScope removes every key in scope.
func (c *Cache) DeleteScope(ctx context.Context, scope Scope) error {
	if err := c.backend.DeletePrefix(ctx, Prefix(scope)); err != nil {
		return fmt.Errorf("failed to delete scope %s: %w", scope, err)
	}
	return nil
}

// Clear drops every entry.
func (c *Cache) Clear(ctx context.Context) error {
	return c.backend.Clear(ctx)
}

// Stats returns the hit and miss counters.
func (c *Cache) Stats() Stats {
	return Stats{Hits: c.hits.Load(), Misses: c.misses.Load()}
}

func (c *Cache) count(hit bool) {
	if hit {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
}

// addParent records that listKey contains itemKey. Callers hold listMu.
func (c *Cache) addParent(ctx context.Context, itemKey, listKey string) error {
	var parents []string
	if _, err := c.get(ctx, parentsKey(itemKey), &parents); err != nil {
		return err
	}
	if slices.Contains(parents, listKey) {
		return nil
	}
	return c.Set(ctx, parentsKey(itemKey), append(parents, listKey))
}
