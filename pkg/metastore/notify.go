package metastore

import "context"

// RemoveFunc receives everything a successful delete removed.
type RemoveFunc func(ctx context.Context, removed *Removed)

// Notifying is a Store that reports deletes, so that owners of per-source
// or per-model state (connection pools, caches outside the store) can drop
// it.
type Notifying struct {
	Store
	onRemove RemoveFunc
}

// NotifyRemovals wraps store so that onRemove runs after every delete.
func NotifyRemovals(store Store, onRemove RemoveFunc) *Notifying {
	return &Notifying{Store: store, onRemove: onRemove}
}

// DeleteColumn implements Store.
func (n *Notifying) DeleteColumn(ctx context.Context, id string) (*Removed, error) {
	return n.notify(ctx)(n.Store.DeleteColumn(ctx, id))
}

// DeleteModel implements Store.
func (n *Notifying) DeleteModel(ctx context.Context, id string) (*Removed, error) {
	return n.notify(ctx)(n.Store.DeleteModel(ctx, id))
}

// DeleteSource implements Store.
func (n *Notifying) DeleteSource(ctx context.Context, id string) (*Removed, error) {
	return n.notify(ctx)(n.Store.DeleteSource(ctx, id))
}

func (n *Notifying) notify(ctx context.Context) func(*Removed, error) (*Removed, error) {
	return func(removed *Removed, err error) (*Removed, error) {
		if err == nil && removed != nil && n.onRemove != nil {
			n.onRemove(ctx, removed)
		}
		return removed, err
	}
}

var _ Store = (*Notifying)(nil)
