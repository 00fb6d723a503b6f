// Package compiler turns requests against the virtual schema into SQL for
// the source a model lives on, and converts rows in both directions.
//
// Each call prefetches the models reachable from the requested one, builds a
// fieldhandler.Env over that snapshot and discards it afterwards; the only
// state shared between calls is the metadata cache behind the MetaReader and
// the optional compiled-query cache.
package compiler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/leapstack-labs/leapgrid/pkg/adapter"
	"github.com/leapstack-labs/leapgrid/pkg/core"
	"github.com/leapstack-labs/leapgrid/pkg/dialect"
	"github.com/leapstack-labs/leapgrid/pkg/fieldhandler"
	"github.com/leapstack-labs/leapgrid/pkg/metacache"
	"github.com/leapstack-labs/leapgrid/pkg/relation"
)

// DefaultLimit is the page size of requests without one.
const DefaultLimit = 25

// ErrNoPool is returned by Run when the compiler has no connection pool.
var ErrNoPool = errors.New("compiler has no connection pool")

// Compiler compiles requests. It is safe for concurrent use.
type Compiler struct {
	meta     core.MetaReader
	logger   *slog.Logger
	registry *fieldhandler.Registry
	cache    *metacache.Cache
	pool     *adapter.Pool

	defaultLimit      int
	maxLongTextLength int
}

// Option configures a Compiler.
type Option func(*Compiler)

// WithRegistry resolves field handlers from r instead of fieldhandler.Default().
func WithRegistry(r *fieldhandler.Registry) Option {
	return func(c *Compiler) { c.registry = r }
}

// WithQueryCache stores compiled queries in the single_query scope of cache.
// metastore.Cached clears that scope whenever a column changes.
func WithQueryCache(cache *metacache.Cache) Option {
	return func(c *Compiler) { c.cache = cache }
}

// WithPool lets Run execute compiled queries.
func WithPool(p *adapter.Pool) Option {
	return func(c *Compiler) { c.pool = p }
}

// WithDefaultLimit sets the page size of requests without one.
func WithDefaultLimit(n int) Option {
	return func(c *Compiler) { c.defaultLimit = n }
}

// WithMaxLongTextLength sets the LongText write limit.
func WithMaxLongTextLength(n int) Option {
	return func(c *Compiler) { c.maxLongTextLength = n }
}

// New creates a compiler reading metadata from meta.
// If logger is nil, a discard logger is used.
func New(meta core.MetaReader, logger *slog.Logger, opts ...Option) *Compiler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	c := &Compiler{
		meta:         meta,
		logger:       logger,
		registry:     fieldhandler.Default(),
		defaultLimit: DefaultLimit,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// target is the model a call works on together with everything needed to
// compile for it.
type target struct {
	model  *core.Model
	source *core.Source
	snap   *relation.Snapshot
	env    *fieldhandler.Env
}

func (c *Compiler) target(ctx context.Context, modelID string) (*target, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	model, err := c.meta.GetModel(ctx, modelID)
	if err != nil {
		return nil, fmt.Errorf("failed to load model %s: %w", modelID, err)
	}
	if model.Deleted {
		return nil, fmt.Errorf("model %s: %w", modelID, core.ErrNotFound)
	}
	src, err := c.meta.GetSource(ctx, model.SourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to load source of model %s: %w", modelID, err)
	}
	d, caps, err := dialect.ForSource(src.Config)
	if err != nil {
		var cfgErr *core.ConfigurationError
		if errors.As(err, &cfgErr) {
			cfgErr.SourceID = src.ID
		}
		return nil, err
	}

	snap, err := c.prefetch(ctx, model)
	if err != nil {
		return nil, err
	}

	opts := []fieldhandler.EnvOption{
		fieldhandler.WithRegistry(c.registry),
		fieldhandler.WithTableSchema(src.Config.Schema),
	}
	if c.maxLongTextLength > 0 {
		opts = append(opts, fieldhandler.WithMaxLongTextLength(c.maxLongTextLength))
	}
	env := fieldhandler.NewEnv(d, caps, snap, c.logger, opts...)
	return &target{model: model, source: src, snap: snap, env: env}, nil
}

// column returns a column of the target model.
func (t *target) column(id string) (*core.Column, error) {
	col, ok := t.snap.Column(id)
	if !ok || col.ModelID != t.model.ID {
		return nil, fmt.Errorf("column %s of model %s: %w", id, t.model.ID, core.ErrNotFound)
	}
	return col, nil
}

func (t *target) columns() []*core.Column {
	return t.snap.ModelColumns(t.model.ID)
}
