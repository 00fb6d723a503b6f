package compiler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/leapgrid/pkg/core"
	"github.com/leapstack-labs/leapgrid/pkg/relation"
)

// prefetchConcurrency bounds the metadata reads of one prefetch level.
const prefetchConcurrency = 8

type fetched struct {
	model   *core.Model
	columns []*core.Column
}

// prefetch loads root and every model reachable from it through link
// columns, one breadth-first level at a time. Models that no longer exist
// are skipped; the handlers resolve references to them as NULL.
func (c *Compiler) prefetch(ctx context.Context, root *core.Model) (*relation.Snapshot, error) {
	rootCols, err := c.meta.ListColumns(ctx, root.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list columns of model %s: %w", root.ID, err)
	}

	models := []*core.Model{root}
	columns := append([]*core.Column(nil), rootCols...)
	seen := map[string]bool{root.ID: true}
	level := linkedModels(rootCols, seen)

	for len(level) > 0 {
		results := make([]*fetched, len(level))
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(prefetchConcurrency)
		for i, id := range level {
			g.Go(func() error {
				f, err := c.fetch(gctx, id)
				results[i] = f
				return err
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}

		var next []*core.Column
		for _, f := range results {
			if f == nil {
				continue
			}
			models = append(models, f.model)
			columns = append(columns, f.columns...)
			next = append(next, f.columns...)
		}
		level = linkedModels(next, seen)
	}

	c.logger.Debug("prefetched metadata",
		slog.String("model", root.ID),
		slog.Int("models", len(models)),
		slog.Int("columns", len(columns)))
	return relation.NewSnapshot(models, columns), nil
}

func (c *Compiler) fetch(ctx context.Context, id string) (*fetched, error) {
	m, err := c.meta.GetModel(ctx, id)
	if errors.Is(err, core.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load model %s: %w", id, err)
	}
	cols, err := c.meta.ListColumns(ctx, id)
	if errors.Is(err, core.ErrNotFound) {
		return &fetched{model: m}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list columns of model %s: %w", id, err)
	}
	return &fetched{model: m, columns: cols}, nil
}

// linkedModels returns the unseen models that cols link to and marks them seen.
func linkedModels(cols []*core.Column, seen map[string]bool) []string {
	var ids []string
	add := func(id string) {
		if id != "" && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	for _, col := range cols {
		if opts := col.Options.Link; opts != nil {
			add(opts.RelatedModelID)
			add(opts.JunctionModelID)
		}
	}
	return ids
}
