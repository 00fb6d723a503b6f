package compiler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/leapstack-labs/leapgrid/pkg/core"
	"github.com/leapstack-labs/leapgrid/pkg/formula"
)

// Result is the rendered output of Run.
type Result struct {
	Query *Query           `json:"query"`
	Rows  []map[string]any `json:"rows"`
}

// RenderRow converts a row read with a compiled query of the model, keyed by
// column ID, to its API form keyed by column title. Keys that are not
// columns of the model are dropped. Columns sharing a title with another
// column of the row are keyed by ID instead, so neither value is lost.
func (c *Compiler) RenderRow(ctx context.Context, modelID string, raw map[string]any) (map[string]any, error) {
	t, err := c.target(ctx, modelID)
	if err != nil {
		return nil, err
	}
	return t.render(raw)
}

func (t *target) render(raw map[string]any) (map[string]any, error) {
	cols := make(map[string]*core.Column, len(raw))
	titles := make(map[string]int, len(raw))
	for id := range raw {
		col, err := t.column(id)
		if err != nil {
			continue
		}
		cols[id] = col
		titles[col.Title]++
	}

	out := make(map[string]any, len(cols))
	for id, col := range cols {
		rendered, err := t.env.Render(col, raw[id])
		if err != nil {
			return nil, fmt.Errorf("failed to render column %s: %w", col.ID, err)
		}
		key := col.Title
		if titles[key] > 1 {
			key = col.ID
		}
		out[key] = rendered
	}
	return out, nil
}

// ParseRow validates and normalizes a row written by a client. Input keys
// are matched against column IDs first and titles second. The result is
// keyed by physical column name; virtual columns fall back to their ID.
//
// Every failing field is reported: the error is a core.FieldErrors.
func (c *Compiler) ParseRow(ctx context.Context, modelID string, input map[string]any) (map[string]any, error) {
	t, err := c.target(ctx, modelID)
	if err != nil {
		return nil, err
	}

	cols := t.columns()
	matched := make(map[string]*core.Column, len(input))
	var unknown []string
	for key := range input {
		if col := formula.MatchColumn(key, cols); col != nil {
			matched[key] = col
		} else {
			unknown = append(unknown, key)
		}
	}
	sort.Strings(unknown)

	out := make(map[string]any, len(input))
	var fieldErrs core.FieldErrors
	for _, col := range cols {
		for key, mc := range matched {
			if mc != col {
				continue
			}
			v, err := t.env.ParseUserInput(col, input[key])
			if err != nil {
				var invalid *core.InvalidValueError
				if !errors.As(err, &invalid) {
					return nil, fmt.Errorf("failed to parse column %s: %w", col.ID, err)
				}
				fieldErrs = append(fieldErrs, invalid)
				continue
			}
			name := col.ColumnName
			if name == "" {
				name = col.ID
			}
			out[name] = v
		}
	}
	for _, key := range unknown {
		fieldErrs = append(fieldErrs, &core.InvalidValueError{Column: key, Constraint: "unknown column", Value: input[key]})
	}

	if len(fieldErrs) > 0 {
		return nil, fieldErrs
	}
	return out, nil
}

// Run compiles req, executes it on the model's source and renders the rows.
func (c *Compiler) Run(ctx context.Context, req Request) (*Result, error) {
	if c.pool == nil {
		return nil, ErrNoPool
	}
	t, err := c.target(ctx, req.ModelID)
	if err != nil {
		return nil, err
	}
	q, err := c.compileFor(ctx, t, req)
	if err != nil {
		return nil, err
	}

	client, release, err := c.pool.Acquire(ctx, t.source)
	if err != nil {
		return nil, err
	}
	defer release()

	start := time.Now()
	rows, err := client.Query(ctx, q.SQL, q.Args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query model %s: %w", t.model.ID, err)
	}
	defer func() { _ = rows.Close() }()

	res := &Result{Query: q, Rows: []map[string]any{}}
	for rows.Next() {
		vals := make([]any, len(q.Columns))
		ptrs := make([]any, len(vals))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		raw := make(map[string]any, len(vals))
		for i, oc := range q.Columns {
			raw[oc.ID] = vals[i]
		}
		row, err := t.render(raw)
		if err != nil {
			return nil, err
		}
		res.Rows = append(res.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	c.logger.Debug("ran query",
		slog.String("model", t.model.ID),
		slog.Int("rows", len(res.Rows)),
		slog.Duration("elapsed", time.Since(start)))
	return res, nil
}
