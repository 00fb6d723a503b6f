package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/leapstack-labs/leapgrid/internal/cli/output"
	"github.com/leapstack-labs/leapgrid/pkg/compiler"
	"github.com/leapstack-labs/leapgrid/pkg/core"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// CompileOptions holds options for the compile command.
type CompileOptions struct {
	Columns []string
	Filter  string
	Sorts   []string
	Limit   int
	Offset  int
	Roles   []string
	Execute bool
}

// NewCompileCommand creates the compile command.
func NewCompileCommand() *cobra.Command {
	opts := &CompileOptions{}

	cmd := &cobra.Command{
		Use:   "compile <model>",
		Short: "Compile a read of a model to SQL",
		Long: `Compile a read of a model into a single SELECT against its source.

Virtual columns (lookups, rollups, formulas, links) are expanded into
subqueries. With --execute the statement is run and the rows printed.`,
		Example: `  # Print the SQL for the default columns
  leapgrid compile customers

  # Select columns, filter and sort, then run it
  leapgrid compile customers --columns cu_name,cu_total \
    --filter '[{"fk_column_id":"cu_name","comparison_op":"like","value":"an"}]' \
    --sort=-cu_total --limit 10 --execute`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(cmd, args[0], opts)
		},
	}

	bindCompileFlags(cmd.Flags(), opts)

	return cmd
}

// bindCompileFlags registers the read options on fs.
func bindCompileFlags(fs *pflag.FlagSet, opts *CompileOptions) {
	fs.StringSliceVarP(&opts.Columns, "columns", "c", nil, "Column ids to select, in order")
	fs.StringVarP(&opts.Filter, "filter", "f", "", "Filters as a JSON array")
	fs.StringSliceVarP(&opts.Sorts, "sort", "s", nil, "Sort column ids; prefix with - for descending")
	fs.IntVar(&opts.Limit, "limit", 0, "Page size (default from compiler.default_limit)")
	fs.IntVar(&opts.Offset, "offset", 0, "Rows to skip")
	fs.StringSliceVar(&opts.Roles, "role", nil, "Roles of the reading principal")
	fs.BoolVarP(&opts.Execute, "execute", "x", false, "Run the query and print its rows")
}

func runCompile(cmd *cobra.Command, modelID string, opts *CompileOptions) error {
	req, err := buildRequest(modelID, opts)
	if err != nil {
		return err
	}

	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	return compileAndRender(cmd.Context(), cmdCtx, req, opts.Execute)
}

// compileAndRender compiles req, or runs it when execute is set, and writes
// the result through the context's renderer.
func compileAndRender(ctx context.Context, cmdCtx *CommandContext, req compiler.Request, execute bool) error {
	r := cmdCtx.Renderer

	if !execute {
		q, err := cmdCtx.Compiler.CompileQuery(ctx, req)
		if err != nil {
			return err
		}
		if r.EffectiveMode() == output.ModeJSON {
			return r.JSON(q)
		}
		r.Println(q.SQL)
		if len(q.Args) > 0 {
			r.Muted(fmt.Sprintf("-- args: %s", output.FormatValue(q.Args)))
		}
		return nil
	}

	res, err := cmdCtx.Compiler.Run(ctx, req)
	if err != nil {
		return err
	}
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(res.Rows)
	}

	header := make([]string, len(res.Query.Columns))
	for i, col := range res.Query.Columns {
		header[i] = col.Title
	}
	rows := make([][]any, len(res.Rows))
	for i, row := range res.Rows {
		rows[i] = make([]any, len(header))
		for j, title := range header {
			rows[i][j] = row[title]
		}
	}
	r.Table(header, rows)
	r.Muted(fmt.Sprintf("(%d rows)", len(res.Rows)))
	return nil
}

// buildRequest turns command-line options into a compiler request.
func buildRequest(modelID string, opts *CompileOptions) (compiler.Request, error) {
	req := compiler.Request{
		ModelID:    modelID,
		ColumnIDs:  opts.Columns,
		Pagination: core.Pagination{Limit: opts.Limit, Offset: opts.Offset},
	}

	if opts.Filter != "" {
		if err := json.Unmarshal([]byte(opts.Filter), &req.Filters); err != nil {
			return req, fmt.Errorf("invalid --filter: %w", err)
		}
	}

	for _, s := range opts.Sorts {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		sort := core.Sort{ColumnID: s, Direction: core.SortAsc}
		if id, ok := strings.CutPrefix(s, "-"); ok {
			sort = core.Sort{ColumnID: id, Direction: core.SortDesc}
		}
		req.Sorts = append(req.Sorts, sort)
	}

	if len(opts.Roles) > 0 {
		req.Principal = &core.Principal{ID: "cli", Roles: opts.Roles}
	}
	return req, nil
}
