package commands

import (
	"fmt"
	"strconv"

	"github.com/leapstack-labs/leapgrid/internal/cli/output"
	"github.com/leapstack-labs/leapgrid/pkg/compiler"
	"github.com/leapstack-labs/leapgrid/pkg/cte"
	"github.com/spf13/cobra"
)

// TraverseOptions holds options for the traverse command.
type TraverseOptions struct {
	Link      string
	Roots     []string
	Direction string
	Depth     int
	SQL       bool
}

// NewTraverseCommand creates the traverse command.
func NewTraverseCommand() *cobra.Command {
	opts := &TraverseOptions{}

	cmd := &cobra.Command{
		Use:   "traverse <model>",
		Short: "Walk a self-referencing link of a model",
		Long: fmt.Sprintf(`Walk a self-referencing link from the given root rows.

Descendants (down) follow rows pointing at the current row, ancestors (up)
follow the current row's reference. Depth is capped at %d levels; deeper
rows are reported as truncated.`, cte.MaxDepth),
		Example: `  leapgrid traverse customers --link cu_reports --root 1
  leapgrid traverse customers --link cu_manager --root 7 --direction up --sql`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTraverse(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Link, "link", "l", "", "Link column id to follow (required)")
	cmd.Flags().StringSliceVarP(&opts.Roots, "root", "r", nil, "Primary key of a root row (repeatable)")
	cmd.Flags().StringVarP(&opts.Direction, "direction", "d", string(cte.Descendants), "Direction: down or up")
	cmd.Flags().IntVar(&opts.Depth, "depth", cte.MaxDepth, "Maximum depth")
	cmd.Flags().BoolVar(&opts.SQL, "sql", false, "Print the recursive query instead of running it")
	_ = cmd.MarkFlagRequired("link")
	_ = cmd.RegisterFlagCompletionFunc("direction", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{string(cte.Descendants), string(cte.Ancestors)}, cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

func runTraverse(cmd *cobra.Command, modelID string, opts *TraverseOptions) error {
	req := compiler.TraversalRequest{
		ModelID:      modelID,
		LinkColumnID: opts.Link,
		Direction:    cte.Direction(opts.Direction),
		MaxDepth:     opts.Depth,
	}
	for _, root := range opts.Roots {
		req.Roots = append(req.Roots, parseKey(root))
	}

	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx := cmd.Context()
	r := cmdCtx.Renderer

	if opts.SQL {
		q, err := cmdCtx.Compiler.CompileTraversal(ctx, req)
		if err != nil {
			return err
		}
		if r.EffectiveMode() == output.ModeJSON {
			return r.JSON(q)
		}
		r.Println(q.SQL)
		r.Muted(fmt.Sprintf("-- args: %s", output.FormatValue(q.Args)))
		return nil
	}

	res, err := cmdCtx.Compiler.Traverse(ctx, req)
	if err != nil {
		return err
	}
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(res)
	}

	rows := make([][]any, len(res.Nodes))
	for i, n := range res.Nodes {
		rows[i] = []any{n.Key, n.Parent, n.Depth}
	}
	r.Table([]string{"key", "parent", "depth"}, rows)
	if res.Truncated {
		r.Warning(fmt.Sprintf("rows deeper than %d levels were not returned", res.MaxDepth))
	}
	return nil
}

// parseKey reads integer keys as integers so they compare equal to integer
// primary keys on every source.
func parseKey(s string) any {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	return s
}
