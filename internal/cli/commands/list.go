package commands

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/leapgrid/internal/cli/output"
	"github.com/leapstack-labs/leapgrid/pkg/core"
	"github.com/spf13/cobra"
)

// ModelInfo is the JSON form of a model listing.
type ModelInfo struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Source    string `json:"source_id"`
	Type      string `json:"source_type"`
	TableName string `json:"table_name"`
	Columns   int    `json:"columns"`
}

// NewListCommand creates the list command.
func NewListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List models of the virtual schema",
		Long:  `List every model with the source and table it maps onto.`,
		Args:  cobra.NoArgs,
		RunE:  runList,
	}
}

func runList(cmd *cobra.Command, _ []string) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx := cmd.Context()
	models, err := cmdCtx.Store.ListModels(ctx)
	if err != nil {
		return err
	}

	infos := make([]ModelInfo, 0, len(models))
	for _, m := range models {
		info := ModelInfo{ID: m.ID, Title: m.Title, Source: m.SourceID, TableName: m.TableName}
		if src, err := cmdCtx.Store.GetSource(ctx, m.SourceID); err == nil {
			info.Type = src.Config.Type
		}
		cols, err := cmdCtx.Store.ListColumns(ctx, m.ID)
		if err != nil {
			return err
		}
		info.Columns = len(cols)
		infos = append(infos, info)
	}

	r := cmdCtx.Renderer
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(infos)
	}

	rows := make([][]any, len(infos))
	for i, info := range infos {
		rows[i] = []any{info.ID, info.Title, info.Source, info.Type, info.TableName, info.Columns}
	}
	r.Header(1, fmt.Sprintf("Models (%d total)", len(infos)))
	r.Table([]string{"id", "title", "source", "type", "table", "columns"}, rows)
	return nil
}

// NewColumnsCommand creates the columns command.
func NewColumnsCommand() *cobra.Command {
	var showSystem bool

	cmd := &cobra.Command{
		Use:   "columns <model>",
		Short: "List the columns of a model",
		Long: `List the columns of a model in display order.

System columns are hidden unless --system is given; primary keys are
always shown.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runColumns(cmd, args[0], showSystem)
		},
	}
	cmd.Flags().BoolVar(&showSystem, "system", false, "Include system columns")
	return cmd
}

func runColumns(cmd *cobra.Command, modelID string, showSystem bool) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	cols, err := cmdCtx.Store.ListColumns(cmd.Context(), modelID)
	if err != nil {
		return err
	}
	if len(cols) == 0 {
		if _, err := cmdCtx.Store.GetModel(cmd.Context(), modelID); err != nil {
			return err
		}
	}

	shown := make([]*core.Column, 0, len(cols))
	for _, col := range cols {
		if showSystem || !col.System || col.PK {
			shown = append(shown, col)
		}
	}

	r := cmdCtx.Renderer
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(shown)
	}

	rows := make([][]any, len(shown))
	for i, col := range shown {
		rows[i] = []any{col.ID, col.Title, string(col.UIType), col.ColumnName, columnFlags(col)}
	}
	r.Table([]string{"id", "title", "uidt", "column", "flags"}, rows)
	return nil
}

func columnFlags(col *core.Column) string {
	var flags []string
	if col.PK {
		flags = append(flags, "pk")
	}
	if col.PV {
		flags = append(flags, "pv")
	}
	if col.System {
		flags = append(flags, "system")
	}
	if col.IsVirtual() {
		flags = append(flags, "virtual")
	}
	if len(col.VisibleRoles) > 0 {
		flags = append(flags, "roles="+strings.Join(col.VisibleRoles, "|"))
	}
	return strings.Join(flags, ",")
}
