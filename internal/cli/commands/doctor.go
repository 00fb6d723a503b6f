package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/leapstack-labs/leapgrid/internal/cli/output"
	"github.com/leapstack-labs/leapgrid/pkg/adapter"
	"github.com/leapstack-labs/leapgrid/pkg/core"
	"github.com/leapstack-labs/leapgrid/pkg/formula"
	"github.com/leapstack-labs/leapgrid/pkg/metastore"
	"github.com/leapstack-labs/leapgrid/pkg/relation"
	"github.com/spf13/cobra"
)

// Health check statuses.
const (
	StatusPass  = "pass"
	StatusWarn  = "warn"
	StatusError = "error"
)

// DoctorOptions holds options for the doctor command.
type DoctorOptions struct {
	Connect bool // open every source instead of only validating its settings
}

// NewDoctorCommand creates the doctor command.
func NewDoctorCommand() *cobra.Command {
	opts := &DoctorOptions{}
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check the virtual schema for problems",
		Long: `Analyze the virtual schema for references the compiler cannot follow.

The report covers:
- Links whose columns or models are missing
- Lookups and rollups whose link or target column is missing
- Formulas that do not parse or that reference themselves
- Links spanning two sources (these compile to NULL)
- Source settings, or with --connect connectivity and whether each
  model's table and columns exist`,
		Example: `  # Run health check
  leapgrid doctor

  # Also connect to every source
  leapgrid doctor --connect -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDoctor(cmd, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.Connect, "connect", false, "Connect to every source")

	return cmd
}

// DoctorOutput is the JSON output for the doctor command.
type DoctorOutput struct {
	Summary      SchemaSummary `json:"summary"`
	HealthChecks []HealthCheck `json:"health_checks"`
	Score        int           `json:"score"`
	IssueCount   int           `json:"issue_count"`
}

// SchemaSummary contains schema-level statistics.
type SchemaSummary struct {
	Sources        int `json:"sources"`
	Models         int `json:"models"`
	Columns        int `json:"columns"`
	VirtualColumns int `json:"virtual_columns"`
}

// HealthCheck represents a single health check result.
type HealthCheck struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Group      string   `json:"group"`
	Status     string   `json:"status"`
	IssueCount int      `json:"issue_count"`
	Details    []string `json:"details,omitempty"`
}

// schema is everything the checks read.
type schema struct {
	sources []*core.Source
	models  []*core.Model
	columns []*core.Column
	snap    *relation.Snapshot
}

func runDoctor(cmd *cobra.Command, opts *DoctorOptions) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx := cmd.Context()
	s, err := loadSchema(ctx, cmdCtx.Store)
	if err != nil {
		return err
	}

	checks := []HealthCheck{
		checkLinks(s),
		checkDerived(s),
		checkFormulaSyntax(s),
		checkFormulaCycles(s),
		checkCrossSource(s),
		checkSources(ctx, cmdCtx, s, opts.Connect),
	}
	if opts.Connect {
		checks = append(checks, checkTables(ctx, cmdCtx.Pool, s))
	}
	out := buildDoctorOutput(s, checks)

	r := cmdCtx.Renderer
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(out)
	}
	renderDoctorText(r, out)
	return nil
}

func loadSchema(ctx context.Context, store metastore.Store) (*schema, error) {
	s := &schema{}
	var err error
	if s.sources, err = store.ListSources(ctx); err != nil {
		return nil, err
	}
	if s.models, err = store.ListModels(ctx); err != nil {
		return nil, err
	}
	for _, m := range s.models {
		cols, err := store.ListColumns(ctx, m.ID)
		if err != nil {
			return nil, err
		}
		s.columns = append(s.columns, cols...)
	}
	s.snap = relation.NewSnapshot(s.models, s.columns)
	return s, nil
}

func newCheck(id, name, group, failStatus string, details []string) HealthCheck {
	status := StatusPass
	if len(details) > 0 {
		status = failStatus
	}
	return HealthCheck{ID: id, Name: name, Group: group, Status: status, IssueCount: len(details), Details: details}
}

func label(col *core.Column) string {
	return col.ModelID + "." + col.ID
}

func checkLinks(s *schema) HealthCheck {
	var details []string
	for _, col := range s.columns {
		if !col.UIType.IsLink() {
			continue
		}
		if _, err := relation.Resolve(col, s.snap); err != nil {
			details = append(details, fmt.Sprintf("%s: %v", label(col), err))
		}
	}
	return newCheck("R01", "Links resolve", "relations", StatusError, details)
}

// checkDerived follows each lookup and rollup to its link and target.
func checkDerived(s *schema) HealthCheck {
	var details []string
	for _, col := range s.columns {
		var linkID, targetID string
		switch {
		case col.UIType == core.UITypeLookup && col.Options.Lookup != nil:
			linkID, targetID = col.Options.Lookup.RelationColumnID, col.Options.Lookup.LookupColumnID
		case col.UIType == core.UITypeRollup && col.Options.Rollup != nil:
			linkID, targetID = col.Options.Rollup.RelationColumnID, col.Options.Rollup.RollupColumnID
		case col.UIType == core.UITypeLookup || col.UIType == core.UITypeRollup:
			details = append(details, fmt.Sprintf("%s: options missing", label(col)))
			continue
		default:
			continue
		}

		link, ok := s.snap.Column(linkID)
		if !ok || !link.UIType.IsLink() {
			details = append(details, fmt.Sprintf("%s: link column %s not found", label(col), linkID))
			continue
		}
		j, err := relation.Resolve(link, s.snap)
		if err != nil {
			details = append(details, fmt.Sprintf("%s: %v", label(col), err))
			continue
		}
		target, ok := s.snap.Column(targetID)
		if !ok || target.ModelID != j.Ref.Model.ID {
			details = append(details, fmt.Sprintf("%s: column %s not found on model %s", label(col), targetID, j.Ref.Model.ID))
		}
	}
	return newCheck("R02", "Lookups and rollups resolve", "relations", StatusError, details)
}

func checkCrossSource(s *schema) HealthCheck {
	var details []string
	for _, col := range s.columns {
		if !col.UIType.IsLink() {
			continue
		}
		j, err := relation.Resolve(col, s.snap)
		if err != nil || !j.CrossSource() {
			continue
		}
		details = append(details, fmt.Sprintf("%s: %s is on source %s, %s on %s",
			label(col), j.Owner.Model.ID, j.Owner.Model.SourceID, j.Ref.Model.ID, j.Ref.Model.SourceID))
	}
	return newCheck("R03", "Links stay on one source", "relations", StatusWarn, details)
}

func checkFormulaSyntax(s *schema) HealthCheck {
	var details []string
	for _, col := range s.columns {
		f := col.Options.Formula
		if col.UIType != core.UITypeFormula || f == nil {
			continue
		}
		if _, err := formula.Parse(f.Expression); err != nil {
			details = append(details, fmt.Sprintf("%s: %v", label(col), err))
		}
	}
	return newCheck("F01", "Formulas parse", "formulas", StatusError, details)
}

// checkFormulaCycles reports formula columns that reach themselves through
// references to other formulas of the same model.
func checkFormulaCycles(s *schema) HealthCheck {
	deps := make(map[string][]string)
	for _, m := range s.models {
		cols := s.snap.ModelColumns(m.ID)
		for _, col := range cols {
			f := col.Options.Formula
			if col.UIType != core.UITypeFormula || f == nil {
				continue
			}
			n, err := formula.Parse(f.Expression)
			if err != nil {
				continue
			}
			for _, ref := range formula.Refs(n) {
				if dep := formula.MatchColumn(ref, cols); dep != nil && dep.UIType == core.UITypeFormula {
					deps[col.ID] = append(deps[col.ID], dep.ID)
				}
			}
		}
	}

	var details []string
	for _, col := range s.columns {
		if _, ok := deps[col.ID]; ok && reaches(deps, col.ID, col.ID, map[string]bool{}) {
			details = append(details, fmt.Sprintf("%s: formula depends on itself", label(col)))
		}
	}
	return newCheck("F02", "Formulas are acyclic", "formulas", StatusError, details)
}

func reaches(deps map[string][]string, from, target string, seen map[string]bool) bool {
	for _, next := range deps[from] {
		if next == target {
			return true
		}
		if seen[next] {
			continue
		}
		seen[next] = true
		if reaches(deps, next, target, seen) {
			return true
		}
	}
	return false
}

// checkSources validates every source's settings, and connects to it when
// connect is set.
func checkSources(ctx context.Context, cmdCtx *CommandContext, s *schema, connect bool) HealthCheck {
	var details []string
	for _, src := range s.sources {
		cfg := src.Config
		if override, ok := cmdCtx.Cfg.SourceOverride(src.ID); ok {
			cfg = override
		}
		if !connect {
			if _, err := adapter.NewClient(cfg, cmdCtx.Logger); err != nil {
				details = append(details, fmt.Sprintf("%s: %v", src.ID, err))
			}
			continue
		}
		_, release, err := cmdCtx.Pool.Acquire(ctx, src)
		if err != nil {
			details = append(details, fmt.Sprintf("%s: %v", src.ID, err))
			continue
		}
		release()
		cmdCtx.Logger.Debug("source reachable", slog.String("source", src.ID))
	}
	name := "Source settings are valid"
	if connect {
		name = "Sources are reachable"
	}
	return newCheck("S01", name, "sources", StatusError, details)
}

// checkTables compares each model on a reachable source with its physical
// table. Unreachable sources are reported by checkSources.
func checkTables(ctx context.Context, pool *adapter.Pool, s *schema) HealthCheck {
	sources := make(map[string]*core.Source, len(s.sources))
	for _, src := range s.sources {
		sources[src.ID] = src
	}

	var details []string
	for _, m := range s.models {
		src, ok := sources[m.SourceID]
		if !ok || m.Deleted {
			continue
		}
		details = append(details, tableIssues(ctx, pool, src, m, s.snap.ModelColumns(m.ID))...)
	}
	return newCheck("S02", "Tables match the schema", "sources", StatusError, details)
}

func tableIssues(ctx context.Context, pool *adapter.Pool, src *core.Source, m *core.Model, cols []*core.Column) []string {
	client, release, err := pool.Acquire(ctx, src)
	if err != nil {
		return nil
	}
	defer release()

	info, err := client.DescribeTable(ctx, m.TableName)
	if errors.Is(err, core.ErrNotFound) {
		return []string{fmt.Sprintf("%s: table %s not found", m.ID, m.TableName)}
	}
	if err != nil {
		return []string{fmt.Sprintf("%s: %v", m.ID, err)}
	}

	physical := make(map[string]bool, len(info.Columns))
	for _, c := range info.Columns {
		physical[strings.ToLower(c.Name)] = true
	}
	var out []string
	for _, col := range cols {
		if col.IsVirtual() || col.ColumnName == "" {
			continue
		}
		if !physical[strings.ToLower(col.ColumnName)] {
			out = append(out, fmt.Sprintf("%s: column %s not found in %s", label(col), col.ColumnName, m.TableName))
		}
	}
	return out
}

func buildDoctorOutput(s *schema, checks []HealthCheck) *DoctorOutput {
	summary := SchemaSummary{Sources: len(s.sources), Models: len(s.models), Columns: len(s.columns)}
	for _, col := range s.columns {
		if col.IsVirtual() {
			summary.VirtualColumns++
		}
	}

	sort.SliceStable(checks, func(i, j int) bool {
		if checks[i].Group != checks[j].Group {
			return checks[i].Group < checks[j].Group
		}
		return checks[i].ID < checks[j].ID
	})

	issues := 0
	for _, c := range checks {
		issues += c.IssueCount
	}

	return &DoctorOutput{
		Summary:      summary,
		HealthChecks: checks,
		Score:        calculateHealthScore(checks),
		IssueCount:   issues,
	}
}

// calculateHealthScore computes a health score from 0-100. Errors cost
// twice as much as warnings.
func calculateHealthScore(checks []HealthCheck) int {
	score := 100
	for _, check := range checks {
		switch check.Status {
		case StatusError:
			score -= check.IssueCount * 10
		case StatusWarn:
			score -= check.IssueCount * 5
		}
	}
	return max(score, 0)
}

func renderDoctorText(r *output.Renderer, out *DoctorOutput) {
	r.Header(1, "LeapGrid Schema Health Report")
	r.Muted(strings.Repeat("=", 55))
	r.Printf("   Sources: %d | Models: %d | Columns: %d (%d virtual)\n",
		out.Summary.Sources, out.Summary.Models, out.Summary.Columns, out.Summary.VirtualColumns)
	r.Println("")

	currentGroup := ""
	titleCaser := cases.Title(language.English)
	for _, check := range out.HealthChecks {
		if check.Group != currentGroup {
			currentGroup = check.Group
			r.Header(2, "   "+titleCaser.String(currentGroup))
		}

		icon := "✓"
		switch check.Status {
		case StatusWarn:
			icon = "!"
		case StatusError:
			icon = "✗"
		}
		status := fmt.Sprintf("   %s %s: %s", icon, check.ID, check.Name)
		if check.IssueCount > 0 {
			status += fmt.Sprintf(" (%d issues)", check.IssueCount)
		}
		r.Println(status)

		for i, detail := range check.Details {
			if i >= 5 {
				r.Muted(fmt.Sprintf("       ... and %d more", len(check.Details)-5))
				break
			}
			r.Muted("       - " + detail)
		}
	}
	r.Println("")
	r.Printf("   Health Score: %d/100\n", out.Score)
}
