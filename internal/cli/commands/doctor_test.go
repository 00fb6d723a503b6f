package commands

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapgrid/internal/cli/output"
	"github.com/leapstack-labs/leapgrid/internal/cli/testutil"
	"github.com/leapstack-labs/leapgrid/pkg/core"
	"github.com/leapstack-labs/leapgrid/pkg/relation"
)

func TestCalculateHealthScore(t *testing.T) {
	tests := []struct {
		name   string
		checks []HealthCheck
		want   int
	}{
		{name: "no checks returns 100", checks: nil, want: 100},
		{
			name: "all passing returns 100",
			checks: []HealthCheck{
				{ID: "R01", Status: StatusPass},
				{ID: "F01", Status: StatusPass},
			},
			want: 100,
		},
		{
			name:   "warnings reduce score",
			checks: []HealthCheck{{ID: "R03", Status: StatusWarn, IssueCount: 2}},
			want:   90,
		},
		{
			name:   "errors reduce score more",
			checks: []HealthCheck{{ID: "R02", Status: StatusError, IssueCount: 2}},
			want:   80,
		},
		{
			name: "many issues floor at 0",
			checks: []HealthCheck{
				{ID: "R01", Status: StatusError, IssueCount: 8},
				{ID: "F02", Status: StatusError, IssueCount: 8},
			},
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, calculateHealthScore(tt.checks))
		})
	}
}

func TestReaches(t *testing.T) {
	deps := map[string][]string{
		"a": {"b"},
		"b": {"c"},
		"c": {"a"},
		"d": {"a"},
	}
	assert.True(t, reaches(deps, "a", "a", map[string]bool{}))
	assert.False(t, reaches(deps, "d", "d", map[string]bool{}))
}

func TestSchemaChecks(t *testing.T) {
	models := []*core.Model{
		{ID: "people", SourceID: "main", TableName: "people"},
		{ID: "pets", SourceID: "other", TableName: "pets"},
	}
	cols := []*core.Column{
		{ID: "pe_id", ModelID: "people", ColumnName: "id", UIType: core.UITypeID, PK: true},
		{ID: "pe_name", ModelID: "people", ColumnName: "name", Title: "Name", UIType: core.UITypeSingleLineText},
		{ID: "pt_id", ModelID: "pets", ColumnName: "id", UIType: core.UITypeID, PK: true},
		{ID: "pt_owner_id", ModelID: "pets", ColumnName: "owner_id", UIType: core.UITypeForeignKey},
		{
			ID: "pe_pets", ModelID: "people", UIType: core.UITypeLinkToAnother,
			Options: core.ColOptions{Link: &core.LinkOptions{
				Type: core.RelationHasMany, ChildColumnID: "pt_owner_id", ParentColumnID: "pe_id", RelatedModelID: "pets",
			}},
		},
		{
			ID: "pe_dangling", ModelID: "people", UIType: core.UITypeLinkToAnother,
			Options: core.ColOptions{Link: &core.LinkOptions{
				Type: core.RelationBelongsTo, ChildColumnID: "gone", ParentColumnID: "pe_id", RelatedModelID: "people",
			}},
		},
		{
			ID: "pe_pet_count", ModelID: "people", UIType: core.UITypeRollup,
			Options: core.ColOptions{Rollup: &core.RollupOptions{RelationColumnID: "pe_pets", RollupColumnID: "pe_name", Function: "count"}},
		},
		{
			ID: "pe_bad", ModelID: "people", UIType: core.UITypeFormula,
			Options: core.ColOptions{Formula: &core.FormulaOptions{Expression: "UPPER({Name}"}},
		},
		{
			ID: "pe_self", ModelID: "people", Title: "Self", UIType: core.UITypeFormula,
			Options: core.ColOptions{Formula: &core.FormulaOptions{Expression: "{Self} + 1"}},
		},
	}
	s := &schema{models: models, columns: cols, snap: relation.NewSnapshot(models, cols)}

	links := checkLinks(s)
	assert.Equal(t, StatusError, links.Status)
	require.Len(t, links.Details, 1)
	assert.Contains(t, links.Details[0], "people.pe_dangling")

	derived := checkDerived(s)
	require.Len(t, derived.Details, 1)
	assert.Contains(t, derived.Details[0], "pe_name not found on model pets")

	syntax := checkFormulaSyntax(s)
	require.Len(t, syntax.Details, 1)
	assert.Contains(t, syntax.Details[0], "people.pe_bad")

	cycles := checkFormulaCycles(s)
	assert.Equal(t, []string{"people.pe_self: formula depends on itself"}, cycles.Details)

	cross := checkCrossSource(s)
	assert.Equal(t, StatusWarn, cross.Status)
	assert.Equal(t, 1, cross.IssueCount)
}

func TestDoctorCommand(t *testing.T) {
	cfgPath := testutil.SetupTestProject(t)

	out, _, err := runCommand(t, cfgPath, NewDoctorCommand())
	require.NoError(t, err)

	var report DoctorOutput
	require.NoError(t, json.Unmarshal([]byte(out), &report))

	assert.Equal(t, 2, report.Summary.Sources)
	assert.Equal(t, 5, report.Summary.Models)

	byID := make(map[string]HealthCheck, len(report.HealthChecks))
	for _, c := range report.HealthChecks {
		byID[c.ID] = c
	}
	assert.Equal(t, StatusPass, byID["R01"].Status)
	assert.Equal(t, []string{"customers.cu_broken: link column deleted_link not found"}, byID["R02"].Details)
	assert.Equal(t, StatusWarn, byID["R03"].Status)
	assert.Contains(t, byID["R03"].Details[0], "customers.cu_remote")
	assert.ElementsMatch(t, []string{
		"customers.cu_loop_a: formula depends on itself",
		"customers.cu_loop_b: formula depends on itself",
	}, byID["F02"].Details)
	assert.Equal(t, StatusPass, byID["S01"].Status)

	assert.Equal(t, 4, report.IssueCount)
	assert.Equal(t, 65, report.Score)
}

func TestRenderDoctorText(t *testing.T) {
	tr := testutil.NewTestRenderer(output.ModeText, false)
	renderDoctorText(tr.Renderer, &DoctorOutput{
		Summary: SchemaSummary{Sources: 1, Models: 2, Columns: 9, VirtualColumns: 3},
		HealthChecks: []HealthCheck{
			{ID: "F02", Name: "Formulas are acyclic", Group: "formulas", Status: StatusError, IssueCount: 1, Details: []string{"m.c: formula depends on itself"}},
			{ID: "R01", Name: "Links resolve", Group: "relations", Status: StatusPass},
		},
		Score: 90,
	})

	out := tr.Output()
	assert.Contains(t, out, "Columns: 9 (3 virtual)")
	assert.Contains(t, out, "Formulas\n")
	assert.Contains(t, out, "✗ F02: Formulas are acyclic (1 issues)")
	assert.Contains(t, out, "- m.c: formula depends on itself")
	assert.Contains(t, out, "✓ R01: Links resolve")
	assert.Contains(t, out, "Health Score: 90/100")
	testutil.AssertNoANSI(t, out)
}

func TestCheckTables(t *testing.T) {
	ctx := context.Background()
	sess, _, _ := newTestSession(t)

	loaded, err := loadSchema(ctx, sess.cmdCtx.Store)
	require.NoError(t, err)

	// The warehouse source is never reachable in tests.
	var models []*core.Model
	for _, m := range loaded.models {
		if m.SourceID == "main" {
			models = append(models, m)
		}
	}
	models = append(models, &core.Model{ID: "ghosts", SourceID: "main", TableName: "ghosts"})
	cols := append(loaded.columns,
		&core.Column{ID: "cu_nickname", ModelID: "customers", ColumnName: "nickname", UIType: core.UITypeSingleLineText},
		&core.Column{ID: "cu_upper", ModelID: "customers", ColumnName: "upper", UIType: core.UITypeFormula},
	)
	s := &schema{sources: loaded.sources, models: models, columns: cols, snap: relation.NewSnapshot(models, cols)}

	check := checkTables(ctx, sess.cmdCtx.Pool, s)

	assert.Equal(t, "S02", check.ID)
	assert.Equal(t, StatusError, check.Status)
	assert.ElementsMatch(t, []string{
		"customers.cu_nickname: column nickname not found in customers",
		"ghosts: table ghosts not found",
	}, check.Details)
}
