package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestColumnClone(t *testing.T) {
	col := &Column{
		ID:           "c1",
		Meta:         map[string]any{"custom": map[string]any{"ref_model_id": "m2"}, "tags": []any{"a"}},
		VisibleRoles: []string{"editor"},
		Options: ColOptions{
			Link:   &LinkOptions{Type: RelationHasMany, RelatedModelID: "m2"},
			Select: &SelectOptions{Options: []string{"a", "b"}},
		},
	}

	out := col.Clone()
	out.Meta["custom"].(map[string]any)["ref_model_id"] = "changed"
	out.Meta["tags"].([]any)[0] = "changed"
	out.VisibleRoles[0] = "changed"
	out.Options.Link.RelatedModelID = "changed"
	out.Options.Select.Options[0] = "changed"

	assert.Equal(t, "m2", col.Meta["custom"].(map[string]any)["ref_model_id"])
	assert.Equal(t, "a", col.Meta["tags"].([]any)[0])
	assert.Equal(t, "editor", col.VisibleRoles[0])
	assert.Equal(t, "m2", col.Options.Link.RelatedModelID)
	assert.Equal(t, "a", col.Options.Select.Options[0])
	assert.Nil(t, (*Column)(nil).Clone())
}

func TestSourceClone(t *testing.T) {
	off := false
	src := &Source{ID: "s1", Config: SourceConfig{
		Type:         "mysql",
		Options:      map[string]string{"version": "8.0"},
		Params:       map[string]any{"nested": map[string]any{"k": "v"}},
		SSL:          &SSLConfig{Mode: "require"},
		Capabilities: CapabilityOverrides{RecursiveCTE: &off},
	}}

	out := src.Clone()
	out.Config.Options["version"] = "5.7"
	out.Config.Params["nested"].(map[string]any)["k"] = "changed"
	out.Config.SSL.Mode = "disable"
	*out.Config.Capabilities.RecursiveCTE = true

	assert.Equal(t, "8.0", src.Config.Options["version"])
	assert.Equal(t, "v", src.Config.Params["nested"].(map[string]any)["k"])
	assert.Equal(t, "require", src.Config.SSL.Mode)
	assert.False(t, *src.Config.Capabilities.RecursiveCTE)
}
