package core

import "strings"

// ModelType represents the physical shape behind a model.
type ModelType string

// Model type constants.
const (
	ModelTypeTable ModelType = "table"
	ModelTypeView  ModelType = "view"
)

// Model is a virtual table mapped onto a physical table or view of a Source.
// Columns are not embedded; they are listed through MetaReader.ListColumns.
type Model struct {
	ID        string    `json:"id" yaml:"id"`
	BaseID    string    `json:"base_id" yaml:"base_id"`
	SourceID  string    `json:"source_id" yaml:"source_id"`
	TableName string    `json:"table_name" yaml:"table_name"`
	Title     string    `json:"title" yaml:"title"`
	Type      ModelType `json:"type" yaml:"type"`
	Deleted   bool      `json:"deleted" yaml:"deleted"`
}

// Column is a typed node in the virtual schema graph.
type Column struct {
	ID         string `json:"id" yaml:"id"`
	ModelID    string `json:"model_id" yaml:"model_id"`
	Title      string `json:"title" yaml:"title"`
	ColumnName string `json:"column_name" yaml:"column_name"`
	UIType     UIType `json:"uidt" yaml:"uidt"`
	DataType   string `json:"dt,omitempty" yaml:"dt,omitempty"`
	Order      int    `json:"order" yaml:"order"`

	PK     bool `json:"pk,omitempty" yaml:"pk,omitempty"`
	PV     bool `json:"pv,omitempty" yaml:"pv,omitempty"` // display value column
	System bool `json:"system,omitempty" yaml:"system,omitempty"`

	Meta         map[string]any `json:"meta,omitempty" yaml:"meta,omitempty"`
	VisibleRoles []string       `json:"visible_roles,omitempty" yaml:"visible_roles,omitempty"`

	Options ColOptions `json:"col_options" yaml:"col_options"`
}

// IsVirtual reports whether the column has no physical storage of its own.
func (c *Column) IsVirtual() bool {
	return c.UIType.IsVirtual()
}

// MetaBool reads a boolean flag from column meta.
func (c *Column) MetaBool(key string) bool {
	if c == nil || c.Meta == nil {
		return false
	}
	switch v := c.Meta[key].(type) {
	case bool:
		return v
	case string:
		return v == "true" || v == "1"
	case int, int8, int16, int32, int64, uint8, uint16, uint32, uint64, float64:
		return MetaInt(c.Meta, key, 0) != 0
	}
	return false
}

// MetaInt reads an integer from a meta map, tolerating the numeric types
// produced by JSON, YAML and msgpack decoding.
func MetaInt(meta map[string]any, key string, fallback int) int {
	if meta == nil {
		return fallback
	}
	switch v := meta[key].(type) {
	case int:
		return v
	case int8:
		return int(v)
	case int16:
		return int(v)
	case int32:
		return int(v)
	case int64:
		return int(v)
	case uint8:
		return int(v)
	case uint16:
		return int(v)
	case uint32:
		return int(v)
	case uint64:
		return int(v)
	case float32:
		return int(v)
	case float64:
		return int(v)
	}
	return fallback
}

// VisibleTo reports whether a principal may see the column.
// Columns without role restrictions are visible to everyone.
func (c *Column) VisibleTo(p *Principal) bool {
	if len(c.VisibleRoles) == 0 {
		return true
	}
	if p == nil {
		return false
	}
	for _, want := range c.VisibleRoles {
		for _, have := range p.Roles {
			if strings.EqualFold(want, have) {
				return true
			}
		}
	}
	return false
}

// ColOptions is the type-specific payload of a column.
// At most one field is set, selected by the column's UI type.
type ColOptions struct {
	Link    *LinkOptions    `json:"link,omitempty" yaml:"link,omitempty"`
	Lookup  *LookupOptions  `json:"lookup,omitempty" yaml:"lookup,omitempty"`
	Rollup  *RollupOptions  `json:"rollup,omitempty" yaml:"rollup,omitempty"`
	Formula *FormulaOptions `json:"formula,omitempty" yaml:"formula,omitempty"`
	Barcode *BarcodeOptions `json:"barcode,omitempty" yaml:"barcode,omitempty"`
	Button  *ButtonOptions  `json:"button,omitempty" yaml:"button,omitempty"`
	Select  *SelectOptions  `json:"select,omitempty" yaml:"select,omitempty"`
}

// LinkOptions describe a relation column (LinkToAnotherRecord or Links).
//
// For has-many the child column lives in the related model and references
// the parent column of the current model. For belongs-to the child column
// lives in the current model. For many-to-many the child column belongs to
// the current model, the parent column to the related model, and the
// junction columns reference them respectively.
type LinkOptions struct {
	Type                   RelationType `json:"type" yaml:"type"`
	ChildColumnID          string       `json:"fk_child_column_id" yaml:"fk_child_column_id"`
	ParentColumnID         string       `json:"fk_parent_column_id" yaml:"fk_parent_column_id"`
	RelatedModelID         string       `json:"fk_related_model_id" yaml:"fk_related_model_id"`
	JunctionModelID        string       `json:"fk_mm_model_id,omitempty" yaml:"fk_mm_model_id,omitempty"`
	JunctionChildColumnID  string       `json:"fk_mm_child_column_id,omitempty" yaml:"fk_mm_child_column_id,omitempty"`
	JunctionParentColumnID string       `json:"fk_mm_parent_column_id,omitempty" yaml:"fk_mm_parent_column_id,omitempty"`
}

// LookupOptions reference a link column of the current model and a column of the related model.
type LookupOptions struct {
	RelationColumnID string `json:"fk_relation_column_id" yaml:"fk_relation_column_id"`
	LookupColumnID   string `json:"fk_lookup_column_id" yaml:"fk_lookup_column_id"`
}

// RollupOptions aggregate a column of the related model across a link.
type RollupOptions struct {
	RelationColumnID string         `json:"fk_relation_column_id" yaml:"fk_relation_column_id"`
	RollupColumnID   string         `json:"fk_rollup_column_id" yaml:"fk_rollup_column_id"`
	Function         RollupFunction `json:"rollup_function" yaml:"rollup_function"`
}

// FormulaOptions hold the formula source. Column references are written
// as {column id} or {column title}.
type FormulaOptions struct {
	Expression string `json:"formula" yaml:"formula"`
	Error      string `json:"error,omitempty" yaml:"error,omitempty"`
}

// BarcodeOptions reference the column whose value is encoded (Barcode and QrCode).
type BarcodeOptions struct {
	ValueColumnID string `json:"fk_column_id" yaml:"fk_column_id"`
	Format        string `json:"barcode_format,omitempty" yaml:"barcode_format,omitempty"`
}

// ButtonOptions configure an action column.
type ButtonOptions struct {
	Label   string `json:"label" yaml:"label"`
	Type    string `json:"type" yaml:"type"` // url, webhook, script
	Formula string `json:"formula,omitempty" yaml:"formula,omitempty"`
}

// SelectOptions list the allowed values of a SingleSelect or MultiSelect column, in display order.
type SelectOptions struct {
	Options []string `json:"options" yaml:"options"`
}

// Has reports whether title is one of the options.
func (s *SelectOptions) Has(title string) bool {
	if s == nil {
		return false
	}
	for _, o := range s.Options {
		if o == title {
			return true
		}
	}
	return false
}
