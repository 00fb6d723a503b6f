// Package relation turns link columns into physical join shapes.
//
// A link column names up to five other entities (child column, parent
// column, related model, junction model and its two columns). Resolve looks
// them up and orients them from the point of view of the model that owns the
// link:
//
//	has-many:     owner = parent column (this model), ref = child column (related model)
//	belongs-to:   owner = child column (this model),  ref = parent column (related model)
//	many-to-many: owner = child column (this model),  ref = parent column (related model),
//	              joined through the junction model
//
// One-to-one links resolve as belongs-to when the column carries meta.bt and
// as has-many otherwise. The package does no I/O: entities come from a Lookup.
package relation

import (
	"github.com/leapstack-labs/leapgrid/pkg/core"
)

// Lookup supplies already-fetched metadata.
type Lookup interface {
	Model(id string) (*core.Model, bool)
	Column(id string) (*core.Column, bool)
}

// Side is one end of a join: a model and its key column.
type Side struct {
	Model  *core.Model
	Column *core.Column
}

// Junction is the link table of a many-to-many relation.
type Junction struct {
	Model *core.Model
	// OwnerColumn references the owner side's key.
	OwnerColumn *core.Column
	// RefColumn references the ref side's key.
	RefColumn *core.Column
}

// Params is the oriented shape of a link: the owner side lives on the
// model holding the link column, the ref side on the related model.
// Junction is set for many-to-many links only.
type Params struct {
	// Kind is bt, hm or mm; one-to-one is folded into bt or hm.
	Kind     core.RelationType
	Owner    Side
	Ref      Side
	Junction *Junction
}

// Join is the resolved shape of a link column.
type Join struct {
	Params
	Link   *core.Column
	Custom bool
}

// CrossSource reports whether the join spans more than one source. Such
// joins cannot be expressed in a single statement.
func (j *Join) CrossSource() bool {
	src := j.Owner.Model.SourceID
	if j.Ref.Model.SourceID != src {
		return true
	}
	return j.Junction != nil && j.Junction.Model.SourceID != src
}

// SingleValued reports whether each owner row reaches at most one ref row.
func (j *Join) SingleValued() bool {
	return j.Kind == core.RelationBelongsTo
}

// IsCustom reports whether col is a custom link: one declared over
// arbitrary existing columns instead of generated foreign keys.
func IsCustom(col *core.Column) bool {
	return col.MetaBool("custom")
}

// Kind returns the effective relation kind of a link, folding one-to-one.
func Kind(col *core.Column, opts *core.LinkOptions) core.RelationType {
	if opts.Type == core.RelationOneToOne {
		if col.MetaBool("bt") {
			return core.RelationBelongsTo
		}
		return core.RelationHasMany
	}
	return opts.Type
}

// GetRelationParams orients a custom link. It returns nil when the link is
// not custom or references missing entities.
func GetRelationParams(col *core.Column, opts *core.LinkOptions, lookup Lookup) *Params {
	if opts == nil || !IsCustom(col) {
		return nil
	}
	p, err := orient(col, opts, lookup)
	if err != nil {
		return nil
	}
	return p
}

// Resolve orients the link column col. A missing or deleted entity, or an
// entity on the wrong model, yields *core.UnresolvedReferenceError.
func Resolve(col *core.Column, lookup Lookup) (*Join, error) {
	opts := col.Options.Link
	if opts == nil {
		return nil, core.Unresolved(col.ID, "column is not a link")
	}
	if p := GetRelationParams(col, opts, lookup); p != nil {
		return &Join{Params: *p, Link: col, Custom: true}, nil
	}

	p, err := orient(col, opts, lookup)
	if err != nil {
		return nil, err
	}
	return &Join{Params: *p, Link: col, Custom: IsCustom(col)}, nil
}

func orient(col *core.Column, opts *core.LinkOptions, lookup Lookup) (*Params, error) {
	owner, ok := lookup.Model(col.ModelID)
	if !ok || owner.Deleted {
		return nil, core.Unresolved(col.ID, "model %s not found", col.ModelID)
	}
	related, ok := lookup.Model(opts.RelatedModelID)
	if !ok || related.Deleted {
		return nil, core.Unresolved(col.ID, "related model %s not found", opts.RelatedModelID)
	}

	p := &Params{Kind: Kind(col, opts)}

	var ownerColID, refColID string
	switch p.Kind {
	case core.RelationHasMany:
		ownerColID, refColID = opts.ParentColumnID, opts.ChildColumnID
	case core.RelationBelongsTo, core.RelationManyToMany:
		ownerColID, refColID = opts.ChildColumnID, opts.ParentColumnID
	default:
		return nil, core.Unresolved(col.ID, "unknown relation type %q", opts.Type)
	}

	ownerCol, err := columnOf(lookup, col.ID, ownerColID, owner.ID)
	if err != nil {
		return nil, err
	}
	refCol, err := columnOf(lookup, col.ID, refColID, related.ID)
	if err != nil {
		return nil, err
	}
	p.Owner = Side{Model: owner, Column: ownerCol}
	p.Ref = Side{Model: related, Column: refCol}

	if p.Kind == core.RelationManyToMany {
		junction, ok := lookup.Model(opts.JunctionModelID)
		if !ok || junction.Deleted {
			return nil, core.Unresolved(col.ID, "junction model %s not found", opts.JunctionModelID)
		}
		jOwner, err := columnOf(lookup, col.ID, opts.JunctionChildColumnID, junction.ID)
		if err != nil {
			return nil, err
		}
		jRef, err := columnOf(lookup, col.ID, opts.JunctionParentColumnID, junction.ID)
		if err != nil {
			return nil, err
		}
		p.Junction = &Junction{Model: junction, OwnerColumn: jOwner, RefColumn: jRef}
	}
	return p, nil
}

func columnOf(lookup Lookup, linkID, colID, modelID string) (*core.Column, error) {
	if colID == "" {
		return nil, core.Unresolved(linkID, "link column reference missing")
	}
	c, ok := lookup.Column(colID)
	if !ok {
		return nil, core.Unresolved(linkID, "column %s not found", colID)
	}
	if c.ModelID != modelID {
		return nil, core.Unresolved(linkID, "column %s belongs to model %s, expected %s", colID, c.ModelID, modelID)
	}
	return c, nil
}
