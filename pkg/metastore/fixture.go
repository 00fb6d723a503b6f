package metastore

import (
	"context"
	"fmt"
	"os"

	"github.com/leapstack-labs/leapgrid/pkg/core"
	"github.com/leapstack-labs/leapgrid/pkg/formula"
	"gopkg.in/yaml.v3"
)

// Fixture is a virtual schema described in YAML.
//
//	sources:
//	  - id: main
//	    config: {type: sqlite, path: ./shop.db}
//	models:
//	  - id: orders
//	    source_id: main
//	    table_name: orders
//	    columns:
//	      - {id: o_id, column_name: id, uidt: ID, pk: true}
type Fixture struct {
	Sources []*core.Source  `yaml:"sources"`
	Models  []*FixtureModel `yaml:"models"`
}

// FixtureModel is a model with its columns inlined.
type FixtureModel struct {
	core.Model `yaml:",inline"`
	Columns    []*core.Column `yaml:"columns"`
}

// LoadFixture reads a YAML fixture from path into store.
func LoadFixture(ctx context.Context, path string, store Store) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read fixture: %w", err)
	}
	return LoadFixtureBytes(ctx, data, store)
}

// LoadFixtureBytes parses a YAML fixture and inserts it into store. Columns
// without an explicit order keep their position in the file. Formulas are
// parsed and parse failures recorded on the column.
func LoadFixtureBytes(ctx context.Context, data []byte, store Store) error {
	fx, err := parseFixture(data)
	if err != nil {
		return err
	}
	return insertFixture(ctx, fx, store)
}

// ReloadFixture replaces everything in store with the fixture at path. The
// file is parsed before anything is deleted, so a malformed file leaves the
// store untouched.
func ReloadFixture(ctx context.Context, path string, store Store) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read fixture: %w", err)
	}
	fx, err := parseFixture(data)
	if err != nil {
		return err
	}

	sources, err := store.ListSources(ctx)
	if err != nil {
		return err
	}
	for _, src := range sources {
		if _, err := store.DeleteSource(ctx, src.ID); err != nil {
			return fmt.Errorf("failed to remove source %s: %w", src.ID, err)
		}
	}
	return insertFixture(ctx, fx, store)
}

func parseFixture(data []byte) (*Fixture, error) {
	var fx Fixture
	if err := yaml.Unmarshal(data, &fx); err != nil {
		return nil, fmt.Errorf("failed to parse fixture: %w", err)
	}
	return &fx, nil
}

func insertFixture(ctx context.Context, fx *Fixture, store Store) error {
	for _, src := range fx.Sources {
		if err := store.InsertSource(ctx, src); err != nil {
			return fmt.Errorf("failed to load source %s: %w", src.ID, err)
		}
	}
	for _, fm := range fx.Models {
		m := fm.Model
		if m.Type == "" {
			m.Type = core.ModelTypeTable
		}
		if m.Title == "" {
			m.Title = m.TableName
		}
		if err := store.InsertModel(ctx, &m); err != nil {
			return fmt.Errorf("failed to load model %s: %w", m.ID, err)
		}
		for i, col := range fm.Columns {
			col.ModelID = m.ID
			if col.Order == 0 {
				col.Order = i + 1
			}
			if col.Title == "" {
				col.Title = col.ColumnName
			}
			checkFormula(col)
			if err := store.InsertColumn(ctx, col); err != nil {
				return fmt.Errorf("failed to load column %s.%s: %w", m.ID, col.ID, err)
			}
		}
	}
	return nil
}

func checkFormula(col *core.Column) {
	f := col.Options.Formula
	if col.UIType != core.UITypeFormula || f == nil {
		return
	}
	f.Error = ""
	if _, err := formula.Parse(f.Expression); err != nil {
		f.Error = err.Error()
	}
}
