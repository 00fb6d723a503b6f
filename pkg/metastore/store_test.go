package metastore_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapgrid/internal/testutil"
	"github.com/leapstack-labs/leapgrid/pkg/core"
	"github.com/leapstack-labs/leapgrid/pkg/metastore"
)

// stores returns a fresh instance of every Store implementation.
func stores() map[string]func(t *testing.T) metastore.Store {
	return map[string]func(t *testing.T) metastore.Store{
		"memory": func(*testing.T) metastore.Store {
			return metastore.NewMemoryStore()
		},
		"sqlite": func(t *testing.T) metastore.Store {
			s, err := metastore.OpenSQLStore(context.Background(), ":memory:", testutil.NewTestLogger(t))
			require.NoError(t, err)
			t.Cleanup(func() { _ = s.Close() })
			return s
		},
		"cached": func(t *testing.T) metastore.Store {
			return metastore.NewCached(metastore.NewMemoryStore(), nil, testutil.NewTestLogger(t))
		},
	}
}

func loadShop(t *testing.T, s metastore.Store) {
	t.Helper()
	require.NoError(t, metastore.LoadFixtureBytes(context.Background(), testutil.ShopYAML, s))
}

func columnIDs(cols []*core.Column) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = c.ID
	}
	return out
}

func TestStore_Reads(t *testing.T) {
	for name, open := range stores() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := open(t)
			loadShop(t, s)

			src, err := s.GetSource(ctx, "main")
			require.NoError(t, err)
			assert.Equal(t, "sqlite", src.Config.Type)

			m, err := s.GetModel(ctx, "orders")
			require.NoError(t, err)
			assert.Equal(t, "orders", m.TableName)
			assert.Equal(t, core.ModelTypeTable, m.Type)

			col, err := s.GetColumn(ctx, "cu_tags")
			require.NoError(t, err)
			require.NotNil(t, col.Options.Link)
			assert.Equal(t, core.RelationManyToMany, col.Options.Link.Type)
			assert.Equal(t, "customer_tags", col.Options.Link.JunctionModelID)

			total, err := s.GetColumn(ctx, "cu_total")
			require.NoError(t, err)
			require.NotNil(t, total.Options.Rollup)
			assert.Equal(t, core.RollupSum, total.Options.Rollup.Function)

			prompt, err := s.GetColumn(ctx, "cu_prompt")
			require.NoError(t, err)
			assert.True(t, prompt.MetaBool("ai"))

			cols, err := s.ListColumns(ctx, "tags")
			require.NoError(t, err)
			assert.Equal(t, []string{"tg_id", "tg_title"}, columnIDs(cols))

			models, err := s.ListModels(ctx)
			require.NoError(t, err)
			assert.Len(t, models, 5)

			sources, err := s.ListSources(ctx)
			require.NoError(t, err)
			assert.Len(t, sources, 2)
		})
	}
}

func TestStore_NotFound(t *testing.T) {
	for name, open := range stores() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := open(t)
			loadShop(t, s)

			_, err := s.GetSource(ctx, "nope")
			assert.ErrorIs(t, err, core.ErrNotFound)
			_, err = s.GetModel(ctx, "nope")
			assert.ErrorIs(t, err, core.ErrNotFound)
			_, err = s.GetColumn(ctx, "nope")
			assert.ErrorIs(t, err, core.ErrNotFound)

			err = s.UpdateColumn(ctx, &core.Column{ID: "nope", ModelID: "orders"})
			assert.ErrorIs(t, err, core.ErrNotFound)
			_, err = s.DeleteColumn(ctx, "nope")
			assert.ErrorIs(t, err, core.ErrNotFound)

			err = s.InsertColumn(ctx, &core.Column{ModelID: "nope", ColumnName: "x", UIType: core.UITypeNumber})
			assert.ErrorIs(t, err, core.ErrNotFound)
			err = s.InsertModel(ctx, &core.Model{SourceID: "nope", TableName: "x"})
			assert.ErrorIs(t, err, core.ErrNotFound)
		})
	}
}

func TestStore_InsertAssignsAndRejectsIDs(t *testing.T) {
	for name, open := range stores() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := open(t)
			loadShop(t, s)

			col := &core.Column{ModelID: "orders", Title: "Note", ColumnName: "note", UIType: core.UITypeLongText, Order: 99}
			require.NoError(t, s.InsertColumn(ctx, col))
			assert.NotEmpty(t, col.ID)

			got, err := s.GetColumn(ctx, col.ID)
			require.NoError(t, err)
			assert.Equal(t, "Note", got.Title)

			dup := &core.Column{ID: col.ID, ModelID: "orders", ColumnName: "other", UIType: core.UITypeNumber}
			assert.ErrorIs(t, s.InsertColumn(ctx, dup), metastore.ErrExists)
			assert.ErrorIs(t, s.InsertModel(ctx, &core.Model{ID: "orders", SourceID: "main"}), metastore.ErrExists)
			assert.ErrorIs(t, s.InsertSource(ctx, &core.Source{ID: "main"}), metastore.ErrExists)
		})
	}
}

func TestStore_UpdateColumn(t *testing.T) {
	for name, open := range stores() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := open(t)
			loadShop(t, s)

			col, err := s.GetColumn(ctx, "or_status")
			require.NoError(t, err)
			col.Title = "State"
			col.Options.Select.Options = append(col.Options.Select.Options, "cancelled")
			col.ModelID = "customers"
			require.NoError(t, s.UpdateColumn(ctx, col))

			got, err := s.GetColumn(ctx, "or_status")
			require.NoError(t, err)
			assert.Equal(t, "State", got.Title)
			assert.Equal(t, "orders", got.ModelID)
			assert.True(t, got.Options.Select.Has("cancelled"))
		})
	}
}

func TestStore_DeleteCascades(t *testing.T) {
	tests := []struct {
		name        string
		del         func(ctx context.Context, s metastore.Store) (*metastore.Removed, error)
		wantSources int
		wantModels  []string
		wantColumns []string
	}{
		{
			name: "column takes dependent links",
			del: func(ctx context.Context, s metastore.Store) (*metastore.Removed, error) {
				return s.DeleteColumn(ctx, "ct_tag_id")
			},
			wantColumns: []string{"ct_tag_id", "cu_tag_count", "cu_tags"},
		},
		{
			name: "model takes its columns",
			del: func(ctx context.Context, s metastore.Store) (*metastore.Removed, error) {
				return s.DeleteModel(ctx, "tags")
			},
			wantModels:  []string{"tags"},
			wantColumns: []string{"cu_tag_count", "cu_tags", "tg_id", "tg_title"},
		},
		{
			name: "source takes its models",
			del: func(ctx context.Context, s metastore.Store) (*metastore.Removed, error) {
				return s.DeleteSource(ctx, "warehouse")
			},
			wantSources: 1,
			wantModels:  []string{"remote"},
			wantColumns: []string{"cu_remote", "rm_id", "rm_label"},
		},
	}

	for name, open := range stores() {
		for _, tt := range tests {
			t.Run(name+"/"+tt.name, func(t *testing.T) {
				ctx := context.Background()
				s := open(t)
				loadShop(t, s)

				removed, err := tt.del(ctx, s)
				require.NoError(t, err)
				assert.Len(t, removed.Sources, tt.wantSources)
				assert.Equal(t, tt.wantColumns, columnIDs(removed.Columns))

				var models []string
				for _, m := range removed.Models {
					models = append(models, m.ID)
				}
				assert.Equal(t, tt.wantModels, models)

				for _, id := range tt.wantColumns {
					_, err := s.GetColumn(ctx, id)
					assert.ErrorIs(t, err, core.ErrNotFound, id)
				}
			})
		}
	}
}

func TestOpenSQLStore_MigrationVersion(t *testing.T) {
	ctx := context.Background()
	s, err := metastore.OpenSQLStore(ctx, ":memory:", nil)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	v, err := s.MigrationVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), v)

	require.NoError(t, s.Migrate(ctx), "migrating twice is a no-op")
}
