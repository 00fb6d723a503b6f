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

func TestNotifyRemovals(t *testing.T) {
	ctx := context.Background()
	var got []*metastore.Removed
	store := metastore.NotifyRemovals(testutil.ShopStore(t), func(_ context.Context, removed *metastore.Removed) {
		got = append(got, removed)
	})

	_, err := store.DeleteColumn(ctx, "tg_title")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Contains(t, columnIDs(got[0].Columns), "tg_title")

	_, err = store.DeleteColumn(ctx, "missing")
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.Len(t, got, 1, "failed deletes are not reported")

	_, err = store.DeleteSource(ctx, "shop")
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Len(t, got[1].Sources, 1)
	assert.Equal(t, "shop", got[1].Sources[0].ID)
	assert.NotEmpty(t, got[1].Models)
}
