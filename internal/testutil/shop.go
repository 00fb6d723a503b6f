package testutil

import (
	"context"
	_ "embed"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapgrid/pkg/adapters/sqlite"
	"github.com/leapstack-labs/leapgrid/pkg/core"
	"github.com/leapstack-labs/leapgrid/pkg/metastore"
	"github.com/leapstack-labs/leapgrid/pkg/relation"
)

// ShopYAML is a virtual schema with customers, orders, tags and a model on
// a second source. It covers every relation kind and the broken, cyclic and
// cross-source references the compiler has to degrade on.
//
//go:embed testdata/shop.yaml
var ShopYAML []byte

// ShopDDL creates the physical tables of the main source.
const ShopDDL = `
CREATE TABLE customers (
	id INTEGER PRIMARY KEY,
	name TEXT,
	email TEXT,
	notes TEXT,
	prompt TEXT,
	active INTEGER,
	manager_id INTEGER REFERENCES customers(id),
	remote_id INTEGER,
	created_at TEXT DEFAULT CURRENT_TIMESTAMP
);
CREATE TABLE orders (
	id INTEGER PRIMARY KEY,
	customer_id INTEGER REFERENCES customers(id),
	amount REAL,
	status TEXT,
	placed_at TEXT
);
CREATE TABLE tags (
	id INTEGER PRIMARY KEY,
	title TEXT
);
CREATE TABLE customer_tags (
	customer_id INTEGER REFERENCES customers(id),
	tag_id INTEGER REFERENCES tags(id)
);
`

// ShopData seeds the physical tables. Ada manages Bob who manages Cy.
const ShopData = `
INSERT INTO customers (id, name, email, active, manager_id, created_at) VALUES
	(1, 'Ada', 'ada@example.com', 1, NULL, '2024-01-02 03:04:05'),
	(2, 'Bob', 'bob@example.com', 0, 1, '2024-02-03 04:05:06'),
	(3, 'Cy', NULL, NULL, 2, '2024-03-04 05:06:07');
INSERT INTO orders (id, customer_id, amount, status, placed_at) VALUES
	(1, 1, 10.5, 'paid', '2024-05-01 10:00:00'),
	(2, 1, 20, 'new', '2024-05-02 11:00:00'),
	(3, 2, 5, 'shipped', '2024-05-03 12:00:00');
INSERT INTO tags (id, title) VALUES (1, 'vip'), (2, 'early');
INSERT INTO customer_tags (customer_id, tag_id) VALUES (1, 1), (1, 2), (2, 1);
`

// ShopStore returns a memory store loaded with ShopYAML.
func ShopStore(t testing.TB) *metastore.MemoryStore {
	t.Helper()
	store := metastore.NewMemoryStore()
	require.NoError(t, metastore.LoadFixtureBytes(context.Background(), ShopYAML, store))
	return store
}

// ShopSnapshot returns every model and column of ShopYAML.
func ShopSnapshot(t testing.TB) *relation.Snapshot {
	t.Helper()
	ctx := context.Background()
	store := ShopStore(t)

	models, err := store.ListModels(ctx)
	require.NoError(t, err)
	var cols []*core.Column
	for _, m := range models {
		mc, err := store.ListColumns(ctx, m.ID)
		require.NoError(t, err)
		cols = append(cols, mc...)
	}
	return relation.NewSnapshot(models, cols)
}

// ShopDB returns an in-memory SQLite client holding the shop tables and data.
func ShopDB(t testing.TB) *sqlite.Client {
	t.Helper()
	ctx := context.Background()
	client := sqlite.New(NewTestLogger(t))
	require.NoError(t, client.Connect(ctx, core.SourceConfig{Type: "sqlite", Path: sqlite.MemoryPath}))
	t.Cleanup(func() { _ = client.Close() })

	require.NoError(t, client.Exec(ctx, ShopDDL))
	require.NoError(t, client.Exec(ctx, ShopData))
	return client
}
