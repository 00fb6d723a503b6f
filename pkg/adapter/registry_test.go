package adapter

import (
	"context"
	"database/sql"
	"log/slog"
	"sync/atomic"
	"testing"

	"github.com/leapstack-labs/leapgrid/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClient is a Client that never touches a database.
type fakeClient struct {
	BaseClient
	connectErr error
	closed     atomic.Int32
}

func newFakeClient(logger *slog.Logger) Client {
	return &fakeClient{BaseClient: NewBaseClient(testDialect, logger)}
}

func (f *fakeClient) Validate(cfg core.SourceConfig) error { return RequirePath(cfg) }

func (f *fakeClient) Connect(_ context.Context, cfg core.SourceConfig) error {
	if f.connectErr != nil {
		return f.connectErr
	}
	f.Cfg = cfg
	return nil
}

func (f *fakeClient) Close() error {
	f.closed.Add(1)
	return nil
}

func (f *fakeClient) Query(context.Context, string, ...any) (*sql.Rows, error) {
	return nil, ErrNotConnected
}

func init() {
	Register(newFakeClient, "fake_registry", "fake_alias")
}

func TestRegister(t *testing.T) {
	assert.True(t, IsRegistered("fake_registry"))
	assert.True(t, IsRegistered("FAKE_ALIAS"), "lookups are case-insensitive")

	factory, ok := Get("fake_alias")
	require.True(t, ok)
	assert.NotNil(t, factory)

	assert.Contains(t, ListClients(), "fake_registry")
	assert.Contains(t, ListClients(), "fake_alias")
}

func TestNewClient_EmptyType(t *testing.T) {
	_, err := NewClient(core.SourceConfig{}, nil)
	require.Error(t, err)

	var cfgErr *core.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "type", cfgErr.Field)
}

func TestNewClient_UnknownType(t *testing.T) {
	_, err := NewClient(core.SourceConfig{Type: "oracle"}, nil)

	var unsupported *core.UnsupportedDialectError
	require.ErrorAs(t, err, &unsupported)
	assert.Equal(t, "oracle", unsupported.Type)
	assert.Contains(t, unsupported.Available, "fake_registry")
	assert.Contains(t, err.Error(), "oracle")
}

func TestNewClient_ValidationFailure(t *testing.T) {
	_, err := NewClient(core.SourceConfig{Type: "fake_registry"}, nil)

	var cfgErr *core.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "path", cfgErr.Field)
}

func TestOpen(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		src := &core.Source{ID: "src1", Config: core.SourceConfig{Type: "fake_registry", Path: ":memory:"}}
		client, err := Open(context.Background(), src, nil)
		require.NoError(t, err)
		assert.Equal(t, ":memory:", client.(*fakeClient).Cfg.Path)
	})

	t.Run("configuration error carries source id", func(t *testing.T) {
		src := &core.Source{ID: "src2", Config: core.SourceConfig{Type: "fake_registry"}}
		_, err := Open(context.Background(), src, nil)

		var cfgErr *core.ConfigurationError
		require.ErrorAs(t, err, &cfgErr)
		assert.Equal(t, "src2", cfgErr.SourceID)
		assert.Contains(t, err.Error(), `"src2"`)
	})

	t.Run("unreadable ssl file", func(t *testing.T) {
		src := &core.Source{ID: "src3", Config: core.SourceConfig{
			Type: "fake_registry",
			Path: ":memory:",
			SSL:  &core.SSLConfig{CAFile: "/nonexistent/ca.pem"},
		}}
		_, err := Open(context.Background(), src, nil)

		var cfgErr *core.ConfigurationError
		require.ErrorAs(t, err, &cfgErr)
		assert.Equal(t, "ssl.ca_file", cfgErr.Field)
	})
}
