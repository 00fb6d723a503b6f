package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapgrid/internal/cli/config"
	"github.com/leapstack-labs/leapgrid/internal/cli/testutil"
)

func newTestSession(t *testing.T) (*shellSession, *bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	cfgPath := testutil.SetupTestProject(t)
	config.ResetConfig()
	t.Cleanup(config.ResetConfig)
	_, err := config.LoadConfig(cfgPath, nil)
	require.NoError(t, err)

	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	cmd := &cobra.Command{}
	cmd.SetContext(context.Background())
	cmd.SetOut(out)
	cmd.SetErr(errOut)

	cmdCtx, cleanup, err := NewCommandContext(cmd)
	require.NoError(t, err)
	t.Cleanup(cleanup)

	return &shellSession{cmdCtx: cmdCtx, out: out, errOut: errOut}, out, errOut
}

func TestShellSession(t *testing.T) {
	ctx := context.Background()
	sess, out, errOut := newTestSession(t)

	t.Run("line without model", func(t *testing.T) {
		errOut.Reset()
		assert.False(t, sess.handle(ctx, "-c cu_name"))
		assert.Contains(t, errOut.String(), "no model given")
	})

	t.Run("use then execute", func(t *testing.T) {
		out.Reset()
		assert.False(t, sess.handle(ctx, ".use customers"))
		assert.Equal(t, "customers", sess.model)

		assert.False(t, sess.handle(ctx, `-c cu_id,cu_name --sort cu_id -x --filter '[{"fk_column_id":"cu_name","comparison_op":"eq","value":"Ada"}]'`))
		var rows []map[string]any
		require.NoError(t, json.Unmarshal(out.Bytes(), &rows))
		require.Len(t, rows, 1)
		assert.Equal(t, "Ada", rows[0]["Name"])
	})

	t.Run("use unknown model", func(t *testing.T) {
		errOut.Reset()
		sess.handle(ctx, ".use nope")
		assert.Contains(t, errOut.String(), "Error:")
		assert.Equal(t, "customers", sess.model)
	})

	t.Run("columns of current model", func(t *testing.T) {
		out.Reset()
		sess.handle(ctx, ".columns")
		assert.Contains(t, out.String(), "cu_total\tTotal\tRollup")
		assert.NotContains(t, out.String(), "cu_manager_id")
	})

	t.Run("models", func(t *testing.T) {
		out.Reset()
		sess.handle(ctx, ".models")
		assert.Contains(t, out.String(), "orders\tOrders")
	})

	t.Run("unknown dot command", func(t *testing.T) {
		errOut.Reset()
		sess.handle(ctx, ".nope")
		assert.Contains(t, errOut.String(), "Unknown command: .nope")
	})

	t.Run("quit", func(t *testing.T) {
		assert.True(t, sess.handle(ctx, ".quit"))
		assert.True(t, sess.handle(ctx, ".EXIT"))
	})
}

func TestSplitArgs(t *testing.T) {
	tests := []struct {
		line    string
		want    []string
		wantErr bool
	}{
		{line: "customers -c a,b", want: []string{"customers", "-c", "a,b"}},
		{line: `  -f '[{"value": "a b"}]'  -x `, want: []string{"-f", `[{"value": "a b"}]`, "-x"}},
		{line: `"two words"`, want: []string{"two words"}},
		{line: `''`, want: []string{""}},
		{line: `'open`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, err := splitArgs(tt.line)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestShellSessionReload(t *testing.T) {
	ctx := context.Background()
	sess, out, errOut := newTestSession(t)
	fixture := sess.cmdCtx.Cfg.Meta.Fixture

	data, err := os.ReadFile(fixture)
	require.NoError(t, err)
	renamed := strings.Replace(string(data), "title: Customers", "title: Clients", 1)
	require.NoError(t, os.WriteFile(fixture, []byte(renamed), 0o600))

	sess.reload(ctx, fixture)
	assert.Contains(t, errOut.String(), "Reloaded schema.yaml")

	sess.handle(ctx, ".models")
	assert.Contains(t, out.String(), "customers\tClients")

	require.NoError(t, os.WriteFile(fixture, []byte("models: ["), 0o600))
	sess.reload(ctx, fixture)
	assert.Contains(t, errOut.String(), "reload failed")
}

func TestShellSessionReloadClosesSources(t *testing.T) {
	ctx := context.Background()
	sess, out, _ := newTestSession(t)

	sess.handle(ctx, ".use customers")
	sess.handle(ctx, "-c cu_id -x")
	require.NotEmpty(t, out.String())
	assert.Equal(t, 1, sess.cmdCtx.Pool.Len())

	sess.reload(ctx, sess.cmdCtx.Cfg.Meta.Fixture)
	assert.Equal(t, 0, sess.cmdCtx.Pool.Len(), "reload removes every source and closes its client")

	out.Reset()
	sess.handle(ctx, "-c cu_id -x")
	require.NotEmpty(t, out.String())
	assert.Equal(t, 1, sess.cmdCtx.Pool.Len())
}
