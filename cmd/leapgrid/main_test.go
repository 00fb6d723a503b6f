// Package main provides tests for the LeapGrid CLI.
package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapgrid/internal/cli"
	"github.com/leapstack-labs/leapgrid/internal/cli/config"
	"github.com/leapstack-labs/leapgrid/internal/cli/testutil"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	config.ResetConfig()
	t.Cleanup(config.ResetConfig)

	cmd := cli.NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "LeapGrid")
}

func TestHelpCommand(t *testing.T) {
	out, err := execute(t, "--help")
	require.NoError(t, err)
	for _, sub := range []string{"compile", "traverse", "columns", "list", "migrate", "doctor", "shell"} {
		assert.Contains(t, out, sub)
	}
}

func TestCompileCommand(t *testing.T) {
	cfgPath := testutil.SetupTestProject(t)

	out, err := execute(t, "--config", cfgPath, "-o", "json",
		"compile", "customers", "--columns", "cu_name,cu_order_count", "--sort", "cu_name", "-x")
	require.NoError(t, err)

	var rows []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &rows))
	require.Len(t, rows, 3)
	assert.Equal(t, "Ada", rows[0]["Name"])
	assert.EqualValues(t, 2, rows[0]["Order Count"])
}

func TestCompileCommandTextOutput(t *testing.T) {
	cfgPath := testutil.SetupTestProject(t)

	out, err := execute(t, "--config", cfgPath, "-o", "text", "compile", "customers", "--columns", "cu_id,cu_name")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, `SELECT "t0"."id" AS "cu_id", "t0"."name" AS "cu_name" FROM "customers" "t0"`), out)
}

func TestInvalidConfig(t *testing.T) {
	_, err := execute(t, "--log-level", "loud", "list")
	assert.ErrorContains(t, err, "invalid log level")
}
