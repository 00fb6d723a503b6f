// Package testutil provides test utilities for CLI testing.
package testutil

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapgrid/internal/cli/output"
	"github.com/leapstack-labs/leapgrid/internal/testutil"
	"github.com/leapstack-labs/leapgrid/pkg/adapters/sqlite"
	"github.com/leapstack-labs/leapgrid/pkg/core"
)

// projectConfig points the shop fixture's main source at shop.db next to it.
const projectConfig = `meta:
  path: .leapgrid/meta.db
  fixture: schema.yaml
sources:
  main:
    type: sqlite
    path: shop.db
`

// SetupTestProject creates a temporary project: a leapgrid.yaml, the shop
// schema fixture and a shop.db SQLite file holding its data. It returns the
// path of the config file.
func SetupTestProject(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "schema.yaml"), testutil.ShopYAML, 0600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "leapgrid.yaml"), []byte(projectConfig), 0600))

	ctx := context.Background()
	client := sqlite.New(testutil.NewTestLogger(t))
	require.NoError(t, client.Connect(ctx, core.SourceConfig{Type: "sqlite", Path: filepath.Join(dir, "shop.db")}))
	require.NoError(t, client.Exec(ctx, testutil.ShopDDL))
	require.NoError(t, client.Exec(ctx, testutil.ShopData))
	require.NoError(t, client.Close())

	return filepath.Join(dir, "leapgrid.yaml")
}

// TestRenderer wraps a Renderer for testing with captured output buffers.
type TestRenderer struct {
	*output.Renderer
	Out    *bytes.Buffer
	ErrOut *bytes.Buffer
}

// NewTestRenderer creates a new test renderer with the specified mode and TTY state.
// Output is captured in buffers for inspection.
func NewTestRenderer(mode output.Mode, isTTY bool) *TestRenderer {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	return &TestRenderer{
		Renderer: output.NewRendererWithTTY(out, errOut, isTTY, mode),
		Out:      out,
		ErrOut:   errOut,
	}
}

// Output returns the stdout output as a string.
func (tr *TestRenderer) Output() string {
	return tr.Out.String()
}

// ErrorOutput returns the stderr output as a string.
func (tr *TestRenderer) ErrorOutput() string {
	return tr.ErrOut.String()
}

// ansiPattern matches ANSI escape codes.
var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

// AssertNoANSI checks that a string contains no ANSI escape codes.
func AssertNoANSI(t *testing.T, s string) {
	t.Helper()
	if ansiPattern.MatchString(s) {
		t.Errorf("string contains ANSI escape codes: %q", s)
	}
}
