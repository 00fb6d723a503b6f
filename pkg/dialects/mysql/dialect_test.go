package mysql

import (
	"testing"

	"github.com/leapstack-labs/leapgrid/pkg/core"
	"github.com/leapstack-labs/leapgrid/pkg/dialect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMySQLRegistered(t *testing.T) {
	for _, name := range []string{"mysql", "mysql2", "MariaDB"} {
		d, ok := dialect.Get(name)
		require.True(t, ok, name)
		assert.Equal(t, "mysql", d.Name)
	}
}

func TestServerVersionRule(t *testing.T) {
	tests := []struct {
		name          string
		version       string
		wantRecursive bool
		wantWindow    bool
	}{
		{"no version keeps defaults", "", true, true},
		{"mysql 8", "8.0.36", true, true},
		{"mysql 5.7", "5.7.44-log", false, false},
		{"mariadb 10", "10.11.6", true, true},
		{"garbage keeps defaults", "latest", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			caps := MySQL.ResolveCapabilities(core.SourceConfig{
				Type:    "mysql",
				Options: map[string]string{"version": tt.version},
			})
			assert.Equal(t, tt.wantRecursive, caps.RecursiveCTE)
			assert.Equal(t, tt.wantWindow, caps.WindowFunctions)
		})
	}
}

func TestMySQLFragments(t *testing.T) {
	assert.Equal(t, "`order`", MySQL.QuoteIdentifier("order"))
	assert.Equal(t, "CAST(JSON_ARRAYAGG(`b`.`name`) AS NCHAR)", MySQL.ListAggregate("`b`.`name`"))
	assert.Equal(t, core.ConcatFunction, MySQL.Concat())
	assert.Equal(t, "?", MySQL.FormatPlaceholder(3))
}
