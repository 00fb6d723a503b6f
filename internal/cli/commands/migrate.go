package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/leapstack-labs/leapgrid/internal/cli/config"
	"github.com/leapstack-labs/leapgrid/pkg/metastore"
	"github.com/spf13/cobra"
)

// NewMigrateCommand creates the migrate command.
func NewMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply metadata store migrations",
		Long: `Create the metadata database if needed and apply pending schema
migrations. Only the sqlite meta driver has a schema to migrate.`,
		Args: cobra.NoArgs,
		RunE: runMigrate,
	}
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cmdCtx := NewCommandContextWithoutStore(cmd)
	cfg := cmdCtx.Cfg
	if cfg.Meta.Driver != config.MetaDriverSQLite {
		return fmt.Errorf("meta driver %q has no migrations", cfg.Meta.Driver)
	}

	if dir := filepath.Dir(cfg.Meta.Path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create metadata directory: %w", err)
		}
	}

	ctx := cmd.Context()
	store, err := metastore.OpenSQLStore(ctx, cfg.Meta.Path, cmdCtx.Logger)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	version, err := store.MigrationVersion(ctx)
	if err != nil {
		return err
	}
	cmdCtx.Renderer.Success(fmt.Sprintf("Metadata store %s at version %d", cfg.Meta.Path, version))
	return nil
}
