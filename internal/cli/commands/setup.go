package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/leapstack-labs/leapgrid/internal/cli/config"
	"github.com/leapstack-labs/leapgrid/internal/cli/output"
	"github.com/leapstack-labs/leapgrid/pkg/adapter"
	"github.com/leapstack-labs/leapgrid/pkg/compiler"
	"github.com/leapstack-labs/leapgrid/pkg/core"
	"github.com/leapstack-labs/leapgrid/pkg/metacache"
	"github.com/leapstack-labs/leapgrid/pkg/metastore"
	"github.com/spf13/cobra"

	// Register every source client.
	_ "github.com/leapstack-labs/leapgrid/pkg/adapters/duckdb"
	_ "github.com/leapstack-labs/leapgrid/pkg/adapters/libsql"
	_ "github.com/leapstack-labs/leapgrid/pkg/adapters/mysql"
	_ "github.com/leapstack-labs/leapgrid/pkg/adapters/postgres"
	_ "github.com/leapstack-labs/leapgrid/pkg/adapters/sqlite"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Store    metastore.Store
	Cache    *metacache.Cache
	Pool     *adapter.Pool
	Compiler *compiler.Compiler
	Renderer *output.Renderer
}

// NewCommandContext opens the metadata store and builds a compiler over it.
// Returns the context and a cleanup function that must be called (typically via defer).
func NewCommandContext(cmd *cobra.Command) (*CommandContext, func(), error) {
	cfg := getConfig()
	logger := config.GetLogger(cmd.Context())
	ctx := cmd.Context()

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}

	var meta metastore.Store = store
	var cache *metacache.Cache
	if cfg.Cache.Enabled {
		cache = metacache.New(nil, metacache.WithTTL(cfg.Cache.TTL))
		meta = metastore.NewCached(store, cache, logger)
	}

	pool := adapter.NewPool(logger, adapter.WithOpener(sourceOpener(cfg)))
	meta = metastore.NotifyRemovals(meta, evictRemoved(pool, logger))

	opts := []compiler.Option{compiler.WithPool(pool)}
	if cache != nil {
		opts = append(opts, compiler.WithQueryCache(cache))
	}
	if cfg.Compiler.DefaultLimit > 0 {
		opts = append(opts, compiler.WithDefaultLimit(cfg.Compiler.DefaultLimit))
	}
	if cfg.Compiler.MaxLongTextLength > 0 {
		opts = append(opts, compiler.WithMaxLongTextLength(cfg.Compiler.MaxLongTextLength))
	}

	mode := output.Mode(cfg.OutputFormat)
	r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), mode)

	cleanup := func() {
		if err := pool.Close(); err != nil {
			logger.Warn("failed to close connection pool", slog.String("error", err.Error()))
		}
		if err := meta.Close(); err != nil {
			logger.Warn("failed to close metadata store", slog.String("error", err.Error()))
		}
	}

	return &CommandContext{
		Cfg:      cfg,
		Logger:   logger,
		Store:    meta,
		Cache:    cache,
		Pool:     pool,
		Compiler: compiler.New(meta, logger, opts...),
		Renderer: r,
	}, cleanup, nil
}

// NewCommandContextWithoutStore creates a CommandContext without a metadata store.
// Useful for commands that don't need metadata.
func NewCommandContextWithoutStore(cmd *cobra.Command) *CommandContext {
	cfg := getConfig()
	mode := output.Mode(cfg.OutputFormat)
	return &CommandContext{
		Cfg:      cfg,
		Logger:   config.GetLogger(cmd.Context()),
		Renderer: output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), mode),
	}
}

// getConfig returns the current configuration, or the defaults when none
// was loaded.
func getConfig() *config.Config {
	if cfg := config.GetCurrentConfig(); cfg != nil {
		return cfg
	}
	return &config.Config{
		Meta:         config.MetaConfig{Driver: config.DefaultMetaDriver, Path: config.DefaultMetaPath},
		Cache:        config.CacheConfig{Enabled: true},
		Log:          config.LogConfig{Level: config.DefaultLogLevel, Format: config.DefaultLogFormat},
		OutputFormat: config.DefaultOutput,
	}
}

// openStore opens the configured store and seeds it from the fixture when
// it holds no sources yet.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (metastore.Store, error) {
	var store metastore.Store
	switch cfg.Meta.Driver {
	case config.MetaDriverMemory:
		store = metastore.NewMemoryStore()
	default:
		if dir := filepath.Dir(cfg.Meta.Path); cfg.Meta.Path != ":memory:" && dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0750); err != nil {
				return nil, fmt.Errorf("failed to create metadata directory: %w", err)
			}
		}
		s, err := metastore.OpenSQLStore(ctx, cfg.Meta.Path, logger)
		if err != nil {
			return nil, err
		}
		store = s
	}

	if cfg.Meta.Fixture == "" {
		return store, nil
	}
	sources, err := store.ListSources(ctx)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	if len(sources) > 0 {
		return store, nil
	}
	if err := metastore.LoadFixture(ctx, cfg.Meta.Fixture, store); err != nil {
		_ = store.Close()
		return nil, err
	}
	logger.Debug("loaded schema fixture", slog.String("path", cfg.Meta.Fixture))
	return store, nil
}

// evictRemoved closes the pooled clients of deleted sources.
func evictRemoved(pool *adapter.Pool, logger *slog.Logger) metastore.RemoveFunc {
	return func(_ context.Context, removed *metastore.Removed) {
		for _, src := range removed.Sources {
			if err := pool.Evict(src.ID); err != nil {
				logger.Warn("failed to close removed source",
					slog.String("source", src.ID),
					slog.String("error", err.Error()))
			}
		}
	}
}

// sourceOpener connects sources, replacing stored connection settings with
// those configured under sources.<id>.
func sourceOpener(cfg *config.Config) adapter.OpenFunc {
	return func(ctx context.Context, src *core.Source, logger *slog.Logger) (adapter.Client, error) {
		if override, ok := cfg.SourceOverride(src.ID); ok {
			cp := *src
			cp.Config = override
			src = &cp
		}
		return adapter.Open(ctx, src, logger)
	}
}
