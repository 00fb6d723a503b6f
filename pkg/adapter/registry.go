package adapter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/leapstack-labs/leapgrid/pkg/core"
)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

// Register adds a client factory under one or more source type names.
// Called by client implementations in their init() functions.
func Register(factory Factory, names ...string) {
	registryMu.Lock()
	defer registryMu.Unlock()
	for _, name := range names {
		registry[strings.ToLower(name)] = factory
	}
}

// Get retrieves a client factory by source type.
func Get(name string) (Factory, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	f, ok := registry[strings.ToLower(name)]
	return f, ok
}

// ListClients returns all registered source type names (sorted).
func ListClients() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsRegistered checks if a source type has a client.
func IsRegistered(name string) bool {
	_, ok := Get(name)
	return ok
}

// NewClient creates an unconnected client for cfg and validates the config.
// The logger is passed to the client constructor (nil uses a discard logger).
//
// A missing type or missing required fields yield *core.ConfigurationError;
// an unknown type yields *core.UnsupportedDialectError.
func NewClient(cfg core.SourceConfig, logger *slog.Logger) (Client, error) {
	if cfg.Type == "" {
		return nil, core.ErrConfiguration("type", "source type not specified")
	}

	factory, ok := Get(cfg.Type)
	if !ok {
		return nil, &core.UnsupportedDialectError{
			Type:      cfg.Type,
			Available: ListClients(),
		}
	}

	client := factory(logger)
	if err := client.Validate(cfg); err != nil {
		return nil, err
	}
	return client, nil
}

// Open creates, validates and connects a client for src. Configuration
// errors are tagged with the source id.
func Open(ctx context.Context, src *core.Source, logger *slog.Logger) (Client, error) {
	cfg := src.Config
	client, err := NewClient(cfg, logger)
	if err != nil {
		return nil, tagSource(err, src.ID)
	}

	if cfg.SSL != nil {
		ssl, err := InlineTLSMaterial(cfg.SSL)
		if err != nil {
			return nil, tagSource(err, src.ID)
		}
		cfg.SSL = ssl
	}

	if err := client.Connect(ctx, cfg); err != nil {
		return nil, tagSource(err, src.ID)
	}
	return client, nil
}

func tagSource(err error, sourceID string) error {
	var cfgErr *core.ConfigurationError
	if errors.As(err, &cfgErr) && cfgErr.SourceID == "" {
		cfgErr.SourceID = sourceID
		return err
	}
	var unsupported *core.UnsupportedDialectError
	if errors.As(err, &unsupported) {
		return err
	}
	return fmt.Errorf("source %s: %w", sourceID, err)
}
