package core

import "context"

// MetaReader reads the virtual schema. Implementations return an error
// wrapping ErrNotFound for missing entities.
type MetaReader interface {
	GetSource(ctx context.Context, id string) (*Source, error)
	GetModel(ctx context.Context, id string) (*Model, error)
	GetColumn(ctx context.Context, id string) (*Column, error)
	// ListColumns returns the model's columns ordered by Order.
	ListColumns(ctx context.Context, modelID string) ([]*Column, error)
}
