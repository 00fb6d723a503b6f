package adapter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"

	"github.com/leapstack-labs/leapgrid/pkg/core"
)

// ErrAcquireTimeout is returned when no connection slot frees up within the
// source's acquire timeout. Callers may retry.
var ErrAcquireTimeout = errors.New("timed out acquiring connection")

// ErrEvicted is returned to callers whose connect raced an Evict or Close
// of the same source. The freshly opened client is closed.
var ErrEvicted = errors.New("source evicted while connecting")

// IsRetriable reports whether err is transient and the operation may be retried.
func IsRetriable(err error) bool {
	return errors.Is(err, ErrAcquireTimeout)
}

// OpenFunc opens a connected client for a source.
type OpenFunc func(ctx context.Context, src *core.Source, logger *slog.Logger) (Client, error)

type pooledClient struct {
	client  Client
	sem     *semaphore.Weighted
	timeout time.Duration
}

// Pool holds one lazily-opened client per source and bounds the number of
// concurrent users of each. Sources are opened outside the pool lock, one
// open per source at a time.
type Pool struct {
	mu      sync.RWMutex
	clients map[string]*pooledClient
	open    OpenFunc
	logger  *slog.Logger
	opening singleflight.Group

	// evictions and resets count Evict and Close calls; an open whose
	// epoch changed while it dialed is discarded.
	evictions map[string]uint64
	resets    uint64
}

// PoolOption configures a Pool.
type PoolOption func(*Pool)

// WithOpener replaces the function used to open clients.
func WithOpener(open OpenFunc) PoolOption {
	return func(p *Pool) { p.open = open }
}

// NewPool creates an empty pool. A nil logger discards output.
func NewPool(logger *slog.Logger, opts ...PoolOption) *Pool {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	p := &Pool{
		clients:   make(map[string]*pooledClient),
		open:      Open,
		logger:    logger,
		evictions: make(map[string]uint64),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Acquire returns the client for src, opening it on first use, and reserves
// one connection slot. The returned release func must be called exactly once.
func (p *Pool) Acquire(ctx context.Context, src *core.Source) (Client, func(), error) {
	pc, err := p.get(ctx, src)
	if err != nil {
		return nil, nil, err
	}

	acquireCtx, cancel := context.WithTimeout(ctx, pc.timeout)
	defer cancel()
	if err := pc.sem.Acquire(acquireCtx, 1); err != nil {
		if ctx.Err() != nil {
			return nil, nil, ctx.Err()
		}
		p.logger.Warn("connection acquire timed out",
			slog.String("source", src.ID),
			slog.Duration("timeout", pc.timeout))
		return nil, nil, fmt.Errorf("source %s: %w", src.ID, ErrAcquireTimeout)
	}

	var once sync.Once
	release := func() { once.Do(func() { pc.sem.Release(1) }) }
	return pc.client, release, nil
}

func (p *Pool) get(ctx context.Context, src *core.Source) (*pooledClient, error) {
	p.mu.RLock()
	pc, ok := p.clients[src.ID]
	p.mu.RUnlock()
	if ok {
		return pc, nil
	}

	v, err, _ := p.opening.Do(src.ID, func() (any, error) {
		return p.dial(ctx, src)
	})
	if err != nil {
		return nil, err
	}
	return v.(*pooledClient), nil
}

func (p *Pool) dial(ctx context.Context, src *core.Source) (*pooledClient, error) {
	p.mu.RLock()
	pc, ok := p.clients[src.ID]
	epoch := p.epoch(src.ID)
	p.mu.RUnlock()
	if ok {
		return pc, nil
	}

	client, err := p.open(ctx, src, p.logger.With(slog.String("source", src.ID)))
	if err != nil {
		return nil, err
	}

	limits := src.Config.Pool.WithDefaults()
	pc = &pooledClient{
		client:  client,
		sem:     semaphore.NewWeighted(int64(limits.MaxConns)),
		timeout: limits.AcquireTimeout,
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.epoch(src.ID) != epoch {
		_ = client.Close()
		p.logger.Debug("discarded client of evicted source", slog.String("source", src.ID))
		return nil, fmt.Errorf("source %s: %w", src.ID, ErrEvicted)
	}
	p.clients[src.ID] = pc
	p.logger.Debug("opened source client",
		slog.String("source", src.ID),
		slog.String("type", src.Config.Type))
	return pc, nil
}

// epoch must be called with mu held.
func (p *Pool) epoch(sourceID string) uint64 {
	return p.resets + p.evictions[sourceID]
}

// Evict closes and forgets the client of a removed or reconfigured source.
func (p *Pool) Evict(sourceID string) error {
	p.mu.Lock()
	pc, ok := p.clients[sourceID]
	delete(p.clients, sourceID)
	p.evictions[sourceID]++
	p.mu.Unlock()

	if !ok {
		return nil
	}
	if err := pc.client.Close(); err != nil {
		return fmt.Errorf("failed to close source %s: %w", sourceID, err)
	}
	return nil
}

// Len returns the number of open clients.
func (p *Pool) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.clients)
}

// Close closes every client.
func (p *Pool) Close() error {
	p.mu.Lock()
	clients := p.clients
	p.clients = make(map[string]*pooledClient)
	p.resets++
	p.mu.Unlock()

	var errs []error
	for id, pc := range clients {
		if err := pc.client.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close source %s: %w", id, err))
		}
	}
	return errors.Join(errs...)
}
