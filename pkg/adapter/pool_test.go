package adapter

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/leapstack-labs/leapgrid/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func countingOpener(opens *atomic.Int32) OpenFunc {
	return func(_ context.Context, _ *core.Source, logger *slog.Logger) (Client, error) {
		opens.Add(1)
		return newFakeClient(logger), nil
	}
}

func testSource(id string, maxConns int) *core.Source {
	return &core.Source{
		ID: id,
		Config: core.SourceConfig{
			Type: "fake_registry",
			Path: ":memory:",
			Pool: core.PoolConfig{MaxConns: maxConns, AcquireTimeout: 20 * time.Millisecond},
		},
	}
}

func TestPool_OpensOncePerSource(t *testing.T) {
	var opens atomic.Int32
	pool := NewPool(nil, WithOpener(countingOpener(&opens)))
	src := testSource("s1", 50)

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, release, err := pool.Acquire(context.Background(), src)
			if assert.NoError(t, err) {
				release()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), opens.Load())
	assert.Equal(t, 1, pool.Len())
}

func TestPool_AcquireTimeout(t *testing.T) {
	var opens atomic.Int32
	pool := NewPool(nil, WithOpener(countingOpener(&opens)))
	src := testSource("s1", 1)

	_, release, err := pool.Acquire(context.Background(), src)
	require.NoError(t, err)

	_, _, err = pool.Acquire(context.Background(), src)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAcquireTimeout)
	assert.True(t, IsRetriable(err))

	release()
	release() // idempotent

	_, release2, err := pool.Acquire(context.Background(), src)
	require.NoError(t, err, "slot is free again after release")
	release2()
}

func TestPool_AcquireCanceled(t *testing.T) {
	var opens atomic.Int32
	pool := NewPool(nil, WithOpener(countingOpener(&opens)))
	src := testSource("s1", 1)

	_, release, err := pool.Acquire(context.Background(), src)
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err = pool.Acquire(ctx, src)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, IsRetriable(err))
}

func TestPool_OpenError(t *testing.T) {
	boom := errors.New("boom")
	pool := NewPool(nil, WithOpener(func(context.Context, *core.Source, *slog.Logger) (Client, error) {
		return nil, boom
	}))

	_, _, err := pool.Acquire(context.Background(), testSource("s1", 1))
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, pool.Len(), "failed opens are not cached")
}

func TestPool_EvictAndClose(t *testing.T) {
	var opens atomic.Int32
	pool := NewPool(nil, WithOpener(countingOpener(&opens)))

	c1, r1, err := pool.Acquire(context.Background(), testSource("s1", 1))
	require.NoError(t, err)
	r1()
	c2, r2, err := pool.Acquire(context.Background(), testSource("s2", 1))
	require.NoError(t, err)
	r2()

	require.NoError(t, pool.Evict("s1"))
	assert.Equal(t, int32(1), c1.(*fakeClient).closed.Load())
	assert.Equal(t, 1, pool.Len())
	require.NoError(t, pool.Evict("missing"))

	_, r3, err := pool.Acquire(context.Background(), testSource("s1", 1))
	require.NoError(t, err)
	r3()
	assert.Equal(t, int32(3), opens.Load(), "evicted source reopens")

	require.NoError(t, pool.Close())
	assert.Equal(t, int32(1), c2.(*fakeClient).closed.Load())
	assert.Equal(t, 0, pool.Len())
}

// gatedOpener holds opens of the "slow" source until gate is closed and
// records every client it hands out.
type gatedOpener struct {
	gate    chan struct{}
	started chan struct{}
	mu      sync.Mutex
	clients []*fakeClient
}

func newGatedOpener() *gatedOpener {
	return &gatedOpener{gate: make(chan struct{}), started: make(chan struct{}, 1)}
}

func (g *gatedOpener) open(_ context.Context, src *core.Source, logger *slog.Logger) (Client, error) {
	if src.ID == "slow" {
		g.started <- struct{}{}
		<-g.gate
	}
	c := newFakeClient(logger).(*fakeClient)
	g.mu.Lock()
	g.clients = append(g.clients, c)
	g.mu.Unlock()
	return c, nil
}

func TestPool_SlowOpenDoesNotBlockOtherSources(t *testing.T) {
	g := newGatedOpener()
	pool := NewPool(nil, WithOpener(g.open))

	done := make(chan error, 1)
	go func() {
		_, release, err := pool.Acquire(context.Background(), testSource("slow", 1))
		if err == nil {
			release()
		}
		done <- err
	}()
	<-g.started

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, release, err := pool.Acquire(ctx, testSource("fast", 1))
	require.NoError(t, err)
	release()
	assert.Equal(t, 1, pool.Len())

	close(g.gate)
	require.NoError(t, <-done)
	assert.Equal(t, 2, pool.Len())
}

func TestPool_EvictDuringOpen(t *testing.T) {
	g := newGatedOpener()
	pool := NewPool(nil, WithOpener(g.open))

	done := make(chan error, 1)
	go func() {
		_, _, err := pool.Acquire(context.Background(), testSource("slow", 1))
		done <- err
	}()
	<-g.started

	require.NoError(t, pool.Evict("slow"))
	close(g.gate)

	err := <-done
	assert.ErrorIs(t, err, ErrEvicted)
	assert.False(t, IsRetriable(err))
	assert.Equal(t, 0, pool.Len())
	require.Len(t, g.clients, 1)
	assert.Equal(t, int32(1), g.clients[0].closed.Load(), "discarded client is closed")
}
