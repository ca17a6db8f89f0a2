package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clemensv/xregistry-package-registries-sub002/pkg/logging"
)

func TestMemoryGetPut(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	_, ok, err := m.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, m.Put(ctx, "k", []byte("v1")))
	require.NoError(t, m.Put(ctx, "k", []byte("v2")))

	v, ok, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v2", string(v))
	assert.Equal(t, 1, m.Len())

	assert.Equal(t, []string{"k"}, m.Dirty())
	assert.Empty(t, m.Dirty(), "dirty set resets after each call")
}

func TestMemoryConcurrentWriters(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = m.Put(ctx, "same", []byte{byte(i)})
		}(i)
	}
	wg.Wait()

	v, ok, _ := m.Get(ctx, "same")
	require.True(t, ok)
	assert.Len(t, v, 1)
}

func openTestBadger(t *testing.T) *Badger {
	t.Helper()
	b, err := OpenBadger(InMemoryBadgerConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func TestBadgerGetPut(t *testing.T) {
	ctx := context.Background()
	b := openTestBadger(t)

	_, ok, err := b.Get(ctx, "nope")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, b.Put(ctx, "catalog/nuget", []byte(`{"timestamp":"x"}`)))
	v, ok, err := b.Get(ctx, "catalog/nuget")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.JSONEq(t, `{"timestamp":"x"}`, string(v))
}

func TestOpenBadgerRequiresPath(t *testing.T) {
	_, err := OpenBadger(BadgerConfig{})
	assert.Error(t, err)
}

func TestSnapshotFlushAndRestore(t *testing.T) {
	ctx := context.Background()
	durable := openTestBadger(t)
	logger := logging.NewTestLogger(t)

	mem := NewMemory()
	snap := NewSnapshotter(mem, durable, time.Hour, logger.Logger)
	require.NoError(t, mem.Put(ctx, "http/a", []byte("A")))
	require.NoError(t, mem.Put(ctx, "http/b", []byte("B")))

	n, err := snap.Flush(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = snap.Flush(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "nothing changed since the last flush")

	fresh := NewMemory()
	restored, err := NewSnapshotter(fresh, durable, time.Hour, logger.Logger).Restore(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, restored)
	assert.Empty(t, fresh.Dirty(), "restored entries are not re-flushed")

	v, ok, _ := fresh.Get(ctx, "http/b")
	require.True(t, ok)
	assert.Equal(t, "B", string(v))
	logger.AssertContains(t, "Restored store snapshot")
}

func TestSnapshotRunFlushesOnShutdown(t *testing.T) {
	durable := openTestBadger(t)
	mem := NewMemory()
	snap := NewSnapshotter(mem, durable, time.Hour, logging.NewNopLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		snap.Run(ctx)
		close(done)
	}()

	require.NoError(t, mem.Put(context.Background(), "k", []byte("v")))
	cancel()
	<-done

	v, ok, err := durable.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", string(v))
}
