package poolcache

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hedgeledger/engine/analytics"
)

type fakeSource struct {
	mu    sync.Mutex
	pools []analytics.Pool
	err   error
	calls int
}

func (f *fakeSource) BuildAll(ctx context.Context) ([]analytics.Pool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([]analytics.Pool, len(f.pools))
	copy(out, f.pools)
	return out, nil
}

func (f *fakeSource) set(pools []analytics.Pool, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pools, f.err = pools, err
}

func generation(tag string, n int) []analytics.Pool {
	pools := make([]analytics.Pool, n)
	for i := range pools {
		pools[i] = analytics.Pool{
			PID:    uint64(i),
			Chain:  "dfk",
			Pair:   tag,
			Priced: true,
			TVL:    decimal.NewFromInt(int64(1000 * (i + 1))),
		}
	}
	return pools
}

func newTestCache(t *testing.T, src PoolSource, path string) *Cache {
	t.Helper()
	return New(src, path, 24*time.Hour, zerolog.New(io.Discard))
}

func TestRefreshAndRead(t *testing.T) {
	src := &fakeSource{pools: generation("JEWEL-USDC", 3)}
	c := newTestCache(t, src, "")

	require.False(t, c.IsReady())
	require.NoError(t, c.Refresh(context.Background()))
	require.True(t, c.IsReady())

	all, err := c.GetAll()
	require.NoError(t, err)
	assert.Len(t, all, 3)

	pool, err := c.Get("dfk", 1)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), pool.PID)
}

func TestFailedRefreshKeepsPreviousSnapshot(t *testing.T) {
	src := &fakeSource{pools: generation("JEWEL-USDC", 2)}
	c := newTestCache(t, src, "")
	require.NoError(t, c.Refresh(context.Background()))

	src.set(nil, errors.New("chain down"))
	require.Error(t, c.Refresh(context.Background()))

	all, err := c.GetAll()
	require.NoError(t, err)
	assert.Len(t, all, 2, "previous snapshot must stay in service")
}

// Concurrent readers during refreshes must never observe a snapshot mixing
// generations: every read returns pools carrying a single pair tag.
func TestSnapshotSwapAtomicity(t *testing.T) {
	src := &fakeSource{pools: generation("GEN-A", 4)}
	c := newTestCache(t, src, "")
	require.NoError(t, c.Refresh(context.Background()))

	stop := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				pools, err := c.GetAll()
				if err != nil {
					continue
				}
				first := pools[0].Pair
				for _, p := range pools {
					if p.Pair != first {
						t.Errorf("mixed snapshot observed: %s vs %s", first, p.Pair)
						return
					}
				}
			}
		}()
	}

	for gen := 0; gen < 50; gen++ {
		tag := "GEN-A"
		if gen%2 == 1 {
			tag = "GEN-B"
		}
		src.set(generation(tag, 4), nil)
		require.NoError(t, c.Refresh(context.Background()))
	}
	close(stop)
	wg.Wait()
}

func TestSearchAliases(t *testing.T) {
	src := &fakeSource{pools: []analytics.Pool{
		{PID: 0, Chain: "dfk", Pair: "WJEWEL-USDC", Priced: true},
		{PID: 1, Chain: "dfk", Pair: "CRYSTAL-AVAX", Priced: true},
	}}
	c := newTestCache(t, src, "")
	require.NoError(t, c.Refresh(context.Background()))

	hits, err := c.Search("jewel usdc")
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, uint64(0), hits[0].PID)

	hits, err = c.Search("CRYSTAL-WAVAX")
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, uint64(1), hits[0].PID)

	hits, err = c.Search("nonexistent")
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestPersistRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pool_cache.json")
	src := &fakeSource{pools: generation("JEWEL-USDC", 5)}

	c := newTestCache(t, src, path)
	require.NoError(t, c.Refresh(context.Background()))

	// A second cache warms straight from disk without building.
	coldSrc := &fakeSource{err: errors.New("must not be called synchronously")}
	c2 := newTestCache(t, coldSrc, path)
	snap, err := c2.loadFromDisk()
	require.NoError(t, err)
	assert.Len(t, snap.pools, 5)
}

func TestRejectsStaleDiskCache(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pool_cache.json")
	src := &fakeSource{pools: generation("JEWEL-USDC", 1)}

	c := New(src, path, 24*time.Hour, zerolog.New(io.Discard))
	require.NoError(t, c.Refresh(context.Background()))

	// Same file read with a zero max age must be rejected as stale.
	c2 := New(src, path, 0, zerolog.New(io.Discard))
	_, err := c2.loadFromDisk()
	require.ErrorIs(t, err, errNoUsableCache)
}

func TestWaitForReady(t *testing.T) {
	src := &fakeSource{pools: generation("JEWEL-USDC", 1)}
	c := newTestCache(t, src, "")

	var waits []int
	go func() {
		time.Sleep(1500 * time.Millisecond)
		_ = c.Refresh(context.Background())
	}()

	err := c.WaitForReady(context.Background(), func(sec int) { waits = append(waits, sec) })
	require.NoError(t, err)
	assert.NotEmpty(t, waits, "wait hook must report elapsed seconds")
}
