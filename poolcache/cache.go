// Package poolcache holds the engine-wide garden pool snapshot: built by the
// analytics builder, swapped atomically, persisted to disk and refreshed in
// the background. Readers always see a whole snapshot, never a mix of old
// and new entries.
package poolcache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/hedgeledger/engine/analytics"
	"github.com/hedgeledger/engine/redisclient"
)

// ErrNotReady is returned by readers that cannot wait for a warm cache.
var ErrNotReady = errors.New("pool cache not ready")

const (
	timingHistoryLen = 10
	waitCeiling      = 10 * time.Minute
	waitTick         = time.Second
)

// snapshot is one immutable cache generation.
type snapshot struct {
	pools       []analytics.Pool
	byKey       map[string]*analytics.Pool
	lastUpdated time.Time
}

func poolKey(chain string, pid uint64) string {
	return fmt.Sprintf("%s/%d", chain, pid)
}

func newSnapshot(pools []analytics.Pool, at time.Time) *snapshot {
	byKey := make(map[string]*analytics.Pool, len(pools))
	for i := range pools {
		byKey[poolKey(pools[i].Chain, pools[i].PID)] = &pools[i]
	}
	return &snapshot{pools: pools, byKey: byKey, lastUpdated: at}
}

// PoolSource builds a full pool set. *analytics.Builder satisfies it; tests
// substitute a fake.
type PoolSource interface {
	BuildAll(ctx context.Context) ([]analytics.Pool, error)
}

// Cache is the pool analytics cache.
type Cache struct {
	builder PoolSource
	path    string
	maxAge  time.Duration
	redis   *redisclient.Client
	logger  zerolog.Logger

	current    atomic.Pointer[snapshot]
	refreshing atomic.Bool

	mu            sync.Mutex
	timingHistory []time.Duration
}

// New creates the cache. Call Bootstrap before serving readers.
func New(builder PoolSource, path string, maxAge time.Duration, logger zerolog.Logger) *Cache {
	return &Cache{
		builder: builder,
		path:    path,
		maxAge:  maxAge,
		logger:  logger.With().Str("component", "pool_cache").Logger(),
	}
}

// WithRedis attaches the optional snapshot mirror. Call before Bootstrap.
func (c *Cache) WithRedis(rc *redisclient.Client) *Cache {
	c.redis = rc
	return c
}

// Bootstrap prepares the cache for service: a fresh-enough disk copy makes
// the cache ready immediately with an async refresh behind it; otherwise one
// synchronous refresh runs before any user-facing operation may proceed.
func (c *Cache) Bootstrap(ctx context.Context) error {
	if snap, err := c.loadFromDisk(); err == nil {
		c.current.Store(snap)
		c.logger.Info().
			Time("last_updated", snap.lastUpdated).
			Int("pools", len(snap.pools)).
			Msg("pool cache warmed from disk")
		go c.Refresh(context.Background())
		return nil
	} else if !errors.Is(err, errNoUsableCache) {
		c.logger.Warn().Err(err).Msg("persisted pool cache unusable")
	}

	c.logger.Info().Msg("cold start, building pool cache synchronously")
	return c.Refresh(ctx)
}

// Refresh rebuilds the cache. A refresh already in flight makes this call
// return immediately; on failure the previous snapshot stays in service.
func (c *Cache) Refresh(ctx context.Context) error {
	if !c.refreshing.CompareAndSwap(false, true) {
		c.logger.Debug().Msg("refresh already in progress, skipping")
		return nil
	}
	defer c.refreshing.Store(false)

	start := time.Now()
	pools, err := c.builder.BuildAll(ctx)
	if err != nil {
		c.logger.Error().Err(err).Msg("pool refresh failed, keeping previous snapshot")
		return err
	}

	snap := newSnapshot(pools, time.Now().UTC())
	c.current.Store(snap)

	elapsed := time.Since(start)
	c.recordTiming(elapsed)
	c.logger.Info().
		Int("pools", len(pools)).
		Dur("elapsed", elapsed).
		Msg("pool cache refreshed")

	if err := c.persist(snap); err != nil {
		c.logger.Warn().Err(err).Msg("pool cache persist failed")
	}
	return nil
}

// recordTiming appends to the bounded timing history and warns when this
// run exceeded 1.5× the rolling average.
func (c *Cache) recordTiming(elapsed time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if n := len(c.timingHistory); n > 0 {
		var sum time.Duration
		for _, d := range c.timingHistory {
			sum += d
		}
		avg := sum / time.Duration(n)
		if elapsed > avg*3/2 {
			c.logger.Warn().
				Dur("elapsed", elapsed).
				Dur("rolling_avg", avg).
				Msg("pool refresh ran slow")
		}
	}

	c.timingHistory = append(c.timingHistory, elapsed)
	if len(c.timingHistory) > timingHistoryLen {
		c.timingHistory = c.timingHistory[len(c.timingHistory)-timingHistoryLen:]
	}
}

// TimingHistory returns a copy of the recent refresh durations.
func (c *Cache) TimingHistory() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]time.Duration, len(c.timingHistory))
	copy(out, c.timingHistory)
	return out
}

// IsReady reports whether a non-empty snapshot is in service.
func (c *Cache) IsReady() bool {
	snap := c.current.Load()
	return snap != nil && len(snap.pools) > 0
}

// LastUpdated returns the current snapshot's build time.
func (c *Cache) LastUpdated() time.Time {
	if snap := c.current.Load(); snap != nil {
		return snap.lastUpdated
	}
	return time.Time{}
}

// GetAll returns the current snapshot's pools. The slice is shared and must
// be treated as immutable.
func (c *Cache) GetAll() ([]analytics.Pool, error) {
	snap := c.current.Load()
	if snap == nil || len(snap.pools) == 0 {
		return nil, ErrNotReady
	}
	return snap.pools, nil
}

// Get returns one pool by chain and pid.
func (c *Cache) Get(chainName string, pid uint64) (*analytics.Pool, error) {
	snap := c.current.Load()
	if snap == nil {
		return nil, ErrNotReady
	}
	pool, ok := snap.byKey[poolKey(chainName, pid)]
	if !ok {
		return nil, fmt.Errorf("pool %s/%d not in cache", chainName, pid)
	}
	return pool, nil
}

// WaitForReady cooperatively waits for the cache to warm, yielding every
// second and reporting elapsed seconds through onWait. It gives up at the
// safety ceiling.
func (c *Cache) WaitForReady(ctx context.Context, onWait func(elapsedSec int)) error {
	if c.IsReady() {
		return nil
	}
	deadline := time.Now().Add(waitCeiling)
	ticker := time.NewTicker(waitTick)
	defer ticker.Stop()

	elapsed := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if c.IsReady() {
				return nil
			}
			elapsed++
			if onWait != nil {
				onWait(elapsed)
			}
			if time.Now().After(deadline) {
				return ErrNotReady
			}
		}
	}
}
