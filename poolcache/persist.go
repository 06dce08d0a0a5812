package poolcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/hedgeledger/engine/analytics"
)

// redisMirrorKey holds the snapshot mirror for hosts without a writable
// disk path.
const redisMirrorKey = "poolcache:snapshot"

// cacheFileVersion guards the on-disk schema; a mismatch rejects the file.
const cacheFileVersion = 2

var errNoUsableCache = errors.New("no usable persisted cache")

// cacheFile is the on-disk shape of a persisted snapshot.
type cacheFile struct {
	Version       int              `json:"version"`
	LastUpdated   time.Time        `json:"lastUpdated"`
	Data          []analytics.Pool `json:"data"`
	TimingHistory []time.Duration  `json:"timingHistory"`
}

// persist writes the snapshot to disk atomically (write + rename) and
// mirrors it into Redis when one is attached.
func (c *Cache) persist(snap *snapshot) error {
	c.mu.Lock()
	timing := make([]time.Duration, len(c.timingHistory))
	copy(timing, c.timingHistory)
	c.mu.Unlock()

	file := cacheFile{
		Version:       cacheFileVersion,
		LastUpdated:   snap.lastUpdated,
		Data:          snap.pools,
		TimingHistory: timing,
	}
	c.redis.SetJSON(context.Background(), redisMirrorKey, file, c.maxAge)

	if c.path == "" {
		return nil
	}
	payload, err := json.Marshal(file)
	if err != nil {
		return fmt.Errorf("marshal cache file: %w", err)
	}

	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, payload, 0o644); err != nil {
		return fmt.Errorf("write cache file: %w", err)
	}
	if err := os.Rename(tmp, c.path); err != nil {
		return fmt.Errorf("rename cache file: %w", err)
	}
	return nil
}

// loadFromDisk reads and validates a persisted snapshot, falling back to
// the Redis mirror: wrong version, empty data or anything older than the
// max age is rejected.
func (c *Cache) loadFromDisk() (*snapshot, error) {
	var file cacheFile
	if err := c.readFile(&file); err != nil {
		if !c.redis.GetJSON(context.Background(), redisMirrorKey, &file) {
			return nil, err
		}
	}
	return c.validateFile(&file)
}

func (c *Cache) readFile(file *cacheFile) error {
	if c.path == "" {
		return errNoUsableCache
	}
	raw, err := os.ReadFile(c.path)
	if errors.Is(err, os.ErrNotExist) {
		return errNoUsableCache
	}
	if err != nil {
		return fmt.Errorf("read cache file: %w", err)
	}
	if err := json.Unmarshal(raw, file); err != nil {
		return fmt.Errorf("parse cache file: %w", err)
	}
	return nil
}

func (c *Cache) validateFile(file *cacheFile) (*snapshot, error) {
	if file.Version != cacheFileVersion {
		return nil, fmt.Errorf("cache file version %d, want %d: %w", file.Version, cacheFileVersion, errNoUsableCache)
	}
	if len(file.Data) == 0 {
		return nil, errNoUsableCache
	}
	if time.Since(file.LastUpdated) > c.maxAge {
		return nil, fmt.Errorf("cache file from %s too old: %w", file.LastUpdated, errNoUsableCache)
	}

	c.mu.Lock()
	c.timingHistory = file.TimingHistory
	if len(c.timingHistory) > timingHistoryLen {
		c.timingHistory = c.timingHistory[len(c.timingHistory)-timingHistoryLen:]
	}
	c.mu.Unlock()

	return newSnapshot(file.Data, file.LastUpdated), nil
}
