package redisclient

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hedgeledger/engine/config"
	"github.com/redis/go-redis/v9"
)

// Client is a thin wrapper over go-redis used as a best-effort accelerator.
// Every method is safe on a nil receiver so callers can run without Redis.
type Client struct {
	c *redis.Client
}

// New creates a Redis client from the provided config. Returns an error
// if the Redis URL cannot be parsed. An empty URL yields a nil client,
// which disables caching without disabling the callers.
func New(cfg *config.Config) (*Client, error) {
	if cfg.RedisURL == "" {
		return nil, nil
	}
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	r := redis.NewClient(opt)
	return &Client{c: r}, nil
}

func (r *Client) Ping() error {
	if r == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return r.c.Ping(ctx).Err()
}

// GetJSON loads a cached JSON value into dst. Returns false on miss,
// parse failure, or when Redis is disabled.
func (r *Client) GetJSON(ctx context.Context, key string, dst any) bool {
	if r == nil {
		return false
	}
	raw, err := r.c.Get(ctx, key).Bytes()
	if err != nil {
		return false
	}
	return json.Unmarshal(raw, dst) == nil
}

// SetJSON stores a JSON-encoded value with a TTL. Errors are swallowed:
// the cache is an accelerator, never a dependency.
func (r *Client) SetJSON(ctx context.Context, key string, v any, ttl time.Duration) {
	if r == nil {
		return
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return
	}
	_ = r.c.Set(ctx, key, raw, ttl).Err()
}

// Delete removes a key.
func (r *Client) Delete(ctx context.Context, key string) {
	if r == nil {
		return
	}
	_ = r.c.Del(ctx, key).Err()
}
