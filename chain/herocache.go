package chain

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/hedgeledger/engine/redisclient"
)

// CachedHeroAPI decorates the hero API with a short-TTL Redis cache. The
// hero roster changes slowly next to how often the optimizer and snapshot
// pipeline read it; the cache is best-effort and the API stays the source
// of truth.
type CachedHeroAPI struct {
	api    *HeroAPI
	redis  *redisclient.Client
	ttl    time.Duration
	logger zerolog.Logger
}

// NewCachedHeroAPI wraps a hero API client. A nil Redis client disables
// caching without changing behavior.
func NewCachedHeroAPI(api *HeroAPI, redis *redisclient.Client, ttl time.Duration, logger zerolog.Logger) *CachedHeroAPI {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CachedHeroAPI{
		api:    api,
		redis:  redis,
		ttl:    ttl,
		logger: logger.With().Str("component", "hero_cache").Logger(),
	}
}

// GetHeroByID passes through; single-hero reads are rare.
func (c *CachedHeroAPI) GetHeroByID(ctx context.Context, id int64) (*Hero, error) {
	return c.api.GetHeroByID(ctx, id)
}

// GetAllHeroesByOwner serves the owner's roster from Redis when fresh.
func (c *CachedHeroAPI) GetAllHeroesByOwner(ctx context.Context, owner string) ([]Hero, error) {
	key := "heroes:" + strings.ToLower(owner)

	var cached []Hero
	if c.redis.GetJSON(ctx, key, &cached) {
		return cached, nil
	}

	heroes, err := c.api.GetAllHeroesByOwner(ctx, owner)
	if err != nil {
		return nil, err
	}
	c.redis.SetJSON(ctx, key, heroes, c.ttl)
	return heroes, nil
}

// Invalidate drops one owner's cached roster.
func (c *CachedHeroAPI) Invalidate(ctx context.Context, owner string) {
	c.redis.Delete(ctx, "heroes:"+strings.ToLower(owner))
}
