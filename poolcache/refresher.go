package poolcache

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Refresher runs the background pool cache refresh loop.
type Refresher struct {
	cache    *Cache
	interval time.Duration
	timeout  time.Duration
	logger   zerolog.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

// NewRefresher creates the background refresher (minimum interval 1 minute).
func NewRefresher(cache *Cache, interval, timeout time.Duration, logger zerolog.Logger) *Refresher {
	if interval < time.Minute {
		interval = time.Minute
	}
	return &Refresher{
		cache:    cache,
		interval: interval,
		timeout:  timeout,
		logger:   logger.With().Str("component", "pool_refresher").Logger(),
	}
}

// Start begins the refresh loop. Call Stop() to shut it down gracefully.
func (r *Refresher) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.done = make(chan struct{})

	r.logger.Info().Dur("interval", r.interval).Msg("starting pool cache refresher")
	go r.loop(ctx)
}

// Stop shuts the loop down and waits for it to finish.
func (r *Refresher) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	<-r.done
	r.logger.Info().Msg("pool cache refresher stopped")
}

func (r *Refresher) loop(ctx context.Context) {
	defer close(r.done)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			refreshCtx, cancel := context.WithTimeout(ctx, r.timeout)
			// A failed refresh keeps the previous snapshot and never
			// halts the loop.
			_ = r.cache.Refresh(refreshCtx)
			cancel()
		}
	}
}
