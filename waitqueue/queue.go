// Package waitqueue holds premium-work requests that arrive while the pool
// cache is cold. A request is never dropped and never blocks its handler:
// it parks here until the cache warms, then flows through the normal intake
// path.
package waitqueue

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/hedgeledger/engine/chat"
)

// Entry is one parked request.
type Entry struct {
	ChatUserID  string
	DisplayName string
	Wallet      string
	RequestedAt time.Time
}

// ReadyChecker reports cache warmth. *poolcache.Cache satisfies it.
type ReadyChecker interface {
	IsReady() bool
}

// ProcessFunc flows one parked entry through intake once the cache is warm.
type ProcessFunc func(ctx context.Context, e Entry) error

const recoverableErrorMsg = "Pool data took too long to warm up and your request hit an error. " +
	"Nothing was charged — please try again in a minute."

// Queue is the cache-ready wait queue.
type Queue struct {
	cache   ReadyChecker
	process ProcessFunc
	sender  chat.Sender
	logger  zerolog.Logger

	interval time.Duration

	mu      sync.Mutex
	entries map[string]Entry

	// Drops a poll tick when the previous drain is still running.
	processing atomic.Bool

	cancel context.CancelFunc
	done   chan struct{}
}

// New creates the queue (default poll interval 10s).
func New(cache ReadyChecker, process ProcessFunc, sender chat.Sender, interval time.Duration, logger zerolog.Logger) *Queue {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &Queue{
		cache:    cache,
		process:  process,
		sender:   sender,
		interval: interval,
		entries:  make(map[string]Entry),
		logger:   logger.With().Str("component", "wait_queue").Logger(),
	}
}

// Add parks a request. A user already parked keeps the earlier entry: they
// have not received instructions yet, and retries are user-initiated only
// after a terminal answer.
func (q *Queue) Add(e Entry) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, exists := q.entries[e.ChatUserID]; exists {
		return
	}
	q.entries[e.ChatUserID] = e
	q.logger.Info().Str("user", e.ChatUserID).Msg("request parked until pool cache is ready")
}

// Len returns the number of parked requests.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// Start begins the readiness poller. Call Stop() to shut it down.
func (q *Queue) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	q.cancel = cancel
	q.done = make(chan struct{})

	q.logger.Info().Dur("interval", q.interval).Msg("starting cache-ready queue")
	go q.loop(ctx)
}

// Stop shuts the poller down and waits for it to finish.
func (q *Queue) Stop() {
	if q.cancel != nil {
		q.cancel()
	}
	<-q.done
	q.logger.Info().Msg("cache-ready queue stopped")
}

func (q *Queue) loop(ctx context.Context) {
	defer close(q.done)

	ticker := time.NewTicker(q.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			q.Drain(ctx)
		}
	}
}

// Drain processes every parked entry once the cache is ready. An entry
// leaves the map exactly when its user has received either the payment
// instructions or a terminal error message.
func (q *Queue) Drain(ctx context.Context) {
	if !q.cache.IsReady() {
		return
	}
	if !q.processing.CompareAndSwap(false, true) {
		return
	}
	defer q.processing.Store(false)

	q.mu.Lock()
	batch := make([]Entry, 0, len(q.entries))
	for _, e := range q.entries {
		batch = append(batch, e)
	}
	q.mu.Unlock()

	for _, e := range batch {
		err := q.process(ctx, e)
		if err != nil {
			q.logger.Warn().Err(err).Str("user", e.ChatUserID).Msg("parked request failed")
			if sendErr := q.sender.SendDirect(ctx, e.ChatUserID, recoverableErrorMsg); sendErr != nil {
				q.logger.Warn().Err(sendErr).Str("user", e.ChatUserID).Msg("failure dm failed")
			}
		}
		// Success or failure, the user leaves the map; retries are theirs.
		q.mu.Lock()
		delete(q.entries, e.ChatUserID)
		q.mu.Unlock()
	}
}
