package payments

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Poller drives the scanner at a fixed interval. A cycle still running when
// the next tick fires makes that tick a no-op, which is the backpressure
// policy: scan time over the interval sheds ticks, it never queues them.
type Poller struct {
	scanner  *Scanner
	interval time.Duration
	logger   zerolog.Logger

	busy   atomic.Bool
	cancel context.CancelFunc
	done   chan struct{}
}

// NewPoller creates the payment poll loop (minimum interval 5 seconds).
func NewPoller(scanner *Scanner, interval time.Duration, logger zerolog.Logger) *Poller {
	if interval < 5*time.Second {
		interval = 5 * time.Second
	}
	return &Poller{
		scanner:  scanner,
		interval: interval,
		logger:   logger.With().Str("component", "payment_poller").Logger(),
	}
}

// Start begins the poll loop. Call Stop() to shut it down gracefully.
func (p *Poller) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.done = make(chan struct{})

	p.logger.Info().Dur("interval", p.interval).Msg("starting payment poller")
	go p.loop(ctx)
}

// Stop shuts the loop down and waits for the in-flight cycle to finish.
func (p *Poller) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	<-p.done
	p.logger.Info().Msg("payment poller stopped")
}

func (p *Poller) loop(ctx context.Context) {
	defer close(p.done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !p.busy.CompareAndSwap(false, true) {
				p.logger.Debug().Msg("previous scan cycle still running, skipping tick")
				continue
			}
			p.scanner.Poll(ctx)
			p.busy.Store(false)
		}
	}
}
