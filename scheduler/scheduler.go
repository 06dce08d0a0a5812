// Package scheduler drives the engine's timed work: the daily snapshot
// pass and the incremental ETL, on top of robfig/cron. The interval
// pollers (payments, pool refresh, wait queue) own their loops; only
// calendar-shaped work lives here.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/hedgeledger/engine/snapshot"
)

// Scheduler owns the cron runner.
type Scheduler struct {
	cron      *cron.Cron
	snapshots *snapshot.Service
	logger    zerolog.Logger

	mu        sync.Mutex
	watermark time.Time
}

// New creates the scheduler. cronExpr is the daily snapshot schedule
// (default "0 3 * * *"); etlInterval drives the incremental pass.
func New(snapshots *snapshot.Service, cronExpr string, etlInterval time.Duration, logger zerolog.Logger) (*Scheduler, error) {
	s := &Scheduler{
		cron:      cron.New(cron.WithLocation(time.UTC)),
		snapshots: snapshots,
		logger:    logger.With().Str("component", "scheduler").Logger(),
		watermark: time.Now().UTC(),
	}

	if _, err := s.cron.AddFunc(cronExpr, func() {
		s.logger.Info().Msg("daily snapshot pass starting")
		s.snapshots.RunDaily(context.Background())
	}); err != nil {
		return nil, fmt.Errorf("schedule daily snapshot (%q): %w", cronExpr, err)
	}

	etlSpec := fmt.Sprintf("@every %s", etlInterval)
	if _, err := s.cron.AddFunc(etlSpec, s.runETL); err != nil {
		return nil, fmt.Errorf("schedule etl (%q): %w", etlSpec, err)
	}

	return s, nil
}

// runETL snapshots players active since the last pass, then advances the
// watermark.
func (s *Scheduler) runETL() {
	s.mu.Lock()
	since := s.watermark
	s.mu.Unlock()

	start := time.Now().UTC()
	s.snapshots.RunIncremental(context.Background(), since)

	s.mu.Lock()
	s.watermark = start
	s.mu.Unlock()
}

// Start launches the cron runner.
func (s *Scheduler) Start() {
	s.logger.Info().Msg("scheduler started")
	s.cron.Start()
}

// Stop halts scheduling and waits for running jobs to complete.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info().Msg("scheduler stopped")
}
