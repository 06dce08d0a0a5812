package optimizer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/hedgeledger/engine/analytics"
	"github.com/hedgeledger/engine/chain"
	"github.com/hedgeledger/engine/chat"
	"github.com/hedgeledger/engine/positions"
	"github.com/hedgeledger/engine/store"
)

// Store is the storage surface the processor drives. *store.Store
// satisfies it.
type Store interface {
	ListJobsByStatus(ctx context.Context, status string) ([]*store.PaymentJob, error)
	ClaimForProcessing(ctx context.Context, jobID string) error
	CompleteJob(ctx context.Context, jobID string, report json.RawMessage) error
	FailJob(ctx context.Context, jobID, message string) error
	GetPlayerByID(ctx context.Context, id int64) (*store.Player, error)
}

// HeroSource loads a wallet's heroes. *chain.HeroAPI satisfies it.
type HeroSource interface {
	GetAllHeroesByOwner(ctx context.Context, owner string) ([]chain.Hero, error)
}

// PoolSource is the pool cache surface. *poolcache.Cache satisfies it.
type PoolSource interface {
	WaitForReady(ctx context.Context, onWait func(elapsedSec int)) error
	GetAll() ([]analytics.Pool, error)
}

// Ledger credits the internal balance after delivery. *ledger.Service
// satisfies it.
type Ledger interface {
	Credit(ctx context.Context, playerID int64, amount decimal.Decimal) (*store.JewelBalance, error)
}

const failureMsg = "Your optimization hit an internal error while being generated. " +
	"Your payment is recorded on the job — reach out and we'll make it right."

// Processor drains payment_verified jobs into delivered reports. The
// pipeline per job is linear: claim → analyze → optimize → format → send →
// complete; any stage failure marks the job failed and the drain continues.
type Processor struct {
	st        Store
	heroes    HeroSource
	pools     PoolSource
	ledger    Ledger
	sender    chat.Sender
	maxHeroes int
	delay     time.Duration
	logger    zerolog.Logger

	interval time.Duration
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewProcessor wires the optimization processor.
func NewProcessor(st Store, heroes HeroSource, pools PoolSource, ldg Ledger, sender chat.Sender,
	maxHeroes int, interval, delay time.Duration, logger zerolog.Logger) *Processor {
	if maxHeroes <= 0 {
		maxHeroes = DefaultMaxHeroes
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Processor{
		st:        st,
		heroes:    heroes,
		pools:     pools,
		ledger:    ldg,
		sender:    sender,
		maxHeroes: maxHeroes,
		delay:     delay,
		interval:  interval,
		logger:    logger.With().Str("component", "optimizer").Logger(),
	}
}

// Start begins the drain loop. Call Stop() to shut it down.
func (p *Processor) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.done = make(chan struct{})

	p.logger.Info().Dur("interval", p.interval).Msg("starting optimization processor")
	go p.loop(ctx)
}

// Stop shuts the loop down and waits for the in-flight job to finish.
func (p *Processor) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	<-p.done
	p.logger.Info().Msg("optimization processor stopped")
}

func (p *Processor) loop(ctx context.Context) {
	defer close(p.done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Drain(ctx)
		}
	}
}

// Drain processes every currently verified job, one at a time.
func (p *Processor) Drain(ctx context.Context) {
	jobs, err := p.st.ListJobsByStatus(ctx, store.JobPaymentVerified)
	if err != nil {
		p.logger.Warn().Err(err).Msg("listing verified jobs failed")
		return
	}
	for _, job := range jobs {
		if ctx.Err() != nil {
			return
		}
		p.processJob(ctx, job)
	}
}

// processJob runs the linear pipeline for one job.
func (p *Processor) processJob(ctx context.Context, job *store.PaymentJob) {
	// Claim first: losing the race means another worker owns the job.
	if err := p.st.ClaimForProcessing(ctx, job.ID); err != nil {
		if !errors.Is(err, store.ErrJobClaimed) {
			p.logger.Warn().Err(err).Str("job", job.ID).Msg("claim failed")
		}
		return
	}

	player, err := p.st.GetPlayerByID(ctx, job.PlayerID)
	if err != nil {
		p.fail(ctx, job, "", fmt.Errorf("load player: %w", err))
		return
	}

	report, err := p.buildReport(ctx, job)
	if err != nil {
		p.fail(ctx, job, player.ChatID, err)
		return
	}

	messages := RenderMessages(*report)
	for i, msg := range messages {
		if i > 0 && p.delay > 0 {
			select {
			case <-ctx.Done():
				p.fail(ctx, job, "", ctx.Err())
				return
			case <-time.After(p.delay):
			}
		}
		if err := p.sender.SendDirect(ctx, player.ChatID, msg); err != nil {
			p.fail(ctx, job, "", fmt.Errorf("send report: %w", err))
			return
		}
	}

	payload, err := json.Marshal(report)
	if err != nil {
		p.fail(ctx, job, player.ChatID, fmt.Errorf("marshal report: %w", err))
		return
	}
	if err := p.st.CompleteJob(ctx, job.ID, payload); err != nil {
		p.logger.Error().Err(err).Str("job", job.ID).Msg("complete failed after delivery")
		return
	}

	if job.PaidAmount.IsPositive() {
		if _, err := p.ledger.Credit(ctx, job.PlayerID, job.PaidAmount); err != nil {
			p.logger.Error().Err(err).Str("job", job.ID).Msg("ledger credit failed")
		}
	}

	p.logger.Info().
		Str("job", job.ID).
		Int64("player", job.PlayerID).
		Int("assignments", len(report.Plan.Assignments)).
		Msg("optimization delivered")
}

// buildReport runs analyze → optimize for one job.
func (p *Processor) buildReport(ctx context.Context, job *store.PaymentJob) (*Report, error) {
	heroes, err := p.heroes.GetAllHeroesByOwner(ctx, job.FromWallet)
	if err != nil {
		return nil, fmt.Errorf("load heroes: %w", err)
	}

	if err := p.pools.WaitForReady(ctx, func(sec int) {
		if sec%30 == 0 {
			p.logger.Info().Str("job", job.ID).Int("waited_sec", sec).Msg("waiting for pool cache")
		}
	}); err != nil {
		return nil, fmt.Errorf("pool cache: %w", err)
	}
	pools, err := p.pools.GetAll()
	if err != nil {
		return nil, fmt.Errorf("pool cache read: %w", err)
	}

	var lpPositions []positions.Position
	if len(job.LPSnapshot) > 0 {
		if err := json.Unmarshal(job.LPSnapshot, &lpPositions); err != nil {
			return nil, fmt.Errorf("parse lp snapshot: %w", err)
		}
	}

	profiles := ProfileHeroes(heroes)
	current := AnalyzeCurrent(profiles, lpPositions, pools)
	plan := BuildPlan(profiles, pools, p.maxHeroes)

	return &Report{
		Current:     current,
		Plan:        plan,
		Improvement: MeasureImprovement(current, plan),
	}, nil
}

// fail marks the job failed, tells the user something went wrong, and lets
// the drain continue. There is no automatic retry.
func (p *Processor) fail(ctx context.Context, job *store.PaymentJob, chatID string, cause error) {
	p.logger.Error().Err(cause).Str("job", job.ID).Msg("optimization failed")
	if err := p.st.FailJob(ctx, job.ID, cause.Error()); err != nil {
		p.logger.Error().Err(err).Str("job", job.ID).Msg("marking job failed also failed")
	}
	if chatID != "" {
		if err := p.sender.SendDirect(ctx, chatID, failureMsg); err != nil {
			p.logger.Warn().Err(err).Str("job", job.ID).Msg("failure dm failed")
		}
	}
}
