// Package intake turns a premium-work request into an open invoice: price
// the query, snapshot the requester's LP positions, open the payment job and
// send the payment instructions.
package intake

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/hedgeledger/engine/chat"
	"github.com/hedgeledger/engine/ledger"
	"github.com/hedgeledger/engine/payments"
	"github.com/hedgeledger/engine/positions"
	"github.com/hedgeledger/engine/pricing"
	"github.com/hedgeledger/engine/store"
)

// QueryGardenOptimization is the premium query this pipeline sells.
const QueryGardenOptimization = "garden_optimization"

// Store is the storage surface intake needs. *store.Store satisfies it.
type Store interface {
	GetBalance(ctx context.Context, playerID int64) (*store.JewelBalance, error)
	CreateJob(ctx context.Context, j *store.PaymentJob) error
}

// PositionSource reads a wallet's LP positions. *positions.Service
// satisfies it.
type PositionSource interface {
	ForWallet(ctx context.Context, wallet string) ([]positions.Position, error)
}

// TipSource returns the current tip of the payment chain.
type TipSource func(ctx context.Context) (uint64, error)

// Service creates payment requests.
type Service struct {
	st        Store
	registry  *payments.Registry
	pricer    *pricing.Engine
	positions PositionSource
	tip       TipSource
	sender    chat.Sender

	chainName   string
	houseWallet string
	jobTTL      time.Duration
	logger      zerolog.Logger
}

// NewService wires the intake service.
func NewService(st Store, registry *payments.Registry, pricer *pricing.Engine,
	pos PositionSource, tip TipSource, sender chat.Sender,
	chainName, houseWallet string, jobTTL time.Duration, logger zerolog.Logger) *Service {
	return &Service{
		st:          st,
		registry:    registry,
		pricer:      pricer,
		positions:   pos,
		tip:         tip,
		sender:      sender,
		chainName:   chainName,
		houseWallet: houseWallet,
		jobTTL:      jobTTL,
		logger:      logger.With().Str("component", "intake").Logger(),
	}
}

// CreatePaymentRequest opens an invoice for the player's wallet and sends
// the payment instructions exactly once.
func (s *Service) CreatePaymentRequest(ctx context.Context, player *store.Player) (*store.PaymentJob, error) {
	if player.PrimaryWallet == "" {
		return nil, fmt.Errorf("player %d has no linked wallet", player.ID)
	}

	balance, err := s.st.GetBalance(ctx, player.ID)
	if err != nil {
		return nil, fmt.Errorf("load balance: %w", err)
	}
	quote, err := s.pricer.Calculate(ctx, QueryGardenOptimization, pricing.PlayerContext{
		LifetimeDeposits: balance.LifetimeDeposits,
		IsWhale:          balance.Tier == ledger.TierWhale,
	})
	if err != nil {
		return nil, fmt.Errorf("price query: %w", err)
	}

	lpPositions, err := s.positions.ForWallet(ctx, player.PrimaryWallet)
	if err != nil {
		return nil, fmt.Errorf("snapshot positions: %w", err)
	}
	lpSnapshot, err := json.Marshal(lpPositions)
	if err != nil {
		return nil, fmt.Errorf("marshal lp snapshot: %w", err)
	}

	tip, err := s.tip(ctx)
	if err != nil {
		return nil, fmt.Errorf("chain tip: %w", err)
	}

	now := time.Now().UTC()
	job := &store.PaymentJob{
		ID:             uuid.NewString(),
		PlayerID:       player.ID,
		Status:         store.JobPending,
		Chain:          s.chainName,
		FromWallet:     player.PrimaryWallet,
		ExpectedAmount: quote.Amount,
		RequestedAt:    now,
		ExpiresAt:      now.Add(s.jobTTL),
		StartBlock:     tip,
		LPSnapshot:     lpSnapshot,
	}
	if err := s.st.CreateJob(ctx, job); err != nil {
		return nil, err
	}
	s.registry.Add(job)

	if err := s.sender.SendDirect(ctx, player.ChatID, Instructions(job, s.houseWallet)); err != nil {
		// The invoice stands; the scanner will still match the payment.
		s.logger.Warn().Err(err).Str("job", job.ID).Msg("payment instructions dm failed")
	}

	s.logger.Info().
		Str("job", job.ID).
		Int64("player", player.ID).
		Str("expected", quote.Amount.String()).
		Msg("payment request created")
	return job, nil
}

// Instructions renders the payment instructions message.
func Instructions(job *store.PaymentJob, houseWallet string) string {
	return fmt.Sprintf(
		"Your garden optimization is ready to run.\n\n"+
			"Send exactly **%s JEWEL** from your linked wallet\n`%s`\nto\n`%s`\n\n"+
			"This request expires at %s. Reply `sent` once the transfer is on its way, "+
			"or paste the transaction hash to fast-track verification.",
		formatAmount(job.ExpectedAmount), job.FromWallet, houseWallet,
		job.ExpiresAt.Format(time.RFC3339))
}

func formatAmount(d decimal.Decimal) string {
	return d.StringFixed(2)
}
