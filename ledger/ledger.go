// Package ledger is the internal prepaid balance: atomic credit and debit
// with lifetime-deposit tracking and tier recomputation, all inside single
// database transactions.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/hedgeledger/engine/store"
)

// Tiers derived from lifetime deposits.
const (
	TierFree   = "free"
	TierBronze = "bronze"
	TierSilver = "silver"
	TierGold   = "gold"
	TierWhale  = "whale"
)

var (
	bronzeFloor = decimal.NewFromInt(100)
	silverFloor = decimal.NewFromInt(500)
	goldFloor   = decimal.NewFromInt(2000)
	whaleFloor  = decimal.NewFromInt(10000)
)

// ErrInsufficientBalance rejects a debit larger than the current balance.
// Nothing is deducted.
var ErrInsufficientBalance = errors.New("insufficient balance")

// TierForLifetime maps lifetime deposits to a tier.
func TierForLifetime(lifetime decimal.Decimal) string {
	switch {
	case lifetime.GreaterThanOrEqual(whaleFloor):
		return TierWhale
	case lifetime.GreaterThanOrEqual(goldFloor):
		return TierGold
	case lifetime.GreaterThanOrEqual(silverFloor):
		return TierSilver
	case lifetime.GreaterThanOrEqual(bronzeFloor):
		return TierBronze
	default:
		return TierFree
	}
}

// Store is the transactional surface the ledger drives. *store.Store
// satisfies it.
type Store interface {
	WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error
	GetBalanceForUpdate(ctx context.Context, tx pgx.Tx, playerID int64) (*store.JewelBalance, error)
	WriteBalance(ctx context.Context, tx pgx.Tx, b *store.JewelBalance) error
	LockJobForDeposit(ctx context.Context, tx pgx.Tx, jobID string) (string, error)
	SettleJobDeposit(ctx context.Context, tx pgx.Tx, jobID, txHash string, amount decimal.Decimal, paidAt time.Time) error
}

// Service is the ledger service.
type Service struct {
	st     Store
	logger zerolog.Logger
}

// NewService creates the ledger.
func NewService(st Store, logger zerolog.Logger) *Service {
	return &Service{
		st:     st,
		logger: logger.With().Str("component", "ledger").Logger(),
	}
}

// Credit adds to a player's balance and lifetime deposits, recomputing the
// tier, all under the row lock.
func (s *Service) Credit(ctx context.Context, playerID int64, amount decimal.Decimal) (*store.JewelBalance, error) {
	if !amount.IsPositive() {
		return nil, fmt.Errorf("credit amount must be positive, got %s", amount)
	}
	var out *store.JewelBalance
	err := s.st.WithTx(ctx, func(tx pgx.Tx) error {
		b, err := s.st.GetBalanceForUpdate(ctx, tx, playerID)
		if err != nil {
			return err
		}
		if err := s.applyCredit(ctx, tx, b, amount); err != nil {
			return err
		}
		out = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info().
		Int64("player", playerID).
		Str("amount", amount.String()).
		Str("tier", out.Tier).
		Msg("ledger credit")
	return out, nil
}

// applyCredit mutates a locked balance row and writes it back, inside the
// caller's transaction.
func (s *Service) applyCredit(ctx context.Context, tx pgx.Tx, b *store.JewelBalance, amount decimal.Decimal) error {
	now := time.Now().UTC()
	b.Balance = b.Balance.Add(amount)
	b.LifetimeDeposits = b.LifetimeDeposits.Add(amount)
	b.Tier = TierForLifetime(b.LifetimeDeposits)
	b.LastDepositAt = &now
	return s.st.WriteBalance(ctx, tx, b)
}

// Debit removes from a player's balance. A balance smaller than the amount
// fails with ErrInsufficientBalance and deducts nothing.
func (s *Service) Debit(ctx context.Context, playerID int64, amount decimal.Decimal, reason string) (*store.JewelBalance, error) {
	if !amount.IsPositive() {
		return nil, fmt.Errorf("debit amount must be positive, got %s", amount)
	}
	var out *store.JewelBalance
	err := s.st.WithTx(ctx, func(tx pgx.Tx) error {
		b, err := s.st.GetBalanceForUpdate(ctx, tx, playerID)
		if err != nil {
			return err
		}
		if b.Balance.LessThan(amount) {
			return fmt.Errorf("%w: balance %s, needed %s", ErrInsufficientBalance, b.Balance, amount)
		}
		b.Balance = b.Balance.Sub(amount)
		if err := s.st.WriteBalance(ctx, tx, b); err != nil {
			return err
		}
		out = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info().
		Int64("player", playerID).
		Str("amount", amount.String()).
		Str("reason", reason).
		Msg("ledger debit")
	return out, nil
}

// RecordDeposit settles a deposit-type job: the ledger credit and the
// guarded pending → completed job transition commit together. A job that
// already left pending is treated as processed earlier and returns success
// without crediting again.
func (s *Service) RecordDeposit(ctx context.Context, job *store.PaymentJob, txHash string, amount decimal.Decimal) error {
	return s.st.WithTx(ctx, func(tx pgx.Tx) error {
		status, err := s.st.LockJobForDeposit(ctx, tx, job.ID)
		if err != nil {
			return err
		}
		if status != store.JobPending {
			s.logger.Debug().Str("job", job.ID).Str("status", status).Msg("deposit already processed")
			return nil
		}

		b, err := s.st.GetBalanceForUpdate(ctx, tx, job.PlayerID)
		if err != nil {
			return err
		}
		if err := s.applyCredit(ctx, tx, b, amount); err != nil {
			return err
		}
		return s.st.SettleJobDeposit(ctx, tx, job.ID, txHash, amount, time.Now().UTC())
	})
}
