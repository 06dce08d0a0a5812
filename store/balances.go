package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// JewelBalance is one player's internal prepaid ledger row.
type JewelBalance struct {
	PlayerID         int64
	Balance          decimal.Decimal
	LifetimeDeposits decimal.Decimal
	Tier             string
	LastDepositAt    *time.Time
	UpdatedAt        time.Time
}

const balanceColumns = `player_id, balance::text, lifetime_deposits::text, tier, last_deposit_at, updated_at`

func scanBalance(row pgx.Row) (*JewelBalance, error) {
	var (
		b                 JewelBalance
		balance, lifetime string
	)
	err := row.Scan(&b.PlayerID, &balance, &lifetime, &b.Tier, &b.LastDepositAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if b.Balance, err = decimal.NewFromString(balance); err != nil {
		return nil, fmt.Errorf("parse balance: %w", err)
	}
	if b.LifetimeDeposits, err = decimal.NewFromString(lifetime); err != nil {
		return nil, fmt.Errorf("parse lifetime deposits: %w", err)
	}
	return &b, nil
}

// GetBalance returns the ledger row for a player, or a zeroed row when the
// player has never deposited.
func (s *Store) GetBalance(ctx context.Context, playerID int64) (*JewelBalance, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+balanceColumns+` FROM jewel_balances WHERE player_id = $1`, playerID)
	b, err := scanBalance(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return &JewelBalance{PlayerID: playerID, Tier: "free", UpdatedAt: time.Now().UTC()}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get balance: %w", err)
	}
	return b, nil
}

// GetBalanceForUpdate locks and returns the ledger row inside the caller's
// transaction, creating a zeroed row first when absent so the lock always
// has something to hold.
func (s *Store) GetBalanceForUpdate(ctx context.Context, tx pgx.Tx, playerID int64) (*JewelBalance, error) {
	_, err := tx.Exec(ctx, `
		INSERT INTO jewel_balances (player_id) VALUES ($1)
		ON CONFLICT (player_id) DO NOTHING`, playerID)
	if err != nil {
		return nil, fmt.Errorf("ensure balance row: %w", err)
	}
	row := tx.QueryRow(ctx,
		`SELECT `+balanceColumns+` FROM jewel_balances WHERE player_id = $1 FOR UPDATE`, playerID)
	b, err := scanBalance(row)
	if err != nil {
		return nil, fmt.Errorf("lock balance row: %w", err)
	}
	return b, nil
}

// WriteBalance persists an updated ledger row inside the caller's transaction.
func (s *Store) WriteBalance(ctx context.Context, tx pgx.Tx, b *JewelBalance) error {
	_, err := tx.Exec(ctx, `
		UPDATE jewel_balances
		SET balance = $2::numeric, lifetime_deposits = $3::numeric,
		    tier = $4, last_deposit_at = $5, updated_at = now()
		WHERE player_id = $1`,
		b.PlayerID, b.Balance.String(), b.LifetimeDeposits.String(), b.Tier, b.LastDepositAt)
	if err != nil {
		return fmt.Errorf("write balance: %w", err)
	}
	return nil
}

// LockJobForDeposit locks a job row and returns its status inside the
// caller's transaction. Used by the deposit path so the ledger credit and
// the job transition commit or roll back together.
func (s *Store) LockJobForDeposit(ctx context.Context, tx pgx.Tx, jobID string) (string, error) {
	var status string
	err := tx.QueryRow(ctx,
		`SELECT status FROM payment_jobs WHERE id = $1 FOR UPDATE`, jobID).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrJobNotFound
	}
	if err != nil {
		return "", fmt.Errorf("lock job for deposit: %w", err)
	}
	return status, nil
}

// SettleJobDeposit flips a locked job to completed with the matched transfer
// details, inside the caller's transaction.
func (s *Store) SettleJobDeposit(ctx context.Context, tx pgx.Tx, jobID, txHash string, amount decimal.Decimal, paidAt time.Time) error {
	_, err := tx.Exec(ctx, `
		UPDATE payment_jobs
		SET status = $2, tx_hash = $3, paid_amount = $4::numeric, paid_at = $5
		WHERE id = $1`,
		jobID, JobCompleted, txHash, amount.String(), paidAt)
	if err != nil {
		return fmt.Errorf("settle job deposit: %w", err)
	}
	return nil
}
