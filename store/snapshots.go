package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// WalletSnapshot is one dated aggregate of a wallet's token balances. One
// row per wallet per UTC-midnight date; historical rows are never mutated.
type WalletSnapshot struct {
	ID       int64
	PlayerID int64
	Wallet   string
	AsOfDate time.Time
	Jewel    decimal.Decimal
	Crystal  decimal.Decimal
	CJewel   decimal.Decimal
}

// UpsertWalletSnapshot inserts one (wallet, date) row. A row that already
// exists for the date is left untouched, making the daily pipeline
// idempotent. Returns true when a new row was written.
func (s *Store) UpsertWalletSnapshot(ctx context.Context, snap *WalletSnapshot) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO wallet_snapshots (player_id, wallet, as_of_date, jewel, crystal, cjewel)
		VALUES ($1, $2, $3, $4::numeric, $5::numeric, $6::numeric)
		ON CONFLICT (wallet, as_of_date) DO NOTHING`,
		snap.PlayerID, strings.ToLower(snap.Wallet), snap.AsOfDate,
		snap.Jewel.String(), snap.Crystal.String(), snap.CJewel.String())
	if err != nil {
		return false, fmt.Errorf("upsert wallet snapshot: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// HasSnapshot reports whether a (wallet, date) row already exists, letting
// the daily pass skip wallets processed earlier the same day.
func (s *Store) HasSnapshot(ctx context.Context, wallet string, asOfDate time.Time) (bool, error) {
	var one int
	err := s.pool.QueryRow(ctx, `
		SELECT 1 FROM wallet_snapshots WHERE wallet = $1 AND as_of_date = $2`,
		strings.ToLower(wallet), asOfDate).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check snapshot: %w", err)
	}
	return true, nil
}

// ListSnapshots returns a wallet's history, newest first.
func (s *Store) ListSnapshots(ctx context.Context, wallet string, limit int) ([]*WalletSnapshot, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, player_id, wallet, as_of_date, jewel::text, crystal::text, cjewel::text
		FROM wallet_snapshots WHERE wallet = $1
		ORDER BY as_of_date DESC LIMIT $2`,
		strings.ToLower(wallet), limit)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	var out []*WalletSnapshot
	for rows.Next() {
		var (
			snap                   WalletSnapshot
			jewel, crystal, cjewel string
		)
		if err := rows.Scan(&snap.ID, &snap.PlayerID, &snap.Wallet, &snap.AsOfDate,
			&jewel, &crystal, &cjewel); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		if snap.Jewel, err = decimal.NewFromString(jewel); err != nil {
			return nil, fmt.Errorf("parse jewel: %w", err)
		}
		if snap.Crystal, err = decimal.NewFromString(crystal); err != nil {
			return nil, fmt.Errorf("parse crystal: %w", err)
		}
		if snap.CJewel, err = decimal.NewFromString(cjewel); err != nil {
			return nil, fmt.Errorf("parse cjewel: %w", err)
		}
		out = append(out, &snap)
	}
	return out, rows.Err()
}
