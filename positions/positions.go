// Package positions derives a wallet's staked LP positions by joining the
// staking registry's per-user stakes with the pool cache's valuations.
package positions

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/hedgeledger/engine/analytics"
	"github.com/hedgeledger/engine/chain"
	"github.com/hedgeledger/engine/poolcache"
)

// Position is one staked LP position valued in USD.
type Position struct {
	Chain    string          `json:"chain"`
	PID      uint64          `json:"pid"`
	Pair     string          `json:"pair"`
	LPAmount decimal.Decimal `json:"lpAmount"`
	ValueUSD decimal.Decimal `json:"valueUsd"`
}

// Service reads positions for wallets.
type Service struct {
	chains map[string]*chain.Client
	cache  *poolcache.Cache
	logger zerolog.Logger
}

// NewService wires the positions reader.
func NewService(chains map[string]*chain.Client, cache *poolcache.Cache, logger zerolog.Logger) *Service {
	return &Service{
		chains: chains,
		cache:  cache,
		logger: logger.With().Str("component", "positions").Logger(),
	}
}

// ForWallet returns every pool the wallet has LP staked in, valued against
// the current pool snapshot.
func (s *Service) ForWallet(ctx context.Context, wallet string) ([]Position, error) {
	pools, err := s.cache.GetAll()
	if err != nil {
		return nil, err
	}
	addr := common.HexToAddress(wallet)

	var out []Position
	for i := range pools {
		pool := &pools[i]
		client, ok := s.chains[pool.Chain]
		if !ok {
			continue
		}
		info, err := client.GetUserInfo(ctx, pool.PID, addr)
		if err != nil {
			return nil, fmt.Errorf("user info %s/%d: %w", pool.Chain, pool.PID, err)
		}
		if info.Amount.Sign() <= 0 {
			continue
		}
		out = append(out, s.value(pool, decimal.NewFromBigInt(info.Amount, -18)))
	}
	return out, nil
}

// value prices one LP amount against the pool's pair-level TVL.
func (s *Service) value(pool *analytics.Pool, lpAmount decimal.Decimal) Position {
	p := Position{
		Chain:    pool.Chain,
		PID:      pool.PID,
		Pair:     pool.Pair,
		LPAmount: lpAmount,
	}
	if pool.Priced && pool.TotalSupply.IsPositive() {
		p.ValueUSD = pool.PairTVL.Mul(lpAmount).Div(pool.TotalSupply)
	}
	return p
}

// TotalUSD sums the position values.
func TotalUSD(positions []Position) decimal.Decimal {
	total := decimal.Zero
	for _, p := range positions {
		total = total.Add(p.ValueUSD)
	}
	return total
}
