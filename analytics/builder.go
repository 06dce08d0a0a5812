// Package analytics derives the per-pool garden analytics: TVL, trailing
// fee and emission APRs from event logs, and the quest APR range. The
// builder runs inside the pool cache refresh loop, never on user request
// paths.
package analytics

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/hedgeledger/engine/chain"
	"github.com/hedgeledger/engine/pricegraph"
)

// swapFeeRate is the pair-level LP fee taken on swap volume.
var swapFeeRate = decimal.RequireFromString("0.0025")

var daysPerYear = decimal.NewFromInt(365)
var hundred = decimal.NewFromInt(100)

// Builder produces the full pool analytics set for every configured chain.
type Builder struct {
	chains     *chain.Registry
	prices     *pricegraph.Builder
	quest      QuestAPRStrategy
	deprecated map[string]map[uint64]bool
	logger     zerolog.Logger
}

// NewBuilder wires the analytics builder. deprecated maps chain name → pids
// excluded from the build (the configured allowlist replacement for
// pair-name substring filtering).
func NewBuilder(chains *chain.Registry, prices *pricegraph.Builder, quest QuestAPRStrategy,
	deprecated map[string][]uint64, logger zerolog.Logger) *Builder {
	dep := make(map[string]map[uint64]bool, len(deprecated))
	for chainName, pids := range deprecated {
		dep[chainName] = make(map[uint64]bool, len(pids))
		for _, pid := range pids {
			dep[chainName][pid] = true
		}
	}
	return &Builder{
		chains:     chains,
		prices:     prices,
		quest:      quest,
		deprecated: dep,
		logger:     logger.With().Str("component", "pool_analytics").Logger(),
	}
}

// BuildAll builds analytics for every pool on every registered chain.
func (b *Builder) BuildAll(ctx context.Context) ([]Pool, error) {
	graph, err := b.prices.Current(ctx)
	if err != nil {
		return nil, fmt.Errorf("price graph: %w", err)
	}

	var out []Pool
	for _, name := range b.chains.List() {
		client, _ := b.chains.Get(name)
		pools, err := b.buildChain(ctx, client, graph)
		if err != nil {
			return nil, fmt.Errorf("build %s pools: %w", name, err)
		}
		out = append(out, pools...)
	}
	return out, nil
}

func (b *Builder) buildChain(ctx context.Context, client *chain.Client, graph *pricegraph.Graph) ([]Pool, error) {
	cfg := client.Config()

	tip, err := client.BlockNumber(ctx)
	if err != nil {
		return nil, err
	}
	length, err := client.GetPoolLength(ctx)
	if err != nil {
		return nil, err
	}
	totalAlloc, err := client.GetTotalAllocPoint(ctx)
	if err != nil {
		return nil, err
	}
	totalAllocDec := decimal.NewFromBigInt(totalAlloc, 0)

	windowStart := uint64(0)
	if tip > cfg.BlocksPerDay {
		windowStart = tip - cfg.BlocksPerDay
	}

	emissionPrice, _ := graph.Price(cfg.RewardToken)

	pools := make([]Pool, 0, length)
	for pid := uint64(0); pid < length; pid++ {
		if b.deprecated[cfg.Name][pid] {
			continue
		}
		pool, err := b.buildPool(ctx, client, graph, pid, totalAllocDec, emissionPrice, windowStart, tip)
		if err != nil {
			return nil, fmt.Errorf("pool %d: %w", pid, err)
		}
		if pool == nil {
			continue // archived
		}
		pools = append(pools, *pool)
	}

	b.logger.Debug().Str("chain", cfg.Name).Int("pools", len(pools)).Msg("chain analytics built")
	return pools, nil
}

func (b *Builder) buildPool(ctx context.Context, client *chain.Client, graph *pricegraph.Graph,
	pid uint64, totalAlloc, emissionPrice decimal.Decimal, windowStart, tip uint64) (*Pool, error) {

	info, err := client.GetPoolInfo(ctx, pid)
	if err != nil {
		return nil, err
	}
	// A zero alloc point marks an archived pool.
	if info.AllocPoint.Sign() == 0 {
		return nil, nil
	}
	meta, err := client.GetPairMeta(ctx, info.LPToken)
	if err != nil {
		return nil, err
	}

	cfg := client.Config()
	pool := &Pool{
		PID:         pid,
		Chain:       cfg.Name,
		Pair:        meta.Symbol0 + "-" + meta.Symbol1,
		LPToken:     strings.ToLower(info.LPToken.Hex()),
		Symbol0:     meta.Symbol0,
		Symbol1:     meta.Symbol1,
		Token0:      strings.ToLower(meta.Token0.Hex()),
		Token1:      strings.ToLower(meta.Token1.Hex()),
		Reserve0:    decimal.NewFromBigInt(meta.Reserve0, -int32(meta.Decimals0)),
		Reserve1:    decimal.NewFromBigInt(meta.Reserve1, -int32(meta.Decimals1)),
		TotalSupply: decimal.NewFromBigInt(meta.TotalSupply, -18),
		TotalStaked: decimal.NewFromBigInt(info.TotalStaked, -18),
	}
	if totalAlloc.IsPositive() {
		pool.AllocShare = decimal.NewFromBigInt(info.AllocPoint, 0).Div(totalAlloc)
	}

	price0, ok0 := graph.Price(pool.Token0)
	price1, ok1 := graph.Price(pool.Token1)
	pool.Priced = ok0 && ok1
	if !pool.Priced {
		// Unreachable in the price graph: numeric zeros, flagged so
		// consumers can distinguish N/A from a real 0%.
		b.logger.Warn().Str("pair", pool.Pair).Uint64("pid", pid).Msg("pool unreachable in price graph")
		return pool, nil
	}

	pool.PairTVL = pool.Reserve0.Mul(price0).Add(pool.Reserve1.Mul(price1))
	if pool.TotalSupply.IsPositive() {
		pool.TVL = pool.PairTVL.Mul(pool.TotalStaked).Div(pool.TotalSupply)
	}

	swaps, err := client.QuerySwapLogs(ctx, info.LPToken, windowStart, tip)
	if err != nil {
		return nil, err
	}
	for _, s := range swaps {
		in0 := decimal.NewFromBigInt(s.Amount0In, -int32(meta.Decimals0)).Mul(price0)
		in1 := decimal.NewFromBigInt(s.Amount1In, -int32(meta.Decimals1)).Mul(price1)
		pool.Volume24h = pool.Volume24h.Add(in0).Add(in1)
	}
	pool.Fees24h = pool.Volume24h.Mul(swapFeeRate)

	rewards, err := client.QueryRewardLogs(ctx, windowStart, tip, &pid)
	if err != nil {
		return nil, err
	}
	emitted := decimal.Zero
	for _, r := range rewards {
		emitted = emitted.Add(decimal.NewFromBigInt(r.Amount, -18))
	}

	// Zero-TVL pools yield 0% APRs, never NaN.
	if pool.TVL.IsPositive() {
		pool.FeeAPR = pool.Fees24h.Div(pool.TVL).Mul(daysPerYear).Mul(hundred)
		pool.EmissionAPR = emitted.Mul(emissionPrice).Div(pool.TVL).Mul(daysPerYear).Mul(hundred)
	}
	pool.QuestAPR = b.quest.Range(pool)

	return pool, nil
}

// PairSource returns a pricegraph.Source that enumerates the primary
// chain's pool pairs with reserves only, the minimum the graph needs.
func PairSource(chains *chain.Registry, chainName string) pricegraph.Source {
	return func(ctx context.Context) ([]pricegraph.PairInput, error) {
		client, err := chains.MustGet(chainName)
		if err != nil {
			return nil, err
		}
		length, err := client.GetPoolLength(ctx)
		if err != nil {
			return nil, err
		}
		pairs := make([]pricegraph.PairInput, 0, length)
		for pid := uint64(0); pid < length; pid++ {
			info, err := client.GetPoolInfo(ctx, pid)
			if err != nil {
				return nil, err
			}
			meta, err := client.GetPairMeta(ctx, info.LPToken)
			if err != nil {
				return nil, err
			}
			pairs = append(pairs, pricegraph.PairInput{
				Token0:   strings.ToLower(meta.Token0.Hex()),
				Token1:   strings.ToLower(meta.Token1.Hex()),
				Reserve0: decimal.NewFromBigInt(meta.Reserve0, -int32(meta.Decimals0)),
				Reserve1: decimal.NewFromBigInt(meta.Reserve1, -int32(meta.Decimals1)),
			})
		}
		return pairs, nil
	}
}
