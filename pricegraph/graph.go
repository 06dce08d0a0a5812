// Package pricegraph derives token → USD prices by walking LP-pair reserves
// outward from a stablecoin anchor.
package pricegraph

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"
)

// ErrGraphRejected marks a build whose validation invariants failed. The
// previous graph stays in service.
var ErrGraphRejected = errors.New("price graph rejected")

// PairInput is one LP pair's reserves in whole token units (decimals
// already applied).
type PairInput struct {
	Token0   string
	Token1   string
	Reserve0 decimal.Decimal
	Reserve1 decimal.Decimal
}

// Graph is one immutable price snapshot.
type Graph struct {
	Prices  map[string]decimal.Decimal // lowercased token address → USD
	BuiltAt time.Time
}

// Price looks up a token's USD price.
func (g *Graph) Price(token string) (decimal.Decimal, bool) {
	p, ok := g.Prices[strings.ToLower(token)]
	return p, ok
}

// Source supplies the pair list for a build.
type Source func(ctx context.Context) ([]PairInput, error)

// Builder owns the cached graph: one graph per process with a TTL, one
// in-flight build shared by all concurrent callers, previous graph kept on
// any failure.
type Builder struct {
	anchor   string
	emission string
	gas      string
	dust     decimal.Decimal
	ttl      time.Duration
	source   Source
	logger   zerolog.Logger

	sf      singleflight.Group
	mu      sync.RWMutex
	current *Graph
}

// NewBuilder creates a price graph builder. Token addresses are the anchor
// stablecoin, the primary emission token and the primary gas token.
func NewBuilder(anchor, emission, gas string, dust decimal.Decimal, ttl time.Duration, source Source, logger zerolog.Logger) *Builder {
	return &Builder{
		anchor:   strings.ToLower(anchor),
		emission: strings.ToLower(emission),
		gas:      strings.ToLower(gas),
		dust:     dust,
		ttl:      ttl,
		source:   source,
		logger:   logger.With().Str("component", "price_graph").Logger(),
	}
}

// Current returns a fresh-enough graph, rebuilding through singleflight when
// the TTL lapsed. A failed rebuild returns the previous graph when one
// exists, the error otherwise.
func (b *Builder) Current(ctx context.Context) (*Graph, error) {
	b.mu.RLock()
	g := b.current
	b.mu.RUnlock()
	if g != nil && time.Since(g.BuiltAt) < b.ttl {
		return g, nil
	}

	v, err, _ := b.sf.Do("build", func() (any, error) {
		// Re-check under the flight: a concurrent caller may have just
		// published a fresh graph.
		b.mu.RLock()
		cur := b.current
		b.mu.RUnlock()
		if cur != nil && time.Since(cur.BuiltAt) < b.ttl {
			return cur, nil
		}

		pairs, err := b.source(ctx)
		if err != nil {
			return nil, fmt.Errorf("load pairs: %w", err)
		}
		fresh, err := b.build(pairs)
		if err != nil {
			return nil, err
		}
		b.mu.Lock()
		b.current = fresh
		b.mu.Unlock()
		return fresh, nil
	})
	if err != nil {
		b.mu.RLock()
		prev := b.current
		b.mu.RUnlock()
		if prev != nil {
			b.logger.Warn().Err(err).Msg("price graph rebuild failed, serving previous graph")
			return prev, nil
		}
		return nil, err
	}
	return v.(*Graph), nil
}

// build runs the BFS propagation and validates the result.
func (b *Builder) build(pairs []PairInput) (*Graph, error) {
	prices := map[string]decimal.Decimal{
		b.anchor: decimal.NewFromInt(1),
	}

	// BFS over the pair list: each pass prices every pair adjacent to the
	// priced frontier until no new token gets a price.
	for changed := true; changed; {
		changed = false
		for _, p := range pairs {
			if p.Reserve0.LessThan(b.dust) || p.Reserve1.LessThan(b.dust) {
				continue
			}
			t0 := strings.ToLower(p.Token0)
			t1 := strings.ToLower(p.Token1)
			p0, ok0 := prices[t0]
			p1, ok1 := prices[t1]
			switch {
			case ok0 && !ok1:
				prices[t1] = impliedPrice(p.Reserve0, p0, p.Reserve1)
				changed = true
			case ok1 && !ok0:
				prices[t0] = impliedPrice(p.Reserve1, p1, p.Reserve0)
				changed = true
			}
		}
	}

	g := &Graph{Prices: prices, BuiltAt: time.Now().UTC()}
	if err := b.validate(g, pairs); err != nil {
		return nil, err
	}
	b.logger.Debug().Int("tokens", len(prices)).Msg("price graph built")
	return g, nil
}

// impliedPrice computes the price of the unpriced side of a pair:
// priced_reserve × priced_price / other_reserve.
func impliedPrice(pricedReserve, pricedPrice, otherReserve decimal.Decimal) decimal.Decimal {
	if otherReserve.IsZero() {
		return decimal.Zero
	}
	return pricedReserve.Mul(pricedPrice).Div(otherReserve)
}

var (
	anchorLow  = decimal.RequireFromString("0.9")
	anchorHigh = decimal.RequireFromString("1.1")
)

// validate enforces the consumption invariants: the anchor's implied price
// through any adjacent pair stays within ±10% of $1.00, and the emission and
// gas tokens both carry positive prices.
func (b *Builder) validate(g *Graph, pairs []PairInput) error {
	for _, p := range pairs {
		t0 := strings.ToLower(p.Token0)
		t1 := strings.ToLower(p.Token1)
		var implied decimal.Decimal
		switch {
		case t0 == b.anchor:
			price1, ok := g.Prices[t1]
			if !ok || p.Reserve0.LessThan(b.dust) {
				continue
			}
			implied = impliedPrice(p.Reserve1, price1, p.Reserve0)
		case t1 == b.anchor:
			price0, ok := g.Prices[t0]
			if !ok || p.Reserve1.LessThan(b.dust) {
				continue
			}
			implied = impliedPrice(p.Reserve0, price0, p.Reserve1)
		default:
			continue
		}
		if implied.LessThan(anchorLow) || implied.GreaterThan(anchorHigh) {
			return fmt.Errorf("%w: anchor implied price %s outside ±10%% band", ErrGraphRejected, implied)
		}
	}

	for _, token := range []string{b.emission, b.gas} {
		price, ok := g.Prices[token]
		if !ok || !price.IsPositive() {
			return fmt.Errorf("%w: token %s has no positive price", ErrGraphRejected, token)
		}
	}
	return nil
}
