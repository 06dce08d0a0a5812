package pricegraph

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	anchor   = "0xaaaa000000000000000000000000000000000001"
	emission = "0xbbbb000000000000000000000000000000000002"
	gas      = "0xcccc000000000000000000000000000000000003"
	orphan   = "0xdddd000000000000000000000000000000000004"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func testPairs() []PairInput {
	return []PairInput{
		// 100k USDC ↔ 50k gas → gas = $2
		{Token0: anchor, Token1: gas, Reserve0: dec("100000"), Reserve1: dec("50000")},
		// 10k gas ↔ 40k emission → emission = $0.50
		{Token0: gas, Token1: emission, Reserve0: dec("10000"), Reserve1: dec("40000")},
		// orphan pool with dust reserves must be ignored
		{Token0: emission, Token1: orphan, Reserve0: dec("0.0000001"), Reserve1: dec("0.0000001")},
	}
}

func newTestBuilder(t *testing.T, pairs []PairInput) *Builder {
	t.Helper()
	source := func(ctx context.Context) ([]PairInput, error) { return pairs, nil }
	return NewBuilder(anchor, emission, gas, dec("0.000001"), 5*time.Minute, source,
		zerolog.New(io.Discard))
}

func TestBFSPropagation(t *testing.T) {
	b := newTestBuilder(t, testPairs())
	g, err := b.Current(context.Background())
	require.NoError(t, err)

	gasPrice, ok := g.Price(gas)
	require.True(t, ok)
	assert.True(t, gasPrice.Equal(dec("2")), "gas price %s", gasPrice)

	emissionPrice, ok := g.Price(emission)
	require.True(t, ok)
	assert.True(t, emissionPrice.Equal(dec("0.5")), "emission price %s", emissionPrice)

	_, ok = g.Price(orphan)
	assert.False(t, ok, "dust pair must not price the orphan token")
}

func TestRejectsWhenEmissionUnpriced(t *testing.T) {
	pairs := []PairInput{
		{Token0: anchor, Token1: gas, Reserve0: dec("100000"), Reserve1: dec("50000")},
	}
	b := newTestBuilder(t, pairs)
	_, err := b.Current(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrGraphRejected))
}

func TestKeepsPreviousGraphOnFailure(t *testing.T) {
	pairs := testPairs()
	fail := false
	source := func(ctx context.Context) ([]PairInput, error) {
		if fail {
			return nil, errors.New("rpc down")
		}
		return pairs, nil
	}
	b := NewBuilder(anchor, emission, gas, dec("0.000001"), time.Millisecond, source,
		zerolog.New(io.Discard))

	first, err := b.Current(context.Background())
	require.NoError(t, err)

	fail = true
	time.Sleep(5 * time.Millisecond) // let the TTL lapse

	second, err := b.Current(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first.BuiltAt, second.BuiltAt, "previous graph must survive a failed rebuild")
}

func TestCachedWithinTTL(t *testing.T) {
	calls := 0
	source := func(ctx context.Context) ([]PairInput, error) {
		calls++
		return testPairs(), nil
	}
	b := NewBuilder(anchor, emission, gas, dec("0.000001"), time.Hour, source,
		zerolog.New(io.Discard))

	for i := 0; i < 5; i++ {
		_, err := b.Current(context.Background())
		require.NoError(t, err)
	}
	assert.Equal(t, 1, calls, "TTL-fresh graph must not rebuild")
}
