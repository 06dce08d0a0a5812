package pricing

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hedgeledger/engine/store"
)

type fakeConfigStore struct {
	rows map[string]*store.PricingConfigRow
}

func (f *fakeConfigStore) GetPricingConfig(ctx context.Context, key string) (*store.PricingConfigRow, error) {
	if row, ok := f.rows[key]; ok {
		return row, nil
	}
	return nil, store.ErrConfigNotFound
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func offPeak() time.Time {
	return time.Date(2025, 6, 1, 3, 0, 0, 0, time.UTC)
}

func newTestEngine() *Engine {
	return NewEngine(&fakeConfigStore{}, zerolog.New(io.Discard))
}

func TestFreeTierAlwaysZero(t *testing.T) {
	e := newTestEngine()
	contexts := []PlayerContext{
		{LifetimeDeposits: decimal.Zero, Now: offPeak()},
		{LifetimeDeposits: dec("50000"), IsWhale: true, Priority: true, Now: offPeak().Add(16 * time.Hour)},
	}
	for _, query := range []string{"nav", "garden_basic", "summon"} {
		for _, pctx := range contexts {
			quote, err := e.Calculate(context.Background(), query, pctx)
			require.NoError(t, err)
			assert.True(t, quote.Amount.IsZero(), "query %s", query)
			assert.Equal(t, []string{TagFreeTier}, quote.Modifiers)
		}
	}
}

func TestNewPlayerDiscountComposition(t *testing.T) {
	e := newTestEngine()
	quote, err := e.Calculate(context.Background(), "garden_optimization", PlayerContext{
		LifetimeDeposits: dec("40"), // below the 100 threshold
		Now:              offPeak(),
	})
	require.NoError(t, err)

	base := DefaultConfig().BaseRates["garden_optimization"]
	want := base.Mul(DefaultConfig().Modifiers.NewPlayerDiscount)
	assert.True(t, quote.Amount.Equal(want), "got %s want %s", quote.Amount, want)
	assert.Equal(t, []string{TagNewPlayer}, quote.Modifiers)
}

func TestWhalePriorityRequiresBoth(t *testing.T) {
	e := newTestEngine()

	// Priority without whale: base only.
	quote, err := e.Calculate(context.Background(), "garden_optimization", PlayerContext{
		LifetimeDeposits: dec("5000"), Priority: true, Now: offPeak(),
	})
	require.NoError(t, err)
	assert.True(t, quote.Amount.Equal(dec("25")))
	assert.Empty(t, quote.Modifiers)

	// Priority and whale: multiplied.
	quote, err = e.Calculate(context.Background(), "garden_optimization", PlayerContext{
		LifetimeDeposits: dec("20000"), IsWhale: true, Priority: true, Now: offPeak(),
	})
	require.NoError(t, err)
	assert.True(t, quote.Amount.Equal(dec("37.5")), "got %s", quote.Amount)
	assert.Equal(t, []string{TagWhalePriority}, quote.Modifiers)
}

func TestPeakHourMultiplier(t *testing.T) {
	e := newTestEngine()
	peak := time.Date(2025, 6, 1, 19, 30, 0, 0, time.UTC)

	quote, err := e.Calculate(context.Background(), "garden_optimization", PlayerContext{
		LifetimeDeposits: dec("5000"), Now: peak,
	})
	require.NoError(t, err)
	assert.True(t, quote.Amount.Equal(dec("30")), "got %s", quote.Amount)
	assert.Equal(t, []string{TagPeakHours}, quote.Modifiers)
}

func TestUnknownQueryType(t *testing.T) {
	e := newTestEngine()
	_, err := e.Calculate(context.Background(), "astrology", PlayerContext{Now: offPeak()})
	assert.ErrorIs(t, err, ErrUnknownQueryType)
}

func TestStoreOverridesApplyAfterTTL(t *testing.T) {
	st := &fakeConfigStore{rows: map[string]*store.PricingConfigRow{
		store.PricingBaseRates: {
			Key:   store.PricingBaseRates,
			Value: []byte(`{"garden_optimization":"40"}`),
		},
	}}
	e := NewEngine(st, zerolog.New(io.Discard))

	// The seeded cache carries a zero loadedAt, so the first calculate
	// already reloads from the store.
	quote, err := e.Calculate(context.Background(), "garden_optimization", PlayerContext{
		LifetimeDeposits: dec("5000"), Now: offPeak(),
	})
	require.NoError(t, err)
	assert.True(t, quote.Amount.Equal(dec("40")), "got %s", quote.Amount)
}
