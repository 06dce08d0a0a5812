// Package pricing computes the cost of premium queries from the versioned
// store-backed rate config. Readers snapshot an immutable config pointer;
// a 60-second TTL reloader publishes fresh pointers behind them.
package pricing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/hedgeledger/engine/store"
)

// Query types with a zero price regardless of player context.
var freeTierQueries = map[string]bool{
	"nav":          true,
	"garden_basic": true,
	"summon":       true,
}

// Modifier tags attached to quotes.
const (
	TagFreeTier      = "free_tier"
	TagNewPlayer     = "new_player_discount"
	TagWhalePriority = "whale_priority"
	TagPeakHours     = "peak_hours"
)

const configTTL = 60 * time.Second

// ErrUnknownQueryType rejects query types with no configured base rate.
var ErrUnknownQueryType = errors.New("unknown query type")

// Modifiers is the tunable half of the cost model.
type Modifiers struct {
	NewPlayerThreshold      decimal.Decimal `json:"new_player_threshold"`
	NewPlayerDiscount       decimal.Decimal `json:"new_player_discount"`
	WhaleThreshold          decimal.Decimal `json:"whale_threshold"`
	WhalePriorityMultiplier decimal.Decimal `json:"whale_priority_multiplier"`
	PeakHours               []int           `json:"peak_hours"`
	PeakMultiplier          decimal.Decimal `json:"peak_multiplier"`
}

// Config is one immutable pricing snapshot.
type Config struct {
	BaseRates map[string]decimal.Decimal
	Modifiers Modifiers
}

// DefaultConfig is served until the store carries pricing rows.
func DefaultConfig() *Config {
	return &Config{
		BaseRates: map[string]decimal.Decimal{
			"garden_optimization": decimal.NewFromInt(25),
			"wallet_deep_dive":    decimal.NewFromInt(15),
			"hero_appraisal":      decimal.NewFromInt(5),
		},
		Modifiers: Modifiers{
			NewPlayerThreshold:      decimal.NewFromInt(100),
			NewPlayerDiscount:       decimal.RequireFromString("0.5"),
			WhaleThreshold:          decimal.NewFromInt(10000),
			WhalePriorityMultiplier: decimal.RequireFromString("1.5"),
			PeakHours:               []int{18, 19, 20, 21},
			PeakMultiplier:          decimal.RequireFromString("1.2"),
		},
	}
}

// PlayerContext is the player-side input to a quote.
type PlayerContext struct {
	LifetimeDeposits decimal.Decimal
	IsWhale          bool
	Priority         bool
	Now              time.Time
}

// Quote is one priced query with the modifiers that shaped it.
type Quote struct {
	Amount    decimal.Decimal `json:"amount"`
	Modifiers []string        `json:"modifiers"`
}

// ConfigStore loads pricing rows. *store.Store satisfies it.
type ConfigStore interface {
	GetPricingConfig(ctx context.Context, key string) (*store.PricingConfigRow, error)
}

type cachedConfig struct {
	cfg      *Config
	loadedAt time.Time
}

// Engine is the pricing engine.
type Engine struct {
	st     ConfigStore
	logger zerolog.Logger

	current  atomic.Pointer[cachedConfig]
	reloadMu sync.Mutex
}

// NewEngine creates the engine seeded with defaults.
func NewEngine(st ConfigStore, logger zerolog.Logger) *Engine {
	e := &Engine{
		st:     st,
		logger: logger.With().Str("component", "pricing").Logger(),
	}
	e.current.Store(&cachedConfig{cfg: DefaultConfig(), loadedAt: time.Time{}})
	return e
}

// Calculate prices one query for one player context.
func (e *Engine) Calculate(ctx context.Context, queryType string, pctx PlayerContext) (Quote, error) {
	if freeTierQueries[queryType] {
		return Quote{Amount: decimal.Zero, Modifiers: []string{TagFreeTier}}, nil
	}

	cfg := e.config(ctx)
	base, ok := cfg.BaseRates[queryType]
	if !ok {
		return Quote{}, fmt.Errorf("%w: %q", ErrUnknownQueryType, queryType)
	}

	now := pctx.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	quote := Quote{Amount: base}
	m := cfg.Modifiers

	if pctx.LifetimeDeposits.LessThan(m.NewPlayerThreshold) {
		quote.Amount = quote.Amount.Mul(m.NewPlayerDiscount)
		quote.Modifiers = append(quote.Modifiers, TagNewPlayer)
	}
	if pctx.Priority && pctx.IsWhale {
		quote.Amount = quote.Amount.Mul(m.WhalePriorityMultiplier)
		quote.Modifiers = append(quote.Modifiers, TagWhalePriority)
	}
	if isPeakHour(m.PeakHours, now.UTC().Hour()) {
		quote.Amount = quote.Amount.Mul(m.PeakMultiplier)
		quote.Modifiers = append(quote.Modifiers, TagPeakHours)
	}
	return quote, nil
}

func isPeakHour(hours []int, hour int) bool {
	for _, h := range hours {
		if h == hour {
			return true
		}
	}
	return false
}

// config returns the cached snapshot, reloading from the store past the TTL.
func (e *Engine) config(ctx context.Context) *Config {
	cached := e.current.Load()
	if time.Since(cached.loadedAt) < configTTL {
		return cached.cfg
	}

	e.reloadMu.Lock()
	defer e.reloadMu.Unlock()
	// Another caller may have reloaded while we queued on the mutex.
	if cached = e.current.Load(); time.Since(cached.loadedAt) < configTTL {
		return cached.cfg
	}

	fresh, err := e.load(ctx)
	if err != nil {
		e.logger.Warn().Err(err).Msg("pricing config reload failed, keeping previous")
		// Bump loadedAt so a broken store doesn't trigger a reload per call.
		e.current.Store(&cachedConfig{cfg: cached.cfg, loadedAt: time.Now()})
		return cached.cfg
	}
	e.current.Store(&cachedConfig{cfg: fresh, loadedAt: time.Now()})
	return fresh
}

// load reads both config rows, falling back to defaults per missing row.
func (e *Engine) load(ctx context.Context) (*Config, error) {
	cfg := DefaultConfig()

	if row, err := e.st.GetPricingConfig(ctx, store.PricingBaseRates); err == nil {
		var raw map[string]string
		if err := json.Unmarshal(row.Value, &raw); err != nil {
			return nil, fmt.Errorf("parse base rates: %w", err)
		}
		rates := make(map[string]decimal.Decimal, len(raw))
		for k, v := range raw {
			d, err := decimal.NewFromString(v)
			if err != nil {
				return nil, fmt.Errorf("base rate %q: %w", k, err)
			}
			rates[k] = d
		}
		cfg.BaseRates = rates
	} else if !errors.Is(err, store.ErrConfigNotFound) {
		return nil, err
	}

	if row, err := e.st.GetPricingConfig(ctx, store.PricingModifiers); err == nil {
		var m Modifiers
		if err := json.Unmarshal(row.Value, &m); err != nil {
			return nil, fmt.Errorf("parse modifiers: %w", err)
		}
		cfg.Modifiers = m
	} else if !errors.Is(err, store.ErrConfigNotFound) {
		return nil, err
	}

	return cfg, nil
}
