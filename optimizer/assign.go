// Package optimizer turns a verified payment job into a personalized
// garden-assignment report: analyze the current state, compute the best
// hero→pool assignment, render and deliver the result.
package optimizer

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/hedgeledger/engine/analytics"
	"github.com/hedgeledger/engine/chain"
	"github.com/hedgeledger/engine/genes"
	"github.com/hedgeledger/engine/positions"
)

// slotsPerPool is how many heroes one garden accepts.
const slotsPerPool = 2

// DefaultMaxHeroes bounds how many heroes a plan assigns.
const DefaultMaxHeroes = 10

// HeroProfile is one hero scored for gardening.
type HeroProfile struct {
	Hero       chain.Hero
	HasGene    bool
	Factor     decimal.Decimal // 0..1 position between the pool's worst and best quest APR
}

// Assignment is one hero placed on one pool.
type Assignment struct {
	HeroID      int64           `json:"heroId"`
	Chain       string          `json:"chain"`
	PID         uint64          `json:"pid"`
	Pair        string          `json:"pair"`
	ExpectedAPR decimal.Decimal `json:"expectedApr"`
}

// Plan is a full deterministic assignment.
type Plan struct {
	Assignments []Assignment    `json:"assignments"`
	AverageAPR  decimal.Decimal `json:"averageApr"`
}

// CurrentState summarizes what the wallet is doing before optimization.
type CurrentState struct {
	HeroCount       int             `json:"heroCount"`
	Gardeners       int             `json:"gardeners"`
	QuestingHeroes  int             `json:"questingHeroes"`
	LPValueUSD      decimal.Decimal `json:"lpValueUsd"`
	EstimatedAPR    decimal.Decimal `json:"estimatedApr"`
	PositionCount   int             `json:"positionCount"`
}

// ProfileHeroes decodes each hero's genes and derives its gardening factor.
// Heroes with undecodable genes count as bare heroes rather than failing the
// whole report.
func ProfileHeroes(heroes []chain.Hero) []HeroProfile {
	out := make([]HeroProfile, 0, len(heroes))
	for _, h := range heroes {
		p := HeroProfile{Hero: h}
		if stats, err := genes.DecodeStatGenes(h.StatGenes); err == nil {
			p.HasGene = genes.HasProfessionGene(stats, "Gardening")
		}
		p.Factor = gardeningFactor(h, p.HasGene)
		out = append(out, p)
	}
	return out
}

// gardeningFactor positions a hero between the worst (bare) and best
// (perfect gardener) quest profiles: skill carries most of the weight, the
// profession gene a fixed bonus, an equipped gardening pet the rest.
func gardeningFactor(h chain.Hero, hasGene bool) decimal.Decimal {
	// The hero API reports gardening skill ×10; 200 is a maxed gardener.
	skill := decimal.NewFromInt(int64(h.Gardening)).Div(decimal.NewFromInt(200))
	if skill.GreaterThan(decimal.NewFromInt(1)) {
		skill = decimal.NewFromInt(1)
	}
	factor := skill.Mul(decimal.RequireFromString("0.6"))
	if hasGene {
		factor = factor.Add(decimal.RequireFromString("0.3"))
	}
	if h.Pet != nil && h.Pet.ProfessionBonus > 0 {
		pet := decimal.NewFromInt(int64(h.Pet.ProfessionBonus)).Div(decimal.NewFromInt(1000))
		if pet.GreaterThan(decimal.RequireFromString("0.1")) {
			pet = decimal.RequireFromString("0.1")
		}
		factor = factor.Add(pet)
	}
	if factor.GreaterThan(decimal.NewFromInt(1)) {
		factor = decimal.NewFromInt(1)
	}
	return factor
}

// expectedAPR interpolates a hero's yield on a pool between the pool's
// worst and best quest bounds.
func expectedAPR(p HeroProfile, pool *analytics.Pool) decimal.Decimal {
	span := pool.QuestAPR.Best.Sub(pool.QuestAPR.Worst)
	return pool.QuestAPR.Worst.Add(span.Mul(p.Factor))
}

// BuildPlan assigns up to maxHeroes heroes to pools, two per garden, to
// maximize expected APR. The algorithm is deterministic: candidate pairs
// are ranked by expected APR, ties broken by lowest hero ID, then pool id.
func BuildPlan(profiles []HeroProfile, pools []analytics.Pool, maxHeroes int) Plan {
	if maxHeroes <= 0 {
		maxHeroes = DefaultMaxHeroes
	}

	type candidate struct {
		profile *HeroProfile
		pool    *analytics.Pool
		apr     decimal.Decimal
	}

	var candidates []candidate
	for i := range profiles {
		for j := range pools {
			pool := &pools[j]
			if !pool.Priced || pool.TVL.IsZero() {
				continue
			}
			candidates = append(candidates, candidate{
				profile: &profiles[i],
				pool:    pool,
				apr:     expectedAPR(profiles[i], pool),
			})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if !candidates[i].apr.Equal(candidates[j].apr) {
			return candidates[i].apr.GreaterThan(candidates[j].apr)
		}
		if candidates[i].profile.Hero.ID != candidates[j].profile.Hero.ID {
			return candidates[i].profile.Hero.ID < candidates[j].profile.Hero.ID
		}
		return candidates[i].pool.PID < candidates[j].pool.PID
	})

	assigned := make(map[int64]bool)
	slots := make(map[string]int)
	var plan Plan
	total := decimal.Zero

	for _, c := range candidates {
		if len(plan.Assignments) >= maxHeroes {
			break
		}
		heroID := c.profile.Hero.ID
		if assigned[heroID] {
			continue
		}
		key := c.pool.Chain + "/" + c.pool.Pair
		if slots[key] >= slotsPerPool {
			continue
		}
		assigned[heroID] = true
		slots[key]++
		plan.Assignments = append(plan.Assignments, Assignment{
			HeroID:      heroID,
			Chain:       c.pool.Chain,
			PID:         c.pool.PID,
			Pair:        c.pool.Pair,
			ExpectedAPR: c.apr,
		})
		total = total.Add(c.apr)
	}

	if n := len(plan.Assignments); n > 0 {
		plan.AverageAPR = total.Div(decimal.NewFromInt(int64(n)))
	}

	// Present assignments in a stable hero-ID order.
	sort.Slice(plan.Assignments, func(i, j int) bool {
		return plan.Assignments[i].HeroID < plan.Assignments[j].HeroID
	})
	return plan
}

// AnalyzeCurrent estimates the wallet's pre-optimization yield from its LP
// snapshot and hero roster.
func AnalyzeCurrent(profiles []HeroProfile, lpPositions []positions.Position, pools []analytics.Pool) CurrentState {
	state := CurrentState{
		HeroCount:     len(profiles),
		PositionCount: len(lpPositions),
		LPValueUSD:    positions.TotalUSD(lpPositions),
	}

	for _, p := range profiles {
		if p.HasGene {
			state.Gardeners++
		}
		if p.Hero.CurrentQuest != "" && p.Hero.CurrentQuest != "0x0000000000000000000000000000000000000000" {
			state.QuestingHeroes++
		}
	}

	// Weight each staked pool's quest midpoint by position value.
	byKey := make(map[string]*analytics.Pool, len(pools))
	for i := range pools {
		byKey[pools[i].Chain+"/"+pools[i].Pair] = &pools[i]
	}
	weighted := decimal.Zero
	for _, pos := range lpPositions {
		pool, ok := byKey[pos.Chain+"/"+pos.Pair]
		if !ok || pos.ValueUSD.IsZero() {
			continue
		}
		mid := pool.QuestAPR.Worst.Add(pool.QuestAPR.Best).Div(decimal.NewFromInt(2))
		weighted = weighted.Add(mid.Mul(pos.ValueUSD))
	}
	if state.LPValueUSD.IsPositive() {
		state.EstimatedAPR = weighted.Div(state.LPValueUSD)
	}
	return state
}

// Improvement is the before/after delta the report leads with.
type Improvement struct {
	DeltaAPR        decimal.Decimal `json:"deltaApr"`
	AnnualUSDExtra  decimal.Decimal `json:"annualUsdExtra"`
}

// MeasureImprovement compares the plan against the current state.
func MeasureImprovement(current CurrentState, plan Plan) Improvement {
	delta := plan.AverageAPR.Sub(current.EstimatedAPR)
	if delta.IsNegative() {
		delta = decimal.Zero
	}
	return Improvement{
		DeltaAPR:       delta,
		AnnualUSDExtra: current.LPValueUSD.Mul(delta).Div(decimal.NewFromInt(100)),
	}
}
