package analytics

import "github.com/shopspring/decimal"

// QuestAPRStrategy computes the gardening-quest yield range for one pool.
// Two competing formulas exist upstream; the strategy is injected so the
// canonical one can be swapped in without touching the builder.
type QuestAPRStrategy interface {
	Range(pool *Pool) QuestAPRRange
}

// GardenerProfileStrategy is the shipped heuristic: quest yield is bounded
// by gardener quality relative to the pool's emission flow. The worst bound
// models a bare hero questing on regen stamina alone; the best bound a
// leveled gardener with the profession gene and a gardening pet.
type GardenerProfileStrategy struct {
	WorstFactor decimal.Decimal
	BestFactor  decimal.Decimal
}

// NewGardenerProfileStrategy returns the default bounds.
func NewGardenerProfileStrategy() *GardenerProfileStrategy {
	return &GardenerProfileStrategy{
		WorstFactor: decimal.RequireFromString("0.25"),
		BestFactor:  decimal.RequireFromString("1.5"),
	}
}

func (s *GardenerProfileStrategy) Range(pool *Pool) QuestAPRRange {
	if !pool.Priced || pool.EmissionAPR.IsZero() {
		return QuestAPRRange{Worst: decimal.Zero, Best: decimal.Zero}
	}
	return QuestAPRRange{
		Worst: pool.EmissionAPR.Mul(s.WorstFactor),
		Best:  pool.EmissionAPR.Mul(s.BestFactor),
	}
}
