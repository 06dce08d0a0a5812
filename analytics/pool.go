package analytics

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Pool is one fully derived garden-pool analytics entry. Entries are built
// whole by the builder and swapped into the cache together; they are never
// partially updated.
type Pool struct {
	PID     uint64 `json:"pid"`
	Chain   string `json:"chain"`
	Pair    string `json:"pair"`
	LPToken string `json:"lpToken"`

	Symbol0    string `json:"symbol0"`
	Symbol1    string `json:"symbol1"`
	Token0     string `json:"token0"`
	Token1     string `json:"token1"`

	Reserve0    decimal.Decimal `json:"reserve0"`
	Reserve1    decimal.Decimal `json:"reserve1"`
	TotalSupply decimal.Decimal `json:"totalSupply"`
	TotalStaked decimal.Decimal `json:"totalStaked"`
	AllocShare  decimal.Decimal `json:"allocShare"`

	// Percent APRs over the trailing 24h window.
	FeeAPR      decimal.Decimal `json:"feeApr"`
	EmissionAPR decimal.Decimal `json:"emissionApr"`
	QuestAPR    QuestAPRRange   `json:"questApr"`

	// TVL is the staked share of the pair; PairTVL is the whole pair,
	// which user position math needs.
	TVL       decimal.Decimal `json:"tvl"`
	PairTVL   decimal.Decimal `json:"pairTvl"`
	Volume24h decimal.Decimal `json:"volume24h"`
	Fees24h   decimal.Decimal `json:"fees24h"`

	// Priced is false when the pair was unreachable in the price graph.
	// Consumers must treat that distinctly from a true 0% APR.
	Priced bool `json:"priced"`
}

// QuestAPRRange bounds the gardening-quest yield between the worst and best
// gardener profiles.
type QuestAPRRange struct {
	Worst decimal.Decimal `json:"worst"`
	Best  decimal.Decimal `json:"best"`
}

// TotalAPR is the pool's best-case combined yield.
func (p *Pool) TotalAPR() decimal.Decimal {
	return p.FeeAPR.Add(p.EmissionAPR).Add(p.QuestAPR.Best)
}

// NormalizedPair lowercases the pair name and strips separators, the form
// used for search matching.
func (p *Pool) NormalizedPair() string {
	return NormalizePairName(p.Pair)
}

// NormalizePairName lowercases and strips the characters `[-\s]`.
func NormalizePairName(name string) string {
	name = strings.ToLower(name)
	return strings.Map(func(r rune) rune {
		switch r {
		case '-', ' ', '\t', '\n':
			return -1
		}
		return r
	}, name)
}
