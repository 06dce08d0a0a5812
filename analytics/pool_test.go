package analytics

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestNormalizePairName(t *testing.T) {
	cases := map[string]string{
		"JEWEL-USDC":   "jewelusdc",
		"jewel usdc":   "jewelusdc",
		"Crystal-AVAX": "crystalavax",
		" wJEWEL-KLAY": "wjewelklay",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizePairName(in), "input %q", in)
	}
}

func TestQuestStrategyBoundsFollowEmissions(t *testing.T) {
	s := NewGardenerProfileStrategy()

	pool := &Pool{Priced: true, EmissionAPR: dec("40")}
	r := s.Range(pool)
	assert.True(t, r.Worst.Equal(dec("10")), "worst %s", r.Worst)
	assert.True(t, r.Best.Equal(dec("60")), "best %s", r.Best)
	assert.True(t, r.Worst.LessThan(r.Best))
}

func TestQuestStrategyZeroForUnpriced(t *testing.T) {
	s := NewGardenerProfileStrategy()

	r := s.Range(&Pool{Priced: false, EmissionAPR: dec("40")})
	assert.True(t, r.Worst.IsZero())
	assert.True(t, r.Best.IsZero())

	r = s.Range(&Pool{Priced: true})
	assert.True(t, r.Best.IsZero())
}

func TestTotalAPR(t *testing.T) {
	p := &Pool{
		FeeAPR:      dec("3"),
		EmissionAPR: dec("20"),
		QuestAPR:    QuestAPRRange{Worst: dec("5"), Best: dec("30")},
	}
	assert.True(t, p.TotalAPR().Equal(dec("53")))
}
