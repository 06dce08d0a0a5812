package genes

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Known on-chain hero used as the decoding fixture.
const (
	fixtureStatGenes   = "443792905345577883435573444901078008651685812390002810708884933276869006"
	fixtureVisualGenes = "167802052134684029170839265348095086605140799665595435281783389141496865"
)

func TestDecodeKnownStatGenes(t *testing.T) {
	stats, err := DecodeStatGenes(fixtureStatGenes)
	require.NoError(t, err)

	assert.Equal(t, "Ninja", stats.Class.D.Name)
	assert.Equal(t, "Monk", stats.Class.R1.Name)
	assert.Equal(t, "Knight", stats.Class.R2.Name)
	assert.Equal(t, "Berserker", stats.Class.R3.Name)
	assert.Equal(t, "Seer", stats.SubClass.D.Name)
	assert.Equal(t, "Fishing", stats.Profession.D.Name)
}

func TestDecodeDeterministic(t *testing.T) {
	a, err := Decode(fixtureStatGenes, fixtureVisualGenes)
	require.NoError(t, err)
	b, err := Decode(fixtureStatGenes, fixtureVisualGenes)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestDecodeSlotShape(t *testing.T) {
	g, err := Decode(fixtureStatGenes, fixtureVisualGenes)
	require.NoError(t, err)

	statSlots := g.Stats.Slots()
	visualSlots := g.Visual.Slots()
	require.Len(t, statSlots, 12)
	require.Len(t, visualSlots, 12)

	for _, slot := range append(statSlots, visualSlots...) {
		for _, tr := range []Trait{slot.D, slot.R1, slot.R2, slot.R3} {
			assert.NotEmpty(t, tr.Name)
			assert.GreaterOrEqual(t, tr.ID, 0)
			assert.Less(t, tr.ID, 32)
		}
	}
}

func TestHasProfessionGene(t *testing.T) {
	stats, err := DecodeStatGenes(fixtureStatGenes)
	require.NoError(t, err)

	// Fixture profession slot carries Fishing (D, R2), Gardening (R1),
	// Foraging (R3) and no Mining anywhere.
	assert.True(t, HasProfessionGene(stats, "Fishing"))
	assert.True(t, HasProfessionGene(stats, "Gardening"))
	assert.True(t, HasProfessionGene(stats, "Foraging"))
	assert.False(t, HasProfessionGene(stats, "Mining"))
}

func TestUnknownIDsResolveToSentinel(t *testing.T) {
	// A zero gene puts id 0 (Mining) in every slot; id 13 is not in the
	// profession table and resolves to the sentinel name.
	stats, err := DecodeStatGenes("0")
	require.NoError(t, err)
	assert.Equal(t, "Mining", stats.Profession.D.Name)

	g := resolveGroup([4]int{13, 13, 13, 13}, professionTable)
	assert.Equal(t, "Unknown(13)", g.D.Name)
}

func TestDecodeRejectsMalformedInput(t *testing.T) {
	cases := []string{"", "not-a-number", "-5", "0x12ab"}
	for _, raw := range cases {
		_, err := DecodeStatGenes(raw)
		assert.Error(t, err, "input %q", raw)
	}
}
