// Package genes decodes the two opaque 256-bit gene strings carried by every
// hero into named dominant and recessive traits. Decoding is a pure function
// of its input: no I/O, no clock, no randomness.
package genes

import (
	"fmt"
	"math/big"
)

// kaiAlphabet is the base-32 digit alphabet used by the gene encoding.
// The digit value is the rune's index in this string.
const kaiAlphabet = "123456789abcdefghijkmnopqrstuvwx"

const (
	geneDigits    = 48 // digits per gene string after left padding
	digitsPerSlot = 4  // R3, R2, R1, D on the wire
	slotCount     = geneDigits / digitsPerSlot
)

// StatGenes is the decoded trait matrix of a hero's stat genes.
type StatGenes struct {
	Class         TraitGroup `json:"class"`
	SubClass      TraitGroup `json:"subClass"`
	Profession    TraitGroup `json:"profession"`
	Passive1      TraitGroup `json:"passive1"`
	Passive2      TraitGroup `json:"passive2"`
	Active1       TraitGroup `json:"active1"`
	Active2       TraitGroup `json:"active2"`
	StatBoost1    TraitGroup `json:"statBoost1"`
	StatBoost2    TraitGroup `json:"statBoost2"`
	StatsUnknown1 TraitGroup `json:"statsUnknown1"`
	Element       TraitGroup `json:"element"`
	StatsUnknown2 TraitGroup `json:"statsUnknown2"`
}

// VisualGenes is the decoded trait matrix of a hero's visual genes.
type VisualGenes struct {
	Gender             TraitGroup `json:"gender"`
	HeadAppendage      TraitGroup `json:"headAppendage"`
	BackAppendage      TraitGroup `json:"backAppendage"`
	Background         TraitGroup `json:"background"`
	HairStyle          TraitGroup `json:"hairStyle"`
	HairColor          TraitGroup `json:"hairColor"`
	VisualUnknown1     TraitGroup `json:"visualUnknown1"`
	EyeColor           TraitGroup `json:"eyeColor"`
	SkinColor          TraitGroup `json:"skinColor"`
	AppendageColor     TraitGroup `json:"appendageColor"`
	BackAppendageColor TraitGroup `json:"backAppendageColor"`
	VisualUnknown2     TraitGroup `json:"visualUnknown2"`
}

// HeroGenes is the full decoded record for one hero.
type HeroGenes struct {
	Stats  StatGenes   `json:"stats"`
	Visual VisualGenes `json:"visual"`
}

// Decode decodes both gene strings. Inputs are the decimal representations
// of the on-chain 256-bit gene values.
func Decode(statGenes, visualGenes string) (*HeroGenes, error) {
	stats, err := DecodeStatGenes(statGenes)
	if err != nil {
		return nil, err
	}
	visual, err := DecodeVisualGenes(visualGenes)
	if err != nil {
		return nil, err
	}
	return &HeroGenes{Stats: *stats, Visual: *visual}, nil
}

// DecodeStatGenes decodes a stat gene string into its 12 slots.
func DecodeStatGenes(raw string) (*StatGenes, error) {
	groups, err := splitGroups(raw)
	if err != nil {
		return nil, fmt.Errorf("decode stat genes: %w", err)
	}
	return &StatGenes{
		Class:         resolveGroup(groups[0], classTable),
		SubClass:      resolveGroup(groups[1], classTable),
		Profession:    resolveGroup(groups[2], professionTable),
		Passive1:      resolveGroup(groups[3], skillTable),
		Passive2:      resolveGroup(groups[4], skillTable),
		Active1:       resolveGroup(groups[5], skillTable),
		Active2:       resolveGroup(groups[6], skillTable),
		StatBoost1:    resolveGroup(groups[7], statTable),
		StatBoost2:    resolveGroup(groups[8], statTable),
		StatsUnknown1: resolveGroup(groups[9], nil),
		Element:       resolveGroup(groups[10], elementTable),
		StatsUnknown2: resolveGroup(groups[11], nil),
	}, nil
}

// DecodeVisualGenes decodes a visual gene string into its 12 slots.
func DecodeVisualGenes(raw string) (*VisualGenes, error) {
	groups, err := splitGroups(raw)
	if err != nil {
		return nil, fmt.Errorf("decode visual genes: %w", err)
	}
	return &VisualGenes{
		Gender:             resolveGroup(groups[0], genderTable),
		HeadAppendage:      resolveGroup(groups[1], headAppendageTable),
		BackAppendage:      resolveGroup(groups[2], backAppendageTable),
		Background:         resolveGroup(groups[3], backgroundTable),
		HairStyle:          resolveGroup(groups[4], nil),
		HairColor:          resolveGroup(groups[5], nil),
		VisualUnknown1:     resolveGroup(groups[6], nil),
		EyeColor:           resolveGroup(groups[7], nil),
		SkinColor:          resolveGroup(groups[8], nil),
		AppendageColor:     resolveGroup(groups[9], nil),
		BackAppendageColor: resolveGroup(groups[10], nil),
		VisualUnknown2:     resolveGroup(groups[11], nil),
	}, nil
}

// Slots returns the stat slots in wire order. The decoded record always has
// exactly 12 groups.
func (g *StatGenes) Slots() []TraitGroup {
	return []TraitGroup{
		g.Class, g.SubClass, g.Profession, g.Passive1, g.Passive2,
		g.Active1, g.Active2, g.StatBoost1, g.StatBoost2,
		g.StatsUnknown1, g.Element, g.StatsUnknown2,
	}
}

// Slots returns the visual slots in wire order.
func (g *VisualGenes) Slots() []TraitGroup {
	return []TraitGroup{
		g.Gender, g.HeadAppendage, g.BackAppendage, g.Background,
		g.HairStyle, g.HairColor, g.VisualUnknown1, g.EyeColor,
		g.SkinColor, g.AppendageColor, g.BackAppendageColor, g.VisualUnknown2,
	}
}

// HasProfessionGene reports whether the named profession appears in any of
// the four positions of the profession slot.
func HasProfessionGene(stats *StatGenes, profession string) bool {
	p := stats.Profession
	for _, t := range []Trait{p.D, p.R1, p.R2, p.R3} {
		if t.Name == profession {
			return true
		}
	}
	return false
}

// splitGroups converts the decimal gene value into 48 base-32 digits,
// left padded with zeros, and returns them as 12 four-digit groups.
func splitGroups(raw string) ([][digitsPerSlot]int, error) {
	n, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return nil, fmt.Errorf("not a decimal integer: %q", raw)
	}
	if n.Sign() < 0 {
		return nil, fmt.Errorf("negative gene value: %q", raw)
	}

	digits := make([]int, geneDigits)
	base := big.NewInt(int64(len(kaiAlphabet)))
	rem := new(big.Int)
	v := new(big.Int).Set(n)
	for i := geneDigits - 1; i >= 0; i-- {
		v.QuoRem(v, base, rem)
		digits[i] = int(rem.Int64())
	}
	if v.Sign() != 0 {
		return nil, fmt.Errorf("gene value exceeds %d base-32 digits: %q", geneDigits, raw)
	}

	groups := make([][digitsPerSlot]int, slotCount)
	for i := 0; i < slotCount; i++ {
		copy(groups[i][:], digits[i*digitsPerSlot:(i+1)*digitsPerSlot])
	}
	return groups, nil
}

// resolveGroup maps the four wire positions of a slot (R3, R2, R1, D) to a
// TraitGroup. A nil table resolves every id to the Unknown sentinel.
func resolveGroup(g [digitsPerSlot]int, table map[int]string) TraitGroup {
	return TraitGroup{
		R3: resolve(table, g[0]),
		R2: resolve(table, g[1]),
		R1: resolve(table, g[2]),
		D:  resolve(table, g[3]),
	}
}
