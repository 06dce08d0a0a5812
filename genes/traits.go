package genes

import "fmt"

// Trait is one resolved gene value. Unknown gene ids resolve to a sentinel
// name rather than failing, so table revisions never break decoding.
type Trait struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// TraitGroup holds the dominant and three recessive traits of one slot.
type TraitGroup struct {
	D  Trait `json:"d"`
	R1 Trait `json:"r1"`
	R2 Trait `json:"r2"`
	R3 Trait `json:"r3"`
}

// resolve maps a gene id through a trait table, falling back to the
// Unknown(n) sentinel.
func resolve(table map[int]string, id int) Trait {
	if name, ok := table[id]; ok {
		return Trait{ID: id, Name: name}
	}
	return Trait{ID: id, Name: fmt.Sprintf("Unknown(%d)", id)}
}

// Trait tables, v1. These are versioned constants: additions get new ids,
// existing ids are never renumbered.

var classTable = map[int]string{
	0:  "Warrior",
	1:  "Knight",
	2:  "Thief",
	3:  "Archer",
	4:  "Priest",
	5:  "Wizard",
	6:  "Monk",
	7:  "Pirate",
	8:  "Berserker",
	9:  "Seer",
	10: "Legionnaire",
	11: "Scholar",
	16: "Paladin",
	17: "DarkKnight",
	18: "Summoner",
	19: "Ninja",
	20: "Shapeshifter",
	21: "Bard",
	24: "Dragoon",
	25: "Sage",
	26: "SpellBow",
	28: "DreadKnight",
}

var professionTable = map[int]string{
	0: "Mining",
	2: "Gardening",
	4: "Fishing",
	6: "Foraging",
}

var skillTable = map[int]string{
	0:  "Basic1",
	1:  "Basic2",
	2:  "Basic3",
	3:  "Basic4",
	4:  "Basic5",
	5:  "Basic6",
	6:  "Basic7",
	7:  "Basic8",
	8:  "Basic9",
	9:  "Basic10",
	16: "Advanced1",
	17: "Advanced2",
	18: "Advanced3",
	19: "Advanced4",
	24: "Elite1",
	25: "Elite2",
	28: "Transcendent1",
}

var statTable = map[int]string{
	0:  "STR",
	2:  "AGI",
	4:  "INT",
	6:  "WIS",
	8:  "LCK",
	10: "VIT",
	12: "END",
	14: "DEX",
}

var elementTable = map[int]string{
	0:  "Fire",
	2:  "Water",
	4:  "Earth",
	6:  "Wind",
	8:  "Lightning",
	10: "Ice",
	12: "Light",
	14: "Dark",
}

var genderTable = map[int]string{
	1: "Male",
	3: "Female",
}

var backgroundTable = map[int]string{
	0:  "Desert",
	2:  "Forest",
	4:  "Plains",
	6:  "Island",
	8:  "Swamp",
	10: "Mountains",
	12: "City",
	14: "Arctic",
}

var headAppendageTable = map[int]string{
	0: "None",
	1: "CatEars",
	2: "SmallHorns",
	3: "SideHorns",
	4: "Antlers",
	5: "WolfEars",
	6: "LargeHorns",
	7: "PointedEars",
	8: "Halo",
	9: "PhoenixCrest",
}

var backAppendageTable = map[int]string{
	0: "None",
	1: "MonkeyTail",
	2: "CatTail",
	3: "ImpTail",
	4: "SkeletalWings",
	5: "SmallWings",
	6: "WolfTail",
	7: "LargeWings",
	8: "AuraOrbs",
	9: "PhoenixWings",
}
