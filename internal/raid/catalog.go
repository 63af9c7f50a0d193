package raid

import (
	"math"
	"math/rand"
)

type BossDef struct {
	Name        string
	Element     Element
	Rarity      Rarity
	BaseHealth  int
	BaseAttack  int
	BaseDefense int
	MinLevel    int
	MaxLevel    int
}

// StatsAt grows base stats 10% per level above 1.
func (b BossDef) StatsAt(level int) (health, attack, defense int) {
	if level < 1 {
		level = 1
	}
	scale := 1.0 + 0.1*float64(level-1)
	health = int(math.Round(float64(b.BaseHealth) * scale))
	attack = int(math.Round(float64(b.BaseAttack) * scale))
	defense = int(math.Round(float64(b.BaseDefense) * scale))
	return
}

// RollLevel draws uniformly from the boss's configured range.
func (b BossDef) RollLevel(rng *rand.Rand) int {
	if b.MaxLevel <= b.MinLevel {
		return b.MinLevel
	}
	return b.MinLevel + rng.Intn(b.MaxLevel-b.MinLevel+1)
}

var Catalog = []BossDef{
	{Name: "Mire Troll", Element: ElementEarth, Rarity: RarityCommon, BaseHealth: 900, BaseAttack: 60, BaseDefense: 40, MinLevel: 1, MaxLevel: 12},
	{Name: "Cinder Imp", Element: ElementFire, Rarity: RarityCommon, BaseHealth: 750, BaseAttack: 70, BaseDefense: 30, MinLevel: 1, MaxLevel: 12},
	{Name: "Tidecaller Crab", Element: ElementWater, Rarity: RarityCommon, BaseHealth: 1000, BaseAttack: 50, BaseDefense: 55, MinLevel: 1, MaxLevel: 10},
	{Name: "Gale Harpy", Element: ElementWind, Rarity: RarityCommon, BaseHealth: 700, BaseAttack: 75, BaseDefense: 25, MinLevel: 2, MaxLevel: 14},
	{Name: "Basalt Golem", Element: ElementEarth, Rarity: RarityRare, BaseHealth: 1600, BaseAttack: 85, BaseDefense: 70, MinLevel: 8, MaxLevel: 20},
	{Name: "Frost Serpent", Element: ElementWater, Rarity: RarityRare, BaseHealth: 1400, BaseAttack: 95, BaseDefense: 55, MinLevel: 8, MaxLevel: 20},
	{Name: "Storm Roc", Element: ElementWind, Rarity: RarityRare, BaseHealth: 1300, BaseAttack: 105, BaseDefense: 45, MinLevel: 10, MaxLevel: 22},
	{Name: "Ember Wyvern", Element: ElementFire, Rarity: RarityEpic, BaseHealth: 2400, BaseAttack: 130, BaseDefense: 80, MinLevel: 15, MaxLevel: 30},
	{Name: "Abyssal Kraken", Element: ElementWater, Rarity: RarityEpic, BaseHealth: 2800, BaseAttack: 115, BaseDefense: 95, MinLevel: 15, MaxLevel: 30},
	{Name: "Radiant Colossus", Element: ElementLight, Rarity: RarityLegendary, BaseHealth: 4200, BaseAttack: 160, BaseDefense: 120, MinLevel: 25, MaxLevel: 40},
	{Name: "Umbral Tyrant", Element: ElementDark, Rarity: RarityLegendary, BaseHealth: 4000, BaseAttack: 175, BaseDefense: 105, MinLevel: 25, MaxLevel: 40},
	{Name: "Worldrender Dragon", Element: ElementNeutral, Rarity: RarityUltra, BaseHealth: 6500, BaseAttack: 210, BaseDefense: 150, MinLevel: 35, MaxLevel: 50},
}

func Bucket(r Rarity) []BossDef {
	var out []BossDef
	for _, b := range Catalog {
		if b.Rarity == r {
			out = append(out, b)
		}
	}
	return out
}

// PickBoss chooses uniformly within a rarity bucket. Falls back to common if
// the bucket is somehow empty.
func PickBoss(rng *rand.Rand, r Rarity) BossDef {
	bucket := Bucket(r)
	if len(bucket) == 0 {
		bucket = Bucket(RarityCommon)
	}
	return bucket[rng.Intn(len(bucket))]
}

// FindBoss looks a definition up by name, for operator-selected spawns.
func FindBoss(name string) (BossDef, bool) {
	for _, b := range Catalog {
		if b.Name == name {
			return b, true
		}
	}
	return BossDef{}, false
}
