// Package reward turns final damage totals into per-participant payouts.
// Everything here is pure; writing the results back to player records is the
// caller's side effect.
package reward

import (
	"math"
	"math/rand"

	"raidsrv/internal/raid"
)

type BonusTier string

const (
	BonusNone  BonusTier = "none"
	BonusMinor BonusTier = "minor" // uncapped share >= MinorShare
	BonusTop   BonusTier = "top"   // uncapped share >= TopShare
)

// Record is one participant's payout. Typed per category instead of a loose
// map so absent rewards are zero values, not missing keys.
type Record struct {
	ParticipantID string
	DamageShare   float64 // uncapped share, for display
	Gold          int
	XP            int
	Crystals      int // world encounters, victory only
	Bonus         BonusTier
	UnlockRolled  bool // world encounters, victory only, share >= UnlockMinShare
	UnlockWon     bool
}

type Contribution struct {
	ParticipantID string
	Damage        int
}

type Params struct {
	ContributionCap float64 // max fraction of any pool one participant can take
	TopShare        float64
	MinorShare      float64
	TopGoldMult     float64
	TopXPMult       float64
	MinorGoldMult   float64
	MinorXPMult     float64
	UnlockChance    float64
	UnlockMinShare  float64
	ConsolationFrac float64 // gold/xp fraction paid on a loss

	GoldBase     int
	GoldPerLevel int
	XPBase       int
	XPPerLevel   int
	CrystalBase  int
	CrystalPerLB int // crystals per level bracket (5 levels)
}

func Defaults() Params {
	return Params{
		ContributionCap: 0.25,
		TopShare:        0.40,
		MinorShare:      0.25,
		TopGoldMult:     1.5,
		TopXPMult:       1.3,
		MinorGoldMult:   1.2,
		MinorXPMult:     1.1,
		UnlockChance:    0.25,
		UnlockMinShare:  0.01,
		ConsolationFrac: 0.25,
		GoldBase:        200,
		GoldPerLevel:    80,
		XPBase:          100,
		XPPerLevel:      40,
		CrystalBase:     20,
		CrystalPerLB:    10,
	}
}

type Pool struct {
	Gold     int
	XP       int
	Crystals int
}

var rarityMult = map[raid.Rarity]float64{
	raid.RarityCommon:    1.0,
	raid.RarityRare:      1.25,
	raid.RarityEpic:      1.5,
	raid.RarityLegendary: 2.0,
	raid.RarityUltra:     3.0,
}

// PoolFor sizes the reward pools for an encounter. Crystals only exist for
// world encounters.
func PoolFor(level int, rarity raid.Rarity, tier raid.Tier, pr Params) Pool {
	if level < 1 {
		level = 1
	}
	mult := rarityMult[rarity]
	if mult == 0 {
		mult = 1.0
	}
	p := Pool{
		Gold: scale(pr.GoldBase+pr.GoldPerLevel*level, mult),
		XP:   scale(pr.XPBase+pr.XPPerLevel*level, mult),
	}
	if tier == raid.TierWorld {
		p.Crystals = scale(pr.CrystalBase+pr.CrystalPerLB*(level/5), mult)
	}
	return p
}

func scale(base int, mult float64) int {
	return int(math.Round(float64(base) * mult))
}

// Distribute computes every participant's payout for a resolved encounter.
// Standard-tier abandons pay nothing. Losses pay the consolation fraction of
// gold/xp to anyone who dealt damage. Crystals and unlock rolls are
// victory-only and world-only.
func Distribute(contribs []Contribution, pool Pool, tier raid.Tier, outcome raid.Outcome, pr Params, rng *rand.Rand) []Record {
	if outcome == raid.OutcomeAbandoned && tier == raid.TierStandard {
		return nil
	}

	total := 0
	for _, c := range contribs {
		total += c.Damage
	}
	if total <= 0 {
		total = 1
	}

	victory := outcome == raid.OutcomeVictory
	records := make([]Record, 0, len(contribs))
	for _, c := range contribs {
		share := float64(c.Damage) / float64(total)
		rec := Record{ParticipantID: c.ParticipantID, DamageShare: share, Bonus: BonusNone}

		if c.Damage > 0 {
			capped := math.Min(share, pr.ContributionCap)
			gold := float64(pool.Gold) * capped
			xp := float64(pool.XP) * capped

			// Bonus tiers key off the actual share, not the capped one.
			switch {
			case share >= pr.TopShare:
				rec.Bonus = BonusTop
				gold *= pr.TopGoldMult
				xp *= pr.TopXPMult
			case share >= pr.MinorShare:
				rec.Bonus = BonusMinor
				gold *= pr.MinorGoldMult
				xp *= pr.MinorXPMult
			}

			if !victory {
				gold *= pr.ConsolationFrac
				xp *= pr.ConsolationFrac
			}
			rec.Gold = int(gold)
			rec.XP = int(xp)

			if victory && tier == raid.TierWorld {
				rec.Crystals = int(float64(pool.Crystals) * capped)
				if share >= pr.UnlockMinShare {
					rec.UnlockRolled = true
					rec.UnlockWon = rng.Float64() < pr.UnlockChance
				}
			}
		}
		records = append(records, rec)
	}
	return records
}
