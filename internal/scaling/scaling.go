// Package scaling resizes boss stats to the party that actually showed up.
package scaling

import (
	"math"

	"raidsrv/internal/raid"
)

type Params struct {
	Baseline     float64 // power score that maps to a 1.0 multiplier
	MinMult      float64
	MaxMult      float64
	PerHeadBonus float64 // extra multiplier per participant past the first
	PartyCap     float64 // ceiling on the party-size bonus
	StatFloor    int     // boss stats never scale below this
}

func Defaults() Params {
	return Params{
		Baseline:     100,
		MinMult:      0.75,
		MaxMult:      3.0,
		PerHeadBonus: 0.15,
		PartyCap:     1.6,
		StatFloor:    10,
	}
}

// PowerScore is a weighted linear combination of a participant's effective
// stats. Health gets a small coefficient so tanks don't dominate the average.
func PowerScore(p *raid.Participant) float64 {
	return float64(p.Attack) + 0.8*float64(p.Defense) + 0.1*float64(p.MaxHealth)
}

// Multiplier derives the total scaling factor for a party.
func Multiplier(parts []*raid.Participant, pr Params) float64 {
	if len(parts) == 0 {
		return pr.MinMult
	}
	sum := 0.0
	for _, p := range parts {
		sum += PowerScore(p)
	}
	avg := sum / float64(len(parts))

	mult := avg / pr.Baseline
	if mult < pr.MinMult {
		mult = pr.MinMult
	}
	if mult > pr.MaxMult {
		mult = pr.MaxMult
	}

	party := 1.0 + float64(len(parts)-1)*pr.PerHeadBonus
	if party > pr.PartyCap {
		party = pr.PartyCap
	}
	return mult * party
}

// Apply resizes the session's boss stats exactly once. Calling it again is a
// no-op: the Scaled flag is the idempotence guard.
func Apply(s *raid.Session, pr Params) {
	if s.Scaled {
		return
	}
	total := Multiplier(s.Participants, pr)

	s.MaxHealth = scaleStat(s.MaxHealth, total, pr.StatFloor)
	s.Health = s.MaxHealth
	s.Attack = scaleStat(s.Attack, total, pr.StatFloor)
	s.Defense = scaleStat(s.Defense, total, pr.StatFloor)
	s.Scaled = true
}

func scaleStat(base int, mult float64, floor int) int {
	v := int(math.Round(float64(base) * mult))
	if v < floor {
		v = floor
	}
	return v
}
