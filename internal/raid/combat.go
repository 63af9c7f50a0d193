package raid

// Damage is the symmetric combat formula: floor(attack²/(attack+defense)),
// then the elemental multiplier and jitter. Jitter is uniform in [0.9, 1.1];
// callers draw it so the formula stays deterministic under test.
func Damage(attack, defense int, elemMult, jitter float64) int {
	if attack <= 0 {
		return 0
	}
	if defense < 0 {
		defense = 0
	}
	base := attack * attack / (attack + defense)
	dmg := int(float64(base) * elemMult * jitter)
	if dmg < 0 {
		dmg = 0
	}
	return dmg
}

// Jitter maps a uniform roll in [0,1) onto the damage jitter range.
func Jitter(roll float64) float64 {
	return 0.9 + roll*0.2
}
