package raid

import "testing"

func TestDamageFormula(t *testing.T) {
	cases := []struct {
		name    string
		attack  int
		defense int
		mult    float64
		jitter  float64
		want    int
	}{
		{
			// floor(100²/150) = 66, ×1.5 = 99
			name:   "strong element vs defended boss",
			attack: 100, defense: 50, mult: 1.5, jitter: 1.0,
			want: 99,
		},
		{
			name:   "neutral matchup",
			attack: 100, defense: 50, mult: 1.0, jitter: 1.0,
			want: 66,
		},
		{
			name:   "weak element halves",
			attack: 100, defense: 50, mult: 0.5, jitter: 1.0,
			want: 33,
		},
		{
			name:   "zero attack deals nothing",
			attack: 0, defense: 50, mult: 1.5, jitter: 1.1,
			want: 0,
		},
		{
			name:   "undefended target",
			attack: 80, defense: 0, mult: 1.0, jitter: 1.0,
			want: 80,
		},
		{
			name:   "low jitter truncates down",
			attack: 100, defense: 50, mult: 1.0, jitter: 0.9,
			want: 59, // 66 * 0.9 = 59.4
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Damage(tc.attack, tc.defense, tc.mult, tc.jitter)
			if got != tc.want {
				t.Fatalf("Damage(%d,%d,%v,%v): got %d, want %d", tc.attack, tc.defense, tc.mult, tc.jitter, got, tc.want)
			}
		})
	}
}

func TestJitterBounds(t *testing.T) {
	if got := Jitter(0); got != 0.9 {
		t.Fatalf("Jitter(0): got %v", got)
	}
	if got := Jitter(0.5); got != 1.0 {
		t.Fatalf("Jitter(0.5): got %v", got)
	}
	// Upper bound is exclusive, matching the rng's [0,1).
	if got := Jitter(0.9999); got >= 1.1 {
		t.Fatalf("Jitter near 1: got %v, want < 1.1", got)
	}
}

func TestElementMultiplier(t *testing.T) {
	cases := []struct {
		name     string
		attacker Element
		defender Element
		want     float64
	}{
		{"fire strong vs wind", ElementFire, ElementWind, 1.5},
		{"wind weak vs fire", ElementWind, ElementFire, 0.5},
		{"water strong vs fire", ElementWater, ElementFire, 1.5},
		{"light strong vs dark", ElementLight, ElementDark, 1.5},
		{"dark strong vs light", ElementDark, ElementLight, 1.5},
		{"neutral vs anything", ElementNeutral, ElementFire, 1.0},
		{"same element", ElementFire, ElementFire, 1.0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ElementMultiplier(tc.attacker, tc.defender); got != tc.want {
				t.Fatalf("got %v, want %v", got, tc.want)
			}
		})
	}
}
