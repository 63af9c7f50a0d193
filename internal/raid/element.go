package raid

type Element string

const (
	ElementNeutral Element = "neutral"
	ElementFire    Element = "fire"
	ElementWater   Element = "water"
	ElementEarth   Element = "earth"
	ElementWind    Element = "wind"
	ElementLight   Element = "light"
	ElementDark    Element = "dark"
)

// One strength edge per element: fire>wind>earth>water>fire, light and dark
// beat each other.
// Weakness is the reverse edge. Neutral has neither.
var strongAgainst = map[Element]Element{
	ElementFire:  ElementWind,
	ElementWind:  ElementEarth,
	ElementEarth: ElementWater,
	ElementWater: ElementFire,
	ElementLight: ElementDark,
	ElementDark:  ElementLight,
}

func ElementMultiplier(attacker, defender Element) float64 {
	if strongAgainst[attacker] == defender {
		return 1.5
	}
	if strongAgainst[defender] == attacker {
		return 0.5
	}
	return 1.0
}
