package burn

import "math"

const (
	// UVI = 40 * E_ery (W/m²), so one minute at UVI 1 delivers 1.5 J/m².
	// Expressed as percent of a 1 J/m² budget that is 150.
	damageRatePerMinute = 150.0

	// MED in J/m² per skin-type coefficient (type I: 2.5 -> 200 J/m²).
	medPerCoefficient = 80.0

	minSPF           = 1.0
	minDoseThreshold = 1.0

	lowUVRampLow  = 1.0
	lowUVRampHigh = 3.0
)

// lowUVWeight is a cubic smoothstep from 0 at UVI 1 to 1 at UVI 3.
func lowUVWeight(uvi float64) float64 {
	x := (uvi - lowUVRampLow) / (lowUVRampHigh - lowUVRampLow)
	if x <= 0 {
		return 0
	}
	if x >= 1 {
		return 1
	}
	return x * x * (3 - 2*x)
}

// EffectiveIrradiance is the UV index reaching the skin through sunscreen of the given
// effective SPF, optionally down-weighted at low sun angles.
func EffectiveIrradiance(uvi, spf float64, lowUVRamp bool) float64 {
	if !(uvi > 0) {
		return 0
	}
	eff := uvi / math.Max(minSPF, spf)
	if lowUVRamp {
		eff *= lowUVWeight(uvi)
	}
	return eff
}

// SliceDamage returns the percent of the burn budget consumed over minutes of exposure,
// integrating effective irradiance with the trapezoid rule.
func SliceDamage(effStart, effEnd, minutes, med float64) float64 {
	if !(minutes > 0) {
		return 0
	}
	avg := 0.5 * (effStart + effEnd)
	return damageRatePerMinute * avg * minutes / math.Max(minDoseThreshold, med)
}
