package burn

import "math"

// EffectiveSPF returns the protection left hoursSinceApplication after sunscreen with base SPF
// was applied. Protection holds until the profile's start, then falls linearly to 1 over
// the profile's duration.
func EffectiveSPF(base float64, profile SweatProfile, hoursSinceApplication float64) float64 {
	base = math.Max(minSPF, base)
	if base == minSPF || profile.DurationHours <= 0 {
		return base
	}
	if hoursSinceApplication <= profile.StartHours {
		return base
	}
	end := profile.StartHours + profile.DurationHours
	if hoursSinceApplication >= end {
		return minSPF
	}
	progress := (hoursSinceApplication - profile.StartHours) / profile.DurationHours
	return math.Max(minSPF, base-(base-minSPF)*progress)
}
