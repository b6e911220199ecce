package burn

import "sort"

// FindOptimal runs Calculate at each candidate resolution and picks one result.
//
// Coarser slices cover more forecast time per point, so the coarsest run that fits within
// MaxPoints wins, except that a fitting run which finds a burn time beats one that does not.
// When no run fits, the coarsest (truncated) run is returned.
func FindOptimal(in Input, opts Options) Result {
	opts = opts.withDefaults()

	var fallback, fit *Result
	for _, slicesPerHour := range candidateResolutions(opts.Resolutions) {
		res := Calculate(in, slicesPerHour, opts)
		if fallback == nil {
			fallback = &res
		}
		if res.Truncated {
			continue
		}
		if res.BurnTime != nil {
			return res
		}
		if fit == nil {
			fit = &res
		}
	}

	if fit != nil {
		return *fit
	}
	if fallback != nil {
		return *fallback
	}
	return Calculate(in, DefaultResolutions[0], opts)
}

// candidateResolutions returns the positive, distinct resolutions, coarsest first.
func candidateResolutions(in []int) []int {
	seen := make(map[int]bool, len(in))
	out := make([]int, 0, len(in))
	for _, r := range in {
		if r <= 0 || seen[r] {
			continue
		}
		seen[r] = true
		out = append(out, r)
	}
	sort.Ints(out)
	return out
}
