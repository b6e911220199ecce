// Package burn estimates when accumulated UV exposure reaches a sunburn threshold.
//
// The forecast is cut into sub-hour slices, each slice's dose is integrated against the
// skin type's MED through sweat-decayed sunscreen, and the instant the running total
// reaches 100% is interpolated inside the crossing slice. Everything here is pure:
// identical inputs give identical results.
package burn

import (
	"sort"
	"time"

	"github.com/lox/sunburntimer/internal/models"
)

const (
	DamageThreshold         = 100.0
	SafetyThreshold         = 95.0
	MaxCalculationPoints    = 26
	EveningCutoffHour       = 22
	MinPointsForEveningStop = 11
)

// DefaultResolutions are candidate slices per hour, coarsest first (15, 10, 5 and 2 minutes).
var DefaultResolutions = []int{4, 6, 12, 30}

// HourFunc converts an instant to the hour of day (0-23) in the named IANA zone.
type HourFunc func(t time.Time, zone string) int

// UTCHour ignores the zone. It is the fallback when no HourFunc is injected.
func UTCHour(t time.Time, _ string) int {
	return t.UTC().Hour()
}

type Options struct {
	Threshold               float64
	MaxPoints               int
	EveningCutoffHour       int
	MinPointsForEveningStop int
	LowUVRamp               bool
	Resolutions             []int
	LocalHour               HourFunc
}

func DefaultOptions() Options {
	return Options{
		Threshold:               DamageThreshold,
		MaxPoints:               MaxCalculationPoints,
		EveningCutoffHour:       EveningCutoffHour,
		MinPointsForEveningStop: MinPointsForEveningStop,
		LowUVRamp:               true,
		Resolutions:             DefaultResolutions,
		LocalHour:               UTCHour,
	}
}

func (o Options) withDefaults() Options {
	if !(o.Threshold > 0) {
		o.Threshold = DamageThreshold
	}
	if o.MaxPoints <= 0 {
		o.MaxPoints = MaxCalculationPoints
	}
	if o.EveningCutoffHour < 0 || o.EveningCutoffHour > 23 {
		o.EveningCutoffHour = EveningCutoffHour
	}
	if o.MinPointsForEveningStop <= 0 {
		o.MinPointsForEveningStop = MinPointsForEveningStop
	}
	if len(o.Resolutions) == 0 {
		o.Resolutions = DefaultResolutions
	}
	if o.LocalHour == nil {
		o.LocalHour = UTCHour
	}
	return o
}

// Input is everything a calculation depends on. Hourly must be ascending by time.
type Input struct {
	Hourly   []models.HourlyUV
	Now      time.Time
	Timezone string
	Skin     SkinType
	SPF      SPFLevel
	Sweat    SweatLevel
}

type Point struct {
	Time             time.Time `json:"time"`
	UVIndex          float64   `json:"uvIndex"`
	DamageAdded      float64   `json:"damageAdded"`
	CumulativeBefore float64   `json:"cumulativeBefore"`
}

func (p Point) CumulativeAfter() float64 {
	return p.CumulativeBefore + p.DamageAdded
}

type Result struct {
	StartTime  time.Time  `json:"startTime"`
	BurnTime   *time.Time `json:"burnTime,omitempty"`
	Points     []Point    `json:"points"`
	Resolution int        `json:"resolution"`
	Truncated  bool       `json:"truncated"`
	Advice     []string   `json:"advice"`
}

// FinalDamage is the cumulative damage percent at the end of the last point.
func (r Result) FinalDamage() float64 {
	if len(r.Points) == 0 {
		return 0
	}
	return r.Points[len(r.Points)-1].CumulativeAfter()
}

// SliceMinutes is the nominal slice width used by the result.
func (r Result) SliceMinutes() float64 {
	if r.Resolution <= 0 {
		return 0
	}
	return 60 / float64(r.Resolution)
}

// Calculate integrates damage at a single resolution. It stops at the burn instant, at the
// evening cutoff once enough points exist, when the forecast runs out, or when another point
// would exceed opts.MaxPoints (Truncated is then set).
func Calculate(in Input, slicesPerHour int, opts Options) Result {
	opts = opts.withDefaults()
	res := Result{
		Points:     []Point{},
		Resolution: slicesPerHour,
	}
	if slicesPerHour <= 0 || len(in.Hourly) < 2 {
		res.Advice = Advice(in.SPF, res)
		return res
	}

	med := in.Skin.MED()
	baseSPF := in.SPF.Factor()
	profile := in.Sweat.Profile()
	total := 0.0

	// Pairs ending at or before now contribute nothing.
	first := sort.Search(len(in.Hourly), func(i int) bool {
		return in.Hourly[i].Time.After(in.Now)
	}) - 1
	if first < 0 {
		first = 0
	}

	var windows []SliceWindow
walk:
	for i := first; i+1 < len(in.Hourly); i++ {
		windows = appendPairSlices(windows[:0], in.Hourly[i], in.Hourly[i+1], slicesPerHour)
		for _, w := range windows {
			if !w.End.After(in.Now) {
				continue
			}
			if len(res.Points) >= opts.MaxPoints {
				res.Truncated = true
				break walk
			}

			start := w.Start
			if in.Now.After(start) {
				start = in.Now
			}
			minutes := w.End.Sub(start).Minutes()
			if minutes <= 0 {
				continue
			}

			uviStart := w.UVIAt(start)
			uviEnd := w.UVIEnd
			spfStart := EffectiveSPF(baseSPF, profile, start.Sub(in.Now).Hours())
			spfEnd := EffectiveSPF(baseSPF, profile, w.End.Sub(in.Now).Hours())
			damage := SliceDamage(
				EffectiveIrradiance(uviStart, spfStart, opts.LowUVRamp),
				EffectiveIrradiance(uviEnd, spfEnd, opts.LowUVRamp),
				minutes,
				med,
			)

			p := Point{
				Time:             start,
				UVIndex:          0.5 * (uviStart + uviEnd),
				CumulativeBefore: total,
			}

			if total+damage >= opts.Threshold {
				// Damage rate is taken as uniform across the slice.
				remaining := opts.Threshold - total
				perMinute := damage / minutes
				burn := start.Add(time.Duration(remaining / perMinute * float64(time.Minute)))
				p.DamageAdded = remaining
				res.Points = append(res.Points, p)
				res.BurnTime = &burn
				break walk
			}

			p.DamageAdded = damage
			res.Points = append(res.Points, p)
			total += damage

			if len(res.Points) > opts.MinPointsForEveningStop &&
				opts.LocalHour(start, in.Timezone) >= opts.EveningCutoffHour {
				break walk
			}
		}
	}

	if len(res.Points) > 0 {
		res.StartTime = res.Points[0].Time
	}
	res.Advice = Advice(in.SPF, res)
	return res
}
